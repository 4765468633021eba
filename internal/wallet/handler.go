package wallet

import (
	"errors"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
)

// Handler exposes wallet HTTP endpoints.
type Handler struct {
	service *Service
}

// NewHandler builds a wallet HTTP handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type addMethodRequest struct {
	CardHolder string `json:"card_holder"`
	CardNumber string `json:"card_number"`
	Expiry     string `json:"expiry"`
}

type methodResponse struct {
	ID         string    `json:"id"`
	CardHolder string    `json:"card_holder"`
	CardNumber string    `json:"card_number"`
	Expiry     string    `json:"expiry"`
	CreatedAt  time.Time `json:"created_at"`
}

// Balance returns the authenticated account's wallet balance.
func (h *Handler) Balance(c *fiber.Ctx) error {
	accountID, _ := c.Locals("account_id").(string)
	if accountID == "" {
		return fiber.NewError(http.StatusUnauthorized, "unauthorized")
	}
	w, err := h.service.Get(c.UserContext(), accountID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return fiber.NewError(http.StatusNotFound, err.Error())
		}
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{
		"account_id": w.AccountID,
		"balance":    w.Balance,
		"as_of":      w.UpdatedAt,
	})
}

// ListPaymentMethods returns the stored cards on the wallet.
func (h *Handler) ListPaymentMethods(c *fiber.Ctx) error {
	accountID, _ := c.Locals("account_id").(string)
	if accountID == "" {
		return fiber.NewError(http.StatusUnauthorized, "unauthorized")
	}
	w, err := h.service.Get(c.UserContext(), accountID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return fiber.NewError(http.StatusNotFound, err.Error())
		}
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}
	out := make([]methodResponse, 0, len(w.PaymentMethods))
	for _, m := range w.PaymentMethods {
		out = append(out, methodResponse{
			ID:         m.ID,
			CardHolder: m.CardHolder,
			CardNumber: m.CardNumber,
			Expiry:     m.Expiry,
			CreatedAt:  m.CreatedAt,
		})
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"payment_methods": out, "count": len(out)})
}

// AddPaymentMethod stores a new card on the wallet.
func (h *Handler) AddPaymentMethod(c *fiber.Ctx) error {
	accountID, _ := c.Locals("account_id").(string)
	if accountID == "" {
		return fiber.NewError(http.StatusUnauthorized, "unauthorized")
	}
	var req addMethodRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	method, err := h.service.AddPaymentMethod(c.UserContext(), accountID, AddPaymentMethodInput{
		CardHolder: req.CardHolder,
		CardNumber: req.CardNumber,
		Expiry:     req.Expiry,
	})
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return fiber.NewError(http.StatusNotFound, err.Error())
		}
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	return c.Status(http.StatusCreated).JSON(methodResponse{
		ID:         method.ID,
		CardHolder: method.CardHolder,
		CardNumber: method.CardNumber,
		Expiry:     method.Expiry,
		CreatedAt:  method.CreatedAt,
	})
}

// RemovePaymentMethod deletes a stored card by id.
func (h *Handler) RemovePaymentMethod(c *fiber.Ctx) error {
	accountID, _ := c.Locals("account_id").(string)
	if accountID == "" {
		return fiber.NewError(http.StatusUnauthorized, "unauthorized")
	}
	if err := h.service.RemovePaymentMethod(c.UserContext(), accountID, c.Params("methodId")); err != nil {
		if errors.Is(err, ErrMethodNotFound) || errors.Is(err, ErrNotFound) {
			return fiber.NewError(http.StatusNotFound, err.Error())
		}
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}
	return c.SendStatus(http.StatusNoContent)
}
