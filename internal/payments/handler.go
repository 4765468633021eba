package payments

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"

	"github.com/transitpago/transitpago/internal/identity"
	"github.com/transitpago/transitpago/internal/ledger"
	"github.com/transitpago/transitpago/internal/wallet"
)

// Handler exposes settlement endpoints.
type Handler struct {
	service *Service
}

// NewHandler constructs a payments handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type scanRequest struct {
	QRPayload string          `json:"qr_payload"`
	Amount    decimal.Decimal `json:"amount"`
}

type driverScanRequest struct {
	QRPayload string `json:"qr_payload"`
	RouteCode string `json:"route_code"`
}

type topUpRequest struct {
	Amount          decimal.Decimal `json:"amount"`
	PaymentMethodID string          `json:"payment_method_id"`
}

type entryResponse struct {
	ID          string            `json:"id"`
	AccountID   string            `json:"account_id"`
	Amount      decimal.Decimal   `json:"amount"`
	Kind        string            `json:"kind"`
	Status      string            `json:"status"`
	Description string            `json:"description"`
	Metadata    map[string]string `json:"metadata,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
}

func toEntryResponse(e ledger.Entry) entryResponse {
	return entryResponse{
		ID:          e.ID,
		AccountID:   e.AccountID,
		Amount:      e.Amount,
		Kind:        string(e.Kind),
		Status:      string(e.Status),
		Description: e.Description,
		Metadata:    e.Metadata,
		CreatedAt:   e.CreatedAt,
	}
}

// SelfServiceScan processes a QR payment at a fixed reader or terminal.
func (h *Handler) SelfServiceScan(c *fiber.Ctx) error {
	var req scanRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}

	receipt, err := h.service.SelfServiceScan(c.UserContext(), req.QRPayload, req.Amount)
	if err != nil {
		return h.writeError(c, err)
	}

	return c.Status(http.StatusCreated).JSON(fiber.Map{
		"entry":       toEntryResponse(receipt.Entry),
		"new_balance": receipt.NewBalance,
	})
}

// DriverScan processes a driver-collected fare; the charge comes from the
// route, never from the request body.
func (h *Handler) DriverScan(c *fiber.Ctx) error {
	driverID, _ := c.Locals("account_id").(string)
	if driverID == "" {
		return fiber.NewError(http.StatusUnauthorized, "unauthorized")
	}

	var req driverScanRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}

	receipt, err := h.service.DriverScan(c.UserContext(), driverID, req.QRPayload, req.RouteCode)
	if err != nil {
		return h.writeError(c, err)
	}

	return c.Status(http.StatusCreated).JSON(fiber.Map{
		"entry": toEntryResponse(receipt.Entry),
		"payer": fiber.Map{
			"id":          receipt.Payer.ID,
			"name":        receipt.Payer.Name,
			"new_balance": receipt.NewBalance,
		},
		"route": fiber.Map{
			"code":        receipt.RouteCode,
			"name":        receipt.RouteName,
			"fare_amount": receipt.FareAmount,
		},
		"driver": fiber.Map{
			"id":   receipt.DriverID,
			"name": receipt.DriverName,
		},
	})
}

// TopUp credits the authenticated account's wallet.
func (h *Handler) TopUp(c *fiber.Ctx) error {
	accountID, _ := c.Locals("account_id").(string)
	if accountID == "" {
		return fiber.NewError(http.StatusUnauthorized, "unauthorized")
	}

	var req topUpRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}

	receipt, err := h.service.TopUp(c.UserContext(), accountID, req.Amount, req.PaymentMethodID)
	if err != nil {
		return h.writeError(c, err)
	}

	return c.Status(http.StatusCreated).JSON(fiber.Map{
		"entry":       toEntryResponse(receipt.Entry),
		"new_balance": receipt.NewBalance,
	})
}

// Refund lets the collecting driver reverse one of their completed fares.
func (h *Handler) Refund(c *fiber.Ctx) error {
	driverID, _ := c.Locals("account_id").(string)
	if driverID == "" {
		return fiber.NewError(http.StatusUnauthorized, "unauthorized")
	}

	entryID := c.Params("entryId")
	credit, err := h.service.Refund(c.UserContext(), driverID, entryID)
	if err != nil {
		return h.writeError(c, err)
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"entry": toEntryResponse(credit)})
}

// History returns the authenticated account's transactions, newest first.
func (h *Handler) History(c *fiber.Ctx) error {
	accountID, _ := c.Locals("account_id").(string)
	if accountID == "" {
		return fiber.NewError(http.StatusUnauthorized, "unauthorized")
	}

	limit, offset := paging(c)
	entries, err := h.service.History(c.UserContext(), accountID, limit, offset)
	if err != nil {
		return h.writeError(c, err)
	}

	out := make([]entryResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, toEntryResponse(e))
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{
		"transactions": out,
		"limit":        limit,
		"offset":       offset,
	})
}

// DriverHistory returns fares the authenticated driver has collected.
func (h *Handler) DriverHistory(c *fiber.Ctx) error {
	driverID, _ := c.Locals("account_id").(string)
	if driverID == "" {
		return fiber.NewError(http.StatusUnauthorized, "unauthorized")
	}

	limit, offset := paging(c)
	entries, err := h.service.DriverHistory(c.UserContext(), driverID, limit, offset)
	if err != nil {
		return h.writeError(c, err)
	}

	out := make([]entryResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, toEntryResponse(e))
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"collections": out})
}

// DriverDailySummary totals the driver's collections for today.
func (h *Handler) DriverDailySummary(c *fiber.Ctx) error {
	driverID, _ := c.Locals("account_id").(string)
	if driverID == "" {
		return fiber.NewError(http.StatusUnauthorized, "unauthorized")
	}

	summary, err := h.service.DriverDailySummary(c.UserContext(), driverID, time.Now().UTC())
	if err != nil {
		return h.writeError(c, err)
	}

	return c.Status(http.StatusOK).JSON(fiber.Map{
		"date":            summary.Date,
		"total_collected": summary.TotalCollected,
		"transactions":    summary.Transactions,
		"routes_served":   len(summary.RouteCodes),
		"route_codes":     summary.RouteCodes,
	})
}

func (h *Handler) writeError(c *fiber.Ctx, err error) error {
	var insufficient *ledger.InsufficientBalanceError
	if errors.As(err, &insufficient) {
		return c.Status(http.StatusPaymentRequired).JSON(fiber.Map{
			"error":     "insufficient balance",
			"required":  insufficient.Required,
			"available": insufficient.Available,
		})
	}

	var storage *ledger.StorageError
	switch {
	case errors.Is(err, ErrInvalidQRCode),
		errors.Is(err, ErrRouteInactive),
		errors.Is(err, ErrInvalidRouteFare),
		errors.Is(err, ledger.ErrInvalidAmount):
		return fiber.NewError(http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrDriverNotAssigned),
		errors.Is(err, ErrRefundNotAllowed):
		return fiber.NewError(http.StatusForbidden, err.Error())
	case errors.Is(err, ErrRouteNotFound),
		errors.Is(err, ErrPaymentMethodNotFound),
		errors.Is(err, ledger.ErrEntryNotFound),
		errors.Is(err, wallet.ErrNotFound),
		errors.Is(err, identity.ErrNotFound):
		return fiber.NewError(http.StatusNotFound, err.Error())
	case errors.Is(err, ledger.ErrNotRefundable):
		return fiber.NewError(http.StatusConflict, err.Error())
	case errors.Is(err, ledger.ErrConcurrencyConflict):
		return fiber.NewError(http.StatusConflict, "wallet busy, retry the payment")
	case errors.Is(err, ledger.ErrTimeout):
		return fiber.NewError(http.StatusGatewayTimeout, err.Error())
	case errors.As(err, &storage):
		return fiber.NewError(http.StatusServiceUnavailable, "payment store unavailable, retry later")
	default:
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}
}

func paging(c *fiber.Ctx) (limit, offset int) {
	limit = 10
	if v, err := strconv.Atoi(c.Query("limit")); err == nil && v > 0 && v <= 100 {
		limit = v
	}
	if v, err := strconv.Atoi(c.Query("offset")); err == nil && v >= 0 {
		offset = v
	}
	return limit, offset
}
