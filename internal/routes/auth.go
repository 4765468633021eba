package routes

import (
	"log/slog"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/transitpago/transitpago/internal/auth"
	"github.com/transitpago/transitpago/internal/identity"
	"github.com/transitpago/transitpago/internal/wallet"
)

// RegisterAuthRoutes wires registration and login, auto-provisioning a wallet
// for new accounts.
func RegisterAuthRoutes(r fiber.Router, ids *identity.Service, tokens *auth.Service, wallets *wallet.Service, logger *slog.Logger) {
	r.Post("/auth/register", func(c *fiber.Ctx) error {
		var req struct {
			Name          string `json:"name"`
			Email         string `json:"email"`
			Password      string `json:"password"`
			Role          string `json:"role"`
			LicenseNumber string `json:"license_number"`
		}
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(http.StatusBadRequest, err.Error())
		}
		account, err := ids.Register(c.UserContext(), identity.Credentials{
			Name:          req.Name,
			Email:         req.Email,
			Password:      req.Password,
			Role:          req.Role,
			LicenseNumber: req.LicenseNumber,
		})
		if err != nil {
			return fiber.NewError(http.StatusBadRequest, err.Error())
		}
		if _, err := wallets.Provision(c.UserContext(), account.ID); err != nil {
			logger.Warn("wallet provisioning failed", slog.String("account_id", account.ID), slog.Any("error", err))
		}
		return c.Status(http.StatusCreated).JSON(fiber.Map{
			"account_id": account.ID,
			"name":       account.Name,
			"email":      account.Email,
			"role":       account.Role,
			"qr_token":   account.QRToken,
		})
	})

	r.Post("/auth/login", func(c *fiber.Ctx) error {
		var req struct {
			Email    string `json:"email"`
			Password string `json:"password"`
		}
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(http.StatusBadRequest, err.Error())
		}
		account, err := ids.Authenticate(c.UserContext(), identity.Credentials{Email: req.Email, Password: req.Password})
		if err != nil {
			return fiber.NewError(http.StatusUnauthorized, err.Error())
		}
		token, err := tokens.Issue(account)
		if err != nil {
			return fiber.NewError(http.StatusInternalServerError, err.Error())
		}
		return c.Status(http.StatusOK).JSON(fiber.Map{
			"account_id":   account.ID,
			"role":         account.Role,
			"access_token": token.AccessToken,
			"expires_in":   token.ExpiresIn,
		})
	})
}
