package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/transitpago/transitpago/internal/payments"
)

// RegisterPaymentRoutes wires rider-facing payment endpoints.
func RegisterPaymentRoutes(r fiber.Router, h *payments.Handler, scanLimiter fiber.Handler) {
	r.Post("/payments/scan", scanLimiter, h.SelfServiceScan)
}
