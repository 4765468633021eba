package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/transitpago/transitpago/internal/middleware"
	"github.com/transitpago/transitpago/internal/payments"
)

// RegisterDriverRoutes wires fare collection endpoints restricted to drivers.
func RegisterDriverRoutes(r fiber.Router, h *payments.Handler, scanLimiter fiber.Handler) {
	driver := r.Group("/driver", middleware.RequireDriver())
	driver.Post("/scan", scanLimiter, h.DriverScan)
	driver.Get("/collections", h.DriverHistory)
	driver.Get("/collections/summary", h.DriverDailySummary)
	driver.Post("/collections/:entryId/refund", h.Refund)
}
