package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/transitpago/transitpago/internal/payments"
	"github.com/transitpago/transitpago/internal/wallet"
)

// RegisterWalletRoutes wires wallet balance, history, top-up, and
// payment-method endpoints.
func RegisterWalletRoutes(r fiber.Router, h *wallet.Handler, p *payments.Handler) {
	r.Get("/wallet/balance", h.Balance)
	r.Get("/wallet/transactions", p.History)
	r.Post("/wallet/topup", p.TopUp)
	r.Get("/wallet/payment-methods", h.ListPaymentMethods)
	r.Post("/wallet/payment-methods", h.AddPaymentMethod)
	r.Delete("/wallet/payment-methods/:methodId", h.RemovePaymentMethod)
}
