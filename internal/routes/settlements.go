package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/rutacash/rutacash/internal/settlement"
)

// RegisterSettlementRoutes wires cash trip settlement endpoints.
func RegisterSettlementRoutes(r fiber.Router, h *settlement.Handler) {
	r.Post("/settlement/commissions", h.Commission)
	r.Post("/settlement/charges", h.Charge)
	r.Post("/settlement/refunds", h.Refund)
}
