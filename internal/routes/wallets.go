package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/rutacash/rutacash/internal/wallet"
)

// RegisterWalletRoutes wires driver wallet endpoints.
func RegisterWalletRoutes(r fiber.Router, h *wallet.Handler) {
	r.Post("/drivers/:driverId/wallet", h.Create)
	r.Get("/drivers/:driverId/wallet", h.Get)
	r.Get("/drivers/:driverId/wallet/movements", h.Movements)
	r.Post("/drivers/:driverId/wallet/block", h.Block)
	r.Post("/drivers/:driverId/wallet/unblock", h.Unblock)
}
