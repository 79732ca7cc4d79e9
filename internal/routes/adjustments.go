package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/rutacash/rutacash/internal/adjustment"
)

// RegisterAdjustmentRoutes wires the commission adjustment endpoint.
func RegisterAdjustmentRoutes(r fiber.Router, h *adjustment.Handler) {
	r.Post("/orders/:orderId/commission-adjustments", h.Adjust)
}
