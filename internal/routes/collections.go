package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/rutacash/rutacash/internal/collection"
)

// RegisterCollectionRoutes wires collection point and cash collection endpoints.
func RegisterCollectionRoutes(r fiber.Router, h *collection.Handler) {
	r.Post("/collection-points", h.CreatePoint)
	r.Get("/collection-points", h.ListPoints)
	r.Post("/collections", h.Start)
	r.Post("/collections/:recordId/confirm", h.Confirm)
}
