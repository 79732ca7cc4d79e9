package adjustment

import (
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/rutacash/rutacash/internal/ledger"
)

// Handler exposes the commission adjustment endpoint.
type Handler struct {
	service *Service
}

// NewHandler constructs an adjustment handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// Adjust applies a commission correction to a paid order.
func (h *Handler) Adjust(c *fiber.Ctx) error {
	orderID, err := uuid.Parse(c.Params("orderId"))
	if err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid order id")
	}

	var req Request
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}

	adj, err := h.service.Adjust(c.UserContext(), Input{
		OrderID:  orderID,
		Seq:      req.Seq,
		DeltaFee: req.DeltaFee,
		NewFee:   req.NewFee,
		Reason:   req.Reason,
	})
	if err != nil {
		switch {
		case errors.Is(err, ledger.ErrOrderNotFound),
			errors.Is(err, ledger.ErrWalletNotFound):
			return fiber.NewError(http.StatusNotFound, err.Error())
		case errors.Is(err, ledger.ErrConflict):
			return fiber.NewError(http.StatusConflict, err.Error())
		case errors.Is(err, ledger.ErrWalletBlocked),
			errors.Is(err, ledger.ErrInvalidOrderStatus),
			errors.Is(err, ledger.ErrDeltaExceedsThreshold):
			return fiber.NewError(http.StatusUnprocessableEntity, err.Error())
		default:
			return fiber.NewError(http.StatusBadRequest, err.Error())
		}
	}
	return c.Status(http.StatusCreated).JSON(toResponse(adj))
}
