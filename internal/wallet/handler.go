package wallet

import (
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/rutacash/rutacash/internal/ledger"
)

// Handler exposes wallet HTTP endpoints.
type Handler struct {
	service *Service
}

// NewHandler builds a wallet HTTP handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

func driverParam(c *fiber.Ctx) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Params("driverId"))
	if err != nil {
		return uuid.Nil, fiber.NewError(http.StatusBadRequest, "invalid driver id")
	}
	return id, nil
}

// Create provisions a wallet for the driver.
func (h *Handler) Create(c *fiber.Ctx) error {
	driverID, err := driverParam(c)
	if err != nil {
		return err
	}

	// The body is optional; currency defaults when omitted.
	var req CreateRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(http.StatusBadRequest, err.Error())
		}
	}

	w, err := h.service.Create(c.UserContext(), CreateInput{DriverID: driverID, Currency: req.Currency})
	if err != nil {
		if errors.Is(err, ledger.ErrWalletExists) {
			return fiber.NewError(http.StatusConflict, err.Error())
		}
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	return c.Status(http.StatusCreated).JSON(toWalletResponse(w))
}

// Get returns the driver's wallet.
func (h *Handler) Get(c *fiber.Ctx) error {
	driverID, err := driverParam(c)
	if err != nil {
		return err
	}

	w, err := h.service.Get(c.UserContext(), driverID)
	if err != nil {
		if errors.Is(err, ledger.ErrWalletNotFound) {
			return fiber.NewError(http.StatusNotFound, err.Error())
		}
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(toWalletResponse(w))
}

// Movements returns the wallet's full movement journal.
func (h *Handler) Movements(c *fiber.Ctx) error {
	driverID, err := driverParam(c)
	if err != nil {
		return err
	}

	movements, err := h.service.Movements(c.UserContext(), driverID)
	if err != nil {
		if errors.Is(err, ledger.ErrWalletNotFound) {
			return fiber.NewError(http.StatusNotFound, err.Error())
		}
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}

	out := make([]MovementResponse, 0, len(movements))
	for _, m := range movements {
		out = append(out, toMovementResponse(m))
	}
	return c.JSON(out)
}

// Block manually blocks the wallet.
func (h *Handler) Block(c *fiber.Ctx) error {
	driverID, err := driverParam(c)
	if err != nil {
		return err
	}

	var req StatusRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}

	change, err := h.service.Block(c.UserContext(), driverID, req.Reason, req.PerformedBy)
	if err != nil {
		if errors.Is(err, ledger.ErrWalletNotFound) {
			return fiber.NewError(http.StatusNotFound, err.Error())
		}
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(toStatusResponse(change))
}

// Unblock manually reactivates the wallet.
func (h *Handler) Unblock(c *fiber.Ctx) error {
	driverID, err := driverParam(c)
	if err != nil {
		return err
	}

	var req StatusRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(http.StatusBadRequest, err.Error())
		}
	}

	change, err := h.service.Unblock(c.UserContext(), driverID, req.PerformedBy)
	if err != nil {
		if errors.Is(err, ledger.ErrWalletNotFound) {
			return fiber.NewError(http.StatusNotFound, err.Error())
		}
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(toStatusResponse(change))
}
