package settlement

import (
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/rutacash/rutacash/internal/ledger"
)

// Handler exposes HTTP endpoints for cash trip settlement.
type Handler struct {
	service *Service
}

// NewHandler constructs a settlement handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// Commission settles the platform commission for a cash trip.
func (h *Handler) Commission(c *fiber.Ctx) error {
	var req CommissionRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}

	driverID, err := uuid.Parse(req.DriverID)
	if err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid driver_id")
	}
	tripID, err := uuid.Parse(req.TripID)
	if err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid trip_id")
	}

	result, err := h.service.ApplyCommission(c.UserContext(), CommissionInput{
		DriverID:         driverID,
		TripID:           tripID,
		CommissionAmount: req.CommissionAmount,
		Currency:         req.Currency,
		GrossAmount:      req.GrossAmount,
	})
	if err != nil {
		return settlementError(err)
	}
	return c.Status(http.StatusCreated).JSON(toSettlementResponse(result))
}

// Charge journals the cash charge for an order.
func (h *Handler) Charge(c *fiber.Ctx) error {
	var req ChargeRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}

	orderID, err := uuid.Parse(req.OrderID)
	if err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid order_id")
	}
	tripID, err := uuid.Parse(req.TripID)
	if err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid trip_id")
	}
	passengerID, err := uuid.Parse(req.PassengerID)
	if err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid passenger_id")
	}
	driverID, err := uuid.Parse(req.DriverID)
	if err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid driver_id")
	}

	tx, err := h.service.RecordCharge(c.UserContext(), ChargeInput{
		OrderID:     orderID,
		TripID:      tripID,
		PassengerID: passengerID,
		DriverID:    driverID,
		GrossAmount: req.GrossAmount,
		Commission:  req.Commission,
		NetAmount:   req.NetAmount,
		Currency:    req.Currency,
	})
	if err != nil {
		return settlementError(err)
	}
	return c.Status(http.StatusCreated).JSON(toTransactionResponse(tx))
}

// Refund returns an order's cash fare by debiting the driver wallet.
func (h *Handler) Refund(c *fiber.Ctx) error {
	var req RefundRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}

	orderID, err := uuid.Parse(req.OrderID)
	if err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid order_id")
	}
	driverID, err := uuid.Parse(req.DriverID)
	if err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid driver_id")
	}

	result, err := h.service.Refund(c.UserContext(), RefundInput{
		OrderID:  orderID,
		DriverID: driverID,
		Amount:   req.Amount,
		Currency: req.Currency,
		Reason:   req.Reason,
	})
	if err != nil {
		return settlementError(err)
	}
	return c.Status(http.StatusCreated).JSON(toSettlementResponse(result))
}

func settlementError(err error) error {
	switch {
	case errors.Is(err, ledger.ErrWalletNotFound):
		return fiber.NewError(http.StatusNotFound, err.Error())
	case errors.Is(err, ledger.ErrConflict):
		return fiber.NewError(http.StatusConflict, err.Error())
	case errors.Is(err, ledger.ErrWalletBlocked):
		return fiber.NewError(http.StatusUnprocessableEntity, err.Error())
	default:
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
}
