package collection

import (
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/rutacash/rutacash/internal/ledger"
)

// Handler exposes HTTP endpoints for collection points and cash collections.
type Handler struct {
	service *Service
}

// NewHandler constructs a collection handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// CreatePoint registers a collection point.
func (h *Handler) CreatePoint(c *fiber.Ctx) error {
	var req CreatePointRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}

	point, err := h.service.CreatePoint(c.UserContext(), CreatePointInput{
		Name:    req.Name,
		Address: req.Address,
	})
	if err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	return c.Status(http.StatusCreated).JSON(toPointResponse(point))
}

// ListPoints returns every registered collection point.
func (h *Handler) ListPoints(c *fiber.Ctx) error {
	points, err := h.service.ListPoints(c.UserContext())
	if err != nil {
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}

	out := make([]PointResponse, 0, len(points))
	for _, p := range points {
		out = append(out, toPointResponse(p))
	}
	return c.JSON(out)
}

// Start opens a pending cash collection.
func (h *Handler) Start(c *fiber.Ctx) error {
	var req StartRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}

	driverID, err := uuid.Parse(req.DriverID)
	if err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid driver_id")
	}
	pointID, err := uuid.Parse(req.CollectionPointID)
	if err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid collection_point_id")
	}
	collectorID, err := uuid.Parse(req.CollectedBy)
	if err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid collected_by")
	}

	result, err := h.service.Start(c.UserContext(), StartInput{
		DriverID:          driverID,
		CollectionPointID: pointID,
		CollectedByUserID: collectorID,
		Amount:            req.Amount,
		Currency:          req.Currency,
		Notes:             req.Notes,
	})
	if err != nil {
		switch {
		case errors.Is(err, ledger.ErrWalletNotFound),
			errors.Is(err, ledger.ErrCollectionPointNotFound):
			return fiber.NewError(http.StatusNotFound, err.Error())
		case errors.Is(err, ledger.ErrCollectionPointInactive):
			return fiber.NewError(http.StatusConflict, err.Error())
		default:
			return fiber.NewError(http.StatusBadRequest, err.Error())
		}
	}
	return c.Status(http.StatusCreated).JSON(toRecordResponse(result.Record))
}

// Confirm completes a pending collection and credits the wallet.
func (h *Handler) Confirm(c *fiber.Ctx) error {
	recordID, err := uuid.Parse(c.Params("recordId"))
	if err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid record id")
	}

	var req ConfirmRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	driverID, err := uuid.Parse(req.DriverID)
	if err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid driver_id")
	}

	result, err := h.service.Confirm(c.UserContext(), driverID, recordID)
	if err != nil {
		var inconsistency *ledger.InconsistencyError
		switch {
		case errors.Is(err, ledger.ErrRecordNotFound),
			errors.Is(err, ledger.ErrWalletNotFound):
			return fiber.NewError(http.StatusNotFound, err.Error())
		case errors.As(err, &inconsistency):
			return fiber.NewError(http.StatusInternalServerError, err.Error())
		default:
			return fiber.NewError(http.StatusBadRequest, err.Error())
		}
	}

	return c.JSON(ConfirmResponse{
		Record:        toRecordResponse(result.Record),
		WalletBalance: result.Wallet.CurrentBalance,
		WalletStatus:  string(result.Wallet.Status),
	})
}
