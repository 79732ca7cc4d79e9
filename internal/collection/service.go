package collection

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/rutacash/rutacash/internal/ledger"
)

// Service coordinates the cash-collection workflow: registering collection
// points and driving driver top-ups through the ledger engine.
type Service struct {
	points Repository
	engine ledger.Engine
}

// NewService wires the collection service.
func NewService(points Repository, engine ledger.Engine) *Service {
	return &Service{points: points, engine: engine}
}

// CreatePointInput captures the data needed to register a collection point.
type CreatePointInput struct {
	Name    string
	Address string
}

// StartInput opens a pending cash collection for a driver.
type StartInput struct {
	DriverID          uuid.UUID
	CollectionPointID uuid.UUID
	CollectedByUserID uuid.UUID
	Amount            decimal.Decimal
	Currency          string
	Notes             string
}

// CreatePoint registers a new active collection point.
func (s *Service) CreatePoint(ctx context.Context, input CreatePointInput) (CollectionPoint, error) {
	if input.Name == "" {
		return CollectionPoint{}, fmt.Errorf("collection point name is required")
	}

	point := CollectionPoint{
		ID:        uuid.New(),
		Name:      input.Name,
		Address:   input.Address,
		Active:    true,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.points.Create(ctx, point); err != nil {
		return CollectionPoint{}, err
	}
	return point, nil
}

// ListPoints returns all registered collection points.
func (s *Service) ListPoints(ctx context.Context) ([]CollectionPoint, error) {
	return s.points.List(ctx)
}

// SetPointActive toggles whether a point accepts new collections.
func (s *Service) SetPointActive(ctx context.Context, pointID uuid.UUID, active bool) error {
	return s.points.SetActive(ctx, pointID, active)
}

// Start opens a pending collection: the cash changed hands physically but the
// wallet is not credited until the collector confirms.
func (s *Service) Start(ctx context.Context, input StartInput) (ledger.TopupResult, error) {
	return s.engine.CreateCashTopupPending(ctx, ledger.TopupInput{
		DriverID:          input.DriverID,
		CollectionPointID: input.CollectionPointID,
		CollectedByUserID: input.CollectedByUserID,
		Amount:            input.Amount,
		Currency:          input.Currency,
		Notes:             input.Notes,
	})
}

// Confirm completes a pending collection and credits the driver's wallet.
// Confirming an already completed record is a no-op returning the original
// outcome.
func (s *Service) Confirm(ctx context.Context, driverID, recordID uuid.UUID) (ledger.ConfirmResult, error) {
	return s.engine.ConfirmCashTopup(ctx, driverID, recordID)
}
