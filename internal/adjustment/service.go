// Package adjustment exposes post-hoc commission corrections for paid orders.
package adjustment

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/rutacash/rutacash/internal/ledger"
)

// Service delegates commission adjustments to the ledger engine, applying the
// operator-configured delta ceiling.
type Service struct {
	engine      ledger.Engine
	maxAbsDelta *decimal.Decimal
}

// NewService wires the adjustment service. maxAbsDelta, when non-nil, caps the
// absolute correction any single adjustment may apply.
func NewService(engine ledger.Engine, maxAbsDelta *decimal.Decimal) *Service {
	return &Service{engine: engine, maxAbsDelta: maxAbsDelta}
}

// Input requests a commission correction for an order. Exactly one of
// DeltaFee or NewFee must be set.
type Input struct {
	OrderID  uuid.UUID
	Seq      int32
	DeltaFee *decimal.Decimal
	NewFee   *decimal.Decimal
	Reason   string
}

// Adjust applies the correction, idempotent per (order, seq).
func (s *Service) Adjust(ctx context.Context, input Input) (ledger.Adjustment, error) {
	return s.engine.AdjustCommission(ctx, ledger.AdjustmentInput{
		OrderID:     input.OrderID,
		Seq:         input.Seq,
		DeltaFee:    input.DeltaFee,
		NewFee:      input.NewFee,
		Reason:      input.Reason,
		MaxAbsDelta: s.maxAbsDelta,
	})
}
