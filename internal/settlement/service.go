// Package settlement exposes the cash trip settlement operations: recording
// the passenger's cash charge, debiting the platform commission from the
// driver's wallet, and refunding a fare.
package settlement

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/rutacash/rutacash/internal/ledger"
)

// Service delegates settlement operations to the ledger engine. It exists so
// the HTTP layer depends on one narrow collaborator per concern.
type Service struct {
	engine ledger.Engine
}

// NewService wires the settlement service.
func NewService(engine ledger.Engine) *Service {
	return &Service{engine: engine}
}

// CommissionInput requests the commission debit for a completed cash trip.
type CommissionInput struct {
	DriverID         uuid.UUID
	TripID           uuid.UUID
	CommissionAmount decimal.Decimal
	Currency         string
	GrossAmount      *decimal.Decimal
}

// ChargeInput records a passenger's cash payment for an order.
type ChargeInput struct {
	OrderID     uuid.UUID
	TripID      uuid.UUID
	PassengerID uuid.UUID
	DriverID    uuid.UUID
	GrossAmount decimal.Decimal
	Commission  decimal.Decimal
	NetAmount   decimal.Decimal
	Currency    string
}

// RefundInput requests a refund debit against the driver's wallet.
type RefundInput struct {
	OrderID  uuid.UUID
	DriverID uuid.UUID
	Amount   decimal.Decimal
	Currency string
	Reason   string
}

// ApplyCommission settles the platform commission for a cash trip. Safe to
// retry: an identical request returns the original result.
func (s *Service) ApplyCommission(ctx context.Context, input CommissionInput) (ledger.SettlementResult, error) {
	return s.engine.ApplyCashTripCommission(ctx, ledger.CommissionInput{
		DriverID:         input.DriverID,
		TripID:           input.TripID,
		CommissionAmount: input.CommissionAmount,
		Currency:         input.Currency,
		GrossAmount:      input.GrossAmount,
	})
}

// RecordCharge journals the cash charge for an order, at most once per order.
func (s *Service) RecordCharge(ctx context.Context, input ChargeInput) (ledger.Transaction, error) {
	return s.engine.CreateOrGetChargeForOrder(ctx, ledger.ChargeInput{
		OrderID:     input.OrderID,
		TripID:      input.TripID,
		PassengerID: input.PassengerID,
		DriverID:    input.DriverID,
		GrossAmount: input.GrossAmount,
		Commission:  input.Commission,
		NetAmount:   input.NetAmount,
		Currency:    input.Currency,
	})
}

// Refund debits the driver wallet to return an order's cash fare.
func (s *Service) Refund(ctx context.Context, input RefundInput) (ledger.SettlementResult, error) {
	return s.engine.CreateRefund(ctx, ledger.RefundInput{
		OrderID:  input.OrderID,
		DriverID: input.DriverID,
		Amount:   input.Amount,
		Currency: input.Currency,
		Reason:   input.Reason,
	})
}
