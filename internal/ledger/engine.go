package ledger

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CollectionPointDirectory is the collaborator that knows whether a physical
// collection point can currently accept cash. Implementations must return
// ErrCollectionPointNotFound for unknown points.
type CollectionPointDirectory interface {
	IsActive(ctx context.Context, pointID uuid.UUID) (bool, error)
}

// CommissionInput requests the platform commission debit for a completed cash
// trip. GrossAmount is optional; when present it accumulates the driver's
// lifetime cash earnings.
type CommissionInput struct {
	DriverID         uuid.UUID
	TripID           uuid.UUID
	CommissionAmount decimal.Decimal
	Currency         string
	GrossAmount      *decimal.Decimal
}

// ChargeInput records that a passenger paid an order in cash. It produces a
// journal record only; the commission movement is a separate operation.
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

// RefundInput requests the debit that returns an order's cash fare to the
// passenger. At most one refund is recorded per order.
type RefundInput struct {
	OrderID  uuid.UUID
	DriverID uuid.UUID
	Amount   decimal.Decimal
	Currency string
	Reason   string
}

// TopupInput opens a pending cash hand-off at a collection point.
type TopupInput struct {
	DriverID          uuid.UUID
	CollectionPointID uuid.UUID
	CollectedByUserID uuid.UUID
	Amount            decimal.Decimal
	Currency          string
	Notes             string
}

// AdjustmentInput requests a post-hoc commission correction for an order.
// Exactly one of DeltaFee or NewFee must be provided. MaxAbsDelta, when set,
// bounds the absolute correction the caller is willing to apply.
type AdjustmentInput struct {
	OrderID     uuid.UUID
	Seq         int32
	DeltaFee    *decimal.Decimal
	NewFee      *decimal.Decimal
	Reason      string
	MaxAbsDelta *decimal.Decimal
}

// SettlementResult is returned by operations that move wallet money.
type SettlementResult struct {
	Wallet      Wallet
	Movement    Movement
	Transaction Transaction
}

// TopupResult describes a freshly opened (or replayed) pending top-up.
type TopupResult struct {
	Record      CollectionRecord
	Transaction Transaction
}

// ConfirmResult describes a confirmed cash top-up.
type ConfirmResult struct {
	Wallet   Wallet
	Movement Movement
	Record   CollectionRecord
}

// StatusChange reports the outcome of a manual block/unblock. Changed is false
// when the wallet was already in the target status; that is not an error.
type StatusChange struct {
	DriverID       uuid.UUID
	PreviousStatus WalletStatus
	Status         WalletStatus
	Changed        bool
}

// Engine is the ledger contract implemented by the Postgres and in-memory
// backends. Every mutating call is atomic and idempotent as described on the
// individual methods; domain events reach the outbox only when the mutation
// commits.
type Engine interface {
	// CreateWallet provisions the wallet once, on driver onboarding.
	CreateWallet(ctx context.Context, driverID uuid.UUID, currency string) (Wallet, error)

	// GetWallet returns the wallet for a driver.
	GetWallet(ctx context.Context, driverID uuid.UUID) (Wallet, error)

	// MovementsForWallet returns the full movement journal of a driver's
	// wallet, oldest first.
	MovementsForWallet(ctx context.Context, driverID uuid.UUID) ([]Movement, error)

	// ApplyCashTripCommission debits the platform commission for a cash trip.
	// Replaying an identical request returns the original result; replaying
	// with a different amount or currency fails with ErrConflict.
	ApplyCashTripCommission(ctx context.Context, in CommissionInput) (SettlementResult, error)

	// CreateOrGetChargeForOrder records the cash charge for an order, at most
	// once per order.
	CreateOrGetChargeForOrder(ctx context.Context, in ChargeInput) (Transaction, error)

	// CreateRefund debits the driver wallet to return an order's fare, at
	// most once per order.
	CreateRefund(ctx context.Context, in RefundInput) (SettlementResult, error)

	// CreateCashTopupPending opens the cash-collection workflow: a PENDING
	// WALLET_TOPUP transaction linked 1:1 to a PENDING collection record.
	CreateCashTopupPending(ctx context.Context, in TopupInput) (TopupResult, error)

	// ConfirmCashTopup credits the wallet and completes the record. Confirming
	// a COMPLETED record returns the existing movement unchanged.
	ConfirmCashTopup(ctx context.Context, driverID, recordID uuid.UUID) (ConfirmResult, error)

	// BlockWallet and UnblockWallet perform the manual, idempotent status
	// transitions, recording who asked and why.
	BlockWallet(ctx context.Context, driverID uuid.UUID, reason, performedBy string) (StatusChange, error)
	UnblockWallet(ctx context.Context, driverID uuid.UUID, performedBy string) (StatusChange, error)

	// AdjustCommission applies a post-hoc commission correction for a paid
	// order, idempotent per (order, seq).
	AdjustCommission(ctx context.Context, in AdjustmentInput) (Adjustment, error)
}
