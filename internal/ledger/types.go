package ledger

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// WalletStatus enumerates the lifecycle states of a driver cash wallet.
type WalletStatus string

const (
	// WalletActive means the wallet accepts both debits and credits.
	WalletActive WalletStatus = "active"
	// WalletBlocked means debits are refused until the balance recovers.
	WalletBlocked WalletStatus = "blocked"
)

// TransactionType classifies why money moved.
type TransactionType string

const (
	TypeCharge             TransactionType = "CHARGE"
	TypePlatformCommission TransactionType = "PLATFORM_COMMISSION"
	TypeWalletTopup        TransactionType = "WALLET_TOPUP"
	TypeRefund             TransactionType = "REFUND"
	TypePenalty            TransactionType = "PENALTY"
	TypeBonus              TransactionType = "BONUS"
)

// TransactionStatus tracks whether a transaction has been applied to a wallet.
type TransactionStatus string

const (
	TxPending   TransactionStatus = "PENDING"
	TxProcessed TransactionStatus = "PROCESSED"
)

// CollectionStatus tracks the cash hand-off workflow. PENDING -> COMPLETED is the
// only legal transition and COMPLETED is terminal.
type CollectionStatus string

const (
	CollectionPending   CollectionStatus = "PENDING"
	CollectionCompleted CollectionStatus = "COMPLETED"
)

// OrderStatus mirrors the states of the order collaborator that matter here.
type OrderStatus string

const (
	OrderPaid      OrderStatus = "paid"
	OrderCancelled OrderStatus = "cancelled"
)

// Wallet is the per-driver cash balance record. CurrentBalance always equals the
// sum of Amount over all movements referencing the wallet; it is only ever
// mutated while the row is locked.
type Wallet struct {
	ID                   uuid.UUID
	DriverID             uuid.UUID
	CurrentBalance       decimal.Decimal
	HeldBalance          decimal.Decimal
	TotalEarnedFromTrips decimal.Decimal
	Currency             string
	Status               WalletStatus
	LastUpdated          time.Time
	CreatedAt            time.Time
}

// Blocked reports whether debits are currently refused.
func (w Wallet) Blocked() bool {
	return w.Status == WalletBlocked
}

// Transaction is the accounting record of why a balance changed. Once PROCESSED
// it is immutable; corrections are always additional records.
type Transaction struct {
	ID                uuid.UUID
	Type              TransactionType
	Status            TransactionStatus
	OrderID           *uuid.UUID
	TripID            *uuid.UUID
	FromUser          *uuid.UUID
	ToUser            *uuid.UUID
	GrossAmount       decimal.Decimal
	PlatformFeeAmount decimal.Decimal
	NetAmount         decimal.Decimal
	Currency          string
	Description       string
	AdjustmentSeq     *int32
	ProcessedAt       *time.Time
	CreatedAt         time.Time
}

// Movement is one signed balance change, 1:1 with a Transaction. Movements are
// never updated or deleted. NewBalance = PreviousBalance + Amount.
type Movement struct {
	ID              uuid.UUID
	WalletID        uuid.UUID
	TransactionID   uuid.UUID
	Amount          decimal.Decimal
	PreviousBalance decimal.Decimal
	NewBalance      decimal.Decimal
	Note            string
	CreatedAt       time.Time
}

// CollectionRecord tracks a physical cash hand-off from a driver to a collector,
// linked 1:1 to a WALLET_TOPUP transaction.
type CollectionRecord struct {
	ID                uuid.UUID
	DriverID          uuid.UUID
	CollectionPointID uuid.UUID
	CollectedByUserID uuid.UUID
	Amount            decimal.Decimal
	Currency          string
	Status            CollectionStatus
	TransactionID     uuid.UUID
	Notes             string
	CreatedAt         time.Time
	CompletedAt       *time.Time
}

// Adjustment is the idempotency witness and audit trail for a post-hoc
// commission correction, unique per (OrderID, Seq).
type Adjustment struct {
	ID            uuid.UUID
	OrderID       uuid.UUID
	Seq           int32
	DeltaFee      decimal.Decimal
	OriginalFee   decimal.Decimal
	NewFee        decimal.Decimal
	Reason        string
	TransactionID *uuid.UUID
	CreatedAt     time.Time
}

// Order is the read-only view of the order collaborator used during settlement
// and adjustment. The engine never mutates orders.
type Order struct {
	ID               uuid.UUID
	TripID           uuid.UUID
	DriverID         uuid.UUID
	PassengerID      uuid.UUID
	FareAmount       decimal.Decimal
	CommissionAmount decimal.Decimal
	Currency         string
	Status           OrderStatus
}
