// Package ledger implements the cash-settlement engine: per-driver cash
// wallets, an append-only movement journal, the transaction journal that
// explains every movement, the cash-collection workflow and post-hoc
// commission adjustments. All mutating operations are idempotent at the
// data-model level and run inside a single database transaction.
package ledger

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

var (
	// ErrWalletNotFound occurs when no wallet exists for the requested driver.
	ErrWalletNotFound = errors.New("wallet not found")

	// ErrOrderNotFound occurs when the referenced order does not exist.
	ErrOrderNotFound = errors.New("order not found")

	// ErrRecordNotFound occurs when a cash collection record cannot be located.
	ErrRecordNotFound = errors.New("collection record not found")

	// ErrCollectionPointNotFound occurs when the referenced collection point
	// is unknown to the directory.
	ErrCollectionPointNotFound = errors.New("collection point not found")

	// ErrCollectionPointInactive occurs when a top-up targets a collection
	// point that no longer accepts cash.
	ErrCollectionPointInactive = errors.New("collection point inactive")

	// ErrWalletBlocked indicates a debit was attempted on a blocked wallet.
	// Credits are always permitted.
	ErrWalletBlocked = errors.New("wallet blocked")

	// ErrCurrencyMismatch indicates the operation currency differs from the
	// wallet currency. The engine never converts.
	ErrCurrencyMismatch = errors.New("currency mismatch")

	// ErrInvalidAmount indicates a non-positive amount or more than two
	// decimal places.
	ErrInvalidAmount = errors.New("invalid amount")

	// ErrConflict indicates an idempotency-key collision with a differing
	// payload. The stored record is never overwritten.
	ErrConflict = errors.New("conflicting duplicate request")

	// ErrInvalidOrderStatus indicates the order is not in a state that
	// permits the requested operation.
	ErrInvalidOrderStatus = errors.New("invalid order status")

	// ErrDeltaExceedsThreshold indicates a commission adjustment larger than
	// the caller-supplied maximum.
	ErrDeltaExceedsThreshold = errors.New("adjustment delta exceeds threshold")

	// ErrWalletExists occurs when onboarding runs twice for the same driver.
	ErrWalletExists = errors.New("wallet already exists")

	// ErrInvalidCurrency indicates a malformed currency code.
	ErrInvalidCurrency = errors.New("invalid currency code")

	// ErrInvalidAdjustment indicates an adjustment request carrying neither a
	// delta nor a target fee.
	ErrInvalidAdjustment = errors.New("adjustment needs delta_fee or new_fee")
)

// InconsistencyError reports an invariant violation detected at read time,
// e.g. a COMPLETED collection record with no movement. It is surfaced, never
// silently repaired.
type InconsistencyError struct {
	Entity string
	ID     uuid.UUID
	Detail string
}

func (e *InconsistencyError) Error() string {
	return fmt.Sprintf("data inconsistency on %s %s: %s", e.Entity, e.ID, e.Detail)
}
