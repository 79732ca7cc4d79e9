package ledger

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ValidateAmount accepts strictly positive amounts with at most two decimal
// places.
func ValidateAmount(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return ErrInvalidAmount
	}
	if !amount.Equal(amount.Round(2)) {
		return ErrInvalidAmount
	}
	return nil
}

// ValidateCurrency rejects any operation whose currency differs from the
// wallet's. There is no conversion path.
func ValidateCurrency(w Wallet, currency string) error {
	if w.Currency != currency {
		return ErrCurrencyMismatch
	}
	return nil
}

// NextStatus applies the automatic block/unblock rule to a balance move:
// a debit taking a non-negative balance below zero blocks the wallet, and a
// credit restoring a blocked wallet to zero or above unblocks it.
func NextStatus(current WalletStatus, previous, next decimal.Decimal) WalletStatus {
	switch {
	case next.IsNegative() && !previous.IsNegative():
		return WalletBlocked
	case current == WalletBlocked && !next.IsNegative():
		return WalletActive
	default:
		return current
	}
}

// BuildMovement produces the movement row and updated wallet snapshot for a
// signed amount against an already-locked wallet. The caller is responsible
// for currency and blocked-state checks; BuildMovement only does the ledger
// arithmetic so that `new = previous + amount` holds by construction.
func BuildMovement(w Wallet, transactionID uuid.UUID, amount decimal.Decimal, note string) (Wallet, Movement) {
	now := time.Now().UTC()
	previous := w.CurrentBalance
	next := previous.Add(amount)

	m := Movement{
		ID:              uuid.New(),
		WalletID:        w.ID,
		TransactionID:   transactionID,
		Amount:          amount,
		PreviousBalance: previous,
		NewBalance:      next,
		Note:            note,
		CreatedAt:       now,
	}

	w.CurrentBalance = next
	w.Status = NextStatus(w.Status, previous, next)
	w.LastUpdated = now
	return w, m
}

// sameAmount compares money values ignoring exponent representation.
func sameAmount(a, b decimal.Decimal) bool {
	return a.Equal(b)
}
