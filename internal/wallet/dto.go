package wallet

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/rutacash/rutacash/internal/ledger"
)

// CreateRequest provisions a wallet for a driver.
type CreateRequest struct {
	Currency string `json:"currency"`
}

// StatusRequest carries the audit fields of a manual block or unblock.
type StatusRequest struct {
	Reason      string `json:"reason"`
	PerformedBy string `json:"performed_by"`
}

// WalletResponse describes a driver wallet.
type WalletResponse struct {
	ID             string          `json:"id"`
	DriverID       string          `json:"driver_id"`
	CurrentBalance decimal.Decimal `json:"current_balance"`
	HeldBalance    decimal.Decimal `json:"held_balance"`
	TotalEarned    decimal.Decimal `json:"total_earned_from_trips"`
	Currency       string          `json:"currency"`
	Status         string          `json:"status"`
	LastUpdated    time.Time       `json:"last_updated"`
	CreatedAt      time.Time       `json:"created_at"`
}

// MovementResponse describes one journal entry.
type MovementResponse struct {
	ID              string          `json:"id"`
	TransactionID   string          `json:"transaction_id"`
	Amount          decimal.Decimal `json:"amount"`
	PreviousBalance decimal.Decimal `json:"previous_balance"`
	NewBalance      decimal.Decimal `json:"new_balance"`
	Note            string          `json:"note,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
}

// StatusResponse reports the outcome of a manual block or unblock.
type StatusResponse struct {
	DriverID       string `json:"driver_id"`
	PreviousStatus string `json:"previous_status"`
	Status         string `json:"status"`
	Changed        bool   `json:"changed"`
}

func toWalletResponse(w ledger.Wallet) WalletResponse {
	return WalletResponse{
		ID:             w.ID.String(),
		DriverID:       w.DriverID.String(),
		CurrentBalance: w.CurrentBalance,
		HeldBalance:    w.HeldBalance,
		TotalEarned:    w.TotalEarnedFromTrips,
		Currency:       w.Currency,
		Status:         string(w.Status),
		LastUpdated:    w.LastUpdated,
		CreatedAt:      w.CreatedAt,
	}
}

func toMovementResponse(m ledger.Movement) MovementResponse {
	return MovementResponse{
		ID:              m.ID.String(),
		TransactionID:   m.TransactionID.String(),
		Amount:          m.Amount,
		PreviousBalance: m.PreviousBalance,
		NewBalance:      m.NewBalance,
		Note:            m.Note,
		CreatedAt:       m.CreatedAt,
	}
}

func toStatusResponse(change ledger.StatusChange) StatusResponse {
	return StatusResponse{
		DriverID:       change.DriverID.String(),
		PreviousStatus: string(change.PreviousStatus),
		Status:         string(change.Status),
		Changed:        change.Changed,
	}
}
