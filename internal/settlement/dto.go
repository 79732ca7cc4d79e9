package settlement

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/rutacash/rutacash/internal/ledger"
)

// CommissionRequest settles the platform commission for a cash trip.
type CommissionRequest struct {
	DriverID         string           `json:"driver_id"`
	TripID           string           `json:"trip_id"`
	CommissionAmount decimal.Decimal  `json:"commission_amount"`
	Currency         string           `json:"currency"`
	GrossAmount      *decimal.Decimal `json:"gross_amount,omitempty"`
}

// ChargeRequest records a passenger's cash payment for an order.
type ChargeRequest struct {
	OrderID     string          `json:"order_id"`
	TripID      string          `json:"trip_id"`
	PassengerID string          `json:"passenger_id"`
	DriverID    string          `json:"driver_id"`
	GrossAmount decimal.Decimal `json:"gross_amount"`
	Commission  decimal.Decimal `json:"commission"`
	NetAmount   decimal.Decimal `json:"net_amount"`
	Currency    string          `json:"currency"`
}

// RefundRequest returns an order's cash fare to the passenger.
type RefundRequest struct {
	OrderID  string          `json:"order_id"`
	DriverID string          `json:"driver_id"`
	Amount   decimal.Decimal `json:"amount"`
	Currency string          `json:"currency"`
	Reason   string          `json:"reason,omitempty"`
}

// TransactionResponse describes a journal transaction.
type TransactionResponse struct {
	ID          string          `json:"id"`
	Type        string          `json:"type"`
	Status      string          `json:"status"`
	GrossAmount decimal.Decimal `json:"gross_amount"`
	PlatformFee decimal.Decimal `json:"platform_fee_amount"`
	NetAmount   decimal.Decimal `json:"net_amount"`
	Currency    string          `json:"currency"`
	Description string          `json:"description"`
	ProcessedAt *time.Time      `json:"processed_at,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
}

// SettlementResponse carries the transaction plus the resulting wallet state.
type SettlementResponse struct {
	Transaction   TransactionResponse `json:"transaction"`
	WalletBalance decimal.Decimal     `json:"wallet_balance"`
	WalletStatus  string              `json:"wallet_status"`
}

func toTransactionResponse(t ledger.Transaction) TransactionResponse {
	return TransactionResponse{
		ID:          t.ID.String(),
		Type:        string(t.Type),
		Status:      string(t.Status),
		GrossAmount: t.GrossAmount,
		PlatformFee: t.PlatformFeeAmount,
		NetAmount:   t.NetAmount,
		Currency:    t.Currency,
		Description: t.Description,
		ProcessedAt: t.ProcessedAt,
		CreatedAt:   t.CreatedAt,
	}
}

func toSettlementResponse(res ledger.SettlementResult) SettlementResponse {
	return SettlementResponse{
		Transaction:   toTransactionResponse(res.Transaction),
		WalletBalance: res.Wallet.CurrentBalance,
		WalletStatus:  string(res.Wallet.Status),
	}
}
