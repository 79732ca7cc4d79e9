package collection

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/rutacash/rutacash/internal/ledger"
)

// CreatePointRequest registers a collection point.
type CreatePointRequest struct {
	Name    string `json:"name"`
	Address string `json:"address"`
}

// PointResponse describes a collection point.
type PointResponse struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Address   string    `json:"address"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}

// StartRequest opens a pending cash collection for a driver.
type StartRequest struct {
	DriverID          string          `json:"driver_id"`
	CollectionPointID string          `json:"collection_point_id"`
	CollectedBy       string          `json:"collected_by"`
	Amount            decimal.Decimal `json:"amount"`
	Currency          string          `json:"currency"`
	Notes             string          `json:"notes"`
}

// ConfirmRequest identifies the driver whose pending record is confirmed.
type ConfirmRequest struct {
	DriverID string `json:"driver_id"`
}

// RecordResponse describes a cash collection record.
type RecordResponse struct {
	ID                string          `json:"id"`
	DriverID          string          `json:"driver_id"`
	CollectionPointID string          `json:"collection_point_id"`
	CollectedBy       string          `json:"collected_by"`
	Amount            decimal.Decimal `json:"amount"`
	Currency          string          `json:"currency"`
	Status            string          `json:"status"`
	TransactionID     string          `json:"transaction_id"`
	Notes             string          `json:"notes,omitempty"`
	CreatedAt         time.Time       `json:"created_at"`
	CompletedAt       *time.Time      `json:"completed_at,omitempty"`
}

// ConfirmResponse carries the confirmed record plus the resulting wallet state.
type ConfirmResponse struct {
	Record        RecordResponse  `json:"record"`
	WalletBalance decimal.Decimal `json:"wallet_balance"`
	WalletStatus  string          `json:"wallet_status"`
}

func toPointResponse(p CollectionPoint) PointResponse {
	return PointResponse{
		ID:        p.ID.String(),
		Name:      p.Name,
		Address:   p.Address,
		Active:    p.Active,
		CreatedAt: p.CreatedAt,
	}
}

func toRecordResponse(r ledger.CollectionRecord) RecordResponse {
	return RecordResponse{
		ID:                r.ID.String(),
		DriverID:          r.DriverID.String(),
		CollectionPointID: r.CollectionPointID.String(),
		CollectedBy:       r.CollectedByUserID.String(),
		Amount:            r.Amount,
		Currency:          r.Currency,
		Status:            string(r.Status),
		TransactionID:     r.TransactionID.String(),
		Notes:             r.Notes,
		CreatedAt:         r.CreatedAt,
		CompletedAt:       r.CompletedAt,
	}
}
