package adjustment

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/rutacash/rutacash/internal/ledger"
)

// Request asks for a commission correction. Exactly one of delta_fee or
// new_fee must be present.
type Request struct {
	Seq      int32            `json:"seq"`
	DeltaFee *decimal.Decimal `json:"delta_fee,omitempty"`
	NewFee   *decimal.Decimal `json:"new_fee,omitempty"`
	Reason   string           `json:"reason"`
}

// Response describes an applied (or replayed) adjustment.
type Response struct {
	ID            string          `json:"id"`
	OrderID       string          `json:"order_id"`
	Seq           int32           `json:"seq"`
	DeltaFee      decimal.Decimal `json:"delta_fee"`
	OriginalFee   decimal.Decimal `json:"original_fee"`
	NewFee        decimal.Decimal `json:"new_fee"`
	Reason        string          `json:"reason,omitempty"`
	TransactionID *string         `json:"transaction_id,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
}

func toResponse(a ledger.Adjustment) Response {
	resp := Response{
		ID:          a.ID.String(),
		OrderID:     a.OrderID.String(),
		Seq:         a.Seq,
		DeltaFee:    a.DeltaFee,
		OriginalFee: a.OriginalFee,
		NewFee:      a.NewFee,
		Reason:      a.Reason,
		CreatedAt:   a.CreatedAt,
	}
	if a.TransactionID != nil {
		id := a.TransactionID.String()
		resp.TransactionID = &id
	}
	return resp
}
