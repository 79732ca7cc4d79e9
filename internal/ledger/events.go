package ledger

import (
	"github.com/rutacash/rutacash/internal/outbox"
)

// Topics carried by the outbox. Downstream read models and notification
// services subscribe to these.
const (
	TopicWalletUpdated        = "wallet.updated"
	TopicTransactionProcessed = "transaction.processed"
	TopicCollectionCompleted  = "collection.completed"
	TopicCommissionAdjusted   = "commission.adjusted"
)

func walletUpdatedEvent(w Wallet) outbox.Event {
	return outbox.NewEvent(TopicWalletUpdated, map[string]any{
		"driver_id": w.DriverID.String(),
		"wallet_id": w.ID.String(),
		"balance":   w.CurrentBalance.StringFixed(2),
		"currency":  w.Currency,
		"status":    string(w.Status),
	})
}

func walletStatusChangedEvent(w Wallet, reason, performedBy string) outbox.Event {
	payload := map[string]any{
		"driver_id": w.DriverID.String(),
		"wallet_id": w.ID.String(),
		"balance":   w.CurrentBalance.StringFixed(2),
		"currency":  w.Currency,
		"status":    string(w.Status),
	}
	if reason != "" {
		payload["reason"] = reason
	}
	if performedBy != "" {
		payload["performed_by"] = performedBy
	}
	return outbox.NewEvent(TopicWalletUpdated, payload)
}

func transactionProcessedEvent(t Transaction) outbox.Event {
	payload := map[string]any{
		"transaction_id": t.ID.String(),
		"type":           string(t.Type),
		"net_amount":     t.NetAmount.StringFixed(2),
		"currency":       t.Currency,
	}
	if t.OrderID != nil {
		payload["order_id"] = t.OrderID.String()
	}
	if t.TripID != nil {
		payload["trip_id"] = t.TripID.String()
	}
	if t.FromUser != nil {
		payload["driver_id"] = t.FromUser.String()
	}
	return outbox.NewEvent(TopicTransactionProcessed, payload)
}

func collectionCompletedEvent(rec CollectionRecord) outbox.Event {
	return outbox.NewEvent(TopicCollectionCompleted, map[string]any{
		"record_id":           rec.ID.String(),
		"driver_id":           rec.DriverID.String(),
		"collection_point_id": rec.CollectionPointID.String(),
		"amount":              rec.Amount.StringFixed(2),
		"currency":            rec.Currency,
	})
}

func commissionAdjustedEvent(adj Adjustment) outbox.Event {
	return outbox.NewEvent(TopicCommissionAdjusted, map[string]any{
		"order_id":     adj.OrderID.String(),
		"seq":          adj.Seq,
		"delta_fee":    adj.DeltaFee.StringFixed(2),
		"original_fee": adj.OriginalFee.StringFixed(2),
		"new_fee":      adj.NewFee.StringFixed(2),
	})
}
