package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/rutacash/rutacash/internal/outbox"
)

const adjustmentColumns = `id, order_id, seq, delta_fee, original_fee, new_fee,
    reason, transaction_id, created_at`

func scanAdjustment(row pgx.Row) (Adjustment, error) {
	var a Adjustment
	err := row.Scan(&a.ID, &a.OrderID, &a.Seq, &a.DeltaFee, &a.OriginalFee,
		&a.NewFee, &a.Reason, &a.TransactionID, &a.CreatedAt)
	return a, err
}

// AdjustCommission runs at SERIALIZABLE isolation because the original fee is
// derived from other transaction rows and two concurrent adjustments must not
// both compute from the same stale base. Serialization failures and duplicate
// inserts are retried; the witness row makes the retry converge.
func (e *PostgresEngine) AdjustCommission(ctx context.Context, in AdjustmentInput) (Adjustment, error) {
	if in.DeltaFee == nil && in.NewFee == nil {
		return Adjustment{}, ErrInvalidAdjustment
	}

	var (
		adj Adjustment
		err error
	)
	for attempt := 0; attempt < adjustRetries; attempt++ {
		adj, err = e.adjustCommissionOnce(ctx, in)
		if pgCode(err, serializationFailure) || pgCode(err, uniqueViolation) {
			e.logger.Info("commission adjustment retried",
				"order_id", in.OrderID, "seq", in.Seq, "attempt", attempt+1)
			continue
		}
		break
	}
	return adj, err
}

func (e *PostgresEngine) adjustCommissionOnce(ctx context.Context, in AdjustmentInput) (Adjustment, error) {
	var res Adjustment
	err := e.withTx(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable}, func(tx pgx.Tx) ([]outbox.Event, error) {
		// Fixed lock order: the order row before the wallet row.
		order, err := lockOrder(ctx, tx, in.OrderID)
		if err != nil {
			return nil, err
		}
		if order.Status != OrderPaid {
			return nil, ErrInvalidOrderStatus
		}

		existing, err := scanAdjustment(tx.QueryRow(ctx, `SELECT `+adjustmentColumns+`
            FROM commission_adjustments WHERE order_id = $1 AND seq = $2`,
			in.OrderID, in.Seq))
		if err == nil {
			res = existing
			return nil, nil
		}
		if !errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}

		originalFee, err := originalFeeForOrder(ctx, tx, order)
		if err != nil {
			return nil, err
		}

		var delta decimal.Decimal
		if in.DeltaFee != nil {
			delta = *in.DeltaFee
		} else {
			delta = in.NewFee.Sub(originalFee)
		}
		if !delta.Equal(delta.Round(2)) {
			return nil, ErrInvalidAmount
		}
		if in.MaxAbsDelta != nil && delta.Abs().GreaterThan(*in.MaxAbsDelta) {
			return nil, ErrDeltaExceedsThreshold
		}

		now := time.Now().UTC()
		adj := Adjustment{
			ID:          uuid.New(),
			OrderID:     in.OrderID,
			Seq:         in.Seq,
			DeltaFee:    delta,
			OriginalFee: originalFee,
			NewFee:      originalFee.Add(delta),
			Reason:      in.Reason,
			CreatedAt:   now,
		}

		if delta.IsZero() {
			// Recorded anyway: the witness is what makes an identical retry
			// idempotent.
			if err := insertAdjustment(ctx, tx, adj); err != nil {
				return nil, err
			}
			res = adj
			return []outbox.Event{commissionAdjustedEvent(adj)}, nil
		}

		// Recovery probe: a prior attempt may have committed transaction and
		// movement but crashed before writing the witness row.
		t, found, err := adjustmentTransaction(ctx, tx, in.OrderID, in.Seq)
		if err != nil {
			return nil, err
		}
		if found && !sameAmount(t.NetAmount, delta.Abs()) {
			return nil, ErrConflict
		}

		w, err := lockWallet(ctx, tx, order.DriverID)
		if err != nil {
			return nil, err
		}
		if err := ValidateCurrency(w, order.Currency); err != nil {
			return nil, err
		}

		if !found {
			if w.Blocked() {
				return nil, ErrWalletBlocked
			}
			txType := TypePenalty
			if delta.IsNegative() {
				txType = TypeBonus
			}
			orderID, seq, driverID := in.OrderID, in.Seq, order.DriverID
			tripID := order.TripID
			t = Transaction{
				ID:            uuid.New(),
				Type:          txType,
				Status:        TxProcessed,
				OrderID:       &orderID,
				TripID:        &tripID,
				FromUser:      &driverID,
				GrossAmount:   delta.Abs(),
				NetAmount:     delta.Abs(),
				Currency:      order.Currency,
				Description:   "commission adjustment",
				AdjustmentSeq: &seq,
				ProcessedAt:   &now,
				CreatedAt:     now,
			}
			if err := insertTransaction(ctx, tx, t); err != nil {
				return nil, err
			}
		}

		updated := w
		var events []outbox.Event
		m, hasMovement, err := movementForTransaction(ctx, tx, t.ID)
		if err != nil {
			return nil, err
		}
		if !hasMovement {
			// Penalty debits the wallet, bonus credits it.
			updated, m = BuildMovement(w, t.ID, delta.Neg(), "commission adjustment")
			if err := insertMovement(ctx, tx, m); err != nil {
				return nil, err
			}
			if err := saveWallet(ctx, tx, updated); err != nil {
				return nil, err
			}
			events = append(events, walletUpdatedEvent(updated), transactionProcessedEvent(t))
		}

		// The witness row is written last so any earlier crash is recoverable
		// by replaying this operation.
		txID := t.ID
		adj.TransactionID = &txID
		if err := insertAdjustment(ctx, tx, adj); err != nil {
			return nil, err
		}

		res = adj
		return append(events, commissionAdjustedEvent(adj)), nil
	})
	if err != nil {
		return Adjustment{}, err
	}
	return res, nil
}

func lockOrder(ctx context.Context, tx pgx.Tx, orderID uuid.UUID) (Order, error) {
	var o Order
	err := tx.QueryRow(ctx, `SELECT id, trip_id, driver_id, passenger_id,
        fare_amount, commission_amount, currency, status
        FROM orders WHERE id = $1 FOR UPDATE`, orderID).
		Scan(&o.ID, &o.TripID, &o.DriverID, &o.PassengerID, &o.FareAmount,
			&o.CommissionAmount, &o.Currency, &o.Status)
	if errors.Is(err, pgx.ErrNoRows) {
		return Order{}, ErrOrderNotFound
	}
	return o, err
}

func adjustmentTransaction(ctx context.Context, tx pgx.Tx, orderID uuid.UUID, seq int32) (Transaction, bool, error) {
	t, err := scanTransaction(tx.QueryRow(ctx, `SELECT `+transactionColumns+`
        FROM transactions WHERE order_id = $1 AND adjustment_seq = $2`,
		orderID, seq))
	if errors.Is(err, pgx.ErrNoRows) {
		return Transaction{}, false, nil
	}
	if err != nil {
		return Transaction{}, false, err
	}
	return t, true, nil
}

func insertAdjustment(ctx context.Context, tx pgx.Tx, a Adjustment) error {
	_, err := tx.Exec(ctx, `INSERT INTO commission_adjustments
        (id, order_id, seq, delta_fee, original_fee, new_fee, reason,
         transaction_id, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		a.ID, a.OrderID, a.Seq, a.DeltaFee, a.OriginalFee, a.NewFee, a.Reason,
		a.TransactionID, a.CreatedAt)
	return err
}

// originalFeeForOrder derives the fee currently on record: the charge's
// platform fee (falling back to the trip commission transaction, then to the
// order itself) plus every previously applied adjustment delta.
func originalFeeForOrder(ctx context.Context, tx pgx.Tx, order Order) (decimal.Decimal, error) {
	fee := order.CommissionAmount

	var charged decimal.Decimal
	err := tx.QueryRow(ctx, `SELECT platform_fee_amount FROM transactions
        WHERE type = $1 AND order_id = $2`, TypeCharge, order.ID).Scan(&charged)
	switch {
	case err == nil:
		fee = charged
	case errors.Is(err, pgx.ErrNoRows):
		err = tx.QueryRow(ctx, `SELECT net_amount FROM transactions
            WHERE type = $1 AND trip_id = $2 AND from_user = $3`,
			TypePlatformCommission, order.TripID, order.DriverID).Scan(&charged)
		if err == nil {
			fee = charged
		} else if !errors.Is(err, pgx.ErrNoRows) {
			return decimal.Zero, err
		}
	default:
		return decimal.Zero, err
	}

	var applied decimal.Decimal
	err = tx.QueryRow(ctx, `SELECT COALESCE(SUM(delta_fee), 0)
        FROM commission_adjustments WHERE order_id = $1`, order.ID).Scan(&applied)
	if err != nil {
		return decimal.Zero, err
	}
	return fee.Add(applied), nil
}
