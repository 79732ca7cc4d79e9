package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/rutacash/rutacash/internal/outbox"
)

func (e *PostgresEngine) ApplyCashTripCommission(ctx context.Context, in CommissionInput) (SettlementResult, error) {
	if err := ValidateAmount(in.CommissionAmount); err != nil {
		return SettlementResult{}, err
	}
	if in.GrossAmount != nil {
		if err := ValidateAmount(*in.GrossAmount); err != nil {
			return SettlementResult{}, err
		}
	}

	res, err := e.applyCommissionOnce(ctx, in)
	if pgCode(err, uniqueViolation) {
		// Two settlement requests raced on the same (trip, driver) key; the
		// loser aborts and re-reads the winner's rows.
		e.logger.Info("commission insert raced, replaying", "trip_id", in.TripID, "driver_id", in.DriverID)
		return e.applyCommissionOnce(ctx, in)
	}
	return res, err
}

func (e *PostgresEngine) applyCommissionOnce(ctx context.Context, in CommissionInput) (SettlementResult, error) {
	var res SettlementResult
	err := e.withTx(ctx, pgx.TxOptions{}, func(tx pgx.Tx) ([]outbox.Event, error) {
		w, err := lockWallet(ctx, tx, in.DriverID)
		if err != nil {
			return nil, err
		}
		if err := ValidateCurrency(w, in.Currency); err != nil {
			return nil, err
		}

		t, found, err := e.commissionForTrip(ctx, tx, in)
		if err != nil {
			return nil, err
		}

		if found {
			if !sameAmount(t.NetAmount, in.CommissionAmount) || t.Currency != in.Currency {
				return nil, ErrConflict
			}
			if m, ok, err := movementForTransaction(ctx, tx, t.ID); err != nil {
				return nil, err
			} else if ok {
				// Full idempotent replay, nothing to write.
				res = SettlementResult{Wallet: w, Movement: m, Transaction: t}
				return nil, nil
			}
			// Transaction committed by a prior attempt that failed before the
			// movement insert: finish applying it.
		} else {
			// The blocked check only guards new debits; replays and crash
			// recovery of an already-committed transaction proceed.
			if w.Blocked() {
				return nil, ErrWalletBlocked
			}
			gross := in.CommissionAmount
			if in.GrossAmount != nil {
				gross = *in.GrossAmount
			}
			now := time.Now().UTC()
			tripID, driverID := in.TripID, in.DriverID
			t = Transaction{
				ID:                uuid.New(),
				Type:              TypePlatformCommission,
				Status:            TxProcessed,
				TripID:            &tripID,
				FromUser:          &driverID,
				GrossAmount:       gross,
				PlatformFeeAmount: in.CommissionAmount,
				NetAmount:         in.CommissionAmount,
				Currency:          in.Currency,
				Description:       "platform commission for cash trip",
				ProcessedAt:       &now,
				CreatedAt:         now,
			}
			if err := insertTransaction(ctx, tx, t); err != nil {
				return nil, err
			}
		}

		updated, m := BuildMovement(w, t.ID, in.CommissionAmount.Neg(), "cash trip commission")
		if in.GrossAmount != nil {
			updated.TotalEarnedFromTrips = updated.TotalEarnedFromTrips.Add(*in.GrossAmount)
		}
		if err := insertMovement(ctx, tx, m); err != nil {
			return nil, err
		}
		if err := saveWallet(ctx, tx, updated); err != nil {
			return nil, err
		}

		res = SettlementResult{Wallet: updated, Movement: m, Transaction: t}
		return []outbox.Event{walletUpdatedEvent(updated), transactionProcessedEvent(t)}, nil
	})
	if err != nil {
		return SettlementResult{}, err
	}
	return res, nil
}

func (e *PostgresEngine) commissionForTrip(ctx context.Context, tx pgx.Tx, in CommissionInput) (Transaction, bool, error) {
	t, err := scanTransaction(tx.QueryRow(ctx, `SELECT `+transactionColumns+`
        FROM transactions
        WHERE type = $1 AND trip_id = $2 AND from_user = $3`,
		TypePlatformCommission, in.TripID, in.DriverID))
	if errors.Is(err, pgx.ErrNoRows) {
		return Transaction{}, false, nil
	}
	if err != nil {
		return Transaction{}, false, err
	}
	return t, true, nil
}

func (e *PostgresEngine) CreateOrGetChargeForOrder(ctx context.Context, in ChargeInput) (Transaction, error) {
	if err := ValidateAmount(in.GrossAmount); err != nil {
		return Transaction{}, err
	}

	t, err := e.createChargeOnce(ctx, in)
	if pgCode(err, uniqueViolation) {
		return e.createChargeOnce(ctx, in)
	}
	return t, err
}

func (e *PostgresEngine) createChargeOnce(ctx context.Context, in ChargeInput) (Transaction, error) {
	var res Transaction
	err := e.withTx(ctx, pgx.TxOptions{}, func(tx pgx.Tx) ([]outbox.Event, error) {
		t, err := scanTransaction(tx.QueryRow(ctx, `SELECT `+transactionColumns+`
            FROM transactions WHERE type = $1 AND order_id = $2`,
			TypeCharge, in.OrderID))
		if err == nil {
			if !sameAmount(t.GrossAmount, in.GrossAmount) ||
				!sameAmount(t.PlatformFeeAmount, in.Commission) ||
				!sameAmount(t.NetAmount, in.NetAmount) ||
				t.Currency != in.Currency {
				return nil, ErrConflict
			}
			res = t
			return nil, nil
		}
		if !errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}

		now := time.Now().UTC()
		orderID, tripID := in.OrderID, in.TripID
		passengerID, driverID := in.PassengerID, in.DriverID
		t = Transaction{
			ID:                uuid.New(),
			Type:              TypeCharge,
			Status:            TxProcessed,
			OrderID:           &orderID,
			TripID:            &tripID,
			FromUser:          &passengerID,
			ToUser:            &driverID,
			GrossAmount:       in.GrossAmount,
			PlatformFeeAmount: in.Commission,
			NetAmount:         in.NetAmount,
			Currency:          in.Currency,
			Description:       "cash charge for order",
			ProcessedAt:       &now,
			CreatedAt:         now,
		}
		if err := insertTransaction(ctx, tx, t); err != nil {
			return nil, err
		}

		res = t
		return []outbox.Event{transactionProcessedEvent(t)}, nil
	})
	if err != nil {
		return Transaction{}, err
	}
	return res, nil
}

func (e *PostgresEngine) CreateRefund(ctx context.Context, in RefundInput) (SettlementResult, error) {
	if err := ValidateAmount(in.Amount); err != nil {
		return SettlementResult{}, err
	}

	res, err := e.createRefundOnce(ctx, in)
	if pgCode(err, uniqueViolation) {
		return e.createRefundOnce(ctx, in)
	}
	return res, err
}

func (e *PostgresEngine) createRefundOnce(ctx context.Context, in RefundInput) (SettlementResult, error) {
	var res SettlementResult
	err := e.withTx(ctx, pgx.TxOptions{}, func(tx pgx.Tx) ([]outbox.Event, error) {
		w, err := lockWallet(ctx, tx, in.DriverID)
		if err != nil {
			return nil, err
		}
		if err := ValidateCurrency(w, in.Currency); err != nil {
			return nil, err
		}

		t, err := scanTransaction(tx.QueryRow(ctx, `SELECT `+transactionColumns+`
            FROM transactions WHERE type = $1 AND order_id = $2`,
			TypeRefund, in.OrderID))
		found := err == nil
		if err != nil && !errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}

		if found {
			if !sameAmount(t.NetAmount, in.Amount) || t.Currency != in.Currency {
				return nil, ErrConflict
			}
			if m, ok, err := movementForTransaction(ctx, tx, t.ID); err != nil {
				return nil, err
			} else if ok {
				res = SettlementResult{Wallet: w, Movement: m, Transaction: t}
				return nil, nil
			}
		} else {
			if w.Blocked() {
				return nil, ErrWalletBlocked
			}
			now := time.Now().UTC()
			orderID, driverID := in.OrderID, in.DriverID
			desc := in.Reason
			if desc == "" {
				desc = "cash refund for order"
			}
			t = Transaction{
				ID:          uuid.New(),
				Type:        TypeRefund,
				Status:      TxProcessed,
				OrderID:     &orderID,
				FromUser:    &driverID,
				GrossAmount: in.Amount,
				NetAmount:   in.Amount,
				Currency:    in.Currency,
				Description: desc,
				ProcessedAt: &now,
				CreatedAt:   now,
			}
			if err := insertTransaction(ctx, tx, t); err != nil {
				return nil, err
			}
		}

		updated, m := BuildMovement(w, t.ID, in.Amount.Neg(), "refund to passenger")
		if err := insertMovement(ctx, tx, m); err != nil {
			return nil, err
		}
		if err := saveWallet(ctx, tx, updated); err != nil {
			return nil, err
		}

		res = SettlementResult{Wallet: updated, Movement: m, Transaction: t}
		return []outbox.Event{walletUpdatedEvent(updated), transactionProcessedEvent(t)}, nil
	})
	if err != nil {
		return SettlementResult{}, err
	}
	return res, nil
}
