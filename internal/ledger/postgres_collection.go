package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/rutacash/rutacash/internal/outbox"
)

const collectionColumns = `id, driver_id, collection_point_id, collected_by,
    amount, currency, status, transaction_id, notes, created_at, completed_at`

func scanCollectionRecord(row pgx.Row) (CollectionRecord, error) {
	var r CollectionRecord
	err := row.Scan(&r.ID, &r.DriverID, &r.CollectionPointID, &r.CollectedByUserID,
		&r.Amount, &r.Currency, &r.Status, &r.TransactionID, &r.Notes,
		&r.CreatedAt, &r.CompletedAt)
	return r, err
}

func (e *PostgresEngine) CreateCashTopupPending(ctx context.Context, in TopupInput) (TopupResult, error) {
	if err := ValidateAmount(in.Amount); err != nil {
		return TopupResult{}, err
	}

	active, err := e.points.IsActive(ctx, in.CollectionPointID)
	if err != nil {
		return TopupResult{}, err
	}
	if !active {
		return TopupResult{}, ErrCollectionPointInactive
	}

	var res TopupResult
	err = e.withTx(ctx, pgx.TxOptions{}, func(tx pgx.Tx) ([]outbox.Event, error) {
		// The wallet may be blocked; top-ups are how it recovers. Existence
		// and currency still have to hold.
		w, err := scanWallet(tx.QueryRow(ctx, `SELECT `+walletColumns+`
            FROM wallets WHERE driver_id = $1`, in.DriverID))
		if err != nil {
			return nil, err
		}
		if err := ValidateCurrency(w, in.Currency); err != nil {
			return nil, err
		}

		driverID, collectorID := in.DriverID, in.CollectedByUserID
		now := time.Now().UTC()
		t := Transaction{
			ID:          uuid.New(),
			Type:        TypeWalletTopup,
			Status:      TxPending,
			FromUser:    &collectorID,
			ToUser:      &driverID,
			GrossAmount: in.Amount,
			NetAmount:   in.Amount,
			Currency:    in.Currency,
			Description: "cash top-up at collection point",
			CreatedAt:   now,
		}
		if err := insertTransaction(ctx, tx, t); err != nil {
			return nil, err
		}

		rec := CollectionRecord{
			ID:                uuid.New(),
			DriverID:          in.DriverID,
			CollectionPointID: in.CollectionPointID,
			CollectedByUserID: in.CollectedByUserID,
			Amount:            in.Amount,
			Currency:          in.Currency,
			Status:            CollectionPending,
			TransactionID:     t.ID,
			Notes:             in.Notes,
			CreatedAt:         now,
		}
		if _, err := tx.Exec(ctx, `INSERT INTO cash_collection_records
            (id, driver_id, collection_point_id, collected_by, amount, currency,
             status, transaction_id, notes, created_at)
            VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
			rec.ID, rec.DriverID, rec.CollectionPointID, rec.CollectedByUserID,
			rec.Amount, rec.Currency, rec.Status, rec.TransactionID, rec.Notes,
			rec.CreatedAt); err != nil {
			return nil, err
		}

		res = TopupResult{Record: rec, Transaction: t}
		return nil, nil
	})
	if err != nil {
		return TopupResult{}, err
	}
	return res, nil
}

func (e *PostgresEngine) ConfirmCashTopup(ctx context.Context, driverID, recordID uuid.UUID) (ConfirmResult, error) {
	res, err := e.confirmTopupOnce(ctx, driverID, recordID)
	if pgCode(err, uniqueViolation) {
		// A concurrent confirmation inserted the movement first; replay to
		// return its result.
		return e.confirmTopupOnce(ctx, driverID, recordID)
	}
	return res, err
}

func (e *PostgresEngine) confirmTopupOnce(ctx context.Context, driverID, recordID uuid.UUID) (ConfirmResult, error) {
	var res ConfirmResult
	err := e.withTx(ctx, pgx.TxOptions{}, func(tx pgx.Tx) ([]outbox.Event, error) {
		// Wallet first: it is the only lock this operation needs, and record
		// state is only trusted once the wallet lock serializes confirmations.
		w, err := lockWallet(ctx, tx, driverID)
		if err != nil {
			return nil, err
		}

		rec, err := scanCollectionRecord(tx.QueryRow(ctx, `SELECT `+collectionColumns+`
            FROM cash_collection_records WHERE id = $1 AND driver_id = $2`,
			recordID, driverID))
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrRecordNotFound
		}
		if err != nil {
			return nil, err
		}

		if rec.Status == CollectionCompleted {
			m, ok, err := movementForTransaction(ctx, tx, rec.TransactionID)
			if err != nil {
				return nil, err
			}
			if !ok {
				return nil, &InconsistencyError{
					Entity: "collection_record",
					ID:     rec.ID,
					Detail: "completed without a wallet movement",
				}
			}
			res = ConfirmResult{Wallet: w, Movement: m, Record: rec}
			return nil, nil
		}

		t, err := scanTransaction(tx.QueryRow(ctx, `SELECT `+transactionColumns+`
            FROM transactions WHERE id = $1`, rec.TransactionID))
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &InconsistencyError{
				Entity: "collection_record",
				ID:     rec.ID,
				Detail: "missing linked top-up transaction",
			}
		}
		if err != nil {
			return nil, err
		}

		// Credit amount is re-derived from the stored record.
		updated, m := BuildMovement(w, t.ID, rec.Amount, "confirmed cash collection")
		if err := insertMovement(ctx, tx, m); err != nil {
			return nil, err
		}
		if err := saveWallet(ctx, tx, updated); err != nil {
			return nil, err
		}

		now := time.Now().UTC()
		if _, err := tx.Exec(ctx, `UPDATE transactions
            SET status = $2, processed_at = $3 WHERE id = $1`,
			t.ID, TxProcessed, now); err != nil {
			return nil, err
		}
		t.Status = TxProcessed
		t.ProcessedAt = &now

		if _, err := tx.Exec(ctx, `UPDATE cash_collection_records
            SET status = $2, completed_at = $3 WHERE id = $1`,
			rec.ID, CollectionCompleted, now); err != nil {
			return nil, err
		}
		rec.Status = CollectionCompleted
		rec.CompletedAt = &now

		res = ConfirmResult{Wallet: updated, Movement: m, Record: rec}
		return []outbox.Event{
			walletUpdatedEvent(updated),
			transactionProcessedEvent(t),
			collectionCompletedEvent(rec),
		}, nil
	})
	if err != nil {
		return ConfirmResult{}, err
	}
	return res, nil
}
