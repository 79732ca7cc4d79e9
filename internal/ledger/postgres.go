package ledger

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rutacash/rutacash/internal/outbox"
)

const (
	// SQLSTATE class 23 constraint violations the engine recognizes as
	// idempotency races rather than failures.
	uniqueViolation = "23505"
	// Serialization failures under SERIALIZABLE isolation; safe to retry.
	serializationFailure = "40001"

	adjustRetries = 3
)

// PostgresEngine is the production ledger backend. Every operation runs in one
// database transaction; the wallet row is locked with FOR UPDATE before any
// read that decides a new balance, and when an order row is involved it is
// locked before the wallet, system-wide, to keep a fixed lock order.
type PostgresEngine struct {
	db     *pgxpool.Pool
	points CollectionPointDirectory
	outbox *outbox.PostgresStore
	logger *slog.Logger
}

// NewPostgres builds the Postgres-backed engine.
func NewPostgres(db *pgxpool.Pool, points CollectionPointDirectory, events *outbox.PostgresStore, logger *slog.Logger) *PostgresEngine {
	return &PostgresEngine{db: db, points: points, outbox: events, logger: logger}
}

func pgCode(err error, code string) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == code
}

// withTx runs fn in one transaction and enqueues the returned domain events
// before commit, so events and mutation are atomic.
func (e *PostgresEngine) withTx(ctx context.Context, opts pgx.TxOptions, fn func(pgx.Tx) ([]outbox.Event, error)) error {
	tx, err := e.db.BeginTx(ctx, opts)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	events, err := fn(tx)
	if err != nil {
		return err
	}
	if len(events) > 0 && e.outbox != nil {
		if err := e.outbox.EnqueueTx(ctx, tx, events); err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}

const walletColumns = `id, driver_id, current_balance, held_balance, total_earned,
    currency, status, last_updated, created_at`

func scanWallet(row pgx.Row) (Wallet, error) {
	var w Wallet
	err := row.Scan(&w.ID, &w.DriverID, &w.CurrentBalance, &w.HeldBalance,
		&w.TotalEarnedFromTrips, &w.Currency, &w.Status, &w.LastUpdated, &w.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Wallet{}, ErrWalletNotFound
	}
	return w, err
}

// lockWallet acquires the row-level exclusive lock on the driver's wallet.
// It must be the first wallet lock taken in the transaction and no operation
// ever locks a second wallet while holding one.
func lockWallet(ctx context.Context, tx pgx.Tx, driverID uuid.UUID) (Wallet, error) {
	return scanWallet(tx.QueryRow(ctx, `SELECT `+walletColumns+`
        FROM wallets WHERE driver_id = $1 FOR UPDATE`, driverID))
}

// saveWallet writes back a wallet the caller holds the row lock on.
func saveWallet(ctx context.Context, tx pgx.Tx, w Wallet) error {
	_, err := tx.Exec(ctx, `UPDATE wallets
        SET current_balance = $2, held_balance = $3, total_earned = $4,
            status = $5, last_updated = $6
        WHERE id = $1`,
		w.ID, w.CurrentBalance, w.HeldBalance, w.TotalEarnedFromTrips,
		w.Status, w.LastUpdated)
	return err
}

const transactionColumns = `id, type, status, order_id, trip_id, from_user, to_user,
    gross_amount, platform_fee_amount, net_amount, currency, description,
    adjustment_seq, processed_at, created_at`

func scanTransaction(row pgx.Row) (Transaction, error) {
	var t Transaction
	err := row.Scan(&t.ID, &t.Type, &t.Status, &t.OrderID, &t.TripID, &t.FromUser,
		&t.ToUser, &t.GrossAmount, &t.PlatformFeeAmount, &t.NetAmount, &t.Currency,
		&t.Description, &t.AdjustmentSeq, &t.ProcessedAt, &t.CreatedAt)
	return t, err
}

func insertTransaction(ctx context.Context, tx pgx.Tx, t Transaction) error {
	_, err := tx.Exec(ctx, `INSERT INTO transactions
        (id, type, status, order_id, trip_id, from_user, to_user, gross_amount,
         platform_fee_amount, net_amount, currency, description, adjustment_seq,
         processed_at, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
		t.ID, t.Type, t.Status, t.OrderID, t.TripID, t.FromUser, t.ToUser,
		t.GrossAmount, t.PlatformFeeAmount, t.NetAmount, t.Currency, t.Description,
		t.AdjustmentSeq, t.ProcessedAt, t.CreatedAt)
	return err
}

const movementColumns = `id, wallet_id, transaction_id, amount, previous_balance,
    new_balance, note, created_at`

func scanMovement(row pgx.Row) (Movement, error) {
	var m Movement
	err := row.Scan(&m.ID, &m.WalletID, &m.TransactionID, &m.Amount,
		&m.PreviousBalance, &m.NewBalance, &m.Note, &m.CreatedAt)
	return m, err
}

func movementForTransaction(ctx context.Context, tx pgx.Tx, transactionID uuid.UUID) (Movement, bool, error) {
	m, err := scanMovement(tx.QueryRow(ctx, `SELECT `+movementColumns+`
        FROM wallet_movements WHERE transaction_id = $1`, transactionID))
	if errors.Is(err, pgx.ErrNoRows) {
		return Movement{}, false, nil
	}
	if err != nil {
		return Movement{}, false, err
	}
	return m, true, nil
}

func insertMovement(ctx context.Context, tx pgx.Tx, m Movement) error {
	_, err := tx.Exec(ctx, `INSERT INTO wallet_movements
        (id, wallet_id, transaction_id, amount, previous_balance, new_balance, note, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		m.ID, m.WalletID, m.TransactionID, m.Amount, m.PreviousBalance,
		m.NewBalance, m.Note, m.CreatedAt)
	return err
}

func (e *PostgresEngine) CreateWallet(ctx context.Context, driverID uuid.UUID, currency string) (Wallet, error) {
	if len(currency) != 3 {
		return Wallet{}, ErrInvalidCurrency
	}

	now := time.Now().UTC()
	w := Wallet{
		ID:          uuid.New(),
		DriverID:    driverID,
		Currency:    currency,
		Status:      WalletActive,
		LastUpdated: now,
		CreatedAt:   now,
	}
	_, err := e.db.Exec(ctx, `INSERT INTO wallets
        (id, driver_id, current_balance, held_balance, total_earned, currency,
         status, last_updated, created_at)
        VALUES ($1, $2, 0, 0, 0, $3, $4, $5, $6)`,
		w.ID, w.DriverID, w.Currency, w.Status, w.LastUpdated, w.CreatedAt)
	if pgCode(err, uniqueViolation) {
		return Wallet{}, ErrWalletExists
	}
	if err != nil {
		return Wallet{}, err
	}
	return w, nil
}

func (e *PostgresEngine) GetWallet(ctx context.Context, driverID uuid.UUID) (Wallet, error) {
	return scanWallet(e.db.QueryRow(ctx, `SELECT `+walletColumns+`
        FROM wallets WHERE driver_id = $1`, driverID))
}

func (e *PostgresEngine) MovementsForWallet(ctx context.Context, driverID uuid.UUID) ([]Movement, error) {
	w, err := e.GetWallet(ctx, driverID)
	if err != nil {
		return nil, err
	}

	rows, err := e.db.Query(ctx, `SELECT `+movementColumns+`
        FROM wallet_movements WHERE wallet_id = $1 ORDER BY created_at, id`, w.ID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Movement
	for rows.Next() {
		m, err := scanMovement(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (e *PostgresEngine) BlockWallet(ctx context.Context, driverID uuid.UUID, reason, performedBy string) (StatusChange, error) {
	return e.setStatus(ctx, driverID, WalletBlocked, reason, performedBy)
}

func (e *PostgresEngine) UnblockWallet(ctx context.Context, driverID uuid.UUID, performedBy string) (StatusChange, error) {
	return e.setStatus(ctx, driverID, WalletActive, "", performedBy)
}

// setStatus performs the idempotent manual transition: when the wallet is
// already in the target status nothing is written.
func (e *PostgresEngine) setStatus(ctx context.Context, driverID uuid.UUID, target WalletStatus, reason, performedBy string) (StatusChange, error) {
	var change StatusChange
	err := e.withTx(ctx, pgx.TxOptions{}, func(tx pgx.Tx) ([]outbox.Event, error) {
		w, err := lockWallet(ctx, tx, driverID)
		if err != nil {
			return nil, err
		}

		change = StatusChange{DriverID: driverID, PreviousStatus: w.Status, Status: target}
		if w.Status == target {
			return nil, nil
		}

		w.Status = target
		w.LastUpdated = time.Now().UTC()
		if err := saveWallet(ctx, tx, w); err != nil {
			return nil, err
		}
		change.Changed = true
		return []outbox.Event{walletStatusChangedEvent(w, reason, performedBy)}, nil
	})
	if err != nil {
		return StatusChange{}, err
	}
	return change, nil
}
