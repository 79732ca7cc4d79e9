package outbox

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore persists events in the outbox_events table.
type PostgresStore struct {
	db *pgxpool.Pool
}

// NewPostgresStore builds an outbox store backed by PostgreSQL.
func NewPostgresStore(db *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{db: db}
}

// EnqueueTx writes events inside the caller's transaction so they commit or
// roll back together with the ledger mutation.
func (s *PostgresStore) EnqueueTx(ctx context.Context, tx pgx.Tx, events []Event) error {
	for _, ev := range events {
		if _, err := tx.Exec(ctx, `INSERT INTO outbox_events (id, topic, payload, created_at)
            VALUES ($1, $2, $3, $4)`, ev.ID, ev.Topic, ev.Payload, ev.CreatedAt); err != nil {
			return err
		}
	}
	return nil
}

// Pending returns undispatched events, oldest first.
func (s *PostgresStore) Pending(ctx context.Context, limit int) ([]Event, error) {
	rows, err := s.db.Query(ctx, `SELECT id, topic, payload, created_at
        FROM outbox_events WHERE dispatched_at IS NULL
        ORDER BY created_at LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var ev Event
		if err := rows.Scan(&ev.ID, &ev.Topic, &ev.Payload, &ev.CreatedAt); err != nil {
			return nil, err
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}

// MarkDispatched stamps the given events as delivered.
func (s *PostgresStore) MarkDispatched(ctx context.Context, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := s.db.Exec(ctx, `UPDATE outbox_events SET dispatched_at = $1
        WHERE id = ANY($2)`, time.Now().UTC(), ids)
	return err
}
