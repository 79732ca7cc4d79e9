package collection

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rutacash/rutacash/internal/ledger"
)

// CollectionPoint is a physical location where drivers hand cash to the
// platform: an office, a partner shop, a collector's kiosk.
type CollectionPoint struct {
	ID        uuid.UUID
	Name      string
	Address   string
	Active    bool
	CreatedAt time.Time
}

// Repository persists collection points. Every implementation also satisfies
// ledger.CollectionPointDirectory so it can be handed to the engine directly.
type Repository interface {
	ledger.CollectionPointDirectory

	Create(ctx context.Context, point CollectionPoint) error
	List(ctx context.Context) ([]CollectionPoint, error)
	SetActive(ctx context.Context, pointID uuid.UUID, active bool) error
}

// PostgresRepository stores collection points in PostgreSQL.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository builds a repository backed by PostgreSQL.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, point CollectionPoint) error {
	_, err := r.db.Exec(ctx, `INSERT INTO collection_points (id, name, address, active, created_at)
        VALUES ($1, $2, $3, $4, $5)`,
		point.ID, point.Name, point.Address, point.Active, point.CreatedAt)
	return err
}

func (r *PostgresRepository) List(ctx context.Context) ([]CollectionPoint, error) {
	rows, err := r.db.Query(ctx, `SELECT id, name, address, active, created_at
        FROM collection_points ORDER BY created_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []CollectionPoint
	for rows.Next() {
		var p CollectionPoint
		if err := rows.Scan(&p.ID, &p.Name, &p.Address, &p.Active, &p.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *PostgresRepository) SetActive(ctx context.Context, pointID uuid.UUID, active bool) error {
	tag, err := r.db.Exec(ctx, `UPDATE collection_points SET active = $2 WHERE id = $1`,
		pointID, active)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ledger.ErrCollectionPointNotFound
	}
	return nil
}

// IsActive implements ledger.CollectionPointDirectory.
func (r *PostgresRepository) IsActive(ctx context.Context, pointID uuid.UUID) (bool, error) {
	var active bool
	err := r.db.QueryRow(ctx, `SELECT active FROM collection_points WHERE id = $1`,
		pointID).Scan(&active)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, ledger.ErrCollectionPointNotFound
	}
	if err != nil {
		return false, err
	}
	return active, nil
}

type memoryRepository struct {
	mu     sync.RWMutex
	points map[uuid.UUID]CollectionPoint
	order  []uuid.UUID
}

// NewMemoryRepository constructs an in-memory repository for tests and
// development mode.
func NewMemoryRepository() Repository {
	return &memoryRepository{points: make(map[uuid.UUID]CollectionPoint)}
}

func (r *memoryRepository) Create(_ context.Context, point CollectionPoint) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.points[point.ID]; exists {
		return errors.New("collection point exists")
	}
	r.points[point.ID] = point
	r.order = append(r.order, point.ID)
	return nil
}

func (r *memoryRepository) List(_ context.Context) ([]CollectionPoint, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]CollectionPoint, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.points[id])
	}
	return out, nil
}

func (r *memoryRepository) SetActive(_ context.Context, pointID uuid.UUID, active bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.points[pointID]
	if !ok {
		return ledger.ErrCollectionPointNotFound
	}
	p.Active = active
	r.points[pointID] = p
	return nil
}

func (r *memoryRepository) IsActive(_ context.Context, pointID uuid.UUID) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.points[pointID]
	if !ok {
		return false, ledger.ErrCollectionPointNotFound
	}
	return p.Active, nil
}
