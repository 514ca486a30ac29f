package motorcycles

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/machinemu/machinemu/internal/platform/httpx"
)

// RepositoryPort defines data access methods for motorcycles.
type RepositoryPort interface {
	ListMotorcycles(ctx context.Context) ([]Motorcycle, error)
	GetMotorcycle(ctx context.Context, id int64) (Motorcycle, error)
	CreateMotorcycle(ctx context.Context, name string, gas, consumption float64) (Motorcycle, error)
	UpdateMotorcycle(ctx context.Context, m Motorcycle) (Motorcycle, error)
	DeleteMotorcycle(ctx context.Context, id int64) error
}

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const motorcycleColumns = `id, name, status, gas, consumption_per_km, created_at, updated_at`

func scanMotorcycle(row pgx.Row) (Motorcycle, error) {
	var m Motorcycle
	err := row.Scan(&m.ID, &m.Name, &m.Status, &m.Gas, &m.ConsumptionPerKM, &m.CreatedAt, &m.UpdatedAt)
	return m, err
}

// ListMotorcycles returns all motorcycles ordered by id.
func (r *Repository) ListMotorcycles(ctx context.Context) ([]Motorcycle, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+motorcycleColumns+` FROM motorcycles ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	bikes := []Motorcycle{}
	for rows.Next() {
		m, err := scanMotorcycle(rows)
		if err != nil {
			return nil, err
		}
		bikes = append(bikes, m)
	}
	return bikes, rows.Err()
}

// GetMotorcycle fetches a single motorcycle.
func (r *Repository) GetMotorcycle(ctx context.Context, id int64) (Motorcycle, error) {
	m, err := scanMotorcycle(r.pool.QueryRow(ctx, `SELECT `+motorcycleColumns+` FROM motorcycles WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Motorcycle{}, fmt.Errorf("motorcycle %d: %w", id, httpx.ErrNotFound)
		}
		return Motorcycle{}, err
	}
	return m, nil
}

// CreateMotorcycle inserts a motorcycle in the Stopped state.
func (r *Repository) CreateMotorcycle(ctx context.Context, name string, gas, consumption float64) (Motorcycle, error) {
	return scanMotorcycle(r.pool.QueryRow(ctx, `
		INSERT INTO motorcycles (name, status, gas, consumption_per_km)
		VALUES ($1, $2, $3, $4)
		RETURNING `+motorcycleColumns, name, StatusStopped, gas, consumption))
}

// UpdateMotorcycle persists the full motorcycle row.
func (r *Repository) UpdateMotorcycle(ctx context.Context, m Motorcycle) (Motorcycle, error) {
	updated, err := scanMotorcycle(r.pool.QueryRow(ctx, `
		UPDATE motorcycles
		SET name = $2, status = $3, gas = $4, consumption_per_km = $5, updated_at = NOW()
		WHERE id = $1
		RETURNING `+motorcycleColumns, m.ID, m.Name, m.Status, m.Gas, m.ConsumptionPerKM))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Motorcycle{}, fmt.Errorf("motorcycle %d: %w", m.ID, httpx.ErrNotFound)
		}
		return Motorcycle{}, err
	}
	return updated, nil
}

// DeleteMotorcycle removes a motorcycle.
func (r *Repository) DeleteMotorcycle(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM motorcycles WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("motorcycle %d: %w", id, httpx.ErrNotFound)
	}
	return nil
}

var _ RepositoryPort = (*Repository)(nil)
