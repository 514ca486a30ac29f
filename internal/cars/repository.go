package cars

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/machinemu/machinemu/internal/platform/httpx"
)

// RepositoryPort defines data access methods for cars.
type RepositoryPort interface {
	ListCars(ctx context.Context) ([]Car, error)
	GetCar(ctx context.Context, id int64) (Car, error)
	CreateCar(ctx context.Context, name string, gas, consumption float64) (Car, error)
	UpdateCar(ctx context.Context, car Car) (Car, error)
	DeleteCar(ctx context.Context, id int64) error
}

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const carColumns = `id, name, status, gas, consumption_per_km, created_at, updated_at`

func scanCar(row pgx.Row) (Car, error) {
	var c Car
	err := row.Scan(&c.ID, &c.Name, &c.Status, &c.Gas, &c.ConsumptionPerKM, &c.CreatedAt, &c.UpdatedAt)
	return c, err
}

// ListCars returns all cars ordered by id.
func (r *Repository) ListCars(ctx context.Context) ([]Car, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+carColumns+` FROM cars ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	cars := []Car{}
	for rows.Next() {
		c, err := scanCar(rows)
		if err != nil {
			return nil, err
		}
		cars = append(cars, c)
	}
	return cars, rows.Err()
}

// GetCar fetches a single car.
func (r *Repository) GetCar(ctx context.Context, id int64) (Car, error) {
	c, err := scanCar(r.pool.QueryRow(ctx, `SELECT `+carColumns+` FROM cars WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Car{}, fmt.Errorf("car %d: %w", id, httpx.ErrNotFound)
		}
		return Car{}, err
	}
	return c, nil
}

// CreateCar inserts a car in the Stopped state.
func (r *Repository) CreateCar(ctx context.Context, name string, gas, consumption float64) (Car, error) {
	return scanCar(r.pool.QueryRow(ctx, `
		INSERT INTO cars (name, status, gas, consumption_per_km)
		VALUES ($1, $2, $3, $4)
		RETURNING `+carColumns, name, StatusStopped, gas, consumption))
}

// UpdateCar persists the full car row.
func (r *Repository) UpdateCar(ctx context.Context, car Car) (Car, error) {
	updated, err := scanCar(r.pool.QueryRow(ctx, `
		UPDATE cars
		SET name = $2, status = $3, gas = $4, consumption_per_km = $5, updated_at = NOW()
		WHERE id = $1
		RETURNING `+carColumns, car.ID, car.Name, car.Status, car.Gas, car.ConsumptionPerKM))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Car{}, fmt.Errorf("car %d: %w", car.ID, httpx.ErrNotFound)
		}
		return Car{}, err
	}
	return updated, nil
}

// DeleteCar removes a car.
func (r *Repository) DeleteCar(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM cars WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("car %d: %w", id, httpx.ErrNotFound)
	}
	return nil
}

var _ RepositoryPort = (*Repository)(nil)
