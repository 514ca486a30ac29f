package cars_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/machinemu/machinemu/internal/cars"
	"github.com/machinemu/machinemu/internal/platform/httpx"
)

type memoryRepo struct {
	byID   map[int64]cars.Car
	nextID int64
}

func newMemoryRepo(seed ...cars.Car) *memoryRepo {
	repo := &memoryRepo{byID: map[int64]cars.Car{}, nextID: 0}
	for _, c := range seed {
		repo.byID[c.ID] = c
		if c.ID > repo.nextID {
			repo.nextID = c.ID
		}
	}
	return repo
}

func (r *memoryRepo) ListCars(ctx context.Context) ([]cars.Car, error) {
	out := []cars.Car{}
	for _, c := range r.byID {
		out = append(out, c)
	}
	return out, nil
}

func (r *memoryRepo) GetCar(ctx context.Context, id int64) (cars.Car, error) {
	c, ok := r.byID[id]
	if !ok {
		return cars.Car{}, fmt.Errorf("car %d: %w", id, httpx.ErrNotFound)
	}
	return c, nil
}

func (r *memoryRepo) CreateCar(ctx context.Context, name string, gas, consumption float64) (cars.Car, error) {
	r.nextID++
	c := cars.Car{ID: r.nextID, Name: name, Status: cars.StatusStopped, Gas: gas, ConsumptionPerKM: consumption}
	r.byID[c.ID] = c
	return c, nil
}

func (r *memoryRepo) UpdateCar(ctx context.Context, c cars.Car) (cars.Car, error) {
	if _, ok := r.byID[c.ID]; !ok {
		return cars.Car{}, fmt.Errorf("car %d: %w", c.ID, httpx.ErrNotFound)
	}
	r.byID[c.ID] = c
	return c, nil
}

func (r *memoryRepo) DeleteCar(ctx context.Context, id int64) error {
	if _, ok := r.byID[id]; !ok {
		return fmt.Errorf("car %d: %w", id, httpx.ErrNotFound)
	}
	delete(r.byID, id)
	return nil
}

func TestCreateCarAppliesFactoryDefaults(t *testing.T) {
	service := cars.NewService(newMemoryRepo())

	car, err := service.CreateCar(context.Background(), "Car A", 0, 0)
	require.NoError(t, err)
	assert.Equal(t, cars.StatusStopped, car.Status)
	assert.Equal(t, float64(cars.DefaultGas), car.Gas)
	assert.Equal(t, cars.DefaultConsumptionPerKM, car.ConsumptionPerKM)
}

func TestStartStopTransitions(t *testing.T) {
	repo := newMemoryRepo(cars.Car{ID: 1, Name: "Car A", Status: cars.StatusStopped, Gas: 50, ConsumptionPerKM: 0.1})
	service := cars.NewService(repo)
	ctx := context.Background()

	car, err := service.Start(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, cars.StatusRunning, car.Status)

	_, err = service.Start(ctx, 1)
	require.ErrorIs(t, err, httpx.ErrValidation, "double start")

	car, err = service.Stop(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, cars.StatusStopped, car.Status)

	_, err = service.Stop(ctx, 1)
	require.ErrorIs(t, err, httpx.ErrValidation, "double stop")
}

func TestStartUnknownCar(t *testing.T) {
	service := cars.NewService(newMemoryRepo())

	_, err := service.Start(context.Background(), 404)
	require.ErrorIs(t, err, httpx.ErrNotFound)
}

func TestStatusReportsCurrentState(t *testing.T) {
	repo := newMemoryRepo(cars.Car{ID: 1, Name: "Car A", Status: cars.StatusRunning, Gas: 50})
	service := cars.NewService(repo)

	status, err := service.Status(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, cars.StatusRunning, status)
}

func TestRefuelRequiresPositiveAmount(t *testing.T) {
	repo := newMemoryRepo(cars.Car{ID: 1, Name: "Car A", Status: cars.StatusStopped, Gas: 10})
	service := cars.NewService(repo)
	ctx := context.Background()

	_, err := service.Refuel(ctx, 1, 0)
	require.ErrorIs(t, err, httpx.ErrValidation)
	_, err = service.Refuel(ctx, 1, -5)
	require.ErrorIs(t, err, httpx.ErrValidation)

	car, err := service.Refuel(ctx, 1, 7.5)
	require.NoError(t, err)
	assert.InDelta(t, 17.5, car.Gas, 1e-9)
}
