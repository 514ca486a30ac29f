package cars

import (
	"context"
	"fmt"
	"strings"

	"github.com/machinemu/machinemu/internal/platform/httpx"
)

// Factory defaults for a newly created car.
const (
	DefaultGas              = 50
	DefaultConsumptionPerKM = 0.1
)

// Service handles car business logic and engine state transitions.
type Service struct {
	repo RepositoryPort
}

// NewService builds Service instance.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo}
}

// ListCars returns all cars.
func (s *Service) ListCars(ctx context.Context) ([]Car, error) {
	return s.repo.ListCars(ctx)
}

// GetCar returns one car.
func (s *Service) GetCar(ctx context.Context, id int64) (Car, error) {
	return s.repo.GetCar(ctx, id)
}

// Status returns the current status string of a car.
func (s *Service) Status(ctx context.Context, id int64) (string, error) {
	car, err := s.repo.GetCar(ctx, id)
	if err != nil {
		return "", err
	}
	return car.Status, nil
}

// CreateCar stores a new car. Zero gas or consumption fall back to the
// factory defaults.
func (s *Service) CreateCar(ctx context.Context, name string, gas, consumption float64) (Car, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Car{}, fmt.Errorf("car name: %w", httpx.ErrValidation)
	}
	if gas < 0 || consumption < 0 {
		return Car{}, fmt.Errorf("gas and consumption must not be negative: %w", httpx.ErrValidation)
	}
	if gas == 0 {
		gas = DefaultGas
	}
	if consumption == 0 {
		consumption = DefaultConsumptionPerKM
	}
	return s.repo.CreateCar(ctx, name, gas, consumption)
}

// RenameCar updates the car name.
func (s *Service) RenameCar(ctx context.Context, id int64, name string) (Car, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Car{}, fmt.Errorf("car name: %w", httpx.ErrValidation)
	}
	car, err := s.repo.GetCar(ctx, id)
	if err != nil {
		return Car{}, err
	}
	car.Name = name
	return s.repo.UpdateCar(ctx, car)
}

// DeleteCar removes a car.
func (s *Service) DeleteCar(ctx context.Context, id int64) error {
	return s.repo.DeleteCar(ctx, id)
}

// Start turns the engine on. Starting an already running car is rejected.
func (s *Service) Start(ctx context.Context, id int64) (Car, error) {
	car, err := s.repo.GetCar(ctx, id)
	if err != nil {
		return Car{}, err
	}
	if car.Status != StatusStopped {
		return Car{}, fmt.Errorf("car is already %s: %w", car.Status, httpx.ErrValidation)
	}
	car.Status = StatusRunning
	return s.repo.UpdateCar(ctx, car)
}

// Stop turns the engine off. Stopping a stopped car is rejected.
func (s *Service) Stop(ctx context.Context, id int64) (Car, error) {
	car, err := s.repo.GetCar(ctx, id)
	if err != nil {
		return Car{}, err
	}
	if car.Status == StatusStopped {
		return Car{}, fmt.Errorf("car is already stopped: %w", httpx.ErrValidation)
	}
	car.Status = StatusStopped
	return s.repo.UpdateCar(ctx, car)
}

// Refuel adds gas to the tank. Amount must be strictly positive.
func (s *Service) Refuel(ctx context.Context, id int64, amount float64) (Car, error) {
	if amount <= 0 {
		return Car{}, fmt.Errorf("refuel amount must be positive: %w", httpx.ErrValidation)
	}
	car, err := s.repo.GetCar(ctx, id)
	if err != nil {
		return Car{}, err
	}
	car.Gas += amount
	return s.repo.UpdateCar(ctx, car)
}
