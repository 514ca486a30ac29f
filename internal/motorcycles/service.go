package motorcycles

import (
	"context"
	"fmt"
	"strings"

	"github.com/machinemu/machinemu/internal/platform/httpx"
)

// Factory defaults for a newly created motorcycle.
const (
	DefaultGas              = 20
	DefaultConsumptionPerKM = 0.05
)

// Service handles motorcycle business logic and engine state transitions.
type Service struct {
	repo RepositoryPort
}

// NewService builds Service instance.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo}
}

// ListMotorcycles returns all motorcycles.
func (s *Service) ListMotorcycles(ctx context.Context) ([]Motorcycle, error) {
	return s.repo.ListMotorcycles(ctx)
}

// GetMotorcycle returns one motorcycle.
func (s *Service) GetMotorcycle(ctx context.Context, id int64) (Motorcycle, error) {
	return s.repo.GetMotorcycle(ctx, id)
}

// CreateMotorcycle stores a new motorcycle. Zero gas or consumption fall
// back to the factory defaults.
func (s *Service) CreateMotorcycle(ctx context.Context, name string, gas, consumption float64) (Motorcycle, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Motorcycle{}, fmt.Errorf("motorcycle name: %w", httpx.ErrValidation)
	}
	if gas < 0 || consumption < 0 {
		return Motorcycle{}, fmt.Errorf("gas and consumption must not be negative: %w", httpx.ErrValidation)
	}
	if gas == 0 {
		gas = DefaultGas
	}
	if consumption == 0 {
		consumption = DefaultConsumptionPerKM
	}
	return s.repo.CreateMotorcycle(ctx, name, gas, consumption)
}

// RenameMotorcycle updates the motorcycle name.
func (s *Service) RenameMotorcycle(ctx context.Context, id int64, name string) (Motorcycle, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Motorcycle{}, fmt.Errorf("motorcycle name: %w", httpx.ErrValidation)
	}
	m, err := s.repo.GetMotorcycle(ctx, id)
	if err != nil {
		return Motorcycle{}, err
	}
	m.Name = name
	return s.repo.UpdateMotorcycle(ctx, m)
}

// DeleteMotorcycle removes a motorcycle.
func (s *Service) DeleteMotorcycle(ctx context.Context, id int64) error {
	return s.repo.DeleteMotorcycle(ctx, id)
}

// Start turns the engine on. Starting from any state but Stopped is rejected.
func (s *Service) Start(ctx context.Context, id int64) (Motorcycle, error) {
	m, err := s.repo.GetMotorcycle(ctx, id)
	if err != nil {
		return Motorcycle{}, err
	}
	if m.Status != StatusStopped {
		return Motorcycle{}, fmt.Errorf("motorcycle is already %s: %w", m.Status, httpx.ErrValidation)
	}
	m.Status = StatusRunning
	return s.repo.UpdateMotorcycle(ctx, m)
}

// Stop turns the engine off from Running or Driving.
func (s *Service) Stop(ctx context.Context, id int64) (Motorcycle, error) {
	m, err := s.repo.GetMotorcycle(ctx, id)
	if err != nil {
		return Motorcycle{}, err
	}
	if m.Status == StatusStopped {
		return Motorcycle{}, fmt.Errorf("motorcycle is already stopped: %w", httpx.ErrValidation)
	}
	m.Status = StatusStopped
	return s.repo.UpdateMotorcycle(ctx, m)
}

// Drive covers the requested distance. The engine must be running and the
// tank must hold enough gas for the whole trip; gas is burned at the
// per-kilometre consumption rate and the status moves to Driving.
func (s *Service) Drive(ctx context.Context, id int64, kilometres float64) (Motorcycle, error) {
	if kilometres <= 0 {
		return Motorcycle{}, fmt.Errorf("distance must be positive: %w", httpx.ErrValidation)
	}
	m, err := s.repo.GetMotorcycle(ctx, id)
	if err != nil {
		return Motorcycle{}, err
	}
	if m.Status != StatusRunning {
		return Motorcycle{}, fmt.Errorf("motorcycle must be running to drive: %w", httpx.ErrValidation)
	}
	needed := kilometres * m.ConsumptionPerKM
	if needed > m.Gas {
		return Motorcycle{}, fmt.Errorf("not enough gas for %.1f km: %w", kilometres, httpx.ErrValidation)
	}
	m.Gas -= needed
	m.Status = StatusDriving
	return s.repo.UpdateMotorcycle(ctx, m)
}

// Refuel adds gas to the tank. Amount must be strictly positive.
func (s *Service) Refuel(ctx context.Context, id int64, amount float64) (Motorcycle, error) {
	if amount <= 0 {
		return Motorcycle{}, fmt.Errorf("refuel amount must be positive: %w", httpx.ErrValidation)
	}
	m, err := s.repo.GetMotorcycle(ctx, id)
	if err != nil {
		return Motorcycle{}, err
	}
	m.Gas += amount
	return s.repo.UpdateMotorcycle(ctx, m)
}
