package motorcycles

import "time"

// Vehicle statuses stored as plain text in the motorcycles table.
const (
	StatusStopped = "Stopped"
	StatusRunning = "Running"
	StatusDriving = "Driving"
)

// Motorcycle represents a simulated motorcycle with a fuel tank.
type Motorcycle struct {
	ID               int64     `json:"id"`
	Name             string    `json:"name"`
	Status           string    `json:"status"`
	Gas              float64   `json:"gas"`
	ConsumptionPerKM float64   `json:"consumptionPerKm"`
	CreatedAt        time.Time `json:"-"`
	UpdatedAt        time.Time `json:"-"`
}
