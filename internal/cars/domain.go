package cars

import "time"

// Vehicle statuses stored as plain text in the cars table.
const (
	StatusStopped = "Stopped"
	StatusRunning = "Running"
)

// Car represents a simulated car with a fuel tank.
type Car struct {
	ID               int64     `json:"id"`
	Name             string    `json:"name"`
	Status           string    `json:"status"`
	Gas              float64   `json:"gas"`
	ConsumptionPerKM float64   `json:"consumptionPerKm"`
	CreatedAt        time.Time `json:"-"`
	UpdatedAt        time.Time `json:"-"`
}
