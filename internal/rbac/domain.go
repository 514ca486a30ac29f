package rbac

import "time"

// Permission is a named capability. The recognized vocabulary is closed so
// policy checks are exhaustive at compile time; the store still persists
// arbitrary names, which are carried in tokens but never match a guard.
type Permission string

const (
	PermManageUsers       Permission = "ManageUsers"
	PermManageRoles       Permission = "ManageRoles"
	PermManageCars        Permission = "ManageCars"
	PermStartCar          Permission = "StartCar"
	PermStopCar           Permission = "StopCar"
	PermGetCarStatus      Permission = "GetCarStatus"
	PermManageMotorcycles Permission = "ManageMotorcycles"
	PermStartMotorcycle   Permission = "StartMotorcycle"
	PermStopMotorcycle    Permission = "StopMotorcycle"
	PermDriveMotorcycle   Permission = "DriveMotorcycle"
)

// String returns the permission name as stored and claimed.
func (p Permission) String() string { return string(p) }

// Vocabulary lists every recognized permission name.
func Vocabulary() []Permission {
	return []Permission{
		PermManageUsers,
		PermManageRoles,
		PermManageCars,
		PermStartCar,
		PermStopCar,
		PermGetCarStatus,
		PermManageMotorcycles,
		PermStartMotorcycle,
		PermStopMotorcycle,
		PermDriveMotorcycle,
	}
}

// Built-in role names.
const (
	RoleAdmin = "Admin"
	RoleUser  = "User"
)

// SeedPolicy is the desired role-to-permission assignment reconciled on
// every startup. Admin manages the RBAC graph and vehicle fleet; User
// operates vehicles. Admin deliberately lacks the operation permissions.
func SeedPolicy() map[string][]Permission {
	return map[string][]Permission{
		RoleAdmin: {
			PermManageUsers,
			PermManageRoles,
			PermManageCars,
			PermManageMotorcycles,
		},
		RoleUser: {
			PermStartCar,
			PermStopCar,
			PermGetCarStatus,
			PermStartMotorcycle,
			PermStopMotorcycle,
			PermDriveMotorcycle,
		},
	}
}

// PermissionRecord is a stored permission row.
type PermissionRecord struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"-"`
}
