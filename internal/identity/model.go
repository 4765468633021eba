package identity

import "time"

// Roles an account can hold. Drivers collect fares; riders hold balance.
const (
	RoleRider  = "rider"
	RoleDriver = "driver"
)

// Account represents a registered rider or driver.
type Account struct {
	ID            string
	Name          string
	Email         string
	Role          string
	PasswordHash  []byte
	QRToken       string
	LicenseNumber string
	CreatedAt     time.Time
}

// Credentials carries a login or registration request.
type Credentials struct {
	Name          string
	Email         string
	Password      string
	Role          string
	LicenseNumber string
}
