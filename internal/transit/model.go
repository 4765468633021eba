package transit

import (
	"time"

	"github.com/shopspring/decimal"
)

// Route describes a fare-bearing transit route. The fare amount stored here is
// the authoritative charge for driver-collected payments.
type Route struct {
	ID                string
	Code              string
	Name              string
	Origin            string
	Destination       string
	FareAmount        decimal.Decimal
	AssignedDriverIDs []string
	Active            bool
	CreatedAt         time.Time
}

// HasDriver reports whether the driver is assigned to this route.
func (r Route) HasDriver(driverID string) bool {
	for _, id := range r.AssignedDriverIDs {
		if id == driverID {
			return true
		}
	}
	return false
}
