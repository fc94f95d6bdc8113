package models

// RequestStatus is the lifecycle state of a rental request.
type RequestStatus string

const (
	StatusPending   RequestStatus = "pending"
	StatusConfirmed RequestStatus = "confirmed"
	StatusRejected  RequestStatus = "rejected"
	StatusCompleted RequestStatus = "completed"
	StatusCancelled RequestStatus = "cancelled"
)

// FuelPayer names the party that covers the fuel cost.
type FuelPayer string

const (
	FuelPaidByFarmer   FuelPayer = "farmer"
	FuelPaidByProvider FuelPayer = "provider"
	FuelPaidByShared   FuelPayer = "shared"
)

// MachineryStatus is the provider-controlled availability of a listing.
type MachineryStatus string

const (
	MachineryAvailable   MachineryStatus = "available"
	MachineryRented      MachineryStatus = "rented"
	MachineryMaintenance MachineryStatus = "maintenance"
)

// Role of a user profile.
type Role string

const (
	RoleFarmer   Role = "farmer"
	RoleProvider Role = "provider"
)

const (
	// DateLayout is the wire and storage format of rental dates.
	DateLayout = "2006-01-02"

	// SpecFuelConsumption is the specification key holding fuel use per day, e.g. "8 L/day".
	SpecFuelConsumption = "fuelConsumption"

	// DefaultUnitFuelPrice price of one unit of fuel.
	DefaultUnitFuelPrice = 100

	// DefaultFallbackFuelCostPerDay used when a listing has no fuel consumption figure.
	DefaultFallbackFuelCostPerDay = 500

	// DefaultAgreementPrefix prefix of minted agreement identifiers.
	DefaultAgreementPrefix = "KR"

	// MaxDisputeDetailsLength caps free text stored with a dispute.
	MaxDisputeDetailsLength = 2000
)

// Valid reports whether s is one of the five lifecycle states.
func (s RequestStatus) Valid() bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusRejected, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

// Terminal reports whether no further transition is allowed from s.
func (s RequestStatus) Terminal() bool {
	return s == StatusRejected || s == StatusCompleted || s == StatusCancelled
}

func (p FuelPayer) Valid() bool {
	switch p {
	case FuelPaidByFarmer, FuelPaidByProvider, FuelPaidByShared:
		return true
	}
	return false
}

func (s MachineryStatus) Valid() bool {
	switch s {
	case MachineryAvailable, MachineryRented, MachineryMaintenance:
		return true
	}
	return false
}

func (r Role) Valid() bool {
	return r == RoleFarmer || r == RoleProvider
}
