package models

import "time"

type RentalRequest struct {
	ID                  string        `json:"id"`
	MachineryID         string        `json:"machinery_id"`
	MachineryName       string        `json:"machinery_name"`
	FarmerEmail         string        `json:"farmer_email"`
	FarmerName          string        `json:"farmer_name"`
	FarmerPhone         string        `json:"farmer_phone"`
	ProviderEmail       string        `json:"provider_email"`
	ProviderName        string        `json:"provider_name"`
	StartDate           time.Time     `json:"start_date"`
	EndDate             time.Time     `json:"end_date"`
	TotalDays           int           `json:"total_days"`
	DailyRate           int64         `json:"daily_rate"`
	TotalPrice          int64         `json:"total_price"`
	FuelIncluded        bool          `json:"fuel_included"`
	FuelPaidBy          FuelPayer     `json:"fuel_paid_by,omitempty"`
	FuelCostPerDay      int64         `json:"fuel_cost_per_day"`
	EstimatedFuelCost   int64         `json:"estimated_fuel_cost"`
	Status              RequestStatus `json:"status"`
	FarmerConfirmedAt   time.Time     `json:"farmer_confirmed_at"`
	ProviderConfirmedAt *time.Time    `json:"provider_confirmed_at,omitempty"`
	AgreementID         string        `json:"agreement_id,omitempty"`
	DisputeReported     bool          `json:"dispute_reported"`
	DisputeDetails      string        `json:"dispute_details,omitempty"`
	CreatedAt           time.Time     `json:"created_at"`
	UpdatedAt           time.Time     `json:"updated_at"`
	Version             int64         `json:"version"`
}

// IsParty reports whether email is the farmer or the provider of the request.
func (r *RentalRequest) IsParty(email string) bool {
	return email != "" && (email == r.FarmerEmail || email == r.ProviderEmail)
}

// Clone returns a copy that shares no pointers with r.
func (r *RentalRequest) Clone() *RentalRequest {
	c := *r
	if r.ProviderConfirmedAt != nil {
		t := *r.ProviderConfirmedAt
		c.ProviderConfirmedAt = &t
	}
	return &c
}

// NewerThan orders two versions of the same request: higher version first,
// then later update time.
func (r *RentalRequest) NewerThan(other *RentalRequest) bool {
	if r.Version != other.Version {
		return r.Version > other.Version
	}
	return r.UpdatedAt.After(other.UpdatedAt)
}
