// Package pricing computes rental duration, price and fuel allocation.
// Every function is pure so the display layer can recompute totals freely.
package pricing

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"farmrent/internal/domain"
	"farmrent/internal/models"
)

const day = 24 * time.Hour

// Params holds the fuel constants. Zero fields fall back to the defaults.
type Params struct {
	UnitFuelPrice          int64
	FallbackFuelCostPerDay int64
}

func DefaultParams() Params {
	return Params{
		UnitFuelPrice:          models.DefaultUnitFuelPrice,
		FallbackFuelCostPerDay: models.DefaultFallbackFuelCostPerDay,
	}
}

func (p Params) withDefaults() Params {
	if p.UnitFuelPrice <= 0 {
		p.UnitFuelPrice = models.DefaultUnitFuelPrice
	}
	if p.FallbackFuelCostPerDay <= 0 {
		p.FallbackFuelCostPerDay = models.DefaultFallbackFuelCostPerDay
	}
	return p
}

// TotalDays returns the inclusive number of calendar days between start and end.
func TotalDays(start, end time.Time) (int, error) {
	if start.IsZero() {
		return 0, domain.NewValidationError("start_date", "required")
	}
	if end.IsZero() {
		return 0, domain.NewValidationError("end_date", "required")
	}
	s, e := models.CalendarDate(start), models.CalendarDate(end)
	if e.Before(s) {
		return 0, domain.NewValidationError("end_date", "must not precede start_date")
	}
	return int(e.Sub(s)/day) + 1, nil
}

// TotalPrice is days × dailyRate, exact.
func TotalPrice(days int, dailyRate int64) int64 {
	return int64(days) * dailyRate
}

var leadingNumber = regexp.MustCompile(`^\s*([0-9]+(?:\.[0-9]+)?)`)

// FuelConsumption extracts the per-day consumption figure from a listing's
// specifications, e.g. "8 L/day" -> 8.
func FuelConsumption(specs map[string]string) (float64, bool) {
	raw, ok := specs[models.SpecFuelConsumption]
	if !ok {
		return 0, false
	}
	m := leadingNumber.FindStringSubmatch(strings.ReplaceAll(raw, ",", "."))
	if m == nil {
		return 0, false
	}
	v, err := strconv.ParseFloat(m[1], 64)
	if err != nil || v <= 0 {
		return 0, false
	}
	return v, true
}

// FuelCostPerDay is consumption × unit price, or the fallback when the
// listing does not state a consumption.
func FuelCostPerDay(specs map[string]string, p Params) int64 {
	p = p.withDefaults()
	consumption, ok := FuelConsumption(specs)
	if !ok {
		return p.FallbackFuelCostPerDay
	}
	return int64(math.Round(consumption * float64(p.UnitFuelPrice)))
}

// EstimatedFuelCost is perDay × days when fuel is included, otherwise 0.
func EstimatedFuelCost(included bool, perDay int64, days int) int64 {
	if !included {
		return 0
	}
	return perDay * int64(days)
}

// Split is the fuel cost each party carries.
type Split struct {
	Farmer   int64 `json:"farmer"`
	Provider int64 `json:"provider"`
}

// SplitFuel allocates total between the parties. For shared fuel the provider
// pays the floor of half and the farmer pays the remainder, so the two shares
// always add up to total.
func SplitFuel(total int64, payer models.FuelPayer) Split {
	switch payer {
	case models.FuelPaidByProvider:
		return Split{Provider: total}
	case models.FuelPaidByShared:
		provider := total / 2
		return Split{Farmer: total - provider, Provider: provider}
	default:
		return Split{Farmer: total}
	}
}

// Input is everything a quote depends on.
type Input struct {
	Start          time.Time
	End            time.Time
	DailyRate      int64
	FuelIncluded   bool
	FuelPaidBy     models.FuelPayer
	Specifications map[string]string
}

type Quote struct {
	TotalDays         int              `json:"total_days"`
	DailyRate         int64            `json:"daily_rate"`
	TotalPrice        int64            `json:"total_price"`
	FuelIncluded      bool             `json:"fuel_included"`
	FuelPaidBy        models.FuelPayer `json:"fuel_paid_by,omitempty"`
	FuelCostPerDay    int64            `json:"fuel_cost_per_day"`
	EstimatedFuelCost int64            `json:"estimated_fuel_cost"`
	FuelSplit         Split            `json:"fuel_split"`
}

// Calculate prices a rental. It fails only on invalid input.
func Calculate(in Input, p Params) (Quote, error) {
	if in.DailyRate < 0 {
		return Quote{}, domain.NewValidationError("daily_rate", "must not be negative")
	}
	days, err := TotalDays(in.Start, in.End)
	if err != nil {
		return Quote{}, err
	}

	q := Quote{
		TotalDays:    days,
		DailyRate:    in.DailyRate,
		TotalPrice:   TotalPrice(days, in.DailyRate),
		FuelIncluded: in.FuelIncluded,
	}
	if !in.FuelIncluded {
		return q, nil
	}

	payer := in.FuelPaidBy
	if payer == "" {
		payer = models.FuelPaidByFarmer
	}
	if !payer.Valid() {
		return Quote{}, domain.NewValidationError("fuel_paid_by", "must be farmer, provider or shared")
	}
	q.FuelPaidBy = payer
	q.FuelCostPerDay = FuelCostPerDay(in.Specifications, p)
	q.EstimatedFuelCost = EstimatedFuelCost(true, q.FuelCostPerDay, days)
	q.FuelSplit = SplitFuel(q.EstimatedFuelCost, payer)
	return q, nil
}

// ForRequest recomputes the quote of a stored request from its own fields.
func ForRequest(req *models.RentalRequest) Quote {
	q := Quote{
		TotalDays:    req.TotalDays,
		DailyRate:    req.DailyRate,
		TotalPrice:   TotalPrice(req.TotalDays, req.DailyRate),
		FuelIncluded: req.FuelIncluded,
	}
	if req.FuelIncluded {
		q.FuelPaidBy = req.FuelPaidBy
		q.FuelCostPerDay = req.FuelCostPerDay
		q.EstimatedFuelCost = EstimatedFuelCost(true, req.FuelCostPerDay, req.TotalDays)
		q.FuelSplit = SplitFuel(q.EstimatedFuelCost, req.FuelPaidBy)
	}
	return q
}

// Consistent reports whether the stored totals of req match the formula.
func Consistent(req *models.RentalRequest) bool {
	q := ForRequest(req)
	return q.TotalPrice == req.TotalPrice && q.EstimatedFuelCost == req.EstimatedFuelCost
}
