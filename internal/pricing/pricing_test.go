package pricing

import (
	"testing"
	"time"

	"farmrent/internal/domain"
	"farmrent/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func date(t *testing.T, s string) time.Time {
	t.Helper()
	d, err := models.ParseDate(s)
	require.NoError(t, err)
	return d
}

func TestTotalDays(t *testing.T) {
	tests := []struct {
		name  string
		start string
		end   string
		want  int
	}{
		{"same day", "2025-06-01", "2025-06-01", 1},
		{"three days", "2025-06-01", "2025-06-03", 3},
		{"month boundary", "2025-01-30", "2025-02-02", 4},
		{"leap day", "2024-02-28", "2024-03-01", 3},
		{"year boundary", "2024-12-31", "2025-01-01", 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			start, end := date(t, tt.start), date(t, tt.end)
			got, err := TotalDays(start, end)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, int(end.Sub(start).Hours()/24)+1, got)
		})
	}

	t.Run("ClockTimeIgnored", func(t *testing.T) {
		start := time.Date(2025, 6, 1, 22, 0, 0, 0, time.UTC)
		end := time.Date(2025, 6, 2, 1, 0, 0, 0, time.UTC)
		got, err := TotalDays(start, end)
		require.NoError(t, err)
		assert.Equal(t, 2, got)
	})

	t.Run("EndBeforeStart", func(t *testing.T) {
		_, err := TotalDays(date(t, "2025-06-03"), date(t, "2025-06-01"))
		assert.ErrorIs(t, err, domain.ErrValidation)
	})

	t.Run("Missing", func(t *testing.T) {
		_, err := TotalDays(time.Time{}, date(t, "2025-06-01"))
		assert.ErrorIs(t, err, domain.ErrValidation)
		_, err = TotalDays(date(t, "2025-06-01"), time.Time{})
		assert.ErrorIs(t, err, domain.ErrValidation)
	})
}

func TestTotalPrice(t *testing.T) {
	for days := 1; days <= 60; days++ {
		for _, rate := range []int64{0, 1, 999, 2500, 123457} {
			assert.Equal(t, int64(days)*rate, TotalPrice(days, rate))
		}
	}
}

func TestFuelCostPerDay(t *testing.T) {
	p := DefaultParams()

	tests := []struct {
		name  string
		specs map[string]string
		want  int64
	}{
		{"litres per day", map[string]string{"fuelConsumption": "8 L/day"}, 800},
		{"bare number", map[string]string{"fuelConsumption": "12"}, 1200},
		{"decimal", map[string]string{"fuelConsumption": "6.5 litres"}, 650},
		{"decimal comma", map[string]string{"fuelConsumption": "6,5 L"}, 650},
		{"missing", map[string]string{"power": "45 HP"}, 500},
		{"nil specs", nil, 500},
		{"unparseable", map[string]string{"fuelConsumption": "varies"}, 500},
		{"zero", map[string]string{"fuelConsumption": "0"}, 500},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FuelCostPerDay(tt.specs, p))
		})
	}

	t.Run("CustomParams", func(t *testing.T) {
		custom := Params{UnitFuelPrice: 90, FallbackFuelCostPerDay: 300}
		assert.Equal(t, int64(720), FuelCostPerDay(map[string]string{"fuelConsumption": "8"}, custom))
		assert.Equal(t, int64(300), FuelCostPerDay(nil, custom))
	})

	t.Run("ZeroParamsUseDefaults", func(t *testing.T) {
		assert.Equal(t, int64(800), FuelCostPerDay(map[string]string{"fuelConsumption": "8"}, Params{}))
	})
}

func TestSplitFuel(t *testing.T) {
	assert.Equal(t, Split{Farmer: 2400}, SplitFuel(2400, models.FuelPaidByFarmer))
	assert.Equal(t, Split{Provider: 2400}, SplitFuel(2400, models.FuelPaidByProvider))
	assert.Equal(t, Split{Farmer: 1200, Provider: 1200}, SplitFuel(2400, models.FuelPaidByShared))
	assert.Equal(t, Split{Farmer: 1201, Provider: 1200}, SplitFuel(2401, models.FuelPaidByShared))

	for total := int64(0); total < 500; total++ {
		s := SplitFuel(total, models.FuelPaidByShared)
		assert.Equal(t, total, s.Farmer+s.Provider)
		assert.LessOrEqual(t, s.Farmer-s.Provider, int64(1))
		assert.InDelta(t, float64(total), float64(s.Provider*2), 1)
	}
}

func TestCalculate(t *testing.T) {
	p := DefaultParams()

	t.Run("ScenarioA", func(t *testing.T) {
		q, err := Calculate(Input{
			Start:     date(t, "2025-06-01"),
			End:       date(t, "2025-06-03"),
			DailyRate: 2500,
		}, p)
		require.NoError(t, err)
		assert.Equal(t, 3, q.TotalDays)
		assert.Equal(t, int64(7500), q.TotalPrice)
		assert.Equal(t, int64(0), q.EstimatedFuelCost)
		assert.Equal(t, Split{}, q.FuelSplit)
	})

	t.Run("ScenarioD", func(t *testing.T) {
		q, err := Calculate(Input{
			Start:          date(t, "2025-06-01"),
			End:            date(t, "2025-06-03"),
			DailyRate:      2500,
			FuelIncluded:   true,
			FuelPaidBy:     models.FuelPaidByShared,
			Specifications: map[string]string{"fuelConsumption": "8 L/day"},
		}, p)
		require.NoError(t, err)
		assert.Equal(t, int64(800), q.FuelCostPerDay)
		assert.Equal(t, int64(2400), q.EstimatedFuelCost)
		assert.Equal(t, int64(1200), q.FuelSplit.Farmer)
		assert.Equal(t, int64(1200), q.FuelSplit.Provider)
	})

	t.Run("FuelPayerDefaultsToFarmer", func(t *testing.T) {
		q, err := Calculate(Input{
			Start:        date(t, "2025-06-01"),
			End:          date(t, "2025-06-01"),
			DailyRate:    1000,
			FuelIncluded: true,
		}, p)
		require.NoError(t, err)
		assert.Equal(t, models.FuelPaidByFarmer, q.FuelPaidBy)
		assert.Equal(t, int64(500), q.FuelSplit.Farmer)
	})

	t.Run("InvalidPayer", func(t *testing.T) {
		_, err := Calculate(Input{
			Start:        date(t, "2025-06-01"),
			End:          date(t, "2025-06-01"),
			FuelIncluded: true,
			FuelPaidBy:   "neighbour",
		}, p)
		assert.ErrorIs(t, err, domain.ErrValidation)
	})

	t.Run("NegativeRate", func(t *testing.T) {
		_, err := Calculate(Input{Start: date(t, "2025-06-01"), End: date(t, "2025-06-01"), DailyRate: -1}, p)
		assert.ErrorIs(t, err, domain.ErrValidation)
	})

	t.Run("Deterministic", func(t *testing.T) {
		in := Input{
			Start: date(t, "2025-06-01"), End: date(t, "2025-06-09"), DailyRate: 1750,
			FuelIncluded: true, FuelPaidBy: models.FuelPaidByShared,
			Specifications: map[string]string{"fuelConsumption": "7.3"},
		}
		a, err := Calculate(in, p)
		require.NoError(t, err)
		b, err := Calculate(in, p)
		require.NoError(t, err)
		assert.Equal(t, a, b)
	})
}

func TestForRequestAndConsistent(t *testing.T) {
	req := &models.RentalRequest{
		TotalDays:         3,
		DailyRate:         2500,
		TotalPrice:        7500,
		FuelIncluded:      true,
		FuelPaidBy:        models.FuelPaidByShared,
		FuelCostPerDay:    800,
		EstimatedFuelCost: 2400,
	}
	q := ForRequest(req)
	assert.Equal(t, int64(7500), q.TotalPrice)
	assert.Equal(t, Split{Farmer: 1200, Provider: 1200}, q.FuelSplit)
	assert.True(t, Consistent(req))

	req.TotalPrice = 7000
	assert.False(t, Consistent(req))
}

func TestFormatAmount(t *testing.T) {
	assert.Equal(t, "₹0", FormatAmount(0))
	assert.Equal(t, "₹999", FormatAmount(999))
	assert.Equal(t, "₹7,500", FormatAmount(7500))
	assert.Equal(t, "₹1,25,000", FormatAmount(125000))
	assert.Equal(t, "₹12,34,56,789", FormatAmount(123456789))
	assert.Equal(t, "-₹2,400", FormatAmount(-2400))
}
