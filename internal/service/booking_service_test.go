package service

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"farmrent/internal/agreement"
	"farmrent/internal/domain"
	"farmrent/internal/events"
	"farmrent/internal/models"
	"farmrent/internal/pricing"
	"farmrent/internal/repository"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var (
	testNow  = time.Date(2025, 6, 1, 9, 30, 0, 0, time.UTC)
	farmer   = models.Identity{Email: "ravi@example.com", Name: "Ravi", Phone: "98450 11111"}
	provider = models.Identity{Email: "suresh@example.com", Name: "Suresh"}
	stranger = models.Identity{Email: "meena@example.com", Name: "Meena"}
)

func tractor() *models.Machinery {
	return &models.Machinery{
		ID:             "tractor-1",
		Name:           "Mahindra 575 DI",
		OwnerEmail:     provider.Email,
		OwnerName:      provider.Name,
		DailyRate:      2500,
		Status:         models.MachineryAvailable,
		Specifications: map[string]string{models.SpecFuelConsumption: "8 L/day"},
	}
}

type bookingFixture struct {
	svc       *BookingService
	store     *mockRequestStore
	catalog   *mockCatalog
	publisher *mockPublisher
}

func newBookingFixture() *bookingFixture {
	logger := zerolog.New(io.Discard)
	f := &bookingFixture{
		store:     new(mockRequestStore),
		catalog:   new(mockCatalog),
		publisher: new(mockPublisher),
	}
	f.svc = NewBookingService(f.store, f.catalog, f.publisher, fixedIssuer{id: "KR-2025-06-01-ABCD1234"}, pricing.DefaultParams(), &logger)
	f.svc.now = func() time.Time { return testNow }
	f.svc.newID = func() string { return "req-1" }
	return f
}

func pendingRequest() *models.RentalRequest {
	return &models.RentalRequest{
		ID:                "req-1",
		MachineryID:       "tractor-1",
		MachineryName:     "Mahindra 575 DI",
		FarmerEmail:       farmer.Email,
		FarmerName:        farmer.Name,
		ProviderEmail:     provider.Email,
		ProviderName:      provider.Name,
		StartDate:         time.Date(2025, 6, 10, 0, 0, 0, 0, time.UTC),
		EndDate:           time.Date(2025, 6, 12, 0, 0, 0, 0, time.UTC),
		TotalDays:         3,
		DailyRate:         2500,
		TotalPrice:        7500,
		Status:            models.StatusPending,
		FarmerConfirmedAt: testNow.Add(-time.Hour),
		CreatedAt:         testNow.Add(-time.Hour),
		UpdatedAt:         testNow.Add(-time.Hour),
		Version:           1,
	}
}

func withStatus(r *models.RentalRequest, s models.RequestStatus, version int64) *models.RentalRequest {
	r.Status = s
	r.Version = version
	if s != models.StatusPending && s != models.StatusRejected {
		at := testNow.Add(-30 * time.Minute)
		r.ProviderConfirmedAt = &at
		r.AgreementID = "KR-2025-06-01-ZZZZ9999"
	}
	return r
}

func TestBookingService_Create(t *testing.T) {
	ctx := context.Background()

	t.Run("WithoutFuel", func(t *testing.T) {
		f := newBookingFixture()
		f.catalog.On("GetMachinery", ctx, "tractor-1").Return(tractor(), nil).Once()
		f.store.On("CreateRequest", ctx, mock.AnythingOfType("*models.RentalRequest")).Return(nil).Once()
		f.publisher.On("PublishRequest", ctx, events.EventRequestCreated, mock.AnythingOfType("*models.RentalRequest")).Return(nil).Once()

		req, err := f.svc.Create(ctx, domain.RequestDraft{
			MachineryID: "tractor-1",
			StartDate:   "2025-06-10",
			EndDate:     "2025-06-12",
		}, farmer)
		require.NoError(t, err)

		assert.Equal(t, "req-1", req.ID)
		assert.Equal(t, models.StatusPending, req.Status)
		assert.Equal(t, 3, req.TotalDays)
		assert.Equal(t, int64(7500), req.TotalPrice)
		assert.Equal(t, int64(0), req.EstimatedFuelCost)
		assert.False(t, req.FuelIncluded)
		assert.Empty(t, req.FuelPaidBy, "no payer without fuel")
		assert.Equal(t, provider.Email, req.ProviderEmail)
		assert.Equal(t, farmer.Phone, req.FarmerPhone)
		assert.Equal(t, testNow, req.FarmerConfirmedAt)
		assert.Nil(t, req.ProviderConfirmedAt)
		assert.Empty(t, req.AgreementID)
		assert.Equal(t, int64(1), req.Version)
		assert.True(t, pricing.Consistent(req))

		f.store.AssertExpectations(t)
		f.publisher.AssertExpectations(t)
	})

	t.Run("SharedFuel", func(t *testing.T) {
		f := newBookingFixture()
		f.catalog.On("GetMachinery", ctx, "tractor-1").Return(tractor(), nil).Once()
		f.store.On("CreateRequest", ctx, mock.Anything).Return(nil).Once()
		f.publisher.On("PublishRequest", ctx, events.EventRequestCreated, mock.Anything).Return(nil).Once()

		req, err := f.svc.Create(ctx, domain.RequestDraft{
			MachineryID:  "tractor-1",
			StartDate:    "2025-06-10",
			EndDate:      "2025-06-12",
			FuelIncluded: true,
			FuelPaidBy:   models.FuelPaidByShared,
		}, farmer)
		require.NoError(t, err)

		assert.Equal(t, int64(800), req.FuelCostPerDay)
		assert.Equal(t, int64(2400), req.EstimatedFuelCost)
		split := pricing.ForRequest(req).FuelSplit
		assert.Equal(t, int64(1200), split.Farmer)
		assert.Equal(t, int64(1200), split.Provider)
	})

	t.Run("DefaultPayer", func(t *testing.T) {
		f := newBookingFixture()
		f.catalog.On("GetMachinery", ctx, "tractor-1").Return(tractor(), nil).Once()
		f.store.On("CreateRequest", ctx, mock.Anything).Return(nil).Once()
		f.publisher.On("PublishRequest", ctx, mock.Anything, mock.Anything).Return(nil).Once()

		req, err := f.svc.Create(ctx, domain.RequestDraft{
			MachineryID: "tractor-1", StartDate: "2025-06-10", EndDate: "2025-06-10", FuelIncluded: true,
		}, farmer)
		require.NoError(t, err)
		assert.Equal(t, models.FuelPaidByFarmer, req.FuelPaidBy)
		assert.Equal(t, 1, req.TotalDays)
	})

	t.Run("ValidationFailuresWriteNothing", func(t *testing.T) {
		maintenance := tractor()
		maintenance.Status = models.MachineryMaintenance

		cases := []struct {
			name  string
			draft domain.RequestDraft
			who   models.Identity
			setup func(*bookingFixture)
		}{
			{name: "no identity", draft: domain.RequestDraft{MachineryID: "tractor-1", StartDate: "2025-06-10", EndDate: "2025-06-12"}},
			{name: "no machinery", draft: domain.RequestDraft{StartDate: "2025-06-10", EndDate: "2025-06-12"}, who: farmer},
			{name: "no start", draft: domain.RequestDraft{MachineryID: "tractor-1", EndDate: "2025-06-12"}, who: farmer},
			{name: "bad end", draft: domain.RequestDraft{MachineryID: "tractor-1", StartDate: "2025-06-10", EndDate: "12/06/2025"}, who: farmer},
			{
				name:  "end before start",
				draft: domain.RequestDraft{MachineryID: "tractor-1", StartDate: "2025-06-12", EndDate: "2025-06-10"},
				who:   farmer,
				setup: func(f *bookingFixture) { f.catalog.On("GetMachinery", ctx, "tractor-1").Return(tractor(), nil) },
			},
			{
				name:  "invalid payer",
				draft: domain.RequestDraft{MachineryID: "tractor-1", StartDate: "2025-06-10", EndDate: "2025-06-12", FuelIncluded: true, FuelPaidBy: "bank"},
				who:   farmer,
				setup: func(f *bookingFixture) { f.catalog.On("GetMachinery", ctx, "tractor-1").Return(tractor(), nil) },
			},
			{
				name:  "maintenance",
				draft: domain.RequestDraft{MachineryID: "tractor-1", StartDate: "2025-06-10", EndDate: "2025-06-12"},
				who:   farmer,
				setup: func(f *bookingFixture) { f.catalog.On("GetMachinery", ctx, "tractor-1").Return(maintenance, nil) },
			},
		}
		for _, tc := range cases {
			t.Run(tc.name, func(t *testing.T) {
				f := newBookingFixture()
				if tc.setup != nil {
					tc.setup(f)
				}
				_, err := f.svc.Create(ctx, tc.draft, tc.who)
				assert.ErrorIs(t, err, domain.ErrValidation)
				f.store.AssertNotCalled(t, "CreateRequest", mock.Anything, mock.Anything)
				f.publisher.AssertNotCalled(t, "PublishRequest", mock.Anything, mock.Anything, mock.Anything)
			})
		}
	})

	t.Run("UnknownMachinery", func(t *testing.T) {
		f := newBookingFixture()
		f.catalog.On("GetMachinery", ctx, "ghost").Return(nil, domain.NewNotFoundError("machinery", "ghost")).Once()

		_, err := f.svc.Create(ctx, domain.RequestDraft{MachineryID: "ghost", StartDate: "2025-06-10", EndDate: "2025-06-12"}, farmer)
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("PersistenceFailurePublishesNothing", func(t *testing.T) {
		f := newBookingFixture()
		f.catalog.On("GetMachinery", ctx, "tractor-1").Return(tractor(), nil).Once()
		f.store.On("CreateRequest", ctx, mock.Anything).Return(domain.NewPersistenceError("create request", errors.New("disk full"))).Once()

		_, err := f.svc.Create(ctx, domain.RequestDraft{MachineryID: "tractor-1", StartDate: "2025-06-10", EndDate: "2025-06-12"}, farmer)
		assert.ErrorIs(t, err, domain.ErrPersistence)
		f.publisher.AssertNotCalled(t, "PublishRequest", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("PublishFailureIsNotReturned", func(t *testing.T) {
		f := newBookingFixture()
		f.catalog.On("GetMachinery", ctx, "tractor-1").Return(tractor(), nil).Once()
		f.store.On("CreateRequest", ctx, mock.Anything).Return(nil).Once()
		f.publisher.On("PublishRequest", ctx, mock.Anything, mock.Anything).Return(errors.New("redis down")).Once()

		req, err := f.svc.Create(ctx, domain.RequestDraft{MachineryID: "tractor-1", StartDate: "2025-06-10", EndDate: "2025-06-12"}, farmer)
		require.NoError(t, err)
		assert.Equal(t, models.StatusPending, req.Status)
	})
}

func TestBookingService_Accept(t *testing.T) {
	ctx := context.Background()

	t.Run("PendingToConfirmed", func(t *testing.T) {
		f := newBookingFixture()
		f.store.On("GetRequest", ctx, "req-1").Return(pendingRequest(), nil).Once()
		f.store.On("UpdateRequestWithVersion", ctx, mock.MatchedBy(func(r *models.RentalRequest) bool {
			return r.Status == models.StatusConfirmed && r.AgreementID != ""
		}), int64(1)).Return(nil).Once()
		f.publisher.On("PublishRequest", ctx, events.EventRequestAccepted, mock.Anything).Return(nil).Once()

		req, err := f.svc.Accept(ctx, "req-1", provider)
		require.NoError(t, err)

		assert.Equal(t, models.StatusConfirmed, req.Status)
		assert.Equal(t, "KR-2025-06-01-ABCD1234", req.AgreementID)
		require.NotNil(t, req.ProviderConfirmedAt)
		assert.Equal(t, testNow, *req.ProviderConfirmedAt)
		assert.Equal(t, testNow, req.UpdatedAt)
		assert.Equal(t, int64(2), req.Version)
		f.store.AssertExpectations(t)
		f.publisher.AssertExpectations(t)
	})

	t.Run("OnlyProvider", func(t *testing.T) {
		for _, who := range []models.Identity{farmer, stranger} {
			f := newBookingFixture()
			f.store.On("GetRequest", ctx, "req-1").Return(pendingRequest(), nil).Once()

			_, err := f.svc.Accept(ctx, "req-1", who)
			assert.ErrorIs(t, err, domain.ErrForbidden)
			f.store.AssertNotCalled(t, "UpdateRequestWithVersion", mock.Anything, mock.Anything, mock.Anything)
		}
	})

	t.Run("NotFromTerminalOrConfirmed", func(t *testing.T) {
		for _, status := range []models.RequestStatus{models.StatusConfirmed, models.StatusRejected, models.StatusCompleted, models.StatusCancelled} {
			f := newBookingFixture()
			f.store.On("GetRequest", ctx, "req-1").Return(withStatus(pendingRequest(), status, 2), nil).Once()

			_, err := f.svc.Accept(ctx, "req-1", provider)
			var te *domain.InvalidTransitionError
			require.ErrorAs(t, err, &te, "status %s", status)
			assert.Equal(t, string(status), te.From)
			f.publisher.AssertNotCalled(t, "PublishRequest", mock.Anything, mock.Anything, mock.Anything)
		}
	})

	t.Run("ConcurrentModification", func(t *testing.T) {
		f := newBookingFixture()
		f.store.On("GetRequest", ctx, "req-1").Return(pendingRequest(), nil).Once()
		f.store.On("UpdateRequestWithVersion", ctx, mock.Anything, int64(1)).Return(domain.ErrConcurrentModification).Once()

		_, err := f.svc.Accept(ctx, "req-1", provider)
		assert.ErrorIs(t, err, domain.ErrConcurrentModification)
		assert.ErrorIs(t, err, domain.ErrInvalidTransition)
		f.publisher.AssertNotCalled(t, "PublishRequest", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("UnknownRequest", func(t *testing.T) {
		f := newBookingFixture()
		f.store.On("GetRequest", ctx, "nope").Return(nil, domain.NewNotFoundError("rental request", "nope")).Once()

		_, err := f.svc.Accept(ctx, "nope", provider)
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("MissingIdentity", func(t *testing.T) {
		f := newBookingFixture()
		_, err := f.svc.Accept(ctx, "req-1", models.Identity{})
		assert.ErrorIs(t, err, domain.ErrValidation)
	})
}

func TestBookingService_Reject(t *testing.T) {
	ctx := context.Background()
	f := newBookingFixture()
	f.store.On("GetRequest", ctx, "req-1").Return(pendingRequest(), nil).Once()
	f.store.On("UpdateRequestWithVersion", ctx, mock.Anything, int64(1)).Return(nil).Once()
	f.publisher.On("PublishRequest", ctx, events.EventRequestRejected, mock.Anything).Return(nil).Once()

	req, err := f.svc.Reject(ctx, "req-1", provider)
	require.NoError(t, err)
	assert.Equal(t, models.StatusRejected, req.Status)
	assert.Empty(t, req.AgreementID)
	assert.Nil(t, req.ProviderConfirmedAt)

	f.store.On("GetRequest", ctx, "req-1").Return(req, nil).Once()
	_, err = f.svc.Accept(ctx, "req-1", provider)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
}

func TestBookingService_ReportDispute(t *testing.T) {
	ctx := context.Background()

	for _, status := range []models.RequestStatus{models.StatusPending, models.StatusConfirmed, models.StatusCompleted, models.StatusRejected} {
		t.Run(string(status), func(t *testing.T) {
			f := newBookingFixture()
			f.store.On("GetRequest", ctx, "req-1").Return(withStatus(pendingRequest(), status, 2), nil).Once()
			f.store.On("UpdateRequestWithVersion", ctx, mock.Anything, int64(2)).Return(nil).Once()
			f.publisher.On("PublishRequest", ctx, events.EventRequestDisputed, mock.Anything).Return(nil).Once()

			req, err := f.svc.ReportDispute(ctx, "req-1", farmer, "  tractor arrived with a flat tyre ")
			require.NoError(t, err)
			assert.Equal(t, status, req.Status)
			assert.True(t, req.DisputeReported)
			assert.Equal(t, "tractor arrived with a flat tyre", req.DisputeDetails)
		})
	}

	t.Run("BlankDetails", func(t *testing.T) {
		f := newBookingFixture()
		_, err := f.svc.ReportDispute(ctx, "req-1", farmer, "   ")
		assert.ErrorIs(t, err, domain.ErrValidation)
		f.store.AssertNotCalled(t, "GetRequest", mock.Anything, mock.Anything)
	})

	t.Run("Stranger", func(t *testing.T) {
		f := newBookingFixture()
		f.store.On("GetRequest", ctx, "req-1").Return(pendingRequest(), nil).Once()
		_, err := f.svc.ReportDispute(ctx, "req-1", stranger, "not mine")
		assert.ErrorIs(t, err, domain.ErrForbidden)
	})
}

func TestBookingService_CompleteCancel(t *testing.T) {
	ctx := context.Background()

	t.Run("CompleteFromConfirmed", func(t *testing.T) {
		f := newBookingFixture()
		f.store.On("GetRequest", ctx, "req-1").Return(withStatus(pendingRequest(), models.StatusConfirmed, 2), nil).Once()
		f.store.On("UpdateRequestWithVersion", ctx, mock.Anything, int64(2)).Return(nil).Once()
		f.publisher.On("PublishRequest", ctx, events.EventRequestCompleted, mock.Anything).Return(nil).Once()

		req, err := f.svc.Complete(ctx, "req-1", farmer)
		require.NoError(t, err)
		assert.Equal(t, models.StatusCompleted, req.Status)
		assert.Equal(t, "KR-2025-06-01-ZZZZ9999", req.AgreementID, "agreement survives completion")
	})

	t.Run("CancelFromConfirmed", func(t *testing.T) {
		f := newBookingFixture()
		f.store.On("GetRequest", ctx, "req-1").Return(withStatus(pendingRequest(), models.StatusConfirmed, 2), nil).Once()
		f.store.On("UpdateRequestWithVersion", ctx, mock.Anything, int64(2)).Return(nil).Once()
		f.publisher.On("PublishRequest", ctx, events.EventRequestCancelled, mock.Anything).Return(nil).Once()

		req, err := f.svc.Cancel(ctx, "req-1", provider)
		require.NoError(t, err)
		assert.Equal(t, models.StatusCancelled, req.Status)
	})

	t.Run("NotFromPending", func(t *testing.T) {
		f := newBookingFixture()
		f.store.On("GetRequest", ctx, "req-1").Return(pendingRequest(), nil).Twice()

		_, err := f.svc.Complete(ctx, "req-1", farmer)
		assert.ErrorIs(t, err, domain.ErrInvalidTransition)
		_, err = f.svc.Cancel(ctx, "req-1", farmer)
		assert.ErrorIs(t, err, domain.ErrInvalidTransition)
	})

	t.Run("Stranger", func(t *testing.T) {
		f := newBookingFixture()
		f.store.On("GetRequest", ctx, "req-1").Return(withStatus(pendingRequest(), models.StatusConfirmed, 2), nil).Once()
		_, err := f.svc.Cancel(ctx, "req-1", stranger)
		assert.ErrorIs(t, err, domain.ErrForbidden)
	})
}

// Two windows race to decide the same pending request against one store.
func TestBookingService_RacingDecisionsSingleWinner(t *testing.T) {
	ctx := context.Background()
	logger := zerolog.Nop()
	store := repository.NewMemoryStore()
	catalog := NewCatalogService(store, &logger)
	require.NoError(t, catalog.SaveMachinery(ctx, tractor()))

	issuer := agreement.NewIssuer("KR", "https://farmrent.example")
	a := NewBookingService(store, catalog, nil, issuer, pricing.DefaultParams(), &logger)
	b := NewBookingService(store, catalog, nil, issuer, pricing.DefaultParams(), &logger)

	req, err := a.Create(ctx, domain.RequestDraft{MachineryID: "tractor-1", StartDate: "2025-06-10", EndDate: "2025-06-12"}, farmer)
	require.NoError(t, err)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	wg.Add(2)
	go func() { defer wg.Done(); _, errs[0] = a.Accept(ctx, req.ID, provider) }()
	go func() { defer wg.Done(); _, errs[1] = b.Reject(ctx, req.ID, provider) }()
	wg.Wait()

	failures := 0
	for _, err := range errs {
		if err != nil {
			failures++
			assert.ErrorIs(t, err, domain.ErrInvalidTransition)
		}
	}
	assert.Equal(t, 1, failures)

	final, err := store.GetRequest(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), final.Version)
	if final.Status == models.StatusConfirmed {
		assert.True(t, agreement.ValidAgreementID(final.AgreementID))
	} else {
		assert.Equal(t, models.StatusRejected, final.Status)
		assert.Empty(t, final.AgreementID)
	}
}
