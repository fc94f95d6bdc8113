package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"farmrent/internal/domain"
	"farmrent/internal/events"
	"farmrent/internal/metrics"
	"farmrent/internal/models"
	"farmrent/internal/pricing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// BookingService drives a rental request through its lifecycle:
// pending -> confirmed | rejected, confirmed -> completed | cancelled.
// Every successful mutation is persisted first and then broadcast.
type BookingService struct {
	store     domain.RequestStore
	catalog   domain.MachineryCatalog
	publisher domain.EventPublisher
	issuer    domain.AgreementIssuer
	pricing   pricing.Params
	logger    *zerolog.Logger
	now       func() time.Time
	newID     func() string
}

var _ domain.BookingService = (*BookingService)(nil)

func NewBookingService(
	store domain.RequestStore,
	catalog domain.MachineryCatalog,
	publisher domain.EventPublisher,
	issuer domain.AgreementIssuer,
	params pricing.Params,
	logger *zerolog.Logger,
) *BookingService {
	return &BookingService{
		store:     store,
		catalog:   catalog,
		publisher: publisher,
		issuer:    issuer,
		pricing:   params,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
		newID:     uuid.NewString,
	}
}

// Quote prices a draft without creating anything.
func (s *BookingService) Quote(ctx context.Context, draft domain.RequestDraft) (pricing.Quote, *models.Machinery, error) {
	machinery, start, end, err := s.resolveDraft(ctx, draft)
	if err != nil {
		return pricing.Quote{}, nil, err
	}
	q, err := s.price(machinery, start, end, draft)
	if err != nil {
		return pricing.Quote{}, nil, err
	}
	return q, machinery, nil
}

func (s *BookingService) Create(ctx context.Context, draft domain.RequestDraft, farmer models.Identity) (req *models.RentalRequest, err error) {
	defer func() { metrics.ObserveTransition("create", err) }()

	if strings.TrimSpace(farmer.Email) == "" {
		return nil, domain.NewValidationError("farmer", "identity is required")
	}
	machinery, start, end, err := s.resolveDraft(ctx, draft)
	if err != nil {
		return nil, err
	}
	if machinery.Status == models.MachineryMaintenance {
		return nil, domain.NewValidationError("machinery_id", "machinery is under maintenance")
	}
	q, err := s.price(machinery, start, end, draft)
	if err != nil {
		return nil, err
	}

	now := s.now()
	req = &models.RentalRequest{
		ID:                s.newID(),
		MachineryID:       machinery.ID,
		MachineryName:     machinery.Name,
		FarmerEmail:       farmer.Email,
		FarmerName:        farmer.Name,
		FarmerPhone:       farmer.Phone,
		ProviderEmail:     machinery.OwnerEmail,
		ProviderName:      machinery.OwnerName,
		StartDate:         start,
		EndDate:           end,
		TotalDays:         q.TotalDays,
		DailyRate:         q.DailyRate,
		TotalPrice:        q.TotalPrice,
		FuelIncluded:      q.FuelIncluded,
		FuelPaidBy:        q.FuelPaidBy,
		FuelCostPerDay:    q.FuelCostPerDay,
		EstimatedFuelCost: q.EstimatedFuelCost,
		Status:            models.StatusPending,
		FarmerConfirmedAt: now,
		CreatedAt:         now,
		UpdatedAt:         now,
		Version:           1,
	}
	if err := s.store.CreateRequest(ctx, req); err != nil {
		s.logger.Error().Err(err).Str("request_id", req.ID).Msg("create request failed")
		return nil, err
	}

	s.logger.Info().
		Str("request_id", req.ID).
		Str("machinery_id", req.MachineryID).
		Str("farmer", req.FarmerEmail).
		Int64("total_price", req.TotalPrice).
		Msg("rental request created")
	s.publish(ctx, events.EventRequestCreated, req)
	return req, nil
}

func (s *BookingService) Accept(ctx context.Context, requestID string, provider models.Identity) (*models.RentalRequest, error) {
	return s.transition(ctx, transition{
		op:        "accept",
		event:     events.EventRequestAccepted,
		authorize: providerOnly,
		from:      []models.RequestStatus{models.StatusPending},
		to:        models.StatusConfirmed,
		mutate: func(r *models.RentalRequest, now time.Time) {
			r.ProviderConfirmedAt = &now
			r.AgreementID = s.issuer.AgreementID(now)
		},
	}, requestID, provider)
}

func (s *BookingService) Reject(ctx context.Context, requestID string, provider models.Identity) (*models.RentalRequest, error) {
	return s.transition(ctx, transition{
		op:        "reject",
		event:     events.EventRequestRejected,
		authorize: providerOnly,
		from:      []models.RequestStatus{models.StatusPending},
		to:        models.StatusRejected,
	}, requestID, provider)
}

// ReportDispute flags a request in any status. The status does not change.
func (s *BookingService) ReportDispute(ctx context.Context, requestID string, reporter models.Identity, details string) (*models.RentalRequest, error) {
	details = strings.TrimSpace(details)
	if details == "" {
		metrics.ObserveTransition("dispute", domain.ErrValidation)
		return nil, domain.NewValidationError("details", "must not be empty")
	}
	if len(details) > models.MaxDisputeDetailsLength {
		metrics.ObserveTransition("dispute", domain.ErrValidation)
		return nil, domain.NewValidationError("details", "too long")
	}
	return s.transition(ctx, transition{
		op:        "dispute",
		event:     events.EventRequestDisputed,
		authorize: eitherParty,
		mutate: func(r *models.RentalRequest, _ time.Time) {
			r.DisputeReported = true
			r.DisputeDetails = details
		},
	}, requestID, reporter)
}

func (s *BookingService) Complete(ctx context.Context, requestID string, actor models.Identity) (*models.RentalRequest, error) {
	return s.transition(ctx, transition{
		op:        "complete",
		event:     events.EventRequestCompleted,
		authorize: eitherParty,
		from:      []models.RequestStatus{models.StatusConfirmed},
		to:        models.StatusCompleted,
	}, requestID, actor)
}

func (s *BookingService) Cancel(ctx context.Context, requestID string, actor models.Identity) (*models.RentalRequest, error) {
	return s.transition(ctx, transition{
		op:        "cancel",
		event:     events.EventRequestCancelled,
		authorize: eitherParty,
		from:      []models.RequestStatus{models.StatusConfirmed},
		to:        models.StatusCancelled,
	}, requestID, actor)
}

func (s *BookingService) Get(ctx context.Context, requestID string) (*models.RentalRequest, error) {
	if strings.TrimSpace(requestID) == "" {
		return nil, domain.NewValidationError("request_id", "is required")
	}
	return s.store.GetRequest(ctx, requestID)
}

type transition struct {
	op        string
	event     string
	authorize func(*models.RentalRequest, string) error
	// from is empty when the operation is allowed in every status.
	from   []models.RequestStatus
	to     models.RequestStatus
	mutate func(*models.RentalRequest, time.Time)
}

func (s *BookingService) transition(ctx context.Context, t transition, requestID string, actor models.Identity) (next *models.RentalRequest, err error) {
	defer func() { metrics.ObserveTransition(t.op, err) }()

	if strings.TrimSpace(actor.Email) == "" {
		return nil, domain.NewValidationError("actor", "identity is required")
	}
	current, err := s.Get(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if err := t.authorize(current, actor.Email); err != nil {
		return nil, err
	}
	if len(t.from) > 0 && !statusIn(current.Status, t.from) {
		return nil, &domain.InvalidTransitionError{ID: current.ID, From: string(current.Status), To: string(t.to)}
	}

	now := s.now()
	next = current.Clone()
	if t.to != "" {
		next.Status = t.to
	}
	if t.mutate != nil {
		t.mutate(next, now)
	}
	next.UpdatedAt = now

	if err := s.store.UpdateRequestWithVersion(ctx, next, current.Version); err != nil {
		s.logger.Warn().Err(err).Str("request_id", current.ID).Str("op", t.op).Msg("request update rejected")
		return nil, err
	}

	s.logger.Info().
		Str("request_id", next.ID).
		Str("op", t.op).
		Str("actor", actor.Email).
		Str("from", string(current.Status)).
		Str("to", string(next.Status)).
		Int64("version", next.Version).
		Msg("rental request updated")
	s.publish(ctx, t.event, next)
	return next, nil
}

// publish is fire-and-forget: the record is already durable, so a failed
// broadcast only delays convergence until the other windows read the store.
func (s *BookingService) publish(ctx context.Context, eventType string, req *models.RentalRequest) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishRequest(ctx, eventType, req); err != nil {
		s.logger.Error().Err(err).Str("event_type", eventType).Str("request_id", req.ID).Msg("publish event error")
	}
}

func (s *BookingService) resolveDraft(ctx context.Context, draft domain.RequestDraft) (*models.Machinery, time.Time, time.Time, error) {
	if strings.TrimSpace(draft.MachineryID) == "" {
		return nil, time.Time{}, time.Time{}, domain.NewValidationError("machinery_id", "is required")
	}
	start, err := parseDate("start_date", draft.StartDate)
	if err != nil {
		return nil, time.Time{}, time.Time{}, err
	}
	end, err := parseDate("end_date", draft.EndDate)
	if err != nil {
		return nil, time.Time{}, time.Time{}, err
	}
	machinery, err := s.catalog.GetMachinery(ctx, draft.MachineryID)
	if err != nil {
		return nil, time.Time{}, time.Time{}, err
	}
	return machinery, start, end, nil
}

func (s *BookingService) price(m *models.Machinery, start, end time.Time, draft domain.RequestDraft) (pricing.Quote, error) {
	return pricing.Calculate(pricing.Input{
		Start:          start,
		End:            end,
		DailyRate:      m.DailyRate,
		FuelIncluded:   draft.FuelIncluded,
		FuelPaidBy:     draft.FuelPaidBy,
		Specifications: m.Specifications,
	}, s.pricing)
}

func parseDate(field, value string) (time.Time, error) {
	if strings.TrimSpace(value) == "" {
		return time.Time{}, domain.NewValidationError(field, "is required")
	}
	t, err := models.ParseDate(value)
	if err != nil {
		return time.Time{}, domain.NewValidationError(field, "must be YYYY-MM-DD")
	}
	return t, nil
}

func providerOnly(r *models.RentalRequest, email string) error {
	if r.ProviderEmail != email {
		return fmt.Errorf("%w: %s is not the provider of request %s", domain.ErrForbidden, email, r.ID)
	}
	return nil
}

func eitherParty(r *models.RentalRequest, email string) error {
	if !r.IsParty(email) {
		return fmt.Errorf("%w: %s is not a party to request %s", domain.ErrForbidden, email, r.ID)
	}
	return nil
}

func statusIn(s models.RequestStatus, set []models.RequestStatus) bool {
	for _, v := range set {
		if s == v {
			return true
		}
	}
	return false
}
