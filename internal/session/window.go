// Package session models one client window: its booking service, its
// overlay of broadcast records and its single channel subscription.
package session

import (
	"context"
	"errors"
	"sync"

	"farmrent/internal/domain"
	"farmrent/internal/events"
	"farmrent/internal/metrics"
	"farmrent/internal/models"
	"farmrent/internal/pricing"
	"farmrent/internal/reconcile"
	"farmrent/internal/service"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Deps are shared by every window of an origin.
type Deps struct {
	Store   domain.EntityStore
	Catalog domain.MachineryCatalog
	Channel events.Channel
	Issuer  domain.AgreementIssuer
	Pricing pricing.Params
	Origin  string
	Logger  *zerolog.Logger
}

type Window struct {
	ID       string
	Bookings *service.BookingService

	store   domain.RequestStore
	overlay *reconcile.Overlay
	logger  *zerolog.Logger

	mu          sync.RWMutex
	watchers    map[uint64]func(*events.Event)
	nextWatcher uint64

	unsubscribe func()
	closeOnce   sync.Once
}

var _ domain.RequestReader = (*Window)(nil)

// Open creates a window and subscribes it to the channel exactly once. An
// empty id gets a generated one.
func Open(deps Deps, id string) *Window {
	if id == "" {
		id = uuid.NewString()
	}
	logger := deps.Logger.With().Str("window_id", id).Logger()

	w := &Window{
		ID:       id,
		store:    deps.Store,
		overlay:  reconcile.NewOverlay(deps.Origin),
		logger:   &logger,
		watchers: make(map[uint64]func(*events.Event)),
	}
	catalog := deps.Catalog
	if catalog == nil {
		catalog = deps.Store
	}
	publisher := events.NewPublisher(deps.Channel, deps.Origin, id)
	w.Bookings = service.NewBookingService(deps.Store, catalog, publisher, deps.Issuer, deps.Pricing, &logger)
	w.unsubscribe = deps.Channel.Subscribe(w.receive)

	metrics.WindowOpened()
	logger.Debug().Str("channel", deps.Channel.Name()).Msg("window opened")
	return w
}

// receive applies a broadcast to the overlay. Own events are applied too,
// which is harmless since Apply is idempotent.
func (w *Window) receive(ev *events.Event) {
	if !w.overlay.Apply(ev) {
		return
	}
	w.mu.RLock()
	watchers := make([]func(*events.Event), 0, len(w.watchers))
	for _, fn := range w.watchers {
		watchers = append(watchers, fn)
	}
	w.mu.RUnlock()

	for _, fn := range watchers {
		fn(ev)
	}
}

// Watch registers fn for every broadcast that changed this window's view.
func (w *Window) Watch(fn func(*events.Event)) (stop func()) {
	w.mu.Lock()
	id := w.nextWatcher
	w.nextWatcher++
	w.watchers[id] = fn
	w.mu.Unlock()

	return func() {
		w.mu.Lock()
		delete(w.watchers, id)
		w.mu.Unlock()
	}
}

func (w *Window) Request(ctx context.Context, id string) (*models.RentalRequest, error) {
	stored, err := w.store.GetRequest(ctx, id)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}
	req, ok := w.overlay.Resolve(stored, id)
	if !ok {
		return nil, err
	}
	return req, nil
}

func (w *Window) RequestsForFarmer(ctx context.Context, email string) ([]*models.RentalRequest, error) {
	stored, err := w.store.ListRequestsByFarmer(ctx, email)
	if err != nil {
		return nil, err
	}
	return w.overlay.Merge(stored, reconcile.ForFarmer(email)), nil
}

func (w *Window) RequestsForProvider(ctx context.Context, email string) ([]*models.RentalRequest, error) {
	stored, err := w.store.ListRequestsByProvider(ctx, email)
	if err != nil {
		return nil, err
	}
	return w.overlay.Merge(stored, reconcile.ForProvider(email)), nil
}

// Overlaid is the number of records this window has received.
func (w *Window) Overlaid() int {
	return w.overlay.Len()
}

// Close unsubscribes the window. Its overlay goes away with it.
func (w *Window) Close() {
	w.closeOnce.Do(func() {
		w.unsubscribe()
		w.mu.Lock()
		w.watchers = make(map[uint64]func(*events.Event))
		w.mu.Unlock()
		metrics.WindowClosed()
		w.logger.Debug().Msg("window closed")
	})
}
