// Package reconcile keeps the per-window view of requests received over the
// synchronization channel and merges it with what the store returns.
package reconcile

import (
	"sort"
	"sync"

	"farmrent/internal/events"
	"farmrent/internal/metrics"
	"farmrent/internal/models"
)

type entry struct {
	req      *models.RentalRequest
	windowID string
	seq      uint64
}

// Overlay maps request id to the newest record seen on the channel. It is
// never persisted and is discarded with its window.
type Overlay struct {
	origin  string
	mu      sync.RWMutex
	entries map[string]entry
}

// NewOverlay accepts only events published under origin. An empty origin
// accepts every event.
func NewOverlay(origin string) *Overlay {
	return &Overlay{origin: origin, entries: make(map[string]entry)}
}

// Apply records the request carried by ev unless the overlay already holds a
// record at least as new. Events of another origin are dropped. Reports
// whether the entry changed.
func (o *Overlay) Apply(ev *events.Event) bool {
	if ev == nil || ev.Request == nil || ev.Request.ID == "" {
		return false
	}
	if o.origin != "" && ev.Origin != o.origin {
		metrics.ObserveOverlayApply(false)
		return false
	}
	incoming := entry{req: ev.Request.Clone(), windowID: ev.WindowID, seq: ev.Seq}

	o.mu.Lock()
	current, ok := o.entries[incoming.req.ID]
	applied := !ok || newer(incoming, current)
	if applied {
		o.entries[incoming.req.ID] = incoming
	}
	o.mu.Unlock()

	metrics.ObserveOverlayApply(applied)
	return applied
}

// newer orders two records of the same request: version, then update time,
// then publish sequence when both came from the same window.
func newer(a, b entry) bool {
	if a.req.Version != b.req.Version || !a.req.UpdatedAt.Equal(b.req.UpdatedAt) {
		return a.req.NewerThan(b.req)
	}
	return a.windowID == b.windowID && a.seq > b.seq
}

func (o *Overlay) Get(id string) (*models.RentalRequest, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	e, ok := o.entries[id]
	if !ok {
		return nil, false
	}
	return e.req.Clone(), true
}

func (o *Overlay) Len() int {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return len(o.entries)
}

// Resolve returns the newer of stored and the overlay record for the same id.
// stored may be nil.
func (o *Overlay) Resolve(stored *models.RentalRequest, id string) (*models.RentalRequest, bool) {
	overlaid, ok := o.Get(id)
	switch {
	case stored == nil && !ok:
		return nil, false
	case stored == nil:
		return overlaid, true
	case ok && overlaid.NewerThan(stored):
		return overlaid, true
	default:
		return stored, true
	}
}

// Merge combines store results with overlay records accepted by keep. A record
// present in both is taken from the overlay only when it is strictly newer.
// The result is sorted by creation time, newest first, and contains each id
// once.
func (o *Overlay) Merge(stored []*models.RentalRequest, keep func(*models.RentalRequest) bool) []*models.RentalRequest {
	byID := make(map[string]*models.RentalRequest, len(stored))
	for _, r := range stored {
		byID[r.ID] = r
	}

	o.mu.RLock()
	for id, e := range o.entries {
		if keep != nil && !keep(e.req) {
			continue
		}
		if cur, ok := byID[id]; !ok || e.req.NewerThan(cur) {
			byID[id] = e.req.Clone()
		}
	}
	o.mu.RUnlock()

	out := make([]*models.RentalRequest, 0, len(byID))
	for _, r := range byID {
		out = append(out, r)
	}
	SortNewestFirst(out)
	return out
}

func SortNewestFirst(list []*models.RentalRequest) {
	sort.Slice(list, func(i, j int) bool {
		if !list[i].CreatedAt.Equal(list[j].CreatedAt) {
			return list[i].CreatedAt.After(list[j].CreatedAt)
		}
		return list[i].ID < list[j].ID
	})
}

func ForFarmer(email string) func(*models.RentalRequest) bool {
	return func(r *models.RentalRequest) bool { return r.FarmerEmail == email }
}

func ForProvider(email string) func(*models.RentalRequest) bool {
	return func(r *models.RentalRequest) bool { return r.ProviderEmail == email }
}
