package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"farmrent/internal/domain"
	"farmrent/internal/models"
)

// MemoryStore is a process-local EntityStore. Records are copied on the way
// in and out so callers never share state with the store.
type MemoryStore struct {
	mu        sync.RWMutex
	users     map[string]models.User
	machinery map[string]*models.Machinery
	requests  map[string]*models.RentalRequest
}

var _ domain.EntityStore = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:     make(map[string]models.User),
		machinery: make(map[string]*models.Machinery),
		requests:  make(map[string]*models.RentalRequest),
	}
}

func (s *MemoryStore) UpsertUser(_ context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now().UTC()
	if existing, ok := s.users[user.Email]; ok {
		user.CreatedAt = existing.CreatedAt
	} else if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	user.UpdatedAt = now
	s.users[user.Email] = *user
	return nil
}

func (s *MemoryStore) GetUser(_ context.Context, email string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[email]
	if !ok {
		return nil, domain.NewNotFoundError("user", email)
	}
	return &u, nil
}

func (s *MemoryStore) ListUsers(_ context.Context) ([]*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.User, 0, len(s.users))
	for _, u := range s.users {
		u := u
		out = append(out, &u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Email < out[j].Email })
	return out, nil
}

func (s *MemoryStore) SaveMachinery(_ context.Context, m *models.Machinery) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if m.Status == "" {
		m.Status = models.MachineryAvailable
	}
	now := time.Now().UTC()
	if m.CreatedAt.IsZero() {
		m.CreatedAt = now
	}
	m.UpdatedAt = now
	s.machinery[m.ID] = cloneMachinery(m)
	return nil
}

func (s *MemoryStore) GetMachinery(_ context.Context, id string) (*models.Machinery, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.machinery[id]
	if !ok {
		return nil, domain.NewNotFoundError("machinery", id)
	}
	return cloneMachinery(m), nil
}

func (s *MemoryStore) ListMachinery(_ context.Context) ([]*models.Machinery, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.Machinery, 0, len(s.machinery))
	for _, m := range s.machinery {
		out = append(out, cloneMachinery(m))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *MemoryStore) CreateRequest(_ context.Context, req *models.RentalRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.requests[req.ID]; exists {
		return domain.NewPersistenceError("create request", domain.NewValidationError("id", "duplicate "+req.ID))
	}
	if req.Version == 0 {
		req.Version = 1
	}
	s.requests[req.ID] = req.Clone()
	return nil
}

func (s *MemoryStore) GetRequest(_ context.Context, id string) (*models.RentalRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	req, ok := s.requests[id]
	if !ok {
		return nil, domain.NewNotFoundError("rental request", id)
	}
	return req.Clone(), nil
}

func (s *MemoryStore) UpdateRequestWithVersion(_ context.Context, req *models.RentalRequest, fromVersion int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.requests[req.ID]
	if !ok {
		return domain.NewNotFoundError("rental request", req.ID)
	}
	if current.Version != fromVersion {
		return domain.ErrConcurrentModification
	}
	req.Version = fromVersion + 1
	s.requests[req.ID] = req.Clone()
	return nil
}

func (s *MemoryStore) ListRequestsByFarmer(_ context.Context, email string) ([]*models.RentalRequest, error) {
	return s.filterRequests(func(r *models.RentalRequest) bool { return r.FarmerEmail == email }), nil
}

func (s *MemoryStore) ListRequestsByProvider(_ context.Context, email string) ([]*models.RentalRequest, error) {
	return s.filterRequests(func(r *models.RentalRequest) bool { return r.ProviderEmail == email }), nil
}

func (s *MemoryStore) filterRequests(keep func(*models.RentalRequest) bool) []*models.RentalRequest {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.RentalRequest
	for _, r := range s.requests {
		if keep(r) {
			out = append(out, r.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func cloneMachinery(m *models.Machinery) *models.Machinery {
	c := *m
	if m.Specifications != nil {
		c.Specifications = make(map[string]string, len(m.Specifications))
		for k, v := range m.Specifications {
			c.Specifications[k] = v
		}
	}
	if m.Reviews != nil {
		c.Reviews = append([]models.Review(nil), m.Reviews...)
	}
	return &c
}
