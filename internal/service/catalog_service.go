package service

import (
	"context"
	"strings"
	"time"

	"farmrent/internal/domain"
	"farmrent/internal/models"

	"github.com/rs/zerolog"
)

// CatalogService owns the machinery listings the booking flow resolves.
type CatalogService struct {
	repo   domain.MachineryStore
	logger *zerolog.Logger
	now    func() time.Time
}

var _ domain.MachineryCatalog = (*CatalogService)(nil)

func NewCatalogService(repo domain.MachineryStore, logger *zerolog.Logger) *CatalogService {
	return &CatalogService{
		repo:   repo,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// CatalogFilter narrows ListMachinery. Zero values match everything.
type CatalogFilter struct {
	Category      string
	District      string
	State         string
	OwnerEmail    string
	AvailableOnly bool
}

func (f CatalogFilter) matches(m *models.Machinery) bool {
	if f.Category != "" && !strings.EqualFold(f.Category, m.Category) {
		return false
	}
	if f.District != "" && !strings.EqualFold(f.District, m.District) {
		return false
	}
	if f.State != "" && !strings.EqualFold(f.State, m.State) {
		return false
	}
	if f.OwnerEmail != "" && f.OwnerEmail != m.OwnerEmail {
		return false
	}
	if f.AvailableOnly && m.Status != models.MachineryAvailable {
		return false
	}
	return true
}

func (s *CatalogService) GetMachinery(ctx context.Context, id string) (*models.Machinery, error) {
	if strings.TrimSpace(id) == "" {
		return nil, domain.NewValidationError("machinery_id", "is required")
	}
	return s.repo.GetMachinery(ctx, id)
}

func (s *CatalogService) ListMachinery(ctx context.Context, filter CatalogFilter) ([]*models.Machinery, error) {
	all, err := s.repo.ListMachinery(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]*models.Machinery, 0, len(all))
	for _, m := range all {
		if filter.matches(m) {
			out = append(out, m)
		}
	}
	return out, nil
}

func (s *CatalogService) SaveMachinery(ctx context.Context, m *models.Machinery) error {
	switch {
	case strings.TrimSpace(m.ID) == "":
		return domain.NewValidationError("id", "is required")
	case strings.TrimSpace(m.Name) == "":
		return domain.NewValidationError("name", "is required")
	case strings.TrimSpace(m.OwnerEmail) == "":
		return domain.NewValidationError("owner_email", "is required")
	case m.DailyRate < 0:
		return domain.NewValidationError("daily_rate", "must not be negative")
	case m.Status != "" && !m.Status.Valid():
		return domain.NewValidationError("status", "must be available, rented or maintenance")
	}
	for _, r := range m.Reviews {
		if err := validateReview(r); err != nil {
			return err
		}
	}
	if err := s.repo.SaveMachinery(ctx, m); err != nil {
		return err
	}
	s.logger.Debug().Str("machinery_id", m.ID).Msg("machinery saved")
	return nil
}

// AddReview appends a rating to a listing. Reviews are display-only for booking.
func (s *CatalogService) AddReview(ctx context.Context, machineryID string, review models.Review) (*models.Machinery, error) {
	if err := validateReview(review); err != nil {
		return nil, err
	}
	m, err := s.GetMachinery(ctx, machineryID)
	if err != nil {
		return nil, err
	}
	if review.Date.IsZero() {
		review.Date = s.now()
	}
	m.Reviews = append(m.Reviews, review)
	if err := s.repo.SaveMachinery(ctx, m); err != nil {
		return nil, err
	}
	s.logger.Info().
		Str("machinery_id", m.ID).
		Int("rating", review.Rating).
		Float64("average", m.AverageRating()).
		Msg("review added")
	return m, nil
}

func validateReview(r models.Review) error {
	if r.Rating < 1 || r.Rating > 5 {
		return domain.NewValidationError("rating", "must be between 1 and 5")
	}
	if strings.TrimSpace(r.RaterEmail) == "" {
		return domain.NewValidationError("rater_email", "is required")
	}
	return nil
}
