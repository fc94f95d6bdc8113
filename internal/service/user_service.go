package service

import (
	"context"
	"net/mail"
	"strings"

	"farmrent/internal/domain"
	"farmrent/internal/models"

	"github.com/rs/zerolog"
)

type UserService struct {
	repo   domain.UserStore
	logger *zerolog.Logger
}

func NewUserService(repo domain.UserStore, logger *zerolog.Logger) *UserService {
	return &UserService{
		repo:   repo,
		logger: logger,
	}
}

func (s *UserService) SaveUser(ctx context.Context, user *models.User) error {
	user.Email = strings.TrimSpace(user.Email)
	if _, err := mail.ParseAddress(user.Email); err != nil {
		return domain.NewValidationError("email", "must be a valid address")
	}
	if strings.TrimSpace(user.Name) == "" {
		return domain.NewValidationError("name", "is required")
	}
	if !user.Role.Valid() {
		return domain.NewValidationError("role", "must be farmer or provider")
	}
	return s.repo.UpsertUser(ctx, user)
}

func (s *UserService) GetUser(ctx context.Context, email string) (*models.User, error) {
	return s.repo.GetUser(ctx, strings.TrimSpace(email))
}

func (s *UserService) GetAllUsers(ctx context.Context) ([]*models.User, error) {
	return s.repo.ListUsers(ctx)
}

// Identity resolves a profile into the caller identity used by the booking flow.
func (s *UserService) Identity(ctx context.Context, email string) (models.Identity, error) {
	if strings.TrimSpace(email) == "" {
		return models.Identity{}, domain.NewValidationError("email", "is required")
	}
	u, err := s.GetUser(ctx, email)
	if err != nil {
		return models.Identity{}, err
	}
	return u.Identity(), nil
}
