package service

import (
	"context"
	"time"

	"farmrent/internal/models"

	"github.com/stretchr/testify/mock"
)

type mockRequestStore struct {
	mock.Mock
}

func (m *mockRequestStore) CreateRequest(ctx context.Context, req *models.RentalRequest) error {
	return m.Called(ctx, req).Error(0)
}

func (m *mockRequestStore) GetRequest(ctx context.Context, id string) (*models.RentalRequest, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	// hand out a copy, as a real store would
	return args.Get(0).(*models.RentalRequest).Clone(), args.Error(1)
}

func (m *mockRequestStore) UpdateRequestWithVersion(ctx context.Context, req *models.RentalRequest, fromVersion int64) error {
	err := m.Called(ctx, req, fromVersion).Error(0)
	if err == nil {
		req.Version = fromVersion + 1
	}
	return err
}

func (m *mockRequestStore) ListRequestsByFarmer(ctx context.Context, email string) ([]*models.RentalRequest, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.RentalRequest), args.Error(1)
}

func (m *mockRequestStore) ListRequestsByProvider(ctx context.Context, email string) ([]*models.RentalRequest, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.RentalRequest), args.Error(1)
}

type mockCatalog struct {
	mock.Mock
}

func (m *mockCatalog) GetMachinery(ctx context.Context, id string) (*models.Machinery, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Machinery), args.Error(1)
}

type mockPublisher struct {
	mock.Mock
}

func (m *mockPublisher) PublishRequest(ctx context.Context, eventType string, req *models.RentalRequest) error {
	return m.Called(ctx, eventType, req).Error(0)
}

type fixedIssuer struct{ id string }

func (f fixedIssuer) AgreementID(time.Time) string { return f.id }
