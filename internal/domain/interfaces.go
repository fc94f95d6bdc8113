package domain

import (
	"context"
	"time"

	"farmrent/internal/models"
)

type UserStore interface {
	UpsertUser(ctx context.Context, user *models.User) error
	GetUser(ctx context.Context, email string) (*models.User, error)
	ListUsers(ctx context.Context) ([]*models.User, error)
}

type MachineryStore interface {
	SaveMachinery(ctx context.Context, m *models.Machinery) error
	GetMachinery(ctx context.Context, id string) (*models.Machinery, error)
	ListMachinery(ctx context.Context) ([]*models.Machinery, error)
}

// RequestStore persists rental requests. There is no delete.
type RequestStore interface {
	CreateRequest(ctx context.Context, req *models.RentalRequest) error
	GetRequest(ctx context.Context, id string) (*models.RentalRequest, error)
	// UpdateRequestWithVersion writes req only if the stored version still equals
	// fromVersion, and bumps req.Version on success. A mismatch yields
	// ErrConcurrentModification.
	UpdateRequestWithVersion(ctx context.Context, req *models.RentalRequest, fromVersion int64) error
	ListRequestsByFarmer(ctx context.Context, email string) ([]*models.RentalRequest, error)
	ListRequestsByProvider(ctx context.Context, email string) ([]*models.RentalRequest, error)
}

// EntityStore is the durable per-origin store for all three entity kinds.
type EntityStore interface {
	UserStore
	MachineryStore
	RequestStore
}

// MachineryCatalog is the boundary the booking flow uses to resolve listings.
type MachineryCatalog interface {
	GetMachinery(ctx context.Context, id string) (*models.Machinery, error)
}

// EventPublisher broadcasts a mutated request to the other open windows.
type EventPublisher interface {
	PublishRequest(ctx context.Context, eventType string, req *models.RentalRequest) error
}

// AgreementIssuer mints agreement identifiers on confirmation.
type AgreementIssuer interface {
	AgreementID(confirmedAt time.Time) string
}

type BookingService interface {
	Create(ctx context.Context, draft RequestDraft, farmer models.Identity) (*models.RentalRequest, error)
	Accept(ctx context.Context, requestID string, provider models.Identity) (*models.RentalRequest, error)
	Reject(ctx context.Context, requestID string, provider models.Identity) (*models.RentalRequest, error)
	ReportDispute(ctx context.Context, requestID string, reporter models.Identity, details string) (*models.RentalRequest, error)
	Complete(ctx context.Context, requestID string, actor models.Identity) (*models.RentalRequest, error)
	Cancel(ctx context.Context, requestID string, actor models.Identity) (*models.RentalRequest, error)
	Get(ctx context.Context, requestID string) (*models.RentalRequest, error)
}

// RequestReader is the merged read path a window exposes to the display layer.
type RequestReader interface {
	Request(ctx context.Context, id string) (*models.RentalRequest, error)
	RequestsForFarmer(ctx context.Context, email string) ([]*models.RentalRequest, error)
	RequestsForProvider(ctx context.Context, email string) ([]*models.RentalRequest, error)
}

// RequestDraft is the farmer-submitted input to Create.
type RequestDraft struct {
	MachineryID  string           `json:"machinery_id"`
	StartDate    string           `json:"start_date"`
	EndDate      string           `json:"end_date"`
	FuelIncluded bool             `json:"fuel_included"`
	FuelPaidBy   models.FuelPayer `json:"fuel_paid_by,omitempty"`
}
