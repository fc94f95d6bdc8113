// Package agreement derives the confirmed-state artifact of a rental request:
// a human-verifiable agreement id and a verification reference. Nothing here is
// persisted on its own.
package agreement

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"farmrent/internal/domain"
	"farmrent/internal/models"
	"farmrent/internal/pricing"

	"github.com/google/uuid"
)

const suffixLength = 8

var idPattern = regexp.MustCompile(`^[A-Z0-9]+-\d{4}-\d{2}-\d{2}-[A-Z0-9]{8}$`)

type Issuer struct {
	prefix        string
	verifyBaseURL string
	random        func() string
}

func NewIssuer(prefix, verifyBaseURL string) *Issuer {
	if prefix == "" {
		prefix = models.DefaultAgreementPrefix
	}
	return &Issuer{
		prefix:        strings.ToUpper(prefix),
		verifyBaseURL: strings.TrimRight(verifyBaseURL, "/"),
		random:        randomSuffix,
	}
}

// AgreementID returns PREFIX-YYYY-MM-DD-XXXXXXXX for a confirmation at confirmedAt.
func (i *Issuer) AgreementID(confirmedAt time.Time) string {
	return fmt.Sprintf("%s-%s-%s", i.prefix, confirmedAt.UTC().Format(models.DateLayout), i.random())
}

// VerificationURL is the reference the display layer encodes as a scannable image.
func (i *Issuer) VerificationURL(requestID string) string {
	return fmt.Sprintf("%s/verify/%s", i.verifyBaseURL, requestID)
}

func randomSuffix() string {
	raw := strings.ReplaceAll(uuid.NewString(), "-", "")
	return strings.ToUpper(raw[:suffixLength])
}

// ValidAgreementID checks the PREFIX-YYYY-MM-DD-XXXXXXXX format and the date part.
func ValidAgreementID(id string) bool {
	if !idPattern.MatchString(id) {
		return false
	}
	parts := strings.Split(id, "-")
	datePart := strings.Join(parts[len(parts)-4:len(parts)-1], "-")
	_, err := time.Parse(models.DateLayout, datePart)
	return err == nil
}

// Certificate is the printable view of a confirmed request.
type Certificate struct {
	AgreementID     string               `json:"agreement_id"`
	VerificationURL string               `json:"verification_url"`
	RequestID       string               `json:"request_id"`
	Status          models.RequestStatus `json:"status"`
	MachineryID     string               `json:"machinery_id"`
	MachineryName   string               `json:"machinery_name"`
	FarmerName      string               `json:"farmer_name"`
	FarmerEmail     string               `json:"farmer_email"`
	FarmerPhone     string               `json:"farmer_phone"`
	ProviderName    string               `json:"provider_name"`
	ProviderEmail   string               `json:"provider_email"`
	StartDate       string               `json:"start_date"`
	EndDate         string               `json:"end_date"`
	Quote           pricing.Quote        `json:"quote"`
	FarmerSignedAt  time.Time            `json:"farmer_signed_at"`
	ProviderSigned  time.Time            `json:"provider_signed_at"`
	DisputeReported bool                 `json:"dispute_reported"`
}

// Certificate derives the agreement view. Requests that never reached
// confirmed have no agreement.
func (i *Issuer) Certificate(req *models.RentalRequest) (*Certificate, error) {
	if req.AgreementID == "" || req.ProviderConfirmedAt == nil {
		return nil, &domain.InvalidTransitionError{ID: req.ID, From: string(req.Status), To: "agreement"}
	}
	return &Certificate{
		AgreementID:     req.AgreementID,
		VerificationURL: i.VerificationURL(req.ID),
		RequestID:       req.ID,
		Status:          req.Status,
		MachineryID:     req.MachineryID,
		MachineryName:   req.MachineryName,
		FarmerName:      req.FarmerName,
		FarmerEmail:     req.FarmerEmail,
		FarmerPhone:     req.FarmerPhone,
		ProviderName:    req.ProviderName,
		ProviderEmail:   req.ProviderEmail,
		StartDate:       req.StartDate.Format(models.DateLayout),
		EndDate:         req.EndDate.Format(models.DateLayout),
		Quote:           pricing.ForRequest(req),
		FarmerSignedAt:  req.FarmerConfirmedAt,
		ProviderSigned:  *req.ProviderConfirmedAt,
		DisputeReported: req.DisputeReported,
	}, nil
}
