package api

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"farmrent/internal/domain"
	"farmrent/internal/models"
	"farmrent/internal/pricing"
	"farmrent/internal/service"
)

const (
	headerUserEmail = "X-User-Email"
	headerUserName  = "X-User-Name"
	headerUserPhone = "X-User-Phone"
)

var errMissingIdentity = errors.New("missing " + headerUserEmail + " header")

// identityFromRequest trusts the identity headers as given. Authentication of
// the caller is the API key's job.
func identityFromRequest(r *http.Request) (models.Identity, error) {
	id := models.Identity{
		Email: strings.TrimSpace(r.Header.Get(headerUserEmail)),
		Name:  strings.TrimSpace(r.Header.Get(headerUserName)),
		Phone: strings.TrimSpace(r.Header.Get(headerUserPhone)),
	}
	if id.Email == "" {
		return models.Identity{}, errMissingIdentity
	}
	return id, nil
}

func statusForError(err error) int {
	switch {
	case errors.Is(err, domain.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrInvalidTransition):
		return http.StatusConflict
	case errors.Is(err, domain.ErrPersistence):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (s *HTTPServer) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	code := statusForError(err)
	msg := err.Error()
	if code >= http.StatusInternalServerError {
		s.logger.Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
		if code == http.StatusServiceUnavailable {
			msg = "storage unavailable, try again"
		} else {
			msg = "internal error"
		}
	}
	writeError(w, code, msg)
}

func (s *HTTPServer) handleListMachinery(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := service.CatalogFilter{
		Category:      strings.TrimSpace(q.Get("category")),
		District:      strings.TrimSpace(q.Get("district")),
		State:         strings.TrimSpace(q.Get("state")),
		OwnerEmail:    strings.TrimSpace(q.Get("owner")),
		AvailableOnly: queryBool(q.Get("available")),
	}
	items, err := s.deps.Catalog.ListMachinery(r.Context(), filter)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"machinery": items})
}

func (s *HTTPServer) handleGetMachinery(w http.ResponseWriter, r *http.Request) {
	m, err := s.deps.Catalog.GetMachinery(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"machinery":      m,
		"average_rating": m.AverageRating(),
	})
}

func (s *HTTPServer) handleAddReview(w http.ResponseWriter, r *http.Request) {
	rater, err := identityFromRequest(r)
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}
	var body struct {
		Rating  int    `json:"rating"`
		Comment string `json:"comment"`
	}
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	review := models.Review{RaterEmail: rater.Email, Rating: body.Rating, Comment: strings.TrimSpace(body.Comment)}
	m, err := s.deps.Catalog.AddReview(r.Context(), r.PathValue("id"), review)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"machinery":      m,
		"average_rating": m.AverageRating(),
	})
}

type quoteResponse struct {
	MachineryID   string            `json:"machinery_id"`
	MachineryName string            `json:"machinery_name"`
	Quote         pricing.Quote     `json:"quote"`
	Formatted     map[string]string `json:"formatted"`
}

func (s *HTTPServer) handleQuote(w http.ResponseWriter, r *http.Request) {
	var draft domain.RequestDraft
	if err := decodeJSON(r, &draft); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	q, m, err := s.deps.Window.Bookings.Quote(r.Context(), draft)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, quoteResponse{
		MachineryID:   m.ID,
		MachineryName: m.Name,
		Quote:         q,
		Formatted: map[string]string{
			"daily_rate":          pricing.FormatAmount(q.DailyRate),
			"total_price":         pricing.FormatAmount(q.TotalPrice),
			"estimated_fuel_cost": pricing.FormatAmount(q.EstimatedFuelCost),
		},
	})
}

func (s *HTTPServer) handleCreateRequest(w http.ResponseWriter, r *http.Request) {
	farmer, err := identityFromRequest(r)
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}
	var draft domain.RequestDraft
	if err := decodeJSON(r, &draft); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	req, err := s.deps.Window.Bookings.Create(r.Context(), draft, farmer)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, req)
}

func (s *HTTPServer) handleGetRequest(w http.ResponseWriter, r *http.Request) {
	req, err := s.deps.Window.Request(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, req)
}

type transitionFunc func(ctx context.Context, requestID string, actor models.Identity) (*models.RentalRequest, error)

func (s *HTTPServer) runTransition(w http.ResponseWriter, r *http.Request, fn transitionFunc) {
	actor, err := identityFromRequest(r)
	if err != nil {
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}
	req, err := fn(r.Context(), r.PathValue("id"), actor)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, req)
}

func (s *HTTPServer) handleAccept(w http.ResponseWriter, r *http.Request) {
	s.runTransition(w, r, s.deps.Window.Bookings.Accept)
}

func (s *HTTPServer) handleReject(w http.ResponseWriter, r *http.Request) {
	s.runTransition(w, r, s.deps.Window.Bookings.Reject)
}

func (s *HTTPServer) handleComplete(w http.ResponseWriter, r *http.Request) {
	s.runTransition(w, r, s.deps.Window.Bookings.Complete)
}

func (s *HTTPServer) handleCancel(w http.ResponseWriter, r *http.Request) {
	s.runTransition(w, r, s.deps.Window.Bookings.Cancel)
}

func (s *HTTPServer) handleDispute(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Details string `json:"details"`
	}
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	s.runTransition(w, r, func(ctx context.Context, id string, actor models.Identity) (*models.RentalRequest, error) {
		return s.deps.Window.Bookings.ReportDispute(ctx, id, actor, body.Details)
	})
}

func (s *HTTPServer) handleAgreement(w http.ResponseWriter, r *http.Request) {
	req, err := s.deps.Window.Request(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	cert, err := s.deps.Issuer.Certificate(req)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, cert)
}

func (s *HTTPServer) handleFarmerRequests(w http.ResponseWriter, r *http.Request) {
	s.listRequests(w, r, s.deps.Window.RequestsForFarmer)
}

func (s *HTTPServer) handleProviderRequests(w http.ResponseWriter, r *http.Request) {
	s.listRequests(w, r, s.deps.Window.RequestsForProvider)
}

func (s *HTTPServer) listRequests(
	w http.ResponseWriter,
	r *http.Request,
	list func(ctx context.Context, email string) ([]*models.RentalRequest, error),
) {
	email := strings.TrimSpace(r.PathValue("email"))
	if email == "" {
		writeError(w, http.StatusBadRequest, "email is required")
		return
	}
	requests, err := list(r.Context(), email)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	statuses := splitCSV(r.URL.Query().Get("status"))
	if len(statuses) > 0 {
		requests = filterByStatus(requests, statuses)
	}
	writeJSON(w, http.StatusOK, map[string]any{"requests": requests})
}

func filterByStatus(requests []*models.RentalRequest, statuses []string) []*models.RentalRequest {
	out := make([]*models.RentalRequest, 0, len(requests))
	for _, req := range requests {
		for _, st := range statuses {
			if strings.EqualFold(st, string(req.Status)) {
				out = append(out, req)
				break
			}
		}
	}
	return out
}

func splitCSV(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
