package api

import (
	"context"
	"net/http"

	"github.com/ignite/leadintel/internal/domain"
	"github.com/ignite/leadintel/internal/pkg/httputil"
	"github.com/ignite/leadintel/internal/service/intelligence"
)

// IntelligenceService is the part of intelligence.Service the handlers use.
type IntelligenceService interface {
	Analyze(ctx context.Context, orgID string, req intelligence.AnalyzeRequest) (*domain.ProfileView, error)
	Get(ctx context.Context, orgID string, ref domain.SubjectRef) (*domain.ProfileView, error)
	Top(ctx context.Context, orgID string, limit int) ([]domain.ProfileView, error)
}

// IntelligenceHandlers serves the lead intelligence endpoints.
type IntelligenceHandlers struct {
	svc IntelligenceService
}

// NewIntelligenceHandlers creates the handlers.
func NewIntelligenceHandlers(svc IntelligenceService) *IntelligenceHandlers {
	return &IntelligenceHandlers{svc: svc}
}

type analyzeRequest struct {
	LeadID       string `json:"lead_id"`
	ContactID    string `json:"contact_id"`
	ForceRefresh bool   `json:"force_refresh"`
}

// HandleAnalyze computes or returns the cached intelligence of a subject.
//
//	POST /api/intelligence/analyze
func (h *IntelligenceHandlers) HandleAnalyze(w http.ResponseWriter, r *http.Request) {
	var req analyzeRequest
	if !httputil.Decode(w, r, &req) {
		return
	}
	view, err := h.svc.Analyze(r.Context(), GetOrgIDFromContext(r.Context()), intelligence.AnalyzeRequest{
		Subject:      domain.SubjectRef{LeadID: req.LeadID, ContactID: req.ContactID},
		ForceRefresh: req.ForceRefresh,
	})
	if err != nil {
		respondServiceError(w, err)
		return
	}
	httputil.OK(w, view)
}

// HandleGet returns one subject's stored view, or the top profiles of the
// organization when no subject is named.
//
//	GET /api/intelligence?lead_id=|contact_id=
//	GET /api/intelligence?limit=
func (h *IntelligenceHandlers) HandleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	orgID := GetOrgIDFromContext(ctx)
	q := r.URL.Query()
	ref := domain.SubjectRef{LeadID: q.Get("lead_id"), ContactID: q.Get("contact_id")}

	if ref.IsZero() {
		limit := httputil.QueryInt(r, "limit", 0, intelligence.MaxTopLimit)
		views, err := h.svc.Top(ctx, orgID, limit)
		if err != nil {
			respondServiceError(w, err)
			return
		}
		httputil.OK(w, map[string]any{
			"profiles": views,
			"count":    len(views),
		})
		return
	}

	view, err := h.svc.Get(ctx, orgID, ref)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	httputil.OK(w, view)
}
