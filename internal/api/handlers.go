package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ignite/marketing-hub/internal/pkg/httputil"
	"github.com/ignite/marketing-hub/internal/platform"
	"github.com/ignite/marketing-hub/internal/unified"
)

const dateLayout = "2006-01-02"

// Handlers holds the HTTP handlers and their dependencies.
type Handlers struct {
	client *unified.Client
}

// NewHandlers creates the handler set around a unified client.
func NewHandlers(client *unified.Client) *Handlers {
	return &Handlers{client: client}
}

// HealthCheck responds to GET /health.
func (h *Handlers) HealthCheck(w http.ResponseWriter, r *http.Request) {
	httputil.OK(w, map[string]any{
		"status":    "ok",
		"time":      time.Now().UTC().Format(time.RFC3339),
		"connected": h.client.ConnectedPlatforms(),
	})
}

// PlatformStatus responds to GET /api/status with per-platform connection,
// credential and rate-limit state.
func (h *Handlers) PlatformStatus(w http.ResponseWriter, r *http.Request) {
	httputil.OK(w, h.client.GetPlatformStatus(r.Context()))
}

type performanceRequest struct {
	CampaignIDs []string `json:"campaign_ids"`
	StartDate   string   `json:"start_date"`
	EndDate     string   `json:"end_date"`
	Metrics     []string `json:"metrics"`
	Platforms   []string `json:"platforms"`
}

// FetchPerformance responds to POST /api/performance. Partial vendor
// failures still return 200; the errors map carries the detail.
func (h *Handlers) FetchPerformance(w http.ResponseWriter, r *http.Request) {
	var req performanceRequest
	if !httputil.Decode(w, r, &req) {
		return
	}

	start, err := time.Parse(dateLayout, req.StartDate)
	if err != nil {
		httputil.BadRequest(w, "invalid start_date, expected YYYY-MM-DD")
		return
	}
	end, err := time.Parse(dateLayout, req.EndDate)
	if err != nil {
		httputil.BadRequest(w, "invalid end_date, expected YYYY-MM-DD")
		return
	}

	platforms, err := parsePlatforms(req.Platforms)
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}

	result, err := h.client.FetchCampaignPerformance(r.Context(), req.CampaignIDs, start, end, req.Metrics, platforms)
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}
	httputil.OK(w, result)
}

type mutationRequest struct {
	CampaignIDs []string `json:"campaign_ids"`
	Platforms   []string `json:"platforms"`
}

// PauseCampaigns responds to POST /api/campaigns/pause.
func (h *Handlers) PauseCampaigns(w http.ResponseWriter, r *http.Request) {
	h.batchMutation(w, r, h.client.PauseCampaigns)
}

// StartCampaigns responds to POST /api/campaigns/start.
func (h *Handlers) StartCampaigns(w http.ResponseWriter, r *http.Request) {
	h.batchMutation(w, r, h.client.StartCampaigns)
}

func (h *Handlers) batchMutation(w http.ResponseWriter, r *http.Request, op func(ctx context.Context, ids []string, platforms []platform.Platform) *unified.MutationBatch) {
	var req mutationRequest
	if !httputil.Decode(w, r, &req) {
		return
	}
	if len(req.CampaignIDs) == 0 {
		httputil.BadRequest(w, "campaign_ids is required")
		return
	}

	platforms, err := parsePlatforms(req.Platforms)
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}

	httputil.OK(w, op(r.Context(), req.CampaignIDs, platforms))
}

type budgetRequest struct {
	Platform   string  `json:"platform"`
	NewBudget  float64 `json:"new_budget"`
	BudgetType string  `json:"budget_type"`
}

// UpdateBudget responds to PUT /api/campaigns/{campaignID}/budget.
func (h *Handlers) UpdateBudget(w http.ResponseWriter, r *http.Request) {
	campaignID := chi.URLParam(r, "campaignID")

	var req budgetRequest
	if !httputil.Decode(w, r, &req) {
		return
	}

	p := platform.Platform(req.Platform)
	if !p.Valid() {
		httputil.BadRequest(w, fmt.Sprintf("unknown platform %q", req.Platform))
		return
	}
	if req.NewBudget <= 0 {
		httputil.BadRequest(w, "new_budget must be positive")
		return
	}
	if req.BudgetType == "" {
		req.BudgetType = "daily"
	}

	result, err := h.client.UpdateCampaignBudget(r.Context(), p, campaignID, req.NewBudget, req.BudgetType)
	if err != nil {
		writePlatformError(w, err)
		return
	}
	httputil.OK(w, result)
}

type audienceRequest struct {
	AudienceID string                    `json:"audience_id"`
	Platforms  []string                  `json:"platforms"`
	Filters    *platform.AudienceFilters `json:"filters"`
}

// AudienceInsights responds to POST /api/audiences/insights.
func (h *Handlers) AudienceInsights(w http.ResponseWriter, r *http.Request) {
	var req audienceRequest
	if !httputil.Decode(w, r, &req) {
		return
	}

	platforms, err := parsePlatforms(req.Platforms)
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}

	httputil.OK(w, h.client.GetAudienceInsights(r.Context(), req.AudienceID, req.Filters, platforms))
}

// parsePlatforms validates platform names. Empty input selects every
// connected platform downstream.
func parsePlatforms(names []string) ([]platform.Platform, error) {
	out := make([]platform.Platform, 0, len(names))
	for _, name := range names {
		p := platform.Platform(name)
		if p != platform.All && !p.Valid() {
			return nil, fmt.Errorf("unknown platform %q", name)
		}
		out = append(out, p)
	}
	return out, nil
}

// writePlatformError maps the typed platform errors onto HTTP statuses. An
// APIError without a vendor status is a routing problem (platform not
// connected), not a vendor failure.
func writePlatformError(w http.ResponseWriter, err error) {
	var apiErr *platform.APIError
	var authErr *platform.AuthError
	var rlErr *platform.RateLimitError
	switch {
	case errors.As(err, &rlErr):
		httputil.Error(w, http.StatusTooManyRequests, err.Error())
	case errors.As(err, &authErr):
		httputil.Error(w, http.StatusBadGateway, err.Error())
	case errors.As(err, &apiErr):
		if apiErr.Status == 0 {
			httputil.Error(w, http.StatusConflict, err.Error())
			return
		}
		httputil.Error(w, http.StatusBadGateway, err.Error())
	default:
		httputil.InternalError(w, err)
	}
}
