package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ignite/marketing-hub/internal/platform"
	"github.com/ignite/marketing-hub/internal/unified"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubPlatform is a canned platform.Client for routing tests.
type stubPlatform struct {
	p        platform.Platform
	readOnly bool
	perf     *platform.PerformanceResult
	fetchErr error
}

func (s *stubPlatform) Platform() platform.Platform                 { return s.p }
func (s *stubPlatform) ReadOnly() bool                              { return s.readOnly }
func (s *stubPlatform) Connect(ctx context.Context) error           { return nil }
func (s *stubPlatform) Disconnect(ctx context.Context) error        { return nil }
func (s *stubPlatform) Authenticate(ctx context.Context) error      { return nil }
func (s *stubPlatform) RateLimitUsage() platform.WindowUsage        { return platform.WindowUsage{} }
func (s *stubPlatform) ValidateCredentials(ctx context.Context) (bool, error) {
	return true, nil
}

func (s *stubPlatform) FetchCampaignPerformance(ctx context.Context, ids []string, start, end time.Time, metrics []string) (*platform.PerformanceResult, error) {
	if s.fetchErr != nil {
		return nil, s.fetchErr
	}
	return s.perf, nil
}

func (s *stubPlatform) UpdateCampaignBudget(ctx context.Context, id string, budget float64, budgetType string) (*platform.MutationResult, error) {
	return &platform.MutationResult{Platform: s.p, CampaignID: id, Status: "updated", NewBudget: budget, BudgetType: budgetType}, nil
}

func (s *stubPlatform) PauseCampaign(ctx context.Context, id string) (*platform.MutationResult, error) {
	return &platform.MutationResult{Platform: s.p, CampaignID: id, Status: "paused"}, nil
}

func (s *stubPlatform) StartCampaign(ctx context.Context, id string) (*platform.MutationResult, error) {
	return &platform.MutationResult{Platform: s.p, CampaignID: id, Status: "enabled"}, nil
}

func (s *stubPlatform) GetAudienceInsights(ctx context.Context, audienceID string, filters *platform.AudienceFilters) (*platform.AudienceInsights, error) {
	return &platform.AudienceInsights{Platform: s.p, Audiences: []platform.Audience{{ID: "a1", Size: 100}}}, nil
}

func newTestServer(t *testing.T, stubs ...*stubPlatform) http.Handler {
	t.Helper()
	clients := make([]platform.Client, len(stubs))
	for i, s := range stubs {
		clients[i] = s
	}
	uc := unified.New(clients...)
	require.Empty(t, uc.ConnectAll(context.Background()))
	return SetupRoutes(NewHandlers(uc))
}

func doJSON(t *testing.T, handler http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestHealthCheck(t *testing.T) {
	handler := newTestServer(t, &stubPlatform{p: platform.GoogleAds})

	rec := doJSON(t, handler, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
}

func TestPlatformStatus(t *testing.T) {
	handler := newTestServer(t,
		&stubPlatform{p: platform.GoogleAds},
		&stubPlatform{p: platform.GoogleAnalytics, readOnly: true},
	)

	rec := doJSON(t, handler, http.MethodGet, "/api/status", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]unified.PlatformStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.True(t, body["google_ads"].Connected)
	assert.True(t, body["google_analytics"].ReadOnly)
}

func TestFetchPerformance(t *testing.T) {
	handler := newTestServer(t, &stubPlatform{p: platform.GoogleAds, perf: &platform.PerformanceResult{
		Platform: platform.GoogleAds,
		Data: []platform.Record{{
			CampaignID: "c1",
			Metrics:    map[string]float64{"impressions": 1000, "clicks": 20},
		}},
		TotalResults: 1,
	}})

	rec := doJSON(t, handler, http.MethodPost, "/api/performance", performanceRequest{
		CampaignIDs: []string{"c1"},
		StartDate:   "2026-08-01",
		EndDate:     "2026-08-07",
		Metrics:     []string{"impressions", "clicks"},
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var result unified.FetchResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.NotEmpty(t, result.RequestID)
	assert.Equal(t, 1000.0, result.Summary.Metrics["impressions"])
	assert.InDelta(t, 2.0, result.Summary.Metrics["ctr"], 1e-9)
}

func TestFetchPerformancePartialFailureStill200(t *testing.T) {
	handler := newTestServer(t,
		&stubPlatform{p: platform.GoogleAds, perf: &platform.PerformanceResult{Platform: platform.GoogleAds}},
		&stubPlatform{p: platform.FacebookAds, fetchErr: &platform.AuthError{Platform: platform.FacebookAds, Reason: "token expired"}},
	)

	rec := doJSON(t, handler, http.MethodPost, "/api/performance", performanceRequest{
		StartDate: "2026-08-01",
		EndDate:   "2026-08-07",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var result unified.FetchResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Contains(t, result.Errors[platform.FacebookAds], "token expired")
}

func TestFetchPerformanceValidation(t *testing.T) {
	handler := newTestServer(t, &stubPlatform{p: platform.GoogleAds})

	cases := map[string]performanceRequest{
		"bad start date":   {StartDate: "08/01/2026", EndDate: "2026-08-07"},
		"bad end date":     {StartDate: "2026-08-01", EndDate: "soon"},
		"inverted range":   {StartDate: "2026-08-07", EndDate: "2026-08-01"},
		"unknown platform": {StartDate: "2026-08-01", EndDate: "2026-08-07", Platforms: []string{"tiktok"}},
	}
	for name, req := range cases {
		t.Run(name, func(t *testing.T) {
			rec := doJSON(t, handler, http.MethodPost, "/api/performance", req)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestPauseCampaigns(t *testing.T) {
	handler := newTestServer(t, &stubPlatform{p: platform.GoogleAds})

	rec := doJSON(t, handler, http.MethodPost, "/api/campaigns/pause", mutationRequest{CampaignIDs: []string{"c1"}})
	require.Equal(t, http.StatusOK, rec.Code)

	var batch unified.MutationBatch
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &batch))
	require.Contains(t, batch.Results, "google_ads:c1")
	assert.Equal(t, "paused", batch.Results["google_ads:c1"].Status)
}

func TestPauseCampaignsRequiresIDs(t *testing.T) {
	handler := newTestServer(t, &stubPlatform{p: platform.GoogleAds})
	rec := doJSON(t, handler, http.MethodPost, "/api/campaigns/pause", mutationRequest{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUpdateBudget(t *testing.T) {
	handler := newTestServer(t, &stubPlatform{p: platform.GoogleAds})

	rec := doJSON(t, handler, http.MethodPut, "/api/campaigns/c1/budget", budgetRequest{
		Platform:  "google_ads",
		NewBudget: 75.5,
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var result platform.MutationResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Equal(t, "c1", result.CampaignID)
	assert.Equal(t, 75.5, result.NewBudget)
	assert.Equal(t, "daily", result.BudgetType, "budget type defaults to daily")
}

func TestUpdateBudgetValidation(t *testing.T) {
	handler := newTestServer(t, &stubPlatform{p: platform.GoogleAds})

	rec := doJSON(t, handler, http.MethodPut, "/api/campaigns/c1/budget", budgetRequest{Platform: "myspace", NewBudget: 10})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, handler, http.MethodPut, "/api/campaigns/c1/budget", budgetRequest{Platform: "google_ads", NewBudget: 0})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUpdateBudgetUnconnectedPlatform(t *testing.T) {
	handler := newTestServer(t, &stubPlatform{p: platform.GoogleAds})

	rec := doJSON(t, handler, http.MethodPut, "/api/campaigns/c1/budget", budgetRequest{
		Platform:  "facebook_ads",
		NewBudget: 10,
	})
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestAudienceInsights(t *testing.T) {
	handler := newTestServer(t, &stubPlatform{p: platform.GoogleAds}, &stubPlatform{p: platform.FacebookAds})

	rec := doJSON(t, handler, http.MethodPost, "/api/audiences/insights", audienceRequest{
		Filters: &platform.AudienceFilters{IncludeDemographics: true},
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var report unified.AudienceReport
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	assert.Equal(t, 2, report.Combined.TotalAudiences)
	assert.Equal(t, int64(200), report.Combined.TotalReach)
}
