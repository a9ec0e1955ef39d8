// Package googleanalytics implements the GA4 Data API platform client. The
// platform is read-only: reporting works like any other platform, while
// budget and status mutations return a not_supported result instead of
// calling the vendor.
package googleanalytics

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/ignite/marketing-hub/internal/config"
	"github.com/ignite/marketing-hub/internal/pkg/httpretry"
	"github.com/ignite/marketing-hub/internal/pkg/logger"
	"github.com/ignite/marketing-hub/internal/pkg/ratelimit"
	"github.com/ignite/marketing-hub/internal/platform"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

const analyticsScope = "https://www.googleapis.com/auth/analytics.readonly"

var defaultLimits = ratelimit.Config{
	PerMinute: 120,
	PerHour:   3600,
	PerDay:    50000,
}

// Client is the GA4 Data API client.
type Client struct {
	cfg     config.GoogleAnalyticsConfig
	limiter *ratelimit.Limiter

	base       *http.Client
	httpClient httpretry.Doer

	// tokenFunc performs the credential exchange; replaced in tests.
	tokenFunc func(ctx context.Context) (*oauth2.Token, error)

	mu            sync.Mutex
	accessToken   string
	tokenExpiry   time.Time
	authenticated bool
	connected     bool
}

// NewClient creates a new Google Analytics client. shared is an optional
// cross-process quota; nil means local-only.
func NewClient(cfg config.GoogleAnalyticsConfig, shared httpretry.Waiter) *Client {
	limiter := ratelimit.New(resolveLimits(cfg.RateLimit))
	base := &http.Client{Timeout: cfg.Timeout()}
	c := &Client{
		cfg:     cfg,
		limiter: limiter,
		base:    base,
		httpClient: httpretry.New(base, httpretry.ChainWaiters(limiter, shared), httpretry.Config{
			Platform:          platform.GoogleAnalytics,
			MaxRetries:        cfg.RateLimit.MaxRetries,
			DefaultRetryAfter: cfg.RateLimit.RetryAfter(),
		}),
	}
	c.tokenFunc = c.exchangeToken
	return c
}

func resolveLimits(rl config.RateLimitConfig) ratelimit.Config {
	out := defaultLimits
	if rl.PerMinute > 0 {
		out.PerMinute = rl.PerMinute
	}
	if rl.PerHour > 0 {
		out.PerHour = rl.PerHour
	}
	if rl.PerDay > 0 {
		out.PerDay = rl.PerDay
	}
	out.RetryAfter = rl.RetryAfter()
	out.MaxRetries = rl.MaxRetries
	return out
}

// Platform returns the platform identity.
func (c *Client) Platform() platform.Platform { return platform.GoogleAnalytics }

// ReadOnly reports whether the platform has mutation capability.
func (c *Client) ReadOnly() bool { return true }

// Connect marks the transport usable and authenticates.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	c.connected = true
	c.mu.Unlock()
	return c.Authenticate(ctx)
}

// Disconnect releases idle connections and clears the auth state.
func (c *Client) Disconnect(ctx context.Context) error {
	c.mu.Lock()
	c.connected = false
	c.authenticated = false
	c.accessToken = ""
	c.mu.Unlock()
	c.base.CloseIdleConnections()
	return nil
}

// Authenticate exchanges the configured credentials for an access token.
func (c *Client) Authenticate(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.authenticateLocked(ctx)
}

func (c *Client) authenticateLocked(ctx context.Context) error {
	if c.cfg.PropertyID == "" {
		return &platform.AuthError{Platform: platform.GoogleAnalytics, Reason: "missing GA4 property ID"}
	}

	tok, err := c.tokenFunc(ctx)
	if err != nil {
		var authErr *platform.AuthError
		if errors.As(err, &authErr) {
			return err
		}
		return &platform.AuthError{Platform: platform.GoogleAnalytics, Reason: err.Error()}
	}

	c.accessToken = tok.AccessToken
	c.tokenExpiry = tok.Expiry
	c.authenticated = true
	return nil
}

func (c *Client) exchangeToken(ctx context.Context) (*oauth2.Token, error) {
	if c.cfg.ServiceAccountPath != "" {
		if _, err := os.Stat(c.cfg.ServiceAccountPath); err == nil {
			data, err := os.ReadFile(c.cfg.ServiceAccountPath)
			if err != nil {
				return nil, fmt.Errorf("reading service account key: %w", err)
			}
			jwtCfg, err := google.JWTConfigFromJSON(data, analyticsScope)
			if err != nil {
				return nil, fmt.Errorf("parsing service account key: %w", err)
			}
			return jwtCfg.TokenSource(ctx).Token()
		}
	}

	if c.cfg.ClientID == "" || c.cfg.ClientSecret == "" || c.cfg.RefreshToken == "" {
		return nil, &platform.AuthError{Platform: platform.GoogleAnalytics, Reason: "missing OAuth2 credentials for Google Analytics"}
	}

	conf := &oauth2.Config{
		ClientID:     c.cfg.ClientID,
		ClientSecret: c.cfg.ClientSecret,
		Endpoint:     google.Endpoint,
	}
	return conf.TokenSource(ctx, &oauth2.Token{RefreshToken: c.cfg.RefreshToken}).Token()
}

func (c *Client) ensureToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.connected {
		return "", fmt.Errorf("googleanalytics: client not connected, call Connect first")
	}
	if !c.authenticated || (!c.tokenExpiry.IsZero() && time.Now().After(c.tokenExpiry.Add(-time.Minute))) {
		if err := c.authenticateLocked(ctx); err != nil {
			return "", err
		}
	}
	return c.accessToken, nil
}

func (c *Client) doRequest(ctx context.Context, method, path string, body any) ([]byte, error) {
	token, err := c.ensureToken(ctx)
	if err != nil {
		return nil, err
	}

	var reqBody io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshaling request body: %w", err)
		}
		reqBody = bytes.NewReader(jsonBody)
	}

	fullURL := fmt.Sprintf("%s/%s%s", c.cfg.BaseURL, c.cfg.APIVersion, path)
	req, err := http.NewRequestWithContext(ctx, method, fullURL, reqBody)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		var authErr *platform.AuthError
		if errors.As(err, &authErr) {
			c.mu.Lock()
			c.authenticated = false
			c.mu.Unlock()
		}
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}
	return respBody, nil
}

// ValidateCredentials probes the property metadata endpoint.
func (c *Client) ValidateCredentials(ctx context.Context) (bool, error) {
	_, err := c.doRequest(ctx, http.MethodGet, fmt.Sprintf("/properties/%s/metadata", c.cfg.PropertyID), nil)
	if err == nil {
		return true, nil
	}
	var apiErr *platform.APIError
	var authErr *platform.AuthError
	var rlErr *platform.RateLimitError
	if errors.As(err, &apiErr) || errors.As(err, &authErr) || errors.As(err, &rlErr) {
		return false, nil
	}
	return false, err
}

// runReport executes a report against the configured property.
func (c *Client) runReport(ctx context.Context, req runReportRequest) (*runReportResponse, error) {
	body, err := c.doRequest(ctx, http.MethodPost, fmt.Sprintf("/properties/%s:runReport", c.cfg.PropertyID), req)
	if err != nil {
		return nil, err
	}
	var response runReportResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return nil, fmt.Errorf("parsing report: %w", err)
	}
	return &response, nil
}

// FetchCampaignPerformance reports per-campaign daily traffic keyed by the
// session campaign dimensions. An empty campaignIDs slice reports every
// campaign; otherwise the report is filtered to the given IDs.
func (c *Client) FetchCampaignPerformance(ctx context.Context, campaignIDs []string, start, end time.Time, metrics []string) (*platform.PerformanceResult, error) {
	req := runReportRequest{
		DateRanges: []dateRange{{StartDate: start.Format("2006-01-02"), EndDate: end.Format("2006-01-02")}},
		Dimensions: []dimension{{Name: "date"}, {Name: "sessionCampaignId"}, {Name: "sessionCampaignName"}},
		Limit:      "10000",
	}
	mapped := make([]string, 0, len(metrics))
	for _, m := range metrics {
		name, ok := MapMetric(m)
		if !ok {
			logger.Warn("unmapped metric requested", "platform", platform.GoogleAnalytics.String(), "metric", m)
			continue
		}
		req.Metrics = append(req.Metrics, metricRef{Name: name})
		mapped = append(mapped, m)
	}
	if len(mapped) == 0 {
		return nil, fmt.Errorf("googleanalytics: none of the requested metrics %v map to a vendor field", metrics)
	}
	if len(campaignIDs) > 0 {
		req.DimensionFilter = &filterExpr{Filter: &dimensionFilter{
			FieldName:    "sessionCampaignId",
			InListFilter: &inListFilter{Values: campaignIDs},
		}}
	}

	response, err := c.runReport(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("fetching campaign performance: %w", err)
	}

	records := []platform.Record{}
	for _, row := range response.Rows {
		if len(row.DimensionValues) < 3 {
			continue
		}
		rec := platform.Record{
			Date:         formatReportDate(row.DimensionValues[0].Value),
			CampaignID:   row.DimensionValues[1].Value,
			CampaignName: row.DimensionValues[2].Value,
			Metrics:      make(map[string]float64, len(mapped)),
		}
		for i, m := range mapped {
			if i < len(row.MetricValues) {
				rec.Metrics[m] = parseNum(row.MetricValues[i].Value)
			}
		}
		records = append(records, rec)
	}

	return &platform.PerformanceResult{
		Platform:     platform.GoogleAnalytics,
		Data:         records,
		TotalResults: len(records),
		QueryDate:    time.Now().UTC(),
	}, nil
}

// UpdateCampaignBudget declines the mutation: GA4 has no budget surface.
func (c *Client) UpdateCampaignBudget(ctx context.Context, campaignID string, newBudget float64, budgetType string) (*platform.MutationResult, error) {
	return c.notSupported(campaignID, "budget updates"), nil
}

// PauseCampaign declines the mutation: GA4 has no campaign control surface.
func (c *Client) PauseCampaign(ctx context.Context, campaignID string) (*platform.MutationResult, error) {
	return c.notSupported(campaignID, "campaign pausing"), nil
}

// StartCampaign declines the mutation: GA4 has no campaign control surface.
func (c *Client) StartCampaign(ctx context.Context, campaignID string) (*platform.MutationResult, error) {
	return c.notSupported(campaignID, "campaign starting"), nil
}

func (c *Client) notSupported(campaignID, capability string) *platform.MutationResult {
	return &platform.MutationResult{
		Platform:   platform.GoogleAnalytics,
		CampaignID: campaignID,
		Status:     platform.StatusNotSupported,
		Message:    fmt.Sprintf("google_analytics does not support %s", capability),
		UpdatedAt:  time.Now().UTC(),
	}
}

// GetAudienceInsights reports active-user distributions by age bracket,
// gender and country over the last 30 days. GA4 audiences live in the Admin
// API, so the audience list stays empty here.
func (c *Client) GetAudienceInsights(ctx context.Context, audienceID string, filters *platform.AudienceFilters) (*platform.AudienceInsights, error) {
	insights := &platform.AudienceInsights{
		Platform:    platform.GoogleAnalytics,
		Audiences:   []platform.Audience{},
		RetrievedAt: time.Now().UTC(),
	}

	last30 := []dateRange{{StartDate: "30daysAgo", EndDate: "today"}}

	ageReport, err := c.runReport(ctx, runReportRequest{
		DateRanges: last30,
		Dimensions: []dimension{{Name: "userAgeBracket"}},
		Metrics:    []metricRef{{Name: "activeUsers"}},
	})
	if err != nil {
		return nil, fmt.Errorf("fetching age distribution: %w", err)
	}

	genderReport, err := c.runReport(ctx, runReportRequest{
		DateRanges: last30,
		Dimensions: []dimension{{Name: "userGender"}},
		Metrics:    []metricRef{{Name: "activeUsers"}},
	})
	if err != nil {
		return nil, fmt.Errorf("fetching gender distribution: %w", err)
	}

	countryReport, err := c.runReport(ctx, runReportRequest{
		DateRanges: last30,
		Dimensions: []dimension{{Name: "country"}},
		Metrics:    []metricRef{{Name: "activeUsers"}},
		Limit:      "50",
	})
	if err != nil {
		return nil, fmt.Errorf("fetching country distribution: %w", err)
	}

	insights.DemographicInsights = platform.DemographicInsights{
		AgeDistribution:    bucketDistribution(ageReport),
		GenderDistribution: bucketDistribution(genderReport),
	}
	insights.GeographicInsights = map[string]map[string]float64{
		"country": bucketDistribution(countryReport),
	}
	return insights, nil
}

// bucketDistribution folds a one-dimension, one-metric report into a
// bucket -> value map, skipping the vendor's unknown bucket.
func bucketDistribution(report *runReportResponse) map[string]float64 {
	out := map[string]float64{}
	for _, row := range report.Rows {
		if len(row.DimensionValues) < 1 || len(row.MetricValues) < 1 {
			continue
		}
		bucket := row.DimensionValues[0].Value
		if bucket == "" || bucket == "unknown" {
			continue
		}
		out[bucket] += parseNum(row.MetricValues[0].Value)
	}
	return out
}

// formatReportDate converts the report's YYYYMMDD date into YYYY-MM-DD.
func formatReportDate(d string) string {
	if len(d) != 8 {
		return d
	}
	return d[:4] + "-" + d[4:6] + "-" + d[6:]
}

func parseNum(s string) float64 {
	if s == "" {
		return 0
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return v
}

// RateLimitUsage reports the local rolling-window occupancy.
func (c *Client) RateLimitUsage() platform.WindowUsage {
	u := c.limiter.Usage()
	return platform.WindowUsage{RequestsLastMinute: u.Minute, RequestsLastHour: u.Hour, RequestsLastDay: u.Day}
}
