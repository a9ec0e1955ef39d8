// Package googleads implements the Google Ads platform client. Queries are
// expressed in Google Ads Query Language and cost figures arrive in micros
// (1 currency unit = 1,000,000 micros).
package googleads

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
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

const adWordsScope = "https://www.googleapis.com/auth/adwords"

// Google Ads enforces strict per-developer-token quotas.
var defaultLimits = ratelimit.Config{
	PerMinute: 30,
	PerHour:   900,
	PerDay:    15000,
}

// Client is the Google Ads API client. It owns its transport, rate limiter
// and authentication state exclusively.
type Client struct {
	cfg     config.GoogleAdsConfig
	limiter *ratelimit.Limiter

	base       *http.Client
	httpClient httpretry.Doer

	// tokenFunc performs the platform credential exchange; replaced in tests.
	tokenFunc func(ctx context.Context) (*oauth2.Token, error)

	mu            sync.Mutex
	accessToken   string
	tokenExpiry   time.Time
	authenticated bool
	connected     bool
}

// NewClient creates a new Google Ads client. shared is an optional
// cross-process quota (e.g. a Redis-backed limiter); nil means local-only.
func NewClient(cfg config.GoogleAdsConfig, shared httpretry.Waiter) *Client {
	limiter := ratelimit.New(resolveLimits(cfg.RateLimit))
	base := &http.Client{Timeout: cfg.Timeout()}
	c := &Client{
		cfg:     cfg,
		limiter: limiter,
		base:    base,
		httpClient: httpretry.New(base, httpretry.ChainWaiters(limiter, shared), httpretry.Config{
			Platform:          platform.GoogleAds,
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
func (c *Client) Platform() platform.Platform { return platform.GoogleAds }

// ReadOnly reports whether the platform has mutation capability.
func (c *Client) ReadOnly() bool { return false }

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
// Service-account keys win over the OAuth refresh-token flow when both are
// configured.
func (c *Client) Authenticate(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.authenticateLocked(ctx)
}

func (c *Client) authenticateLocked(ctx context.Context) error {
	if c.cfg.DeveloperToken == "" || c.cfg.CustomerID == "" {
		return &platform.AuthError{Platform: platform.GoogleAds, Reason: "missing required Google Ads credentials"}
	}

	tok, err := c.tokenFunc(ctx)
	if err != nil {
		var authErr *platform.AuthError
		if errors.As(err, &authErr) {
			return err
		}
		return &platform.AuthError{Platform: platform.GoogleAds, Reason: err.Error()}
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
			jwtCfg, err := google.JWTConfigFromJSON(data, adWordsScope)
			if err != nil {
				return nil, fmt.Errorf("parsing service account key: %w", err)
			}
			return jwtCfg.TokenSource(ctx).Token()
		}
	}

	if c.cfg.ClientID == "" || c.cfg.ClientSecret == "" || c.cfg.RefreshToken == "" {
		return nil, &platform.AuthError{Platform: platform.GoogleAds, Reason: "missing OAuth2 credentials for Google Ads"}
	}

	conf := &oauth2.Config{
		ClientID:     c.cfg.ClientID,
		ClientSecret: c.cfg.ClientSecret,
		Endpoint:     google.Endpoint,
	}
	return conf.TokenSource(ctx, &oauth2.Token{RefreshToken: c.cfg.RefreshToken}).Token()
}

// ensureToken returns a usable access token, re-authenticating lazily when
// the state was invalidated by a 401 or the token expired.
func (c *Client) ensureToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.connected {
		return "", fmt.Errorf("googleads: client not connected, call Connect first")
	}
	if !c.authenticated || (!c.tokenExpiry.IsZero() && time.Now().After(c.tokenExpiry.Add(-time.Minute))) {
		if err := c.authenticateLocked(ctx); err != nil {
			return "", err
		}
	}
	return c.accessToken, nil
}

// doRequest issues an authenticated request and returns the response body.
// A 401 clears the auth state so the next call re-authenticates.
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
	req.Header.Set("developer-token", c.cfg.DeveloperToken)
	req.Header.Set("login-customer-id", c.cfg.LoginCustomerID)
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

// ValidateCredentials probes the customer resource. Ordinary rejection
// returns false without an error.
func (c *Client) ValidateCredentials(ctx context.Context) (bool, error) {
	_, err := c.doRequest(ctx, http.MethodGet, "/customers/"+c.cfg.CustomerID, nil)
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

// FetchCampaignPerformance runs a GAQL query over the requested campaigns
// and date range and normalizes the rows into generic metric records.
// Unmapped metrics are logged and skipped rather than guessed.
func (c *Client) FetchCampaignPerformance(ctx context.Context, campaignIDs []string, start, end time.Time, metrics []string) (*platform.PerformanceResult, error) {
	fields := make([]string, 0, len(metrics))
	mapped := make([]string, 0, len(metrics))
	for _, m := range metrics {
		field, ok := MapMetric(m)
		if !ok {
			logger.Warn("unmapped metric requested", "platform", platform.GoogleAds.String(), "metric", m)
			continue
		}
		fields = append(fields, field)
		mapped = append(mapped, m)
	}
	if len(fields) == 0 {
		return nil, fmt.Errorf("googleads: none of the requested metrics %v map to a vendor field", metrics)
	}

	query := fmt.Sprintf(`SELECT campaign.id, campaign.name, campaign.status, segments.date, %s FROM campaign WHERE campaign.id IN (%s) AND segments.date BETWEEN '%s' AND '%s' ORDER BY segments.date DESC`,
		strings.Join(fields, ", "),
		strings.Join(campaignIDs, ", "),
		start.Format("2006-01-02"),
		end.Format("2006-01-02"))

	body, err := c.doRequest(ctx, http.MethodPost,
		fmt.Sprintf("/customers/%s/googleAds:searchStream", c.cfg.CustomerID),
		searchRequest{Query: query})
	if err != nil {
		return nil, fmt.Errorf("fetching campaign performance: %w", err)
	}

	var response searchStreamResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return nil, fmt.Errorf("parsing campaign performance: %w", err)
	}

	records := []platform.Record{}
	for _, batch := range response.Results {
		for _, row := range batch.Results {
			rec := platform.Record{
				CampaignID:   row.Campaign.ID,
				CampaignName: row.Campaign.Name,
				Date:         row.Segments.Date,
				Metrics:      make(map[string]float64, len(mapped)),
			}
			for i, m := range mapped {
				value, _ := row.Metrics[gaqlFieldToJSONKey(fields[i])].Float64()
				if isMicrosMetric(m) {
					value /= 1_000_000
				}
				rec.Metrics[m] = value
			}
			records = append(records, rec)
		}
	}

	return &platform.PerformanceResult{
		Platform:     platform.GoogleAds,
		Data:         records,
		TotalResults: len(records),
		QueryDate:    time.Now().UTC(),
	}, nil
}

// UpdateCampaignBudget looks up the campaign's budget resource and mutates
// its amount. Budgets are written in micros.
func (c *Client) UpdateCampaignBudget(ctx context.Context, campaignID string, newBudget float64, budgetType string) (*platform.MutationResult, error) {
	query := fmt.Sprintf(`SELECT campaign.id, campaign.name, campaign_budget.id, campaign_budget.amount_micros FROM campaign WHERE campaign.id = %s`, campaignID)

	body, err := c.doRequest(ctx, http.MethodPost,
		fmt.Sprintf("/customers/%s/googleAds:search", c.cfg.CustomerID),
		searchRequest{Query: query})
	if err != nil {
		return nil, fmt.Errorf("looking up campaign budget: %w", err)
	}

	var response searchResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return nil, fmt.Errorf("parsing budget lookup: %w", err)
	}
	if len(response.Results) == 0 {
		return nil, &platform.APIError{Platform: platform.GoogleAds, Body: fmt.Sprintf("campaign %s not found", campaignID)}
	}

	budgetID := response.Results[0].CampaignBudget.ID
	budgetMicros := int64(newBudget * 1_000_000)

	mutation := mutateRequest{Operations: []mutateOperation{{
		Update: map[string]any{
			"resource_name": fmt.Sprintf("customers/%s/campaignBudgets/%s", c.cfg.CustomerID, budgetID),
			"amount_micros": budgetMicros,
		},
		UpdateMask: "amount_micros",
	}}}

	if _, err := c.doRequest(ctx, http.MethodPost,
		fmt.Sprintf("/customers/%s/campaignBudgets:mutate", c.cfg.CustomerID),
		mutation); err != nil {
		return nil, fmt.Errorf("updating campaign budget: %w", err)
	}

	return &platform.MutationResult{
		Platform:   platform.GoogleAds,
		CampaignID: campaignID,
		Status:     "updated",
		NewBudget:  newBudget,
		BudgetType: budgetType,
		BudgetID:   budgetID,
		UpdatedAt:  time.Now().UTC(),
	}, nil
}

// PauseCampaign sets the campaign status to PAUSED.
func (c *Client) PauseCampaign(ctx context.Context, campaignID string) (*platform.MutationResult, error) {
	return c.updateCampaignStatus(ctx, campaignID, "PAUSED")
}

// StartCampaign sets the campaign status to ENABLED.
func (c *Client) StartCampaign(ctx context.Context, campaignID string) (*platform.MutationResult, error) {
	return c.updateCampaignStatus(ctx, campaignID, "ENABLED")
}

func (c *Client) updateCampaignStatus(ctx context.Context, campaignID, status string) (*platform.MutationResult, error) {
	mutation := mutateRequest{Operations: []mutateOperation{{
		Update: map[string]any{
			"resource_name": fmt.Sprintf("customers/%s/campaigns/%s", c.cfg.CustomerID, campaignID),
			"status":        status,
		},
		UpdateMask: "status",
	}}}

	if _, err := c.doRequest(ctx, http.MethodPost,
		fmt.Sprintf("/customers/%s/campaigns:mutate", c.cfg.CustomerID),
		mutation); err != nil {
		return nil, fmt.Errorf("updating campaign status: %w", err)
	}

	return &platform.MutationResult{
		Platform:   platform.GoogleAds,
		CampaignID: campaignID,
		Status:     strings.ToLower(status),
		UpdatedAt:  time.Now().UTC(),
	}, nil
}

// GetAudienceInsights lists audiences and, when requested, aggregates
// demographic ad-group segments from the last 30 days.
func (c *Client) GetAudienceInsights(ctx context.Context, audienceID string, filters *platform.AudienceFilters) (*platform.AudienceInsights, error) {
	query := `SELECT audience.id, audience.name, audience.description, audience.status, user_list.size_for_display, user_list.size_for_search, user_list.eligible_for_display, user_list.eligible_for_search FROM audience`
	if audienceID != "" {
		query += fmt.Sprintf(" WHERE audience.id = %s", audienceID)
	}
	query += " LIMIT 100"

	searchPath := fmt.Sprintf("/customers/%s/googleAds:search", c.cfg.CustomerID)
	body, err := c.doRequest(ctx, http.MethodPost, searchPath, searchRequest{Query: query})
	if err != nil {
		return nil, fmt.Errorf("fetching audiences: %w", err)
	}

	var response searchResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return nil, fmt.Errorf("parsing audiences: %w", err)
	}

	insights := &platform.AudienceInsights{
		Platform:    platform.GoogleAds,
		Audiences:   []platform.Audience{},
		RetrievedAt: time.Now().UTC(),
	}
	for _, row := range response.Results {
		size, _ := row.UserList.SizeForDisplay.Int64()
		insights.Audiences = append(insights.Audiences, platform.Audience{
			ID:          row.Audience.ID,
			Name:        row.Audience.Name,
			Description: row.Audience.Description,
			Status:      row.Audience.Status,
			Size:        size,
		})
	}

	if filters != nil && filters.IncludeDemographics {
		demo, err := c.fetchDemographics(ctx, searchPath)
		if err != nil {
			return nil, err
		}
		insights.DemographicInsights = *demo
	}

	return insights, nil
}

// fetchDemographics aggregates impressions by age bracket and gender.
func (c *Client) fetchDemographics(ctx context.Context, searchPath string) (*platform.DemographicInsights, error) {
	query := `SELECT campaign.id, ad_group.id, segments.demographic_age_range, segments.demographic_gender, metrics.impressions, metrics.clicks, metrics.conversions FROM ad_group WHERE segments.date DURING LAST_30_DAYS LIMIT 1000`

	body, err := c.doRequest(ctx, http.MethodPost, searchPath, searchRequest{Query: query})
	if err != nil {
		return nil, fmt.Errorf("fetching demographics: %w", err)
	}

	var response searchResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return nil, fmt.Errorf("parsing demographics: %w", err)
	}

	demo := &platform.DemographicInsights{
		AgeDistribution:    map[string]float64{},
		GenderDistribution: map[string]float64{},
	}
	for _, row := range response.Results {
		impressions, _ := row.Metrics["impressions"].Float64()
		if age := row.Segments.DemographicAgeRange; age != "" && age != "UNKNOWN" {
			demo.AgeDistribution[age] += impressions
		}
		if gender := row.Segments.DemographicGender; gender != "" && gender != "UNKNOWN" {
			demo.GenderDistribution[gender] += impressions
		}
	}
	return demo, nil
}

// RateLimitUsage reports the local rolling-window occupancy.
func (c *Client) RateLimitUsage() platform.WindowUsage {
	u := c.limiter.Usage()
	return platform.WindowUsage{RequestsLastMinute: u.Minute, RequestsLastHour: u.Hour, RequestsLastDay: u.Day}
}
