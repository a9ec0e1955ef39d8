// Package facebookads implements the Facebook Marketing API platform client.
// The Graph API authenticates with a long-lived access token passed as a
// query parameter, and budgets are expressed in cents.
package facebookads

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/ignite/marketing-hub/internal/config"
	"github.com/ignite/marketing-hub/internal/pkg/httpretry"
	"github.com/ignite/marketing-hub/internal/pkg/logger"
	"github.com/ignite/marketing-hub/internal/pkg/ratelimit"
	"github.com/ignite/marketing-hub/internal/platform"
)

var defaultLimits = ratelimit.Config{
	PerMinute: 60,
	PerHour:   1800,
	PerDay:    40000,
}

// Client is the Facebook Marketing API client.
type Client struct {
	cfg     config.FacebookAdsConfig
	limiter *ratelimit.Limiter

	base       *http.Client
	httpClient httpretry.Doer

	mu            sync.Mutex
	authenticated bool
	connected     bool
}

// NewClient creates a new Facebook Ads client. shared is an optional
// cross-process quota; nil means local-only.
func NewClient(cfg config.FacebookAdsConfig, shared httpretry.Waiter) *Client {
	limiter := ratelimit.New(resolveLimits(cfg.RateLimit))
	base := &http.Client{Timeout: cfg.Timeout()}
	return &Client{
		cfg:     cfg,
		limiter: limiter,
		base:    base,
		httpClient: httpretry.New(base, httpretry.ChainWaiters(limiter, shared), httpretry.Config{
			Platform:          platform.FacebookAds,
			MaxRetries:        cfg.RateLimit.MaxRetries,
			DefaultRetryAfter: cfg.RateLimit.RetryAfter(),
		}),
	}
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
func (c *Client) Platform() platform.Platform { return platform.FacebookAds }

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
	c.mu.Unlock()
	c.base.CloseIdleConnections()
	return nil
}

// Authenticate checks the static token configuration. The Graph API has no
// separate exchange step for long-lived tokens.
func (c *Client) Authenticate(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cfg.AccessToken == "" || c.cfg.AdAccountID == "" {
		return &platform.AuthError{Platform: platform.FacebookAds, Reason: "missing required Facebook credentials"}
	}
	c.authenticated = true
	return nil
}

// accountPath returns the ad account node, prefixed act_ exactly once.
func (c *Client) accountPath() string {
	id := strings.TrimPrefix(c.cfg.AdAccountID, "act_")
	return "act_" + id
}

// doRequest issues a Graph API call. The access token travels as a query
// parameter; mutation fields are also query parameters, matching how the
// Graph API accepts POST writes.
func (c *Client) doRequest(ctx context.Context, method, path string, params url.Values) ([]byte, error) {
	c.mu.Lock()
	connected, authenticated := c.connected, c.authenticated
	c.mu.Unlock()
	if !connected {
		return nil, fmt.Errorf("facebookads: client not connected, call Connect first")
	}
	if !authenticated {
		if err := c.Authenticate(ctx); err != nil {
			return nil, err
		}
	}

	if params == nil {
		params = url.Values{}
	}
	params.Set("access_token", c.cfg.AccessToken)

	fullURL := fmt.Sprintf("%s/%s/%s?%s", c.cfg.BaseURL, c.cfg.APIVersion, strings.TrimPrefix(path, "/"), params.Encode())
	req, err := http.NewRequestWithContext(ctx, method, fullURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

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

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}
	return body, nil
}

// ValidateCredentials probes the ad account node. Ordinary rejection returns
// false without an error.
func (c *Client) ValidateCredentials(ctx context.Context) (bool, error) {
	params := url.Values{}
	params.Set("fields", "id,name,account_status")
	_, err := c.doRequest(ctx, http.MethodGet, c.accountPath(), params)
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

// FetchCampaignPerformance pulls daily insight rows per campaign and
// normalizes them into generic metric records. Spend is already reported in
// currency units.
func (c *Client) FetchCampaignPerformance(ctx context.Context, campaignIDs []string, start, end time.Time, metrics []string) (*platform.PerformanceResult, error) {
	fieldSet := map[string]bool{"campaign_id": true, "campaign_name": true}
	mapped := make([]string, 0, len(metrics))
	for _, m := range metrics {
		field, ok := MapMetric(m)
		if !ok {
			logger.Warn("unmapped metric requested", "platform", platform.FacebookAds.String(), "metric", m)
			continue
		}
		fieldSet[field] = true
		mapped = append(mapped, m)
	}
	if len(mapped) == 0 {
		return nil, fmt.Errorf("facebookads: none of the requested metrics %v map to a vendor field", metrics)
	}
	fields := make([]string, 0, len(fieldSet))
	for f := range fieldSet {
		fields = append(fields, f)
	}

	timeRange, err := json.Marshal(map[string]string{
		"since": start.Format("2006-01-02"),
		"until": end.Format("2006-01-02"),
	})
	if err != nil {
		return nil, fmt.Errorf("encoding time range: %w", err)
	}

	records := []platform.Record{}
	for _, id := range campaignIDs {
		params := url.Values{}
		params.Set("fields", strings.Join(fields, ","))
		params.Set("time_range", string(timeRange))
		params.Set("time_increment", "1")
		params.Set("level", "campaign")

		body, err := c.doRequest(ctx, http.MethodGet, id+"/insights", params)
		if err != nil {
			return nil, fmt.Errorf("fetching insights for campaign %s: %w", id, err)
		}

		var response insightsResponse
		if err := json.Unmarshal(body, &response); err != nil {
			return nil, fmt.Errorf("parsing insights for campaign %s: %w", id, err)
		}

		for _, row := range response.Data {
			rec := platform.Record{
				CampaignID:   row.CampaignID,
				CampaignName: row.CampaignName,
				Date:         row.DateStart,
				Metrics:      make(map[string]float64, len(mapped)),
			}
			if rec.CampaignID == "" {
				rec.CampaignID = id
			}
			for _, m := range mapped {
				rec.Metrics[m] = row.metricValue(m)
			}
			records = append(records, rec)
		}
	}

	return &platform.PerformanceResult{
		Platform:     platform.FacebookAds,
		Data:         records,
		TotalResults: len(records),
		QueryDate:    time.Now().UTC(),
	}, nil
}

// UpdateCampaignBudget writes the budget to every adset under the campaign.
// Budget control lives at the adset level unless campaign budget optimization
// is enabled, so the amount is applied to each adset individually. The Graph
// API takes budgets in cents.
func (c *Client) UpdateCampaignBudget(ctx context.Context, campaignID string, newBudget float64, budgetType string) (*platform.MutationResult, error) {
	listParams := url.Values{}
	listParams.Set("fields", "id,name")
	body, err := c.doRequest(ctx, http.MethodGet, campaignID+"/adsets", listParams)
	if err != nil {
		return nil, fmt.Errorf("listing adsets for campaign %s: %w", campaignID, err)
	}

	var adsets adsetList
	if err := json.Unmarshal(body, &adsets); err != nil {
		return nil, fmt.Errorf("parsing adsets: %w", err)
	}

	budgetField := "daily_budget"
	if budgetType == "lifetime" {
		budgetField = "lifetime_budget"
	}
	cents := strconv.FormatInt(int64(newBudget*100), 10)

	updated := []string{}
	for _, adset := range adsets.Data {
		params := url.Values{}
		params.Set(budgetField, cents)
		if _, err := c.doRequest(ctx, http.MethodPost, adset.ID, params); err != nil {
			return nil, fmt.Errorf("updating budget on adset %s: %w", adset.ID, err)
		}
		updated = append(updated, adset.ID)
	}

	result := &platform.MutationResult{
		Platform:      platform.FacebookAds,
		CampaignID:    campaignID,
		Status:        "updated",
		NewBudget:     newBudget,
		BudgetType:    budgetType,
		UpdatedAdsets: updated,
		UpdatedAt:     time.Now().UTC(),
	}
	if len(updated) == 0 {
		result.Message = "campaign has no adsets"
	}
	return result, nil
}

// PauseCampaign sets the campaign status to PAUSED.
func (c *Client) PauseCampaign(ctx context.Context, campaignID string) (*platform.MutationResult, error) {
	return c.updateCampaignStatus(ctx, campaignID, "PAUSED")
}

// StartCampaign sets the campaign status to ACTIVE.
func (c *Client) StartCampaign(ctx context.Context, campaignID string) (*platform.MutationResult, error) {
	return c.updateCampaignStatus(ctx, campaignID, "ACTIVE")
}

func (c *Client) updateCampaignStatus(ctx context.Context, campaignID, status string) (*platform.MutationResult, error) {
	params := url.Values{}
	params.Set("status", status)
	if _, err := c.doRequest(ctx, http.MethodPost, campaignID, params); err != nil {
		return nil, fmt.Errorf("updating campaign status: %w", err)
	}
	return &platform.MutationResult{
		Platform:   platform.FacebookAds,
		CampaignID: campaignID,
		Status:     strings.ToLower(status),
		UpdatedAt:  time.Now().UTC(),
	}, nil
}

// GetAudienceInsights lists custom audiences and, per the filters, interest
// matches and a 30-day age/gender impression breakdown.
func (c *Client) GetAudienceInsights(ctx context.Context, audienceID string, filters *platform.AudienceFilters) (*platform.AudienceInsights, error) {
	insights := &platform.AudienceInsights{
		Platform:    platform.FacebookAds,
		Audiences:   []platform.Audience{},
		RetrievedAt: time.Now().UTC(),
	}

	audienceFields := "id,name,description,approximate_count"
	if audienceID != "" {
		params := url.Values{}
		params.Set("fields", audienceFields)
		body, err := c.doRequest(ctx, http.MethodGet, audienceID, params)
		if err != nil {
			return nil, fmt.Errorf("fetching audience %s: %w", audienceID, err)
		}
		var aud customAudience
		if err := json.Unmarshal(body, &aud); err != nil {
			return nil, fmt.Errorf("parsing audience: %w", err)
		}
		insights.Audiences = append(insights.Audiences, toAudience(aud))
	} else {
		params := url.Values{}
		params.Set("fields", audienceFields)
		params.Set("limit", "100")
		body, err := c.doRequest(ctx, http.MethodGet, c.accountPath()+"/customaudiences", params)
		if err != nil {
			return nil, fmt.Errorf("listing custom audiences: %w", err)
		}
		var list customAudienceList
		if err := json.Unmarshal(body, &list); err != nil {
			return nil, fmt.Errorf("parsing custom audiences: %w", err)
		}
		for _, aud := range list.Data {
			insights.Audiences = append(insights.Audiences, toAudience(aud))
		}
	}

	if filters != nil && filters.IncludeInterests && filters.InterestQuery != "" {
		interests, err := c.searchInterests(ctx, filters.InterestQuery)
		if err != nil {
			return nil, err
		}
		insights.InterestInsights = interests
	}

	if filters != nil && filters.IncludeDemographics {
		demo, err := c.fetchDemographics(ctx)
		if err != nil {
			return nil, err
		}
		insights.DemographicInsights = *demo
	}

	return insights, nil
}

func toAudience(aud customAudience) platform.Audience {
	return platform.Audience{
		ID:          aud.ID,
		Name:        aud.Name,
		Description: aud.Description,
		Size:        aud.ApproximateCount,
		Source:      "custom_audience",
	}
}

func (c *Client) searchInterests(ctx context.Context, query string) ([]platform.Interest, error) {
	params := url.Values{}
	params.Set("type", "adinterest")
	params.Set("q", query)
	params.Set("limit", "25")

	body, err := c.doRequest(ctx, http.MethodGet, "search", params)
	if err != nil {
		return nil, fmt.Errorf("searching interests: %w", err)
	}

	var list interestList
	if err := json.Unmarshal(body, &list); err != nil {
		return nil, fmt.Errorf("parsing interests: %w", err)
	}

	out := make([]platform.Interest, 0, len(list.Data))
	for _, in := range list.Data {
		out = append(out, platform.Interest{
			ID:           strconv.FormatInt(in.ID, 10),
			Name:         in.Name,
			AudienceSize: in.AudienceSizeLower,
			Topic:        in.Topic,
		})
	}
	return out, nil
}

// fetchDemographics aggregates account-level impressions by age and gender
// over the last 30 days.
func (c *Client) fetchDemographics(ctx context.Context) (*platform.DemographicInsights, error) {
	params := url.Values{}
	params.Set("fields", "impressions")
	params.Set("breakdowns", "age,gender")
	params.Set("date_preset", "last_30d")

	body, err := c.doRequest(ctx, http.MethodGet, c.accountPath()+"/insights", params)
	if err != nil {
		return nil, fmt.Errorf("fetching demographics: %w", err)
	}

	var response insightsResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return nil, fmt.Errorf("parsing demographics: %w", err)
	}

	demo := &platform.DemographicInsights{
		AgeDistribution:    map[string]float64{},
		GenderDistribution: map[string]float64{},
	}
	for _, row := range response.Data {
		impressions := parseNum(row.Impressions)
		if row.Age != "" && row.Age != "unknown" {
			demo.AgeDistribution[row.Age] += impressions
		}
		if row.Gender != "" && row.Gender != "unknown" {
			demo.GenderDistribution[row.Gender] += impressions
		}
	}
	return demo, nil
}

// RateLimitUsage reports the local rolling-window occupancy.
func (c *Client) RateLimitUsage() platform.WindowUsage {
	u := c.limiter.Usage()
	return platform.WindowUsage{RequestsLastMinute: u.Minute, RequestsLastHour: u.Hour, RequestsLastDay: u.Day}
}
