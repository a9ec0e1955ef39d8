package platform

import (
	"context"
	"time"
)

// Record is the normalized per-(campaign, date) metric row every platform
// client produces from its vendor payload. Metrics are keyed by the generic
// vocabulary; cost-like values are already converted to currency units.
type Record struct {
	CampaignID   string             `json:"campaign_id"`
	CampaignName string             `json:"campaign_name"`
	Date         string             `json:"date"`
	Metrics      map[string]float64 `json:"metrics"`
}

// PerformanceResult is a single platform's campaign performance payload.
type PerformanceResult struct {
	Platform     Platform  `json:"platform"`
	Data         []Record  `json:"data"`
	TotalResults int       `json:"total_results"`
	QueryDate    time.Time `json:"query_date"`
}

// StatusNotSupported marks a mutation a read-only platform cannot perform.
// It is a normal return value, not an error.
const StatusNotSupported = "not_supported"

// MutationResult is the envelope for budget and status mutations.
type MutationResult struct {
	Platform   Platform  `json:"platform"`
	CampaignID string    `json:"campaign_id"`
	Status     string    `json:"status"`
	Message    string    `json:"message,omitempty"`
	NewBudget  float64   `json:"new_budget,omitempty"`
	BudgetType string    `json:"budget_type,omitempty"`
	BudgetID   string    `json:"budget_id,omitempty"`
	// UpdatedAdsets lists every adset the budget was applied to. Facebook
	// applies the campaign budget to each adset individually.
	UpdatedAdsets []string  `json:"updated_adsets,omitempty"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// NotSupported reports whether the mutation was declined by a read-only
// platform rather than applied.
func (m *MutationResult) NotSupported() bool { return m.Status == StatusNotSupported }

// Audience is one audience/segment known to a platform.
type Audience struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Status      string `json:"status,omitempty"`
	Size        int64  `json:"size"`
	Source      string `json:"source,omitempty"`
}

// Interest is one targetable interest category.
type Interest struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	AudienceSize int64  `json:"audience_size"`
	Topic        string `json:"topic,omitempty"`
}

// AudienceInsights is the common nested shape for vendor audience and
// demographic aggregates.
type AudienceInsights struct {
	Platform            Platform                      `json:"platform"`
	Audiences           []Audience                    `json:"audiences"`
	DemographicInsights DemographicInsights           `json:"demographic_insights"`
	InterestInsights    []Interest                    `json:"interest_insights,omitempty"`
	BehavioralInsights  map[string]float64            `json:"behavioral_insights,omitempty"`
	GeographicInsights  map[string]map[string]float64 `json:"geographic_insights,omitempty"`
	RetrievedAt         time.Time                     `json:"retrieved_at"`
}

// DemographicInsights holds additive age/gender bucket counts.
type DemographicInsights struct {
	AgeDistribution    map[string]float64 `json:"age_distribution,omitempty"`
	GenderDistribution map[string]float64 `json:"gender_distribution,omitempty"`
}

// AudienceFilters narrows audience insight queries. Zero value means "all".
type AudienceFilters struct {
	IncludeDemographics bool     `json:"include_demographics,omitempty"`
	IncludeInterests    bool     `json:"include_interests,omitempty"`
	InterestQuery       string   `json:"interest_query,omitempty"`
	AgeMin              int      `json:"age_min,omitempty"`
	AgeMax              int      `json:"age_max,omitempty"`
	Genders             []int    `json:"genders,omitempty"`
	Locations           []string `json:"locations,omitempty"`
}

// WindowUsage is the current rate-limiter occupancy for the three rolling
// windows, as reported by GetPlatformStatus.
type WindowUsage struct {
	RequestsLastMinute int `json:"requests_last_minute"`
	RequestsLastHour   int `json:"requests_last_hour"`
	RequestsLastDay    int `json:"requests_last_day"`
}

// Client is the capability set every platform implements. Implementations own
// their HTTP transport, rate limiter, and authentication state exclusively;
// the unified client never reaches into them.
//
// Mutations on read-only platforms return a StatusNotSupported MutationResult
// and a nil error.
type Client interface {
	Platform() Platform

	// Connect acquires the transport and authenticates. Disconnect releases
	// it and clears the authenticated state.
	Connect(ctx context.Context) error
	Disconnect(ctx context.Context) error

	// Authenticate performs the platform-specific credential exchange.
	Authenticate(ctx context.Context) error

	// ValidateCredentials probes the vendor with a lightweight read and
	// reports whether the current token is usable. Ordinary rejection
	// returns (false, nil); only transport-level problems return an error.
	ValidateCredentials(ctx context.Context) (bool, error)

	FetchCampaignPerformance(ctx context.Context, campaignIDs []string, start, end time.Time, metrics []string) (*PerformanceResult, error)
	UpdateCampaignBudget(ctx context.Context, campaignID string, newBudget float64, budgetType string) (*MutationResult, error)
	PauseCampaign(ctx context.Context, campaignID string) (*MutationResult, error)
	StartCampaign(ctx context.Context, campaignID string) (*MutationResult, error)
	GetAudienceInsights(ctx context.Context, audienceID string, filters *AudienceFilters) (*AudienceInsights, error)

	// ReadOnly reports whether the platform has no mutation capability.
	ReadOnly() bool

	// RateLimitUsage reports current rolling-window occupancy.
	RateLimitUsage() WindowUsage
}
