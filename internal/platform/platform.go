// Package platform defines the vendor-neutral vocabulary shared by every
// marketing platform client: the platform identifiers, the generic metric
// names, the normalized result envelopes, and the capability interface the
// unified client dispatches against.
package platform

// Platform identifies a supported marketing platform.
type Platform string

const (
	GoogleAds       Platform = "google_ads"
	FacebookAds     Platform = "facebook_ads"
	GoogleAnalytics Platform = "google_analytics"

	// All is a selection sentinel for fan-out operations, never a real client.
	All Platform = "all"
)

// Platforms lists every real platform in stable order.
func Platforms() []Platform {
	return []Platform{GoogleAds, FacebookAds, GoogleAnalytics}
}

// Valid reports whether p names a real platform (All excluded).
func (p Platform) Valid() bool {
	switch p {
	case GoogleAds, FacebookAds, GoogleAnalytics:
		return true
	}
	return false
}

func (p Platform) String() string { return string(p) }

// Generic metric vocabulary. Each platform maps a subset of these to its own
// field names; requested metrics outside the vocabulary pass through verbatim
// as a best-effort fallback.
const (
	MetricImpressions        = "impressions"
	MetricClicks             = "clicks"
	MetricConversions        = "conversions"
	MetricCost               = "cost"
	MetricCTR                = "ctr"
	MetricConversionRate     = "conversion_rate"
	MetricRevenue            = "revenue"
	MetricReach              = "reach"
	MetricFrequency          = "frequency"
	MetricCPM                = "cpm"
	MetricCPC                = "cpc"
	MetricSessions           = "sessions"
	MetricUsers              = "users"
	MetricNewUsers           = "new_users"
	MetricPageViews          = "page_views"
	MetricBounceRate         = "bounce_rate"
	MetricAvgSessionDuration = "avg_session_duration"
	MetricEngagementRate     = "engagement_rate"
)

// KnownMetrics is the full generic vocabulary exposed to callers.
var KnownMetrics = map[string]bool{
	MetricImpressions:        true,
	MetricClicks:             true,
	MetricConversions:        true,
	MetricCost:               true,
	MetricCTR:                true,
	MetricConversionRate:     true,
	MetricRevenue:            true,
	MetricReach:              true,
	MetricFrequency:          true,
	MetricCPM:                true,
	MetricCPC:                true,
	MetricSessions:           true,
	MetricUsers:              true,
	MetricNewUsers:           true,
	MetricPageViews:          true,
	MetricBounceRate:         true,
	MetricAvgSessionDuration: true,
	MetricEngagementRate:     true,
}
