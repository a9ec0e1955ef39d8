package unified

import "github.com/ignite/marketing-hub/internal/platform"

// Summary aggregates successful per-platform results. Counter metrics are
// summed across every record; ratio metrics are recomputed from the summed
// counters, never averaged from per-row ratios.
type Summary struct {
	TotalCampaigns int                                      `json:"total_campaigns"`
	Metrics        map[string]float64                       `json:"metrics"`
	ByPlatform     map[platform.Platform]map[string]float64 `json:"by_platform"`
}

// nonAdditive lists the ratio metrics that must not be summed across rows.
var nonAdditive = map[string]bool{
	platform.MetricCTR:            true,
	platform.MetricConversionRate: true,
	platform.MetricCPC:            true,
	platform.MetricCPM:            true,
	platform.MetricBounceRate:     true,
	platform.MetricEngagementRate: true,
	platform.MetricFrequency:      true,
}

func buildSummary(results map[platform.Platform]*platform.PerformanceResult) Summary {
	summary := Summary{
		Metrics:    map[string]float64{},
		ByPlatform: map[platform.Platform]map[string]float64{},
	}

	campaigns := map[string]bool{}
	for p, perf := range results {
		subtotal := map[string]float64{}
		for _, rec := range perf.Data {
			if rec.CampaignID != "" {
				campaigns[rec.CampaignID] = true
			}
			for name, value := range rec.Metrics {
				if nonAdditive[name] {
					continue
				}
				subtotal[name] += value
				summary.Metrics[name] += value
			}
		}
		summary.ByPlatform[p] = subtotal
	}
	summary.TotalCampaigns = len(campaigns)

	impressions := summary.Metrics[platform.MetricImpressions]
	clicks := summary.Metrics[platform.MetricClicks]
	conversions := summary.Metrics[platform.MetricConversions]
	cost := summary.Metrics[platform.MetricCost]

	if impressions > 0 {
		summary.Metrics[platform.MetricCTR] = clicks / impressions * 100
	}
	if clicks > 0 {
		summary.Metrics[platform.MetricConversionRate] = conversions / clicks * 100
		if cost > 0 {
			summary.Metrics[platform.MetricCPC] = cost / clicks
		}
	}

	return summary
}

// CombinedInsights merges per-platform audience insights: audience counts
// and reach are summed, demographic buckets merge additively, interests
// concatenate.
type CombinedInsights struct {
	TotalAudiences     int                 `json:"total_audiences"`
	TotalReach         int64               `json:"total_reach"`
	AgeDistribution    map[string]float64  `json:"age_distribution,omitempty"`
	GenderDistribution map[string]float64  `json:"gender_distribution,omitempty"`
	Interests          []platform.Interest `json:"interests,omitempty"`
}

func combineAudienceInsights(results map[platform.Platform]*platform.AudienceInsights) CombinedInsights {
	combined := CombinedInsights{
		AgeDistribution:    map[string]float64{},
		GenderDistribution: map[string]float64{},
	}

	// Iterate in canonical platform order so interest concatenation is stable.
	for _, p := range platform.Platforms() {
		insights, ok := results[p]
		if !ok {
			continue
		}
		combined.TotalAudiences += len(insights.Audiences)
		for _, aud := range insights.Audiences {
			combined.TotalReach += aud.Size
		}
		for bucket, value := range insights.DemographicInsights.AgeDistribution {
			combined.AgeDistribution[bucket] += value
		}
		for bucket, value := range insights.DemographicInsights.GenderDistribution {
			combined.GenderDistribution[bucket] += value
		}
		combined.Interests = append(combined.Interests, insights.InterestInsights...)
	}
	return combined
}
