package facebookads

import "strconv"

// metricMapping translates the generic metric vocabulary into Graph API
// insight fields. Conversions come from the actions list rather than a flat
// field. The table is closed: metrics outside it are reported as unmapped
// and excluded from the query.
var metricMapping = map[string]string{
	"impressions": "impressions",
	"clicks":      "clicks",
	"conversions": "actions",
	"cost":        "spend",
	"ctr":         "ctr",
	"cpc":         "cpc",
	"cpm":         "cpm",
	"reach":       "reach",
	"frequency":   "frequency",
}

// MapMetric returns the insight field for a generic metric name and whether
// the metric is mapped on this platform.
func MapMetric(generic string) (string, bool) {
	v, ok := metricMapping[generic]
	return v, ok
}

// insightsResponse is one page of /insights rows. The Graph API reports
// numeric values as JSON strings.
type insightsResponse struct {
	Data []insightRow `json:"data"`
}

type insightRow struct {
	CampaignID   string        `json:"campaign_id"`
	CampaignName string        `json:"campaign_name"`
	DateStart    string        `json:"date_start"`
	DateStop     string        `json:"date_stop"`
	Impressions  string        `json:"impressions"`
	Clicks       string        `json:"clicks"`
	Spend        string        `json:"spend"`
	CTR          string        `json:"ctr"`
	CPC          string        `json:"cpc"`
	CPM          string        `json:"cpm"`
	Reach        string        `json:"reach"`
	Frequency    string        `json:"frequency"`
	Age          string        `json:"age"`
	Gender       string        `json:"gender"`
	Actions      []actionEntry `json:"actions"`
}

type actionEntry struct {
	ActionType string `json:"action_type"`
	Value      string `json:"value"`
}

// metricValue extracts a generic metric from an insight row. Conversions sum
// every reported action value.
func (r insightRow) metricValue(generic string) float64 {
	switch generic {
	case "impressions":
		return parseNum(r.Impressions)
	case "clicks":
		return parseNum(r.Clicks)
	case "cost":
		return parseNum(r.Spend)
	case "ctr":
		return parseNum(r.CTR)
	case "cpc":
		return parseNum(r.CPC)
	case "cpm":
		return parseNum(r.CPM)
	case "reach":
		return parseNum(r.Reach)
	case "frequency":
		return parseNum(r.Frequency)
	case "conversions":
		var total float64
		for _, a := range r.Actions {
			total += parseNum(a.Value)
		}
		return total
	default:
		return 0
	}
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

type adsetList struct {
	Data []adsetNode `json:"data"`
}

type adsetNode struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type customAudienceList struct {
	Data []customAudience `json:"data"`
}

type customAudience struct {
	ID               string `json:"id"`
	Name             string `json:"name"`
	Description      string `json:"description"`
	ApproximateCount int64  `json:"approximate_count"`
}

type interestList struct {
	Data []interestNode `json:"data"`
}

type interestNode struct {
	ID                 int64  `json:"id"`
	Name               string `json:"name"`
	AudienceSizeLower  int64  `json:"audience_size_lower_bound"`
	Topic              string `json:"topic"`
	DisambiguationType string `json:"disambiguation_category"`
}
