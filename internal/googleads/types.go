package googleads

import "encoding/json"

// metricMapping translates the generic metric vocabulary into GAQL metric
// fields. The table is closed: metrics outside it are reported as unmapped
// and excluded from the query, never guessed into a vendor field name.
var metricMapping = map[string]string{
	"impressions":     "metrics.impressions",
	"clicks":          "metrics.clicks",
	"conversions":     "metrics.conversions",
	"cost":            "metrics.cost_micros",
	"ctr":             "metrics.ctr",
	"conversion_rate": "metrics.conversion_rate",
	"cpc":             "metrics.average_cpc",
}

// MapMetric returns the GAQL field for a generic metric name and whether the
// metric is mapped on this platform.
func MapMetric(generic string) (string, bool) {
	v, ok := metricMapping[generic]
	return v, ok
}

// isMicrosMetric reports whether the vendor reports the metric in micros
// (1 currency unit = 1,000,000 micros).
func isMicrosMetric(generic string) bool {
	return generic == "cost" || generic == "cpc"
}

// searchRequest is the body for googleAds:search / googleAds:searchStream.
type searchRequest struct {
	Query string `json:"query"`
}

// searchStreamResponse is the shape returned by searchStream: a results
// array of row batches.
type searchStreamResponse struct {
	Results []searchBatch `json:"results"`
}

type searchBatch struct {
	Results []searchRow `json:"results"`
}

// searchResponse is the shape returned by the non-streaming search call.
type searchResponse struct {
	Results []searchRow `json:"results"`
}

type searchRow struct {
	Campaign       campaignInfo               `json:"campaign"`
	CampaignBudget budgetInfo                 `json:"campaignBudget"`
	Segments       segmentInfo                `json:"segments"`
	Metrics        map[string]json.Number     `json:"metrics"`
	Audience       audienceInfo               `json:"audience"`
	UserList       userListInfo               `json:"userList"`
}

type campaignInfo struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Status string `json:"status"`
}

type budgetInfo struct {
	ID           string      `json:"id"`
	AmountMicros json.Number `json:"amountMicros"`
}

type segmentInfo struct {
	Date                string `json:"date"`
	DemographicAgeRange string `json:"demographicAgeRange"`
	DemographicGender   string `json:"demographicGender"`
}

type audienceInfo struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Status      string `json:"status"`
}

type userListInfo struct {
	SizeForDisplay     json.Number `json:"sizeForDisplay"`
	SizeForSearch      json.Number `json:"sizeForSearch"`
	EligibleForDisplay bool        `json:"eligibleForDisplay"`
	EligibleForSearch  bool        `json:"eligibleForSearch"`
}

// mutateOperation is one entry of a campaigns:mutate or
// campaignBudgets:mutate request.
type mutateOperation struct {
	Update     map[string]any `json:"update"`
	UpdateMask string         `json:"update_mask"`
}

type mutateRequest struct {
	Operations []mutateOperation `json:"operations"`
}

// gaqlFieldToJSONKey converts a GAQL metric field ("metrics.cost_micros")
// into the camelCase key the REST response uses ("costMicros").
func gaqlFieldToJSONKey(field string) string {
	name := field
	if i := lastDot(field); i >= 0 {
		name = field[i+1:]
	}
	out := make([]byte, 0, len(name))
	upper := false
	for i := 0; i < len(name); i++ {
		c := name[i]
		if c == '_' {
			upper = true
			continue
		}
		if upper && c >= 'a' && c <= 'z' {
			c -= 'a' - 'A'
		}
		upper = false
		out = append(out, c)
	}
	return string(out)
}

func lastDot(s string) int {
	for i := len(s) - 1; i >= 0; i-- {
		if s[i] == '.' {
			return i
		}
	}
	return -1
}
