package googleanalytics

// metricMapping translates the generic metric vocabulary into GA4 Data API
// metric names. GA4 serves engagement metrics only; ad-delivery metrics
// (impressions, clicks, cost) are unmapped here so GA traffic never feeds
// the combined ad counters. The table is closed: metrics outside it are
// reported as unmapped and excluded from the report.
var metricMapping = map[string]string{
	"sessions":             "sessions",
	"users":                "totalUsers",
	"new_users":            "newUsers",
	"page_views":           "screenPageViews",
	"bounce_rate":          "bounceRate",
	"avg_session_duration": "averageSessionDuration",
	"conversions":          "conversions",
	"conversion_rate":      "sessionConversionRate",
	"revenue":              "totalRevenue",
	"engagement_rate":      "engagementRate",
}

// MapMetric returns the GA4 metric name for a generic metric name and
// whether the metric is mapped on this platform.
func MapMetric(generic string) (string, bool) {
	v, ok := metricMapping[generic]
	return v, ok
}

// runReportRequest is the body for properties/{id}:runReport.
type runReportRequest struct {
	DateRanges      []dateRange `json:"dateRanges"`
	Dimensions      []dimension `json:"dimensions"`
	Metrics         []metricRef `json:"metrics"`
	DimensionFilter *filterExpr `json:"dimensionFilter,omitempty"`
	Limit           string      `json:"limit,omitempty"`
}

type dateRange struct {
	StartDate string `json:"startDate"`
	EndDate   string `json:"endDate"`
}

type dimension struct {
	Name string `json:"name"`
}

type metricRef struct {
	Name string `json:"name"`
}

type filterExpr struct {
	Filter *dimensionFilter `json:"filter,omitempty"`
}

type dimensionFilter struct {
	FieldName    string        `json:"fieldName"`
	InListFilter *inListFilter `json:"inListFilter,omitempty"`
}

type inListFilter struct {
	Values []string `json:"values"`
}

// runReportResponse is the row-oriented report payload. Values arrive as
// strings.
type runReportResponse struct {
	Rows     []reportRow `json:"rows"`
	RowCount int         `json:"rowCount"`
}

type reportRow struct {
	DimensionValues []reportValue `json:"dimensionValues"`
	MetricValues    []reportValue `json:"metricValues"`
}

type reportValue struct {
	Value string `json:"value"`
}
