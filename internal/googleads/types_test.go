package googleads

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMetricMappingIsClosed(t *testing.T) {
	want := map[string]string{
		"impressions":     "metrics.impressions",
		"clicks":          "metrics.clicks",
		"conversions":     "metrics.conversions",
		"cost":            "metrics.cost_micros",
		"ctr":             "metrics.ctr",
		"conversion_rate": "metrics.conversion_rate",
		"cpc":             "metrics.average_cpc",
	}
	assert.Equal(t, want, metricMapping)

	for generic, field := range want {
		got, ok := MapMetric(generic)
		assert.True(t, ok)
		assert.Equal(t, field, got)
	}

	_, ok := MapMetric("quality_score")
	assert.False(t, ok, "unknown metrics must not be guessed into a field name")
}

func TestIsMicrosMetric(t *testing.T) {
	assert.True(t, isMicrosMetric("cost"))
	assert.True(t, isMicrosMetric("cpc"))
	assert.False(t, isMicrosMetric("impressions"))
}

func TestGaqlFieldToJSONKey(t *testing.T) {
	assert.Equal(t, "costMicros", gaqlFieldToJSONKey("metrics.cost_micros"))
	assert.Equal(t, "averageCpc", gaqlFieldToJSONKey("metrics.average_cpc"))
	assert.Equal(t, "impressions", gaqlFieldToJSONKey("metrics.impressions"))
	assert.Equal(t, "conversionRate", gaqlFieldToJSONKey("conversion_rate"))
}
