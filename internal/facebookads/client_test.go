package facebookads

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ignite/marketing-hub/internal/config"
	"github.com/ignite/marketing-hub/internal/platform"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, baseURL string) *Client {
	t.Helper()
	c := NewClient(config.FacebookAdsConfig{
		BaseURL:        baseURL,
		APIVersion:     "v18.0",
		AccessToken:    "fb-test-token",
		AdAccountID:    "99887766",
		TimeoutSeconds: 5,
	}, nil)
	require.NoError(t, c.Connect(context.Background()))
	return c
}

func TestFetchCampaignPerformanceParsesStringNumbers(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v18.0/c1/insights", r.URL.Path)
		assert.Equal(t, "fb-test-token", r.URL.Query().Get("access_token"))
		assert.Equal(t, "1", r.URL.Query().Get("time_increment"))
		assert.Equal(t, "campaign", r.URL.Query().Get("level"))
		assert.Contains(t, r.URL.Query().Get("time_range"), `"since":"2026-08-01"`)

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"data":[
			{"campaign_id":"c1","campaign_name":"Retargeting","date_start":"2026-08-01","date_stop":"2026-08-01",
			 "impressions":"2000","clicks":"80","spend":"12.34",
			 "actions":[{"action_type":"offsite_conversion.purchase","value":"3"},{"action_type":"link_click","value":"2"}]}
		]}`))
	}))
	defer server.Close()

	c := newTestClient(t, server.URL)
	start := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2026, 8, 2, 0, 0, 0, 0, time.UTC)

	result, err := c.FetchCampaignPerformance(context.Background(), []string{"c1"}, start, end, []string{"impressions", "clicks", "cost", "conversions"})
	require.NoError(t, err)

	assert.Equal(t, platform.FacebookAds, result.Platform)
	require.Len(t, result.Data, 1)
	rec := result.Data[0]
	assert.Equal(t, "c1", rec.CampaignID)
	assert.Equal(t, "Retargeting", rec.CampaignName)
	assert.Equal(t, "2026-08-01", rec.Date)
	assert.Equal(t, 2000.0, rec.Metrics["impressions"])
	assert.Equal(t, 80.0, rec.Metrics["clicks"])
	assert.Equal(t, 12.34, rec.Metrics["cost"])
	assert.Equal(t, 5.0, rec.Metrics["conversions"], "conversions sum the actions list")
}

func TestUpdateCampaignBudgetAppliesToEveryAdset(t *testing.T) {
	var budgetPosts []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch {
		case r.URL.Path == "/v18.0/c1/adsets":
			w.Write([]byte(`{"data":[{"id":"as1","name":"Adset 1"},{"id":"as2","name":"Adset 2"}]}`))
		case r.Method == http.MethodPost:
			budgetPosts = append(budgetPosts, r.URL.Path+"?daily_budget="+r.URL.Query().Get("daily_budget"))
			w.Write([]byte(`{"success":true}`))
		default:
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
	}))
	defer server.Close()

	c := newTestClient(t, server.URL)
	result, err := c.UpdateCampaignBudget(context.Background(), "c1", 50.0, "daily")
	require.NoError(t, err)

	assert.Equal(t, "updated", result.Status)
	assert.Equal(t, 50.0, result.NewBudget)
	assert.Equal(t, []string{"as1", "as2"}, result.UpdatedAdsets)
	assert.Equal(t, []string{
		"/v18.0/as1?daily_budget=5000",
		"/v18.0/as2?daily_budget=5000",
	}, budgetPosts, "budgets are written in cents")
}

func TestUpdateCampaignBudgetNoAdsets(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data":[]}`))
	}))
	defer server.Close()

	c := newTestClient(t, server.URL)
	result, err := c.UpdateCampaignBudget(context.Background(), "c1", 10.0, "daily")
	require.NoError(t, err)
	assert.Empty(t, result.UpdatedAdsets)
	assert.Equal(t, "campaign has no adsets", result.Message)
}

func TestPauseAndStartCampaign(t *testing.T) {
	var statuses []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v18.0/c1", r.URL.Path)
		statuses = append(statuses, r.URL.Query().Get("status"))
		w.Write([]byte(`{"success":true}`))
	}))
	defer server.Close()

	c := newTestClient(t, server.URL)

	paused, err := c.PauseCampaign(context.Background(), "c1")
	require.NoError(t, err)
	assert.Equal(t, "paused", paused.Status)

	started, err := c.StartCampaign(context.Background(), "c1")
	require.NoError(t, err)
	assert.Equal(t, "active", started.Status)

	assert.Equal(t, []string{"PAUSED", "ACTIVE"}, statuses)
}

func TestValidateCredentials(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/v18.0/act_99887766", r.URL.Path)
			w.Write([]byte(`{"id":"act_99887766","name":"Main account"}`))
		}))
		defer server.Close()

		ok, err := newTestClient(t, server.URL).ValidateCredentials(context.Background())
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("bad token", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
		}))
		defer server.Close()

		ok, err := newTestClient(t, server.URL).ValidateCredentials(context.Background())
		require.NoError(t, err)
		assert.False(t, ok)
	})
}

func TestAuthenticateMissingToken(t *testing.T) {
	c := NewClient(config.FacebookAdsConfig{BaseURL: "http://unused", APIVersion: "v18.0"}, nil)

	err := c.Authenticate(context.Background())
	require.Error(t, err)

	var authErr *platform.AuthError
	require.ErrorAs(t, err, &authErr)
	assert.Equal(t, platform.FacebookAds, authErr.Platform)
}

func TestAccountPathNormalizesPrefix(t *testing.T) {
	withPrefix := NewClient(config.FacebookAdsConfig{AdAccountID: "act_123"}, nil)
	without := NewClient(config.FacebookAdsConfig{AdAccountID: "123"}, nil)
	assert.Equal(t, "act_123", withPrefix.accountPath())
	assert.Equal(t, "act_123", without.accountPath())
}

func TestGetAudienceInsights(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/v18.0/act_99887766/customaudiences":
			w.Write([]byte(`{"data":[{"id":"aud1","name":"Newsletter","approximate_count":45000}]}`))
		case "/v18.0/search":
			assert.Equal(t, "adinterest", r.URL.Query().Get("type"))
			assert.Equal(t, "running", r.URL.Query().Get("q"))
			w.Write([]byte(`{"data":[{"id":6003123456789,"name":"Running","audience_size_lower_bound":88000000,"topic":"Fitness"}]}`))
		case "/v18.0/act_99887766/insights":
			assert.Equal(t, "age,gender", r.URL.Query().Get("breakdowns"))
			w.Write([]byte(`{"data":[
				{"age":"25-34","gender":"female","impressions":"700"},
				{"age":"25-34","gender":"male","impressions":"300"},
				{"age":"unknown","gender":"unknown","impressions":"50"}
			]}`))
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}))
	defer server.Close()

	c := newTestClient(t, server.URL)
	insights, err := c.GetAudienceInsights(context.Background(), "", &platform.AudienceFilters{
		IncludeDemographics: true,
		IncludeInterests:    true,
		InterestQuery:       "running",
	})
	require.NoError(t, err)

	require.Len(t, insights.Audiences, 1)
	assert.Equal(t, "aud1", insights.Audiences[0].ID)
	assert.Equal(t, int64(45000), insights.Audiences[0].Size)
	assert.Equal(t, "custom_audience", insights.Audiences[0].Source)

	require.Len(t, insights.InterestInsights, 1)
	assert.Equal(t, "6003123456789", insights.InterestInsights[0].ID)
	assert.Equal(t, int64(88000000), insights.InterestInsights[0].AudienceSize)

	assert.Equal(t, 1000.0, insights.DemographicInsights.AgeDistribution["25-34"])
	assert.Equal(t, 700.0, insights.DemographicInsights.GenderDistribution["female"])
	assert.NotContains(t, insights.DemographicInsights.AgeDistribution, "unknown")
}

func TestGetAudienceInsightsSingleAudience(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v18.0/aud7", r.URL.Path)
		w.Write([]byte(`{"id":"aud7","name":"Lookalike","approximate_count":220000}`))
	}))
	defer server.Close()

	c := newTestClient(t, server.URL)
	insights, err := c.GetAudienceInsights(context.Background(), "aud7", nil)
	require.NoError(t, err)
	require.Len(t, insights.Audiences, 1)
	assert.Equal(t, "Lookalike", insights.Audiences[0].Name)
}

func TestReadOnly(t *testing.T) {
	assert.False(t, NewClient(config.FacebookAdsConfig{}, nil).ReadOnly())
}
