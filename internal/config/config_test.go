package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 0
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "localhost", cfg.Server.Host)
	assert.Equal(t, "https://googleads.googleapis.com", cfg.GoogleAds.BaseURL)
	assert.Equal(t, "v15", cfg.GoogleAds.APIVersion)
	assert.Equal(t, "https://graph.facebook.com", cfg.FacebookAds.BaseURL)
	assert.Equal(t, "v18.0", cfg.FacebookAds.APIVersion)
	assert.Equal(t, "https://analyticsdata.googleapis.com", cfg.GoogleAnalytics.BaseURL)
	assert.Equal(t, "v1beta", cfg.GoogleAnalytics.APIVersion)
	assert.Equal(t, 30, cfg.GoogleAds.TimeoutSeconds)
}

func TestLoadFullConfig(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 9090
  host: 127.0.0.1
google_ads:
  developer_token: dev-tok
  customer_id: "1234567890"
  client_id: cid
  client_secret: csec
  refresh_token: rtok
  timeout_seconds: 45
  rate_limit:
    per_minute: 10
    per_hour: 100
    per_day: 1000
  enabled: true
facebook_ads:
  access_token: fb-tok
  ad_account_id: "99887766"
  app_id: app1
  enabled: true
google_analytics:
  property_id: "555444"
  service_account_path: /etc/ga/sa.json
  enabled: true
redis:
  url: redis://localhost:6379/0
  enabled: true
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "dev-tok", cfg.GoogleAds.DeveloperToken)
	assert.Equal(t, "1234567890", cfg.GoogleAds.LoginCustomerID, "login customer id defaults to customer id")
	assert.Equal(t, 45, cfg.GoogleAds.TimeoutSeconds)
	assert.Equal(t, 10, cfg.GoogleAds.RateLimit.PerMinute)
	assert.Equal(t, "fb-tok", cfg.FacebookAds.AccessToken)
	assert.Equal(t, "555444", cfg.GoogleAnalytics.PropertyID)
	assert.True(t, cfg.Redis.Enabled)
}

func TestLoadFromEnvOverrides(t *testing.T) {
	path := writeConfig(t, `
google_ads:
  developer_token: from-file
facebook_ads:
  access_token: from-file
`)

	t.Setenv("GOOGLE_ADS_DEVELOPER_TOKEN", "from-env")
	t.Setenv("FACEBOOK_ACCESS_TOKEN", "fb-from-env")
	t.Setenv("GOOGLE_ANALYTICS_PROPERTY_ID", "prop-env")
	t.Setenv("REDIS_URL", "redis://envhost:6379")

	cfg, err := LoadFromEnv(path)
	require.NoError(t, err)

	assert.Equal(t, "from-env", cfg.GoogleAds.DeveloperToken)
	assert.Equal(t, "fb-from-env", cfg.FacebookAds.AccessToken)
	assert.Equal(t, "prop-env", cfg.GoogleAnalytics.PropertyID)
	assert.True(t, cfg.Redis.Enabled)
	assert.Equal(t, "redis://envhost:6379", cfg.Redis.URL)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}
