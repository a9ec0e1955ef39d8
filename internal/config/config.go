package config

import (
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application
type Config struct {
	Server          ServerConfig          `yaml:"server"`
	GoogleAds       GoogleAdsConfig       `yaml:"google_ads"`
	FacebookAds     FacebookAdsConfig     `yaml:"facebook_ads"`
	GoogleAnalytics GoogleAnalyticsConfig `yaml:"google_analytics"`
	Redis           RedisConfig           `yaml:"redis"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port int    `yaml:"port"`
	Host string `yaml:"host"`
}

// GetHost returns the server host, with container detection
func (c ServerConfig) GetHost() string {
	// In containers, listen on all interfaces
	if os.Getenv("ECS_CONTAINER_METADATA_URI") != "" || os.Getenv("AWS_EXECUTION_ENV") != "" {
		return "0.0.0.0"
	}
	if host := os.Getenv("SERVER_HOST"); host != "" {
		return host
	}
	return c.Host
}

// RateLimitConfig holds per-window quota overrides for one platform.
// Zero values fall back to the platform's built-in defaults.
type RateLimitConfig struct {
	PerMinute         int `yaml:"per_minute"`
	PerHour           int `yaml:"per_hour"`
	PerDay            int `yaml:"per_day"`
	RetryAfterSeconds int `yaml:"retry_after_seconds"`
	MaxRetries        int `yaml:"max_retries"`
}

// RetryAfter returns the configured retry delay as a duration.
func (c RateLimitConfig) RetryAfter() time.Duration {
	return time.Duration(c.RetryAfterSeconds) * time.Second
}

// GoogleAdsConfig holds Google Ads API configuration
type GoogleAdsConfig struct {
	BaseURL            string          `yaml:"base_url"`
	APIVersion         string          `yaml:"api_version"`
	DeveloperToken     string          `yaml:"developer_token"`
	ClientID           string          `yaml:"client_id"`
	ClientSecret       string          `yaml:"client_secret"`
	RefreshToken       string          `yaml:"refresh_token"`
	CustomerID         string          `yaml:"customer_id"`
	LoginCustomerID    string          `yaml:"login_customer_id"`
	ServiceAccountPath string          `yaml:"service_account_path"`
	TimeoutSeconds     int             `yaml:"timeout_seconds"`
	RateLimit          RateLimitConfig `yaml:"rate_limit"`
	Enabled            bool            `yaml:"enabled"`
}

// Timeout returns the configured timeout as a duration
func (c GoogleAdsConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// FacebookAdsConfig holds Facebook Marketing API configuration
type FacebookAdsConfig struct {
	BaseURL        string          `yaml:"base_url"`
	APIVersion     string          `yaml:"api_version"`
	AppID          string          `yaml:"app_id"`
	AppSecret      string          `yaml:"app_secret"`
	AccessToken    string          `yaml:"access_token"`
	AdAccountID    string          `yaml:"ad_account_id"`
	TimeoutSeconds int             `yaml:"timeout_seconds"`
	RateLimit      RateLimitConfig `yaml:"rate_limit"`
	Enabled        bool            `yaml:"enabled"`
}

// Timeout returns the configured timeout as a duration
func (c FacebookAdsConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// GoogleAnalyticsConfig holds GA4 Data API configuration
type GoogleAnalyticsConfig struct {
	BaseURL            string          `yaml:"base_url"`
	APIVersion         string          `yaml:"api_version"`
	PropertyID         string          `yaml:"property_id"`
	ClientID           string          `yaml:"client_id"`
	ClientSecret       string          `yaml:"client_secret"`
	RefreshToken       string          `yaml:"refresh_token"`
	ServiceAccountPath string          `yaml:"service_account_path"`
	TimeoutSeconds     int             `yaml:"timeout_seconds"`
	RateLimit          RateLimitConfig `yaml:"rate_limit"`
	Enabled            bool            `yaml:"enabled"`
}

// Timeout returns the configured timeout as a duration
func (c GoogleAnalyticsConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// RedisConfig holds the optional shared rate-limiter backend. When disabled,
// each process enforces vendor quotas independently in memory.
type RedisConfig struct {
	URL     string `yaml:"url"`
	Enabled bool   `yaml:"enabled"`
}

// Load reads and parses the configuration file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	// Set defaults
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.GoogleAds.BaseURL == "" {
		cfg.GoogleAds.BaseURL = "https://googleads.googleapis.com"
	}
	if cfg.GoogleAds.APIVersion == "" {
		cfg.GoogleAds.APIVersion = "v15"
	}
	if cfg.GoogleAds.TimeoutSeconds == 0 {
		cfg.GoogleAds.TimeoutSeconds = 30
	}
	if cfg.GoogleAds.LoginCustomerID == "" {
		cfg.GoogleAds.LoginCustomerID = cfg.GoogleAds.CustomerID
	}
	if cfg.FacebookAds.BaseURL == "" {
		cfg.FacebookAds.BaseURL = "https://graph.facebook.com"
	}
	if cfg.FacebookAds.APIVersion == "" {
		cfg.FacebookAds.APIVersion = "v18.0"
	}
	if cfg.FacebookAds.TimeoutSeconds == 0 {
		cfg.FacebookAds.TimeoutSeconds = 30
	}
	if cfg.GoogleAnalytics.BaseURL == "" {
		cfg.GoogleAnalytics.BaseURL = "https://analyticsdata.googleapis.com"
	}
	if cfg.GoogleAnalytics.APIVersion == "" {
		cfg.GoogleAnalytics.APIVersion = "v1beta"
	}
	if cfg.GoogleAnalytics.TimeoutSeconds == 0 {
		cfg.GoogleAnalytics.TimeoutSeconds = 30
	}

	return &cfg, nil
}

// LoadFromEnv loads configuration with environment variable overrides.
// It automatically loads a .env file (if present) before reading env vars,
// so credentials can live in .env locally and in real env vars in deploy.
func LoadFromEnv(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}

	// Google Ads overrides
	if v := os.Getenv("GOOGLE_ADS_DEVELOPER_TOKEN"); v != "" {
		cfg.GoogleAds.DeveloperToken = v
	}
	if v := os.Getenv("GOOGLE_ADS_CLIENT_ID"); v != "" {
		cfg.GoogleAds.ClientID = v
	}
	if v := os.Getenv("GOOGLE_ADS_CLIENT_SECRET"); v != "" {
		cfg.GoogleAds.ClientSecret = v
	}
	if v := os.Getenv("GOOGLE_ADS_REFRESH_TOKEN"); v != "" {
		cfg.GoogleAds.RefreshToken = v
	}
	if v := os.Getenv("GOOGLE_ADS_CUSTOMER_ID"); v != "" {
		cfg.GoogleAds.CustomerID = v
		if cfg.GoogleAds.LoginCustomerID == "" {
			cfg.GoogleAds.LoginCustomerID = v
		}
	}
	if v := os.Getenv("GOOGLE_ADS_LOGIN_CUSTOMER_ID"); v != "" {
		cfg.GoogleAds.LoginCustomerID = v
	}
	if v := os.Getenv("GOOGLE_ADS_SERVICE_ACCOUNT_PATH"); v != "" {
		cfg.GoogleAds.ServiceAccountPath = v
	}

	// Facebook Ads overrides
	if v := os.Getenv("FACEBOOK_APP_ID"); v != "" {
		cfg.FacebookAds.AppID = v
	}
	if v := os.Getenv("FACEBOOK_APP_SECRET"); v != "" {
		cfg.FacebookAds.AppSecret = v
	}
	if v := os.Getenv("FACEBOOK_ACCESS_TOKEN"); v != "" {
		cfg.FacebookAds.AccessToken = v
	}
	if v := os.Getenv("FACEBOOK_AD_ACCOUNT_ID"); v != "" {
		cfg.FacebookAds.AdAccountID = v
	}

	// Google Analytics overrides
	if v := os.Getenv("GOOGLE_ANALYTICS_PROPERTY_ID"); v != "" {
		cfg.GoogleAnalytics.PropertyID = v
	}
	if v := os.Getenv("GOOGLE_ANALYTICS_CLIENT_ID"); v != "" {
		cfg.GoogleAnalytics.ClientID = v
	}
	if v := os.Getenv("GOOGLE_ANALYTICS_CLIENT_SECRET"); v != "" {
		cfg.GoogleAnalytics.ClientSecret = v
	}
	if v := os.Getenv("GOOGLE_ANALYTICS_REFRESH_TOKEN"); v != "" {
		cfg.GoogleAnalytics.RefreshToken = v
	}
	if v := os.Getenv("GOOGLE_ANALYTICS_SERVICE_ACCOUNT_PATH"); v != "" {
		cfg.GoogleAnalytics.ServiceAccountPath = v
	}

	// Redis override
	if v := os.Getenv("REDIS_URL"); v != "" {
		cfg.Redis.URL = v
		cfg.Redis.Enabled = true
	}

	return cfg, nil
}
