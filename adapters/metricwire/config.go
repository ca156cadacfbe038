package metricwire

import (
	"fmt"
	"strings"
	"time"

	"studykit/internal/config"
)

// DefaultBaseURL is the MetricWire consumer API.
const DefaultBaseURL = "https://consumer-api.metricwire.com/"

// Config holds client and import settings
type Config struct {
	BaseURL      string        `json:"base_url"`
	ClientID     string        `json:"-"`
	ClientSecret string        `json:"-"`
	RateLimit    int           `json:"rate_limit"` // requests per Window
	Window       time.Duration `json:"window"`
	MaxAttempts  int           `json:"max_attempts"`
	Backoff      time.Duration `json:"backoff"` // multiplied by the attempt number
	Timeout      time.Duration `json:"timeout"`
	PageSize     int           `json:"page_size"`
	Concurrency  int           `json:"concurrency"` // surveys fetched at once
}

// DefaultConfig returns the limits MetricWire enforces
func DefaultConfig() *Config {
	return &Config{
		BaseURL:     DefaultBaseURL,
		RateLimit:   55,
		Window:      time.Minute,
		MaxAttempts: 3,
		Backoff:     5 * time.Second,
		Timeout:     60 * time.Second,
		PageSize:    500,
		Concurrency: 2,
	}
}

// ConfigFrom builds a client config from the environment config
func ConfigFrom(mw config.MetricWireConfig) *Config {
	cfg := DefaultConfig()
	if mw.BaseURL != "" {
		cfg.BaseURL = mw.BaseURL
	}
	cfg.ClientID = mw.ClientID
	cfg.ClientSecret = mw.ClientSecret
	if mw.RateLimit > 0 {
		cfg.RateLimit = mw.RateLimit
	}
	if mw.MaxAttempts > 0 {
		cfg.MaxAttempts = mw.MaxAttempts
	}
	if mw.Backoff > 0 {
		cfg.Backoff = mw.Backoff
	}
	if mw.Timeout > 0 {
		cfg.Timeout = mw.Timeout
	}
	if mw.PageSize > 0 {
		cfg.PageSize = mw.PageSize
	}
	if mw.Concurrency > 0 {
		cfg.Concurrency = mw.Concurrency
	}
	return cfg
}

// WithCredentials returns a copy carrying the given client credentials
func (c *Config) WithCredentials(id, secret string) *Config {
	cp := *c
	cp.ClientID, cp.ClientSecret = id, secret
	return &cp
}

// Validate checks if the configuration is usable
func (c *Config) Validate() error {
	if !strings.HasPrefix(c.BaseURL, "http://") && !strings.HasPrefix(c.BaseURL, "https://") {
		return &ValidationError{Field: "BaseURL", Message: "must be an http(s) URL"}
	}
	if c.ClientID == "" || c.ClientSecret == "" {
		return &ValidationError{Field: "Credentials", Message: "client id and secret are required"}
	}
	if c.RateLimit <= 0 {
		return &ValidationError{Field: "RateLimit", Message: "must be positive"}
	}
	if c.Window <= 0 {
		return &ValidationError{Field: "Window", Message: "must be positive"}
	}
	if c.MaxAttempts <= 0 {
		return &ValidationError{Field: "MaxAttempts", Message: "must be positive"}
	}
	if c.PageSize <= 0 {
		return &ValidationError{Field: "PageSize", Message: "must be positive"}
	}
	if c.Concurrency <= 0 {
		return &ValidationError{Field: "Concurrency", Message: "must be positive"}
	}
	return nil
}

// ValidationError represents a configuration validation error
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error for field '%s': %s", e.Field, e.Message)
}
