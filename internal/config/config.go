package config

import (
	"os"
	"path/filepath"
	"strconv"
	"time"

	"studykit/internal/errors"
)

// Config represents the complete application configuration
type Config struct {
	Paths      PathConfig
	MetricWire MetricWireConfig
	Monitor    MonitorConfig
	Server     ServerConfig
	Report     ReportConfig
}

// PathConfig holds file system roots
type PathConfig struct {
	DataRoot     string
	ConfigRoot   string
	SettingsFile string
}

// MetricWireConfig holds the import client settings
type MetricWireConfig struct {
	BaseURL      string
	ClientID     string
	ClientSecret string
	RateLimit    int // requests per minute
	MaxAttempts  int
	Backoff      time.Duration
	Timeout      time.Duration
	PageSize     int
	Concurrency  int
	DumpJSON     bool
}

// MonitorConfig holds the retention monitor settings
type MonitorConfig struct {
	Enabled           bool
	Interval          time.Duration
	AutoDeleteMinutes int
	AutoQuitEnabled   bool
	AutoQuitMinutes   int
}

// ServerConfig holds web server settings
type ServerConfig struct {
	Port    string
	UIPort  string
	GinMode string
}

// ReportConfig holds defaults for compliance and timeline views
type ReportConfig struct {
	DefaultTimezone string
}

// Location resolves DefaultTimezone.
func (r ReportConfig) Location() (*time.Location, error) {
	return time.LoadLocation(r.DefaultTimezone)
}

// HasCredentials reports whether both MetricWire credentials are set.
func (m MetricWireConfig) HasCredentials() bool {
	return m.ClientID != "" && m.ClientSecret != ""
}

// Load reads configuration from environment variables and validates it
func Load() (*Config, error) {
	config := &Config{
		Paths:      *loadPathConfig(),
		MetricWire: *loadMetricWireConfig(),
		Monitor:    *loadMonitorConfig(),
		Server:     *loadServerConfig(),
		Report:     *loadReportConfig(),
	}

	if err := validateConfig(config); err != nil {
		return nil, errors.Wrap(err, "configuration validation failed")
	}

	return config, nil
}

func loadPathConfig() *PathConfig {
	configRoot := getEnvOrDefault("CONFIG_ROOT", "config")
	return &PathConfig{
		DataRoot:     getEnvOrDefault("DATA_ROOT", "data"),
		ConfigRoot:   configRoot,
		SettingsFile: getEnvOrDefault("SETTINGS_FILE", filepath.Join(configRoot, "settings.csv")),
	}
}

func loadMetricWireConfig() *MetricWireConfig {
	return &MetricWireConfig{
		BaseURL:      getEnvOrDefault("MW_BASE_URL", "https://consumer-api.metricwire.com/"),
		ClientID:     os.Getenv("MW_CLIENT_ID"),
		ClientSecret: os.Getenv("MW_CLIENT_SECRET"),
		RateLimit:    getEnvIntOrDefault("MW_RATE_LIMIT", 55), // capped by MetricWire
		MaxAttempts:  getEnvIntOrDefault("MW_MAX_ATTEMPTS", 3),
		Backoff:      getEnvDurationOrDefault("MW_BACKOFF", 5*time.Second),
		Timeout:      getEnvDurationOrDefault("MW_TIMEOUT", 60*time.Second),
		PageSize:     getEnvIntOrDefault("MW_PAGE_SIZE", 500),
		Concurrency:  getEnvIntOrDefault("MW_CONCURRENCY", 2),
		DumpJSON:     getEnvBoolOrDefault("MW_DUMP_JSON", false),
	}
}

func loadMonitorConfig() *MonitorConfig {
	return &MonitorConfig{
		Enabled:           getEnvBoolOrDefault("MONITOR_ENABLED", true),
		Interval:          getEnvDurationOrDefault("MONITOR_INTERVAL", 30*time.Second),
		AutoDeleteMinutes: getEnvIntOrDefault("AUTO_DELETE_MINUTES", 30),
		AutoQuitEnabled:   getEnvBoolOrDefault("AUTO_QUIT_ENABLED", true),
		AutoQuitMinutes:   getEnvIntOrDefault("AUTO_QUIT_MINUTES", 720),
	}
}

func loadServerConfig() *ServerConfig {
	return &ServerConfig{
		Port:    getEnvOrDefault("PORT", "8501"),
		UIPort:  getEnvOrDefault("UI_PORT", "8502"),
		GinMode: getEnvOrDefault("GIN_MODE", "release"),
	}
}

func loadReportConfig() *ReportConfig {
	return &ReportConfig{
		DefaultTimezone: getEnvOrDefault("DEFAULT_TIMEZONE", "America/New_York"),
	}
}

func validateConfig(config *Config) error {
	if config.Paths.DataRoot == "" {
		return errors.ConfigInvalid("data root is required")
	}
	if config.MetricWire.RateLimit <= 0 {
		return errors.ConfigInvalid("MW_RATE_LIMIT must be positive")
	}
	if config.MetricWire.MaxAttempts <= 0 {
		return errors.ConfigInvalid("MW_MAX_ATTEMPTS must be positive")
	}
	if config.MetricWire.PageSize <= 0 {
		return errors.ConfigInvalid("MW_PAGE_SIZE must be positive")
	}
	if config.MetricWire.Concurrency <= 0 {
		return errors.ConfigInvalid("MW_CONCURRENCY must be positive")
	}
	if config.Monitor.Interval <= 0 {
		return errors.ConfigInvalid("MONITOR_INTERVAL must be positive")
	}
	if config.Monitor.AutoDeleteMinutes <= 0 || config.Monitor.AutoQuitMinutes <= 0 {
		return errors.ConfigInvalid("monitor minutes must be positive")
	}
	if _, err := config.Report.Location(); err != nil {
		return errors.Wrapf(errors.ConfigInvalid("unknown timezone"), "DEFAULT_TIMEZONE=%q", config.Report.DefaultTimezone)
	}
	return nil
}

// Helper functions for environment variable parsing
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvBoolOrDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
