package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"glamora/internal/apperrors"
)

// Config is the process configuration (config.yaml).
type Config struct {
	Server struct {
		Port                   int `yaml:"port"`
		ReadTimeoutSeconds     int `yaml:"read_timeout_seconds"`
		WriteTimeoutSeconds    int `yaml:"write_timeout_seconds"`
		ShutdownTimeoutSeconds int `yaml:"shutdown_timeout_seconds"`
		RateLimit              struct {
			Requests      int `yaml:"requests"`
			WindowMinutes int `yaml:"window_minutes"`
		} `yaml:"rate_limit"`
		// TrustedProxies are addresses or CIDR ranges allowed to set
		// X-Forwarded-For and X-Real-IP.
		TrustedProxies []string `yaml:"trusted_proxies"`
	} `yaml:"server"`

	TeamUp struct {
		BaseURL           string  `yaml:"base_url"`
		APIKey            string  `yaml:"api_key"`
		CalendarKey       string  `yaml:"calendar_key"`
		TimeoutSeconds    int     `yaml:"timeout_seconds"`
		RequestsPerSecond float64 `yaml:"requests_per_second"`
		Burst             int     `yaml:"burst"`
		CacheTTLSeconds   int     `yaml:"cache_ttl_seconds"`
	} `yaml:"teamup"`

	Redis struct {
		Address  string `yaml:"address"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
	} `yaml:"redis"`

	Kafka struct {
		Enabled bool     `yaml:"enabled"`
		Brokers []string `yaml:"brokers"`
		Topic   string   `yaml:"topic"`
	} `yaml:"kafka"`

	Monitoring struct {
		HealthCheckPort   int  `yaml:"health_check_port"`
		PrometheusEnabled bool `yaml:"prometheus_enabled"`
		PrometheusPort    int  `yaml:"prometheus_port"`
	} `yaml:"monitoring"`

	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"` // console | json
	} `yaml:"log"`

	SalonConfigPath string `yaml:"salon_config_path"`
}

// Load reads config.yaml. A .env file next to the working directory is loaded
// first so ${VAR} placeholders can be filled from it.
func Load(path string) (*Config, error) {
	if path == "" {
		path = "configs/config.yaml"
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	// Support ${ENV_VAR} placeholders in YAML config.
	data = []byte(os.ExpandEnv(string(data)))

	var cfg Config
	if err = yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if cfg.SalonConfigPath == "" {
		cfg.SalonConfigPath = "configs/salon.yaml"
	}

	if err = cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks settings the process cannot start without.
func (c *Config) Validate() error {
	if c.TeamUp.APIKey == "" {
		return apperrors.Config("teamup.api_key is required")
	}
	if c.TeamUp.CalendarKey == "" {
		return apperrors.Config("teamup.calendar_key is required")
	}
	if c.TeamUp.RequestsPerSecond < 0 {
		return apperrors.Config("teamup.requests_per_second cannot be negative")
	}
	if c.Kafka.Enabled && (len(c.Kafka.Brokers) == 0 || c.Kafka.Topic == "") {
		return apperrors.Config("kafka: brokers and topic are required when enabled")
	}
	switch c.Log.Format {
	case "", "console", "json":
	default:
		return apperrors.Config("log.format: unknown format %q", c.Log.Format)
	}
	return nil
}

func (c *Config) ServerPort() int {
	if c.Server.Port <= 0 {
		return 3000
	}
	return c.Server.Port
}

func (c *Config) ReadTimeout() time.Duration {
	if c.Server.ReadTimeoutSeconds <= 0 {
		return 15 * time.Second
	}
	return time.Duration(c.Server.ReadTimeoutSeconds) * time.Second
}

func (c *Config) WriteTimeout() time.Duration {
	if c.Server.WriteTimeoutSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.Server.WriteTimeoutSeconds) * time.Second
}

func (c *Config) ShutdownTimeout() time.Duration {
	if c.Server.ShutdownTimeoutSeconds <= 0 {
		return 10 * time.Second
	}
	return time.Duration(c.Server.ShutdownTimeoutSeconds) * time.Second
}

// RateLimit returns the per-client request budget and its window.
// Defaults to 100 requests per 15 minutes.
func (c *Config) RateLimit() (int, time.Duration) {
	n := c.Server.RateLimit.Requests
	if n <= 0 {
		n = 100
	}
	window := time.Duration(c.Server.RateLimit.WindowMinutes) * time.Minute
	if window <= 0 {
		window = 15 * time.Minute
	}
	return n, window
}

func (c *Config) TeamUpTimeout() time.Duration {
	if c.TeamUp.TimeoutSeconds <= 0 {
		return 10 * time.Second
	}
	return time.Duration(c.TeamUp.TimeoutSeconds) * time.Second
}

func (c *Config) CacheTTL() time.Duration {
	return time.Duration(c.TeamUp.CacheTTLSeconds) * time.Second
}

func (c *Config) HealthCheckPort() int {
	if c.Monitoring.HealthCheckPort <= 0 {
		return 8090
	}
	return c.Monitoring.HealthCheckPort
}

func (c *Config) PrometheusPort() int {
	if c.Monitoring.PrometheusPort <= 0 {
		return 9090
	}
	return c.Monitoring.PrometheusPort
}
