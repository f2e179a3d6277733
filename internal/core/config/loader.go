package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v2"

	"github.com/vietddude/toolgate/internal/core/retry"
	"github.com/vietddude/toolgate/internal/infra/vendor"
)

// Default returns the configuration used for keys absent from the file.
func Default() *AppConfig {
	cfg := &AppConfig{}
	cfg.Server.API.Port = 8080
	cfg.Server.API.EnableCORS = true
	cfg.Server.HealthPort = 9090
	cfg.Logging.Level = "info"

	cfg.Vendor.Timeout = 30 * time.Second
	cfg.Vendor.Retry = retry.DefaultPolicy()
	cfg.Vendor.KeyValidationRetry = vendor.DefaultKeyValidationPolicy()

	cfg.Backend.Timeout = 5 * time.Second
	cfg.Backend.Retry = retry.DefaultPolicy()

	cfg.DeadLetters.ReplayInterval = time.Minute
	cfg.DeadLetters.MaxAttempts = 5
	cfg.DeadLetters.Retention = 7 * 24 * time.Hour
	cfg.FailureLog.Retention = 7 * 24 * time.Hour
	return cfg
}

// Load reads configuration from a YAML file.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := Default()
	// Expand environment variables in the YAML content
	expandedData := os.ExpandEnv(string(data))
	if err := yaml.Unmarshal([]byte(expandedData), cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if cfg.Server.API.Port == 0 {
		cfg.Server.API.Port = 8080
	}
	if cfg.Server.HealthPort == 0 {
		cfg.Server.HealthPort = 9090
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings that would be silently normalized at call time.
func (c *AppConfig) Validate() error {
	if strings.TrimSpace(c.Vendor.BaseURL) == "" {
		return fmt.Errorf("vendor.base_url is required")
	}
	policies := map[string]retry.Policy{
		"vendor.retry":                c.Vendor.Retry,
		"vendor.key_validation_retry": c.Vendor.KeyValidationRetry,
		"backend.retry":               c.Backend.Retry,
	}
	for name, p := range policies {
		if err := p.Validate(); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}
	if c.Server.API.Port == c.Server.HealthPort {
		return fmt.Errorf("server.api.port and server.health_port must differ (both %d)", c.Server.HealthPort)
	}
	return nil
}

// LogLevel maps logging.level to a slog level; unknown values mean info.
func (c *AppConfig) LogLevel() slog.Level {
	switch strings.ToLower(c.Logging.Level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
