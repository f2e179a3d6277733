package config

import (
	"time"

	"github.com/vietddude/toolgate/internal/api"
	"github.com/vietddude/toolgate/internal/infra/backend"
	redisclient "github.com/vietddude/toolgate/internal/infra/redis"
	"github.com/vietddude/toolgate/internal/infra/storage/postgres"
	"github.com/vietddude/toolgate/internal/infra/vendor"
)

// AppConfig represents the top-level configuration.
type AppConfig struct {
	Server      ServerConfig       `yaml:"server"`
	Logging     LoggingConfig      `yaml:"logging"`
	Vendor      vendor.Config      `yaml:"vendor"`
	Backend     backend.Config     `yaml:"backend"`
	Redis       redisclient.Config `yaml:"redis"`
	Database    postgres.Config    `yaml:"database"`
	DeadLetters DeadLetterConfig   `yaml:"dead_letters"`
	FailureLog  FailureLogConfig   `yaml:"failure_log"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	API        api.Config `yaml:"api"`
	HealthPort int        `yaml:"health_port"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error
}

// DeadLetterConfig controls the dead-letter queue and its replay worker.
type DeadLetterConfig struct {
	ReplayInterval time.Duration `yaml:"replay_interval"` // 0 = manual replay only
	MaxAttempts    int           `yaml:"max_attempts"`
	Retention      time.Duration `yaml:"retention"` // Redis payload TTL
}

// FailureLogConfig controls failure log retention.
type FailureLogConfig struct {
	Retention time.Duration `yaml:"retention"` // 0 = keep forever
}
