package config

import (
	"fmt"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"

	"github.com/eburns009/starhouse-crm/pkg/models"
)

// Config holds all configuration for the CRM pipeline.
// Configuration can come from a YAML file (config.yaml) or environment
// variables; environment variables always override YAML values. Secrets
// (PGPASSWORD) must only come from environment variables.
type Config struct {
	Env string `yaml:"env" env:"ENVIRONMENT" env-default:"local"`

	// Database configuration (PostgreSQL / Supabase)
	Database DatabaseConfig `yaml:"database"`

	// MigrationsPath is the directory containing golang-migrate SQL files.
	MigrationsPath string `yaml:"migrations_path" env:"MIGRATIONS_PATH" env-default:"migrations"`

	Matching MatchingConfig `yaml:"matching"`
	Scoring  ScoringConfig  `yaml:"scoring"`
	Merge    MergeConfig    `yaml:"merge"`

	// SourcePolicy is the injectable source-of-record ordering consulted by
	// the import reconciler. Empty config falls back to the default order.
	SourcePolicy models.SourcePolicy `yaml:"source_policy"`
}

// DatabaseConfig holds PostgreSQL database configuration.
type DatabaseConfig struct {
	Host           string `yaml:"host" env:"PGHOST" env-default:"localhost"`
	Port           int    `yaml:"port" env:"PGPORT" env-default:"5432"`
	User           string `yaml:"user" env:"PGUSER" env-default:"starhouse"`
	Password       string `yaml:"-" env:"PGPASSWORD"` // Secret - not in YAML
	Database       string `yaml:"database" env:"PGDATABASE" env-default:"starhouse_crm"`
	MaxConnections int32  `yaml:"max_connections" env:"PGMAX_CONNECTIONS" env-default:"10"`
	SSLMode        string `yaml:"ssl_mode" env:"PGSSLMODE" env-default:"disable"`
}

// MatchingConfig holds duplicate-detection knobs.
type MatchingConfig struct {
	// FuzzyThreshold is the minimum name similarity (0..1) for a fuzzy
	// match. Fuzzy matches are review-only regardless of this value.
	FuzzyThreshold float64 `yaml:"fuzzy_threshold" env:"MATCH_FUZZY_THRESHOLD" env-default:"0.9"`
}

// ScoringConfig holds mailability scoring knobs.
type ScoringConfig struct {
	// TrustedSources earn the trusted-source bonus during mailability
	// scoring. Defaults to the platform of record.
	TrustedSources []string `yaml:"trusted_sources" env:"SCORE_TRUSTED_SOURCES" env-default:"kajabi"`
}

// MergeConfig holds merge-run execution settings.
type MergeConfig struct {
	// Workers bounds concurrent merge groups. Groups keep their own
	// transaction boundary, so this is a throughput knob only.
	Workers int `yaml:"workers" env:"MERGE_WORKERS" env-default:"1"`

	// GroupTimeout fails a single group without aborting the run.
	GroupTimeout time.Duration `yaml:"group_timeout" env:"MERGE_GROUP_TIMEOUT" env-default:"30s"`
}

// Load reads configuration from the given YAML file with environment
// variable overrides. A missing file is not an error; environment variables
// and defaults alone are enough to run.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	if _, err := os.Stat(path); err == nil {
		if err := cleanenv.ReadConfig(path, cfg); err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", path, err)
		}
	} else {
		if err := cleanenv.ReadEnv(cfg); err != nil {
			return nil, fmt.Errorf("failed to read environment: %w", err)
		}
	}

	if len(cfg.SourcePolicy.Order) == 0 {
		cfg.SourcePolicy = models.DefaultSourcePolicy()
	}

	if cfg.Merge.Workers < 1 {
		cfg.Merge.Workers = 1
	}

	return cfg, nil
}

// ConnectionString returns a PostgreSQL connection string.
func (c *DatabaseConfig) ConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}
