package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config holds all application configuration
type Config struct {
	// Data layout
	DataDir      string `envconfig:"DATA_DIR" default:"./data"`
	SnapshotPath string `envconfig:"SNAPSHOT_PATH" default:""`
	ArtifactPath string `envconfig:"ARTIFACT_PATH" default:""`

	// Sources. Comma-separated source names; each source reads
	// <DataDir>/<name>_pregame.json and <DataDir>/<name>_live.json.
	Sources          []string          `envconfig:"SOURCES" default:"bet365,pinnacle,fonbet"`
	SourceMatchPaths map[string]string `envconfig:"SOURCE_MATCH_PATHS"`

	// Linking
	MatchThreshold      float64 `envconfig:"MATCH_THRESHOLD" default:"0.6"`
	AliasConflictPolicy string  `envconfig:"ALIAS_CONFLICT_POLICY" default:"first_wins"`

	// Persistence
	SnapshotBackups int           `envconfig:"SNAPSHOT_BACKUPS" default:"10"`
	LockTimeout     time.Duration `envconfig:"LOCK_TIMEOUT" default:"10s"`
	LockPoll        time.Duration `envconfig:"LOCK_POLL" default:"100ms"`

	// Scheduler
	EnableScheduler    bool          `envconfig:"ENABLE_SCHEDULER" default:"true"`
	PollInterval       time.Duration `envconfig:"POLL_INTERVAL" default:"15s"`
	ForceCycleInterval time.Duration `envconfig:"FORCE_CYCLE_INTERVAL" default:"5m"`
	MaintenanceCron    string        `envconfig:"MAINTENANCE_CRON" default:"0 3 * * *"`

	// Database (optional history sink)
	DatabaseEnabled  bool   `envconfig:"DATABASE_ENABLED" default:"false"`
	DatabaseHost     string `envconfig:"DATABASE_HOST" default:"localhost"`
	DatabasePort     int    `envconfig:"DATABASE_PORT" default:"5432"`
	DatabaseName     string `envconfig:"DATABASE_NAME" default:"unified_odds"`
	DatabaseUser     string `envconfig:"DATABASE_USER" default:"odds_user"`
	DatabasePassword string `envconfig:"DATABASE_PASSWORD" default:""`
	DatabaseSSLMode  string `envconfig:"DATABASE_SSL_MODE" default:"disable"`

	// Redis (optional artifact publication)
	RedisEnabled  bool   `envconfig:"REDIS_ENABLED" default:"false"`
	RedisHost     string `envconfig:"REDIS_HOST" default:"localhost"`
	RedisPort     int    `envconfig:"REDIS_PORT" default:"6379"`
	RedisPassword string `envconfig:"REDIS_PASSWORD" default:""`
	RedisDB       int    `envconfig:"REDIS_DB" default:"0"`
	RedisKey      string `envconfig:"REDIS_KEY" default:"unified:artifact"`
	RedisChannel  string `envconfig:"REDIS_CHANNEL" default:"unified:updates"`

	// Application
	AppEnv   string `envconfig:"APP_ENV" default:"development"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`

	// Monitoring
	EnableMetrics bool `envconfig:"ENABLE_METRICS" default:"true"`
	MetricsPort   int  `envconfig:"METRICS_PORT" default:"9090"`
}

// Load loads configuration from environment variables
// It first attempts to load from .env file if in development mode
func Load() (*Config, error) {
	// Try to load .env file (ignore error if doesn't exist)
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process environment config: %w", err)
	}

	cfg.applyDefaults()

	// Validate
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.SnapshotPath == "" {
		c.SnapshotPath = c.DataDir + "/canonical_cache.json"
	}
	if c.ArtifactPath == "" {
		c.ArtifactPath = c.DataDir + "/unified_matches.json"
	}
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if len(c.Sources) == 0 {
		return fmt.Errorf("SOURCES must name at least one source")
	}

	if c.MatchThreshold <= 0 || c.MatchThreshold > 1 {
		return fmt.Errorf("MATCH_THRESHOLD must be in (0, 1], got %v", c.MatchThreshold)
	}

	switch c.AliasConflictPolicy {
	case "first_wins", "last_wins":
	default:
		return fmt.Errorf("ALIAS_CONFLICT_POLICY must be first_wins or last_wins, got %q", c.AliasConflictPolicy)
	}

	if c.SnapshotBackups < 1 {
		return fmt.Errorf("SNAPSHOT_BACKUPS must be at least 1")
	}

	if c.DatabaseEnabled && c.DatabasePassword == "" {
		return fmt.Errorf("DATABASE_PASSWORD is required when DATABASE_ENABLED is set")
	}

	return nil
}

// MatchPath returns the JSON path to the match array for a source,
// falling back to the top-level "matches" key.
func (c *Config) MatchPath(source string) string {
	if p, ok := c.SourceMatchPaths[source]; ok && p != "" {
		return p
	}
	return "matches"
}

// SourcePriority returns the configured source order. The first source
// wins primary selection during assembly.
func (c *Config) SourcePriority() []string {
	out := make([]string, 0, len(c.Sources))
	for _, s := range c.Sources {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// DatabaseDSN returns the PostgreSQL connection string
func (c *Config) DatabaseDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.DatabaseHost,
		c.DatabasePort,
		c.DatabaseUser,
		c.DatabasePassword,
		c.DatabaseName,
		c.DatabaseSSLMode,
	)
}

// RedisAddr returns the Redis address
func (c *Config) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.RedisHost, c.RedisPort)
}

// IsDevelopment returns true if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.AppEnv == "development"
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

// MustLoad loads configuration or panics on error
// Use this in main() where we want to fail fast
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	return cfg
}
