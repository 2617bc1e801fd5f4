package runs

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Database types accepted by Open.
const (
	DBTypeSQLite   = "sqlite"
	DBTypePostgres = "postgres"
	DBTypeMySQL    = "mysql"
)

// RunsConfig controls run history storage and retention.
type RunsConfig struct {
	Enabled         bool          // Whether run history is recorded. Default true.
	DBType          string        // sqlite, postgres or mysql. Default sqlite.
	DSN             string        // Connection string. Default an on-disk sqlite file.
	RetentionDays   int           // How long to keep finished runs. Default 14.
	CleanupInterval time.Duration // How often retention runs. Default 1h.
}

// DefaultRunsConfig returns the default run history configuration.
func DefaultRunsConfig() *RunsConfig {
	return &RunsConfig{
		Enabled:         true,
		DBType:          DBTypeSQLite,
		DSN:             "govdash-runs.db",
		RetentionDays:   14,
		CleanupInterval: time.Hour,
	}
}

// RunsConfigFromEnv loads config from environment variables.
// DASHBOARD_RUNS_ENABLED, DASHBOARD_RUNS_DB_TYPE, DASHBOARD_RUNS_DSN,
// DASHBOARD_RUNS_RETENTION_DAYS, DASHBOARD_RUNS_CLEANUP_INTERVAL_MINUTES
func RunsConfigFromEnv() *RunsConfig {
	cfg := DefaultRunsConfig()

	if v := os.Getenv("DASHBOARD_RUNS_ENABLED"); v != "" {
		cfg.Enabled, _ = strconv.ParseBool(v)
	}

	if v := os.Getenv("DASHBOARD_RUNS_DB_TYPE"); v != "" {
		switch t := strings.ToLower(v); t {
		case DBTypeSQLite, DBTypePostgres, DBTypeMySQL:
			cfg.DBType = t
		}
	}

	if v := os.Getenv("DASHBOARD_RUNS_DSN"); v != "" {
		cfg.DSN = v
	}

	if v := os.Getenv("DASHBOARD_RUNS_RETENTION_DAYS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			cfg.RetentionDays = n
		}
	}

	if v := os.Getenv("DASHBOARD_RUNS_CLEANUP_INTERVAL_MINUTES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.CleanupInterval = time.Duration(n) * time.Minute
		}
	}

	return cfg
}
