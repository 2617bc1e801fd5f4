package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/modelgov/govdash/pkg/dashboard"
	"github.com/modelgov/govdash/pkg/dominoapi"
)

const envPrefix = "GOVDASH"

// serverConfig is the resolved configuration of the server binary.
type serverConfig struct {
	APIURL         string
	APIKey         string
	AuthHeader     string
	ScanURL        string
	APITimeout     time.Duration
	Listen         string
	PipelineConfig string
	Fixture        string
	StaticDir      string
	Concurrency    int
	LogLevel       string
	Refresh        dashboard.RefresherConfig
}

// bindFlags registers the server flags and binds each to viper, so every
// flag can also be set as GOVDASH_<FLAG> with dashes turned to underscores.
func bindFlags(cmd *cobra.Command, v *viper.Viper) error {
	refresh := dashboard.DefaultRefresherConfig()
	api := dominoapi.DefaultConfig()

	f := cmd.Flags()
	f.String("api-url", "", "Governance API base URL")
	f.String("api-key", "", "Governance API key")
	f.String("auth-header", api.AuthHeader, "Header carrying the API key")
	f.String("scan-url", "", "Security scan endpoint (default <api-url>/scan)")
	f.Duration("api-timeout", api.Timeout, "Timeout of a single governance API call")
	f.String("listen", ":8080", "Address to listen on")
	f.String("pipeline-config", "", "Path to the pipeline config YAML")
	f.String("fixture", "", "Fixture file served when the API is unavailable, or instead of it when no API URL is set")
	f.String("static-dir", "", "Directory of dashboard assets to serve")
	f.Int("concurrency", 0, "Maximum in-flight fetches per stage (0 keeps the pipeline config value)")
	f.String("log-level", "info", "Log level: debug, info, warn, error")
	f.Duration("refresh-interval", refresh.Interval, "Interval between scheduled refreshes (0 disables)")
	f.Duration("manual-refresh-interval", refresh.ManualInterval, "Minimum gap between manual refreshes")
	f.Duration("load-timeout", refresh.Timeout, "Timeout of one load cycle")

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	return v.BindPFlags(f)
}

// loadServerConfig resolves flags, environment and defaults.
func loadServerConfig(v *viper.Viper) (*serverConfig, error) {
	cfg := &serverConfig{
		APIURL:         strings.TrimSpace(v.GetString("api-url")),
		APIKey:         v.GetString("api-key"),
		AuthHeader:     v.GetString("auth-header"),
		ScanURL:        v.GetString("scan-url"),
		APITimeout:     v.GetDuration("api-timeout"),
		Listen:         v.GetString("listen"),
		PipelineConfig: v.GetString("pipeline-config"),
		Fixture:        v.GetString("fixture"),
		StaticDir:      v.GetString("static-dir"),
		Concurrency:    v.GetInt("concurrency"),
		LogLevel:       v.GetString("log-level"),
		Refresh: dashboard.RefresherConfig{
			Interval:       v.GetDuration("refresh-interval"),
			ManualInterval: v.GetDuration("manual-refresh-interval"),
			Timeout:        v.GetDuration("load-timeout"),
		},
	}

	if cfg.APIURL == "" && cfg.Fixture == "" {
		return nil, fmt.Errorf("either --api-url or --fixture is required")
	}
	if cfg.Concurrency < 0 {
		return nil, fmt.Errorf("concurrency must not be negative, got %d", cfg.Concurrency)
	}
	if _, err := parseLogLevel(cfg.LogLevel); err != nil {
		return nil, err
	}
	return cfg, nil
}

func parseLogLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("invalid log level %q", s)
	}
	return level, nil
}

// loadDotEnv loads .env from the working directory when present.
func loadDotEnv() error {
	if _, err := os.Stat(".env"); err == nil {
		return godotenv.Load(".env")
	}
	return nil
}
