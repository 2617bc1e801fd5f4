// Package main provides the governance dashboard server. It loads
// governance bundles, aggregates them per model version and serves the
// resulting table to the dashboard renderers.
package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/golang/glog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/modelgov/govdash/pkg/cache"
	"github.com/modelgov/govdash/pkg/dashboard"
	"github.com/modelgov/govdash/pkg/dominoapi"
	"github.com/modelgov/govdash/pkg/fixture"
	"github.com/modelgov/govdash/pkg/governance"
	"github.com/modelgov/govdash/pkg/runs"
	"github.com/modelgov/govdash/pkg/server"
)

var version = "dev"

func main() {
	if err := loadDotEnv(); err != nil {
		glog.Fatalf("Failed to load .env: %v", err)
	}

	v := viper.New()
	rootCmd := &cobra.Command{
		Use:          "govdash-server",
		Short:        "Governance dashboard server",
		Version:      version,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadServerConfig(v)
			if err != nil {
				return err
			}
			run(cfg)
			return nil
		},
	}
	if err := bindFlags(rootCmd, v); err != nil {
		glog.Fatalf("Failed to bind flags: %v", err)
	}

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(cfg *serverConfig) {
	// Initialize glog for backwards compatibility
	_ = flag.Set("logtostderr", "true")

	level, _ := parseLogLevel(cfg.LogLevel)
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	logger.Info("starting governance dashboard server",
		"listen", cfg.Listen,
		"apiURL", cfg.APIURL,
		"fixture", cfg.Fixture,
		"version", version,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	pipeline, err := governance.LoadConfig(cfg.PipelineConfig)
	if err != nil {
		glog.Fatalf("Failed to load pipeline config: %v", err)
	}
	if cfg.Concurrency > 0 {
		pipeline.Concurrency = cfg.Concurrency
	}
	logger.Info("loaded pipeline config",
		"policyMatch", pipeline.PolicyMatch,
		"attachmentType", pipeline.AttachmentType,
		"concurrency", pipeline.Concurrency,
	)

	var fixtureSource *fixture.Source
	if cfg.Fixture != "" {
		d, err := fixture.Load(cfg.Fixture)
		if err != nil {
			glog.Fatalf("Failed to load fixture: %v", err)
		}
		fixtureSource = fixture.NewSource(d)
		logger.Info("loaded fixture", "path", cfg.Fixture, "bundles", len(d.Bundles))
	}

	var (
		client   *dominoapi.Client
		primary  dashboard.Source
		fallback dashboard.Source
	)
	if cfg.APIURL != "" {
		apiCfg := dominoapi.DefaultConfig()
		apiCfg.BaseURL = cfg.APIURL
		apiCfg.APIKey = cfg.APIKey
		apiCfg.AuthHeader = cfg.AuthHeader
		apiCfg.ScanURL = cfg.ScanURL
		apiCfg.Timeout = cfg.APITimeout
		client = dominoapi.NewClient(apiCfg, logger)
		primary = client
		if fixtureSource != nil {
			fallback = fixtureSource
		}
	} else {
		primary = fixtureSource
		logger.Info("no API URL configured, serving fixture data only")
	}

	var serverOpts []server.ServerOption
	var recorder dashboard.RunRecorder

	runsCfg := runs.RunsConfigFromEnv()
	if runsCfg.Enabled {
		db, err := runs.Open(runsCfg)
		if err != nil {
			glog.Fatalf("Failed to connect to run history database: %v", err)
		}
		store := runs.NewStore(db)
		if err := store.AutoMigrate(); err != nil {
			glog.Fatalf("Failed to migrate run history: %v", err)
		}
		if n, err := store.AbandonRunning(); err != nil {
			logger.Error("failed to abandon stale runs", "error", err)
		} else if n > 0 {
			logger.Info("abandoned runs from a previous process", "count", n)
		}
		go runs.RetentionLoop(ctx, store, runsCfg, logger)

		recorder = store
		serverOpts = append(serverOpts, server.WithRunStore(store), server.WithDB(db))
		logger.Info("run history enabled", "dbType", runsCfg.DBType, "retentionDays", runsCfg.RetentionDays)
	}

	cacheCfg := cache.CacheConfigFromEnv()
	serverOpts = append(serverOpts, server.WithCacheConfig(cacheCfg))
	if client != nil {
		serverOpts = append(serverOpts, server.WithScanner(client), server.WithUserProvider(client))
	}
	if cfg.StaticDir != "" {
		serverOpts = append(serverOpts, server.WithStaticDir(cfg.StaticDir))
	}

	loader := dashboard.NewLoader(primary, fallback, pipeline, logger)
	refresher := dashboard.NewRefresher(loader, cfg.Refresh, recorder, logger)
	srv := server.NewServer(refresher, logger, serverOpts...)
	router := srv.MountRoutes()

	if fixtureSource != nil {
		err := fixture.Watch(ctx, cfg.Fixture, fixtureSource, logger, func() {
			snap := refresher.Current()
			if cfg.APIURL == "" || (snap != nil && snap.Source == dashboard.SourceFixture) {
				go func() { _, _ = refresher.Refresh(ctx, runs.TriggerFixture) }()
			}
		})
		if err != nil {
			logger.Warn("fixture hot reload disabled", "error", err)
		}
	}

	if client != nil {
		go logCurrentUser(ctx, client, logger)
	}

	go refresher.Run(ctx)

	httpServer := &http.Server{
		Addr:              cfg.Listen,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			glog.Fatalf("HTTP server error: %v", err)
		}
	}()

	logger.Info("governance dashboard server ready", "listen", cfg.Listen)

	<-ctx.Done()

	logger.Info("shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	srv.Close()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown error", "error", err)
	}

	logger.Info("governance dashboard server stopped")
}

// logCurrentUser probes the credential once at startup. Failure is not
// fatal; the dashboard works without a resolved user.
func logCurrentUser(ctx context.Context, client *dominoapi.Client, logger *slog.Logger) {
	u, err := client.CurrentUser(ctx)
	if err != nil {
		logger.Warn("current user lookup failed", "error", err)
		return
	}
	logger.Info("authenticated as", "userName", u.UserName, "fullName", u.FullName)
}
