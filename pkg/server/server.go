// Package server exposes governance snapshots to the dashboard renderers
// over HTTP and websocket.
package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"gorm.io/gorm"

	"github.com/modelgov/govdash/pkg/cache"
	"github.com/modelgov/govdash/pkg/dashboard"
	"github.com/modelgov/govdash/pkg/dominoapi"
	"github.com/modelgov/govdash/pkg/runs"
)

// Scanner triggers security scans of model code.
type Scanner interface {
	TriggerScan(ctx context.Context, req dominoapi.ScanRequest) (*dominoapi.ScanResponse, error)
}

// UserProvider returns the user behind the configured credential.
type UserProvider interface {
	CurrentUser(ctx context.Context) (*dominoapi.User, error)
}

// Server serves the dashboard API from the refresher's current snapshot.
type Server struct {
	router       chi.Router
	refresher    *dashboard.Refresher
	logger       *slog.Logger
	db           *gorm.DB
	runStore     *runs.Store
	cacheManager *cache.CacheManager
	scanner      Scanner
	users        UserProvider
	events       *EventHub
	staticDir    string
	startedAt    time.Time
	mu           sync.RWMutex
}

// ServerOption configures a Server.
type ServerOption func(*Server)

// WithRunStore enables the run history API.
func WithRunStore(store *runs.Store) ServerOption {
	return func(s *Server) {
		s.runStore = store
	}
}

// WithDB sets the database checked by the readiness probe.
func WithDB(db *gorm.DB) ServerOption {
	return func(s *Server) {
		s.db = db
	}
}

// WithCacheConfig enables response caching for the model endpoints.
func WithCacheConfig(cfg *cache.CacheConfig) ServerOption {
	return func(s *Server) {
		s.cacheManager = cache.NewCacheManager(cfg)
	}
}

// WithScanner enables the security scan endpoint.
func WithScanner(sc Scanner) ServerOption {
	return func(s *Server) {
		s.scanner = sc
	}
}

// WithUserProvider enables the current user endpoint.
func WithUserProvider(p UserProvider) ServerOption {
	return func(s *Server) {
		s.users = p
	}
}

// WithStaticDir serves the browser dashboard from dir.
func WithStaticDir(dir string) ServerOption {
	return func(s *Server) {
		s.staticDir = dir
	}
}

// NewServer creates a Server reading snapshots from refresher. Every
// successful refresh clears the response cache and is pushed to websocket
// subscribers.
func NewServer(refresher *dashboard.Refresher, logger *slog.Logger, opts ...ServerOption) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		refresher: refresher,
		logger:    logger,
		startedAt: time.Now(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.events = NewEventHub(logger)

	refresher.OnRefresh(func(snap *dashboard.Snapshot) {
		s.cacheManager.InvalidateAll()
		s.events.Broadcast(NewSnapshotEvent(snap))
	})
	return s
}

// MountRoutes creates the HTTP router.
func (s *Server) MountRoutes() chi.Router {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.router = chi.NewRouter()

	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(middleware.Recoverer)
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link", "Retry-After"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	s.router.Get("/healthz", s.healthHandler)
	s.router.Get("/livez", s.healthHandler)
	s.router.Get("/readyz", s.readyHandler)

	s.router.Route("/api/v1", func(r chi.Router) {
		r.With(s.cacheManager.ModelsMiddleware()).Get("/models", s.listModelsHandler)
		r.With(s.cacheManager.ModelsMiddleware()).Get("/models/{key}", s.getModelHandler)
		r.Post("/models/{key}/scan", s.scanModelHandler)
		r.Post("/refresh", s.refreshHandler)
		r.Get("/user", s.userHandler)
		r.Get("/events", s.events.HandleWS)

		if s.runStore != nil {
			r.Mount("/runs", runs.Router(s.runStore))
			s.logger.Info("run history API enabled")
		}
	})

	if s.staticDir != "" {
		s.router.NotFound(spaHandler(s.staticDir))
		s.logger.Info("serving dashboard assets", "dir", s.staticDir)
	}

	return s.router
}

// Router returns the router built by MountRoutes.
func (s *Server) Router() chi.Router {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.router
}

// Events returns the websocket hub.
func (s *Server) Events() *EventHub {
	return s.events
}

// Close disconnects every websocket subscriber.
func (s *Server) Close() {
	s.events.Close()
}

// healthHandler returns the liveness status of the server.
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "alive",
		"uptime": time.Since(s.startedAt).Round(time.Second).String(),
	})
}

// readyHandler reports ready once a snapshot is loaded and the run
// database, when configured, answers a ping.
func (s *Server) readyHandler(w http.ResponseWriter, r *http.Request) {
	allReady := true

	dbStatus := map[string]string{"status": "up"}
	if s.db != nil {
		sqlDB, err := s.db.DB()
		if err == nil {
			err = sqlDB.PingContext(r.Context())
		}
		if err != nil {
			dbStatus["status"] = "down"
			dbStatus["error"] = err.Error()
			allReady = false
		}
	} else {
		dbStatus["status"] = "not_configured"
	}

	loadStatus := map[string]string{"status": "complete"}
	if snap := s.refresher.Current(); snap != nil {
		loadStatus["source"] = snap.Source
		loadStatus["loadedAt"] = snap.LoadedAt.Format(time.RFC3339)
	} else {
		loadStatus["status"] = "pending"
		allReady = false
	}
	if err := s.refresher.LastError(); err != nil {
		loadStatus["lastError"] = err.Error()
	}

	components := map[string]any{
		"database":     dbStatus,
		"initial_load": loadStatus,
	}
	if s.runStore != nil {
		components["last_run"] = s.lastRunStatus()
	}

	status, code := "ready", http.StatusOK
	if !allReady {
		status, code = "not_ready", http.StatusServiceUnavailable
	}
	writeJSON(w, code, map[string]any{
		"status":     status,
		"components": components,
	})
}

// lastRunStatus summarizes the most recent finished load run. It is
// informational and never affects readiness.
func (s *Server) lastRunStatus() map[string]string {
	run, err := s.runStore.Latest()
	switch {
	case err != nil:
		return map[string]string{"status": "unknown", "error": err.Error()}
	case run == nil:
		return map[string]string{"status": "none"}
	}
	st := map[string]string{
		"status":    string(run.State),
		"id":        run.ID,
		"trigger":   string(run.Trigger),
		"startedAt": run.StartedAt.Format(time.RFC3339),
	}
	if run.LastError != "" {
		st["error"] = run.LastError
	}
	return st
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
