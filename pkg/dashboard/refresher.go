package dashboard

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/modelgov/govdash/pkg/runs"
)

const manualRefreshKey = "manual"

// RunRecorder records load cycles. *runs.Store satisfies it.
type RunRecorder interface {
	Start(trigger runs.Trigger) (*runs.Run, error)
	Complete(runID string, st runs.Stats) error
	Fail(runID string, errMsg string, duration time.Duration) error
}

// RefresherConfig controls periodic and manual refreshes.
type RefresherConfig struct {
	// Interval between scheduled refreshes. Zero disables the schedule.
	Interval time.Duration
	// ManualInterval is the minimum gap between manual refreshes.
	ManualInterval time.Duration
	// Timeout bounds a single load cycle.
	Timeout time.Duration
}

// DefaultRefresherConfig returns refresh defaults.
func DefaultRefresherConfig() RefresherConfig {
	return RefresherConfig{
		Interval:       5 * time.Minute,
		ManualInterval: 30 * time.Second,
		Timeout:        2 * time.Minute,
	}
}

// Refresher owns the current snapshot and replaces it on every successful
// load. A failed load keeps the previous snapshot.
type Refresher struct {
	loader  *Loader
	cfg     RefresherConfig
	limiter *RefreshRateLimiter
	runs    RunRecorder
	logger  *slog.Logger

	loadMu sync.Mutex

	mu        sync.RWMutex
	current   *Snapshot
	lastErr   error
	listeners []func(*Snapshot)
}

// NewRefresher creates a Refresher. recorder may be nil.
func NewRefresher(loader *Loader, cfg RefresherConfig, recorder RunRecorder, logger *slog.Logger) *Refresher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Refresher{
		loader:  loader,
		cfg:     cfg,
		limiter: NewRefreshRateLimiter(cfg.ManualInterval),
		runs:    recorder,
		logger:  logger,
	}
}

// OnRefresh registers fn to run after each successful load. Listeners run
// synchronously on the refreshing goroutine.
func (r *Refresher) OnRefresh(fn func(*Snapshot)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.listeners = append(r.listeners, fn)
}

// Current returns the latest snapshot, or nil before the first load.
func (r *Refresher) Current() *Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.current
}

// LastError returns the error of the most recent load, nil if it succeeded.
func (r *Refresher) LastError() error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.lastErr
}

// Ready reports whether a snapshot is available.
func (r *Refresher) Ready() bool {
	return r.Current() != nil
}

// Refresh runs one load cycle now. Concurrent calls are serialised.
func (r *Refresher) Refresh(ctx context.Context, trigger runs.Trigger) (*Snapshot, error) {
	r.loadMu.Lock()
	defer r.loadMu.Unlock()

	if r.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.cfg.Timeout)
		defer cancel()
	}

	runID := r.startRun(trigger)
	start := time.Now()

	snap, err := r.loader.Load(ctx)

	r.mu.Lock()
	r.lastErr = err
	if err == nil {
		r.current = snap
	}
	listeners := append([]func(*Snapshot){}, r.listeners...)
	r.mu.Unlock()

	if err != nil {
		r.logger.Error("governance refresh failed", "trigger", trigger, "error", err)
		r.failRun(runID, err, time.Since(start))
		return nil, err
	}

	r.completeRun(runID, snap)
	for _, fn := range listeners {
		fn(snap)
	}
	return snap, nil
}

// RefreshNow runs a manual refresh unless one ran within the manual
// interval, in which case a *RateLimitError is returned.
func (r *Refresher) RefreshNow(ctx context.Context) (*Snapshot, error) {
	if ok, wait := r.limiter.Allow(manualRefreshKey); !ok {
		return nil, &RateLimitError{RetryAfter: wait}
	}
	return r.Refresh(ctx, runs.TriggerManual)
}

// Run loads once at startup, then refreshes every cfg.Interval until ctx is
// cancelled.
func (r *Refresher) Run(ctx context.Context) {
	_, _ = r.Refresh(ctx, runs.TriggerStartup)

	if r.cfg.Interval <= 0 {
		r.logger.Info("scheduled refresh disabled")
		<-ctx.Done()
		return
	}

	ticker := time.NewTicker(r.cfg.Interval)
	defer ticker.Stop()

	r.logger.Info("refresh loop started", "interval", r.cfg.Interval.String())

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("refresh loop stopped")
			return
		case <-ticker.C:
			_, _ = r.Refresh(ctx, runs.TriggerScheduled)
		}
	}
}

func (r *Refresher) startRun(trigger runs.Trigger) string {
	if r.runs == nil {
		return ""
	}
	run, err := r.runs.Start(trigger)
	if err != nil {
		r.logger.Error("failed to record run start", "error", err)
		return ""
	}
	return run.ID
}

func (r *Refresher) completeRun(runID string, snap *Snapshot) {
	if r.runs == nil || runID == "" {
		return
	}
	err := r.runs.Complete(runID, runs.Stats{
		Source:           snap.Source,
		BundlesTotal:     snap.Stats.BundlesTotal,
		BundlesMatched:   snap.Stats.BundlesMatched,
		PoliciesResolved: snap.Stats.PoliciesResolved,
		PoliciesFailed:   snap.Stats.PoliciesFailed,
		EvidenceFailed:   snap.Stats.EvidenceFailed,
		Models:           snap.Stats.Models,
		Duration:         snap.Stats.Duration,
	})
	if err != nil {
		r.logger.Error("failed to record run completion", "runID", runID, "error", err)
	}
}

func (r *Refresher) failRun(runID string, loadErr error, d time.Duration) {
	if r.runs == nil || runID == "" {
		return
	}
	if err := r.runs.Fail(runID, loadErr.Error(), d); err != nil {
		r.logger.Error("failed to record run failure", "runID", runID, "error", err)
	}
}
