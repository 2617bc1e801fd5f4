// Package dashboard runs governance load cycles and holds the snapshot the
// renderers read.
package dashboard

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/modelgov/govdash/pkg/governance"
)

// Snapshot sources.
const (
	SourceAPI     = "api"
	SourceFixture = "fixture"
)

// ErrNoSnapshot is returned before the first successful load.
var ErrNoSnapshot = errors.New("no snapshot loaded yet")

// ErrModelNotFound is returned for keys absent from the current snapshot.
var ErrModelNotFound = errors.New("model not found")

// Source supplies governance data for one load cycle.
type Source interface {
	ListBundles(ctx context.Context) ([]governance.Bundle, error)
	governance.PolicyFetcher
	governance.EvidenceFetcher
}

// Stats summarises one load cycle.
type Stats struct {
	BundlesTotal     int           `json:"bundlesTotal"`
	BundlesMatched   int           `json:"bundlesMatched"`
	PoliciesResolved int           `json:"policiesResolved"`
	PoliciesFailed   int           `json:"policiesFailed"`
	EvidenceFailed   int           `json:"evidenceFailed"`
	Models           int           `json:"models"`
	Duration         time.Duration `json:"duration"`
}

// Snapshot is the immutable result of one load cycle.
type Snapshot struct {
	Index    *governance.ModelIndex `json:"-"`
	Rows     []governance.TableRow  `json:"rows"`
	Stats    Stats                  `json:"stats"`
	LoadedAt time.Time              `json:"loadedAt"`
	Source   string                 `json:"source"`
}

// Model returns the aggregated model with key.
func (s *Snapshot) Model(key string) (*governance.AggregatedModel, error) {
	if s == nil || s.Index == nil {
		return nil, ErrNoSnapshot
	}
	m, ok := s.Index.Get(key)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrModelNotFound, key)
	}
	return m, nil
}

// Row returns the projected row with key.
func (s *Snapshot) Row(key string) (governance.TableRow, bool) {
	if s == nil {
		return governance.TableRow{}, false
	}
	for _, r := range s.Rows {
		if r.Key == key {
			return r, true
		}
	}
	return governance.TableRow{}, false
}

// Loader runs the fetch, filter, aggregate and project pipeline.
type Loader struct {
	primary  Source
	fallback Source
	cfg      *governance.Config
	logger   *slog.Logger
}

// NewLoader creates a Loader reading from primary. When fallback is non-nil
// it is used for the whole cycle if the primary bundle list cannot be
// fetched.
func NewLoader(primary, fallback Source, cfg *governance.Config, logger *slog.Logger) *Loader {
	if cfg == nil {
		cfg = governance.DefaultConfig()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{primary: primary, fallback: fallback, cfg: cfg, logger: logger}
}

// Load runs one complete cycle. Only a failure to list bundles (from both
// sources when a fallback is set) is returned as an error; policy and
// evidence failures degrade the snapshot instead.
func (l *Loader) Load(ctx context.Context) (*Snapshot, error) {
	start := time.Now()

	src, name := l.primary, SourceAPI
	bundles, err := src.ListBundles(ctx)
	if err != nil {
		if l.fallback == nil || ctx.Err() != nil {
			return nil, fmt.Errorf("list bundles: %w", err)
		}
		l.logger.Warn("bundle list failed, using fixture data", "error", err)
		src, name = l.fallback, SourceFixture
		bundles, err = src.ListBundles(ctx)
		if err != nil {
			return nil, fmt.Errorf("list fixture bundles: %w", err)
		}
	}

	snap, err := l.build(ctx, src, bundles)
	if err != nil {
		return nil, err
	}
	snap.Source = name
	snap.Stats.Duration = time.Since(start)
	l.logger.Info("governance snapshot loaded",
		"source", name,
		"bundles", snap.Stats.BundlesTotal,
		"matched", snap.Stats.BundlesMatched,
		"models", snap.Stats.Models,
		"evidenceFailed", snap.Stats.EvidenceFailed,
		"duration", snap.Stats.Duration.String())
	return snap, nil
}

func (l *Loader) build(ctx context.Context, src Source, bundles []governance.Bundle) (*Snapshot, error) {
	filtered := governance.FilterBundles(bundles, l.cfg.PolicyMatch)
	policyIDs := governance.PolicyIDs(filtered)
	bundleIDs := governance.BundleIDs(filtered)

	var (
		cache    governance.PolicyCache
		evidence map[string]governance.EvidenceResult
		g        errgroup.Group
	)
	g.Go(func() error {
		cache = governance.ResolvePolicies(ctx, src, policyIDs, l.cfg.Concurrency, l.logger)
		return nil
	})
	g.Go(func() error {
		evidence = governance.ResolveEvidence(ctx, src, bundleIDs, l.cfg.Concurrency, l.logger)
		return nil
	})
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("load cancelled: %w", err)
	}

	idx := governance.Aggregate(filtered, evidence, cache, l.cfg)
	rows := governance.Project(idx)

	stats := Stats{
		BundlesTotal:     len(bundles),
		BundlesMatched:   len(filtered),
		PoliciesResolved: len(cache),
		PoliciesFailed:   policyIDs.Cardinality() - len(cache),
		Models:           idx.Len(),
	}
	for _, res := range evidence {
		if res.Err != nil {
			stats.EvidenceFailed++
		}
	}

	return &Snapshot{
		Index:    idx,
		Rows:     rows,
		Stats:    stats,
		LoadedAt: time.Now().UTC(),
	}, nil
}
