package governance

import (
	"context"
	"errors"
	"log/slog"
	"sort"

	mapset "github.com/deckarep/golang-set/v2"
	"golang.org/x/sync/errgroup"
)

// PolicyFetcher retrieves one fully resolved policy.
type PolicyFetcher interface {
	GetPolicy(ctx context.Context, policyID string) (*Policy, error)
}

// EvidenceFetcher retrieves the latest evidence set of one bundle.
type EvidenceFetcher interface {
	GetLatestEvidence(ctx context.Context, bundleID string) ([]EvidenceRecord, error)
}

// PolicyIDs returns the distinct policy ids referenced by bundles.
func PolicyIDs(bundles []Bundle) mapset.Set[string] {
	ids := mapset.NewThreadUnsafeSet[string]()
	for _, b := range bundles {
		for _, ref := range b.Policies {
			if ref.PolicyID != "" {
				ids.Add(ref.PolicyID)
			}
		}
	}
	return ids
}

// BundleIDs returns the distinct ids of bundles.
func BundleIDs(bundles []Bundle) mapset.Set[string] {
	ids := mapset.NewThreadUnsafeSet[string]()
	for _, b := range bundles {
		ids.Add(b.ID)
	}
	return ids
}

// ResolvePolicies fetches every policy id concurrently, at most limit at a
// time, and returns once all fetches have settled. A failed fetch is logged
// and leaves its id absent from the cache; it never cancels its siblings.
func ResolvePolicies(ctx context.Context, f PolicyFetcher, ids mapset.Set[string], limit int, logger *slog.Logger) PolicyCache {
	if logger == nil {
		logger = slog.Default()
	}
	list := sortedIDs(ids)
	results := make([]*Policy, len(list))

	var g errgroup.Group
	if limit > 0 {
		g.SetLimit(limit)
	}
	for i, id := range list {
		g.Go(func() error {
			p, err := f.GetPolicy(ctx, id)
			if err != nil {
				logger.Warn("policy fetch failed", "policyId", id, "error", err)
				return nil
			}
			results[i] = p
			return nil
		})
	}
	_ = g.Wait()

	cache := make(PolicyCache, len(list))
	for i, id := range list {
		if results[i] != nil {
			cache[id] = results[i]
		}
	}
	return cache
}

// ResolveEvidence fetches the latest evidence of every bundle id
// concurrently, at most limit at a time, and returns once all fetches have
// settled. A failed fetch is stored as an EvidenceResult carrying a
// FetchError rather than returned.
func ResolveEvidence(ctx context.Context, f EvidenceFetcher, ids mapset.Set[string], limit int, logger *slog.Logger) map[string]EvidenceResult {
	if logger == nil {
		logger = slog.Default()
	}
	list := sortedIDs(ids)
	results := make([]EvidenceResult, len(list))

	var g errgroup.Group
	if limit > 0 {
		g.SetLimit(limit)
	}
	for i, id := range list {
		g.Go(func() error {
			records, err := f.GetLatestEvidence(ctx, id)
			if err != nil {
				logger.Warn("evidence fetch failed", "bundleId", id, "error", err)
				results[i] = EvidenceResult{Err: NewFetchError(err)}
				return nil
			}
			if records == nil {
				records = []EvidenceRecord{}
			}
			results[i] = EvidenceResult{Records: records}
			return nil
		})
	}
	_ = g.Wait()

	out := make(map[string]EvidenceResult, len(list))
	for i, id := range list {
		out[id] = results[i]
	}
	return out
}

// NewFetchError converts a fetch error into its structured marker. Errors
// exposing StatusCode() int contribute their HTTP status.
func NewFetchError(err error) *FetchError {
	fe := &FetchError{Message: err.Error()}
	var status interface{ StatusCode() int }
	if errors.As(err, &status) {
		fe.StatusCode = status.StatusCode()
	}
	return fe
}

func sortedIDs(ids mapset.Set[string]) []string {
	if ids == nil {
		return nil
	}
	list := ids.ToSlice()
	sort.Strings(list)
	return list
}
