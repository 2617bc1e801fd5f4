package dashboard

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/modelgov/govdash/pkg/fixture"
	"github.com/modelgov/govdash/pkg/governance"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func fixtureSource(t *testing.T) *fixture.Source {
	t.Helper()
	d, err := fixture.Load("../fixture/testdata/governance.yaml")
	require.NoError(t, err)
	return fixture.NewSource(d)
}

// downSource fails every call.
type downSource struct{ err error }

func (s downSource) ListBundles(context.Context) ([]governance.Bundle, error) { return nil, s.err }
func (s downSource) GetPolicy(context.Context, string) (*governance.Policy, error) {
	return nil, s.err
}
func (s downSource) GetLatestEvidence(context.Context, string) ([]governance.EvidenceRecord, error) {
	return nil, s.err
}

func TestLoader_Load(t *testing.T) {
	l := NewLoader(fixtureSource(t), nil, nil, quietLogger())

	snap, err := l.Load(context.Background())
	require.NoError(t, err)

	assert.Equal(t, SourceAPI, snap.Source)
	assert.False(t, snap.LoadedAt.IsZero())
	assert.Equal(t, Stats{
		BundlesTotal:     4,
		BundlesMatched:   2,
		PoliciesResolved: 1,
		PoliciesFailed:   1,
		EvidenceFailed:   1,
		Models:           2,
		Duration:         snap.Stats.Duration,
	}, snap.Stats)

	require.Len(t, snap.Rows, 2)
	fraud := snap.Rows[0]
	assert.Equal(t, "fraud-detector_v3", fraud.Key)
	assert.Equal(t, "v42.3", fraud.ApplicationVersion)
	assert.Equal(t, "Batch", fraud.ApplicationType)
	assert.Equal(t, "Gold, 24x7", fraud.ServiceLevel)
	assert.Equal(t, "alice", fraud.Owner)
	assert.Equal(t, "Fraud Detection Governance", fraud.BundleName)
	assert.False(t, fraud.Degraded)

	credit := snap.Rows[1]
	assert.Equal(t, "credit-score_v1", credit.Key)
	assert.True(t, credit.Degraded)
	assert.Equal(t, "status 503: evidence service unavailable", credit.EvidenceError)
	assert.Equal(t, "Unknown", credit.Owner)
	assert.Equal(t, "-", credit.EvidenceStatus)

	m, err := snap.Model("credit-score_v1")
	require.NoError(t, err)
	require.Len(t, m.Policies, 2)
	assert.NotNil(t, m.Policies[0].Policy)
	assert.Nil(t, m.Policies[1].Policy)

	_, err = snap.Model("nope")
	assert.ErrorIs(t, err, ErrModelNotFound)
}

func TestLoader_Deterministic(t *testing.T) {
	l := NewLoader(fixtureSource(t), nil, nil, quietLogger())

	first, err := l.Load(context.Background())
	require.NoError(t, err)
	second, err := l.Load(context.Background())
	require.NoError(t, err)

	assert.Equal(t, first.Rows, second.Rows)
	assert.Equal(t, first.Index.Models(), second.Index.Models())
}

func TestLoader_PrimaryFailureWithoutFallback(t *testing.T) {
	l := NewLoader(downSource{err: errors.New("dial tcp: refused")}, nil, nil, quietLogger())

	_, err := l.Load(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "list bundles")
}

func TestLoader_FallsBackToFixture(t *testing.T) {
	l := NewLoader(downSource{err: errors.New("dial tcp: refused")}, fixtureSource(t), nil, quietLogger())

	snap, err := l.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, SourceFixture, snap.Source)
	assert.Len(t, snap.Rows, 2)
}

func TestLoader_BothSourcesFail(t *testing.T) {
	l := NewLoader(downSource{err: errors.New("a")}, downSource{err: errors.New("b")}, nil, quietLogger())

	_, err := l.Load(context.Background())
	assert.ErrorContains(t, err, "list fixture bundles")
}

func TestLoader_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	l := NewLoader(fixtureSource(t), fixtureSource(t), nil, quietLogger())
	_, err := l.Load(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestLoader_CustomPolicyMatch(t *testing.T) {
	cfg := governance.DefaultConfig()
	cfg.PolicyMatch = "other policy"
	l := NewLoader(fixtureSource(t), nil, cfg, quietLogger())

	snap, err := l.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, snap.Stats.BundlesMatched)
	assert.Empty(t, snap.Rows)
}

func TestSnapshot_ModelWithoutSnapshot(t *testing.T) {
	var s *Snapshot
	_, err := s.Model("x")
	assert.ErrorIs(t, err, ErrNoSnapshot)
}
