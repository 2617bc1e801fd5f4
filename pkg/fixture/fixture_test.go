package fixture

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/modelgov/govdash/pkg/governance"
)

func TestLoad(t *testing.T) {
	d, err := Load("testdata/governance.yaml")
	require.NoError(t, err)

	require.Len(t, d.Bundles, 4)
	assert.Equal(t, governance.ModelVersion("3"), d.Bundles[0].Attachments[0].Identifier.Version)
	require.Len(t, d.Policies, 1)
	assert.Equal(t, governance.ArtifactContent{"Gold", "24x7"}, d.Evidence["b-fraud"][2].ArtifactContent)
	assert.Equal(t, 503, d.Errors["b-credit"].StatusCode)
}

func TestParse_JSON(t *testing.T) {
	d, err := Parse("data.json", []byte(`{"bundles":[{"id":"b1","state":"Active"}],"evidence":{"b1":[{"evidenceId":"e","artifactContent":7}]}}`))
	require.NoError(t, err)
	require.Len(t, d.Bundles, 1)
	assert.Equal(t, governance.ArtifactContent{"7"}, d.Evidence["b1"][0].ArtifactContent)

	_, err = Parse("data.json", []byte(`{`))
	assert.ErrorContains(t, err, "parse fixture")
}

func TestLoad_Missing(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestSource(t *testing.T) {
	d, err := Load("testdata/governance.yaml")
	require.NoError(t, err)
	s := NewSource(d)
	ctx := context.Background()

	bundles, err := s.ListBundles(ctx)
	require.NoError(t, err)
	assert.Len(t, bundles, 4)

	p, err := s.GetPolicy(ctx, "p-risk")
	require.NoError(t, err)
	assert.Len(t, p.Stages, 2)

	_, err = s.GetPolicy(ctx, "p-missing")
	assert.True(t, errors.Is(err, ErrNotFound))

	recs, err := s.GetLatestEvidence(ctx, "b-fraud")
	require.NoError(t, err)
	assert.Len(t, recs, 3)

	recs, err = s.GetLatestEvidence(ctx, "b-other")
	require.NoError(t, err)
	assert.Empty(t, recs)

	_, err = s.GetLatestEvidence(ctx, "b-credit")
	require.Error(t, err)
	marker := governance.NewFetchError(err)
	assert.Equal(t, 503, marker.StatusCode)
	assert.Equal(t, "evidence service unavailable", marker.Message)
}

func TestSource_CancelledContext(t *testing.T) {
	s := NewSource(nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.ListBundles(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestWatch_Reloads(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "fixture.yaml")
	require.NoError(t, os.WriteFile(path, []byte("bundles:\n  - id: one\n"), 0o600))

	d, err := Load(path)
	require.NoError(t, err)
	s := NewSource(d)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	reloaded := make(chan struct{}, 4)
	require.NoError(t, Watch(ctx, path, s, nil, func() { reloaded <- struct{}{} }))

	require.NoError(t, os.WriteFile(path, []byte("bundles:\n  - id: one\n  - id: two\n"), 0o600))

	select {
	case <-reloaded:
	case <-time.After(5 * time.Second):
		t.Fatal("fixture was not reloaded")
	}
	require.Eventually(t, func() bool {
		bundles, _ := s.ListBundles(context.Background())
		return len(bundles) == 2
	}, 5*time.Second, 20*time.Millisecond)
}
