package governance

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type statusErr struct{ code int }

func (e *statusErr) Error() string   { return fmt.Sprintf("http %d", e.code) }
func (e *statusErr) StatusCode() int { return e.code }

type fakeFetcher struct {
	mu        sync.Mutex
	calls     []string
	inFlight  atomic.Int32
	maxFlight atomic.Int32

	policies map[string]*Policy
	evidence map[string][]EvidenceRecord
	errs     map[string]error
	delay    time.Duration
}

func (f *fakeFetcher) enter(id string) {
	f.mu.Lock()
	f.calls = append(f.calls, id)
	f.mu.Unlock()
	n := f.inFlight.Add(1)
	for {
		cur := f.maxFlight.Load()
		if n <= cur || f.maxFlight.CompareAndSwap(cur, n) {
			break
		}
	}
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
}

func (f *fakeFetcher) GetPolicy(_ context.Context, id string) (*Policy, error) {
	f.enter(id)
	defer f.inFlight.Add(-1)
	if err := f.errs[id]; err != nil {
		return nil, err
	}
	return f.policies[id], nil
}

func (f *fakeFetcher) GetLatestEvidence(_ context.Context, id string) ([]EvidenceRecord, error) {
	f.enter(id)
	defer f.inFlight.Add(-1)
	if err := f.errs[id]; err != nil {
		return nil, err
	}
	return f.evidence[id], nil
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestPolicyIDs(t *testing.T) {
	ids := PolicyIDs([]Bundle{
		{Policies: []PolicyReference{{PolicyID: "a"}, {PolicyID: "b"}}},
		{Policies: []PolicyReference{{PolicyID: "a"}, {PolicyID: ""}}},
		{},
	})
	assert.ElementsMatch(t, []string{"a", "b"}, ids.ToSlice())
}

func TestBundleIDs(t *testing.T) {
	ids := BundleIDs([]Bundle{{ID: "x"}, {ID: "y"}, {ID: "x"}})
	assert.Equal(t, 2, ids.Cardinality())
	assert.True(t, ids.Contains("x", "y"))
}

func TestResolvePolicies_IsolatesFailures(t *testing.T) {
	f := &fakeFetcher{
		policies: map[string]*Policy{"p1": {ID: "p1"}, "p3": {ID: "p3"}},
		errs:     map[string]error{"p2": &statusErr{code: 404}},
	}

	cache := ResolvePolicies(context.Background(), f, mapset.NewSet("p1", "p2", "p3"), 2, quietLogger())

	require.Len(t, cache, 2)
	assert.Equal(t, "p1", cache["p1"].ID)
	assert.Equal(t, "p3", cache["p3"].ID)
	_, ok := cache["p2"]
	assert.False(t, ok)
	assert.ElementsMatch(t, []string{"p1", "p2", "p3"}, f.calls)
}

func TestResolvePolicies_NilPolicyIsAbsent(t *testing.T) {
	f := &fakeFetcher{policies: map[string]*Policy{}}
	cache := ResolvePolicies(context.Background(), f, mapset.NewSet("p1"), 0, nil)
	assert.Empty(t, cache)
}

func TestResolvePolicies_RespectsLimit(t *testing.T) {
	ids := mapset.NewSet[string]()
	for i := range 10 {
		ids.Add(fmt.Sprintf("p%d", i))
	}
	f := &fakeFetcher{policies: map[string]*Policy{}, delay: 5 * time.Millisecond}

	ResolvePolicies(context.Background(), f, ids, 3, quietLogger())

	assert.Len(t, f.calls, 10)
	assert.LessOrEqual(t, f.maxFlight.Load(), int32(3))
}

func TestResolveEvidence(t *testing.T) {
	f := &fakeFetcher{
		evidence: map[string][]EvidenceRecord{
			"b1": {{EvidenceID: "e1"}},
		},
		errs: map[string]error{
			"b2": fmt.Errorf("get evidence: %w", &statusErr{code: 503}),
			"b3": errors.New("connection refused"),
		},
	}

	got := ResolveEvidence(context.Background(), f, mapset.NewSet("b1", "b2", "b3", "b4"), 4, quietLogger())

	require.Len(t, got, 4)
	assert.Nil(t, got["b1"].Err)
	assert.Equal(t, []EvidenceRecord{{EvidenceID: "e1"}}, got["b1"].Records)

	require.NotNil(t, got["b2"].Err)
	assert.Equal(t, 503, got["b2"].Err.StatusCode)
	assert.Equal(t, "get evidence: http 503", got["b2"].Err.Message)

	require.NotNil(t, got["b3"].Err)
	assert.Equal(t, 0, got["b3"].Err.StatusCode)
	assert.Equal(t, "connection refused", got["b3"].Err.Error())

	assert.Nil(t, got["b4"].Err)
	assert.NotNil(t, got["b4"].Records)
	assert.Empty(t, got["b4"].Records)
}

func TestResolveEvidence_EmptySet(t *testing.T) {
	got := ResolveEvidence(context.Background(), &fakeFetcher{}, mapset.NewSet[string](), 2, nil)
	assert.Empty(t, got)
}
