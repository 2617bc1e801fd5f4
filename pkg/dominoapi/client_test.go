package dominoapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/modelgov/govdash/pkg/governance"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(Config{BaseURL: srv.URL + "/", APIKey: "secret"}, nil)
}

func TestListBundles(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantLen int
	}{
		{name: "array data", body: `{"data":[{"id":"b1","name":"B","state":"Active"},{"id":"b2"}]}`, wantLen: 2},
		{name: "missing data", body: `{}`, wantLen: 0},
		{name: "null data", body: `{"data":null}`, wantLen: 0},
		{name: "object data", body: `{"data":{"id":"b1"}}`, wantLen: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/api/governance/v1/bundles", r.URL.Path)
				assert.Equal(t, "secret", r.Header.Get(DefaultAuthHeader))
				_, _ = w.Write([]byte(tt.body))
			})

			bundles, err := c.ListBundles(context.Background())
			require.NoError(t, err)
			assert.NotNil(t, bundles)
			assert.Len(t, bundles, tt.wantLen)
		})
	}
}

func TestListBundles_MalformedBundleSkipped(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data":[
			{"id":"b1","state":"Active","policies":[{"policyId":"p1","policyName":"[Fitch] Model Risk"}],
			 "attachments":[{"type":"ModelVersion","identifier":{"name":"fraud","version":1}}]},
			{"id":"b2","state":"Active","policies":{}},
			{"id":"b3","state":"Active","tags":{"n":1},"attachments":"none"},
			{"id":7}
		]}`))
	})

	bundles, err := c.ListBundles(context.Background())
	require.NoError(t, err)
	require.Len(t, bundles, 3)

	assert.Equal(t, "b1", bundles[0].ID)
	assert.Len(t, bundles[0].Policies, 1)
	assert.Len(t, bundles[0].Attachments, 1)

	assert.Equal(t, "b2", bundles[1].ID)
	assert.Nil(t, bundles[1].Policies)

	assert.Equal(t, "b3", bundles[2].ID)
	assert.Nil(t, bundles[2].Attachments)
	assert.Equal(t, float64(1), bundles[2].Tags["n"])

	filtered := governance.FilterBundles(bundles, "[fitch")
	require.Len(t, filtered, 1)
	assert.Equal(t, "b1", filtered[0].ID)
}

func TestListBundles_HTTPError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"message":"bad key"}`))
	})

	_, err := c.ListBundles(context.Background())
	var httpErr *HTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, http.StatusUnauthorized, httpErr.StatusCode())
	assert.Equal(t, "bad key", httpErr.Body)
	assert.Contains(t, err.Error(), "returned 401")
}

func TestGetPolicy(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/governance/v1/policies/p1":
			_, _ = w.Write([]byte(`{"id":"p1","name":"[fitch] Risk","stages":[{"name":"s","evidenceSet":[{"id":"d1","externalId":"system-id"}]}]}`))
		case "/api/governance/v1/policies/p2":
			_, _ = w.Write([]byte(`{"stages":[]}`))
		default:
			http.NotFound(w, r)
		}
	})

	p, err := c.GetPolicy(context.Background(), "p1")
	require.NoError(t, err)
	require.Len(t, p.Stages, 1)
	assert.Equal(t, "system-id", p.Stages[0].EvidenceSet[0].ExternalID)

	p, err = c.GetPolicy(context.Background(), "p2")
	require.NoError(t, err)
	assert.Equal(t, "p2", p.ID)

	_, err = c.GetPolicy(context.Background(), "missing")
	var httpErr *HTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, http.StatusNotFound, httpErr.Status)
}

func TestGetLatestEvidence(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/governance/v1/drafts/latest", r.URL.Path)
		switch r.URL.Query().Get("bundleId") {
		case "array":
			_, _ = w.Write([]byte(`[{"evidenceId":"e1","artifactContent":"42","userId":"alice"}]`))
		case "envelope":
			_, _ = w.Write([]byte(`{"data":[{"evidenceId":"e2","artifactContent":["a","b"]}]}`))
		case "empty":
			_, _ = w.Write([]byte(`null`))
		default:
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = w.Write([]byte(`{"error":"boom"}`))
		}
	})
	ctx := context.Background()

	recs, err := c.GetLatestEvidence(ctx, "array")
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, governance.ArtifactContent{"42"}, recs[0].ArtifactContent)
	assert.Equal(t, "alice", recs[0].UserID)

	recs, err = c.GetLatestEvidence(ctx, "envelope")
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "a, b", recs[0].ArtifactContent.String())

	recs, err = c.GetLatestEvidence(ctx, "empty")
	require.NoError(t, err)
	assert.Empty(t, recs)

	_, err = c.GetLatestEvidence(ctx, "broken")
	require.Error(t, err)
	marker := governance.NewFetchError(err)
	assert.Equal(t, http.StatusInternalServerError, marker.StatusCode)
	assert.Contains(t, marker.Message, "boom")
}

func TestCurrentUser(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{name: "bare", body: `{"id":"u1","userName":"jdoe","fullName":"Jane Doe"}`},
		{name: "wrapped", body: `{"user":{"id":"u1","userName":"jdoe","fullName":"Jane Doe"}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/api/users/v1/self", r.URL.Path)
				_, _ = w.Write([]byte(tt.body))
			})
			u, err := c.CurrentUser(context.Background())
			require.NoError(t, err)
			assert.Equal(t, "jdoe", u.UserName)
			assert.Equal(t, "Jane Doe", u.FullName)
		})
	}
}

func TestTriggerScan(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/scan", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var req ScanRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "fraud", req.ModelName)
		assert.Equal(t, "3", req.Version)
		assert.True(t, req.IncludeIssues)

		_, _ = w.Write([]byte(`{"scan":{"total":3,"high":1,"medium":1,"low":1},"issues":[{"checkId":"py.eval","path":"app.py","line":7,"severity":"high"}]}`))
	})

	resp, err := c.TriggerScan(context.Background(), DefaultScanRequest("fraud", "3"))
	require.NoError(t, err)
	assert.Equal(t, ScanSummary{Total: 3, High: 1, Medium: 1, Low: 1}, resp.Scan)
	require.Len(t, resp.Issues, 1)
	assert.Equal(t, 7, resp.Issues[0].Line)
}

func TestTriggerScan_RequiresModel(t *testing.T) {
	c := NewClient(Config{BaseURL: "http://unused"}, nil)
	_, err := c.TriggerScan(context.Background(), ScanRequest{})
	assert.Error(t, err)
}

func TestTriggerScan_CustomURL(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v2/scanner", r.URL.Path)
		_, _ = w.Write([]byte(`{"scan":{"total":0}}`))
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURL: "http://unused", ScanURL: srv.URL + "/v2/scanner"}, nil)
	resp, err := c.TriggerScan(context.Background(), DefaultScanRequest("m", "1"))
	require.NoError(t, err)
	assert.NotNil(t, resp.Issues)
}

func TestClient_NoAPIKey(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.Header.Get(DefaultAuthHeader))
		assert.Equal(t, "application/json", r.Header.Get("Accept"))
		_, _ = w.Write([]byte(`{"data":[]}`))
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL}, nil)
	_, err := c.ListBundles(context.Background())
	require.NoError(t, err)
}

func TestClient_ContextCancelled(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(50 * time.Millisecond)
	})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.ListBundles(ctx)
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
}
