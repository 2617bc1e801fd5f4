// Package dominoapi is the HTTP transport for the governance and security
// scan APIs the dashboard aggregates.
package dominoapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/modelgov/govdash/pkg/governance"
)

// DefaultAuthHeader carries the opaque API credential.
const DefaultAuthHeader = "X-Domino-Api-Key"

// API paths relative to the base URL.
const (
	bundlesPath        = "/api/governance/v1/bundles"
	policyPath         = "/api/governance/v1/policies/"
	latestEvidencePath = "/api/governance/v1/drafts/latest"
	currentUserPath    = "/api/users/v1/self"
	defaultScanPath    = "/scan"
)

// Config holds transport settings.
type Config struct {
	// BaseURL is the governance API origin, e.g. https://domino.example.com.
	BaseURL string
	// APIKey is sent verbatim in AuthHeader. Empty disables the header.
	APIKey     string
	AuthHeader string
	Timeout    time.Duration
	// ScanURL overrides the security scan endpoint. Defaults to BaseURL + "/scan".
	ScanURL string
}

// DefaultConfig returns transport defaults.
func DefaultConfig() Config {
	return Config{
		AuthHeader: DefaultAuthHeader,
		Timeout:    30 * time.Second,
	}
}

// HTTPError is returned for non-2xx responses.
type HTTPError struct {
	Method string
	Path   string
	Status int
	Body   string
}

func (e *HTTPError) Error() string {
	msg := strings.TrimSpace(e.Body)
	if msg == "" {
		msg = http.StatusText(e.Status)
	}
	return fmt.Sprintf("%s %s returned %d: %s", e.Method, e.Path, e.Status, msg)
}

// StatusCode returns the HTTP status of the failed response.
func (e *HTTPError) StatusCode() int {
	return e.Status
}

// Client talks to the governance API. It is safe for concurrent use.
type Client struct {
	baseURL    string
	scanURL    string
	apiKey     string
	authHeader string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a client from cfg.
func NewClient(cfg Config, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	def := DefaultConfig()
	if cfg.AuthHeader == "" {
		cfg.AuthHeader = def.AuthHeader
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	base := strings.TrimRight(cfg.BaseURL, "/")
	scan := cfg.ScanURL
	if scan == "" {
		scan = base + defaultScanPath
	}
	return &Client{
		baseURL:    base,
		scanURL:    scan,
		apiKey:     cfg.APIKey,
		authHeader: cfg.AuthHeader,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		logger:     logger,
	}
}

// doRequest performs a request against rawURL and returns the response body.
// Non-2xx statuses are returned as *HTTPError.
func (c *Client) doRequest(ctx context.Context, method, rawURL string, body any) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encoding request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, rawURL, reader)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set(c.authHeader, c.apiKey)
	}

	c.logger.Debug("sending request", "method", method, "url", rawURL)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &HTTPError{
			Method: method,
			Path:   req.URL.Path,
			Status: resp.StatusCode,
			Body:   errorMessage(respBody),
		}
	}
	return respBody, nil
}

// errorMessage extracts a message from a JSON error body, falling back to
// the raw text.
func errorMessage(body []byte) string {
	var errResp struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if json.Unmarshal(body, &errResp) == nil {
		if errResp.Message != "" {
			return errResp.Message
		}
		if errResp.Error != "" {
			return errResp.Error
		}
	}
	return string(body)
}

// ListBundles returns every bundle visible to the credential. A response
// whose data field is absent or not an array yields an empty list. Bundles
// that cannot be decoded at all are logged and skipped.
func (c *Client) ListBundles(ctx context.Context) ([]governance.Bundle, error) {
	body, err := c.doRequest(ctx, http.MethodGet, c.baseURL+bundlesPath, nil)
	if err != nil {
		return nil, err
	}

	var envelope struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("decoding bundles: %w", err)
	}
	data := bytes.TrimSpace(envelope.Data)
	if len(data) == 0 || data[0] != '[' {
		return []governance.Bundle{}, nil
	}

	var items []json.RawMessage
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("decoding bundles: %w", err)
	}
	bundles := make([]governance.Bundle, 0, len(items))
	for i, item := range items {
		var b governance.Bundle
		if err := json.Unmarshal(item, &b); err != nil {
			c.logger.Warn("skipping malformed bundle", "index", i, "error", err)
			continue
		}
		bundles = append(bundles, b)
	}
	return bundles, nil
}

// GetPolicy returns one fully resolved policy.
func (c *Client) GetPolicy(ctx context.Context, policyID string) (*governance.Policy, error) {
	body, err := c.doRequest(ctx, http.MethodGet, c.baseURL+policyPath+url.PathEscape(policyID), nil)
	if err != nil {
		return nil, err
	}
	var p governance.Policy
	if err := json.Unmarshal(body, &p); err != nil {
		return nil, fmt.Errorf("decoding policy %s: %w", policyID, err)
	}
	if p.ID == "" {
		p.ID = policyID
	}
	return &p, nil
}

// GetLatestEvidence returns the latest evidence set recorded for a bundle.
// Both a bare array and a {"data": [...]} envelope are accepted.
func (c *Client) GetLatestEvidence(ctx context.Context, bundleID string) ([]governance.EvidenceRecord, error) {
	q := url.Values{"bundleId": {bundleID}}
	body, err := c.doRequest(ctx, http.MethodGet, c.baseURL+latestEvidencePath+"?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}

	body = bytes.TrimSpace(body)
	if len(body) > 0 && body[0] == '{' {
		var envelope struct {
			Data json.RawMessage `json:"data"`
		}
		if err := json.Unmarshal(body, &envelope); err != nil {
			return nil, fmt.Errorf("decoding evidence for bundle %s: %w", bundleID, err)
		}
		body = bytes.TrimSpace(envelope.Data)
	}
	if len(body) == 0 || bytes.Equal(body, []byte("null")) {
		return []governance.EvidenceRecord{}, nil
	}

	var records []governance.EvidenceRecord
	if err := json.Unmarshal(body, &records); err != nil {
		return nil, fmt.Errorf("decoding evidence for bundle %s: %w", bundleID, err)
	}
	return records, nil
}

// User is the authenticated principal.
type User struct {
	ID        string `json:"id"`
	UserName  string `json:"userName"`
	FirstName string `json:"firstName,omitempty"`
	LastName  string `json:"lastName,omitempty"`
	FullName  string `json:"fullName,omitempty"`
	Email     string `json:"email,omitempty"`
}

// CurrentUser returns the user owning the credential. Responses wrapping the
// user in a "user" field are unwrapped.
func (c *Client) CurrentUser(ctx context.Context) (*User, error) {
	body, err := c.doRequest(ctx, http.MethodGet, c.baseURL+currentUserPath, nil)
	if err != nil {
		return nil, err
	}
	var wrapped struct {
		User *User `json:"user"`
	}
	if err := json.Unmarshal(body, &wrapped); err == nil && wrapped.User != nil {
		return wrapped.User, nil
	}
	var u User
	if err := json.Unmarshal(body, &u); err != nil {
		return nil, fmt.Errorf("decoding user: %w", err)
	}
	return &u, nil
}
