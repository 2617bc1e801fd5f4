// Package fixture serves governance data from a local file. It backs the
// dashboard when the governance API is unreachable and drives demos and
// tests without a live API.
package fixture

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/modelgov/govdash/pkg/governance"
)

// ErrNotFound is returned for policies absent from the fixture.
var ErrNotFound = errors.New("not found in fixture")

// Data is the on-disk fixture layout.
type Data struct {
	Bundles  []governance.Bundle                    `json:"bundles" yaml:"bundles"`
	Policies []governance.Policy                    `json:"policies" yaml:"policies"`
	Evidence map[string][]governance.EvidenceRecord `json:"evidence" yaml:"evidence"`
	// Errors simulates failed evidence fetches, keyed by bundle id.
	Errors map[string]governance.FetchError `json:"errors,omitempty" yaml:"errors,omitempty"`
}

// Parse decodes fixture data. JSON is selected by a ".json" extension,
// YAML otherwise.
func Parse(name string, raw []byte) (*Data, error) {
	var d Data
	var err error
	if strings.EqualFold(filepath.Ext(name), ".json") {
		err = json.Unmarshal(raw, &d)
	} else {
		err = yaml.Unmarshal(raw, &d)
	}
	if err != nil {
		return nil, fmt.Errorf("parse fixture %s: %w", name, err)
	}
	return &d, nil
}

// Load reads and parses a fixture file.
func Load(path string) (*Data, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fixture: %w", err)
	}
	return Parse(path, raw)
}

// Source serves fixture data through the same calls as the API client.
type Source struct {
	mu       sync.RWMutex
	data     *Data
	policies map[string]*governance.Policy
}

// NewSource wraps already parsed data.
func NewSource(d *Data) *Source {
	s := &Source{}
	s.Replace(d)
	return s
}

// Replace swaps the served data atomically.
func (s *Source) Replace(d *Data) {
	if d == nil {
		d = &Data{}
	}
	policies := make(map[string]*governance.Policy, len(d.Policies))
	for i := range d.Policies {
		p := d.Policies[i]
		policies[p.ID] = &p
	}
	s.mu.Lock()
	s.data = d
	s.policies = policies
	s.mu.Unlock()
}

// ListBundles returns a copy of the fixture bundles.
func (s *Source) ListBundles(ctx context.Context) ([]governance.Bundle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]governance.Bundle, len(s.data.Bundles))
	copy(out, s.data.Bundles)
	return out, nil
}

// GetPolicy returns the fixture policy with id policyID.
func (s *Source) GetPolicy(ctx context.Context, policyID string) (*governance.Policy, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.policies[policyID]
	if !ok {
		return nil, fmt.Errorf("policy %s: %w", policyID, ErrNotFound)
	}
	return p, nil
}

// GetLatestEvidence returns the fixture evidence of a bundle. Bundles listed
// under errors fail with their configured status.
func (s *Source) GetLatestEvidence(ctx context.Context, bundleID string) ([]governance.EvidenceRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if fe, ok := s.data.Errors[bundleID]; ok {
		return nil, &fixtureError{status: fe.StatusCode, message: fe.Message}
	}
	recs := s.data.Evidence[bundleID]
	out := make([]governance.EvidenceRecord, len(recs))
	copy(out, recs)
	return out, nil
}

// fixtureError exposes the simulated status to the fetch stage.
type fixtureError struct {
	status  int
	message string
}

func (e *fixtureError) Error() string   { return e.message }
func (e *fixtureError) StatusCode() int { return e.status }
