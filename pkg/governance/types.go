package governance

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// BundleState is the lifecycle state of a governance bundle.
type BundleState string

const (
	BundleStateActive   BundleState = "Active"
	BundleStateArchived BundleState = "Archived"
)

// Bundle is a governance unit grouping policies, evidence and model
// attachments. Only the fields the dashboard reads are decoded.
type Bundle struct {
	ID          string            `json:"id" yaml:"id"`
	Name        string            `json:"name" yaml:"name"`
	State       BundleState       `json:"state" yaml:"state"`
	Policies    []PolicyReference `json:"policies,omitempty" yaml:"policies,omitempty"`
	Attachments []Attachment      `json:"attachments,omitempty" yaml:"attachments,omitempty"`
	Tags        map[string]any    `json:"tags,omitempty" yaml:"tags,omitempty"`
	CreatedAt   string            `json:"createdAt,omitempty" yaml:"createdAt,omitempty"`
}

// UnmarshalJSON implements json.Unmarshaler. Optional fields of the wrong
// shape decode as empty: a non-array policies or attachments field yields
// nil, malformed elements are skipped, and non-object tags are dropped.
func (b *Bundle) UnmarshalJSON(data []byte) error {
	var raw struct {
		ID          string          `json:"id"`
		Name        string          `json:"name"`
		State       BundleState     `json:"state"`
		Policies    json.RawMessage `json:"policies"`
		Attachments json.RawMessage `json:"attachments"`
		Tags        json.RawMessage `json:"tags"`
		CreatedAt   json.RawMessage `json:"createdAt"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*b = Bundle{
		ID:          raw.ID,
		Name:        raw.Name,
		State:       raw.State,
		Policies:    decodeEach[PolicyReference](raw.Policies),
		Attachments: decodeEach[Attachment](raw.Attachments),
		CreatedAt:   scalarText(raw.CreatedAt),
	}
	if tags := bytes.TrimSpace(raw.Tags); len(tags) > 0 && tags[0] == '{' {
		_ = json.Unmarshal(tags, &b.Tags)
	}
	return nil
}

// decodeEach decodes a JSON array element by element, skipping elements
// that do not decode into T. Anything but an array yields nil.
func decodeEach[T any](raw json.RawMessage) []T {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || raw[0] != '[' {
		return nil
	}
	var elems []json.RawMessage
	if err := json.Unmarshal(raw, &elems); err != nil {
		return nil
	}
	out := make([]T, 0, len(elems))
	for _, e := range elems {
		var v T
		if err := json.Unmarshal(e, &v); err != nil {
			continue
		}
		out = append(out, v)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// PolicyReference is the policy id and display name embedded in a bundle.
type PolicyReference struct {
	PolicyID   string `json:"policyId" yaml:"policyId"`
	PolicyName string `json:"policyName" yaml:"policyName"`
}

// Policy is a fully resolved approval workflow.
type Policy struct {
	ID     string  `json:"id" yaml:"id"`
	Name   string  `json:"name,omitempty" yaml:"name,omitempty"`
	Stages []Stage `json:"stages,omitempty" yaml:"stages,omitempty"`
}

// Stage is one ordered step of a policy.
type Stage struct {
	Name        string               `json:"name,omitempty" yaml:"name,omitempty"`
	EvidenceSet []EvidenceDefinition `json:"evidenceSet,omitempty" yaml:"evidenceSet,omitempty"`
}

// EvidenceDefinition pairs an internal definition id with its stable
// external id (for example "system-id").
type EvidenceDefinition struct {
	ID         string `json:"id" yaml:"id"`
	ExternalID string `json:"externalId,omitempty" yaml:"externalId,omitempty"`
	Name       string `json:"name,omitempty" yaml:"name,omitempty"`
}

// Attachment is an artifact attached to a bundle. Only attachments of the
// configured model type with a non-nil Identifier produce models.
type Attachment struct {
	Type       string           `json:"type" yaml:"type"`
	Identifier *ModelIdentifier `json:"identifier,omitempty" yaml:"identifier,omitempty"`
}

// ModelIdentifier names a registered model version.
type ModelIdentifier struct {
	Name    string       `json:"name" yaml:"name"`
	Version ModelVersion `json:"version" yaml:"version"`
}

// ModelVersion accepts both numeric and string versions on the wire and
// keeps the textual form.
type ModelVersion string

// UnmarshalJSON implements json.Unmarshaler.
func (v *ModelVersion) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*v = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*v = ModelVersion(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("model version: %w", err)
	}
	*v = ModelVersion(n.String())
	return nil
}

// EvidenceRecord is one recorded artifact in a bundle's latest evidence set.
type EvidenceRecord struct {
	EvidenceID      string          `json:"evidenceId" yaml:"evidenceId"`
	ArtifactID      string          `json:"artifactId,omitempty" yaml:"artifactId,omitempty"`
	ArtifactContent ArtifactContent `json:"artifactContent,omitempty" yaml:"artifactContent,omitempty"`
	UpdatedAt       string          `json:"updatedAt,omitempty" yaml:"updatedAt,omitempty"`
	UserID          string          `json:"userId,omitempty" yaml:"userId,omitempty"`
}

// ArtifactContent is free-form evidence content: a single string or a list
// of strings. Scalars of other JSON types are kept in their literal form.
type ArtifactContent []string

// UnmarshalJSON implements json.Unmarshaler.
func (c *ArtifactContent) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case len(data) == 0 || bytes.Equal(data, []byte("null")):
		*c = nil
	case data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*c = ArtifactContent{s}
	case data[0] == '[':
		var raw []json.RawMessage
		if err := json.Unmarshal(data, &raw); err != nil {
			return err
		}
		out := make(ArtifactContent, 0, len(raw))
		for _, item := range raw {
			out = append(out, scalarText(item))
		}
		*c = out
	default:
		*c = ArtifactContent{scalarText(data)}
	}
	return nil
}

// UnmarshalYAML implements yaml.Unmarshaler with the same shapes as JSON.
func (c *ArtifactContent) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		if node.Tag == "!!null" {
			*c = nil
			return nil
		}
		*c = ArtifactContent{node.Value}
	case yaml.SequenceNode:
		out := make(ArtifactContent, 0, len(node.Content))
		for _, item := range node.Content {
			out = append(out, item.Value)
		}
		*c = out
	default:
		return fmt.Errorf("artifact content: unsupported yaml node kind %d", node.Kind)
	}
	return nil
}

// MarshalJSON writes a single value as a plain string.
func (c ArtifactContent) MarshalJSON() ([]byte, error) {
	if len(c) == 1 {
		return json.Marshal(c[0])
	}
	return json.Marshal([]string(c))
}

// String joins multiple values with ", ".
func (c ArtifactContent) String() string {
	return strings.Join(c, ", ")
}

func scalarText(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(bytes.TrimSpace(raw))
}

// FetchError is the structured marker stored for a bundle whose evidence
// fetch failed. StatusCode is zero for transport failures.
type FetchError struct {
	StatusCode int    `json:"statusCode,omitempty" yaml:"statusCode,omitempty"`
	Message    string `json:"message" yaml:"message"`
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return "status " + strconv.Itoa(e.StatusCode) + ": " + e.Message
	}
	return e.Message
}

// EvidenceResult is the outcome of one bundle's evidence fetch: the records
// on success, or Err set when the fetch failed.
type EvidenceResult struct {
	Records []EvidenceRecord
	Err     *FetchError
}

// PolicyCache maps policy ids to fully resolved policies for one run.
// Ids whose fetch failed are absent.
type PolicyCache map[string]*Policy

// BundleSummary is the per-model view of a contributing bundle.
type BundleSummary struct {
	ID        string      `json:"id"`
	Name      string      `json:"name"`
	State     BundleState `json:"state"`
	CreatedAt string      `json:"createdAt,omitempty"`
}

// ModelEvidence is an evidence record annotated with its source bundle.
type ModelEvidence struct {
	EvidenceRecord
	ExternalID string `json:"externalId,omitempty"`
	BundleID   string `json:"bundleId"`
	BundleName string `json:"bundleName"`
}

// ModelPolicy is a policy reference annotated with its source bundle and,
// when the fetch succeeded, the resolved policy.
type ModelPolicy struct {
	PolicyReference
	BundleID   string  `json:"bundleId"`
	BundleName string  `json:"bundleName"`
	Policy     *Policy `json:"policy,omitempty"`
}

// EvidenceFailure records a bundle whose evidence could not be fetched.
type EvidenceFailure struct {
	BundleID   string `json:"bundleId"`
	BundleName string `json:"bundleName"`
	FetchError
}

// AggregatedModel is the join of every bundle, evidence record and policy
// referencing one (name, version) pair.
type AggregatedModel struct {
	Key             string            `json:"key"`
	Name            string            `json:"name"`
	Version         string            `json:"version"`
	SystemID        string            `json:"systemId,omitempty"`
	ApplicationID   string            `json:"applicationId,omitempty"`
	ApplicationType string            `json:"applicationType,omitempty"`
	ServiceLevel    string            `json:"serviceLevel,omitempty"`
	Bundles         []BundleSummary   `json:"bundles"`
	Evidence        []ModelEvidence   `json:"evidence"`
	Policies        []ModelPolicy     `json:"policies"`
	EvidenceErrors  []EvidenceFailure `json:"evidenceErrors,omitempty"`
}

// ModelKey builds the aggregation key for a model version.
func ModelKey(name, version string) string {
	return name + "_v" + version
}

// Finding is an open governance finding shown on a row.
type Finding struct {
	Severity    string `json:"severity"`
	Description string `json:"description"`
	AgeDays     int    `json:"ageDays"`
}

// Dependency is an upstream dependency shown on a row.
type Dependency struct {
	Name   string `json:"name"`
	Status string `json:"status"`
}

// TableRow is the display-ready projection of one AggregatedModel. Every
// field is populated; nothing is left for the renderer to default.
type TableRow struct {
	Key                string       `json:"key"`
	ModelName          string       `json:"modelName"`
	ModelVersion       string       `json:"modelVersion"`
	ApplicationVersion string       `json:"applicationVersion"`
	ApplicationType    string       `json:"applicationType"`
	ServiceLevel       string       `json:"serviceLevel"`
	BundleName         string       `json:"bundleName"`
	Status             string       `json:"status"`
	EvidenceStatus     string       `json:"evidenceStatus"`
	EvidenceUpdatedAt  string       `json:"evidenceUpdatedAt"`
	Owner              string       `json:"owner"`
	RiskClass          string       `json:"riskClass"`
	Health             string       `json:"health"`
	ActiveDevelopment  bool         `json:"activeDevelopment"`
	Findings           []Finding    `json:"findings"`
	Dependencies       []Dependency `json:"dependencies"`
	ExternalAccess     bool         `json:"externalAccess"`
	LastRun            string       `json:"lastRun"`
	Degraded           bool         `json:"degraded"`
	EvidenceError      string       `json:"evidenceError"`
}
