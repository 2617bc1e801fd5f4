package governance

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestBundle_DecodeOptionalFields(t *testing.T) {
	var b Bundle
	require.NoError(t, json.Unmarshal([]byte(`{
		"id": "b1", "name": "B", "state": "Active",
		"attachments": [
			{"type": "ModelVersion", "identifier": {"name": "fraud", "version": 3}},
			{"type": "ModelVersion", "identifier": {"name": "credit", "version": "1.2"}},
			{"type": "Report"}
		],
		"unknown": {"ignored": true}
	}`), &b))

	assert.Empty(t, b.Policies)
	assert.Nil(t, b.Tags)
	require.Len(t, b.Attachments, 3)
	assert.Equal(t, ModelVersion("3"), b.Attachments[0].Identifier.Version)
	assert.Equal(t, ModelVersion("1.2"), b.Attachments[1].Identifier.Version)
	assert.Nil(t, b.Attachments[2].Identifier)
}

func TestBundle_DecodeMalformedOptionalFields(t *testing.T) {
	tests := []struct {
		name            string
		json            string
		wantPolicies    int
		wantAttachments int
	}{
		{"policies object", `{"id":"b","policies":{}}`, 0, 0},
		{"policies string", `{"id":"b","policies":"x"}`, 0, 0},
		{"attachments number", `{"id":"b","attachments":3}`, 0, 0},
		{"bad element skipped", `{"id":"b","policies":[1,{"policyId":"p","policyName":"P"}]}`, 1, 0},
		{"bad attachment version", `{"id":"b","attachments":[{"type":"ModelVersion","identifier":{"name":"m","version":{}}},{"type":"Report"}]}`, 0, 1},
		{"tags of any shape", `{"id":"b","tags":{"n":1,"k":"v"}}`, 0, 0},
		{"tags array", `{"id":"b","tags":["a"]}`, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var b Bundle
			require.NoError(t, json.Unmarshal([]byte(tt.json), &b))
			assert.Equal(t, "b", b.ID)
			assert.Len(t, b.Policies, tt.wantPolicies)
			assert.Len(t, b.Attachments, tt.wantAttachments)
		})
	}
}

func TestArtifactContent_Decode(t *testing.T) {
	tests := []struct {
		name string
		json string
		want ArtifactContent
	}{
		{"string", `"42"`, ArtifactContent{"42"}},
		{"array", `["a", "b"]`, ArtifactContent{"a", "b"}},
		{"number", `42`, ArtifactContent{"42"}},
		{"mixed array", `["a", 1, true]`, ArtifactContent{"a", "1", "true"}},
		{"null", `null`, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var rec EvidenceRecord
			require.NoError(t, json.Unmarshal([]byte(`{"evidenceId":"e","artifactContent":`+tt.json+`}`), &rec))
			assert.Equal(t, tt.want, rec.ArtifactContent)
		})
	}
}

func TestArtifactContent_YAML(t *testing.T) {
	var recs []EvidenceRecord
	require.NoError(t, yaml.Unmarshal([]byte(`
- evidenceId: e1
  artifactContent: "42"
- evidenceId: e2
  artifactContent: [Gold, 24x7]
- evidenceId: e3
`), &recs))

	require.Len(t, recs, 3)
	assert.Equal(t, ArtifactContent{"42"}, recs[0].ArtifactContent)
	assert.Equal(t, "Gold, 24x7", recs[1].ArtifactContent.String())
	assert.Nil(t, recs[2].ArtifactContent)
}

func TestArtifactContent_Encode(t *testing.T) {
	single, err := json.Marshal(ArtifactContent{"42"})
	require.NoError(t, err)
	assert.JSONEq(t, `"42"`, string(single))

	many, err := json.Marshal(ArtifactContent{"a", "b"})
	require.NoError(t, err)
	assert.JSONEq(t, `["a","b"]`, string(many))
}

func TestFetchError_Error(t *testing.T) {
	assert.Equal(t, "status 404: not found", (&FetchError{StatusCode: 404, Message: "not found"}).Error())
	assert.Equal(t, "timeout", (&FetchError{Message: "timeout"}).Error())
}

func TestModelKey(t *testing.T) {
	assert.Equal(t, "fraud_v3", ModelKey("fraud", "3"))
}
