package governance

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProjectModel_EmptyModel(t *testing.T) {
	row := ProjectModel(&AggregatedModel{Key: "m_v1", Name: "m", Version: "1"})

	assert.Equal(t, TableRow{
		Key:                "m_v1",
		ModelName:          "m",
		ModelVersion:       "1",
		ApplicationVersion: "n/a",
		ApplicationType:    "Unknown",
		ServiceLevel:       "Unknown",
		BundleName:         "Unknown",
		Status:             "Unknown",
		EvidenceStatus:     "-",
		EvidenceUpdatedAt:  "-",
		Owner:              "Unknown",
		RiskClass:          "P3",
		Health:             "98.5",
		Findings:           []Finding{},
		Dependencies:       []Dependency{},
		LastRun:            "Never",
	}, row)
}

func TestProjectModel_EveryFieldSerialized(t *testing.T) {
	data, err := json.Marshal(ProjectModel(&AggregatedModel{}))
	require.NoError(t, err)

	var fields map[string]any
	require.NoError(t, json.Unmarshal(data, &fields))
	for _, name := range []string{
		"applicationVersion", "applicationType", "serviceLevel", "bundleName", "status",
		"evidenceStatus", "evidenceUpdatedAt", "owner", "riskClass", "health",
		"activeDevelopment", "findings", "dependencies", "externalAccess", "lastRun",
	} {
		v, ok := fields[name]
		assert.True(t, ok, name)
		assert.NotNil(t, v, name)
	}
}

func TestProjectModel_FirstBundleAndEvidenceWin(t *testing.T) {
	m := &AggregatedModel{
		Key: "m_v2", Name: "m", Version: "2",
		ApplicationID:   "v9.2",
		ApplicationType: "Realtime",
		ServiceLevel:    "Gold",
		Bundles: []BundleSummary{
			{ID: "b1", Name: "First", State: BundleStateActive},
			{ID: "b2", Name: "Second", State: BundleStateArchived},
		},
		Evidence: []ModelEvidence{
			{EvidenceRecord: EvidenceRecord{EvidenceID: "e1", UpdatedAt: "2024-03-01", UserID: "alice"}},
			{EvidenceRecord: EvidenceRecord{EvidenceID: "e2", UpdatedAt: "2024-04-01", UserID: "bob"}},
		},
	}

	row := ProjectModel(m)
	assert.Equal(t, "v9.2", row.ApplicationVersion)
	assert.Equal(t, "Realtime", row.ApplicationType)
	assert.Equal(t, "Gold", row.ServiceLevel)
	assert.Equal(t, "First", row.BundleName)
	assert.Equal(t, "Active", row.Status)
	assert.Equal(t, "e1", row.EvidenceStatus)
	assert.Equal(t, "2024-03-01", row.EvidenceUpdatedAt)
	assert.Equal(t, "alice", row.Owner)
	assert.False(t, row.Degraded)
	assert.Empty(t, row.EvidenceError)
}

func TestProjectModel_PartialEvidence(t *testing.T) {
	m := &AggregatedModel{
		Bundles:  []BundleSummary{{Name: ""}},
		Evidence: []ModelEvidence{{EvidenceRecord: EvidenceRecord{EvidenceID: "e1"}}},
	}
	row := ProjectModel(m)
	assert.Equal(t, "Unknown", row.BundleName)
	assert.Equal(t, "e1", row.EvidenceStatus)
	assert.Equal(t, "-", row.EvidenceUpdatedAt)
	assert.Equal(t, "Unknown", row.Owner)
}

func TestProject(t *testing.T) {
	assert.Equal(t, []TableRow{}, Project(nil))
	assert.Equal(t, []TableRow{}, Project(NewModelIndex()))

	idx := Aggregate(testBundles(), testEvidence(), testPolicyCache(), nil)
	rows := Project(idx)
	require.Len(t, rows, 2)
	assert.Equal(t, "fraud_v3", rows[0].Key)
	assert.Equal(t, "alice", rows[0].Owner)
	assert.Equal(t, "credit_v1", rows[1].Key)
	assert.Equal(t, "bob", rows[1].Owner)
	assert.Equal(t, "Credit Bundle", rows[1].BundleName)
}
