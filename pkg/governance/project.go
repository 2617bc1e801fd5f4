package governance

// Display defaults for fields the governance data does not provide.
const (
	DefaultUnknown            = "Unknown"
	DefaultApplicationVersion = "n/a"
	DefaultEvidenceField      = "-"
	DefaultRiskClass          = "P3"
	DefaultHealth             = "98.5"
	DefaultLastRun            = "Never"
)

// Project flattens every model in idx into a TableRow, in index order.
func Project(idx *ModelIndex) []TableRow {
	if idx == nil {
		return []TableRow{}
	}
	rows := make([]TableRow, 0, idx.Len())
	for _, m := range idx.Models() {
		rows = append(rows, ProjectModel(m))
	}
	return rows
}

// ProjectModel builds the display row for one model, defaulting every field
// the model leaves empty.
func ProjectModel(m *AggregatedModel) TableRow {
	row := TableRow{
		Key:                m.Key,
		ModelName:          m.Name,
		ModelVersion:       m.Version,
		ApplicationVersion: orDefault(m.ApplicationID, DefaultApplicationVersion),
		ApplicationType:    orDefault(m.ApplicationType, DefaultUnknown),
		ServiceLevel:       orDefault(m.ServiceLevel, DefaultUnknown),
		BundleName:         DefaultUnknown,
		Status:             DefaultUnknown,
		EvidenceStatus:     DefaultEvidenceField,
		EvidenceUpdatedAt:  DefaultEvidenceField,
		Owner:              DefaultUnknown,
		RiskClass:          DefaultRiskClass,
		Health:             DefaultHealth,
		Findings:           []Finding{},
		Dependencies:       []Dependency{},
		LastRun:            DefaultLastRun,
	}

	if len(m.Bundles) > 0 {
		first := m.Bundles[0]
		row.BundleName = orDefault(first.Name, DefaultUnknown)
		row.Status = orDefault(string(first.State), DefaultUnknown)
	}
	if len(m.Evidence) > 0 {
		first := m.Evidence[0]
		row.EvidenceStatus = orDefault(first.EvidenceID, DefaultEvidenceField)
		row.EvidenceUpdatedAt = orDefault(first.UpdatedAt, DefaultEvidenceField)
		row.Owner = orDefault(first.UserID, DefaultUnknown)
	}
	if len(m.EvidenceErrors) > 0 {
		row.Degraded = true
		row.EvidenceError = m.EvidenceErrors[0].Error()
	}
	return row
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
