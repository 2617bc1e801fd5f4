package governance

// ModelIndex holds aggregated models in first-seen order.
type ModelIndex struct {
	keys   []string
	models map[string]*AggregatedModel
}

// NewModelIndex returns an empty index.
func NewModelIndex() *ModelIndex {
	return &ModelIndex{models: make(map[string]*AggregatedModel)}
}

// Get returns the model stored under key.
func (idx *ModelIndex) Get(key string) (*AggregatedModel, bool) {
	m, ok := idx.models[key]
	return m, ok
}

// Keys returns model keys in insertion order.
func (idx *ModelIndex) Keys() []string {
	out := make([]string, len(idx.keys))
	copy(out, idx.keys)
	return out
}

// Models returns the models in insertion order.
func (idx *ModelIndex) Models() []*AggregatedModel {
	out := make([]*AggregatedModel, 0, len(idx.keys))
	for _, k := range idx.keys {
		out = append(out, idx.models[k])
	}
	return out
}

// Len returns the number of models.
func (idx *ModelIndex) Len() int {
	return len(idx.keys)
}

func (idx *ModelIndex) getOrCreate(name, version string) *AggregatedModel {
	key := ModelKey(name, version)
	if m, ok := idx.models[key]; ok {
		return m
	}
	m := &AggregatedModel{
		Key:      key,
		Name:     name,
		Version:  version,
		Bundles:  []BundleSummary{},
		Evidence: []ModelEvidence{},
		Policies: []ModelPolicy{},
	}
	idx.models[key] = m
	idx.keys = append(idx.keys, key)
	return m
}

// Aggregate joins bundles, their evidence and the resolved policies into one
// AggregatedModel per (name, version). It must run after every fetch has
// settled: accumulation follows bundle order, then evidence order, then
// policy order, so identical inputs always produce identical output.
//
// A model attached more than once to the same bundle accumulates that
// bundle's summary, evidence and policies once per attachment.
func Aggregate(bundles []Bundle, evidence map[string]EvidenceResult, cache PolicyCache, cfg *Config) *ModelIndex {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	idx := NewModelIndex()

	for _, b := range bundles {
		result := evidence[b.ID]
		for _, att := range b.Attachments {
			if att.Type != cfg.AttachmentType || att.Identifier == nil {
				continue
			}
			version := string(att.Identifier.Version)
			m := idx.getOrCreate(att.Identifier.Name, version)

			m.Bundles = append(m.Bundles, BundleSummary{
				ID:        b.ID,
				Name:      b.Name,
				State:     b.State,
				CreatedAt: b.CreatedAt,
			})

			if result.Err != nil {
				m.EvidenceErrors = append(m.EvidenceErrors, EvidenceFailure{
					BundleID:   b.ID,
					BundleName: b.Name,
					FetchError: *result.Err,
				})
			}

			for _, ev := range result.Records {
				extID, _ := ResolveExternalID(ev, b.Policies, cache)
				applyExternalID(m, extID, ev, &cfg.ExternalIDs)
				m.Evidence = append(m.Evidence, ModelEvidence{
					EvidenceRecord: ev,
					ExternalID:     extID,
					BundleID:       b.ID,
					BundleName:     b.Name,
				})
			}

			for _, ref := range b.Policies {
				m.Policies = append(m.Policies, ModelPolicy{
					PolicyReference: ref,
					BundleID:        b.ID,
					BundleName:      b.Name,
					Policy:          cache[ref.PolicyID],
				})
			}
		}
	}
	return idx
}

// applyExternalID copies evidence content into the model field named by
// extID. Later evidence overwrites earlier values.
func applyExternalID(m *AggregatedModel, extID string, ev EvidenceRecord, ids *ExternalIDConfig) {
	if extID == "" {
		return
	}
	value := ev.ArtifactContent.String()
	switch extID {
	case ids.SystemID:
		m.SystemID = value
		m.ApplicationID = "v" + value + "." + m.Version
	case ids.ApplicationType:
		m.ApplicationType = value
	case ids.ServiceLevel:
		m.ServiceLevel = value
	}
}
