package governance

// ResolveExternalID maps an evidence record to the external id of its
// evidence definition. Policies are searched in bundle reference order,
// then stage order, then definition order; the first match wins. Policies
// missing from the cache are skipped. ok is false when nothing matches.
func ResolveExternalID(ev EvidenceRecord, refs []PolicyReference, cache PolicyCache) (externalID string, ok bool) {
	for _, ref := range refs {
		policy := cache[ref.PolicyID]
		if policy == nil {
			continue
		}
		for _, stage := range policy.Stages {
			for _, def := range stage.EvidenceSet {
				if def.ID == ev.EvidenceID {
					return def.ExternalID, true
				}
			}
		}
	}
	return "", false
}
