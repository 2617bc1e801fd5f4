package governance

import "strings"

// FilterBundles returns the non-archived bundles that reference at least one
// policy whose display name contains match, compared case-insensitively.
// Input order is preserved. Bundles without policies are dropped.
func FilterBundles(bundles []Bundle, match string) []Bundle {
	needle := strings.ToLower(match)
	out := make([]Bundle, 0, len(bundles))
	for _, b := range bundles {
		if b.State == BundleStateArchived {
			continue
		}
		if !hasMatchingPolicy(b.Policies, needle) {
			continue
		}
		out = append(out, b)
	}
	return out
}

func hasMatchingPolicy(refs []PolicyReference, needle string) bool {
	for _, ref := range refs {
		if strings.Contains(strings.ToLower(ref.PolicyName), needle) {
			return true
		}
	}
	return false
}
