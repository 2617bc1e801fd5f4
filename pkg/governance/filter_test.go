package governance

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFilterBundles(t *testing.T) {
	tests := []struct {
		name    string
		bundles []Bundle
		match   string
		wantIDs []string
	}{
		{
			name: "archived bundle excluded regardless of policy",
			bundles: []Bundle{
				{ID: "b1", State: BundleStateArchived, Policies: []PolicyReference{{PolicyName: "[fitch] Model Risk"}}},
			},
			match:   "[fitch",
			wantIDs: []string{},
		},
		{
			name: "non matching policy excluded",
			bundles: []Bundle{
				{ID: "b1", State: BundleStateActive, Policies: []PolicyReference{{PolicyName: "Other Policy"}}},
			},
			match:   "[fitch",
			wantIDs: []string{},
		},
		{
			name: "case insensitive match included",
			bundles: []Bundle{
				{ID: "b1", State: BundleStateActive, Policies: []PolicyReference{{PolicyName: "[FITCH] Risk"}}},
			},
			match:   "[fitch",
			wantIDs: []string{"b1"},
		},
		{
			name: "missing policies excluded",
			bundles: []Bundle{
				{ID: "b1", State: BundleStateActive},
			},
			match:   "[fitch",
			wantIDs: []string{},
		},
		{
			name: "unknown state kept",
			bundles: []Bundle{
				{ID: "b1", State: "Draft", Policies: []PolicyReference{{PolicyName: "[fitch] x"}}},
			},
			match:   "[fitch",
			wantIDs: []string{"b1"},
		},
		{
			name: "archived compared case sensitively",
			bundles: []Bundle{
				{ID: "b1", State: "archived", Policies: []PolicyReference{{PolicyName: "[fitch] x"}}},
			},
			match:   "[fitch",
			wantIDs: []string{"b1"},
		},
		{
			name: "order preserved",
			bundles: []Bundle{
				{ID: "b3", State: BundleStateActive, Policies: []PolicyReference{{PolicyName: "Other"}, {PolicyName: "[Fitch] A"}}},
				{ID: "b1", State: BundleStateArchived, Policies: []PolicyReference{{PolicyName: "[fitch] B"}}},
				{ID: "b2", State: BundleStateActive, Policies: []PolicyReference{{PolicyName: "[fitch] C"}}},
			},
			match:   "[fitch",
			wantIDs: []string{"b3", "b2"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FilterBundles(tt.bundles, tt.match)
			ids := make([]string, 0, len(got))
			for _, b := range got {
				ids = append(ids, b.ID)
			}
			assert.Equal(t, tt.wantIDs, ids)
		})
	}
}
