package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/modelgov/govdash/pkg/server"
)

var refreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Reload governance data now",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		var env struct {
			Data server.RefreshResult `json:"data"`
		}
		if err := newClient().postJSON(cmd.Context(), "/api/v1/refresh", nil, &env); err != nil {
			return fmt.Errorf("refresh failed: %w", err)
		}

		if structuredOutput() {
			return printOutput(cmd.OutOrStdout(), env.Data)
		}

		st := env.Data.Stats
		printTable(cmd.OutOrStdout(), []string{"Source", "Bundles", "Matched", "Policies", "Policy Errors", "Evidence Errors", "Models", "Duration"}, [][]string{{
			env.Data.Source,
			strconv.Itoa(st.BundlesTotal),
			strconv.Itoa(st.BundlesMatched),
			strconv.Itoa(st.PoliciesResolved),
			strconv.Itoa(st.PoliciesFailed),
			strconv.Itoa(st.EvidenceFailed),
			strconv.Itoa(st.Models),
			st.Duration.String(),
		}})
		return nil
	},
}
