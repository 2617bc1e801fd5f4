package main

import (
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/modelgov/govdash/pkg/runs"
)

const runsAPIBase = "/api/v1/runs"

type runsEnvelope struct {
	Data     []runs.Run `json:"data"`
	Metadata struct {
		NextPageToken string `json:"nextPageToken"`
		TotalSize     int    `json:"totalSize"`
	} `json:"metadata"`
}

var (
	runsState     string
	runsTrigger   string
	runsPageSize  int
	runsPageToken string
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List recent dashboard load cycles",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		params := url.Values{}
		params.Set("pageSize", strconv.Itoa(runsPageSize))
		if runsState != "" {
			params.Set("state", runsState)
		}
		if runsTrigger != "" {
			params.Set("trigger", runsTrigger)
		}
		if runsPageToken != "" {
			params.Set("pageToken", runsPageToken)
		}

		var env runsEnvelope
		if err := newClient().getJSON(cmd.Context(), runsAPIBase+"?"+params.Encode(), &env); err != nil {
			return fmt.Errorf("failed to list runs: %w", err)
		}

		if structuredOutput() {
			return printOutput(cmd.OutOrStdout(), env)
		}

		rows := make([][]string, 0, len(env.Data))
		for _, r := range env.Data {
			rows = append(rows, []string{
				truncate(r.ID, 8),
				string(r.Trigger),
				string(r.State),
				orDash(r.Source),
				r.StartedAt.Local().Format(time.DateTime),
				(time.Duration(r.DurationMs) * time.Millisecond).String(),
				fmt.Sprintf("%d/%d", r.BundlesMatched, r.BundlesTotal),
				strconv.Itoa(r.Models),
				strconv.Itoa(r.EvidenceFailed),
				truncate(r.LastError, 40),
			})
		}
		out := cmd.OutOrStdout()
		printTable(out, []string{"ID", "Trigger", "State", "Source", "Started", "Duration", "Bundles", "Models", "Evidence Errors", "Error"}, rows)
		fmt.Fprintf(out, "Total: %d\n", env.Metadata.TotalSize)
		if env.Metadata.NextPageToken != "" {
			fmt.Fprintf(out, "Next page: --page-token %s\n", env.Metadata.NextPageToken)
		}
		return nil
	},
}

func init() {
	runsCmd.Flags().StringVar(&runsState, "state", "", "Filter by state (running, succeeded, failed, abandoned)")
	runsCmd.Flags().StringVar(&runsTrigger, "trigger", "", "Filter by trigger (startup, scheduled, manual, fixture-reload)")
	runsCmd.Flags().IntVar(&runsPageSize, "limit", 20, "Maximum runs to list")
	runsCmd.Flags().StringVar(&runsPageToken, "page-token", "", "Continue a previous listing")
}
