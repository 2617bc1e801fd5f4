package main

import (
	"fmt"
	"net/url"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/modelgov/govdash/pkg/dominoapi"
)

var (
	scanFileRegex    string
	scanExcludeRegex string
	scanConfig       string
	scanNoIssues     bool
)

var scanCmd = &cobra.Command{
	Use:   "scan <key>",
	Short: "Run a security scan of a model version's code",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		body := map[string]any{}
		if scanFileRegex != "" {
			body["fileRegex"] = scanFileRegex
		}
		if scanExcludeRegex != "" {
			body["excludeRegex"] = scanExcludeRegex
		}
		if scanConfig != "" {
			body["semgrepConfig"] = scanConfig
		}
		if scanNoIssues {
			body["includeIssues"] = false
		}

		var env struct {
			Data dominoapi.ScanResponse `json:"data"`
		}
		path := fmt.Sprintf("%s/%s/scan", modelsAPIBase, url.PathEscape(args[0]))
		if err := newClient().postJSON(cmd.Context(), path, body, &env); err != nil {
			return fmt.Errorf("scan failed: %w", err)
		}

		if structuredOutput() {
			return printOutput(cmd.OutOrStdout(), env.Data)
		}

		out := cmd.OutOrStdout()
		s := env.Data.Scan
		printTable(out, []string{"Total", "High", "Medium", "Low"}, [][]string{
			{strconv.Itoa(s.Total), strconv.Itoa(s.High), strconv.Itoa(s.Medium), strconv.Itoa(s.Low)},
		})
		if len(env.Data.Issues) == 0 {
			return nil
		}
		fmt.Fprintln(out)
		rows := make([][]string, 0, len(env.Data.Issues))
		for _, is := range env.Data.Issues {
			rows = append(rows, []string{
				is.Severity,
				truncate(is.CheckID, 40),
				fmt.Sprintf("%s:%d", is.Path, is.Line),
				truncate(is.Message, 60),
			})
		}
		printTable(out, []string{"Severity", "Check", "Location", "Message"}, rows)
		return nil
	},
}

func init() {
	scanCmd.Flags().StringVar(&scanFileRegex, "file-regex", "", "Only scan files matching this pattern")
	scanCmd.Flags().StringVar(&scanExcludeRegex, "exclude-regex", "", "Skip files matching this pattern")
	scanCmd.Flags().StringVar(&scanConfig, "config", "", "Scanner rule configuration")
	scanCmd.Flags().BoolVar(&scanNoIssues, "no-issues", false, "Only report the summary")
}
