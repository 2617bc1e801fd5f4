package main

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/modelgov/govdash/pkg/governance"
	"github.com/modelgov/govdash/pkg/server"
)

const modelsAPIBase = "/api/v1/models"

type modelsEnvelope = server.Envelope[[]governance.TableRow, server.ModelsMetadata]

type modelEnvelope struct {
	Data server.ModelDetail `json:"data"`
}

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "List and inspect governed model versions",
}

var (
	searchFlag string
	tabFlag    string
)

var modelsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List dashboard rows",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := fetchModels(cmd.Context(), newClient(), searchFlag, tabFlag)
		if err != nil {
			return fmt.Errorf("failed to list models: %w", err)
		}
		if structuredOutput() {
			return printOutput(cmd.OutOrStdout(), env)
		}
		printModelRows(cmd.OutOrStdout(), env)
		return nil
	},
}

var modelsGetCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Show the bundles, evidence and policies of one model version",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		detail, err := fetchModel(cmd.Context(), newClient(), args[0])
		if err != nil {
			return fmt.Errorf("failed to get model: %w", err)
		}
		if structuredOutput() {
			return printOutput(cmd.OutOrStdout(), detail)
		}
		printModelDetail(cmd.OutOrStdout(), detail)
		return nil
	},
}

func init() {
	modelsListCmd.Flags().StringVarP(&searchFlag, "search", "q", "", "Filter by model name, owner or application type")
	modelsListCmd.Flags().StringVar(&tabFlag, "tab", "", `Tab filter: "all", "critical findings" or a status`)
	modelsCmd.AddCommand(modelsListCmd)
	modelsCmd.AddCommand(modelsGetCmd)
}

func fetchModels(ctx context.Context, c *dashClient, query, tab string) (*modelsEnvelope, error) {
	params := url.Values{}
	if query != "" {
		params.Set("q", query)
	}
	if tab != "" {
		params.Set("tab", tab)
	}
	path := modelsAPIBase
	if len(params) > 0 {
		path += "?" + params.Encode()
	}

	var env modelsEnvelope
	if err := c.getJSON(ctx, path, &env); err != nil {
		return nil, err
	}
	if env.Data == nil {
		env.Data = []governance.TableRow{}
	}
	return &env, nil
}

func fetchModel(ctx context.Context, c *dashClient, key string) (*server.ModelDetail, error) {
	var env modelEnvelope
	if err := c.getJSON(ctx, modelsAPIBase+"/"+url.PathEscape(key), &env); err != nil {
		return nil, err
	}
	if env.Data.AggregatedModel == nil {
		env.Data.AggregatedModel = &governance.AggregatedModel{Key: key}
	}
	return &env.Data, nil
}

func printModelRows(out io.Writer, env *modelsEnvelope) {
	headers := []string{"Model", "Version", "App Version", "App Type", "Service Level", "Bundle", "Status", "Owner", "Evidence", "Risk", "Health"}
	rows := make([][]string, 0, len(env.Data))
	for _, r := range env.Data {
		rows = append(rows, []string{
			truncate(r.ModelName, 32),
			r.ModelVersion,
			r.ApplicationVersion,
			truncate(r.ApplicationType, 20),
			truncate(r.ServiceLevel, 20),
			truncate(r.BundleName, 32),
			r.Status,
			r.Owner,
			evidenceCell(r),
			r.RiskClass,
			r.Health + "%",
		})
	}
	printTable(out, headers, rows)

	m := env.Metadata
	fmt.Fprintf(out, "Showing %d of %d models (source: %s, loaded %s)\n",
		m.Matched, m.Total, m.Source, m.LoadedAt.Local().Format(time.RFC3339))
}

func evidenceCell(r governance.TableRow) string {
	if r.Degraded {
		return "error"
	}
	return r.EvidenceUpdatedAt
}

func printModelDetail(out io.Writer, d *server.ModelDetail) {
	r := d.Row
	printTable(out, []string{"Field", "Value"}, [][]string{
		{"Model", r.ModelName},
		{"Version", r.ModelVersion},
		{"System ID", orDash(d.SystemID)},
		{"Application Version", r.ApplicationVersion},
		{"Application Type", r.ApplicationType},
		{"Service Level", r.ServiceLevel},
		{"Status", r.Status},
		{"Owner", r.Owner},
		{"Risk", r.RiskClass + " (" + d.RiskDescription + ")"},
		{"Health", r.Health + "% (" + string(d.HealthBand) + ")"},
		{"Last Run", r.LastRun},
	})

	fmt.Fprintln(out)
	bundleRows := make([][]string, 0, len(d.Bundles))
	for _, b := range d.Bundles {
		bundleRows = append(bundleRows, []string{b.ID, b.Name, string(b.State), orDash(b.CreatedAt)})
	}
	printTable(out, []string{"Bundle ID", "Bundle", "State", "Created"}, bundleRows)

	fmt.Fprintln(out)
	evidenceRows := make([][]string, 0, len(d.Evidence))
	for _, e := range d.Evidence {
		evidenceRows = append(evidenceRows, []string{
			orDash(e.ExternalID),
			truncate(e.ArtifactContent.String(), 48),
			e.BundleName,
			orDash(e.UserID),
			orDash(e.UpdatedAt),
		})
	}
	printTable(out, []string{"Evidence", "Content", "Bundle", "User", "Updated"}, evidenceRows)

	fmt.Fprintln(out)
	policyRows := make([][]string, 0, len(d.Policies))
	for _, p := range d.Policies {
		stages := "unresolved"
		if p.Policy != nil {
			stages = strconv.Itoa(len(p.Policy.Stages))
		}
		policyRows = append(policyRows, []string{p.PolicyID, p.PolicyName, p.BundleName, stages})
	}
	printTable(out, []string{"Policy ID", "Policy", "Bundle", "Stages"}, policyRows)

	for _, f := range d.EvidenceErrors {
		fmt.Fprintf(out, "\nEvidence unavailable for bundle %s: %s\n", f.BundleName, f.Error())
	}
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func ctxOrBackground(ctx context.Context) context.Context {
	if ctx == nil {
		return context.Background()
	}
	return ctx
}
