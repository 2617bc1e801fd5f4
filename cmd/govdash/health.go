package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/spf13/cobra"
)

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check server health and readiness",
	RunE:  runHealth,
}

func runHealth(cmd *cobra.Command, args []string) error {
	client := newClient()
	ctx := ctxOrBackground(cmd.Context())

	var healthResp map[string]any
	if err := client.getJSON(ctx, "/healthz", &healthResp); err != nil {
		return fmt.Errorf("server unreachable: %w", err)
	}

	readyResp, err := fetchReadiness(ctx, client)
	if err != nil {
		// Readiness failure is not fatal; the server might still be starting.
		readyResp = map[string]any{"status": "unknown", "error": err.Error()}
	}

	if structuredOutput() {
		return printOutput(cmd.OutOrStdout(), map[string]any{
			"health":    healthResp,
			"readiness": readyResp,
		})
	}

	status, _ := healthResp["status"].(string)
	uptime, _ := healthResp["uptime"].(string)
	ready, _ := readyResp["status"].(string)

	rows := [][]string{
		{"Liveness", status},
		{"Uptime", uptime},
		{"Readiness", ready},
	}
	if components, ok := readyResp["components"].(map[string]any); ok {
		if load, ok := components["initial_load"].(map[string]any); ok {
			if src, ok := load["source"].(string); ok {
				rows = append(rows, []string{"Data Source", src})
			}
			if lastErr, ok := load["lastError"].(string); ok {
				rows = append(rows, []string{"Last Error", truncate(lastErr, 60)})
			}
		}
		if db, ok := components["database"].(map[string]any); ok {
			s, _ := db["status"].(string)
			rows = append(rows, []string{"Run Database", s})
		}
	}

	printTable(cmd.OutOrStdout(), []string{"Check", "Status"}, rows)
	return nil
}

// fetchReadiness returns the readiness body, including the 503 body of a
// server that is not ready yet.
func fetchReadiness(ctx context.Context, client *dashClient) (map[string]any, error) {
	var readyResp map[string]any
	err := client.getJSON(ctx, "/readyz", &readyResp)
	var apiErr *apiError
	if errors.As(err, &apiErr) && apiErr.Status == http.StatusServiceUnavailable {
		return map[string]any{"status": "not_ready"}, nil
	}
	return readyResp, err
}
