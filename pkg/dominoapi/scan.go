package dominoapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

// ScanRequest asks the scanner to analyse one model version's source.
type ScanRequest struct {
	ModelName     string `json:"modelName"`
	Version       string `json:"version"`
	FileRegex     string `json:"fileRegex"`
	ExcludeRegex  string `json:"excludeRegex"`
	SemgrepConfig string `json:"semgrepConfig"`
	IncludeIssues bool   `json:"includeIssues"`
}

// DefaultScanRequest fills the scanner options used by the dashboard.
func DefaultScanRequest(modelName, version string) ScanRequest {
	return ScanRequest{
		ModelName:     modelName,
		Version:       version,
		FileRegex:     `.*\.(py|ipynb|js|ts|java|go|r|R|scala)$`,
		ExcludeRegex:  `(node_modules|\.git|\.venv|venv|__pycache__|\.ipynb_checkpoints)/`,
		SemgrepConfig: "auto",
		IncludeIssues: true,
	}
}

// ScanSummary counts findings by severity.
type ScanSummary struct {
	Total  int `json:"total"`
	High   int `json:"high"`
	Medium int `json:"medium"`
	Low    int `json:"low"`
}

// Issue is one scanner finding.
type Issue struct {
	CheckID  string `json:"checkId,omitempty"`
	Path     string `json:"path,omitempty"`
	Line     int    `json:"line,omitempty"`
	Severity string `json:"severity,omitempty"`
	Message  string `json:"message,omitempty"`
}

// ScanResponse is the scanner result.
type ScanResponse struct {
	Scan   ScanSummary `json:"scan"`
	Issues []Issue     `json:"issues"`
}

// TriggerScan runs a security scan and waits for its result.
func (c *Client) TriggerScan(ctx context.Context, req ScanRequest) (*ScanResponse, error) {
	if req.ModelName == "" {
		return nil, fmt.Errorf("scan: model name is required")
	}
	body, err := c.doRequest(ctx, http.MethodPost, c.scanURL, req)
	if err != nil {
		return nil, err
	}
	var resp ScanResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decoding scan response: %w", err)
	}
	if resp.Issues == nil {
		resp.Issues = []Issue{}
	}
	return &resp, nil
}
