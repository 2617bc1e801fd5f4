// Package main provides the container probe of govdash-server. It requests
// the readiness endpoint and exits 0 on a 2xx reply, 1 otherwise.
// Usage: healthcheck [url]
// The URL defaults to $GOVDASH_HEALTHCHECK_URL, then to
// http://localhost:8080/readyz.
package main

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"time"
)

const defaultURL = "http://localhost:8080/readyz"

func probeURL(args []string) string {
	if len(args) > 1 && args[1] != "" {
		return args[1]
	}
	if v := os.Getenv("GOVDASH_HEALTHCHECK_URL"); v != "" {
		return v
	}
	return defaultURL
}

func probe(client *http.Client, url string) error {
	resp, err := client.Get(url)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("status %d", resp.StatusCode)
	}
	return nil
}

func main() {
	client := &http.Client{Timeout: 5 * time.Second}
	if err := probe(client, probeURL(os.Args)); err != nil {
		fmt.Fprintf(os.Stderr, "healthcheck failed: %v\n", err)
		os.Exit(1)
	}
}
