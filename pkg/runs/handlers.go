package runs

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
)

// Router creates a chi.Router serving run history.
func Router(store *Store) chi.Router {
	r := chi.NewRouter()
	r.Get("/", ListRunsHandler(store))
	r.Get("/{runId}", GetRunHandler(store))
	return r
}

// ListRunsHandler handles GET /api/v1/runs
// Query params: state, trigger, pageSize, pageToken
func ListRunsHandler(store *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		filter := ListFilter{
			State:   r.URL.Query().Get("state"),
			Trigger: r.URL.Query().Get("trigger"),
		}

		pageSize := 20
		if ps := r.URL.Query().Get("pageSize"); ps != "" {
			if v, err := strconv.Atoi(ps); err == nil && v > 0 {
				pageSize = v
			}
		}

		records, nextToken, total, err := store.List(filter, pageSize, r.URL.Query().Get("pageToken"))
		if err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("failed to list runs: %v", err))
			return
		}

		writeJSON(w, http.StatusOK, map[string]any{
			"data": records,
			"metadata": map[string]any{
				"nextPageToken": nextToken,
				"totalSize":     total,
			},
		})
	}
}

// GetRunHandler handles GET /api/v1/runs/{runId}
func GetRunHandler(store *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		runID := chi.URLParam(r, "runId")
		run, err := store.Get(runID)
		if err != nil {
			writeError(w, http.StatusInternalServerError, fmt.Sprintf("failed to get run: %v", err))
			return
		}
		if run == nil {
			writeError(w, http.StatusNotFound, fmt.Sprintf("run %q not found", runID))
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"data": run})
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
