package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/modelgov/govdash/pkg/dashboard"
	"github.com/modelgov/govdash/pkg/dominoapi"
	"github.com/modelgov/govdash/pkg/governance"
)

// Envelope wraps every API payload.
type Envelope[D any, M any] struct {
	Data     D `json:"data"`
	Metadata M `json:"metadata,omitempty"`
}

// None marks an envelope without metadata.
type None *struct{}

// ModelsMetadata describes the snapshot a model list was read from.
type ModelsMetadata struct {
	LoadedAt time.Time       `json:"loadedAt"`
	Source   string          `json:"source"`
	Total    int             `json:"total"`
	Matched  int             `json:"matched"`
	Stats    dashboard.Stats `json:"stats"`
}

// ModelDetail is the expandable detail of one model.
type ModelDetail struct {
	*governance.AggregatedModel
	Row             governance.TableRow   `json:"row"`
	RiskDescription string                `json:"riskDescription"`
	HealthBand      governance.HealthBand `json:"healthBand"`
	OwnerInitials   string                `json:"ownerInitials"`
}

// RefreshResult reports a completed manual refresh.
type RefreshResult struct {
	LoadedAt time.Time       `json:"loadedAt"`
	Source   string          `json:"source"`
	Stats    dashboard.Stats `json:"stats"`
}

// listModelsHandler handles GET /api/v1/models
// Query params: q, tab
func (s *Server) listModelsHandler(w http.ResponseWriter, r *http.Request) {
	snap := s.refresher.Current()
	if snap == nil {
		writeError(w, http.StatusServiceUnavailable, dashboard.ErrNoSnapshot.Error())
		return
	}

	rows := governance.FilterRows(snap.Rows, governance.RowFilter{
		Query: r.URL.Query().Get("q"),
		Tab:   r.URL.Query().Get("tab"),
	})

	writeJSON(w, http.StatusOK, Envelope[[]governance.TableRow, ModelsMetadata]{
		Data: rows,
		Metadata: ModelsMetadata{
			LoadedAt: snap.LoadedAt,
			Source:   snap.Source,
			Total:    len(snap.Rows),
			Matched:  len(rows),
			Stats:    snap.Stats,
		},
	})
}

// getModelHandler handles GET /api/v1/models/{key}
func (s *Server) getModelHandler(w http.ResponseWriter, r *http.Request) {
	key, ok := modelKeyParam(w, r)
	if !ok {
		return
	}
	snap := s.refresher.Current()
	m, err := snap.Model(key)
	if err != nil {
		writeSnapshotError(w, err)
		return
	}
	row, _ := snap.Row(m.Key)

	writeJSON(w, http.StatusOK, Envelope[ModelDetail, None]{
		Data: ModelDetail{
			AggregatedModel: m,
			Row:             row,
			RiskDescription: governance.RiskDescription(row.RiskClass),
			HealthBand:      governance.ClassifyHealth(row.Health),
			OwnerInitials:   governance.Initials(row.Owner),
		},
	})
}

// scanModelHandler handles POST /api/v1/models/{key}/scan
// The optional JSON body overrides scan settings; model name and version
// always come from the snapshot.
func (s *Server) scanModelHandler(w http.ResponseWriter, r *http.Request) {
	if s.scanner == nil {
		writeError(w, http.StatusNotImplemented, "security scanning is not configured")
		return
	}

	key, ok := modelKeyParam(w, r)
	if !ok {
		return
	}
	m, err := s.refresher.Current().Model(key)
	if err != nil {
		writeSnapshotError(w, err)
		return
	}

	req := dominoapi.DefaultScanRequest(m.Name, m.Version)
	if r.Body != nil {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid scan request: %v", err))
			return
		}
	}
	req.ModelName = m.Name
	req.Version = m.Version

	resp, err := s.scanner.TriggerScan(r.Context(), req)
	if err != nil {
		s.logger.Warn("security scan failed", "model", m.Key, "error", err)
		writeError(w, http.StatusBadGateway, fmt.Sprintf("scan failed: %v", err))
		return
	}
	writeJSON(w, http.StatusOK, Envelope[*dominoapi.ScanResponse, None]{Data: resp})
}

// refreshHandler handles POST /api/v1/refresh
func (s *Server) refreshHandler(w http.ResponseWriter, r *http.Request) {
	snap, err := s.refresher.RefreshNow(r.Context())
	if err != nil {
		var rle *dashboard.RateLimitError
		if errors.As(err, &rle) {
			w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(rle.RetryAfter.Seconds()))))
			writeError(w, http.StatusTooManyRequests, rle.Error())
			return
		}
		writeError(w, http.StatusBadGateway, fmt.Sprintf("refresh failed: %v", err))
		return
	}
	writeJSON(w, http.StatusOK, Envelope[RefreshResult, None]{
		Data: RefreshResult{LoadedAt: snap.LoadedAt, Source: snap.Source, Stats: snap.Stats},
	})
}

// userHandler handles GET /api/v1/user
func (s *Server) userHandler(w http.ResponseWriter, r *http.Request) {
	if s.users == nil {
		writeError(w, http.StatusNotImplemented, "user lookup is not configured")
		return
	}
	u, err := s.users.CurrentUser(r.Context())
	if err != nil {
		s.logger.Warn("current user lookup failed", "error", err)
		writeError(w, http.StatusBadGateway, fmt.Sprintf("user lookup failed: %v", err))
		return
	}
	writeJSON(w, http.StatusOK, Envelope[*dominoapi.User, None]{Data: u})
}

// modelKeyParam returns the unescaped {key} route parameter. chi matches on
// the raw path, so keys containing escaped characters arrive escaped.
func modelKeyParam(w http.ResponseWriter, r *http.Request) (string, bool) {
	key, err := url.PathUnescape(chi.URLParam(r, "key"))
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid model key: %v", err))
		return "", false
	}
	return key, true
}

func writeSnapshotError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, dashboard.ErrNoSnapshot):
		writeError(w, http.StatusServiceUnavailable, err.Error())
	case errors.Is(err, dashboard.ErrModelNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}
