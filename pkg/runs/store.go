package runs

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Store provides database operations for load runs.
type Store struct {
	db *gorm.DB
}

// NewStore creates a new Store.
func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

// AutoMigrate creates or updates the load_runs table.
func (s *Store) AutoMigrate() error {
	return s.db.AutoMigrate(&Run{})
}

// ListFilter narrows List results.
type ListFilter struct {
	State   string
	Trigger string
}

// Start records a new running load cycle.
func (s *Store) Start(trigger Trigger) (*Run, error) {
	run := &Run{
		ID:        uuid.New().String(),
		Trigger:   trigger,
		State:     RunStateRunning,
		StartedAt: time.Now().UTC(),
	}
	if err := s.db.Create(run).Error; err != nil {
		return nil, fmt.Errorf("start run: %w", err)
	}
	return run, nil
}

// Complete marks a run as succeeded and stores its counts.
func (s *Store) Complete(runID string, st Stats) error {
	now := time.Now().UTC()
	result := s.db.Model(&Run{}).Where("id = ?", runID).Updates(map[string]any{
		"state":             RunStateSucceeded,
		"finished_at":       now,
		"source":            st.Source,
		"duration_ms":       st.Duration.Milliseconds(),
		"bundles_total":     st.BundlesTotal,
		"bundles_matched":   st.BundlesMatched,
		"policies_resolved": st.PoliciesResolved,
		"policies_failed":   st.PoliciesFailed,
		"evidence_failed":   st.EvidenceFailed,
		"models":            st.Models,
	})
	if result.Error != nil {
		return fmt.Errorf("complete run: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("run not found: %s", runID)
	}
	return nil
}

// Fail marks a run as failed.
func (s *Store) Fail(runID string, errMsg string, duration time.Duration) error {
	now := time.Now().UTC()
	result := s.db.Model(&Run{}).Where("id = ?", runID).Updates(map[string]any{
		"state":       RunStateFailed,
		"finished_at": now,
		"duration_ms": duration.Milliseconds(),
		"last_error":  errMsg,
	})
	if result.Error != nil {
		return fmt.Errorf("fail run: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("run not found: %s", runID)
	}
	return nil
}

// Get retrieves a run by ID. It returns nil when the run does not exist.
func (s *Store) Get(runID string) (*Run, error) {
	var run Run
	if err := s.db.First(&run, "id = ?", runID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("get run: %w", err)
	}
	return &run, nil
}

// Latest returns the most recently finished run, or nil when none exists.
func (s *Store) Latest() (*Run, error) {
	var run Run
	err := s.db.Where("state IN ?", []RunState{RunStateSucceeded, RunStateFailed}).
		Order("started_at DESC").
		Order("id DESC").
		First(&run).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("latest run: %w", err)
	}
	return &run, nil
}

// List returns runs newest first, ties broken by id. The page token is the
// start time and id of the last run of the previous page.
func (s *Store) List(filter ListFilter, pageSize int, pageToken string) ([]Run, string, int, error) {
	if pageSize <= 0 {
		pageSize = 20
	}
	if pageSize > 100 {
		pageSize = 100
	}

	buildQuery := func(base *gorm.DB) *gorm.DB {
		q := base.Model(&Run{})
		if filter.State != "" {
			q = q.Where("state = ?", filter.State)
		}
		if filter.Trigger != "" {
			q = q.Where("trigger_name = ?", filter.Trigger)
		}
		return q
	}

	var totalSize int64
	if err := buildQuery(s.db).Count(&totalSize).Error; err != nil {
		return nil, "", 0, fmt.Errorf("count runs: %w", err)
	}

	query := buildQuery(s.db).Order("started_at DESC").Order("id DESC").Limit(pageSize + 1)
	if pageToken != "" {
		t, id, err := decodePageToken(pageToken)
		if err != nil {
			return nil, "", 0, err
		}
		query = query.Where("(started_at < ? OR (started_at = ? AND id < ?))", t, t, id)
	}

	var records []Run
	if err := query.Find(&records).Error; err != nil {
		return nil, "", 0, fmt.Errorf("list runs: %w", err)
	}

	var nextToken string
	if len(records) > pageSize {
		nextToken = encodePageToken(&records[pageSize-1])
		records = records[:pageSize]
	}

	return records, nextToken, int(totalSize), nil
}

func encodePageToken(last *Run) string {
	return last.StartedAt.UTC().Format(time.RFC3339Nano) + "_" + last.ID
}

func decodePageToken(token string) (time.Time, string, error) {
	ts, id, ok := strings.Cut(token, "_")
	if !ok || id == "" {
		return time.Time{}, "", fmt.Errorf("invalid page token %q", token)
	}
	t, err := time.Parse(time.RFC3339Nano, ts)
	if err != nil {
		return time.Time{}, "", fmt.Errorf("invalid page token: %w", err)
	}
	return t.UTC(), id, nil
}

// AbandonRunning marks runs left running by a previous process as abandoned.
func (s *Store) AbandonRunning() (int64, error) {
	now := time.Now().UTC()
	result := s.db.Model(&Run{}).
		Where("state = ?", RunStateRunning).
		Updates(map[string]any{
			"state":       RunStateAbandoned,
			"finished_at": now,
			"last_error":  "interrupted by shutdown",
		})
	if result.Error != nil {
		return 0, fmt.Errorf("abandon running runs: %w", result.Error)
	}
	return result.RowsAffected, nil
}

// DeleteOlderThan removes finished runs that started before cutoff.
func (s *Store) DeleteOlderThan(cutoff time.Time) (int64, error) {
	result := s.db.Where("state IN ? AND started_at < ?",
		[]RunState{RunStateSucceeded, RunStateFailed, RunStateAbandoned}, cutoff).
		Delete(&Run{})
	if result.Error != nil {
		return 0, fmt.Errorf("delete old runs: %w", result.Error)
	}
	return result.RowsAffected, nil
}
