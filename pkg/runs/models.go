package runs

import (
	"time"
)

// RunState is the lifecycle state of a dashboard load cycle.
type RunState string

const (
	RunStateRunning   RunState = "running"
	RunStateSucceeded RunState = "succeeded"
	RunStateFailed    RunState = "failed"
	RunStateAbandoned RunState = "abandoned"
)

// Trigger names what started a load cycle.
type Trigger string

const (
	TriggerStartup   Trigger = "startup"
	TriggerScheduled Trigger = "scheduled"
	TriggerManual    Trigger = "manual"
	TriggerFixture   Trigger = "fixture-reload"
)

// Run is the GORM model for one load cycle. Only counts are kept; the
// aggregated models themselves are never persisted.
type Run struct {
	ID               string     `gorm:"primaryKey;column:id;type:varchar(36)" json:"id"`
	Trigger          Trigger    `gorm:"column:trigger_name;not null" json:"trigger"`
	Source           string     `gorm:"column:source" json:"source,omitempty"`
	State            RunState   `gorm:"column:state;index:idx_run_state;not null;default:running" json:"state"`
	StartedAt        time.Time  `gorm:"column:started_at;index:idx_run_started;not null" json:"startedAt"`
	FinishedAt       *time.Time `gorm:"column:finished_at" json:"finishedAt,omitempty"`
	DurationMs       int64      `gorm:"column:duration_ms" json:"durationMs"`
	BundlesTotal     int        `gorm:"column:bundles_total" json:"bundlesTotal"`
	BundlesMatched   int        `gorm:"column:bundles_matched" json:"bundlesMatched"`
	PoliciesResolved int        `gorm:"column:policies_resolved" json:"policiesResolved"`
	PoliciesFailed   int        `gorm:"column:policies_failed" json:"policiesFailed"`
	EvidenceFailed   int        `gorm:"column:evidence_failed" json:"evidenceFailed"`
	Models           int        `gorm:"column:models" json:"models"`
	LastError        string     `gorm:"column:last_error" json:"lastError,omitempty"`
}

// TableName returns the GORM table name.
func (Run) TableName() string { return "load_runs" }

// IsTerminal returns true if the run has finished.
func (r *Run) IsTerminal() bool {
	switch r.State {
	case RunStateSucceeded, RunStateFailed, RunStateAbandoned:
		return true
	}
	return false
}

// Stats are the counts recorded for a successful run.
type Stats struct {
	Source           string
	BundlesTotal     int
	BundlesMatched   int
	PoliciesResolved int
	PoliciesFailed   int
	EvidenceFailed   int
	Models           int
	Duration         time.Duration
}
