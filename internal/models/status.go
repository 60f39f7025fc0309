// -----------------------------------------------------------------------
// Job Status Model - Canonical status records for automation jobs
// -----------------------------------------------------------------------

package models

import (
	"time"
)

// JobKind identifies the shape of an automation job.
type JobKind string

const (
	// JobKindSingle is a one-visit form-fill job.
	JobKindSingle JobKind = "single"
	// JobKindBatch is a multi-visit job driven from an uploaded file.
	JobKindBatch JobKind = "batch"
)

// JobStatus represents the state of an automation job.
// Status only moves forward: running -> completed | error.
type JobStatus string

const (
	JobStatusIdle      JobStatus = "idle"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusError     JobStatus = "error"
)

// statusRank orders statuses for forward-only transitions.
// Terminal states share the highest rank.
func statusRank(s JobStatus) int {
	switch s {
	case JobStatusIdle:
		return 0
	case JobStatusRunning:
		return 1
	case JobStatusCompleted, JobStatusError:
		return 2
	default:
		return 0
	}
}

// IsTerminal reports whether the status is a terminal state.
func (s JobStatus) IsTerminal() bool {
	return s == JobStatusCompleted || s == JobStatusError
}

// Advance returns next if it is a forward transition from s, otherwise s.
// Used to enforce the forward-only status invariant.
func (s JobStatus) Advance(next JobStatus) JobStatus {
	if statusRank(next) >= statusRank(s) {
		return next
	}
	return s
}

// JobHandle identifies a submitted automation job.
type JobHandle struct {
	JobID     string    `json:"job_id"`
	Kind      JobKind   `json:"kind"`
	CreatedAt time.Time `json:"created_at"`
}

// StoreInfo describes the site a batch job is visiting.
type StoreInfo struct {
	Name    string `json:"name,omitempty"`
	Address string `json:"address,omitempty"`
}

// RawStatusReport is the last-known status payload from the automation
// backend, prior to interpretation. The backend's payload shape varies by
// job kind and version; every field beyond Status is optional and unknown
// fields are ignored on decode.
type RawStatusReport struct {
	Status  JobStatus `json:"status"`
	Message string    `json:"message,omitempty"`
	Error   string    `json:"error,omitempty"`

	// Single-job fields
	VisitID   string `json:"visit_id,omitempty"`
	VisitName string `json:"visit_name,omitempty"`

	// Progress counters the backend sometimes reports directly.
	// When present these are authoritative over interpreted facts.
	DispenserCurrent *int   `json:"dispenser_current,omitempty"`
	DispenserTotal   *int   `json:"dispenser_total,omitempty"`
	FuelType         string `json:"fuel_type,omitempty"`
	FuelCurrent      *int   `json:"fuel_current,omitempty"`
	FuelTotal        *int   `json:"fuel_total,omitempty"`

	// Batch-job fields
	CompletedVisits *int       `json:"completed_visits,omitempty"`
	TotalVisits     *int       `json:"total_visits,omitempty"`
	StoreInfo       *StoreInfo `json:"store_info,omitempty"`
}

// ProgressFacts holds structured progress counters extracted from a
// free-text status message. Nil means the message said nothing about
// that field - never that the value is zero.
type ProgressFacts struct {
	DispenserCurrent *int   `json:"dispenser_current,omitempty"`
	DispenserTotal   *int   `json:"dispenser_total,omitempty"`
	FuelType         string `json:"fuel_type,omitempty"`
	FuelCurrent      *int   `json:"fuel_current,omitempty"`
	FuelTotal        *int   `json:"fuel_total,omitempty"`
}

// IsEmpty reports whether no fact was extracted.
func (f ProgressFacts) IsEmpty() bool {
	return f.DispenserCurrent == nil && f.DispenserTotal == nil &&
		f.FuelType == "" && f.FuelCurrent == nil && f.FuelTotal == nil
}

// Merge folds newer facts into f, keeping existing observations when the
// newer extraction came up empty. A field observed non-nil once is never
// reverted to nil by a later message that omits it.
func (f *ProgressFacts) Merge(newer ProgressFacts) {
	if newer.DispenserCurrent != nil {
		f.DispenserCurrent = newer.DispenserCurrent
	}
	if newer.DispenserTotal != nil {
		f.DispenserTotal = newer.DispenserTotal
	}
	if newer.FuelType != "" {
		f.FuelType = newer.FuelType
	}
	if newer.FuelCurrent != nil {
		f.FuelCurrent = newer.FuelCurrent
	}
	if newer.FuelTotal != nil {
		f.FuelTotal = newer.FuelTotal
	}
}

// UnifiedStatus is the single canonical, display-ready status record
// produced for both job kinds. The UI renders this and nothing else.
type UnifiedStatus struct {
	JobID     string    `json:"job_id"`
	Kind      JobKind   `json:"kind"`
	Status    JobStatus `json:"status"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`

	StartTime *time.Time `json:"start_time,omitempty"`
	EndTime   *time.Time `json:"end_time,omitempty"`

	// CurrentItem/TotalItems is the kind-independent progress axis:
	// dispensers for single jobs, visits for batch jobs.
	CurrentItem *int `json:"current_item,omitempty"`
	TotalItems  *int `json:"total_items,omitempty"`

	DispenserCurrent *int   `json:"dispenser_current,omitempty"`
	DispenserTotal   *int   `json:"dispenser_total,omitempty"`
	FuelType         string `json:"fuel_type,omitempty"`
	FuelCurrent      *int   `json:"fuel_current,omitempty"`
	FuelTotal        *int   `json:"fuel_total,omitempty"`

	VisitID   string `json:"visit_id,omitempty"`
	VisitName string `json:"visit_name,omitempty"`

	CompletedVisits *int `json:"completed_visits,omitempty"`
	TotalVisits     *int `json:"total_visits,omitempty"`
}
