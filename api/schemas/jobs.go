package schemas

import "time"

// JobTarget is one job posting queued for an application attempt. Source
// names the platform the posting came from and, when present, serves as a
// detection hint.
type JobTarget struct {
	ID      string `json:"id"`
	URL     string `json:"url"`
	Company string `json:"company,omitempty"`
	Title   string `json:"title,omitempty"`
	Source  string `json:"source,omitempty"`
}

// AttemptStatus is the terminal (or in-flight) disposition of a job attempt.
type AttemptStatus string

const (
	StatusPending   AttemptStatus = "pending"
	StatusRunning   AttemptStatus = "running"
	StatusSucceeded AttemptStatus = "succeeded"
	StatusSkipped   AttemptStatus = "skipped"
	StatusFailed    AttemptStatus = "failed"
	StatusAborted   AttemptStatus = "aborted"
)

// Terminal reports whether the status is a final disposition.
func (s AttemptStatus) Terminal() bool {
	switch s {
	case StatusSucceeded, StatusSkipped, StatusFailed, StatusAborted:
		return true
	}
	return false
}

// ScreenshotRef points at a captured checkpoint image inside a session dir.
type ScreenshotRef struct {
	Checkpoint string    `json:"checkpoint"`
	Path       string    `json:"path"`
	TakenAt    time.Time `json:"taken_at"`
}

// Screenshot checkpoint names, in the order they occur during an attempt.
const (
	ShotInitial         = "initial"
	ShotAfterApplyClick = "after_apply_click"
	ShotAfterFill       = "after_fill"
	ShotPreSubmit       = "pre_submit"
	ShotAfterSubmit     = "after_submit"
)

// AuditEvent is one timestamped entry in an attempt's event trail.
type AuditEvent struct {
	At      time.Time `json:"at"`
	State   string    `json:"state"`
	Message string    `json:"message"`
}

// JobAttempt is the full audited record of one application attempt.
type JobAttempt struct {
	Job         JobTarget       `json:"job"`
	Detection   DetectionResult `json:"detection"`
	Status      AttemptStatus   `json:"status"`
	Reason      string          `json:"reason,omitempty"`
	Resolved    []ResolvedValue `json:"resolved,omitempty"`
	Events      []AuditEvent    `json:"events,omitempty"`
	Screenshots []ScreenshotRef `json:"screenshots,omitempty"`
	StartedAt   time.Time       `json:"started_at"`
	FinishedAt  time.Time       `json:"finished_at,omitempty"`
}

// SessionRecord aggregates every attempt made during one process run.
type SessionRecord struct {
	SessionID  string       `json:"session_id"`
	StartedAt  time.Time    `json:"started_at"`
	FinishedAt time.Time    `json:"finished_at,omitempty"`
	Attempts   []JobAttempt `json:"attempts"`
}

// Tally summarizes attempts by terminal status.
func (s SessionRecord) Tally() map[AttemptStatus]int {
	out := make(map[AttemptStatus]int, 4)
	for _, a := range s.Attempts {
		out[a.Status]++
	}
	return out
}
