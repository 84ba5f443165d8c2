package entity

import "time"

// SessionStatus is the lifecycle status of one extraction run.
type SessionStatus string

const (
	SessionRunning  SessionStatus = "running"
	SessionStalled  SessionStatus = "stalled"
	SessionComplete SessionStatus = "complete"
	SessionFailed   SessionStatus = "failed"
)

// ExtractionSession holds the state of a single harvest run: the target
// query, the ordered records accumulated so far and the stable-height counter
// used to detect end-of-results.
type ExtractionSession struct {
	Query             string
	Location          string
	Records           []*BusinessRecord
	Status            SessionStatus
	StableHeightCount int
	ListingsFound     int
	ListingsSkipped   int
	StartedAt         time.Time
	EndedAt           time.Time
}

// Phase names reported on the progress stream.
const (
	PhaseAwaitingReady = "awaiting-ready"
	PhaseLoadingMore   = "loading-more"
	PhaseExtracting    = "extracting"
	PhaseComplete      = "complete"
	PhaseFailed        = "failed"
)

// ProgressEvent is a one-way notification emitted while a session runs.
type ProgressEvent struct {
	JobID             string `json:"job_id"`
	Phase             string `json:"phase"`
	ListingsFound     int    `json:"listings_found"`
	ListingsExtracted int    `json:"listings_extracted"`
}
