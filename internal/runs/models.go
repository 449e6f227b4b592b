package runs

import (
	"strings"
	"time"
)

// Status represents the lifecycle of a recorded pipeline run.
type Status string

const (
	StatusPending    Status = "pending"
	StatusSubmitting Status = "submitting"
	StatusPolling    Status = "polling"
	StatusUploading  Status = "uploading"
	StatusQuerying   Status = "querying"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

var allStatuses = []Status{
	StatusPending,
	StatusSubmitting,
	StatusPolling,
	StatusUploading,
	StatusQuerying,
	StatusCompleted,
	StatusFailed,
}

var statusSet = func() map[Status]struct{} {
	set := make(map[Status]struct{}, len(allStatuses))
	for _, status := range allStatuses {
		set[status] = struct{}{}
	}
	return set
}()

var processingStatuses = map[Status]struct{}{
	StatusSubmitting: {},
	StatusPolling:    {},
	StatusUploading:  {},
	StatusQuerying:   {},
}

// AllStatuses returns the ordered list of known statuses.
func AllStatuses() []Status {
	cp := make([]Status, len(allStatuses))
	copy(cp, allStatuses)
	return cp
}

// ParseStatus converts a string into a known Status.
func ParseStatus(value string) (Status, bool) {
	normalized := Status(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "" {
		return "", false
	}
	_, ok := statusSet[normalized]
	return normalized, ok
}

// IsProcessingStatus reports whether a status reflects an in-flight stage.
func IsProcessingStatus(status Status) bool {
	_, ok := processingStatuses[status]
	return ok
}

// Run represents one pipeline execution persisted in SQLite. Only metadata is
// recorded; transcript and answer text never land in the ledger.
type Run struct {
	ID           int64
	RunKey       string
	VideoURL     string
	VideoID      string
	Question     string
	Status       Status
	FailureKind  string
	JobID        string
	ArtifactName string
	ArtifactURI  string
	Title        string
	Channel      string
	ErrorMessage string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// IsProcessing returns true when the run is mid-pipeline.
func (r Run) IsProcessing() bool {
	return IsProcessingStatus(r.Status)
}

// SetFailed marks the run as failed with its classification token and message.
func (r *Run) SetFailed(kind, message string) {
	r.Status = StatusFailed
	r.FailureKind = kind
	r.ErrorMessage = message
}

// HealthSummary describes aggregated run counts per key lifecycle states.
type HealthSummary struct {
	Total      int
	Processing int
	Completed  int
	Failed     int
}
