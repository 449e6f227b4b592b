package apify

import (
	"fmt"
	"strings"
	"time"
)

// Status represents the lifecycle of a transcript-extraction job.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
	StatusTimedOut  Status = "timed_out"
)

// Terminal reports whether the status admits no further transitions.
func (s Status) Terminal() bool {
	switch s {
	case StatusSucceeded, StatusFailed, StatusTimedOut:
		return true
	default:
		return false
	}
}

// ParseRemoteStatus maps an Apify run status onto the job lifecycle. READY runs
// have not started yet; FAILED, ABORTED, and TIMED-OUT all count as remote
// failures. Anything unrecognized is treated as still running.
func ParseRemoteStatus(value string) Status {
	switch strings.ToUpper(strings.TrimSpace(value)) {
	case "READY":
		return StatusPending
	case "SUCCEEDED":
		return StatusSucceeded
	case "FAILED", "ABORTED", "TIMED-OUT":
		return StatusFailed
	default:
		return StatusRunning
	}
}

// Job tracks a single actor run from submission to a terminal status.
type Job struct {
	ID           string
	Status       Status
	RemoteStatus string
	DatasetID    string
	StartedAt    time.Time
}

// advance moves the job to the next status. Terminal statuses are final; any
// attempt to leave one is a programming error and is rejected.
func (j *Job) advance(next Status, remote string) error {
	if j.Status.Terminal() && next != j.Status {
		return fmt.Errorf("job %s: cannot leave terminal status %s", j.ID, j.Status)
	}
	j.Status = next
	if remote != "" {
		j.RemoteStatus = remote
	}
	return nil
}

// Transcript is the captured caption track plus the video metadata the actor
// scrapes alongside it.
type Transcript struct {
	Title   string
	Channel string
	Text    string
}
