package pipeline

import "tubeask/internal/runs"

// Stage identifies a phase of a pipeline run.
type Stage string

const (
	StageIdle       Stage = "idle"
	StageSubmitting Stage = "submitting"
	StagePolling    Stage = "polling"
	StageUploading  Stage = "uploading"
	StageQuerying   Stage = "querying"
	StageDone       Stage = "done"
	StageFailed     Stage = "failed"
)

// stageTransitions lists the legal forward edges of the run state machine.
// Idle may jump straight to querying when a cached artifact handle answers
// for the video, and uploading may finish a run that carries no question.
// Every non-terminal stage may additionally move to failed.
var stageTransitions = map[Stage][]Stage{
	StageIdle:       {StageSubmitting, StageQuerying},
	StageSubmitting: {StagePolling},
	StagePolling:    {StageUploading},
	StageUploading:  {StageQuerying, StageDone},
	StageQuerying:   {StageDone},
}

// Terminal reports whether the stage ends a run.
func (s Stage) Terminal() bool {
	return s == StageDone || s == StageFailed
}

// CanTransition reports whether the machine may move from s to next.
func (s Stage) CanTransition(next Stage) bool {
	if s.Terminal() {
		return false
	}
	if next == StageFailed {
		return true
	}
	for _, allowed := range stageTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// RunStatus maps a stage to the ledger status recorded for it.
func (s Stage) RunStatus() runs.Status {
	switch s {
	case StageSubmitting:
		return runs.StatusSubmitting
	case StagePolling:
		return runs.StatusPolling
	case StageUploading:
		return runs.StatusUploading
	case StageQuerying:
		return runs.StatusQuerying
	case StageDone:
		return runs.StatusCompleted
	case StageFailed:
		return runs.StatusFailed
	default:
		return runs.StatusPending
	}
}
