// Package pipeline drives a video through transcript extraction, artifact
// registration, and grounded question answering.
//
// The Orchestrator owns the per-run state machine (idle, submitting, polling,
// uploading, querying, done, with failed absorbing from every non-terminal
// stage). Each run gets a correlation key, stamps run key, stage, and video id
// into the context for logging, and mirrors its progress to the run ledger
// when one is attached. Ledger and handle cache problems are reported and
// swallowed; only the backend clients can fail a run.
//
// Failures keep the stage they happened in: every error returned from a run
// is a *Failure wrapping the services sentinel that classifies it.
package pipeline
