// Package runs records pipeline executions in a SQLite ledger.
//
// Each run carries its correlation key, the video reference, the lifecycle
// status it reached, and the identifiers the external services handed back
// (actor run id, artifact name and uri). Recording is best-effort from the
// pipeline's point of view; the ledger exists for the history and doctor
// commands, never as pipeline state.
package runs
