// Package services defines shared utilities consumed by the pipeline stages
// and external integrations.
//
// Key responsibilities:
//   - Context helpers that stamp run keys, stage names, and video identifiers
//     for logging and tracing.
//   - Structured error markers plus the Wrap helper that tag failures with a
//     stable classification the CLI and run ledger can act on.
//
// Use these helpers when wiring new stage logic so operational behaviour
// (error handling, observability, retries) stays uniform across the pipeline.
package services
