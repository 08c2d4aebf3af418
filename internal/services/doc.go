// Package services defines shared utilities consumed by the pipeline stages
// and external integrations.
//
// Key responsibilities:
//   - Context helpers that stamp run IDs, broadcast dates, and stage names for
//     logging.
//   - Structured error markers plus the Wrap helper that let the orchestrator
//     decide whether a failure skips a date or aborts the run.
//
// Use these helpers when wiring new stage logic so operational behaviour (error
// handling, observability, retries) stays uniform across the pipeline.
package services
