// Package pipeline drives a fetch run over a date range.
//
// For every date the orchestrator resolves the media URL through the browser
// session, downloads it, optionally runs the refine stages on a working copy
// in the temp directory, and delivers the result. Per-date failures are mapped
// through services.FailureDisposition: a missing broadcast or an exhausted
// download only costs that date, anything else ends the run. Each outcome is
// written to the history ledger and counted in the run metrics.
//
// A run holds an exclusive file lock in the state directory so two fetches
// never write the same destination concurrently.
package pipeline
