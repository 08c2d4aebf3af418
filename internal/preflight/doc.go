// Package preflight provides readiness checks for the directories, executables
// and recognition service a fetch run depends on.
//
// The fetch command calls RunAll before opening the browser so a run with a
// missing temp directory or OCR key fails in seconds instead of after a
// multi-gigabyte download. The "kctvfetch check" command prints the same
// results as a table.
//
// Each check is gated by its config toggle; disabled features are skipped.
package preflight
