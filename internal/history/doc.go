// Package history records the outcome of every date a run touches in a small
// SQLite ledger under the state directory.
//
// One row is kept per broadcast date and overwritten by later runs, so the
// ledger answers "what happened to this day last time" and feeds the history
// command and run summaries.
package history
