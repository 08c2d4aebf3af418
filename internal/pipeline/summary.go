package pipeline

import (
	"time"

	"kctvfetch/internal/broadcast"
	"kctvfetch/internal/history"
)

// DateResult is the outcome of one date.
type DateResult struct {
	Date     broadcast.Date
	Status   history.Status
	MediaURL string
	Path     string
	Bytes    int64
	Attempts int
	Offsets  []int
	Phase    string
	Applied  []string
	Failed   []string
	Err      error
}

// Summary reports a whole run.
type Summary struct {
	RunID    string
	Started  time.Time
	Finished time.Time
	Results  []DateResult
	// Aborted is set when a failure ended the run before the range was exhausted.
	Aborted bool
}

// Counts tallies results by status.
func (s Summary) Counts() map[history.Status]int {
	counts := make(map[history.Status]int, len(s.Results))
	for _, r := range s.Results {
		counts[r.Status]++
	}
	return counts
}

// Bytes totals bytes delivered during the run.
func (s Summary) Bytes() int64 {
	var total int64
	for _, r := range s.Results {
		if r.Status == history.StatusDelivered {
			total += r.Bytes
		}
	}
	return total
}

// Elapsed returns the run's wall time.
func (s Summary) Elapsed() time.Duration {
	if s.Finished.IsZero() {
		return 0
	}
	return s.Finished.Sub(s.Started)
}
