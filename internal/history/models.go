package history

import (
	"time"

	"kctvfetch/internal/broadcast"
)

// Status is the recorded outcome for a date.
type Status string

const (
	StatusDelivered  Status = "delivered"
	StatusExisting   Status = "existing"
	StatusNotFound   Status = "not_found"
	StatusIncomplete Status = "incomplete"
	StatusFailed     Status = "failed"
)

var allStatuses = []Status{
	StatusDelivered,
	StatusExisting,
	StatusNotFound,
	StatusIncomplete,
	StatusFailed,
}

// Statuses lists every recorded status in display order.
func Statuses() []Status {
	out := make([]Status, len(allStatuses))
	copy(out, allStatuses)
	return out
}

// Succeeded reports whether the date ended with a file on disk.
func (s Status) Succeeded() bool {
	return s == StatusDelivered || s == StatusExisting
}

// Record is one ledger row.
type Record struct {
	Date      broadcast.Date
	Status    Status
	RunID     string
	MediaURL  string
	FilePath  string
	Bytes     int64
	Attempts  int
	Offsets   []int
	Stages    []string
	Error     string
	UpdatedAt time.Time
}
