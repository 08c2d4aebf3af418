package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var (
	ErrExternalTool  = errors.New("external tool error")
	ErrValidation    = errors.New("validation error")
	ErrConfiguration = errors.New("configuration error")
	ErrNotFound      = errors.New("not found")
	ErrTimeout       = errors.New("timeout")
	ErrTransient     = errors.New("transient failure")
)

// Wrap builds an error message that includes stage context while tagging it with
// the provided marker for later classification. The marker should be one of the
// exported sentinel errors above.
func Wrap(marker error, stage, operation, message string, err error) error {
	detail := buildDetail(stage, operation, message)
	if marker == nil {
		marker = ErrTransient
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// Disposition describes how the range loop reacts to a per-date failure.
type Disposition int

const (
	// DispositionAbort stops the run; remaining dates are not attempted.
	DispositionAbort Disposition = iota
	// DispositionSkip records the failure and moves on to the next date.
	DispositionSkip
)

func (d Disposition) String() string {
	switch d {
	case DispositionSkip:
		return "skip"
	default:
		return "abort"
	}
}

// FailureDisposition maps a per-date error to the action the orchestrator takes.
// Missing broadcasts and exhausted transfers only cost the current date;
// configuration problems, transport failures and cancellation end the run.
func FailureDisposition(err error) Disposition {
	switch {
	case err == nil:
		return DispositionSkip
	case errors.Is(err, context.Canceled), errors.Is(err, ErrConfiguration):
		return DispositionAbort
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrValidation):
		return DispositionSkip
	default:
		return DispositionAbort
	}
}

func buildDetail(stage, operation, message string) string {
	parts := make([]string, 0, 3)
	if stage = strings.TrimSpace(stage); stage != "" {
		parts = append(parts, stage)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
