package download

import (
	"errors"
	"fmt"

	"kctvfetch/internal/services"
)

var (
	// ErrDownloadIncomplete is returned once every attempt ended short of the
	// declared length.
	ErrDownloadIncomplete = fmt.Errorf("%w: download incomplete", services.ErrValidation)
	// ErrInsufficientSpace is returned when the destination cannot hold the
	// declared length.
	ErrInsufficientSpace = fmt.Errorf("%w: insufficient free space", services.ErrConfiguration)

	errLengthUnknown = errors.New("server did not declare a content length")
	errShortBody     = errors.New("body ended before declared length")
	errIdleTimeout   = errors.New("no data received within read timeout")
)

// HTTPStatusError reports a non-2xx response. It is never retried.
type HTTPStatusError struct {
	URL        string
	StatusCode int
	Status     string
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("download %s: unexpected status %s", e.URL, e.Status)
}

// Is classifies status failures as external tool errors.
func (e *HTTPStatusError) Is(target error) bool {
	return target == services.ErrExternalTool
}
