// Package download streams a broadcast to disk with bounded, verified retries.
package download

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"

	"kctvfetch/internal/broadcast"
	"kctvfetch/internal/logging"
	"kctvfetch/internal/services"
)

const (
	defaultAttempts   = 3
	defaultChunkBytes = 8192
	defaultTimeout    = 60 * time.Second
)

// ProgressFunc receives the bytes written so far and the declared total
// (-1 when unknown) after every chunk.
type ProgressFunc func(written, total int64)

// Request describes one download.
type Request struct {
	URL        string
	Date       broadcast.Date
	Dir        string
	Timeout    time.Duration
	Temporary  bool
	Overwrite  bool
	KeepFailed bool
	Progress   ProgressFunc
}

// FileName returns the destination file name for the request.
func (r Request) FileName() string {
	if r.Temporary {
		return r.Date.TempFileName()
	}
	return r.Date.FinalFileName()
}

// Outcome summarises a download. Path is the destination; a file exists there
// only when Complete, Skipped, or when KeepFailed retained a partial transfer.
type Outcome struct {
	Path     string
	Bytes    int64
	Complete bool
	Skipped  bool
	Attempts int
}

// Options configures a Downloader.
type Options struct {
	Attempts   int
	ChunkBytes int
	// Client overrides the per-timeout hardened client. Tests pass httptest clients.
	Client *http.Client
	// FreeSpace reports available bytes for a directory. Nil uses the platform check.
	FreeSpace func(dir string) (uint64, error)
	Logger    *slog.Logger
}

// Downloader fetches media URLs to local files.
type Downloader struct {
	attempts   int
	chunkBytes int
	client     *http.Client
	freeSpace  func(string) (uint64, error)
	logger     *slog.Logger
}

// New constructs a Downloader.
func New(opts Options) *Downloader {
	d := &Downloader{
		attempts:   opts.Attempts,
		chunkBytes: opts.ChunkBytes,
		client:     opts.Client,
		freeSpace:  opts.FreeSpace,
		logger:     logging.NewComponentLogger(opts.Logger, "download"),
	}
	if d.attempts <= 0 {
		d.attempts = defaultAttempts
	}
	if d.chunkBytes <= 0 {
		d.chunkBytes = defaultChunkBytes
	}
	if d.freeSpace == nil {
		d.freeSpace = FreeSpace
	}
	return d
}

// attemptState tags how a single attempt ended.
type attemptState int

const (
	attemptComplete attemptState = iota
	attemptRetryable
	attemptExhausted
)

func (s attemptState) String() string {
	switch s {
	case attemptComplete:
		return "complete"
	case attemptRetryable:
		return "retryable"
	default:
		return "exhausted"
	}
}

type attemptResult struct {
	state    attemptState
	written  int64
	declared int64
	reason   error
}

// Download fetches req.URL into req.Dir. Transport and status failures are
// returned immediately; short transfers are retried and finally reported as
// ErrDownloadIncomplete alongside the outcome.
func (d *Downloader) Download(ctx context.Context, req Request) (Outcome, error) {
	ctx = services.WithStage(services.WithDate(ctx, req.Date.Time()), "download")
	logger := logging.WithContext(ctx, d.logger)

	path := filepath.Join(req.Dir, req.FileName())
	outcome := Outcome{Path: path}

	if _, err := os.Stat(path); err == nil {
		if !req.Overwrite {
			logger.Info("download skipped; file exists",
				logging.String("path", path),
				logging.String(logging.FieldEventType, "download_skipped"),
			)
			outcome.Skipped = true
			return outcome, nil
		}
		if err := os.Remove(path); err != nil {
			return outcome, services.Wrap(services.ErrConfiguration, "download", "replace", "Failed to remove existing file", err)
		}
		logger.Info("replacing existing file", logging.String("path", path))
	} else if !errors.Is(err, fs.ErrNotExist) {
		return outcome, services.Wrap(services.ErrConfiguration, "download", "stat", "Failed to inspect destination", err)
	}

	if err := os.MkdirAll(req.Dir, 0o755); err != nil {
		return outcome, services.Wrap(services.ErrConfiguration, "download", "mkdir", "Failed to create destination directory", err)
	}

	timeout := req.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	client := d.client
	if client == nil {
		client = NewClient(timeout)
	}

	logger.Info("download starting",
		logging.String("url", req.URL),
		logging.String("path", path),
		logging.Duration("timeout", timeout),
	)

	for attempt := 1; ; attempt++ {
		outcome.Attempts = attempt
		res, err := d.attempt(ctx, client, req, path, timeout)
		outcome.Bytes = res.written
		if err != nil {
			d.discard(path, req.KeepFailed && res.written > 0, logger)
			return outcome, err
		}
		if res.state == attemptComplete {
			outcome.Complete = true
			logger.Info("download complete",
				logging.String("path", path),
				logging.Int64("bytes", res.written),
				logging.Bytes("size", res.written),
				logging.Int("attempts", attempt),
				logging.String(logging.FieldEventType, "download_complete"),
			)
			return outcome, nil
		}
		if attempt >= d.attempts {
			res.state = attemptExhausted
		}

		d.discard(path, req.KeepFailed, logger)
		logging.WarnWithContext(logger, "download attempt incomplete", "download_incomplete",
			logging.Int("attempt", attempt),
			logging.Int("max_attempts", d.attempts),
			logging.Int64("bytes", res.written),
			logging.Int64("declared", res.declared),
			logging.String("state", res.state.String()),
			logging.Error(res.reason),
			logging.String(logging.FieldErrorHint, "check network stability or raise download.timeout_ms"),
			logging.String(logging.FieldImpact, impactFor(res.state)),
		)
		if res.state == attemptExhausted {
			return outcome, fmt.Errorf("%w: %s after %d attempts: %w", ErrDownloadIncomplete, req.URL, attempt, res.reason)
		}
	}
}

func impactFor(state attemptState) string {
	if state == attemptExhausted {
		return "broadcast date abandoned"
	}
	return "download will be retried"
}

// attempt performs one GET. A non-nil error is fatal; otherwise the result
// state says whether the transfer finished.
func (d *Downloader) attempt(ctx context.Context, client *http.Client, req Request, path string, timeout time.Duration) (attemptResult, error) {
	attemptCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(attemptCtx, http.MethodGet, req.URL, nil)
	if err != nil {
		return attemptResult{}, services.Wrap(services.ErrValidation, "download", "build request", "Invalid media URL", err)
	}

	resp, err := client.Do(httpReq)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return attemptResult{}, ctxErr
		}
		return attemptResult{}, services.Wrap(services.ErrExternalTool, "download", "request", "Failed to reach media server", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return attemptResult{}, &HTTPStatusError{URL: req.URL, StatusCode: resp.StatusCode, Status: resp.Status}
	}

	declared := resp.ContentLength
	if declared > 0 {
		if err := d.ensureSpace(req.Dir, declared); err != nil {
			return attemptResult{}, err
		}
	}

	file, err := os.Create(path)
	if err != nil {
		return attemptResult{}, services.Wrap(services.ErrConfiguration, "download", "create", "Failed to create destination file", err)
	}

	body := newIdleReader(resp.Body, timeout, cancel)
	defer body.Stop()

	written, readErr := d.copy(file, body, declared, req.Progress)
	if closeErr := file.Close(); closeErr != nil && readErr == nil {
		return attemptResult{written: written}, services.Wrap(services.ErrConfiguration, "download", "close", "Failed to flush destination file", closeErr)
	}

	var writeErr *writeError
	switch {
	case errors.As(readErr, &writeErr):
		return attemptResult{written: written}, services.Wrap(services.ErrConfiguration, "download", "write", "Failed to write destination file", writeErr.err)
	case readErr != nil && ctx.Err() != nil:
		return attemptResult{written: written}, ctx.Err()
	case readErr != nil:
		return attemptResult{state: attemptRetryable, written: written, declared: declared, reason: readErr}, nil
	case declared < 0:
		return attemptResult{state: attemptRetryable, written: written, declared: declared, reason: errLengthUnknown}, nil
	case written != declared:
		return attemptResult{state: attemptRetryable, written: written, declared: declared, reason: errShortBody}, nil
	default:
		return attemptResult{state: attemptComplete, written: written, declared: declared}, nil
	}
}

type writeError struct{ err error }

func (e *writeError) Error() string { return e.err.Error() }

func (d *Downloader) copy(dst io.Writer, src io.Reader, declared int64, progress ProgressFunc) (int64, error) {
	buf := make([]byte, d.chunkBytes)
	var written int64
	for {
		n, err := src.Read(buf)
		if n > 0 {
			if _, werr := dst.Write(buf[:n]); werr != nil {
				return written, &writeError{err: werr}
			}
			written += int64(n)
			if progress != nil {
				progress(written, declared)
			}
		}
		if err == io.EOF {
			return written, nil
		}
		if err != nil {
			return written, err
		}
	}
}

func (d *Downloader) ensureSpace(dir string, need int64) error {
	avail, err := d.freeSpace(dir)
	if err != nil {
		d.logger.Debug("free space check unavailable", logging.Error(err))
		return nil
	}
	if avail < uint64(need) {
		return fmt.Errorf("%w: need %s, %s available in %s", ErrInsufficientSpace,
			humanize.IBytes(uint64(need)), humanize.IBytes(avail), dir)
	}
	return nil
}

func (d *Downloader) discard(path string, keep bool, logger *slog.Logger) {
	if keep {
		logger.Debug("keeping partial file", logging.String("path", path))
		return
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		logging.WarnWithContext(logger, "failed to remove partial file", "download_cleanup_failed",
			logging.String("path", path),
			logging.Error(err),
			logging.String(logging.FieldImpact, "partial file remains on disk"),
		)
	}
}
