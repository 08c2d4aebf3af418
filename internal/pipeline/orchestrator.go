package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"kctvfetch/internal/broadcast"
	"kctvfetch/internal/browser"
	"kctvfetch/internal/config"
	"kctvfetch/internal/download"
	"kctvfetch/internal/history"
	"kctvfetch/internal/logging"
	"kctvfetch/internal/metrics"
	"kctvfetch/internal/refine"
	"kctvfetch/internal/resolver"
	"kctvfetch/internal/services"
	"kctvfetch/internal/staging"
)

// staleWorkingAge is how old leftover working files must be before a run
// removes them from the temp directory.
const staleWorkingAge = 72 * time.Hour

// SessionOpener starts a navigation session and returns it with its release
// function.
type SessionOpener func(ctx context.Context) (browser.Navigator, func() error, error)

// Downloader fetches one media URL.
type Downloader interface {
	Download(ctx context.Context, req download.Request) (download.Outcome, error)
}

// Ledger persists per-date outcomes. Get returns nil for a date never
// recorded.
type Ledger interface {
	Put(ctx context.Context, rec history.Record) error
	Get(ctx context.Context, date broadcast.Date) (*history.Record, error)
}

// Deps wires the orchestrator's collaborators.
type Deps struct {
	Config     *config.Config
	Open       SessionOpener
	Downloader Downloader
	// Stages run in order on the working copy when processing is enabled.
	Stages  []refine.Stage
	History Ledger
	Metrics *metrics.Recorder
	// Progress returns the progress callback for a date's download. Optional.
	Progress func(date broadcast.Date) download.ProgressFunc
	Logger   *slog.Logger
	// Now defaults to time.Now.
	Now func() time.Time
}

// Plan is what a run should fetch.
type Plan struct {
	Destination string
	Range       broadcast.Range
}

// Orchestrator runs plans.
type Orchestrator struct {
	deps   Deps
	cfg    *config.Config
	logger *slog.Logger
	now    func() time.Time
}

// New constructs an orchestrator.
func New(deps Deps) (*Orchestrator, error) {
	if deps.Config == nil {
		return nil, errors.New("pipeline requires a config")
	}
	if deps.Open == nil || deps.Downloader == nil {
		return nil, errors.New("pipeline requires a session opener and a downloader")
	}
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	return &Orchestrator{
		deps:   deps,
		cfg:    deps.Config,
		logger: logging.NewComponentLogger(deps.Logger, "pipeline"),
		now:    now,
	}, nil
}

// Run fetches every date in plan.Range. It returns the summary together with
// the error that aborted the run, if any.
func (o *Orchestrator) Run(ctx context.Context, plan Plan) (Summary, error) {
	runID, ok := services.RunIDFromContext(ctx)
	if !ok {
		runID = uuid.NewString()
		ctx = services.WithRunID(ctx, runID)
	}
	summary := Summary{RunID: runID, Started: o.now()}
	logger := logging.WithContext(ctx, o.logger)

	finish := func(err error) (Summary, error) {
		summary.Finished = o.now()
		summary.Aborted = err != nil
		o.deps.Metrics.RunFinished(summary.Started, summary.Finished, summary.Aborted)
		if werr := o.deps.Metrics.WriteTextfile(o.cfg.Metrics.Textfile); werr != nil {
			logging.WarnWithContext(logger, "failed to write metrics textfile", "metrics_write_failed",
				logging.Error(werr),
				logging.String(logging.FieldErrorHint, "check metrics.textfile directory permissions"),
			)
		}
		return summary, err
	}

	if err := o.checkPlan(plan); err != nil {
		return finish(err)
	}
	if err := o.cfg.EnsureDirectories(); err != nil {
		return finish(services.Wrap(services.ErrConfiguration, "pipeline", "create state dir", "State directory unavailable", err))
	}
	lock, err := AcquireLock(o.cfg.LockPath())
	if err != nil {
		return finish(err)
	}
	defer func() {
		if err := lock.Release(); err != nil {
			logger.Debug("lock release failed", logging.Error(err))
		}
	}()

	processing := o.cfg.ProcessingEnabled()
	if processing && o.cfg.Processing.CleanTemp {
		staging.CleanStale(ctx, o.cfg.Paths.TempDir, staleWorkingAge, logger)
	}

	logger.Info("run started",
		logging.String("start", plan.Range.Start.String()),
		logging.String("end", plan.Range.End.String()),
		logging.Int("days", plan.Range.Days()),
		logging.String("destination", plan.Destination),
		logging.Bool("processing", processing),
		logging.String(logging.FieldEventType, "run_start"),
	)

	nav, release, err := o.deps.Open(ctx)
	if err != nil {
		return finish(err)
	}
	defer func() {
		if err := release(); err != nil {
			logger.Debug("browser release failed", logging.Error(err))
		}
	}()
	res := resolver.New(nav, o.cfg.Site, resolver.Options{Nudge: o.cfg.Browser.Nudge}, o.deps.Logger)

	for date := range plan.Range.All() {
		if err := ctx.Err(); err != nil {
			return finish(err)
		}
		dateCtx := services.WithDate(ctx, date.Time())
		result, err := o.processDate(dateCtx, res, plan, date, processing)
		summary.Results = append(summary.Results, result)
		o.record(dateCtx, runID, result)

		if err == nil {
			continue
		}
		dateLogger := logging.WithContext(dateCtx, o.logger)
		if services.FailureDisposition(err) == services.DispositionSkip {
			logging.WarnWithContext(dateLogger, "date skipped", "date_skipped",
				logging.String("status", string(result.Status)),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, hintFor(result.Status)),
				logging.String(logging.FieldImpact, "no broadcast saved for this date"),
			)
			continue
		}
		logging.ErrorWithContext(dateLogger, "run aborted", "run_aborted",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "fix the reported problem and rerun the remaining dates"),
		)
		return finish(err)
	}

	counts := summary.Counts()
	logger.Info("run complete",
		logging.Int("delivered", counts[history.StatusDelivered]),
		logging.Int("existing", counts[history.StatusExisting]),
		logging.Int("not_found", counts[history.StatusNotFound]),
		logging.Int("incomplete", counts[history.StatusIncomplete]),
		logging.Bytes("bytes", summary.Bytes()),
		logging.String(logging.FieldEventType, "run_complete"),
	)
	return finish(nil)
}

func (o *Orchestrator) checkPlan(plan Plan) error {
	info, err := os.Stat(plan.Destination)
	if err != nil {
		return services.Wrap(services.ErrConfiguration, "pipeline", "check destination", "Destination directory unavailable", err)
	}
	if !info.IsDir() {
		return services.Wrap(services.ErrConfiguration, "pipeline", "check destination",
			fmt.Sprintf("%s is not a directory", plan.Destination), nil)
	}
	if plan.Range.Start.IsZero() {
		return services.Wrap(services.ErrConfiguration, "pipeline", "check range", "Start date is required", nil)
	}
	if o.cfg.ProcessingEnabled() {
		if err := o.cfg.ValidateProcessing(); err != nil {
			return services.Wrap(services.ErrConfiguration, "pipeline", "check processing", err.Error(), nil)
		}
		if err := os.MkdirAll(o.cfg.Paths.TempDir, 0o755); err != nil {
			return services.Wrap(services.ErrConfiguration, "pipeline", "create temp dir", "Temp directory unavailable", err)
		}
	}
	return nil
}

func (o *Orchestrator) processDate(ctx context.Context, res *resolver.Resolver, plan Plan, date broadcast.Date, processing bool) (DateResult, error) {
	logger := logging.WithContext(ctx, o.logger)
	result := DateResult{Date: date}

	final := filepath.Join(plan.Destination, date.FinalFileName())
	replace := o.cfg.Download.ReplaceExisting
	if !replace && o.keptPartial(ctx, date, final) {
		logging.WarnWithContext(logger, "replacing partial download kept by an earlier run", "partial_replaced",
			logging.String("path", final),
			logging.String(logging.FieldErrorHint, "the earlier transfer was incomplete"),
			logging.String(logging.FieldImpact, "the file is downloaded again"),
		)
		replace = true
	}
	if !replace {
		if info, err := os.Stat(final); err == nil && !info.IsDir() {
			logger.Info("broadcast already saved",
				logging.String("path", final),
				logging.String(logging.FieldEventType, "broadcast_existing"),
			)
			result.Status = history.StatusExisting
			result.Path = final
			result.Bytes = info.Size()
			return result, nil
		}
	}

	location, err := res.Resolve(ctx, date)
	if err != nil {
		result.Status = statusFor(err)
		result.Err = err
		return result, err
	}
	result.MediaURL = location.URL

	req := download.Request{
		URL:        location.URL,
		Date:       date,
		Dir:        plan.Destination,
		Timeout:    o.cfg.DownloadTimeout(),
		Overwrite:  replace,
		KeepFailed: o.cfg.Download.KeepFailed,
	}
	if processing {
		req.Dir = o.cfg.Paths.TempDir
		req.Temporary = true
		req.Overwrite = true
	}
	if o.deps.Progress != nil {
		req.Progress = o.deps.Progress(date)
	}

	outcome, err := o.deps.Downloader.Download(ctx, req)
	result.Attempts = outcome.Attempts
	if err != nil {
		result.Status = statusFor(err)
		result.Err = err
		if !processing {
			// a partial kept under the final name; the next run replaces it
			result.Path = outcome.Path
		}
		return result, err
	}
	if outcome.Skipped {
		result.Status = history.StatusExisting
		result.Path = outcome.Path
		result.Bytes = outcome.Bytes
		return result, nil
	}
	if !processing {
		result.Status = history.StatusDelivered
		result.Path = outcome.Path
		result.Bytes = outcome.Bytes
		return result, nil
	}

	job := &refine.Job{Date: date, File: outcome.Path, WorkDir: o.cfg.Paths.TempDir}
	if err := refine.Run(ctx, o.deps.Stages, job, o.deps.Logger); err != nil {
		result.Status = history.StatusFailed
		result.Err = err
		return result, err
	}
	result.Applied = job.Applied
	result.Failed = job.Failed
	result.Offsets = job.Detection.Set.Seconds()
	result.Phase = job.Detection.Phase

	path, n, err := refine.SaveFinal(job.File, plan.Destination, date)
	if err != nil {
		result.Status = history.StatusFailed
		result.Err = err
		return result, err
	}
	result.Status = history.StatusDelivered
	result.Path = path
	result.Bytes = n
	logger.Info("broadcast delivered",
		logging.String("path", path),
		logging.Bytes("size", n),
		logging.String("stages", strings.Join(job.Applied, ",")),
		logging.String(logging.FieldEventType, "broadcast_delivered"),
	)

	if o.cfg.Processing.CleanTemp {
		staging.CleanWorking(o.cfg.Paths.TempDir, job.File, logger)
	}
	return result, nil
}

// keptPartial reports whether final is an incomplete transfer the ledger
// recorded, rather than a delivered broadcast.
func (o *Orchestrator) keptPartial(ctx context.Context, date broadcast.Date, final string) bool {
	if o.deps.History == nil {
		return false
	}
	rec, err := o.deps.History.Get(ctx, date)
	if err != nil {
		logging.WithContext(ctx, o.logger).Debug("history lookup failed", logging.Error(err))
		return false
	}
	return rec != nil && rec.Status == history.StatusIncomplete && rec.FilePath == final
}

func (o *Orchestrator) record(ctx context.Context, runID string, result DateResult) {
	o.deps.Metrics.DateFinished(string(result.Status))
	if result.Attempts > 0 {
		var bytes int64
		if result.Status == history.StatusDelivered {
			bytes = result.Bytes
		}
		o.deps.Metrics.Downloaded(bytes, result.Attempts)
	}
	o.deps.Metrics.StagesFinished(result.Applied, result.Failed)
	if o.cfg.Processing.Timestamps && result.Status == history.StatusDelivered {
		o.deps.Metrics.TimestampsDetected(result.Phase)
	}

	if o.deps.History == nil {
		return
	}
	rec := history.Record{
		Date:      result.Date,
		Status:    result.Status,
		RunID:     runID,
		MediaURL:  result.MediaURL,
		FilePath:  result.Path,
		Bytes:     result.Bytes,
		Attempts:  result.Attempts,
		Offsets:   result.Offsets,
		Stages:    result.Applied,
		UpdatedAt: o.now(),
	}
	if result.Err != nil {
		rec.Error = result.Err.Error()
	}
	// a cancelled run still records what it finished
	if err := o.deps.History.Put(context.WithoutCancel(ctx), rec); err != nil {
		logging.WarnWithContext(logging.WithContext(ctx, o.logger), "failed to record history", "history_write_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check state_dir permissions"),
			logging.String(logging.FieldImpact, "history command will not show this date"),
		)
	}
}

func statusFor(err error) history.Status {
	switch {
	case errors.Is(err, resolver.ErrBroadcastNotFound), errors.Is(err, services.ErrNotFound):
		return history.StatusNotFound
	case errors.Is(err, download.ErrDownloadIncomplete):
		return history.StatusIncomplete
	default:
		return history.StatusFailed
	}
}

func hintFor(status history.Status) string {
	switch status {
	case history.StatusNotFound:
		return "the archive has no full broadcast for this date yet; retry later"
	case history.StatusIncomplete:
		return "the transfer kept ending early; rerun or raise download.attempts"
	default:
		return "check logs for details"
	}
}
