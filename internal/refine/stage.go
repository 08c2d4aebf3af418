package refine

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"kctvfetch/internal/broadcast"
	"kctvfetch/internal/logging"
	"kctvfetch/internal/services"
	"kctvfetch/internal/timestamps"
)

// Job is the working state handed through the stages for one date.
type Job struct {
	Date      broadcast.Date
	File      string
	WorkDir   string
	Detection timestamps.Detection
	Applied   []string
	Failed    []string
}

// Stage is one post-processing step.
type Stage interface {
	Name() string
	Run(ctx context.Context, job *Job) error
}

// ErrSkipped is returned by a stage that decided there was nothing to do.
var ErrSkipped = errors.New("stage skipped")

// Run executes stages in order. A failing stage is logged and recorded in
// job.Failed and the remaining stages still run; only cancellation stops the
// sequence and is returned.
func Run(ctx context.Context, stages []Stage, job *Job, logger *slog.Logger) error {
	logger = logging.NewComponentLogger(logger, "refine")
	for _, stage := range stages {
		if err := ctx.Err(); err != nil {
			return err
		}
		stageCtx := services.WithStage(ctx, stage.Name())
		stageLogger := logging.WithContext(stageCtx, logger)
		stageLogger.Info("stage started",
			logging.String(logging.FieldEventType, "stage_start"),
			logging.String("file", job.File),
		)

		started := time.Now()
		err := stage.Run(stageCtx, job)
		switch {
		case err == nil:
			job.Applied = append(job.Applied, stage.Name())
			stageLogger.Info("stage completed",
				logging.String(logging.FieldEventType, "stage_complete"),
				logging.Duration("elapsed", time.Since(started)),
			)
		case errors.Is(err, ErrSkipped):
			stageLogger.Info("stage skipped",
				logging.String(logging.FieldEventType, "stage_skipped"),
				logging.String("reason", skipReason(err)),
			)
		case ctx.Err() != nil:
			return ctx.Err()
		default:
			job.Failed = append(job.Failed, stage.Name())
			logging.WarnWithContext(stageLogger, "stage failed", "stage_failure",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "inspect the ffmpeg output in the error"),
				logging.String(logging.FieldImpact, "broadcast delivered without this stage"),
			)
		}
	}
	return nil
}

type skipError struct{ reason string }

func (e skipError) Error() string       { return "stage skipped: " + e.reason }
func (e skipError) Is(target error) bool { return target == ErrSkipped }

func skip(reason string) error { return skipError{reason: reason} }

func skipReason(err error) string {
	var se skipError
	if errors.As(err, &se) {
		return se.reason
	}
	return ""
}
