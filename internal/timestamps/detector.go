// Package timestamps finds on-screen clock overlays in a broadcast and turns
// them into chapter offsets.
package timestamps

import (
	"context"
	"log/slog"

	"kctvfetch/internal/config"
	"kctvfetch/internal/logging"
	"kctvfetch/internal/media/ffmpeg"
	"kctvfetch/internal/media/snapshots"
	"kctvfetch/internal/services"
)

// Phase is one sampling window.
type Phase struct {
	Name   string
	Start  int
	End    int
	Stride int
	Crop   ffmpeg.Crop
}

var defaultCrop = ffmpeg.Crop{Width: 250, Height: 110, X: 30, Y: 75}

// DefaultPhases returns the primary window followed by the later fallback.
func DefaultPhases() []Phase {
	return []Phase{
		{Name: "primary", Start: 300, End: 720, Stride: 125, Crop: defaultCrop},
		{Name: "later", Start: 900, End: 2400, Stride: 125, Crop: defaultCrop},
	}
}

// PhasesFromConfig builds the phase list from configuration.
func PhasesFromConfig(cfg config.Timestamps) []Phase {
	crop := ffmpeg.Crop{Width: cfg.Crop.Width, Height: cfg.Crop.Height, X: cfg.Crop.X, Y: cfg.Crop.Y}
	return []Phase{
		{Name: "primary", Start: cfg.Primary.Start, End: cfg.Primary.End, Stride: cfg.Stride, Crop: crop},
		{Name: "later", Start: cfg.Later.Start, End: cfg.Later.End, Stride: cfg.Stride, Crop: crop},
	}
}

// Sampler produces snapshot sets.
type Sampler interface {
	Sample(ctx context.Context, req snapshots.Request) (snapshots.Set, bool)
}

// Detection is the outcome of Detect. Found=false is a normal result.
type Detection struct {
	Found bool
	Phase string
	Set   Set
}

// Options configures a Detector.
type Options struct {
	Phases      []Phase
	Parser      *Parser
	Concurrency int
	Logger      *slog.Logger
}

// Detector runs the phases in order and stops at the first that yields offsets.
type Detector struct {
	sampler Sampler
	scan    scanner
	phases  []Phase
	logger  *slog.Logger
}

// NewDetector constructs a detector.
func NewDetector(sampler Sampler, rec Recognizer, opts Options) *Detector {
	logger := logging.NewComponentLogger(opts.Logger, "timestamps")
	parser := defaultParser
	if opts.Parser != nil {
		parser = *opts.Parser
	}
	phases := opts.Phases
	if len(phases) == 0 {
		phases = DefaultPhases()
	}
	return &Detector{
		sampler: sampler,
		scan:    scanner{rec: rec, parser: parser, concurrency: opts.Concurrency, logger: logger},
		phases:  phases,
		logger:  logger,
	}
}

// Detect searches file for clock overlays, using workDir for snapshots. Only
// context cancellation is returned as an error.
func (d *Detector) Detect(ctx context.Context, file, workDir string) (Detection, error) {
	ctx = services.WithStage(ctx, "timestamps")
	logger := logging.WithContext(ctx, d.logger)

	for _, phase := range d.phases {
		set, ok := d.sampler.Sample(ctx, snapshots.Request{
			File:    file,
			WorkDir: workDir,
			Start:   phase.Start,
			End:     phase.End,
			Stride:  phase.Stride,
			Crop:    phase.Crop,
		})
		if err := ctx.Err(); err != nil {
			return Detection{}, err
		}
		if !ok || set.Len() == 0 {
			logger.Info("phase produced no snapshots", logging.String("phase", phase.Name))
			continue
		}

		offsets, err := d.collect(ctx, set, logger)
		if err != nil {
			return Detection{}, err
		}
		result := NewSet(offsets...)
		if result.Len() > 0 {
			logger.Info("timestamps detected",
				logging.String("phase", phase.Name),
				logging.Int("count", result.Len()),
				logging.Any("offsets", result.Seconds()),
				logging.String(logging.FieldEventType, "timestamps_detected"),
			)
			return Detection{Found: true, Phase: phase.Name, Set: result}, nil
		}
		logger.Info("phase yielded no timestamps", logging.String("phase", phase.Name), logging.Int("images", set.Len()))
	}

	logging.WarnWithContext(logger, "no timestamps found", "timestamps_not_found",
		logging.String("file", file),
		logging.String(logging.FieldErrorHint, "check the crop box and capture windows against the broadcast"),
		logging.String(logging.FieldImpact, "no chapters will be added"),
	)
	return Detection{}, nil
}

// collect drains the scan for one phase. A recognition failure ends the phase
// but keeps what was already parsed.
func (d *Detector) collect(ctx context.Context, set snapshots.Set, logger *slog.Logger) ([]Offset, error) {
	var offsets []Offset
	for offset, err := range d.scan.Scan(ctx, set.Images) {
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			logging.WarnWithContext(logger, "recognition service failed; ending phase", "ocr_failed",
				logging.Error(err),
				logging.Int("parsed", len(offsets)),
				logging.String(logging.FieldErrorHint, "check ocr.api_key and service quota"),
				logging.String(logging.FieldImpact, "remaining snapshots in this phase skipped"),
			)
			break
		}
		if offset < 0 {
			logger.Debug("dropping offset before recording start", logging.Int("offset", int(offset)))
			continue
		}
		offsets = append(offsets, offset)
	}
	return offsets, nil
}
