package pipeline

import (
	"log/slog"
	"time"

	"kctvfetch/internal/config"
	"kctvfetch/internal/media/snapshots"
	"kctvfetch/internal/ocr"
	"kctvfetch/internal/refine"
	"kctvfetch/internal/services"
	"kctvfetch/internal/timestamps"
)

// BuildStages assembles the post-download stages enabled in cfg, in the order
// they run: clock detection, aspect correction, chapter muxing. Detection
// reads the downloaded frames before any crop so the clock stays inside the
// configured crop box.
func BuildStages(cfg *config.Config, logger *slog.Logger) ([]refine.Stage, error) {
	if cfg == nil || !cfg.ProcessingEnabled() {
		return nil, nil
	}
	tools := refine.Tools{FFmpeg: cfg.Processing.FFmpeg, FFprobe: cfg.Processing.FFprobe}

	var stages []refine.Stage
	if cfg.Processing.Timestamps {
		detector, err := NewDetector(cfg, logger)
		if err != nil {
			return nil, err
		}
		stages = append(stages, refine.NewTimestampStage(detector))
	}
	if cfg.Processing.Aspect || cfg.Processing.ForceAspect {
		stages = append(stages, refine.NewAspectStage(tools, cfg.Processing.AspectSamples, cfg.Processing.ForceAspect, logger))
	}
	if cfg.Processing.Timestamps {
		stages = append(stages, refine.NewChapterStage(tools, cfg.Timestamps.EpochCorrectionSeconds, logger))
	}
	return stages, nil
}

// NewDetector builds the two-phase clock detector backed by ffmpeg snapshots
// and the OCR service.
func NewDetector(cfg *config.Config, logger *slog.Logger) (*timestamps.Detector, error) {
	client, err := ocr.New(ocr.Config{
		APIURL:            cfg.OCR.APIURL,
		APIKey:            cfg.OCR.APIKey,
		Language:          cfg.OCR.Language,
		Engine:            cfg.OCR.Engine,
		Timeout:           time.Duration(cfg.OCR.TimeoutSeconds) * time.Second,
		RequestsPerMinute: cfg.OCR.RequestsPerMinute,
	})
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "pipeline", "build ocr client", "Invalid OCR settings", err)
	}
	parser := timestamps.NewParser(cfg.Timestamps.Marker, cfg.Timestamps.EpochCorrectionSeconds)
	return timestamps.NewDetector(
		snapshots.New(cfg.Processing.FFmpeg, logger),
		client,
		timestamps.Options{
			Phases:      timestamps.PhasesFromConfig(cfg.Timestamps),
			Parser:      &parser,
			Concurrency: cfg.OCR.Concurrency,
			Logger:      logger,
		},
	), nil
}
