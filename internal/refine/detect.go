package refine

import (
	"context"

	"kctvfetch/internal/timestamps"
)

// Detector finds clock offsets in a file.
type Detector interface {
	Detect(ctx context.Context, file, workDir string) (timestamps.Detection, error)
}

// TimestampStage runs detection and stores the result on the job for the
// chapter stage.
type TimestampStage struct {
	detector Detector
}

// NewTimestampStage wraps detector as a stage.
func NewTimestampStage(detector Detector) *TimestampStage {
	return &TimestampStage{detector: detector}
}

func (s *TimestampStage) Name() string { return "timestamps" }

func (s *TimestampStage) Run(ctx context.Context, job *Job) error {
	detection, err := s.detector.Detect(ctx, job.File, job.WorkDir)
	if err != nil {
		return err
	}
	job.Detection = detection
	if !detection.Found {
		return skip("no timestamps found")
	}
	return nil
}
