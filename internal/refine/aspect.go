package refine

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"time"

	"kctvfetch/internal/logging"
	"kctvfetch/internal/media/ffmpeg"
	"kctvfetch/internal/media/ffprobe"
	"kctvfetch/internal/services"
)

const (
	wideAspect      = 16.0 / 9.0
	aspectTolerance = 0.03
)

var cropdetectPattern = regexp.MustCompile(`crop=(\d+):(\d+):(\d+):(\d+)`)

// AspectStage crops 4:3 frames carrying letterboxed 16:9 content down to the
// 16:9 picture. Without Force the crop is applied only when every sample
// point shows the letterbox.
type AspectStage struct {
	tools   Tools
	samples int
	force   bool
	run     ffmpeg.Runner
	probe   Prober
	logger  *slog.Logger
}

// NewAspectStage constructs the aspect stage.
func NewAspectStage(tools Tools, samples int, force bool, logger *slog.Logger) *AspectStage {
	if samples <= 0 {
		samples = 5
	}
	return &AspectStage{
		tools:   tools,
		samples: samples,
		force:   force,
		run:     ffmpeg.Exec,
		probe:   ffprobe.Inspect,
		logger:  logging.NewComponentLogger(logger, "aspect"),
	}
}

// WithRunner allows injecting a custom command runner for tests.
func (s *AspectStage) WithRunner(r ffmpeg.Runner) {
	if s != nil && r != nil {
		s.run = r
	}
}

// WithProber allows injecting a custom media prober for tests.
func (s *AspectStage) WithProber(p Prober) {
	if s != nil && p != nil {
		s.probe = p
	}
}

func (s *AspectStage) Name() string { return "aspect" }

func (s *AspectStage) Run(ctx context.Context, job *Job) error {
	logger := logging.WithContext(ctx, s.logger)

	info, err := s.probe(ctx, s.tools.ffprobe(), job.File)
	if err != nil {
		return services.Wrap(services.ErrExternalTool, "aspect", "ffprobe", "Failed to inspect broadcast", err)
	}
	video, ok := info.Video()
	if !ok || video.Width <= 0 || video.Height <= 0 {
		return services.Wrap(services.ErrValidation, "aspect", "ffprobe", "Broadcast has no video stream", nil)
	}

	crop, ok := WideCrop(video.Width, video.Height, video.PixelAspect())
	if !ok {
		return skip("frame is already widescreen")
	}

	if !s.force {
		letterboxed, err := s.letterboxed(ctx, job.File, info.Duration(), video, logger)
		if err != nil {
			return err
		}
		if !letterboxed {
			return skip("content is not letterboxed")
		}
	}

	tmp := filepath.Join(filepath.Dir(job.File), ".aspect-"+filepath.Base(job.File))
	args := []string{
		"-hide_banner", "-y",
		"-i", job.File,
		"-map", "0",
		"-vf", crop.Filter(),
		"-c:v", "libx264", "-preset", "veryfast", "-crf", "20",
		"-c:a", "copy",
		"-movflags", "+faststart",
		tmp,
	}
	logger.Debug("cropping to 16:9", logging.String("crop", crop.Filter()), logging.Bool("forced", s.force))
	if _, err := s.run(ctx, "", s.tools.ffmpeg(), args...); err != nil {
		_ = os.Remove(tmp)
		return services.Wrap(services.ErrExternalTool, "aspect", "ffmpeg crop", "Aspect correction failed", err)
	}
	if err := replace(tmp, job.File); err != nil {
		return services.Wrap(services.ErrExternalTool, "aspect", "replace", "Failed to replace working file", err)
	}

	logger.Info("aspect corrected",
		logging.String("crop", crop.Filter()),
		logging.String(logging.FieldEventType, "aspect_corrected"),
	)
	return nil
}

// letterboxed samples cropdetect at evenly spaced points and reports whether
// every point shows a 16:9 picture inside the full frame width.
func (s *AspectStage) letterboxed(ctx context.Context, file string, duration time.Duration, video ffprobe.Stream, logger *slog.Logger) (bool, error) {
	if duration <= 0 {
		return false, skip("duration unavailable")
	}
	for i := 1; i <= s.samples; i++ {
		at := duration * time.Duration(i) / time.Duration(s.samples+1)
		args := []string{
			"-hide_banner",
			"-ss", strconv.FormatFloat(at.Seconds(), 'f', 3, 64),
			"-i", file,
			"-frames:v", "5",
			"-vf", "cropdetect=limit=24:round=2:reset=0",
			"-f", "null", "-",
		}
		out, err := s.run(ctx, "", s.tools.ffmpeg(), args...)
		if err != nil {
			return false, services.Wrap(services.ErrExternalTool, "aspect", "cropdetect", "Crop detection failed", err)
		}
		detected, ok := ParseCropdetect(string(out))
		if !ok || !isLetterbox(detected, video) {
			logger.Debug("sample not letterboxed",
				logging.String("at", at.Truncate(time.Second).String()),
				logging.String("detected", detected.Filter()),
			)
			return false, nil
		}
	}
	return true, nil
}

// ParseCropdetect returns the last crop suggestion in cropdetect output.
func ParseCropdetect(output string) (ffmpeg.Crop, bool) {
	matches := cropdetectPattern.FindAllStringSubmatch(output, -1)
	if len(matches) == 0 {
		return ffmpeg.Crop{}, false
	}
	last := matches[len(matches)-1]
	var values [4]int
	for i := range values {
		n, err := strconv.Atoi(last[i+1])
		if err != nil {
			return ffmpeg.Crop{}, false
		}
		values[i] = n
	}
	return ffmpeg.Crop{Width: values[0], Height: values[1], X: values[2], Y: values[3]}, true
}

// WideCrop returns the centred 16:9 crop for a width x height frame with the
// given pixel aspect, and false when the frame is already 16:9 or wider.
func WideCrop(width, height int, pixelAspect float64) (ffmpeg.Crop, bool) {
	if width <= 0 || height <= 0 {
		return ffmpeg.Crop{}, false
	}
	if pixelAspect <= 0 {
		pixelAspect = 1
	}
	target := int(math.Floor(float64(width)*pixelAspect*9/16)) &^ 1
	if target >= height-1 {
		return ffmpeg.Crop{}, false
	}
	y := ((height - target) / 2) &^ 1
	return ffmpeg.Crop{Width: width, Height: target, X: 0, Y: y}, true
}

func isLetterbox(detected ffmpeg.Crop, video ffprobe.Stream) bool {
	if detected.Height <= 0 || detected.Width < int(float64(video.Width)*0.9) {
		return false
	}
	ratio := float64(detected.Width) * video.PixelAspect() / float64(detected.Height)
	return ratio >= wideAspect*(1-aspectTolerance)
}

func replace(tmp, dst string) error {
	if _, err := os.Stat(tmp); err != nil {
		return fmt.Errorf("ffmpeg did not produce output file: %w", err)
	}
	if err := os.Rename(tmp, dst); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return nil
}
