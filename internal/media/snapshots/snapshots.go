// Package snapshots samples still frames from a window of a video with ffmpeg.
package snapshots

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strconv"

	"kctvfetch/internal/logging"
	"kctvfetch/internal/media/ffmpeg"
)

const imagePattern = "image_%04d.jpg"

// Request describes one sampling pass.
type Request struct {
	File    string
	WorkDir string
	Start   int
	End     int
	Stride  int
	Crop    ffmpeg.Crop
}

// Snapshot is one extracted image.
type Snapshot struct {
	Path   string
	Source string
	Start  int
	End    int
	Stride int
	Crop   ffmpeg.Crop
}

// Set is the ordered output of one sampling pass.
type Set struct {
	Dir    string
	Images []Snapshot
}

// Len returns the number of images.
func (s Set) Len() int { return len(s.Images) }

// DirName returns the per-window output directory name for file.
func DirName(file string, start, end int) string {
	return filepath.Base(file) + "_images_" + strconv.Itoa(start) + "-" + strconv.Itoa(end)
}

// Sampler runs ffmpeg frame extraction.
type Sampler struct {
	binary string
	run    ffmpeg.Runner
	logger *slog.Logger
}

// New constructs a sampler using the given ffmpeg binary.
func New(binary string, logger *slog.Logger) *Sampler {
	if binary == "" {
		binary = "ffmpeg"
	}
	return &Sampler{
		binary: binary,
		run:    ffmpeg.Exec,
		logger: logging.NewComponentLogger(logger, "snapshots"),
	}
}

// WithRunner allows injecting a custom command runner for tests.
func (s *Sampler) WithRunner(r ffmpeg.Runner) {
	if s != nil && r != nil {
		s.run = r
	}
}

// Args builds the ffmpeg arguments for req writing into outDir.
func Args(req Request, outDir string) []string {
	filter := "select='not(mod(n," + strconv.Itoa(req.Stride) + "))'"
	if !req.Crop.IsZero() {
		filter += "," + req.Crop.Filter()
	}
	return []string{
		"-i", req.File,
		"-ss", strconv.Itoa(req.Start),
		"-to", strconv.Itoa(req.End),
		"-vf", filter,
		"-fps_mode", "vfr",
		filepath.Join(outDir, imagePattern),
	}
}

// Sample extracts frames for req. Failures are logged and reported as ok=false;
// they are never returned to the caller.
func (s *Sampler) Sample(ctx context.Context, req Request) (Set, bool) {
	logger := logging.WithContext(ctx, s.logger)
	outDir := filepath.Join(req.WorkDir, DirName(req.File, req.Start, req.End))

	if err := os.RemoveAll(outDir); err != nil {
		s.warn(logger, "failed to clear snapshot directory", err, outDir)
		return Set{}, false
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		s.warn(logger, "failed to create snapshot directory", err, outDir)
		return Set{}, false
	}

	logger.Debug("sampling frames",
		logging.String("file", req.File),
		logging.Int("start", req.Start),
		logging.Int("end", req.End),
		logging.Int("stride", req.Stride),
	)
	if _, err := s.run(ctx, req.WorkDir, s.binary, Args(req, outDir)...); err != nil {
		s.warn(logger, "ffmpeg frame extraction failed", err, outDir)
		return Set{}, false
	}

	paths, err := filepath.Glob(filepath.Join(outDir, "image_*.jpg"))
	if err != nil {
		s.warn(logger, "failed to list snapshots", err, outDir)
		return Set{}, false
	}
	slices.Sort(paths)

	set := Set{Dir: outDir, Images: make([]Snapshot, 0, len(paths))}
	for _, path := range paths {
		set.Images = append(set.Images, Snapshot{
			Path:   path,
			Source: req.File,
			Start:  req.Start,
			End:    req.End,
			Stride: req.Stride,
			Crop:   req.Crop,
		})
	}
	logger.Info(fmt.Sprintf("saved %d snapshots from %d to %d seconds", set.Len(), req.Start, req.End),
		logging.String("dir", outDir),
		logging.String(logging.FieldEventType, "snapshots_saved"),
	)
	return set, true
}

func (s *Sampler) warn(logger *slog.Logger, msg string, err error, dir string) {
	logging.WarnWithContext(logger, msg, "snapshots_failed",
		logging.Error(err),
		logging.String("dir", dir),
		logging.String(logging.FieldErrorHint, "check that ffmpeg is installed and the temp directory is writable"),
		logging.String(logging.FieldImpact, "timestamp phase yields no results"),
	)
}
