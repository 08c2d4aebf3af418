package refine

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/renameio/v2"

	"kctvfetch/internal/logging"
	"kctvfetch/internal/media/ffmpeg"
	"kctvfetch/internal/media/ffprobe"
	"kctvfetch/internal/services"
	"kctvfetch/internal/timestamps"
)

// openingTitle names the chapter before the first detected clock.
const openingTitle = "Opening"

// Chapter is one chapter mark in seconds.
type Chapter struct {
	Start int
	End   int
	Title string
}

// BuildChapters turns detected offsets into contiguous chapters covering the
// whole broadcast. Titles show the wall clock, restored with correction.
// Offsets at or past the end of the broadcast are ignored.
func BuildChapters(offsets []timestamps.Offset, durationSeconds, correction int) []Chapter {
	starts := make([]int, 0, len(offsets)+1)
	for _, offset := range offsets {
		start := int(offset)
		if start < 0 || (durationSeconds > 0 && start >= durationSeconds) {
			continue
		}
		if len(starts) > 0 && start <= starts[len(starts)-1] {
			continue
		}
		starts = append(starts, start)
	}
	if len(starts) == 0 {
		return nil
	}

	chapters := make([]Chapter, 0, len(starts)+1)
	if starts[0] > 0 {
		chapters = append(chapters, Chapter{Start: 0, End: starts[0], Title: openingTitle})
	}
	for i, start := range starts {
		end := durationSeconds
		if i+1 < len(starts) {
			end = starts[i+1]
		}
		if end <= start {
			end = start + 1
		}
		chapters = append(chapters, Chapter{Start: start, End: end, Title: clockTitle(start, correction)})
	}
	return chapters
}

func clockTitle(offset, correction int) string {
	clock := (offset + correction) % 86400
	if clock < 0 {
		clock += 86400
	}
	return fmt.Sprintf("%02d:%02d", clock/3600, clock%3600/60)
}

// FFMetadata renders chapters in ffmpeg's metadata file format.
func FFMetadata(title string, chapters []Chapter) []byte {
	var b strings.Builder
	b.WriteString(";FFMETADATA1\n")
	if title != "" {
		b.WriteString("title=" + escapeMetadata(title) + "\n")
	}
	for _, ch := range chapters {
		b.WriteString("\n[CHAPTER]\nTIMEBASE=1/1\n")
		fmt.Fprintf(&b, "START=%d\nEND=%d\n", ch.Start, ch.End)
		b.WriteString("title=" + escapeMetadata(ch.Title) + "\n")
	}
	return []byte(b.String())
}

func escapeMetadata(value string) string {
	var b strings.Builder
	for _, r := range value {
		switch r {
		case '=', ';', '#', '\\', '\n':
			b.WriteRune('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}

// ChapterStage muxes chapter marks from the job's detection into the working
// file with a stream copy.
type ChapterStage struct {
	tools      Tools
	correction int
	run        ffmpeg.Runner
	probe      Prober
	logger     *slog.Logger
}

// NewChapterStage constructs the chapter stage. correction is the epoch
// correction used when the offsets were parsed.
func NewChapterStage(tools Tools, correction int, logger *slog.Logger) *ChapterStage {
	return &ChapterStage{
		tools:      tools,
		correction: correction,
		run:        ffmpeg.Exec,
		probe:      ffprobe.Inspect,
		logger:     logging.NewComponentLogger(logger, "chapters"),
	}
}

// WithRunner allows injecting a custom command runner for tests.
func (s *ChapterStage) WithRunner(r ffmpeg.Runner) {
	if s != nil && r != nil {
		s.run = r
	}
}

// WithProber allows injecting a custom media prober for tests.
func (s *ChapterStage) WithProber(p Prober) {
	if s != nil && p != nil {
		s.probe = p
	}
}

func (s *ChapterStage) Name() string { return "chapters" }

func (s *ChapterStage) Run(ctx context.Context, job *Job) error {
	if !job.Detection.Found {
		return skip("no timestamps detected")
	}
	logger := logging.WithContext(ctx, s.logger)

	info, err := s.probe(ctx, s.tools.ffprobe(), job.File)
	if err != nil {
		return services.Wrap(services.ErrExternalTool, "chapters", "ffprobe", "Failed to inspect broadcast", err)
	}
	chapters := BuildChapters(job.Detection.Set.Offsets(), int(info.Duration().Seconds()), s.correction)
	if len(chapters) == 0 {
		return skip("no offsets inside the broadcast")
	}

	workDir := job.WorkDir
	if workDir == "" {
		workDir = filepath.Dir(job.File)
	}
	metaPath := filepath.Join(workDir, filepath.Base(job.File)+".ffmetadata")
	title := ""
	if !job.Date.IsZero() {
		title = "Full Broadcast " + job.Date.String()
	}
	if err := renameio.WriteFile(metaPath, FFMetadata(title, chapters), 0o644); err != nil {
		return services.Wrap(services.ErrExternalTool, "chapters", "write metadata", "Failed to write chapter metadata", err)
	}
	defer func() { _ = os.Remove(metaPath) }()

	tmp := filepath.Join(filepath.Dir(job.File), ".chapters-"+filepath.Base(job.File))
	args := []string{
		"-hide_banner", "-y",
		"-i", job.File,
		"-i", metaPath,
		"-map", "0",
		"-map_metadata", "1",
		"-map_chapters", "1",
		"-c", "copy",
		tmp,
	}
	if _, err := s.run(ctx, "", s.tools.ffmpeg(), args...); err != nil {
		_ = os.Remove(tmp)
		return services.Wrap(services.ErrExternalTool, "chapters", "ffmpeg mux", "Chapter muxing failed", err)
	}
	if err := replace(tmp, job.File); err != nil {
		return services.Wrap(services.ErrExternalTool, "chapters", "replace", "Failed to replace working file", err)
	}

	logger.Info("chapters muxed",
		logging.Int("chapters", len(chapters)),
		logging.String(logging.FieldEventType, "chapters_muxed"),
	)
	return nil
}
