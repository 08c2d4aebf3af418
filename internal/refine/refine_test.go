package refine

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kctvfetch/internal/broadcast"
	"kctvfetch/internal/logging"
	"kctvfetch/internal/media/ffmpeg"
	"kctvfetch/internal/media/ffprobe"
	"kctvfetch/internal/testsupport"
	"kctvfetch/internal/timestamps"
)

type recordingRunner struct {
	mu         sync.Mutex
	calls      [][]string
	cropdetect string
	fail       bool
}

func (r *recordingRunner) run(_ context.Context, _ string, _ string, args ...string) ([]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, args)
	if r.fail {
		return []byte("boom"), errors.New("exit status 1")
	}
	if slices.Contains(args, "null") {
		return []byte(r.cropdetect), nil
	}
	out := args[len(args)-1]
	return nil, os.WriteFile(out, []byte("processed"), 0o644)
}

func probeResult(width, height int, sar, duration string) Prober {
	return func(context.Context, string, string) (ffprobe.Result, error) {
		return ffprobe.Result{
			Streams: []ffprobe.Stream{{CodecType: "video", Width: width, Height: height, SampleAspectRatio: sar}},
			Format:  ffprobe.Format{Duration: duration},
		}, nil
	}
}

func workingFile(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "dl-2024-05-01.mp4")
	require.NoError(t, os.WriteFile(path, []byte("original"), 0o644))
	return path
}

func TestWideCrop(t *testing.T) {
	crop, ok := WideCrop(640, 480, 1)
	require.True(t, ok)
	assert.Equal(t, ffmpeg.Crop{Width: 640, Height: 360, X: 0, Y: 60}, crop)

	crop, ok = WideCrop(720, 576, 16.0/15.0)
	require.True(t, ok)
	assert.Equal(t, ffmpeg.Crop{Width: 720, Height: 432, X: 0, Y: 72}, crop)

	_, ok = WideCrop(1920, 1080, 1)
	assert.False(t, ok)
	_, ok = WideCrop(720, 576, 64.0/45.0)
	assert.False(t, ok)
	_, ok = WideCrop(0, 0, 1)
	assert.False(t, ok)
}

func TestParseCropdetect(t *testing.T) {
	output := `[Parsed_cropdetect_0 @ 0x1] x1:0 x2:639 y1:60 y2:419 w:640 h:352 x:0 y:64 pts:1 t:0.04 crop=640:352:0:64
[Parsed_cropdetect_0 @ 0x1] x1:0 x2:639 y1:60 y2:419 w:640 h:360 x:0 y:60 pts:2 t:0.08 crop=640:360:0:60`
	crop, ok := ParseCropdetect(output)
	require.True(t, ok)
	assert.Equal(t, ffmpeg.Crop{Width: 640, Height: 360, X: 0, Y: 60}, crop)

	_, ok = ParseCropdetect("no crop here")
	assert.False(t, ok)
}

func TestAspectStageCropsLetterbox(t *testing.T) {
	file := workingFile(t)
	runner := &recordingRunner{cropdetect: "crop=640:360:0:60"}
	stage := NewAspectStage(Tools{}, 3, false, logging.NewNop())
	stage.WithRunner(runner.run)
	stage.WithProber(probeResult(640, 480, "1:1", "3600.0"))

	require.NoError(t, stage.Run(context.Background(), &Job{File: file}))

	require.Len(t, runner.calls, 4)
	assert.Contains(t, runner.calls[0], "900.000")
	crop := runner.calls[3]
	assert.Contains(t, crop, "crop=640:360:0:60")
	data, err := os.ReadFile(file)
	require.NoError(t, err)
	assert.Equal(t, "processed", string(data))
	_, err = os.Stat(filepath.Join(filepath.Dir(file), ".aspect-dl-2024-05-01.mp4"))
	assert.True(t, os.IsNotExist(err))
}

func TestAspectStageSkipsFullFrameContent(t *testing.T) {
	file := workingFile(t)
	runner := &recordingRunner{cropdetect: "crop=640:480:0:0"}
	stage := NewAspectStage(Tools{}, 3, false, logging.NewNop())
	stage.WithRunner(runner.run)
	stage.WithProber(probeResult(640, 480, "", "3600.0"))

	err := stage.Run(context.Background(), &Job{File: file})
	require.ErrorIs(t, err, ErrSkipped)
	assert.Len(t, runner.calls, 1)
	data, _ := os.ReadFile(file)
	assert.Equal(t, "original", string(data))
}

func TestAspectStageForceSkipsDetection(t *testing.T) {
	file := workingFile(t)
	runner := &recordingRunner{}
	stage := NewAspectStage(Tools{FFmpeg: "/opt/ffmpeg"}, 3, true, logging.NewNop())
	stage.WithRunner(runner.run)
	stage.WithProber(probeResult(640, 480, "", ""))

	require.NoError(t, stage.Run(context.Background(), &Job{File: file}))
	require.Len(t, runner.calls, 1)
	assert.Contains(t, runner.calls[0], "crop=640:360:0:60")
}

func TestAspectStageAlreadyWide(t *testing.T) {
	runner := &recordingRunner{}
	stage := NewAspectStage(Tools{}, 3, true, logging.NewNop())
	stage.WithRunner(runner.run)
	stage.WithProber(probeResult(1280, 720, "", "10"))

	err := stage.Run(context.Background(), &Job{File: workingFile(t)})
	require.ErrorIs(t, err, ErrSkipped)
	assert.Empty(t, runner.calls)
}

func TestAspectStageFailureKeepsFile(t *testing.T) {
	file := workingFile(t)
	runner := &recordingRunner{fail: true}
	stage := NewAspectStage(Tools{}, 3, true, logging.NewNop())
	stage.WithRunner(runner.run)
	stage.WithProber(probeResult(640, 480, "", "10"))

	err := stage.Run(context.Background(), &Job{File: file})
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrSkipped)
	data, _ := os.ReadFile(file)
	assert.Equal(t, "original", string(data))
}

func TestBuildChapters(t *testing.T) {
	offsets := []timestamps.Offset{-60, 1800, 3600, 3600, 9000}
	got := BuildChapters(offsets, 7200, 32400)
	want := []Chapter{
		{Start: 0, End: 1800, Title: "Opening"},
		{Start: 1800, End: 3600, Title: "09:30"},
		{Start: 3600, End: 7200, Title: "10:00"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("chapters mismatch (-want +got):\n%s", diff)
	}

	got = BuildChapters([]timestamps.Offset{0, 60}, 0, 0)
	want = []Chapter{
		{Start: 0, End: 60, Title: "00:00"},
		{Start: 60, End: 61, Title: "00:01"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("chapters mismatch (-want +got):\n%s", diff)
	}

	assert.Nil(t, BuildChapters(nil, 100, 0))
}

func TestFFMetadata(t *testing.T) {
	data := string(FFMetadata("Full Broadcast 2024-05-01", []Chapter{
		{Start: 0, End: 1800, Title: "Opening"},
		{Start: 1800, End: 3600, Title: "a=b;c"},
	}))
	want := `;FFMETADATA1
title=Full Broadcast 2024-05-01

[CHAPTER]
TIMEBASE=1/1
START=0
END=1800
title=Opening

[CHAPTER]
TIMEBASE=1/1
START=1800
END=3600
title=a\=b\;c
`
	assert.Equal(t, want, data)
}

func TestChapterStageMuxes(t *testing.T) {
	file := workingFile(t)
	runner := &recordingRunner{}
	stage := NewChapterStage(Tools{}, 32400, logging.NewNop())
	stage.WithRunner(runner.run)
	stage.WithProber(probeResult(640, 480, "", "7200.5"))

	job := &Job{
		Date:      broadcast.NewDate(2024, 5, 1),
		File:      file,
		WorkDir:   filepath.Dir(file),
		Detection: timestamps.Detection{Found: true, Set: timestamps.NewSet(1800, 3600)},
	}
	require.NoError(t, stage.Run(context.Background(), job))

	require.Len(t, runner.calls, 1)
	args := strings.Join(runner.calls[0], " ")
	assert.Contains(t, args, "-map_chapters 1")
	assert.Contains(t, args, "-c copy")
	data, _ := os.ReadFile(file)
	assert.Equal(t, "processed", string(data))
	_, err := os.Stat(file + ".ffmetadata")
	assert.True(t, os.IsNotExist(err), "metadata file should be removed")
}

func TestChapterStageSkipsWithoutDetection(t *testing.T) {
	runner := &recordingRunner{}
	stage := NewChapterStage(Tools{}, 0, logging.NewNop())
	stage.WithRunner(runner.run)

	err := stage.Run(context.Background(), &Job{File: workingFile(t)})
	require.ErrorIs(t, err, ErrSkipped)
	assert.Empty(t, runner.calls)
}

type stubStage struct {
	name string
	err  error
	ran  *[]string
}

func (s stubStage) Name() string { return s.name }

func (s stubStage) Run(_ context.Context, _ *Job) error {
	*s.ran = append(*s.ran, s.name)
	return s.err
}

func TestRunContinuesPastFailures(t *testing.T) {
	var ran []string
	stages := []Stage{
		stubStage{name: "aspect", err: errors.New("ffmpeg failed"), ran: &ran},
		stubStage{name: "timestamps", err: skip("none"), ran: &ran},
		stubStage{name: "chapters", ran: &ran},
	}
	job := &Job{}
	require.NoError(t, Run(context.Background(), stages, job, logging.NewNop()))
	assert.Equal(t, []string{"aspect", "timestamps", "chapters"}, ran)
	assert.Equal(t, []string{"chapters"}, job.Applied)
	assert.Equal(t, []string{"aspect"}, job.Failed)
}

func TestRunStopsOnCancel(t *testing.T) {
	var ran []string
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := Run(ctx, []Stage{stubStage{name: "aspect", ran: &ran}}, &Job{}, logging.NewNop())
	require.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, ran)
}

type stubDetector struct {
	detection timestamps.Detection
	err       error
}

func (d stubDetector) Detect(context.Context, string, string) (timestamps.Detection, error) {
	return d.detection, d.err
}

func TestTimestampStageStoresDetection(t *testing.T) {
	job := &Job{File: "f.mp4"}
	found := timestamps.Detection{Found: true, Phase: "primary", Set: timestamps.NewSet(60)}
	require.NoError(t, NewTimestampStage(stubDetector{detection: found}).Run(context.Background(), job))
	assert.True(t, job.Detection.Found)

	job = &Job{File: "f.mp4"}
	err := NewTimestampStage(stubDetector{}).Run(context.Background(), job)
	require.ErrorIs(t, err, ErrSkipped)
}

func TestSaveFinal(t *testing.T) {
	src := workingFile(t)
	dest := t.TempDir()

	path, n, err := SaveFinal(src, dest, broadcast.NewDate(2024, 5, 1))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dest, "Full Broadcast 2024 05 01.mp4"), path)
	assert.Equal(t, int64(len("original")), n)

	_, _, err = SaveFinal(src, src, broadcast.NewDate(2024, 5, 1))
	require.Error(t, err)
}

func TestSaveFinalReplacesLargerExisting(t *testing.T) {
	src := workingFile(t)
	dest := t.TempDir()
	existing := filepath.Join(dest, broadcast.NewDate(2024, 5, 1).FinalFileName())
	testsupport.WriteVideo(t, existing, 4096)

	_, n, err := SaveFinal(src, dest, broadcast.NewDate(2024, 5, 1))
	require.NoError(t, err)
	info, err := os.Stat(existing)
	require.NoError(t, err)
	assert.Equal(t, n, info.Size())
	assert.Equal(t, int64(len("original")), info.Size())
}
