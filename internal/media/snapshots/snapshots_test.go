package snapshots_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kctvfetch/internal/logging"
	"kctvfetch/internal/media/ffmpeg"
	"kctvfetch/internal/media/snapshots"
	"kctvfetch/internal/testsupport"
)

var crop = ffmpeg.Crop{Width: 250, Height: 110, X: 30, Y: 75}

func TestDirName(t *testing.T) {
	assert.Equal(t, "dl-2024-05-01.mp4_images_300-720", snapshots.DirName("/tmp/work/dl-2024-05-01.mp4", 300, 720))
}

func TestArgs(t *testing.T) {
	req := snapshots.Request{File: "/w/dl.mp4", WorkDir: "/w", Start: 300, End: 720, Stride: 125, Crop: crop}
	want := []string{
		"-i", "/w/dl.mp4",
		"-ss", "300",
		"-to", "720",
		"-vf", "select='not(mod(n,125))',crop=250:110:30:75",
		"-fps_mode", "vfr",
		"/w/out/image_%04d.jpg",
	}
	if diff := cmp.Diff(want, snapshots.Args(req, "/w/out")); diff != "" {
		t.Fatalf("args mismatch (-want +got):\n%s", diff)
	}

	req.Crop = ffmpeg.Crop{}
	assert.Equal(t, "select='not(mod(n,125))'", snapshots.Args(req, "/w/out")[7])
}

func TestSampleCollectsSortedImages(t *testing.T) {
	work := t.TempDir()
	file := filepath.Join(work, "dl-2024-05-01.mp4")
	var gotDir string
	sampler := snapshots.New("ffmpeg", logging.NewNop())
	sampler.WithRunner(func(_ context.Context, dir, name string, args ...string) ([]byte, error) {
		gotDir = dir
		out := filepath.Dir(args[len(args)-1])
		for _, i := range []int{3, 1, 2} {
			testsupport.WriteSnapshot(t, filepath.Join(out, fmt.Sprintf("image_%04d.jpg", i)), 16)
		}
		return nil, nil
	})

	set, ok := sampler.Sample(context.Background(), snapshots.Request{File: file, WorkDir: work, Start: 300, End: 720, Stride: 125, Crop: crop})
	require.True(t, ok)
	assert.Equal(t, work, gotDir)
	require.Equal(t, 3, set.Len())
	assert.Equal(t, filepath.Join(work, "dl-2024-05-01.mp4_images_300-720"), set.Dir)
	assert.Equal(t, "image_0001.jpg", filepath.Base(set.Images[0].Path))
	assert.Equal(t, "image_0003.jpg", filepath.Base(set.Images[2].Path))
	assert.Equal(t, crop, set.Images[0].Crop)
}

func TestSampleClearsStaleImages(t *testing.T) {
	work := t.TempDir()
	file := filepath.Join(work, "dl.mp4")
	stale := filepath.Join(work, snapshots.DirName(file, 1, 2), "image_0009.jpg")
	testsupport.WriteSnapshot(t, stale, 16)

	sampler := snapshots.New("ffmpeg", logging.NewNop())
	sampler.WithRunner(func(context.Context, string, string, ...string) ([]byte, error) { return nil, nil })

	set, ok := sampler.Sample(context.Background(), snapshots.Request{File: file, WorkDir: work, Start: 1, End: 2, Stride: 1})
	require.True(t, ok)
	assert.Zero(t, set.Len())
	_, err := os.Stat(stale)
	assert.True(t, os.IsNotExist(err))
}

func TestSampleFailureIsNotEscalated(t *testing.T) {
	sampler := snapshots.New("ffmpeg", logging.NewNop())
	sampler.WithRunner(func(context.Context, string, string, ...string) ([]byte, error) {
		return nil, errors.New("exit status 1")
	})
	set, ok := sampler.Sample(context.Background(), snapshots.Request{File: "x.mp4", WorkDir: t.TempDir(), Start: 0, End: 1, Stride: 1})
	assert.False(t, ok)
	assert.Zero(t, set.Len())
}

func TestSampleWithStubbedFFmpeg(t *testing.T) {
	bin := t.TempDir()
	script := `out=""
for a in "$@"; do out="$a"; done
dir=$(dirname "$out")
: > "$dir/image_0001.jpg"
: > "$dir/image_0002.jpg"
`
	stub := testsupport.StubBinary(t, bin, "ffmpeg", script)

	set, ok := snapshots.New(stub, logging.NewNop()).Sample(context.Background(), snapshots.Request{
		File: "in.mp4", WorkDir: t.TempDir(), Start: 900, End: 2400, Stride: 125, Crop: crop,
	})
	require.True(t, ok)
	assert.Equal(t, 2, set.Len())
}
