// Package ffmpeg runs the ffmpeg executable for the sampling and
// post-processing stages.
package ffmpeg

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// Runner executes name with args inside dir (empty means the current
// directory) and returns combined output.
type Runner func(ctx context.Context, dir, name string, args ...string) ([]byte, error)

// Exec is the default Runner.
func Exec(ctx context.Context, dir, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out
	if err := cmd.Run(); err != nil {
		return out.Bytes(), fmt.Errorf("%s: %w: %s", name, err, tail(out.String(), 512))
	}
	return out.Bytes(), nil
}

// tail keeps the end of long tool output, where ffmpeg reports the failure.
func tail(s string, max int) string {
	s = strings.TrimSpace(s)
	if len(s) <= max {
		return s
	}
	return "..." + s[len(s)-max:]
}

// Crop is a crop rectangle in pixels.
type Crop struct {
	Width  int
	Height int
	X      int
	Y      int
}

// IsZero reports whether no crop is set.
func (c Crop) IsZero() bool { return c == Crop{} }

// Filter renders the crop filter expression.
func (c Crop) Filter() string {
	return fmt.Sprintf("crop=%d:%d:%d:%d", c.Width, c.Height, c.X, c.Y)
}
