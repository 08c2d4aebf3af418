package preflight

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	"golang.org/x/sys/unix"
)

const ocrProbeTimeout = 5 * time.Second

// CheckOCR verifies that a key is configured and the recognition endpoint
// answers HTTP. Any response below 500 counts as reachable; the service has no
// health route and rejects bare requests.
func CheckOCR(ctx context.Context, apiURL, apiKey string) Result {
	result := Result{Name: "OCR service"}
	apiURL = strings.TrimSpace(apiURL)
	switch {
	case apiURL == "":
		result.Detail = "missing api_url"
		return result
	case strings.TrimSpace(apiKey) == "":
		result.Detail = "missing api key (set ocr.api_key or KCTVFETCH_OCR_API_KEY)"
		return result
	}

	ctx, cancel := context.WithTimeout(ctx, ocrProbeTimeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, apiURL, nil)
	if err != nil {
		result.Detail = fmt.Sprintf("bad api_url: %v", err)
		return result
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		result.Detail = describeNetError(err)
		return result
	}
	resp.Body.Close()

	if resp.StatusCode >= http.StatusInternalServerError {
		result.Detail = fmt.Sprintf("service error (%d)", resp.StatusCode)
		return result
	}
	result.Passed, result.Detail = true, "reachable"
	return result
}

// CheckDirectoryAccess verifies that path is an existing directory the
// process can list and write.
func CheckDirectoryAccess(name, path string) Result {
	if strings.TrimSpace(path) == "" {
		return Result{Name: name, Detail: "not configured"}
	}
	problem := directoryProblem(path)
	if problem != "" {
		return Result{Name: name, Detail: path + ": " + problem}
	}
	return Result{Name: name, Passed: true, Detail: path + " (read/write ok)"}
}

func directoryProblem(path string) string {
	info, err := os.Stat(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return "does not exist"
	case err != nil:
		return err.Error()
	case !info.IsDir():
		return "not a directory"
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return "insufficient permissions: " + err.Error()
	}
	return ""
}

func describeNetError(err error) string {
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return "reachability check timed out"
	}
	return err.Error()
}
