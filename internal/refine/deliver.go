package refine

import (
	"fmt"
	"os"
	"path/filepath"

	"kctvfetch/internal/broadcast"
	"kctvfetch/internal/fileutil"
	"kctvfetch/internal/services"
)

// SaveFinal copies the processed working file into destDir under the final
// broadcast name and returns the delivered path and its size.
func SaveFinal(src, destDir string, date broadcast.Date) (string, int64, error) {
	info, err := os.Stat(destDir)
	if err != nil {
		return "", 0, services.Wrap(services.ErrConfiguration, "deliver", "stat destination", "Destination directory unavailable", err)
	}
	if !info.IsDir() {
		return "", 0, services.Wrap(services.ErrConfiguration, "deliver", "stat destination", fmt.Sprintf("%s is not a directory", destDir), nil)
	}
	dst := filepath.Join(destDir, date.FinalFileName())
	n, err := fileutil.CopyAtomic(src, dst)
	if err != nil {
		return "", n, services.Wrap(services.ErrExternalTool, "deliver", "copy", "Failed to deliver broadcast", err)
	}
	return dst, n, nil
}
