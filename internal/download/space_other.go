//go:build !linux && !darwin

package download

import "errors"

// FreeSpace is unavailable on this platform; callers skip the check.
func FreeSpace(string) (uint64, error) {
	return 0, errors.ErrUnsupported
}
