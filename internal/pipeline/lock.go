package pipeline

import (
	"fmt"

	"github.com/gofrs/flock"

	"kctvfetch/internal/services"
)

// ErrAlreadyRunning reports that another run holds the lock.
var ErrAlreadyRunning = fmt.Errorf("%w: another kctvfetch run is already in progress", services.ErrConfiguration)

// Lock is the single-instance run lock.
type Lock struct {
	path string
	lock *flock.Flock
}

// AcquireLock takes the lock at path without waiting.
func AcquireLock(path string) (*Lock, error) {
	lock := flock.New(path)
	ok, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire lock %s: %w", path, err)
	}
	if !ok {
		return nil, fmt.Errorf("%w (lock %s)", ErrAlreadyRunning, path)
	}
	return &Lock{path: path, lock: lock}, nil
}

// Path returns the lock file location.
func (l *Lock) Path() string { return l.path }

// Release unlocks. It is safe to call on a nil Lock.
func (l *Lock) Release() error {
	if l == nil || l.lock == nil {
		return nil
	}
	return l.lock.Unlock()
}
