package engine

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
)

// LockFileName is created in the base path while a run is active.
const LockFileName = ".orgsync.lock"

var ErrLocked = errors.New("another sync is already running in this directory")

// acquireRunLock creates basePath if needed and takes an exclusive,
// non-blocking lock on basePath/LockFileName.
func acquireRunLock(basePath string) (*flock.Flock, error) {
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("create base path: %w", err)
	}

	fl := flock.New(filepath.Join(basePath, LockFileName))
	ok, err := fl.TryLock()
	if err != nil {
		return nil, fmt.Errorf("lock %s: %w", fl.Path(), err)
	}
	if !ok {
		return nil, fmt.Errorf("%s: %w", basePath, ErrLocked)
	}
	return fl, nil
}
