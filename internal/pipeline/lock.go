package pipeline

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
)

var ErrLocked = errors.New("another phockup run is writing to this output directory")

// lockPath returns the lock file for an output directory, keyed by its absolute path.
func lockPath(outputDir string) (string, error) {
	abs, err := filepath.Abs(outputDir)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256([]byte(abs))
	return filepath.Join(os.TempDir(), "phockup-"+hex.EncodeToString(sum[:8])+".lock"), nil
}

// acquireLock takes the run lock of outputDir without waiting.
func acquireLock(outputDir string) (func(), error) {
	path, err := lockPath(outputDir)
	if err != nil {
		return nil, err
	}

	fl := flock.New(path)
	locked, err := fl.TryLock()
	if err != nil {
		return nil, fmt.Errorf("failed to lock %s: %w", path, err)
	}
	if !locked {
		return nil, fmt.Errorf("%w: %s", ErrLocked, outputDir)
	}

	return func() { fl.Unlock() }, nil
}
