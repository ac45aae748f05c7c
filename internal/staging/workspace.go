package staging

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/gofrs/flock"

	"sentinel/internal/logging"
	"sentinel/internal/services"
)

const lockFileName = ".sentinel.lock"

// ErrInUse reports that another process holds the workspace lock.
var ErrInUse = errors.New("staging workspace in use")

// Workspace is a locked per-media work directory under the staging root.
type Workspace struct {
	MediaID string
	Dir     string

	lock   *flock.Flock
	logger *slog.Logger
}

// Acquire creates (or reuses) the work directory for mediaID and takes an
// exclusive lock on it. A second Acquire for the same media id fails with
// ErrInUse until the first is released.
func Acquire(root, mediaID string, logger *slog.Logger) (*Workspace, error) {
	root = strings.TrimSpace(root)
	mediaID = strings.TrimSpace(mediaID)
	if root == "" {
		return nil, services.Wrap(services.ErrConfiguration, "staging", "acquire", "staging_dir not configured", nil)
	}
	if mediaID == "" || strings.ContainsAny(mediaID, `/\`) || mediaID == "." || mediaID == ".." {
		return nil, services.Wrap(services.ErrValidation, "staging", "acquire", fmt.Sprintf("invalid media id %q", mediaID), nil)
	}
	dir := filepath.Join(root, mediaID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create staging dir: %w", err)
	}
	lock := flock.New(filepath.Join(dir, lockFileName))
	ok, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire staging lock: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrInUse, dir)
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	logger.Debug("staging workspace acquired",
		logging.String("path", dir),
		logging.String(logging.FieldEventType, "staging_acquired"),
	)
	return &Workspace{MediaID: mediaID, Dir: dir, lock: lock, logger: logger}, nil
}

// Release unlocks the workspace and removes it unless keep is set.
func (w *Workspace) Release(keep bool) error {
	if w == nil || w.lock == nil {
		return nil
	}
	var errs []error
	if !keep {
		if err := os.RemoveAll(w.Dir); err != nil {
			errs = append(errs, fmt.Errorf("remove staging dir: %w", err))
		}
	}
	if err := w.lock.Unlock(); err != nil {
		errs = append(errs, fmt.Errorf("release staging lock: %w", err))
	}
	w.lock = nil
	if err := errors.Join(errs...); err != nil {
		w.logger.Warn("staging workspace release failed",
			logging.String("path", w.Dir),
			logging.Error(err),
			logging.String(logging.FieldEventType, "staging_release_failed"),
			logging.String(logging.FieldErrorHint, "check staging_dir permissions"),
			logging.String(logging.FieldImpact, "disk space not reclaimed"),
		)
		return err
	}
	return nil
}

// inUse reports whether another process currently holds dir's lock.
func inUse(dir string) bool {
	lockPath := filepath.Join(dir, lockFileName)
	if _, err := os.Stat(lockPath); err != nil {
		return false
	}
	held := flock.New(lockPath)
	ok, err := held.TryLock()
	if err != nil || !ok {
		return true
	}
	_ = held.Unlock()
	return false
}
