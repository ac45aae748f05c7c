package staging

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"sentinel/internal/logging"
)

// Entry describes one workspace directory under the staging root. The
// directory name is the media id it was acquired for.
type Entry struct {
	MediaID  string    `json:"media_id"`
	Path     string    `json:"path"`
	Modified time.Time `json:"modified"`
	Bytes    int64     `json:"size_bytes"`
	Locked   bool      `json:"locked"`
}

// Sweep reports what a cleanup pass removed and what it could not.
type Sweep struct {
	Removed []string
	Failed  []Failure
}

type Failure struct {
	Path string
	Err  error
}

// Inventory lists the workspaces under root with their size and lock state.
// A missing or blank root yields no entries.
func Inventory(root string) ([]Entry, error) {
	entries, err := scan(root, true)
	if os.IsNotExist(err) {
		return nil, nil
	}
	return entries, err
}

// RemoveStale deletes unlocked workspaces last modified before maxAge ago.
func RemoveStale(ctx context.Context, root string, maxAge time.Duration, logger *slog.Logger) Sweep {
	cutoff := time.Now().Add(-maxAge)
	return sweep(ctx, root, "stale", logger, func(e Entry) bool {
		return e.Modified.Before(cutoff)
	})
}

// RemoveUnarchived deletes unlocked workspaces whose media id has no archived
// report. Ids match case-insensitively.
func RemoveUnarchived(ctx context.Context, root string, archived []string, logger *slog.Logger) Sweep {
	known := make(map[string]struct{}, len(archived))
	for _, id := range archived {
		known[strings.ToLower(strings.TrimSpace(id))] = struct{}{}
	}
	return sweep(ctx, root, "unarchived", logger, func(e Entry) bool {
		_, ok := known[strings.ToLower(e.MediaID)]
		return !ok
	})
}

func sweep(ctx context.Context, root, reason string, logger *slog.Logger, doomed func(Entry) bool) Sweep {
	var out Sweep
	if logger == nil {
		logger = logging.NewNop()
	}
	entries, err := scan(root, false)
	if err != nil {
		if !os.IsNotExist(err) {
			out.Failed = append(out.Failed, Failure{Path: root, Err: err})
		}
		return out
	}
	for _, e := range entries {
		if ctx.Err() != nil {
			break
		}
		if e.Locked || !doomed(e) {
			continue
		}
		if err := os.RemoveAll(e.Path); err != nil {
			out.Failed = append(out.Failed, Failure{Path: e.Path, Err: err})
			logging.WarnWithContext(logger, "staging workspace not removed", "staging_cleanup_failed",
				logging.String("path", e.Path),
				logging.String("reason", reason),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check staging_dir permissions"),
				logging.String(logging.FieldImpact, "disk space not reclaimed"),
			)
			continue
		}
		out.Removed = append(out.Removed, e.Path)
		logger.Info("staging workspace removed",
			logging.String("path", e.Path),
			logging.String("reason", reason),
			logging.Duration("age", time.Since(e.Modified)),
			logging.String(logging.FieldEventType, "staging_cleanup"),
		)
	}
	return out
}

// scan reads root's immediate subdirectories. Entries whose metadata cannot be
// read are skipped; sizes are only walked when withSize is set.
func scan(root string, withSize bool) ([]Entry, error) {
	root = strings.TrimSpace(root)
	if root == "" {
		return nil, nil
	}
	dirents, err := os.ReadDir(root)
	if err != nil {
		return nil, err
	}
	var entries []Entry
	for _, d := range dirents {
		if !d.IsDir() {
			continue
		}
		info, err := d.Info()
		if err != nil {
			continue
		}
		e := Entry{
			MediaID:  d.Name(),
			Path:     filepath.Join(root, d.Name()),
			Modified: info.ModTime(),
		}
		e.Locked = inUse(e.Path)
		if withSize {
			e.Bytes = treeBytes(e.Path)
		}
		entries = append(entries, e)
	}
	return entries, nil
}

func treeBytes(dir string) int64 {
	var total int64
	_ = filepath.WalkDir(dir, func(_ string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		if info, err := d.Info(); err == nil {
			total += info.Size()
		}
		return nil
	})
	return total
}
