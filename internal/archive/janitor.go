package archive

// janitor.go removes abandoned temporary files from the archive
// directory. A temp file survives only when the process died between
// write and rename, so anything older than maxAge is garbage.
//
// The janitor is long-running and context-aware for graceful shutdown.
// It logs sweep results but never fails the application.

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// RunJanitor sweeps immediately, then every interval, until ctx is
// cancelled. Temp files older than maxAge are deleted.
func (a *Archive) RunJanitor(ctx context.Context, interval, maxAge time.Duration) {
	slog.Info("archive janitor started",
		"dir", a.dir,
		"interval", interval.String(),
		"max_age", maxAge.String(),
	)

	a.sweep(maxAge)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("archive janitor stopped")
			return
		case <-ticker.C:
			a.sweep(maxAge)
		}
	}
}

// sweep performs one cleanup pass.
func (a *Archive) sweep(maxAge time.Duration) {
	entries, err := os.ReadDir(a.dir)
	if err != nil {
		slog.Error("archive janitor: read dir failed", "dir", a.dir, "error", err)
		return
	}

	cutoff := time.Now().Add(-maxAge)
	removed := 0
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), tmpSuffix) {
			continue
		}
		info, err := entry.Info()
		if err != nil || info.ModTime().After(cutoff) {
			continue
		}
		path := filepath.Join(a.dir, entry.Name())
		if err := os.Remove(path); err != nil {
			slog.Warn("archive janitor: remove failed", "path", path, "error", err)
			continue
		}
		removed++
	}

	if removed > 0 {
		slog.Info("archive janitor: removed stale temp files", "count", removed)
	}
}
