package tempfile

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// SweepStale removes entries in dir whose name starts with prefix and whose
// modification time is older than maxAge. It returns how many were removed.
// Jobs clean up after themselves; this only catches what a crashed process
// left behind.
func SweepStale(dir, prefix string, maxAge time.Duration, now time.Time) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, fmt.Errorf("read temp dir: %w", err)
	}

	removed := 0
	cutoff := now.Add(-maxAge)
	for _, entry := range entries {
		if !strings.HasPrefix(entry.Name(), prefix) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.ModTime().After(cutoff) {
			continue
		}
		if err := os.RemoveAll(filepath.Join(dir, entry.Name())); err != nil {
			return removed, fmt.Errorf("remove stale %s: %w", entry.Name(), err)
		}
		removed++
	}
	return removed, nil
}
