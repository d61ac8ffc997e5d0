package observers

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// PurgeExpired deletes per-call timelines whose last write is older than
// maxAge and returns how many went. Timelines of calls still in progress are
// kept regardless of age, as is anything in the directory that is not a
// timeline. A zero maxAge keeps everything.
func (o *TimelineObserver) PurgeExpired(maxAge time.Duration) (int, error) {
	if strings.TrimSpace(o.dir) == "" || maxAge <= 0 {
		return 0, nil
	}
	entries, err := os.ReadDir(o.dir)
	if errors.Is(err, os.ErrNotExist) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	cutoff := time.Now().Add(-maxAge)
	var (
		purged int
		errs   error
	)
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || filepath.Ext(name) != ".jsonl" {
			continue
		}
		path := filepath.Join(o.dir, name)
		if o.files[path] != nil {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			errs = errors.Join(errs, err)
			continue
		}
		if !info.ModTime().Before(cutoff) {
			continue
		}
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			errs = errors.Join(errs, err)
			continue
		}
		purged++
	}
	return purged, errs
}
