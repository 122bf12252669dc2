package store

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"github.com/kalambet/reelkit/internal/video"
)

// WatchQueue calls onChange with the freshly loaded snapshot whenever the
// queue file is created or rewritten. It blocks until ctx is cancelled.
//
// The directory is watched rather than the file because the collection job
// replaces the snapshot by rename.
func (s *Store) WatchQueue(ctx context.Context, onChange func(*video.Queue)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create fsnotify watcher: %w", err)
	}
	defer watcher.Close()

	dir := filepath.Dir(s.queuePath)
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Base(event.Name) != queueFile {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			q, err := s.LoadQueue()
			if err != nil {
				slog.Warn("queue reload failed", "event", event.Op.String(), "error", err)
				continue
			}
			slog.Debug("queue reloaded", "date", q.Date, "videos", q.Len())
			onChange(q)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			slog.Error("fsnotify error", "error", err)
		}
	}
}
