package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofrs/flock"

	"github.com/kalambet/reelkit/internal/video"
)

// Save writes d as the record for d.VideoID, replacing any earlier one.
// Writers for the same video are serialized with a file lock, so concurrent
// saves from separate processes end with one complete record.
func (s *Store) Save(d video.Decomposition) error {
	if err := validID(d.VideoID); err != nil {
		return err
	}
	if d.CreatedAt.IsZero() {
		d.CreatedAt = time.Now().UTC()
	}

	lock := flock.New(filepath.Join(s.locksDir, d.VideoID+".lock"))
	if err := lock.Lock(); err != nil {
		return fmt.Errorf("locking %s: %w", d.VideoID, err)
	}
	defer lock.Unlock()

	if err := writeJSONAtomic(s.analysisPath(d.VideoID), d); err != nil {
		return fmt.Errorf("saving decomposition %s: %w", d.VideoID, err)
	}
	return nil
}

// Load returns the record for videoID or ErrNotFound.
func (s *Store) Load(videoID string) (video.Decomposition, error) {
	if err := validID(videoID); err != nil {
		return video.Decomposition{}, err
	}
	return readDecomposition(s.analysisPath(videoID))
}

// LoadAll returns every stored record ordered by video ID. Records that
// cannot be read are logged and skipped.
func (s *Store) LoadAll() ([]video.Decomposition, error) {
	entries, err := os.ReadDir(s.videosDir)
	if err != nil {
		return nil, fmt.Errorf("listing %s: %w", s.videosDir, err)
	}

	var out []video.Decomposition
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, analysisSuffix) {
			continue
		}
		d, err := readDecomposition(filepath.Join(s.videosDir, name))
		if err != nil {
			slog.Warn("skipping unreadable decomposition", "file", name, "error", err)
			continue
		}
		out = append(out, d)
	}
	return out, nil
}

// Count reports how many records are stored without parsing them.
func (s *Store) Count() (int, error) {
	entries, err := os.ReadDir(s.videosDir)
	if err != nil {
		return 0, fmt.Errorf("listing %s: %w", s.videosDir, err)
	}
	n := 0
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), analysisSuffix) {
			n++
		}
	}
	return n, nil
}

func readDecomposition(path string) (video.Decomposition, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return video.Decomposition{}, ErrNotFound
	}
	if err != nil {
		return video.Decomposition{}, err
	}

	var d video.Decomposition
	if err := json.Unmarshal(data, &d); err != nil {
		return video.Decomposition{}, fmt.Errorf("parsing %s: %w", filepath.Base(path), err)
	}
	if d.Raw == "" {
		if err := applyLegacy(data, &d); err != nil {
			return video.Decomposition{}, fmt.Errorf("parsing %s: %w", filepath.Base(path), err)
		}
	}
	if d.VideoID == "" {
		d.VideoID = strings.TrimSuffix(filepath.Base(path), analysisSuffix)
	}
	return d, nil
}
