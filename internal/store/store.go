// Package store keeps the daily video queue and the knowledge base of
// decompositions as flat JSON files under a data directory:
//
//	<dataDir>/queue/daily_videos.json
//	<dataDir>/database/videos/<videoID>_analysis.json
package store

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

var (
	// ErrNotFound is returned when a queue index or video ID does not
	// resolve to anything.
	ErrNotFound = errors.New("not found")

	// ErrNoQueue is returned when no queue snapshot has been written yet.
	// An existing snapshot with zero entries is not an error.
	ErrNoQueue = errors.New("no queue snapshot")
)

const (
	queueFile      = "daily_videos.json"
	analysisSuffix = "_analysis.json"
)

// Store reads and writes the queue snapshot and the decomposition records.
type Store struct {
	queuePath string
	videosDir string
	locksDir  string
}

// Open prepares the directory layout under dataDir.
func Open(dataDir string) (*Store, error) {
	s := &Store{
		queuePath: filepath.Join(dataDir, "queue", queueFile),
		videosDir: filepath.Join(dataDir, "database", "videos"),
		locksDir:  filepath.Join(dataDir, "database", "videos", ".locks"),
	}
	for _, dir := range []string{filepath.Dir(s.queuePath), s.videosDir, s.locksDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating %s: %w", dir, err)
		}
	}
	return s, nil
}

// QueuePath returns the location of the queue snapshot file.
func (s *Store) QueuePath() string {
	return s.queuePath
}

func (s *Store) analysisPath(videoID string) string {
	return filepath.Join(s.videosDir, videoID+analysisSuffix)
}

// validID rejects IDs that would escape the videos directory.
func validID(videoID string) error {
	if videoID == "" {
		return errors.New("empty video id")
	}
	if videoID != filepath.Base(videoID) || videoID == "." || videoID == ".." {
		return fmt.Errorf("invalid video id %q", videoID)
	}
	return nil
}
