package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/kalambet/reelkit/internal/video"
)

// LoadQueue reads the current queue snapshot. It returns ErrNoQueue when the
// collection job has not produced one.
func (s *Store) LoadQueue() (*video.Queue, error) {
	data, err := os.ReadFile(s.queuePath)
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNoQueue
	}
	if err != nil {
		return nil, fmt.Errorf("reading queue: %w", err)
	}

	var q video.Queue
	if err := json.Unmarshal(data, &q); err != nil {
		return nil, fmt.Errorf("parsing queue %s: %w", s.queuePath, err)
	}
	return &q, nil
}

// SaveQueue installs q as the current snapshot.
func (s *Store) SaveQueue(q *video.Queue) error {
	if q == nil {
		return errors.New("nil queue")
	}
	if err := writeJSONAtomic(s.queuePath, q); err != nil {
		return fmt.Errorf("saving queue: %w", err)
	}
	return nil
}

// Resolve returns the entry at the 1-based index. Indexes outside
// [1, len(queue)] yield ErrNotFound.
func Resolve(q *video.Queue, index int) (video.Entry, error) {
	if index < 1 || index > q.Len() {
		return video.Entry{}, fmt.Errorf("queue index %d (queue has %d videos): %w", index, q.Len(), ErrNotFound)
	}
	return q.Videos[index-1], nil
}
