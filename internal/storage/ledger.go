package storage

import (
	"database/sql"
	"fmt"
	"time"
)

// --- Runs ---

// SaveRun records r together with its per-item outcomes. Saving a run with
// an existing ID replaces it.
func (s *Store) SaveRun(r Run, items []RunItem) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(`
		INSERT INTO runs (id, operation, input, status, error, started_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			operation = excluded.operation, input = excluded.input, status = excluded.status,
			error = excluded.error, started_at = excluded.started_at, finished_at = excluded.finished_at`,
		r.ID, r.Operation, r.Input, r.Status, r.Error,
		r.StartedAt.UTC().Format(time.RFC3339), r.FinishedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("saving run: %w", err)
	}

	if _, err := tx.Exec(`DELETE FROM run_items WHERE run_id = ?`, r.ID); err != nil {
		return fmt.Errorf("clearing run items: %w", err)
	}
	for i, it := range items {
		_, err := tx.Exec(`
			INSERT INTO run_items (run_id, position, queue_index, video_id, status, error)
			VALUES (?, ?, ?, ?, ?, ?)`,
			r.ID, i, it.QueueIndex, it.VideoID, it.Status, it.Error,
		)
		if err != nil {
			return fmt.Errorf("saving run item %d: %w", i, err)
		}
	}

	return tx.Commit()
}

// GetRun returns the run with the given ID and its items in order.
func (s *Store) GetRun(id string) (Run, []RunItem, error) {
	var r Run
	var startedAt, finishedAt string
	err := s.db.QueryRow(`
		SELECT id, operation, input, status, error, started_at, finished_at
		FROM runs WHERE id = ?`, id,
	).Scan(&r.ID, &r.Operation, &r.Input, &r.Status, &r.Error, &startedAt, &finishedAt)
	if err == sql.ErrNoRows {
		return Run{}, nil, ErrNotFound
	}
	if err != nil {
		return Run{}, nil, err
	}
	if r.StartedAt, err = time.Parse(time.RFC3339, startedAt); err != nil {
		return Run{}, nil, fmt.Errorf("parsing started_at: %w", err)
	}
	if r.FinishedAt, err = time.Parse(time.RFC3339, finishedAt); err != nil {
		return Run{}, nil, fmt.Errorf("parsing finished_at: %w", err)
	}

	rows, err := s.db.Query(`
		SELECT run_id, position, queue_index, video_id, status, error
		FROM run_items WHERE run_id = ? ORDER BY position ASC`, id,
	)
	if err != nil {
		return Run{}, nil, err
	}
	defer rows.Close()

	var items []RunItem
	for rows.Next() {
		var it RunItem
		if err := rows.Scan(&it.RunID, &it.Position, &it.QueueIndex, &it.VideoID, &it.Status, &it.Error); err != nil {
			return Run{}, nil, err
		}
		items = append(items, it)
	}
	return r, items, rows.Err()
}

// RecentRuns returns up to limit runs, newest first.
func (s *Store) RecentRuns(limit int) ([]Run, error) {
	rows, err := s.db.Query(`
		SELECT id, operation, input, status, error, started_at, finished_at
		FROM runs ORDER BY started_at DESC, rowid DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []Run
	for rows.Next() {
		var r Run
		var startedAt, finishedAt string
		if err := rows.Scan(&r.ID, &r.Operation, &r.Input, &r.Status, &r.Error, &startedAt, &finishedAt); err != nil {
			return nil, err
		}
		if r.StartedAt, err = time.Parse(time.RFC3339, startedAt); err != nil {
			return nil, fmt.Errorf("parsing started_at: %w", err)
		}
		if r.FinishedAt, err = time.Parse(time.RFC3339, finishedAt); err != nil {
			return nil, fmt.Errorf("parsing finished_at: %w", err)
		}
		results = append(results, r)
	}
	return results, rows.Err()
}

// PruneRuns deletes runs started before cutoff together with their items
// and reports how many runs were removed. Script records are kept since the
// artifacts they point at outlive the runs.
func (s *Store) PruneRuns(cutoff time.Time) (int64, error) {
	res, err := s.db.Exec(`DELETE FROM runs WHERE started_at < ?`, cutoff.UTC().Format(time.RFC3339))
	if err != nil {
		return 0, fmt.Errorf("pruning runs: %w", err)
	}
	return res.RowsAffected()
}

// --- Scripts ---

func (s *Store) SaveScript(sc Script) error {
	_, err := s.db.Exec(`
		INSERT INTO scripts (id, run_id, operation, source_video_id, topic, product, path, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		sc.ID, sc.RunID, sc.Operation, sc.SourceVideoID, sc.Topic, sc.Product, sc.Path,
		sc.CreatedAt.UTC().Format(time.RFC3339),
	)
	return err
}

func (s *Store) GetScript(id string) (Script, error) {
	var sc Script
	var createdAt string
	err := s.db.QueryRow(`
		SELECT id, run_id, operation, source_video_id, topic, product, path, created_at
		FROM scripts WHERE id = ?`, id,
	).Scan(&sc.ID, &sc.RunID, &sc.Operation, &sc.SourceVideoID, &sc.Topic, &sc.Product, &sc.Path, &createdAt)
	if err == sql.ErrNoRows {
		return Script{}, ErrNotFound
	}
	if err != nil {
		return Script{}, err
	}
	t, err := time.Parse(time.RFC3339, createdAt)
	if err != nil {
		return Script{}, fmt.Errorf("parsing created_at: %w", err)
	}
	sc.CreatedAt = t
	return sc, nil
}

// RecentScripts returns up to limit scripts, newest first. A non-empty
// videoID restricts the result to scripts derived from that video.
func (s *Store) RecentScripts(videoID string, limit int) ([]Script, error) {
	query := `SELECT id, run_id, operation, source_video_id, topic, product, path, created_at FROM scripts`
	args := []any{}
	if videoID != "" {
		query += ` WHERE source_video_id = ?`
		args = append(args, videoID)
	}
	query += ` ORDER BY created_at DESC, rowid DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []Script
	for rows.Next() {
		var sc Script
		var createdAt string
		if err := rows.Scan(&sc.ID, &sc.RunID, &sc.Operation, &sc.SourceVideoID, &sc.Topic, &sc.Product, &sc.Path, &createdAt); err != nil {
			return nil, err
		}
		t, err := time.Parse(time.RFC3339, createdAt)
		if err != nil {
			return nil, fmt.Errorf("parsing created_at: %w", err)
		}
		sc.CreatedAt = t
		results = append(results, sc)
	}
	return results, rows.Err()
}
