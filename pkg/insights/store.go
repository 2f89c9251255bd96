// Package insights caches the operator's saved insights in a local
// SQLite database. The platform owns the collection; the cache keeps
// the inbox usable offline and tracks local edits until the next sync.
package insights

import (
	"context"
	"database/sql"
	_ "embed"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/agentdeck/agentdeck/pkg/errors"
	"github.com/agentdeck/agentdeck/pkg/logging"
	"github.com/agentdeck/agentdeck/pkg/platform"
)

//go:embed schema.sql
var schemaSQL string

// Store is the local insight cache.
type Store struct {
	db     *sql.DB
	logger *logging.Logger
}

// Open creates or opens the cache database at path. Use ":memory:" for
// an ephemeral cache.
func Open(path string, logger *logging.Logger) (*Store, error) {
	if path != ":memory:" {
		if dir := filepath.Dir(path); dir != "" && dir != "." {
			if err := os.MkdirAll(dir, 0o700); err != nil {
				return nil, errors.Wrap(err, errors.ErrCodeStorageWrite, "create cache directory")
			}
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeStorageRead, "open cache database")
	}

	// One writer, many readers under WAL. The busy timeout waits out
	// writer contention instead of surfacing SQLITE_BUSY. An in-memory
	// database exists per connection, so it gets a single shared one.
	if path == ":memory:" {
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(10)
		db.SetMaxIdleConns(5)
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, errors.Wrap(err, errors.ErrCodeStorageWrite, "configure cache database")
		}
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, errors.Wrap(err, errors.ErrCodeStorageWrite, "apply cache schema")
	}

	return &Store{db: db, logger: logger}, nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// List returns all cached insights, pinned first, newest first within
// each group.
func (s *Store) List(ctx context.Context) ([]platform.Insight, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, title, body, thread_id, pinned, created_at, updated_at
		FROM insights
		ORDER BY pinned DESC, updated_at DESC`)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeStorageRead, "list insights")
	}
	defer rows.Close()

	var out []platform.Insight
	for rows.Next() {
		var in platform.Insight
		if err := rows.Scan(&in.ID, &in.Title, &in.Body, &in.ThreadID, &in.Pinned, &in.CreatedAt, &in.UpdatedAt); err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeStorageRead, "scan insight")
		}
		out = append(out, in)
	}
	return out, rows.Err()
}

// Get fetches one cached insight by id.
func (s *Store) Get(ctx context.Context, id string) (*platform.Insight, error) {
	var in platform.Insight
	err := s.db.QueryRowContext(ctx, `
		SELECT id, title, body, thread_id, pinned, created_at, updated_at
		FROM insights WHERE id = ?`, id).
		Scan(&in.ID, &in.Title, &in.Body, &in.ThreadID, &in.Pinned, &in.CreatedAt, &in.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, errors.New(errors.ErrCodeStorageRead, "insight not found").
			WithContext("id", id)
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeStorageRead, "get insight")
	}
	return &in, nil
}

// Put upserts an insight into the cache without marking it dirty; used
// for records arriving from the platform.
func (s *Store) Put(ctx context.Context, in platform.Insight) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO insights (id, title, body, thread_id, pinned, dirty, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, 0, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			body = excluded.body,
			thread_id = excluded.thread_id,
			pinned = excluded.pinned,
			dirty = 0,
			updated_at = excluded.updated_at`,
		in.ID, in.Title, in.Body, in.ThreadID, in.Pinned, in.CreatedAt, in.UpdatedAt)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeStorageWrite, "put insight")
	}
	return nil
}

// SetPinned toggles the pin flag locally and marks the record dirty.
func (s *Store) SetPinned(ctx context.Context, id string, pinned bool) error {
	return s.localUpdate(ctx, id, "SetPinned", `
		UPDATE insights SET pinned = ?, dirty = 1, updated_at = ? WHERE id = ?`,
		pinned, time.Now().UTC(), id)
}

// UpdateBody rewrites the insight text locally and marks the record
// dirty.
func (s *Store) UpdateBody(ctx context.Context, id, body string) error {
	return s.localUpdate(ctx, id, "UpdateBody", `
		UPDATE insights SET body = ?, dirty = 1, updated_at = ? WHERE id = ?`,
		body, time.Now().UTC(), id)
}

func (s *Store) localUpdate(ctx context.Context, id, operation, query string, args ...any) error {
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeStorageWrite, "update insight").
			WithContext("id", id)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return errors.New(errors.ErrCodeStorageWrite, "insight not found").
			WithContext("id", id).
			WithContext("operation", operation)
	}
	return nil
}

// Delete removes an insight from the cache.
func (s *Store) Delete(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM insights WHERE id = ?`, id)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeStorageWrite, "delete insight")
	}
	return nil
}

// Dirty returns the locally edited insights awaiting a push.
func (s *Store) Dirty(ctx context.Context) ([]platform.Insight, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, title, body, thread_id, pinned, created_at, updated_at
		FROM insights WHERE dirty = 1`)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeStorageRead, "list dirty insights")
	}
	defer rows.Close()

	var out []platform.Insight
	for rows.Next() {
		var in platform.Insight
		if err := rows.Scan(&in.ID, &in.Title, &in.Body, &in.ThreadID, &in.Pinned, &in.CreatedAt, &in.UpdatedAt); err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeStorageRead, "scan insight")
		}
		out = append(out, in)
	}
	return out, rows.Err()
}

// Sync pushes dirty local edits to the platform, then replaces the
// cache with the backend's collection. Push before pull so local edits
// are never clobbered by their own stale remote copy.
func (s *Store) Sync(ctx context.Context, client *platform.Client) error {
	dirty, err := s.Dirty(ctx)
	if err != nil {
		return err
	}
	for _, in := range dirty {
		if _, err := client.UpdateInsight(ctx, in); err != nil {
			s.logger.Error(logging.CategoryInsight, "sync_push_failed", err, map[string]any{
				"operation": "sync",
				"component": "insight_store",
				"id":        in.ID,
			})
			return err
		}
	}

	remote, err := client.ListInsights(ctx)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeStorageWrite, "begin sync transaction")
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM insights`); err != nil {
		return errors.Wrap(err, errors.ErrCodeStorageWrite, "clear cache")
	}
	for _, in := range remote {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO insights (id, title, body, thread_id, pinned, dirty, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, 0, ?, ?)`,
			in.ID, in.Title, in.Body, in.ThreadID, in.Pinned, in.CreatedAt, in.UpdatedAt); err != nil {
			return errors.Wrap(err, errors.ErrCodeStorageWrite, "insert synced insight")
		}
	}
	if err := tx.Commit(); err != nil {
		return errors.Wrap(err, errors.ErrCodeStorageWrite, "commit sync")
	}

	s.logger.Info(logging.CategoryInsight, "synced", "", map[string]any{
		"pushed": len(dirty),
		"pulled": len(remote),
	})
	return nil
}
