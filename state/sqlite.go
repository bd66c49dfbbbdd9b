package state

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
	"github.com/synapsedaili/youtube-automation/types"
)

// SQLiteStore keeps the rotation cursor and the upload log in one
// embedded database file.
type SQLiteStore struct {
	db *sql.DB
}

func OpenSQLite(ctx context.Context, path string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}
	_, err = db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS rotation_cursor (
			id INTEGER PRIMARY KEY CHECK (id = 1),
			value INTEGER NOT NULL
		);
		CREATE TABLE IF NOT EXISTS upload_log (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			timestamp TEXT NOT NULL,
			external_video_id TEXT NOT NULL,
			title TEXT NOT NULL,
			mode TEXT NOT NULL
		);`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) Cursor(ctx context.Context) (int, error) {
	var v int
	err := s.db.QueryRowContext(ctx, `SELECT value FROM rotation_cursor WHERE id = 1`).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return 1, s.SetCursor(ctx, 1)
	}
	return v, err
}

func (s *SQLiteStore) SetCursor(ctx context.Context, cursor int) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO rotation_cursor (id, value) VALUES (1, ?)
		ON CONFLICT(id) DO UPDATE SET value = excluded.value`, cursor)
	return err
}

func (s *SQLiteStore) Append(ctx context.Context, rec types.UploadRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO upload_log (timestamp, external_video_id, title, mode)
		VALUES (?, ?, ?, ?)`, rec.Timestamp, rec.ExternalVideoID, rec.Title, string(rec.Mode))
	return err
}

func (s *SQLiteStore) Records(ctx context.Context) ([]types.UploadRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT timestamp, external_video_id, title, mode
		FROM upload_log
		ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []types.UploadRecord
	for rows.Next() {
		var rec types.UploadRecord
		var mode string
		if err := rows.Scan(&rec.Timestamp, &rec.ExternalVideoID, &rec.Title, &mode); err != nil {
			return nil, err
		}
		rec.Mode = types.Mode(mode)
		out = append(out, rec)
	}
	return out, rows.Err()
}
