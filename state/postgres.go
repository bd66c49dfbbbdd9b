package state

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/synapsedaili/youtube-automation/types"
)

// PostgresLog keeps the upload log in a shared Postgres table so several
// runners can report into one history.
type PostgresLog struct {
	pool *pgxpool.Pool
}

func NewPostgresLog(ctx context.Context, connString string) (*PostgresLog, error) {
	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, fmt.Errorf("%w: postgres: %w", types.ErrConfiguration, err)
	}
	_, err = pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS upload_log (
			id BIGSERIAL PRIMARY KEY,
			uploaded_at TEXT NOT NULL,
			external_video_id TEXT NOT NULL,
			title TEXT NOT NULL,
			mode TEXT NOT NULL
		)`)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres schema: %w", err)
	}
	return &PostgresLog{pool: pool}, nil
}

func (p *PostgresLog) Close() {
	if p.pool != nil {
		p.pool.Close()
	}
}

func (p *PostgresLog) Append(ctx context.Context, rec types.UploadRecord) error {
	_, err := p.pool.Exec(ctx, `
		INSERT INTO upload_log (uploaded_at, external_video_id, title, mode)
		VALUES ($1, $2, $3, $4)`, rec.Timestamp, rec.ExternalVideoID, rec.Title, string(rec.Mode))
	return err
}

func (p *PostgresLog) Records(ctx context.Context) ([]types.UploadRecord, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT uploaded_at, external_video_id, title, mode
		FROM upload_log
		ORDER BY id`)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (types.UploadRecord, error) {
		var rec types.UploadRecord
		var mode string
		err := row.Scan(&rec.Timestamp, &rec.ExternalVideoID, &rec.Title, &mode)
		rec.Mode = types.Mode(mode)
		return rec, err
	})
}
