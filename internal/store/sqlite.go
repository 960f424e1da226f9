package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/prodocs/harvest-cli/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS batches (
	id         TEXT PRIMARY KEY,
	input_path TEXT NOT NULL,
	total      INTEGER NOT NULL,
	status     TEXT NOT NULL DEFAULT 'running',
	summary    TEXT,
	created_at DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS batch_items (
	id        TEXT PRIMARY KEY,
	batch_id  TEXT NOT NULL REFERENCES batches(id),
	position  INTEGER NOT NULL,
	url       TEXT NOT NULL,
	label     TEXT,
	status    TEXT NOT NULL,
	result    TEXT NOT NULL,
	UNIQUE (batch_id, position)
);

CREATE INDEX IF NOT EXISTS idx_batches_status ON batches(status);
CREATE INDEX IF NOT EXISTS idx_batch_items_batch_id ON batch_items(batch_id);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) CreateBatch(ctx context.Context, inputPath string, total int) (*model.Batch, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO batches (id, input_path, total, status, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)`,
		id, inputPath, total, string(model.BatchRunning), now, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert batch")
	}

	return &model.Batch{
		ID:        id,
		InputPath: inputPath,
		Total:     total,
		Status:    model.BatchRunning,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

func (s *SQLiteStore) RecordItem(ctx context.Context, batchID string, index int, result *model.PipelineResult) error {
	resultJSON, err := json.Marshal(result)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal result")
	}

	// Idempotent per (batch, position): a re-run replaces the earlier row.
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO batch_items (id, batch_id, position, url, label, status, result)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (batch_id, position) DO UPDATE SET
		 url = excluded.url, label = excluded.label, status = excluded.status, result = excluded.result`,
		uuid.New().String(), batchID, index, result.URL, result.Label, string(result.Status), string(resultJSON),
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: insert item %d for batch %s", index, batchID)
	}
	return nil
}

func (s *SQLiteStore) CompleteBatch(ctx context.Context, batchID string, summary model.BatchSummary) error {
	summaryJSON, err := json.Marshal(summary)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal summary")
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE batches SET status = ?, summary = ?, updated_at = ? WHERE id = ?`,
		string(model.BatchComplete), string(summaryJSON), time.Now().UTC(), batchID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: complete batch %s", batchID)
	}
	return checkRowsAffected(res, "batch", batchID)
}

func (s *SQLiteStore) GetBatch(ctx context.Context, batchID string) (*model.Batch, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, input_path, total, status, summary, created_at, updated_at FROM batches WHERE id = ?`,
		batchID,
	)
	return scanBatch(row)
}

func (s *SQLiteStore) ListBatches(ctx context.Context, filter BatchFilter) ([]model.Batch, error) {
	query := `SELECT id, input_path, total, status, summary, created_at, updated_at FROM batches WHERE 1=1`
	var args []any

	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	query += ` ORDER BY created_at DESC`
	if filter.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list batches")
	}
	defer rows.Close() //nolint:errcheck

	var batches []model.Batch
	for rows.Next() {
		batch, err := scanBatch(rows)
		if err != nil {
			return nil, err
		}
		batches = append(batches, *batch)
	}
	return batches, eris.Wrap(rows.Err(), "sqlite: iterate batches")
}

func (s *SQLiteStore) ListItems(ctx context.Context, batchID string) ([]*model.PipelineResult, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT result FROM batch_items WHERE batch_id = ? ORDER BY position`,
		batchID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: list items for batch %s", batchID)
	}
	defer rows.Close() //nolint:errcheck

	var results []*model.PipelineResult
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan item")
		}
		var result model.PipelineResult
		if err := json.Unmarshal([]byte(raw), &result); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal item result")
		}
		results = append(results, &result)
	}
	return results, eris.Wrap(rows.Err(), "sqlite: iterate items")
}

// scanner covers both sql.Row and sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanBatch(row scanner) (*model.Batch, error) {
	var batch model.Batch
	var status string
	var summaryJSON sql.NullString

	err := row.Scan(&batch.ID, &batch.InputPath, &batch.Total, &status, &summaryJSON, &batch.CreatedAt, &batch.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, eris.Wrap(err, "sqlite: batch not found")
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan batch")
	}

	batch.Status = model.BatchStatus(status)
	if summaryJSON.Valid && summaryJSON.String != "" {
		var summary model.BatchSummary
		if err := json.Unmarshal([]byte(summaryJSON.String), &summary); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal summary")
		}
		batch.Summary = &summary
	}
	return &batch, nil
}

func checkRowsAffected(res sql.Result, kind, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "sqlite: rows affected")
	}
	if n == 0 {
		return eris.Errorf("sqlite: %s not found: %s", kind, id)
	}
	return nil
}
