package factstore

import (
	"context"
	"database/sql"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"vocatio/internal/errors"
	"vocatio/internal/types"
)

// SQLiteArchive stores optimized records in a local SQLite database.
type SQLiteArchive struct {
	db     *sql.DB
	logger *errors.Logger
}

// OpenSQLiteArchive opens (and migrates) the database at path.
func OpenSQLiteArchive(path string, logger *errors.Logger) (*SQLiteArchive, error) {
	if path == "" {
		return nil, errors.NewConfigError(errors.ErrCodeInvalidConfig, "sqlite storage requires a path", nil)
	}

	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, errors.NewIOError(errors.ErrCodeStorageFailed, "failed to open archive database", err)
	}

	// one writer
	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, errors.NewIOError(errors.ErrCodeStorageFailed, "failed to reach archive database", err)
	}

	if err := migrate(db); err != nil {
		_ = db.Close()
		return nil, errors.NewIOError(errors.ErrCodeStorageFailed, "failed to migrate archive database", err)
	}

	if logger != nil {
		logger.Info("Opened optimized record archive", "driver", DriverSQLite, "path", path)
	}
	return &SQLiteArchive{db: db, logger: logger}, nil
}

func migrate(db *sql.DB) error {
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	var v int
	if err := tx.QueryRow(`PRAGMA user_version;`).Scan(&v); err != nil {
		return err
	}
	if v >= 2 {
		return tx.Commit()
	}

	if v < 1 {
		if err := createTables(tx); err != nil {
			return err
		}
	}
	if _, err := tx.Exec(`ALTER TABLE optimized_records ADD COLUMN metrics TEXT;`); err != nil {
		return err
	}
	if _, err := tx.Exec(`PRAGMA user_version = 2;`); err != nil {
		return err
	}
	return tx.Commit()
}

func createTables(tx *sql.Tx) error {
	if _, err := tx.Exec(`
CREATE TABLE IF NOT EXISTS optimized_records (
  id TEXT PRIMARY KEY,
  source_id TEXT NOT NULL,
  job_id TEXT NOT NULL DEFAULT '',
  version INTEGER NOT NULL,
  created_at TEXT NOT NULL,
  attempts INTEGER NOT NULL DEFAULT 1,
  record TEXT NOT NULL,
  token_usage TEXT,
  UNIQUE(source_id, version)
);`); err != nil {
		return err
	}
	_, err := tx.Exec(`CREATE INDEX IF NOT EXISTS idx_optimized_source ON optimized_records(source_id);`)
	return err
}

func (a *SQLiteArchive) Save(ctx context.Context, record *types.OptimizedCandidateRecord) error {
	recordJSON, err := json.Marshal(record.Record)
	if err != nil {
		return errors.NewInternalError(errors.ErrCodeStorageFailed, "failed to encode optimized record", err)
	}

	var usageJSON sql.NullString
	if record.TokenUsage != nil {
		b, err := json.Marshal(record.TokenUsage)
		if err != nil {
			return errors.NewInternalError(errors.ErrCodeStorageFailed, "failed to encode token usage", err)
		}
		usageJSON = sql.NullString{String: string(b), Valid: true}
	}

	var metricsJSON sql.NullString
	if record.Metrics != nil {
		b, err := json.Marshal(record.Metrics)
		if err != nil {
			return errors.NewInternalError(errors.ErrCodeStorageFailed, "failed to encode optimization metrics", err)
		}
		metricsJSON = sql.NullString{String: string(b), Valid: true}
	}

	var version int
	err = a.db.QueryRowContext(ctx, `
INSERT INTO optimized_records(id, source_id, job_id, version, created_at, attempts, record, token_usage, metrics)
SELECT ?, ?, ?, COALESCE(MAX(version), 0) + 1, ?, ?, ?, ?, ?
FROM optimized_records WHERE source_id = ?
RETURNING version;`,
		record.ID, record.SourceID, record.JobID,
		record.CreatedAt.UTC().Format(time.RFC3339Nano), record.Attempts,
		string(recordJSON), usageJSON, metricsJSON, record.SourceID,
	).Scan(&version)
	if err != nil {
		return errors.NewIOError(errors.ErrCodeStorageFailed, "failed to archive optimized record", err).
			WithContext("optimized_id", record.ID)
	}
	record.Version = version
	return nil
}

const selectColumns = `id, source_id, job_id, version, created_at, attempts, record, token_usage, metrics`

func (a *SQLiteArchive) Get(ctx context.Context, id string) (*types.OptimizedCandidateRecord, error) {
	row := a.db.QueryRowContext(ctx, `SELECT `+selectColumns+` FROM optimized_records WHERE id = ? LIMIT 1;`, id)
	record, err := scanOptimized(row)
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, errors.NewIOError(errors.ErrCodeStorageFailed, "failed to read optimized record", err)
	}
	return record, nil
}

func (a *SQLiteArchive) ListBySource(ctx context.Context, sourceID string) ([]*types.OptimizedCandidateRecord, error) {
	rows, err := a.db.QueryContext(ctx,
		`SELECT `+selectColumns+` FROM optimized_records WHERE source_id = ? ORDER BY version ASC;`, sourceID)
	if err != nil {
		return nil, errors.NewIOError(errors.ErrCodeStorageFailed, "failed to list optimized records", err)
	}
	defer func() { _ = rows.Close() }()

	var out []*types.OptimizedCandidateRecord
	for rows.Next() {
		record, err := scanOptimized(rows)
		if err != nil {
			return nil, errors.NewIOError(errors.ErrCodeStorageFailed, "failed to read optimized record", err)
		}
		out = append(out, record)
	}
	return out, rows.Err()
}

func (a *SQLiteArchive) NextVersion(ctx context.Context, sourceID string) (int, error) {
	var latest sql.NullInt64
	err := a.db.QueryRowContext(ctx,
		`SELECT MAX(version) FROM optimized_records WHERE source_id = ?;`, sourceID).Scan(&latest)
	if err != nil {
		return 0, errors.NewIOError(errors.ErrCodeStorageFailed, "failed to read archive version", err)
	}
	return int(latest.Int64) + 1, nil
}

func (a *SQLiteArchive) Close() error {
	if a == nil || a.db == nil {
		return nil
	}
	return a.db.Close()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanOptimized(s scanner) (*types.OptimizedCandidateRecord, error) {
	var (
		out         types.OptimizedCandidateRecord
		createdAt   string
		recordJSON  string
		usageJSON   sql.NullString
		metricsJSON sql.NullString
	)
	if err := s.Scan(&out.ID, &out.SourceID, &out.JobID, &out.Version, &createdAt, &out.Attempts, &recordJSON, &usageJSON, &metricsJSON); err != nil {
		return nil, err
	}

	t, err := time.Parse(time.RFC3339Nano, createdAt)
	if err != nil {
		return nil, fmt.Errorf("invalid created_at %q: %w", createdAt, err)
	}
	out.CreatedAt = t

	if err := json.Unmarshal([]byte(recordJSON), &out.Record); err != nil {
		return nil, fmt.Errorf("invalid record json: %w", err)
	}
	if usageJSON.Valid {
		out.TokenUsage = &types.TokenUsage{}
		if err := json.Unmarshal([]byte(usageJSON.String), out.TokenUsage); err != nil {
			return nil, fmt.Errorf("invalid token usage json: %w", err)
		}
	}
	if metricsJSON.Valid {
		out.Metrics = &types.OptimizationMetrics{}
		if err := json.Unmarshal([]byte(metricsJSON.String), out.Metrics); err != nil {
			return nil, fmt.Errorf("invalid metrics json: %w", err)
		}
	}
	return &out, nil
}
