package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// ReconciliationRun records one processed statement upload. The file hash
// makes re-uploads of the same statement detectable.
type ReconciliationRun struct {
	ID             string    `json:"id"`
	FileHash       string    `json:"file_hash"`
	DetectedFormat string    `json:"detected_format"`
	RowCount       int       `json:"row_count"`
	MatchCount     int       `json:"match_count"`
	IngestedAt     time.Time `json:"ingested_at"`
}

type RunRepo struct {
	db DBTX
}

func NewRunRepo(db DBTX) *RunRepo {
	return &RunRepo{db: db}
}

func (r *RunRepo) Insert(ctx context.Context, run *ReconciliationRun) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO reconciliation_runs
		(id, file_hash, detected_format, row_count, match_count, ingested_at)
		VALUES (?,?,?,?,?,?)`,
		run.ID, run.FileHash, run.DetectedFormat, run.RowCount, run.MatchCount,
		run.IngestedAt.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

// GetByHash returns the run for a previously ingested statement, or
// ErrNotFound when the file has not been seen before.
func (r *RunRepo) GetByHash(ctx context.Context, hash string) (*ReconciliationRun, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, file_hash, detected_format, row_count, match_count, ingested_at
		 FROM reconciliation_runs WHERE file_hash = ?`, hash)

	var run ReconciliationRun
	var ingestedAt string
	err := row.Scan(&run.ID, &run.FileHash, &run.DetectedFormat,
		&run.RowCount, &run.MatchCount, &ingestedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	run.IngestedAt, _ = time.Parse(time.RFC3339, ingestedAt)
	return &run, nil
}
