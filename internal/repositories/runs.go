package repositories

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/desertthunder/mixtape/internal/models"
	"github.com/desertthunder/mixtape/internal/shared"
)

// RunRepository persists pipeline run records.
type RunRepository struct {
	db *sql.DB
}

// NewRunRepository creates a new RunRepository with the given database connection
func NewRunRepository(db *sql.DB) *RunRepository {
	return &RunRepository{db: db}
}

// Create inserts a new run record with a generated ID and sequence
func (r *RunRepository) Create(run *models.Run) error {
	sequence, err := NextSequence(r.db, "runs")
	if err != nil {
		return fmt.Errorf("failed to generate sequence: %w", err)
	}

	if run.RunID == "" {
		run.RunID = shared.GenerateID()
	}
	if run.Created.IsZero() {
		run.Created = time.Now().UTC()
	}

	if err := run.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	query := `
		INSERT INTO runs (
			id, sequence, prompt, playlist_id, resolved_count,
			failed_count, report_json, created_at
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	var playlistID any = run.PlaylistID
	if run.PlaylistID == "" {
		playlistID = nil
	}

	_, err = r.db.Exec(query,
		run.RunID,
		sequence,
		run.Prompt,
		playlistID,
		run.ResolvedCount,
		run.FailedCount,
		run.ReportJSON,
		run.Created,
	)
	if err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}

	return nil
}

// Get retrieves a run by ID
func (r *RunRepository) Get(id string) (*models.Run, error) {
	query := `
		SELECT id, prompt, playlist_id, resolved_count, failed_count, report_json, created_at
		FROM runs
		WHERE id = ?
	`

	run := &models.Run{}
	var playlistID sql.NullString

	err := r.db.QueryRow(query, id).Scan(
		&run.RunID,
		&run.Prompt,
		&playlistID,
		&run.ResolvedCount,
		&run.FailedCount,
		&run.ReportJSON,
		&run.Created,
	)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("run %s: %w", id, shared.ErrRunNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}

	if playlistID.Valid {
		run.PlaylistID = playlistID.String
	}

	return run, nil
}

// List returns the most recent runs, newest first.
func (r *RunRepository) List(limit int) ([]*models.Run, error) {
	if limit <= 0 {
		limit = 20
	}

	query := `
		SELECT id, prompt, playlist_id, resolved_count, failed_count, report_json, created_at
		FROM runs
		ORDER BY sequence DESC
		LIMIT ?
	`

	rows, err := r.db.Query(query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var runs []*models.Run
	for rows.Next() {
		run := &models.Run{}
		var playlistID sql.NullString

		if err := rows.Scan(
			&run.RunID,
			&run.Prompt,
			&playlistID,
			&run.ResolvedCount,
			&run.FailedCount,
			&run.ReportJSON,
			&run.Created,
		); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}

		if playlistID.Valid {
			run.PlaylistID = playlistID.String
		}
		runs = append(runs, run)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate runs: %w", err)
	}

	return runs, nil
}
