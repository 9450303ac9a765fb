package repositories

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/desertthunder/readdon/internal/models"
	"github.com/desertthunder/readdon/internal/shared"
)

// RunRecord is the stored header of one run.
type RunRecord struct {
	ID        string
	Sequence  int
	Started   time.Time
	Finished  time.Time
	DryRun    bool
	Accounts  int
	Succeeded int
	Failed    int
}

// RunRepository persists run summaries and their per-account reports.
type RunRepository struct {
	db *sql.DB
}

// NewRunRepository creates a new [RunRepository] with the given database connection
func NewRunRepository(db *sql.DB) *RunRepository {
	return &RunRepository{db: db}
}

// Save inserts a run and all of its reports in one transaction, then sets ID and Sequence.
//
// A failed save leaves run unchanged and consumes no run number.
func (r *RunRepository) Save(run *models.RunSummary) error {
	id := run.ID
	if id == "" {
		id = shared.GenerateID()
	}

	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	sequence, err := nextRunNumber(tx)
	if err != nil {
		return err
	}

	_, err = tx.Exec(`
		INSERT INTO runs (id, sequence, started_at, finished_at, dry_run, accounts, succeeded, failed)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, id, sequence, run.Started, run.Finished, run.DryRun, len(run.Reports), run.Succeeded(), run.Failed())
	if err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}

	stmt, err := tx.Prepare(`
		INSERT INTO run_reports (
			id, run_id, identifier, outcome, reason, preserved, kept, removed, added,
			failed_items, token_refreshed, detail
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare report insert: %w", err)
	}
	defer stmt.Close()

	for _, rep := range run.Reports {
		detail, err := json.Marshal(rep)
		if err != nil {
			return fmt.Errorf("failed to encode report for %s: %w", rep.Identifier, err)
		}

		_, err = stmt.Exec(
			shared.GenerateID(), id, rep.Identifier, rep.Outcome.String(), rep.Reason,
			len(rep.Preserved), len(rep.Kept), len(rep.Removed), len(rep.Added),
			len(rep.FailedItems()), rep.TokenRefreshed, string(detail),
		)
		if err != nil {
			return fmt.Errorf("failed to insert report for %s: %w", rep.Identifier, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit run: %w", err)
	}
	run.ID, run.Sequence = id, sequence
	return nil
}

// List returns the most recent runs first. A non-positive limit returns every run.
func (r *RunRepository) List(limit int) ([]RunRecord, error) {
	query := `
		SELECT id, sequence, started_at, finished_at, dry_run, accounts, succeeded, failed
		FROM runs
		ORDER BY sequence DESC
	`
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []RunRecord
	for rows.Next() {
		var rec RunRecord
		if err := rows.Scan(
			&rec.ID, &rec.Sequence, &rec.Started, &rec.Finished, &rec.DryRun,
			&rec.Accounts, &rec.Succeeded, &rec.Failed,
		); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return runs, nil
}

// Get loads a run and its reports by ID.
func (r *RunRepository) Get(id string) (*models.RunSummary, error) {
	return r.get("id = ?", id)
}

// GetBySequence loads a run and its reports by sequence number.
func (r *RunRepository) GetBySequence(sequence int) (*models.RunSummary, error) {
	return r.get("sequence = ?", sequence)
}

func (r *RunRepository) get(where string, arg any) (*models.RunSummary, error) {
	run := &models.RunSummary{}
	err := r.db.QueryRow(
		"SELECT id, sequence, started_at, finished_at, dry_run FROM runs WHERE "+where, arg,
	).Scan(&run.ID, &run.Sequence, &run.Started, &run.Finished, &run.DryRun)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %v", shared.ErrRunNotFound, arg)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query run: %w", err)
	}

	reports, err := r.reports(run.ID)
	if err != nil {
		return nil, err
	}
	run.Reports = reports
	return run, nil
}

func (r *RunRepository) reports(runID string) ([]models.Report, error) {
	rows, err := r.db.Query(`
		SELECT detail FROM run_reports WHERE run_id = ? ORDER BY rowid
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query reports: %w", err)
	}
	defer rows.Close()

	var reports []models.Report
	for rows.Next() {
		var detail string
		if err := rows.Scan(&detail); err != nil {
			return nil, fmt.Errorf("failed to scan report: %w", err)
		}
		var rep models.Report
		if err := json.Unmarshal([]byte(detail), &rep); err != nil {
			return nil, fmt.Errorf("failed to decode report: %w", err)
		}
		reports = append(reports, rep)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return reports, nil
}

// Delete removes a run and, through the foreign key, its reports.
func (r *RunRepository) Delete(id string) error {
	result, err := r.db.Exec("DELETE FROM runs WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete run: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: %s", shared.ErrRunNotFound, id)
	}
	return nil
}

// AccountHistory returns the stored reports for one identifier, newest run first.
func (r *RunRepository) AccountHistory(identifier string, limit int) ([]models.Report, error) {
	query := `
		SELECT rr.detail
		FROM run_reports rr
		JOIN runs ON runs.id = rr.run_id
		WHERE rr.identifier = ?
		ORDER BY runs.sequence DESC
	`
	args := []any{identifier}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query account history: %w", err)
	}
	defer rows.Close()

	var reports []models.Report
	for rows.Next() {
		var detail string
		if err := rows.Scan(&detail); err != nil {
			return nil, fmt.Errorf("failed to scan report: %w", err)
		}
		var rep models.Report
		if err := json.Unmarshal([]byte(detail), &rep); err != nil {
			return nil, fmt.Errorf("failed to decode report: %w", err)
		}
		reports = append(reports, rep)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return reports, nil
}
