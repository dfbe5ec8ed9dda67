package attendance

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Run is a persisted reconciliation result.
type Run struct {
	ID        string             `json:"id"`
	Period    *Period            `json:"period,omitempty"`
	IsValid   bool               `json:"isValid"`
	Summary   Summary            `json:"summary"`
	Stats     Stats              `json:"stats"`
	Warnings  []Issue            `json:"warnings,omitempty"`
	Errors    []Issue            `json:"errors,omitempty"`
	Timelines []EmployeeTimeline `json:"timelines,omitempty"`
	CreatedAt time.Time          `json:"createdAt"`
}

// Result rebuilds the reconciliation result the run was saved from.
func (r Run) Result() Result {
	return Result{
		RunID:     r.ID,
		Period:    r.Period,
		Timelines: r.Timelines,
		Validation: ValidationResult{
			IsValid:  r.IsValid,
			Warnings: r.Warnings,
			Errors:   r.Errors,
			Summary:  r.Summary,
		},
		Stats: r.Stats,
	}
}

// SaveRun stores the result and its issues in one transaction and returns the
// run id. A result that already carries a RunID keeps it.
func (s *Store) SaveRun(ctx context.Context, result Result) (string, error) {
	runID := result.RunID
	if runID == "" {
		runID = uuid.NewString()
	}
	statsJSON, err := json.Marshal(result.Stats)
	if err != nil {
		return "", err
	}
	timelinesJSON, err := json.Marshal(result.Timelines)
	if err != nil {
		return "", err
	}
	var from, to *time.Time
	if result.Period != nil {
		from, to = &result.Period.From, &result.Period.To
	}

	tx, err := s.DB.Begin(ctx)
	if err != nil {
		return "", err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `
    INSERT INTO reconciliation_runs (id, period_start, period_end, is_valid, total_warnings, total_errors, stats_json, timelines_json)
    VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
  `, runID, from, to, result.Validation.IsValid, result.Validation.Summary.TotalWarnings,
		result.Validation.Summary.TotalErrors, statsJSON, timelinesJSON); err != nil {
		return "", err
	}

	for i, issue := range result.Validation.Issues() {
		relatedJSON, err := json.Marshal(issue.Related)
		if err != nil {
			return "", err
		}
		metaJSON, err := json.Marshal(issue.Meta)
		if err != nil {
			return "", err
		}
		if _, err := tx.Exec(ctx, `
      INSERT INTO reconciliation_issues (run_id, position, severity, code, employee_id, message, related_json, meta_json)
      VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
    `, runID, i, issue.Severity, issue.Code, issue.EmployeeID, issue.Message, relatedJSON, metaJSON); err != nil {
			return "", err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return "", err
	}
	return runID, nil
}

func (s *Store) GetRun(ctx context.Context, runID string) (Run, error) {
	if _, err := uuid.Parse(runID); err != nil {
		return Run{}, ErrRunNotFound
	}
	var (
		run                      Run
		from, to                 *time.Time
		statsJSON, timelinesJSON []byte
	)
	err := s.DB.QueryRow(ctx, `
    SELECT id::text, period_start, period_end, is_valid, total_warnings, total_errors,
           stats_json, timelines_json, created_at
    FROM reconciliation_runs
    WHERE id = $1
  `, runID).Scan(&run.ID, &from, &to, &run.IsValid, &run.Summary.TotalWarnings, &run.Summary.TotalErrors,
		&statsJSON, &timelinesJSON, &run.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Run{}, ErrRunNotFound
		}
		return Run{}, err
	}
	if from != nil && to != nil {
		run.Period = &Period{From: *from, To: *to}
	}
	if err := json.Unmarshal(statsJSON, &run.Stats); err != nil {
		return Run{}, err
	}
	if len(timelinesJSON) > 0 {
		if err := json.Unmarshal(timelinesJSON, &run.Timelines); err != nil {
			return Run{}, err
		}
	}

	rows, err := s.DB.Query(ctx, `
    SELECT severity, code, COALESCE(employee_id, ''), message, related_json, meta_json
    FROM reconciliation_issues
    WHERE run_id = $1
    ORDER BY position
  `, runID)
	if err != nil {
		return Run{}, err
	}
	defer rows.Close()
	run.Warnings, run.Errors = []Issue{}, []Issue{}
	for rows.Next() {
		var (
			issue                 Issue
			relatedJSON, metaJSON []byte
		)
		if err := rows.Scan(&issue.Severity, &issue.Code, &issue.EmployeeID, &issue.Message, &relatedJSON, &metaJSON); err != nil {
			return Run{}, err
		}
		if len(relatedJSON) > 0 {
			if err := json.Unmarshal(relatedJSON, &issue.Related); err != nil {
				return Run{}, err
			}
		}
		if len(metaJSON) > 0 {
			if err := json.Unmarshal(metaJSON, &issue.Meta); err != nil {
				return Run{}, err
			}
		}
		if issue.Severity == SeverityError {
			run.Errors = append(run.Errors, issue)
		} else {
			run.Warnings = append(run.Warnings, issue)
		}
	}
	return run, rows.Err()
}

// ListRuns returns run headers, newest first, without issues or timelines.
func (s *Store) ListRuns(ctx context.Context, limit, offset int) ([]Run, int, error) {
	var total int
	if err := s.DB.QueryRow(ctx, "SELECT COUNT(1) FROM reconciliation_runs").Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := s.DB.Query(ctx, `
    SELECT id::text, period_start, period_end, is_valid, total_warnings, total_errors, stats_json, created_at
    FROM reconciliation_runs
    ORDER BY created_at DESC
    LIMIT $1 OFFSET $2
  `, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var (
			run       Run
			from, to  *time.Time
			statsJSON []byte
		)
		if err := rows.Scan(&run.ID, &from, &to, &run.IsValid, &run.Summary.TotalWarnings, &run.Summary.TotalErrors, &statsJSON, &run.CreatedAt); err != nil {
			return nil, 0, err
		}
		if from != nil && to != nil {
			run.Period = &Period{From: *from, To: *to}
		}
		if err := json.Unmarshal(statsJSON, &run.Stats); err != nil {
			return nil, 0, err
		}
		runs = append(runs, run)
	}
	return runs, total, rows.Err()
}
