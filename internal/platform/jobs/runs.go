package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

var ErrJobRunNotFound = errors.New("job run not found")

type JobRun struct {
	ID          string         `json:"id"`
	JobType     string         `json:"jobType"`
	Status      string         `json:"status"`
	Details     map[string]any `json:"details,omitempty"`
	StartedAt   time.Time      `json:"startedAt"`
	CompletedAt *time.Time     `json:"completedAt,omitempty"`
}

type RunFilter struct {
	JobType string
	Status  string
	Limit   int
	Offset  int
}

// ListRuns returns the most recent job runs matching f and the total count
// before paging.
func (s *Service) ListRuns(ctx context.Context, f RunFilter) ([]JobRun, int, error) {
	if f.Limit <= 0 || f.Limit > 200 {
		f.Limit = 50
	}
	var total int
	if err := s.DB.QueryRow(ctx, `
    SELECT COUNT(1)
    FROM job_runs
    WHERE ($1 = '' OR job_type = $1) AND ($2 = '' OR status = $2)
  `, f.JobType, f.Status).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := s.DB.Query(ctx, `
    SELECT id::text, job_type, status, details_json, started_at, completed_at
    FROM job_runs
    WHERE ($1 = '' OR job_type = $1) AND ($2 = '' OR status = $2)
    ORDER BY started_at DESC
    LIMIT $3 OFFSET $4
  `, f.JobType, f.Status, f.Limit, f.Offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []JobRun
	for rows.Next() {
		run, err := scanJobRun(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, run)
	}
	return out, total, rows.Err()
}

func (s *Service) GetRun(ctx context.Context, id string) (JobRun, error) {
	if _, err := uuid.Parse(id); err != nil {
		return JobRun{}, ErrJobRunNotFound
	}
	row := s.DB.QueryRow(ctx, `
    SELECT id::text, job_type, status, details_json, started_at, completed_at
    FROM job_runs
    WHERE id = $1
  `, id)
	run, err := scanJobRun(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return JobRun{}, ErrJobRunNotFound
	}
	return run, err
}

func scanJobRun(row pgx.Row) (JobRun, error) {
	var (
		run         JobRun
		detailsJSON []byte
	)
	if err := row.Scan(&run.ID, &run.JobType, &run.Status, &detailsJSON, &run.StartedAt, &run.CompletedAt); err != nil {
		return JobRun{}, err
	}
	if len(detailsJSON) > 0 {
		if err := json.Unmarshal(detailsJSON, &run.Details); err != nil {
			return JobRun{}, err
		}
	}
	return run, nil
}
