package jobs

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"restopay/internal/domain/attendance"
	"restopay/internal/platform/config"
	"restopay/internal/platform/metrics"
	"restopay/internal/platform/querier"
)

const JobReconcile = "attendance_reconcile"

// PeriodRunner reconciles and stores one period.
type PeriodRunner interface {
	RunPeriod(ctx context.Context, period attendance.Period, trigger string) (attendance.Result, error)
}

type Service struct {
	DB     querier.Querier
	Cfg    config.Config
	Runner PeriodRunner
	queue  chan job
	now    func() time.Time
}

type job struct {
	Type string
	Run  func(context.Context) (any, error)
}

func New(db querier.Querier, cfg config.Config, runner PeriodRunner) *Service {
	return &Service{
		DB:     db,
		Cfg:    cfg,
		Runner: runner,
		queue:  make(chan job, 128),
		now:    time.Now,
	}
}

func (s *Service) Start(ctx context.Context) {
	go s.worker(ctx)
	if s.Cfg.ReconcileInterval > 0 {
		go s.scheduleReconcile(ctx, s.Cfg.ReconcileInterval)
	}
}

func (s *Service) Enqueue(jobType string, run func(context.Context) (any, error)) {
	select {
	case s.queue <- job{Type: jobType, Run: run}:
	default:
		slog.Warn("job queue full", "jobType", jobType)
	}
}

func (s *Service) RunNow(ctx context.Context, jobType string, run func(context.Context) (any, error)) (any, error) {
	return s.runJob(ctx, job{Type: jobType, Run: run})
}

func (s *Service) worker(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case j := <-s.queue:
			if _, err := s.runJob(ctx, j); err != nil {
				slog.Warn("job run failed", "jobType", j.Type, "err", err)
			}
		}
	}
}

func (s *Service) runJob(ctx context.Context, j job) (any, error) {
	runID := ""
	if err := s.DB.QueryRow(ctx, `
    INSERT INTO job_runs (job_type, status)
    VALUES ($1,$2)
    RETURNING id::text
  `, j.Type, "running").Scan(&runID); err != nil {
		slog.Warn("job run insert failed", "err", err)
	}

	details, err := j.Run(ctx)
	status := "completed"
	if err != nil {
		status = "failed"
		details = map[string]any{"error": err.Error()}
	}
	metrics.JobRuns.WithLabelValues(j.Type, status).Inc()
	detailsJSON, marshalErr := json.Marshal(details)
	if marshalErr != nil {
		slog.Warn("job details marshal failed", "err", marshalErr)
		detailsJSON = []byte("{}")
	}
	if runID != "" {
		if _, updErr := s.DB.Exec(ctx, `
      UPDATE job_runs
      SET status = $1, details_json = $2, completed_at = now()
      WHERE id = $3
    `, status, detailsJSON, runID); updErr != nil {
			slog.Warn("job run update failed", "err", updErr)
		}
	}
	return details, err
}

func (s *Service) scheduleReconcile(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Enqueue(JobReconcile, s.ReconcileWindow)
		}
	}
}

// ReconcileWindow reconciles the whole days of the lookback window that
// ends at today's local midnight.
func (s *Service) ReconcileWindow(ctx context.Context) (any, error) {
	period, err := s.window()
	if err != nil {
		return nil, err
	}
	res, err := s.Runner.RunPeriod(ctx, period, "scheduled")
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"runId":    res.RunID,
		"from":     period.From,
		"to":       period.To,
		"isValid":  res.Validation.IsValid,
		"warnings": res.Validation.Summary.TotalWarnings,
		"errors":   res.Validation.Summary.TotalErrors,
	}, nil
}

func (s *Service) window() (attendance.Period, error) {
	loc, err := s.Cfg.Location()
	if err != nil {
		return attendance.Period{}, err
	}
	to := attendance.StartOfDay(s.now().In(loc))
	days := int((s.Cfg.ReconcileLookback + 24*time.Hour - 1) / (24 * time.Hour))
	if days < 1 {
		days = 1
	}
	return attendance.Period{From: to.AddDate(0, 0, -days), To: to}, nil
}
