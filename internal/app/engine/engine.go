package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"

	"restopay/internal/domain/attendance"
	"restopay/internal/domain/payroll"
	"restopay/internal/platform/config"
	"restopay/internal/platform/metrics"
)

const (
	TriggerAPI       = "api"
	TriggerScheduled = "scheduled"
	TriggerCLI       = "cli"
)

// ErrNoStore is returned by operations that need Postgres when the engine was
// built without it.
var ErrNoStore = errors.New("engine has no store")

// Settings is one consistent view of the tunables: environment values with
// the rules file layered on top.
type Settings struct {
	Options attendance.Options
	Policy  payroll.Policy
}

// Build layers rules over cfg. A nil rules value means environment only.
func Build(cfg config.Config, rules *config.Rules) (Settings, error) {
	loc, err := cfg.Location()
	if err != nil {
		return Settings{}, err
	}
	opts := attendance.Options{
		Normalize: attendance.NormalizeOptions{
			IncludeValidatedOnly: cfg.IncludeValidatedOnly,
			Location:             loc,
		},
		Priorities: attendance.DefaultPriorities(),
		Validation: attendance.ValidatorConfig{
			MaxDailyHours:          cfg.MaxDailyHours,
			MaxWeeklyHours:         cfg.MaxWeeklyHours,
			HoursMismatchTolerance: cfg.HoursMismatchTolerance,
		},
		Workers: cfg.ReconcileWorkers,
	}
	policy := payroll.DefaultPolicy()
	if rules == nil {
		return Settings{Options: opts, Policy: policy}, nil
	}

	if len(rules.Priorities) > 0 {
		if opts.Priorities, err = attendance.ParsePriorities(rules.Priorities); err != nil {
			return Settings{}, err
		}
	}
	if rules.MaxDailyHours > 0 {
		opts.Validation.MaxDailyHours = rules.MaxDailyHours
	}
	if rules.MaxWeeklyHours > 0 {
		opts.Validation.MaxWeeklyHours = rules.MaxWeeklyHours
	}
	if rules.HoursMismatchTolerance > 0 {
		opts.Validation.HoursMismatchTolerance = rules.HoursMismatchTolerance
	}
	if rules.IncludeValidatedOnly != nil {
		opts.Normalize.IncludeValidatedOnly = *rules.IncludeValidatedOnly
	}
	for _, clock := range []string{rules.BusinessDay.Start, rules.BusinessDay.End} {
		if clock == "" {
			continue
		}
		if _, err := attendance.AtClock(time.Time{}, clock); err != nil {
			return Settings{}, fmt.Errorf("business day: %w", err)
		}
	}
	opts.Normalize.BusinessDayStart = rules.BusinessDay.Start
	opts.Normalize.BusinessDayEnd = rules.BusinessDay.End

	if rules.Payroll.DailyRegularHours > 0 {
		policy.DailyRegularHours = decimal.NewFromFloat(rules.Payroll.DailyRegularHours)
	}
	if rules.Payroll.WeeklyRegularHours > 0 {
		policy.WeeklyRegularHours = decimal.NewFromFloat(rules.Payroll.WeeklyRegularHours)
	}
	if rules.Payroll.Night.Start != "" {
		policy.NightStart = rules.Payroll.Night.Start
	}
	if rules.Payroll.Night.End != "" {
		policy.NightEnd = rules.Payroll.Night.End
	}
	if err := policy.Validate(); err != nil {
		return Settings{}, err
	}
	return Settings{Options: opts, Policy: policy}, nil
}

type state struct {
	reconciler *attendance.Reconciler
	policy     payroll.Policy
}

// Engine owns the live reconciler. Rules reloads swap it atomically, so a run
// in flight finishes with the settings it started with.
type Engine struct {
	cfg       config.Config
	store     *attendance.Store
	observers []attendance.Observer
	current   atomic.Pointer[state]
}

// New builds the engine. store may be nil when only in-memory batches are
// reconciled.
func New(cfg config.Config, rules *config.Rules, store *attendance.Store, observers ...attendance.Observer) (*Engine, error) {
	e := &Engine{cfg: cfg, store: store, observers: observers}
	if err := e.Apply(rules); err != nil {
		return nil, err
	}
	return e, nil
}

// Apply rebuilds the reconciler from rules. Invalid rules leave the current
// reconciler in place.
func (e *Engine) Apply(rules *config.Rules) error {
	settings, err := Build(e.cfg, rules)
	if err != nil {
		metrics.RulesReloads.WithLabelValues("rejected").Inc()
		return err
	}
	var sources attendance.Sources
	if e.store != nil {
		sources = attendance.StoreSources(e.store)
	}
	e.current.Store(&state{
		reconciler: attendance.NewReconciler(settings.Options, sources, e.observers...),
		policy:     settings.Policy,
	})
	metrics.RulesReloads.WithLabelValues("applied").Inc()
	return nil
}

// Validator returns a check for config.RulesLoader that rejects rules Build
// cannot turn into settings.
func Validator(cfg config.Config) func(*config.Rules) error {
	return func(rules *config.Rules) error {
		_, err := Build(cfg, rules)
		return err
	}
}

func (e *Engine) Options() attendance.Options {
	return e.current.Load().reconciler.Options()
}

func (e *Engine) Policy() payroll.Policy {
	return e.current.Load().policy
}

// Reconcile runs an in-memory batch. Nothing is persisted.
func (e *Engine) Reconcile(ctx context.Context, batch attendance.Batch, trigger string) (attendance.Result, error) {
	start := time.Now()
	res, err := e.current.Load().reconciler.Reconcile(ctx, batch)
	metrics.ObserveRun(trigger, start, err)
	return res, err
}

// RunPeriod collects the period from Postgres, reconciles it and stores the
// run.
func (e *Engine) RunPeriod(ctx context.Context, period attendance.Period, trigger string) (attendance.Result, error) {
	if e.store == nil {
		return attendance.Result{}, ErrNoStore
	}
	start := time.Now()
	res, err := e.runPeriod(ctx, period)
	metrics.ObserveRun(trigger, start, err)
	if err != nil {
		slog.Warn("reconcile run failed", "trigger", trigger, "from", period.From, "to", period.To, "err", err)
		return attendance.Result{}, err
	}
	return res, nil
}

func (e *Engine) runPeriod(ctx context.Context, period attendance.Period) (attendance.Result, error) {
	res, err := e.current.Load().reconciler.Collect(ctx, period)
	if err != nil {
		return attendance.Result{}, err
	}
	if _, err := e.store.SaveRun(ctx, res); err != nil {
		return attendance.Result{}, fmt.Errorf("save run %s: %w", res.RunID, err)
	}
	return res, nil
}

// Hours computes payroll hours for timelines under the current policy.
func (e *Engine) Hours(timelines []attendance.EmployeeTimeline) ([]payroll.EmployeeHours, error) {
	return payroll.ComputeAll(timelines, e.Policy())
}
