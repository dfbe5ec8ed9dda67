package attendance

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"sort"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// Observer is told about every finished run. Its failure is logged and never
// changes the result.
type Observer interface {
	Observe(ctx context.Context, result Result) error
}

type ObserverFunc func(ctx context.Context, result Result) error

func (f ObserverFunc) Observe(ctx context.Context, result Result) error { return f(ctx, result) }

type Options struct {
	Normalize  NormalizeOptions
	Priorities Priorities
	Validation ValidatorConfig
	// Workers bounds per-employee parallelism; zero means runtime.NumCPU().
	Workers int
}

type Stats struct {
	Employees   int                      `json:"employees"`
	Intervals   int                      `json:"intervals"`
	Conflicts   int                      `json:"conflicts"`
	HoursByType map[IntervalType]float64 `json:"hoursByType"`
}

type Result struct {
	RunID      string             `json:"runId,omitempty"`
	Period     *Period            `json:"period,omitempty"`
	Timelines  []EmployeeTimeline `json:"timelines"`
	Validation ValidationResult   `json:"validation"`
	Stats      Stats              `json:"stats"`
}

// Timeline returns the timeline of employeeID, if any.
func (r Result) Timeline(employeeID string) (EmployeeTimeline, bool) {
	i := sort.Search(len(r.Timelines), func(i int) bool { return r.Timelines[i].EmployeeID >= employeeID })
	if i < len(r.Timelines) && r.Timelines[i].EmployeeID == employeeID {
		return r.Timelines[i], true
	}
	return EmployeeTimeline{}, false
}

// Reconciler runs normalize, check, merge, split and check again for every
// employee of a batch, then cross-validates against payroll hours.
type Reconciler struct {
	opts       Options
	normalizer Normalizer
	merger     Merger
	splitter   Splitter
	validator  Validator
	sources    Sources
	observers  []Observer
}

func NewReconciler(opts Options, sources Sources, observers ...Observer) *Reconciler {
	if opts.Workers <= 0 {
		opts.Workers = runtime.NumCPU()
	}
	normalizer := NewNormalizer(opts.Normalize)
	opts.Normalize = normalizer.opts
	validator := NewValidator(opts.Validation)
	opts.Validation = validator.Config()
	return &Reconciler{
		opts:       opts,
		normalizer: normalizer,
		merger:     NewMerger(opts.Priorities),
		splitter:   NewSplitter(opts.Normalize.Location),
		validator:  validator,
		sources:    sources,
		observers:  observers,
	}
}

func (r *Reconciler) Options() Options { return r.opts }

type employeeRecords struct {
	events []ClockEvent
	shifts []Shift
	leaves []LeaveEntry
}

type employeeOutcome struct {
	timeline EmployeeTimeline
	issues   []Issue
}

// Reconcile processes a batch already in memory. The only errors are contract
// violations; bad data always ends up in Result.Validation.
func (r *Reconciler) Reconcile(ctx context.Context, batch Batch) (Result, error) {
	res, err := r.reconcile(batch)
	if err != nil {
		return Result{}, err
	}
	r.notify(ctx, res)
	return res, nil
}

func (r *Reconciler) reconcile(batch Batch) (Result, error) {
	grouped, orphans := groupByEmployee(batch)
	ids := sortedKeys(grouped)

	outcomes := make([]employeeOutcome, len(ids))
	var g errgroup.Group
	g.SetLimit(r.opts.Workers)
	for i, id := range ids {
		g.Go(func() error {
			out, err := r.reconcileEmployee(id, grouped[id])
			if err != nil {
				return fmt.Errorf("employee %s: %w", id, err)
			}
			outcomes[i] = out
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Result{}, err
	}

	res := Result{
		Timelines: make([]EmployeeTimeline, 0, len(outcomes)),
		Stats:     Stats{Employees: len(outcomes), HoursByType: map[IntervalType]float64{}},
	}
	issues := orphans
	for _, out := range outcomes {
		res.Timelines = append(res.Timelines, out.timeline)
		issues = append(issues, out.issues...)
		res.Stats.Intervals += len(out.timeline.Intervals)
		res.Stats.Conflicts += len(out.timeline.Conflicts)
		for typ, hours := range out.timeline.HoursByType() {
			res.Stats.HoursByType[typ] += hours
		}
	}
	for typ, hours := range res.Stats.HoursByType {
		res.Stats.HoursByType[typ] = round2(hours)
	}
	if batch.Payroll != nil {
		issues = append(issues, r.validator.CheckPayroll(res.Timelines, batch.Payroll).Issues()...)
	}
	res.Validation = NewResult(issues)

	slog.Info("attendance reconciled",
		"employees", res.Stats.Employees,
		"intervals", res.Stats.Intervals,
		"warnings", res.Validation.Summary.TotalWarnings,
		"errors", res.Validation.Summary.TotalErrors)
	return res, nil
}

// Collect fetches every source for the period concurrently and reconciles the
// result under a fresh run id. Fetch errors are returned as the sources
// produced them.
func (r *Reconciler) Collect(ctx context.Context, period Period) (Result, error) {
	if period.From.IsZero() || !period.To.After(period.From) {
		return Result{}, ErrInvalidPeriod
	}
	if r.sources.Timeclock == nil || r.sources.Schedule == nil || r.sources.Leave == nil {
		return Result{}, ErrNoSources
	}

	var batch Batch
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		batch.ClockEvents, err = r.sources.Timeclock.ClockEvents(gctx, period)
		return err
	})
	g.Go(func() (err error) {
		batch.Shifts, err = r.sources.Schedule.Shifts(gctx, period)
		return err
	})
	g.Go(func() (err error) {
		batch.Leaves, err = r.sources.Leave.Leaves(gctx, period)
		return err
	})
	if r.sources.Payroll != nil {
		g.Go(func() (err error) {
			batch.Payroll, err = r.sources.Payroll.PayrollHours(gctx, period)
			if err == nil && batch.Payroll == nil {
				batch.Payroll = []PayrollHours{}
			}
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return Result{}, err
	}

	res, err := r.reconcile(batch)
	if err != nil {
		return Result{}, err
	}
	res.RunID = uuid.NewString()
	res.Period = &period
	r.notify(ctx, res)
	return res, nil
}

func (r *Reconciler) reconcileEmployee(employeeID string, in employeeRecords) (employeeOutcome, error) {
	intervals, issues, err := r.normalizer.Normalize(employeeID, in.events, in.shifts, in.leaves)
	if err != nil {
		return employeeOutcome{}, err
	}
	issues = append(issues, r.validator.CheckIntervals(employeeID, intervals).Issues()...)

	merged, err := r.merger.Merge(employeeID, intervals)
	if err != nil {
		return employeeOutcome{}, err
	}
	tl := EmployeeTimeline{
		EmployeeID: employeeID,
		Intervals:  r.splitter.Split(merged.Intervals),
		Conflicts:  merged.Conflicts,
	}
	issues = append(issues, r.validator.CheckTimeline(tl).Issues()...)
	return employeeOutcome{timeline: tl, issues: issues}, nil
}

func (r *Reconciler) notify(ctx context.Context, res Result) {
	for _, o := range r.observers {
		if err := o.Observe(ctx, res); err != nil {
			slog.Warn("reconcile observer failed", "runId", res.RunID, "err", err)
		}
	}
}

// groupByEmployee routes raw records to their employee. Records without an
// employee id cannot be routed and become issues right away.
func groupByEmployee(batch Batch) (map[string]employeeRecords, []Issue) {
	grouped := map[string]employeeRecords{}
	var orphans []Issue
	for _, e := range batch.ClockEvents {
		if e.EmployeeID == "" {
			orphans = append(orphans, newIssue(SeverityError, CodeMissingEmployeeID, "",
				fmt.Sprintf("clock event %q without employee id", e.Type)))
			continue
		}
		rec := grouped[e.EmployeeID]
		rec.events = append(rec.events, e)
		grouped[e.EmployeeID] = rec
	}
	for _, s := range batch.Shifts {
		if s.EmployeeID == "" {
			orphans = append(orphans, newIssue(SeverityError, CodeMissingEmployeeID, "",
				fmt.Sprintf("shift %q without employee id", s.Role)))
			continue
		}
		rec := grouped[s.EmployeeID]
		rec.shifts = append(rec.shifts, s)
		grouped[s.EmployeeID] = rec
	}
	for _, l := range batch.Leaves {
		if l.EmployeeID == "" {
			orphans = append(orphans, newIssue(SeverityError, CodeMissingEmployeeID, "",
				fmt.Sprintf("%s leave without employee id", l.Type)))
			continue
		}
		rec := grouped[l.EmployeeID]
		rec.leaves = append(rec.leaves, l)
		grouped[l.EmployeeID] = rec
	}
	return grouped, orphans
}
