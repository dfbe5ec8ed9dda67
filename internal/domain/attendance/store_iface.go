package attendance

import "context"

// Sources are the external collaborators that own the raw records. Fetch
// errors are returned to the caller unchanged.
type Sources struct {
	Timeclock TimeclockSource
	Schedule  ScheduleSource
	Leave     LeaveSource
	// Payroll is optional; without it the payroll cross-check is skipped.
	Payroll PayrollSource
}

type TimeclockSource interface {
	ClockEvents(ctx context.Context, period Period) ([]ClockEvent, error)
}

type ScheduleSource interface {
	Shifts(ctx context.Context, period Period) ([]Shift, error)
}

type LeaveSource interface {
	Leaves(ctx context.Context, period Period) ([]LeaveEntry, error)
}

type PayrollSource interface {
	PayrollHours(ctx context.Context, period Period) ([]PayrollHours, error)
}

type RunStore interface {
	SaveRun(ctx context.Context, result Result) (string, error)
	GetRun(ctx context.Context, runID string) (Run, error)
	ListRuns(ctx context.Context, limit, offset int) ([]Run, int, error)
}

// StoreSources exposes a Store as all four sources.
func StoreSources(s *Store) Sources {
	return Sources{Timeclock: s, Schedule: s, Leave: s, Payroll: s}
}
