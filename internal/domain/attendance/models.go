package attendance

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

type IntervalType string

type Source string

// Interval is one typed [Start, End) span of activity for one employee.
// Values are never mutated in place; use WithStart/WithEnd.
type Interval struct {
	EmployeeID string       `json:"employeeId"`
	Start      time.Time    `json:"start"`
	End        time.Time    `json:"end"`
	Type       IntervalType `json:"type"`
	Source     Source       `json:"source"`
	Validated  bool         `json:"validated"`
	Duration   float64      `json:"duration"`
}

func NewInterval(employeeID string, start, end time.Time, typ IntervalType, source Source, validated bool) Interval {
	return Interval{
		EmployeeID: employeeID,
		Start:      start,
		End:        end,
		Type:       typ,
		Source:     source,
		Validated:  validated,
		Duration:   HoursBetween(start, end),
	}
}

func (iv Interval) WithStart(start time.Time) Interval {
	iv.Start = start
	iv.Duration = HoursBetween(iv.Start, iv.End)
	return iv
}

func (iv Interval) WithEnd(end time.Time) Interval {
	iv.End = end
	iv.Duration = HoursBetween(iv.Start, iv.End)
	return iv
}

// Valid reports whether both bounds are set and End is after Start.
func (iv Interval) Valid() bool {
	return !iv.Start.IsZero() && !iv.End.IsZero() && iv.End.After(iv.Start)
}

// Overlaps reports a positive-length intersection. Touching intervals do not overlap.
func (iv Interval) Overlaps(other Interval) bool {
	return iv.Start.Before(other.End) && other.Start.Before(iv.End)
}

func (iv Interval) String() string {
	return fmt.Sprintf("%s %s [%s, %s)", iv.EmployeeID, iv.Type,
		iv.Start.Format(time.RFC3339), iv.End.Format(time.RFC3339))
}

func HoursBetween(start, end time.Time) float64 {
	return end.Sub(start).Hours()
}

// EmployeeTimeline is the canonical activity of one employee: sorted by Start,
// non-overlapping, split at calendar-day boundaries.
type EmployeeTimeline struct {
	EmployeeID string     `json:"employeeId"`
	Intervals  []Interval `json:"intervals"`
	Conflicts  []Conflict `json:"conflicts,omitempty"`
}

// HoursByType sums interval durations per type.
func (t EmployeeTimeline) HoursByType() map[IntervalType]float64 {
	out := make(map[IntervalType]float64, 4)
	for _, iv := range t.Intervals {
		out[iv.Type] += iv.Duration
	}
	return out
}

func (t EmployeeTimeline) WorkHours() float64 {
	var total float64
	for _, iv := range t.Intervals {
		if iv.Type == TypeWork {
			total += iv.Duration
		}
	}
	return total
}

type ConflictKind string

// Conflict records one overlap decision taken while merging.
type Conflict struct {
	Kind   ConflictKind `json:"kind"`
	Kept   Interval     `json:"kept"`
	Other  Interval     `json:"other"`
	Detail string       `json:"detail"`
}

type Severity string

type Issue struct {
	Severity   Severity       `json:"severity"`
	Code       string         `json:"code"`
	Message    string         `json:"message"`
	EmployeeID string         `json:"employeeId,omitempty"`
	Related    []Interval     `json:"relatedIntervals,omitempty"`
	Meta       map[string]any `json:"meta,omitempty"`
}

type Summary struct {
	TotalWarnings int `json:"totalWarnings"`
	TotalErrors   int `json:"totalErrors"`
}

type ValidationResult struct {
	IsValid  bool    `json:"isValid"`
	Warnings []Issue `json:"warnings"`
	Errors   []Issue `json:"errors"`
	Summary  Summary `json:"summary"`
}

// Raw inputs, as handed over by the collectors.

type ClockEvent struct {
	EmployeeID string     `json:"employeeId"`
	Type       string     `json:"type"`
	Timestamp  *time.Time `json:"timestamp"`
	Validated  bool       `json:"validated"`
}

type Shift struct {
	EmployeeID string    `json:"employeeId"`
	Date       time.Time `json:"date"`
	Start      string    `json:"start"`
	End        string    `json:"end"`
	Role       string    `json:"role"`
	Status     string    `json:"status"`
}

type LeaveEntry struct {
	EmployeeID string    `json:"employeeId"`
	Type       string    `json:"type"`
	Start      time.Time `json:"start"`
	End        time.Time `json:"end"`
	StartTime  string    `json:"startTime,omitempty"`
	EndTime    string    `json:"endTime,omitempty"`
	Status     string    `json:"status"`
	Duration   float64   `json:"duration"`
}

// PayrollHours are the hour totals computed on the payroll side for one employee.
// Regular and Overtime are mandatory; Night is a subset and optional.
type PayrollHours struct {
	EmployeeID string              `json:"employeeId"`
	Regular    decimal.NullDecimal `json:"regular"`
	Overtime   decimal.NullDecimal `json:"overtime"`
	Night      decimal.NullDecimal `json:"night"`
}

func (p PayrollHours) Total() decimal.Decimal {
	return p.Regular.Decimal.Add(p.Overtime.Decimal)
}

// Batch is every raw record for one reconciliation run, across employees.
type Batch struct {
	ClockEvents []ClockEvent   `json:"clockEvents"`
	Shifts      []Shift        `json:"shifts"`
	Leaves      []LeaveEntry   `json:"leaves"`
	Payroll     []PayrollHours `json:"payroll"`
}

// Period bounds a collection window; To is exclusive.
type Period struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}
