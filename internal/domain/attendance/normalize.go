package attendance

import (
	"cmp"
	"fmt"
	"math"
	"slices"
	"strings"
	"time"
)

type NormalizeOptions struct {
	IncludeValidatedOnly bool
	Location             *time.Location
	// BusinessDayStart and BusinessDayEnd are "HH:MM" clock times used for
	// leave entries that carry no explicit hours.
	BusinessDayStart string
	BusinessDayEnd   string
}

// Normalizer turns raw per-source records into Intervals. It never fails on
// bad data; malformed records become issues.
type Normalizer struct {
	opts NormalizeOptions
}

func NewNormalizer(opts NormalizeOptions) Normalizer {
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.BusinessDayStart == "" {
		opts.BusinessDayStart = DefaultBusinessDayStart
	}
	if opts.BusinessDayEnd == "" {
		opts.BusinessDayEnd = DefaultBusinessDayEnd
	}
	return Normalizer{opts: opts}
}

// Normalize returns the flat interval list of one employee across all three
// sources, together with data-quality issues. Only records routed to another
// employee produce an error; that is a defect in the caller.
func (n Normalizer) Normalize(employeeID string, events []ClockEvent, shifts []Shift, leaves []LeaveEntry) ([]Interval, []Issue, error) {
	if employeeID == "" {
		return nil, nil, ErrEmptyEmployeeID
	}
	for _, e := range events {
		if e.EmployeeID != "" && e.EmployeeID != employeeID {
			return nil, nil, fmt.Errorf("%w: clock event of %s routed to %s", ErrEmployeeMismatch, e.EmployeeID, employeeID)
		}
	}
	for _, s := range shifts {
		if s.EmployeeID != "" && s.EmployeeID != employeeID {
			return nil, nil, fmt.Errorf("%w: shift of %s routed to %s", ErrEmployeeMismatch, s.EmployeeID, employeeID)
		}
	}
	for _, l := range leaves {
		if l.EmployeeID != "" && l.EmployeeID != employeeID {
			return nil, nil, fmt.Errorf("%w: leave of %s routed to %s", ErrEmployeeMismatch, l.EmployeeID, employeeID)
		}
	}

	clock, clockIssues := n.FromTimeclock(employeeID, events)
	planned, shiftIssues := n.FromSchedule(employeeID, shifts)
	absent, leaveIssues := n.FromLeave(employeeID, leaves)

	intervals := make([]Interval, 0, len(clock)+len(planned)+len(absent))
	intervals = append(intervals, clock...)
	intervals = append(intervals, planned...)
	intervals = append(intervals, absent...)

	issues := make([]Issue, 0, len(clockIssues)+len(shiftIssues)+len(leaveIssues))
	issues = append(issues, clockIssues...)
	issues = append(issues, shiftIssues...)
	issues = append(issues, leaveIssues...)
	return intervals, issues, nil
}

type clockState int

const (
	clockIdle clockState = iota
	clockWorking
	clockOnBreak
)

// eventOrder puts closing events ahead of opening ones at the same instant.
var eventOrder = map[string]int{EventOut: 0, EventBreakEnd: 1, EventBreakStart: 2, EventIn: 3}

// FromTimeclock pairs punch events into work and break intervals. Open
// periods are reported, never invented.
func (n Normalizer) FromTimeclock(employeeID string, events []ClockEvent) ([]Interval, []Issue) {
	var issues []Issue
	valid := make([]ClockEvent, 0, len(events))
	for _, e := range events {
		e.Type = strings.ToLower(strings.TrimSpace(e.Type))
		switch {
		case e.EmployeeID == "":
			issues = append(issues, newIssue(SeverityError, CodeMissingEmployeeID, employeeID, "clock event without employee id"))
		case e.Timestamp == nil || e.Timestamp.IsZero():
			issues = append(issues, newIssue(SeverityError, CodeMissingPeriodDates, employeeID,
				fmt.Sprintf("clock event %q has no timestamp", e.Type)))
		default:
			if _, ok := eventOrder[e.Type]; !ok {
				issues = append(issues, newIssue(SeverityError, CodeUnknownEventType, employeeID,
					fmt.Sprintf("unknown clock event type %q", e.Type)))
				continue
			}
			valid = append(valid, e)
		}
	}
	slices.SortStableFunc(valid, func(a, b ClockEvent) int {
		if c := a.Timestamp.Compare(*b.Timestamp); c != 0 {
			return c
		}
		if c := cmp.Compare(eventOrder[a.Type], eventOrder[b.Type]); c != 0 {
			return c
		}
		return cmp.Compare(b2i(b.Validated), b2i(a.Validated))
	})

	var (
		out      []Interval
		state    = clockIdle
		openedAt time.Time
		openedOK bool
	)
	open := func(e ClockEvent) {
		openedAt = e.Timestamp.In(n.opts.Location)
		openedOK = e.Validated
	}
	emit := func(typ IntervalType, closing ClockEvent) {
		iv := NewInterval(employeeID, openedAt, closing.Timestamp.In(n.opts.Location), typ, SourceTimeclock, openedOK && closing.Validated)
		if n.opts.IncludeValidatedOnly && !iv.Validated {
			return
		}
		out = append(out, iv)
	}
	unmatched := func(e ClockEvent) {
		issues = append(issues, newIssue(SeverityWarning, CodeUnmatchedClockEvent, employeeID,
			fmt.Sprintf("%s at %s has no matching opening event", e.Type, e.Timestamp.Format(time.RFC3339))))
	}

	for _, e := range valid {
		switch e.Type {
		case EventIn:
			if state != clockIdle {
				issues = append(issues, openPeriodIssue(employeeID, openedAt, "superseded by a new clock-in"))
			}
			open(e)
			state = clockWorking
		case EventBreakStart:
			if state != clockWorking {
				unmatched(e)
				continue
			}
			emit(TypeWork, e)
			open(e)
			state = clockOnBreak
		case EventBreakEnd:
			if state != clockOnBreak {
				unmatched(e)
				continue
			}
			emit(TypeBreak, e)
			open(e)
			state = clockWorking
		case EventOut:
			switch state {
			case clockWorking:
				emit(TypeWork, e)
			case clockOnBreak:
				emit(TypeBreak, e)
				issues = append(issues, newIssue(SeverityWarning, CodeBreakNotClosed, employeeID,
					fmt.Sprintf("clocked out at %s during a break", e.Timestamp.Format(time.RFC3339))))
			default:
				unmatched(e)
				continue
			}
			state = clockIdle
		}
	}
	if state != clockIdle {
		issues = append(issues, openPeriodIssue(employeeID, openedAt, "no matching clock-out"))
	}
	return out, issues
}

func openPeriodIssue(employeeID string, since time.Time, why string) Issue {
	return newIssue(SeverityWarning, CodeOpenPeriod, employeeID,
		fmt.Sprintf("period opened at %s discarded: %s", since.Format(time.RFC3339), why))
}

// FromSchedule turns each planned shift into one scheduled interval.
func (n Normalizer) FromSchedule(employeeID string, shifts []Shift) ([]Interval, []Issue) {
	var (
		out    []Interval
		issues []Issue
	)
	for _, s := range shifts {
		status := strings.ToLower(strings.TrimSpace(s.Status))
		if status == ShiftStatusCancelled {
			continue
		}
		if s.EmployeeID == "" {
			issues = append(issues, newIssue(SeverityError, CodeMissingEmployeeID, employeeID, "shift without employee id"))
			continue
		}
		approved := status == ShiftStatusApproved || status == ShiftStatusConfirmed
		if n.opts.IncludeValidatedOnly && !approved {
			continue
		}
		if s.Date.IsZero() || s.Start == "" || s.End == "" {
			issues = append(issues, newIssue(SeverityError, CodeMissingPeriodDates, employeeID,
				fmt.Sprintf("shift %q is missing its date or times", s.Role)))
			continue
		}
		day := n.localDay(s.Date)
		start, err := AtClock(day, s.Start)
		if err != nil {
			issues = append(issues, newIssue(SeverityError, CodeMissingPeriodDates, employeeID, fmt.Sprintf("shift start: %v", err)))
			continue
		}
		end, err := AtClock(day, s.End)
		if err != nil {
			issues = append(issues, newIssue(SeverityError, CodeMissingPeriodDates, employeeID, fmt.Sprintf("shift end: %v", err)))
			continue
		}
		if !end.After(start) {
			end = end.AddDate(0, 0, 1)
		}
		out = append(out, NewInterval(employeeID, start, end, TypeScheduled, SourceSchedule, approved))
	}
	return out, issues
}

// FromLeave expands each leave range into one interval per calendar day.
func (n Normalizer) FromLeave(employeeID string, leaves []LeaveEntry) ([]Interval, []Issue) {
	var (
		out    []Interval
		issues []Issue
	)
	for _, l := range leaves {
		status := strings.ToLower(strings.TrimSpace(l.Status))
		if status == LeaveStatusRejected || status == LeaveStatusCancelled {
			continue
		}
		if l.EmployeeID == "" {
			issues = append(issues, newIssue(SeverityError, CodeMissingEmployeeID, employeeID, "leave entry without employee id"))
			continue
		}
		approved := status == LeaveStatusApproved
		if n.opts.IncludeValidatedOnly && !approved {
			continue
		}
		if l.Start.IsZero() || l.End.IsZero() {
			issues = append(issues, newIssue(SeverityError, CodeMissingPeriodDates, employeeID,
				fmt.Sprintf("%s leave is missing its dates", l.Type)))
			continue
		}
		first, last := n.localDay(l.Start), n.localDay(l.End)
		if last.Before(first) {
			issues = append(issues, newIssue(SeverityError, CodeInvalidPeriodDates, employeeID,
				fmt.Sprintf("%s leave ends %s before it starts %s", l.Type, DayKey(last), DayKey(first))))
			continue
		}

		from, to := n.opts.BusinessDayStart, n.opts.BusinessDayEnd
		if l.StartTime != "" && l.EndTime != "" {
			from, to = l.StartTime, l.EndTime
		}

		days := 0
		for day := first; !day.After(last); day = day.AddDate(0, 0, 1) {
			start, err := AtClock(day, from)
			if err != nil {
				issues = append(issues, newIssue(SeverityError, CodeMissingPeriodDates, employeeID, fmt.Sprintf("leave start: %v", err)))
				break
			}
			end, err := AtClock(day, to)
			if err != nil {
				issues = append(issues, newIssue(SeverityError, CodeMissingPeriodDates, employeeID, fmt.Sprintf("leave end: %v", err)))
				break
			}
			if !end.After(start) {
				issues = append(issues, newIssue(SeverityError, CodeInvalidPeriodDates, employeeID,
					fmt.Sprintf("%s leave window %s-%s is empty", l.Type, from, to)))
				break
			}
			out = append(out, NewInterval(employeeID, start, end, TypeLeave, SourceLeave, approved))
			days++
		}
		if days > 0 && l.Duration > 0 && math.Abs(l.Duration-float64(days)) > DurationTolerance {
			issue := newIssue(SeverityWarning, CodeLeaveDurationMismatch, employeeID,
				fmt.Sprintf("%s leave declares %.2f days but spans %d", l.Type, l.Duration, days))
			issue.Meta = map[string]any{"declared": l.Duration, "expanded": days}
			issues = append(issues, issue)
		}
	}
	return out, issues
}

// localDay is midnight of t's calendar date, taken in the configured location.
func (n Normalizer) localDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, n.opts.Location)
}

// AtClock returns day at the given "HH:MM" clock time. "24:00" means the
// following midnight.
func AtClock(day time.Time, clock string) (time.Time, error) {
	clock = strings.TrimSpace(clock)
	if clock == "24:00" {
		return NextMidnight(day), nil
	}
	parsed, err := time.Parse("15:04", clock)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidClock, clock)
	}
	return time.Date(day.Year(), day.Month(), day.Day(), parsed.Hour(), parsed.Minute(), 0, 0, day.Location()), nil
}

func b2i(b bool) int {
	if b {
		return 1
	}
	return 0
}

func newIssue(severity Severity, code, employeeID, message string, related ...Interval) Issue {
	return Issue{
		Severity:   severity,
		Code:       code,
		Message:    message,
		EmployeeID: employeeID,
		Related:    related,
	}
}
