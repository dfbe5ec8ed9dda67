package attendance

import (
	"cmp"
	"fmt"
	"math"
	"slices"
	"sort"

	"github.com/shopspring/decimal"
)

type ValidatorConfig struct {
	MaxDailyHours          float64
	MaxWeeklyHours         float64
	HoursMismatchTolerance float64
}

// Validator runs the consistency passes. No pass ever fails; every anomaly
// is returned as an Issue.
type Validator struct {
	cfg ValidatorConfig
}

func NewValidator(cfg ValidatorConfig) Validator {
	if cfg.MaxDailyHours <= 0 {
		cfg.MaxDailyHours = DefaultMaxDailyHours
	}
	if cfg.MaxWeeklyHours <= 0 {
		cfg.MaxWeeklyHours = DefaultMaxWeeklyHours
	}
	if cfg.HoursMismatchTolerance <= 0 {
		cfg.HoursMismatchTolerance = DefaultHoursMismatchTolerance
	}
	return Validator{cfg: cfg}
}

func (v Validator) Config() ValidatorConfig { return v.cfg }

// CheckIntervals is the structural pass over one employee's intervals as they
// came out of normalization, before any merge.
func (v Validator) CheckIntervals(employeeID string, intervals []Interval) ValidationResult {
	var issues []Issue
	checkable := make([]Interval, 0, len(intervals))
	for _, iv := range intervals {
		switch {
		case iv.EmployeeID == "":
			issues = append(issues, newIssue(SeverityError, CodeMissingEmployeeID, employeeID,
				fmt.Sprintf("%s interval without employee id", iv.Type), iv))
		case iv.Start.IsZero() || iv.End.IsZero():
			issues = append(issues, newIssue(SeverityError, CodeMissingPeriodDates, employeeID,
				fmt.Sprintf("%s interval from %s is missing start or end", iv.Type, iv.Source), iv))
		case !iv.End.After(iv.Start):
			issues = append(issues, newIssue(SeverityError, CodeInvalidPeriodDates, employeeID,
				fmt.Sprintf("%s interval from %s does not end after it starts", iv.Type, iv.Source), iv))
		default:
			if issue, ok := durationDrift(employeeID, iv); ok {
				issues = append(issues, issue)
			}
			checkable = append(checkable, iv)
		}
	}
	issues = append(issues, overlaps(employeeID, checkable)...)
	return NewResult(issues)
}

func durationDrift(employeeID string, iv Interval) (Issue, bool) {
	actual := HoursBetween(iv.Start, iv.End)
	if math.Abs(iv.Duration-actual) <= DurationTolerance {
		return Issue{}, false
	}
	issue := newIssue(SeverityWarning, CodeInconsistentDuration, employeeID,
		fmt.Sprintf("%s interval records %.2fh but spans %.2fh", iv.Type, iv.Duration, actual), iv)
	issue.Meta = map[string]any{"recorded": iv.Duration, "actual": actual}
	return issue, true
}

// overlaps reports every overlapping pair. Same-type pairs are errors: the
// same activity was reported twice.
func overlaps(employeeID string, intervals []Interval) []Issue {
	sorted := SortIntervals(DefaultPriorities(), intervals)
	var (
		issues []Issue
		active []Interval
	)
	for _, iv := range sorted {
		kept := active[:0]
		for _, a := range active {
			if a.End.After(iv.Start) {
				kept = append(kept, a)
			}
		}
		active = kept
		for _, a := range active {
			if !a.Overlaps(iv) {
				continue
			}
			if a.Type == iv.Type {
				issues = append(issues, newIssue(SeverityError, CodeOverlappingPeriods, employeeID,
					fmt.Sprintf("two %s periods overlap (%s and %s)", iv.Type, a.Source, iv.Source), a, iv))
			} else {
				issues = append(issues, newIssue(SeverityWarning, CodeOverlappingDifferent, employeeID,
					fmt.Sprintf("%s period overlaps %s period", a.Type, iv.Type), a, iv))
			}
		}
		active = append(active, iv)
	}
	return issues
}

// CheckTimeline is the structural pass over a canonical timeline: ordering,
// duration math and working-time limits.
func (v Validator) CheckTimeline(tl EmployeeTimeline) ValidationResult {
	var issues []Issue
	for i, iv := range tl.Intervals {
		if iv.EmployeeID != tl.EmployeeID {
			issues = append(issues, newIssue(SeverityError, CodeTimelineNotCanonical, tl.EmployeeID,
				fmt.Sprintf("interval of %s found in timeline", iv.EmployeeID), iv))
		}
		if i > 0 {
			prev := tl.Intervals[i-1]
			if iv.Start.Before(prev.Start) || prev.End.After(iv.Start) {
				issues = append(issues, newIssue(SeverityError, CodeTimelineNotCanonical, tl.EmployeeID,
					"timeline intervals are out of order or overlap", prev, iv))
			}
		}
		if issue, ok := durationDrift(tl.EmployeeID, iv); ok {
			issues = append(issues, issue)
		}
	}

	daily := map[string]float64{}
	weekly := map[string]float64{}
	for _, iv := range tl.Intervals {
		if iv.Type != TypeWork {
			continue
		}
		daily[DayKey(iv.Start)] += iv.Duration
		weekly[WeekKey(iv.Start)] += iv.Duration
	}
	for _, day := range sortedKeys(daily) {
		if hours := daily[day]; hours > v.cfg.MaxDailyHours+1e-9 {
			issue := newIssue(SeverityWarning, CodeExcessiveDuration, tl.EmployeeID,
				fmt.Sprintf("%.2fh worked on %s exceeds the daily maximum of %.2fh", hours, day, v.cfg.MaxDailyHours))
			issue.Meta = map[string]any{"day": day, "hours": round2(hours), "limit": v.cfg.MaxDailyHours}
			issues = append(issues, issue)
		}
	}
	for _, week := range sortedKeys(weekly) {
		if hours := weekly[week]; hours > v.cfg.MaxWeeklyHours+1e-9 {
			issue := newIssue(SeverityWarning, CodeExcessiveWeeklyDuration, tl.EmployeeID,
				fmt.Sprintf("%.2fh worked in %s exceeds the weekly maximum of %.2fh", hours, week, v.cfg.MaxWeeklyHours))
			issue.Meta = map[string]any{"week": week, "hours": round2(hours), "limit": v.cfg.MaxWeeklyHours}
			issues = append(issues, issue)
		}
	}
	return NewResult(issues)
}

// CheckPayroll cross-validates attendance work hours against the totals the
// payroll hour calculator produced.
func (v Validator) CheckPayroll(timelines []EmployeeTimeline, payroll []PayrollHours) ValidationResult {
	attended := make(map[string]EmployeeTimeline, len(timelines))
	for _, tl := range timelines {
		attended[tl.EmployeeID] = tl
	}

	var issues []Issue
	seen := make(map[string]bool, len(payroll))
	for _, p := range payroll {
		if p.EmployeeID == "" {
			issues = append(issues, newIssue(SeverityError, CodeMissingEmployeeID, "", "payroll hours without employee id"))
			continue
		}
		if seen[p.EmployeeID] {
			issues = append(issues, newIssue(SeverityError, CodeInvalidPayrollHours, p.EmployeeID, "duplicate payroll hours entry"))
			continue
		}
		seen[p.EmployeeID] = true

		tl, ok := attended[p.EmployeeID]
		if !ok || len(tl.Intervals) == 0 {
			issues = append(issues, newIssue(SeverityWarning, CodeEmployeeNotInAttendance, p.EmployeeID,
				"employee has payroll hours but no attendance data"))
		}
		if fieldIssues := payrollFieldIssues(p); len(fieldIssues) > 0 {
			issues = append(issues, fieldIssues...)
			continue
		}
		if !ok {
			continue
		}

		worked := decimal.NewFromFloat(tl.WorkHours())
		reported := p.Total()
		diff := worked.Sub(reported)
		if diff.Abs().GreaterThan(decimal.NewFromFloat(v.cfg.HoursMismatchTolerance)) {
			issue := newIssue(SeverityWarning, CodeHoursMismatch, p.EmployeeID,
				fmt.Sprintf("attendance shows %sh of work, payroll reports %sh (difference %sh)",
					worked.StringFixed(2), reported.StringFixed(2), diff.StringFixed(2)))
			issue.Meta = map[string]any{
				"attendanceHours": worked.Round(2).InexactFloat64(),
				"payrollHours":    reported.Round(2).InexactFloat64(),
				"difference":      diff.Round(2).InexactFloat64(),
			}
			issues = append(issues, issue)
		}
	}

	for _, tl := range timelines {
		if seen[tl.EmployeeID] || tl.WorkHours() == 0 {
			continue
		}
		issues = append(issues, newIssue(SeverityWarning, CodeEmployeeNotInPayroll, tl.EmployeeID,
			fmt.Sprintf("employee worked %.2fh but has no payroll hours", tl.WorkHours())))
	}
	return NewResult(issues)
}

func payrollFieldIssues(p PayrollHours) []Issue {
	var issues []Issue
	fields := []struct {
		name      string
		value     decimal.NullDecimal
		mandatory bool
	}{
		{"regular", p.Regular, true},
		{"overtime", p.Overtime, true},
		{"night", p.Night, false},
	}
	for _, f := range fields {
		switch {
		case !f.value.Valid && f.mandatory:
			issues = append(issues, newIssue(SeverityError, CodeInvalidPayrollHours, p.EmployeeID,
				fmt.Sprintf("payroll %s hours are missing", f.name)))
		case f.value.Valid && f.value.Decimal.IsNegative():
			issues = append(issues, newIssue(SeverityError, CodeInvalidPayrollHours, p.EmployeeID,
				fmt.Sprintf("payroll %s hours are negative (%s)", f.name, f.value.Decimal.String())))
		}
	}
	return issues
}

type FullValidationInput struct {
	// Intervals are the pre-merge intervals, per employee.
	Intervals map[string][]Interval
	Timelines []EmployeeTimeline
	// Payroll is optional; without it the cross-source pass is skipped.
	Payroll []PayrollHours
}

// PerformFullValidation runs the structural and cross-source passes and
// combines them. The result is valid when there are no errors.
func (v Validator) PerformFullValidation(in FullValidationInput) ValidationResult {
	results := make([]ValidationResult, 0, len(in.Intervals)+len(in.Timelines)+1)
	for _, employeeID := range sortedKeys(in.Intervals) {
		results = append(results, v.CheckIntervals(employeeID, in.Intervals[employeeID]))
	}
	for _, tl := range in.Timelines {
		results = append(results, v.CheckTimeline(tl))
	}
	if in.Payroll != nil {
		results = append(results, v.CheckPayroll(in.Timelines, in.Payroll))
	}
	return Combine(results...)
}

// NewResult splits issues by severity into a sorted result.
func NewResult(issues []Issue) ValidationResult {
	res := ValidationResult{Warnings: []Issue{}, Errors: []Issue{}}
	for _, issue := range issues {
		if issue.Severity == SeverityError {
			res.Errors = append(res.Errors, issue)
		} else {
			res.Warnings = append(res.Warnings, issue)
		}
	}
	SortIssues(res.Warnings)
	SortIssues(res.Errors)
	res.Summary = Summary{TotalWarnings: len(res.Warnings), TotalErrors: len(res.Errors)}
	res.IsValid = res.Summary.TotalErrors == 0
	return res
}

func Combine(results ...ValidationResult) ValidationResult {
	var all []Issue
	for _, r := range results {
		all = append(all, r.Errors...)
		all = append(all, r.Warnings...)
	}
	return NewResult(all)
}

// Issues returns errors followed by warnings.
func (r ValidationResult) Issues() []Issue {
	out := make([]Issue, 0, len(r.Errors)+len(r.Warnings))
	out = append(out, r.Errors...)
	return append(out, r.Warnings...)
}

func (r ValidationResult) HasCode(code string) bool {
	for _, issue := range r.Issues() {
		if issue.Code == code {
			return true
		}
	}
	return false
}

// SortIssues orders by employee, code, first related start, then message.
func SortIssues(issues []Issue) {
	slices.SortStableFunc(issues, func(a, b Issue) int {
		if c := cmp.Compare(a.EmployeeID, b.EmployeeID); c != 0 {
			return c
		}
		if c := cmp.Compare(a.Code, b.Code); c != 0 {
			return c
		}
		if len(a.Related) > 0 && len(b.Related) > 0 {
			if c := a.Related[0].Start.Compare(b.Related[0].Start); c != 0 {
				return c
			}
		}
		return cmp.Compare(a.Message, b.Message)
	})
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func round2(v float64) float64 {
	return decimal.NewFromFloat(v).Round(2).InexactFloat64()
}
