package attendance

const (
	TypeLeave     IntervalType = "leave"
	TypeWork      IntervalType = "work"
	TypeBreak     IntervalType = "break"
	TypeScheduled IntervalType = "scheduled"

	SourceTimeclock Source = "timeclock"
	SourceSchedule  Source = "schedule"
	SourceLeave     Source = "leave"

	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"

	ConflictSameType      ConflictKind = "same-type overlap"
	ConflictDifferentType ConflictKind = "different-type overlap"
	ConflictPriority      ConflictKind = "priority override"

	EventIn         = "in"
	EventOut        = "out"
	EventBreakStart = "break_start"
	EventBreakEnd   = "break_end"

	ShiftStatusDraft     = "draft"
	ShiftStatusPublished = "published"
	ShiftStatusApproved  = "approved"
	ShiftStatusConfirmed = "confirmed"
	ShiftStatusCancelled = "cancelled"

	LeaveStatusPending   = "pending"
	LeaveStatusApproved  = "approved"
	LeaveStatusRejected  = "rejected"
	LeaveStatusCancelled = "cancelled"
)

// Issue codes.
const (
	CodeMissingEmployeeID       = "MISSING_EMPLOYEE_ID"
	CodeMissingPeriodDates      = "MISSING_PERIOD_DATES"
	CodeInvalidPeriodDates      = "INVALID_PERIOD_DATES"
	CodeInconsistentDuration    = "INCONSISTENT_DURATION"
	CodeExcessiveDuration       = "EXCESSIVE_DURATION"
	CodeExcessiveWeeklyDuration = "EXCESSIVE_WEEKLY_DURATION"
	CodeOverlappingPeriods      = "OVERLAPPING_PERIODS"
	CodeOverlappingDifferent    = "OVERLAPPING_DIFFERENT_PERIODS"
	CodeTimelineNotCanonical    = "TIMELINE_NOT_CANONICAL"
	CodeEmployeeNotInAttendance = "EMPLOYEE_NOT_IN_ATTENDANCE"
	CodeEmployeeNotInPayroll    = "EMPLOYEE_NOT_IN_PAYROLL"
	CodeHoursMismatch           = "HOURS_MISMATCH"
	CodeInvalidPayrollHours     = "INVALID_PAYROLL_HOURS"
	CodeOpenPeriod              = "OPEN_PERIOD"
	CodeUnmatchedClockEvent     = "UNMATCHED_CLOCK_EVENT"
	CodeBreakNotClosed          = "BREAK_NOT_CLOSED"
	CodeUnknownEventType        = "UNKNOWN_EVENT_TYPE"
	CodeLeaveDurationMismatch   = "LEAVE_DURATION_MISMATCH"
)

const (
	DefaultMaxDailyHours          = 10.0
	DefaultMaxWeeklyHours         = 48.0
	DefaultHoursMismatchTolerance = 0.5
	DurationTolerance             = 0.01
	DefaultBusinessDayStart       = "09:00"
	DefaultBusinessDayEnd         = "18:00"
)
