package attendance

import "errors"

var (
	ErrEmployeeMismatch  = errors.New("interval belongs to another employee")
	ErrEmptyEmployeeID   = errors.New("employee id is required")
	ErrInvalidPriorities = errors.New("invalid priority order")
	ErrInvalidClock      = errors.New("invalid clock time, expected HH:MM")
	ErrInvalidPeriod     = errors.New("invalid period: end before start")
	ErrNoSources         = errors.New("attendance sources are not configured")
	ErrRunNotFound       = errors.New("reconciliation run not found")
)
