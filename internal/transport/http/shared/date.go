package shared

import "time"

// ParseDay accepts an RFC3339 instant, or a YYYY-MM-DD date taken as
// midnight in loc so periods follow the restaurant's business day.
func ParseDay(value string, loc *time.Location) (time.Time, error) {
	if parsed, err := time.Parse(time.RFC3339, value); err == nil {
		return parsed, nil
	}
	if loc == nil {
		loc = time.UTC
	}
	return time.ParseInLocation(time.DateOnly, value, loc)
}
