package shared

import (
	"cmp"
	"net/http"
	"slices"
	"strings"
	"time"

	"restopay/internal/transport/http/api"
)

type FieldIssue struct {
	Field  string `json:"field"`
	Reason string `json:"reason"`
}

// Validator collects field problems of a request payload so they can be
// reported together in one 400 response.
type Validator struct {
	issues []FieldIssue
}

func NewValidator() *Validator {
	return &Validator{}
}

func (v *Validator) Add(field, reason string) {
	if reason = strings.TrimSpace(reason); reason == "" {
		return
	}
	v.issues = append(v.issues, FieldIssue{Field: strings.TrimSpace(field), Reason: reason})
}

func (v *Validator) Required(field, value, reason string) {
	if strings.TrimSpace(value) == "" {
		v.Add(field, reason)
	}
}

// Enum accepts an empty value; anything else must match one of allowed,
// ignoring case.
func (v *Validator) Enum(field, value string, allowed []string, reason string) {
	value = strings.TrimSpace(value)
	if value == "" {
		return
	}
	if !slices.ContainsFunc(allowed, func(a string) bool { return strings.EqualFold(a, value) }) {
		v.Add(field, reason)
	}
}

// Day parses raw with ParseDay. ok is false when the field was missing or
// malformed; the problem is recorded.
func (v *Validator) Day(field, raw string, loc *time.Location) (t time.Time, ok bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		v.Add(field, "is required")
		return time.Time{}, false
	}
	t, err := ParseDay(raw, loc)
	if err != nil {
		v.Add(field, "must be a date (YYYY-MM-DD) or an RFC3339 timestamp")
		return time.Time{}, false
	}
	return t, true
}

// Order checks start comes before end. With inclusive the two may be equal.
func (v *Validator) Order(startField string, start time.Time, endField string, end time.Time, inclusive bool) {
	if start.IsZero() || end.IsZero() {
		return
	}
	if end.After(start) || (inclusive && end.Equal(start)) {
		return
	}
	if inclusive {
		v.Add(endField, "must be on or after "+startField)
		return
	}
	v.Add(endField, "must be after "+startField)
}

func (v *Validator) HasIssues() bool {
	return len(v.issues) > 0
}

// Issues returns the recorded problems ordered by field.
func (v *Validator) Issues() []FieldIssue {
	out := slices.Clone(v.issues)
	slices.SortStableFunc(out, func(a, b FieldIssue) int {
		return cmp.Or(cmp.Compare(a.Field, b.Field), cmp.Compare(a.Reason, b.Reason))
	})
	return out
}

// Reject writes a validation_error response when issues were recorded and
// reports whether it did.
func (v *Validator) Reject(w http.ResponseWriter, requestID string) bool {
	if !v.HasIssues() {
		return false
	}
	api.FailWithDetails(w, http.StatusBadRequest, "validation_error", "payload validation failed",
		map[string]any{"fields": v.Issues()}, requestID)
	return true
}
