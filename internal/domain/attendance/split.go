package attendance

import (
	"fmt"
	"time"
)

// Splitter cuts intervals at calendar-day boundaries so no period ever spans
// two days. Day boundaries are midnight in Location, or in the interval's own
// location when Location is nil.
type Splitter struct {
	Location *time.Location
}

func NewSplitter(loc *time.Location) Splitter {
	return Splitter{Location: loc}
}

// Split returns the fragments of every interval, in order. Intervals that
// already sit within one day are returned unchanged.
func (s Splitter) Split(intervals []Interval) []Interval {
	out := make([]Interval, 0, len(intervals))
	for _, iv := range intervals {
		out = append(out, s.SplitOne(iv)...)
	}
	return out
}

// SplitOne clips iv to each day it touches. An interval ending exactly at
// midnight belongs wholly to the previous day.
func (s Splitter) SplitOne(iv Interval) []Interval {
	if !iv.Valid() {
		return []Interval{iv}
	}
	loc := s.location(iv)
	start := iv.Start.In(loc)
	end := iv.End.In(loc)

	var fragments []Interval
	for cursor := start; cursor.Before(end); {
		next := NextMidnight(cursor)
		fragEnd := end
		if next.Before(end) {
			fragEnd = next
		}
		fragments = append(fragments, NewInterval(iv.EmployeeID, cursor, fragEnd, iv.Type, iv.Source, iv.Validated))
		cursor = fragEnd
	}
	if len(fragments) == 1 {
		return []Interval{iv.WithEnd(iv.End)}
	}
	return fragments
}

func (s Splitter) location(iv Interval) *time.Location {
	if s.Location != nil {
		return s.Location
	}
	return iv.Start.Location()
}

// StartOfDay returns local midnight of t's calendar day.
func StartOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// NextMidnight returns the start of the day after t, in t's location.
func NextMidnight(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day()+1, 0, 0, 0, 0, t.Location())
}

// DayKey identifies the calendar day of t as YYYY-MM-DD.
func DayKey(t time.Time) string {
	return t.Format(time.DateOnly)
}

// WeekKey identifies the ISO week of t, e.g. "2025-W09".
func WeekKey(t time.Time) string {
	year, week := t.ISOWeek()
	return fmt.Sprintf("%d-W%02d", year, week)
}
