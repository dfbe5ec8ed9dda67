package attendance

import (
	"time"

	"github.com/shopspring/decimal"
)

// day0 is a Monday.
var day0 = time.Date(2025, time.March, 3, 0, 0, 0, 0, time.UTC)

func at(day, hour, minute int) time.Time {
	return day0.AddDate(0, 0, day).Add(time.Duration(hour)*time.Hour + time.Duration(minute)*time.Minute)
}

func ptr(t time.Time) *time.Time { return &t }

func work(emp string, from, to time.Time) Interval {
	return NewInterval(emp, from, to, TypeWork, SourceTimeclock, true)
}

func leave(emp string, from, to time.Time) Interval {
	return NewInterval(emp, from, to, TypeLeave, SourceLeave, true)
}

func scheduled(emp string, from, to time.Time) Interval {
	return NewInterval(emp, from, to, TypeScheduled, SourceSchedule, true)
}

func brk(emp string, from, to time.Time) Interval {
	return NewInterval(emp, from, to, TypeBreak, SourceTimeclock, true)
}

func hours(v float64) decimal.NullDecimal {
	return decimal.NewNullDecimal(decimal.NewFromFloat(v))
}

func codes(issues []Issue) []string {
	out := make([]string, 0, len(issues))
	for _, issue := range issues {
		out = append(out, issue.Code)
	}
	return out
}

type span struct {
	typ        IntervalType
	start, end time.Time
}

func spans(intervals []Interval) []span {
	out := make([]span, 0, len(intervals))
	for _, iv := range intervals {
		out = append(out, span{typ: iv.Type, start: iv.Start, end: iv.End})
	}
	return out
}

func hoursDuration(h float64) time.Duration {
	return time.Duration(h * float64(time.Hour))
}
