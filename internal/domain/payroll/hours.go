package payroll

import (
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"restopay/internal/domain/attendance"
)

// Policy splits worked time into regular and overtime hours. Daily excess is
// overtime first; whatever regular time is left beyond the weekly cap moves to
// overtime as well. Night hours are the part of work inside the night window
// and overlap regular and overtime.
type Policy struct {
	DailyRegularHours  decimal.Decimal
	WeeklyRegularHours decimal.Decimal
	NightStart         string
	NightEnd           string
}

func DefaultPolicy() Policy {
	return Policy{
		DailyRegularHours:  decimal.NewFromInt(DefaultDailyRegularHours),
		WeeklyRegularHours: decimal.NewFromInt(DefaultWeeklyRegularHours),
		NightStart:         DefaultNightStart,
		NightEnd:           DefaultNightEnd,
	}
}

func (p Policy) Validate() error {
	if !p.DailyRegularHours.IsPositive() || !p.WeeklyRegularHours.IsPositive() {
		return fmt.Errorf("%w: regular hour caps must be positive", ErrInvalidPolicy)
	}
	if _, err := attendance.AtClock(time.Time{}, p.NightStart); err != nil {
		return fmt.Errorf("%w: night start: %v", ErrInvalidPolicy, err)
	}
	if _, err := attendance.AtClock(time.Time{}, p.NightEnd); err != nil {
		return fmt.Errorf("%w: night end: %v", ErrInvalidPolicy, err)
	}
	return nil
}

type DayHours struct {
	Day      string          `json:"day"`
	Worked   decimal.Decimal `json:"worked"`
	Regular  decimal.Decimal `json:"regular"`
	Overtime decimal.Decimal `json:"overtime"`
	Night    decimal.Decimal `json:"night"`
}

type EmployeeHours struct {
	Totals attendance.PayrollHours `json:"totals"`
	Days   []DayHours              `json:"days"`
}

// ComputeHours derives payroll hours from the work intervals of a canonical
// timeline.
func ComputeHours(tl attendance.EmployeeTimeline, p Policy) (EmployeeHours, error) {
	if err := p.Validate(); err != nil {
		return EmployeeHours{}, err
	}

	type dayAcc struct {
		first  time.Time
		worked decimal.Decimal
		night  decimal.Decimal
	}
	days := map[string]*dayAcc{}
	for _, iv := range tl.Intervals {
		if iv.Type != attendance.TypeWork || !iv.Valid() {
			continue
		}
		key := attendance.DayKey(iv.Start)
		acc, ok := days[key]
		if !ok {
			acc = &dayAcc{first: iv.Start}
			days[key] = acc
		}
		acc.worked = acc.worked.Add(decimal.NewFromFloat(iv.Duration))
		acc.night = acc.night.Add(nightHours(iv, p))
	}

	keys := make([]string, 0, len(days))
	for k := range days {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := EmployeeHours{Days: make([]DayHours, 0, len(keys))}
	var regular, overtime, night decimal.Decimal
	weekRegular := map[string]decimal.Decimal{}
	for _, key := range keys {
		acc := days[key]
		dayRegular := decimal.Min(acc.worked, p.DailyRegularHours)
		dayOvertime := acc.worked.Sub(dayRegular)

		week := attendance.WeekKey(acc.first)
		if over := weekRegular[week].Add(dayRegular).Sub(p.WeeklyRegularHours); over.IsPositive() {
			shift := decimal.Min(over, dayRegular)
			dayRegular = dayRegular.Sub(shift)
			dayOvertime = dayOvertime.Add(shift)
		}
		weekRegular[week] = weekRegular[week].Add(dayRegular)

		out.Days = append(out.Days, DayHours{
			Day:      key,
			Worked:   acc.worked.Round(2),
			Regular:  dayRegular.Round(2),
			Overtime: dayOvertime.Round(2),
			Night:    acc.night.Round(2),
		})
		regular = regular.Add(dayRegular)
		overtime = overtime.Add(dayOvertime)
		night = night.Add(acc.night)
	}

	out.Totals = attendance.PayrollHours{
		EmployeeID: tl.EmployeeID,
		Regular:    decimal.NewNullDecimal(regular.Round(2)),
		Overtime:   decimal.NewNullDecimal(overtime.Round(2)),
		Night:      decimal.NewNullDecimal(night.Round(2)),
	}
	return out, nil
}

// ComputeAll runs ComputeHours for every timeline, keeping their order.
func ComputeAll(timelines []attendance.EmployeeTimeline, p Policy) ([]EmployeeHours, error) {
	out := make([]EmployeeHours, 0, len(timelines))
	for _, tl := range timelines {
		h, err := ComputeHours(tl, p)
		if err != nil {
			return nil, err
		}
		out = append(out, h)
	}
	return out, nil
}

// Totals flattens computed hours into the form the validator consumes.
func Totals(hours []EmployeeHours) []attendance.PayrollHours {
	out := make([]attendance.PayrollHours, 0, len(hours))
	for _, h := range hours {
		out = append(out, h.Totals)
	}
	return out
}

// nightHours intersects iv with every night window that can touch it: the one
// opening the day before its start through the one opening on its last day.
func nightHours(iv attendance.Interval, p Policy) decimal.Decimal {
	total := decimal.Zero
	last := attendance.StartOfDay(iv.End)
	for base := attendance.StartOfDay(iv.Start).AddDate(0, 0, -1); !base.After(last); base = base.AddDate(0, 0, 1) {
		ws, err := attendance.AtClock(base, p.NightStart)
		if err != nil {
			return total
		}
		we, err := attendance.AtClock(base, p.NightEnd)
		if err != nil {
			return total
		}
		if !we.After(ws) {
			we = we.AddDate(0, 0, 1)
		}
		from, to := iv.Start, iv.End
		if ws.After(from) {
			from = ws
		}
		if we.Before(to) {
			to = we
		}
		if to.After(from) {
			total = total.Add(decimal.NewFromFloat(attendance.HoursBetween(from, to)))
		}
	}
	return total
}
