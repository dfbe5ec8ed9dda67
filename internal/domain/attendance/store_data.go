package attendance

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"restopay/internal/platform/querier"
)

type Store struct {
	DB querier.Querier
}

func NewStore(db querier.Querier) *Store {
	return &Store{DB: db}
}

func (s *Store) ClockEvents(ctx context.Context, period Period) ([]ClockEvent, error) {
	rows, err := s.DB.Query(ctx, `
    SELECT COALESCE(employee_id, ''), event_type, occurred_at, validated
    FROM clock_events
    WHERE occurred_at IS NULL OR (occurred_at >= $1 AND occurred_at < $2)
    ORDER BY employee_id, occurred_at, id
  `, period.From, period.To)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []ClockEvent
	for rows.Next() {
		var e ClockEvent
		if err := rows.Scan(&e.EmployeeID, &e.Type, &e.Timestamp, &e.Validated); err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

func (s *Store) Shifts(ctx context.Context, period Period) ([]Shift, error) {
	rows, err := s.DB.Query(ctx, `
    SELECT COALESCE(employee_id, ''), shift_date, start_time, end_time, COALESCE(role, ''), status
    FROM shifts
    WHERE shift_date >= $1::date AND shift_date < $2::date
    ORDER BY employee_id, shift_date, start_time
  `, period.From, period.To)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var shifts []Shift
	for rows.Next() {
		var sh Shift
		if err := rows.Scan(&sh.EmployeeID, &sh.Date, &sh.Start, &sh.End, &sh.Role, &sh.Status); err != nil {
			return nil, err
		}
		shifts = append(shifts, sh)
	}
	return shifts, rows.Err()
}

func (s *Store) Leaves(ctx context.Context, period Period) ([]LeaveEntry, error) {
	rows, err := s.DB.Query(ctx, `
    SELECT COALESCE(employee_id, ''), leave_type, start_date, end_date,
           COALESCE(start_time, ''), COALESCE(end_time, ''), status, COALESCE(days, 0)
    FROM leave_requests
    WHERE start_date < $2::date AND end_date >= $1::date
    ORDER BY employee_id, start_date
  `, period.From, period.To)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var leaves []LeaveEntry
	for rows.Next() {
		var l LeaveEntry
		if err := rows.Scan(&l.EmployeeID, &l.Type, &l.Start, &l.End, &l.StartTime, &l.EndTime, &l.Status, &l.Duration); err != nil {
			return nil, err
		}
		leaves = append(leaves, l)
	}
	return leaves, rows.Err()
}

// PayrollHours sums the payroll-side hour totals of every pay period that
// overlaps the window. A field stays missing only when no row carries it.
func (s *Store) PayrollHours(ctx context.Context, period Period) ([]PayrollHours, error) {
	rows, err := s.DB.Query(ctx, `
    SELECT employee_id, SUM(regular)::text, SUM(overtime)::text, SUM(night)::text
    FROM payroll_hours
    WHERE period_start < $2::date AND period_end >= $1::date
    GROUP BY employee_id
    ORDER BY employee_id
  `, period.From, period.To)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []PayrollHours
	for rows.Next() {
		var (
			p                        PayrollHours
			regular, overtime, night *string
		)
		if err := rows.Scan(&p.EmployeeID, &regular, &overtime, &night); err != nil {
			return nil, err
		}
		if p.Regular, err = nullDecimal(regular); err != nil {
			return nil, err
		}
		if p.Overtime, err = nullDecimal(overtime); err != nil {
			return nil, err
		}
		if p.Night, err = nullDecimal(night); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// UpsertPayrollHours records the hours payroll computed for one employee and
// pay period.
func (s *Store) UpsertPayrollHours(ctx context.Context, periodStart, periodEnd time.Time, p PayrollHours) error {
	_, err := s.DB.Exec(ctx, `
    INSERT INTO payroll_hours (employee_id, period_start, period_end, regular, overtime, night)
    VALUES ($1,$2,$3,$4::numeric,$5::numeric,$6::numeric)
    ON CONFLICT (employee_id, period_start, period_end)
    DO UPDATE SET regular = EXCLUDED.regular, overtime = EXCLUDED.overtime, night = EXCLUDED.night, updated_at = now()
  `, p.EmployeeID, periodStart, periodEnd, decimalArg(p.Regular), decimalArg(p.Overtime), decimalArg(p.Night))
	return err
}

func nullDecimal(v *string) (decimal.NullDecimal, error) {
	if v == nil {
		return decimal.NullDecimal{}, nil
	}
	d, err := decimal.NewFromString(*v)
	if err != nil {
		return decimal.NullDecimal{}, fmt.Errorf("parse hours %q: %w", *v, err)
	}
	return decimal.NewNullDecimal(d), nil
}

func decimalArg(v decimal.NullDecimal) any {
	if !v.Valid {
		return nil
	}
	return v.Decimal.String()
}
