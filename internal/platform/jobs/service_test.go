package jobs

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"restopay/internal/domain/attendance"
	"restopay/internal/platform/config"
)

type idRow struct{ id string }

func (r idRow) Scan(dest ...any) error {
	*(dest[0].(*string)) = r.id
	return nil
}

// fakeDB records the job_runs writes runJob makes.
type fakeDB struct {
	updates [][]any
}

func (f *fakeDB) Exec(_ context.Context, _ string, args ...any) (pgconn.CommandTag, error) {
	f.updates = append(f.updates, args)
	return pgconn.NewCommandTag("UPDATE 1"), nil
}

func (f *fakeDB) Query(context.Context, string, ...any) (pgx.Rows, error) {
	return nil, errors.New("not supported")
}

func (f *fakeDB) QueryRow(context.Context, string, ...any) pgx.Row {
	return idRow{id: "5b0c5f5e-3f3c-4a8e-9d55-2f7d3c1a9e01"}
}

func (f *fakeDB) Begin(context.Context) (pgx.Tx, error) {
	return nil, errors.New("not supported")
}

type fakeRunner struct {
	period attendance.Period
	err    error
}

func (r *fakeRunner) RunPeriod(_ context.Context, period attendance.Period, _ string) (attendance.Result, error) {
	r.period = period
	if r.err != nil {
		return attendance.Result{}, r.err
	}
	return attendance.Result{RunID: "run-1", Validation: attendance.NewResult(nil)}, nil
}

func newTestService(runner PeriodRunner, db *fakeDB) *Service {
	s := New(db, config.Config{Timezone: "UTC", ReconcileLookback: 36 * time.Hour}, runner)
	s.now = func() time.Time { return time.Date(2025, time.March, 10, 14, 30, 0, 0, time.UTC) }
	return s
}

func TestReconcileWindowCoversWholeDays(t *testing.T) {
	runner := &fakeRunner{}
	s := newTestService(runner, &fakeDB{})

	details, err := s.ReconcileWindow(context.Background())
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, time.March, 8, 0, 0, 0, 0, time.UTC), runner.period.From)
	assert.Equal(t, time.Date(2025, time.March, 10, 0, 0, 0, 0, time.UTC), runner.period.To)
	assert.Equal(t, "run-1", details.(map[string]any)["runId"])
}

func TestRunNowRecordsStatus(t *testing.T) {
	db := &fakeDB{}
	s := newTestService(&fakeRunner{err: errors.New("source down")}, db)

	_, err := s.RunNow(context.Background(), JobReconcile, s.ReconcileWindow)
	require.Error(t, err)
	require.Len(t, db.updates, 1)
	assert.Equal(t, "failed", db.updates[0][0])
	assert.JSONEq(t, `{"error":"source down"}`, string(db.updates[0][1].([]byte)))

	_, err = s.RunNow(context.Background(), JobReconcile, s.ReconcileWindow)
	require.Error(t, err)

	s.Runner = &fakeRunner{}
	_, err = s.RunNow(context.Background(), JobReconcile, s.ReconcileWindow)
	require.NoError(t, err)
	assert.Equal(t, "completed", db.updates[2][0])
}
