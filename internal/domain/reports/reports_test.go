package reports

import (
	"bytes"
	"context"
	"encoding/csv"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"restopay/internal/domain/attendance"
)

func sampleResult(t *testing.T) attendance.Result {
	t.Helper()
	day := time.Date(2025, time.March, 3, 0, 0, 0, 0, time.UTC)
	ts := func(h int) *time.Time {
		v := day.Add(time.Duration(h) * time.Hour)
		return &v
	}
	res, err := attendance.NewReconciler(attendance.Options{}, attendance.Sources{}).Reconcile(context.Background(), attendance.Batch{
		ClockEvents: []attendance.ClockEvent{
			{EmployeeID: "E1", Type: attendance.EventIn, Timestamp: ts(9), Validated: true},
			{EmployeeID: "E1", Type: attendance.EventOut, Timestamp: ts(21), Validated: true},
			{EmployeeID: "E2", Type: attendance.EventIn, Timestamp: ts(10), Validated: true},
		},
	})
	require.NoError(t, err)
	res.RunID = "2f1d9c1e-4d7a-4a55-9a53-1c0f3e3e7b11"
	res.Period = &attendance.Period{From: day, To: day.AddDate(0, 0, 7)}
	return res
}

func TestWriteIssuesCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteIssuesCSV(&buf, sampleResult(t)))

	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, issueHeader, rows[0])
	assert.Equal(t, []string{"warning", attendance.CodeExcessiveDuration, "E1"}, rows[1][:3])
	assert.Equal(t, "day=2025-03-03 hours=12 limit=10", rows[1][6])
	assert.Equal(t, attendance.CodeOpenPeriod, rows[2][1])
}

func TestWriteTimelinesCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteTimelinesCSV(&buf, sampleResult(t)))

	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, []string{"E1", "2025-03-03", "work", "timeclock", "2025-03-03T09:00:00Z", "2025-03-03T21:00:00Z", "12.00", "true"}, rows[1])
}

func TestWritePDF(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WritePDF(&buf, sampleResult(t), time.Now()))
	assert.True(t, bytes.HasPrefix(buf.Bytes(), []byte("%PDF")))
}

func TestRunPDFStoresOnce(t *testing.T) {
	svc := NewService(t.TempDir())
	res := sampleResult(t)

	path, err := svc.RunPDF(res, time.Now())
	require.NoError(t, err)
	first, err := os.Stat(path)
	require.NoError(t, err)
	assert.Positive(t, first.Size())

	again, err := svc.RunPDF(res, time.Now().Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, path, again)

	res.RunID = ""
	_, err = svc.RunPDF(res, time.Now())
	require.Error(t, err)
}
