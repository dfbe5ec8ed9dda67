package attendancehandler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"restopay/internal/domain/attendance"
	"restopay/internal/domain/audit"
	"restopay/internal/domain/auth"
	"restopay/internal/domain/payroll"
	"restopay/internal/transport/http/middleware"
)

const testSecret = "handler-secret"

const runID = "0d6b8a3c-7f42-4d55-9b1e-2a9c5e0f6d11"

type fakeEngine struct {
	period attendance.Period
	runErr error
}

func (f *fakeEngine) Reconcile(ctx context.Context, batch attendance.Batch, _ string) (attendance.Result, error) {
	return attendance.NewReconciler(attendance.Options{}, attendance.Sources{}).Reconcile(ctx, batch)
}

func (f *fakeEngine) RunPeriod(_ context.Context, period attendance.Period, _ string) (attendance.Result, error) {
	f.period = period
	if f.runErr != nil {
		return attendance.Result{}, f.runErr
	}
	return attendance.Result{RunID: runID, Period: &period, Validation: attendance.NewResult(nil)}, nil
}

func (f *fakeEngine) Hours(timelines []attendance.EmployeeTimeline) ([]payroll.EmployeeHours, error) {
	return payroll.ComputeAll(timelines, payroll.DefaultPolicy())
}

type fakeRuns struct {
	run attendance.Run
}

func (f *fakeRuns) SaveRun(context.Context, attendance.Result) (string, error) { return runID, nil }

func (f *fakeRuns) GetRun(_ context.Context, id string) (attendance.Run, error) {
	if id != runID {
		return attendance.Run{}, attendance.ErrRunNotFound
	}
	return f.run, nil
}

func (f *fakeRuns) ListRuns(context.Context, int, int) ([]attendance.Run, int, error) {
	return []attendance.Run{f.run}, 1, nil
}

type fakePayroll struct {
	entries []attendance.PayrollHours
	start   time.Time
}

func (f *fakePayroll) UpsertPayrollHours(_ context.Context, start, _ time.Time, p attendance.PayrollHours) error {
	f.start = start
	f.entries = append(f.entries, p)
	return nil
}

type fakeReports struct{ dir string }

func (f fakeReports) RunPDF(res attendance.Result, _ time.Time) (string, error) {
	path := filepath.Join(f.dir, res.RunID+".pdf")
	return path, os.WriteFile(path, []byte("%PDF-1.3 test"), 0o644)
}

type fakeAudit struct{ entries []audit.Entry }

func (f *fakeAudit) Record(_ context.Context, e audit.Entry) error {
	f.entries = append(f.entries, e)
	return nil
}

type testServer struct {
	router  chi.Router
	engine  *fakeEngine
	payroll *fakePayroll
	audit   *fakeAudit
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	day := time.Date(2025, time.March, 3, 0, 0, 0, 0, time.UTC)
	in, out := day.Add(9*time.Hour), day.Add(20*time.Hour)
	res, err := attendance.NewReconciler(attendance.Options{}, attendance.Sources{}).Reconcile(context.Background(), attendance.Batch{
		ClockEvents: []attendance.ClockEvent{
			{EmployeeID: "E1", Type: attendance.EventIn, Timestamp: &in, Validated: true},
			{EmployeeID: "E1", Type: attendance.EventOut, Timestamp: &out, Validated: true},
		},
		Payroll: []attendance.PayrollHours{},
	})
	require.NoError(t, err)
	res.RunID = runID
	res.Period = &attendance.Period{From: day, To: day.AddDate(0, 0, 7)}

	run := attendance.Run{
		ID:        runID,
		Period:    res.Period,
		IsValid:   res.Validation.IsValid,
		Summary:   res.Validation.Summary,
		Stats:     res.Stats,
		Warnings:  res.Validation.Warnings,
		Errors:    res.Validation.Errors,
		Timelines: res.Timelines,
		CreatedAt: day.AddDate(0, 0, 7),
	}

	ts := &testServer{engine: &fakeEngine{}, payroll: &fakePayroll{}, audit: &fakeAudit{}}
	h := NewHandler(ts.engine, &fakeRuns{run: run}, ts.payroll, fakeReports{dir: t.TempDir()}, auth.NewStaticPermissions(auth.RolePermissions))
	paris, err := time.LoadLocation("Europe/Paris")
	require.NoError(t, err)
	h.Location = paris
	h.Audit = ts.audit

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Auth(testSecret))
	r.Route("/api/v1", h.RegisterRoutes)
	ts.router = r
	return ts
}

func token(t *testing.T, role string) string {
	t.Helper()
	tok, err := auth.GenerateToken(testSecret, auth.Claims{UserID: "u-" + role, RoleName: role}, time.Hour)
	require.NoError(t, err)
	return tok
}

func (ts *testServer) do(t *testing.T, method, path, role string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if raw, ok := body.(string); ok {
			buf.WriteString(raw)
		} else {
			require.NoError(t, json.NewEncoder(&buf).Encode(body))
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if role != "" {
		req.Header.Set("Authorization", "Bearer "+token(t, role))
	}
	rec := httptest.NewRecorder()
	ts.router.ServeHTTP(rec, req)
	return rec
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Meta    *struct {
		Total int `json:"total"`
	} `json:"meta"`
	Error *struct {
		Code string `json:"code"`
	} `json:"error"`
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	return env
}

func TestReconcileBatch(t *testing.T) {
	ts := newTestServer(t)
	body := `{
	  "clockEvents": [
	    {"employeeId": "E1", "type": "in", "timestamp": "2025-03-03T09:00:00Z", "validated": true},
	    {"employeeId": "E1", "type": "out", "timestamp": "2025-03-03T17:00:00Z", "validated": true},
	    {"employeeId": "E2", "type": "in", "timestamp": "2025-03-03T10:00:00Z", "validated": true}
	  ]
	}`
	rec := ts.do(t, http.MethodPost, "/api/v1/attendance/reconcile", auth.RoleManager, body)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var res attendance.Result
	require.NoError(t, json.Unmarshal(decode(t, rec).Data, &res))
	require.Len(t, res.Timelines, 2)
	assert.Equal(t, "E1", res.Timelines[0].EmployeeID)
	assert.True(t, res.Validation.HasCode(attendance.CodeOpenPeriod))
}

func TestReconcileRequiresPermission(t *testing.T) {
	ts := newTestServer(t)
	rec := ts.do(t, http.MethodPost, "/api/v1/attendance/reconcile", "", "{}")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = ts.do(t, http.MethodPost, "/api/v1/attendance/reconcile", auth.RoleAuditor, "{}")
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = ts.do(t, http.MethodPost, "/api/v1/attendance/reconcile", auth.RoleManager, "{not json")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreateRun(t *testing.T) {
	ts := newTestServer(t)
	rec := ts.do(t, http.MethodPost, "/api/v1/attendance/runs", auth.RolePayrollAdmin, map[string]string{"from": "2025-03-03", "to": "2025-03-10"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var summary RunSummary
	require.NoError(t, json.Unmarshal(decode(t, rec).Data, &summary))
	assert.Equal(t, runID, summary.RunID)
	assert.True(t, summary.IsValid)
	assert.Equal(t, "Europe/Paris", ts.engine.period.From.Location().String())
	assert.Equal(t, 0, ts.engine.period.From.Hour())
	require.Len(t, ts.audit.entries, 1)
	assert.Equal(t, audit.ActionRunCreated, ts.audit.entries[0].Action)
	assert.Equal(t, runID, ts.audit.entries[0].EntityID)
	assert.Equal(t, "u-"+auth.RolePayrollAdmin, ts.audit.entries[0].ActorID)

	rec = ts.do(t, http.MethodPost, "/api/v1/attendance/runs", auth.RolePayrollAdmin, map[string]string{"from": "2025-03-10", "to": "2025-03-03"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = ts.do(t, http.MethodPost, "/api/v1/attendance/runs", auth.RolePayrollAdmin, map[string]string{"from": "yesterday"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	ts.engine.runErr = errors.New("db down")
	rec = ts.do(t, http.MethodPost, "/api/v1/attendance/runs", auth.RolePayrollAdmin, map[string]string{"from": "2025-03-03", "to": "2025-03-10"})
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "reconcile_failed", decode(t, rec).Error.Code)
}

func TestListAndGetRuns(t *testing.T) {
	ts := newTestServer(t)
	rec := ts.do(t, http.MethodGet, "/api/v1/attendance/runs?limit=5", auth.RoleAuditor, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	env := decode(t, rec)
	require.NotNil(t, env.Meta)
	assert.Equal(t, 1, env.Meta.Total)

	rec = ts.do(t, http.MethodGet, "/api/v1/attendance/runs/"+runID, auth.RoleAuditor, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var run attendance.Run
	require.NoError(t, json.Unmarshal(decode(t, rec).Data, &run))
	assert.Equal(t, runID, run.ID)
	assert.Empty(t, run.Timelines)
	assert.NotEmpty(t, run.Warnings)

	rec = ts.do(t, http.MethodGet, "/api/v1/attendance/runs/"+runID+"?timelines=true", auth.RoleAuditor, nil)
	require.NoError(t, json.Unmarshal(decode(t, rec).Data, &run))
	assert.Len(t, run.Timelines, 1)

	rec = ts.do(t, http.MethodGet, "/api/v1/attendance/runs/missing", auth.RoleAuditor, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRunReports(t *testing.T) {
	ts := newTestServer(t)
	rec := ts.do(t, http.MethodGet, "/api/v1/attendance/runs/"+runID+"/report.pdf", auth.RoleAuditor, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/pdf", rec.Header().Get("Content-Type"))
	assert.True(t, strings.HasPrefix(rec.Body.String(), "%PDF"))

	rec = ts.do(t, http.MethodGet, "/api/v1/attendance/runs/"+runID+"/report.csv", auth.RoleAuditor, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), attendance.CodeExcessiveDuration)

	rec = ts.do(t, http.MethodGet, "/api/v1/attendance/runs/"+runID+"/report.csv?kind=timelines", auth.RoleAuditor, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "2025-03-03T09:00:00Z")

	rec = ts.do(t, http.MethodGet, "/api/v1/attendance/runs/"+runID+"/report.csv?kind=xml", auth.RoleAuditor, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRunHours(t *testing.T) {
	ts := newTestServer(t)
	rec := ts.do(t, http.MethodGet, "/api/v1/attendance/runs/"+runID+"/hours", auth.RoleAuditor, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var data struct {
		Hours []payroll.EmployeeHours `json:"hours"`
	}
	require.NoError(t, json.Unmarshal(decode(t, rec).Data, &data))
	require.Len(t, data.Hours, 1)
	assert.Equal(t, "8", data.Hours[0].Totals.Regular.Decimal.String())
	assert.Equal(t, "3", data.Hours[0].Totals.Overtime.Decimal.String())

	rec = ts.do(t, http.MethodGet, "/api/v1/attendance/runs/"+runID+"/hours", auth.RoleManager, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestImportPayrollHours(t *testing.T) {
	ts := newTestServer(t)
	body := `{"periodStart": "2025-03-03", "periodEnd": "2025-03-09",
	  "entries": [{"employeeId": "E1", "regular": "38.5", "overtime": "0", "night": null}]}`
	rec := ts.do(t, http.MethodPut, "/api/v1/payroll/hours", auth.RolePayrollAdmin, body)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.Len(t, ts.payroll.entries, 1)
	assert.Equal(t, "38.5", ts.payroll.entries[0].Regular.Decimal.String())
	assert.False(t, ts.payroll.entries[0].Night.Valid)
	require.Len(t, ts.audit.entries, 1)
	assert.Equal(t, "2025-03-03/2025-03-09", ts.audit.entries[0].EntityID)

	rec = ts.do(t, http.MethodPut, "/api/v1/payroll/hours", auth.RolePayrollAdmin, `{"periodStart": "2025-03-03", "periodEnd": "2025-03-09", "entries": [{"regular": "1"}]}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.do(t, http.MethodPut, "/api/v1/payroll/hours", auth.RoleAuditor, body)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}
