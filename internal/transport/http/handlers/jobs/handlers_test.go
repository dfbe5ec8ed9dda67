package jobshandler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"restopay/internal/domain/auth"
	"restopay/internal/platform/jobs"
	"restopay/internal/transport/http/middleware"
)

const testSecret = "jobs-secret"

type fakeJobs struct {
	runs     []jobs.JobRun
	filter   jobs.RunFilter
	enqueued []string
}

func (f *fakeJobs) ListRuns(_ context.Context, filter jobs.RunFilter) ([]jobs.JobRun, int, error) {
	f.filter = filter
	return f.runs, len(f.runs), nil
}

func (f *fakeJobs) GetRun(_ context.Context, id string) (jobs.JobRun, error) {
	for _, run := range f.runs {
		if run.ID == id {
			return run, nil
		}
	}
	return jobs.JobRun{}, jobs.ErrJobRunNotFound
}

func (f *fakeJobs) Enqueue(jobType string, _ func(context.Context) (any, error)) {
	f.enqueued = append(f.enqueued, jobType)
}

func (f *fakeJobs) ReconcileWindow(context.Context) (any, error) { return nil, nil }

func setup(t *testing.T) (*fakeJobs, http.Handler) {
	t.Helper()
	svc := &fakeJobs{runs: []jobs.JobRun{{
		ID:        "6f0c1d2e-3b4a-4c5d-8e9f-0a1b2c3d4e5f",
		JobType:   jobs.JobReconcile,
		Status:    "completed",
		Details:   map[string]any{"runId": "r1"},
		StartedAt: time.Date(2025, time.March, 10, 2, 0, 0, 0, time.UTC),
	}}}
	r := chi.NewRouter()
	r.Use(middleware.Auth(testSecret))
	r.Route("/api/v1", NewHandler(svc, auth.NewStaticPermissions(auth.RolePermissions)).RegisterRoutes)
	return svc, r
}

func call(t *testing.T, h http.Handler, method, path, role string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	tok, err := auth.GenerateToken(testSecret, auth.Claims{UserID: "u1", RoleName: role}, time.Hour)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+tok)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestListJobRuns(t *testing.T) {
	svc, h := setup(t)
	rec := call(t, h, http.MethodGet, "/api/v1/jobs?jobType=attendance_reconcile&status=completed&limit=10", auth.RolePayrollAdmin)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, jobs.RunFilter{JobType: jobs.JobReconcile, Status: "completed", Limit: 10}, svc.filter)

	var env struct {
		Data []jobs.JobRun `json:"data"`
		Meta struct {
			Total int `json:"total"`
		} `json:"meta"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	require.Len(t, env.Data, 1)
	assert.Equal(t, 1, env.Meta.Total)

	rec = call(t, h, http.MethodGet, "/api/v1/jobs?status=stuck", auth.RolePayrollAdmin)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = call(t, h, http.MethodGet, "/api/v1/jobs", auth.RoleManager)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestGetJobRun(t *testing.T) {
	svc, h := setup(t)
	rec := call(t, h, http.MethodGet, "/api/v1/jobs/"+svc.runs[0].ID, auth.RoleSystemAdmin)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"runId":"r1"`)

	rec = call(t, h, http.MethodGet, "/api/v1/jobs/unknown", auth.RoleSystemAdmin)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestEnqueueReconcile(t *testing.T) {
	svc, h := setup(t)
	rec := call(t, h, http.MethodPost, "/api/v1/jobs/reconcile", auth.RoleManager)
	require.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, []string{jobs.JobReconcile}, svc.enqueued)

	rec = call(t, h, http.MethodPost, "/api/v1/jobs/reconcile", auth.RoleAuditor)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Len(t, svc.enqueued, 1)
}
