package audithandler

import (
	"context"
	"encoding/csv"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"restopay/internal/domain/audit"
	"restopay/internal/domain/auth"
	"restopay/internal/transport/http/middleware"
)

type fakeLog struct {
	events []audit.Event
	filter audit.Filter
	limit  int
}

func (f *fakeLog) Count(_ context.Context, filter audit.Filter) (int, error) {
	return len(f.events), nil
}

func (f *fakeLog) List(_ context.Context, filter audit.Filter, _ bool, limit, _ int) ([]audit.Event, error) {
	f.filter, f.limit = filter, limit
	return f.events, nil
}

func request(t *testing.T, log *fakeLog, path, role string) *httptest.ResponseRecorder {
	t.Helper()
	r := chi.NewRouter()
	r.Use(middleware.Auth("audit-secret"))
	r.Route("/api/v1", NewHandler(log, auth.NewStaticPermissions(auth.RolePermissions)).RegisterRoutes)

	tok, err := auth.GenerateToken("audit-secret", auth.Claims{UserID: "a1", RoleName: role}, time.Hour)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodGet, path, nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func sampleLog() *fakeLog {
	return &fakeLog{events: []audit.Event{{
		ID:         "1",
		ActorID:    "u1",
		Action:     audit.ActionRunCreated,
		EntityType: audit.EntityRun,
		EntityID:   "run-1",
		CreatedAt:  time.Date(2025, time.March, 10, 8, 0, 0, 0, time.UTC),
	}}}
}

func TestListEvents(t *testing.T) {
	log := sampleLog()
	rec := request(t, log, "/api/v1/audit/events?action=reconciliation_run.created&actorId=u1", auth.RoleAuditor)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "1", rec.Header().Get("X-Total-Count"))
	assert.Equal(t, audit.Filter{Action: audit.ActionRunCreated, ActorID: "u1"}, log.filter)
	assert.Equal(t, 100, log.limit)

	rec = request(t, log, "/api/v1/audit/events", auth.RolePayrollAdmin)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestExportEvents(t *testing.T) {
	log := sampleLog()
	rec := request(t, log, "/api/v1/audit/events/export", auth.RoleSystemAdmin)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 0, log.limit)

	rows, err := csv.NewReader(strings.NewReader(rec.Body.String())).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, []string{"1", "u1", audit.ActionRunCreated, audit.EntityRun, "run-1", "", "", "2025-03-10T08:00:00Z"}, rows[1])
}
