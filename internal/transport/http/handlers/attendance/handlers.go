package attendancehandler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"restopay/internal/domain/attendance"
	"restopay/internal/domain/audit"
	"restopay/internal/domain/auth"
	"restopay/internal/domain/payroll"
	"restopay/internal/domain/reports"
	"restopay/internal/transport/http/api"
	"restopay/internal/transport/http/middleware"
	"restopay/internal/transport/http/shared"
)

// Engine is the reconciliation entry point the handlers drive.
type Engine interface {
	Reconcile(ctx context.Context, batch attendance.Batch, trigger string) (attendance.Result, error)
	RunPeriod(ctx context.Context, period attendance.Period, trigger string) (attendance.Result, error)
	Hours(timelines []attendance.EmployeeTimeline) ([]payroll.EmployeeHours, error)
}

type PayrollHoursWriter interface {
	UpsertPayrollHours(ctx context.Context, periodStart, periodEnd time.Time, p attendance.PayrollHours) error
}

type ReportStore interface {
	RunPDF(res attendance.Result, generatedAt time.Time) (string, error)
}

type AuditRecorder interface {
	Record(ctx context.Context, e audit.Entry) error
}

type Handler struct {
	Engine  Engine
	Runs    attendance.RunStore
	Payroll PayrollHoursWriter
	Reports ReportStore
	Perms   middleware.PermissionStore

	// Audit is optional; nil disables the trail.
	Audit AuditRecorder

	// Location interprets plain YYYY-MM-DD dates.
	Location *time.Location

	// ReconcileLimit throttles the reconcile endpoints per caller and minute;
	// zero disables it.
	ReconcileLimit int
}

func NewHandler(engine Engine, runs attendance.RunStore, payrollHours PayrollHoursWriter, reportStore ReportStore, perms middleware.PermissionStore) *Handler {
	return &Handler{Engine: engine, Runs: runs, Payroll: payrollHours, Reports: reportStore, Perms: perms, Location: time.UTC, ReconcileLimit: 30}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	throttle := middleware.RateLimit(h.ReconcileLimit, time.Minute)
	r.Route("/attendance", func(r chi.Router) {
		r.With(middleware.RequirePermission(auth.PermAttendanceReconcile, h.Perms), throttle).Post("/reconcile", h.handleReconcile)
		r.With(middleware.RequirePermission(auth.PermPayrollRead, h.Perms), throttle).Post("/hours", h.handleBatchHours)
		r.With(middleware.RequirePermission(auth.PermAttendanceReconcile, h.Perms), throttle).Post("/runs", h.handleCreateRun)
		r.With(middleware.RequirePermission(auth.PermAttendanceRead, h.Perms)).Get("/runs", h.handleListRuns)
		r.With(middleware.RequirePermission(auth.PermAttendanceRead, h.Perms)).Get("/runs/{runID}", h.handleGetRun)
		r.With(middleware.RequirePermission(auth.PermAttendanceRead, h.Perms)).Get("/runs/{runID}/report.pdf", h.handleRunPDF)
		r.With(middleware.RequirePermission(auth.PermAttendanceRead, h.Perms)).Get("/runs/{runID}/report.csv", h.handleRunCSV)
		r.With(middleware.RequirePermission(auth.PermPayrollRead, h.Perms)).Get("/runs/{runID}/hours", h.handleRunHours)
	})
	r.With(middleware.RequirePermission(auth.PermPayrollWrite, h.Perms)).Put("/payroll/hours", h.handleImportPayrollHours)
}

type runPayload struct {
	From string `json:"from"`
	To   string `json:"to"`
}

type payrollHoursPayload struct {
	PeriodStart string                    `json:"periodStart"`
	PeriodEnd   string                    `json:"periodEnd"`
	Entries     []attendance.PayrollHours `json:"entries"`
}

// RunSummary is the run header returned when a run is created or listed.
type RunSummary struct {
	RunID     string             `json:"runId"`
	Period    *attendance.Period `json:"period,omitempty"`
	IsValid   bool               `json:"isValid"`
	Summary   attendance.Summary `json:"summary"`
	Stats     attendance.Stats   `json:"stats"`
	CreatedAt *time.Time         `json:"createdAt,omitempty"`
}

func summarize(res attendance.Result) RunSummary {
	return RunSummary{
		RunID:   res.RunID,
		Period:  res.Period,
		IsValid: res.Validation.IsValid,
		Summary: res.Validation.Summary,
		Stats:   res.Stats,
	}
}

func (h *Handler) decodeBatch(w http.ResponseWriter, r *http.Request) (attendance.Batch, bool) {
	var batch attendance.Batch
	if err := json.NewDecoder(r.Body).Decode(&batch); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			api.Fail(w, http.StatusRequestEntityTooLarge, "payload_too_large", "request body too large", middleware.GetRequestID(r.Context()))
			return attendance.Batch{}, false
		}
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid json payload", middleware.GetRequestID(r.Context()))
		return attendance.Batch{}, false
	}
	return batch, true
}

func (h *Handler) handleReconcile(w http.ResponseWriter, r *http.Request) {
	batch, ok := h.decodeBatch(w, r)
	if !ok {
		return
	}
	res, err := h.Engine.Reconcile(r.Context(), batch, "api")
	if err != nil {
		slog.Error("reconcile failed", "err", err, "requestId", middleware.GetRequestID(r.Context()))
		api.Fail(w, http.StatusInternalServerError, "reconcile_failed", "reconciliation failed", middleware.GetRequestID(r.Context()))
		return
	}
	api.Success(w, res, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleBatchHours(w http.ResponseWriter, r *http.Request) {
	batch, ok := h.decodeBatch(w, r)
	if !ok {
		return
	}
	res, err := h.Engine.Reconcile(r.Context(), batch, "api")
	if err != nil {
		slog.Error("reconcile failed", "err", err, "requestId", middleware.GetRequestID(r.Context()))
		api.Fail(w, http.StatusInternalServerError, "reconcile_failed", "reconciliation failed", middleware.GetRequestID(r.Context()))
		return
	}
	h.writeHours(w, r, res)
}

func (h *Handler) handleCreateRun(w http.ResponseWriter, r *http.Request) {
	var payload runPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid json payload", middleware.GetRequestID(r.Context()))
		return
	}
	v := shared.NewValidator()
	from, fromOK := v.Day("from", payload.From, h.Location)
	to, toOK := v.Day("to", payload.To, h.Location)
	if fromOK && toOK {
		v.Order("from", from, "to", to, false)
	}
	if v.Reject(w, middleware.GetRequestID(r.Context())) {
		return
	}

	res, err := h.Engine.RunPeriod(r.Context(), attendance.Period{From: from, To: to}, "api")
	if err != nil {
		slog.Error("reconcile run failed", "err", err, "requestId", middleware.GetRequestID(r.Context()))
		api.Fail(w, http.StatusInternalServerError, "reconcile_failed", "reconciliation run failed", middleware.GetRequestID(r.Context()))
		return
	}
	h.record(r, audit.Entry{
		Action:     audit.ActionRunCreated,
		EntityType: audit.EntityRun,
		EntityID:   res.RunID,
		Details:    map[string]any{"from": from, "to": to, "isValid": res.Validation.IsValid},
	})
	api.Created(w, summarize(res), middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleListRuns(w http.ResponseWriter, r *http.Request) {
	page := shared.ParsePage(r, 20, 100)
	runs, total, err := h.Runs.ListRuns(r.Context(), page.Limit, page.Offset)
	if err != nil {
		slog.Error("list runs failed", "err", err)
		api.Fail(w, http.StatusInternalServerError, "list_failed", "failed to list runs", middleware.GetRequestID(r.Context()))
		return
	}
	out := make([]RunSummary, 0, len(runs))
	for _, run := range runs {
		created := run.CreatedAt
		s := summarize(run.Result())
		s.CreatedAt = &created
		out = append(out, s)
	}
	api.SuccessWithMeta(w, out, page.Meta(total), middleware.GetRequestID(r.Context()))
}

// loadRun writes the error response itself when it returns false.
func (h *Handler) loadRun(w http.ResponseWriter, r *http.Request) (attendance.Run, bool) {
	run, err := h.Runs.GetRun(r.Context(), chi.URLParam(r, "runID"))
	if errors.Is(err, attendance.ErrRunNotFound) {
		api.Fail(w, http.StatusNotFound, "not_found", "run not found", middleware.GetRequestID(r.Context()))
		return attendance.Run{}, false
	}
	if err != nil {
		slog.Error("get run failed", "err", err)
		api.Fail(w, http.StatusInternalServerError, "load_failed", "failed to load run", middleware.GetRequestID(r.Context()))
		return attendance.Run{}, false
	}
	return run, true
}

func (h *Handler) handleGetRun(w http.ResponseWriter, r *http.Request) {
	run, ok := h.loadRun(w, r)
	if !ok {
		return
	}
	if r.URL.Query().Get("timelines") != "true" {
		run.Timelines = nil
	}
	api.Success(w, run, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleRunPDF(w http.ResponseWriter, r *http.Request) {
	run, ok := h.loadRun(w, r)
	if !ok {
		return
	}
	path, err := h.Reports.RunPDF(run.Result(), time.Now())
	if err != nil {
		slog.Error("run report failed", "runId", run.ID, "err", err)
		api.Fail(w, http.StatusInternalServerError, "report_failed", "failed to render report", middleware.GetRequestID(r.Context()))
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=reconciliation-%s.pdf", run.ID))
	http.ServeFile(w, r, path)
}

func (h *Handler) handleRunCSV(w http.ResponseWriter, r *http.Request) {
	run, ok := h.loadRun(w, r)
	if !ok {
		return
	}
	write, name := reports.WriteIssuesCSV, "issues"
	switch r.URL.Query().Get("kind") {
	case "", "issues":
	case "timelines":
		write, name = reports.WriteTimelinesCSV, "timelines"
	default:
		api.Fail(w, http.StatusBadRequest, "invalid_kind", "kind must be issues or timelines", middleware.GetRequestID(r.Context()))
		return
	}
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=reconciliation-%s-%s.csv", run.ID, name))
	if err := write(w, run.Result()); err != nil {
		slog.Warn("run csv write failed", "runId", run.ID, "err", err)
	}
}

func (h *Handler) handleRunHours(w http.ResponseWriter, r *http.Request) {
	run, ok := h.loadRun(w, r)
	if !ok {
		return
	}
	h.writeHours(w, r, run.Result())
}

func (h *Handler) writeHours(w http.ResponseWriter, r *http.Request, res attendance.Result) {
	hours, err := h.Engine.Hours(res.Timelines)
	if err != nil {
		slog.Error("payroll hours failed", "err", err)
		api.Fail(w, http.StatusInternalServerError, "hours_failed", "failed to compute hours", middleware.GetRequestID(r.Context()))
		return
	}
	api.Success(w, map[string]any{
		"runId":      res.RunID,
		"hours":      hours,
		"validation": res.Validation.Summary,
	}, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleImportPayrollHours(w http.ResponseWriter, r *http.Request) {
	var payload payrollHoursPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid json payload", middleware.GetRequestID(r.Context()))
		return
	}
	v := shared.NewValidator()
	start, startOK := v.Day("periodStart", payload.PeriodStart, h.Location)
	end, endOK := v.Day("periodEnd", payload.PeriodEnd, h.Location)
	if startOK && endOK {
		v.Order("periodStart", start, "periodEnd", end, true)
	}
	if len(payload.Entries) == 0 {
		v.Add("entries", "must not be empty")
	}
	for i, e := range payload.Entries {
		v.Required(fmt.Sprintf("entries[%d].employeeId", i), e.EmployeeID, "is required")
	}
	if v.Reject(w, middleware.GetRequestID(r.Context())) {
		return
	}

	for _, e := range payload.Entries {
		if err := h.Payroll.UpsertPayrollHours(r.Context(), start, end, e); err != nil {
			slog.Error("payroll hours upsert failed", "employeeId", e.EmployeeID, "err", err)
			api.Fail(w, http.StatusInternalServerError, "import_failed", "failed to store payroll hours", middleware.GetRequestID(r.Context()))
			return
		}
	}
	employees := make([]string, 0, len(payload.Entries))
	for _, e := range payload.Entries {
		employees = append(employees, e.EmployeeID)
	}
	h.record(r, audit.Entry{
		Action:     audit.ActionPayrollHoursUpdated,
		EntityType: audit.EntityPayrollHours,
		EntityID:   start.Format(time.DateOnly) + "/" + end.Format(time.DateOnly),
		Details:    map[string]any{"employees": employees},
	})
	api.Success(w, map[string]any{"imported": len(payload.Entries)}, middleware.GetRequestID(r.Context()))
}

// record fills in the caller and logs a failed write; the change itself has
// already been made.
func (h *Handler) record(r *http.Request, e audit.Entry) {
	if h.Audit == nil {
		return
	}
	if user, ok := middleware.GetUser(r.Context()); ok {
		e.ActorID = user.UserID
	}
	e.RequestID = middleware.GetRequestID(r.Context())
	e.IP = middleware.ClientIP(r)
	if err := h.Audit.Record(r.Context(), e); err != nil {
		slog.Warn("audit record failed", "action", e.Action, "entityId", e.EntityID, "err", err)
	}
}
