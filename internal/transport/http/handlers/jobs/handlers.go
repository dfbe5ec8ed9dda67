package jobshandler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"restopay/internal/domain/auth"
	"restopay/internal/platform/jobs"
	"restopay/internal/transport/http/api"
	"restopay/internal/transport/http/middleware"
	"restopay/internal/transport/http/shared"
)

var jobStatuses = []string{"running", "completed", "failed"}

// JobService is the part of the background job runner the API exposes.
type JobService interface {
	ListRuns(ctx context.Context, f jobs.RunFilter) ([]jobs.JobRun, int, error)
	GetRun(ctx context.Context, id string) (jobs.JobRun, error)
	Enqueue(jobType string, run func(context.Context) (any, error))
	ReconcileWindow(ctx context.Context) (any, error)
}

type Handler struct {
	Jobs  JobService
	Perms middleware.PermissionStore
}

func NewHandler(svc JobService, perms middleware.PermissionStore) *Handler {
	return &Handler{Jobs: svc, Perms: perms}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/jobs", func(r chi.Router) {
		r.With(middleware.RequirePermission(auth.PermJobsRead, h.Perms)).Get("/", h.handleList)
		r.With(middleware.RequirePermission(auth.PermJobsRead, h.Perms)).Get("/{jobID}", h.handleGet)
		r.With(middleware.RequirePermission(auth.PermAttendanceReconcile, h.Perms)).Post("/reconcile", h.handleEnqueueReconcile)
	})
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	v := shared.NewValidator()
	if status := q.Get("status"); status != "" {
		v.Enum("status", status, jobStatuses, "must be running, completed or failed")
	}
	if v.Reject(w, middleware.GetRequestID(r.Context())) {
		return
	}

	page := shared.ParsePage(r, 50, 200)
	runs, total, err := h.Jobs.ListRuns(r.Context(), jobs.RunFilter{
		JobType: q.Get("jobType"),
		Status:  q.Get("status"),
		Limit:   page.Limit,
		Offset:  page.Offset,
	})
	if err != nil {
		slog.Error("list job runs failed", "err", err)
		api.Fail(w, http.StatusInternalServerError, "list_failed", "failed to list job runs", middleware.GetRequestID(r.Context()))
		return
	}
	if runs == nil {
		runs = []jobs.JobRun{}
	}
	api.SuccessWithMeta(w, runs, page.Meta(total), middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	run, err := h.Jobs.GetRun(r.Context(), chi.URLParam(r, "jobID"))
	if errors.Is(err, jobs.ErrJobRunNotFound) {
		api.Fail(w, http.StatusNotFound, "not_found", "job run not found", middleware.GetRequestID(r.Context()))
		return
	}
	if err != nil {
		slog.Error("get job run failed", "err", err)
		api.Fail(w, http.StatusInternalServerError, "load_failed", "failed to load job run", middleware.GetRequestID(r.Context()))
		return
	}
	api.Success(w, run, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleEnqueueReconcile(w http.ResponseWriter, r *http.Request) {
	h.Jobs.Enqueue(jobs.JobReconcile, h.Jobs.ReconcileWindow)
	api.WriteJSON(w, http.StatusAccepted, api.Envelope{
		Success:   true,
		Data:      map[string]string{"jobType": jobs.JobReconcile, "status": "queued"},
		RequestID: middleware.GetRequestID(r.Context()),
	})
}
