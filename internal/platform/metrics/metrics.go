package metrics

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"restopay/internal/domain/attendance"
)

var (
	RunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "restopay_reconcile_runs_total",
		Help: "Total number of reconciliation runs, labelled by trigger and outcome.",
	}, []string{"trigger", "outcome"})

	RunDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "restopay_reconcile_duration_seconds",
		Help:    "Wall time of a reconciliation run including source fetches.",
		Buckets: prometheus.ExponentialBuckets(0.005, 2, 12),
	}, []string{"trigger"})

	IssuesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "restopay_validation_issues_total",
		Help: "Validation issues reported by reconciliation runs, labelled by severity and code.",
	}, []string{"severity", "code"})

	LastRunEmployees = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "restopay_last_run_employees",
		Help: "Number of employees covered by the most recent run.",
	})

	LastRunValid = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "restopay_last_run_valid",
		Help: "1 when the most recent run had no errors, 0 otherwise.",
	})

	AlertsPublished = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "restopay_alerts_published_total",
		Help: "Issue alerts sent to the broker, labelled by status.",
	}, []string{"status"})

	RulesReloads = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "restopay_rules_reloads_total",
		Help: "Rules file reloads, labelled by status.",
	}, []string{"status"})

	JobRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "restopay_job_runs_total",
		Help: "Background job executions, labelled by job type and status.",
	}, []string{"job_type", "status"})

	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "restopay_http_requests_total",
		Help: "HTTP requests served, labelled by method, route and status class.",
	}, []string{"method", "route", "status"})

	HTTPDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "restopay_http_request_duration_seconds",
		Help:    "HTTP request latency.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route"})
)

// ObserveRun records the outcome of one run started at start. err is the
// run error, not validation failures.
func ObserveRun(trigger string, start time.Time, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	RunsTotal.WithLabelValues(trigger, outcome).Inc()
	RunDuration.WithLabelValues(trigger).Observe(time.Since(start).Seconds())
}

// Observer counts the issues of every finished run.
func Observer() attendance.Observer {
	return attendance.ObserverFunc(func(_ context.Context, res attendance.Result) error {
		for _, issue := range res.Validation.Issues() {
			IssuesTotal.WithLabelValues(string(issue.Severity), issue.Code).Inc()
		}
		LastRunEmployees.Set(float64(res.Stats.Employees))
		if res.Validation.IsValid {
			LastRunValid.Set(1)
		} else {
			LastRunValid.Set(0)
		}
		return nil
	})
}

// StatusClass folds an HTTP status into 2xx, 4xx and so on to bound label
// cardinality.
func StatusClass(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}
