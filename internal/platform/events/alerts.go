package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"restopay/internal/domain/attendance"
	"restopay/internal/platform/metrics"
)

const alertEventType = "attendance.issue.detected"

// IssueAlert is the message body published for every alerting issue.
type IssueAlert struct {
	EventType  string              `json:"eventType"`
	RunID      string              `json:"runId,omitempty"`
	PeriodFrom *time.Time          `json:"periodFrom,omitempty"`
	PeriodTo   *time.Time          `json:"periodTo,omitempty"`
	EmployeeID string              `json:"employeeId,omitempty"`
	Severity   attendance.Severity `json:"severity"`
	Code       string              `json:"code"`
	Message    string              `json:"message"`
	Meta       map[string]any      `json:"meta,omitempty"`
	DetectedAt time.Time           `json:"detectedAt"`
}

// AlertPublisher sends the issues of a finished run at or above a severity to
// a topic, keyed by employee so one employee's alerts stay ordered.
type AlertPublisher struct {
	writer      MessageWriter
	topic       string
	minSeverity attendance.Severity
	now         func() time.Time
}

func NewAlertPublisher(writer MessageWriter, topic string, minSeverity attendance.Severity) *AlertPublisher {
	if minSeverity == "" {
		minSeverity = attendance.SeverityError
	}
	return &AlertPublisher{writer: writer, topic: topic, minSeverity: minSeverity, now: time.Now}
}

func (p *AlertPublisher) Observe(ctx context.Context, res attendance.Result) error {
	msgs, err := p.messages(res)
	if err != nil {
		return err
	}
	if len(msgs) == 0 {
		return nil
	}
	if err := p.writer.WriteMessages(ctx, p.topic, msgs...); err != nil {
		metrics.AlertsPublished.WithLabelValues("failed").Add(float64(len(msgs)))
		return fmt.Errorf("publish %d alerts to %s: %w", len(msgs), p.topic, err)
	}
	metrics.AlertsPublished.WithLabelValues("delivered").Add(float64(len(msgs)))
	return nil
}

func (p *AlertPublisher) messages(res attendance.Result) ([]kafka.Message, error) {
	detectedAt := p.now().UTC()
	var msgs []kafka.Message
	for _, issue := range res.Validation.Issues() {
		if !p.alerts(issue.Severity) {
			continue
		}
		alert := IssueAlert{
			EventType:  alertEventType,
			RunID:      res.RunID,
			EmployeeID: issue.EmployeeID,
			Severity:   issue.Severity,
			Code:       issue.Code,
			Message:    issue.Message,
			Meta:       issue.Meta,
			DetectedAt: detectedAt,
		}
		if res.Period != nil {
			from, to := res.Period.From, res.Period.To
			alert.PeriodFrom, alert.PeriodTo = &from, &to
		}
		body, err := json.Marshal(alert)
		if err != nil {
			return nil, fmt.Errorf("marshal alert %s: %w", issue.Code, err)
		}
		msgs = append(msgs, kafka.Message{
			Key:   []byte(issue.EmployeeID),
			Value: body,
			Time:  detectedAt,
			Headers: []kafka.Header{
				{Key: "event-type", Value: []byte(alertEventType)},
				{Key: "severity", Value: []byte(issue.Severity)},
			},
		})
	}
	return msgs, nil
}

func (p *AlertPublisher) alerts(s attendance.Severity) bool {
	if p.minSeverity == attendance.SeverityWarning {
		return true
	}
	return s == attendance.SeverityError
}
