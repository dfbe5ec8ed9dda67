package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"restopay/internal/platform/querier"
)

const (
	ActionRunCreated          = "reconciliation_run.created"
	ActionPayrollHoursUpdated = "payroll_hours.updated"
)

const (
	EntityRun          = "reconciliation_run"
	EntityPayrollHours = "payroll_hours"
)

type Event struct {
	ID         string          `json:"id"`
	ActorID    string          `json:"actorId"`
	Action     string          `json:"action"`
	EntityType string          `json:"entityType"`
	EntityID   string          `json:"entityId"`
	RequestID  string          `json:"requestId"`
	IP         string          `json:"ip"`
	CreatedAt  time.Time       `json:"createdAt"`
	Details    json.RawMessage `json:"details,omitempty"`
}

// Entry is what a caller records; ID and CreatedAt are assigned by the store.
type Entry struct {
	ActorID    string
	Action     string
	EntityType string
	EntityID   string
	RequestID  string
	IP         string
	Details    any
}

type Filter struct {
	Action     string
	EntityType string
	ActorID    string
}

type Service struct {
	DB querier.Querier
}

func New(db querier.Querier) *Service {
	return &Service{DB: db}
}

func (s *Service) Record(ctx context.Context, e Entry) error {
	var details []byte
	if e.Details != nil {
		payload, err := json.Marshal(e.Details)
		if err != nil {
			return err
		}
		details = payload
	}
	_, err := s.DB.Exec(ctx, `
    INSERT INTO audit_events (actor_id, action, entity_type, entity_id, details_json, request_id, ip)
    VALUES ($1,$2,$3,$4,$5,$6,$7)
  `, e.ActorID, e.Action, e.EntityType, e.EntityID, details, e.RequestID, e.IP)
	return err
}

func (s *Service) Count(ctx context.Context, filter Filter) (int, error) {
	query, args := buildQuery("SELECT COUNT(1)", filter)
	var total int
	if err := s.DB.QueryRow(ctx, query, args...).Scan(&total); err != nil {
		return 0, err
	}
	return total, nil
}

// List returns matching events newest first. limit <= 0 returns all of them.
func (s *Service) List(ctx context.Context, filter Filter, includeDetails bool, limit, offset int) ([]Event, error) {
	cols := "id::text, actor_id, action, entity_type, entity_id, request_id, ip, created_at"
	if includeDetails {
		cols += ", details_json"
	}
	query, args := buildQuery("SELECT "+cols, filter)
	query += " ORDER BY created_at DESC, id DESC"
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d OFFSET $%d", len(args)+1, len(args)+2)
		args = append(args, limit, offset)
	}

	rows, err := s.DB.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Event{}
	for rows.Next() {
		var (
			evt     Event
			details []byte
		)
		dest := []any{&evt.ID, &evt.ActorID, &evt.Action, &evt.EntityType, &evt.EntityID, &evt.RequestID, &evt.IP, &evt.CreatedAt}
		if includeDetails {
			dest = append(dest, &details)
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, err
		}
		if len(details) > 0 {
			evt.Details = json.RawMessage(details)
		}
		out = append(out, evt)
	}
	return out, rows.Err()
}

func buildQuery(prefix string, filter Filter) (string, []any) {
	query := prefix + " FROM audit_events WHERE true"
	var args []any
	if filter.Action != "" {
		args = append(args, filter.Action)
		query += fmt.Sprintf(" AND action = $%d", len(args))
	}
	if filter.EntityType != "" {
		args = append(args, filter.EntityType)
		query += fmt.Sprintf(" AND entity_type = $%d", len(args))
	}
	if filter.ActorID != "" {
		args = append(args, filter.ActorID)
		query += fmt.Sprintf(" AND actor_id = $%d", len(args))
	}
	return query, args
}
