package repo

import (
	"context"
	"database/sql"
	"strings"

	"olimpia/internal/domain"
)

type AuditFilter struct {
	EventID    string
	Type       string
	EntityKind string
	EntityID   string
	// Cursor returns entries older than this id when positive.
	Cursor int64
	Limit  int
}

// ListAudit returns audit entries newest first.
func (r Repo) ListAudit(ctx context.Context, f AuditFilter) ([]domain.AuditEntry, error) {
	if f.Limit <= 0 {
		f.Limit = 50
	}
	clauses := []string{"1=1"}
	var args []any
	if f.EventID != "" {
		clauses = append(clauses, "event_id=?")
		args = append(args, f.EventID)
	}
	if f.Type != "" {
		clauses = append(clauses, "type=?")
		args = append(args, f.Type)
	}
	if f.EntityKind != "" {
		clauses = append(clauses, "entity_kind=?")
		args = append(args, f.EntityKind)
	}
	if f.EntityID != "" {
		clauses = append(clauses, "entity_id=?")
		args = append(args, f.EntityID)
	}
	if f.Cursor > 0 {
		clauses = append(clauses, "id<?")
		args = append(args, f.Cursor)
	}
	query := `SELECT id,ts,type,event_id,entity_kind,entity_id,actor_id,payload_json FROM audit_log WHERE ` +
		strings.Join(clauses, " AND ") + ` ORDER BY id DESC LIMIT ?`
	args = append(args, f.Limit)
	rows, err := r.query(ctx, nil, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.AuditEntry
	for rows.Next() {
		var e domain.AuditEntry
		var eventID, entityID sql.NullString
		if err := rows.Scan(&e.ID, &e.TS, &e.Type, &eventID, &e.EntityKind, &entityID, &e.ActorID, &e.Payload); err != nil {
			return nil, err
		}
		e.EventID, e.EntityID = eventID.String, entityID.String
		res = append(res, e)
	}
	return res, rows.Err()
}
