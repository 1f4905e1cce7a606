// Package events appends entries to the audit log inside the caller's
// transaction, so an audit row exists exactly when the change commits.
package events

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"olimpia/internal/db"
)

// Audit entry types.
const (
	RuleSet          = "rule.set"
	RuleDeleted      = "rule.deleted"
	HeatCreated      = "heat.created"
	HeatsCleared     = "heats.cleared"
	ScoreSubmitted   = "score.submitted"
	LaneAssigned     = "lane.assigned"
	PlacementSet     = "placement.set"
	CurrentEventSet  = "current_event.set"
	RoleGranted      = "role.granted"
	RoleRevoked      = "role.revoked"
	DeviceKeyCreated = "device_key.created"
)

type Writer struct {
	DB     *sql.DB
	Driver string
	Now    func() time.Time
}

type EventPayload map[string]any

// Append writes one audit entry. eventID is the sport event the change
// belongs to and may be empty for global changes such as rules or roles.
func (w Writer) Append(ctx context.Context, tx *sql.Tx, evtType, eventID, entityKind, entityID, actorID string, payload EventPayload) error {
	if w.Now == nil {
		w.Now = time.Now
	}
	ts := w.Now().UTC().Format(time.RFC3339)
	if payload == nil {
		payload = EventPayload{}
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal audit payload: %w", err)
	}
	_, err = tx.ExecContext(ctx, db.Rebind(w.Driver, `INSERT INTO audit_log(ts,type,event_id,entity_kind,entity_id,actor_id,payload_json) VALUES (?,?,?,?,?,?,?)`),
		ts, evtType, nullable(eventID), entityKind, nullable(entityID), actorID, string(data))
	return err
}

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}
