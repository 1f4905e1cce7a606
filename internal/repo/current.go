package repo

import (
	"context"
	"database/sql"
	"errors"

	"olimpia/internal/domain"
)

func (r Repo) GetCurrentEvent(ctx context.Context) (domain.CurrentEvent, error) {
	var ce domain.CurrentEvent
	var by sql.NullString
	err := r.queryRow(ctx, nil, `SELECT event_id,updated_by,updated_at FROM current_event WHERE id=1`).Scan(&ce.EventID, &by, &ce.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return ce, ErrNotFound
	}
	ce.UpdatedBy = by.String
	return ce, err
}

func (r Repo) SetCurrentEvent(ctx context.Context, tx *sql.Tx, ce domain.CurrentEvent) error {
	_, err := r.exec(ctx, tx, `INSERT INTO current_event(id,event_id,updated_by,updated_at) VALUES (1,?,?,?)
ON CONFLICT(id) DO UPDATE SET event_id=excluded.event_id, updated_by=excluded.updated_by, updated_at=excluded.updated_at`,
		ce.EventID, nullable(ce.UpdatedBy), ce.UpdatedAt)
	return err
}
