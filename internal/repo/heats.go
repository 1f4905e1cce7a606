package repo

import (
	"context"
	"database/sql"

	"olimpia/internal/domain"
)

func (r Repo) ListHeats(ctx context.Context, modalityID, eventID string) ([]domain.Heat, error) {
	rows, err := r.query(ctx, nil, `SELECT modality_id,event_id,number,is_final,created_at FROM heats WHERE modality_id=? AND event_id=? ORDER BY number`, modalityID, eventID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Heat
	for rows.Next() {
		var h domain.Heat
		var final int
		if err := rows.Scan(&h.ModalityID, &h.EventID, &h.Number, &final, &h.CreatedAt); err != nil {
			return nil, err
		}
		h.IsFinal = final != 0
		res = append(res, h)
	}
	return res, rows.Err()
}

// InsertHeat reserves a heat number. It reports false when the number exists.
func (r Repo) InsertHeat(ctx context.Context, h domain.Heat) (bool, error) {
	return r.InsertHeatTx(ctx, nil, h)
}

func (r Repo) InsertHeatTx(ctx context.Context, tx *sql.Tx, h domain.Heat) (bool, error) {
	if h.CreatedAt == "" {
		h.CreatedAt = now()
	}
	res, err := r.exec(ctx, tx, `INSERT INTO heats(modality_id,event_id,number,is_final,created_at) VALUES (?,?,?,?,?)
ON CONFLICT(modality_id,event_id,number) DO NOTHING`, h.ModalityID, h.EventID, h.Number, boolInt(h.IsFinal), h.CreatedAt)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// HeatCounts counts, per heat number, the athletes holding a score row and
// those whose value is set.
func (r Repo) HeatCounts(ctx context.Context, modalityID, eventID string) (map[int]domain.HeatCounts, error) {
	rows, err := r.query(ctx, nil, `SELECT heat_number, COUNT(DISTINCT athlete_id), COUNT(DISTINCT CASE WHEN value IS NOT NULL THEN athlete_id END)
FROM scores WHERE modality_id=? AND event_id=? AND heat_number IS NOT NULL GROUP BY heat_number`, modalityID, eventID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := map[int]domain.HeatCounts{}
	for rows.Next() {
		var number int
		var c domain.HeatCounts
		if err := rows.Scan(&number, &c.Athletes, &c.Scored); err != nil {
			return nil, err
		}
		res[number] = c
	}
	return res, rows.Err()
}

// ClearHeats removes the heat configuration of a modality inside an event.
// Lane assignments without a value are deleted; for every athlete the most
// recent valued heat score becomes the heat-less score unless one already
// exists, and the rest are deleted. It returns the number of affected scores.
func (r Repo) ClearHeats(ctx context.Context, tx *sql.Tx, modalityID, eventID string) (int, error) {
	if _, err := r.exec(ctx, tx, `DELETE FROM heats WHERE modality_id=? AND event_id=?`, modalityID, eventID); err != nil {
		return 0, err
	}
	res, err := r.exec(ctx, tx, `DELETE FROM scores WHERE modality_id=? AND event_id=? AND heat_number IS NOT NULL AND value IS NULL`, modalityID, eventID)
	if err != nil {
		return 0, err
	}
	removed, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	affected := int(removed)

	rows, err := r.query(ctx, tx, `SELECT s.id, s.athlete_id, EXISTS(SELECT 1 FROM scores g WHERE g.modality_id=s.modality_id AND g.event_id=s.event_id AND g.athlete_id=s.athlete_id AND g.heat_key=0)
FROM scores s WHERE s.modality_id=? AND s.event_id=? AND s.heat_number IS NOT NULL ORDER BY s.athlete_id, s.updated_at DESC, s.id DESC`, modalityID, eventID)
	if err != nil {
		return affected, err
	}
	var keep, drop []string
	seen := map[string]bool{}
	for rows.Next() {
		var id, athlete string
		var hasGlobal bool
		if err := rows.Scan(&id, &athlete, &hasGlobal); err != nil {
			rows.Close()
			return affected, err
		}
		if !seen[athlete] && !hasGlobal {
			keep = append(keep, id)
		} else {
			drop = append(drop, id)
		}
		seen[athlete] = true
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return affected, err
	}
	if err := rows.Close(); err != nil {
		return affected, err
	}
	for _, id := range drop {
		if _, err := r.exec(ctx, tx, `DELETE FROM scores WHERE id=?`, id); err != nil {
			return affected, err
		}
		affected++
	}
	ts := now()
	for _, id := range keep {
		if _, err := r.exec(ctx, tx, `UPDATE scores SET heat_number=NULL, heat_key=0, lane=NULL, updated_at=? WHERE id=?`, ts, id); err != nil {
			return affected, err
		}
		affected++
	}
	return affected, nil
}
