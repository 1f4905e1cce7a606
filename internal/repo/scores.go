package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"olimpia/internal/domain"
)

const scoreColumns = `id,event_id,modality_id,athlete_id,judge_id,value,heat_number,lane,final_position,medal,COALESCE(notes,''),COALESCE(metadata_json,''),created_at,updated_at`

// heatKey folds a missing heat into 0 so the uniqueness constraint covers
// heat-less scores too.
func heatKey(heat *int) int {
	if heat == nil {
		return 0
	}
	return *heat
}

// UpsertScore inserts or updates the score of an athlete in a heat. Placement
// columns are kept on update.
func (r Repo) UpsertScore(ctx context.Context, tx *sql.Tx, s domain.Score) error {
	meta, err := encodeMetadata(s.Metadata)
	if err != nil {
		return err
	}
	_, err = r.exec(ctx, tx, `INSERT INTO scores(id,event_id,modality_id,athlete_id,judge_id,value,heat_number,heat_key,lane,notes,metadata_json,created_at,updated_at)
VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?)
ON CONFLICT(event_id,modality_id,athlete_id,heat_key) DO UPDATE SET judge_id=excluded.judge_id, value=excluded.value, lane=COALESCE(excluded.lane, scores.lane),
notes=excluded.notes, metadata_json=excluded.metadata_json, updated_at=excluded.updated_at`,
		s.ID, s.EventID, s.ModalityID, s.AthleteID, s.JudgeID, nullableFloatPtr(s.Value), nullableIntPtr(s.HeatNumber), heatKey(s.HeatNumber),
		nullableIntPtr(s.Lane), nullable(s.Notes), meta, s.CreatedAt, s.UpdatedAt)
	return err
}

// AssignLane places an athlete in a heat lane without touching any value.
func (r Repo) AssignLane(ctx context.Context, tx *sql.Tx, s domain.Score) error {
	if s.HeatNumber == nil {
		return errors.New("heat_number required for lane assignment")
	}
	_, err := r.exec(ctx, tx, `INSERT INTO scores(id,event_id,modality_id,athlete_id,judge_id,heat_number,heat_key,lane,created_at,updated_at)
VALUES (?,?,?,?,?,?,?,?,?,?)
ON CONFLICT(event_id,modality_id,athlete_id,heat_key) DO UPDATE SET lane=excluded.lane, updated_at=excluded.updated_at`,
		s.ID, s.EventID, s.ModalityID, s.AthleteID, s.JudgeID, *s.HeatNumber, *s.HeatNumber, nullableIntPtr(s.Lane), s.CreatedAt, s.UpdatedAt)
	return err
}

// SetPlacement records final position and medal, creating the row if needed.
func (r Repo) SetPlacement(ctx context.Context, tx *sql.Tx, s domain.Score) error {
	_, err := r.exec(ctx, tx, `INSERT INTO scores(id,event_id,modality_id,athlete_id,judge_id,heat_number,heat_key,final_position,medal,created_at,updated_at)
VALUES (?,?,?,?,?,?,?,?,?,?,?)
ON CONFLICT(event_id,modality_id,athlete_id,heat_key) DO UPDATE SET final_position=excluded.final_position, medal=excluded.medal, updated_at=excluded.updated_at`,
		s.ID, s.EventID, s.ModalityID, s.AthleteID, s.JudgeID, nullableIntPtr(s.HeatNumber), heatKey(s.HeatNumber),
		nullableIntPtr(s.FinalPosition), nullableStringPtr(s.Medal), s.CreatedAt, s.UpdatedAt)
	return err
}

// GetScore looks a score up by its natural key.
func (r Repo) GetScore(ctx context.Context, tx *sql.Tx, eventID, modalityID, athleteID string, heat *int) (domain.Score, error) {
	row := r.queryRow(ctx, tx, `SELECT `+scoreColumns+` FROM scores WHERE event_id=? AND modality_id=? AND athlete_id=? AND heat_key=?`,
		eventID, modalityID, athleteID, heatKey(heat))
	return scanScore(row)
}

type ScoreFilter struct {
	ModalityID string
	EventID    string
	AthleteID  string
	// Heat restricts to one heat number.
	Heat *int
	// HasHeat restricts to scores with (true) or without (false) a heat.
	HasHeat    *bool
	OnlyScored bool
}

func (r Repo) ListScores(ctx context.Context, f ScoreFilter) ([]domain.Score, error) {
	clauses := []string{"modality_id=?", "event_id=?"}
	args := []any{f.ModalityID, f.EventID}
	if f.AthleteID != "" {
		clauses = append(clauses, "athlete_id=?")
		args = append(args, f.AthleteID)
	}
	if f.Heat != nil {
		clauses = append(clauses, "heat_number=?")
		args = append(args, *f.Heat)
	}
	if f.HasHeat != nil {
		if *f.HasHeat {
			clauses = append(clauses, "heat_number IS NOT NULL")
		} else {
			clauses = append(clauses, "heat_number IS NULL")
		}
	}
	if f.OnlyScored {
		clauses = append(clauses, "value IS NOT NULL")
	}
	query := `SELECT ` + scoreColumns + ` FROM scores WHERE ` + strings.Join(clauses, " AND ") + ` ORDER BY heat_key, lane, athlete_id`
	rows, err := r.query(ctx, nil, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Score
	for rows.Next() {
		s, err := scanScore(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, s)
	}
	return res, rows.Err()
}

func scanScore(row interface{ Scan(...any) error }) (domain.Score, error) {
	var s domain.Score
	var value sql.NullFloat64
	var heat, lane, position sql.NullInt64
	var medal sql.NullString
	var meta string
	err := row.Scan(&s.ID, &s.EventID, &s.ModalityID, &s.AthleteID, &s.JudgeID, &value, &heat, &lane, &position, &medal, &s.Notes, &meta, &s.CreatedAt, &s.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return s, ErrNotFound
	}
	if err != nil {
		return s, err
	}
	if value.Valid {
		v := value.Float64
		s.Value = &v
	}
	s.HeatNumber = intPtr(heat)
	s.Lane = intPtr(lane)
	s.FinalPosition = intPtr(position)
	if medal.Valid {
		m := medal.String
		s.Medal = &m
	}
	if meta != "" {
		if err := json.Unmarshal([]byte(meta), &s.Metadata); err != nil {
			return s, fmt.Errorf("decode metadata of score %s: %w", s.ID, err)
		}
	}
	return s, nil
}

func encodeMetadata(meta map[string]any) (any, error) {
	if len(meta) == 0 {
		return nil, nil
	}
	data, err := json.Marshal(meta)
	if err != nil {
		return nil, fmt.Errorf("marshal metadata: %w", err)
	}
	return string(data), nil
}
