package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"olimpia/internal/domain"
)

// UpsertRule stores the single rule of a modality, replacing any previous one.
func (r Repo) UpsertRule(ctx context.Context, tx *sql.Tx, rec domain.RuleRecord) error {
	params := rec.Parameters
	if params == nil {
		params = map[string]any{}
	}
	payload, err := json.Marshal(params)
	if err != nil {
		return fmt.Errorf("marshal parameters: %w", err)
	}
	ts := rec.UpdatedAt
	if ts == "" {
		ts = now()
	}
	created := rec.CreatedAt
	if created == "" {
		created = ts
	}
	_, err = r.exec(ctx, tx, `INSERT INTO modality_rules(modality_id,rule_type,base_scoring,parameters_json,created_at,updated_at) VALUES (?,?,?,?,?,?)
ON CONFLICT(modality_id) DO UPDATE SET rule_type=excluded.rule_type, base_scoring=excluded.base_scoring, parameters_json=excluded.parameters_json, updated_at=excluded.updated_at`,
		rec.ModalityID, rec.RuleType, nullable(rec.BaseScoring), string(payload), created, ts)
	return err
}

func (r Repo) GetRule(ctx context.Context, modalityID string) (domain.RuleRecord, error) {
	return r.GetRuleTx(ctx, nil, modalityID)
}

func (r Repo) GetRuleTx(ctx context.Context, tx *sql.Tx, modalityID string) (domain.RuleRecord, error) {
	row := r.queryRow(ctx, tx, `SELECT modality_id,rule_type,COALESCE(base_scoring,''),parameters_json,created_at,updated_at FROM modality_rules WHERE modality_id=?`, modalityID)
	return scanRule(row)
}

func scanRule(row interface{ Scan(...any) error }) (domain.RuleRecord, error) {
	var rec domain.RuleRecord
	var payload string
	err := row.Scan(&rec.ModalityID, &rec.RuleType, &rec.BaseScoring, &payload, &rec.CreatedAt, &rec.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return rec, ErrNotFound
	}
	if err != nil {
		return rec, err
	}
	rec.Parameters = map[string]any{}
	if payload != "" {
		if err := json.Unmarshal([]byte(payload), &rec.Parameters); err != nil {
			return rec, fmt.Errorf("decode parameters of %s: %w", rec.ModalityID, err)
		}
	}
	return rec, nil
}

func (r Repo) ListRules(ctx context.Context) ([]domain.RuleRecord, error) {
	rows, err := r.query(ctx, nil, `SELECT modality_id,rule_type,COALESCE(base_scoring,''),parameters_json,created_at,updated_at FROM modality_rules ORDER BY modality_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.RuleRecord
	for rows.Next() {
		rec, err := scanRule(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, rec)
	}
	return res, rows.Err()
}

func (r Repo) DeleteRule(ctx context.Context, tx *sql.Tx, modalityID string) error {
	res, err := r.exec(ctx, tx, `DELETE FROM modality_rules WHERE modality_id=?`, modalityID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
