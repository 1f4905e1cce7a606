package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"olimpia/internal/db"
)

// Permissions checked by the engine.
const (
	PermRuleWrite      = "rule.write"
	PermScoreSubmit    = "score.submit"
	PermHeatManage     = "heat.manage"
	PermPlacementWrite = "placement.write"
	PermCurrentWrite   = "current.write"
	PermRoleManage     = "role.manage"
	PermAuditRead      = "audit.read"
)

// AllPermissions lists every permission known to the engine.
var AllPermissions = []string{
	PermRuleWrite, PermScoreSubmit, PermHeatManage, PermPlacementWrite,
	PermCurrentWrite, PermRoleManage, PermAuditRead,
}

// ForbiddenError indicates missing permission.
type ForbiddenError struct {
	Permission string
}

func (e ForbiddenError) Error() string {
	return fmt.Sprintf("permission %s required", e.Permission)
}

// Service provides RBAC helpers backed by SQL.
type Service struct {
	DB     *sql.DB
	Driver string
}

func (s Service) q(query string) string { return db.Rebind(s.Driver, query) }

func (s Service) EnsureJudge(ctx context.Context, tx *sql.Tx, judgeID string) error {
	if judgeID == "" {
		return errors.New("judge_id required")
	}
	now := time.Now().UTC().Format(time.RFC3339)
	_, err := tx.ExecContext(ctx, s.q(`INSERT INTO judges(id, created_at) VALUES (?,?) ON CONFLICT(id) DO NOTHING`), judgeID, now)
	return err
}

func (s Service) JudgeHasPermission(ctx context.Context, tx *sql.Tx, judgeID, perm string) (bool, error) {
	row := tx.QueryRowContext(ctx, s.q(`
SELECT 1 FROM judge_roles jr
JOIN role_permissions rp ON rp.role_id=jr.role_id
WHERE jr.judge_id=? AND rp.permission_id=? LIMIT 1`), judgeID, perm)
	var n int
	err := row.Scan(&n)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	return err == nil, err
}

// Require returns ForbiddenError when the judge lacks perm.
func (s Service) Require(ctx context.Context, tx *sql.Tx, judgeID, perm string) error {
	ok, err := s.JudgeHasPermission(ctx, tx, judgeID, perm)
	if err != nil {
		return err
	}
	if !ok {
		return ForbiddenError{Permission: perm}
	}
	return nil
}

func (s Service) JudgeRoles(ctx context.Context, tx *sql.Tx, judgeID string) ([]string, error) {
	return s.list(ctx, tx, `SELECT role_id FROM judge_roles WHERE judge_id=? ORDER BY role_id`, judgeID)
}

func (s Service) JudgePermissions(ctx context.Context, tx *sql.Tx, judgeID string) ([]string, error) {
	return s.list(ctx, tx, `
SELECT DISTINCT rp.permission_id
FROM judge_roles jr
JOIN role_permissions rp ON rp.role_id=jr.role_id
WHERE jr.judge_id=? ORDER BY rp.permission_id`, judgeID)
}

func (s Service) list(ctx context.Context, tx *sql.Tx, query string, args ...any) ([]string, error) {
	rows, err := tx.QueryContext(ctx, s.q(query), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}
