package repo

import (
	"context"
	"database/sql"
)

func (r Repo) EnsureJudge(ctx context.Context, tx *sql.Tx, judgeID string, now string) error {
	_, err := r.exec(ctx, tx, `INSERT INTO judges(id, created_at) VALUES (?,?) ON CONFLICT(id) DO NOTHING`, judgeID, now)
	return err
}

func (r Repo) InsertRole(ctx context.Context, tx *sql.Tx, id, desc string) error {
	_, err := r.exec(ctx, tx, `INSERT INTO roles(id, description) VALUES (?,?) ON CONFLICT(id) DO NOTHING`, id, nullable(desc))
	return err
}

func (r Repo) InsertPermission(ctx context.Context, tx *sql.Tx, id, desc string) error {
	_, err := r.exec(ctx, tx, `INSERT INTO permissions(id, description) VALUES (?,?) ON CONFLICT(id) DO NOTHING`, id, nullable(desc))
	return err
}

func (r Repo) AddRolePermission(ctx context.Context, tx *sql.Tx, roleID, permID string) error {
	_, err := r.exec(ctx, tx, `INSERT INTO role_permissions(role_id, permission_id) VALUES (?,?) ON CONFLICT(role_id, permission_id) DO NOTHING`, roleID, permID)
	return err
}

func (r Repo) AssignRole(ctx context.Context, tx *sql.Tx, judgeID, roleID string) error {
	_, err := r.exec(ctx, tx, `INSERT INTO judge_roles(judge_id, role_id) VALUES (?,?) ON CONFLICT(judge_id, role_id) DO NOTHING`, judgeID, roleID)
	return err
}

func (r Repo) RevokeRole(ctx context.Context, tx *sql.Tx, judgeID, roleID string) error {
	_, err := r.exec(ctx, tx, `DELETE FROM judge_roles WHERE judge_id=? AND role_id=?`, judgeID, roleID)
	return err
}

// RoleExists reports whether a role has been seeded.
func (r Repo) RoleExists(ctx context.Context, tx *sql.Tx, roleID string) (bool, error) {
	var n int
	if err := r.queryRow(ctx, tx, `SELECT COUNT(1) FROM roles WHERE id=?`, roleID).Scan(&n); err != nil {
		return false, err
	}
	return n > 0, nil
}

// CountJudgeRoles counts all role grants, used to detect a fresh workspace.
func (r Repo) CountJudgeRoles(ctx context.Context, tx *sql.Tx) (int, error) {
	var n int
	err := r.queryRow(ctx, tx, `SELECT COUNT(1) FROM judge_roles`).Scan(&n)
	return n, err
}

func (r Repo) JudgeRoles(ctx context.Context, tx *sql.Tx, judgeID string) ([]string, error) {
	return r.listStrings(ctx, tx, `SELECT role_id FROM judge_roles WHERE judge_id=? ORDER BY role_id`, judgeID)
}

func (r Repo) RolePermissions(ctx context.Context, tx *sql.Tx, roleID string) ([]string, error) {
	return r.listStrings(ctx, tx, `SELECT permission_id FROM role_permissions WHERE role_id=? ORDER BY permission_id`, roleID)
}

// JudgePermissions resolves the permissions granted through all roles.
func (r Repo) JudgePermissions(ctx context.Context, tx *sql.Tx, judgeID string) ([]string, error) {
	return r.listStrings(ctx, tx, `SELECT DISTINCT rp.permission_id FROM judge_roles jr JOIN role_permissions rp ON rp.role_id=jr.role_id
WHERE jr.judge_id=? ORDER BY rp.permission_id`, judgeID)
}

func (r Repo) listStrings(ctx context.Context, tx *sql.Tx, query string, args ...any) ([]string, error) {
	rows, err := r.query(ctx, tx, query, args...)
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
