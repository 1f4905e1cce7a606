package repo

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"strings"

	"olimpia/internal/domain"
)

// HashDeviceKey returns a stable SHA-256 hex digest for a judge device key.
func HashDeviceKey(key string) string {
	sum := sha256.Sum256([]byte(strings.TrimSpace(key)))
	return hex.EncodeToString(sum[:])
}

// InsertDeviceKey stores a hashed key. KeyHash must already be hashed.
func (r Repo) InsertDeviceKey(ctx context.Context, tx *sql.Tx, key domain.DeviceKey) error {
	switch {
	case key.ID == "":
		return errors.New("id required")
	case key.JudgeID == "":
		return errors.New("judge_id required")
	case key.KeyHash == "":
		return errors.New("key_hash required")
	}
	if key.CreatedAt == "" {
		key.CreatedAt = now()
	}
	_, err := r.exec(ctx, tx, `INSERT INTO device_keys(id, judge_id, name, key_hash, created_at) VALUES (?,?,?,?,?)`,
		key.ID, key.JudgeID, nullable(key.Name), key.KeyHash, key.CreatedAt)
	return err
}

func (r Repo) GetDeviceKeyByHash(ctx context.Context, hash string) (domain.DeviceKey, error) {
	var key domain.DeviceKey
	err := r.queryRow(ctx, nil, `SELECT id, judge_id, COALESCE(name,''), key_hash, created_at FROM device_keys WHERE key_hash=?`, hash).
		Scan(&key.ID, &key.JudgeID, &key.Name, &key.KeyHash, &key.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.DeviceKey{}, ErrNotFound
	}
	return key, err
}

// ListDeviceKeys returns keys, optionally for one judge.
func (r Repo) ListDeviceKeys(ctx context.Context, judgeID string) ([]domain.DeviceKey, error) {
	query := `SELECT id, judge_id, COALESCE(name,''), key_hash, created_at FROM device_keys`
	var args []any
	if judgeID != "" {
		query += ` WHERE judge_id=?`
		args = append(args, judgeID)
	}
	query += ` ORDER BY created_at DESC, id`
	rows, err := r.query(ctx, nil, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var keys []domain.DeviceKey
	for rows.Next() {
		var key domain.DeviceKey
		if err := rows.Scan(&key.ID, &key.JudgeID, &key.Name, &key.KeyHash, &key.CreatedAt); err != nil {
			return nil, err
		}
		keys = append(keys, key)
	}
	return keys, rows.Err()
}

func (r Repo) DeleteDeviceKey(ctx context.Context, tx *sql.Tx, id string) error {
	if strings.TrimSpace(id) == "" {
		return errors.New("id required")
	}
	res, err := r.exec(ctx, tx, `DELETE FROM device_keys WHERE id=?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
