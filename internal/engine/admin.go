package engine

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"

	"olimpia/internal/config"
	"olimpia/internal/domain"
	"olimpia/internal/engine/auth"
	"olimpia/internal/events"
	"olimpia/internal/repo"
)

// SetCurrentEvent moves the "current event" pointer and notifies subscribers.
func (e Engine) SetCurrentEvent(ctx context.Context, eventID, actorID string) (domain.CurrentEvent, error) {
	eventID = strings.TrimSpace(eventID)
	if eventID == "" {
		return domain.CurrentEvent{}, errors.New("event_id is required")
	}
	ce := domain.CurrentEvent{EventID: eventID, UpdatedBy: actorID, UpdatedAt: e.stamp()}
	err := e.write(ctx, actorID, auth.PermCurrentWrite, func(tx *sql.Tx) error {
		if err := e.Repo.SetCurrentEvent(ctx, tx, ce); err != nil {
			return fmt.Errorf("set current event: %w", err)
		}
		return e.Events.Append(ctx, tx, events.CurrentEventSet, eventID, "current_event", eventID, actorID, nil)
	})
	if err != nil {
		return domain.CurrentEvent{}, err
	}
	if e.Tracker != nil {
		e.Tracker.Publish(ctx, ce)
	}
	return ce, nil
}

// CurrentEvent reads the stored pointer; ErrNotFound when never set.
func (e Engine) CurrentEvent(ctx context.Context) (domain.CurrentEvent, error) {
	return e.Repo.GetCurrentEvent(ctx)
}

// PrimeTracker loads the stored pointer into the tracker so that new
// subscribers receive it immediately.
func (e Engine) PrimeTracker(ctx context.Context) error {
	if e.Tracker == nil {
		return nil
	}
	ce, err := e.Repo.GetCurrentEvent(ctx)
	if errors.Is(err, repo.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	e.Tracker.Notify(ce)
	return nil
}

func (e Engine) GrantRole(ctx context.Context, judgeID, roleID, actorID string) error {
	return e.changeRole(ctx, judgeID, roleID, actorID, true)
}

func (e Engine) RevokeRole(ctx context.Context, judgeID, roleID, actorID string) error {
	return e.changeRole(ctx, judgeID, roleID, actorID, false)
}

func (e Engine) changeRole(ctx context.Context, judgeID, roleID, actorID string, grant bool) error {
	if strings.TrimSpace(judgeID) == "" || strings.TrimSpace(roleID) == "" {
		return errors.New("judge_id and role_id are required")
	}
	return e.write(ctx, actorID, auth.PermRoleManage, func(tx *sql.Tx) error {
		ok, err := e.Repo.RoleExists(ctx, tx, roleID)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("role %s: %w", roleID, repo.ErrNotFound)
		}
		if err := e.Auth.EnsureJudge(ctx, tx, judgeID); err != nil {
			return err
		}
		evt := events.RoleGranted
		if grant {
			err = e.Repo.AssignRole(ctx, tx, judgeID, roleID)
		} else {
			evt = events.RoleRevoked
			err = e.Repo.RevokeRole(ctx, tx, judgeID, roleID)
		}
		if err != nil {
			return err
		}
		return e.Events.Append(ctx, tx, evt, "", "judge", judgeID, actorID, events.EventPayload{"role_id": roleID})
	})
}

// JudgeProfile lists a judge's roles and effective permissions.
func (e Engine) JudgeProfile(ctx context.Context, judgeID string) (domain.JudgeProfile, error) {
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.JudgeProfile{}, err
	}
	defer tx.Rollback()
	roles, err := e.Auth.JudgeRoles(ctx, tx, judgeID)
	if err != nil {
		return domain.JudgeProfile{}, err
	}
	perms, err := e.Auth.JudgePermissions(ctx, tx, judgeID)
	if err != nil {
		return domain.JudgeProfile{}, err
	}
	return domain.JudgeProfile{JudgeID: judgeID, Roles: roles, Permissions: perms}, nil
}

// Audit lists audit entries for actors holding audit.read.
func (e Engine) Audit(ctx context.Context, actorID string, f repo.AuditFilter) ([]domain.AuditEntry, error) {
	if err := e.authorize(ctx, actorID, auth.PermAuditRead); err != nil {
		return nil, err
	}
	return e.Repo.ListAudit(ctx, f)
}

// CreateDeviceKey issues a key a scoring device uses instead of a token. The
// plain key is returned once; only its hash is stored.
func (e Engine) CreateDeviceKey(ctx context.Context, judgeID, name, actorID string) (string, domain.DeviceKey, error) {
	if strings.TrimSpace(judgeID) == "" {
		return "", domain.DeviceKey{}, errors.New("judge_id is required")
	}
	raw := make([]byte, 24)
	if _, err := rand.Read(raw); err != nil {
		return "", domain.DeviceKey{}, err
	}
	plain := "olk_" + hex.EncodeToString(raw)
	key := domain.DeviceKey{
		ID: uuid.NewString(), JudgeID: judgeID, Name: name,
		KeyHash: repo.HashDeviceKey(plain), CreatedAt: e.stamp(),
	}
	perm := auth.PermRoleManage
	if judgeID == actorID {
		perm = auth.PermScoreSubmit
	}
	err := e.write(ctx, actorID, perm, func(tx *sql.Tx) error {
		if err := e.Auth.EnsureJudge(ctx, tx, judgeID); err != nil {
			return err
		}
		if err := e.Repo.InsertDeviceKey(ctx, tx, key); err != nil {
			return err
		}
		return e.Events.Append(ctx, tx, events.DeviceKeyCreated, "", "device_key", key.ID, actorID, events.EventPayload{"judge_id": judgeID, "name": name})
	})
	if err != nil {
		return "", domain.DeviceKey{}, err
	}
	return plain, key, nil
}

// JudgeForDeviceKey resolves the judge owning a plain device key.
func (e Engine) JudgeForDeviceKey(ctx context.Context, plain string) (string, error) {
	key, err := e.Repo.GetDeviceKeyByHash(ctx, repo.HashDeviceKey(plain))
	if err != nil {
		return "", err
	}
	return key.JudgeID, nil
}

// SeedRBAC stores the configured roles and permissions. When no judge holds a
// role yet, bootstrapJudge becomes admin so a fresh workspace is usable.
func (e Engine) SeedRBAC(ctx context.Context, roles map[string]config.RBACRole, bootstrapJudge string) error {
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	for _, p := range auth.AllPermissions {
		if err := e.Repo.InsertPermission(ctx, tx, p, ""); err != nil {
			return fmt.Errorf("seed permission %s: %w", p, err)
		}
	}
	ids := make([]string, 0, len(roles))
	for id := range roles {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		role := roles[id]
		if err := e.Repo.InsertRole(ctx, tx, id, role.Description); err != nil {
			return fmt.Errorf("seed role %s: %w", id, err)
		}
		for _, p := range role.Permissions {
			if err := e.Repo.AddRolePermission(ctx, tx, id, p); err != nil {
				return fmt.Errorf("seed role %s permission %s: %w", id, p, err)
			}
		}
	}
	if _, ok := roles["admin"]; ok && bootstrapJudge != "" {
		n, err := e.Repo.CountJudgeRoles(ctx, tx)
		if err != nil {
			return err
		}
		if n == 0 {
			if err := e.Repo.EnsureJudge(ctx, tx, bootstrapJudge, e.stamp()); err != nil {
				return err
			}
			if err := e.Repo.AssignRole(ctx, tx, bootstrapJudge, "admin"); err != nil {
				return fmt.Errorf("bootstrap admin: %w", err)
			}
			e.Logger.Info("granted admin to bootstrap judge", "judge_id", bootstrapJudge)
		}
	}
	return tx.Commit()
}
