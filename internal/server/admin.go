package server

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/danielgtaylor/huma/v2"

	"olimpia/internal/domain"
	"olimpia/internal/engine"
	"olimpia/internal/repo"
)

func registerCurrentEvent(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "get-current-event",
		Method:      http.MethodGet,
		Path:        "/current-event",
		Summary:     "Event currently being judged",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body domain.CurrentEvent `json:"body"`
	}, error) {
		if ev, ok := e.Tracker.Current(); ok {
			return &struct {
				Body domain.CurrentEvent `json:"body"`
			}{Body: ev}, nil
		}
		ev, err := e.CurrentEvent(ctx)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.CurrentEvent `json:"body"`
		}{Body: ev}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "set-current-event",
		Method:      http.MethodPut,
		Path:        "/current-event",
		Summary:     "Switch the event being judged",
		Errors:      []int{http.StatusBadRequest, http.StatusForbidden},
	}, func(ctx context.Context, input *struct {
		Body CurrentEventRequest `json:"body"`
	}) (*struct {
		Body domain.CurrentEvent `json:"body"`
	}, error) {
		actor, authErr := judgeIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		ev, err := e.SetCurrentEvent(ctx, input.Body.EventID, actor)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.CurrentEvent `json:"body"`
		}{Body: ev}, nil
	})
}

func registerAudit(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "list-audit",
		Method:      http.MethodGet,
		Path:        "/audit",
		Summary:     "List audit entries, newest first",
		Errors:      []int{http.StatusBadRequest, http.StatusForbidden},
	}, func(ctx context.Context, input *struct {
		EventID    string `query:"event_id"`
		Type       string `query:"type"`
		EntityKind string `query:"entity_kind" enum:"modality,heat,score,current_event,judge,device_key"`
		EntityID   string `query:"entity_id"`
		Limit      int    `query:"limit" default:"50"`
		Cursor     string `query:"cursor"`
	}) (*struct {
		Body paginatedAudit `json:"body"`
	}, error) {
		actor, authErr := judgeIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		limit := normalizeLimit(input.Limit)
		var cursorID int64
		if input.Cursor != "" {
			parsed, err := strconv.ParseInt(input.Cursor, 10, 64)
			if err != nil {
				return nil, newAPIError(http.StatusBadRequest, "bad_request", "invalid cursor", map[string]any{"cursor": input.Cursor})
			}
			cursorID = parsed
		}
		items, err := e.Audit(ctx, actor, repo.AuditFilter{
			EventID:    input.EventID,
			Type:       input.Type,
			EntityKind: input.EntityKind,
			EntityID:   input.EntityID,
			Cursor:     cursorID,
			Limit:      limit + 1,
		})
		if err != nil {
			return nil, handleError(err)
		}
		resp := paginatedAudit{Items: []domain.AuditEntry{}}
		if len(items) > limit {
			resp.NextCursor = fmt.Sprintf("%d", items[limit-1].ID)
			items = items[:limit]
		}
		resp.Items = append(resp.Items, items...)
		return &struct {
			Body paginatedAudit `json:"body"`
		}{Body: resp}, nil
	})
}

func registerRBAC(api huma.API, e engine.Engine) {
	for _, op := range []struct {
		id, path, summary string
		grant             bool
	}{
		{"grant-role", "/roles/grant", "Grant a role to a judge", true},
		{"revoke-role", "/roles/revoke", "Revoke a role from a judge", false},
	} {
		grant := op.grant
		huma.Register(api, huma.Operation{
			OperationID:   op.id,
			Method:        http.MethodPost,
			Path:          op.path,
			Summary:       op.summary,
			DefaultStatus: http.StatusNoContent,
			Errors:        []int{http.StatusBadRequest, http.StatusForbidden, http.StatusNotFound},
		}, func(ctx context.Context, input *struct {
			Body RoleRequest `json:"body"`
		}) (*struct{}, error) {
			actor, authErr := judgeIDFromContext(ctx)
			if authErr != nil {
				return nil, authErr
			}
			judge := strings.TrimSpace(input.Body.JudgeID)
			role := strings.TrimSpace(input.Body.RoleID)
			var err error
			if grant {
				err = e.GrantRole(ctx, judge, role, actor)
			} else {
				err = e.RevokeRole(ctx, judge, role, actor)
			}
			if err != nil {
				return nil, handleError(err)
			}
			return &struct{}{}, nil
		})
	}
}

func registerDeviceKeys(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-device-key",
		Method:        http.MethodPost,
		Path:          "/device-keys",
		Summary:       "Issue a device key for a scoring tablet",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusForbidden},
	}, func(ctx context.Context, input *struct {
		Body DeviceKeyRequest `json:"body"`
	}) (*struct {
		Body DeviceKeyResponse `json:"body"`
	}, error) {
		actor, authErr := judgeIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		judge := strings.TrimSpace(input.Body.JudgeID)
		if judge == "" {
			judge = actor
		}
		plain, key, err := e.CreateDeviceKey(ctx, judge, input.Body.Name, actor)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body DeviceKeyResponse `json:"body"`
		}{Body: DeviceKeyResponse{Key: plain, DeviceKey: key}}, nil
	})
}
