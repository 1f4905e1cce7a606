package server

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"olimpia/internal/domain"
	"olimpia/internal/engine"
)

type eventPath struct {
	ModalityID string `path:"modality_id"`
	EventID    string `path:"event_id"`
}

func registerHeats(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "list-heats",
		Method:      http.MethodGet,
		Path:        "/modalities/{modality_id}/events/{event_id}/heats",
		Summary:     "List heats, creating heat 1 on first load",
	}, func(ctx context.Context, input *eventPath) (*struct {
		Body engine.HeatList `json:"body"`
	}, error) {
		list, err := e.ListHeats(ctx, input.ModalityID, input.EventID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body engine.HeatList `json:"body"`
		}{Body: list}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "create-heat",
		Method:        http.MethodPost,
		Path:          "/modalities/{modality_id}/events/{event_id}/heats",
		Summary:       "Create the next regular heat",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusForbidden, http.StatusConflict},
	}, func(ctx context.Context, input *eventPath) (*struct {
		Body domain.Heat `json:"body"`
	}, error) {
		actor, authErr := judgeIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		h, err := e.CreateHeat(ctx, input.ModalityID, input.EventID, actor)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Heat `json:"body"`
		}{Body: h}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "create-final-heat",
		Method:      http.MethodPost,
		Path:        "/modalities/{modality_id}/events/{event_id}/heats/final",
		Summary:     "Create the final heat, or return it when it exists",
		Errors:      []int{http.StatusForbidden, http.StatusConflict},
	}, func(ctx context.Context, input *eventPath) (*struct {
		Body domain.Heat `json:"body"`
	}, error) {
		actor, authErr := judgeIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		h, err := e.CreateFinalHeat(ctx, input.ModalityID, input.EventID, actor)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Heat `json:"body"`
		}{Body: h}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "clear-heats",
		Method:      http.MethodDelete,
		Path:        "/modalities/{modality_id}/events/{event_id}/heats",
		Summary:     "Clear the heat configuration",
		Errors:      []int{http.StatusForbidden},
	}, func(ctx context.Context, input *eventPath) (*struct {
		Body ClearHeatsResponse `json:"body"`
	}, error) {
		actor, authErr := judgeIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		n, err := e.ClearHeats(ctx, input.ModalityID, input.EventID, actor)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body ClearHeatsResponse `json:"body"`
		}{Body: ClearHeatsResponse{ScoresAffected: n}}, nil
	})
}
