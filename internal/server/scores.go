package server

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"olimpia/internal/domain"
	"olimpia/internal/engine"
)

func registerScores(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "list-scores",
		Method:      http.MethodGet,
		Path:        "/modalities/{modality_id}/events/{event_id}/scores",
		Summary:     "List scores",
	}, func(ctx context.Context, input *struct {
		ModalityID string `path:"modality_id"`
		EventID    string `path:"event_id"`
		AthleteID  string `query:"athlete_id"`
		Heat       int    `query:"heat" minimum:"0"`
		HasHeat    string `query:"has_heat" enum:"true,false" doc:"Only scores with or without a heat"`
		Scored     bool   `query:"scored"`
	}) (*struct {
		Body paginatedScores `json:"body"`
	}, error) {
		q := engine.ScoreQuery{
			ModalityID: input.ModalityID,
			EventID:    input.EventID,
			AthleteID:  input.AthleteID,
			OnlyScored: input.Scored,
		}
		if input.Heat > 0 {
			heat := input.Heat
			q.Heat = &heat
		}
		if input.HasHeat != "" {
			has := input.HasHeat == "true"
			q.HasHeat = &has
		}
		items, err := e.ListScores(ctx, q)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body paginatedScores `json:"body"`
		}{Body: paginatedScores{Items: nonNilSlice(items)}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "submit-score",
		Method:      http.MethodPut,
		Path:        "/modalities/{modality_id}/events/{event_id}/scores",
		Summary:     "Normalize form values and upsert an athlete's score",
		Errors:      []int{http.StatusBadRequest, http.StatusForbidden, http.StatusConflict},
	}, func(ctx context.Context, input *struct {
		ModalityID string       `path:"modality_id"`
		EventID    string       `path:"event_id"`
		Body       ScoreRequest `json:"body"`
	}) (*struct {
		Body domain.Score `json:"body"`
	}, error) {
		actor, authErr := judgeIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		s, err := e.SubmitScore(ctx, engine.SubmitOptions{
			ModalityID: input.ModalityID,
			EventID:    input.EventID,
			AthleteID:  input.Body.AthleteID,
			ActorID:    actor,
			Values:     input.Body.Values,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Score `json:"body"`
		}{Body: s}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "assign-lane",
		Method:      http.MethodPost,
		Path:        "/modalities/{modality_id}/events/{event_id}/lanes",
		Summary:     "Assign an athlete to a heat and lane without a value",
		Errors:      []int{http.StatusBadRequest, http.StatusForbidden, http.StatusConflict},
	}, func(ctx context.Context, input *struct {
		ModalityID string      `path:"modality_id"`
		EventID    string      `path:"event_id"`
		Body       LaneRequest `json:"body"`
	}) (*struct {
		Body domain.Score `json:"body"`
	}, error) {
		actor, authErr := judgeIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		s, err := e.AssignLane(ctx, engine.LaneOptions{
			ModalityID: input.ModalityID,
			EventID:    input.EventID,
			AthleteID:  input.Body.AthleteID,
			Heat:       input.Body.Heat,
			Lane:       input.Body.Lane,
			ActorID:    actor,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Score `json:"body"`
		}{Body: s}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "set-placement",
		Method:      http.MethodPatch,
		Path:        "/modalities/{modality_id}/events/{event_id}/placements",
		Summary:     "Record final position and medal",
		Errors:      []int{http.StatusBadRequest, http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ModalityID string           `path:"modality_id"`
		EventID    string           `path:"event_id"`
		Body       PlacementRequest `json:"body"`
	}) (*struct {
		Body domain.Score `json:"body"`
	}, error) {
		actor, authErr := judgeIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		s, err := e.SetPlacement(ctx, engine.PlacementOptions{
			ModalityID:    input.ModalityID,
			EventID:       input.EventID,
			AthleteID:     input.Body.AthleteID,
			Heat:          input.Body.Heat,
			FinalPosition: input.Body.FinalPosition,
			Medal:         input.Body.Medal,
			ActorID:       actor,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Score `json:"body"`
		}{Body: s}, nil
	})
}
