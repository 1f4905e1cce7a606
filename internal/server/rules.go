package server

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"olimpia/internal/domain"
	"olimpia/internal/engine"
	"olimpia/internal/render"
	"olimpia/internal/scoring"
)

type modalityPath struct {
	ModalityID string `path:"modality_id"`
}

func registerRules(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "list-rules",
		Method:      http.MethodGet,
		Path:        "/rules",
		Summary:     "List scoring rules",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body rulesList `json:"body"`
	}, error) {
		items, err := e.ListRules(ctx)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body rulesList `json:"body"`
		}{Body: rulesList{Items: nonNilSlice(items)}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-rule",
		Method:      http.MethodGet,
		Path:        "/modalities/{modality_id}/rule",
		Summary:     "Get the scoring rule of a modality",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *modalityPath) (*struct {
		Body domain.RuleRecord `json:"body"`
	}, error) {
		rec, err := e.GetRule(ctx, input.ModalityID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.RuleRecord `json:"body"`
		}{Body: rec}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "put-rule",
		Method:      http.MethodPut,
		Path:        "/modalities/{modality_id}/rule",
		Summary:     "Create or replace the scoring rule of a modality",
		Errors:      []int{http.StatusBadRequest, http.StatusForbidden},
	}, func(ctx context.Context, input *struct {
		ModalityID string      `path:"modality_id"`
		Body       RuleRequest `json:"body"`
	}) (*struct {
		Body domain.RuleRecord `json:"body"`
	}, error) {
		actor, authErr := judgeIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		rec, err := e.SetRule(ctx, domain.RuleRecord{
			ModalityID:  input.ModalityID,
			RuleType:    input.Body.RuleType,
			BaseScoring: input.Body.BaseScoring,
			Parameters:  input.Body.Parameters,
		}, actor)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.RuleRecord `json:"body"`
		}{Body: rec}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "delete-rule",
		Method:        http.MethodDelete,
		Path:          "/modalities/{modality_id}/rule",
		Summary:       "Delete the scoring rule of a modality",
		DefaultStatus: http.StatusNoContent,
		Errors:        []int{http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *modalityPath) (*struct{}, error) {
		actor, authErr := judgeIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if err := e.DeleteRule(ctx, input.ModalityID, actor); err != nil {
			return nil, handleError(err)
		}
		return &struct{}{}, nil
	})
}

func registerForms(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "get-schema",
		Method:      http.MethodGet,
		Path:        "/modalities/{modality_id}/schema",
		Summary:     "Form schema synthesized from the modality rule",
	}, func(ctx context.Context, input *modalityPath) (*struct {
		Body scoring.FieldSchema `json:"body"`
	}, error) {
		schema, err := e.Schema(ctx, input.ModalityID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body scoring.FieldSchema `json:"body"`
		}{Body: schema}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "resolve-defaults",
		Method:      http.MethodPost,
		Path:        "/modalities/{modality_id}/defaults",
		Summary:     "Fill missing form values with rule defaults",
	}, func(ctx context.Context, input *struct {
		ModalityID string       `path:"modality_id"`
		Body       *FormRequest `json:"body" required:"false"`
	}) (*struct {
		Body map[string]any `json:"body"`
	}, error) {
		var existing scoring.FormState
		if input.Body != nil {
			existing = input.Body.Values
		}
		values, err := e.Defaults(ctx, input.ModalityID, existing)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body map[string]any `json:"body"`
		}{Body: values}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "render-fields",
		Method:      http.MethodPost,
		Path:        "/modalities/{modality_id}/events/{event_id}/fields",
		Summary:     "Render the score entry fields for a modality inside an event",
	}, func(ctx context.Context, input *struct {
		ModalityID string         `path:"modality_id"`
		EventID    string         `path:"event_id"`
		Body       *FieldsRequest `json:"body" required:"false"`
	}) (*struct {
		Body render.FieldSet `json:"body"`
	}, error) {
		var (
			values   scoring.FormState
			selected *int
		)
		if input.Body != nil {
			values = input.Body.Values
			selected = input.Body.SelectedHeat
		}
		fs, err := e.Fields(ctx, input.ModalityID, input.EventID, values, selected)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body render.FieldSet `json:"body"`
		}{Body: fs}, nil
	})
}

func registerEvaluation(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "parse-arrows",
		Method:      http.MethodPost,
		Path:        "/arrows/parse",
		Summary:     "Parse pasted classification arrows",
	}, func(ctx context.Context, input *struct {
		Body ArrowsParseRequest `json:"body"`
	}) (*struct {
		Body ArrowsParseResponse `json:"body"`
	}, error) {
		arrows := scoring.ParseArrowText(input.Body.Text, input.Body.Count)
		return &struct {
			Body ArrowsParseResponse `json:"body"`
		}{Body: ArrowsParseResponse{
			Arrows: nonNilSlice(arrows),
			Total:  scoring.ClassificationTotal(arrows),
		}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "evaluate-sets",
		Method:      http.MethodPost,
		Path:        "/modalities/{modality_id}/sets/evaluate",
		Summary:     "Evaluate a set-based match",
		Errors:      []int{http.StatusBadRequest, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ModalityID string              `path:"modality_id"`
		Body       SetsEvaluateRequest `json:"body"`
	}) (*struct {
		Body scoring.SetsOutcome `json:"body"`
	}, error) {
		out, err := e.EvaluateSets(ctx, input.ModalityID, input.Body.Sets)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body scoring.SetsOutcome `json:"body"`
		}{Body: out}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "evaluate-arrows",
		Method:      http.MethodPost,
		Path:        "/modalities/{modality_id}/arrows/evaluate",
		Summary:     "Total classification arrows and score an elimination match",
		Errors:      []int{http.StatusBadRequest, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ModalityID string                `path:"modality_id"`
		Body       ArrowsEvaluateRequest `json:"body"`
	}) (*struct {
		Body engine.ArrowsEvaluation `json:"body"`
	}, error) {
		out, err := e.EvaluateArrows(ctx, input.ModalityID, input.Body.Classification, input.Body.Elimination)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body engine.ArrowsEvaluation `json:"body"`
		}{Body: out}, nil
	})
}
