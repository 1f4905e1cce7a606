package server

import (
	"olimpia/internal/domain"
	"olimpia/internal/scoring"
)

type RuleRequest struct {
	RuleType    string         `json:"rule_type" enum:"points,distance,time,heats,sets,arrows"`
	BaseScoring string         `json:"base_scoring,omitempty" enum:"points,distance,time"`
	Parameters  map[string]any `json:"parameters,omitempty"`
}

type FormRequest struct {
	Values map[string]any `json:"values,omitempty"`
}

type FieldsRequest struct {
	Values       map[string]any `json:"values,omitempty"`
	SelectedHeat *int           `json:"selected_heat,omitempty" minimum:"1"`
}

type ScoreRequest struct {
	AthleteID string         `json:"athlete_id" minLength:"1"`
	Values    map[string]any `json:"values"`
}

type LaneRequest struct {
	AthleteID string `json:"athlete_id" minLength:"1"`
	Heat      int    `json:"heat" minimum:"1"`
	Lane      *int   `json:"lane,omitempty" minimum:"1"`
}

type PlacementRequest struct {
	AthleteID     string `json:"athlete_id" minLength:"1"`
	Heat          *int   `json:"heat,omitempty" minimum:"1"`
	FinalPosition *int   `json:"final_position,omitempty" minimum:"1"`
	Medal         string `json:"medal,omitempty"`
}

type ArrowsParseRequest struct {
	Text  string `json:"text"`
	Count int    `json:"count" minimum:"0" maximum:"144"`
}

type ArrowsParseResponse struct {
	Arrows []int `json:"arrows"`
	Total  int   `json:"total"`
}

type SetsEvaluateRequest struct {
	Sets []scoring.SetEntry `json:"sets"`
}

type ArrowsEvaluateRequest struct {
	Classification []int                     `json:"classification,omitempty"`
	Elimination    *scoring.EliminationInput `json:"elimination,omitempty"`
}

type CurrentEventRequest struct {
	EventID string `json:"event_id" minLength:"1"`
}

type RoleRequest struct {
	JudgeID string `json:"judge_id" minLength:"1"`
	RoleID  string `json:"role_id" minLength:"1"`
}

type DeviceKeyRequest struct {
	JudgeID string `json:"judge_id,omitempty"`
	Name    string `json:"name,omitempty"`
}

type DeviceKeyResponse struct {
	// Key is shown once.
	Key       string           `json:"key"`
	DeviceKey domain.DeviceKey `json:"device_key"`
}

type DevLoginRequest struct {
	JudgeID string   `json:"judge_id"`
	Roles   []string `json:"roles,omitempty"`
}

type DevLoginResponse struct {
	Token string `json:"token"`
}

type WhoAmIResponse struct {
	JudgeID     string   `json:"judge_id"`
	Source      string   `json:"source"`
	Roles       []string `json:"roles"`
	Permissions []string `json:"permissions"`
}

type ClearHeatsResponse struct {
	ScoresAffected int `json:"scores_affected"`
}

type paginatedScores struct {
	Items []domain.Score `json:"items"`
}

type paginatedAudit struct {
	Items      []domain.AuditEntry `json:"items"`
	NextCursor string              `json:"next_cursor,omitempty"`
}

type rulesList struct {
	Items []domain.RuleRecord `json:"items"`
}

func nonNilSlice[T any](in []T) []T {
	if in == nil {
		return []T{}
	}
	return in
}
