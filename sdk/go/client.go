package olimpiasdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client is a minimal Olimpia HTTP API client.
type Client struct {
	BaseURL  string
	BasePath string
	// Credentials, first non-empty wins.
	BearerToken string
	APIKey      string
	JudgeID     string
	HTTPClient  *http.Client
	Timeout     time.Duration
}

// New creates a client with sane defaults.
func New(baseURL string) *Client {
	return &Client{
		BaseURL:  baseURL,
		BasePath: "/v1",
		Timeout:  10 * time.Second,
	}
}

// Rule is a modality scoring rule.
type Rule struct {
	ModalityID  string         `json:"modality_id,omitempty"`
	RuleType    string         `json:"rule_type"`
	BaseScoring string         `json:"base_scoring,omitempty"`
	Parameters  map[string]any `json:"parameters,omitempty"`
	UpdatedAt   string         `json:"updated_at,omitempty"`
}

// Field is one entry of a modality form schema.
type Field struct {
	Name     string   `json:"name"`
	Kind     string   `json:"kind"`
	Default  any      `json:"default,omitempty"`
	Min      *float64 `json:"min,omitempty"`
	Max      *float64 `json:"max,omitempty"`
	Optional bool     `json:"optional,omitempty"`
}

type Schema struct {
	RuleType string  `json:"rule_type"`
	Fields   []Field `json:"fields"`
}

type Heat struct {
	Number       int    `json:"number"`
	IsFinal      bool   `json:"is_final"`
	AthleteCount int    `json:"athlete_count"`
	ScoredCount  int    `json:"scored_count"`
	Status       string `json:"status"`
}

type HeatList struct {
	UsesHeats bool   `json:"uses_heats"`
	Heats     []Heat `json:"heats"`
	HasFinal  bool   `json:"has_final"`
}

type Score struct {
	ID            string         `json:"id"`
	AthleteID     string         `json:"athlete_id"`
	JudgeID       string         `json:"judge_id"`
	Value         *float64       `json:"value,omitempty"`
	HeatNumber    *int           `json:"heat_number,omitempty"`
	Lane          *int           `json:"lane,omitempty"`
	FinalPosition *int           `json:"final_position,omitempty"`
	Medal         *string        `json:"medal,omitempty"`
	Metadata      map[string]any `json:"metadata,omitempty"`
	UpdatedAt     string         `json:"updated_at"`
}

type CurrentEvent struct {
	EventID   string `json:"event_id"`
	UpdatedBy string `json:"updated_by,omitempty"`
	UpdatedAt string `json:"updated_at"`
}

type AuditEntry struct {
	ID         int64  `json:"id"`
	TS         string `json:"ts"`
	Type       string `json:"type"`
	EventID    string `json:"event_id,omitempty"`
	EntityKind string `json:"entity_kind"`
	EntityID   string `json:"entity_id,omitempty"`
	ActorID    string `json:"actor_id"`
}

// AuditPage wraps audit listings with a cursor.
type AuditPage struct {
	Items      []AuditEntry `json:"items"`
	NextCursor string       `json:"next_cursor"`
}

// ScoreFilter narrows ListScores; zero values are ignored.
type ScoreFilter struct {
	AthleteID string
	Heat      int
	// HasHeat keeps scores with (true) or without (false) a heat.
	HasHeat *bool
	Scored  bool
}

// APIError wraps non-2xx responses.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
	Body       string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("api error: status=%d code=%s message=%s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("api error: status=%d body=%s", e.StatusCode, e.Body)
}

// SetRule creates or replaces the rule of a modality.
func (c *Client) SetRule(ctx context.Context, modalityID string, rule Rule) (Rule, error) {
	var resp Rule
	err := c.do(ctx, http.MethodPut, modalityPath(modalityID, "rule"), rule, &resp)
	return resp, err
}

func (c *Client) Rule(ctx context.Context, modalityID string) (Rule, error) {
	var resp Rule
	err := c.do(ctx, http.MethodGet, modalityPath(modalityID, "rule"), nil, &resp)
	return resp, err
}

// Schema returns the form schema synthesized from the modality rule.
func (c *Client) Schema(ctx context.Context, modalityID string) (Schema, error) {
	var resp Schema
	err := c.do(ctx, http.MethodGet, modalityPath(modalityID, "schema"), nil, &resp)
	return resp, err
}

// Defaults fills missing form values.
func (c *Client) Defaults(ctx context.Context, modalityID string, values map[string]any) (map[string]any, error) {
	var resp map[string]any
	err := c.do(ctx, http.MethodPost, modalityPath(modalityID, "defaults"), map[string]any{"values": values}, &resp)
	return resp, err
}

func (c *Client) Heats(ctx context.Context, modalityID, eventID string) (HeatList, error) {
	var resp HeatList
	err := c.do(ctx, http.MethodGet, eventPath(modalityID, eventID, "heats"), nil, &resp)
	return resp, err
}

func (c *Client) CreateHeat(ctx context.Context, modalityID, eventID string) (Heat, error) {
	var resp Heat
	err := c.do(ctx, http.MethodPost, eventPath(modalityID, eventID, "heats"), nil, &resp)
	return resp, err
}

// CreateFinalHeat returns the existing final heat when there is one.
func (c *Client) CreateFinalHeat(ctx context.Context, modalityID, eventID string) (Heat, error) {
	var resp Heat
	err := c.do(ctx, http.MethodPost, eventPath(modalityID, eventID, "heats/final"), nil, &resp)
	return resp, err
}

// SubmitScore sends raw form values; the server normalizes them.
func (c *Client) SubmitScore(ctx context.Context, modalityID, eventID, athleteID string, values map[string]any) (Score, error) {
	body := map[string]any{
		"athlete_id": athleteID,
		"values":     values,
	}
	var resp Score
	err := c.do(ctx, http.MethodPut, eventPath(modalityID, eventID, "scores"), body, &resp)
	return resp, err
}

func (c *Client) Scores(ctx context.Context, modalityID, eventID string, f ScoreFilter) ([]Score, error) {
	q := url.Values{}
	if f.AthleteID != "" {
		q.Set("athlete_id", f.AthleteID)
	}
	if f.Heat > 0 {
		q.Set("heat", fmt.Sprint(f.Heat))
	}
	if f.HasHeat != nil {
		q.Set("has_heat", fmt.Sprint(*f.HasHeat))
	}
	if f.Scored {
		q.Set("scored", "true")
	}
	endpoint := eventPath(modalityID, eventID, "scores")
	if len(q) > 0 {
		endpoint += "?" + q.Encode()
	}
	var resp struct {
		Items []Score `json:"items"`
	}
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp.Items, err
}

func (c *Client) SetCurrentEvent(ctx context.Context, eventID string) (CurrentEvent, error) {
	var resp CurrentEvent
	err := c.do(ctx, http.MethodPut, "current-event", map[string]any{"event_id": eventID}, &resp)
	return resp, err
}

func (c *Client) CurrentEvent(ctx context.Context) (CurrentEvent, error) {
	var resp CurrentEvent
	err := c.do(ctx, http.MethodGet, "current-event", nil, &resp)
	return resp, err
}

// AuditPage returns a page of audit entries, newest first.
func (c *Client) AuditPage(ctx context.Context, limit int, cursor string) (AuditPage, error) {
	q := url.Values{}
	if limit > 0 {
		q.Set("limit", fmt.Sprint(limit))
	}
	if cursor != "" {
		q.Set("cursor", cursor)
	}
	endpoint := "audit"
	if len(q) > 0 {
		endpoint += "?" + q.Encode()
	}
	var resp AuditPage
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

func (c *Client) do(ctx context.Context, method, endpoint string, body any, out any) error {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
	url := c.base() + "/" + strings.TrimLeft(endpoint, "/")
	var reader io.Reader
	if body != nil {
		var buf bytes.Buffer
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
		reader = &buf
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	switch {
	case c.BearerToken != "":
		req.Header.Set("Authorization", "Bearer "+c.BearerToken)
	case c.APIKey != "":
		req.Header.Set("X-Api-Key", c.APIKey)
	case c.JudgeID != "":
		req.Header.Set("X-Judge-Id", c.JudgeID)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		apiErr := &APIError{StatusCode: resp.StatusCode, Body: string(b)}
		var env struct {
			Error struct {
				Code    string `json:"code"`
				Message string `json:"message"`
			} `json:"error"`
		}
		if json.Unmarshal(b, &env) == nil {
			apiErr.Code, apiErr.Message = env.Error.Code, env.Error.Message
		}
		return apiErr
	}
	if out != nil && resp.StatusCode != http.StatusNoContent {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func modalityPath(modalityID, p string) string {
	return fmt.Sprintf("modalities/%s/%s", url.PathEscape(modalityID), p)
}

func eventPath(modalityID, eventID, p string) string {
	return fmt.Sprintf("modalities/%s/events/%s/%s", url.PathEscape(modalityID), url.PathEscape(eventID), p)
}

func (c *Client) base() string {
	base := strings.TrimRight(c.BaseURL, "/")
	if p := strings.Trim(c.BasePath, "/"); p != "" {
		base += "/" + p
	}
	return base
}
