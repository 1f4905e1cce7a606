package domain

// RuleRecord is the persisted scoring rule of a modality.
type RuleRecord struct {
	ModalityID  string         `json:"modality_id"`
	RuleType    string         `json:"rule_type" enum:"points,distance,time,heats,sets,arrows"`
	BaseScoring string         `json:"base_scoring,omitempty"`
	Parameters  map[string]any `json:"parameters"`
	CreatedAt   string         `json:"created_at,omitempty" format:"date-time"`
	UpdatedAt   string         `json:"updated_at,omitempty" format:"date-time"`
}

type HeatStatus string

const (
	HeatEmpty    HeatStatus = "empty"
	HeatPartial  HeatStatus = "partial"
	HeatComplete HeatStatus = "complete"
	HeatUnknown  HeatStatus = "unknown"
)

// Heat is one bateria of a modality inside an event. Counts are derived from scores.
type Heat struct {
	ModalityID   string     `json:"modality_id"`
	EventID      string     `json:"event_id"`
	Number       int        `json:"number"`
	IsFinal      bool       `json:"is_final"`
	AthleteCount int        `json:"athlete_count"`
	ScoredCount  int        `json:"scored_count"`
	Status       HeatStatus `json:"status" enum:"empty,partial,complete,unknown"`
	CreatedAt    string     `json:"created_at,omitempty" format:"date-time"`
}

// HeatCounts holds the athletes referencing a heat and how many of them carry a value.
type HeatCounts struct {
	Athletes int
	Scored   int
}

type Score struct {
	ID            string         `json:"id"`
	EventID       string         `json:"event_id"`
	ModalityID    string         `json:"modality_id"`
	AthleteID     string         `json:"athlete_id"`
	JudgeID       string         `json:"judge_id"`
	Value         *float64       `json:"value,omitempty"`
	HeatNumber    *int           `json:"heat_number,omitempty"`
	Lane          *int           `json:"lane,omitempty"`
	FinalPosition *int           `json:"final_position,omitempty"`
	Medal         *string        `json:"medal,omitempty"`
	Notes         string         `json:"notes,omitempty"`
	Metadata      map[string]any `json:"metadata,omitempty"`
	CreatedAt     string         `json:"created_at" format:"date-time"`
	UpdatedAt     string         `json:"updated_at" format:"date-time"`
}

type CurrentEvent struct {
	EventID   string `json:"event_id"`
	UpdatedBy string `json:"updated_by,omitempty"`
	UpdatedAt string `json:"updated_at" format:"date-time"`
}

type AuditEntry struct {
	ID         int64  `json:"id"`
	TS         string `json:"ts" format:"date-time"`
	Type       string `json:"type"`
	EventID    string `json:"event_id,omitempty"`
	EntityKind string `json:"entity_kind"`
	EntityID   string `json:"entity_id,omitempty"`
	ActorID    string `json:"actor_id"`
	Payload    string `json:"payload_json"`
}

type DeviceKey struct {
	ID        string `json:"id"`
	JudgeID   string `json:"judge_id"`
	Name      string `json:"name,omitempty"`
	KeyHash   string `json:"key_hash"`
	CreatedAt string `json:"created_at" format:"date-time"`
}

type JudgeProfile struct {
	JudgeID     string   `json:"judge_id"`
	Roles       []string `json:"roles"`
	Permissions []string `json:"permissions"`
}
