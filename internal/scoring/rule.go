package scoring

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/mitchellh/mapstructure"

	"olimpia/internal/domain"
)

type RuleType string

const (
	RulePoints   RuleType = "points"
	RuleDistance RuleType = "distance"
	RuleTime     RuleType = "time"
	RuleHeats    RuleType = "heats"
	RuleSets     RuleType = "sets"
	RuleArrows   RuleType = "arrows"
)

// KnownRuleTypes lists every rule type with a dedicated scoring path.
var KnownRuleTypes = []RuleType{RulePoints, RuleDistance, RuleTime, RuleHeats, RuleSets, RuleArrows}

func (t RuleType) Known() bool {
	for _, k := range KnownRuleTypes {
		if t == k {
			return true
		}
	}
	return false
}

// Rule is the parsed scoring configuration of a modality.
type Rule struct {
	ModalityID string   `json:"modality_id"`
	Type       RuleType `json:"rule_type"`
	// BaseScoring selects the unit of each attempt for the heats rule type.
	BaseScoring RuleType       `json:"base_scoring,omitempty"`
	Parameters  map[string]any `json:"parameters"`
	Params      Params         `json:"-"`

	// declared holds the parameters as written, before bounding.
	declared  Params
	decodeErr error
}

// ParseRule builds a Rule from its stored record. Parsing is lenient: bad
// parameter values degrade to defaults and unknown types keep only their
// heat layout.
func ParseRule(rec domain.RuleRecord) Rule {
	rt := RuleType(strings.ToLower(strings.TrimSpace(rec.RuleType)))
	declared, err := decodeParams(rt, rec.Parameters)
	if err != nil {
		slog.Warn("rule parameters degraded to defaults", "modality_id", rec.ModalityID, "rule_type", rt, "error", err)
	}
	if !rt.Known() {
		slog.Warn("unknown rule type, using score fallback", "modality_id", rec.ModalityID, "rule_type", rt)
	}
	raw := rec.Parameters
	if raw == nil {
		raw = map[string]any{}
	}
	return Rule{
		ModalityID:  rec.ModalityID,
		Type:        rt,
		BaseScoring: normalizeBase(rec.BaseScoring),
		Parameters:  raw,
		Params:      declared.bounded(),
		declared:    declared,
		decodeErr:   err,
	}
}

// NewRule parses a rule and validates it, for write paths.
func NewRule(rec domain.RuleRecord) (Rule, error) {
	r := ParseRule(rec)
	return r, r.Validate()
}

// Record converts the rule back into its stored shape.
func (r Rule) Record() domain.RuleRecord {
	base := ""
	if r.Type == RuleHeats {
		base = string(r.BaseScoring)
	}
	return domain.RuleRecord{
		ModalityID:  r.ModalityID,
		RuleType:    string(r.Type),
		BaseScoring: base,
		Parameters:  r.Parameters,
	}
}

// UsesHeats is false for a nil rule.
func (r *Rule) UsesHeats() bool {
	if r == nil || r.Params == nil {
		return false
	}
	return r.Params.Layout().UsesHeats
}

// Validate checks that the parameters satisfy the shape implied by the type.
func (r Rule) Validate() error {
	if strings.TrimSpace(r.ModalityID) == "" {
		return errors.New("modality_id is required")
	}
	if !r.Type.Known() {
		return fmt.Errorf("invalid rule_type %q", r.Type)
	}
	if r.decodeErr != nil {
		return fmt.Errorf("invalid parameters: %w", r.decodeErr)
	}
	params := r.declared
	if params == nil {
		params = r.Params
	}
	layout := params.Layout()
	if layout.HeatCount < 0 || layout.LanesPerHeat < 0 {
		return errors.New("invalid parameters: heatCount and lanesPerHeat must not be negative")
	}
	if layout.LanesPerHeat > MaxLanes {
		return fmt.Errorf("invalid parameters: lanesPerHeat above %d", MaxLanes)
	}
	switch p := params.(type) {
	case DistanceParams:
		if p.Subunit != "" && p.Subunit != "cm" {
			return fmt.Errorf("invalid parameters: unsupported subunit %q", p.Subunit)
		}
	case TimeParams:
		switch p.TimeFormat {
		case "", "mm:ss.SS", "hh:mm:ss":
		default:
			return fmt.Errorf("invalid parameters: unsupported timeFormat %q", p.TimeFormat)
		}
	case AttemptsParams:
		if p.LaneCount < 0 || p.LaneCount > MaxLanes {
			return fmt.Errorf("invalid parameters: laneCount must be between 0 and %d", MaxLanes)
		}
		if p.AttemptCount > MaxAttemptCount {
			return fmt.Errorf("invalid parameters: attemptCount above %d", MaxAttemptCount)
		}
	case SetsParams:
		if p.BestOf < 1 || p.BestOf > MaxBestOf || p.BestOf%2 == 0 {
			return fmt.Errorf("invalid parameters: bestOf must be odd between 1 and 7, got %d", p.BestOf)
		}
		if p.SetsToWin < 1 || p.SetsToWin > p.BestOf {
			return fmt.Errorf("invalid parameters: setsToWin must be between 1 and %d", p.BestOf)
		}
		switch p.Unit {
		case "", "sets", "wins", "points":
		default:
			return fmt.Errorf("invalid parameters: unsupported unit %q", p.Unit)
		}
		if p.FinalSetPoints < 0 || p.MinAdvantage < 0 {
			return errors.New("invalid parameters: finalSetPoints and minAdvantage must not be negative")
		}
	case ArrowsParams:
		if p.ClassificationArrowCount > MaxClassificationArrows {
			return fmt.Errorf("invalid parameters: classificationArrowCount above %d", MaxClassificationArrows)
		}
		if p.SetsPerMatch > MaxSetsPerMatch || p.ArrowsPerSet > MaxArrowsPerSet {
			return fmt.Errorf("invalid parameters: setsPerMatch above %d or arrowsPerSet above %d", MaxSetsPerMatch, MaxArrowsPerSet)
		}
		if p.SetTiePoints > p.SetWinPoints {
			return errors.New("invalid parameters: setTiePoints above setWinPoints")
		}
	}
	return nil
}

func decodeParams(rt RuleType, raw map[string]any) (Params, error) {
	var target Params
	switch rt {
	case RulePoints:
		target = &PointsParams{}
	case RuleDistance:
		target = &DistanceParams{}
	case RuleTime:
		target = &TimeParams{}
	case RuleHeats:
		target = &AttemptsParams{}
	case RuleSets:
		target = &SetsParams{}
	case RuleArrows:
		target = &ArrowsParams{}
	default:
		target = &UnknownParams{Name: string(rt)}
	}
	var err error
	if len(raw) > 0 {
		var dec *mapstructure.Decoder
		dec, err = mapstructure.NewDecoder(&mapstructure.DecoderConfig{
			WeaklyTypedInput: true,
			Result:           target,
		})
		if err == nil {
			err = dec.Decode(raw)
		}
	}
	return deref(target).applyDefaults(), err
}

func deref(p Params) Params {
	switch v := p.(type) {
	case *PointsParams:
		return *v
	case *DistanceParams:
		return *v
	case *TimeParams:
		return *v
	case *AttemptsParams:
		return *v
	case *SetsParams:
		return *v
	case *ArrowsParams:
		return *v
	case *UnknownParams:
		return *v
	}
	return p
}

func normalizeBase(v string) RuleType {
	switch RuleType(strings.ToLower(strings.TrimSpace(v))) {
	case RuleTime:
		return RuleTime
	case RuleDistance:
		return RuleDistance
	default:
		return RulePoints
	}
}
