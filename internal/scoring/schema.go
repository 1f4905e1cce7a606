package scoring

import (
	"log/slog"
	"math"
)

type FieldKind string

const (
	KindInteger FieldKind = "integer"
	KindDecimal FieldKind = "decimal"
	KindString  FieldKind = "string"
	KindEnum    FieldKind = "enum"
)

// Field describes one input of the score-entry form.
type Field struct {
	Name     string    `json:"name"`
	Kind     FieldKind `json:"kind" enum:"integer,decimal,string,enum"`
	Default  any       `json:"default,omitempty"`
	Min      *float64  `json:"min,omitempty"`
	Max      *float64  `json:"max,omitempty"`
	Optional bool      `json:"optional,omitempty"`
	Options  []string  `json:"options,omitempty"`
}

type FieldSchema struct {
	RuleType RuleType `json:"rule_type"`
	Fields   []Field  `json:"fields"`
}

// Names returns field names in declaration order.
func (s FieldSchema) Names() []string {
	names := make([]string, 0, len(s.Fields))
	for _, f := range s.Fields {
		names = append(names, f.Name)
	}
	return names
}

func (s FieldSchema) Field(name string) (Field, bool) {
	for _, f := range s.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// Coerce applies field bounds to numeric values, replacing anything out of
// range or unparsable with zero. Integer fields are rounded before the bounds
// check. Unknown keys pass through.
func (s FieldSchema) Coerce(values FormState) FormState {
	out := FormState{}
	for k, v := range values {
		out[k] = v
	}
	for _, f := range s.Fields {
		if f.Kind != KindInteger && f.Kind != KindDecimal {
			continue
		}
		raw, present := values[f.Name]
		if !present || raw == nil {
			continue
		}
		n, ok := toFloat(raw)
		if f.Kind == KindInteger {
			n = math.Round(n)
		}
		if !ok || (f.Min != nil && n < *f.Min) || (f.Max != nil && n > *f.Max) {
			n = 0
		}
		if f.Kind == KindInteger {
			out[f.Name] = int(n)
		} else {
			out[f.Name] = n
		}
	}
	return out
}

// Synthesize derives the validation schema for a rule type. It never fails:
// unrecognized types get a single non-negative score field.
func Synthesize(ruleType RuleType, params Params) FieldSchema {
	layout := HeatLayout{}
	if params != nil {
		layout = params.Layout()
	}
	var fields []Field
	if layout.UsesHeats && ruleType != RuleHeats && ruleType.Known() {
		fields = append(fields, heatFields(layout)...)
	}
	switch ruleType {
	case RuleTime:
		fields = append(fields,
			intField("minutes", 0, -1),
			intField("seconds", 0, 59),
			intField("milliseconds", 0, 99),
		)
	case RuleDistance:
		maxSub := DefaultMaxSubunit
		if p, ok := params.(DistanceParams); ok && p.MaxSubunit > 0 {
			maxSub = p.MaxSubunit
		}
		fields = append(fields,
			intField("meters", 0, -1),
			intField("centimeters", 0, maxSub),
		)
	case RulePoints, RuleSets, RuleArrows:
		fields = append(fields, scoreField())
	default:
		if !ruleType.Known() {
			slog.Debug("schema fallback for unrecognized rule type", "rule_type", ruleType)
		}
		fields = append(fields, scoreField())
	}
	fields = append(fields, Field{Name: "notes", Kind: KindString, Default: "", Optional: true})
	return FieldSchema{RuleType: ruleType, Fields: fields}
}

// SchemaFor synthesizes the schema of a possibly missing rule.
func SchemaFor(r *Rule) FieldSchema {
	if r == nil {
		return Synthesize("", nil)
	}
	return Synthesize(r.Type, r.Params)
}

func heatFields(layout HeatLayout) []Field {
	heat := Field{Name: "heat", Kind: KindInteger, Min: ptr(1), Optional: true}
	lane := Field{Name: "lane", Kind: KindInteger, Min: ptr(1), Optional: true}
	if layout.LanesPerHeat > 0 {
		lane.Max = ptr(float64(layout.LanesPerHeat))
	}
	return []Field{heat, lane}
}

func intField(name string, min, max int) Field {
	f := Field{Name: name, Kind: KindInteger, Default: 0, Min: ptr(float64(min))}
	if max >= min {
		f.Max = ptr(float64(max))
	}
	return f
}

func scoreField() Field {
	return Field{Name: "score", Kind: KindDecimal, Default: 0, Min: ptr(0)}
}

func ptr(v float64) *float64 { return &v }
