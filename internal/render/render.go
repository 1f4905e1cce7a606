// Package render maps a modality rule onto the groups of inputs a judge fills
// in. It is a pure mapping: it reads heat state but never changes it.
package render

import (
	"fmt"
	"log/slog"
	"strconv"

	"olimpia/internal/domain"
	"olimpia/internal/scoring"
)

// Variants identify which input layout was chosen.
const (
	VariantPoints        = "points"
	VariantDistanceSplit = "distance.split"
	VariantDistance      = "distance.meters"
	VariantTime          = "time"
	VariantAttempts      = "attempts"
	VariantSetsPoints    = "sets.points"
	VariantSetsMatch     = "sets.match"
	VariantVolleyball    = "sets.volleyball"
	VariantArrowZones    = "arrows.zones"
	VariantArrowPhases   = "arrows.phases"
)

// HeatsData is the heat registry state the renderer needs.
type HeatsData struct {
	Heats    []domain.Heat `json:"heats"`
	Selected *int          `json:"selected,omitempty"`
}

type Option struct {
	Label string `json:"label"`
	Value any    `json:"value"`
}

// Input is one rendered field. Name is a dotted path into the form state,
// e.g. "sets.2.teamPointsA".
type Input struct {
	Name     string            `json:"name"`
	Label    string            `json:"label"`
	Kind     scoring.FieldKind `json:"kind"`
	Min      *float64          `json:"min,omitempty"`
	Max      *float64          `json:"max,omitempty"`
	Options  []Option          `json:"options,omitempty"`
	ReadOnly bool              `json:"read_only,omitempty"`
	Value    any               `json:"value,omitempty"`
}

type Group struct {
	Key      string  `json:"key"`
	Label    string  `json:"label"`
	Inputs   []Input `json:"inputs"`
	Visible  bool    `json:"visible"`
	Disabled bool    `json:"disabled,omitempty"`
}

// Summary carries derived figures shown next to the form.
type Summary struct {
	Value               *float64                   `json:"value,omitempty"`
	Unit                string                     `json:"unit,omitempty"`
	ClassificationTotal *int                       `json:"classification_total,omitempty"`
	Sets                *scoring.SetsOutcome       `json:"sets,omitempty"`
	Elimination         *scoring.EliminationResult `json:"elimination,omitempty"`
}

type FieldSet struct {
	RuleType scoring.RuleType    `json:"rule_type"`
	Variant  string              `json:"variant"`
	Groups   []Group             `json:"groups"`
	Schema   scoring.FieldSchema `json:"schema"`
	Defaults scoring.FormState   `json:"defaults"`
	Summary  Summary             `json:"summary"`
}

// Render builds the field set for an empty form.
func Render(rule *scoring.Rule, heats HeatsData) FieldSet {
	return RenderWithValues(rule, heats, nil)
}

// RenderWithValues builds the field set for a form that may already hold
// values, so that set reveal, match end and shoot-off state reflect them.
func RenderWithValues(rule *scoring.Rule, heats HeatsData, values scoring.FormState) FieldSet {
	state := scoring.ResolveDefaults(values, rule)
	fs := FieldSet{
		Schema:   scoring.SchemaFor(rule),
		Defaults: scoring.ResolveDefaults(nil, rule),
	}
	if rule != nil {
		fs.RuleType = rule.Type
	}
	if rule.UsesHeats() && rule.Type != scoring.RuleHeats && rule.Type.Known() {
		fs.Groups = append(fs.Groups, heatGroup(rule.Params.Layout(), heats, state))
	}
	var params scoring.Params
	if rule != nil {
		params = rule.Params
	}
	switch p := params.(type) {
	case scoring.PointsParams:
		fs.Variant = VariantPoints
		fs.Groups = append(fs.Groups, scoreGroup("Score", state))
	case scoring.DistanceParams:
		renderDistance(&fs, p, state)
	case scoring.TimeParams:
		fs.Variant = VariantTime
		fs.Groups = append(fs.Groups, Group{Key: "time", Label: "Time", Visible: true, Inputs: timeInputs("", state)})
	case scoring.AttemptsParams:
		renderAttempts(&fs, p, rule.BaseScoring, state)
	case scoring.SetsParams:
		renderSets(&fs, p, state)
	case scoring.ArrowsParams:
		renderArrows(&fs, p, state)
	default:
		if rule != nil {
			slog.Warn("rendering unrecognized rule type as points", "modality_id", rule.ModalityID, "rule_type", rule.Type)
		}
		fs.Variant = VariantPoints
		fs.Groups = append(fs.Groups, scoreGroup("Score", state))
	}
	fs.Groups = append(fs.Groups, Group{
		Key: "notes", Label: "Notes", Visible: true,
		Inputs: []Input{{Name: "notes", Label: "Notes", Kind: scoring.KindString, Value: state["notes"]}},
	})
	if sub, err := scoring.Normalize(state, rule); err == nil {
		fs.Summary.Value = sub.Value
		if unit, ok := sub.Metadata["unit"].(string); ok {
			fs.Summary.Unit = unit
		}
	}
	return fs
}

func heatGroup(layout scoring.HeatLayout, heats HeatsData, state scoring.FormState) Group {
	heat := Input{Name: "heat", Label: "Heat", Kind: scoring.KindEnum}
	for _, h := range heats.Heats {
		label := fmt.Sprintf("Heat %d", h.Number)
		if h.IsFinal {
			label = "Final"
		}
		heat.Options = append(heat.Options, Option{Label: label, Value: h.Number})
	}
	switch {
	case state["heat"] != nil:
		heat.Value = state["heat"]
	case heats.Selected != nil:
		heat.Value = *heats.Selected
	}
	lane := Input{Name: "lane", Label: "Lane", Kind: scoring.KindInteger, Min: ptr(1), Value: state["lane"]}
	if layout.LanesPerHeat > 0 {
		lane.Kind = scoring.KindEnum
		lane.Max = ptr(float64(layout.LanesPerHeat))
		lane.Options = laneOptions(layout.LanesPerHeat)
	}
	return Group{Key: "heat", Label: "Heat and lane", Visible: true, Inputs: []Input{heat, lane}}
}

func scoreGroup(label string, state scoring.FormState) Group {
	return Group{Key: "score", Label: label, Visible: true, Inputs: []Input{
		{Name: "score", Label: label, Kind: scoring.KindDecimal, Min: ptr(0), Value: state["score"]},
	}}
}

func renderDistance(fs *FieldSet, p scoring.DistanceParams, state scoring.FormState) {
	if !p.SplitCentimeters() {
		fs.Variant = VariantDistance
		fs.Groups = append(fs.Groups, scoreGroup("Meters", state))
		return
	}
	fs.Variant = VariantDistanceSplit
	fs.Groups = append(fs.Groups, Group{Key: "distance", Label: "Distance", Visible: true, Inputs: distanceInputs("", p.MaxSubunit, state)})
}

func distanceInputs(prefix string, maxSub int, state scoring.FormState) []Input {
	return []Input{
		{Name: prefix + "meters", Label: "Meters", Kind: scoring.KindInteger, Min: ptr(0), Value: state["meters"]},
		{Name: prefix + "centimeters", Label: "Centimeters", Kind: scoring.KindInteger, Min: ptr(0), Max: ptr(float64(maxSub)), Value: state["centimeters"]},
	}
}

func timeInputs(prefix string, state scoring.FormState) []Input {
	return []Input{
		{Name: prefix + "minutes", Label: "Minutes", Kind: scoring.KindInteger, Min: ptr(0), Value: state["minutes"]},
		{Name: prefix + "seconds", Label: "Seconds", Kind: scoring.KindInteger, Min: ptr(0), Max: ptr(59), Value: state["seconds"]},
		{Name: prefix + "milliseconds", Label: "Hundredths", Kind: scoring.KindInteger, Min: ptr(0), Max: ptr(99), Value: state["milliseconds"]},
	}
}

// renderAttempts renders every attempt, typed by the modality's base unit.
func renderAttempts(fs *FieldSet, p scoring.AttemptsParams, base scoring.RuleType, state scoring.FormState) {
	fs.Variant = VariantAttempts
	attempts := state.List("attempts")
	for i := 0; i < p.AttemptCount; i++ {
		var item scoring.FormState
		if i < len(attempts) {
			item = attempts[i]
		}
		prefix := "attempts." + strconv.Itoa(i) + "."
		var inputs []Input
		switch base {
		case scoring.RuleTime:
			inputs = timeInputs(prefix, item)
		case scoring.RuleDistance:
			inputs = distanceInputs(prefix, scoring.DefaultMaxSubunit, item)
		default:
			inputs = []Input{{Name: prefix + "value", Label: "Result", Kind: scoring.KindDecimal, Min: ptr(0), Value: item["value"]}}
		}
		if lanes := p.Lanes(); lanes > 0 {
			inputs = append(inputs, Input{
				Name: prefix + "lane", Label: "Lane", Kind: scoring.KindEnum,
				Options: laneOptions(lanes), Value: item["lane"],
			})
		}
		fs.Groups = append(fs.Groups, Group{
			Key: fmt.Sprintf("attempt-%d", i+1), Label: fmt.Sprintf("Attempt %d", i+1),
			Visible: true, Inputs: inputs,
		})
	}
}

func renderSets(fs *FieldSet, p scoring.SetsParams, state scoring.FormState) {
	outcome := scoring.EvaluateSets(p, scoring.SetEntries(state))
	fs.Summary.Sets = &outcome
	switch {
	case p.PointsMode():
		fs.Variant = VariantSetsPoints
	case p.Volleyball():
		fs.Variant = VariantVolleyball
	default:
		fs.Variant = VariantSetsMatch
	}
	for _, st := range outcome.Sets {
		prefix := "sets." + strconv.Itoa(st.Index) + "."
		g := Group{
			Key: fmt.Sprintf("set-%d", st.Index+1), Label: fmt.Sprintf("Set %d", st.Index+1),
			Visible: st.Visible, Disabled: st.Disabled,
		}
		switch fs.Variant {
		case VariantSetsPoints:
			g.Inputs = []Input{{Name: prefix + "points", Label: "Points", Kind: scoring.KindInteger, Min: ptr(0), Value: st.Points}}
		case VariantVolleyball:
			g.Inputs = []Input{
				{Name: prefix + "teamPointsA", Label: "Team A", Kind: scoring.KindInteger, Min: ptr(0), Value: st.PointsA},
				{Name: prefix + "teamPointsB", Label: "Team B", Kind: scoring.KindInteger, Min: ptr(0), Value: st.PointsB},
				{Name: prefix + "winner", Label: "Winner", Kind: scoring.KindEnum, Options: sideOptions(), ReadOnly: true, Value: sideValue(st.Winner)},
			}
		default:
			g.Inputs = []Input{{Name: prefix + "winner", Label: "Winner", Kind: scoring.KindEnum, Options: sideOptions(), Value: sideValue(st.Winner)}}
		}
		fs.Groups = append(fs.Groups, g)
	}
}

func renderArrows(fs *FieldSet, p scoring.ArrowsParams, state scoring.FormState) {
	if !p.Phased() {
		fs.Variant = VariantArrowZones
		zones := make([]Option, 0, len(scoring.ArrowZones))
		for _, z := range scoring.ArrowZones {
			label := strconv.Itoa(z)
			if z == 0 {
				label = "Miss"
			}
			zones = append(zones, Option{Label: label, Value: z})
		}
		arrows := state.Ints("arrows")
		g := Group{Key: "arrows", Label: "Arrows", Visible: true}
		for i := 0; i < p.ClassificationArrowCount; i++ {
			g.Inputs = append(g.Inputs, Input{
				Name: "arrows." + strconv.Itoa(i), Label: fmt.Sprintf("Arrow %d", i+1),
				Kind: scoring.KindEnum, Options: zones, Value: at(arrows, i),
			})
		}
		fs.Groups = append(fs.Groups, g)
		return
	}
	fs.Variant = VariantArrowPhases
	if p.HasClassificationPhase {
		arrows := state.Ints("arrows")
		g := Group{Key: "classification", Label: "Classification", Visible: true}
		for i := 0; i < p.ClassificationArrowCount; i++ {
			g.Inputs = append(g.Inputs, arrowInput("arrows."+strconv.Itoa(i), fmt.Sprintf("Arrow %d", i+1), at(arrows, i)))
		}
		total := scoring.ClassificationTotal(p.ClassificationArrows(arrows))
		fs.Summary.ClassificationTotal = &total
		fs.Groups = append(fs.Groups, g)
	}
	if !p.HasEliminationPhase {
		return
	}
	in, _ := scoring.EliminationFromForm(state)
	res := scoring.EvaluateElimination(p, in)
	fs.Summary.Elimination = &res
	for _, set := range res.Sets {
		var shot scoring.ArcherySet
		if set.Index < len(in.Sets) {
			shot = in.Sets[set.Index]
		}
		prefix := "elimination.sets." + strconv.Itoa(set.Index) + "."
		g := Group{
			Key: fmt.Sprintf("elimination-set-%d", set.Index+1), Label: fmt.Sprintf("Set %d", set.Index+1),
			Visible: !set.Disabled, Disabled: set.Disabled,
		}
		for j := 0; j < p.ArrowsPerSet; j++ {
			g.Inputs = append(g.Inputs, arrowInput(prefix+"arrowsA."+strconv.Itoa(j), fmt.Sprintf("A arrow %d", j+1), at(shot.ArrowsA, j)))
		}
		for j := 0; j < p.ArrowsPerSet; j++ {
			g.Inputs = append(g.Inputs, arrowInput(prefix+"arrowsB."+strconv.Itoa(j), fmt.Sprintf("B arrow %d", j+1), at(shot.ArrowsB, j)))
		}
		fs.Groups = append(fs.Groups, g)
	}
	if p.AllowsShootOff {
		g := Group{Key: "shoot-off", Label: "Shoot-off", Visible: res.ShootOffRequired}
		g.Inputs = []Input{
			arrowInput("elimination.shootOffA", "A arrow", intValue(in.ShootOffA)),
			arrowInput("elimination.shootOffB", "B arrow", intValue(in.ShootOffB)),
		}
		fs.Groups = append(fs.Groups, g)
	}
}

func arrowInput(name, label string, value int) Input {
	return Input{Name: name, Label: label, Kind: scoring.KindInteger, Min: ptr(0), Max: ptr(10), Value: value}
}

func laneOptions(n int) []Option {
	out := make([]Option, 0, n)
	for i := 1; i <= n; i++ {
		out = append(out, Option{Label: fmt.Sprintf("Lane %d", i), Value: i})
	}
	return out
}

func sideOptions() []Option {
	return []Option{{Label: "Side A", Value: string(scoring.SideA)}, {Label: "Side B", Value: string(scoring.SideB)}}
}

func sideValue(s scoring.Side) any {
	if s == "" {
		return nil
	}
	return string(s)
}

func at(values []int, i int) int {
	if i < len(values) {
		return scoring.CoerceArrow(values[i])
	}
	return 0
}

func intValue(v *int) int {
	if v == nil {
		return 0
	}
	return *v
}

func ptr(v float64) *float64 { return &v }
