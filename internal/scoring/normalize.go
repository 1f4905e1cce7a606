package scoring

import (
	"fmt"
	"math"
	"strings"
)

// Submission is the canonical payload persisted for a score.
type Submission struct {
	Value      *float64       `json:"value,omitempty"`
	HeatNumber *int           `json:"heat_number,omitempty"`
	Lane       *int           `json:"lane,omitempty"`
	Notes      string         `json:"notes,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

// Canonical units per rule type.
const (
	UnitMeters  = "m"
	UnitSeconds = "s"
	UnitPoints  = "points"
	UnitSets    = "sets"
)

// Normalize converts raw form values into one canonical number plus metadata.
// This is the only place where compound inputs are converted: meters and
// centimeters become decimal meters, minutes/seconds/centiseconds become
// decimal seconds. Out-of-range inputs count as zero; the bounds are those of
// the rule's schema. Heat and lane are taken as given so callers can reject
// a lane outside the layout instead of silently dropping it.
func Normalize(values FormState, rule *Rule) (Submission, error) {
	if values == nil {
		return Submission{}, fmt.Errorf("score values required")
	}
	sub := Submission{Notes: strings.TrimSpace(values.String("notes")), Metadata: map[string]any{}}
	if h, ok := values.Int("heat"); ok && h > 0 {
		sub.HeatNumber = &h
	}
	if l, ok := values.Int("lane"); ok && l > 0 {
		sub.Lane = &l
	}
	values = SchemaFor(rule).Coerce(values)
	var params Params
	if rule != nil {
		params = rule.Params
	}
	switch p := params.(type) {
	case DistanceParams:
		normalizeDistance(values, p, &sub)
	case TimeParams:
		normalizeTime(values, &sub)
	case AttemptsParams:
		normalizeAttempts(values, p, rule.BaseScoring, &sub)
	case SetsParams:
		normalizeSets(values, p, &sub)
	case ArrowsParams:
		normalizeArrows(values, p, &sub)
	default:
		sub.Metadata["unit"] = UnitPoints
		setScore(values, &sub)
	}
	if len(sub.Metadata) == 0 {
		sub.Metadata = nil
	}
	return sub, nil
}

func setScore(values FormState, sub *Submission) {
	if v, ok := values.Float("score"); ok {
		if v < 0 {
			v = 0
		}
		sub.Value = &v
	}
}

func setValue(v float64, sub *Submission) {
	sub.Value = &v
}

func normalizeDistance(values FormState, p DistanceParams, sub *Submission) {
	sub.Metadata["unit"] = UnitMeters
	_, hasMeters := values["meters"]
	_, hasCm := values["centimeters"]
	if p.SplitCentimeters() || hasMeters || hasCm {
		m, _ := values.Int("meters")
		cm, _ := values.Int("centimeters")
		setValue(DistanceValue(m, cm), sub)
		return
	}
	setScore(values, sub)
}

// DistanceValue combines meters and centimeters into decimal meters.
func DistanceValue(meters, centimeters int) float64 {
	return round(float64(meters)+float64(centimeters)/100, 2)
}

// SplitDistance recovers meters and centimeters from decimal meters.
func SplitDistance(v float64) (int, int) {
	m := math.Floor(v)
	return int(m), int(math.Round((v - m) * 100))
}

func normalizeTime(values FormState, sub *Submission) {
	sub.Metadata["unit"] = UnitSeconds
	_, hasMin := values["minutes"]
	_, hasSec := values["seconds"]
	_, hasMs := values["milliseconds"]
	if !hasMin && !hasSec && !hasMs {
		setScore(values, sub)
		return
	}
	mins, _ := values.Int("minutes")
	secs, _ := values.Int("seconds")
	cs, _ := values.Int("milliseconds")
	v := TimeValue(mins, secs, cs)
	setValue(v, sub)
	sub.Metadata["display"] = FormatTime(v)
}

// TimeValue converts minutes, seconds and centiseconds to decimal seconds.
func TimeValue(minutes, seconds, centiseconds int) float64 {
	return round(float64(minutes*60+seconds)+float64(centiseconds)/100, 2)
}

// FormatTime renders decimal seconds as mm:ss.SS.
func FormatTime(v float64) string {
	total := int(math.Round(v * 100))
	return fmt.Sprintf("%02d:%02d.%02d", total/6000, (total/100)%60, total%100)
}

func normalizeAttempts(values FormState, p AttemptsParams, base RuleType, sub *Submission) {
	var attempts []float64
	for i, item := range values.List("attempts") {
		if i >= p.AttemptCount {
			break
		}
		v, ok := attemptValue(item, base)
		if !ok {
			attempts = append(attempts, 0)
			continue
		}
		attempts = append(attempts, v)
		if sub.Lane == nil {
			if l, ok := item.Int("lane"); ok && l > 0 {
				sub.Lane = &l
			}
		}
	}
	sub.Metadata["attempts"] = attempts
	switch base {
	case RuleTime:
		sub.Metadata["unit"] = UnitSeconds
	case RuleDistance:
		sub.Metadata["unit"] = UnitMeters
	default:
		sub.Metadata["unit"] = UnitPoints
	}
	if best, ok := BestAttempt(attempts, base); ok {
		setValue(best, sub)
		return
	}
	setScore(values, sub)
}

func attemptValue(item FormState, base RuleType) (float64, bool) {
	switch {
	case base == RuleTime && (item["minutes"] != nil || item["seconds"] != nil):
		m, _ := item.Float("minutes")
		s, _ := item.Float("seconds")
		cs, _ := item.Float("milliseconds")
		return TimeValue(clampInt(m, 0, -1), clampInt(s, 0, 59), clampInt(cs, 0, 99)), true
	case base == RuleDistance && (item["meters"] != nil || item["centimeters"] != nil):
		m, _ := item.Float("meters")
		cm, _ := item.Float("centimeters")
		return DistanceValue(clampInt(m, 0, -1), clampInt(cm, 0, DefaultMaxSubunit)), true
	}
	v, ok := item.Float("value")
	if !ok || v < 0 {
		return 0, ok
	}
	return v, true
}

// BestAttempt picks the fastest positive time, or the largest value otherwise.
func BestAttempt(attempts []float64, base RuleType) (float64, bool) {
	best, found := 0.0, false
	for _, a := range attempts {
		if a <= 0 {
			continue
		}
		if !found || (base == RuleTime && a < best) || (base != RuleTime && a > best) {
			best, found = a, true
		}
	}
	if !found && len(attempts) > 0 {
		return 0, true
	}
	return best, found
}

func normalizeSets(values FormState, p SetsParams, sub *Submission) {
	entries := SetEntries(values)
	if len(entries) == 0 {
		sub.Metadata["unit"] = UnitSets
		setScore(values, sub)
		return
	}
	outcome := EvaluateSets(p, entries)
	sub.Metadata["sets"] = outcome.Sets
	if p.PointsMode() {
		sub.Metadata["unit"] = UnitPoints
		setValue(float64(outcome.TotalPoints), sub)
		return
	}
	sub.Metadata["unit"] = UnitSets
	sub.Metadata["setsWonA"] = outcome.SetsWonA
	sub.Metadata["setsWonB"] = outcome.SetsWonB
	sub.Metadata["finished"] = outcome.Finished
	if outcome.Winner != "" {
		sub.Metadata["winner"] = string(outcome.Winner)
	}
	setValue(float64(outcome.SetsWonA), sub)
}

func normalizeArrows(values FormState, p ArrowsParams, sub *Submission) {
	sub.Metadata["unit"] = UnitPoints
	if in, ok := EliminationFromForm(values); ok {
		res := EvaluateElimination(p, in)
		sub.Metadata["phase"] = "elimination"
		sub.Metadata["elimination"] = res
		setValue(float64(res.MatchPointsA), sub)
		return
	}
	if _, ok := values["arrows"]; ok {
		arrows := p.ClassificationArrows(values.Ints("arrows"))
		sub.Metadata["phase"] = "classification"
		sub.Metadata["arrows"] = arrows
		setValue(float64(ClassificationTotal(arrows)), sub)
		return
	}
	setScore(values, sub)
}
