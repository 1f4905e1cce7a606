package scoring

import (
	"reflect"
	"testing"

	"olimpia/internal/domain"
)

func rule(t *testing.T, ruleType string, params map[string]any) *Rule {
	t.Helper()
	r := ParseRule(domain.RuleRecord{ModalityID: "mod-1", RuleType: ruleType, Parameters: params})
	return &r
}

func TestSynthesizeFieldTable(t *testing.T) {
	cases := []struct {
		name   string
		rt     string
		params map[string]any
		want   []string
	}{
		{"time", "time", nil, []string{"minutes", "seconds", "milliseconds", "notes"}},
		{"time heats", "time", map[string]any{"usesHeats": true}, []string{"heat", "lane", "minutes", "seconds", "milliseconds", "notes"}},
		{"distance", "distance", map[string]any{"subunit": "cm"}, []string{"meters", "centimeters", "notes"}},
		{"distance heats", "distance", map[string]any{"usesHeats": true}, []string{"heat", "lane", "meters", "centimeters", "notes"}},
		{"points", "points", nil, []string{"score", "notes"}},
		{"points heats", "points", map[string]any{"usesHeats": true}, []string{"heat", "lane", "score", "notes"}},
		{"sets", "sets", map[string]any{"bestOf": 5}, []string{"score", "notes"}},
		{"arrows heats", "arrows", map[string]any{"usesHeats": "true"}, []string{"heat", "lane", "score", "notes"}},
		{"attempts", "heats", map[string]any{"attemptCount": 3}, []string{"score", "notes"}},
		{"unknown", "unknown", map[string]any{"usesHeats": true}, []string{"score", "notes"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := rule(t, tc.rt, tc.params)
			got := SchemaFor(r).Names()
			if !reflect.DeepEqual(got, tc.want) {
				t.Fatalf("fields = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestSynthesizeBounds(t *testing.T) {
	s := Synthesize(RuleTime, TimeParams{})
	sec, _ := s.Field("seconds")
	ms, _ := s.Field("milliseconds")
	if *sec.Max != 59 || *ms.Max != 99 {
		t.Fatalf("unexpected time bounds: seconds max %v, milliseconds max %v", *sec.Max, *ms.Max)
	}
	d := SchemaFor(rule(t, "distance", map[string]any{"subunit": "cm"}))
	cm, _ := d.Field("centimeters")
	if *cm.Max != 99 {
		t.Fatalf("centimeters max = %v, want 99", *cm.Max)
	}
	notes, _ := d.Field("notes")
	if !notes.Optional || notes.Kind != KindString {
		t.Fatalf("notes must be an optional string: %+v", notes)
	}
	score, _ := Synthesize("bogus", nil).Field("score")
	if score.Min == nil || *score.Min != 0 {
		t.Fatalf("fallback score must be bounded at zero")
	}
}

func TestCoerceInvalidToZero(t *testing.T) {
	s := Synthesize(RuleTime, TimeParams{})
	got := s.Coerce(FormState{"minutes": 2, "seconds": 75, "milliseconds": "x"})
	if got["minutes"] != 2 || got["seconds"] != 0 || got["milliseconds"] != 0 {
		t.Fatalf("unexpected coercion: %v", got)
	}
}

func TestResolveDefaultsPassThrough(t *testing.T) {
	existing := FormState{"score": 12.5, "notes": "kept"}
	for _, r := range []*Rule{nil, rule(t, "time", nil), rule(t, "sets", nil), rule(t, "unknown", nil)} {
		got := ResolveDefaults(existing, r)
		if !reflect.DeepEqual(got, existing) {
			t.Fatalf("defaults changed existing values: %v", got)
		}
	}
}

func TestResolveDefaultsByType(t *testing.T) {
	if got := ResolveDefaults(nil, nil); !reflect.DeepEqual(got, FormState{"score": 0, "notes": ""}) {
		t.Fatalf("no rule: %v", got)
	}
	if got := ResolveDefaults(nil, rule(t, "time", nil)); got["minutes"] != 0 || got["milliseconds"] != 0 || got["notes"] != "" {
		t.Fatalf("time: %v", got)
	}
	if got := ResolveDefaults(nil, rule(t, "distance", map[string]any{"subunit": "cm"})); got["meters"] != 0 || got["centimeters"] != 0 {
		t.Fatalf("distance cm: %v", got)
	}
	if got := ResolveDefaults(nil, rule(t, "distance", nil)); got["score"] != 0 {
		t.Fatalf("distance: %v", got)
	}
	attempts := ResolveDefaults(nil, rule(t, "heats", nil))["attempts"].([]any)
	if len(attempts) != 3 || attempts[0].(map[string]any)["lane"] != "" {
		t.Fatalf("attempts: %v", attempts)
	}
	volley := ResolveDefaults(nil, rule(t, "sets", map[string]any{"bestOf": 5, "pointsPerSet": 25}))["sets"].([]any)
	if len(volley) != 5 {
		t.Fatalf("expected 5 sets, got %d", len(volley))
	}
	if _, ok := volley[0].(map[string]any)["teamPointsA"]; !ok {
		t.Fatalf("volleyball sets need team points: %v", volley[0])
	}
	perSet := ResolveDefaults(nil, rule(t, "sets", map[string]any{"scorePerSet": true}))["sets"].([]any)
	if !reflect.DeepEqual(perSet[0], map[string]any{"points": 0}) {
		t.Fatalf("points per set: %v", perSet[0])
	}
	plain := ResolveDefaults(nil, rule(t, "sets", nil))["sets"].([]any)
	if !reflect.DeepEqual(plain[0], map[string]any{"winner": nil}) {
		t.Fatalf("win/loss set: %v", plain[0])
	}
	if arrows := ResolveDefaults(nil, rule(t, "arrows", nil))["arrows"].([]any); len(arrows) != 6 {
		t.Fatalf("expected 6 zone arrows without phases, got %d", len(arrows))
	}
	if arrows := ResolveDefaults(nil, rule(t, "arrows", map[string]any{"hasClassificationPhase": true}))["arrows"].([]any); len(arrows) != 72 {
		t.Fatalf("expected 72 classification arrows, got %d", len(arrows))
	}
}

func TestNormalizeDistanceRoundTrip(t *testing.T) {
	r := rule(t, "distance", map[string]any{"subunit": "cm"})
	sub, err := Normalize(FormState{"meters": 1, "centimeters": 50}, r)
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if sub.Value == nil || *sub.Value != 1.5 {
		t.Fatalf("value = %v, want 1.5", sub.Value)
	}
	if _, ok := sub.Metadata["meters"]; ok {
		t.Fatalf("raw meters must not be persisted")
	}
	m, cm := SplitDistance(*sub.Value)
	if m != 1 || cm != 50 {
		t.Fatalf("split = %d,%d want 1,50", m, cm)
	}
}

func TestNormalizeTime(t *testing.T) {
	r := rule(t, "time", map[string]any{"usesHeats": true})
	sub, err := Normalize(FormState{"heat": 2, "lane": "4", "minutes": 1, "seconds": 5, "milliseconds": 7}, r)
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if *sub.Value != 65.07 {
		t.Fatalf("value = %v, want 65.07", *sub.Value)
	}
	if *sub.HeatNumber != 2 || *sub.Lane != 4 {
		t.Fatalf("heat/lane = %v/%v", *sub.HeatNumber, *sub.Lane)
	}
	if sub.Metadata["display"] != "01:05.07" {
		t.Fatalf("display = %v", sub.Metadata["display"])
	}
	bad, _ := Normalize(FormState{"minutes": 0, "seconds": 61, "milliseconds": 150}, r)
	if *bad.Value != 0 {
		t.Fatalf("out of range time must be zero, got %v", *bad.Value)
	}
}

func TestNormalizeAttemptsBest(t *testing.T) {
	timed := ParseRule(domain.RuleRecord{ModalityID: "m", RuleType: "heats", BaseScoring: "time", Parameters: map[string]any{"attemptCount": 3}})
	sub, _ := Normalize(FormState{"attempts": []any{
		map[string]any{"value": 12.4, "lane": "2"},
		map[string]any{"value": 11.9},
		map[string]any{"value": 0},
	}}, &timed)
	if *sub.Value != 11.9 || *sub.Lane != 2 {
		t.Fatalf("best time = %v lane %v", *sub.Value, sub.Lane)
	}
	thrown := rule(t, "heats", nil)
	sub, _ = Normalize(FormState{"attempts": []any{map[string]any{"value": 40.5}, map[string]any{"value": 42.1}}}, thrown)
	if *sub.Value != 42.1 {
		t.Fatalf("best distance = %v", *sub.Value)
	}
}

func TestNormalizeSetsAndArrows(t *testing.T) {
	sets := rule(t, "sets", map[string]any{"bestOf": 3})
	sub, _ := Normalize(FormState{"sets": []any{
		map[string]any{"winner": "A"},
		map[string]any{"winner": "a"},
		map[string]any{"winner": "B"},
	}}, sets)
	if *sub.Value != 2 || sub.Metadata["finished"] != true || sub.Metadata["winner"] != "A" {
		t.Fatalf("sets submission: value %v meta %v", *sub.Value, sub.Metadata)
	}
	arrows := rule(t, "arrows", map[string]any{"hasClassificationPhase": true, "classificationArrowCount": 6})
	sub, _ = Normalize(FormState{"arrows": []any{10, 9, 11, -1, 8, 7}}, arrows)
	if *sub.Value != 34 {
		t.Fatalf("classification total = %v, want 34", *sub.Value)
	}
}

func TestVolleyballAutoWin(t *testing.T) {
	p := rule(t, "sets", map[string]any{"bestOf": 5, "pointsPerSet": 25, "finalSetPoints": 15, "minAdvantage": 2}).Params.(SetsParams)
	cases := []struct {
		a, b, idx int
		want      Side
	}{
		{25, 23, 0, SideA},
		{25, 20, 0, SideA},
		{25, 24, 0, ""},
		{26, 24, 0, SideA},
		{24, 26, 1, SideB},
		{15, 13, 4, SideA},
		{15, 13, 3, ""},
	}
	for _, tc := range cases {
		if got := DecideVolleyballSet(p, tc.idx, tc.a, tc.b); got != tc.want {
			t.Fatalf("set %d %d-%d: got %q want %q", tc.idx, tc.a, tc.b, got, tc.want)
		}
	}
}

func TestEvaluateSetsIncrementalReveal(t *testing.T) {
	p := rule(t, "sets", map[string]any{"bestOf": 5}).Params.(SetsParams)
	out := EvaluateSets(p, []SetEntry{{Winner: SideA}})
	if !out.Sets[1].Visible || out.Sets[2].Visible {
		t.Fatalf("only the next undecided set should be visible: %+v", out.Sets)
	}
	out = EvaluateSets(p, []SetEntry{{Winner: SideA}, {Winner: SideA}, {Winner: SideA}, {Winner: SideB}})
	if !out.Finished || out.Winner != SideA || out.SetsWonA != 3 {
		t.Fatalf("expected finished match for A: %+v", out)
	}
	if !out.Sets[3].Disabled || out.Sets[3].Winner != "" || out.SetsWonB != 0 {
		t.Fatalf("sets after the decision must be disabled: %+v", out.Sets[3])
	}
}

func TestEliminationMatchPoints(t *testing.T) {
	p := rule(t, "arrows", map[string]any{"hasEliminationPhase": true}).Params.(ArrowsParams)
	won := ArcherySet{ArrowsA: []int{10, 10, 9}, ArrowsB: []int{9, 8, 8}}
	res := EvaluateElimination(p, EliminationInput{Sets: []ArcherySet{won, won, won}})
	if res.TotalMatchPoints() < 6 || !res.CombatFinished || res.Winner != SideA {
		t.Fatalf("expected finished combat: %+v", res)
	}
	if !res.Sets[3].Disabled {
		t.Fatalf("set after combat end must be disabled")
	}
	tie := ArcherySet{ArrowsA: []int{9, 9, 9}, ArrowsB: []int{9, 9, 9}}
	res = EvaluateElimination(p, EliminationInput{Sets: []ArcherySet{tie, tie}})
	if res.MatchPointsA != 2 || res.MatchPointsB != 2 || res.CombatFinished {
		t.Fatalf("tied sets: %+v", res)
	}
}

func TestEliminationShootOff(t *testing.T) {
	p := rule(t, "arrows", map[string]any{"hasEliminationPhase": true, "allowsShootOff": true}).Params.(ArrowsParams)
	a := ArcherySet{ArrowsA: []int{10, 10, 10}, ArrowsB: []int{9, 9, 9}}
	b := ArcherySet{ArrowsA: []int{9, 9, 9}, ArrowsB: []int{10, 10, 10}}
	tie := ArcherySet{ArrowsA: []int{9, 9, 9}, ArrowsB: []int{9, 9, 9}}
	sets := []ArcherySet{a, b, a, b, tie}
	res := EvaluateElimination(p, EliminationInput{Sets: sets})
	if !res.ShootOffRequired || res.CombatFinished {
		t.Fatalf("5-5 must require a shoot-off: %+v", res)
	}
	ten, nine := 10, 9
	res = EvaluateElimination(p, EliminationInput{Sets: sets, ShootOffA: &nine, ShootOffB: &ten})
	if !res.CombatFinished || res.Winner != SideB {
		t.Fatalf("shoot-off should decide for B: %+v", res)
	}
	res = EvaluateElimination(p, EliminationInput{Sets: sets, ShootOffA: &ten, ShootOffB: &ten})
	if res.CombatFinished {
		t.Fatalf("equal shoot-off arrows leave the match open")
	}
	p.AllowsShootOff = false
	if EvaluateElimination(p, EliminationInput{Sets: sets}).ShootOffRequired {
		t.Fatalf("shoot-off disabled by parameters")
	}
}

func TestParseArrowText(t *testing.T) {
	got := ParseArrowText("10, 9, miss 8", 6)
	if !reflect.DeepEqual(got, []int{10, 9, 0, 8, 0, 0}) {
		t.Fatalf("got %v", got)
	}
	got = ParseArrowText("MISS\n11 x -2 7,7", 4)
	if !reflect.DeepEqual(got, []int{0, 0, 0, 0}) {
		t.Fatalf("got %v", got)
	}
	if got := ParseArrowText("1 2 3 4", 2); !reflect.DeepEqual(got, []int{1, 2}) {
		t.Fatalf("truncate: %v", got)
	}
}

func TestUnknownRuleTypeFallsBack(t *testing.T) {
	r := rule(t, "unknown", map[string]any{"whatever": 1})
	if names := SchemaFor(r).Names(); !reflect.DeepEqual(names, []string{"score", "notes"}) {
		t.Fatalf("schema fallback: %v", names)
	}
	if got := ResolveDefaults(nil, r); !reflect.DeepEqual(got, FormState{"score": 0, "notes": ""}) {
		t.Fatalf("defaults fallback: %v", got)
	}
	sub, err := Normalize(FormState{"score": "7.5"}, r)
	if err != nil || *sub.Value != 7.5 {
		t.Fatalf("normalize fallback: %v %v", sub.Value, err)
	}
	if err := r.Validate(); err == nil {
		t.Fatalf("unknown type must be rejected on write")
	}
}

func TestValidateSets(t *testing.T) {
	for _, bestOf := range []int{2, 9} {
		if _, err := NewRule(domain.RuleRecord{ModalityID: "m", RuleType: "sets", Parameters: map[string]any{"bestOf": bestOf}}); err == nil {
			t.Fatalf("bestOf %d must be rejected", bestOf)
		}
	}
	r, err := NewRule(domain.RuleRecord{ModalityID: "m", RuleType: "sets", Parameters: map[string]any{"bestOf": "5", "extra": "kept"}})
	if err != nil {
		t.Fatalf("valid rule rejected: %v", err)
	}
	p := r.Params.(SetsParams)
	if p.SetsToWin != 3 || r.Parameters["extra"] != "kept" {
		t.Fatalf("unexpected parse: %+v %v", p, r.Parameters)
	}
}

func TestStoredRulesWithBadCountsDegrade(t *testing.T) {
	cases := []struct {
		name    string
		rt      string
		params  map[string]any
		key     string
		want    int
		invalid bool
	}{
		{"negative bestOf", "sets", map[string]any{"bestOf": -1}, "sets", DefaultBestOf, true},
		{"oversized bestOf", "sets", map[string]any{"bestOf": 99, "setsToWin": 50}, "sets", DefaultBestOf, true},
		{"even bestOf", "sets", map[string]any{"bestOf": 4}, "sets", DefaultBestOf, true},
		{"negative attempts", "heats", map[string]any{"attemptCount": -2}, "attempts", DefaultAttemptCount, false},
		{"oversized attempts", "heats", map[string]any{"attemptCount": 5000}, "attempts", DefaultAttemptCount, true},
		{"negative arrows", "arrows", map[string]any{"classificationArrowCount": -5}, "arrows", DefaultZoneArrows, false},
		{"oversized arrows", "arrows", map[string]any{"hasClassificationPhase": true, "classificationArrowCount": 100000}, "arrows", DefaultClassificationArrows, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := rule(t, tc.rt, tc.params)
			if err := r.Validate(); (err != nil) != tc.invalid {
				t.Fatalf("validate %v: got %v, want invalid=%v", tc.params, err, tc.invalid)
			}
			got := ResolveDefaults(nil, r)
			items, ok := got[tc.key].([]any)
			if !ok || len(items) != tc.want {
				t.Fatalf("%s: want %d entries, got %v", tc.key, tc.want, got[tc.key])
			}
			if sp, ok := r.Params.(SetsParams); ok {
				out := EvaluateSets(sp, []SetEntry{{Winner: SideA}})
				if len(out.Sets) != DefaultBestOf || sp.SetsToWin < 1 || sp.SetsToWin > sp.BestOf {
					t.Fatalf("unexpected sets outcome %+v for %+v", out, sp)
				}
			}
		})
	}
}

func TestEvaluateWithUnboundedParams(t *testing.T) {
	out := EvaluateSets(SetsParams{BestOf: -3}, nil)
	if len(out.Sets) != DefaultBestOf {
		t.Fatalf("negative bestOf should fall back to %d sets, got %d", DefaultBestOf, len(out.Sets))
	}
	res := EvaluateElimination(ArrowsParams{SetsPerMatch: -1}, EliminationInput{})
	if len(res.Sets) != DefaultSetsPerMatch {
		t.Fatalf("negative setsPerMatch should fall back to %d sets, got %d", DefaultSetsPerMatch, len(res.Sets))
	}
}

func TestNormalizeUsesSchemaBounds(t *testing.T) {
	sub, err := Normalize(FormState{"minutes": 1, "seconds": 75, "milliseconds": "x"}, rule(t, "time", nil))
	if err != nil || sub.Value == nil || *sub.Value != 60 {
		t.Fatalf("out-of-range seconds should count as zero: %+v %v", sub, err)
	}
	sub, _ = Normalize(FormState{"minutes": 0, "seconds": 59.6}, rule(t, "time", nil))
	if sub.Value == nil || *sub.Value != 0 {
		t.Fatalf("seconds rounding to 60 should count as zero: %+v", sub)
	}
	d := rule(t, "distance", map[string]any{"subunit": "cm", "maxSubunit": 50})
	sub, _ = Normalize(FormState{"meters": 6, "centimeters": 60}, d)
	if sub.Value == nil || *sub.Value != 6 {
		t.Fatalf("centimeters above maxSubunit should count as zero: %+v", sub)
	}
	sub, _ = Normalize(FormState{"score": -4}, rule(t, "points", nil))
	if sub.Value == nil || *sub.Value != 0 {
		t.Fatalf("negative score should count as zero: %+v", sub)
	}
	lanes := rule(t, "time", map[string]any{"usesHeats": true, "lanesPerHeat": 6})
	sub, _ = Normalize(FormState{"heat": 1, "lane": 9, "seconds": 20}, lanes)
	if sub.Lane == nil || *sub.Lane != 9 {
		t.Fatalf("lane must be kept for the caller to reject: %+v", sub)
	}
}

func TestClassificationArrowsTruncates(t *testing.T) {
	p := ArrowsParams{HasClassificationPhase: true, ClassificationArrowCount: 3}
	got := p.ClassificationArrows([]int{10, 12, 9, 10, 10})
	if !reflect.DeepEqual(got, []int{10, 0, 9}) {
		t.Fatalf("unexpected arrows %v", got)
	}
}
