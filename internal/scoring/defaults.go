package scoring

// ResolveDefaults returns the initial form state for a rule. Existing values
// are returned as they are so edits show exactly what was stored.
func ResolveDefaults(existing FormState, rule *Rule) FormState {
	if existing != nil {
		return existing
	}
	state := structuralDefaults(rule)
	state["notes"] = ""
	return state
}

func structuralDefaults(rule *Rule) FormState {
	if rule == nil || rule.Params == nil {
		return FormState{"score": 0}
	}
	switch p := rule.Params.(type) {
	case TimeParams:
		return FormState{"minutes": 0, "seconds": 0, "milliseconds": 0}
	case DistanceParams:
		if p.SplitCentimeters() {
			return FormState{"meters": 0, "centimeters": 0}
		}
		return FormState{"score": 0}
	case AttemptsParams:
		attempts := make([]any, p.AttemptCount)
		for i := range attempts {
			attempts[i] = map[string]any{"value": 0, "lane": ""}
		}
		return FormState{"attempts": attempts}
	case SetsParams:
		sets := make([]any, p.BestOf)
		for i := range sets {
			switch {
			case p.ScorePerSet:
				sets[i] = map[string]any{"points": 0}
			case p.PointsPerSet > 0:
				sets[i] = map[string]any{"winner": nil, "teamPointsA": 0, "teamPointsB": 0}
			default:
				sets[i] = map[string]any{"winner": nil}
			}
		}
		return FormState{"sets": sets}
	case ArrowsParams:
		arrows := make([]any, p.ClassificationArrowCount)
		for i := range arrows {
			arrows[i] = map[string]any{"score": 0}
		}
		return FormState{"arrows": arrows}
	default:
		return FormState{"score": 0}
	}
}
