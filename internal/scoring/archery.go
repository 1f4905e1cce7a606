package scoring

// ArrowZones are the selectable zone values when no phases are configured.
var ArrowZones = []int{10, 9, 8, 7, 6, 5, 0}

// ClassificationArrows keeps the configured number of arrows, each coerced
// to 0..10. Both the stored total and the running total use it.
func (p ArrowsParams) ClassificationArrows(arrows []int) []int {
	if len(arrows) > p.ClassificationArrowCount {
		arrows = arrows[:p.ClassificationArrowCount]
	}
	out := make([]int, len(arrows))
	for i, a := range arrows {
		out[i] = CoerceArrow(a)
	}
	return out
}

// CoerceArrow keeps 0..10 and maps anything else to a miss.
func CoerceArrow(v int) int {
	if v < 0 || v > 10 {
		return 0
	}
	return v
}

// ClassificationTotal sums arrows after coercion.
func ClassificationTotal(arrows []int) int {
	total := 0
	for _, a := range arrows {
		total += CoerceArrow(a)
	}
	return total
}

// ArcherySet holds both archers' arrows for one elimination set. A side with
// fewer than arrowsPerSet arrows has not shot the set yet.
type ArcherySet struct {
	ArrowsA []int `json:"arrowsA"`
	ArrowsB []int `json:"arrowsB"`
}

type EliminationInput struct {
	Sets      []ArcherySet `json:"sets"`
	ShootOffA *int         `json:"shootOffA,omitempty"`
	ShootOffB *int         `json:"shootOffB,omitempty"`
}

type SetResult struct {
	Index    int  `json:"index"`
	TotalA   int  `json:"totalA"`
	TotalB   int  `json:"totalB"`
	PointsA  int  `json:"pointsA"`
	PointsB  int  `json:"pointsB"`
	Winner   Side `json:"winner,omitempty"`
	Shot     bool `json:"shot"`
	Disabled bool `json:"disabled"`
}

type EliminationResult struct {
	Sets             []SetResult `json:"sets"`
	MatchPointsA     int         `json:"matchPointsA"`
	MatchPointsB     int         `json:"matchPointsB"`
	CombatFinished   bool        `json:"combatFinished"`
	ShootOffRequired bool        `json:"shootOffRequired"`
	Winner           Side        `json:"winner,omitempty"`
}

// TotalMatchPoints is the leading side's match score.
func (r EliminationResult) TotalMatchPoints() int {
	if r.MatchPointsA > r.MatchPointsB {
		return r.MatchPointsA
	}
	return r.MatchPointsB
}

// EvaluateElimination scores a set-system match. Each shot set awards
// setWinPoints to the higher total or setTiePoints to both on a tie. The
// combat finishes when a side reaches matchWinPoints. When both sides sit one
// point short and shoot-offs are allowed, a single arrow each decides it;
// equal shoot-off arrows leave the match open.
func EvaluateElimination(p ArrowsParams, in EliminationInput) EliminationResult {
	p = p.bounded().(ArrowsParams)
	out := EliminationResult{Sets: make([]SetResult, p.SetsPerMatch)}
	for i := range out.Sets {
		res := SetResult{Index: i}
		if out.CombatFinished {
			res.Disabled = true
			out.Sets[i] = res
			continue
		}
		if i < len(in.Sets) {
			s := in.Sets[i]
			res.Shot = len(s.ArrowsA) >= p.ArrowsPerSet && len(s.ArrowsB) >= p.ArrowsPerSet
			res.TotalA = ClassificationTotal(firstN(s.ArrowsA, p.ArrowsPerSet))
			res.TotalB = ClassificationTotal(firstN(s.ArrowsB, p.ArrowsPerSet))
		}
		if res.Shot {
			switch {
			case res.TotalA > res.TotalB:
				res.PointsA, res.Winner = p.SetWinPoints, SideA
			case res.TotalB > res.TotalA:
				res.PointsB, res.Winner = p.SetWinPoints, SideB
			default:
				res.PointsA, res.PointsB = p.SetTiePoints, p.SetTiePoints
			}
			out.MatchPointsA += res.PointsA
			out.MatchPointsB += res.PointsB
		}
		out.Sets[i] = res
		out.settle(p)
	}
	threshold := p.ShootOffThreshold()
	if !out.CombatFinished && p.AllowsShootOff && threshold > 0 &&
		out.MatchPointsA == threshold && out.MatchPointsB == threshold {
		out.ShootOffRequired = true
		if in.ShootOffA != nil && in.ShootOffB != nil {
			a, b := CoerceArrow(*in.ShootOffA), CoerceArrow(*in.ShootOffB)
			switch {
			case a > b:
				out.MatchPointsA++
			case b > a:
				out.MatchPointsB++
			}
			out.settle(p)
		}
	}
	return out
}

func (r *EliminationResult) settle(p ArrowsParams) {
	if r.CombatFinished {
		return
	}
	switch {
	case r.MatchPointsA >= p.MatchWinPoints:
		r.CombatFinished, r.Winner = true, SideA
	case r.MatchPointsB >= p.MatchWinPoints:
		r.CombatFinished, r.Winner = true, SideB
	}
}

// EliminationFromForm reads the "elimination" object of a form.
func EliminationFromForm(values FormState) (EliminationInput, bool) {
	raw, ok := values["elimination"].(map[string]any)
	if !ok {
		return EliminationInput{}, false
	}
	elim := FormState(raw)
	var in EliminationInput
	for _, s := range elim.List("sets") {
		in.Sets = append(in.Sets, ArcherySet{ArrowsA: s.Ints("arrowsA"), ArrowsB: s.Ints("arrowsB")})
	}
	if v, ok := elim.Int("shootOffA"); ok {
		in.ShootOffA = &v
	}
	if v, ok := elim.Int("shootOffB"); ok {
		in.ShootOffB = &v
	}
	return in, true
}

func firstN(arrows []int, n int) []int {
	if len(arrows) > n {
		return arrows[:n]
	}
	return arrows
}
