package scoring

import "strings"

type Side string

const (
	SideA Side = "A"
	SideB Side = "B"
)

// ParseSide accepts A/B in any case, plus the team aliases used by forms.
func ParseSide(v string) Side {
	switch strings.ToUpper(strings.TrimSpace(v)) {
	case "A", "TEAMA", "TEAM_A", "HOME":
		return SideA
	case "B", "TEAMB", "TEAM_B", "AWAY":
		return SideB
	}
	return ""
}

// SetEntry is the raw input of one set.
type SetEntry struct {
	Winner  Side `json:"winner,omitempty"`
	PointsA int  `json:"teamPointsA,omitempty"`
	PointsB int  `json:"teamPointsB,omitempty"`
	Points  int  `json:"points,omitempty"`
}

type SetState struct {
	Index    int  `json:"index"`
	Winner   Side `json:"winner,omitempty"`
	PointsA  int  `json:"teamPointsA"`
	PointsB  int  `json:"teamPointsB"`
	Points   int  `json:"points,omitempty"`
	Visible  bool `json:"visible"`
	Disabled bool `json:"disabled"`
}

type SetsOutcome struct {
	Sets        []SetState `json:"sets"`
	SetsWonA    int        `json:"setsWonA"`
	SetsWonB    int        `json:"setsWonB"`
	TotalPoints int        `json:"totalPoints,omitempty"`
	Finished    bool       `json:"finished"`
	Winner      Side       `json:"winner,omitempty"`
}

// DecideVolleyballSet returns the winner of a set by team points, or "" while
// nobody has reached the target with the required lead. The last set uses
// finalSetPoints when configured.
func DecideVolleyballSet(p SetsParams, index, pointsA, pointsB int) Side {
	target := p.PointsPerSet
	if index == p.BestOf-1 && p.FinalSetPoints > 0 {
		target = p.FinalSetPoints
	}
	if target <= 0 {
		return ""
	}
	switch {
	case pointsA >= target && pointsA-pointsB >= p.MinAdvantage:
		return SideA
	case pointsB >= target && pointsB-pointsA >= p.MinAdvantage:
		return SideB
	}
	return ""
}

// EvaluateSets walks the sets of a match in order. In win/loss mode only the
// next undecided set is visible and the match finishes once a side reaches
// setsToWin; later sets are disabled. Points mode shows every set.
func EvaluateSets(p SetsParams, entries []SetEntry) SetsOutcome {
	p = p.bounded().(SetsParams)
	out := SetsOutcome{Sets: make([]SetState, p.BestOf)}
	if p.PointsMode() {
		for i := range out.Sets {
			st := SetState{Index: i, Visible: true}
			if i < len(entries) && entries[i].Points > 0 {
				st.Points = entries[i].Points
			}
			out.TotalPoints += st.Points
			out.Sets[i] = st
		}
		return out
	}
	previousDecided := true
	for i := range out.Sets {
		st := SetState{Index: i}
		if i < len(entries) {
			e := entries[i]
			st.PointsA, st.PointsB = e.PointsA, e.PointsB
			if p.Volleyball() {
				st.Winner = DecideVolleyballSet(p, i, e.PointsA, e.PointsB)
			} else {
				st.Winner = e.Winner
			}
		}
		switch {
		case out.Finished:
			st.Winner = ""
			st.Disabled = true
		case previousDecided:
			st.Visible = true
		}
		if st.Visible && st.Winner != "" {
			if st.Winner == SideA {
				out.SetsWonA++
			} else {
				out.SetsWonB++
			}
			if out.SetsWonA >= p.SetsToWin {
				out.Finished, out.Winner = true, SideA
			} else if out.SetsWonB >= p.SetsToWin {
				out.Finished, out.Winner = true, SideB
			}
		} else {
			st.Winner = ""
		}
		previousDecided = st.Visible && st.Winner != ""
		out.Sets[i] = st
	}
	return out
}

// SetEntries reads the "sets" array of a form.
func SetEntries(values FormState) []SetEntry {
	var entries []SetEntry
	for _, item := range values.List("sets") {
		e := SetEntry{Winner: ParseSide(item.String("winner"))}
		e.PointsA, _ = item.Int("teamPointsA")
		e.PointsB, _ = item.Int("teamPointsB")
		e.Points, _ = item.Int("points")
		if e.PointsA < 0 {
			e.PointsA = 0
		}
		if e.PointsB < 0 {
			e.PointsB = 0
		}
		if e.Points < 0 {
			e.Points = 0
		}
		entries = append(entries, e)
	}
	return entries
}
