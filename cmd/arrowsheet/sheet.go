package main

import (
	"bufio"
	"fmt"
	"io"
	"sort"
	"strings"

	"olimpia/internal/scoring"
)

// Archer is one row of the classification sheet.
type Archer struct {
	Rank    int    `yaml:"rank"`
	Athlete string `yaml:"athlete"`
	Total   int    `yaml:"total"`
	Tens    int    `yaml:"tens"`
	Nines   int    `yaml:"nines"`
	Arrows  []int  `yaml:"arrows,flow"`
}

// Sheet is the YAML document written by arrowsheet.
type Sheet struct {
	Modality   string   `yaml:"modality,omitempty"`
	Event      string   `yaml:"event,omitempty"`
	ArrowCount int      `yaml:"arrow_count"`
	Archers    []Archer `yaml:"archers"`
}

// ParseSheet reads one archer per line as "athlete: tokens...". Blank lines
// and lines starting with # are skipped. Tokens follow the classification
// paste rules: "miss" and anything outside 0..10 score zero.
func ParseSheet(r io.Reader, arrowCount int) ([]Archer, error) {
	var out []Archer
	seen := map[string]int{}
	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		name, tokens, ok := strings.Cut(line, ":")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, fmt.Errorf("line %d: expected \"athlete: arrows\"", lineNo)
		}
		if prev, dup := seen[name]; dup {
			return nil, fmt.Errorf("line %d: athlete %q already listed on line %d", lineNo, name, prev)
		}
		seen[name] = lineNo
		arrows := scoring.ParseArrowText(tokens, arrowCount)
		a := Archer{Athlete: name, Arrows: arrows, Total: scoring.ClassificationTotal(arrows)}
		for _, v := range arrows {
			switch v {
			case 10:
				a.Tens++
			case 9:
				a.Nines++
			}
		}
		out = append(out, a)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// Rank orders archers by total, then tens, then nines. Archers tied on all
// three share a rank and the next rank skips accordingly.
func Rank(archers []Archer) {
	sort.SliceStable(archers, func(i, j int) bool {
		a, b := archers[i], archers[j]
		if a.Total != b.Total {
			return a.Total > b.Total
		}
		if a.Tens != b.Tens {
			return a.Tens > b.Tens
		}
		return a.Nines > b.Nines
	})
	for i := range archers {
		if i > 0 && sameScore(archers[i], archers[i-1]) {
			archers[i].Rank = archers[i-1].Rank
			continue
		}
		archers[i].Rank = i + 1
	}
}

func sameScore(a, b Archer) bool {
	return a.Total == b.Total && a.Tens == b.Tens && a.Nines == b.Nines
}
