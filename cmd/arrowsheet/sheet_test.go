package main

import (
	"bytes"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"
)

const sample = `# classificacao 2024
ana: 10 10 9 miss
bia: 10, 9, 9, 9

caio: 9 9 10 10
duda: 12 x 10
`

func TestParseSheetAppliesArrowRules(t *testing.T) {
	archers, err := ParseSheet(strings.NewReader(sample), 4)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(archers) != 4 {
		t.Fatalf("expected 4 archers, got %d", len(archers))
	}
	duda := archers[3]
	if duda.Total != 10 || len(duda.Arrows) != 4 || duda.Arrows[0] != 0 {
		t.Fatalf("out of range tokens must score zero: %+v", duda)
	}
}

func TestRankBreaksTiesByTensThenShares(t *testing.T) {
	archers, err := ParseSheet(strings.NewReader(sample+"edu: 10 9 9 10\n"), 4)
	if err != nil {
		t.Fatal(err)
	}
	Rank(archers)
	got := map[string]int{}
	for _, a := range archers {
		got[a.Athlete] = a.Rank
	}
	// caio and edu: 38 with two tens; bia 37; ana 29; duda 10
	want := map[string]int{"caio": 1, "edu": 1, "bia": 3, "ana": 4, "duda": 5}
	for name, rank := range want {
		if got[name] != rank {
			t.Fatalf("rank of %s = %d, want %d (all %v)", name, got[name], rank, got)
		}
	}
}

func TestParseSheetRejectsBadLines(t *testing.T) {
	if _, err := ParseSheet(strings.NewReader("ana 10 10\n"), 2); err == nil || !strings.Contains(err.Error(), "line 1") {
		t.Fatalf("missing colon should fail with line number, got %v", err)
	}
	if _, err := ParseSheet(strings.NewReader("ana: 1\nana: 2\n"), 1); err == nil {
		t.Fatalf("duplicate athlete should fail")
	}
}

func TestConvertWritesYAML(t *testing.T) {
	var out bytes.Buffer
	if err := convert(strings.NewReader("ana: 10 9\nbia: 10 10\n"), &out, Sheet{Modality: "tiro-com-arco", ArrowCount: 2}); err != nil {
		t.Fatalf("convert: %v", err)
	}
	if !strings.Contains(out.String(), "arrows: [10, 10]") {
		t.Fatalf("arrows should use flow style:\n%s", out.String())
	}
	var sheet Sheet
	if err := yaml.Unmarshal(out.Bytes(), &sheet); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if sheet.Modality != "tiro-com-arco" || len(sheet.Archers) != 2 || sheet.Archers[0].Athlete != "bia" || sheet.Archers[0].Total != 20 {
		t.Fatalf("unexpected sheet %+v", sheet)
	}
}
