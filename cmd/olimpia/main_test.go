package main

import "testing"

func TestParseValuesMergesJSONAndPairs(t *testing.T) {
	got, err := parseValues(`{"heat":1,"notes":"x"}`, []string{"meters=7", "centimeters=45", "lane=", "fast=true", "wind=1.5", "notes=windy"})
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if got["heat"] != float64(1) {
		t.Fatalf("json numbers decode as float64, got %#v", got["heat"])
	}
	if got["meters"] != 7 || got["centimeters"] != 45 {
		t.Fatalf("pairs should be ints: %#v", got)
	}
	if got["fast"] != true || got["wind"] != 1.5 || got["notes"] != "windy" || got["lane"] != "" {
		t.Fatalf("unexpected values %#v", got)
	}
}

func TestParseValuesRejectsMalformedInput(t *testing.T) {
	if _, err := parseValues(`{"heat":`, nil); err == nil {
		t.Fatalf("broken json should fail")
	}
	if _, err := parseValues("", []string{"novalue"}); err == nil {
		t.Fatalf("pair without = should fail")
	}
	if _, err := parseValues("", []string{"=3"}); err == nil {
		t.Fatalf("pair without key should fail")
	}
}
