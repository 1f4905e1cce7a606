package engine_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"olimpia/internal/config"
	"olimpia/internal/db"
	"olimpia/internal/domain"
	"olimpia/internal/engine"
	"olimpia/internal/engine/auth"
	"olimpia/internal/events"
	"olimpia/internal/heats"
	"olimpia/internal/migrate"
	"olimpia/internal/repo"
	"olimpia/internal/scoring"
)

const organizer = "organizer"

type testEnv struct {
	Engine engine.Engine
	Ctx    context.Context
}

func newTestEnv(t *testing.T) testEnv {
	t.Helper()
	dir := t.TempDir()
	conn, err := db.Open(db.Config{Workspace: dir})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	if err := migrate.Migrate(conn, db.DriverSQLite); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	cfg := config.Default()
	eng := engine.New(conn, db.DriverSQLite, cfg, nil)
	eng.Now = func() time.Time { return time.Date(2024, 7, 26, 12, 0, 0, 0, time.UTC) }
	ctx := context.Background()
	if err := eng.SeedRBAC(ctx, cfg.RBAC.Roles, organizer); err != nil {
		t.Fatalf("seed rbac: %v", err)
	}
	return testEnv{Engine: eng, Ctx: ctx}
}

func (env testEnv) setRule(t *testing.T, modalityID, ruleType string, params map[string]any) {
	t.Helper()
	if _, err := env.Engine.SetRule(env.Ctx, domain.RuleRecord{ModalityID: modalityID, RuleType: ruleType, Parameters: params}, organizer); err != nil {
		t.Fatalf("set rule %s: %v", modalityID, err)
	}
}

func heatNumbers(list []domain.Heat) []int {
	var out []int
	for _, h := range list {
		out = append(out, h.Number)
	}
	return out
}

func TestSubmitScoreNormalizesAndUpserts(t *testing.T) {
	env := newTestEnv(t)
	env.setRule(t, "long-jump", "distance", map[string]any{"unit": "m", "subunit": "cm"})

	first, err := env.Engine.SubmitScore(env.Ctx, engine.SubmitOptions{
		ModalityID: "long-jump", EventID: "games", AthleteID: "ana", ActorID: organizer,
		Values: scoring.FormState{"meters": 7, "centimeters": 45, "notes": " windy "},
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if first.Value == nil || *first.Value != 7.45 || first.Notes != "windy" {
		t.Fatalf("unexpected score %+v", first)
	}
	second, err := env.Engine.SubmitScore(env.Ctx, engine.SubmitOptions{
		ModalityID: "long-jump", EventID: "games", AthleteID: "ana", ActorID: organizer,
		Values: scoring.FormState{"meters": 7, "centimeters": 50},
	})
	if err != nil {
		t.Fatalf("resubmit: %v", err)
	}
	if second.ID != first.ID || *second.Value != 7.5 {
		t.Fatalf("resubmission should update in place: %+v vs %+v", second, first)
	}
	list, err := env.Engine.ListScores(env.Ctx, engine.ScoreQuery{ModalityID: "long-jump", EventID: "games"})
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 1 || *list[0].Value != 7.5 {
		t.Fatalf("expected one updated score, got %+v", list)
	}
}

func TestScoreListCacheIsInvalidatedOnWrite(t *testing.T) {
	env := newTestEnv(t)
	env.setRule(t, "shot-put", "points", nil)
	q := engine.ScoreQuery{ModalityID: "shot-put", EventID: "games"}
	if list, err := env.Engine.ListScores(env.Ctx, q); err != nil || len(list) != 0 {
		t.Fatalf("expected empty list: %v %v", list, err)
	}
	if _, err := env.Engine.SubmitScore(env.Ctx, engine.SubmitOptions{
		ModalityID: "shot-put", EventID: "games", AthleteID: "bia", ActorID: organizer,
		Values: scoring.FormState{"score": 12},
	}); err != nil {
		t.Fatal(err)
	}
	list, err := env.Engine.ListScores(env.Ctx, q)
	if err != nil || len(list) != 1 {
		t.Fatalf("stale cached list: %v %v", list, err)
	}
}

func TestHeatLifecycle(t *testing.T) {
	env := newTestEnv(t)
	env.setRule(t, "100m", "time", map[string]any{"usesHeats": true, "lanesPerHeat": 8})

	list, err := env.Engine.ListHeats(env.Ctx, "100m", "games")
	if err != nil {
		t.Fatalf("list heats: %v", err)
	}
	if !list.UsesHeats || len(list.Heats) != 1 || list.Heats[0].Number != 1 {
		t.Fatalf("heat 1 should be auto-created, got %+v", list)
	}
	if list, _ = env.Engine.ListHeats(env.Ctx, "100m", "games"); len(list.Heats) != 1 {
		t.Fatalf("second load must not create more heats: %+v", list.Heats)
	}
	h, err := env.Engine.CreateHeat(env.Ctx, "100m", "games", organizer)
	if err != nil || h.Number != 2 {
		t.Fatalf("create heat: %+v %v", h, err)
	}
	final, err := env.Engine.CreateFinalHeat(env.Ctx, "100m", "games", organizer)
	if err != nil || final.Number != heats.FinalHeatNumber || !final.IsFinal {
		t.Fatalf("create final: %+v %v", final, err)
	}
	again, err := env.Engine.CreateFinalHeat(env.Ctx, "100m", "games", organizer)
	if err != nil || again.Number != heats.FinalHeatNumber {
		t.Fatalf("second final should return the existing one: %+v %v", again, err)
	}
	list, err = env.Engine.ListHeats(env.Ctx, "100m", "games")
	if err != nil {
		t.Fatal(err)
	}
	got := heatNumbers(list.Heats)
	if len(got) != 3 || got[0] != 1 || got[1] != 2 || got[2] != heats.FinalHeatNumber || !list.HasFinal {
		t.Fatalf("unexpected heats %v", got)
	}
	next, err := env.Engine.CreateHeat(env.Ctx, "100m", "games", organizer)
	if err != nil || next.Number != 3 {
		t.Fatalf("regular numbering must ignore the final heat: %+v %v", next, err)
	}
}

func TestHeatStatusFollowsScores(t *testing.T) {
	env := newTestEnv(t)
	env.setRule(t, "200m", "time", map[string]any{"usesHeats": true, "lanesPerHeat": 4})
	for i, athlete := range []string{"ana", "bia"} {
		lane := i + 1
		if _, err := env.Engine.AssignLane(env.Ctx, engine.LaneOptions{
			ModalityID: "200m", EventID: "games", AthleteID: athlete, Heat: 1, Lane: &lane, ActorID: organizer,
		}); err != nil {
			t.Fatalf("assign lane: %v", err)
		}
	}
	statuses, err := env.Engine.HeatStatuses(env.Ctx, "200m", "games")
	if err != nil || statuses[1] != domain.HeatEmpty {
		t.Fatalf("expected empty heat: %v %v", statuses, err)
	}
	submit := func(athlete string) {
		t.Helper()
		if _, err := env.Engine.SubmitScore(env.Ctx, engine.SubmitOptions{
			ModalityID: "200m", EventID: "games", AthleteID: athlete, ActorID: organizer,
			Values: scoring.FormState{"heat": 1, "minutes": 0, "seconds": 21, "milliseconds": 34},
		}); err != nil {
			t.Fatalf("submit %s: %v", athlete, err)
		}
	}
	submit("ana")
	if statuses, _ = env.Engine.HeatStatuses(env.Ctx, "200m", "games"); statuses[1] != domain.HeatPartial {
		t.Fatalf("expected partial, got %v", statuses)
	}
	submit("bia")
	if statuses, _ = env.Engine.HeatStatuses(env.Ctx, "200m", "games"); statuses[1] != domain.HeatComplete {
		t.Fatalf("expected complete, got %v", statuses)
	}
	scores, err := env.Engine.ListScores(env.Ctx, engine.ScoreQuery{ModalityID: "200m", EventID: "games", Heat: intp(1)})
	if err != nil || len(scores) != 2 {
		t.Fatalf("heat scores: %v %v", scores, err)
	}
	if scores[0].Lane == nil || *scores[0].Lane != 1 || *scores[0].Value != 21.34 {
		t.Fatalf("lane must survive value submission: %+v", scores[0])
	}
}

func TestLaneOutsideLayoutIsRejected(t *testing.T) {
	env := newTestEnv(t)
	env.setRule(t, "400m", "time", map[string]any{"usesHeats": true, "lanesPerHeat": 6})
	lane := 7
	_, err := env.Engine.AssignLane(env.Ctx, engine.LaneOptions{ModalityID: "400m", EventID: "games", AthleteID: "ana", Heat: 1, Lane: &lane, ActorID: organizer})
	if err == nil {
		t.Fatalf("expected invalid lane error")
	}
}

func TestClearHeatsDetachesScores(t *testing.T) {
	env := newTestEnv(t)
	env.setRule(t, "swim", "time", map[string]any{"usesHeats": true})
	for _, heat := range []int{1, 2} {
		if _, err := env.Engine.SubmitScore(env.Ctx, engine.SubmitOptions{
			ModalityID: "swim", EventID: "games", AthleteID: "caio", ActorID: organizer,
			Values: scoring.FormState{"heat": heat, "minutes": 1, "seconds": heat, "milliseconds": 0},
		}); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := env.Engine.ClearHeats(env.Ctx, "swim", "games", organizer); err != nil {
		t.Fatalf("clear heats: %v", err)
	}
	scores, err := env.Engine.ListScores(env.Ctx, engine.ScoreQuery{ModalityID: "swim", EventID: "games"})
	if err != nil {
		t.Fatal(err)
	}
	if len(scores) != 1 || scores[0].HeatNumber != nil {
		t.Fatalf("expected one heat-less score, got %+v", scores)
	}
}

func TestHeatsDisabledModality(t *testing.T) {
	env := newTestEnv(t)
	env.setRule(t, "judo", "points", nil)
	if _, err := env.Engine.CreateHeat(env.Ctx, "judo", "games", organizer); !errors.Is(err, heats.ErrHeatsDisabled) {
		t.Fatalf("expected ErrHeatsDisabled, got %v", err)
	}
	list, err := env.Engine.ListHeats(env.Ctx, "judo", "games")
	if err != nil || list.UsesHeats || len(list.Heats) != 0 {
		t.Fatalf("inert registry expected: %+v %v", list, err)
	}
	_, err = env.Engine.SubmitScore(env.Ctx, engine.SubmitOptions{
		ModalityID: "judo", EventID: "games", AthleteID: "ana", ActorID: organizer,
		Values: scoring.FormState{"heat": 2, "score": 10},
	})
	if !errors.Is(err, heats.ErrHeatsDisabled) {
		t.Fatalf("heat on a heat-less modality should fail, got %v", err)
	}
}

func TestPermissions(t *testing.T) {
	env := newTestEnv(t)
	env.setRule(t, "judo", "points", nil)
	_, err := env.Engine.SubmitScore(env.Ctx, engine.SubmitOptions{
		ModalityID: "judo", EventID: "games", AthleteID: "ana", ActorID: "stranger",
		Values: scoring.FormState{"score": 10},
	})
	var forbidden auth.ForbiddenError
	if !errors.As(err, &forbidden) || forbidden.Permission != auth.PermScoreSubmit {
		t.Fatalf("expected forbidden, got %v", err)
	}
	if err := env.Engine.GrantRole(env.Ctx, "stranger", "judge", organizer); err != nil {
		t.Fatalf("grant: %v", err)
	}
	if _, err := env.Engine.SubmitScore(env.Ctx, engine.SubmitOptions{
		ModalityID: "judo", EventID: "games", AthleteID: "ana", ActorID: "stranger",
		Values: scoring.FormState{"score": 10},
	}); err != nil {
		t.Fatalf("judge should submit: %v", err)
	}
	if _, err := env.Engine.SetRule(env.Ctx, domain.RuleRecord{ModalityID: "judo", RuleType: "time"}, "stranger"); !errors.As(err, &forbidden) {
		t.Fatalf("judge must not edit rules, got %v", err)
	}
	if err := env.Engine.GrantRole(env.Ctx, "stranger", "missing", organizer); !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("unknown role should be not found, got %v", err)
	}
	profile, err := env.Engine.JudgeProfile(env.Ctx, "stranger")
	if err != nil || len(profile.Roles) != 1 || profile.Roles[0] != "judge" {
		t.Fatalf("profile: %+v %v", profile, err)
	}
	if err := env.Engine.RevokeRole(env.Ctx, "stranger", "judge", organizer); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	if profile, _ = env.Engine.JudgeProfile(env.Ctx, "stranger"); len(profile.Roles) != 0 {
		t.Fatalf("role should be revoked: %+v", profile)
	}
}

func TestRuleValidationAndFallbacks(t *testing.T) {
	env := newTestEnv(t)
	if _, err := env.Engine.SetRule(env.Ctx, domain.RuleRecord{ModalityID: "volley", RuleType: "sets", Parameters: map[string]any{"bestOf": 4}}, organizer); err == nil {
		t.Fatalf("even bestOf must be rejected")
	}
	schema, err := env.Engine.Schema(env.Ctx, "no-rule")
	if err != nil {
		t.Fatal(err)
	}
	if names := schema.Names(); len(names) != 2 || names[0] != "score" {
		t.Fatalf("missing rule should give the score schema, got %v", names)
	}
	defaults, err := env.Engine.Defaults(env.Ctx, "no-rule", nil)
	if err != nil || defaults["score"] != 0 {
		t.Fatalf("defaults: %v %v", defaults, err)
	}
	if err := env.Engine.DeleteRule(env.Ctx, "no-rule", organizer); !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("deleting a missing rule should be not found, got %v", err)
	}
}

func TestEvaluateSetsAndArrows(t *testing.T) {
	env := newTestEnv(t)
	env.setRule(t, "volley", "sets", map[string]any{"bestOf": 5, "pointsPerSet": 25, "finalSetPoints": 15})
	out, err := env.Engine.EvaluateSets(env.Ctx, "volley", []scoring.SetEntry{
		{PointsA: 25, PointsB: 20}, {PointsA: 25, PointsB: 23}, {PointsA: 26, PointsB: 24},
	})
	if err != nil {
		t.Fatal(err)
	}
	if !out.Finished || out.Winner != scoring.SideA || out.SetsWonA != 3 {
		t.Fatalf("unexpected outcome %+v", out)
	}
	if _, err := env.Engine.EvaluateArrows(env.Ctx, "volley", []int{10}, nil); err == nil {
		t.Fatalf("arrows evaluation on a sets modality must fail")
	}

	env.setRule(t, "archery", "arrows", map[string]any{"hasClassificationPhase": true, "hasEliminationPhase": true, "allowsShootOff": true})
	res, err := env.Engine.EvaluateArrows(env.Ctx, "archery", []int{10, 9, 0, 11}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if res.ClassificationTotal == nil || *res.ClassificationTotal != 19 {
		t.Fatalf("classification total %+v", res)
	}
}

func TestCurrentEventNotifiesSubscribers(t *testing.T) {
	env := newTestEnv(t)
	ch, cancel := env.Engine.Tracker.Subscribe()
	defer cancel()
	if _, err := env.Engine.CurrentEvent(env.Ctx); !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("expected not found before first set, got %v", err)
	}
	if _, err := env.Engine.SetCurrentEvent(env.Ctx, "regional-2024", organizer); err != nil {
		t.Fatalf("set current: %v", err)
	}
	select {
	case ev := <-ch:
		if ev.EventID != "regional-2024" || ev.UpdatedBy != organizer {
			t.Fatalf("unexpected event %+v", ev)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("no notification")
	}
	ce, err := env.Engine.CurrentEvent(env.Ctx)
	if err != nil || ce.EventID != "regional-2024" {
		t.Fatalf("stored current event: %+v %v", ce, err)
	}
}

func TestAuditTrail(t *testing.T) {
	env := newTestEnv(t)
	env.setRule(t, "judo", "points", nil)
	if _, err := env.Engine.SetCurrentEvent(env.Ctx, "games", organizer); err != nil {
		t.Fatal(err)
	}
	entries, err := env.Engine.Audit(env.Ctx, organizer, repo.AuditFilter{})
	if err != nil {
		t.Fatalf("audit: %v", err)
	}
	if len(entries) != 2 || entries[0].Type != events.CurrentEventSet || entries[1].Type != events.RuleSet {
		t.Fatalf("unexpected audit entries %+v", entries)
	}
	if _, err := env.Engine.Audit(env.Ctx, "stranger", repo.AuditFilter{}); err == nil {
		t.Fatalf("stranger must not read audit")
	}
}

func TestDeviceKeys(t *testing.T) {
	env := newTestEnv(t)
	plain, key, err := env.Engine.CreateDeviceKey(env.Ctx, "tablet-judge", "lane 4 tablet", organizer)
	if err != nil {
		t.Fatalf("create key: %v", err)
	}
	if key.KeyHash == plain {
		t.Fatalf("plain key must not be stored")
	}
	judge, err := env.Engine.JudgeForDeviceKey(env.Ctx, plain)
	if err != nil || judge != "tablet-judge" {
		t.Fatalf("resolve key: %q %v", judge, err)
	}
	if _, err := env.Engine.JudgeForDeviceKey(env.Ctx, "olk_wrong"); !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("unknown key should be not found, got %v", err)
	}
}

func intp(v int) *int { return &v }

func TestListScoresByHeatPresence(t *testing.T) {
	env := newTestEnv(t)
	env.setRule(t, "200m", "time", map[string]any{"usesHeats": true, "lanesPerHeat": 8})
	submissions := []scoring.FormState{
		{"heat": 1, "lane": 2, "seconds": 24},
		{"seconds": 25},
	}
	for i, values := range submissions {
		athlete := []string{"ana", "bia"}[i]
		if _, err := env.Engine.SubmitScore(env.Ctx, engine.SubmitOptions{
			ModalityID: "200m", EventID: "games", AthleteID: athlete, ActorID: organizer, Values: values,
		}); err != nil {
			t.Fatalf("submit %s: %v", athlete, err)
		}
	}
	// Warm the unfiltered cache so filtered queries must bypass it.
	if all, err := env.Engine.ListScores(env.Ctx, engine.ScoreQuery{ModalityID: "200m", EventID: "games"}); err != nil || len(all) != 2 {
		t.Fatalf("list all: %v %v", all, err)
	}
	for _, tc := range []struct {
		has     bool
		athlete string
	}{{true, "ana"}, {false, "bia"}} {
		has := tc.has
		got, err := env.Engine.ListScores(env.Ctx, engine.ScoreQuery{ModalityID: "200m", EventID: "games", HasHeat: &has})
		if err != nil {
			t.Fatalf("list has_heat=%v: %v", has, err)
		}
		if len(got) != 1 || got[0].AthleteID != tc.athlete {
			t.Fatalf("has_heat=%v: unexpected scores %+v", has, got)
		}
	}
}

func TestSubmitScoreAppliesSchemaBounds(t *testing.T) {
	env := newTestEnv(t)
	env.setRule(t, "400m", "time", map[string]any{"usesHeats": true, "lanesPerHeat": 6})
	s, err := env.Engine.SubmitScore(env.Ctx, engine.SubmitOptions{
		ModalityID: "400m", EventID: "games", AthleteID: "ana", ActorID: organizer,
		Values: scoring.FormState{"heat": 1, "lane": 3, "minutes": 1, "seconds": 75, "milliseconds": 5},
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if s.Value == nil || *s.Value != 60.05 {
		t.Fatalf("seconds above 59 should count as zero: %+v", s)
	}
	_, err = env.Engine.SubmitScore(env.Ctx, engine.SubmitOptions{
		ModalityID: "400m", EventID: "games", AthleteID: "bia", ActorID: organizer,
		Values: scoring.FormState{"heat": 1, "lane": 7, "seconds": 50},
	})
	if err == nil {
		t.Fatalf("lane outside the layout should be rejected")
	}
}
