package heats

import (
	"context"
	"errors"
	"sync"
	"testing"

	"olimpia/internal/domain"
	"olimpia/internal/scoring"
)

type fakeStore struct {
	mu        sync.Mutex
	heats     map[int]domain.Heat
	counts    map[int]domain.HeatCounts
	inserts   int
	listErr   error
	countsErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{heats: map[int]domain.Heat{}, counts: map[int]domain.HeatCounts{}}
}

func (f *fakeStore) ListHeats(ctx context.Context, modalityID, eventID string) ([]domain.Heat, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	var out []domain.Heat
	for _, h := range f.heats {
		out = append(out, h)
	}
	return out, nil
}

func (f *fakeStore) InsertHeat(ctx context.Context, h domain.Heat) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.heats[h.Number]; ok {
		return false, nil
	}
	f.inserts++
	f.heats[h.Number] = h
	return true, nil
}

func (f *fakeStore) HeatCounts(ctx context.Context, modalityID, eventID string) (map[int]domain.HeatCounts, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.countsErr != nil {
		return nil, f.countsErr
	}
	out := map[int]domain.HeatCounts{}
	for k, v := range f.counts {
		out[k] = v
	}
	return out, nil
}

func heatRule(usesHeats bool) *scoring.Rule {
	r := scoring.ParseRule(domain.RuleRecord{ModalityID: "100m", RuleType: "time", Parameters: map[string]any{"usesHeats": usesHeats}})
	return &r
}

func TestAutoCreatesFirstHeatOnce(t *testing.T) {
	store := newFakeStore()
	reg := NewRegistry(store, "100m", "ev-1", nil)
	ctx := context.Background()

	heats := reg.Load(ctx, heatRule(true))
	if len(heats) != 1 || heats[0].Number != 1 || heats[0].IsFinal {
		t.Fatalf("expected heat 1, got %+v", heats)
	}
	// the stored heat disappears (e.g. cleared elsewhere); the guard still holds
	delete(store.heats, 1)
	reg.Load(ctx, heatRule(true))
	reg.Load(ctx, heatRule(true))
	if store.inserts != 1 {
		t.Fatalf("expected exactly one insert, got %d", store.inserts)
	}
}

func TestAutoCreateSharedAcrossSessions(t *testing.T) {
	store := newFakeStore()
	ctx := context.Background()
	a := NewRegistry(store, "100m", "ev-1", nil)
	b := NewRegistry(store, "100m", "ev-1", nil)
	a.Load(ctx, heatRule(true))
	heats := b.Load(ctx, heatRule(true))
	if len(heats) != 1 || store.inserts != 1 {
		t.Fatalf("second session must see the existing heat: %+v (inserts %d)", heats, store.inserts)
	}
}

func TestInertWithoutHeats(t *testing.T) {
	store := newFakeStore()
	reg := NewRegistry(store, "100m", "ev-1", nil)
	if heats := reg.Load(context.Background(), heatRule(false)); len(heats) != 0 {
		t.Fatalf("expected no heats, got %+v", heats)
	}
	if store.inserts != 0 || reg.UsesHeats() {
		t.Fatalf("registry should be inert")
	}
	if _, err := reg.CreateHeat(context.Background()); !errors.Is(err, ErrHeatsDisabled) {
		t.Fatalf("expected ErrHeatsDisabled, got %v", err)
	}
	if heats := reg.Load(context.Background(), nil); len(heats) != 0 {
		t.Fatalf("nil rule must be inert")
	}
}

func TestCreateHeatAllocatesNextNumber(t *testing.T) {
	store := newFakeStore()
	reg := NewRegistry(store, "100m", "ev-1", nil)
	ctx := context.Background()
	reg.Load(ctx, heatRule(true))
	if _, err := reg.CreateFinalHeat(ctx); err != nil {
		t.Fatalf("final: %v", err)
	}
	h, err := reg.CreateHeat(ctx)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if h.Number != 2 {
		t.Fatalf("expected heat 2 (final heat ignored), got %d", h.Number)
	}
	// another process took number 3
	store.heats[3] = domain.Heat{Number: 3}
	h, err = reg.CreateHeat(ctx)
	if err != nil || h.Number != 4 {
		t.Fatalf("expected heat 4 after conflict, got %d (%v)", h.Number, err)
	}
	if regular := reg.RegularHeats(); len(regular) != 4 {
		t.Fatalf("regular heats = %+v", regular)
	}
}

func TestFinalHeatIsUnique(t *testing.T) {
	store := newFakeStore()
	reg := NewRegistry(store, "100m", "ev-1", nil)
	ctx := context.Background()
	reg.Load(ctx, heatRule(true))
	first, err := reg.CreateFinalHeat(ctx)
	if err != nil {
		t.Fatalf("create final: %v", err)
	}
	second, err := reg.CreateFinalHeat(ctx)
	if err != nil {
		t.Fatalf("second create final: %v", err)
	}
	if first.Number != FinalHeatNumber || second.Number != FinalHeatNumber || !second.IsFinal {
		t.Fatalf("unexpected final heats %+v %+v", first, second)
	}
	finals := 0
	for _, h := range reg.Heats() {
		if h.IsFinal {
			finals++
		}
	}
	if finals != 1 || !reg.HasFinalHeat() {
		t.Fatalf("expected one final heat, got %d", finals)
	}
	other := NewRegistry(store, "100m", "ev-1", nil)
	other.Load(ctx, heatRule(true))
	if _, err := other.CreateFinalHeat(ctx); err != nil {
		t.Fatalf("final from other session: %v", err)
	}
	if store.inserts != 2 {
		t.Fatalf("expected heat 1 and final only, got %d inserts", store.inserts)
	}
}

func TestHeatStatus(t *testing.T) {
	cases := []struct {
		total, scored int
		want          domain.HeatStatus
	}{
		{3, 2, domain.HeatPartial},
		{3, 3, domain.HeatComplete},
		{3, 0, domain.HeatEmpty},
		{0, 0, domain.HeatEmpty},
	}
	for _, tc := range cases {
		if got := Classify(tc.total, tc.scored); got != tc.want {
			t.Fatalf("Classify(%d,%d) = %s, want %s", tc.total, tc.scored, got, tc.want)
		}
	}

	store := newFakeStore()
	store.heats[1] = domain.Heat{Number: 1}
	store.counts[1] = domain.HeatCounts{Athletes: 3, Scored: 2}
	store.counts[2] = domain.HeatCounts{Athletes: 2, Scored: 2}
	reg := NewRegistry(store, "100m", "ev-1", nil)
	heats := reg.Load(context.Background(), heatRule(true))
	if len(heats) != 2 {
		t.Fatalf("heat referenced only by scores must be listed: %+v", heats)
	}
	st := reg.Statuses()
	if st[1] != domain.HeatPartial || st[2] != domain.HeatComplete {
		t.Fatalf("statuses = %v", st)
	}
}

func TestStoreFailuresDegrade(t *testing.T) {
	store := newFakeStore()
	store.listErr = errors.New("connection refused")
	reg := NewRegistry(store, "100m", "ev-1", nil)
	ctx := context.Background()
	if heats := reg.Load(ctx, heatRule(true)); heats == nil || len(heats) != 0 {
		t.Fatalf("expected an empty list, got %#v", heats)
	}
	store.listErr = nil
	if _, err := reg.CreateHeat(ctx); err != nil {
		t.Fatalf("manual creation should still work: %v", err)
	}

	store.countsErr = errors.New("timeout")
	for _, h := range reg.Load(ctx, heatRule(true)) {
		if h.Status != domain.HeatUnknown {
			t.Fatalf("status should be unknown when counts fail: %+v", h)
		}
	}
}

func TestSelectHeat(t *testing.T) {
	reg := NewRegistry(newFakeStore(), "100m", "ev-1", nil)
	n := 2
	reg.SelectHeat(&n)
	n = 5
	if got := reg.SelectedHeat(); got == nil || *got != 2 {
		t.Fatalf("selected = %v", got)
	}
	reg.SelectHeat(nil)
	if reg.SelectedHeat() != nil {
		t.Fatalf("nil selects all heats")
	}
}

func TestNextHeatNumberSkipsSentinel(t *testing.T) {
	if got := NextHeatNumber([]domain.Heat{{Number: 998}}); got != 1000 {
		t.Fatalf("got %d", got)
	}
	if got := NextHeatNumber(nil); got != 1 {
		t.Fatalf("got %d", got)
	}
}

func TestSessionsReuseRegistry(t *testing.T) {
	s := NewSessions(newFakeStore(), nil)
	if s.Get("m", "e") != s.Get("m", "e") {
		t.Fatalf("expected the same registry")
	}
	first := s.Get("m", "e")
	s.Drop("m", "e")
	if s.Get("m", "e") == first {
		t.Fatalf("dropped session should be recreated")
	}
}
