// Package heats keeps the heat list of one modality and event: discovery,
// first-heat auto-creation, regular and final heat allocation, selection and
// per-heat completion status.
package heats

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"olimpia/internal/domain"
	"olimpia/internal/scoring"
)

// FinalHeatNumber is reserved for the final heat and never allocated to a
// regular heat.
const FinalHeatNumber = 999

var ErrHeatsDisabled = errors.New("modality does not use heats")

// Store is the persistence the registry reads heats and score counts from.
type Store interface {
	ListHeats(ctx context.Context, modalityID, eventID string) ([]domain.Heat, error)
	// InsertHeat reports false when the number is already taken.
	InsertHeat(ctx context.Context, h domain.Heat) (bool, error)
	HeatCounts(ctx context.Context, modalityID, eventID string) (map[int]domain.HeatCounts, error)
}

// Classify derives the completion status of a heat from its athlete counts.
func Classify(total, scored int) domain.HeatStatus {
	switch {
	case scored <= 0:
		return domain.HeatEmpty
	case scored >= total:
		return domain.HeatComplete
	default:
		return domain.HeatPartial
	}
}

// NextHeatNumber is one above the highest regular heat, skipping the final
// heat sentinel.
func NextHeatNumber(existing []domain.Heat) int {
	max := 0
	for _, h := range existing {
		if h.IsFinal || h.Number == FinalHeatNumber {
			continue
		}
		if h.Number > max {
			max = h.Number
		}
	}
	next := max + 1
	if next == FinalHeatNumber {
		next++
	}
	return next
}

// Registry is the heat state of one (modality, event) session. The
// auto-create flag lives as long as the registry, so repeated loads never
// create heat 1 twice; the store's uniqueness on heat number covers other
// processes.
type Registry struct {
	mu         sync.Mutex
	store      Store
	logger     *slog.Logger
	modalityID string
	eventID    string

	usesHeats   bool
	loaded      bool
	autoCreated bool
	heats       []domain.Heat
	selected    *int
}

func NewRegistry(store Store, modalityID, eventID string, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{store: store, logger: logger, modalityID: modalityID, eventID: eventID}
}

// Load refreshes the heat list for the given rule. Store failures are logged
// and leave an empty list so that manual creation remains possible.
func (r *Registry) Load(ctx context.Context, rule *scoring.Rule) []domain.Heat {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.usesHeats = rule.UsesHeats()
	r.loaded = true
	if !r.usesHeats {
		r.heats = nil
		return nil
	}
	if err := r.refresh(ctx); err != nil {
		r.logger.Warn("heat discovery failed", "modality_id", r.modalityID, "event_id", r.eventID, "error", err)
		r.heats = []domain.Heat{}
		return r.copyHeats()
	}
	if len(r.heats) == 0 && !r.autoCreated {
		r.autoCreated = true
		if _, err := r.insert(ctx, domain.Heat{Number: 1}); err != nil {
			r.logger.Warn("first heat auto-creation failed", "modality_id", r.modalityID, "event_id", r.eventID, "error", err)
		}
	}
	return r.copyHeats()
}

func (r *Registry) refresh(ctx context.Context) error {
	list, err := r.store.ListHeats(ctx, r.modalityID, r.eventID)
	if err != nil {
		return err
	}
	byNumber := map[int]int{}
	for i := range list {
		byNumber[list[i].Number] = i
		list[i].Status = domain.HeatEmpty
	}
	counts, err := r.store.HeatCounts(ctx, r.modalityID, r.eventID)
	if err != nil {
		r.logger.Warn("heat status derivation failed", "modality_id", r.modalityID, "event_id", r.eventID, "error", err)
		for i := range list {
			list[i].Status = domain.HeatUnknown
		}
		counts = nil
	}
	for number, c := range counts {
		i, ok := byNumber[number]
		if !ok {
			// a score references a heat that was never reserved
			list = append(list, domain.Heat{
				ModalityID: r.modalityID, EventID: r.eventID,
				Number: number, IsFinal: number == FinalHeatNumber,
			})
			i = len(list) - 1
		}
		list[i].AthleteCount = c.Athletes
		list[i].ScoredCount = c.Scored
		list[i].Status = Classify(c.Athletes, c.Scored)
	}
	sort.Slice(list, func(a, b int) bool { return list[a].Number < list[b].Number })
	r.heats = list
	return nil
}

// insert stores a heat and adds it to the list. A number taken by another
// session is not an error: the list is refreshed and the stored heat wins.
func (r *Registry) insert(ctx context.Context, h domain.Heat) (domain.Heat, error) {
	h.ModalityID, h.EventID = r.modalityID, r.eventID
	h.Status = domain.HeatEmpty
	created, err := r.store.InsertHeat(ctx, h)
	if err != nil {
		return domain.Heat{}, fmt.Errorf("create heat %d: %w", h.Number, err)
	}
	if !created {
		if err := r.refresh(ctx); err != nil {
			return domain.Heat{}, err
		}
		for _, existing := range r.heats {
			if existing.Number == h.Number {
				return existing, nil
			}
		}
		return h, nil
	}
	r.heats = append(r.heats, h)
	sort.Slice(r.heats, func(a, b int) bool { return r.heats[a].Number < r.heats[b].Number })
	return h, nil
}

// CreateHeat reserves the next regular heat number.
func (r *Registry) CreateHeat(ctx context.Context) (domain.Heat, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.usesHeats {
		return domain.Heat{}, ErrHeatsDisabled
	}
	for attempt := 0; attempt < 3; attempt++ {
		h := domain.Heat{Number: NextHeatNumber(r.heats)}
		created, err := r.store.InsertHeat(ctx, domain.Heat{ModalityID: r.modalityID, EventID: r.eventID, Number: h.Number})
		if err != nil {
			return domain.Heat{}, fmt.Errorf("create heat %d: %w", h.Number, err)
		}
		if created {
			h.ModalityID, h.EventID, h.Status = r.modalityID, r.eventID, domain.HeatEmpty
			r.heats = append(r.heats, h)
			sort.Slice(r.heats, func(a, b int) bool { return r.heats[a].Number < r.heats[b].Number })
			return h, nil
		}
		if err := r.refresh(ctx); err != nil {
			return domain.Heat{}, err
		}
	}
	return domain.Heat{}, fmt.Errorf("create heat: number allocation kept conflicting")
}

// CreateFinalHeat creates the final heat once; later calls return it as is.
func (r *Registry) CreateFinalHeat(ctx context.Context) (domain.Heat, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.usesHeats {
		return domain.Heat{}, ErrHeatsDisabled
	}
	if h, ok := r.finalHeat(); ok {
		return h, nil
	}
	return r.insert(ctx, domain.Heat{Number: FinalHeatNumber, IsFinal: true})
}

// SelectHeat scopes scoring to one heat; nil means all heats.
func (r *Registry) SelectHeat(number *int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if number == nil {
		r.selected = nil
		return
	}
	n := *number
	r.selected = &n
}

func (r *Registry) SelectedHeat() *int {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.selected == nil {
		return nil
	}
	n := *r.selected
	return &n
}

func (r *Registry) Heats() []domain.Heat {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.copyHeats()
}

func (r *Registry) RegularHeats() []domain.Heat {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Heat
	for _, h := range r.heats {
		if !h.IsFinal {
			out = append(out, h)
		}
	}
	return out
}

func (r *Registry) FinalHeat() (domain.Heat, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.finalHeat()
}

func (r *Registry) finalHeat() (domain.Heat, bool) {
	for _, h := range r.heats {
		if h.IsFinal {
			return h, true
		}
	}
	return domain.Heat{}, false
}

func (r *Registry) HasFinalHeat() bool {
	_, ok := r.FinalHeat()
	return ok
}

func (r *Registry) UsesHeats() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.usesHeats
}

// Loaded reports whether Load ran since the last invalidation.
func (r *Registry) Loaded() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.loaded
}

// Invalidate marks the list stale. The auto-create guard is kept.
func (r *Registry) Invalidate() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.loaded = false
}

// Statuses maps heat numbers to their completion status.
func (r *Registry) Statuses() map[int]domain.HeatStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[int]domain.HeatStatus, len(r.heats))
	for _, h := range r.heats {
		out[h.Number] = h.Status
	}
	return out
}

func (r *Registry) copyHeats() []domain.Heat {
	out := make([]domain.Heat, len(r.heats))
	copy(out, r.heats)
	return out
}
