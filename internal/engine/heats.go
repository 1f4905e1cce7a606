package engine

import (
	"context"
	"database/sql"
	"fmt"

	"olimpia/internal/cache"
	"olimpia/internal/domain"
	"olimpia/internal/engine/auth"
	"olimpia/internal/events"
	"olimpia/internal/heats"
	"olimpia/internal/scoring"
)

// HeatList is the heat state of a modality inside an event.
type HeatList struct {
	ModalityID string        `json:"modality_id"`
	EventID    string        `json:"event_id"`
	UsesHeats  bool          `json:"uses_heats"`
	Heats      []domain.Heat `json:"heats"`
	HasFinal   bool          `json:"has_final"`
	// RuleVersion is the rule timestamp the list was derived from; cached
	// lists of an older rule are ignored.
	RuleVersion string `json:"rule_version,omitempty"`
}

// ListHeats returns the heats of a modality inside an event, creating heat 1
// on first load when none exist.
func (e Engine) ListHeats(ctx context.Context, modalityID, eventID string) (HeatList, error) {
	rule, rec, err := e.loadRule(ctx, modalityID)
	if err != nil {
		return HeatList{}, err
	}
	key := cache.HeatsKey(modalityID, eventID)
	var cached HeatList
	if e.Cache != nil {
		found, err := e.Cache.Get(ctx, key, &cached)
		if err != nil {
			e.Logger.Warn("heat cache read failed", "key", key, "error", err)
		}
		if found && cached.RuleVersion == rec.UpdatedAt {
			return cached, nil
		}
	}
	reg := e.Sessions.Get(modalityID, eventID)
	list := HeatList{
		ModalityID:  modalityID,
		EventID:     eventID,
		UsesHeats:   rule.UsesHeats(),
		Heats:       reg.Load(ctx, rule),
		HasFinal:    reg.HasFinalHeat(),
		RuleVersion: rec.UpdatedAt,
	}
	if list.Heats == nil {
		list.Heats = []domain.Heat{}
	}
	if e.Cache != nil {
		if err := e.Cache.Set(ctx, key, list); err != nil {
			e.Logger.Warn("heat cache write failed", "key", key, "error", err)
		}
	}
	return list, nil
}

// registry returns the session registry loaded with the current rule.
func (e Engine) registry(ctx context.Context, modalityID, eventID string) (*heats.Registry, error) {
	rule, _, err := e.loadRule(ctx, modalityID)
	if err != nil {
		return nil, err
	}
	if !rule.UsesHeats() {
		return nil, fmt.Errorf("%s: %w", modalityID, heats.ErrHeatsDisabled)
	}
	reg := e.Sessions.Get(modalityID, eventID)
	reg.Load(ctx, rule)
	return reg, nil
}

// CreateHeat adds the next regular heat.
func (e Engine) CreateHeat(ctx context.Context, modalityID, eventID, actorID string) (domain.Heat, error) {
	return e.createHeat(ctx, modalityID, eventID, actorID, false)
}

// CreateFinalHeat adds the final heat, or returns it when it already exists.
func (e Engine) CreateFinalHeat(ctx context.Context, modalityID, eventID, actorID string) (domain.Heat, error) {
	return e.createHeat(ctx, modalityID, eventID, actorID, true)
}

func (e Engine) createHeat(ctx context.Context, modalityID, eventID, actorID string, final bool) (domain.Heat, error) {
	if err := e.authorize(ctx, actorID, auth.PermHeatManage); err != nil {
		return domain.Heat{}, err
	}
	reg, err := e.registry(ctx, modalityID, eventID)
	if err != nil {
		return domain.Heat{}, err
	}
	var h domain.Heat
	if final {
		if existing, ok := reg.FinalHeat(); ok {
			return existing, nil
		}
		h, err = reg.CreateFinalHeat(ctx)
	} else {
		h, err = reg.CreateHeat(ctx)
	}
	if err != nil {
		return domain.Heat{}, err
	}
	e.invalidate(ctx, modalityID, eventID)
	if err := e.audit(ctx, events.HeatCreated, eventID, "heat", fmt.Sprintf("%s/%d", modalityID, h.Number), actorID,
		events.EventPayload{"modality_id": modalityID, "number": h.Number, "is_final": h.IsFinal}); err != nil {
		return h, err
	}
	return h, nil
}

// ClearHeats removes the heat configuration of a modality inside an event.
// Heat-less scores keep the latest valued result of each athlete.
func (e Engine) ClearHeats(ctx context.Context, modalityID, eventID, actorID string) (int, error) {
	var affected int
	err := e.write(ctx, actorID, auth.PermHeatManage, func(tx *sql.Tx) error {
		n, err := e.Repo.ClearHeats(ctx, tx, modalityID, eventID)
		if err != nil {
			return fmt.Errorf("clear heats: %w", err)
		}
		affected = n
		return e.Events.Append(ctx, tx, events.HeatsCleared, eventID, "modality", modalityID, actorID, events.EventPayload{"scores_affected": n})
	})
	if err != nil {
		return 0, err
	}
	e.invalidate(ctx, modalityID, eventID)
	e.Sessions.Drop(modalityID, eventID)
	return affected, nil
}

// HeatStatuses maps each heat number to its completion status.
func (e Engine) HeatStatuses(ctx context.Context, modalityID, eventID string) (map[int]domain.HeatStatus, error) {
	reg, err := e.registry(ctx, modalityID, eventID)
	if err != nil {
		return nil, err
	}
	return reg.Statuses(), nil
}

func ruleLanes(rule *scoring.Rule) int {
	if rule == nil || rule.Params == nil {
		return 0
	}
	if p, ok := rule.Params.(scoring.AttemptsParams); ok {
		return p.Lanes()
	}
	return rule.Params.Layout().LanesPerHeat
}
