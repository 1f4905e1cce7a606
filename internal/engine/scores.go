package engine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"olimpia/internal/cache"
	"olimpia/internal/domain"
	"olimpia/internal/engine/auth"
	"olimpia/internal/events"
	"olimpia/internal/heats"
	"olimpia/internal/repo"
	"olimpia/internal/scoring"
	"olimpia/internal/stream"
)

// Medals accepted on placements.
var Medals = []string{"gold", "silver", "bronze"}

type SubmitOptions struct {
	ModalityID string
	EventID    string
	AthleteID  string
	ActorID    string
	// Values are the raw form values; they are normalized with the
	// modality's rule before storage.
	Values scoring.FormState
}

func requireKeys(modalityID, eventID, athleteID string) error {
	switch {
	case strings.TrimSpace(modalityID) == "":
		return errors.New("modality_id is required")
	case strings.TrimSpace(eventID) == "":
		return errors.New("event_id is required")
	case strings.TrimSpace(athleteID) == "":
		return errors.New("athlete_id is required")
	}
	return nil
}

// SubmitScore normalizes form values and upserts the athlete's score for the
// heat they name. Resubmitting replaces the value; placement is kept.
func (e Engine) SubmitScore(ctx context.Context, opts SubmitOptions) (domain.Score, error) {
	if err := requireKeys(opts.ModalityID, opts.EventID, opts.AthleteID); err != nil {
		return domain.Score{}, err
	}
	rule, _, err := e.loadRule(ctx, opts.ModalityID)
	if err != nil {
		return domain.Score{}, err
	}
	sub, err := scoring.Normalize(opts.Values, rule)
	if err != nil {
		return domain.Score{}, err
	}
	if sub.HeatNumber != nil && !rule.UsesHeats() {
		return domain.Score{}, fmt.Errorf("heat %d given: %s: %w", *sub.HeatNumber, opts.ModalityID, heats.ErrHeatsDisabled)
	}
	if err := checkLane(rule, sub.Lane); err != nil {
		return domain.Score{}, err
	}
	now := e.stamp()
	s := domain.Score{
		ID:         uuid.NewString(),
		EventID:    opts.EventID,
		ModalityID: opts.ModalityID,
		AthleteID:  opts.AthleteID,
		JudgeID:    opts.ActorID,
		Value:      sub.Value,
		HeatNumber: sub.HeatNumber,
		Lane:       sub.Lane,
		Notes:      sub.Notes,
		Metadata:   sub.Metadata,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	err = e.write(ctx, opts.ActorID, auth.PermScoreSubmit, func(tx *sql.Tx) error {
		if s.HeatNumber != nil {
			if err := e.ensureHeat(ctx, tx, s.ModalityID, s.EventID, *s.HeatNumber); err != nil {
				return err
			}
		}
		if err := e.Repo.UpsertScore(ctx, tx, s); err != nil {
			return fmt.Errorf("store score: %w", err)
		}
		stored, err := e.Repo.GetScore(ctx, tx, s.EventID, s.ModalityID, s.AthleteID, s.HeatNumber)
		if err != nil {
			return err
		}
		s = stored
		return e.Events.Append(ctx, tx, events.ScoreSubmitted, s.EventID, "score", s.ID, opts.ActorID, events.EventPayload{
			"modality_id": s.ModalityID, "athlete_id": s.AthleteID, "value": s.Value, "heat_number": s.HeatNumber,
		})
	})
	if err != nil {
		return domain.Score{}, err
	}
	e.invalidate(ctx, s.ModalityID, s.EventID)
	e.publish(ctx, stream.KindScore, s)
	return s, nil
}

// ensureHeat reserves a heat referenced by a score. The final heat number
// keeps its final flag.
func (e Engine) ensureHeat(ctx context.Context, tx *sql.Tx, modalityID, eventID string, number int) error {
	if number <= 0 {
		return fmt.Errorf("invalid heat number %d", number)
	}
	_, err := e.Repo.InsertHeatTx(ctx, tx, domain.Heat{
		ModalityID: modalityID, EventID: eventID, Number: number,
		IsFinal: number == heats.FinalHeatNumber, CreatedAt: e.stamp(),
	})
	if err != nil {
		return fmt.Errorf("ensure heat %d: %w", number, err)
	}
	return nil
}

func checkLane(rule *scoring.Rule, lane *int) error {
	if lane == nil {
		return nil
	}
	if *lane <= 0 {
		return fmt.Errorf("invalid lane %d", *lane)
	}
	if max := ruleLanes(rule); max > 0 && *lane > max {
		return fmt.Errorf("invalid lane %d: modality has %d lanes", *lane, max)
	}
	return nil
}

type LaneOptions struct {
	ModalityID string
	EventID    string
	AthleteID  string
	Heat       int
	Lane       *int
	ActorID    string
}

// AssignLane registers an athlete in a heat lane before any value exists.
func (e Engine) AssignLane(ctx context.Context, opts LaneOptions) (domain.Score, error) {
	if err := requireKeys(opts.ModalityID, opts.EventID, opts.AthleteID); err != nil {
		return domain.Score{}, err
	}
	rule, _, err := e.loadRule(ctx, opts.ModalityID)
	if err != nil {
		return domain.Score{}, err
	}
	if !rule.UsesHeats() {
		return domain.Score{}, fmt.Errorf("%s: %w", opts.ModalityID, heats.ErrHeatsDisabled)
	}
	if err := checkLane(rule, opts.Lane); err != nil {
		return domain.Score{}, err
	}
	now := e.stamp()
	heat := opts.Heat
	s := domain.Score{
		ID: uuid.NewString(), EventID: opts.EventID, ModalityID: opts.ModalityID, AthleteID: opts.AthleteID,
		JudgeID: opts.ActorID, HeatNumber: &heat, Lane: opts.Lane, CreatedAt: now, UpdatedAt: now,
	}
	err = e.write(ctx, opts.ActorID, auth.PermHeatManage, func(tx *sql.Tx) error {
		if err := e.ensureHeat(ctx, tx, s.ModalityID, s.EventID, heat); err != nil {
			return err
		}
		if err := e.Repo.AssignLane(ctx, tx, s); err != nil {
			return fmt.Errorf("assign lane: %w", err)
		}
		stored, err := e.Repo.GetScore(ctx, tx, s.EventID, s.ModalityID, s.AthleteID, s.HeatNumber)
		if err != nil {
			return err
		}
		s = stored
		return e.Events.Append(ctx, tx, events.LaneAssigned, s.EventID, "score", s.ID, opts.ActorID, events.EventPayload{
			"modality_id": s.ModalityID, "athlete_id": s.AthleteID, "heat_number": heat, "lane": s.Lane,
		})
	})
	if err != nil {
		return domain.Score{}, err
	}
	e.invalidate(ctx, s.ModalityID, s.EventID)
	e.publish(ctx, stream.KindLane, s)
	return s, nil
}

type PlacementOptions struct {
	ModalityID    string
	EventID       string
	AthleteID     string
	Heat          *int
	FinalPosition *int
	Medal         string
	ActorID       string
}

// SetPlacement records an athlete's final position and medal.
func (e Engine) SetPlacement(ctx context.Context, opts PlacementOptions) (domain.Score, error) {
	if err := requireKeys(opts.ModalityID, opts.EventID, opts.AthleteID); err != nil {
		return domain.Score{}, err
	}
	if opts.FinalPosition != nil && *opts.FinalPosition <= 0 {
		return domain.Score{}, fmt.Errorf("invalid final_position %d", *opts.FinalPosition)
	}
	medal := strings.ToLower(strings.TrimSpace(opts.Medal))
	if medal != "" && !validMedal(medal) {
		return domain.Score{}, fmt.Errorf("invalid medal %q", opts.Medal)
	}
	now := e.stamp()
	s := domain.Score{
		ID: uuid.NewString(), EventID: opts.EventID, ModalityID: opts.ModalityID, AthleteID: opts.AthleteID,
		JudgeID: opts.ActorID, HeatNumber: opts.Heat, FinalPosition: opts.FinalPosition, CreatedAt: now, UpdatedAt: now,
	}
	if medal != "" {
		s.Medal = &medal
	}
	err := e.write(ctx, opts.ActorID, auth.PermPlacementWrite, func(tx *sql.Tx) error {
		if s.HeatNumber != nil {
			if err := e.ensureHeat(ctx, tx, s.ModalityID, s.EventID, *s.HeatNumber); err != nil {
				return err
			}
		}
		if err := e.Repo.SetPlacement(ctx, tx, s); err != nil {
			return fmt.Errorf("set placement: %w", err)
		}
		stored, err := e.Repo.GetScore(ctx, tx, s.EventID, s.ModalityID, s.AthleteID, s.HeatNumber)
		if err != nil {
			return err
		}
		s = stored
		return e.Events.Append(ctx, tx, events.PlacementSet, s.EventID, "score", s.ID, opts.ActorID, events.EventPayload{
			"modality_id": s.ModalityID, "athlete_id": s.AthleteID, "final_position": s.FinalPosition, "medal": s.Medal,
		})
	})
	if err != nil {
		return domain.Score{}, err
	}
	e.invalidate(ctx, s.ModalityID, s.EventID)
	e.publish(ctx, stream.KindPlacement, s)
	return s, nil
}

func validMedal(m string) bool {
	for _, v := range Medals {
		if v == m {
			return true
		}
	}
	return false
}

type ScoreQuery struct {
	ModalityID string
	EventID    string
	AthleteID  string
	Heat       *int
	// HasHeat keeps only scores with (true) or without (false) a heat.
	HasHeat    *bool
	OnlyScored bool
}

// ListScores lists the scores of a modality inside an event. The unfiltered
// list is served from the cache.
func (e Engine) ListScores(ctx context.Context, q ScoreQuery) ([]domain.Score, error) {
	f := repo.ScoreFilter{ModalityID: q.ModalityID, EventID: q.EventID, AthleteID: q.AthleteID, Heat: q.Heat, HasHeat: q.HasHeat, OnlyScored: q.OnlyScored}
	cacheable := e.Cache != nil && q.AthleteID == "" && q.Heat == nil && q.HasHeat == nil && !q.OnlyScored
	key := cache.ScoresKey(q.ModalityID, q.EventID)
	if cacheable {
		var cached []domain.Score
		found, err := e.Cache.Get(ctx, key, &cached)
		if err != nil {
			e.Logger.Warn("score cache read failed", "key", key, "error", err)
		}
		if found {
			return cached, nil
		}
	}
	list, err := e.Repo.ListScores(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("list scores: %w", err)
	}
	if list == nil {
		list = []domain.Score{}
	}
	if cacheable {
		if err := e.Cache.Set(ctx, key, list); err != nil {
			e.Logger.Warn("score cache write failed", "key", key, "error", err)
		}
	}
	return list, nil
}
