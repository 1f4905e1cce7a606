package engine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"olimpia/internal/cache"
	"olimpia/internal/config"
	"olimpia/internal/current"
	"olimpia/internal/domain"
	"olimpia/internal/engine/auth"
	"olimpia/internal/events"
	"olimpia/internal/heats"
	"olimpia/internal/render"
	"olimpia/internal/repo"
	"olimpia/internal/scoring"
	"olimpia/internal/stream"
)

type Engine struct {
	DB       *sql.DB
	Driver   string
	Repo     repo.Repo
	Events   events.Writer
	Auth     auth.Service
	Config   *config.Config
	Cache    cache.Cache
	Stream   stream.Publisher
	Tracker  *current.Tracker
	Sessions *heats.Sessions
	Logger   *slog.Logger
	Now      func() time.Time
}

// New wires an engine with an in-process cache and no score stream. Callers
// swap Cache, Stream and Tracker for shared implementations when available.
func New(conn *sql.DB, driver string, cfg *config.Config, logger *slog.Logger) Engine {
	if cfg == nil {
		cfg = config.Default()
	}
	if logger == nil {
		logger = slog.Default()
	}
	r := repo.Repo{DB: conn, Driver: driver}
	return Engine{
		DB:       conn,
		Driver:   driver,
		Repo:     r,
		Events:   events.Writer{DB: conn, Driver: driver},
		Auth:     auth.Service{DB: conn, Driver: driver},
		Config:   cfg,
		Cache:    cache.NewLocal(cfg.Cache.LocalSize, cfg.CacheTTL()),
		Stream:   stream.Nop{},
		Tracker:  current.NewTracker(logger),
		Sessions: heats.NewSessions(r, logger),
		Logger:   logger,
		Now:      time.Now,
	}
}

func (e Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

func (e Engine) stamp() string {
	return e.now().UTC().Format(time.RFC3339)
}

// write runs fn in a transaction after checking that actorID holds perm. The
// audit entry appended by fn commits together with the change.
func (e Engine) write(ctx context.Context, actorID, perm string, fn func(tx *sql.Tx) error) error {
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := e.Auth.EnsureJudge(ctx, tx, actorID); err != nil {
		return err
	}
	if err := e.Auth.Require(ctx, tx, actorID, perm); err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

// authorize checks perm without keeping a transaction open, for reads and for
// writes that go through the heat registry.
func (e Engine) authorize(ctx context.Context, actorID, perm string) error {
	return e.write(ctx, actorID, perm, func(*sql.Tx) error { return nil })
}

func (e Engine) audit(ctx context.Context, evtType, eventID, entityKind, entityID, actorID string, payload events.EventPayload) error {
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := e.Events.Append(ctx, tx, evtType, eventID, entityKind, entityID, actorID, payload); err != nil {
		return err
	}
	return tx.Commit()
}

// invalidate drops cached lists of a modality inside an event and marks the
// heat session stale.
func (e Engine) invalidate(ctx context.Context, modalityID, eventID string) {
	if e.Cache != nil {
		if err := e.Cache.Delete(ctx, cache.Keys(modalityID, eventID)...); err != nil {
			e.Logger.Warn("cache invalidation failed", "modality_id", modalityID, "event_id", eventID, "error", err)
		}
	}
	if e.Sessions != nil {
		e.Sessions.Get(modalityID, eventID).Invalidate()
	}
}

func (e Engine) publish(ctx context.Context, kind string, s domain.Score) {
	if e.Stream == nil {
		return
	}
	if err := e.Stream.PublishScore(ctx, kind, s); err != nil {
		e.Logger.Warn("score stream publish failed", "kind", kind, "score_id", s.ID, "error", err)
	}
}

// loadRule returns the parsed rule of a modality, or nil when none is stored.
func (e Engine) loadRule(ctx context.Context, modalityID string) (*scoring.Rule, domain.RuleRecord, error) {
	rec, err := e.Repo.GetRule(ctx, modalityID)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, domain.RuleRecord{}, nil
	}
	if err != nil {
		return nil, domain.RuleRecord{}, fmt.Errorf("load rule of %s: %w", modalityID, err)
	}
	r := scoring.ParseRule(rec)
	return &r, rec, nil
}

// SetRule validates and stores the scoring rule of a modality.
func (e Engine) SetRule(ctx context.Context, rec domain.RuleRecord, actorID string) (domain.RuleRecord, error) {
	rule, err := scoring.NewRule(rec)
	if err != nil {
		return domain.RuleRecord{}, err
	}
	out := rule.Record()
	out.UpdatedAt = e.stamp()
	err = e.write(ctx, actorID, auth.PermRuleWrite, func(tx *sql.Tx) error {
		if existing, err := e.Repo.GetRuleTx(ctx, tx, out.ModalityID); err == nil {
			out.CreatedAt = existing.CreatedAt
		} else if !errors.Is(err, repo.ErrNotFound) {
			return err
		}
		if out.CreatedAt == "" {
			out.CreatedAt = out.UpdatedAt
		}
		if err := e.Repo.UpsertRule(ctx, tx, out); err != nil {
			return fmt.Errorf("store rule: %w", err)
		}
		return e.Events.Append(ctx, tx, events.RuleSet, "", "modality", out.ModalityID, actorID, events.EventPayload{
			"rule_type": out.RuleType, "parameters": out.Parameters,
		})
	})
	if err != nil {
		return domain.RuleRecord{}, err
	}
	return out, nil
}

func (e Engine) GetRule(ctx context.Context, modalityID string) (domain.RuleRecord, error) {
	return e.Repo.GetRule(ctx, modalityID)
}

func (e Engine) ListRules(ctx context.Context) ([]domain.RuleRecord, error) {
	return e.Repo.ListRules(ctx)
}

func (e Engine) DeleteRule(ctx context.Context, modalityID, actorID string) error {
	return e.write(ctx, actorID, auth.PermRuleWrite, func(tx *sql.Tx) error {
		if err := e.Repo.DeleteRule(ctx, tx, modalityID); err != nil {
			return err
		}
		return e.Events.Append(ctx, tx, events.RuleDeleted, "", "modality", modalityID, actorID, nil)
	})
}

// Schema returns the input schema of a modality. A modality without a rule
// gets the plain score schema.
func (e Engine) Schema(ctx context.Context, modalityID string) (scoring.FieldSchema, error) {
	rule, _, err := e.loadRule(ctx, modalityID)
	if err != nil {
		return scoring.FieldSchema{}, err
	}
	return scoring.SchemaFor(rule), nil
}

// Defaults fills the initial form values for a modality, keeping existing ones.
func (e Engine) Defaults(ctx context.Context, modalityID string, existing scoring.FormState) (scoring.FormState, error) {
	rule, _, err := e.loadRule(ctx, modalityID)
	if err != nil {
		return nil, err
	}
	return scoring.ResolveDefaults(existing, rule), nil
}

// Fields renders the dynamic form of a modality inside an event.
func (e Engine) Fields(ctx context.Context, modalityID, eventID string, values scoring.FormState, selected *int) (render.FieldSet, error) {
	rule, _, err := e.loadRule(ctx, modalityID)
	if err != nil {
		return render.FieldSet{}, err
	}
	data := render.HeatsData{Selected: selected}
	if rule.UsesHeats() && eventID != "" {
		list, err := e.ListHeats(ctx, modalityID, eventID)
		if err != nil {
			return render.FieldSet{}, err
		}
		data.Heats = list.Heats
	}
	return render.RenderWithValues(rule, data, values), nil
}

// EvaluateSets runs the set-match math of a sets modality.
func (e Engine) EvaluateSets(ctx context.Context, modalityID string, entries []scoring.SetEntry) (scoring.SetsOutcome, error) {
	rule, _, err := e.loadRule(ctx, modalityID)
	if err != nil {
		return scoring.SetsOutcome{}, err
	}
	if rule == nil {
		return scoring.SetsOutcome{}, fmt.Errorf("rule of %s: %w", modalityID, repo.ErrNotFound)
	}
	p, ok := rule.Params.(scoring.SetsParams)
	if !ok {
		return scoring.SetsOutcome{}, fmt.Errorf("modality %s has invalid rule type %s for sets evaluation", modalityID, rule.Type)
	}
	return scoring.EvaluateSets(p, entries), nil
}

type ArrowsEvaluation struct {
	ClassificationTotal *int                       `json:"classification_total,omitempty"`
	Elimination         *scoring.EliminationResult `json:"elimination,omitempty"`
}

// EvaluateArrows totals classification arrows and scores an elimination match
// of an arrows modality. Either part may be omitted.
func (e Engine) EvaluateArrows(ctx context.Context, modalityID string, classification []int, elimination *scoring.EliminationInput) (ArrowsEvaluation, error) {
	rule, _, err := e.loadRule(ctx, modalityID)
	if err != nil {
		return ArrowsEvaluation{}, err
	}
	if rule == nil {
		return ArrowsEvaluation{}, fmt.Errorf("rule of %s: %w", modalityID, repo.ErrNotFound)
	}
	p, ok := rule.Params.(scoring.ArrowsParams)
	if !ok {
		return ArrowsEvaluation{}, fmt.Errorf("modality %s has invalid rule type %s for arrows evaluation", modalityID, rule.Type)
	}
	var out ArrowsEvaluation
	if classification != nil {
		total := scoring.ClassificationTotal(classification)
		out.ClassificationTotal = &total
	}
	if elimination != nil {
		res := scoring.EvaluateElimination(p, *elimination)
		out.Elimination = &res
	}
	return out, nil
}
