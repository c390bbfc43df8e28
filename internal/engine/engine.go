// Package engine runs conversation turns: it resolves personas, assembles
// prompts, relays the generation stream, executes structured calls, and
// persists the finished transcript.
package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"boardroom/internal/calls"
	"boardroom/internal/config"
	"boardroom/internal/domain"
	"boardroom/internal/generation"
	"boardroom/internal/journal"
	"boardroom/internal/logging"
	"boardroom/internal/metrics"
	"boardroom/internal/persona"
	"boardroom/internal/prompt"
	"boardroom/internal/router"
)

var ErrInvalidTurn = errors.New("invalid turn")

// Store is everything a turn reads or writes outside the model.
type Store interface {
	MessageStore
	calls.TaskStore
	GetIdea(ctx context.Context, id string) (domain.Idea, error)
	SetVerdict(ctx context.Context, id string, v domain.Verdict, analysis string) error
	ListTasks(ctx context.Context, ideaID string) ([]domain.Task, error)
}

type Engine struct {
	Store       Store
	Gen         *generation.Gateway
	Personas    *persona.Registry
	Router      router.Router
	Prompts     prompt.Assembler
	Calls       calls.Executor
	Transcripts Transcripts
	Journal     journal.Journal
	Config      *config.Config
	Logger      *zap.Logger
	Metrics     *metrics.Metrics
	Now         func() time.Time
}

type Options struct {
	Personas *persona.Registry
	Journal  journal.Journal
	Logger   *zap.Logger
	Metrics  *metrics.Metrics
}

func New(st Store, gen *generation.Gateway, cfg *config.Config, opts Options) Engine {
	reg := opts.Personas
	if reg == nil {
		reg = persona.Default()
	}
	if cfg == nil {
		cfg = config.Default()
	}
	j := opts.Journal
	if j == nil {
		j = journal.Nop{}
	}
	log := logging.OrNop(opts.Logger)
	return Engine{
		Store:    st,
		Gen:      gen,
		Personas: reg,
		Router: router.Router{
			Personas: reg,
			Gen:      gen,
			Config:   cfg.Router,
			Logger:   log.Named("router"),
			Metrics:  opts.Metrics,
		},
		Prompts: prompt.Assembler{VerdictAfterUserTurns: cfg.Gatekeeper.VerdictAfterUserTurns, Personas: reg},
		Calls: calls.Executor{
			Tasks:    st,
			Images:   gen,
			Personas: reg,
			Logger:   log.Named("calls"),
			Metrics:  opts.Metrics,
		},
		Transcripts: Transcripts{Store: st, Personas: reg},
		Journal:     j,
		Config:      cfg,
		Logger:      log,
		Metrics:     opts.Metrics,
		Now:         time.Now,
	}
}

// CheckPersonas reports configured persona ids that reg does not know.
func CheckPersonas(cfg *config.Config, reg *persona.Registry) error {
	refs := []struct{ key, id string }{
		{"router.default_persona", cfg.Router.DefaultPersona},
		{"panel.summarizer", cfg.Panel.Summarizer},
		{"gatekeeper.persona", cfg.Gatekeeper.Persona},
	}
	for _, seat := range cfg.Panel.Seats {
		refs = append(refs, struct{ key, id string }{"panel.seats", seat})
	}
	var errs []error
	for _, ref := range refs {
		if !reg.Has(ref.id) {
			errs = append(errs, fmt.Errorf("config.%s: %w: %q", ref.key, persona.ErrUnknownPersona, ref.id))
		}
	}
	return errors.Join(errs...)
}

func (e Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

// TurnRequest is one inbound user message.
type TurnRequest struct {
	Mode    domain.Mode `json:"mode"`
	Message string      `json:"message"`
	IdeaID  string      `json:"idea_id,omitempty"`
	// PersonaID names the persona of a direct turn.
	PersonaID string `json:"persona_id,omitempty"`
	// History replaces the stored transcript as context when non-empty.
	History []domain.Message `json:"history,omitempty"`
	// Judge forces the gatekeeper verdict.
	Judge bool `json:"judge,omitempty"`
	// NoStream uses blocking generation and relays whole replies.
	NoStream bool `json:"no_stream,omitempty"`
}

type TurnResult struct {
	PersonaIDs []string         `json:"persona_ids"`
	Messages   []domain.Message `json:"messages,omitempty"`
	Verdict    *domain.Verdict  `json:"verdict,omitempty"`
	Effects    []calls.Effect   `json:"effects,omitempty"`
	Route      *router.Decision `json:"route,omitempty"`
}

func (e Engine) validate(req *TurnRequest) error {
	req.Message = strings.TrimSpace(req.Message)
	if req.Message == "" {
		return fmt.Errorf("%w: message is required", ErrInvalidTurn)
	}
	if _, ok := domain.ParseMode(string(req.Mode)); !ok {
		return fmt.Errorf("%w: unknown mode %q", ErrInvalidTurn, req.Mode)
	}
	if req.Mode == domain.ModeDirect {
		if req.PersonaID == "" {
			return fmt.Errorf("%w: direct turns need a persona", ErrInvalidTurn)
		}
		if _, err := e.Personas.Lookup(req.PersonaID); err != nil {
			return err
		}
	}
	return nil
}

// RunTurn executes one turn, relaying events to sink in order. The returned
// error is also reported to sink as an ErrorEvent; validation errors are
// returned before anything is emitted.
func (e Engine) RunTurn(ctx context.Context, req TurnRequest, sink Sink) (TurnResult, error) {
	if err := e.validate(&req); err != nil {
		return TurnResult{}, err
	}
	start := e.now()
	log := e.Logger.With(zap.String("mode", string(req.Mode)), zap.String("idea", req.IdeaID))
	t := &turn{
		Engine: e,
		req:    req,
		log:    log,
		out:    &relay{sink: sink, mode: req.Mode, log: log, metrics: e.Metrics},
	}
	e.Metrics.TurnStarted()
	log.Info("turn started", zap.String("persona", req.PersonaID))

	err := t.run(ctx)
	took := e.now().Sub(start)
	if err != nil {
		e.Metrics.TurnFinished(string(req.Mode), "error", took)
		log.Warn("turn failed", zap.Strings("personas", t.spoken), zap.Duration("took", took), zap.Error(err))
		t.out.emit(ErrorEvent{Message: err.Error(), PersonaID: t.active, Partial: t.partial})
		return t.result(), err
	}
	e.Metrics.TurnFinished(string(req.Mode), "ok", took)
	t.out.emit(DoneEvent{Done: true, PersonaIDs: t.spoken, Verdict: t.verdict, TaskEffects: t.effects})
	log.Info("turn finished", zap.Strings("personas", t.spoken), zap.Duration("took", took), zap.Int("calls", len(t.effects)))

	rec := journal.TurnRecord{
		IdeaID:     req.IdeaID,
		Mode:       string(req.Mode),
		PersonaIDs: t.spoken,
		Effects:    t.effects,
		Duration:   took,
		At:         start,
	}
	if t.verdict != nil {
		rec.Verdict = string(*t.verdict)
	}
	if err := e.Journal.Record(context.WithoutCancel(ctx), rec); err != nil {
		log.Warn("journal turn", zap.Error(err))
	}
	return t.result(), nil
}
