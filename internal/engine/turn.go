package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"boardroom/internal/calls"
	"boardroom/internal/domain"
	"boardroom/internal/generation"
	"boardroom/internal/persona"
	"boardroom/internal/prompt"
	"boardroom/internal/router"
	"boardroom/internal/verdict"
)

// turn is the state of one RunTurn call.
type turn struct {
	Engine
	req  TurnRequest
	log  *zap.Logger
	out  *relay
	idea *prompt.Idea

	// replies are the assistant messages persisted when the turn finishes.
	replies []domain.Message
	stored  []domain.Message
	spoken  []string
	effects []calls.Effect
	verdict *domain.Verdict
	route   *router.Decision

	active  string
	partial string
}

func (t *turn) result() TurnResult {
	return TurnResult{
		PersonaIDs: t.spoken,
		Messages:   t.stored,
		Verdict:    t.verdict,
		Effects:    t.effects,
		Route:      t.route,
	}
}

func (t *turn) run(ctx context.Context) error {
	if t.req.IdeaID != "" {
		idea, err := t.Store.GetIdea(ctx, t.req.IdeaID)
		if err != nil {
			return fmt.Errorf("load idea %s: %w", t.req.IdeaID, err)
		}
		t.idea = &prompt.Idea{Title: idea.Title, Description: idea.Description}
	}
	switch t.req.Mode {
	case domain.ModeDirect:
		return t.direct(ctx)
	case domain.ModeRouted:
		return t.routed(ctx)
	case domain.ModePanel:
		return t.panel(ctx)
	case domain.ModeGatekeeper:
		return t.gatekeeper(ctx)
	}
	return fmt.Errorf("%w: unknown mode %q", ErrInvalidTurn, t.req.Mode)
}

// history is the request's history when given, otherwise the stored partition.
func (t *turn) history(ctx context.Context, mode domain.Mode, personaID string, limit int) ([]domain.Message, error) {
	if len(t.req.History) > 0 {
		return lastN(t.req.History, limit), nil
	}
	return t.Transcripts.Recent(ctx, t.req.IdeaID, mode, personaID, limit)
}

// persistUser stores the user message before any generation happens.
func (t *turn) persistUser(ctx context.Context) error {
	stored, err := t.Transcripts.Record(ctx, t.req.IdeaID, domain.Message{
		Mode: t.req.Mode, Role: domain.RoleUser, Content: t.req.Message,
	})
	t.stored = append(t.stored, stored...)
	return err
}

// finish persists the turn's remaining messages in one write.
func (t *turn) finish(ctx context.Context, user *domain.Message) error {
	msgs := make([]domain.Message, 0, len(t.replies)+1)
	if user != nil {
		msgs = append(msgs, *user)
	}
	msgs = append(msgs, t.replies...)
	stored, err := t.Transcripts.Record(ctx, t.req.IdeaID, msgs...)
	t.stored = append(t.stored, stored...)
	return err
}

func (t *turn) reply(p persona.Persona, text string) {
	t.spoken = append(t.spoken, p.ID)
	t.replies = append(t.replies, domain.Message{
		Mode: t.req.Mode, PersonaID: p.ID, Role: domain.RoleAssistant, Content: text,
	})
}

func (t *turn) direct(ctx context.Context) error {
	p, err := t.Personas.Lookup(t.req.PersonaID)
	if err != nil {
		return err
	}
	window := t.Config.Context.RollingWindow
	var sections []prompt.Section
	var tasks []domain.Task

	own, err := t.history(ctx, domain.ModeDirect, p.ID, window)
	if err != nil {
		return err
	}
	sections = append(sections, Section("CONVERSATION HISTORY", own, t.Transcripts.ByName))
	if t.req.IdeaID != "" {
		routed, err := t.Transcripts.Recent(ctx, t.req.IdeaID, domain.ModeRouted, "", window)
		if err != nil {
			return err
		}
		panel, err := t.Transcripts.Recent(ctx, t.req.IdeaID, domain.ModePanel, "", window)
		if err != nil {
			return err
		}
		sections = append(sections,
			Section("TEAM CHAT CONTEXT", routed, t.Transcripts.ByName),
			Section("BOARDROOM CONTEXT", panel, t.Transcripts.ByName))
		if p.FullContext {
			gate, err := t.Transcripts.Recent(ctx, t.req.IdeaID, domain.ModeGatekeeper, "", window)
			if err != nil {
				return err
			}
			direct, err := t.Transcripts.Recent(ctx, t.req.IdeaID, domain.ModeDirect, "", 0)
			if err != nil {
				return err
			}
			var others []domain.Message
			for _, m := range direct {
				if m.PersonaID != p.ID {
					others = append(others, m)
				}
			}
			sections = append(sections,
				Section("GATEKEEPER CONTEXT", gate, t.Transcripts.ByName),
				Section("ONE-ON-ONE CONTEXT", lastN(others, window), t.Transcripts.ByName))
			if tasks, err = t.Store.ListTasks(ctx, t.req.IdeaID); err != nil {
				return fmt.Errorf("load tasks: %w", err)
			}
		}
	}

	pr, err := t.Prompts.Build(prompt.Input{
		Mode: domain.ModeDirect, Persona: p, Message: t.req.Message, Context: sections,
		Extras: prompt.Extras{Tasks: tasks, Idea: t.idea},
	})
	if err != nil {
		return err
	}
	text, err := t.speak(ctx, p, pr, true)
	if err != nil {
		return err
	}
	t.reply(p, text)
	return t.finish(ctx, &domain.Message{Mode: domain.ModeDirect, PersonaID: p.ID, Role: domain.RoleUser, Content: t.req.Message})
}

func (t *turn) routed(ctx context.Context) error {
	history, err := t.history(ctx, domain.ModeRouted, "", 0)
	if err != nil {
		return err
	}
	if err := t.persistUser(ctx); err != nil {
		return err
	}
	d := t.Router.Route(ctx, router.Input{Message: t.req.Message, Idea: t.idea, History: history})
	t.route = &d
	p, err := t.Personas.Lookup(d.PersonaID)
	if err != nil {
		return err
	}
	t.out.emit(RouteEvent{PersonaID: d.PersonaID, Confidence: d.Confidence, Reasoning: d.Reasoning, Path: d.Path})

	recent := lastN(history, t.Config.Context.RoutedWindow)
	pr, err := t.Prompts.Build(prompt.Input{
		Mode: domain.ModeRouted, Persona: p, Message: t.req.Message,
		Context: []prompt.Section{Section("CONTEXT", recent, ByID)},
	})
	if err != nil {
		return err
	}
	text, err := t.speak(ctx, p, pr, true)
	if err != nil {
		return err
	}
	t.reply(p, text)
	return t.finish(ctx, nil)
}

func (t *turn) panel(ctx context.Context) error {
	seats := make([]persona.Persona, 0, len(t.Config.Panel.Seats))
	for _, id := range t.Config.Panel.Seats {
		p, err := t.Personas.Lookup(id)
		if err != nil {
			return err
		}
		seats = append(seats, p)
	}
	summarizer, err := t.Personas.Lookup(t.Config.Panel.Summarizer)
	if err != nil {
		return err
	}
	history, err := t.history(ctx, domain.ModePanel, "", t.Config.Panel.HistoryWindow)
	if err != nil {
		return err
	}
	if err := t.persistUser(ctx); err != nil {
		return err
	}
	previous := []prompt.Section{Section("PREVIOUS DISCUSSION HISTORY", history, t.Transcripts.ByName)}

	var transcript strings.Builder
	for _, p := range seats {
		pr, err := t.Prompts.Build(prompt.Input{
			Mode: domain.ModePanel, Persona: p, Message: t.req.Message, Context: previous,
			Extras: prompt.Extras{Transcript: transcript.String()},
		})
		if err != nil {
			return err
		}
		text, err := t.speak(ctx, p, pr, false)
		if err != nil {
			return err
		}
		t.reply(p, text)
		fmt.Fprintf(&transcript, "%s: %s\n\n", p.Name, text)
	}

	pr, err := t.Prompts.Build(prompt.Input{
		Mode: domain.ModePanel, Persona: summarizer, Message: t.req.Message,
		Extras: prompt.Extras{Summary: true, Transcript: transcript.String()},
	})
	if err != nil {
		return err
	}
	text, err := t.speak(ctx, summarizer, pr, true)
	if err != nil {
		return err
	}
	t.reply(summarizer, text)
	return t.finish(ctx, nil)
}

func (t *turn) gatekeeper(ctx context.Context) error {
	p, err := t.Personas.Lookup(t.Config.Gatekeeper.Persona)
	if err != nil {
		return err
	}
	history, err := t.history(ctx, domain.ModeGatekeeper, "", 0)
	if err != nil {
		return err
	}
	speaker := strings.ToUpper(p.Name)
	label := func(m domain.Message) string {
		if m.Role == domain.RoleAssistant {
			return speaker
		}
		return "USER"
	}
	extras := prompt.Extras{PriorUserTurns: countUser(history), Judge: t.req.Judge, Idea: t.idea}
	pr, err := t.Prompts.Build(prompt.Input{
		Mode: domain.ModeGatekeeper, Persona: p, Message: t.req.Message,
		Context: []prompt.Section{Section("CONVERSATION HISTORY", history, label)},
		Extras:  extras,
	})
	if err != nil {
		return err
	}
	judging := t.Prompts.Judging(extras)
	t.log.Debug("gatekeeper pass", zap.Bool("judging", judging), zap.Int("prior_user_turns", extras.PriorUserTurns))

	text, err := t.speak(ctx, p, pr, false)
	if err != nil {
		return err
	}
	t.reply(p, text)
	if v, ok := verdict.Parse(text); ok {
		t.verdict = &v
		t.Metrics.RecordVerdict(string(v))
		if t.req.IdeaID != "" {
			if err := t.Store.SetVerdict(ctx, t.req.IdeaID, v, text); err != nil {
				return fmt.Errorf("store verdict: %w", err)
			}
		}
		t.log.Info("verdict rendered", zap.String("verdict", string(v)))
	}
	return t.finish(ctx, &domain.Message{Mode: domain.ModeGatekeeper, Role: domain.RoleUser, Content: t.req.Message})
}

// speak runs one persona pass and returns its accumulated text, including
// call confirmations. Declarations are attached only when allowCalls is set
// and the persona may issue calls.
func (t *turn) speak(ctx context.Context, p persona.Persona, pr prompt.Prompt, allowCalls bool) (string, error) {
	var decls []generation.Declaration
	if allowCalls && p.CanCall {
		decls = calls.Catalog()
	}
	t.active, t.partial = p.ID, ""
	var acc strings.Builder
	text := func(s string) {
		if s == "" {
			return
		}
		acc.WriteString(s)
		t.partial = acc.String()
		t.out.emit(FragmentEvent{PersonaID: p.ID, Text: s})
	}
	call := func(c generation.Call) {
		res, err := t.Calls.Execute(ctx, calls.Scope{IdeaID: t.req.IdeaID, PersonaID: p.ID}, c)
		effect := res.Effect
		t.effects = append(t.effects, effect)
		acc.WriteString(res.Confirmation)
		t.partial = acc.String()
		t.out.emit(FragmentEvent{PersonaID: p.ID, Text: res.Confirmation, Call: &effect, Error: err != nil || !effect.OK})
	}

	if t.req.NoStream {
		if len(decls) == 0 {
			s, err := t.Gen.Complete(ctx, pr.Text, pr.System)
			if err != nil {
				return acc.String(), err
			}
			text(s)
			return acc.String(), nil
		}
		res, err := t.Gen.CompleteWithCalls(ctx, pr.Text, decls, pr.System)
		if err != nil {
			return acc.String(), err
		}
		text(res.Text)
		for _, c := range res.Calls {
			call(c)
		}
		return acc.String(), nil
	}

	for frag, err := range t.Gen.Stream(ctx, generation.Request{System: pr.System, Prompt: pr.Text, Declarations: decls}) {
		if err != nil {
			return acc.String(), err
		}
		text(frag.Text)
		for _, c := range frag.Calls {
			call(c)
		}
	}
	return acc.String(), nil
}

// IsInvalid reports whether err is a caller error rather than a failure.
func IsInvalid(err error) bool {
	return errors.Is(err, ErrInvalidTurn) || errors.Is(err, persona.ErrUnknownPersona)
}
