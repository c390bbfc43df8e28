// Package router picks the persona that answers a routed turn.
package router

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"go.uber.org/zap"

	"boardroom/internal/config"
	"boardroom/internal/domain"
	"boardroom/internal/logging"
	"boardroom/internal/metrics"
	"boardroom/internal/persona"
	"boardroom/internal/prompt"
)

const (
	PathAI      = "ai"
	PathKeyword = "keyword"
)

// Completer is the blocking half of the generation gateway.
type Completer interface {
	Complete(ctx context.Context, prompt, system string) (string, error)
}

// Decision is a single routing choice. PersonaID always resolves in the registry.
type Decision struct {
	PersonaID  string  `json:"persona_id"`
	Confidence float64 `json:"confidence"`
	Reasoning  string  `json:"reasoning"`
	Path       string  `json:"path" enum:"ai,keyword"`
}

type Input struct {
	Message string
	Idea    *prompt.Idea
	History []domain.Message
}

type Router struct {
	Personas *persona.Registry
	Gen      Completer
	Config   config.Router
	Logger   *zap.Logger
	Metrics  *metrics.Metrics
}

var errNoJSON = errors.New("no JSON object in routing reply")

type reply struct {
	AgentID    string   `json:"agentId"`
	Confidence *float64 `json:"confidence"`
	Reasoning  string   `json:"reasoning"`
}

// Route asks the model first and falls back to keyword scoring on any
// failure. It never returns an error.
func (r Router) Route(ctx context.Context, in Input) Decision {
	log := logging.OrNop(r.Logger)
	d, err := r.routeWithAI(ctx, in)
	if err != nil {
		log.Info("routing fell back to keywords", zap.Error(err))
		d = r.Keywords(in.Message)
	}
	r.Metrics.RecordRouting(d.Path, d.PersonaID)
	log.Debug("routed", zap.String("persona", d.PersonaID), zap.String("path", d.Path), zap.Float64("confidence", d.Confidence))
	return d
}

func (r Router) routeWithAI(ctx context.Context, in Input) (Decision, error) {
	if r.Gen == nil {
		return Decision{}, fmt.Errorf("no generation backend")
	}
	text, err := r.Gen.Complete(ctx, r.RosterPrompt(in), "")
	if err != nil {
		return Decision{}, err
	}
	var rep reply
	if err := decodeFirstObject(text, &rep); err != nil {
		return Decision{}, err
	}
	p, ok := r.Personas.Get(strings.TrimSpace(rep.AgentID))
	if !ok || !p.Routable {
		return Decision{}, fmt.Errorf("%w: %q", persona.ErrUnknownPersona, rep.AgentID)
	}
	conf := r.Config.AIConfidence
	if rep.Confidence != nil && *rep.Confidence > 0 {
		conf = min(*rep.Confidence, 1)
	}
	reasoning := rep.Reasoning
	if reasoning == "" {
		reasoning = "AI-powered routing decision"
	}
	return Decision{PersonaID: p.ID, Confidence: conf, Reasoning: reasoning, Path: PathAI}, nil
}

// decodeFirstObject finds the first well-formed JSON object embedded in text.
func decodeFirstObject(text string, v any) error {
	s := strings.TrimSpace(text)
	if s == "" {
		return io.ErrUnexpectedEOF
	}
	for i := strings.IndexByte(s, '{'); i >= 0; {
		dec := json.NewDecoder(strings.NewReader(s[i:]))
		if err := dec.Decode(v); err == nil {
			return nil
		}
		next := strings.IndexByte(s[i+1:], '{')
		if next < 0 {
			break
		}
		i += next + 1
	}
	return errNoJSON
}

// RosterPrompt renders the delegator prompt for in.
func (r Router) RosterPrompt(in Input) string {
	var b strings.Builder
	b.WriteString("You are the Delegator, the routing system for an AI advisory board.\n\n")
	b.WriteString("YOUR JOB:\nAnalyze the user's request and delegate it to the SINGLE BEST persona from the team.\n\n")
	b.WriteString("AVAILABLE PERSONAS:\n")
	routable := r.Personas.Routable()
	ids := make([]string, 0, len(routable))
	for _, p := range routable {
		fmt.Fprintf(&b, "- %s (%s): %s | Expertise: %s\n", p.Name, p.ID, p.Title, strings.Join(p.Expertise, ", "))
		ids = append(ids, p.ID)
	}
	if in.Idea != nil && in.Idea.Title != "" {
		desc := in.Idea.Description
		if desc == "" {
			desc = "N/A"
		}
		fmt.Fprintf(&b, "\nACTIVE IDEA:\nName: %s\nDescription: %s\n", in.Idea.Title, desc)
	}
	if recent := r.recent(in.History); len(recent) > 0 {
		b.WriteString("\nRECENT CHAT CONTEXT:\n")
		b.WriteString(strings.Join(recent, "\n"))
		b.WriteString("\n")
	}
	fmt.Fprintf(&b, "\nUSER REQUEST:\n%q\n\n", in.Message)
	b.WriteString("ROUTING RULES:\n1. Choose the SINGLE MOST APPROPRIATE persona based on the request\n")
	n := 2
	for _, p := range routable {
		if p.ID == r.Config.DefaultPersona {
			continue
		}
		fmt.Fprintf(&b, "%d. %s (%s): %s\n", n, p.Name, p.ID, strings.Join(p.Expertise, ", "))
		n++
	}
	if def, ok := r.Personas.Get(r.Config.DefaultPersona); ok {
		fmt.Fprintf(&b, "%d. %s (%s): general tasks, operations, or when no clear match (DEFAULT)\n", n, def.Name, def.ID)
	}
	fmt.Fprintf(&b, `
RESPONSE FORMAT (JSON only):
{
  "agentId": "%s",
  "confidence": 0.0-1.0,
  "reasoning": "Brief explanation of why this persona is best suited"
}

Be decisive. Choose ONE persona. No hedging.`, strings.Join(ids, "|"))
	return b.String()
}

func (r Router) recent(history []domain.Message) []string {
	window := r.Config.HistoryWindow
	if window > 0 && len(history) > window {
		history = history[len(history)-window:]
	}
	out := make([]string, 0, len(history))
	for _, m := range history {
		label := "User"
		if m.Role == domain.RoleAssistant && m.PersonaID != "" {
			label = r.Personas.Name(m.PersonaID)
		}
		content := m.Content
		if clip := r.Config.HistoryClip; clip > 0 && len([]rune(content)) > clip {
			content = string([]rune(content)[:clip])
		}
		out = append(out, fmt.Sprintf("%s: %s...", label, content))
	}
	return out
}

// Keywords scores every routable persona against the lowercased message and
// returns the first persona with the highest score.
func (r Router) Keywords(message string) Decision {
	msg := strings.ToLower(message)
	var best persona.Persona
	bestScore := 0
	for _, p := range r.Personas.Routable() {
		score := r.score(p, msg)
		if score > bestScore {
			best, bestScore = p, score
		}
	}
	if bestScore == 0 {
		fallback := r.Config.DefaultPersona
		if !r.Personas.Has(fallback) {
			fallback = r.Personas.Default().ID
		}
		return Decision{
			PersonaID:  fallback,
			Confidence: r.Config.DefaultConfidence,
			Reasoning:  "No specific expertise match, routing to the default persona for general handling",
			Path:       PathKeyword,
		}
	}
	return Decision{
		PersonaID:  best.ID,
		Confidence: min(float64(bestScore)/r.Config.ConfidenceScale, 1),
		Reasoning:  fmt.Sprintf("Keyword match for %s expertise", best.Title),
		Path:       PathKeyword,
	}
}

func (r Router) score(p persona.Persona, msg string) int {
	score := 0
	for _, kw := range p.Expertise {
		if strings.Contains(msg, kw) {
			score += r.Config.KeywordPoints
		}
	}
	for _, hint := range p.RoutingHints {
		if matchHint(msg, hint) {
			score += r.Config.BonusPoints
			break
		}
	}
	return score
}

// matchHint requires every "+"-joined part of hint to occur in msg.
func matchHint(msg, hint string) bool {
	for _, part := range strings.Split(hint, "+") {
		if part == "" || !strings.Contains(msg, part) {
			return false
		}
	}
	return true
}
