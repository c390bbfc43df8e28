package engine

import (
	"go.uber.org/zap"

	"boardroom/internal/calls"
	"boardroom/internal/domain"
	"boardroom/internal/metrics"
)

// Event is one element of a turn's output stream.
type Event interface {
	EventName() string
}

// RouteEvent precedes every fragment of a routed turn.
type RouteEvent struct {
	PersonaID  string  `json:"persona_id"`
	Confidence float64 `json:"confidence"`
	Reasoning  string  `json:"reasoning"`
	Path       string  `json:"path" enum:"ai,keyword"`
}

// FragmentEvent carries incremental text. Call is set on the fragment that
// reports a structured call's confirmation.
type FragmentEvent struct {
	PersonaID string        `json:"persona_id,omitempty"`
	Text      string        `json:"text"`
	Call      *calls.Effect `json:"call,omitempty"`
	Error     bool          `json:"error,omitempty"`
}

type DoneEvent struct {
	Done        bool            `json:"done"`
	PersonaIDs  []string        `json:"persona_ids"`
	Verdict     *domain.Verdict `json:"verdict,omitempty" enum:"TRASH,MID,VIABLE,FIRE"`
	TaskEffects []calls.Effect  `json:"task_effects,omitempty"`
}

// ErrorEvent ends a failed turn. Partial is the text the active persona
// produced before the failure; it is never persisted.
type ErrorEvent struct {
	Message   string `json:"message"`
	PersonaID string `json:"persona_id,omitempty"`
	Partial   string `json:"partial,omitempty"`
}

func (RouteEvent) EventName() string    { return "route" }
func (FragmentEvent) EventName() string { return "fragment" }
func (DoneEvent) EventName() string     { return "done" }
func (ErrorEvent) EventName() string    { return "error" }

// Sink receives a turn's events in order.
type Sink interface {
	Emit(ev Event) error
}

type SinkFunc func(ev Event) error

func (f SinkFunc) Emit(ev Event) error { return f(ev) }

// Discard drops every event.
var Discard Sink = SinkFunc(func(Event) error { return nil })

// relay forwards events until the sink first fails; after that the turn keeps
// running and later events are dropped.
type relay struct {
	sink    Sink
	mode    domain.Mode
	log     *zap.Logger
	metrics *metrics.Metrics
	failed  bool
}

func (r *relay) emit(ev Event) {
	if r.failed || r.sink == nil {
		return
	}
	if err := r.sink.Emit(ev); err != nil {
		r.failed = true
		r.log.Info("client went away, turn continues without relay", zap.Error(err))
		return
	}
	if _, ok := ev.(FragmentEvent); ok {
		r.metrics.FragmentRelayed(string(r.mode))
	}
}
