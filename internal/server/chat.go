package server

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/sse"
	"go.uber.org/zap"

	"boardroom/internal/domain"
	"boardroom/internal/engine"
)

// turnEvents names the SSE event of every engine event type.
var turnEvents = map[string]any{
	"route":    engine.RouteEvent{},
	"fragment": engine.FragmentEvent{},
	"done":     engine.DoneEvent{},
	"error":    engine.ErrorEvent{},
}

type admittedKey struct{}

type chatInput struct {
	Mode string      `path:"mode" enum:"direct,routed,panel,gatekeeper"`
	Body ChatRequest `json:"body"`
}

// admit turns a chat request into a turn the caller may run. Direct and panel
// turns on an idea need the gatekeeper's approval first.
func (s *service) admit(ctx context.Context, mode string, body ChatRequest) (engine.TurnRequest, huma.StatusError) {
	m, ok := domain.ParseMode(mode)
	if !ok {
		return engine.TurnRequest{}, newAPIError(http.StatusBadRequest, "unknown_mode", "unknown chat mode", map[string]any{"mode": mode})
	}
	if strings.TrimSpace(body.Message) == "" {
		return engine.TurnRequest{}, newAPIError(http.StatusBadRequest, "bad_request", "message is required", nil)
	}
	if m == domain.ModeDirect {
		if body.PersonaID == "" {
			return engine.TurnRequest{}, newAPIError(http.StatusBadRequest, "bad_request", "persona_id is required for direct chat", nil)
		}
		if !s.personas.Has(body.PersonaID) {
			return engine.TurnRequest{}, newAPIError(http.StatusBadRequest, "unknown_persona", "unknown persona", map[string]any{"persona_id": body.PersonaID})
		}
	}
	if m == domain.ModeGatekeeper && body.IdeaID == "" {
		return engine.TurnRequest{}, newAPIError(http.StatusBadRequest, "bad_request", "idea_id is required for the gatekeeper", nil)
	}
	if body.IdeaID != "" {
		idea, err := s.ownedIdea(ctx, body.IdeaID)
		if err != nil {
			return engine.TurnRequest{}, handleError(err)
		}
		if (m == domain.ModeDirect || m == domain.ModePanel) && !idea.Unlocked() {
			details := map[string]any{"idea_id": idea.ID}
			if idea.Verdict != nil {
				details["verdict"] = string(*idea.Verdict)
			}
			return engine.TurnRequest{}, newAPIError(http.StatusForbidden, "idea_locked", "idea has not passed the gatekeeper", details)
		}
	}
	return engine.TurnRequest{
		Mode:      m,
		Message:   body.Message,
		IdeaID:    body.IdeaID,
		PersonaID: body.PersonaID,
		History:   historyMessages(m, body.History),
		Judge:     body.Judge,
		NoStream:  body.NoStream,
	}, nil
}

// runTurn executes an admitted turn detached from the caller's cancellation.
func (s *service) runTurn(ctx context.Context, req engine.TurnRequest, sink engine.Sink) {
	ctx = context.WithoutCancel(ctx)
	if s.turnTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.turnTimeout)
		defer cancel()
	}
	_, err := s.engine.RunTurn(ctx, req, sink)
	if err != nil && engine.IsInvalid(err) {
		// Rejected before the engine emitted anything.
		if emitErr := sink.Emit(engine.ErrorEvent{Message: err.Error(), PersonaID: req.PersonaID}); emitErr != nil {
			s.log.Debug("report rejected turn", zap.Error(emitErr))
		}
	}
}

// gateChat admits the request before the stream opens so rejections keep
// their HTTP status.
func (s *service) gateChat(ctx huma.Context, next func(huma.Context)) {
	var body ChatRequest
	if raw := bodyBytes(ctx.Context()); len(raw) > 0 {
		if err := json.Unmarshal(raw, &body); err != nil {
			writeError(ctx, newAPIError(http.StatusBadRequest, "bad_request", "invalid chat request body", map[string]any{"error": err.Error()}))
			return
		}
	}
	req, err := s.admit(ctx.Context(), ctx.Param("mode"), body)
	if err != nil {
		writeError(ctx, err)
		return
	}
	next(huma.WithValue(ctx, admittedKey{}, req))
}

func writeError(ctx huma.Context, err huma.StatusError) {
	ctx.SetHeader("Content-Type", "application/json")
	ctx.SetStatus(statusOf(err))
	_ = json.NewEncoder(ctx.BodyWriter()).Encode(err)
}

func registerChat(api huma.API, s *service) {
	sse.Register(api, huma.Operation{
		OperationID: "chat",
		Method:      http.MethodPost,
		Path:        "/chat/{mode}",
		Summary:     "Run one conversation turn and stream its events",
		Errors: []int{
			http.StatusBadRequest,
			http.StatusForbidden,
			http.StatusNotFound,
		},
		Middlewares: huma.Middlewares{s.gateChat},
	}, turnEvents, func(ctx context.Context, input *chatInput, send sse.Sender) {
		req, ok := ctx.Value(admittedKey{}).(engine.TurnRequest)
		if !ok {
			_ = send.Data(engine.ErrorEvent{Message: "turn was not admitted"})
			return
		}
		s.runTurn(ctx, req, engine.SinkFunc(func(ev engine.Event) error {
			return send.Data(ev)
		}))
	})
}
