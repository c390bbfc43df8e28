package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"boardroom/internal/engine"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = wsPongWait * 9 / 10
	wsReadLimit  = 1 << 20
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// wsRequest is one turn request sent as a text message.
type wsRequest struct {
	Mode string `json:"mode"`
	ChatRequest
}

// wsFrame wraps every event as {"type": <event>, "data": {...}}.
type wsFrame struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// serveWS runs one turn per inbound message, strictly in sequence.
func (s *service) serveWS(w http.ResponseWriter, r *http.Request) {
	if _, authErr := ownerIDFromContext(r.Context()); authErr != nil {
		respondStatusError(w, authErr)
		return
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("websocket upgrade", zap.Error(err))
		return
	}
	defer conn.Close()
	s.metrics.WSOpened()
	defer s.metrics.WSClosed()

	conn.SetReadLimit(wsReadLimit)
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})
	done := make(chan struct{})
	defer close(done)
	go keepAlive(conn, done)

	send := func(typ string, data any) error {
		conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
		return conn.WriteJSON(wsFrame{Type: typ, Data: data})
	}
	sink := engine.SinkFunc(func(ev engine.Event) error {
		return send(ev.EventName(), ev)
	})

	for {
		conn.SetReadDeadline(time.Now().Add(wsPongWait))
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.log.Info("websocket read", zap.Error(err))
			}
			return
		}
		var msg wsRequest
		if err := json.Unmarshal(raw, &msg); err != nil {
			if send("error", apiErrorBody{Code: "bad_request", Message: "invalid chat request"}) != nil {
				return
			}
			continue
		}
		req, admitErr := s.admit(r.Context(), msg.Mode, msg.ChatRequest)
		if admitErr != nil {
			body := apiErrorBody{Code: defaultCodeForStatus(statusOf(admitErr)), Message: admitErr.Error()}
			if ae, ok := admitErr.(*apiError); ok {
				body = ae.Body
			}
			if send("error", body) != nil {
				return
			}
			continue
		}
		s.runTurn(r.Context(), req, sink)
	}
}

func keepAlive(conn *websocket.Conn, done <-chan struct{}) {
	ticker := time.NewTicker(wsPingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteWait)); err != nil {
				return
			}
		}
	}
}
