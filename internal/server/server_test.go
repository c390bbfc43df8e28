package server

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"boardroom/internal/config"
	"boardroom/internal/db"
	"boardroom/internal/domain"
	"boardroom/internal/engine"
	"boardroom/internal/generation"
	"boardroom/internal/generation/generationtest"
	"boardroom/internal/metrics"
	"boardroom/internal/migrate"
	"boardroom/internal/repo"
)

const testSecret = "test-secret"

type testServer struct {
	URL     string
	Repo    repo.Repo
	Backend *generationtest.Backend
	client  *http.Client
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	conn, err := db.Open(db.Config{Workspace: t.TempDir()})
	require.NoError(t, err)
	require.NoError(t, migrate.Migrate(context.Background(), conn))
	r := repo.New(conn)

	b := generationtest.New()
	m := metrics.New()
	gw := generation.NewGateway(b, generation.Options{Metrics: m})
	e := engine.New(r, gw, config.Default(), engine.Options{Metrics: m})
	handler, err := New(Config{
		Engine:   e,
		Repo:     r,
		BasePath: "/v0",
		Auth:     AuthConfig{JWTSecret: testSecret, DevLogin: true},
		Metrics:  m,
	})
	require.NoError(t, err)

	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	require.NoError(t, err)
	srv := &http.Server{Handler: handler}
	go srv.Serve(ln)
	t.Cleanup(func() {
		srv.Shutdown(context.Background())
		ln.Close()
		conn.Close()
	})
	return &testServer{
		URL:     "http://" + ln.Addr().String(),
		Repo:    r,
		Backend: b,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

func tokenFor(t *testing.T, owner string) string {
	t.Helper()
	tok, err := SignToken(testSecret, owner, time.Hour)
	require.NoError(t, err)
	return tok
}

func (s *testServer) do(t *testing.T, method, path string, body any, token string) (*http.Response, []byte) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, s.URL+path, reader)
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := s.client.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, data
}

func (s *testServer) createIdea(t *testing.T, token, title string) IdeaResponse {
	t.Helper()
	resp, body := s.do(t, http.MethodPost, "/v0/ideas", CreateIdeaRequest{Title: title}, token)
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))
	var idea IdeaResponse
	require.NoError(t, json.Unmarshal(body, &idea))
	return idea
}

type sseEvent struct {
	Event string
	Data  string
}

func parseSSE(t *testing.T, body []byte) []sseEvent {
	t.Helper()
	var (
		out []sseEvent
		cur sseEvent
	)
	sc := bufio.NewScanner(bytes.NewReader(body))
	for sc.Scan() {
		line := sc.Text()
		switch {
		case line == "":
			if cur.Data != "" {
				out = append(out, cur)
			}
			cur = sseEvent{}
		case strings.HasPrefix(line, "event:"):
			cur.Event = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:"):
			cur.Data += strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		}
	}
	if cur.Data != "" {
		out = append(out, cur)
	}
	return out
}

func eventNames(evs []sseEvent) []string {
	names := make([]string, 0, len(evs))
	for _, ev := range evs {
		names = append(names, ev.Event)
	}
	return names
}

func apiErrorCode(t *testing.T, body []byte) string {
	t.Helper()
	var env struct {
		Error apiErrorBody `json:"error"`
	}
	require.NoError(t, json.Unmarshal(body, &env), string(body))
	return env.Error.Code
}

func TestHealthIsPublicAndAPIRequiresAuth(t *testing.T) {
	s := newTestServer(t)

	resp, _ := s.do(t, http.MethodGet, "/v0/health", nil, "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body := s.do(t, http.MethodGet, "/v0/ideas", nil, "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "unauthorized", apiErrorCode(t, body))

	resp, body = s.do(t, http.MethodGet, "/v0/ideas", nil, "not-a-jwt")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "invalid_credentials", apiErrorCode(t, body))
}

func TestDevLoginMintsUsableToken(t *testing.T) {
	s := newTestServer(t)

	resp, body := s.do(t, http.MethodPost, "/v0/auth/dev/login", DevLoginRequest{OwnerID: "alice"}, "")
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	var login DevLoginResponse
	require.NoError(t, json.Unmarshal(body, &login))

	idea := s.createIdea(t, login.Token, "Dog walking app")
	assert.Equal(t, "alice", idea.OwnerID)
	assert.False(t, idea.Unlocked)

	resp, _ = s.do(t, http.MethodPost, "/v0/auth/dev/login", DevLoginRequest{}, "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestIdeasAreOwnerScoped(t *testing.T) {
	s := newTestServer(t)
	alice, bob := tokenFor(t, "alice"), tokenFor(t, "bob")
	idea := s.createIdea(t, alice, "Dog walking app")

	resp, body := s.do(t, http.MethodGet, "/v0/ideas/"+idea.ID, nil, bob)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "not_found", apiErrorCode(t, body))

	resp, body = s.do(t, http.MethodGet, "/v0/ideas", nil, bob)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var listed listIdeas
	require.NoError(t, json.Unmarshal(body, &listed))
	require.NotNil(t, listed.Items)
	assert.Empty(t, listed.Items)

	title := "Cat sitting app"
	resp, body = s.do(t, http.MethodPatch, "/v0/ideas/"+idea.ID, UpdateIdeaRequest{Title: &title}, alice)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	var updated IdeaResponse
	require.NoError(t, json.Unmarshal(body, &updated))
	assert.Equal(t, title, updated.Title)

	resp, _ = s.do(t, http.MethodDelete, "/v0/ideas/"+idea.ID, nil, bob)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp, _ = s.do(t, http.MethodDelete, "/v0/ideas/"+idea.ID, nil, alice)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
}

func TestTaskEndpoints(t *testing.T) {
	s := newTestServer(t)
	tok := tokenFor(t, "alice")
	idea := s.createIdea(t, tok, "Dog walking app")
	base := "/v0/ideas/" + idea.ID + "/tasks"

	resp, body := s.do(t, http.MethodPost, base, CreateTaskRequest{Title: "Interview walkers", Priority: "high"}, tok)
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))
	var task domain.Task
	require.NoError(t, json.Unmarshal(body, &task))
	assert.Equal(t, domain.TaskTodo, task.Status)
	require.NotNil(t, task.CreatedBy)
	assert.Equal(t, "alice", *task.CreatedBy)

	ghost := "ghost"
	resp, body = s.do(t, http.MethodPost, base, CreateTaskRequest{Title: "x", AssigneeID: &ghost}, tok)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "unknown_persona", apiErrorCode(t, body))

	status := "done"
	resp, body = s.do(t, http.MethodPatch, base+"/"+task.ID, UpdateTaskRequest{Status: &status}, tok)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	require.NoError(t, json.Unmarshal(body, &task))
	assert.Equal(t, domain.TaskDone, task.Status)

	resp, body = s.do(t, http.MethodGet, base, nil, tok)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var list listTasks
	require.NoError(t, json.Unmarshal(body, &list))
	require.Len(t, list.Items, 1)

	resp, _ = s.do(t, http.MethodDelete, base+"/"+task.ID, nil, tok)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, body = s.do(t, http.MethodGet, "/v0/ideas/"+idea.ID+"/events", nil, tok)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var evs paginatedEvents
	require.NoError(t, json.Unmarshal(body, &evs))
	var types []string
	for _, e := range evs.Items {
		types = append(types, e.Type)
	}
	assert.Contains(t, types, "task.created")
	assert.Contains(t, types, "task.updated")
}

func TestCatalogEndpoints(t *testing.T) {
	s := newTestServer(t)
	tok := tokenFor(t, "alice")

	resp, body := s.do(t, http.MethodGet, "/v0/personas", nil, tok)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var personas listPersonas
	require.NoError(t, json.Unmarshal(body, &personas))
	require.Len(t, personas.Items, 12)
	assert.Equal(t, "ceo", personas.Items[0].ID)
	assert.True(t, personas.Items[1].Default)

	resp, body = s.do(t, http.MethodGet, "/v0/calls", nil, tok)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var decls listCalls
	require.NoError(t, json.Unmarshal(body, &decls))
	var names []string
	for _, d := range decls.Items {
		names = append(names, d.Name)
	}
	assert.Equal(t, []string{"create_task", "update_task", "generate_image"}, names)
}

func TestRoutedChatStreamsRouteThenFragments(t *testing.T) {
	s := newTestServer(t)
	tok := tokenFor(t, "alice")
	s.Backend.QueueCompletion(generationtest.Reply{Text: `{"agentId":"cto","confidence":0.9,"reasoning":"stack question"}`})
	s.Backend.QueueStream(generationtest.Step{Text: "Use "}, generationtest.Step{Text: "Go."})

	resp, body := s.do(t, http.MethodPost, "/v0/chat/routed", ChatRequest{Message: "What stack should I use?"}, tok)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/event-stream")

	evs := parseSSE(t, body)
	require.Equal(t, []string{"route", "fragment", "fragment", "done"}, eventNames(evs))
	var route engine.RouteEvent
	require.NoError(t, json.Unmarshal([]byte(evs[0].Data), &route))
	assert.Equal(t, "cto", route.PersonaID)
	assert.Equal(t, "ai", route.Path)
	var done engine.DoneEvent
	require.NoError(t, json.Unmarshal([]byte(evs[3].Data), &done))
	assert.Equal(t, []string{"cto"}, done.PersonaIDs)
}

func TestChatGate(t *testing.T) {
	s := newTestServer(t)
	alice, bob := tokenFor(t, "alice"), tokenFor(t, "bob")
	idea := s.createIdea(t, alice, "Dog walking app")

	cases := []struct {
		name   string
		mode   string
		req    ChatRequest
		token  string
		status int
		code   string
	}{
		{"locked panel", "panel", ChatRequest{Message: "hi", IdeaID: idea.ID}, alice, http.StatusForbidden, "idea_locked"},
		{"locked direct", "direct", ChatRequest{Message: "hi", IdeaID: idea.ID, PersonaID: "cto"}, alice, http.StatusForbidden, "idea_locked"},
		{"foreign idea", "gatekeeper", ChatRequest{Message: "hi", IdeaID: idea.ID}, bob, http.StatusNotFound, "not_found"},
		{"gatekeeper needs idea", "gatekeeper", ChatRequest{Message: "hi"}, alice, http.StatusBadRequest, "bad_request"},
		{"unknown persona", "direct", ChatRequest{Message: "hi", PersonaID: "ghost"}, alice, http.StatusBadRequest, "unknown_persona"},
		{"direct needs persona", "direct", ChatRequest{Message: "hi"}, alice, http.StatusBadRequest, "bad_request"},
		{"empty message", "routed", ChatRequest{Message: "   "}, alice, http.StatusBadRequest, "bad_request"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp, body := s.do(t, http.MethodPost, "/v0/chat/"+tc.mode, tc.req, tc.token)
			assert.Equal(t, tc.status, resp.StatusCode, string(body))
			assert.Equal(t, tc.code, apiErrorCode(t, body))
		})
	}
	assert.Empty(t, s.Backend.StreamRequests())
}

func TestGatekeeperVerdictUnlocksPanel(t *testing.T) {
	s := newTestServer(t)
	tok := tokenFor(t, "alice")
	idea := s.createIdea(t, tok, "Dog walking app")

	s.Backend.QueueStream(generationtest.Step{Text: "VERDICT: FIRE\nREASONING:\nbig market"})
	resp, body := s.do(t, http.MethodPost, "/v0/chat/gatekeeper", ChatRequest{Message: "Judge it", IdeaID: idea.ID, Judge: true}, tok)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	evs := parseSSE(t, body)
	require.NotEmpty(t, evs)
	var done engine.DoneEvent
	require.NoError(t, json.Unmarshal([]byte(evs[len(evs)-1].Data), &done))
	require.NotNil(t, done.Verdict)
	assert.Equal(t, domain.VerdictFire, *done.Verdict)

	resp, body = s.do(t, http.MethodGet, "/v0/ideas/"+idea.ID, nil, tok)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var got IdeaResponse
	require.NoError(t, json.Unmarshal(body, &got))
	assert.True(t, got.Unlocked)
	assert.Equal(t, "VERDICT: FIRE\nREASONING:\nbig market", got.DashboardData["fullAnalysis"])

	s.Backend.StreamFunc = func(req generation.Request) []generationtest.Step {
		return []generationtest.Step{{Text: "noted"}}
	}
	resp, body = s.do(t, http.MethodPost, "/v0/chat/panel", ChatRequest{Message: "Pricing?", IdeaID: idea.ID}, tok)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	panel := parseSSE(t, body)
	require.NotEmpty(t, panel)
	assert.Equal(t, "done", panel[len(panel)-1].Event)

	resp, body = s.do(t, http.MethodGet, "/v0/ideas/"+idea.ID+"/messages?mode=panel", nil, tok)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var msgs listMessages
	require.NoError(t, json.Unmarshal(body, &msgs))
	assert.Len(t, msgs.Items, 6)

	resp, body = s.do(t, http.MethodDelete, "/v0/ideas/"+idea.ID+"/messages?mode=panel", nil, tok)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var cleared ClearMessagesResponse
	require.NoError(t, json.Unmarshal(body, &cleared))
	assert.EqualValues(t, 6, cleared.Removed)
}

func TestChatFailureEmitsErrorEvent(t *testing.T) {
	s := newTestServer(t)
	tok := tokenFor(t, "alice")
	s.Backend.QueueCompletion(generationtest.Reply{Text: `{"agentId":"cfo"}`})
	// No stream queued: the scripted backend fails the stream.

	resp, body := s.do(t, http.MethodPost, "/v0/chat/routed", ChatRequest{Message: "How much should I charge?"}, tok)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	evs := parseSSE(t, body)
	require.Equal(t, []string{"route", "error"}, eventNames(evs))
	var failed engine.ErrorEvent
	require.NoError(t, json.Unmarshal([]byte(evs[1].Data), &failed))
	assert.Equal(t, "cfo", failed.PersonaID)
}

func TestWebSocketChat(t *testing.T) {
	s := newTestServer(t)
	tok := tokenFor(t, "alice")
	s.Backend.QueueCompletion(generationtest.Reply{Text: `{"agentId":"cmo","confidence":0.6}`})
	s.Backend.QueueStream(generationtest.Step{Text: "Own the niche."})

	wsURL := "ws" + strings.TrimPrefix(s.URL, "http") + "/v0/ws/chat?access_token=" + tok
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	defer conn.Close()

	require.NoError(t, conn.WriteJSON(map[string]any{"mode": "panel", "message": "hi", "idea_id": "missing"}))
	var frame struct {
		Type string          `json:"type"`
		Data json.RawMessage `json:"data"`
	}
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	require.NoError(t, conn.ReadJSON(&frame))
	assert.Equal(t, "error", frame.Type)
	assert.Contains(t, string(frame.Data), "not_found")

	require.NoError(t, conn.WriteJSON(map[string]any{"mode": "routed", "message": "How do I get my brand noticed?"}))
	var types []string
	for {
		require.NoError(t, conn.ReadJSON(&frame))
		types = append(types, frame.Type)
		if frame.Type == "done" || frame.Type == "error" {
			break
		}
	}
	assert.Equal(t, []string{"route", "fragment", "done"}, types)
}

func TestOpenAPIAndMetricsServed(t *testing.T) {
	s := newTestServer(t)

	resp, body := s.do(t, http.MethodGet, "/v0/openapi.json", nil, tokenFor(t, "alice"))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "bearerAuth")
	assert.Contains(t, string(body), "/v0/chat/{mode}")

	resp, body = s.do(t, http.MethodGet, "/metrics", nil, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "boardroom_")
}
