package boardroomsdk

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sseServer(t *testing.T, frames ...string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v0/chat/routed", r.URL.Path)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		var req ChatRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "hello", req.Message)
		w.Header().Set("Content-Type", "text/event-stream")
		for _, f := range frames {
			fmt.Fprint(w, f)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestChatDecodesEventsInOrder(t *testing.T) {
	srv := sseServer(t,
		"event: route\ndata: {\"persona_id\":\"cto\",\"confidence\":0.9,\"path\":\"ai\"}\n\n",
		"event: fragment\ndata: {\"persona_id\":\"cto\",\"text\":\"Use \"}\n\n",
		"event: fragment\ndata: {\"persona_id\":\"cto\",\"text\":\"Go.\"}\n\n",
		"event: done\ndata: {\"done\":true,\"persona_ids\":[\"cto\"]}\n\n",
	)
	c := New(srv.URL, "tok")

	var names []string
	var text string
	done, err := c.Chat(context.Background(), "routed", ChatRequest{Message: "hello"}, func(ev Event) error {
		names = append(names, ev.Name)
		if ev.Fragment != nil {
			text += ev.Fragment.Text
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"route", "fragment", "fragment", "done"}, names)
	assert.Equal(t, "Use Go.", text)
	assert.Equal(t, []string{"cto"}, done.PersonaIDs)
}

func TestChatReturnsTurnError(t *testing.T) {
	srv := sseServer(t,
		"event: route\ndata: {\"persona_id\":\"cfo\",\"path\":\"keyword\"}\n\n",
		"event: error\ndata: {\"message\":\"upstream down\",\"persona_id\":\"cfo\",\"partial\":\"Char\"}\n\n",
	)
	_, err := New(srv.URL, "tok").Chat(context.Background(), "routed", ChatRequest{Message: "hello"}, nil)
	var te *TurnError
	require.True(t, errors.As(err, &te))
	assert.Equal(t, "Char", te.Partial)
}

func TestChatWithoutDoneIsAnError(t *testing.T) {
	srv := sseServer(t, "event: fragment\ndata: {\"text\":\"half\"}\n\n")
	_, err := New(srv.URL, "tok").Chat(context.Background(), "routed", ChatRequest{Message: "hello"}, nil)
	assert.EqualError(t, err, "stream ended without a done event")
}

func TestAPIErrorsSurfaceStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		fmt.Fprint(w, `{"error":{"code":"idea_locked","message":"idea has not passed the gatekeeper"}}`)
	}))
	defer srv.Close()

	_, err := New(srv.URL, "tok").Chat(context.Background(), "panel", ChatRequest{Message: "hi"}, nil)
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusForbidden, apiErr.StatusCode)

	_, err = New(srv.URL, "tok").Ideas(context.Background())
	require.True(t, errors.As(err, &apiErr))
}

func TestIdeaAndTaskHelpers(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/v0/ideas":
			w.WriteHeader(http.StatusCreated)
			fmt.Fprint(w, `{"id":"i1","owner_id":"alice","title":"Dog walking app"}`)
		case r.Method == http.MethodPost && r.URL.Path == "/v0/ideas/i1/tasks":
			var in TaskInput
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&in))
			w.WriteHeader(http.StatusCreated)
			fmt.Fprintf(w, `{"id":"t1","idea_id":"i1","title":%q,"status":"todo","priority":"medium"}`, in.Title)
		case r.Method == http.MethodGet && r.URL.Path == "/v0/ideas/i1/messages":
			assert.Equal(t, "panel", r.URL.Query().Get("mode"))
			fmt.Fprint(w, `{"items":[{"id":"m1","mode":"panel","role":"user","content":"hi"}]}`)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()
	c := New(srv.URL, "tok")
	ctx := context.Background()

	idea, err := c.CreateIdea(ctx, "Dog walking app", "")
	require.NoError(t, err)
	assert.Equal(t, "i1", idea.ID)

	task, err := c.CreateTask(ctx, idea.ID, TaskInput{Title: "Interview walkers"})
	require.NoError(t, err)
	assert.Equal(t, "Interview walkers", task.Title)

	msgs, err := c.Messages(ctx, idea.ID, "panel", "")
	require.NoError(t, err)
	require.Len(t, msgs, 1)
}
