package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"boardroom/internal/domain"
	"boardroom/internal/engine"
	boardroomsdk "boardroom/sdk/go"
)

func TestSetEnvValueReplacesAndAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("GEMINI_API_KEY=abc\nBOARDROOM_TOKEN=old"), 0o600))

	require.NoError(t, setEnvValue(path, "BOARDROOM_TOKEN", "new"))
	require.NoError(t, setEnvValue(path, "BOARDROOM_JWT_SECRET", "s3cret"))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "GEMINI_API_KEY=abc\nBOARDROOM_TOKEN=new\nBOARDROOM_JWT_SECRET=s3cret\n", string(data))
}

func TestSetEnvValueCreatesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, setEnvValue(path, "BOARDROOM_TOKEN", "tok"))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "BOARDROOM_TOKEN=tok\n", string(data))
}

func names(id string) string {
	return map[string]string{"cto": "CTO", "cfo": "CFO", "gatekeeper": "Gatekeeper"}[id]
}

func TestTurnPrinterLocal(t *testing.T) {
	var buf bytes.Buffer
	p := &turnPrinter{w: &buf, names: names}
	verdict := domain.VerdictViable

	for _, ev := range []engine.Event{
		engine.RouteEvent{PersonaID: "cto", Confidence: 0.9, Path: "ai", Reasoning: "technical"},
		engine.FragmentEvent{PersonaID: "cto", Text: "Use "},
		engine.FragmentEvent{PersonaID: "cto", Text: "Postgres."},
		engine.DoneEvent{Done: true, PersonaIDs: []string{"cto"}, Verdict: &verdict},
	} {
		require.NoError(t, p.local(ev))
	}

	out := buf.String()
	assert.Contains(t, out, "-> CTO (90%, ai): technical")
	assert.Contains(t, out, "[CTO]\nUse Postgres.")
	assert.Contains(t, out, "Verdict: VIABLE")
}

func TestTurnPrinterSeparatesSpeakers(t *testing.T) {
	var buf bytes.Buffer
	p := &turnPrinter{w: &buf, names: names}
	require.NoError(t, p.remote(boardroomsdk.Event{Name: "fragment", Fragment: &boardroomsdk.Fragment{PersonaID: "cto", Text: "a"}}))
	require.NoError(t, p.remote(boardroomsdk.Event{Name: "fragment", Fragment: &boardroomsdk.Fragment{PersonaID: "cfo", Text: "b"}}))
	require.NoError(t, p.remote(boardroomsdk.Event{Name: "error", Error: &boardroomsdk.TurnError{Message: "boom"}}))

	assert.Equal(t, "\n[CTO]\na\n\n[CFO]\nb\n[error] boom\n", buf.String())
}

func TestTurnPrinterJSON(t *testing.T) {
	var buf bytes.Buffer
	p := &turnPrinter{w: &buf, json: true, names: names}
	require.NoError(t, p.local(engine.FragmentEvent{PersonaID: "cto", Text: "hi"}))
	require.NoError(t, p.remote(boardroomsdk.Event{Name: "done", Done: &boardroomsdk.Done{Done: true}}))

	assert.Equal(t,
		"{\"data\":{\"persona_id\":\"cto\",\"text\":\"hi\"},\"type\":\"fragment\"}\n"+
			"{\"data\":{\"done\":true,\"persona_ids\":null},\"type\":\"done\"}\n",
		buf.String())
}
