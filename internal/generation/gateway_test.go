package generation_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"boardroom/internal/generation"
	"boardroom/internal/generation/generationtest"
)

var taskDecl = generation.Declaration{
	Name:        "create_task",
	Description: "Create a task",
	Parameters: map[string]any{
		"type":       "object",
		"properties": map[string]any{"title": map[string]any{"type": "string", "description": "Task title"}},
		"required":   []any{"title"},
	},
}

func collect(t *testing.T, g *generation.Gateway, req generation.Request) ([]generation.Fragment, error) {
	t.Helper()
	var out []generation.Fragment
	for frag, err := range g.Stream(context.Background(), req) {
		if err != nil {
			return out, err
		}
		out = append(out, frag)
	}
	return out, nil
}

func TestUnconfiguredGatewayFailsEveryCall(t *testing.T) {
	g := generation.NewGateway(nil, generation.Options{})
	ctx := context.Background()

	_, err := g.Complete(ctx, "hi", "")
	require.ErrorIs(t, err, generation.ErrNotConfigured)
	_, err = g.CompleteWithCalls(ctx, "hi", nil, "")
	require.ErrorIs(t, err, generation.ErrNotConfigured)
	_, err = g.GenerateImage(ctx, "logo")
	require.ErrorIs(t, err, generation.ErrNotConfigured)
	_, err = collect(t, g, generation.Request{Prompt: "hi"})
	require.ErrorIs(t, err, generation.ErrNotConfigured)
	assert.Equal(t, "none", g.Provider())
}

func TestStreamRelaysInOrderAndSkipsEmpty(t *testing.T) {
	b := generationtest.New().QueueStream(
		generationtest.Step{Text: "a"},
		generationtest.Step{},
		generationtest.Step{Calls: []generation.Call{{Name: "create_task", Args: map[string]any{"title": "x"}}}},
		generationtest.Step{Text: "b"},
	)
	g := generation.NewGateway(b, generation.Options{})
	frags, err := collect(t, g, generation.Request{Prompt: "p", Declarations: []generation.Declaration{taskDecl}})
	require.NoError(t, err)
	require.Len(t, frags, 3)
	assert.Equal(t, "a", frags[0].Text)
	assert.Equal(t, "create_task", frags[1].Calls[0].Name)
	assert.Equal(t, "b", frags[2].Text)
	assert.Len(t, b.StreamRequests()[0].Declarations, 1)
}

func TestStreamErrorEndsSequence(t *testing.T) {
	boom := errors.New("connection reset")
	b := generationtest.New().QueueStream(generationtest.Step{Text: "partial"}, generationtest.Step{Err: boom}, generationtest.Step{Text: "never"})
	g := generation.NewGateway(b, generation.Options{})
	frags, err := collect(t, g, generation.Request{Prompt: "p"})
	require.ErrorIs(t, err, boom)
	require.Len(t, frags, 1)
	assert.Equal(t, "partial", frags[0].Text)
}

func TestTextProtocol(t *testing.T) {
	b := generationtest.New().
		QueueCompletion(generationtest.Reply{Text: "On it.\nFUNCTION_CALL: create_task\nARGUMENTS: {\"title\": \"Ship MVP\"}\n"}).
		QueueStream(generationtest.Step{Text: "Sure. FUNCTION_CALL: create_task\n"}, generationtest.Step{Text: "ARGUMENTS: {\"title\": \"Landing page\"}"})
	g := generation.NewGateway(b, generation.Options{TextProtocol: true})

	res, err := g.CompleteWithCalls(context.Background(), "plan my week", []generation.Declaration{taskDecl}, "be brief")
	require.NoError(t, err)
	require.Len(t, res.Calls, 1)
	assert.Equal(t, "Ship MVP", res.Calls[0].Args["title"])
	assert.Equal(t, "On it.", res.Text)

	sent := b.CompleteRequests()[0]
	assert.Empty(t, sent.Declarations)
	assert.Contains(t, sent.System, "be brief")
	assert.Contains(t, sent.System, "### create_task")
	assert.Contains(t, sent.System, "- title (string, required): Task title")

	frags, err := collect(t, g, generation.Request{Prompt: "p", Declarations: []generation.Declaration{taskDecl}})
	require.NoError(t, err)
	require.Len(t, frags, 2)
	assert.Equal(t, "Sure. ", frags[0].Text)
	assert.Empty(t, frags[1].Text)
	require.Len(t, frags[1].Calls, 1)
	assert.Equal(t, "Landing page", frags[1].Calls[0].Args["title"])
}

func TestInlineBlocksAreHiddenFromStreamedText(t *testing.T) {
	b := generationtest.New().QueueStream(
		generationtest.Step{Text: "Adding it now. FUNC"},
		generationtest.Step{Text: "TION_CALL: create_task\nARGUMENTS: ```json\n{\"title\": \"Pricing page\"}\n```"},
		generationtest.Step{Text: "\nDone, check the list."},
	)
	g := generation.NewGateway(b, generation.Options{TextProtocol: true})

	frags, err := collect(t, g, generation.Request{Prompt: "p", Declarations: []generation.Declaration{taskDecl}})
	require.NoError(t, err)

	var visible string
	var calls []generation.Call
	for _, f := range frags {
		visible += f.Text
		calls = append(calls, f.Calls...)
	}
	assert.Equal(t, "Adding it now. \nDone, check the list.", visible)
	assert.NotContains(t, visible, "FUNCTION_CALL")
	assert.NotContains(t, visible, "ARGUMENTS")
	require.Len(t, calls, 1)
	assert.Equal(t, "Pricing page", calls[0].Args["title"])
	assert.NotEmpty(t, frags[len(frags)-1].Calls)
}

func TestMalformedInlineBlockStaysVisible(t *testing.T) {
	b := generationtest.New().QueueStream(generationtest.Step{Text: "Hmm FUNCTION_CALL: create_task\nARGUMENTS: nope"})
	g := generation.NewGateway(b, generation.Options{TextProtocol: true})

	frags, err := collect(t, g, generation.Request{Prompt: "p", Declarations: []generation.Declaration{taskDecl}})
	require.NoError(t, err)
	require.Len(t, frags, 2)
	assert.Equal(t, "Hmm ", frags[0].Text)
	assert.Equal(t, "FUNCTION_CALL: create_task\nARGUMENTS: nope", frags[1].Text)
	assert.Empty(t, frags[1].Calls)
}

func TestNativeCallsWinOverInline(t *testing.T) {
	b := generationtest.New().QueueCompletion(generationtest.Reply{
		Text:  "FUNCTION_CALL: create_task\nARGUMENTS: {\"title\": \"inline\"}",
		Calls: []generation.Call{{Name: "create_task", Args: map[string]any{"title": "native"}}},
	})
	g := generation.NewGateway(b, generation.Options{})
	res, err := g.CompleteWithCalls(context.Background(), "p", []generation.Declaration{taskDecl}, "")
	require.NoError(t, err)
	require.Len(t, res.Calls, 1)
	assert.Equal(t, "native", res.Calls[0].Args["title"])
}

func TestMediaDataURI(t *testing.T) {
	m := generation.Media{MIMEType: "image/png", Data: []byte("png")}
	assert.Equal(t, "data:image/png;base64,cG5n", m.DataURI())
}
