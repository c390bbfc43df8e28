package generation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeOpenAICall(t *testing.T) {
	call := decodeOpenAICall("c1", "update_task", `{"taskId":"t1","status":"done"}`)
	require.NoError(t, call.ArgsErr)
	assert.Equal(t, "t1", call.Args["taskId"])

	empty := decodeOpenAICall("c2", "create_task", "")
	require.NoError(t, empty.ArgsErr)
	assert.Empty(t, empty.Args)

	bad := decodeOpenAICall("c3", "create_task", `{"title":`)
	require.Error(t, bad.ArgsErr)
	assert.Nil(t, bad.Args)
}

func TestOpenAIParams(t *testing.T) {
	o, err := NewOpenAI("sk-test", "gpt-4o-mini", "dall-e-3")
	require.NoError(t, err)
	p := o.params(Request{System: "sys", Prompt: "hi", Declarations: []Declaration{{Name: "create_task", Description: "d", Parameters: map[string]any{"type": "object"}}}})
	assert.Len(t, p.Messages, 2)
	require.Len(t, p.Tools, 1)
	assert.Equal(t, "create_task", p.Tools[0].Function.Name)

	_, err = NewOpenAI("", "m", "im")
	require.ErrorIs(t, err, ErrNotConfigured)
}
