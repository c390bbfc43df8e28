package generation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTextCalls(t *testing.T) {
	text := "Plan:\nFUNCTION_CALL: create_task\nARGUMENTS: {\"title\": \"A\", \"tags\": [\"x\"], \"meta\": {\"n\": 1}}\n" +
		"FUNCTION_CALL: update_task\nARGUMENTS: ```json\n{\"taskId\": \"t1\", \"status\": \"done\"}\n```\n" +
		"FUNCTION_CALL: broken\nARGUMENTS: not json\n"
	calls := ParseTextCalls(text)
	require.Len(t, calls, 2)
	assert.Equal(t, "create_task", calls[0].Name)
	assert.Equal(t, "A", calls[0].Args["title"])
	assert.Equal(t, "update_task", calls[1].Name)
	assert.Equal(t, "done", calls[1].Args["status"])
}

func TestParseTextCallsNone(t *testing.T) {
	assert.Empty(t, ParseTextCalls("just advice, no calls"))
}

func TestStripTextCalls(t *testing.T) {
	text := "Plan:\nFUNCTION_CALL: create_task\nARGUMENTS: {\"title\": \"A\"}\n" +
		"Then:\nFUNCTION_CALL: update_task\nARGUMENTS: ```json\n{\"taskId\": \"t1\"}\n```\n"
	assert.Equal(t, "Plan:\n\nThen:", StripTextCalls(text))
	assert.Equal(t, "no calls here\n", StripTextCalls("no calls here\n"))
}

func TestSplitInline(t *testing.T) {
	for _, tc := range []struct{ in, show, hold string }{
		{"plain text", "plain text", ""},
		{"ok FUNCTION_CALL: x", "ok ", "FUNCTION_CALL: x"},
		{"ok FUNC", "ok ", "FUNC"},
		{"FUN fact", "FUN fact", ""},
	} {
		show, hold := splitInline(tc.in)
		assert.Equal(t, tc.show, show, tc.in)
		assert.Equal(t, tc.hold, hold, tc.in)
	}
}

func TestRenderDocsEmpty(t *testing.T) {
	assert.Equal(t, "", RenderDocs(nil))
}
