package prompt_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"boardroom/internal/domain"
	"boardroom/internal/persona"
	"boardroom/internal/prompt"
)

func mustPersona(t *testing.T, id string) persona.Persona {
	t.Helper()
	p, err := persona.Default().Lookup(id)
	require.NoError(t, err)
	return p
}

func TestSystemCarriesBaselineAndPersonaBlock(t *testing.T) {
	a := prompt.Assembler{VerdictAfterUserTurns: 2}
	cto := mustPersona(t, persona.Technology)
	p, err := a.Build(prompt.Input{Mode: domain.ModeDirect, Persona: cto, Message: "which db?"})
	require.NoError(t, err)
	assert.Contains(t, p.System, "DEFAULT LENS")
	assert.Contains(t, p.System, "ROLE: CTO")
	assert.Equal(t, "which db?", p.Text)
	assert.True(t, strings.HasPrefix(p.String(), p.System))
}

func TestDirectRendersContextSections(t *testing.T) {
	a := prompt.Assembler{VerdictAfterUserTurns: 2}
	p, err := a.Build(prompt.Input{
		Mode:    domain.ModeDirect,
		Persona: mustPersona(t, persona.Finance),
		Message: "runway?",
		Context: []prompt.Section{
			{Title: "TEAM CHAT CONTEXT", Lines: []prompt.Line{{Label: "user", Content: "hi"}, {Label: "Vector", Content: "use go"}}},
			{Title: "BOARDROOM CONTEXT"},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "TEAM CHAT CONTEXT:\nuser: hi\nVector: use go\n\nUSER MESSAGE:\nrunway?", p.Text)
	assert.NotContains(t, p.Text, "CURRENT TASKS")
}

func TestFullContextPersonaSeesTasks(t *testing.T) {
	reg := persona.Default()
	a := prompt.Assembler{VerdictAfterUserTurns: 2, Personas: reg}
	cfo := persona.Finance
	p, err := a.Build(prompt.Input{
		Mode:    domain.ModeDirect,
		Persona: mustPersona(t, persona.Operations),
		Message: "what is left?",
		Extras: prompt.Extras{Tasks: []domain.Task{
			{ID: "t1", Title: "Landing page", Status: domain.TaskDone, Priority: domain.PriorityHigh},
			{ID: "t2", Title: "Pricing", Description: "three tiers", Status: domain.TaskTodo, Priority: domain.PriorityMedium, AssigneeID: &cfo},
		}},
	})
	require.NoError(t, err)
	todo := strings.Index(p.Text, "[TODO]")
	done := strings.Index(p.Text, "[DONE]")
	require.Positive(t, todo)
	assert.Greater(t, done, todo)
	assert.Contains(t, p.Text, "- Pricing (Priority: MEDIUM, Assigned: Ledger, id: t2)\n  three tiers")
	assert.NotContains(t, p.Text, "[BLOCKED]")

	p, err = a.Build(prompt.Input{Mode: domain.ModeDirect, Persona: mustPersona(t, persona.Operations), Message: "m"})
	require.NoError(t, err)
	assert.Contains(t, p.Text, "CURRENT TASKS: No tasks yet.")
}

func TestRoutedWrapsRecentContext(t *testing.T) {
	a := prompt.Assembler{}
	p, err := a.Build(prompt.Input{
		Mode:    domain.ModeRouted,
		Persona: mustPersona(t, persona.Growth),
		Message: "channels?",
		Context: []prompt.Section{{Title: "CONTEXT", Lines: []prompt.Line{{Label: "User", Content: "hello"}, {Label: "growth", Content: "hey"}}}},
	})
	require.NoError(t, err)
	assert.Equal(t, "CONTEXT:\nUser: hello\ngrowth: hey\n\nUSER:\nchannels?", p.Text)
}

func TestPanelSeatSeesEarlierSeats(t *testing.T) {
	a := prompt.Assembler{}
	p, err := a.Build(prompt.Input{
		Mode:    domain.ModePanel,
		Persona: mustPersona(t, persona.Marketing),
		Message: "should we launch?",
		Context: []prompt.Section{{Title: "PREVIOUS DISCUSSION HISTORY", Lines: []prompt.Line{{Label: "User", Content: "old topic"}}}},
		Extras:  prompt.Extras{Transcript: "Atlas: ship it\n\nVector: not yet\n\n"},
	})
	require.NoError(t, err)
	assert.Contains(t, p.Text, "PREVIOUS DISCUSSION HISTORY:\nUser: old topic")
	assert.Contains(t, p.Text, "CURRENT MEETING TRANSCRIPT (What just happened):\nAtlas: ship it\n\nVector: not yet\n\nINSTRUCTIONS:")
	assert.Contains(t, p.Text, "You are Neon (Brand + GTM).")
	assert.True(t, strings.HasSuffix(p.Text, "YOUR RESPONSE:"))

	summary, err := a.Build(prompt.Input{
		Mode:    domain.ModePanel,
		Persona: mustPersona(t, persona.Operations),
		Message: "should we launch?",
		Extras:  prompt.Extras{Summary: true, Transcript: "Atlas: ship it\n\n"},
	})
	require.NoError(t, err)
	assert.Contains(t, summary.Text, "FULL DEBATE TRANSCRIPT:\nAtlas: ship it")
	assert.Contains(t, summary.Text, "5-8 bullet points")
}

func TestGatekeeperBranches(t *testing.T) {
	a := prompt.Assembler{VerdictAfterUserTurns: 2}
	oracle := mustPersona(t, persona.Gatekeeper)
	history := []prompt.Section{{Lines: []prompt.Line{
		{Label: "USER", Content: "an app for dogs"},
		{Label: "ORACLE", Content: "who pays?"},
		{Label: "USER", Content: "owners"},
		{Label: "ORACLE", Content: "how much?"},
	}}}

	cases := []struct {
		name   string
		extras prompt.Extras
		judge  bool
	}{
		{"first turn asks", prompt.Extras{}, false},
		{"one prior turn asks", prompt.Extras{PriorUserTurns: 1}, false},
		{"two prior turns judge", prompt.Extras{PriorUserTurns: 2}, true},
		{"forced judge", prompt.Extras{Judge: true}, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p, err := a.Build(prompt.Input{Mode: domain.ModeGatekeeper, Persona: oracle, Message: "$5/month", Context: history, Extras: tc.extras})
			require.NoError(t, err)
			assert.Contains(t, p.Text, "CONVERSATION HISTORY:\nUSER: an app for dogs\n\nORACLE: who pays?")
			if tc.judge {
				assert.Contains(t, p.Text, "USER'S LATEST MESSAGE:\n$5/month")
				assert.Contains(t, p.Text, "VERDICT: [TRASH/MID/VIABLE/FIRE]")
				assert.NotContains(t, p.Text, "pointed, brutal questions")
			} else {
				assert.Contains(t, p.Text, "Ask 2-3 pointed, brutal questions")
				assert.NotContains(t, p.Text, "FINAL VERDICT")
			}
		})
	}
}

func TestBuildIsDeterministic(t *testing.T) {
	a := prompt.Assembler{VerdictAfterUserTurns: 2}
	in := prompt.Input{Mode: domain.ModePanel, Persona: mustPersona(t, persona.Strategy), Message: "m", Extras: prompt.Extras{Transcript: "x"}}
	first, err := a.Build(in)
	require.NoError(t, err)
	second, err := a.Build(in)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestBuildRejectsUnknownMode(t *testing.T) {
	_, err := prompt.Assembler{}.Build(prompt.Input{Mode: "karaoke"})
	assert.Error(t, err)
}
