// Package prompt composes the text sent to the generation backend for each
// conversation mode. Every function here is pure.
package prompt

import (
	"fmt"
	"strings"

	"boardroom/internal/domain"
	"boardroom/internal/persona"
)

// Line is one context entry, rendered as "Label: Content".
type Line struct {
	Label   string
	Content string
}

// Section is a titled block of context lines drawn from one transcript.
type Section struct {
	Title string
	Lines []Line
}

func (s Section) render() string {
	var b strings.Builder
	b.WriteString(s.Title)
	b.WriteString(":\n")
	for i, l := range s.Lines {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(l.Label)
		b.WriteString(": ")
		b.WriteString(l.Content)
	}
	return b.String()
}

// Idea is the slice of an idea that prompts mention.
type Idea struct {
	Title       string
	Description string
}

// Extras carries the mode-specific inputs.
type Extras struct {
	// Transcript holds what earlier panel seats said this round.
	Transcript string
	// Summary selects the panel summarizer pass.
	Summary bool
	// PriorUserTurns counts user messages already in the gatekeeper transcript.
	PriorUserTurns int
	// Judge forces the gatekeeper verdict branch.
	Judge bool
	// Tasks is included for personas with full context.
	Tasks []domain.Task
	Idea  *Idea
}

type Input struct {
	Mode    domain.Mode
	Persona persona.Persona
	Message string
	Context []Section
	Extras  Extras
}

// Prompt is the assembled request. System carries the baseline and persona
// instruction blocks; Text carries context, message and directive.
type Prompt struct {
	System string
	Text   string
}

func (p Prompt) String() string {
	return p.System + "\n\n" + p.Text
}

type Assembler struct {
	// VerdictAfterUserTurns is the number of prior user turns after which the
	// gatekeeper renders its verdict.
	VerdictAfterUserTurns int
	// Personas resolves assignee names in task context; nil leaves ids as they are.
	Personas *persona.Registry
}

// Build assembles the prompt for one persona pass of a turn.
func (a Assembler) Build(in Input) (Prompt, error) {
	p := Prompt{System: in.Persona.SystemTemplate()}
	switch in.Mode {
	case domain.ModeDirect:
		p.Text = a.direct(in)
	case domain.ModeRouted:
		p.Text = routed(in)
	case domain.ModePanel:
		if in.Extras.Summary {
			p.Text = panelSummary(in)
		} else {
			p.Text = panelSeat(in)
		}
	case domain.ModeGatekeeper:
		p.Text = gatekeeper(in, a.Judging(in.Extras))
	default:
		return Prompt{}, fmt.Errorf("no prompt for mode %q", in.Mode)
	}
	return p, nil
}

// Judging reports whether the gatekeeper takes the verdict branch.
func (a Assembler) Judging(x Extras) bool {
	return x.Judge || x.PriorUserTurns >= a.VerdictAfterUserTurns
}

func nonEmpty(sections []Section) []Section {
	var out []Section
	for _, s := range sections {
		if len(s.Lines) > 0 {
			out = append(out, s)
		}
	}
	return out
}

func ideaBlock(i *Idea) string {
	if i == nil || i.Title == "" {
		return ""
	}
	desc := i.Description
	if desc == "" {
		desc = "N/A"
	}
	return fmt.Sprintf("ACTIVE IDEA:\nName: %s\nDescription: %s", i.Title, desc)
}

func (a Assembler) direct(in Input) string {
	var parts []string
	if b := ideaBlock(in.Extras.Idea); b != "" {
		parts = append(parts, b)
	}
	for _, s := range nonEmpty(in.Context) {
		parts = append(parts, s.render())
	}
	if in.Persona.FullContext {
		parts = append(parts, a.tasks(in.Extras.Tasks))
	}
	if len(parts) == 0 {
		return in.Message
	}
	parts = append(parts, "USER MESSAGE:\n"+in.Message)
	return strings.Join(parts, "\n\n")
}

func routed(in Input) string {
	var lines []Line
	for _, s := range in.Context {
		lines = append(lines, s.Lines...)
	}
	if len(lines) == 0 {
		return in.Message
	}
	return Section{Title: "CONTEXT", Lines: lines}.render() + "\n\nUSER:\n" + in.Message
}

const boardroomRules = `BOARDROOM RULES:
1. DEBATE THE USER: Do not just agree. Challenge their assumptions. Ask "Why this? Why not that?"
2. DEBATE THE BOARD: If another member said something weak, CALL THEM OUT by name. Disagree with them.
3. BE CRITICAL: Do not just "build on" ideas. Tear them down to see if they survive.
4. INTERACTION: "If [Other Member] is right about X, then why Y?"
5. GOAL: We need the truth, not a polite meeting. Friction creates value.

Respond to the user's input AND the other board members with this critical, debating mindset.`

func panelSeat(in Input) string {
	var b strings.Builder
	b.WriteString("BOARDROOM DISCUSSION:\n")
	b.WriteString(in.Message)
	for _, s := range nonEmpty(in.Context) {
		b.WriteString("\n\n")
		b.WriteString(s.render())
	}
	if in.Extras.Transcript != "" {
		b.WriteString("\n\nCURRENT MEETING TRANSCRIPT (What just happened):\n")
		b.WriteString(strings.TrimRight(in.Extras.Transcript, "\n"))
	}
	fmt.Fprintf(&b, "\n\nINSTRUCTIONS:\nYou are %s.\n%s\n\n", in.Persona.Label(), in.Persona.Personality)
	b.WriteString(boardroomRules)
	b.WriteString("\n\nYOUR RESPONSE:")
	return b.String()
}

func panelSummary(in Input) string {
	return "BOARDROOM TOPIC / USER MESSAGE:\n" + in.Message +
		"\n\nFULL DEBATE TRANSCRIPT:\n" + strings.TrimRight(in.Extras.Transcript, "\n") +
		"\n\nSummarize key points and decisions in 5-8 bullet points. Make it actionable."
}

const verdictFormat = `Make a FINAL VERDICT. Provide it in this EXACT format:
VERDICT: [TRASH/MID/VIABLE/FIRE]
SCORES:
- Problem Clarity: X/10
- Market Size: X/10
- Uniqueness: X/10
- Business Model: X/10
- Execution: X/10
REASONING:
[Your brutal honest assessment]`

func gatekeeper(in Input, judge bool) string {
	var lines []Line
	for _, s := range in.Context {
		lines = append(lines, s.Lines...)
	}
	var b strings.Builder
	if len(lines) > 0 {
		b.WriteString("CONVERSATION HISTORY:\n")
		for i, l := range lines {
			if i > 0 {
				b.WriteString("\n\n")
			}
			b.WriteString(l.Label)
			b.WriteString(": ")
			b.WriteString(l.Content)
		}
		b.WriteString("\n\n")
	}
	if judge {
		b.WriteString("USER'S LATEST MESSAGE:\n")
		b.WriteString(in.Message)
		b.WriteString("\n\n")
		b.WriteString(verdictFormat)
		return b.String()
	}
	b.WriteString("USER'S MESSAGE:\n")
	b.WriteString(in.Message)
	b.WriteString("\n\nAsk 2-3 pointed, brutal questions to understand this idea better.")
	return b.String()
}

var taskGroups = []struct {
	status domain.TaskStatus
	title  string
}{
	{domain.TaskTodo, "[TODO]"},
	{domain.TaskInProgress, "[IN PROGRESS]"},
	{domain.TaskBlocked, "[BLOCKED]"},
	{domain.TaskDone, "[DONE]"},
}

// tasks renders the idea's task list grouped by status.
func (a Assembler) tasks(tasks []domain.Task) string {
	if len(tasks) == 0 {
		return "CURRENT TASKS: No tasks yet."
	}
	parts := []string{"CURRENT TASKS:"}
	for _, g := range taskGroups {
		var items []string
		for _, t := range tasks {
			if t.Status == g.status {
				items = append(items, a.task(t))
			}
		}
		if len(items) > 0 {
			parts = append(parts, "\n"+g.title, strings.Join(items, "\n\n"))
		}
	}
	return strings.Join(parts, "\n")
}

func (a Assembler) task(t domain.Task) string {
	meta := "Priority: " + strings.ToUpper(string(t.Priority))
	if t.AssigneeID != nil {
		name := *t.AssigneeID
		if a.Personas != nil {
			name = a.Personas.Name(name)
		}
		meta += ", Assigned: " + name
	}
	line := fmt.Sprintf("- %s (%s, id: %s)", t.Title, meta, t.ID)
	if t.Description != "" {
		line += "\n  " + t.Description
	}
	return line
}
