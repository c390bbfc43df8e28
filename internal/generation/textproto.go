package generation

import (
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// Some deployments run models without native call support. Those models are
// told to write calls inline as
//
//	FUNCTION_CALL: create_task
//	ARGUMENTS: {"title": "..."}
//
// and the gateway recovers them from the completed text.

const callMarker = "FUNCTION_CALL:"

var callHeader = regexp.MustCompile(`FUNCTION_CALL:\s*([A-Za-z0-9_]+)\s*\n?\s*ARGUMENTS:\s*`)

// textCall is a parsed inline block and its byte span in the source text,
// closing fence included.
type textCall struct {
	Call
	start, end int
}

func scanTextCalls(text string) []textCall {
	var out []textCall
	for _, loc := range callHeader.FindAllStringSubmatchIndex(text, -1) {
		if n := len(out); n > 0 && loc[0] < out[n-1].end {
			continue
		}
		name := text[loc[2]:loc[3]]
		rest := strings.TrimLeft(text[loc[1]:], " \t\r\n")
		fenced := strings.HasPrefix(rest, "```")
		if fenced {
			rest = strings.TrimPrefix(rest, "```")
			rest = strings.TrimPrefix(rest, "json")
		}
		dec := json.NewDecoder(strings.NewReader(rest))
		var args map[string]any
		if err := dec.Decode(&args); err != nil || args == nil {
			continue
		}
		end := len(text) - len(rest) + int(dec.InputOffset())
		if fenced {
			if tail := strings.TrimLeft(text[end:], " \t\r\n"); strings.HasPrefix(tail, "```") {
				end = len(text) - len(tail) + len("```")
			}
		}
		out = append(out, textCall{Call: Call{Name: name, Args: args}, start: loc[0], end: end})
	}
	return out
}

// ParseTextCalls extracts inline calls in order. Blocks whose arguments are
// not a JSON object are skipped.
func ParseTextCalls(text string) []Call {
	var out []Call
	for _, c := range scanTextCalls(text) {
		out = append(out, c.Call)
	}
	return out
}

// StripTextCalls removes every parsable inline block from text. Malformed
// blocks stay visible.
func StripTextCalls(text string) string {
	found := scanTextCalls(text)
	if len(found) == 0 {
		return text
	}
	var b strings.Builder
	prev := 0
	for _, c := range found {
		b.WriteString(text[prev:c.start])
		prev = c.end
	}
	b.WriteString(text[prev:])
	return strings.TrimRight(b.String(), " \t\r\n")
}

// splitInline separates the text that can be shown now from the part that
// starts, or may start, an inline block.
func splitInline(s string) (show, hold string) {
	if i := strings.Index(s, callMarker); i >= 0 {
		return s[:i], s[i:]
	}
	for n := min(len(callMarker)-1, len(s)); n > 0; n-- {
		if strings.HasSuffix(s, callMarker[:n]) {
			return s[:len(s)-n], s[len(s)-n:]
		}
	}
	return s, ""
}

// RenderDocs describes decls in prose for models that use the inline format.
func RenderDocs(decls []Declaration) string {
	if len(decls) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("## STRUCTURED CALLS\nYou can call the following operations:\n")
	for _, d := range decls {
		fmt.Fprintf(&b, "\n### %s\n%s\nParameters:\n", d.Name, d.Description)
		props, _ := d.Parameters["properties"].(map[string]any)
		required := stringSet(d.Parameters["required"])
		names := make([]string, 0, len(props))
		for name := range props {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			prop, _ := props[name].(map[string]any)
			kind, _ := prop["type"].(string)
			desc, _ := prop["description"].(string)
			need := "optional"
			if required[name] {
				need = "required"
			}
			fmt.Fprintf(&b, "- %s (%s, %s): %s", name, kind, need, desc)
			if enum := stringList(prop["enum"]); len(enum) > 0 {
				fmt.Fprintf(&b, " [%s]", strings.Join(enum, "|"))
			}
			b.WriteString("\n")
		}
	}
	b.WriteString("\nTo call an operation write:\nFUNCTION_CALL: operation_name\nARGUMENTS: {\"param\": \"value\"}\nYou may call several operations in one reply.\n")
	return b.String()
}

func stringList(v any) []string {
	switch vals := v.(type) {
	case []string:
		return vals
	case []any:
		out := make([]string, 0, len(vals))
		for _, x := range vals {
			if s, ok := x.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

func stringSet(v any) map[string]bool {
	set := map[string]bool{}
	for _, s := range stringList(v) {
		set[s] = true
	}
	return set
}
