package agent

import (
	"encoding/json"
	"strings"
)

// actionSentinel is the action value a model uses to say "this is my final
// answer" while still emitting the JSON grammar. It never dispatches a tool.
const actionSentinel = "response"

// ToolInvocation is the model's structured decision to execute a named
// capability with the given input.
type ToolInvocation struct {
	Name  string
	Input map[string]any
}

// Decision is the interpreter's classification of one model response:
// either a tool invocation, or a direct answer carrying the original,
// unmodified response text.
type Decision struct {
	Tool   *ToolInvocation
	Answer string
}

// IsToolCall reports whether the decision is a tool invocation.
func (d Decision) IsToolCall() bool {
	return d.Tool != nil
}

// Resolver reports whether a tool name is registered.
type Resolver func(name string) bool

// Interpret classifies raw model output. A response is a tool invocation
// only when, after trimming whitespace, it starts with "{", the span from
// that first "{" to the last "}" decodes as JSON, the decoded object carries
// a string "action" field other than "response", and that action resolves
// via the registry. Everything else is a direct answer carrying the raw
// text unchanged, including responses where JSON appears after leading
// prose (models thinking out loud must not trigger false dispatches).
//
// The classification is pure: same text and resolver, same decision.
func Interpret(text string, resolves Resolver) Decision {
	trimmed := strings.TrimSpace(text)
	if !strings.HasPrefix(trimmed, "{") {
		return Decision{Answer: text}
	}

	end := strings.LastIndex(trimmed, "}")
	if end < 0 {
		return Decision{Answer: text}
	}

	// Greedy span: first opening brace to last closing brace. Anything the
	// model tacked on after the JSON is ignored for classification.
	payload := trimmed[:end+1]

	var call struct {
		Action string         `json:"action"`
		Input  map[string]any `json:"input"`
	}
	if err := json.Unmarshal([]byte(payload), &call); err != nil {
		return Decision{Answer: text}
	}
	if call.Action == "" || call.Action == actionSentinel {
		return Decision{Answer: text}
	}
	if resolves == nil || !resolves(call.Action) {
		return Decision{Answer: text}
	}

	input := call.Input
	if input == nil {
		input = map[string]any{}
	}
	return Decision{Tool: &ToolInvocation{Name: call.Action, Input: input}}
}
