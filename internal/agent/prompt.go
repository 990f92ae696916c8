package agent

import (
	"strings"
	"unicode/utf8"

	"github.com/tyemill/snowline-agent/internal/tools"
)

const (
	// historyWindow caps how many recent turns are rendered into a prompt.
	// Older turns drop off silently; there is no summarization.
	historyWindow = 10

	// toolResultBudget caps tool-result content in the prompt. Raw upstream
	// responses can run to tens of kilobytes and swamp small context windows.
	toolResultBudget = 1000

	truncationMarker = "...[truncated]"
)

// bannerMarkers identify session welcome/banner turns that must never reach
// model context. The web UI greets each session with a banner listing the
// connected model and available tools.
var bannerMarkers = []string{
	"Connected to",
	"Tools Available",
}

// Formatter builds the flat text prompt for one reasoning step.
type Formatter struct {
	registry *tools.Registry
}

// NewFormatter creates a prompt formatter over the given registry.
func NewFormatter(registry *tools.Registry) *Formatter {
	return &Formatter{registry: registry}
}

// Build renders the instruction preamble, the most recent conversation
// turns, and, when the last turn is a tool result, an explicit synthesis
// instruction. Output is a single flat prompt string.
func (f *Formatter) Build(turns []Turn) string {
	var b strings.Builder

	f.writePreamble(&b)

	window := selectWindow(turns)
	if len(window) > 0 {
		b.WriteString("Conversation so far:\n")
		for _, t := range window {
			writeTurn(&b, t)
		}
		b.WriteString("\n")
	}

	if len(window) > 0 && window[len(window)-1].Role == RoleToolResult {
		b.WriteString("The tool result above contains the raw data you requested. ")
		b.WriteString("Synthesize it into a clear, conversational answer for the user. ")
		b.WriteString("Respond with plain text only. Do not call another tool.\n\n")
	}

	b.WriteString("Your response:")
	return b.String()
}

func (f *Formatter) writePreamble(b *strings.Builder) {
	b.WriteString("You are Snowline, a winter-sports weather assistant for the Stevens Pass area of Washington State. ")
	b.WriteString("You answer questions about snow, weather, avalanche conditions, and mountain pass travel.\n\n")

	b.WriteString("You have access to the following tools:\n")
	for _, t := range f.registry.List() {
		b.WriteString("- ")
		b.WriteString(t.Name)
		b.WriteString(": ")
		b.WriteString(t.Description)
		b.WriteString("\n")
	}
	b.WriteString("\n")

	b.WriteString("To use a tool, respond with ONLY a JSON object in exactly this format, with no other text before it:\n")
	b.WriteString(`{"action": "<tool_name>", "input": {"<param>": "<value>"}}` + "\n\n")
	b.WriteString("To answer the user directly without a tool, respond with plain text ")
	b.WriteString(`(or {"action": "response"} followed by your answer).` + "\n\n")
}

// selectWindow filters out banner turns, then keeps the most recent
// historyWindow turns. Banners are excluded before windowing so they never
// consume history budget.
func selectWindow(turns []Turn) []Turn {
	filtered := make([]Turn, 0, len(turns))
	for _, t := range turns {
		if isBanner(t) {
			continue
		}
		filtered = append(filtered, t)
	}
	if len(filtered) > historyWindow {
		filtered = filtered[len(filtered)-historyWindow:]
	}
	return filtered
}

func isBanner(t Turn) bool {
	for _, marker := range bannerMarkers {
		if strings.Contains(t.Content, marker) {
			return true
		}
	}
	return false
}

func writeTurn(b *strings.Builder, t Turn) {
	switch t.Role {
	case RoleUser:
		b.WriteString("User: ")
		b.WriteString(t.Content)
	case RoleAssistant:
		b.WriteString("Assistant: ")
		b.WriteString(t.Content)
	case RoleToolResult:
		b.WriteString("Tool result (")
		b.WriteString(t.ToolName)
		b.WriteString("): ")
		b.WriteString(truncate(t.Content, toolResultBudget))
	}
	b.WriteString("\n")
}

func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	// Back off to a rune boundary so the cut never leaves an invalid
	// UTF-8 sequence in the prompt.
	for limit > 0 && !utf8.RuneStart(s[limit]) {
		limit--
	}
	return s[:limit] + truncationMarker
}
