// Package agent implements the core reasoning loop: it turns free-text
// model output into structured tool invocations, executes at most one tool
// per round, feeds the result back for a synthesis pass, and guarantees
// termination.
package agent

// Role tags a conversation turn by its origin.
type Role string

const (
	RoleUser       Role = "user"
	RoleAssistant  Role = "assistant"
	RoleToolResult Role = "tool_result"
)

// Turn is one entry in the conversation history. Turns are immutable once
// appended; the loop owns the sequence for the duration of one request.
type Turn struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`

	// ToolName and CorrelationID are set only on tool_result turns.
	// CorrelationID links the result back to the invocation that
	// produced it.
	ToolName      string `json:"tool_name,omitempty"`
	CorrelationID string `json:"correlation_id,omitempty"`
}
