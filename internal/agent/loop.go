package agent

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/tyemill/snowline-agent/internal/llm"
	"github.com/tyemill/snowline-agent/internal/tools"
)

// maxToolRounds bounds the Reasoning/Dispatching cycle per user turn. A
// model stuck re-requesting tools gives up after this many dispatches and
// falls back to the most recent tool result.
const maxToolRounds = 5

// Result is the outcome of one loop invocation. Turns carries the full
// updated conversation for session persistence; SideEffects carries
// artifacts tools emitted out-of-band (chart data and the like).
type Result struct {
	FinalText   string
	Turns       []Turn
	SideEffects []tools.SideEffect
}

// Loop orchestrates prompt formatting, model generation, response
// interpretation, and tool dispatch for one conversation turn. A Loop is
// stateless across invocations; each Run owns its own turn sequence, so one
// Loop may serve concurrent sessions.
type Loop struct {
	logger    *slog.Logger
	gateway   llm.Client
	registry  *tools.Registry
	formatter *Formatter
}

// NewLoop creates the reasoning loop.
func NewLoop(logger *slog.Logger, gateway llm.Client, registry *tools.Registry) *Loop {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loop{
		logger:    logger,
		gateway:   gateway,
		registry:  registry,
		formatter: NewFormatter(registry),
	}
}

// Run executes the loop for one user message. history is the prior
// conversation (may be nil); onToken, if non-nil, receives streamed answer
// fragments as they arrive. Model generation failures propagate to the
// caller; tool failures do not — they become tool_result turns the model
// can react to.
//
// Callers should verify gateway connectivity (Ping) before invoking Run so
// an unreachable provider surfaces as a clear message rather than a
// mid-turn failure.
func (l *Loop) Run(ctx context.Context, userText string, history []Turn, onToken llm.StreamCallback) (*Result, error) {
	effects := &tools.Effects{}
	ctx = tools.WithEffects(ctx, effects)

	turns := make([]Turn, len(history), len(history)+4)
	copy(turns, history)
	turns = append(turns, Turn{Role: RoleUser, Content: userText})

	dispatches := 0
	for {
		prompt := l.formatter.Build(turns)
		l.logger.Debug("reasoning", "dispatches", dispatches, "prompt_chars", len(prompt))

		raw, err := l.generate(ctx, prompt, onToken)
		if err != nil {
			return nil, fmt.Errorf("model generation: %w", err)
		}

		decision := Interpret(raw, l.registry.Has)
		if !decision.IsToolCall() {
			turns = append(turns, Turn{Role: RoleAssistant, Content: decision.Answer})
			l.logger.Info("turn complete", "dispatches", dispatches, "answer_chars", len(decision.Answer))
			return &Result{
				FinalText:   decision.Answer,
				Turns:       turns,
				SideEffects: effects.Drain(),
			}, nil
		}

		// The raw tool-call JSON is never appended to turns; only the
		// resulting tool_result turn persists.
		if dispatches >= maxToolRounds {
			l.logger.Warn("tool round cap reached", "cap", maxToolRounds, "tool", decision.Tool.Name)
			fallback := giveUpAnswer(turns)
			turns = append(turns, Turn{Role: RoleAssistant, Content: fallback})
			return &Result{
				FinalText:   fallback,
				Turns:       turns,
				SideEffects: effects.Drain(),
			}, nil
		}

		turns = append(turns, l.dispatch(ctx, decision.Tool))
		dispatches++
	}
}

// dispatch resolves and executes exactly one tool invocation, converting
// every failure into a correlated tool_result turn. Nothing raised by a
// tool escapes this boundary.
func (l *Loop) dispatch(ctx context.Context, inv *ToolInvocation) Turn {
	correlationID := uuid.NewString()

	if !l.registry.Has(inv.Name) {
		l.logger.Warn("tool not found", "tool", inv.Name, "correlation_id", correlationID)
		return Turn{
			Role:          RoleToolResult,
			Content:       fmt.Sprintf("tool not found: %s", inv.Name),
			ToolName:      inv.Name,
			CorrelationID: correlationID,
		}
	}

	l.logger.Info("dispatching tool", "tool", inv.Name, "correlation_id", correlationID)
	out, err := l.registry.Execute(ctx, inv.Name, inv.Input)
	if err != nil {
		l.logger.Error("tool execution failed", "tool", inv.Name, "correlation_id", correlationID, "error", err)
		return Turn{
			Role:          RoleToolResult,
			Content:       fmt.Sprintf("execution error: %v", err),
			ToolName:      inv.Name,
			CorrelationID: correlationID,
		}
	}

	return Turn{
		Role:          RoleToolResult,
		Content:       out,
		ToolName:      inv.Name,
		CorrelationID: correlationID,
	}
}

// generate calls the gateway, gating streamed tokens so structured
// tool-call output is never echoed to the user: tokens are held back until
// the first non-whitespace character arrives, and suppressed entirely when
// that character opens a JSON object.
func (l *Loop) generate(ctx context.Context, prompt string, onToken llm.StreamCallback) (string, error) {
	if onToken == nil {
		return l.gateway.Generate(ctx, prompt)
	}
	gate := &streamGate{forward: onToken}
	return l.gateway.GenerateStream(ctx, prompt, gate.token)
}

type streamGate struct {
	forward  llm.StreamCallback
	started  bool
	suppress bool
	held     strings.Builder
}

func (g *streamGate) token(tok string) {
	if g.suppress {
		return
	}
	if g.started {
		g.forward(tok)
		return
	}

	g.held.WriteString(tok)
	buffered := strings.TrimLeft(g.held.String(), " \t\r\n")
	if buffered == "" {
		return
	}
	g.started = true
	if strings.HasPrefix(buffered, "{") {
		g.suppress = true
		return
	}
	g.forward(g.held.String())
}

// giveUpAnswer builds the fallback answer when the tool round cap is hit:
// the most recent tool result is surfaced directly rather than running
// another synthesis pass.
func giveUpAnswer(turns []Turn) string {
	for i := len(turns) - 1; i >= 0; i-- {
		if turns[i].Role == RoleToolResult {
			return "I couldn't finish reasoning about your question, but here is the most recent data I gathered:\n\n" + turns[i].Content
		}
	}
	return "I couldn't work out an answer to that after several attempts. Try rephrasing the question."
}
