package tools

import (
	"context"
	"sync"
)

type contextKey string

const effectsKey contextKey = "effects"

// SideEffect is an out-of-band artifact produced by a tool during execution,
// such as chart data derived from fetched weather grids. Effects ride
// alongside the tool's text result rather than inside it, so the model never
// sees them and the caller can render them separately.
type SideEffect struct {
	Kind    string `json:"kind"`
	Payload any    `json:"payload"`
}

// Effects collects side effects emitted by tool handlers. Safe for
// concurrent use.
type Effects struct {
	mu      sync.Mutex
	effects []SideEffect
}

// Emit appends a side effect to the collector.
func (e *Effects) Emit(kind string, payload any) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.effects = append(e.effects, SideEffect{Kind: kind, Payload: payload})
}

// Drain returns all collected effects and resets the collector.
func (e *Effects) Drain() []SideEffect {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := e.effects
	e.effects = nil
	return out
}

// WithEffects attaches a side-effect collector to the context.
func WithEffects(ctx context.Context, e *Effects) context.Context {
	return context.WithValue(ctx, effectsKey, e)
}

// Emit records a side effect on the collector attached to ctx, if any.
// Tools may call this unconditionally; it is a no-op when no collector
// is attached (e.g., when a tool is invoked directly by the scheduler).
func Emit(ctx context.Context, kind string, payload any) {
	if e, ok := ctx.Value(effectsKey).(*Effects); ok && e != nil {
		e.Emit(kind, payload)
	}
}
