package analysis

import (
	"context"

	"github.com/tyemill/snowline-agent/internal/tools"
)

// Tool exposes the full snow analysis to the agent.
func Tool(a *Analyzer) *tools.Tool {
	return &tools.Tool{
		Name:        "stevens_pass_snow_analysis",
		Description: "Detailed snow forecast analysis for Stevens Pass combining NOAA data, AFD, Powder Poobah forecasts. Highlights snowfall amounts, timing, quality, and riding conditions. NO parameters needed - use empty input {}.",
		Parameters: map[string]any{
			"type":       "object",
			"properties": map[string]any{},
		},
		Handler: func(ctx context.Context, args map[string]any) (string, error) {
			return a.Run(ctx)
		},
	}
}
