package nwac

import (
	"context"

	"github.com/tyemill/snowline-agent/internal/tools"
)

// Tool exposes the avalanche forecast to the agent. The handler never
// errors; fetch and extraction failures degrade to a link block so safety
// information always reaches the rider.
func Tool(f *Forecaster) *tools.Tool {
	return &tools.Tool{
		Name:        "nwac_avalanche_forecast",
		Description: "Get the current avalanche forecast from Northwest Avalanche Center (NWAC) for Stevens Pass and surrounding areas. Includes danger ratings by elevation, forecast discussion, weather summary, and safety information. NO parameters needed - use empty input {}.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"zone": map[string]any{
					"type":        "string",
					"description": "NWAC forecast zone slug, e.g. stevens-pass, snoqualmie-pass, mt-baker",
				},
			},
		},
		Handler: func(ctx context.Context, args map[string]any) (string, error) {
			zone, _ := args["zone"].(string)
			return f.Forecast(ctx, zone), nil
		},
	}
}
