package wsdot

import (
	"context"

	"github.com/tyemill/snowline-agent/internal/tools"
)

// Tool exposes WSDOT pass conditions to the agent. It defaults to Stevens
// Pass; "all" returns every reported pass.
func Tool(c *Client) *tools.Tool {
	return &tools.Tool{
		Name:        "wsdot_mountain_pass_conditions",
		Description: "Get current road and travel conditions for Washington mountain passes from WSDOT, including road state, weather, temperature, and travel restrictions. Optional parameter: 'pass' (string) - pass name to match, or 'all' for every pass. Defaults to Stevens Pass.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"pass": map[string]any{
					"type":        "string",
					"description": "Pass name to match, e.g. Stevens, Snoqualmie, or 'all'",
				},
			},
		},
		Handler: func(ctx context.Context, args map[string]any) (string, error) {
			query, _ := args["pass"].(string)
			if query == "" {
				query = DefaultPass
			}
			passes, err := c.Passes(ctx)
			if err != nil {
				return "", err
			}
			return FormatPasses(Find(passes, query)), nil
		},
	}
}
