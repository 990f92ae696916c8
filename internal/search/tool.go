package search

import (
	"context"
	"fmt"

	"github.com/tyemill/snowline-agent/internal/tools"
)

// Tool wraps the Manager as an agent capability.
func Tool(mgr *Manager) *tools.Tool {
	return &tools.Tool{
		Name:        "search",
		Description: "Search the web for current information. Use for questions about recent events, ski area operations, or anything not covered by the weather tools.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"query": map[string]any{
					"type":        "string",
					"description": "The search query string.",
				},
				"count": map[string]any{
					"type":        "integer",
					"description": "Maximum number of results to return (1-10). Default: 5.",
				},
			},
			"required": []string{"query"},
		},
		Handler: func(ctx context.Context, args map[string]any) (string, error) {
			query, _ := args["query"].(string)
			if query == "" {
				return "", fmt.Errorf("search: query is required")
			}

			opts := Options{}
			if count, ok := args["count"].(float64); ok && count > 0 {
				opts.Count = int(count)
			}

			results, err := mgr.Search(ctx, query, opts)
			if err != nil {
				return "", err
			}
			return FormatResults(results), nil
		},
	}
}
