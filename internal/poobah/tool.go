package poobah

import (
	"context"

	"github.com/tyemill/snowline-agent/internal/tools"
)

// Tool exposes the latest Powder Poobah forecast to the agent.
func Tool(s *Scraper) *tools.Tool {
	return &tools.Tool{
		Name:        "powder_poobah_forecast",
		Description: "Get the latest Powder Poobah professional snow forecast for Pacific Northwest mountains including short-term forecast, highlights, and extended outlook. Expert analysis from a trusted Pacific Northwest snow forecaster. NO parameters needed - use empty input {}.",
		Parameters: map[string]any{
			"type":       "object",
			"properties": map[string]any{},
		},
		Handler: func(ctx context.Context, args map[string]any) (string, error) {
			f, err := s.Latest(ctx)
			if err != nil {
				return "", err
			}
			return Format(f), nil
		},
	}
}
