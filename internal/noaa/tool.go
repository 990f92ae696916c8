package noaa

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/tyemill/snowline-agent/internal/tools"
)

// cutRune shortens s to at most limit bytes without splitting a rune.
func cutRune(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	for limit > 0 && !utf8.RuneStart(s[limit]) {
		limit--
	}
	return s[:limit]
}

// WFOs covering the two sides of the Cascades around Stevens Pass.
var CascadeWFOs = []struct {
	Code   string
	Region string
}{
	{"OTX", "Spokane/East Cascades"},
	{"SEW", "Seattle/West Cascades"},
}

// cascadeCoveragePhrases prove an AFD actually discusses the Cascades; WFO
// discussions sometimes focus entirely on lowland weather.
var cascadeCoveragePhrases = []string{
	"cascade gap", "pass level", "mountain snow", "cascade foothills",
	"stevens pass", "snoqualmie pass", "cascade mountain", "alpine",
	"high elevation", "ridge", "cascade range", "pass conditions",
}

const afdTextBudget = 1500

// AFDTool exposes the Area Forecast Discussions for both Cascade WFOs.
func AFDTool(c *Client) *tools.Tool {
	return &tools.Tool{
		Name:        "noaa_area_forecast_discussion",
		Description: "Get the latest NOAA Area Forecast Discussions (AFD) for the Cascades from both OTX (Spokane/East) and SEW (Seattle/West) forecast offices. NO parameters needed - use empty input {}.",
		Parameters: map[string]any{
			"type":       "object",
			"properties": map[string]any{},
		},
		Handler: func(ctx context.Context, args map[string]any) (string, error) {
			return AFDReport(ctx, c)
		},
	}
}

// AFDReport fetches, validates, and formats the AFDs from both Cascade WFOs.
// Per-office failures are reported inline; it errors only when neither
// office yields a discussion.
func AFDReport(ctx context.Context, c *Client) (string, error) {
	var sections []string
	for _, wfo := range CascadeWFOs {
		afd, err := c.LatestAFD(ctx, wfo.Code)
		if err != nil {
			sections = append(sections, fmt.Sprintf("Error fetching %s AFD: %v", wfo.Code, err))
			continue
		}
		sections = append(sections, formatAFDSection(afd, wfo.Region))
	}

	retrieved := false
	for _, s := range sections {
		if !strings.HasPrefix(s, "Error fetching") {
			retrieved = true
			break
		}
	}
	if !retrieved {
		return "", fmt.Errorf("could not retrieve any Area Forecast Discussions")
	}

	var b strings.Builder
	b.WriteString("NOAA Area Forecast Discussions - CASCADE MOUNTAINS\n")
	b.WriteString("Complete Coverage: East Side (OTX) + West Side (SEW)\n")
	for _, s := range sections {
		b.WriteString("\n")
		b.WriteString(strings.Repeat("=", 70))
		b.WriteString("\n")
		b.WriteString(s)
	}
	return b.String(), nil
}

func formatAFDSection(afd *AFD, region string) string {
	lower := strings.ToLower(afd.Text)

	var found []string
	for _, phrase := range cascadeCoveragePhrases {
		if strings.Contains(lower, phrase) {
			found = append(found, phrase)
		}
	}

	// Pull out up to two sentences that show the Cascade coverage.
	var evidence []string
	for _, sentence := range strings.Split(afd.Text, ".") {
		if len(evidence) == 2 {
			break
		}
		sl := strings.ToLower(sentence)
		for _, phrase := range cascadeCoveragePhrases {
			if strings.Contains(sl, phrase) {
				cleaned := strings.TrimSpace(sentence)
				if len(cleaned) > 20 {
					evidence = append(evidence, cutRune(cleaned, 150))
				}
				break
			}
		}
	}

	coverage := "Coverage not explicitly confirmed"
	if len(found) > 0 {
		n := len(found)
		if n > 2 {
			n = 2
		}
		coverage = "VERIFIED - " + strings.Join(found[:n], ", ")
	}

	text := afd.Text
	truncated := false
	if len(text) > afdTextBudget {
		text = cutRune(text, afdTextBudget)
		truncated = true
	}

	var b strings.Builder
	fmt.Fprintf(&b, "NOAA Area Forecast Discussion - %s\n", afd.WFO)
	fmt.Fprintf(&b, "Region: %s\n", region)
	fmt.Fprintf(&b, "Coverage Status: %s\n", coverage)
	fmt.Fprintf(&b, "Issued: %s\n", afd.Issued)
	fmt.Fprintf(&b, "Product Code: %s\n\n", afd.Code)

	if len(evidence) > 0 {
		b.WriteString("Evidence of Cascade Coverage:\n")
		for i, e := range evidence {
			fmt.Fprintf(&b, "%d. %q\n", i+1, e+"...")
		}
		b.WriteString("\n")
	}

	b.WriteString("Discussion:\n")
	b.WriteString(text)
	if truncated {
		b.WriteString("\n...[truncated]")
	}
	return b.String()
}

// SectionFunc supplies an extra report section, such as the avalanche
// forecast, for inclusion in the comprehensive report.
type SectionFunc func(ctx context.Context) (string, error)

// ComprehensiveTool exposes the full Stevens Pass picture: location
// validation, forecast periods, detailed grid data (emitted as a chart side
// effect), active alerts, and the avalanche section when one is wired in.
func ComprehensiveTool(c *Client, avalanche SectionFunc) *tools.Tool {
	return &tools.Tool{
		Name:        "stevens_pass_comprehensive_weather",
		Description: "Get comprehensive Stevens Pass weather data including forecast, precipitation, wind, visibility, and alerts from NOAA. NO parameters needed - use empty input {}.",
		Parameters: map[string]any{
			"type":       "object",
			"properties": map[string]any{},
		},
		Handler: func(ctx context.Context, args map[string]any) (string, error) {
			report, _, err := ComprehensiveReport(ctx, c, avalanche)
			return report, err
		},
	}
}

// ComprehensiveReport assembles the comprehensive weather report and returns
// the grid data alongside it so callers (the analysis tool) can reuse the
// fetch. The grid is also emitted as a "weather_grid" side effect for the
// UI to chart.
func ComprehensiveReport(ctx context.Context, c *Client, avalanche SectionFunc) (string, *GridData, error) {
	point, err := c.Point(ctx, Latitude, Longitude)
	if err != nil {
		return "", nil, fmt.Errorf("validate location: %w", err)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Location: %s\n", LocationName)
	fmt.Fprintf(&b, "  Coordinates: %.4fN, %.4fW\n", Latitude, -Longitude)
	fmt.Fprintf(&b, "  Elevation: %d ft\n", ElevationFt)
	fmt.Fprintf(&b, "  Nearest City: %s, %s\n", point.City, point.State)
	if point.Description != "" {
		fmt.Fprintf(&b, "  Description: %s\n", point.Description)
	}
	fmt.Fprintf(&b, "  Forecast Office (WFO): %s\n", point.WFO)
	fmt.Fprintf(&b, "  Grid ID: %s\n", point.GridID)
	fmt.Fprintf(&b, "  Timezone: %s\n\n", point.Timezone)

	if point.ForecastURL != "" {
		periods, err := c.Forecast(ctx, point.ForecastURL)
		if err == nil {
			b.WriteString(FormatPeriods(periods, 14))
			b.WriteString("\n")
		} else {
			fmt.Fprintf(&b, "Forecast unavailable: %v\n\n", err)
		}
	}

	var grid *GridData
	if point.ForecastGridURL != "" {
		grid, err = c.Grid(ctx, point.ForecastGridURL)
		if err != nil {
			grid = nil
		} else {
			// The UI renders the grid as charts; the chat text stays light.
			tools.Emit(ctx, "weather_grid", grid)
		}
	}

	if point.AlertsURL != "" {
		alerts, err := c.Alerts(ctx, point.AlertsURL)
		if err == nil {
			b.WriteString(FormatAlerts(alerts))
		} else {
			fmt.Fprintf(&b, "Alerts unavailable: %v\n", err)
		}
	}

	if avalanche != nil {
		section, err := avalanche(ctx)
		if err == nil && section != "" {
			b.WriteString("\n")
			b.WriteString(section)
		}
	}

	return b.String(), grid, nil
}
