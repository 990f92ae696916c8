// Package analysis composes every data source into one model-written snow
// forecast for Stevens Pass: NOAA forecast and grid data, both Cascade AFDs,
// the NWAC avalanche forecast, and the Powder Poobah expert forecast.
package analysis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/tyemill/snowline-agent/internal/llm"
	"github.com/tyemill/snowline-agent/internal/noaa"
	"github.com/tyemill/snowline-agent/internal/nwac"
	"github.com/tyemill/snowline-agent/internal/poobah"
)

// Analyzer gathers the source data and asks the model for the synthesis.
type Analyzer struct {
	logger    *slog.Logger
	model     llm.Client
	noaa      *noaa.Client
	nwac      *nwac.Forecaster
	poobah    *poobah.Scraper
	promptDir string
}

// New creates an Analyzer. promptDir is where composed prompts are saved
// for inspection; empty disables saving.
func New(logger *slog.Logger, model llm.Client, noaaClient *noaa.Client, forecaster *nwac.Forecaster, scraper *poobah.Scraper, promptDir string) *Analyzer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Analyzer{
		logger:    logger,
		model:     model,
		noaa:      noaaClient,
		nwac:      forecaster,
		poobah:    scraper,
		promptDir: promptDir,
	}
}

// Run collects all sources and returns the model's analysis. Expert context
// sources are best-effort; only the core NOAA fetch is fatal.
func (a *Analyzer) Run(ctx context.Context) (string, error) {
	var parts []string

	if f, err := a.poobah.Latest(ctx); err == nil {
		parts = append(parts, poobah.Format(f))
	} else {
		a.logger.Warn("powder poobah unavailable for analysis", "error", err)
	}

	report, grid, err := noaa.ComprehensiveReport(ctx, a.noaa, nil)
	if err != nil {
		return "", fmt.Errorf("fetch weather data: %w", err)
	}
	parts = append(parts, report)

	if summary := noaa.FormatGridAnalysis(grid); summary != "" {
		parts = append(parts, summary)
	}

	parts = append(parts, a.nwac.Forecast(ctx, nwac.DefaultZone))

	// Both full AFDs, untruncated; the model reconciles them against the
	// grid numbers.
	for _, wfo := range noaa.CascadeWFOs {
		afd, err := a.noaa.LatestAFD(ctx, wfo.Code)
		if err != nil {
			a.logger.Warn("AFD unavailable for analysis", "wfo", wfo.Code, "error", err)
			continue
		}
		rule := strings.Repeat("=", 70)
		parts = append(parts, fmt.Sprintf("%s\nFull AFD Discussion - %s (%s)\nIssued: %s\n%s\n%s",
			rule, afd.WFO, wfo.Region, afd.Issued, rule, afd.Text))
	}

	combined := strings.Join(parts, "\n\n")
	if len(combined) < 100 {
		return "", errors.New("not enough data for analysis")
	}

	prompt := buildPrompt(combined)
	a.savePrompt(prompt)

	text, err := a.model.Generate(ctx, prompt)
	if err != nil {
		return "", fmt.Errorf("analysis generation: %w", err)
	}

	var b strings.Builder
	b.WriteString("**Comprehensive Stevens Pass Snow & Weather Analysis**\n\n")
	fmt.Fprintf(&b, "*Generated: %s*\n", time.Now().UTC().Format("2006-01-02 15:04 UTC"))
	b.WriteString("*Data Source: NOAA Weather API (Forecast Grid Data) + Area Forecast Discussion*\n\n")
	b.WriteString(strings.Repeat("=", 70) + "\n\n")
	b.WriteString(text)
	return b.String(), nil
}

// savePrompt writes the composed prompt to disk for inspection. Failures
// are logged, never fatal.
func (a *Analyzer) savePrompt(prompt string) {
	if a.promptDir == "" {
		return
	}
	if err := os.MkdirAll(a.promptDir, 0o755); err != nil {
		a.logger.Warn("could not create prompt directory", "dir", a.promptDir, "error", err)
		return
	}
	name := time.Now().Format("20060102_150405") + "_stevens_pass_analysis_prompt.txt"
	path := filepath.Join(a.promptDir, name)
	if err := os.WriteFile(path, []byte(prompt), 0o644); err != nil {
		a.logger.Warn("could not save analysis prompt", "path", path, "error", err)
		return
	}
	a.logger.Info("saved analysis prompt", "path", path)
}

const promptRule = "===========================================================================\n"

func buildPrompt(combined string) string {
	var b strings.Builder
	b.WriteString(`You are analyzing Stevens Pass weather data for winter sports enthusiasts (skiing/snowboarding). Your analysis must be STRICTLY DATA-DRIVEN using only the provided information.

`)
	b.WriteString(promptRule)
	b.WriteString("DATA SOURCES PROVIDED\n")
	b.WriteString(promptRule)
	b.WriteString(`
You have access to the following authoritative data sources:

1. **NOAA Forecast Grid Data** - Hourly/detailed predictions including:
   - Snowfall amounts (inches) with precise timing
   - Precipitation amounts and types
   - Temperature trends
   - Wind speed, gusts, and direction
   - Visibility conditions

2. **NWAC Avalanche Forecast** - Northwest Avalanche Center safety information:
   - Current avalanche danger ratings by elevation
   - Essential backcountry safety gear checklist
   - Terrain selection guidelines and red flags
   - Important for assessing backcountry skiing/riding conditions

3. **NOAA Area Forecast Discussions (AFD)** - Professional meteorologist analysis from:
   - OTX (Spokane/East Cascades)
   - SEW (Seattle/West Cascades)
   These contain synoptic pattern analysis, model discussions, and forecaster confidence

4. **Powder Poobah Professional Forecast** - Expert Pacific Northwest snow forecaster
   (See full forecast details in the OFFICIAL DATA section below)

5. **Weather Alerts** - Active warnings, watches, and advisories

`)
	b.WriteString(promptRule)
	b.WriteString("STRICT ANALYSIS RULES\n")
	b.WriteString(promptRule)
	b.WriteString(`
**CRITICAL - You MUST follow these rules:**

1. **NO ASSUMPTIONS**: Only report what is explicitly stated in the data
2. **NO SPECULATION**: If data is missing or unclear, state "Data not available"
3. **NO FABRICATION**: Do not create snowfall amounts, temperatures, or conditions
4. **CITE SOURCES**: Reference which data source each insight comes from
5. **EXACT NUMBERS**: Use precise values from the data (e.g., "4.2 inches" not "around 4 inches")
6. **POWDER DAY DEFINITION**: Only classify as powder day when data shows 9+ inches in 24 hours

`)
	b.WriteString(promptRule)
	b.WriteString("YOUR ANALYSIS TASK\n")
	b.WriteString(promptRule)
	b.WriteString(`
Synthesize the data below into a comprehensive winter sports forecast. Your analysis should:

**1. SNOWFALL SUMMARY** (Primary Focus)
   - Extract ALL snowfall events from NOAA grid data with exact amounts and timing
   - Identify any 24-hour periods with 9+ inches (powder day threshold)
   - Note what Powder Poobah says about snowfall - does it align with NOAA?
   - Report any AFD discussion about precipitation intensity or snow levels

**2. SNOW QUALITY INDICATORS**
   - Temperature during snow events (cold = dry powder, warm = wet/heavy)
   - Wind speeds during snowfall (high winds = wind-affected snow)
   - What does Powder Poobah assess about snow quality?
   - Any AFD mention of snow ratios, density, or elevation-dependent factors

**3. TIMING & WINDOWS**
   - IMMEDIATE (Next 48 Hours): Detailed period-by-period breakdown
   - EXTENDED (3-7 Days): Day-by-day summary of conditions
   - When does snow start/stop according to grid data?
   - Weekday vs weekend breakdown from the forecast periods
   - What timing does Powder Poobah emphasize?
   - Any AFD discussion about system timing or confidence

**4. MOUNTAIN CONDITIONS**
   - Wind: Exact speeds/gusts from grid data - impact on riding conditions
   - Visibility: Actual values from grid data
   - Temperature trends: Actual highs/lows from grid data
   - What does Powder Poobah say about mountain conditions?

**5. HAZARDS & SAFETY CONDITIONS**
   - Active alerts from weather data
   - NWAC avalanche forecast and key safety information
   - Backcountry vs resort considerations (NWAC data does NOT apply to ski areas)
   - Any AFD mention of hazardous conditions, road closures, chain requirements
   - What does Powder Poobah warn about?

**6. FORECAST RECONCILIATION** (Critical Analysis)
   - Compare Powder Poobah's assessment with NOAA grid data
   - Compare AFD forecaster discussion with grid data
   - Where do sources agree? Where do they differ?
   - Which sources show higher/lower confidence?

**7. WINTER SPORTS BOTTOM LINE**
   - NEAR-TERM OUTLOOK (Next 48 Hours): Specific riding recommendations
   - EXTENDED OUTLOOK (3-7 Days): Multi-day conditions and best opportunities
   - Summarize rideable conditions based strictly on the data
   - Highlight best days/windows according to the data
   - Note any data gaps or uncertainties

`)
	b.WriteString(promptRule)
	b.WriteString("OFFICIAL DATA\n")
	b.WriteString(promptRule)
	b.WriteString("\n")
	b.WriteString(combined)
	b.WriteString("\n\n")
	b.WriteString(promptRule)
	b.WriteString("OUTPUT FORMAT\n")
	b.WriteString(promptRule)
	b.WriteString(`
Structure your response as:

**SNOWFALL FORECAST**
[Exact amounts, timing, and classification from data]

**SNOW QUALITY & CONDITIONS**
[Temperature, wind, visibility from data sources]

**NEAR-TERM FORECAST (Next 48 Hours)**
[Detailed period-by-period breakdown of conditions, snowfall, and riding opportunities]

**EXTENDED FORECAST (Days 3-7)**
[Day-by-day summary of conditions and snow potential]

**AVALANCHE & SAFETY CONDITIONS**
[NWAC avalanche forecast, backcountry safety reminders, and essential gear]

**HAZARDS & ADVISORIES**
[Weather warnings, pass conditions from alerts/AFD]

**EXPERT INSIGHTS RECONCILIATION**
[How Powder Poobah aligns with or differs from NOAA data]

**BOTTOM LINE FOR WINTER SPORTS**
- Near-Term (48 Hours): [Specific actionable recommendations]
- Extended (3-7 Days): [Multi-day outlook and best opportunities]

`)
	b.WriteString(promptRule)
	b.WriteString(`
**TONE**: Professional, factual, enthusiastic about powder but honest about conditions
**AUDIENCE**: Experienced winter sports enthusiasts who value accurate data
**LENGTH**: Maximum 1300 words
**REMINDER**: Use ONLY the data provided above. Do not assume or fabricate information.`)
	return b.String()
}
