// Package nwac summarizes Northwest Avalanche Center forecasts. The NWAC
// site has no public API, so the forecast page is scraped to plain text and
// a model extracts the danger ratings, bottom line, and discussion.
package nwac

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/net/html"

	"github.com/tyemill/snowline-agent/internal/httpkit"
	"github.com/tyemill/snowline-agent/internal/llm"
)

const (
	defaultBaseURL = "https://nwac.us"
	DefaultZone    = "stevens-pass"

	// pageTextBudget caps how much page text goes into the extraction
	// prompt; NWAC pages carry far more boilerplate than forecast.
	pageTextBudget = 8000

	// The site blocks generic client user agents.
	browserUA = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36"
)

var zoneNames = map[string]string{
	"stevens-pass":    "Stevens Pass",
	"mt-baker":        "Mt. Baker",
	"snoqualmie-pass": "Snoqualmie Pass",
	"washington-pass": "Washington Pass",
	"mt-rainier":      "Mt. Rainier",
	"white-pass":      "White Pass",
	"olympics":        "Olympics",
}

// ZoneDisplay maps a zone slug to its display name.
func ZoneDisplay(zone string) string {
	if name, ok := zoneNames[zone]; ok {
		return name
	}
	words := strings.Split(zone, "-")
	for i, w := range words {
		if w != "" {
			words[i] = strings.ToUpper(w[:1]) + w[1:]
		}
	}
	return strings.Join(words, " ")
}

// Forecaster fetches and summarizes NWAC avalanche forecasts.
type Forecaster struct {
	baseURL    string
	httpClient *http.Client
	model      llm.Client
}

// New creates a Forecaster. baseURL may be empty for nwac.us.
func New(baseURL string, model llm.Client) *Forecaster {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Forecaster{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: httpkit.NewClient(
			httpkit.WithTimeout(30*time.Second),
			httpkit.WithUserAgent(browserUA),
			httpkit.WithRetry(2, time.Second),
		),
		model: model,
	}
}

// Forecast returns the formatted avalanche forecast for a zone. When the
// page cannot be fetched or summarized it degrades to a link block rather
// than failing; riders should still get pointed at the source.
func (f *Forecaster) Forecast(ctx context.Context, zone string) string {
	if zone == "" {
		zone = DefaultZone
	}
	url := fmt.Sprintf("%s/avalanche-forecast/#%s", f.baseURL, zone)

	pageText, err := f.fetchPageText(ctx, url)
	if err != nil {
		return fallback(zone, url, err)
	}

	extracted, err := f.model.Generate(ctx, extractionPrompt(pageText))
	if err != nil {
		return fallback(zone, url, err)
	}

	return format(zone, url, extracted)
}

func (f *Forecaster) fetchPageText(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch forecast page: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("forecast page returned HTTP %d", resp.StatusCode)
	}
	return ExtractText(resp.Body)
}

// skipTags hold no forecast content.
var skipTags = map[string]bool{
	"script": true, "style": true, "nav": true,
	"header": true, "footer": true, "iframe": true,
}

var (
	blankRuns = regexp.MustCompile(`\n\s*\n\s*\n+`)
	spaceRuns = regexp.MustCompile(`[ \t]+`)
)

// ExtractText renders an HTML document as newline-separated plain text,
// dropping chrome elements and collapsing whitespace.
func ExtractText(r io.Reader) (string, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return "", fmt.Errorf("parse page: %w", err)
	}

	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && skipTags[n.Data] {
			return
		}
		if n.Type == html.TextNode {
			if text := strings.TrimSpace(n.Data); text != "" {
				b.WriteString(text)
				b.WriteString("\n")
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	text := spaceRuns.ReplaceAllString(b.String(), " ")
	text = blankRuns.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text), nil
}

func extractionPrompt(pageText string) string {
	if len(pageText) > pageTextBudget {
		// Back off to a rune boundary so the cut never feeds the model an
		// invalid UTF-8 sequence.
		cut := pageTextBudget
		for cut > 0 && !utf8.RuneStart(pageText[cut]) {
			cut--
		}
		pageText = pageText[:cut]
	}
	return `You are analyzing an avalanche forecast page from the Northwest Avalanche Center (NWAC).

Your task is to extract and summarize the following sections from the page text below:

1. **METADATA** (if present):
   - Zone name
   - Issue date/time
   - Expiration date/time
   - Forecaster name

2. **DANGER RATINGS** (if present):
   - Upper elevations danger level
   - Middle elevations danger level
   - Lower elevations danger level

3. **THE BOTTOM LINE** (CRITICAL - Extract this section):
   - This is the forecaster's key summary and immediate concerns
   - Usually 1-2 paragraphs explaining the main hazard and advice
   - Extract the COMPLETE text of this section

4. **FORECAST DISCUSSION** (CRITICAL - Extract this section):
   - The detailed analysis and reasoning
   - Multiple paragraphs explaining snowpack conditions, weather impacts, and hazard assessment
   - Extract the COMPLETE text of this section

IMPORTANT RULES:
- If a section is not found, write "Section not found in page content"
- Extract the ACTUAL TEXT from the page, do not make up content
- Preserve the original wording from the forecast
- If the page shows "No Rating" for danger levels, report that
- Focus on extracting "The Bottom Line" and "Forecast Discussion" completely

Format your response EXACTLY as follows:

ZONE: [zone name]
ISSUED: [issue time]
EXPIRES: [expiration time]
FORECASTER: [name]

DANGER RATINGS:
Upper: [level]
Middle: [level]
Lower: [level]

THE BOTTOM LINE:
[Complete extracted text]

FORECAST DISCUSSION:
[Complete extracted text]

---
PAGE TEXT TO ANALYZE:
` + pageText + "\n"
}

func format(zone, url, extracted string) string {
	rule := strings.Repeat("=", 80)
	thin := strings.Repeat("-", 80)

	var b strings.Builder
	b.WriteString(rule + "\n")
	fmt.Fprintf(&b, "NWAC AVALANCHE FORECAST - %s\n", strings.ToUpper(ZoneDisplay(zone)))
	b.WriteString(rule + "\n\n")
	b.WriteString(extracted + "\n\n")
	b.WriteString(thin + "\n")
	b.WriteString("AVALANCHE SAFETY REMINDERS\n")
	b.WriteString(thin + "\n\n")
	b.WriteString(`Essential Safety Gear (Backcountry):
  - Avalanche beacon (check batteries before each trip)
  - Probe (240cm+ recommended)
  - Shovel (metal blade)
  - Communication device
  - First aid kit

Danger Level Reference:
  1 - Low: Generally safe avalanche conditions
  2 - Moderate: Heightened avalanche conditions on specific terrain
  3 - Considerable: Dangerous avalanche conditions, careful evaluation required
  4 - High: Very dangerous conditions, travel not recommended
  5 - Extreme: Avoid all avalanche terrain

Red Flags (Turn Around!):
  ! Recent avalanches
  ! Whumpfing (collapsing) sounds
  ! Shooting cracks
  ! Heavy, rapid snowfall (>1 inch/hour)
  ! Rain on snow or significant warming
  ! Strong winds loading slopes

`)
	b.WriteString(rule + "\n")
	b.WriteString("DISCLAIMER\n")
	b.WriteString(rule + "\n\n")
	b.WriteString("This backcountry avalanche information does NOT apply to ski areas\n")
	b.WriteString("where avalanche control work is performed. Always check the current\n")
	fmt.Fprintf(&b, "forecast at %s before heading into the backcountry.\n\n", url)
	b.WriteString("Support NWAC's life-saving work: https://nwac.us/membership/\n\n")
	b.WriteString(rule)
	return b.String()
}

func fallback(zone, url string, err error) string {
	return fmt.Sprintf(`Could not extract the avalanche forecast automatically.

Please visit the current avalanche forecast directly:
%s

Error: %v

IMPORTANT: Always check the current avalanche forecast before entering backcountry terrain.
The Northwest Avalanche Center provides daily forecasts with danger ratings, avalanche
problems, and travel advice at nwac.us.`, url, err)
}
