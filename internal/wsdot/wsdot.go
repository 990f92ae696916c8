// Package wsdot reads mountain pass conditions from the WSDOT Traveler
// Information API: road and weather state, temperature, and travel
// restrictions per pass.
package wsdot

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/tyemill/snowline-agent/internal/httpkit"
)

const (
	defaultBaseURL = "https://wsdot.wa.gov/Traffic/api/MountainPassConditions/MountainPassConditionsREST.svc"

	// DefaultPass is the pass riders here care about.
	DefaultPass = "Stevens"
)

// Client talks to the WSDOT mountain pass conditions endpoint.
type Client struct {
	baseURL    string
	accessCode string
	httpClient *http.Client
}

// NewClient creates a WSDOT client. The access code is the free API key
// WSDOT issues per application; baseURL may be empty for the public API.
func NewClient(baseURL, accessCode string) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		accessCode: accessCode,
		httpClient: httpkit.NewClient(
			httpkit.WithTimeout(30*time.Second),
			httpkit.WithRetry(2, time.Second),
		),
	}
}

// Restriction is one directional travel restriction on a pass.
type Restriction struct {
	TravelDirection string `json:"TravelDirection"`
	RestrictionText string `json:"RestrictionText"`
}

// Pass is the reported state of one mountain pass.
type Pass struct {
	Name                 string      `json:"MountainPassName"`
	RoadCondition        string      `json:"RoadCondition"`
	WeatherCondition     string      `json:"WeatherCondition"`
	TemperatureF         *int        `json:"TemperatureInFahrenheit"`
	ElevationFt          int         `json:"ElevationInFeet"`
	TravelAdvisoryActive bool        `json:"TravelAdvisoryActive"`
	DateUpdated          string      `json:"DateUpdated"`
	RestrictionOne       Restriction `json:"RestrictionOne"`
	RestrictionTwo       Restriction `json:"RestrictionTwo"`
}

// Passes fetches current conditions for all reported passes.
func (c *Client) Passes(ctx context.Context) ([]Pass, error) {
	u := fmt.Sprintf("%s/GetMountainPassConditionsAsJson?AccessCode=%s",
		c.baseURL, url.QueryEscape(c.accessCode))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("pass conditions: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("pass conditions: HTTP %d: %s",
			resp.StatusCode, httpkit.ReadErrorBody(resp.Body, 512))
	}

	var passes []Pass
	if err := json.NewDecoder(resp.Body).Decode(&passes); err != nil {
		return nil, fmt.Errorf("decode pass conditions: %w", err)
	}
	return passes, nil
}

// Find returns the passes whose names contain the query, case-insensitively.
// An empty or "all" query returns everything.
func Find(passes []Pass, query string) []Pass {
	query = strings.TrimSpace(strings.ToLower(query))
	if query == "" || query == "all" {
		return passes
	}
	var out []Pass
	for _, p := range passes {
		if strings.Contains(strings.ToLower(p.Name), query) {
			out = append(out, p)
		}
	}
	return out
}

// dotDate matches the WCF-style "/Date(1549548420000-0800)/" timestamps the
// API serves.
var dotDate = regexp.MustCompile(`/Date\((\d+)([-+]\d{4})?\)/`)

func parseDotDate(s string) (time.Time, bool) {
	m := dotDate.FindStringSubmatch(s)
	if m == nil {
		return time.Time{}, false
	}
	ms, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil {
		return time.Time{}, false
	}
	t := time.UnixMilli(ms).UTC()
	if m[2] != "" {
		if loc, err := time.Parse("-0700", m[2]); err == nil {
			t = t.In(loc.Location())
		}
	}
	return t, true
}

// FormatPasses renders pass conditions as a plain-text report.
func FormatPasses(passes []Pass) string {
	if len(passes) == 0 {
		return "No matching mountain passes reported by WSDOT.\n"
	}
	var b strings.Builder
	b.WriteString("WSDOT Mountain Pass Conditions:\n")
	for _, p := range passes {
		fmt.Fprintf(&b, "\n%s (%d ft)\n", p.Name, p.ElevationFt)
		if t, ok := parseDotDate(p.DateUpdated); ok {
			fmt.Fprintf(&b, "  Updated: %s\n", t.Format("Mon 01/02 3:04 PM"))
		}
		if p.TemperatureF != nil {
			fmt.Fprintf(&b, "  Temperature: %dF\n", *p.TemperatureF)
		}
		if p.WeatherCondition != "" {
			fmt.Fprintf(&b, "  Weather: %s\n", p.WeatherCondition)
		}
		if p.RoadCondition != "" {
			fmt.Fprintf(&b, "  Road: %s\n", p.RoadCondition)
		}
		if p.TravelAdvisoryActive {
			b.WriteString("  ** TRAVEL ADVISORY ACTIVE **\n")
		}
		for _, r := range []Restriction{p.RestrictionOne, p.RestrictionTwo} {
			if r.RestrictionText != "" {
				fmt.Fprintf(&b, "  Restriction %s: %s\n", r.TravelDirection, r.RestrictionText)
			}
		}
	}
	return b.String()
}
