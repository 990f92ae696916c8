// Package noaa is a client for the api.weather.gov forecast API: gridpoint
// lookup, forecast periods, detailed grid data, active alerts, and Area
// Forecast Discussion (AFD) text products.
package noaa

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/tyemill/snowline-agent/internal/httpkit"
)

const defaultBaseURL = "https://api.weather.gov"

// Stevens Pass - Tye Mill (STS54) telemetry site.
const (
	Latitude     = 47.7462
	Longitude    = -121.0859
	LocationName = "Stevens Pass - Tye Mill (STS54)"
	ElevationFt  = 5180
)

// Client talks to api.weather.gov.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a NOAA API client. baseURL may be empty for the public
// endpoint.
func NewClient(baseURL string) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: httpkit.NewClient(
			httpkit.WithTimeout(30*time.Second),
			httpkit.WithRetry(3, time.Second),
		),
	}
}

// Point describes the forecast grid covering a coordinate, resolved via the
// /points endpoint. The forecast URLs it carries are followed as-is; the API
// treats them as opaque.
type Point struct {
	GridID      string
	WFO         string
	Timezone    string
	City        string
	State       string
	Description string

	ForecastURL     string
	ForecastGridURL string
	AlertsURL       string
}

// Point resolves the grid metadata for a coordinate.
func (c *Client) Point(ctx context.Context, lat, lon float64) (*Point, error) {
	var raw struct {
		Properties struct {
			GridID           string `json:"gridId"`
			CWA              string `json:"cwa"`
			TimeZone         string `json:"timeZone"`
			Forecast         string `json:"forecast"`
			ForecastGridData string `json:"forecastGridData"`
			RelativeLocation struct {
				Properties struct {
					City        string `json:"city"`
					State       string `json:"state"`
					Description string `json:"description"`
				} `json:"properties"`
			} `json:"relativeLocation"`
		} `json:"properties"`
	}
	url := fmt.Sprintf("%s/points/%.4f,%.4f", c.baseURL, lat, lon)
	if err := c.getJSON(ctx, url, &raw); err != nil {
		return nil, fmt.Errorf("points lookup: %w", err)
	}

	p := raw.Properties
	return &Point{
		GridID:          p.GridID,
		WFO:             p.CWA,
		Timezone:        p.TimeZone,
		City:            p.RelativeLocation.Properties.City,
		State:           p.RelativeLocation.Properties.State,
		Description:     p.RelativeLocation.Properties.Description,
		ForecastURL:     p.Forecast,
		ForecastGridURL: p.ForecastGridData,
		AlertsURL:       fmt.Sprintf("%s/alerts/active?point=%.4f,%.4f", c.baseURL, lat, lon),
	}, nil
}

// Period is one named span of the human-readable forecast.
type Period struct {
	Name          string `json:"name"`
	Temperature   int    `json:"temperature"`
	WindSpeed     string `json:"windSpeed"`
	ShortForecast string `json:"shortForecast"`
}

// Forecast fetches the forecast periods from a point's forecast URL.
func (c *Client) Forecast(ctx context.Context, url string) ([]Period, error) {
	var raw struct {
		Properties struct {
			Periods []Period `json:"periods"`
		} `json:"properties"`
	}
	if err := c.getJSON(ctx, url, &raw); err != nil {
		return nil, fmt.Errorf("forecast: %w", err)
	}
	return raw.Properties.Periods, nil
}

// GridValue is one timestamped sample of a grid parameter. ValidTime is the
// API's ISO-8601 instant/duration pair ("2025-11-29T15:00:00+00:00/PT2H").
type GridValue struct {
	ValidTime string   `json:"validTime"`
	Value     *float64 `json:"value"`
}

// GridParam is a time series for one forecast variable.
type GridParam struct {
	UOM    string      `json:"uom"`
	Values []GridValue `json:"values"`
}

// GridData carries the detailed gridpoint forecast variables the analysis
// and charts care about. Units are metric as served (mm, degC, m, km/h).
type GridData struct {
	SnowfallAmount            GridParam `json:"snowfallAmount"`
	QuantitativePrecipitation GridParam `json:"quantitativePrecipitation"`
	Temperature               GridParam `json:"temperature"`
	WindSpeed                 GridParam `json:"windSpeed"`
	WindGust                  GridParam `json:"windGust"`
	WindDirection             GridParam `json:"windDirection"`
	Visibility                GridParam `json:"visibility"`
}

// Grid fetches the detailed gridpoint data from a point's grid URL.
func (c *Client) Grid(ctx context.Context, url string) (*GridData, error) {
	var raw struct {
		Properties GridData `json:"properties"`
	}
	if err := c.getJSON(ctx, url, &raw); err != nil {
		return nil, fmt.Errorf("grid data: %w", err)
	}
	return &raw.Properties, nil
}

// Alert is one active watch, warning, or advisory.
type Alert struct {
	Event    string `json:"event"`
	Headline string `json:"headline"`
	Severity string `json:"severity"`
}

// Alerts fetches active alerts from a point's alerts URL.
func (c *Client) Alerts(ctx context.Context, url string) ([]Alert, error) {
	var raw struct {
		Features []struct {
			Properties Alert `json:"properties"`
		} `json:"features"`
	}
	if err := c.getJSON(ctx, url, &raw); err != nil {
		return nil, fmt.Errorf("alerts: %w", err)
	}
	alerts := make([]Alert, 0, len(raw.Features))
	for _, f := range raw.Features {
		alerts = append(alerts, f.Properties)
	}
	return alerts, nil
}

// AFD is one Area Forecast Discussion text product.
type AFD struct {
	WFO    string
	Issued string
	Code   string
	Text   string
}

// LatestAFD fetches the most recent Area Forecast Discussion for a weather
// forecast office. The product listing is JSON-LD; the first @graph entry is
// the newest product and its @id is the URL of the full text.
func (c *Client) LatestAFD(ctx context.Context, wfo string) (*AFD, error) {
	var listing struct {
		Graph []struct {
			ID string `json:"@id"`
		} `json:"@graph"`
	}
	url := fmt.Sprintf("%s/products/types/AFD/locations/%s", c.baseURL, wfo)
	if err := c.getJSON(ctx, url, &listing); err != nil {
		return nil, fmt.Errorf("AFD listing for %s: %w", wfo, err)
	}
	if len(listing.Graph) == 0 {
		return nil, fmt.Errorf("no AFD products available for %s", wfo)
	}

	var product struct {
		ProductText  string `json:"productText"`
		IssuanceTime string `json:"issuanceTime"`
		ProductCode  string `json:"productCode"`
	}
	if err := c.getJSON(ctx, listing.Graph[0].ID, &product); err != nil {
		return nil, fmt.Errorf("AFD product for %s: %w", wfo, err)
	}
	if product.ProductText == "" {
		return nil, fmt.Errorf("AFD text for %s is empty", wfo)
	}

	return &AFD{
		WFO:    wfo,
		Issued: product.IssuanceTime,
		Code:   product.ProductCode,
		Text:   product.ProductText,
	}, nil
}

func (c *Client) getJSON(ctx context.Context, url string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/geo+json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("HTTP %d: %s", resp.StatusCode, httpkit.ReadErrorBody(resp.Body, 512))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
