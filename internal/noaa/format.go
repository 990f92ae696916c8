package noaa

import (
	"fmt"
	"strings"
	"time"
)

// pacific approximates Pacific Standard Time for display. Grid timestamps
// arrive in UTC; during a winter-sports season PST is the right offset.
var pacific = time.FixedZone("PST", -8*60*60)

// Sample is one converted, display-ready grid value.
type Sample struct {
	Time  time.Time
	Value float64
}

// MMToInches converts millimeters to inches.
func MMToInches(mm float64) float64 { return mm / 25.4 }

// CToF converts Celsius to Fahrenheit.
func CToF(c float64) float64 { return c*9/5 + 32 }

// MetersToMiles converts meters to miles.
func MetersToMiles(m float64) float64 { return m / 1609.34 }

// KmhToMph converts kilometers per hour to miles per hour.
func KmhToMph(kmh float64) float64 { return kmh * 0.621371 }

// ParseValidTime extracts the instant from the API's "instant/duration"
// validTime format and shifts it to Pacific time for display.
func ParseValidTime(validTime string) (time.Time, error) {
	instant, _, _ := strings.Cut(validTime, "/")
	t, err := time.Parse(time.RFC3339, instant)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse validTime %q: %w", validTime, err)
	}
	return t.In(pacific), nil
}

// Samples converts a grid parameter to display-ready samples, dropping null
// values and unparseable timestamps. convert may be nil for pass-through.
func Samples(p GridParam, convert func(float64) float64) []Sample {
	out := make([]Sample, 0, len(p.Values))
	for _, v := range p.Values {
		if v.Value == nil {
			continue
		}
		t, err := ParseValidTime(v.ValidTime)
		if err != nil {
			continue
		}
		val := *v.Value
		if convert != nil {
			val = convert(val)
		}
		out = append(out, Sample{Time: t, Value: val})
	}
	return out
}

func stamp(t time.Time) string {
	return t.Format("Mon 01/02 3PM")
}

// FormatGridAnalysis renders the detailed grid forecast as a temporal
// breakdown for model analysis: all snowfall events, significant
// precipitation, temperature every 6 samples, wind every 12, and any
// reduced-visibility windows.
func FormatGridAnalysis(grid *GridData) string {
	if grid == nil {
		return ""
	}

	var b strings.Builder
	b.WriteString("Detailed NOAA Grid Forecast Data (Temporal Breakdown):\n\n")

	if snow := Samples(grid.SnowfallAmount, MMToInches); len(snow) > 0 {
		b.WriteString("Snowfall Forecast (inches):\n")
		any := false
		for _, s := range snow {
			if s.Value > 0 {
				fmt.Fprintf(&b, "  - %s: %.2f\"\n", stamp(s.Time), s.Value)
				any = true
			}
		}
		if !any {
			b.WriteString("  - No significant snowfall in forecast period\n")
		}
		b.WriteString("\n")
	}

	if precip := Samples(grid.QuantitativePrecipitation, MMToInches); len(precip) > 0 {
		b.WriteString("Precipitation Forecast (inches):\n")
		any := false
		for _, s := range precip {
			if s.Value > 0.1 {
				fmt.Fprintf(&b, "  - %s: %.2f\"\n", stamp(s.Time), s.Value)
				any = true
			}
		}
		if !any {
			b.WriteString("  - Minimal precipitation in forecast period\n")
		}
		b.WriteString("\n")
	}

	if temps := Samples(grid.Temperature, CToF); len(temps) > 0 {
		b.WriteString("Temperature Trends (F):\n")
		for i := 0; i < len(temps); i += 6 {
			fmt.Fprintf(&b, "  - %s: %.1fF\n", stamp(temps[i].Time), temps[i].Value)
		}
		b.WriteString("\n")
	}

	speeds := Samples(grid.WindSpeed, KmhToMph)
	gusts := Samples(grid.WindGust, KmhToMph)
	dirs := Samples(grid.WindDirection, nil)
	if len(speeds) > 0 {
		b.WriteString("Wind Conditions:\n")
		for i := 0; i < len(speeds); i += 12 {
			fmt.Fprintf(&b, "  - %s: %.1f mph", stamp(speeds[i].Time), speeds[i].Value)
			if i < len(gusts) {
				fmt.Fprintf(&b, ", gusts %.1f mph", gusts[i].Value)
			}
			if i < len(dirs) {
				fmt.Fprintf(&b, " from %d deg", int(dirs[i].Value))
			}
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}

	if vis := Samples(grid.Visibility, MetersToMiles); len(vis) > 0 {
		b.WriteString("Visibility (miles):\n")
		any := false
		for _, s := range vis {
			if s.Value < 5 {
				fmt.Fprintf(&b, "  - %s: %.2f mi\n", stamp(s.Time), s.Value)
				any = true
			}
		}
		if !any {
			b.WriteString("  - Good visibility expected (5+ miles)\n")
		}
		b.WriteString("\n")
	}

	return b.String()
}

// snowKeywords flag forecast wording worth emphasizing for riders.
var snowKeywords = []string{"snow", "sleet", "freezing", "blizzard", "flurries"}

// FormatPeriods renders up to limit human-readable forecast periods,
// bolding snow-related wording.
func FormatPeriods(periods []Period, limit int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Forecast Periods (%d available):\n", len(periods))
	if len(periods) > limit {
		periods = periods[:limit]
	}
	for _, p := range periods {
		forecast := p.ShortForecast
		lower := strings.ToLower(forecast)
		for _, kw := range snowKeywords {
			if strings.Contains(lower, kw) {
				forecast = "**" + forecast + "**"
				break
			}
		}
		fmt.Fprintf(&b, "  - %s: %s (%dF, %s)\n", p.Name, forecast, p.Temperature, p.WindSpeed)
	}
	return b.String()
}

// FormatAlerts renders active alerts, or a clear all-quiet line.
func FormatAlerts(alerts []Alert) string {
	if len(alerts) == 0 {
		return "No active alerts\n"
	}
	var b strings.Builder
	b.WriteString("Active Alerts/Warnings:\n")
	for _, a := range alerts {
		fmt.Fprintf(&b, "  - [%s] %s: %s\n", a.Severity, a.Event, a.Headline)
	}
	return b.String()
}
