// Package charts turns detailed NOAA grid data into plain series the web UI
// renders client-side. No drawing happens server-side; the payload is JSON.
package charts

import (
	"time"

	"github.com/tyemill/snowline-agent/internal/noaa"
)

// Point is one timestamped value in a series.
type Point struct {
	Time  time.Time `json:"time"`
	Value float64   `json:"value"`
}

// Series is one named, unit-tagged line on a chart.
type Series struct {
	Name   string  `json:"name"`
	Unit   string  `json:"unit"`
	Points []Point `json:"points"`
}

// Bundle is the full chart payload for one forecast fetch.
type Bundle struct {
	Title  string   `json:"title"`
	Series []Series `json:"series"`
}

func series(name, unit string, samples []noaa.Sample) Series {
	pts := make([]Point, len(samples))
	for i, s := range samples {
		pts[i] = Point{Time: s.Time, Value: s.Value}
	}
	return Series{Name: name, Unit: unit, Points: pts}
}

// Build converts grid data into display-unit chart series. Series with no
// samples are dropped so the UI never draws an empty axis.
func Build(grid *noaa.GridData) *Bundle {
	if grid == nil {
		return nil
	}
	all := []Series{
		series("Snowfall", "in", noaa.Samples(grid.SnowfallAmount, noaa.MMToInches)),
		series("Precipitation", "in", noaa.Samples(grid.QuantitativePrecipitation, noaa.MMToInches)),
		series("Temperature", "F", noaa.Samples(grid.Temperature, noaa.CToF)),
		series("Wind Speed", "mph", noaa.Samples(grid.WindSpeed, noaa.KmhToMph)),
		series("Wind Gust", "mph", noaa.Samples(grid.WindGust, noaa.KmhToMph)),
		series("Visibility", "mi", noaa.Samples(grid.Visibility, noaa.MetersToMiles)),
	}
	kept := all[:0]
	for _, s := range all {
		if len(s.Points) > 0 {
			kept = append(kept, s)
		}
	}
	if len(kept) == 0 {
		return nil
	}
	return &Bundle{Title: noaa.LocationName, Series: kept}
}
