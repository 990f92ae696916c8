package charts

import (
	"math"
	"testing"

	"github.com/tyemill/snowline-agent/internal/noaa"
)

func fv(v float64) *float64 { return &v }

func TestBuild(t *testing.T) {
	grid := &noaa.GridData{
		SnowfallAmount: noaa.GridParam{Values: []noaa.GridValue{
			{ValidTime: "2026-01-10T12:00:00+00:00/PT6H", Value: fv(50.8)},
		}},
		Temperature: noaa.GridParam{Values: []noaa.GridValue{
			{ValidTime: "2026-01-10T12:00:00+00:00/PT1H", Value: fv(-5)},
			{ValidTime: "2026-01-10T13:00:00+00:00/PT1H", Value: nil},
		}},
	}

	b := Build(grid)
	if b == nil {
		t.Fatal("Build returned nil for non-empty grid")
	}
	if b.Title != noaa.LocationName {
		t.Errorf("title = %q", b.Title)
	}
	// Empty series (precip, wind, visibility) are dropped.
	if len(b.Series) != 2 {
		t.Fatalf("got %d series, want 2: %+v", len(b.Series), b.Series)
	}

	snow := b.Series[0]
	if snow.Name != "Snowfall" || snow.Unit != "in" {
		t.Errorf("series = %+v", snow)
	}
	if len(snow.Points) != 1 || math.Abs(snow.Points[0].Value-2.0) > 0.01 {
		t.Errorf("snowfall points = %+v", snow.Points)
	}

	temp := b.Series[1]
	if temp.Name != "Temperature" || len(temp.Points) != 1 {
		t.Errorf("null samples should be dropped: %+v", temp)
	}
	if math.Abs(temp.Points[0].Value-23.0) > 0.01 {
		t.Errorf("temperature = %v, want 23F", temp.Points[0].Value)
	}
}

func TestBuildEmpty(t *testing.T) {
	if Build(nil) != nil {
		t.Error("nil grid should yield nil bundle")
	}
	if Build(&noaa.GridData{}) != nil {
		t.Error("grid with no samples should yield nil bundle")
	}
}
