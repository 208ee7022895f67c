package estimate

import (
	"math"
	"testing"

	"github.com/glassgauge/gauge-backend/internal/detection"
)

func TestLevel(t *testing.T) {
	tests := []struct {
		name string
		box  detection.Box
		want float64
	}{
		{
			name: "half full reference box",
			box:  detection.Box{XMin: 0.25, YMin: 0.1, XMax: 0.75, YMax: 0.9},
			want: 50,
		},
		{
			name: "top edge at frame top reads full",
			box:  detection.Box{XMin: 0.2, YMin: 0, XMax: 0.8, YMax: 0.6},
			want: 100,
		},
		{
			name: "box resting on frame bottom reads empty",
			box:  detection.Box{XMin: 0.3, YMin: 0.5, XMax: 0.7, YMax: 1.0},
			want: 0,
		},
		{
			name: "mid frame box",
			box:  detection.Box{XMin: 0.3, YMin: 0.25, XMax: 0.7, YMax: 0.75},
			want: 50,
		},
		{
			name: "small box low in frame",
			box:  detection.Box{XMin: 0.4, YMin: 0.8, XMax: 0.6, YMax: 0.95},
			want: 100 - (0.8/0.85)*100,
		},
		{
			name: "full frame box",
			box:  detection.Box{XMin: 0, YMin: 0, XMax: 1, YMax: 1},
			want: 100,
		},
		{
			name: "height within epsilon of frame",
			box:  detection.Box{XMin: 0, YMin: 1e-10, XMax: 1, YMax: 1},
			want: 100,
		},
		{
			name: "tiny visible margin stays finite",
			box:  detection.Box{XMin: 0, YMin: 1e-7, XMax: 0.5, YMax: 1 - 1e-7},
			want: 50,
		},
		{
			name: "out of range box clamps to zero",
			box:  detection.Box{XMin: 0.1, YMin: 0.9, XMax: 0.9, YMax: 1.2},
			want: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Level(tt.box)
			if math.IsNaN(got) || math.IsInf(got, 0) {
				t.Fatalf("expected finite level, got %v", got)
			}
			if got < 0 || got > 100 {
				t.Fatalf("level out of range: %v", got)
			}
			if math.Abs(got-tt.want) > 1e-6 {
				t.Errorf("expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestVolume(t *testing.T) {
	tests := []struct {
		name     string
		level    float64
		capacity float64
		want     float64
	}{
		{"empty", 0, 350, 0},
		{"full", 100, 350, 350},
		{"half", 50, 350, 175},
		{"custom capacity", 25, 500, 125},
		{"level above range clamps", 120, 350, 350},
		{"negative level clamps", -5, 350, 0},
		{"zero capacity", 50, 0, 0},
		{"negative capacity", 50, -10, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Volume(tt.level, tt.capacity)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestConvert(t *testing.T) {
	tests := []struct {
		name string
		ml   float64
		unit Unit
		want float64
	}{
		{"ml identity", 350, UnitMilliliters, 350},
		{"zero", 0, UnitOunces, 0},
		{"100ml to ounces", 100, UnitOunces, 3.3814},
		{"full glass to ounces", 350, UnitOunces, 11.8349},
		{"one ml", 1, UnitOunces, 0.033814},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Convert(tt.ml, tt.unit)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestParseUnit(t *testing.T) {
	tests := []struct {
		input   string
		want    Unit
		wantErr bool
	}{
		{"ml", UnitMilliliters, false},
		{"oz", UnitOunces, false},
		{"ML", UnitMilliliters, false},
		{"Oz", UnitOunces, false},
		{"liters", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseUnit(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Error("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("expected %s, got %s", tt.want, got)
			}
		})
	}
}

func TestLevelVolumePipeline(t *testing.T) {
	// The detection-to-display path: box -> level -> volume -> unit.
	box := detection.Box{XMin: 0.25, YMin: 0.1, XMax: 0.75, YMax: 0.9}
	level := Level(box)
	volume := Volume(level, DefaultCapacityML)
	if math.Abs(volume-175) > 1e-9 {
		t.Errorf("expected 175ml, got %v", volume)
	}
	oz := Convert(volume, UnitOunces)
	if math.Abs(oz-175*0.033814) > 1e-9 {
		t.Errorf("expected %v oz, got %v", 175*0.033814, oz)
	}
}
