package estimate

import (
	"fmt"
	"strings"

	"github.com/glassgauge/gauge-backend/internal/detection"
)

type Unit string

const (
	UnitMilliliters Unit = "ml"
	UnitOunces      Unit = "oz"
)

const (
	DefaultCapacityML = 350.0

	ouncesPerMilliliter = 0.033814
)

func ParseUnit(s string) (Unit, error) {
	switch Unit(strings.ToLower(s)) {
	case UnitMilliliters:
		return UnitMilliliters, nil
	case UnitOunces:
		return UnitOunces, nil
	default:
		return "", fmt.Errorf("unknown unit %q", s)
	}
}

// Level estimates fill percent from a normalized bounding box. The top edge
// of the box stands in for the liquid line: level = 100 - yMin/(1-height)*100,
// clamped to [0,100]. A box spanning the whole frame reads as full; the
// result is never NaN or infinite.
func Level(box detection.Box) float64 {
	visible := 1 - box.Height()
	if visible <= 1e-9 {
		return 100
	}
	return clamp(100-(box.YMin/visible)*100, 0, 100)
}

// Volume converts a fill percent to milliliters against the assumed vessel
// capacity.
func Volume(level, capacityML float64) float64 {
	if capacityML <= 0 {
		return 0
	}
	return clamp(level, 0, 100) / 100 * capacityML
}

// Convert renders a milliliter volume in the requested display unit.
func Convert(ml float64, unit Unit) float64 {
	if unit == UnitOunces {
		return ml * ouncesPerMilliliter
	}
	return ml
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
