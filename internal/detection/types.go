package detection

import (
	"context"
	"time"

	"github.com/glassgauge/gauge-backend/internal/camera"
)

type Config struct {
	BaseURL string
	Model   string
	Timeout time.Duration
}

// Box is a normalized bounding box, all coordinates in [0,1] with the
// origin at the top-left corner of the frame.
type Box struct {
	XMin float64 `json:"x_min"`
	YMin float64 `json:"y_min"`
	XMax float64 `json:"x_max"`
	YMax float64 `json:"y_max"`
}

func (b Box) Width() float64 {
	return b.XMax - b.XMin
}

func (b Box) Height() float64 {
	return b.YMax - b.YMin
}

func (b Box) Valid() bool {
	if b.XMin < 0 || b.YMin < 0 || b.XMax > 1 || b.YMax > 1 {
		return false
	}
	return b.XMin < b.XMax && b.YMin < b.YMax
}

// Object is one detected drinking vessel in a single frame. Objects carry
// no identity across polls; every poll replaces the previous list wholesale.
type Object struct {
	Label string `json:"label"`
	Box   Box    `json:"box"`
}

// RawDetection is the sidecar's own answer: pixel-space [x, y, width, height]
// plus a score, before any filtering or normalization.
type RawDetection struct {
	Label string     `json:"label"`
	Score float64    `json:"score"`
	Box   [4]float64 `json:"box"`
}

type Detector interface {
	Detect(ctx context.Context, frame *camera.Frame) ([]RawDetection, error)
	Ready(ctx context.Context) bool
}
