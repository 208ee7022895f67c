package confidence

import (
	"context"
	"time"
)

type Config struct {
	BaseURL  string
	Model    string
	Timeout  time.Duration
	Debounce time.Duration
}

// Assessment is what the reasoning model is asked to judge: the assumed
// vessel geometry and the estimate derived from the current detection.
type Assessment struct {
	GlassShape string
	Level      float64
	VolumeML   float64
}

// Result is the model's verdict. A nil *Result anywhere in the pipeline
// means "no confidence available", which is never an error condition.
type Result struct {
	Score     float64 `json:"confidence_score"`
	Reasoning string  `json:"reasoning"`
}

type Assessor interface {
	Assess(ctx context.Context, a Assessment) (*Result, error)
	IsAvailable(ctx context.Context) bool
}
