package watch

import (
	"time"

	"github.com/glassgauge/gauge-backend/internal/camera"
	"github.com/glassgauge/gauge-backend/internal/confidence"
	"github.com/glassgauge/gauge-backend/internal/detection"
	"github.com/glassgauge/gauge-backend/internal/estimate"
)

type Permission string

const (
	PermissionGranted Permission = "granted"
	PermissionDenied  Permission = "denied"
)

// Source names which input currently drives the displayed level.
type Source string

const (
	SourceDetected  Source = "detected"
	SourceSimulated Source = "simulated"
)

// Snapshot is one consistent view of a session: every field was read under
// the same lock, so the detection list, the level derived from it and the
// confidence attached to it always belong together.
type Snapshot struct {
	SessionID        string
	Permission       Permission
	DetectionEnabled bool
	DetectorReady    bool
	Facing           camera.FacingMode
	Unit             estimate.Unit
	SimulatedLevel   float64
	Level            float64
	VolumeML         float64
	DisplayValue     float64
	Source           Source
	Detections       []detection.Object
	Confidence       *confidence.Result
	Notice           string
	LastError        string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}
