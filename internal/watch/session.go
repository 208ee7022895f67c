package watch

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/glassgauge/gauge-backend/internal/camera"
	"github.com/glassgauge/gauge-backend/internal/confidence"
	"github.com/glassgauge/gauge-backend/internal/detection"
	"github.com/glassgauge/gauge-backend/internal/estimate"
	"github.com/glassgauge/gauge-backend/internal/shared"
	"github.com/glassgauge/gauge-backend/internal/telemetry"
)

// No shape classification is performed; every glass is assessed as this.
const glassShape = "Cylinder"

const (
	noticeCameraDenied        = "camera access denied for the current facing mode; switch facing to retry"
	noticeDetectorUnavailable = "object detector unavailable; detection is paused until it recovers"
)

// Session owns the live estimation pipeline for one watched glass: the
// camera stream, the detection poller, the derived level/volume, and the
// confidence requester. The displayed level comes from the first detected
// box while detections exist and from the simulation slider otherwise.
type Session struct {
	id          string
	ingestToken string
	capacityML  float64
	created     time.Time

	cameras  CameraManager
	frames   *camera.Store
	detector detection.Detector

	poller    *detection.Poller
	requester *confidence.Requester
	broadcast *broadcaster
	metrics   *telemetry.Metrics
	logger    *slog.Logger

	// lifeMu serializes lifecycle transitions (detection toggles, facing
	// switches, close) so poller and stream handoffs never interleave.
	// Lock order: lifeMu before mu, never the reverse.
	lifeMu sync.Mutex

	mu              sync.Mutex
	closed          bool
	permission      Permission
	enabled         bool
	detectorReady   bool
	facing          camera.FacingMode
	unit            estimate.Unit
	simulatedLevel  float64
	detections      []detection.Object
	confidence      *confidence.Result
	stream          camera.Stream
	notice          string
	lastError       string
	updatedAt       time.Time
	assessed        bool
	assessedVolume  float64
	assessedObjects []detection.Object
}

type sessionConfig struct {
	id            string
	ingestToken   string
	facing        camera.FacingMode
	unit          estimate.Unit
	simulated     float64
	enabled       bool
	permission    Permission
	detectorReady bool
	stream        camera.Stream
	capacityML    float64

	cameras      CameraManager
	frames       *camera.Store
	detector     detection.Detector
	assessor     confidence.Assessor
	filter       *detection.Filter
	pollInterval time.Duration
	debounce     time.Duration
	metrics      *telemetry.Metrics
	logger       *slog.Logger
}

func newSession(cfg sessionConfig) *Session {
	now := time.Now()
	s := &Session{
		id:             cfg.id,
		ingestToken:    cfg.ingestToken,
		capacityML:     cfg.capacityML,
		created:        now,
		cameras:        cfg.cameras,
		frames:         cfg.frames,
		detector:       cfg.detector,
		broadcast:      newBroadcaster(),
		metrics:        cfg.metrics,
		logger:         cfg.logger.With("session_id", cfg.id),
		permission:     cfg.permission,
		enabled:        cfg.enabled,
		detectorReady:  cfg.detectorReady,
		facing:         cfg.facing,
		unit:           cfg.unit,
		simulatedLevel: clampLevel(cfg.simulated),
		stream:         cfg.stream,
		updatedAt:      now,
	}
	s.refreshNoticeLocked()

	s.poller = detection.NewPoller(detection.PollerConfig{
		Interval: cfg.pollInterval,
		Detector: cfg.detector,
		Source:   streamSource{s},
		Filter:   cfg.filter,
		OnPoll:   s.handlePoll,
		Logger:   s.logger,
	})
	s.requester = confidence.NewRequester(confidence.RequesterConfig{
		Client:   cfg.assessor,
		Debounce: cfg.debounce,
		OnResult: s.handleConfidence,
		Logger:   s.logger,
	})
	return s
}

func (s *Session) ID() string {
	return s.id
}

func (s *Session) IngestToken() string {
	return s.ingestToken
}

// Snapshot returns a consistent view of the session state.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Session) snapshotLocked() Snapshot {
	level := s.simulatedLevel
	source := SourceSimulated
	if len(s.detections) > 0 {
		level = estimate.Level(s.detections[0].Box)
		source = SourceDetected
	}
	volume := estimate.Volume(level, s.capacityML)

	detections := make([]detection.Object, len(s.detections))
	copy(detections, s.detections)

	var result *confidence.Result
	if s.confidence != nil {
		r := *s.confidence
		result = &r
	}

	return Snapshot{
		SessionID:        s.id,
		Permission:       s.permission,
		DetectionEnabled: s.enabled,
		DetectorReady:    s.detectorReady,
		Facing:           s.facing,
		Unit:             s.unit,
		SimulatedLevel:   s.simulatedLevel,
		Level:            level,
		VolumeML:         volume,
		DisplayValue:     estimate.Convert(volume, s.unit),
		Source:           source,
		Detections:       detections,
		Confidence:       result,
		Notice:           s.notice,
		LastError:        s.lastError,
		CreatedAt:        s.created,
		UpdatedAt:        s.updatedAt,
	}
}

// Subscribe registers a snapshot listener for the SSE stream. The returned
// channel closes on Unsubscribe or session close.
func (s *Session) Subscribe() (int, <-chan Snapshot) {
	return s.broadcast.subscribe()
}

func (s *Session) Unsubscribe(id int) {
	s.broadcast.unsubscribe(id)
}

// SetDetectionEnabled turns the polling loop on or off. Disabling clears
// the detection list and the confidence result, so the simulation slider
// becomes authoritative again. Enabling re-probes a detector that was
// unavailable at session start.
func (s *Session) SetDetectionEnabled(ctx context.Context, enabled bool) error {
	s.lifeMu.Lock()
	defer s.lifeMu.Unlock()

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return shared.ErrNotFound
	}
	if s.enabled == enabled {
		s.mu.Unlock()
		return nil
	}
	ready := s.detectorReady
	s.mu.Unlock()

	if enabled && !ready {
		ready = s.detector.Ready(ctx)
	}

	var clear bool
	s.mu.Lock()
	s.enabled = enabled
	if enabled {
		s.detectorReady = ready
	} else {
		s.detections = nil
		s.confidence = nil
		s.lastError = ""
		s.resetAssessedLocked()
		clear = true
	}
	s.refreshNoticeLocked()
	s.updatedAt = time.Now()
	snap := s.snapshotLocked()
	s.mu.Unlock()

	if clear {
		s.requester.Clear()
	}
	s.syncPoller()
	s.broadcast.publish(snap)

	s.logger.Info("detection toggled", "enabled", enabled, "detector_ready", ready)
	return nil
}

// SetFacingMode switches the camera. The old stream is closed exactly once
// before the new one is requested; if the new facing mode is denied the
// session degrades to permission=denied with a persistent notice instead
// of failing the call.
func (s *Session) SetFacingMode(ctx context.Context, facing camera.FacingMode) error {
	s.lifeMu.Lock()
	defer s.lifeMu.Unlock()

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return shared.ErrNotFound
	}
	if s.facing == facing {
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()

	// No polls may touch the stream while it is being swapped.
	s.poller.Stop()

	s.cameras.Release(s.id)
	s.mu.Lock()
	s.stream = nil
	s.mu.Unlock()

	stream, err := s.cameras.Acquire(ctx, s.id, facing)

	var clear bool
	s.mu.Lock()
	s.facing = facing
	if err != nil {
		s.permission = PermissionDenied
		s.detections = nil
		s.confidence = nil
		s.lastError = ""
		s.resetAssessedLocked()
		clear = true
	} else {
		s.permission = PermissionGranted
		s.stream = stream
	}
	s.refreshNoticeLocked()
	s.updatedAt = time.Now()
	snap := s.snapshotLocked()
	s.mu.Unlock()

	if clear {
		s.requester.Clear()
	}
	s.syncPoller()
	s.broadcast.publish(snap)

	if err != nil {
		s.logger.Warn("facing switch denied", "facing", facing, "error", err)
	} else {
		s.logger.Info("facing mode switched", "facing", facing)
	}
	return nil
}

func (s *Session) SetUnit(unit estimate.Unit) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return shared.ErrNotFound
	}
	s.unit = unit
	s.updatedAt = time.Now()
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.broadcast.publish(snap)
	return nil
}

// SetSimulatedLevel moves the simulation slider. The value only drives the
// displayed level while no detections exist.
func (s *Session) SetSimulatedLevel(level float64) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return shared.ErrNotFound
	}
	s.simulatedLevel = clampLevel(level)
	s.updatedAt = time.Now()
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.broadcast.publish(snap)
	return nil
}

// handlePoll is the poller callback: it replaces the detection list
// wholesale, recomputes the derived volume, and decides whether the
// confidence requester needs a new assessment or a reset.
func (s *Session) handlePoll(objects []detection.Object, err error) {
	s.metrics.PollsTotal.Add(1)
	if err != nil {
		s.metrics.PollErrors.Add(1)
	}

	s.mu.Lock()
	if s.closed || !s.enabled {
		s.mu.Unlock()
		return
	}

	if err != nil {
		s.detections = nil
		s.lastError = err.Error()
	} else {
		s.detections = objects
		s.lastError = ""
	}

	var (
		doRequest  bool
		doClear    bool
		assessment confidence.Assessment
	)
	if len(s.detections) > 0 {
		s.metrics.DetectionsPublished.Add(uint64(len(s.detections)))

		level := estimate.Level(s.detections[0].Box)
		volume := estimate.Volume(level, s.capacityML)
		if !s.assessed || volume != s.assessedVolume || !objectsEqual(s.detections, s.assessedObjects) {
			doRequest = true
			assessment = confidence.Assessment{
				GlassShape: glassShape,
				Level:      level,
				VolumeML:   volume,
			}
			s.assessed = true
			s.assessedVolume = volume
			s.assessedObjects = append([]detection.Object(nil), s.detections...)
		}
	} else {
		s.metrics.EmptyPolls.Add(1)

		if s.assessed || s.confidence != nil {
			doClear = true
		}
		s.confidence = nil
		s.resetAssessedLocked()
	}

	s.updatedAt = time.Now()
	snap := s.snapshotLocked()
	s.mu.Unlock()

	if doRequest {
		s.metrics.ConfidenceRequests.Add(1)
		s.requester.Request(assessment)
	}
	if doClear {
		s.requester.Clear()
	}
	s.broadcast.publish(snap)
}

// handleConfidence is the requester callback. A nil result means the
// assessment failed; it degrades the confidence to nil without any
// user-facing error.
func (s *Session) handleConfidence(result *confidence.Result) {
	if result == nil {
		s.metrics.ConfidenceFailures.Add(1)
	} else {
		s.metrics.ConfidenceResults.Add(1)
	}

	s.mu.Lock()
	if s.closed || !s.enabled || len(s.detections) == 0 {
		s.mu.Unlock()
		return
	}
	s.confidence = result
	s.updatedAt = time.Now()
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.broadcast.publish(snap)
}

// Close stops the pipeline, releases the camera and deletes stored frames.
// Safe to call more than once.
func (s *Session) Close() error {
	s.lifeMu.Lock()
	defer s.lifeMu.Unlock()

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	s.poller.Stop()
	s.requester.Stop()
	s.cameras.Release(s.id)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.frames.DeleteFrames(ctx, s.id); err != nil {
		s.logger.Warn("delete stored frames failed", "error", err)
	}

	s.broadcast.close()
	s.metrics.ActiveSessions.Add(-1)
	s.logger.Info("watch session closed")
	return nil
}

// syncPoller starts or stops the polling loop to match the session state.
// Callers must hold lifeMu (or be the only goroutine that can reach the
// session, as during Create).
func (s *Session) syncPoller() {
	s.mu.Lock()
	should := !s.closed && s.enabled && s.permission == PermissionGranted && s.detectorReady
	s.mu.Unlock()

	if should {
		s.poller.Start()
	} else {
		s.poller.Stop()
	}
}

func (s *Session) refreshNoticeLocked() {
	switch {
	case s.permission == PermissionDenied:
		s.notice = noticeCameraDenied
	case !s.detectorReady:
		s.notice = noticeDetectorUnavailable
	default:
		s.notice = ""
	}
}

func (s *Session) resetAssessedLocked() {
	s.assessed = false
	s.assessedVolume = 0
	s.assessedObjects = nil
}

// streamSource adapts the session's current stream to the poller, so the
// poller survives facing switches without being rebuilt.
type streamSource struct {
	s *Session
}

func (src streamSource) Capture(ctx context.Context) (*camera.Frame, error) {
	src.s.mu.Lock()
	stream := src.s.stream
	src.s.mu.Unlock()

	if stream == nil {
		return nil, nil
	}
	return stream.Capture(ctx)
}

func objectsEqual(a, b []detection.Object) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func clampLevel(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
