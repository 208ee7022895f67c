package watch

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/glassgauge/gauge-backend/internal/camera"
	"github.com/glassgauge/gauge-backend/internal/confidence"
	"github.com/glassgauge/gauge-backend/internal/detection"
	"github.com/glassgauge/gauge-backend/internal/estimate"
	"github.com/glassgauge/gauge-backend/internal/shared"
	"github.com/glassgauge/gauge-backend/internal/telemetry"
)

// CameraManager is the slice of the camera layer the watch package needs:
// exclusive acquire per session, release on teardown.
type CameraManager interface {
	Acquire(ctx context.Context, sessionID string, facing camera.FacingMode) (camera.Stream, error)
	Release(sessionID string)
}

type ManagerConfig struct {
	Cameras  CameraManager
	Frames   *camera.Store
	Detector detection.Detector
	Assessor confidence.Assessor

	PollInterval time.Duration
	Debounce     time.Duration
	Labels       []string
	MinScore     float64
	CapacityML   float64

	Metrics *telemetry.Metrics
	Logger  *slog.Logger
}

// Manager is the watch session registry.
type Manager struct {
	cameras  CameraManager
	frames   *camera.Store
	detector detection.Detector
	assessor confidence.Assessor

	filter   *detection.Filter
	interval time.Duration
	debounce time.Duration
	capacity float64

	metrics *telemetry.Metrics
	log     *slog.Logger

	mu       sync.RWMutex
	sessions map[string]*Session
}

func NewManager(cfg ManagerConfig) *Manager {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Metrics == nil {
		cfg.Metrics = telemetry.New()
	}
	if cfg.CapacityML <= 0 {
		cfg.CapacityML = estimate.DefaultCapacityML
	}

	return &Manager{
		cameras:  cfg.Cameras,
		frames:   cfg.Frames,
		detector: cfg.Detector,
		assessor: cfg.Assessor,
		filter:   detection.NewFilter(cfg.Labels, cfg.MinScore),
		interval: cfg.PollInterval,
		debounce: cfg.Debounce,
		capacity: cfg.CapacityML,
		metrics:  cfg.Metrics,
		log:      cfg.Logger.With("component", "watch-manager"),
		sessions: make(map[string]*Session),
	}
}

type CreateParams struct {
	Facing           camera.FacingMode
	Unit             estimate.Unit
	DetectionEnabled bool
	SimulatedLevel   float64
}

// Create builds a session, acquires its camera stream and probes the
// detector. A denied camera does not fail the call: the session comes up
// with permission=denied and a persistent notice, recoverable through a
// facing switch.
func (m *Manager) Create(ctx context.Context, params CreateParams) (*Session, error) {
	facing := params.Facing
	if facing == "" {
		facing = camera.FacingUser
	}
	unit := params.Unit
	if unit == "" {
		unit = estimate.UnitMilliliters
	}

	id := shared.NewID("watch_")
	token := shared.NewID("feed_")

	permission := PermissionGranted
	stream, err := m.cameras.Acquire(ctx, id, facing)
	if err != nil {
		if !errors.Is(err, shared.ErrCameraDenied) {
			return nil, fmt.Errorf("acquire camera: %w", err)
		}
		permission = PermissionDenied
		stream = nil
		m.log.Warn("camera denied at session start", "session_id", id, "facing", facing, "error", err)
	}

	ready := m.detector.Ready(ctx)
	if !ready {
		m.log.Warn("object detector unavailable at session start", "session_id", id)
	}

	s := newSession(sessionConfig{
		id:            id,
		ingestToken:   token,
		facing:        facing,
		unit:          unit,
		simulated:     params.SimulatedLevel,
		enabled:       params.DetectionEnabled,
		permission:    permission,
		detectorReady: ready,
		stream:        stream,
		capacityML:    m.capacity,
		cameras:       m.cameras,
		frames:        m.frames,
		detector:      m.detector,
		assessor:      m.assessor,
		filter:        m.filter,
		pollInterval:  m.interval,
		debounce:      m.debounce,
		metrics:       m.metrics,
		logger:        m.log,
	})

	m.mu.Lock()
	m.sessions[id] = s
	m.mu.Unlock()

	s.syncPoller()

	m.metrics.SessionsTotal.Add(1)
	m.metrics.ActiveSessions.Add(1)
	m.log.Info("watch session created",
		"session_id", id,
		"facing", facing,
		"permission", permission,
		"detection_enabled", params.DetectionEnabled,
		"detector_ready", ready)
	return s, nil
}

func (m *Manager) Get(id string) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	return s, ok
}

// Snapshot returns the current state of one session.
func (m *Manager) Snapshot(id string) (Snapshot, bool) {
	s, ok := m.Get(id)
	if !ok {
		return Snapshot{}, false
	}
	return s.Snapshot(), true
}

// Remove closes a session and forgets it.
func (m *Manager) Remove(id string) error {
	m.mu.Lock()
	s, ok := m.sessions[id]
	if ok {
		delete(m.sessions, id)
	}
	m.mu.Unlock()

	if !ok {
		return shared.ErrNotFound
	}
	if err := s.Close(); err != nil {
		m.log.Error("close session failed", "session_id", id, "error", err)
	}
	m.log.Info("watch session removed", "session_id", id)
	return nil
}

func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// List returns a snapshot of every open session, oldest first.
func (m *Manager) List() []Snapshot {
	m.mu.RLock()
	sessions := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessions = append(sessions, s)
	}
	m.mu.RUnlock()

	snaps := make([]Snapshot, 0, len(sessions))
	for _, s := range sessions {
		snaps = append(snaps, s.Snapshot())
	}
	sort.Slice(snaps, func(i, j int) bool {
		if snaps[i].CreatedAt.Equal(snaps[j].CreatedAt) {
			return snaps[i].SessionID < snaps[j].SessionID
		}
		return snaps[i].CreatedAt.Before(snaps[j].CreatedAt)
	})
	return snaps
}

// Authorize checks an ingest token against its session.
func (m *Manager) Authorize(sessionID, token string) error {
	s, ok := m.Get(sessionID)
	if !ok {
		return shared.ErrNotFound
	}
	if subtle.ConstantTimeCompare([]byte(s.IngestToken()), []byte(token)) != 1 {
		return shared.ErrInvalidToken
	}
	return nil
}

// Close shuts every session down. Used on server shutdown.
func (m *Manager) Close() error {
	m.mu.Lock()
	sessions := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessions = append(sessions, s)
	}
	m.sessions = make(map[string]*Session)
	m.mu.Unlock()

	for _, s := range sessions {
		if err := s.Close(); err != nil {
			m.log.Error("close session failed", "session_id", s.ID(), "error", err)
		}
	}
	return nil
}
