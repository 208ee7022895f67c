package camera

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/glassgauge/gauge-backend/internal/shared"
)

type ManagerConfig struct {
	Sources         map[FacingMode]Source
	Store           *Store
	FrameMaxAge     time.Duration
	SnapshotTimeout time.Duration
	Logger          *slog.Logger
}

// Manager owns device policy: which facing modes have a source, and the
// rule that a session holds at most one open stream at a time.
type Manager struct {
	sources map[FacingMode]Source
	store   *Store
	maxAge  time.Duration
	timeout time.Duration
	logger  *slog.Logger

	mu   sync.Mutex
	open map[string]Stream
}

func NewManager(cfg ManagerConfig) *Manager {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Manager{
		sources: cfg.Sources,
		store:   cfg.Store,
		maxAge:  cfg.FrameMaxAge,
		timeout: cfg.SnapshotTimeout,
		logger:  cfg.Logger.With("component", "camera-manager"),
		open:    make(map[string]Stream),
	}
}

// Acquire opens a stream for the given facing mode. A facing mode with no
// configured source is a permission denial, not a transient failure.
func (m *Manager) Acquire(ctx context.Context, sessionID string, facing FacingMode) (Stream, error) {
	source, ok := m.sources[facing]
	if !ok {
		return nil, fmt.Errorf("facing %s: %w", facing, shared.ErrCameraDenied)
	}

	m.mu.Lock()
	if _, exists := m.open[sessionID]; exists {
		m.mu.Unlock()
		return nil, shared.ErrStreamBusy
	}
	m.open[sessionID] = nil
	m.mu.Unlock()

	stream, err := m.openStream(ctx, sessionID, facing, source)
	if err != nil {
		m.mu.Lock()
		delete(m.open, sessionID)
		m.mu.Unlock()
		return nil, err
	}

	m.mu.Lock()
	m.open[sessionID] = stream
	m.mu.Unlock()

	m.logger.Debug("stream acquired", "session_id", sessionID, "facing", facing)
	return stream, nil
}

func (m *Manager) openStream(ctx context.Context, sessionID string, facing FacingMode, source Source) (Stream, error) {
	if source.SnapshotURL == "" {
		return newPushStream(m.store, sessionID, facing, m.maxAge), nil
	}

	stream := newSnapshotStream(sessionID, facing, source.SnapshotURL, m.timeout)
	probeCtx, cancel := context.WithTimeout(ctx, stream.httpClient.Timeout)
	defer cancel()
	if _, err := stream.Capture(probeCtx); err != nil {
		return nil, fmt.Errorf("snapshot source unreachable (%v): %w", err, shared.ErrCameraDenied)
	}
	return stream, nil
}

// Release closes and forgets the session's stream. Safe to call when no
// stream is open.
func (m *Manager) Release(sessionID string) {
	m.mu.Lock()
	stream, ok := m.open[sessionID]
	delete(m.open, sessionID)
	m.mu.Unlock()

	if !ok || stream == nil {
		return
	}
	if err := stream.Close(); err != nil {
		m.logger.Warn("close stream failed", "session_id", sessionID, "error", err)
	}
	m.logger.Debug("stream released", "session_id", sessionID)
}

func (m *Manager) OpenCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.open)
}
