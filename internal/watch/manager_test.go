package watch

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/glassgauge/gauge-backend/internal/camera"
	"github.com/glassgauge/gauge-backend/internal/estimate"
	"github.com/glassgauge/gauge-backend/internal/shared"
)

func TestNewManager_Defaults(t *testing.T) {
	m := NewManager(ManagerConfig{})
	if m == nil {
		t.Fatal("NewManager should not return nil")
	}
	if m.sessions == nil {
		t.Error("sessions map should be initialized")
	}
	if m.metrics == nil {
		t.Error("metrics should default to a fresh instance")
	}
	if m.log == nil {
		t.Error("logger should not be nil")
	}
	if m.capacity != estimate.DefaultCapacityML {
		t.Errorf("expected default capacity %v, got %v", estimate.DefaultCapacityML, m.capacity)
	}
}

func TestManager_CreateAndGet(t *testing.T) {
	cams := newStubCameras()
	cams.frame = testFrame()
	det := &stubDetector{ready: true}
	m := newTestManager(t, cams, det, &stubAssessor{})

	s, err := m.Create(context.Background(), CreateParams{})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if !strings.HasPrefix(s.ID(), "watch_") {
		t.Errorf("unexpected session id %q", s.ID())
	}
	if !strings.HasPrefix(s.IngestToken(), "feed_") {
		t.Errorf("unexpected ingest token %q", s.IngestToken())
	}

	got, ok := m.Get(s.ID())
	if !ok || got != s {
		t.Fatal("Get should return the created session")
	}
	if m.Count() != 1 {
		t.Errorf("expected count 1, got %d", m.Count())
	}

	snap := s.Snapshot()
	if snap.Facing != camera.FacingUser {
		t.Errorf("expected default facing user, got %s", snap.Facing)
	}
	if snap.Unit != estimate.UnitMilliliters {
		t.Errorf("expected default unit ml, got %s", snap.Unit)
	}
	if snap.Permission != PermissionGranted {
		t.Errorf("expected granted permission, got %s", snap.Permission)
	}
	if !snap.DetectorReady {
		t.Error("detector should be reported ready")
	}
}

func TestManager_CreateAcquireErrorPropagates(t *testing.T) {
	cams := newStubCameras()
	cams.acquireErr = shared.ErrStreamBusy
	det := &stubDetector{ready: true}
	m := newTestManager(t, cams, det, &stubAssessor{})

	_, err := m.Create(context.Background(), CreateParams{})
	if !errors.Is(err, shared.ErrStreamBusy) {
		t.Fatalf("expected ErrStreamBusy, got %v", err)
	}
	if m.Count() != 0 {
		t.Errorf("failed create must not register a session, got %d", m.Count())
	}
}

func TestManager_RemoveClosesSession(t *testing.T) {
	cams := newStubCameras()
	det := &stubDetector{ready: true}
	m := newTestManager(t, cams, det, &stubAssessor{})

	s, err := m.Create(context.Background(), CreateParams{})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	if err := m.Remove(s.ID()); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}
	if _, ok := m.Get(s.ID()); ok {
		t.Error("removed session should not be found")
	}
	if m.Count() != 0 {
		t.Errorf("expected count 0, got %d", m.Count())
	}
	if cams.openCount() != 0 {
		t.Error("removed session must release its camera")
	}

	if err := m.Remove(s.ID()); !errors.Is(err, shared.ErrNotFound) {
		t.Errorf("expected ErrNotFound for double remove, got %v", err)
	}
}

func TestManager_ListSortedByCreation(t *testing.T) {
	cams := newStubCameras()
	det := &stubDetector{ready: true}
	m := newTestManager(t, cams, det, &stubAssessor{})

	var ids []string
	for i := 0; i < 3; i++ {
		s, err := m.Create(context.Background(), CreateParams{})
		if err != nil {
			t.Fatalf("Create failed: %v", err)
		}
		ids = append(ids, s.ID())
		time.Sleep(2 * time.Millisecond)
	}

	snaps := m.List()
	if len(snaps) != 3 {
		t.Fatalf("expected 3 sessions, got %d", len(snaps))
	}
	for i, snap := range snaps {
		if snap.SessionID != ids[i] {
			t.Errorf("position %d: expected %s, got %s", i, ids[i], snap.SessionID)
		}
	}
}

func TestManager_Authorize(t *testing.T) {
	cams := newStubCameras()
	det := &stubDetector{ready: true}
	m := newTestManager(t, cams, det, &stubAssessor{})

	s, err := m.Create(context.Background(), CreateParams{})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	if err := m.Authorize(s.ID(), s.IngestToken()); err != nil {
		t.Errorf("valid token rejected: %v", err)
	}
	if err := m.Authorize(s.ID(), "feed_wrong"); !errors.Is(err, shared.ErrInvalidToken) {
		t.Errorf("expected ErrInvalidToken, got %v", err)
	}
	if err := m.Authorize("watch_missing", s.IngestToken()); !errors.Is(err, shared.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestManager_CloseClosesAllSessions(t *testing.T) {
	cams := newStubCameras()
	det := &stubDetector{ready: true}
	m := newTestManager(t, cams, det, &stubAssessor{})

	a, err := m.Create(context.Background(), CreateParams{})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	b, err := m.Create(context.Background(), CreateParams{})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	if err := m.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if m.Count() != 0 {
		t.Errorf("expected count 0 after close, got %d", m.Count())
	}
	if cams.openCount() != 0 {
		t.Error("all cameras must be released on manager close")
	}
	for _, s := range []*Session{a, b} {
		if err := s.SetSimulatedLevel(10); !errors.Is(err, shared.ErrNotFound) {
			t.Errorf("session %s should be closed, got %v", s.ID(), err)
		}
	}

	if err := m.Close(); err != nil {
		t.Errorf("second Close should not error: %v", err)
	}
}
