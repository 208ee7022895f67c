package camera

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/jpeg"
	"io"
	"net/http"
	"sync"
	"time"
)

const maxFrameBytes = 4 << 20

// Stream is an open camera feed owned by exactly one watch session.
// Capture returns the most recent frame, or nil when the device has not
// produced one yet. Close is idempotent.
type Stream interface {
	Capture(ctx context.Context) (*Frame, error)
	Facing() FacingMode
	Close() error
}

type snapshotStream struct {
	httpClient *http.Client
	url        string
	sessionID  string
	facing     FacingMode

	mu     sync.Mutex
	closed bool
}

func newSnapshotStream(sessionID string, facing FacingMode, url string, timeout time.Duration) *snapshotStream {
	if timeout == 0 {
		timeout = 5 * time.Second
	}
	return &snapshotStream{
		httpClient: &http.Client{Timeout: timeout},
		url:        url,
		sessionID:  sessionID,
		facing:     facing,
	}
}

func (s *snapshotStream) Capture(ctx context.Context) (*Frame, error) {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return nil, fmt.Errorf("stream closed")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return nil, fmt.Errorf("create snapshot request: %w", err)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("snapshot request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("snapshot source returned status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxFrameBytes))
	if err != nil {
		return nil, fmt.Errorf("read snapshot body: %w", err)
	}

	width, height, err := decodeDims(data)
	if err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}

	return &Frame{
		SessionID: s.sessionID,
		Timestamp: time.Now().UnixMilli(),
		Data:      data,
		Width:     width,
		Height:    height,
	}, nil
}

func (s *snapshotStream) Facing() FacingMode {
	return s.facing
}

func (s *snapshotStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// pushStream reads frames the ingest endpoint stored for this session.
type pushStream struct {
	store     *Store
	sessionID string
	facing    FacingMode
	maxAge    time.Duration

	mu     sync.Mutex
	closed bool
}

func newPushStream(store *Store, sessionID string, facing FacingMode, maxAge time.Duration) *pushStream {
	if maxAge == 0 {
		maxAge = 10 * time.Second
	}
	return &pushStream{
		store:     store,
		sessionID: sessionID,
		facing:    facing,
		maxAge:    maxAge,
	}
}

func (s *pushStream) Capture(ctx context.Context) (*Frame, error) {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return nil, fmt.Errorf("stream closed")
	}

	frame, err := s.store.GetLatestFrame(ctx, s.sessionID)
	if err != nil {
		return nil, fmt.Errorf("latest frame: %w", err)
	}
	if frame == nil {
		return nil, nil
	}
	if age := time.Now().UnixMilli() - frame.Timestamp; age > s.maxAge.Milliseconds() {
		return nil, nil
	}

	if frame.Width == 0 || frame.Height == 0 {
		width, height, err := decodeDims(frame.Data)
		if err != nil {
			return nil, nil
		}
		frame.Width = width
		frame.Height = height
	}

	return frame, nil
}

func (s *pushStream) Facing() FacingMode {
	return s.facing
}

func (s *pushStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func decodeDims(data []byte) (int, int, error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return 0, 0, err
	}
	return cfg.Width, cfg.Height, nil
}
