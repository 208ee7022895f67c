package ingest

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/color"
	"image/jpeg"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/glassgauge/gauge-backend/internal/camera"
	"github.com/glassgauge/gauge-backend/internal/shared"
	"github.com/glassgauge/gauge-backend/internal/telemetry"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
)

type stubAuthorizer struct {
	tokens map[string]string
}

func (a *stubAuthorizer) Authorize(sessionID, token string) error {
	want, ok := a.tokens[sessionID]
	if !ok {
		return shared.ErrNotFound
	}
	if want != token {
		return shared.ErrInvalidToken
	}
	return nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testJPEG(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 32, 24))
	for y := 0; y < 24; y++ {
		for x := 0; x < 32; x++ {
			img.SetRGBA(x, y, color.RGBA{R: 120, G: 120, B: 120, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, nil); err != nil {
		t.Fatalf("failed to encode test image: %v", err)
	}
	return buf.Bytes()
}

func newTestFeedServer(t *testing.T, cfg Config) (*httptest.Server, *camera.Store, *telemetry.Metrics) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	redisClient := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { redisClient.Close() })

	store := camera.NewStore(redisClient, 0)
	metrics := telemetry.New()
	auth := &stubAuthorizer{tokens: map[string]string{"watch_1": "feed_ok"}}

	e := echo.New()
	h := NewHandler(cfg, auth, store, metrics, discardLogger())
	h.RegisterRoutes(e.Group("/v1/cameras"))

	srv := httptest.NewServer(e)
	t.Cleanup(srv.Close)
	return srv, store, metrics
}

func dialFeed(t *testing.T, srv *httptest.Server, path string) *websocket.Conn {
	t.Helper()
	wsURL := "ws" + srv.URL[4:] + path
	ws, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial error: %v", err)
	}
	t.Cleanup(func() { ws.Close() })
	return ws
}

func TestFeed_AuthRejections(t *testing.T) {
	srv, _, _ := newTestFeedServer(t, Config{})

	tests := []struct {
		name   string
		path   string
		status int
	}{
		{"missing token", "/v1/cameras/watch_1/feed", http.StatusUnauthorized},
		{"wrong token", "/v1/cameras/watch_1/feed?token=feed_bad", http.StatusUnauthorized},
		{"unknown session", "/v1/cameras/watch_2/feed?token=feed_ok", http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wsURL := "ws" + srv.URL[4:] + tt.path
			ws, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
			if err == nil {
				ws.Close()
				t.Fatal("expected handshake to fail")
			}
			if resp == nil {
				t.Fatal("expected HTTP response on failed handshake")
			}
			if resp.StatusCode != tt.status {
				t.Errorf("expected status %d, got %d", tt.status, resp.StatusCode)
			}
		})
	}
}

func TestFeed_StoresValidFrames(t *testing.T) {
	srv, store, metrics := newTestFeedServer(t, Config{})
	ws := dialFeed(t, srv, "/v1/cameras/watch_1/feed?token=feed_ok")

	frame := testJPEG(t)
	if err := ws.WriteMessage(websocket.BinaryMessage, frame); err != nil {
		t.Fatalf("write error: %v", err)
	}

	var got *camera.Frame
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		var err error
		got, err = store.GetLatestFrame(context.Background(), "watch_1")
		if err != nil {
			t.Fatalf("GetLatestFrame failed: %v", err)
		}
		if got != nil {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	if got == nil {
		t.Fatal("frame was not stored")
	}
	if !bytes.Equal(got.Data, frame) {
		t.Error("stored frame differs from the pushed frame")
	}
	if got.Timestamp == 0 {
		t.Error("stored frame should carry a timestamp")
	}
	if n := metrics.FramesIngested.Load(); n != 1 {
		t.Errorf("expected 1 ingested frame, got %d", n)
	}
}

func TestFeed_DropsUndecodableFrames(t *testing.T) {
	srv, store, metrics := newTestFeedServer(t, Config{})
	ws := dialFeed(t, srv, "/v1/cameras/watch_1/feed?token=feed_ok")

	if err := ws.WriteMessage(websocket.BinaryMessage, []byte("not a jpeg")); err != nil {
		t.Fatalf("write error: %v", err)
	}
	valid := testJPEG(t)
	if err := ws.WriteMessage(websocket.BinaryMessage, valid); err != nil {
		t.Fatalf("write error: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if metrics.FramesIngested.Load() == 1 {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	if n := metrics.FramesIngested.Load(); n != 1 {
		t.Fatalf("expected the valid frame to be ingested, got %d", n)
	}
	if n := metrics.FramesDropped.Load(); n != 1 {
		t.Errorf("expected 1 dropped frame, got %d", n)
	}

	got, err := store.GetLatestFrame(context.Background(), "watch_1")
	if err != nil {
		t.Fatalf("GetLatestFrame failed: %v", err)
	}
	if got == nil || !bytes.Equal(got.Data, valid) {
		t.Error("only the valid frame should be stored")
	}
}

func TestFeed_PingControlAnswersPong(t *testing.T) {
	srv, _, _ := newTestFeedServer(t, Config{})
	ws := dialFeed(t, srv, "/v1/cameras/watch_1/feed?token=feed_ok")

	if err := ws.WriteMessage(websocket.TextMessage, []byte(`{"type":"ping"}`)); err != nil {
		t.Fatalf("write error: %v", err)
	}

	_ = ws.SetReadDeadline(time.Now().Add(2 * time.Second))
	msgType, message, err := ws.ReadMessage()
	if err != nil {
		t.Fatalf("read error: %v", err)
	}
	if msgType != websocket.TextMessage {
		t.Fatalf("expected text message, got %d", msgType)
	}
	var msg controlMessage
	if err := json.Unmarshal(message, &msg); err != nil {
		t.Fatalf("failed to parse control reply: %v", err)
	}
	if msg.Type != "pong" {
		t.Errorf("expected pong, got %q", msg.Type)
	}
}

func TestFeed_ClientDisconnectEndsHandler(t *testing.T) {
	srv, _, metrics := newTestFeedServer(t, Config{})
	ws := dialFeed(t, srv, "/v1/cameras/watch_1/feed?token=feed_ok")

	frame := testJPEG(t)
	if err := ws.WriteMessage(websocket.BinaryMessage, frame); err != nil {
		t.Fatalf("write error: %v", err)
	}
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if metrics.FramesIngested.Load() == 1 {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}

	if err := ws.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")); err != nil {
		t.Fatalf("close error: %v", err)
	}
	ws.Close()

	// The server side must notice the close; a second dial for the same
	// session succeeds, proving the old handler exited cleanly.
	time.Sleep(50 * time.Millisecond)
	ws2 := dialFeed(t, srv, "/v1/cameras/watch_1/feed?token=feed_ok")
	if err := ws2.WriteMessage(websocket.BinaryMessage, frame); err != nil {
		t.Fatalf("write on second connection failed: %v", err)
	}
}

func TestFeed_RateLimitDropsExcessFrames(t *testing.T) {
	srv, _, metrics := newTestFeedServer(t, Config{MaxFrameRate: 1, Burst: 1})
	ws := dialFeed(t, srv, "/v1/cameras/watch_1/feed?token=feed_ok")

	frame := testJPEG(t)
	for i := 0; i < 3; i++ {
		if err := ws.WriteMessage(websocket.BinaryMessage, frame); err != nil {
			t.Fatalf("write error: %v", err)
		}
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if metrics.FramesDropped.Load() == 2 {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	if n := metrics.FramesIngested.Load(); n != 1 {
		t.Errorf("expected 1 ingested frame, got %d", n)
	}
	if n := metrics.FramesDropped.Load(); n != 2 {
		t.Errorf("expected 2 dropped frames, got %d", n)
	}
}
