package ingest

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	_ "image/jpeg"
	"log/slog"
	"sync"
	"time"

	"github.com/glassgauge/gauge-backend/internal/camera"
	"github.com/glassgauge/gauge-backend/internal/telemetry"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"
)

const (
	writeWait     = 10 * time.Second
	pongWait      = 60 * time.Second
	pingPeriod    = (pongWait * 9) / 10
	maxFrameBytes = 4 << 20

	// Read limit sits above the frame cap so oversized frames surface as
	// dropped frames instead of killing the connection.
	readLimit = maxFrameBytes + 64*1024
)

type controlMessage struct {
	Type string `json:"type"`
}

// feedConn is one push camera connected over websocket. Binary messages are
// JPEG frames, text messages are JSON control envelopes.
type feedConn struct {
	ws        *websocket.Conn
	sessionID string
	store     *camera.Store
	limiter   *rate.Limiter
	metrics   *telemetry.Metrics
	logger    *slog.Logger

	send chan controlMessage
	done chan struct{}

	mu     sync.Mutex
	closed bool
}

func newFeedConn(ws *websocket.Conn, sessionID string, store *camera.Store, limiter *rate.Limiter, metrics *telemetry.Metrics, logger *slog.Logger) *feedConn {
	return &feedConn{
		ws:        ws,
		sessionID: sessionID,
		store:     store,
		limiter:   limiter,
		metrics:   metrics,
		logger:    logger.With("session_id", sessionID),
		send:      make(chan controlMessage, 16),
		done:      make(chan struct{}),
	}
}

func (c *feedConn) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	close(c.done)
	c.mu.Unlock()

	return c.ws.Close()
}

func (c *feedConn) readPump(ctx context.Context) {
	defer c.Close()

	c.ws.SetReadLimit(readLimit)
	_ = c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		_ = c.ws.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		select {
		case <-ctx.Done():
			return
		case <-c.done:
			return
		default:
		}

		msgType, message, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Error("feed read error", "error", err)
			}
			return
		}

		switch msgType {
		case websocket.BinaryMessage:
			c.storeFrame(ctx, message)
		case websocket.TextMessage:
			c.handleControl(message)
		}
	}
}

func (c *feedConn) storeFrame(ctx context.Context, data []byte) {
	if c.limiter != nil && !c.limiter.Allow() {
		c.metrics.FramesDropped.Add(1)
		c.logger.Debug("dropping frame over rate limit")
		return
	}

	if len(data) > maxFrameBytes {
		c.metrics.FramesDropped.Add(1)
		c.logger.Warn("dropping oversized frame", "bytes", len(data))
		return
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		c.metrics.FramesDropped.Add(1)
		c.logger.Warn("dropping undecodable frame", "error", err)
		return
	}

	frame := &camera.Frame{
		SessionID: c.sessionID,
		Timestamp: time.Now().UnixMilli(),
		Data:      data,
		Width:     cfg.Width,
		Height:    cfg.Height,
	}
	if err := c.store.StoreFrame(ctx, frame); err != nil {
		c.metrics.FramesDropped.Add(1)
		c.logger.Error("failed to store frame", "error", err)
		return
	}
	c.metrics.FramesIngested.Add(1)
}

func (c *feedConn) handleControl(message []byte) {
	var msg controlMessage
	if err := json.Unmarshal(message, &msg); err != nil {
		c.logger.Warn("invalid control message", "error", err)
		return
	}

	if msg.Type == "ping" {
		select {
		case c.send <- controlMessage{Type: "pong"}:
		default:
			c.logger.Warn("control buffer full, dropping pong")
		}
	}
}

func (c *feedConn) writePump(ctx context.Context) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Close()
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case <-c.done:
			return
		case msg := <-c.send:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			data, err := json.Marshal(msg)
			if err != nil {
				c.logger.Error("failed to marshal control message", "error", err)
				continue
			}
			if err := c.ws.WriteMessage(websocket.TextMessage, data); err != nil {
				c.logger.Error("feed write error", "error", err)
				return
			}
		case <-ticker.C:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
