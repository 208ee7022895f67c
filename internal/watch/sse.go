package watch

import (
	"context"
	"encoding/json"
	"net/http"
	"time"
)

const sseKeepAliveInterval = 30 * time.Second

// streamConn writes session snapshots to one SSE client.
type streamConn struct {
	writer  http.ResponseWriter
	flusher http.Flusher
}

func newStreamConn(w http.ResponseWriter) (*streamConn, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, http.ErrNotSupported
	}
	return &streamConn{writer: w, flusher: flusher}, nil
}

func (c *streamConn) writeHeader() {
	h := c.writer.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	c.writer.WriteHeader(http.StatusOK)
	c.flusher.Flush()
}

func (c *streamConn) writeEvent(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}

	if _, err := c.writer.Write([]byte("data: ")); err != nil {
		return err
	}
	if _, err := c.writer.Write(data); err != nil {
		return err
	}
	if _, err := c.writer.Write([]byte("\n\n")); err != nil {
		return err
	}

	c.flusher.Flush()
	return nil
}

func (c *streamConn) writeKeepAlive() error {
	if _, err := c.writer.Write([]byte(":keepalive\n\n")); err != nil {
		return err
	}
	c.flusher.Flush()
	return nil
}

// run forwards snapshots until the client disconnects or the channel
// closes (session closed).
func (c *streamConn) run(ctx context.Context, snapshots <-chan Snapshot) error {
	ticker := time.NewTicker(sseKeepAliveInterval)
	defer ticker.Stop()

	for {
		select {
		case snap, ok := <-snapshots:
			if !ok {
				return nil
			}
			if err := c.writeEvent(watchToResponse(snap)); err != nil {
				return nil
			}
		case <-ticker.C:
			if err := c.writeKeepAlive(); err != nil {
				return nil
			}
		case <-ctx.Done():
			return nil
		}
	}
}
