package ingest

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/glassgauge/gauge-backend/internal/camera"
	"github.com/glassgauge/gauge-backend/internal/shared"
	"github.com/glassgauge/gauge-backend/internal/telemetry"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"golang.org/x/time/rate"
)

var feedUpgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Config bounds what a single feed may push. A zero MaxFrameRate accepts
// frames as fast as the device sends them.
type Config struct {
	MaxFrameRate float64
	Burst        int
}

// TokenAuthorizer checks a feed token against the session it claims.
type TokenAuthorizer interface {
	Authorize(sessionID, token string) error
}

type Handler struct {
	cfg     Config
	auth    TokenAuthorizer
	store   *camera.Store
	metrics *telemetry.Metrics
	logger  *slog.Logger
}

func NewHandler(cfg Config, auth TokenAuthorizer, store *camera.Store, metrics *telemetry.Metrics, logger *slog.Logger) *Handler {
	if metrics == nil {
		metrics = telemetry.New()
	}
	return &Handler{
		cfg:     cfg,
		auth:    auth,
		store:   store,
		metrics: metrics,
		logger:  logger.With("component", "ingest"),
	}
}

func (h *Handler) frameLimiter() *rate.Limiter {
	if h.cfg.MaxFrameRate <= 0 {
		return nil
	}
	burst := h.cfg.Burst
	if burst < 1 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(h.cfg.MaxFrameRate), burst)
}

func (h *Handler) RegisterRoutes(g *echo.Group) {
	g.GET("/:id/feed", h.Feed)
}

// Feed godoc
// @Summary      Push camera frames over websocket
// @Description  Upgrades to a websocket after validating the session's ingest token. Binary messages are JPEG frames, text messages are JSON control envelopes.
// @Tags         cameras
// @Param        id     path   string  true  "Session ID"
// @Param        token  query  string  true  "Ingest token"
// @Success      101    "Switching Protocols"
// @Failure      401    {object}  shared.APIError
// @Failure      404    {object}  shared.APIError
// @Router       /cameras/{id}/feed [get]
func (h *Handler) Feed(c echo.Context) error {
	sessionID := c.Param("id")
	token := c.QueryParam("token")
	if token == "" {
		return shared.Unauthorized("missing_token", "feed token is required")
	}

	if err := h.auth.Authorize(sessionID, token); err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return shared.NotFound("session_not_found", "watch session not found")
		}
		return shared.Unauthorized("invalid_token", "feed token does not match this session")
	}

	ws, err := feedUpgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		h.logger.Error("websocket upgrade failed", "error", err, "session_id", sessionID)
		return err
	}

	conn := newFeedConn(ws, sessionID, h.store, h.frameLimiter(), h.metrics, h.logger)
	h.logger.Info("camera feed connected", "session_id", sessionID)

	ctx := c.Request().Context()
	go conn.writePump(ctx)
	conn.readPump(ctx)

	h.logger.Info("camera feed disconnected", "session_id", sessionID)
	return nil
}
