package readings

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/glassgauge/gauge-backend/internal/dto"
	"github.com/glassgauge/gauge-backend/internal/shared"
	"github.com/glassgauge/gauge-backend/internal/telemetry"
	"github.com/glassgauge/gauge-backend/internal/watch"
	"github.com/labstack/echo/v4"
)

const maxListLimit = 500

// SnapshotSource provides the live session state a reading is captured from.
type SnapshotSource interface {
	Snapshot(id string) (watch.Snapshot, bool)
}

type Handler struct {
	store    *Store
	sessions SnapshotSource
	metrics  *telemetry.Metrics
	logger   *slog.Logger
}

func NewHandler(store *Store, sessions SnapshotSource, metrics *telemetry.Metrics, logger *slog.Logger) *Handler {
	if metrics == nil {
		metrics = telemetry.New()
	}
	return &Handler{
		store:    store,
		sessions: sessions,
		metrics:  metrics,
		logger:   logger.With("component", "readings"),
	}
}

func (h *Handler) RegisterRoutes(g *echo.Group) {
	g.POST("/:id/readings", h.Create)
	g.GET("/:id/readings", h.List)
	g.GET("/:id/readings/summary", h.Summary)
}

func readingToResponse(r *Reading) dto.ReadingResponse {
	return dto.ReadingResponse{
		ID:                  r.ID,
		SessionID:           r.SessionID,
		Level:               r.Level,
		VolumeML:            r.VolumeML,
		Unit:                r.Unit,
		DisplayValue:        r.DisplayValue,
		Source:              r.Source,
		Labels:              r.Labels,
		ConfidenceScore:     r.ConfidenceScore,
		ConfidenceReasoning: r.ConfidenceReasoning,
		CreatedAt:           r.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
	}
}

// Create godoc
// @Summary      Capture the current estimate as a reading
// @Description  Persists the session's live snapshot, including labels and confidence when present.
// @Tags         readings
// @Produce      json
// @Param        id   path      string  true  "Session ID"
// @Success      201  {object}  dto.ReadingResponse
// @Failure      404  {object}  shared.APIError
// @Failure      500  {object}  shared.APIError
// @Router       /watch/{id}/readings [post]
func (h *Handler) Create(c echo.Context) error {
	sessionID := c.Param("id")
	snap, ok := h.sessions.Snapshot(sessionID)
	if !ok {
		return shared.NotFound("session_not_found", "watch session not found")
	}

	reading := &Reading{
		SessionID:    sessionID,
		Level:        snap.Level,
		VolumeML:     snap.VolumeML,
		Unit:         string(snap.Unit),
		DisplayValue: snap.DisplayValue,
		Source:       string(snap.Source),
	}
	for _, d := range snap.Detections {
		reading.Labels = append(reading.Labels, d.Label)
	}
	if snap.Confidence != nil {
		score := snap.Confidence.Score
		reading.ConfidenceScore = &score
		reading.ConfidenceReasoning = snap.Confidence.Reasoning
	}

	if err := h.store.Create(c.Request().Context(), reading); err != nil {
		h.logger.Error("failed to store reading", "error", err, "session_id", sessionID)
		return shared.InternalError("create_failed", "failed to store reading")
	}
	h.metrics.ReadingsStored.Add(1)

	return c.JSON(http.StatusCreated, readingToResponse(reading))
}

// List godoc
// @Summary      List stored readings
// @Description  Returns a session's history, newest first. History survives session close, so there is no liveness check.
// @Tags         readings
// @Produce      json
// @Param        id     path      string  true   "Session ID"
// @Param        limit  query     int     false  "Maximum rows, up to 500"
// @Success      200    {object}  dto.ReadingListResponse
// @Failure      400    {object}  shared.APIError
// @Failure      500    {object}  shared.APIError
// @Router       /watch/{id}/readings [get]
func (h *Handler) List(c echo.Context) error {
	sessionID := c.Param("id")

	limit := defaultListLimit
	if raw := c.QueryParam("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			return shared.BadRequest("invalid_limit", "limit must be a positive integer")
		}
		if n > maxListLimit {
			n = maxListLimit
		}
		limit = n
	}

	rs, err := h.store.ListBySession(c.Request().Context(), sessionID, limit)
	if err != nil {
		h.logger.Error("failed to list readings", "error", err, "session_id", sessionID)
		return shared.InternalError("list_failed", "failed to list readings")
	}

	readings := make([]dto.ReadingResponse, len(rs))
	for i, r := range rs {
		readings[i] = readingToResponse(r)
	}
	return c.JSON(http.StatusOK, dto.ReadingListResponse{
		SessionID: sessionID,
		Readings:  readings,
		Count:     len(readings),
	})
}

// Summary godoc
// @Summary      Summarize stored readings
// @Tags         readings
// @Produce      json
// @Param        id   path      string  true  "Session ID"
// @Success      200  {object}  dto.ReadingSummaryResponse
// @Failure      500  {object}  shared.APIError
// @Router       /watch/{id}/readings/summary [get]
func (h *Handler) Summary(c echo.Context) error {
	sessionID := c.Param("id")

	summary, err := h.store.Summary(c.Request().Context(), sessionID)
	if err != nil {
		h.logger.Error("failed to summarize readings", "error", err, "session_id", sessionID)
		return shared.InternalError("summary_failed", "failed to summarize readings")
	}

	resp := dto.ReadingSummaryResponse{
		SessionID:   sessionID,
		Count:       summary.Count,
		AvgLevel:    summary.AvgLevel,
		AvgVolumeML: summary.AvgVolumeML,
		MinVolumeML: summary.MinVolumeML,
		MaxVolumeML: summary.MaxVolumeML,
	}
	if summary.Count > 0 {
		resp.FirstAt = summary.FirstAt.Format("2006-01-02T15:04:05Z07:00")
		resp.LastAt = summary.LastAt.Format("2006-01-02T15:04:05Z07:00")
	}
	return c.JSON(http.StatusOK, resp)
}
