package watch

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/glassgauge/gauge-backend/internal/camera"
	"github.com/glassgauge/gauge-backend/internal/dto"
	"github.com/glassgauge/gauge-backend/internal/estimate"
	"github.com/glassgauge/gauge-backend/internal/shared"
	"github.com/labstack/echo/v4"
)

// DefaultSimulatedLevel is the slider position a fresh session starts at.
const DefaultSimulatedLevel = 50.0

type Handler struct {
	manager *Manager
	logger  *slog.Logger
}

func NewHandler(manager *Manager, logger *slog.Logger) *Handler {
	return &Handler{
		manager: manager,
		logger:  logger,
	}
}

func (h *Handler) RegisterRoutes(g *echo.Group) {
	g.POST("", h.Create)
	g.GET("", h.List)
	g.GET("/:id", h.Get)
	g.DELETE("/:id", h.Delete)
	g.PUT("/:id/detection", h.UpdateDetection)
	g.PUT("/:id/facing", h.UpdateFacing)
	g.PUT("/:id/unit", h.UpdateUnit)
	g.PUT("/:id/level", h.UpdateLevel)
	g.GET("/:id/stream", h.Stream)
	g.GET("/:id/preview", h.Preview)
}

func watchToResponse(snap Snapshot) dto.WatchResponse {
	detections := make([]dto.DetectionResponse, len(snap.Detections))
	for i, d := range snap.Detections {
		detections[i] = dto.DetectionResponse{
			Label: d.Label,
			Box: dto.BoxResponse{
				XMin: d.Box.XMin,
				YMin: d.Box.YMin,
				XMax: d.Box.XMax,
				YMax: d.Box.YMax,
			},
		}
	}

	var conf *dto.ConfidenceResponse
	if snap.Confidence != nil {
		conf = &dto.ConfidenceResponse{
			Score:     snap.Confidence.Score,
			Reasoning: snap.Confidence.Reasoning,
		}
	}

	return dto.WatchResponse{
		SessionID:        snap.SessionID,
		Permission:       string(snap.Permission),
		DetectionEnabled: snap.DetectionEnabled,
		DetectorReady:    snap.DetectorReady,
		FacingMode:       string(snap.Facing),
		Unit:             string(snap.Unit),
		SimulatedLevel:   snap.SimulatedLevel,
		Level:            snap.Level,
		VolumeML:         snap.VolumeML,
		DisplayValue:     snap.DisplayValue,
		Source:           string(snap.Source),
		Detections:       detections,
		Confidence:       conf,
		Notice:           snap.Notice,
		LastError:        snap.LastError,
		CreatedAt:        snap.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
		UpdatedAt:        snap.UpdatedAt.Format("2006-01-02T15:04:05Z07:00"),
	}
}

// Create godoc
// @Summary      Create a watch session
// @Description  Opens a camera stream for the requested facing mode and starts estimating. The ingest token is only returned here.
// @Tags         watch
// @Accept       json
// @Produce      json
// @Param        request  body      dto.CreateWatchRequest  false  "Session options"
// @Success      201      {object}  dto.WatchResponse
// @Failure      400      {object}  shared.APIError
// @Failure      500      {object}  shared.APIError
// @Router       /watch [post]
func (h *Handler) Create(c echo.Context) error {
	var req dto.CreateWatchRequest
	if err := c.Bind(&req); err != nil {
		return shared.BadRequest("invalid_request", "invalid request body")
	}

	params := CreateParams{
		DetectionEnabled: req.DetectionEnabled,
		SimulatedLevel:   DefaultSimulatedLevel,
	}

	if req.FacingMode != "" {
		facing, err := camera.ParseFacingMode(req.FacingMode)
		if err != nil {
			return shared.BadRequest("invalid_facing_mode", "facing_mode must be user or environment")
		}
		params.Facing = facing
	}
	if req.Unit != "" {
		unit, err := estimate.ParseUnit(req.Unit)
		if err != nil {
			return shared.BadRequest("invalid_unit", "unit must be ml or oz")
		}
		params.Unit = unit
	}
	if req.SimulatedLevel != nil {
		if *req.SimulatedLevel < 0 || *req.SimulatedLevel > 100 {
			return shared.BadRequest("invalid_level", "simulated_level must be between 0 and 100")
		}
		params.SimulatedLevel = *req.SimulatedLevel
	}

	s, err := h.manager.Create(c.Request().Context(), params)
	if err != nil {
		h.logger.Error("failed to create watch session", "error", err)
		return shared.InternalError("create_failed", "failed to create watch session")
	}

	resp := watchToResponse(s.Snapshot())
	resp.IngestToken = s.IngestToken()
	return c.JSON(http.StatusCreated, resp)
}

// List godoc
// @Summary      List watch sessions
// @Tags         watch
// @Produce      json
// @Success      200  {object}  dto.WatchListResponse
// @Router       /watch [get]
func (h *Handler) List(c echo.Context) error {
	snaps := h.manager.List()
	sessions := make([]dto.WatchResponse, len(snaps))
	for i, snap := range snaps {
		sessions[i] = watchToResponse(snap)
	}
	return c.JSON(http.StatusOK, dto.WatchListResponse{
		Sessions: sessions,
		Count:    len(sessions),
	})
}

// Get godoc
// @Summary      Get a watch session
// @Tags         watch
// @Produce      json
// @Param        id   path      string  true  "Session ID"
// @Success      200  {object}  dto.WatchResponse
// @Failure      404  {object}  shared.APIError
// @Router       /watch/{id} [get]
func (h *Handler) Get(c echo.Context) error {
	s, ok := h.manager.Get(c.Param("id"))
	if !ok {
		return shared.NotFound("session_not_found", "watch session not found")
	}
	return c.JSON(http.StatusOK, watchToResponse(s.Snapshot()))
}

// Delete godoc
// @Summary      Close a watch session
// @Description  Stops polling, releases the camera stream and discards buffered frames. Stored readings are kept.
// @Tags         watch
// @Param        id   path  string  true  "Session ID"
// @Success      204  "No Content"
// @Failure      404  {object}  shared.APIError
// @Failure      500  {object}  shared.APIError
// @Router       /watch/{id} [delete]
func (h *Handler) Delete(c echo.Context) error {
	if err := h.manager.Remove(c.Param("id")); err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return shared.NotFound("session_not_found", "watch session not found")
		}
		return shared.InternalError("delete_failed", "failed to close watch session")
	}
	return c.NoContent(http.StatusNoContent)
}

// UpdateDetection godoc
// @Summary      Enable or disable object detection
// @Tags         watch
// @Accept       json
// @Produce      json
// @Param        id       path      string                      true  "Session ID"
// @Param        request  body      dto.UpdateDetectionRequest  true  "Detection toggle"
// @Success      200      {object}  dto.WatchResponse
// @Failure      400      {object}  shared.APIError
// @Failure      404      {object}  shared.APIError
// @Router       /watch/{id}/detection [put]
func (h *Handler) UpdateDetection(c echo.Context) error {
	s, ok := h.manager.Get(c.Param("id"))
	if !ok {
		return shared.NotFound("session_not_found", "watch session not found")
	}

	var req dto.UpdateDetectionRequest
	if err := c.Bind(&req); err != nil {
		return shared.BadRequest("invalid_request", "invalid request body")
	}

	if err := s.SetDetectionEnabled(c.Request().Context(), req.Enabled); err != nil {
		return shared.NotFound("session_not_found", "watch session not found")
	}
	return c.JSON(http.StatusOK, watchToResponse(s.Snapshot()))
}

// UpdateFacing godoc
// @Summary      Switch the camera facing mode
// @Description  Closes the current stream before acquiring the new one. A denied facing leaves the session on simulated input.
// @Tags         watch
// @Accept       json
// @Produce      json
// @Param        id       path      string                   true  "Session ID"
// @Param        request  body      dto.UpdateFacingRequest  true  "Target facing mode"
// @Success      200      {object}  dto.WatchResponse
// @Failure      400      {object}  shared.APIError
// @Failure      404      {object}  shared.APIError
// @Router       /watch/{id}/facing [put]
func (h *Handler) UpdateFacing(c echo.Context) error {
	s, ok := h.manager.Get(c.Param("id"))
	if !ok {
		return shared.NotFound("session_not_found", "watch session not found")
	}

	var req dto.UpdateFacingRequest
	if err := c.Bind(&req); err != nil {
		return shared.BadRequest("invalid_request", "invalid request body")
	}
	facing, err := camera.ParseFacingMode(req.FacingMode)
	if err != nil {
		return shared.BadRequest("invalid_facing_mode", "facing_mode must be user or environment")
	}

	if err := s.SetFacingMode(c.Request().Context(), facing); err != nil {
		return shared.NotFound("session_not_found", "watch session not found")
	}
	return c.JSON(http.StatusOK, watchToResponse(s.Snapshot()))
}

// UpdateUnit godoc
// @Summary      Change the display unit
// @Tags         watch
// @Accept       json
// @Produce      json
// @Param        id       path      string                 true  "Session ID"
// @Param        request  body      dto.UpdateUnitRequest  true  "Display unit, ml or oz"
// @Success      200      {object}  dto.WatchResponse
// @Failure      400      {object}  shared.APIError
// @Failure      404      {object}  shared.APIError
// @Router       /watch/{id}/unit [put]
func (h *Handler) UpdateUnit(c echo.Context) error {
	s, ok := h.manager.Get(c.Param("id"))
	if !ok {
		return shared.NotFound("session_not_found", "watch session not found")
	}

	var req dto.UpdateUnitRequest
	if err := c.Bind(&req); err != nil {
		return shared.BadRequest("invalid_request", "invalid request body")
	}
	unit, err := estimate.ParseUnit(req.Unit)
	if err != nil {
		return shared.BadRequest("invalid_unit", "unit must be ml or oz")
	}

	if err := s.SetUnit(unit); err != nil {
		return shared.NotFound("session_not_found", "watch session not found")
	}
	return c.JSON(http.StatusOK, watchToResponse(s.Snapshot()))
}

// UpdateLevel godoc
// @Summary      Set the simulated fill level
// @Description  Drives the estimate whenever no object is detected.
// @Tags         watch
// @Accept       json
// @Produce      json
// @Param        id       path      string                  true  "Session ID"
// @Param        request  body      dto.UpdateLevelRequest  true  "Fill level percentage, 0 to 100"
// @Success      200      {object}  dto.WatchResponse
// @Failure      400      {object}  shared.APIError
// @Failure      404      {object}  shared.APIError
// @Router       /watch/{id}/level [put]
func (h *Handler) UpdateLevel(c echo.Context) error {
	s, ok := h.manager.Get(c.Param("id"))
	if !ok {
		return shared.NotFound("session_not_found", "watch session not found")
	}

	var req dto.UpdateLevelRequest
	if err := c.Bind(&req); err != nil {
		return shared.BadRequest("invalid_request", "invalid request body")
	}
	if req.Level < 0 || req.Level > 100 {
		return shared.BadRequest("invalid_level", "level must be between 0 and 100")
	}

	if err := s.SetSimulatedLevel(req.Level); err != nil {
		return shared.NotFound("session_not_found", "watch session not found")
	}
	return c.JSON(http.StatusOK, watchToResponse(s.Snapshot()))
}

// Stream godoc
// @Summary      Stream session snapshots
// @Description  Server-sent events. Every state change publishes a full snapshot; idle periods carry keepalive comments.
// @Tags         watch
// @Produce      text/event-stream
// @Param        id   path  string  true  "Session ID"
// @Success      200  "snapshot events"
// @Failure      404  {object}  shared.APIError
// @Router       /watch/{id}/stream [get]
func (h *Handler) Stream(c echo.Context) error {
	s, ok := h.manager.Get(c.Param("id"))
	if !ok {
		return shared.NotFound("session_not_found", "watch session not found")
	}

	conn, err := newStreamConn(c.Response())
	if err != nil {
		return shared.InternalError("stream_unsupported", "response writer does not support streaming")
	}

	subID, snapshots := s.Subscribe()
	defer s.Unsubscribe(subID)

	conn.writeHeader()
	if err := conn.writeEvent(watchToResponse(s.Snapshot())); err != nil {
		return nil
	}

	h.logger.Debug("snapshot stream opened", "session_id", s.ID())
	return conn.run(c.Request().Context(), snapshots)
}

// Preview godoc
// @Summary      Fetch an annotated preview frame
// @Description  Returns the latest camera frame. When an object is detected, the bounding box and water line are drawn on it.
// @Tags         watch
// @Produce      image/jpeg
// @Param        id   path  string  true  "Session ID"
// @Success      200  {file}    binary  "JPEG frame"
// @Failure      403  {object}  shared.APIError
// @Failure      404  {object}  shared.APIError
// @Failure      500  {object}  shared.APIError
// @Router       /watch/{id}/preview [get]
func (h *Handler) Preview(c echo.Context) error {
	s, ok := h.manager.Get(c.Param("id"))
	if !ok {
		return shared.NotFound("session_not_found", "watch session not found")
	}

	data, err := s.Preview(c.Request().Context())
	if err != nil {
		switch {
		case errors.Is(err, shared.ErrCameraDenied):
			return shared.Forbidden("camera_denied", "camera access is denied for this session")
		case errors.Is(err, shared.ErrNoFrame):
			return shared.NotFound("no_frame", "no camera frame available yet")
		}
		h.logger.Error("preview failed", "error", err, "session_id", s.ID())
		return shared.InternalError("preview_failed", "failed to render preview")
	}
	return c.Blob(http.StatusOK, "image/jpeg", data)
}
