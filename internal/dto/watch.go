package dto

type CreateWatchRequest struct {
	FacingMode       string   `json:"facing_mode,omitempty" example:"user"`
	Unit             string   `json:"unit,omitempty" example:"ml"`
	DetectionEnabled bool     `json:"detection_enabled,omitempty" example:"true"`
	SimulatedLevel   *float64 `json:"simulated_level,omitempty" example:"50"`
}

type BoxResponse struct {
	XMin float64 `json:"x_min" example:"0.25"`
	YMin float64 `json:"y_min" example:"0.1"`
	XMax float64 `json:"x_max" example:"0.75"`
	YMax float64 `json:"y_max" example:"0.9"`
}

type DetectionResponse struct {
	Label string      `json:"label" example:"cup"`
	Box   BoxResponse `json:"box"`
}

type ConfidenceResponse struct {
	Score     float64 `json:"score" example:"0.82"`
	Reasoning string  `json:"reasoning" example:"Water line sits evenly across the glass."`
}

type WatchResponse struct {
	SessionID        string              `json:"session_id" example:"watch_a1b2c3d4"`
	Permission       string              `json:"permission" example:"granted"`
	DetectionEnabled bool                `json:"detection_enabled" example:"true"`
	DetectorReady    bool                `json:"detector_ready" example:"true"`
	FacingMode       string              `json:"facing_mode" example:"user"`
	Unit             string              `json:"unit" example:"ml"`
	SimulatedLevel   float64             `json:"simulated_level" example:"50"`
	Level            float64             `json:"level" example:"50"`
	VolumeML         float64             `json:"volume_ml" example:"175"`
	DisplayValue     float64             `json:"display_value" example:"175"`
	Source           string              `json:"source" example:"detected"`
	Detections       []DetectionResponse `json:"detections"`
	Confidence       *ConfidenceResponse `json:"confidence,omitempty"`
	Notice           string              `json:"notice,omitempty"`
	LastError        string              `json:"last_error,omitempty"`
	// IngestToken is only returned on create; it authorizes the camera feed.
	IngestToken string `json:"ingest_token,omitempty" example:"feed_e5f6a7b8"`
	CreatedAt   string `json:"created_at" example:"2024-01-15T14:30:00Z"`
	UpdatedAt   string `json:"updated_at" example:"2024-01-15T14:30:05Z"`
}

type WatchListResponse struct {
	Sessions []WatchResponse `json:"sessions"`
	Count    int             `json:"count" example:"1"`
}

type UpdateDetectionRequest struct {
	Enabled bool `json:"enabled" example:"true"`
}

type UpdateFacingRequest struct {
	FacingMode string `json:"facing_mode" example:"environment"`
}

type UpdateUnitRequest struct {
	Unit string `json:"unit" example:"oz"`
}

type UpdateLevelRequest struct {
	Level float64 `json:"level" example:"75"`
}
