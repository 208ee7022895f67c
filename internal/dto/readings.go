package dto

type ReadingResponse struct {
	ID                  string   `json:"id" example:"read_a1b2c3d4e5f60718"`
	SessionID           string   `json:"session_id" example:"watch_a1b2c3d4"`
	Level               float64  `json:"level" example:"50"`
	VolumeML            float64  `json:"volume_ml" example:"175"`
	Unit                string   `json:"unit" example:"ml"`
	DisplayValue        float64  `json:"display_value" example:"175"`
	Source              string   `json:"source" example:"detected"`
	Labels              []string `json:"labels,omitempty" example:"cup"`
	ConfidenceScore     *float64 `json:"confidence_score,omitempty" example:"0.82"`
	ConfidenceReasoning string   `json:"confidence_reasoning,omitempty"`
	CreatedAt           string   `json:"created_at" example:"2024-01-15T14:30:00Z"`
}

type ReadingListResponse struct {
	SessionID string            `json:"session_id" example:"watch_a1b2c3d4"`
	Readings  []ReadingResponse `json:"readings"`
	Count     int               `json:"count" example:"12"`
}

type ReadingSummaryResponse struct {
	SessionID   string  `json:"session_id" example:"watch_a1b2c3d4"`
	Count       int64   `json:"count" example:"12"`
	AvgLevel    float64 `json:"avg_level" example:"48.7"`
	AvgVolumeML float64 `json:"avg_volume_ml" example:"170.5"`
	MinVolumeML float64 `json:"min_volume_ml" example:"42"`
	MaxVolumeML float64 `json:"max_volume_ml" example:"315"`
	FirstAt     string  `json:"first_at,omitempty" example:"2024-01-15T14:30:00Z"`
	LastAt      string  `json:"last_at,omitempty" example:"2024-01-15T16:45:00Z"`
}
