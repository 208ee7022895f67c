package readings

import (
	"time"

	"github.com/glassgauge/gauge-backend/internal/shared"
)

// Reading is one captured measurement. Sessions are ephemeral; readings are
// the only state that survives a restart.
type Reading struct {
	ID        string `gorm:"primaryKey" json:"id"`
	SessionID string `gorm:"not null;index" json:"session_id"`

	Level        float64 `gorm:"not null" json:"level"`
	VolumeML     float64 `gorm:"not null" json:"volume_ml"`
	Unit         string  `gorm:"not null" json:"unit"`
	DisplayValue float64 `gorm:"not null" json:"display_value"`
	Source       string  `gorm:"not null" json:"source"`

	Labels              shared.StringSlice `gorm:"type:json" json:"labels,omitempty"`
	ConfidenceScore     *float64           `json:"confidence_score,omitempty"`
	ConfidenceReasoning string             `json:"confidence_reasoning,omitempty"`

	CreatedAt time.Time `gorm:"index" json:"created_at"`
}
