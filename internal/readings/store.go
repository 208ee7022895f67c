package readings

import (
	"context"
	"time"

	"github.com/glassgauge/gauge-backend/internal/shared"
	"gorm.io/gorm"
)

const defaultListLimit = 50

type Store struct {
	db *gorm.DB
}

func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Migrate() error {
	return s.db.AutoMigrate(&Reading{})
}

func (s *Store) Create(ctx context.Context, r *Reading) error {
	if r.ID == "" {
		r.ID = shared.NewID("read_")
	}
	return s.db.WithContext(ctx).Create(r).Error
}

// ListBySession returns the newest readings first.
func (s *Store) ListBySession(ctx context.Context, sessionID string, limit int) ([]*Reading, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}

	var rs []*Reading
	err := s.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("created_at DESC").
		Limit(limit).
		Find(&rs).Error
	return rs, err
}

// Summary aggregates a session's history.
type Summary struct {
	Count       int64
	AvgLevel    float64
	AvgVolumeML float64
	MinVolumeML float64
	MaxVolumeML float64
	FirstAt     time.Time
	LastAt      time.Time
}

func (s *Store) Summary(ctx context.Context, sessionID string) (*Summary, error) {
	var result struct {
		Count     int64
		AvgLevel  float64
		AvgVolume float64
		MinVolume float64
		MaxVolume float64
	}
	err := s.db.WithContext(ctx).Model(&Reading{}).
		Select("COUNT(*) as count, COALESCE(AVG(level), 0) as avg_level, COALESCE(AVG(volume_ml), 0) as avg_volume, COALESCE(MIN(volume_ml), 0) as min_volume, COALESCE(MAX(volume_ml), 0) as max_volume").
		Where("session_id = ?", sessionID).
		Scan(&result).Error
	if err != nil {
		return nil, err
	}

	summary := &Summary{
		Count:       result.Count,
		AvgLevel:    result.AvgLevel,
		AvgVolumeML: result.AvgVolume,
		MinVolumeML: result.MinVolume,
		MaxVolumeML: result.MaxVolume,
	}
	if result.Count == 0 {
		return summary, nil
	}

	var first, last Reading
	if err := s.db.WithContext(ctx).Where("session_id = ?", sessionID).
		Order("created_at ASC").First(&first).Error; err != nil {
		return nil, err
	}
	if err := s.db.WithContext(ctx).Where("session_id = ?", sessionID).
		Order("created_at DESC").First(&last).Error; err != nil {
		return nil, err
	}
	summary.FirstAt = first.CreatedAt
	summary.LastAt = last.CreatedAt
	return summary, nil
}
