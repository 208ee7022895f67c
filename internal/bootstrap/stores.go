package bootstrap

import (
	"github.com/glassgauge/gauge-backend/internal/camera"
	"github.com/glassgauge/gauge-backend/internal/readings"
	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

func ProvideFrameStore(redisClient *redis.Client, cfg *Config) *camera.Store {
	return camera.NewStore(redisClient, cfg.FrameTTL)
}

func ProvideReadingsStore(db *gorm.DB) *readings.Store {
	return readings.NewStore(db)
}

func RunMigrations(readingsStore *readings.Store) error {
	return readingsStore.Migrate()
}

var StoresModule = fx.Options(
	fx.Provide(
		ProvideFrameStore,
		ProvideReadingsStore,
	),
	fx.Invoke(RunMigrations),
)
