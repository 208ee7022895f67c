package bootstrap

import (
	"github.com/glassgauge/gauge-backend/internal/confidence"
	"github.com/glassgauge/gauge-backend/internal/detection"
	"github.com/glassgauge/gauge-backend/internal/health"
	"github.com/glassgauge/gauge-backend/internal/telemetry"
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

const version = "1.0.0"

func ProvideHealthHandler(
	db *gorm.DB,
	redisClient *redis.Client,
	detector detection.Detector,
	assessor confidence.Assessor,
	metrics *telemetry.Metrics,
) *health.Handler {
	return health.NewHandler(db, redisClient, detector, assessor, metrics, version)
}

func RegisterHealthRoutes(e *echo.Echo, h *health.Handler) {
	h.RegisterRoutes(e)
}

var HealthModule = fx.Options(
	fx.Provide(ProvideHealthHandler),
	fx.Invoke(RegisterHealthRoutes),
)
