package bootstrap

import (
	"log/slog"
	"net/http"
	"os"

	"github.com/glassgauge/gauge-backend/docs"
	"github.com/glassgauge/gauge-backend/internal/camera"
	"github.com/glassgauge/gauge-backend/internal/ingest"
	"github.com/glassgauge/gauge-backend/internal/readings"
	"github.com/glassgauge/gauge-backend/internal/telemetry"
	"github.com/glassgauge/gauge-backend/internal/watch"
	"github.com/labstack/echo/v4"
	echoSwagger "github.com/swaggo/echo-swagger"
	"go.uber.org/fx"
)

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func ProvideLogger(cfg *Config) *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: parseLogLevel(cfg.LogLevel),
	}))
}

func ProvideWatchHandler(manager *watch.Manager, logger *slog.Logger) *watch.Handler {
	return watch.NewHandler(manager, logger)
}

func ProvideIngestHandler(
	cfg *Config,
	manager *watch.Manager,
	store *camera.Store,
	metrics *telemetry.Metrics,
	logger *slog.Logger,
) *ingest.Handler {
	return ingest.NewHandler(ingest.Config{
		MaxFrameRate: cfg.IngestMaxFPS,
		Burst:        cfg.IngestBurst,
	}, manager, store, metrics, logger)
}

func ProvideReadingsHandler(
	store *readings.Store,
	manager *watch.Manager,
	metrics *telemetry.Metrics,
	logger *slog.Logger,
) *readings.Handler {
	return readings.NewHandler(store, manager, metrics, logger)
}

type HandlerParams struct {
	fx.In

	WatchHandler    *watch.Handler
	IngestHandler   *ingest.Handler
	ReadingsHandler *readings.Handler
	Metrics         *telemetry.Metrics
	Config          *Config
}

func RegisterRoutes(e *echo.Echo, params HandlerParams) {
	api := e.Group("/v1")

	watchGroup := api.Group("/watch")
	params.WatchHandler.RegisterRoutes(watchGroup)
	params.ReadingsHandler.RegisterRoutes(watchGroup)

	params.IngestHandler.RegisterRoutes(api.Group("/cameras"))

	e.GET("/metrics", echo.WrapHandler(params.Metrics.Handler()))

	e.GET("/swagger/*", echoSwagger.EchoWrapHandler())
	e.GET("/openapi.json", func(c echo.Context) error {
		return c.Blob(http.StatusOK, "application/json", docs.OpenAPISpec)
	})
}

var HandlersModule = fx.Options(
	fx.Provide(
		ProvideLogger,
		ProvideWatchHandler,
		ProvideIngestHandler,
		ProvideReadingsHandler,
	),
	fx.Invoke(RegisterRoutes),
)
