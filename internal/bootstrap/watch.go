package bootstrap

import (
	"context"
	"log/slog"

	"github.com/glassgauge/gauge-backend/internal/camera"
	"github.com/glassgauge/gauge-backend/internal/confidence"
	"github.com/glassgauge/gauge-backend/internal/detection"
	"github.com/glassgauge/gauge-backend/internal/telemetry"
	"github.com/glassgauge/gauge-backend/internal/watch"
	"go.uber.org/fx"
)

func ProvideDetectorConfig(cfg *Config) detection.Config {
	return detection.Config{
		BaseURL: cfg.DetectorURL,
		Model:   cfg.DetectorModel,
		Timeout: cfg.DetectorTimeout,
	}
}

func ProvideDetector(cfg detection.Config) detection.Detector {
	return detection.NewClient(cfg)
}

func ProvideAssessorConfig(cfg *Config) confidence.Config {
	return confidence.Config{
		BaseURL:  cfg.ConfidenceURL,
		Model:    cfg.ConfidenceModel,
		Timeout:  cfg.ConfidenceTimeout,
		Debounce: cfg.ConfidenceDebounce,
	}
}

func ProvideAssessor(cfg confidence.Config) confidence.Assessor {
	return confidence.NewClient(cfg)
}

func ProvideMetrics() *telemetry.Metrics {
	return telemetry.New()
}

func cameraSources(cfg *Config) map[camera.FacingMode]camera.Source {
	sources := make(map[camera.FacingMode]camera.Source)
	if cfg.CameraUserURL != CameraSourceOff {
		sources[camera.FacingUser] = camera.Source{SnapshotURL: cfg.CameraUserURL}
	}
	if cfg.CameraEnvURL != CameraSourceOff {
		sources[camera.FacingEnvironment] = camera.Source{SnapshotURL: cfg.CameraEnvURL}
	}
	return sources
}

func ProvideCameraManager(cfg *Config, store *camera.Store, logger *slog.Logger) *camera.Manager {
	return camera.NewManager(camera.ManagerConfig{
		Sources:         cameraSources(cfg),
		Store:           store,
		FrameMaxAge:     cfg.FrameMaxAge,
		SnapshotTimeout: cfg.SnapshotTimeout,
		Logger:          logger,
	})
}

func ProvideWatchManager(
	cfg *Config,
	cameras *camera.Manager,
	frames *camera.Store,
	detector detection.Detector,
	assessor confidence.Assessor,
	metrics *telemetry.Metrics,
	logger *slog.Logger,
) *watch.Manager {
	return watch.NewManager(watch.ManagerConfig{
		Cameras:      cameras,
		Frames:       frames,
		Detector:     detector,
		Assessor:     assessor,
		PollInterval: cfg.PollInterval,
		Debounce:     cfg.ConfidenceDebounce,
		Labels:       cfg.AcceptedLabels,
		MinScore:     cfg.MinScore,
		CapacityML:   cfg.CapacityML,
		Metrics:      metrics,
		Logger:       logger,
	})
}

func CloseSessionsOnShutdown(lc fx.Lifecycle, manager *watch.Manager) {
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return manager.Close()
		},
	})
}

var WatchModule = fx.Options(
	fx.Provide(
		ProvideDetectorConfig,
		ProvideDetector,
		ProvideAssessorConfig,
		ProvideAssessor,
		ProvideMetrics,
		ProvideCameraManager,
		ProvideWatchManager,
	),
	fx.Invoke(CloseSessionsOnShutdown),
)
