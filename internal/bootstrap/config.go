package bootstrap

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// CameraSourceOff disables a facing mode entirely. Sessions asking for a
// disabled facing get a permission denial. An empty URL keeps the facing
// available, backed by frames pushed through the ingest endpoint.
const CameraSourceOff = "off"

type Config struct {
	ServerAddr string
	LogLevel   string

	DatabaseDSN string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	DetectorURL     string
	DetectorModel   string
	DetectorTimeout time.Duration

	ConfidenceURL      string
	ConfidenceModel    string
	ConfidenceTimeout  time.Duration
	ConfidenceDebounce time.Duration

	PollInterval   time.Duration
	MinScore       float64
	AcceptedLabels []string
	CapacityML     float64

	FrameTTL        time.Duration
	FrameMaxAge     time.Duration
	SnapshotTimeout time.Duration

	IngestMaxFPS float64
	IngestBurst  int

	CameraUserURL string
	CameraEnvURL  string
}

func LoadConfig() *Config {
	return &Config{
		ServerAddr: getEnv("SERVER_ADDR", ":8080"),
		LogLevel:   getEnv("LOG_LEVEL", "info"),

		DatabaseDSN: getEnv("DATABASE_DSN", ""),

		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),

		DetectorURL:     getEnv("DETECTOR_URL", "http://localhost:9090"),
		DetectorModel:   getEnv("DETECTOR_MODEL", "coco-ssd"),
		DetectorTimeout: getEnvDuration("DETECTOR_TIMEOUT", 10*time.Second),

		ConfidenceURL:      getEnv("CONFIDENCE_URL", "http://localhost:11434"),
		ConfidenceModel:    getEnv("CONFIDENCE_MODEL", "llama3.2"),
		ConfidenceTimeout:  getEnvDuration("CONFIDENCE_TIMEOUT", 30*time.Second),
		ConfidenceDebounce: getEnvDuration("CONFIDENCE_DEBOUNCE", 400*time.Millisecond),

		PollInterval:   getEnvDuration("POLL_INTERVAL", time.Second),
		MinScore:       getEnvFloat("MIN_SCORE", 0.5),
		AcceptedLabels: parseLabels(getEnv("ACCEPTED_LABELS", "cup,wine glass")),
		CapacityML:     getEnvFloat("GLASS_CAPACITY_ML", 350),

		FrameTTL:        getEnvDuration("FRAME_TTL", 30*time.Second),
		FrameMaxAge:     getEnvDuration("FRAME_MAX_AGE", 10*time.Second),
		SnapshotTimeout: getEnvDuration("SNAPSHOT_TIMEOUT", 5*time.Second),

		IngestMaxFPS: getEnvFloat("INGEST_MAX_FPS", 10),
		IngestBurst:  getEnvInt("INGEST_BURST", 20),

		CameraUserURL: getEnv("CAMERA_USER_URL", ""),
		CameraEnvURL:  getEnv("CAMERA_ENV_URL", ""),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func parseLabels(envValue string) []string {
	var labels []string
	for _, label := range strings.Split(envValue, ",") {
		label = strings.TrimSpace(label)
		if label != "" {
			labels = append(labels, label)
		}
	}
	return labels
}
