package main

import (
	_ "github.com/glassgauge/gauge-backend/docs"
	"github.com/glassgauge/gauge-backend/internal/bootstrap"
)

// @title Glass Gauge API
// @version 1.0.0
// @description Camera-based liquid level and volume estimation for drinking glasses

// @host localhost:8080
// @BasePath /v1

func main() {
	bootstrap.Run()
}
