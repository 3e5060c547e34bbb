package router

import (
	"github.com/labstack/echo/v4"

	"learnhub/internal/adapter/api/handler"
	"learnhub/internal/infrastructure/metrics"
)

func SetupHealthRouter(e *echo.Echo, m *metrics.Metrics) {
	healthHandler := handler.GetHealthHandler()
	e.GET("/health", healthHandler.CheckHealth)
	e.GET("/health/ready", healthHandler.CheckReadiness)

	if m != nil {
		e.GET("/metrics", m.Handler())
	}
}
