package router

import (
	"github.com/labstack/echo/v4"

	"learnhub/internal/adapter/api/middleware"
	"learnhub/internal/infrastructure/metrics"
	"learnhub/internal/infrastructure/ratelimit"
)

func Setup(e *echo.Echo, authMiddleware *middleware.AuthMiddleware, limiter *ratelimit.RateLimiter, m *metrics.Metrics, environment string) {
	SetupMessageRouter(e, authMiddleware, limiter)
	SetupFileRouter(e, authMiddleware)
	SetupHealthRouter(e, m)
	SetupDevRouter(e, environment)
}
