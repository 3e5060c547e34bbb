package router

import (
	"github.com/labstack/echo/v4"

	"learnhub/internal/adapter/api/handler"
	"learnhub/internal/adapter/api/middleware"
)

func SetupFileRouter(e *echo.Echo, authMiddleware *middleware.AuthMiddleware) {
	fileHandler := handler.GetFileHandler()

	files := e.Group("/files")
	files.Use(authMiddleware.Authenticate)

	files.GET("/:id", fileHandler.ViewFile)
}
