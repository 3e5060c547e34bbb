package router

import (
	"github.com/labstack/echo/v4"

	"learnhub/internal/adapter/api/handler"
	"learnhub/internal/adapter/api/middleware"
	"learnhub/internal/infrastructure/ratelimit"
)

func SetupMessageRouter(e *echo.Echo, authMiddleware *middleware.AuthMiddleware, limiter *ratelimit.RateLimiter) {
	messageHandler := handler.GetMessageHandler()

	messages := e.Group("/messages")
	messages.Use(authMiddleware.Authenticate)
	messages.Use(middleware.RateLimit(limiter, ratelimit.ActionRequest))

	messages.POST("", messageHandler.SendMessage)
	messages.GET("", messageHandler.GetMessages)

	// Static paths are registered before /:id.
	messages.GET("/conversations", messageHandler.GetConversations)
	messages.GET("/unread-count", messageHandler.GetUnreadCount)
	messages.GET("/users", messageHandler.GetMessageableUsers)
	messages.GET("/thread/:threadId", messageHandler.GetThread)
	messages.PUT("/mark-all-read", messageHandler.MarkAllAsRead)

	messages.GET("/:id", messageHandler.GetMessage)
	messages.PUT("/:id/read", messageHandler.MarkAsRead)
	messages.PUT("/:id/archive", messageHandler.ArchiveMessage)
	messages.PUT("/:id/star", messageHandler.StarMessage)
	messages.DELETE("/:id", messageHandler.DeleteMessage)
}
