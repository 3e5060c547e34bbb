package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"learnhub/internal/adapter/api"
	"learnhub/internal/adapter/api/handler"
	apimiddleware "learnhub/internal/adapter/api/middleware"
	"learnhub/internal/adapter/api/router"
	"learnhub/internal/domain/service"
	"learnhub/internal/infrastructure/firebase"
	"learnhub/internal/infrastructure/jwt"
	"learnhub/internal/infrastructure/metrics"
	"learnhub/internal/infrastructure/ratelimit"
	"learnhub/internal/infrastructure/scheduler"
	"learnhub/internal/usecase"
	"learnhub/pkg/config"
	"learnhub/pkg/logger"
	"learnhub/pkg/response"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger.Setup(cfg.LogLevel, cfg.Environment)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	backend, err := openBackend(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to initialize storage backend: %v", err)
	}
	defer backend.Close()

	verifier, err := newTokenVerifier(ctx, cfg, backend)
	if err != nil {
		log.Fatalf("Failed to initialize authentication: %v", err)
	}

	appMetrics := metrics.New()

	limiter := ratelimit.NewRateLimiter(map[string]ratelimit.Limit{
		ratelimit.ActionSendMessage: {PerMinute: cfg.Messaging.SendRatePerMin, Burst: cfg.Messaging.SendRateBurst},
		ratelimit.ActionRequest:     {PerMinute: cfg.Messaging.APIRatePerMin, Burst: cfg.Messaging.APIRateBurst},
	})
	limiter.StartCleanupRoutine(ctx, 10*time.Minute)

	permissionUseCase := usecase.NewPermissionUseCase(backend.userRepo, backend.courseRepo)
	threadUseCase := usecase.NewThreadUseCase(backend.messageRepo, appMetrics)
	attachmentUseCase := usecase.NewAttachmentUseCase(backend.fileService, backend.fileMetadataRepo, backend.messageRepo, cfg.Attachment, appMetrics)
	messageUseCase := usecase.NewMessageUseCase(
		backend.messageRepo,
		backend.userRepo,
		permissionUseCase,
		threadUseCase,
		attachmentUseCase,
		limiter,
		appMetrics,
		cfg.Messaging,
	)
	conversationUseCase := usecase.NewConversationUseCase(backend.messageRepo, backend.userRepo)
	notificationUseCase := usecase.NewNotificationUseCase(backend.messageRepo)

	handler.Setup(messageUseCase, conversationUseCase, threadUseCase, permissionUseCase, notificationUseCase, attachmentUseCase)
	handler.SetupHealthHandler(backend.checks)
	if tokens, ok := verifier.(*jwt.TokenService); ok {
		handler.SetupDevTokenHandler(tokens, backend.userRepo)
	}

	sweeper := scheduler.NewOrphanSweeper(attachmentUseCase, cfg.Sweeper, appMetrics)
	if err := sweeper.Start(ctx); err != nil {
		log.Fatalf("Failed to start orphan sweeper: %v", err)
	}
	defer sweeper.Stop()

	e := echo.New()
	e.HideBanner = true
	e.Debug = !cfg.IsProduction()
	e.HTTPErrorHandler = response.HTTPErrorHandler
	e.Validator = api.NewValidator()

	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:   true,
		LogURI:      true,
		LogStatus:   true,
		LogLatency:  true,
		LogRemoteIP: true,
		LogError:    true,
		HandleError: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			event := logger.Log().Info()
			if v.Error != nil {
				event = logger.Log().Warn().Err(v.Error)
			}
			event.
				Str("method", v.Method).
				Str("uri", v.URI).
				Int("status", v.Status).
				Dur("latency", v.Latency).
				Str("remote_ip", v.RemoteIP).
				Msg("request")
			return nil
		},
	}))
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())
	e.Use(middleware.BodyLimit(bodyLimit(cfg.Attachment)))
	e.Use(appMetrics.Middleware())

	authMiddleware := apimiddleware.NewAuthMiddleware(verifier)

	router.Setup(e, authMiddleware, limiter, appMetrics, cfg.Environment)

	go func() {
		logger.Info("Starting server on port %s (store=%s storage=%s auth=%s)", cfg.ServerPort, cfg.StoreDriver, cfg.StorageDriver, cfg.AuthMode)
		if err := e.Start(":" + cfg.ServerPort); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server stopped: %v", err)
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error("Graceful shutdown failed: %v", err)
	}
}

// newTokenVerifier returns the Firebase verifier in firebase mode and a
// locally signed JWT service otherwise.
func newTokenVerifier(ctx context.Context, cfg *config.Config, backend *backend) (service.TokenVerifier, error) {
	if cfg.AuthMode == config.AuthJWT {
		if cfg.IsProduction() {
			logger.Warn("AUTH_MODE=jwt in production; tokens are signed with JWT_SECRET")
		}
		return jwt.NewTokenService(cfg.JWTSecret), nil
	}

	app := backend.firebaseApp
	if app == nil {
		var err error
		app, err = firebase.NewApp(ctx, cfg)
		if err != nil {
			return nil, err
		}
	}

	authClient, err := app.Auth(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Firebase Auth: %w", err)
	}
	return firebase.NewFirebaseAuthClient(authClient), nil
}

// bodyLimit leaves room for the largest allowed set of attachments plus
// the form fields.
func bodyLimit(cfg config.AttachmentConfig) string {
	kib := int64(cfg.MaxFiles)*cfg.MaxSize/1024 + 1024
	return fmt.Sprintf("%dK", kib)
}
