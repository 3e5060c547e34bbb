package handler

import (
	"learnhub/internal/domain/repository"
	"learnhub/internal/infrastructure/jwt"
	"learnhub/internal/usecase"
)

var (
	messageHandler  *MessageHandler
	fileHandler     *FileHandler
	healthHandler   *HealthHandler
	devTokenHandler *DevTokenHandler
)

func Setup(
	messageUseCase *usecase.MessageUseCase,
	conversationUseCase *usecase.ConversationUseCase,
	threadUseCase *usecase.ThreadUseCase,
	permissionUseCase *usecase.PermissionUseCase,
	notificationUseCase *usecase.NotificationUseCase,
	attachmentUseCase *usecase.AttachmentUseCase,
) {
	messageHandler = NewMessageHandler(messageUseCase, conversationUseCase, threadUseCase, permissionUseCase, notificationUseCase)
	fileHandler = NewFileHandler(attachmentUseCase)
}

func SetupHealthHandler(checks map[string]HealthCheck) {
	healthHandler = NewHealthHandler(checks)
}

func SetupDevTokenHandler(tokenService *jwt.TokenService, userRepo repository.UserRepository) {
	devTokenHandler = NewDevTokenHandler(tokenService, userRepo)
}

func GetMessageHandler() *MessageHandler {
	return messageHandler
}

func GetFileHandler() *FileHandler {
	return fileHandler
}

func GetHealthHandler() *HealthHandler {
	return healthHandler
}

func GetDevTokenHandler() *DevTokenHandler {
	return devTokenHandler
}
