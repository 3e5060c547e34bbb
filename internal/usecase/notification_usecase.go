package usecase

import (
	"context"

	"learnhub/internal/domain/repository"
)

type NotificationUseCase struct {
	messageRepo repository.MessageRepository
}

func NewNotificationUseCase(messageRepo repository.MessageRepository) *NotificationUseCase {
	return &NotificationUseCase{messageRepo: messageRepo}
}

// UnreadCount is always a count query; there is no stored counter to drift.
func (uc *NotificationUseCase) UnreadCount(ctx context.Context, userID string) (int64, error) {
	return uc.messageRepo.CountUnread(ctx, userID)
}
