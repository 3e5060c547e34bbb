package usecase

import (
	"context"

	"learnhub/internal/domain/entity"
	"learnhub/internal/domain/repository"
	"learnhub/pkg/logger"
)

type ConversationUseCase struct {
	messageRepo repository.MessageRepository
	userRepo    repository.UserRepository
}

func NewConversationUseCase(messageRepo repository.MessageRepository, userRepo repository.UserRepository) *ConversationUseCase {
	return &ConversationUseCase{
		messageRepo: messageRepo,
		userRepo:    userRepo,
	}
}

// ListConversations returns one entry per correspondent, newest first.
// The view is computed from the messages on every call.
func (uc *ConversationUseCase) ListConversations(ctx context.Context, userID string) ([]*entity.Conversation, error) {
	summaries, err := uc.messageRepo.ConversationSummaries(ctx, userID)
	if err != nil {
		return nil, err
	}

	conversations := make([]*entity.Conversation, 0, len(summaries))
	if len(summaries) == 0 {
		return conversations, nil
	}

	ids := make([]string, 0, len(summaries))
	for _, s := range summaries {
		ids = append(ids, s.CorrespondentID)
	}

	users, err := uc.userRepo.GetByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}

	for _, s := range summaries {
		profile := &entity.UserSummary{ID: s.CorrespondentID}
		if u, ok := users[s.CorrespondentID]; ok {
			profile = u.Summary()
		} else {
			logger.Debug("Conversation of %s with unknown user %s", userID, s.CorrespondentID)
		}

		conversations = append(conversations, &entity.Conversation{
			User:            profile,
			LastMessage:     s.LastMessage,
			LastMessageDate: s.LastMessageDate,
			UnreadCount:     s.UnreadCount,
		})
	}

	return conversations, nil
}
