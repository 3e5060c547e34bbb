package usecase

import (
	"context"
	"time"

	"learnhub/internal/domain/entity"
	"learnhub/internal/domain/repository"
	"learnhub/internal/infrastructure/metrics"
	"learnhub/pkg/errors"
	"learnhub/pkg/logger"
)

// ThreadUseCase resolves threads by key. A thread key is the root message
// id; replies keep it even after the root is deleted, so every lookup works
// from the key alone and never needs the root row.
type ThreadUseCase struct {
	messageRepo repository.MessageRepository
	metrics     *metrics.Metrics
	now         func() time.Time
}

func NewThreadUseCase(messageRepo repository.MessageRepository, m *metrics.Metrics) *ThreadUseCase {
	return &ThreadUseCase{
		messageRepo: messageRepo,
		metrics:     m,
		now:         time.Now,
	}
}

// resolveKey maps a root or member id to the thread key. An id that is not
// a message is taken as the key itself, which is how threads whose root was
// deleted stay reachable.
func (uc *ThreadUseCase) resolveKey(ctx context.Context, id string) (string, error) {
	message, err := uc.messageRepo.GetByID(ctx, id)
	if err != nil {
		if errors.IsNotFound(err) {
			return id, nil
		}
		return "", err
	}
	return message.ThreadKey(), nil
}

// GetThread returns the thread ordered oldest first and marks the caller's
// unread messages in it as read with one bulk update.
func (uc *ThreadUseCase) GetThread(ctx context.Context, id, callerID string) ([]*entity.Message, error) {
	key, err := uc.resolveKey(ctx, id)
	if err != nil {
		return nil, err
	}

	messages, err := uc.messageRepo.ListThread(ctx, key)
	if err != nil {
		return nil, err
	}
	if len(messages) == 0 {
		return nil, errors.NotFound("Thread", nil)
	}

	if !anyParticipant(messages, callerID) {
		return nil, errors.AccessDenied("You are not a participant in this thread")
	}

	now := uc.now().UTC()
	if hasUnreadFor(messages, callerID) {
		updated, err := uc.messageRepo.MarkThreadRead(ctx, key, callerID, now)
		if err != nil {
			return nil, err
		}
		uc.metrics.MarkedRead(updated)

		for _, m := range messages {
			if m.To == callerID {
				m.MarkRead(now)
			}
		}
	}

	return messages, nil
}

// ResolveForSend decides the threadId of a new message. An explicit
// threadId wins and is normalised to its root; otherwise a reply joins its
// parent's thread. Both return "" for a standalone message.
func (uc *ThreadUseCase) ResolveForSend(ctx context.Context, senderID, threadID, replyTo string) (string, error) {
	var key string

	if threadID != "" {
		resolved, err := uc.resolveExplicit(ctx, senderID, threadID)
		if err != nil {
			return "", err
		}
		key = resolved
	}

	if replyTo != "" {
		parent, err := uc.messageRepo.GetByID(ctx, replyTo)
		if err != nil {
			if errors.IsNotFound(err) {
				return "", errors.NotFoundCode(errors.CodeParentNotFound, "The message being replied to does not exist", err)
			}
			return "", err
		}

		if !parent.IsParticipant(senderID) {
			return "", errors.AccessDenied("You can only reply to messages you sent or received")
		}

		if key != "" && key != parent.ThreadKey() {
			return "", errors.Validation(errors.CodeValidation, "replyTo belongs to a different thread")
		}
		key = parent.ThreadKey()
	}

	return key, nil
}

func (uc *ThreadUseCase) resolveExplicit(ctx context.Context, senderID, threadID string) (string, error) {
	key, err := uc.resolveKey(ctx, threadID)
	if err != nil {
		return "", err
	}

	messages, err := uc.messageRepo.ListThread(ctx, key)
	if err != nil {
		return "", err
	}
	if len(messages) == 0 {
		logger.Debug("Rejected send to unknown thread %s", threadID)
		return "", errors.NotFoundCode(errors.CodeThreadNotFound, "Thread not found", nil)
	}

	if !anyParticipant(messages, senderID) {
		return "", errors.AccessDenied("You are not a participant in this thread")
	}

	return key, nil
}

func anyParticipant(messages []*entity.Message, userID string) bool {
	for _, m := range messages {
		if m.IsParticipant(userID) {
			return true
		}
	}
	return false
}

func hasUnreadFor(messages []*entity.Message, userID string) bool {
	for _, m := range messages {
		if m.To == userID && !m.Read {
			return true
		}
	}
	return false
}
