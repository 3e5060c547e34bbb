package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"learnhub/internal/domain/entity"
	"learnhub/internal/domain/repository"
	"learnhub/internal/infrastructure/metrics"
	"learnhub/internal/infrastructure/ratelimit"
	"learnhub/pkg/config"
	"learnhub/pkg/errors"
	"learnhub/pkg/logger"
)

type MessageUseCase struct {
	messageRepo repository.MessageRepository
	userRepo    repository.UserRepository
	permissions *PermissionUseCase
	threads     *ThreadUseCase
	attachments *AttachmentUseCase
	rateLimiter *ratelimit.RateLimiter
	metrics     *metrics.Metrics
	cfg         config.MessagingConfig
	now         func() time.Time
	newID       func() (string, error)
}

func NewMessageUseCase(
	messageRepo repository.MessageRepository,
	userRepo repository.UserRepository,
	permissions *PermissionUseCase,
	threads *ThreadUseCase,
	attachments *AttachmentUseCase,
	rateLimiter *ratelimit.RateLimiter,
	m *metrics.Metrics,
	cfg config.MessagingConfig,
) *MessageUseCase {
	return &MessageUseCase{
		messageRepo: messageRepo,
		userRepo:    userRepo,
		permissions: permissions,
		threads:     threads,
		attachments: attachments,
		rateLimiter: rateLimiter,
		metrics:     m,
		cfg:         cfg,
		now:         time.Now,
		newID:       newMessageID,
	}
}

// newMessageID returns a UUIDv7 so ids sort in creation order.
func newMessageID() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

type SendMessageInput struct {
	RecipientID string
	Content     string
	Subject     string
	Priority    string
	MessageType string
	ThreadID    string
	ReplyTo     string
	Attachments []AttachmentUpload
}

// Send validates, authorizes and persists a message. It is all or nothing:
// if anything fails after attachments were stored, they are removed again.
func (uc *MessageUseCase) Send(ctx context.Context, senderID string, input SendMessageInput) (*entity.Message, error) {
	message, err := uc.send(ctx, senderID, input)
	if err != nil {
		uc.metrics.SendFailed(errors.CodeOf(err))
		return nil, err
	}

	uc.metrics.MessageSent()
	return message, nil
}

func (uc *MessageUseCase) send(ctx context.Context, senderID string, input SendMessageInput) (*entity.Message, error) {
	if err := uc.validate(&input); err != nil {
		return nil, err
	}

	if senderID == input.RecipientID {
		return nil, errors.Validation(errors.CodeSelfMessage, "You cannot send a message to yourself")
	}

	if _, err := uc.userRepo.GetByID(ctx, input.RecipientID); err != nil {
		if errors.IsNotFound(err) {
			return nil, errors.NotFoundCode(errors.CodeRecipientNotFound, "Recipient not found", err)
		}
		return nil, err
	}

	if !uc.permissions.CanMessage(ctx, senderID, input.RecipientID) {
		return nil, errors.PermissionDenied("You are not allowed to message this user")
	}

	if allowed, wait := uc.rateLimiter.Allow(senderID, ratelimit.ActionSendMessage); !allowed {
		logger.Warn("Send rate limited: user %s must wait %v", senderID, wait)
		return nil, errors.TooManyRequests(
			fmt.Sprintf("You are sending messages too quickly. Try again in %d seconds", int(wait.Seconds())+1), nil)
	}

	threadID, err := uc.threads.ResolveForSend(ctx, senderID, input.ThreadID, input.ReplyTo)
	if err != nil {
		return nil, err
	}

	id, err := uc.newID()
	if err != nil {
		return nil, errors.Internal("Failed to generate message id", err)
	}

	stored, err := uc.attachments.Store(ctx, senderID, id, input.Attachments)
	if err != nil {
		return nil, err
	}

	message := &entity.Message{
		ID:          id,
		From:        senderID,
		To:          input.RecipientID,
		Content:     input.Content,
		Subject:     input.Subject,
		Attachments: stored.Attachments,
		MessageType: input.MessageType,
		Priority:    input.Priority,
		ThreadID:    threadID,
		ReplyTo:     input.ReplyTo,
		CreatedAt:   uc.now().UTC(),
	}

	if err := uc.messageRepo.Create(ctx, message); err != nil {
		logger.Error("Failed to persist message from %s to %s: %v", senderID, input.RecipientID, err)
		uc.attachments.Rollback(ctx, stored)
		return nil, err
	}

	uc.attachments.Commit(ctx, stored)

	logger.Debug("Message %s sent from %s to %s (thread %q)", message.ID, senderID, message.To, threadID)
	return message, nil
}

// validate applies defaults and the field checks that need no lookups.
func (uc *MessageUseCase) validate(input *SendMessageInput) error {
	if strings.TrimSpace(input.Content) == "" {
		return errors.Validation(errors.CodeContentEmpty, "Message content is required")
	}

	if utf8.RuneCountInString(input.Content) > uc.cfg.MaxContentLength {
		return errors.Validation(errors.CodeContentTooLong,
			fmt.Sprintf("Message content exceeds %d characters", uc.cfg.MaxContentLength))
	}

	if utf8.RuneCountInString(input.Subject) > uc.cfg.MaxSubjectLength {
		return errors.Validation(errors.CodeSubjectTooLong,
			fmt.Sprintf("Subject exceeds %d characters", uc.cfg.MaxSubjectLength))
	}

	if input.Priority == "" {
		input.Priority = entity.PriorityNormal
	}
	if !entity.IsValidPriority(input.Priority) {
		return errors.Validation(errors.CodeValidation, "priority must be one of: low normal high urgent")
	}

	if input.MessageType == "" {
		input.MessageType = entity.MessageTypeText
	}
	if !entity.IsValidMessageType(input.MessageType) {
		return errors.Validation(errors.CodeValidation, "messageType must be one of: text system notification")
	}

	if strings.TrimSpace(input.RecipientID) == "" {
		return errors.Validation(errors.CodeValidation, "to is required")
	}

	return uc.attachments.Validate(input.Attachments)
}

// Peek returns a message to a participant without touching its read state.
func (uc *MessageUseCase) Peek(ctx context.Context, messageID, callerID string) (*entity.Message, error) {
	message, err := uc.messageRepo.GetByID(ctx, messageID)
	if err != nil {
		return nil, err
	}

	if !message.IsParticipant(callerID) {
		return nil, errors.AccessDenied("You don't have access to this message")
	}

	return message, nil
}

// FetchAndMarkRead is Peek plus marking the message read when the caller
// is its unread recipient.
func (uc *MessageUseCase) FetchAndMarkRead(ctx context.Context, messageID, callerID string) (*entity.Message, error) {
	message, err := uc.Peek(ctx, messageID, callerID)
	if err != nil {
		return nil, err
	}

	if message.To != callerID || message.Read {
		return message, nil
	}

	return uc.markRead(ctx, message.ID)
}

// MarkRead is recipient only and idempotent. readAt keeps its first value.
func (uc *MessageUseCase) MarkRead(ctx context.Context, messageID, callerID string) (*entity.Message, error) {
	message, err := uc.messageRepo.GetByID(ctx, messageID)
	if err != nil {
		return nil, err
	}

	if message.To != callerID {
		return nil, errors.AccessDenied("Only the recipient can mark a message as read")
	}

	if message.Read {
		return message, nil
	}

	return uc.markRead(ctx, message.ID)
}

func (uc *MessageUseCase) markRead(ctx context.Context, messageID string) (*entity.Message, error) {
	updated, err := uc.messageRepo.MarkRead(ctx, messageID, uc.now().UTC())
	if err != nil {
		return nil, err
	}
	uc.metrics.MarkedRead(1)
	return updated, nil
}

// MarkAllRead marks every unread message to the caller, or only those from
// correspondentID when given, and returns how many changed.
func (uc *MessageUseCase) MarkAllRead(ctx context.Context, callerID, correspondentID string) (int, error) {
	updated, err := uc.messageRepo.MarkAllRead(ctx, callerID, correspondentID, uc.now().UTC())
	if err != nil {
		return 0, err
	}

	uc.metrics.MarkedRead(updated)
	logger.Debug("User %s marked %d messages as read", callerID, updated)
	return updated, nil
}

// Delete hard deletes the row. Replies keep pointing at a deleted root;
// threads resolve from that key alone. Attachment objects are removed after
// the row, best effort.
func (uc *MessageUseCase) Delete(ctx context.Context, messageID, callerID string) error {
	message, err := uc.messageRepo.GetByID(ctx, messageID)
	if err != nil {
		return err
	}

	if !message.IsParticipant(callerID) {
		return errors.AccessDenied("Only the sender or recipient can delete this message")
	}

	if err := uc.messageRepo.Delete(ctx, messageID); err != nil {
		return err
	}

	if len(message.Attachments) > 0 {
		uc.attachments.DeleteForMessage(ctx, messageID)
	}

	logger.Info("Message %s deleted by %s", messageID, callerID)
	return nil
}

func (uc *MessageUseCase) SetArchived(ctx context.Context, messageID, callerID string, archived bool) (*entity.Message, error) {
	return uc.setFlag(ctx, messageID, callerID, repository.FlagArchived, archived)
}

func (uc *MessageUseCase) SetStarred(ctx context.Context, messageID, callerID string, starred bool) (*entity.Message, error) {
	return uc.setFlag(ctx, messageID, callerID, repository.FlagStarred, starred)
}

func (uc *MessageUseCase) setFlag(ctx context.Context, messageID, callerID string, flag repository.MessageFlag, value bool) (*entity.Message, error) {
	if _, err := uc.Peek(ctx, messageID, callerID); err != nil {
		return nil, err
	}
	return uc.messageRepo.SetFlag(ctx, messageID, flag, value)
}

// ListConversationMessages returns the messages between the caller and
// otherID oldest first. It has no read side effect.
func (uc *MessageUseCase) ListConversationMessages(ctx context.Context, callerID, otherID string) ([]*entity.Message, error) {
	if strings.TrimSpace(otherID) == "" {
		return nil, errors.BadRequest("conversation user id is required", nil)
	}

	messages, err := uc.messageRepo.ListBetween(ctx, callerID, otherID)
	if err != nil {
		return nil, err
	}
	if messages == nil {
		messages = []*entity.Message{}
	}
	return messages, nil
}

// ListInbox pages through messages addressed to the caller, newest first.
func (uc *MessageUseCase) ListInbox(ctx context.Context, callerID string, filter repository.InboxFilter, limit, offset int) ([]*entity.Message, int64, error) {
	messages, total, err := uc.messageRepo.ListInbox(ctx, callerID, filter, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	if messages == nil {
		messages = []*entity.Message{}
	}
	return messages, total, nil
}
