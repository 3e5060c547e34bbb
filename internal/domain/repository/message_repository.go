package repository

import (
	"context"
	"time"

	"learnhub/internal/domain/entity"
)

type MessageFlag string

const (
	FlagArchived MessageFlag = "archived"
	FlagStarred  MessageFlag = "starred"
)

type InboxFilter struct {
	Archived *bool
	Starred  *bool
}

// MessageRepository is the durable message store. Bulk read updates must be
// applied by the store in one operation, never as a read-then-write loop
// in the caller.
type MessageRepository interface {
	Create(ctx context.Context, message *entity.Message) error
	GetByID(ctx context.Context, id string) (*entity.Message, error)
	Exists(ctx context.Context, id string) (bool, error)
	Delete(ctx context.Context, id string) error
	SetFlag(ctx context.Context, id string, flag MessageFlag, value bool) (*entity.Message, error)

	// MarkRead is idempotent and never rewrites readAt.
	MarkRead(ctx context.Context, id string, at time.Time) (*entity.Message, error)
	// MarkAllRead marks every unread message addressed to recipientID, only
	// those from fromID when it is non-empty, and returns how many changed.
	MarkAllRead(ctx context.Context, recipientID, fromID string, at time.Time) (int, error)
	MarkThreadRead(ctx context.Context, threadKey, recipientID string, at time.Time) (int, error)

	// ListThread returns the root (id == threadKey) and every message whose
	// threadId is threadKey, ordered by createdAt then id.
	ListThread(ctx context.Context, threadKey string) ([]*entity.Message, error)
	ListBetween(ctx context.Context, userA, userB string) ([]*entity.Message, error)
	ListInbox(ctx context.Context, recipientID string, filter InboxFilter, limit, offset int) ([]*entity.Message, int64, error)

	ConversationSummaries(ctx context.Context, userID string) ([]*entity.ConversationSummary, error)
	CountUnread(ctx context.Context, userID string) (int64, error)
}
