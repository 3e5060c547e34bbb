package repository

import (
	"context"
	"sort"
	"time"

	"cloud.google.com/go/firestore"
	"cloud.google.com/go/firestore/apiv1/firestorepb"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"learnhub/internal/domain/entity"
	"learnhub/internal/domain/repository"
	"learnhub/pkg/errors"
	"learnhub/pkg/logger"
)

const MessagesCollection = "messages"

type firestoreMessageRepository struct {
	client *firestore.Client
}

func NewFirestoreMessageRepository(client *firestore.Client) repository.MessageRepository {
	return &firestoreMessageRepository{
		client: client,
	}
}

func (r *firestoreMessageRepository) messages() *firestore.CollectionRef {
	return r.client.Collection(MessagesCollection)
}

func (r *firestoreMessageRepository) Create(ctx context.Context, message *entity.Message) error {
	if message.Attachments == nil {
		message.Attachments = []entity.Attachment{}
	}

	_, err := r.messages().Doc(message.ID).Create(ctx, message)
	if err != nil {
		return errors.Internal("Failed to create message", err)
	}

	return nil
}

func (r *firestoreMessageRepository) GetByID(ctx context.Context, id string) (*entity.Message, error) {
	doc, err := r.messages().Doc(id).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, errors.NotFound("Message", err)
		}
		return nil, errors.Internal("Failed to get message", err)
	}

	return decodeMessage(doc)
}

func (r *firestoreMessageRepository) Exists(ctx context.Context, id string) (bool, error) {
	_, err := r.messages().Doc(id).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return false, nil
		}
		return false, errors.Internal("Failed to get message", err)
	}
	return true, nil
}

func (r *firestoreMessageRepository) Delete(ctx context.Context, id string) error {
	_, err := r.messages().Doc(id).Delete(ctx)
	if err != nil {
		return errors.Internal("Failed to delete message", err)
	}
	return nil
}

func (r *firestoreMessageRepository) SetFlag(ctx context.Context, id string, flag repository.MessageFlag, value bool) (*entity.Message, error) {
	_, err := r.messages().Doc(id).Update(ctx, []firestore.Update{
		{Path: string(flag), Value: value},
	})
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, errors.NotFound("Message", err)
		}
		return nil, errors.Internal("Failed to update message", err)
	}

	return r.GetByID(ctx, id)
}

func (r *firestoreMessageRepository) MarkRead(ctx context.Context, id string, at time.Time) (*entity.Message, error) {
	var message *entity.Message

	ref := r.messages().Doc(id)
	err := r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		doc, err := tx.Get(ref)
		if err != nil {
			return err
		}

		m, err := decodeMessage(doc)
		if err != nil {
			return err
		}
		message = m

		if !m.MarkRead(at) {
			return nil
		}
		return tx.Update(ref, []firestore.Update{
			{Path: "read", Value: true},
			{Path: "readAt", Value: *m.ReadAt},
		})
	})
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, errors.NotFound("Message", err)
		}
		return nil, errors.Internal("Failed to mark message as read", err)
	}

	return message, nil
}

func (r *firestoreMessageRepository) MarkAllRead(ctx context.Context, recipientID, fromID string, at time.Time) (int, error) {
	query := r.messages().Where("to", "==", recipientID).Where("read", "==", false)
	if fromID != "" {
		query = query.Where("from", "==", fromID)
	}

	return r.markQueryRead(ctx, query, at)
}

func (r *firestoreMessageRepository) MarkThreadRead(ctx context.Context, threadKey, recipientID string, at time.Time) (int, error) {
	members := r.messages().Where("threadId", "==", threadKey).Where("to", "==", recipientID).Where("read", "==", false)
	rootRef := r.messages().Doc(threadKey)

	var updated int
	err := r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		updated = 0

		docs, err := tx.Documents(members).GetAll()
		if err != nil {
			return err
		}

		root, err := tx.Get(rootRef)
		if err != nil && status.Code(err) != codes.NotFound {
			return err
		}
		if err == nil {
			m, derr := decodeMessage(root)
			if derr != nil {
				return derr
			}
			if m.To == recipientID && !m.Read {
				docs = append(docs, root)
			}
		}

		for _, doc := range docs {
			if err := tx.Update(doc.Ref, readUpdates(at)); err != nil {
				return err
			}
			updated++
		}
		return nil
	})
	if err != nil {
		return 0, errors.Internal("Failed to mark thread as read", err)
	}

	return updated, nil
}

// markReadBatchSize keeps each transaction well under Firestore's commit
// size limit.
const markReadBatchSize = 400

// markQueryRead flips every unread document matched by query. Each batch is
// its own transaction, so two devices polling at once cannot lose an
// update; a failure leaves earlier batches applied, which a retry skips.
func (r *firestoreMessageRepository) markQueryRead(ctx context.Context, query firestore.Query, at time.Time) (int, error) {
	updated, err := markInBatches(ctx, markReadBatchSize, func(ctx context.Context, limit int) (int, error) {
		var n int
		err := r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
			n = 0

			docs, err := tx.Documents(query.Limit(limit)).GetAll()
			if err != nil {
				return err
			}

			for _, doc := range docs {
				if err := tx.Update(doc.Ref, readUpdates(at)); err != nil {
					return err
				}
				n++
			}
			return nil
		})
		if err != nil {
			return 0, err
		}
		return n, nil
	})
	if err != nil {
		logger.Error("Mark read stopped after %d messages: %v", updated, err)
		return 0, errors.Internal("Failed to mark messages as read", err)
	}

	return updated, nil
}

// markInBatches calls markBatch until a batch comes back short. markBatch
// must only match documents that are still unread.
func markInBatches(ctx context.Context, size int, markBatch func(ctx context.Context, limit int) (int, error)) (int, error) {
	total := 0
	for {
		if err := ctx.Err(); err != nil {
			return total, err
		}

		n, err := markBatch(ctx, size)
		total += n
		if err != nil {
			return total, err
		}
		if n < size {
			return total, nil
		}
	}
}

func readUpdates(at time.Time) []firestore.Update {
	return []firestore.Update{
		{Path: "read", Value: true},
		{Path: "readAt", Value: at},
	}
}

func (r *firestoreMessageRepository) ListThread(ctx context.Context, threadKey string) ([]*entity.Message, error) {
	members, err := r.collect(ctx, r.messages().Where("threadId", "==", threadKey))
	if err != nil {
		return nil, err
	}

	root, err := r.GetByID(ctx, threadKey)
	if err != nil && !errors.IsNotFound(err) {
		return nil, err
	}
	if root != nil {
		members = append(members, root)
	}

	sortAscending(members)
	return members, nil
}

func (r *firestoreMessageRepository) ListBetween(ctx context.Context, userA, userB string) ([]*entity.Message, error) {
	sent, err := r.collect(ctx, r.messages().Where("from", "==", userA).Where("to", "==", userB))
	if err != nil {
		return nil, err
	}

	received, err := r.collect(ctx, r.messages().Where("from", "==", userB).Where("to", "==", userA))
	if err != nil {
		return nil, err
	}

	all := append(sent, received...)
	sortAscending(all)
	return all, nil
}

func (r *firestoreMessageRepository) ListInbox(ctx context.Context, recipientID string, filter repository.InboxFilter, limit, offset int) ([]*entity.Message, int64, error) {
	query := r.messages().Where("to", "==", recipientID)
	if filter.Archived != nil {
		query = query.Where("archived", "==", *filter.Archived)
	}
	if filter.Starred != nil {
		query = query.Where("starred", "==", *filter.Starred)
	}

	total, err := count(ctx, query)
	if err != nil {
		return nil, 0, err
	}

	query = query.OrderBy("createdAt", firestore.Desc).OrderBy("id", firestore.Desc)
	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}

	messages, err := r.collect(ctx, query)
	if err != nil {
		return nil, 0, err
	}

	return messages, total, nil
}

func (r *firestoreMessageRepository) ConversationSummaries(ctx context.Context, userID string) ([]*entity.ConversationSummary, error) {
	sent, err := r.collect(ctx, r.messages().Where("from", "==", userID))
	if err != nil {
		return nil, err
	}

	received, err := r.collect(ctx, r.messages().Where("to", "==", userID))
	if err != nil {
		return nil, err
	}

	return entity.AggregateConversations(userID, append(sent, received...)), nil
}

func (r *firestoreMessageRepository) CountUnread(ctx context.Context, userID string) (int64, error) {
	return count(ctx, r.messages().Where("to", "==", userID).Where("read", "==", false))
}

func (r *firestoreMessageRepository) collect(ctx context.Context, query firestore.Query) ([]*entity.Message, error) {
	iter := query.Documents(ctx)
	defer iter.Stop()

	var messages []*entity.Message
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, errors.Internal("Failed to iterate messages", err)
		}

		message, err := decodeMessage(doc)
		if err != nil {
			logger.Error("Skipping malformed message %s: %v", doc.Ref.ID, err)
			continue
		}
		messages = append(messages, message)
	}

	return messages, nil
}

func count(ctx context.Context, query firestore.Query) (int64, error) {
	result, err := query.NewAggregationQuery().WithCount("all").Get(ctx)
	if err != nil {
		return 0, errors.Internal("Failed to count messages", err)
	}

	value, ok := result["all"].(*firestorepb.Value)
	if !ok {
		return 0, errors.Internal("Unexpected count result", nil)
	}

	return value.GetIntegerValue(), nil
}

func decodeMessage(doc *firestore.DocumentSnapshot) (*entity.Message, error) {
	var message entity.Message
	if err := doc.DataTo(&message); err != nil {
		return nil, errors.Internal("Failed to parse message data", err)
	}
	if message.ID == "" {
		message.ID = doc.Ref.ID
	}
	return &message, nil
}

func sortAscending(messages []*entity.Message) {
	sort.SliceStable(messages, func(i, j int) bool {
		return entity.Before(messages[i], messages[j])
	})
}
