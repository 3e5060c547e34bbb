package repository

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"learnhub/internal/domain/entity"
	"learnhub/internal/domain/repository"
	"learnhub/pkg/errors"
)

var (
	ascendingOrder  = bson.D{{Key: "createdAt", Value: 1}, {Key: "_id", Value: 1}}
	descendingOrder = bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}}
)

type mongoMessageRepository struct {
	collection *mongo.Collection
}

func NewMongoMessageRepository(db *mongo.Database) repository.MessageRepository {
	return &mongoMessageRepository{
		collection: db.Collection(MessagesCollection),
	}
}

func (r *mongoMessageRepository) Create(ctx context.Context, message *entity.Message) error {
	if message.Attachments == nil {
		message.Attachments = []entity.Attachment{}
	}

	if _, err := r.collection.InsertOne(ctx, message); err != nil {
		return errors.Internal("Failed to create message", err)
	}
	return nil
}

func (r *mongoMessageRepository) GetByID(ctx context.Context, id string) (*entity.Message, error) {
	var message entity.Message
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&message)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, errors.NotFound("Message", err)
		}
		return nil, errors.Internal("Failed to get message", err)
	}
	return &message, nil
}

func (r *mongoMessageRepository) Exists(ctx context.Context, id string) (bool, error) {
	n, err := r.collection.CountDocuments(ctx, bson.M{"_id": id}, options.Count().SetLimit(1))
	if err != nil {
		return false, errors.Internal("Failed to get message", err)
	}
	return n > 0, nil
}

func (r *mongoMessageRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.collection.DeleteOne(ctx, bson.M{"_id": id}); err != nil {
		return errors.Internal("Failed to delete message", err)
	}
	return nil
}

func (r *mongoMessageRepository) SetFlag(ctx context.Context, id string, flag repository.MessageFlag, value bool) (*entity.Message, error) {
	var message entity.Message
	err := r.collection.FindOneAndUpdate(ctx,
		bson.M{"_id": id},
		bson.M{"$set": bson.M{string(flag): value}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&message)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, errors.NotFound("Message", err)
		}
		return nil, errors.Internal("Failed to update message", err)
	}
	return &message, nil
}

func (r *mongoMessageRepository) MarkRead(ctx context.Context, id string, at time.Time) (*entity.Message, error) {
	var message entity.Message
	err := r.collection.FindOneAndUpdate(ctx,
		bson.M{"_id": id, "read": false},
		bson.M{"$set": bson.M{"read": true, "readAt": at}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&message)
	if err == nil {
		return &message, nil
	}
	if err != mongo.ErrNoDocuments {
		return nil, errors.Internal("Failed to mark message as read", err)
	}

	// Already read, or gone.
	return r.GetByID(ctx, id)
}

func (r *mongoMessageRepository) MarkAllRead(ctx context.Context, recipientID, fromID string, at time.Time) (int, error) {
	filter := bson.M{"to": recipientID, "read": false}
	if fromID != "" {
		filter["from"] = fromID
	}
	return r.markRead(ctx, filter, at)
}

func (r *mongoMessageRepository) MarkThreadRead(ctx context.Context, threadKey, recipientID string, at time.Time) (int, error) {
	filter := bson.M{
		"to":   recipientID,
		"read": false,
		"$or":  threadFilter(threadKey),
	}
	return r.markRead(ctx, filter, at)
}

func (r *mongoMessageRepository) markRead(ctx context.Context, filter bson.M, at time.Time) (int, error) {
	result, err := r.collection.UpdateMany(ctx, filter, bson.M{
		"$set": bson.M{"read": true, "readAt": at},
	})
	if err != nil {
		return 0, errors.Internal("Failed to mark messages as read", err)
	}
	return int(result.ModifiedCount), nil
}

func threadFilter(threadKey string) bson.A {
	return bson.A{
		bson.M{"_id": threadKey},
		bson.M{"threadId": threadKey},
	}
}

func (r *mongoMessageRepository) ListThread(ctx context.Context, threadKey string) ([]*entity.Message, error) {
	return r.find(ctx, bson.M{"$or": threadFilter(threadKey)}, options.Find().SetSort(ascendingOrder))
}

func (r *mongoMessageRepository) ListBetween(ctx context.Context, userA, userB string) ([]*entity.Message, error) {
	filter := bson.M{"$or": bson.A{
		bson.M{"from": userA, "to": userB},
		bson.M{"from": userB, "to": userA},
	}}
	return r.find(ctx, filter, options.Find().SetSort(ascendingOrder))
}

func (r *mongoMessageRepository) ListInbox(ctx context.Context, recipientID string, filter repository.InboxFilter, limit, offset int) ([]*entity.Message, int64, error) {
	query := bson.M{"to": recipientID}
	if filter.Archived != nil {
		query["archived"] = *filter.Archived
	}
	if filter.Starred != nil {
		query["starred"] = *filter.Starred
	}

	total, err := r.collection.CountDocuments(ctx, query)
	if err != nil {
		return nil, 0, errors.Internal("Failed to count messages", err)
	}

	opts := options.Find().SetSort(descendingOrder)
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}
	if offset > 0 {
		opts.SetSkip(int64(offset))
	}

	messages, err := r.find(ctx, query, opts)
	if err != nil {
		return nil, 0, err
	}
	return messages, total, nil
}

// ConversationSummaries groups by correspondent inside the database. The
// pipeline sorts newest first so $first picks the latest message.
func (r *mongoMessageRepository) ConversationSummaries(ctx context.Context, userID string) ([]*entity.ConversationSummary, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{
			"$or":   bson.A{bson.M{"from": userID}, bson.M{"to": userID}},
			"$expr": bson.M{"$ne": bson.A{"$from", "$to"}},
		}}},
		{{Key: "$sort", Value: descendingOrder}},
		{{Key: "$group", Value: bson.M{
			"_id": bson.M{"$cond": bson.A{
				bson.M{"$eq": bson.A{"$from", userID}}, "$to", "$from",
			}},
			"lastMessageId":   bson.M{"$first": "$_id"},
			"lastMessage":     bson.M{"$first": "$content"},
			"lastMessageDate": bson.M{"$first": "$createdAt"},
			"unreadCount": bson.M{"$sum": bson.M{"$cond": bson.A{
				bson.M{"$and": bson.A{
					bson.M{"$eq": bson.A{"$to", userID}},
					bson.M{"$eq": bson.A{"$read", false}},
				}}, 1, 0,
			}}},
		}}},
		{{Key: "$sort", Value: bson.D{{Key: "lastMessageDate", Value: -1}, {Key: "lastMessageId", Value: -1}}}},
	}

	cursor, err := r.collection.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, errors.Internal("Failed to aggregate conversations", err)
	}
	defer cursor.Close(ctx)

	summaries := []*entity.ConversationSummary{}
	if err := cursor.All(ctx, &summaries); err != nil {
		return nil, errors.Internal("Failed to decode conversations", err)
	}
	return summaries, nil
}

func (r *mongoMessageRepository) CountUnread(ctx context.Context, userID string) (int64, error) {
	n, err := r.collection.CountDocuments(ctx, bson.M{"to": userID, "read": false})
	if err != nil {
		return 0, errors.Internal("Failed to count messages", err)
	}
	return n, nil
}

func (r *mongoMessageRepository) find(ctx context.Context, filter interface{}, opts *options.FindOptions) ([]*entity.Message, error) {
	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, errors.Internal("Failed to query messages", err)
	}
	defer cursor.Close(ctx)

	var messages []*entity.Message
	if err := cursor.All(ctx, &messages); err != nil {
		return nil, errors.Internal("Failed to decode messages", err)
	}
	return messages, nil
}
