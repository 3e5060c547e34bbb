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

type mongoFileMetadataRepository struct {
	collection *mongo.Collection
}

func NewMongoFileMetadataRepository(db *mongo.Database) repository.FileMetadataRepository {
	return &mongoFileMetadataRepository{
		collection: db.Collection("file_metadata"),
	}
}

func (r *mongoFileMetadataRepository) Create(ctx context.Context, metadata *entity.FileMetadata) error {
	metadata.UpdatedAt = time.Now()
	if _, err := r.collection.InsertOne(ctx, metadata); err != nil {
		return errors.Internal("Failed to create file metadata", err)
	}
	return nil
}

func (r *mongoFileMetadataRepository) GetByID(ctx context.Context, id string) (*entity.FileMetadata, error) {
	var metadata entity.FileMetadata
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&metadata)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, errors.NotFound("File", err)
		}
		return nil, errors.Internal("Failed to get file metadata", err)
	}
	return &metadata, nil
}

func (r *mongoFileMetadataRepository) GetByEntityID(ctx context.Context, entityType, entityID string) ([]*entity.FileMetadata, error) {
	return r.find(ctx,
		bson.M{"entityType": entityType, "entityId": entityID},
		options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}}),
	)
}

func (r *mongoFileMetadataRepository) SetCommitted(ctx context.Context, ids []string, committed bool) error {
	if len(ids) == 0 {
		return nil
	}

	_, err := r.collection.UpdateMany(ctx,
		bson.M{"_id": bson.M{"$in": ids}},
		bson.M{"$set": bson.M{"committed": committed, "updatedAt": time.Now()}},
	)
	if err != nil {
		return errors.Internal("Failed to update file metadata", err)
	}
	return nil
}

func (r *mongoFileMetadataRepository) ListUncommittedBefore(ctx context.Context, cutoff time.Time, limit int) ([]*entity.FileMetadata, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}
	return r.find(ctx, bson.M{"committed": false, "createdAt": bson.M{"$lt": cutoff}}, opts)
}

func (r *mongoFileMetadataRepository) Delete(ctx context.Context, id string) error {
	result, err := r.collection.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return errors.Internal("Failed to delete file metadata", err)
	}
	if result.DeletedCount == 0 {
		return errors.NotFound("File metadata", nil)
	}
	return nil
}

func (r *mongoFileMetadataRepository) find(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]*entity.FileMetadata, error) {
	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, errors.Internal("Failed to query file metadata", err)
	}
	defer cursor.Close(ctx)

	var metadataList []*entity.FileMetadata
	if err := cursor.All(ctx, &metadataList); err != nil {
		return nil, errors.Internal("Failed to decode file metadata", err)
	}
	return metadataList, nil
}
