package repository

import (
	"context"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"learnhub/internal/domain/entity"
	"learnhub/internal/domain/repository"
	"learnhub/pkg/errors"
	"learnhub/pkg/logger"
)

type firestoreFileMetadataRepository struct {
	client *firestore.Client
}

func NewFirestoreFileMetadataRepository(client *firestore.Client) repository.FileMetadataRepository {
	return &firestoreFileMetadataRepository{
		client: client,
	}
}

func (r *firestoreFileMetadataRepository) Create(ctx context.Context, metadata *entity.FileMetadata) error {
	metadata.UpdatedAt = time.Now()
	_, err := r.client.Collection("file_metadata").Doc(metadata.ID).Set(ctx, metadata)
	if err != nil {
		return errors.Internal("Failed to create file metadata", err)
	}
	return nil
}

func (r *firestoreFileMetadataRepository) GetByID(ctx context.Context, id string) (*entity.FileMetadata, error) {
	doc, err := r.client.Collection("file_metadata").Doc(id).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, errors.NotFound("File", err)
		}
		return nil, errors.Internal("Failed to get file metadata", err)
	}

	var metadata entity.FileMetadata
	if err := doc.DataTo(&metadata); err != nil {
		return nil, errors.Internal("Failed to parse file metadata", err)
	}
	return &metadata, nil
}

func (r *firestoreFileMetadataRepository) GetByEntityID(ctx context.Context, entityType, entityID string) ([]*entity.FileMetadata, error) {
	query := r.client.Collection("file_metadata").
		Where("entityType", "==", entityType).
		Where("entityId", "==", entityID).
		OrderBy("createdAt", firestore.Asc)

	return r.collect(ctx, query)
}

func (r *firestoreFileMetadataRepository) SetCommitted(ctx context.Context, ids []string, committed bool) error {
	if len(ids) == 0 {
		return nil
	}

	batch := r.client.Batch()
	now := time.Now()
	for _, id := range ids {
		batch.Update(r.client.Collection("file_metadata").Doc(id), []firestore.Update{
			{Path: "committed", Value: committed},
			{Path: "updatedAt", Value: now},
		})
	}

	if _, err := batch.Commit(ctx); err != nil {
		return errors.Internal("Failed to update file metadata", err)
	}
	return nil
}

func (r *firestoreFileMetadataRepository) ListUncommittedBefore(ctx context.Context, cutoff time.Time, limit int) ([]*entity.FileMetadata, error) {
	query := r.client.Collection("file_metadata").
		Where("committed", "==", false).
		Where("createdAt", "<", cutoff).
		OrderBy("createdAt", firestore.Asc)
	if limit > 0 {
		query = query.Limit(limit)
	}

	return r.collect(ctx, query)
}

func (r *firestoreFileMetadataRepository) Delete(ctx context.Context, id string) error {
	_, err := r.client.Collection("file_metadata").Doc(id).Delete(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return errors.NotFound("File metadata", err)
		}
		return errors.Internal("Failed to delete file metadata", err)
	}
	return nil
}

func (r *firestoreFileMetadataRepository) collect(ctx context.Context, query firestore.Query) ([]*entity.FileMetadata, error) {
	iter := query.Documents(ctx)
	defer iter.Stop()

	var metadataList []*entity.FileMetadata
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, errors.Internal("Failed to iterate file metadata", err)
		}

		var metadata entity.FileMetadata
		if err := doc.DataTo(&metadata); err != nil {
			logger.Error("Failed to parse file metadata: %v", err)
			continue
		}
		metadataList = append(metadataList, &metadata)
	}

	return metadataList, nil
}
