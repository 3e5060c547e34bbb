package repository

import (
	"context"
	"time"

	"learnhub/internal/domain/entity"
)

type FileMetadataRepository interface {
	Create(ctx context.Context, metadata *entity.FileMetadata) error
	GetByID(ctx context.Context, id string) (*entity.FileMetadata, error)
	GetByEntityID(ctx context.Context, entityType, entityID string) ([]*entity.FileMetadata, error)
	SetCommitted(ctx context.Context, ids []string, committed bool) error
	// ListUncommittedBefore returns the oldest uncommitted rows first.
	ListUncommittedBefore(ctx context.Context, cutoff time.Time, limit int) ([]*entity.FileMetadata, error)
	Delete(ctx context.Context, id string) error
}
