package repository

import (
	"context"

	"learnhub/internal/domain/entity"
)

// UserRepository is a read-only view of the account directory.
type UserRepository interface {
	GetByID(ctx context.Context, id string) (*entity.User, error)
	GetByIDs(ctx context.Context, ids []string) (map[string]*entity.User, error)
	ListByRole(ctx context.Context, role string) ([]*entity.User, error)
}
