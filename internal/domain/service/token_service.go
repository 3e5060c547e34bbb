package service

import "context"

// TokenVerifier resolves a bearer token to the authenticated user id.
type TokenVerifier interface {
	VerifyToken(ctx context.Context, token string) (string, error)
}
