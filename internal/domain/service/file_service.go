package service

import (
	"context"
	"io"
)

type UploadResult struct {
	URL        string
	ObjectName string
	Size       int64
}

// FileUploadService stores attachment bytes. Implementations must not keep
// partially written objects when UploadFile fails.
type FileUploadService interface {
	UploadFile(ctx context.Context, file io.Reader, fileType, originalName, folder string) (*UploadResult, error)
	GetFileContent(ctx context.Context, objectName string) (io.ReadCloser, string, int64, error)
	DeleteFile(ctx context.Context, objectName string) error
	Close() error
}
