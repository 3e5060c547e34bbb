package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/gridfs"
	"go.mongodb.org/mongo-driver/mongo/options"

	"learnhub/internal/domain/service"
)

// GridFSStorage keeps attachments in MongoDB. The object name doubles as
// the GridFS file id so deletes need no lookup.
type GridFSStorage struct {
	bucket *gridfs.Bucket
}

func NewGridFSStorage(bucket *gridfs.Bucket) *GridFSStorage {
	return &GridFSStorage{
		bucket: bucket,
	}
}

func (s *GridFSStorage) UploadFile(ctx context.Context, file io.Reader, fileType, originalName, folder string) (*service.UploadResult, error) {
	objectName := ObjectName(folder, originalName)

	metadata := bson.M{
		"mime_type":     fileType,
		"original_name": originalName,
		"uploaded_at":   time.Now(),
	}

	stream, err := s.bucket.OpenUploadStreamWithID(objectName, objectName, options.GridFSUpload().SetMetadata(metadata))
	if err != nil {
		return nil, fmt.Errorf("upload failed: %w", err)
	}

	if deadline, ok := ctx.Deadline(); ok {
		stream.SetWriteDeadline(deadline)
	}

	size, err := io.Copy(stream, file)
	if err != nil {
		stream.Abort()
		return nil, fmt.Errorf("file copy failed: %w", err)
	}

	if err := stream.Close(); err != nil {
		return nil, fmt.Errorf("upload failed: %w", err)
	}

	return &service.UploadResult{
		URL:        "gridfs://" + objectName,
		ObjectName: objectName,
		Size:       size,
	}, nil
}

func (s *GridFSStorage) GetFileContent(ctx context.Context, objectName string) (io.ReadCloser, string, int64, error) {
	stream, err := s.bucket.OpenDownloadStream(objectName)
	if err != nil {
		if errors.Is(err, gridfs.ErrFileNotFound) {
			return nil, "", 0, ErrObjectNotFound
		}
		return nil, "", 0, fmt.Errorf("download failed: %w", err)
	}

	if deadline, ok := ctx.Deadline(); ok {
		stream.SetReadDeadline(deadline)
	}

	file := stream.GetFile()
	var metadata bson.M
	if file.Metadata != nil {
		bson.Unmarshal(file.Metadata, &metadata)
	}

	return stream, stringFromMap(metadata, "mime_type"), file.Length, nil
}

func (s *GridFSStorage) DeleteFile(ctx context.Context, objectName string) error {
	err := s.bucket.Delete(objectName)
	if err != nil && !errors.Is(err, gridfs.ErrFileNotFound) {
		return fmt.Errorf("delete failed: %w", err)
	}
	return nil
}

// Close is a no-op; the Mongo client owns the connection.
func (s *GridFSStorage) Close() error {
	return nil
}

func stringFromMap(m bson.M, key string) string {
	if m == nil {
		return ""
	}
	if val, ok := m[key].(string); ok {
		return val
	}
	return ""
}
