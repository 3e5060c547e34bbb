package storage

import (
	"context"
	"errors"
	"fmt"
	"io"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"

	"learnhub/internal/domain/service"
	"learnhub/pkg/logger"
)

type CloudStorageClient struct {
	client     *storage.Client
	bucketName string
}

func NewCloudStorageClient(ctx context.Context, bucketName string, opts ...option.ClientOption) (*CloudStorageClient, error) {
	if bucketName == "" {
		return nil, fmt.Errorf("storage bucket name is required")
	}

	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %v", err)
	}

	return &CloudStorageClient{
		client:     client,
		bucketName: bucketName,
	}, nil
}

// UploadFile writes a private object. Attachments are only served through
// the authenticated file endpoint, never by public URL.
func (c *CloudStorageClient) UploadFile(ctx context.Context, file io.Reader, fileType, originalName, folder string) (*service.UploadResult, error) {
	objectName := ObjectName(folder, originalName)

	obj := c.client.Bucket(c.bucketName).Object(objectName)
	wc := obj.If(storage.Conditions{DoesNotExist: true}).NewWriter(ctx)
	wc.ContentType = fileType
	wc.CacheControl = "private, max-age=0"
	wc.Metadata = map[string]string{"originalName": originalName}

	size, err := io.Copy(wc, file)
	if err != nil {
		wc.CloseWithError(err)
		return nil, fmt.Errorf("failed to copy file to GCS: %v", err)
	}

	if err := wc.Close(); err != nil {
		return nil, fmt.Errorf("failed to close writer: %v", err)
	}

	logger.Debug("Stored %s in bucket %s (%d bytes)", objectName, c.bucketName, size)

	return &service.UploadResult{
		URL:        fmt.Sprintf("gs://%s/%s", c.bucketName, objectName),
		ObjectName: objectName,
		Size:       size,
	}, nil
}

func (c *CloudStorageClient) GetFileContent(ctx context.Context, objectName string) (io.ReadCloser, string, int64, error) {
	reader, err := c.client.Bucket(c.bucketName).Object(objectName).NewReader(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return nil, "", 0, ErrObjectNotFound
		}
		return nil, "", 0, fmt.Errorf("failed to open object: %v", err)
	}

	return reader, reader.Attrs.ContentType, reader.Attrs.Size, nil
}

func (c *CloudStorageClient) DeleteFile(ctx context.Context, objectName string) error {
	err := c.client.Bucket(c.bucketName).Object(objectName).Delete(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return nil
		}
		return fmt.Errorf("failed to delete file: %v", err)
	}

	return nil
}

func (c *CloudStorageClient) Close() error {
	return c.client.Close()
}
