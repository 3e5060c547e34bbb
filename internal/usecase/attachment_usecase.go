package usecase

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"

	"learnhub/internal/domain/entity"
	"learnhub/internal/domain/repository"
	"learnhub/internal/domain/service"
	"learnhub/internal/infrastructure/metrics"
	"learnhub/pkg/config"
	"learnhub/pkg/errors"
	"learnhub/pkg/logger"
)

const (
	attachmentFolder = "messages"
	sniffLength      = 3072
	sweepBatchSize   = 200
)

// AttachmentUpload is one file received with a send request.
type AttachmentUpload struct {
	OriginalName string
	MimeType     string
	Size         int64
	Content      io.Reader
}

// StoredAttachments is the result of a successful Store. It remembers
// what to roll back if the message write fails.
type StoredAttachments struct {
	Attachments []entity.Attachment
	metadata    []*entity.FileMetadata
}

func (s *StoredAttachments) metadataIDs() []string {
	ids := make([]string, 0, len(s.metadata))
	for _, m := range s.metadata {
		ids = append(ids, m.ID)
	}
	return ids
}

type FileContent struct {
	Reader      io.ReadCloser
	ContentType string
	Size        int64
	Filename    string
}

type AttachmentUseCase struct {
	fileService      service.FileUploadService
	fileMetadataRepo repository.FileMetadataRepository
	messageRepo      repository.MessageRepository
	cfg              config.AttachmentConfig
	metrics          *metrics.Metrics
	now              func() time.Time
}

func NewAttachmentUseCase(
	fileService service.FileUploadService,
	fileMetadataRepo repository.FileMetadataRepository,
	messageRepo repository.MessageRepository,
	cfg config.AttachmentConfig,
	m *metrics.Metrics,
) *AttachmentUseCase {
	return &AttachmentUseCase{
		fileService:      fileService,
		fileMetadataRepo: fileMetadataRepo,
		messageRepo:      messageRepo,
		cfg:              cfg,
		metrics:          m,
		now:              time.Now,
	}
}

// Validate checks count, declared size and extension before anything is
// written.
func (uc *AttachmentUseCase) Validate(files []AttachmentUpload) error {
	if len(files) > uc.cfg.MaxFiles {
		return errors.Validation(errors.CodeValidation, fmt.Sprintf("At most %d attachments are allowed", uc.cfg.MaxFiles))
	}

	for _, f := range files {
		name := strings.TrimSpace(f.OriginalName)
		if name == "" {
			return errors.Validation(errors.CodeValidation, "Attachment name is required")
		}
		if f.Size <= 0 {
			return errors.Validation(errors.CodeValidation, fmt.Sprintf("%s is empty", name))
		}
		if f.Size > uc.cfg.MaxSize {
			return errors.Validation(errors.CodeValidation, uc.tooLargeMessage(name))
		}
		if !uc.allowedExtension(name) {
			return errors.Validation(errors.CodeValidation, fmt.Sprintf("%s has a file type that is not allowed", name))
		}
	}

	return nil
}

func (uc *AttachmentUseCase) tooLargeMessage(name string) string {
	return fmt.Sprintf("%s exceeds the %s limit", name, humanize.IBytes(uint64(uc.cfg.MaxSize)))
}

func (uc *AttachmentUseCase) allowedExtension(name string) bool {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(name)), ".")
	if ext == "" {
		return false
	}
	for _, allowed := range uc.cfg.AllowedExtensions {
		if ext == allowed {
			return true
		}
	}
	return false
}

// Store uploads every file for the message that will get messageID. It is
// all or nothing: on any failure the objects already written are removed.
func (uc *AttachmentUseCase) Store(ctx context.Context, uploaderID, messageID string, files []AttachmentUpload) (*StoredAttachments, error) {
	stored := &StoredAttachments{Attachments: []entity.Attachment{}}
	if len(files) == 0 {
		return stored, nil
	}

	if err := uc.Validate(files); err != nil {
		return nil, err
	}

	for _, f := range files {
		attachment, metadata, err := uc.storeOne(ctx, uploaderID, messageID, f)
		if err != nil {
			uc.Rollback(ctx, stored)
			return nil, err
		}
		stored.Attachments = append(stored.Attachments, *attachment)
		stored.metadata = append(stored.metadata, metadata)
	}

	return stored, nil
}

func (uc *AttachmentUseCase) storeOne(ctx context.Context, uploaderID, messageID string, f AttachmentUpload) (*entity.Attachment, *entity.FileMetadata, error) {
	head := make([]byte, sniffLength)
	n, err := io.ReadFull(f.Content, head)
	if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
		return nil, nil, errors.StorageFailure("Failed to read attachment", err)
	}
	head = head[:n]

	mimeType := detectMimeType(head, f.MimeType)

	// One byte over the limit is enough to reject a body that lied about
	// its size.
	body := io.LimitReader(io.MultiReader(bytes.NewReader(head), f.Content), uc.cfg.MaxSize+1)

	result, err := uc.fileService.UploadFile(ctx, body, mimeType, f.OriginalName, attachmentFolder)
	if err != nil {
		logger.Error("Attachment upload failed for %s: %v", f.OriginalName, err)
		return nil, nil, errors.StorageFailure("Failed to store attachment", err)
	}

	if result.Size <= 0 || result.Size > uc.cfg.MaxSize {
		uc.deleteObject(ctx, result.ObjectName)
		if result.Size <= 0 {
			return nil, nil, errors.Validation(errors.CodeValidation, fmt.Sprintf("%s is empty", f.OriginalName))
		}
		return nil, nil, errors.Validation(errors.CodeValidation, uc.tooLargeMessage(f.OriginalName))
	}

	now := uc.now().UTC()
	metadata := &entity.FileMetadata{
		ID:         uuid.NewString(),
		URL:        result.URL,
		ObjectName: result.ObjectName,
		EntityType: entity.EntityTypeMessage,
		EntityID:   messageID,
		UploadedBy: uploaderID,
		Filename:   f.OriginalName,
		FileType:   mimeType,
		FileSize:   result.Size,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	if err := uc.fileMetadataRepo.Create(ctx, metadata); err != nil {
		uc.deleteObject(ctx, result.ObjectName)
		return nil, nil, errors.StorageFailure("Failed to record attachment", err)
	}

	uc.metrics.AttachmentStored(result.Size)

	return &entity.Attachment{
		Filename:     result.ObjectName,
		OriginalName: f.OriginalName,
		MimeType:     mimeType,
		Size:         result.Size,
		URL:          "/files/" + metadata.ID,
	}, metadata, nil
}

// detectMimeType trusts the content over the client header, except when
// the content gives nothing more specific than octet-stream.
func detectMimeType(head []byte, declared string) string {
	detected := mimetype.Detect(head)
	if detected.Is("application/octet-stream") && declared != "" {
		return declared
	}
	return detected.String()
}

// Commit marks the metadata as belonging to a persisted message. A failure
// here is not fatal: the sweeper sees the message exists and commits it.
func (uc *AttachmentUseCase) Commit(ctx context.Context, stored *StoredAttachments) {
	if stored == nil || len(stored.metadata) == 0 {
		return
	}
	if err := uc.fileMetadataRepo.SetCommitted(ctx, stored.metadataIDs(), true); err != nil {
		logger.Warn("Failed to commit attachment metadata: %v", err)
	}
}

// Rollback removes objects and metadata written by Store.
func (uc *AttachmentUseCase) Rollback(ctx context.Context, stored *StoredAttachments) {
	if stored == nil {
		return
	}
	for _, m := range stored.metadata {
		uc.removeFile(ctx, m)
	}
}

// DeleteForMessage cascades a message delete to its stored objects. Objects
// that cannot be removed are uncommitted so the sweeper retries them.
func (uc *AttachmentUseCase) DeleteForMessage(ctx context.Context, messageID string) {
	files, err := uc.fileMetadataRepo.GetByEntityID(ctx, entity.EntityTypeMessage, messageID)
	if err != nil {
		logger.Error("Failed to list attachments of deleted message %s: %v", messageID, err)
		return
	}

	var failed []string
	for _, f := range files {
		if !uc.removeFile(ctx, f) {
			failed = append(failed, f.ID)
		}
	}

	if len(failed) > 0 {
		if err := uc.fileMetadataRepo.SetCommitted(ctx, failed, false); err != nil {
			logger.Error("Failed to release attachments of message %s: %v", messageID, err)
		}
	}
}

func (uc *AttachmentUseCase) removeFile(ctx context.Context, m *entity.FileMetadata) bool {
	if err := uc.fileService.DeleteFile(ctx, m.ObjectName); err != nil {
		logger.Error("Failed to delete attachment object %s: %v", m.ObjectName, err)
		return false
	}
	if err := uc.fileMetadataRepo.Delete(ctx, m.ID); err != nil && !errors.IsNotFound(err) {
		logger.Error("Failed to delete attachment metadata %s: %v", m.ID, err)
		return false
	}
	return true
}

func (uc *AttachmentUseCase) deleteObject(ctx context.Context, objectName string) {
	if err := uc.fileService.DeleteFile(ctx, objectName); err != nil {
		logger.Error("Failed to delete attachment object %s: %v", objectName, err)
	}
}

// Open streams an attachment to a participant of its message.
func (uc *AttachmentUseCase) Open(ctx context.Context, fileID, callerID string) (*FileContent, error) {
	metadata, err := uc.fileMetadataRepo.GetByID(ctx, fileID)
	if err != nil {
		return nil, err
	}

	if metadata.EntityType != entity.EntityTypeMessage {
		return nil, errors.NotFound("File", nil)
	}

	message, err := uc.messageRepo.GetByID(ctx, metadata.EntityID)
	if err != nil {
		if errors.IsNotFound(err) {
			return nil, errors.NotFound("File", err)
		}
		return nil, err
	}

	if !message.IsParticipant(callerID) {
		return nil, errors.AccessDenied("You don't have permission to access this file")
	}

	reader, contentType, size, err := uc.fileService.GetFileContent(ctx, metadata.ObjectName)
	if err != nil {
		return nil, errors.StorageFailure("Failed to retrieve file", err)
	}

	if contentType == "" {
		contentType = metadata.FileType
	}

	return &FileContent{
		Reader:      reader,
		ContentType: contentType,
		Size:        size,
		Filename:    metadata.Filename,
	}, nil
}

// SweepOrphans removes uncommitted objects older than gracePeriod whose
// message does not exist, and commits the ones whose message does.
func (uc *AttachmentUseCase) SweepOrphans(ctx context.Context, gracePeriod time.Duration) (int, error) {
	cutoff := uc.now().Add(-gracePeriod)

	candidates, err := uc.fileMetadataRepo.ListUncommittedBefore(ctx, cutoff, sweepBatchSize)
	if err != nil {
		return 0, err
	}

	removed := 0
	var live []string
	for _, m := range candidates {
		if ctx.Err() != nil {
			return removed, ctx.Err()
		}

		if m.EntityID != "" {
			exists, err := uc.messageRepo.Exists(ctx, m.EntityID)
			if err != nil {
				return removed, err
			}
			if exists {
				live = append(live, m.ID)
				continue
			}
		}

		if uc.removeFile(ctx, m) {
			removed++
		}
	}

	if len(live) > 0 {
		if err := uc.fileMetadataRepo.SetCommitted(ctx, live, true); err != nil {
			return removed, err
		}
	}

	return removed, nil
}
