package handler

import (
	"fmt"
	"io"
	"mime"
	"net/http"

	"github.com/labstack/echo/v4"

	"learnhub/internal/usecase"
	"learnhub/pkg/errors"
	"learnhub/pkg/logger"
	"learnhub/pkg/response"
)

type FileHandler struct {
	attachmentUseCase *usecase.AttachmentUseCase
}

func NewFileHandler(attachmentUseCase *usecase.AttachmentUseCase) *FileHandler {
	return &FileHandler{
		attachmentUseCase: attachmentUseCase,
	}
}

// ViewFile streams a message attachment to one of the message's
// participants.
func (h *FileHandler) ViewFile(c echo.Context) error {
	fileID := c.Param("id")
	if fileID == "" {
		return response.Error(c, errors.BadRequest("File ID is required", nil))
	}

	userID := c.Get("uid").(string)

	file, err := h.attachmentUseCase.Open(c.Request().Context(), fileID, userID)
	if err != nil {
		return response.Error(c, err)
	}
	defer file.Reader.Close()

	header := c.Response().Header()
	header.Set(echo.HeaderContentType, file.ContentType)
	if file.Size > 0 {
		header.Set(echo.HeaderContentLength, fmt.Sprintf("%d", file.Size))
	}
	header.Set(echo.HeaderContentDisposition, mime.FormatMediaType("attachment", map[string]string{"filename": file.Filename}))
	header.Set("Cache-Control", "private, no-cache, no-store, must-revalidate")
	header.Set(echo.HeaderXContentTypeOptions, "nosniff")
	c.Response().WriteHeader(http.StatusOK)

	logger.Debug("File %s accessed by user %s", fileID, userID)

	if _, err := io.Copy(c.Response(), file.Reader); err != nil {
		logger.Error("Failed to stream file content: %v", err)
		return err
	}

	return nil
}
