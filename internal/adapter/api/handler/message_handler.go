package handler

import (
	"context"
	"mime/multipart"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"learnhub/internal/domain/entity"
	"learnhub/internal/domain/repository"
	"learnhub/internal/usecase"
	"learnhub/pkg/errors"
	"learnhub/pkg/logger"
	"learnhub/pkg/response"
	"learnhub/pkg/utils"
)

const attachmentsField = "attachments"

type MessageHandler struct {
	messageUseCase      *usecase.MessageUseCase
	conversationUseCase *usecase.ConversationUseCase
	threadUseCase       *usecase.ThreadUseCase
	permissionUseCase   *usecase.PermissionUseCase
	notificationUseCase *usecase.NotificationUseCase
}

func NewMessageHandler(
	messageUseCase *usecase.MessageUseCase,
	conversationUseCase *usecase.ConversationUseCase,
	threadUseCase *usecase.ThreadUseCase,
	permissionUseCase *usecase.PermissionUseCase,
	notificationUseCase *usecase.NotificationUseCase,
) *MessageHandler {
	return &MessageHandler{
		messageUseCase:      messageUseCase,
		conversationUseCase: conversationUseCase,
		threadUseCase:       threadUseCase,
		permissionUseCase:   permissionUseCase,
		notificationUseCase: notificationUseCase,
	}
}

type sendMessageRequest struct {
	To          string `json:"to" form:"to" validate:"required"`
	Content     string `json:"content" form:"content"`
	Subject     string `json:"subject" form:"subject"`
	Priority    string `json:"priority" form:"priority" validate:"omitempty,oneof=low normal high urgent"`
	MessageType string `json:"messageType" form:"messageType" validate:"omitempty,oneof=text system notification"`
	ThreadID    string `json:"threadId" form:"threadId"`
	ReplyTo     string `json:"replyTo" form:"replyTo"`
}

type markAllReadRequest struct {
	From string `json:"from"`
}

type flagRequest struct {
	Value *bool `json:"value" validate:"required"`
}

// SendMessage accepts JSON or multipart/form-data with files under
// "attachments".
func (h *MessageHandler) SendMessage(c echo.Context) error {
	var req sendMessageRequest
	if err := c.Bind(&req); err != nil {
		return response.Error(c, errors.BadRequest("Invalid request body", err))
	}

	if err := c.Validate(&req); err != nil {
		return response.Error(c, err)
	}

	userID := c.Get("uid").(string)

	uploads, closeAll, err := attachmentUploads(c)
	if err != nil {
		return response.Error(c, err)
	}
	defer closeAll()

	message, err := h.messageUseCase.Send(c.Request().Context(), userID, usecase.SendMessageInput{
		RecipientID: req.To,
		Content:     req.Content,
		Subject:     req.Subject,
		Priority:    req.Priority,
		MessageType: req.MessageType,
		ThreadID:    req.ThreadID,
		ReplyTo:     req.ReplyTo,
		Attachments: uploads,
	})
	if err != nil {
		return response.Error(c, err)
	}

	return response.Created(c, response.Body{"message": message})
}

// attachmentUploads opens every multipart file. The returned func closes
// them and is safe to call when there were none.
func attachmentUploads(c echo.Context) ([]usecase.AttachmentUpload, func(), error) {
	noop := func() {}
	if !strings.HasPrefix(c.Request().Header.Get(echo.HeaderContentType), echo.MIMEMultipartForm) {
		return nil, noop, nil
	}

	form, err := c.MultipartForm()
	if err != nil {
		return nil, noop, errors.BadRequest("Invalid multipart form", err)
	}

	headers := form.File[attachmentsField]
	uploads := make([]usecase.AttachmentUpload, 0, len(headers))
	opened := make([]multipart.File, 0, len(headers))
	closeAll := func() {
		for _, f := range opened {
			f.Close()
		}
	}

	for _, fh := range headers {
		f, err := fh.Open()
		if err != nil {
			closeAll()
			return nil, noop, errors.BadRequest("Unable to read attachment "+fh.Filename, err)
		}
		opened = append(opened, f)

		uploads = append(uploads, usecase.AttachmentUpload{
			OriginalName: fh.Filename,
			MimeType:     fh.Header.Get(echo.HeaderContentType),
			Size:         fh.Size,
			Content:      f,
		})
	}

	return uploads, closeAll, nil
}

// GetMessages returns the conversation with ?conversation=<userId>, oldest
// first, or the caller's inbox page when the parameter is absent.
func (h *MessageHandler) GetMessages(c echo.Context) error {
	userID := c.Get("uid").(string)

	if other := c.QueryParam("conversation"); other != "" {
		messages, err := h.messageUseCase.ListConversationMessages(c.Request().Context(), userID, other)
		if err != nil {
			return response.Error(c, err)
		}
		return response.Success(c, response.Body{"messages": messages})
	}

	filter, err := inboxFilter(c)
	if err != nil {
		return response.Error(c, err)
	}

	pagination := utils.GetPaginationParams(c)
	messages, total, err := h.messageUseCase.ListInbox(c.Request().Context(), userID, filter, pagination.PageSize, pagination.Offset)
	if err != nil {
		return response.Error(c, err)
	}

	return response.Paginated(c, "messages", messages, total, pagination.Page, pagination.PageSize)
}

func inboxFilter(c echo.Context) (repository.InboxFilter, error) {
	var filter repository.InboxFilter

	for name, target := range map[string]**bool{
		"archived": &filter.Archived,
		"starred":  &filter.Starred,
	} {
		raw := c.QueryParam(name)
		if raw == "" {
			continue
		}
		value, err := strconv.ParseBool(raw)
		if err != nil {
			return filter, errors.BadRequest(name+" must be true or false", err)
		}
		*target = &value
	}

	return filter, nil
}

// GetMessage marks the message read for its recipient unless ?peek=true.
func (h *MessageHandler) GetMessage(c echo.Context) error {
	userID := c.Get("uid").(string)
	messageID := c.Param("id")

	peek, _ := strconv.ParseBool(c.QueryParam("peek"))

	var message *entity.Message
	var err error
	if peek {
		message, err = h.messageUseCase.Peek(c.Request().Context(), messageID, userID)
	} else {
		message, err = h.messageUseCase.FetchAndMarkRead(c.Request().Context(), messageID, userID)
	}
	if err != nil {
		return response.Error(c, err)
	}

	return response.Success(c, response.Body{"message": message})
}

func (h *MessageHandler) GetConversations(c echo.Context) error {
	userID := c.Get("uid").(string)

	conversations, err := h.conversationUseCase.ListConversations(c.Request().Context(), userID)
	if err != nil {
		return response.Error(c, err)
	}

	return response.Success(c, response.Body{"conversations": conversations})
}

func (h *MessageHandler) GetThread(c echo.Context) error {
	userID := c.Get("uid").(string)

	messages, err := h.threadUseCase.GetThread(c.Request().Context(), c.Param("threadId"), userID)
	if err != nil {
		return response.Error(c, err)
	}

	return response.Success(c, response.Body{"messages": messages})
}

func (h *MessageHandler) GetUnreadCount(c echo.Context) error {
	userID := c.Get("uid").(string)

	count, err := h.notificationUseCase.UnreadCount(c.Request().Context(), userID)
	if err != nil {
		return response.Error(c, err)
	}

	return response.Success(c, response.Body{"count": count})
}

func (h *MessageHandler) GetMessageableUsers(c echo.Context) error {
	userID := c.Get("uid").(string)

	users, err := h.permissionUseCase.ListMessageable(c.Request().Context(), userID, c.QueryParam("search"))
	if err != nil {
		return response.Error(c, err)
	}

	return response.Success(c, response.Body{"users": users})
}

func (h *MessageHandler) MarkAsRead(c echo.Context) error {
	userID := c.Get("uid").(string)

	message, err := h.messageUseCase.MarkRead(c.Request().Context(), c.Param("id"), userID)
	if err != nil {
		return response.Error(c, err)
	}

	return response.Success(c, response.Body{"message": message})
}

// MarkAllAsRead takes the optional correspondent from ?from= or a JSON
// body {"from": "..."}.
func (h *MessageHandler) MarkAllAsRead(c echo.Context) error {
	req := markAllReadRequest{From: c.QueryParam("from")}
	if req.From == "" && c.Request().ContentLength != 0 {
		if err := c.Bind(&req); err != nil {
			return response.Error(c, errors.BadRequest("Invalid request body", err))
		}
	}

	userID := c.Get("uid").(string)

	count, err := h.messageUseCase.MarkAllRead(c.Request().Context(), userID, strings.TrimSpace(req.From))
	if err != nil {
		return response.Error(c, err)
	}

	logger.Debug("mark-all-read for %s updated %d messages", userID, count)
	return response.Success(c, response.Body{"count": count})
}

func (h *MessageHandler) ArchiveMessage(c echo.Context) error {
	return h.setFlag(c, h.messageUseCase.SetArchived)
}

func (h *MessageHandler) StarMessage(c echo.Context) error {
	return h.setFlag(c, h.messageUseCase.SetStarred)
}

type flagSetter func(ctx context.Context, messageID, callerID string, value bool) (*entity.Message, error)

func (h *MessageHandler) setFlag(c echo.Context, set flagSetter) error {
	var req flagRequest
	if err := c.Bind(&req); err != nil {
		return response.Error(c, errors.BadRequest("Invalid request body", err))
	}

	if err := c.Validate(&req); err != nil {
		return response.Error(c, err)
	}

	userID := c.Get("uid").(string)

	message, err := set(c.Request().Context(), c.Param("id"), userID, *req.Value)
	if err != nil {
		return response.Error(c, err)
	}

	return response.Success(c, response.Body{"message": message})
}

func (h *MessageHandler) DeleteMessage(c echo.Context) error {
	userID := c.Get("uid").(string)

	if err := h.messageUseCase.Delete(c.Request().Context(), c.Param("id"), userID); err != nil {
		return response.Error(c, err)
	}

	return response.Success(c, response.Body{"message": "Message deleted"})
}
