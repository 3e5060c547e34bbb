package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"learnhub/internal/adapter/api"
	"learnhub/internal/domain/entity"
	"learnhub/internal/domain/repository"
	"learnhub/internal/infrastructure/ratelimit"
	"learnhub/internal/usecase"
	"learnhub/pkg/config"
	"learnhub/pkg/errors"
)

// stubMessages implements the parts of MessageRepository the handler
// tests reach. Anything else panics through the nil embedded interface.
type stubMessages struct {
	repository.MessageRepository
	mu       sync.Mutex
	messages map[string]*entity.Message
	marked   []string
}

func (s *stubMessages) Create(ctx context.Context, m *entity.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages[m.ID] = m
	return nil
}

func (s *stubMessages) GetByID(ctx context.Context, id string) (*entity.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.messages[id]
	if !ok {
		return nil, errors.NotFound("Message", nil)
	}
	return m, nil
}

func (s *stubMessages) MarkAllRead(ctx context.Context, recipientID, fromID string, at time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.marked = append(s.marked, recipientID+"<"+fromID)
	return 2, nil
}

func (s *stubMessages) CountUnread(ctx context.Context, userID string) (int64, error) {
	return 4, nil
}

type stubUsers map[string]*entity.User

func (s stubUsers) GetByID(ctx context.Context, id string) (*entity.User, error) {
	if u, ok := s[id]; ok {
		return u, nil
	}
	return nil, errors.NotFound("User", nil)
}

func (s stubUsers) GetByIDs(ctx context.Context, ids []string) (map[string]*entity.User, error) {
	out := make(map[string]*entity.User)
	for _, id := range ids {
		if u, ok := s[id]; ok {
			out[id] = u
		}
	}
	return out, nil
}

func (s stubUsers) ListByRole(ctx context.Context, role string) ([]*entity.User, error) {
	var out []*entity.User
	for _, u := range s {
		if u.Role == role {
			out = append(out, u)
		}
	}
	return out, nil
}

type stubCourses struct{}

func (stubCourses) ListByTeacher(ctx context.Context, teacherID string) ([]*entity.Course, error) {
	return []*entity.Course{{ID: "c1", TeacherID: "teacher-1", Students: []string{"student-1"}}}, nil
}

func (stubCourses) ListByStudent(ctx context.Context, studentID string) ([]*entity.Course, error) {
	return []*entity.Course{{ID: "c1", TeacherID: "teacher-1", Students: []string{"student-1"}}}, nil
}

func (stubCourses) IsEnrolledWithTeacher(ctx context.Context, teacherID, studentID string) (bool, error) {
	return teacherID == "teacher-1" && studentID == "student-1", nil
}

func newTestMessageHandler() (*MessageHandler, *stubMessages) {
	messages := &stubMessages{messages: map[string]*entity.Message{
		"m1": {ID: "m1", From: "teacher-1", To: "student-1", Content: "Welcome", CreatedAt: time.Now()},
	}}
	users := stubUsers{
		"teacher-1": {ID: "teacher-1", Name: "Tina", Role: entity.RoleTeacher},
		"student-1": {ID: "student-1", Name: "Sam", Role: entity.RoleStudent},
		"student-2": {ID: "student-2", Name: "Sue", Role: entity.RoleStudent},
	}

	limiter := ratelimit.NewRateLimiter(map[string]ratelimit.Limit{
		ratelimit.ActionSendMessage: {PerMinute: 600, Burst: 100},
	})
	permissions := usecase.NewPermissionUseCase(users, stubCourses{})
	threads := usecase.NewThreadUseCase(messages, nil)
	attachments := usecase.NewAttachmentUseCase(nil, nil, messages, config.AttachmentConfig{MaxFiles: 5, MaxSize: 1024}, nil)
	messageUC := usecase.NewMessageUseCase(messages, users, permissions, threads, attachments, limiter, nil,
		config.MessagingConfig{MaxContentLength: 100, MaxSubjectLength: 20})

	h := NewMessageHandler(
		messageUC,
		usecase.NewConversationUseCase(messages, users),
		threads,
		permissions,
		usecase.NewNotificationUseCase(messages),
	)
	return h, messages
}

func newContext(method, target, body, uid string) (echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	e.Validator = api.NewValidator()

	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.Set("uid", uid)
	return c, rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestSendMessage(t *testing.T) {
	// Setup
	h, messages := newTestMessageHandler()
	c, rec := newContext(http.MethodPost, "/messages", `{"to":"student-1","content":"Homework is due Friday"}`, "teacher-1")

	// Assertions
	if assert.NoError(t, h.SendMessage(c)) {
		assert.Equal(t, http.StatusCreated, rec.Code)

		body := decode(t, rec)
		assert.Equal(t, true, body["success"])
		message := body["message"].(map[string]interface{})
		assert.Equal(t, "teacher-1", message["from"])
		assert.Equal(t, "normal", message["priority"])
		assert.Equal(t, "text", message["messageType"])
		assert.Len(t, messages.messages, 2)
		assert.Equal(t, "student-1", messages.messages[message["id"].(string)].To)
	}
}

func TestSendMessage_MultipartForm(t *testing.T) {
	// Setup
	h, messages := newTestMessageHandler()

	var buf bytes.Buffer
	form := multipart.NewWriter(&buf)
	require.NoError(t, form.WriteField("to", "student-1"))
	require.NoError(t, form.WriteField("content", "Slides are up"))
	require.NoError(t, form.WriteField("priority", "high"))
	require.NoError(t, form.Close())

	e := echo.New()
	e.Validator = api.NewValidator()
	req := httptest.NewRequest(http.MethodPost, "/messages", &buf)
	req.Header.Set(echo.HeaderContentType, form.FormDataContentType())
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.Set("uid", "teacher-1")

	// Assertions
	if assert.NoError(t, h.SendMessage(c)) {
		assert.Equal(t, http.StatusCreated, rec.Code)

		message := decode(t, rec)["message"].(map[string]interface{})
		assert.Equal(t, "student-1", message["to"])
		assert.Equal(t, "high", message["priority"])
		assert.Len(t, messages.messages, 2)
	}
}

func TestSendMessage_Rejected(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		uid      string
		wantCode int
		wantErr  string
	}{
		{"missing to", `{"content":"hi"}`, "teacher-1", http.StatusBadRequest, errors.CodeValidation},
		{"bad priority", `{"to":"student-1","content":"hi","priority":"asap"}`, "teacher-1", http.StatusBadRequest, errors.CodeValidation},
		{"blank content", `{"to":"student-1","content":"   "}`, "teacher-1", http.StatusBadRequest, errors.CodeContentEmpty},
		{"self message", `{"to":"teacher-1","content":"hi"}`, "teacher-1", http.StatusBadRequest, errors.CodeSelfMessage},
		{"unknown recipient", `{"to":"ghost","content":"hi"}`, "teacher-1", http.StatusNotFound, errors.CodeRecipientNotFound},
		{"not enrolled", `{"to":"student-2","content":"hi"}`, "teacher-1", http.StatusForbidden, errors.CodePermissionDenied},
		{"legacy recipientId field", `{"recipientId":"student-1","content":"hi"}`, "teacher-1", http.StatusBadRequest, errors.CodeValidation},
		{"malformed json", `{"to":`, "teacher-1", http.StatusBadRequest, errors.CodeBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, _ := newTestMessageHandler()
			c, rec := newContext(http.MethodPost, "/messages", tt.body, tt.uid)

			if assert.NoError(t, h.SendMessage(c)) {
				assert.Equal(t, tt.wantCode, rec.Code)
				body := decode(t, rec)
				assert.Equal(t, false, body["success"])
				assert.Equal(t, tt.wantErr, body["code"])
			}
		})
	}
}

func TestGetMessage_AccessDenied(t *testing.T) {
	h, _ := newTestMessageHandler()
	c, rec := newContext(http.MethodGet, "/messages/m1", "", "student-2")
	c.SetParamNames("id")
	c.SetParamValues("m1")

	if assert.NoError(t, h.GetMessage(c)) {
		assert.Equal(t, http.StatusForbidden, rec.Code)
		assert.Equal(t, errors.CodeAccessDenied, decode(t, rec)["code"])
	}
}

func TestGetMessage_PeekLeavesUnread(t *testing.T) {
	h, messages := newTestMessageHandler()
	c, rec := newContext(http.MethodGet, "/messages/m1?peek=true", "", "student-1")
	c.SetParamNames("id")
	c.SetParamValues("m1")

	if assert.NoError(t, h.GetMessage(c)) {
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.False(t, messages.messages["m1"].Read)
	}
}

func TestMarkAllAsRead(t *testing.T) {
	tests := []struct {
		name   string
		target string
		body   string
		want   string
	}{
		{"everything", "/messages/mark-all-read", "", "student-1<"},
		{"query param", "/messages/mark-all-read?from=teacher-1", "", "student-1<teacher-1"},
		{"json body", "/messages/mark-all-read", `{"from":"teacher-1"}`, "student-1<teacher-1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, messages := newTestMessageHandler()
			c, rec := newContext(http.MethodPut, tt.target, tt.body, "student-1")

			if assert.NoError(t, h.MarkAllAsRead(c)) {
				assert.Equal(t, http.StatusOK, rec.Code)
				assert.Equal(t, float64(2), decode(t, rec)["count"])
				assert.Equal(t, []string{tt.want}, messages.marked)
			}
		})
	}
}

func TestGetUnreadCount(t *testing.T) {
	h, _ := newTestMessageHandler()
	c, rec := newContext(http.MethodGet, "/messages/unread-count", "", "student-1")

	if assert.NoError(t, h.GetUnreadCount(c)) {
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, float64(4), decode(t, rec)["count"])
	}
}

func TestGetMessages_InvalidFilter(t *testing.T) {
	h, _ := newTestMessageHandler()
	c, rec := newContext(http.MethodGet, "/messages?archived=maybe", "", "student-1")

	if assert.NoError(t, h.GetMessages(c)) {
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, decode(t, rec)["message"], "archived")
	}
}

func TestStarMessage_RequiresValue(t *testing.T) {
	h, _ := newTestMessageHandler()
	c, rec := newContext(http.MethodPut, "/messages/m1/star", `{}`, "student-1")
	c.SetParamNames("id")
	c.SetParamValues("m1")

	if assert.NoError(t, h.StarMessage(c)) {
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, errors.CodeValidation, decode(t, rec)["code"])
	}
}

func TestGetMessageableUsers(t *testing.T) {
	h, _ := newTestMessageHandler()
	c, rec := newContext(http.MethodGet, "/messages/users", "", "student-1")

	if assert.NoError(t, h.GetMessageableUsers(c)) {
		assert.Equal(t, http.StatusOK, rec.Code)
		users := decode(t, rec)["users"].([]interface{})
		require.Len(t, users, 1)
		assert.Equal(t, "teacher-1", users[0].(map[string]interface{})["id"])
	}
}
