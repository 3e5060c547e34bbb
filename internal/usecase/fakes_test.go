package usecase

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"
	"sync"
	"testing"
	"time"

	"learnhub/internal/domain/entity"
	"learnhub/internal/domain/repository"
	"learnhub/internal/domain/service"
	"learnhub/internal/infrastructure/ratelimit"
	"learnhub/pkg/config"
	"learnhub/pkg/errors"
)

func cloneMessage(m *entity.Message) *entity.Message {
	c := *m
	if m.ReadAt != nil {
		t := *m.ReadAt
		c.ReadAt = &t
	}
	c.Attachments = append([]entity.Attachment(nil), m.Attachments...)
	return &c
}

type memMessageRepo struct {
	mu        sync.Mutex
	messages  map[string]*entity.Message
	createErr error
	bulkCalls int
}

func newMemMessageRepo() *memMessageRepo {
	return &memMessageRepo{messages: make(map[string]*entity.Message)}
}

func (r *memMessageRepo) Create(ctx context.Context, message *entity.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.createErr != nil {
		return r.createErr
	}
	r.messages[message.ID] = cloneMessage(message)
	return nil
}

func (r *memMessageRepo) GetByID(ctx context.Context, id string) (*entity.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.messages[id]
	if !ok {
		return nil, errors.NotFound("Message", nil)
	}
	return cloneMessage(m), nil
}

func (r *memMessageRepo) Exists(ctx context.Context, id string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.messages[id]
	return ok, nil
}

func (r *memMessageRepo) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.messages[id]; !ok {
		return errors.NotFound("Message", nil)
	}
	delete(r.messages, id)
	return nil
}

func (r *memMessageRepo) SetFlag(ctx context.Context, id string, flag repository.MessageFlag, value bool) (*entity.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.messages[id]
	if !ok {
		return nil, errors.NotFound("Message", nil)
	}
	switch flag {
	case repository.FlagArchived:
		m.Archived = value
	case repository.FlagStarred:
		m.Starred = value
	}
	return cloneMessage(m), nil
}

func (r *memMessageRepo) MarkRead(ctx context.Context, id string, at time.Time) (*entity.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.messages[id]
	if !ok {
		return nil, errors.NotFound("Message", nil)
	}
	m.MarkRead(at)
	return cloneMessage(m), nil
}

func (r *memMessageRepo) MarkAllRead(ctx context.Context, recipientID, fromID string, at time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.bulkCalls++
	updated := 0
	for _, m := range r.messages {
		if m.To != recipientID || (fromID != "" && m.From != fromID) {
			continue
		}
		if m.MarkRead(at) {
			updated++
		}
	}
	return updated, nil
}

func (r *memMessageRepo) MarkThreadRead(ctx context.Context, threadKey, recipientID string, at time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.bulkCalls++
	updated := 0
	for _, m := range r.messages {
		if m.ThreadKey() == threadKey && m.To == recipientID && m.MarkRead(at) {
			updated++
		}
	}
	return updated, nil
}

func (r *memMessageRepo) filter(keep func(m *entity.Message) bool) []*entity.Message {
	var out []*entity.Message
	for _, m := range r.messages {
		if keep(m) {
			out = append(out, cloneMessage(m))
		}
	}
	sort.Slice(out, func(i, j int) bool { return entity.Before(out[i], out[j]) })
	return out
}

func (r *memMessageRepo) ListThread(ctx context.Context, threadKey string) ([]*entity.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.filter(func(m *entity.Message) bool {
		return m.ID == threadKey || m.ThreadID == threadKey
	}), nil
}

func (r *memMessageRepo) ListBetween(ctx context.Context, userA, userB string) ([]*entity.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.filter(func(m *entity.Message) bool {
		return (m.From == userA && m.To == userB) || (m.From == userB && m.To == userA)
	}), nil
}

func (r *memMessageRepo) ListInbox(ctx context.Context, recipientID string, filter repository.InboxFilter, limit, offset int) ([]*entity.Message, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	all := r.filter(func(m *entity.Message) bool {
		if m.To != recipientID {
			return false
		}
		if filter.Archived != nil && m.Archived != *filter.Archived {
			return false
		}
		if filter.Starred != nil && m.Starred != *filter.Starred {
			return false
		}
		return true
	})

	for i, j := 0, len(all)-1; i < j; i, j = i+1, j-1 {
		all[i], all[j] = all[j], all[i]
	}

	total := int64(len(all))
	if offset >= len(all) {
		return nil, total, nil
	}
	end := offset + limit
	if limit <= 0 || end > len(all) {
		end = len(all)
	}
	return all[offset:end], total, nil
}

func (r *memMessageRepo) ConversationSummaries(ctx context.Context, userID string) ([]*entity.ConversationSummary, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	all := r.filter(func(*entity.Message) bool { return true })
	return entity.AggregateConversations(userID, all), nil
}

func (r *memMessageRepo) CountUnread(ctx context.Context, userID string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, m := range r.messages {
		if m.To == userID && !m.Read {
			n++
		}
	}
	return n, nil
}

type memUserRepo struct {
	users map[string]*entity.User
}

func (r *memUserRepo) GetByID(ctx context.Context, id string) (*entity.User, error) {
	u, ok := r.users[id]
	if !ok {
		return nil, errors.NotFound("User", nil)
	}
	return u, nil
}

func (r *memUserRepo) GetByIDs(ctx context.Context, ids []string) (map[string]*entity.User, error) {
	out := make(map[string]*entity.User, len(ids))
	for _, id := range ids {
		if u, ok := r.users[id]; ok {
			out[id] = u
		}
	}
	return out, nil
}

func (r *memUserRepo) ListByRole(ctx context.Context, role string) ([]*entity.User, error) {
	var out []*entity.User
	for _, u := range r.users {
		if u.Role == role {
			out = append(out, u)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

type memCourseRepo struct {
	courses []*entity.Course
	err     error
}

func (r *memCourseRepo) ListByTeacher(ctx context.Context, teacherID string) ([]*entity.Course, error) {
	var out []*entity.Course
	for _, c := range r.courses {
		if c.TeacherID == teacherID {
			out = append(out, c)
		}
	}
	return out, r.err
}

func (r *memCourseRepo) ListByStudent(ctx context.Context, studentID string) ([]*entity.Course, error) {
	var out []*entity.Course
	for _, c := range r.courses {
		if c.HasStudent(studentID) {
			out = append(out, c)
		}
	}
	return out, r.err
}

func (r *memCourseRepo) IsEnrolledWithTeacher(ctx context.Context, teacherID, studentID string) (bool, error) {
	if r.err != nil {
		return false, r.err
	}
	for _, c := range r.courses {
		if c.TeacherID == teacherID && c.HasStudent(studentID) {
			return true, nil
		}
	}
	return false, nil
}

type memFileMetadataRepo struct {
	mu    sync.Mutex
	files map[string]*entity.FileMetadata
}

func newMemFileMetadataRepo() *memFileMetadataRepo {
	return &memFileMetadataRepo{files: make(map[string]*entity.FileMetadata)}
}

func (r *memFileMetadataRepo) Create(ctx context.Context, metadata *entity.FileMetadata) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c := *metadata
	r.files[metadata.ID] = &c
	return nil
}

func (r *memFileMetadataRepo) GetByID(ctx context.Context, id string) (*entity.FileMetadata, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.files[id]
	if !ok {
		return nil, errors.NotFound("File", nil)
	}
	c := *m
	return &c, nil
}

func (r *memFileMetadataRepo) GetByEntityID(ctx context.Context, entityType, entityID string) ([]*entity.FileMetadata, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*entity.FileMetadata
	for _, m := range r.files {
		if m.EntityType == entityType && m.EntityID == entityID {
			c := *m
			out = append(out, &c)
		}
	}
	return out, nil
}

func (r *memFileMetadataRepo) SetCommitted(ctx context.Context, ids []string, committed bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, id := range ids {
		if m, ok := r.files[id]; ok {
			m.Committed = committed
		}
	}
	return nil
}

func (r *memFileMetadataRepo) ListUncommittedBefore(ctx context.Context, cutoff time.Time, limit int) ([]*entity.FileMetadata, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*entity.FileMetadata
	for _, m := range r.files {
		if !m.Committed && m.CreatedAt.Before(cutoff) {
			c := *m
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *memFileMetadataRepo) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.files[id]; !ok {
		return errors.NotFound("File metadata", nil)
	}
	delete(r.files, id)
	return nil
}

func (r *memFileMetadataRepo) get(id string) *entity.FileMetadata {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.files[id]
}

type memFileStore struct {
	mu        sync.Mutex
	objects   map[string][]byte
	types     map[string]string
	uploads   int
	failOn    int
	deleteErr error
}

func newMemFileStore() *memFileStore {
	return &memFileStore{objects: make(map[string][]byte), types: make(map[string]string)}
}

func (s *memFileStore) UploadFile(ctx context.Context, file io.Reader, fileType, originalName, folder string) (*service.UploadResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.uploads++
	if s.failOn > 0 && s.uploads == s.failOn {
		return nil, fmt.Errorf("bucket unavailable")
	}
	data, err := io.ReadAll(file)
	if err != nil {
		return nil, err
	}
	name := fmt.Sprintf("%s/%d-%s", folder, s.uploads, originalName)
	s.objects[name] = data
	s.types[name] = fileType
	return &service.UploadResult{URL: "mem://" + name, ObjectName: name, Size: int64(len(data))}, nil
}

func (s *memFileStore) GetFileContent(ctx context.Context, objectName string) (io.ReadCloser, string, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.objects[objectName]
	if !ok {
		return nil, "", 0, fmt.Errorf("object %s not found", objectName)
	}
	return io.NopCloser(bytes.NewReader(data)), s.types[objectName], int64(len(data)), nil
}

func (s *memFileStore) DeleteFile(ctx context.Context, objectName string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.deleteErr != nil {
		return s.deleteErr
	}
	delete(s.objects, objectName)
	delete(s.types, objectName)
	return nil
}

func (s *memFileStore) Close() error { return nil }

func (s *memFileStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.objects)
}

// testClock advances one second per reading so creation order is strict.
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Second)
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type fixture struct {
	messages      *memMessageRepo
	users         *memUserRepo
	courses       *memCourseRepo
	fileMetadata  *memFileMetadataRepo
	files         *memFileStore
	clock         *testClock
	limiter       *ratelimit.RateLimiter
	permissions   *PermissionUseCase
	threads       *ThreadUseCase
	attachments   *AttachmentUseCase
	messageUC     *MessageUseCase
	conversations *ConversationUseCase
	notifications *NotificationUseCase
}

// newFixture seeds two teachers, three students and an admin:
// t1 teaches s1 and s2, t2 teaches s2, s3 is not enrolled anywhere.
func newFixture(t *testing.T) *fixture {
	t.Helper()

	users := &memUserRepo{users: map[string]*entity.User{
		"t1": {ID: "t1", Name: "Tina Teacher", Email: "tina@school.test", Role: entity.RoleTeacher},
		"t2": {ID: "t2", Name: "tom Teacher", Email: "tom@school.test", Role: entity.RoleTeacher},
		"s1": {ID: "s1", Name: "Sam Student", Email: "sam@school.test", Role: entity.RoleStudent},
		"s2": {ID: "s2", Name: "Sue Student", Email: "sue@school.test", Role: entity.RoleStudent},
		"s3": {ID: "s3", Name: "Zed Student", Email: "zed@school.test", Role: entity.RoleStudent},
		"a1": {ID: "a1", Name: "Ada Admin", Email: "ada@school.test", Role: "admin"},
	}}
	courses := &memCourseRepo{courses: []*entity.Course{
		{ID: "c1", Title: "Algebra", TeacherID: "t1", Students: []string{"s1", "s2"}},
		{ID: "c2", Title: "Biology", TeacherID: "t2", Students: []string{"s2"}},
	}}

	f := &fixture{
		messages:     newMemMessageRepo(),
		users:        users,
		courses:      courses,
		fileMetadata: newMemFileMetadataRepo(),
		files:        newMemFileStore(),
		clock:        &testClock{now: time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)},
		limiter: ratelimit.NewRateLimiter(map[string]ratelimit.Limit{
			ratelimit.ActionSendMessage: {PerMinute: 6000, Burst: 1000},
		}),
	}

	f.permissions = NewPermissionUseCase(users, courses)
	f.threads = NewThreadUseCase(f.messages, nil)
	f.threads.now = f.clock.Now
	f.attachments = NewAttachmentUseCase(f.files, f.fileMetadata, f.messages, config.AttachmentConfig{
		MaxFiles:          2,
		MaxSize:           1024,
		AllowedExtensions: []string{"pdf", "txt"},
	}, nil)
	f.attachments.now = f.clock.Now
	f.messageUC = NewMessageUseCase(f.messages, users, f.permissions, f.threads, f.attachments, f.limiter, nil, config.MessagingConfig{
		MaxContentLength: 50,
		MaxSubjectLength: 10,
	})
	f.messageUC.now = f.clock.Now
	f.conversations = NewConversationUseCase(f.messages, users)
	f.notifications = NewNotificationUseCase(f.messages)

	return f
}

func (f *fixture) send(t *testing.T, from, to, content string) *entity.Message {
	t.Helper()
	m, err := f.messageUC.Send(context.Background(), from, SendMessageInput{RecipientID: to, Content: content})
	if err != nil {
		t.Fatalf("send %s -> %s failed: %v", from, to, err)
	}
	return m
}

func (f *fixture) reply(t *testing.T, from, to, parentID, content string) *entity.Message {
	t.Helper()
	m, err := f.messageUC.Send(context.Background(), from, SendMessageInput{RecipientID: to, Content: content, ReplyTo: parentID})
	if err != nil {
		t.Fatalf("reply %s -> %s failed: %v", from, to, err)
	}
	return m
}
