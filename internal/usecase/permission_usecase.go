package usecase

import (
	"context"
	"sort"
	"strings"

	"learnhub/internal/domain/entity"
	"learnhub/internal/domain/repository"
	"learnhub/pkg/errors"
	"learnhub/pkg/logger"
)

// PermissionUseCase is the only place that decides who may message whom.
// Both send and the messageable directory go through it.
type PermissionUseCase struct {
	userRepo   repository.UserRepository
	courseRepo repository.CourseRepository
}

func NewPermissionUseCase(userRepo repository.UserRepository, courseRepo repository.CourseRepository) *PermissionUseCase {
	return &PermissionUseCase{
		userRepo:   userRepo,
		courseRepo: courseRepo,
	}
}

// CanMessage fails closed: unknown users and lookup errors deny.
func (uc *PermissionUseCase) CanMessage(ctx context.Context, senderID, recipientID string) bool {
	if senderID == "" || recipientID == "" || senderID == recipientID {
		return false
	}

	sender, err := uc.userRepo.GetByID(ctx, senderID)
	if err != nil {
		if !errors.IsNotFound(err) {
			logger.Error("CanMessage: failed to load sender %s: %v", senderID, err)
		}
		return false
	}

	recipient, err := uc.userRepo.GetByID(ctx, recipientID)
	if err != nil {
		if !errors.IsNotFound(err) {
			logger.Error("CanMessage: failed to load recipient %s: %v", recipientID, err)
		}
		return false
	}

	return uc.canMessageUsers(ctx, sender, recipient)
}

func (uc *PermissionUseCase) canMessageUsers(ctx context.Context, sender, recipient *entity.User) bool {
	switch {
	case sender.IsTeacher() && recipient.IsTeacher():
		return true
	case sender.IsTeacher() && recipient.IsStudent():
		return uc.enrolled(ctx, sender.ID, recipient.ID)
	case sender.IsStudent() && recipient.IsTeacher():
		return uc.enrolled(ctx, recipient.ID, sender.ID)
	default:
		return false
	}
}

func (uc *PermissionUseCase) enrolled(ctx context.Context, teacherID, studentID string) bool {
	ok, err := uc.courseRepo.IsEnrolledWithTeacher(ctx, teacherID, studentID)
	if err != nil {
		logger.Error("CanMessage: enrollment lookup failed for teacher %s student %s: %v", teacherID, studentID, err)
		return false
	}
	return ok
}

// ListMessageable returns everyone the caller may start a conversation
// with, sorted by name. search filters name and email case-insensitively.
func (uc *PermissionUseCase) ListMessageable(ctx context.Context, callerID, search string) ([]*entity.UserSummary, error) {
	result := []*entity.UserSummary{}

	caller, err := uc.userRepo.GetByID(ctx, callerID)
	if err != nil {
		if errors.IsNotFound(err) {
			return result, nil
		}
		return nil, err
	}

	var candidates []*entity.User
	switch {
	case caller.IsTeacher():
		candidates, err = uc.teacherDirectory(ctx, caller.ID)
	case caller.IsStudent():
		candidates, err = uc.studentDirectory(ctx, caller.ID)
	default:
		return result, nil
	}
	if err != nil {
		return nil, err
	}

	term := strings.ToLower(strings.TrimSpace(search))
	seen := make(map[string]bool, len(candidates))
	for _, u := range candidates {
		if u.ID == caller.ID || seen[u.ID] {
			continue
		}
		if term != "" && !matchesSearch(u, term) {
			continue
		}
		seen[u.ID] = true
		result = append(result, u.Summary())
	}

	sort.SliceStable(result, func(i, j int) bool {
		a, b := strings.ToLower(result[i].Name), strings.ToLower(result[j].Name)
		if a != b {
			return a < b
		}
		return result[i].ID < result[j].ID
	})

	return result, nil
}

// teacherDirectory: students of owned courses plus every other teacher.
func (uc *PermissionUseCase) teacherDirectory(ctx context.Context, teacherID string) ([]*entity.User, error) {
	courses, err := uc.courseRepo.ListByTeacher(ctx, teacherID)
	if err != nil {
		return nil, err
	}

	var studentIDs []string
	for _, course := range courses {
		studentIDs = append(studentIDs, course.Students...)
	}

	students, err := uc.userRepo.GetByIDs(ctx, unique(studentIDs))
	if err != nil {
		return nil, err
	}

	var users []*entity.User
	for _, id := range sortedKeys(students) {
		if students[id].IsStudent() {
			users = append(users, students[id])
		}
	}

	teachers, err := uc.userRepo.ListByRole(ctx, entity.RoleTeacher)
	if err != nil {
		return nil, err
	}

	return append(users, teachers...), nil
}

func (uc *PermissionUseCase) studentDirectory(ctx context.Context, studentID string) ([]*entity.User, error) {
	courses, err := uc.courseRepo.ListByStudent(ctx, studentID)
	if err != nil {
		return nil, err
	}

	var teacherIDs []string
	for _, course := range courses {
		teacherIDs = append(teacherIDs, course.TeacherID)
	}

	teachers, err := uc.userRepo.GetByIDs(ctx, unique(teacherIDs))
	if err != nil {
		return nil, err
	}

	var users []*entity.User
	for _, id := range sortedKeys(teachers) {
		if teachers[id].IsTeacher() {
			users = append(users, teachers[id])
		}
	}
	return users, nil
}

func matchesSearch(u *entity.User, term string) bool {
	return strings.Contains(strings.ToLower(u.Name), term) ||
		strings.Contains(strings.ToLower(u.Email), term)
}

func unique(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

func sortedKeys(m map[string]*entity.User) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
