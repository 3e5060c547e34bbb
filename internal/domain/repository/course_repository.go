package repository

import (
	"context"

	"learnhub/internal/domain/entity"
)

// CourseRepository is a read-only view of course ownership and enrollment.
type CourseRepository interface {
	ListByTeacher(ctx context.Context, teacherID string) ([]*entity.Course, error)
	ListByStudent(ctx context.Context, studentID string) ([]*entity.Course, error)
	// IsEnrolledWithTeacher reports whether studentID is enrolled in at
	// least one course owned by teacherID.
	IsEnrolledWithTeacher(ctx context.Context, teacherID, studentID string) (bool, error)
}
