package repository

import (
	"context"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"

	"learnhub/internal/domain/entity"
	"learnhub/internal/domain/repository"
	"learnhub/pkg/errors"
	"learnhub/pkg/logger"
)

type firestoreCourseRepository struct {
	client *firestore.Client
}

func NewFirestoreCourseRepository(client *firestore.Client) repository.CourseRepository {
	return &firestoreCourseRepository{
		client: client,
	}
}

func (r *firestoreCourseRepository) ListByTeacher(ctx context.Context, teacherID string) ([]*entity.Course, error) {
	return r.list(ctx, r.client.Collection("courses").Where("teacherId", "==", teacherID))
}

func (r *firestoreCourseRepository) ListByStudent(ctx context.Context, studentID string) ([]*entity.Course, error) {
	return r.list(ctx, r.client.Collection("courses").Where("students", "array-contains", studentID))
}

func (r *firestoreCourseRepository) IsEnrolledWithTeacher(ctx context.Context, teacherID, studentID string) (bool, error) {
	iter := r.client.Collection("courses").
		Where("teacherId", "==", teacherID).
		Where("students", "array-contains", studentID).
		Limit(1).
		Documents(ctx)
	defer iter.Stop()

	_, err := iter.Next()
	if err == iterator.Done {
		return false, nil
	}
	if err != nil {
		return false, errors.Internal("Failed to query enrollment", err)
	}

	return true, nil
}

func (r *firestoreCourseRepository) list(ctx context.Context, query firestore.Query) ([]*entity.Course, error) {
	docs, err := query.Documents(ctx).GetAll()
	if err != nil {
		return nil, errors.Internal("Failed to query courses", err)
	}

	var courses []*entity.Course
	for _, doc := range docs {
		var course entity.Course
		if err := doc.DataTo(&course); err != nil {
			logger.Error("Skipping malformed course %s: %v", doc.Ref.ID, err)
			continue
		}
		course.ID = doc.Ref.ID
		courses = append(courses, &course)
	}

	return courses, nil
}
