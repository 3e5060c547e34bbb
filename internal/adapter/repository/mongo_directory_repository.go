package repository

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"learnhub/internal/domain/entity"
	"learnhub/internal/domain/repository"
	"learnhub/pkg/errors"
)

type mongoUserRepository struct {
	collection *mongo.Collection
}

func NewMongoUserRepository(db *mongo.Database) repository.UserRepository {
	return &mongoUserRepository{
		collection: db.Collection("users"),
	}
}

func (r *mongoUserRepository) GetByID(ctx context.Context, id string) (*entity.User, error) {
	var user entity.User
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&user)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, errors.NotFound("User", err)
		}
		return nil, errors.Internal("Failed to get user", err)
	}
	return &user, nil
}

func (r *mongoUserRepository) GetByIDs(ctx context.Context, ids []string) (map[string]*entity.User, error) {
	users := make(map[string]*entity.User, len(ids))
	if len(ids) == 0 {
		return users, nil
	}

	list, err := r.find(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return nil, err
	}
	for _, u := range list {
		users[u.ID] = u
	}
	return users, nil
}

func (r *mongoUserRepository) ListByRole(ctx context.Context, role string) ([]*entity.User, error) {
	return r.find(ctx, bson.M{"role": role})
}

func (r *mongoUserRepository) find(ctx context.Context, filter bson.M) ([]*entity.User, error) {
	cursor, err := r.collection.Find(ctx, filter)
	if err != nil {
		return nil, errors.Internal("Failed to query users", err)
	}
	defer cursor.Close(ctx)

	var users []*entity.User
	if err := cursor.All(ctx, &users); err != nil {
		return nil, errors.Internal("Failed to decode users", err)
	}
	return users, nil
}

type mongoCourseRepository struct {
	collection *mongo.Collection
}

func NewMongoCourseRepository(db *mongo.Database) repository.CourseRepository {
	return &mongoCourseRepository{
		collection: db.Collection("courses"),
	}
}

func (r *mongoCourseRepository) ListByTeacher(ctx context.Context, teacherID string) ([]*entity.Course, error) {
	return r.find(ctx, bson.M{"teacherId": teacherID})
}

// ListByStudent relies on Mongo matching a scalar against array elements.
func (r *mongoCourseRepository) ListByStudent(ctx context.Context, studentID string) ([]*entity.Course, error) {
	return r.find(ctx, bson.M{"students": studentID})
}

func (r *mongoCourseRepository) IsEnrolledWithTeacher(ctx context.Context, teacherID, studentID string) (bool, error) {
	n, err := r.collection.CountDocuments(ctx,
		bson.M{"teacherId": teacherID, "students": studentID},
		options.Count().SetLimit(1),
	)
	if err != nil {
		return false, errors.Internal("Failed to query enrollment", err)
	}
	return n > 0, nil
}

func (r *mongoCourseRepository) find(ctx context.Context, filter bson.M) ([]*entity.Course, error) {
	cursor, err := r.collection.Find(ctx, filter)
	if err != nil {
		return nil, errors.Internal("Failed to query courses", err)
	}
	defer cursor.Close(ctx)

	var courses []*entity.Course
	if err := cursor.All(ctx, &courses); err != nil {
		return nil, errors.Internal("Failed to decode courses", err)
	}
	return courses, nil
}
