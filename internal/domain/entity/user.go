package entity

import (
	"time"
)

const (
	RoleTeacher = "teacher"
	RoleStudent = "student"
)

// User is owned by the account service; messaging only reads it.
type User struct {
	ID        string    `json:"id" firestore:"id" bson:"_id"`
	Name      string    `json:"name" firestore:"name" bson:"name"`
	Email     string    `json:"email" firestore:"email" bson:"email"`
	Role      string    `json:"role" firestore:"role" bson:"role"`
	Avatar    string    `json:"avatar,omitempty" firestore:"avatar,omitempty" bson:"avatar,omitempty"`
	CreatedAt time.Time `json:"createdAt" firestore:"createdAt" bson:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt" firestore:"updatedAt" bson:"updatedAt"`
}

// UserSummary is the public profile shown next to conversations.
type UserSummary struct {
	ID     string `json:"id"`
	Name   string `json:"name,omitempty"`
	Email  string `json:"email,omitempty"`
	Role   string `json:"role,omitempty"`
	Avatar string `json:"avatar,omitempty"`
}

func (u *User) Summary() *UserSummary {
	return &UserSummary{
		ID:     u.ID,
		Name:   u.Name,
		Email:  u.Email,
		Role:   u.Role,
		Avatar: u.Avatar,
	}
}

func (u *User) IsTeacher() bool {
	return u.Role == RoleTeacher
}

func (u *User) IsStudent() bool {
	return u.Role == RoleStudent
}
