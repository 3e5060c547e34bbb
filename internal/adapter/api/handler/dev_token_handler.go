package handler

import (
	"time"

	"github.com/labstack/echo/v4"

	"learnhub/internal/domain/entity"
	"learnhub/internal/domain/repository"
	"learnhub/internal/infrastructure/jwt"
	"learnhub/pkg/errors"
	"learnhub/pkg/response"
)

const devTokenTTL = 30 * 24 * time.Hour

type DevTokenHandler struct {
	tokenService *jwt.TokenService
	userRepo     repository.UserRepository
}

func NewDevTokenHandler(tokenService *jwt.TokenService, userRepo repository.UserRepository) *DevTokenHandler {
	return &DevTokenHandler{
		tokenService: tokenService,
		userRepo:     userRepo,
	}
}

// GenerateTeacherToken issues a long lived token for the first teacher.
func (h *DevTokenHandler) GenerateTeacherToken(c echo.Context) error {
	return h.generate(c, entity.RoleTeacher)
}

// GenerateStudentToken issues a long lived token for the first student.
func (h *DevTokenHandler) GenerateStudentToken(c echo.Context) error {
	return h.generate(c, entity.RoleStudent)
}

func (h *DevTokenHandler) generate(c echo.Context, role string) error {
	users, err := h.userRepo.ListByRole(c.Request().Context(), role)
	if err != nil {
		return response.Error(c, err)
	}
	if len(users) == 0 {
		return response.Error(c, errors.NotFound("User with role "+role, nil))
	}

	token, err := h.tokenService.Issue(users[0].ID, devTokenTTL)
	if err != nil {
		return response.Error(c, errors.Internal("Failed to issue token", err))
	}

	return response.Success(c, response.Body{
		"token": token,
		"user":  users[0].Summary(),
	})
}
