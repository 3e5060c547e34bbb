package router

import (
	"github.com/labstack/echo/v4"

	"learnhub/internal/adapter/api/handler"
)

// SetupDevRouter exposes token shortcuts in development only, and only when
// a dev token handler was configured.
func SetupDevRouter(e *echo.Echo, environment string) {
	devTokenHandler := handler.GetDevTokenHandler()
	if environment != "development" || devTokenHandler == nil {
		return
	}

	e.GET("/_dev/token/teacher", devTokenHandler.GenerateTeacherToken)
	e.GET("/_dev/token/student", devTokenHandler.GenerateStudentToken)
}
