package response

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	apperrors "learnhub/pkg/errors"
	"learnhub/pkg/logger"
)

// Body holds the endpoint specific keys of the envelope, e.g.
// {"message": msg} or {"count": 3}. "success" and "timestamp" are added.
type Body map[string]interface{}

func write(c echo.Context, status int, success bool, body Body) error {
	out := make(map[string]interface{}, len(body)+2)
	for k, v := range body {
		out[k] = v
	}
	out["success"] = success
	out["timestamp"] = time.Now().UTC().Format(time.RFC3339)
	return c.JSON(status, out)
}

func Success(c echo.Context, body Body) error {
	return write(c, http.StatusOK, true, body)
}

func Created(c echo.Context, body Body) error {
	return write(c, http.StatusCreated, true, body)
}

func Paginated(c echo.Context, key string, items interface{}, total int64, page, pageSize int) error {
	totalPages := 0
	if pageSize > 0 {
		totalPages = int(total) / pageSize
		if int(total)%pageSize > 0 {
			totalPages++
		}
	}

	return write(c, http.StatusOK, true, Body{
		key:          items,
		"total":      total,
		"page":       page,
		"pageSize":   pageSize,
		"totalPages": totalPages,
	})
}

func Error(c echo.Context, err error) error {
	var validationErr validator.ValidationErrors
	if errors.As(err, &validationErr) {
		return handleValidationError(c, validationErr)
	}

	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		if appErr.Status >= http.StatusInternalServerError {
			logger.Error("%s %s: %v", c.Request().Method, c.Request().URL.Path, appErr)
			return internalError(c, appErr.Code, appErr.Message, appErr.Err)
		}
		return write(c, appErr.Status, false, Body{
			"code":    appErr.Code,
			"message": appErr.Message,
		})
	}

	var httpErr *echo.HTTPError
	if errors.As(err, &httpErr) {
		return write(c, httpErr.Code, false, Body{
			"code":    httpCode(httpErr.Code),
			"message": httpMessage(httpErr),
		})
	}

	logger.Error("%s %s: unexpected error: %v", c.Request().Method, c.Request().URL.Path, err)
	return internalError(c, apperrors.CodeInternal, "An unexpected error occurred", err)
}

// internalError hides the cause unless echo runs in debug mode.
func internalError(c echo.Context, code, message string, cause error) error {
	body := Body{
		"code":    code,
		"message": message,
	}
	if c.Echo().Debug && cause != nil {
		body["error"] = cause.Error()
	}
	return write(c, http.StatusInternalServerError, false, body)
}

func handleValidationError(c echo.Context, validationErr validator.ValidationErrors) error {
	for _, err := range validationErr {
		field := strings.ToLower(err.Field())
		param := err.Param()

		var message string
		switch err.Tag() {
		case "required":
			message = field + " is required"
		case "min":
			message = field + " must be at least " + param
		case "max":
			message = field + " must be at most " + param
		case "oneof":
			message = field + " must be one of: " + param
		case "email":
			message = field + " must be a valid email address"
		default:
			message = field + " is invalid"
		}

		return write(c, http.StatusBadRequest, false, Body{
			"code":    apperrors.CodeValidation,
			"message": message,
		})
	}

	return write(c, http.StatusBadRequest, false, Body{
		"code":    apperrors.CodeValidation,
		"message": "Invalid input data",
	})
}

// HTTPErrorHandler makes errors raised by echo itself (unknown routes,
// middleware rejections) use the same envelope as handlers.
func HTTPErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}
	if werr := Error(c, err); werr != nil {
		logger.Error("failed to write error response: %v", werr)
	}
}

func httpCode(status int) string {
	switch status {
	case http.StatusBadRequest:
		return apperrors.CodeBadRequest
	case http.StatusUnauthorized:
		return apperrors.CodeUnauthorized
	case http.StatusForbidden:
		return apperrors.CodeForbidden
	case http.StatusNotFound:
		return apperrors.CodeNotFound
	case http.StatusTooManyRequests:
		return apperrors.CodeTooManyRequests
	default:
		if status >= http.StatusInternalServerError {
			return apperrors.CodeInternal
		}
		return strings.ToUpper(strings.ReplaceAll(http.StatusText(status), " ", "_"))
	}
}

func httpMessage(httpErr *echo.HTTPError) string {
	if msg, ok := httpErr.Message.(string); ok {
		return msg
	}
	return http.StatusText(httpErr.Code)
}
