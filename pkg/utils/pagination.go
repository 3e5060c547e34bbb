package utils

import (
	"strconv"

	"github.com/labstack/echo/v4"
)

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

type PaginationParams struct {
	Page     int
	PageSize int
	Offset   int
}

// GetPaginationParams reads ?page= and ?pageSize= (or the older ?limit=).
// Out of range values fall back to defaults rather than failing.
func GetPaginationParams(c echo.Context) PaginationParams {
	page, _ := strconv.Atoi(c.QueryParam("page"))

	sizeParam := c.QueryParam("pageSize")
	if sizeParam == "" {
		sizeParam = c.QueryParam("limit")
	}
	pageSize, _ := strconv.Atoi(sizeParam)

	return NewPagination(page, pageSize)
}

func NewPagination(page, pageSize int) PaginationParams {
	if page <= 0 {
		page = 1
	}

	if pageSize <= 0 || pageSize > MaxPageSize {
		pageSize = DefaultPageSize
	}

	return PaginationParams{
		Page:     page,
		PageSize: pageSize,
		Offset:   (page - 1) * pageSize,
	}
}
