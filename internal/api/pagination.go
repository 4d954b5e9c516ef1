package api

import (
	"strconv"

	"github.com/labstack/echo/v4"
)

const (
	defaultLimit = 100
	maxLimit     = 1000
)

// parsePagination reads limit and offset from the query. Invalid values
// fall back to the defaults; limit is capped at maxLimit.
func parsePagination(c echo.Context) (limit, offset int) {
	limit = defaultLimit
	if n, err := strconv.Atoi(c.QueryParam("limit")); err == nil && n > 0 {
		limit = min(n, maxLimit)
	}
	if n, err := strconv.Atoi(c.QueryParam("offset")); err == nil && n > 0 {
		offset = n
	}
	return limit, offset
}

// paginate returns the window [offset, offset+limit) of items, never nil.
func paginate[T any](items []T, limit, offset int) []T {
	if offset >= len(items) {
		return []T{}
	}
	return items[offset:min(offset+limit, len(items))]
}
