package handlers

import (
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"perfume-store/internal/apperrors"
)

// parsePaginationParams reads page and limit. Missing values are left at
// zero so the service applies its own defaults.
func parsePaginationParams(c *gin.Context) (int, int, error) {
	page, err := positiveQueryInt(c, "page")
	if err != nil {
		return 0, 0, err
	}
	limit, err := positiveQueryInt(c, "limit")
	if err != nil {
		return 0, 0, err
	}
	return page, limit, nil
}

func positiveQueryInt(c *gin.Context, name string) (int, error) {
	raw := strings.TrimSpace(c.Query(name))
	if raw == "" {
		return 0, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value < 1 {
		return 0, apperrors.New(apperrors.CodeValidation, "invalid pagination").
			WithDetails(map[string]string{name: "must be a positive integer"})
	}
	return value, nil
}
