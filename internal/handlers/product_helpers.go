package handlers

import (
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"perfume-store/internal/apperrors"
	"perfume-store/internal/catalog"
)

func parseProductListQuery(c *gin.Context) (catalog.ListQuery, error) {
	query := catalog.ListQuery{
		Category: strings.TrimSpace(c.Query("category")),
		Search:   strings.TrimSpace(c.Query("search")),
	}
	if raw := strings.TrimSpace(c.Query("featured")); raw != "" {
		featured, err := parseBoolValue(raw)
		if err != nil {
			return catalog.ListQuery{}, apperrors.New(apperrors.CodeValidation, "invalid query").
				WithDetails(map[string]string{"featured": "must be true or false"})
		}
		query.Featured = featured
	}
	return query, nil
}

// parseBoolValue accepts strconv booleans plus the "on" value sent by
// HTML checkboxes.
func parseBoolValue(value string) (bool, error) {
	value = strings.TrimSpace(strings.ToLower(value))
	if value == "on" {
		return true, nil
	}
	return strconv.ParseBool(value)
}
