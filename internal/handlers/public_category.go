package handlers

import (
	"github.com/gin-gonic/gin"

	"perfume-store/internal/models"
	"perfume-store/internal/responses"
)

// GetCategories returns the fixed product categories.
func GetCategories() gin.HandlerFunc {
	return func(c *gin.Context) {
		responses.OK(c, models.Categories)
	}
}
