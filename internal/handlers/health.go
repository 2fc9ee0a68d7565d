package handlers

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"

	"perfume-store/internal/apperrors"
	"perfume-store/internal/responses"
)

func Health(env *Env) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		if err := env.Health.Ping(ctx); err != nil {
			env.fail(c, apperrors.Wrap(apperrors.CodeDependency, err, "database unavailable"))
			return
		}
		responses.OK(c, gin.H{"status": "ok"})
	}
}
