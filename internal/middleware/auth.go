package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"perfume-store/internal/apperrors"
	"perfume-store/internal/auth"
	"perfume-store/internal/logger"
	"perfume-store/internal/responses"
)

const (
	identityKey = "identity"
	// TokenCookie carries the access token for browser clients.
	TokenCookie = "token"
)

// AuthGuard resolves the caller from a bearer header, the token cookie or
// the token query parameter, and rejects the request when none verifies.
func AuthGuard(issuer *auth.Issuer, log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw, ok := bearerToken(c)
		if !ok {
			responses.Error(c, log, apperrors.New(apperrors.CodeUnauthorized, "missing token"))
			return
		}

		id, err := issuer.Parse(raw)
		if err != nil {
			if log != nil {
				log.Debug(c.Request.Context(), "auth.token_rejected")
			}
			responses.Error(c, log, apperrors.New(apperrors.CodeUnauthorized, "invalid or expired token"))
			return
		}

		ctx := auth.WithIdentity(c.Request.Context(), id)
		if log != nil {
			ctx = log.WithUserID(ctx, id.UserID.Hex())
		}
		c.Request = c.Request.WithContext(ctx)
		c.Set(identityKey, id)
		c.Next()
	}
}

// RequireAdmin must run after AuthGuard.
func RequireAdmin(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := Identity(c)
		if !ok {
			responses.Error(c, log, apperrors.New(apperrors.CodeUnauthorized, "missing token"))
			return
		}
		if !id.IsAdmin() {
			responses.Error(c, log, apperrors.New(apperrors.CodeForbidden, "admin access required"))
			return
		}
		c.Next()
	}
}

func Identity(c *gin.Context) (auth.Identity, bool) {
	value, ok := c.Get(identityKey)
	if !ok {
		return auth.Identity{}, false
	}
	id, ok := value.(auth.Identity)
	return id, ok
}

func bearerToken(c *gin.Context) (string, bool) {
	if raw := strings.TrimSpace(c.GetHeader("Authorization")); raw != "" {
		parts := strings.Fields(raw)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			return "", false
		}
		return parts[1], true
	}
	if cookie, err := c.Cookie(TokenCookie); err == nil && strings.TrimSpace(cookie) != "" {
		return cookie, true
	}
	if query := strings.TrimSpace(c.Query("token")); query != "" {
		return query, true
	}
	return "", false
}
