package handlers

import (
	"github.com/gin-gonic/gin"

	"perfume-store/internal/apperrors"
	"perfume-store/internal/responses"
)

// AdminLogin signs in like Login but refuses customer accounts. The session
// issued for a refused account is revoked before responding.
func AdminLogin(env *Env) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req loginRequest
		if err := bindJSON(c, &req, false); err != nil {
			env.fail(c, err)
			return
		}

		ctx := c.Request.Context()
		session, err := env.Accounts.Login(ctx, req.Email, req.Password)
		if err != nil {
			env.fail(c, err)
			return
		}
		if !session.User.IsAdmin() {
			if err := env.Accounts.Logout(ctx, session.RefreshToken); err != nil {
				env.Log.Error(ctx, "admin_login.revoke_failed", err)
			}
			env.fail(c, apperrors.New(apperrors.CodeForbidden, "admin access required"))
			return
		}

		env.setTokenCookie(c, session.AccessToken, int(session.ExpiresIn))
		responses.OK(c, newSessionView(session))
	}
}
