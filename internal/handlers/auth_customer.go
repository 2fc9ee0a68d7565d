package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"perfume-store/internal/accounts"
	"perfume-store/internal/middleware"
	"perfume-store/internal/responses"
)

type registerRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Phone    string `json:"phone"`
}

type loginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken" binding:"required"`
}

type logoutRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type profileRequest struct {
	Name            *string `json:"name"`
	Email           *string `json:"email"`
	Phone           *string `json:"phone"`
	CurrentPassword string  `json:"currentPassword"`
	NewPassword     string  `json:"newPassword"`
}

func (e *Env) setTokenCookie(c *gin.Context, token string, maxAge int) {
	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(middleware.TokenCookie, token, maxAge, "/", "", e.SecureCookies, true)
}

func Register(env *Env) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req registerRequest
		if err := bindJSON(c, &req, false); err != nil {
			env.fail(c, err)
			return
		}

		session, err := env.Accounts.Register(c.Request.Context(), accounts.RegisterInput{
			Name:     req.Name,
			Email:    req.Email,
			Password: req.Password,
			Phone:    req.Phone,
		})
		if err != nil {
			env.fail(c, err)
			return
		}
		responses.Created(c, newSessionView(session))
	}
}

// Login also sets the httpOnly token cookie for browser clients.
func Login(env *Env) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req loginRequest
		if err := bindJSON(c, &req, false); err != nil {
			env.fail(c, err)
			return
		}

		session, err := env.Accounts.Login(c.Request.Context(), req.Email, req.Password)
		if err != nil {
			env.fail(c, err)
			return
		}
		env.setTokenCookie(c, session.AccessToken, int(session.ExpiresIn))
		responses.OK(c, newSessionView(session))
	}
}

func Refresh(env *Env) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req refreshRequest
		if err := bindJSON(c, &req, false); err != nil {
			env.fail(c, err)
			return
		}

		session, err := env.Accounts.Refresh(c.Request.Context(), req.RefreshToken)
		if err != nil {
			env.fail(c, err)
			return
		}
		env.setTokenCookie(c, session.AccessToken, int(session.ExpiresIn))
		responses.OK(c, newSessionView(session))
	}
}

// Logout revokes the refresh token when one is sent and always clears the
// cookie.
func Logout(env *Env) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req logoutRequest
		if err := bindJSON(c, &req, true); err != nil {
			env.fail(c, err)
			return
		}

		if req.RefreshToken != "" {
			if err := env.Accounts.Logout(c.Request.Context(), req.RefreshToken); err != nil {
				env.fail(c, err)
				return
			}
		}
		env.setTokenCookie(c, "", -1)
		responses.OK(c, gin.H{"message": "logged out successfully"})
	}
}

func GetMe(env *Env) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := caller(c)
		if err != nil {
			env.fail(c, err)
			return
		}

		user, err := env.Accounts.Me(c.Request.Context(), id.UserID)
		if err != nil {
			env.fail(c, err)
			return
		}
		responses.OK(c, newUserView(*user))
	}
}

func UpdateProfile(env *Env) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := caller(c)
		if err != nil {
			env.fail(c, err)
			return
		}

		var req profileRequest
		if err := bindJSON(c, &req, false); err != nil {
			env.fail(c, err)
			return
		}

		user, err := env.Accounts.UpdateProfile(c.Request.Context(), id.UserID, accounts.ProfileInput{
			Name:            req.Name,
			Email:           req.Email,
			Phone:           req.Phone,
			CurrentPassword: req.CurrentPassword,
			NewPassword:     req.NewPassword,
		})
		if err != nil {
			env.fail(c, err)
			return
		}
		responses.OK(c, newUserView(*user))
	}
}
