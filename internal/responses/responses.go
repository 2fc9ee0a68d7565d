// Package responses renders JSON bodies for gin handlers and middleware.
package responses

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"perfume-store/internal/apperrors"
	"perfume-store/internal/logger"
)

// ErrorBody is the single error shape every endpoint returns.
type ErrorBody struct {
	Error     string `json:"error"`
	Message   string `json:"message"`
	Details   any    `json:"details,omitempty"`
	Retryable bool   `json:"retryable"`
}

func OK(c *gin.Context, data any) {
	c.JSON(http.StatusOK, data)
}

func Created(c *gin.Context, data any) {
	c.JSON(http.StatusCreated, data)
}

// Error maps err to its coded body and aborts the chain. Server-side
// failures are logged with their cause; their message stays generic.
func Error(c *gin.Context, log *logger.Logger, err error) {
	if err == nil {
		err = errors.New("unknown error")
	}

	typed := apperrors.As(err)
	if typed == nil {
		typed = apperrors.Wrap(apperrors.CodeInternal, err, "unexpected error")
	}
	meta := apperrors.MetadataFor(typed.Code())

	body := ErrorBody{
		Error:     string(typed.Code()),
		Message:   meta.PublicMessage,
		Details:   typed.Details(),
		Retryable: meta.Retryable,
	}
	if meta.HTTPStatus < http.StatusInternalServerError {
		if msg := typed.Message(); msg != "" {
			body.Message = msg
		}
	} else if log != nil {
		log.ErrorEvent(c.Request.Context(), err).
			Str("error_code", string(typed.Code())).
			Str("path", c.Request.URL.Path).
			Msg("request.error")
	}

	c.AbortWithStatusJSON(meta.HTTPStatus, body)
}
