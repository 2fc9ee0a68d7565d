package handlers

import (
	"context"
	"errors"
	"io"
	"strings"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"perfume-store/internal/accounts"
	"perfume-store/internal/apperrors"
	"perfume-store/internal/auth"
	"perfume-store/internal/catalog"
	"perfume-store/internal/logger"
	"perfume-store/internal/middleware"
	"perfume-store/internal/orders"
	"perfume-store/internal/reports"
	"perfume-store/internal/responses"
)

// Pinger reports whether the backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Env is what every handler closure is built from.
type Env struct {
	Ledger        *orders.Ledger
	Catalog       *catalog.Service
	Accounts      *accounts.Service
	Reports       *reports.Service
	Health        Pinger
	Log           *logger.Logger
	PublicBaseURL string
	SecureCookies bool
}

func (e *Env) fail(c *gin.Context, err error) {
	responses.Error(c, e.Log, err)
}

// caller returns the identity set by the auth guard.
func caller(c *gin.Context) (auth.Identity, error) {
	id, ok := middleware.Identity(c)
	if !ok {
		return auth.Identity{}, apperrors.New(apperrors.CodeUnauthorized, "authentication required")
	}
	return id, nil
}

func pathObjectID(c *gin.Context, name string) (primitive.ObjectID, error) {
	raw := strings.TrimSpace(c.Param(name))
	id, err := primitive.ObjectIDFromHex(raw)
	if err != nil {
		return primitive.NilObjectID, apperrors.New(apperrors.CodeValidation, "invalid id").
			WithDetails(map[string]string{name: raw})
	}
	return id, nil
}

// bindJSON decodes the body and renders binding failures as field errors.
// An empty body decodes to the zero value when allowEmpty is set.
func bindJSON(c *gin.Context, dst any, allowEmpty bool) error {
	err := c.ShouldBindJSON(dst)
	if err == nil {
		return nil
	}
	if allowEmpty && errors.Is(err, io.EOF) {
		return nil
	}
	return apperrors.FromValidation(err)
}
