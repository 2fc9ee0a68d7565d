package apperrors

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAsFindsWrappedError(t *testing.T) {
	base := New(CodeInsufficientStock, "not enough").WithDetails(map[string]int{"available": 1})
	wrapped := fmt.Errorf("reserve: %w", base)

	typed := As(wrapped)
	require.NotNil(t, typed)
	assert.Equal(t, CodeInsufficientStock, typed.Code())
	assert.Equal(t, map[string]int{"available": 1}, typed.Details())
	assert.True(t, Is(wrapped, CodeInsufficientStock))
	assert.False(t, Is(wrapped, CodeNotFound))
}

func TestMetadataStatusMapping(t *testing.T) {
	cases := map[Code]int{
		CodeValidation:        http.StatusBadRequest,
		CodeInvalidStatus:     http.StatusBadRequest,
		CodeInsufficientStock: http.StatusConflict,
		CodeInvalidTransition: http.StatusConflict,
		CodeNotFound:          http.StatusNotFound,
		CodeForbidden:         http.StatusForbidden,
		CodeDependency:        http.StatusServiceUnavailable,
		Code("UNKNOWN"):       http.StatusInternalServerError,
	}
	for code, status := range cases {
		assert.Equal(t, status, MetadataFor(code).HTTPStatus, code)
	}
	assert.True(t, MetadataFor(CodeDependency).Retryable)
	assert.False(t, MetadataFor(CodeInternal).Retryable)
}

func TestFromStoreClassifiesTimeouts(t *testing.T) {
	err := FromStore(fmt.Errorf("find: %w", context.DeadlineExceeded), "load order")
	assert.True(t, Is(err, CodeDependency))
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	err = FromStore(errors.New("boom"), "load order")
	assert.True(t, Is(err, CodeInternal))

	coded := New(CodeNotFound, "order not found")
	assert.Same(t, coded, FromStore(coded, "ignored"))
	assert.NoError(t, FromStore(nil, "nothing"))
}

func TestFromValidationCollectsFieldDetails(t *testing.T) {
	type payload struct {
		Email    string `validate:"required,email"`
		Password string `validate:"min=6"`
	}
	err := validator.New().Struct(payload{Email: "nope", Password: "123"})
	require.Error(t, err)

	converted := As(FromValidation(err))
	require.NotNil(t, converted)
	assert.Equal(t, CodeValidation, converted.Code())
	assert.Equal(t, map[string]string{
		"email":    "must be a valid email",
		"password": "must be at least 6",
	}, converted.Details())
}

func TestFromValidationWrapsDecodeErrors(t *testing.T) {
	err := FromValidation(errors.New("unexpected EOF"))
	assert.True(t, Is(err, CodeValidation))
	assert.Nil(t, FromValidation(nil))
}
