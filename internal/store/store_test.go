package store

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.mongodb.org/mongo-driver/mongo"
)

func TestAmbiguous(t *testing.T) {
	assert.False(t, Ambiguous(nil))
	assert.False(t, Ambiguous(ErrDuplicate))
	assert.False(t, Ambiguous(ErrNotFound))
	assert.False(t, Ambiguous(errors.New("document failed validation")))

	assert.True(t, Ambiguous(context.DeadlineExceeded))
	assert.True(t, Ambiguous(fmt.Errorf("insert order: %w", context.Canceled)))
	assert.True(t, Ambiguous(mongo.CommandError{Message: "connection reset", Labels: []string{"NetworkError"}}))
}
