package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"perfume-store/internal/models"
)

func TestIssueAndParseRoundTrip(t *testing.T) {
	issuer := NewIssuer("secret", time.Minute)
	user := models.User{ID: primitive.NewObjectID(), Email: "a@b.c", Role: models.RoleAdmin}

	token, err := issuer.Issue(user)
	require.NoError(t, err)

	id, err := issuer.Parse(token)
	require.NoError(t, err)
	assert.Equal(t, user.ID, id.UserID)
	assert.True(t, id.IsAdmin())
}

func TestParseRejectsExpiredToken(t *testing.T) {
	issuer := NewIssuer("secret", time.Minute)
	issuer.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	token, err := issuer.Issue(models.User{ID: primitive.NewObjectID(), Role: models.RoleUser})
	require.NoError(t, err)

	issuer.now = time.Now
	_, err = issuer.Parse(token)
	assert.True(t, errors.Is(err, ErrInvalidToken))
}

func TestParseRejectsForeignSecretAndAlgorithm(t *testing.T) {
	other := NewIssuer("other", time.Minute)
	token, err := other.Issue(models.User{ID: primitive.NewObjectID()})
	require.NoError(t, err)

	_, err = NewIssuer("secret", time.Minute).Parse(token)
	assert.True(t, errors.Is(err, ErrInvalidToken))

	unsigned := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{"userId": primitive.NewObjectID().Hex()})
	raw, err := unsigned.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = NewIssuer("secret", time.Minute).Parse(raw)
	assert.True(t, errors.Is(err, ErrInvalidToken))
}

func TestParseDowngradesUnknownRole(t *testing.T) {
	issuer := NewIssuer("secret", time.Minute)
	token, err := issuer.Issue(models.User{ID: primitive.NewObjectID(), Role: "superuser"})
	require.NoError(t, err)

	id, err := issuer.Parse(token)
	require.NoError(t, err)
	assert.Equal(t, models.RoleUser, id.Role)
}

func TestPasswordHashing(t *testing.T) {
	hash, err := HashPassword("s3cret!")
	require.NoError(t, err)
	assert.NotEqual(t, "s3cret!", hash)
	assert.True(t, CheckPassword(hash, "s3cret!"))
	assert.False(t, CheckPassword(hash, "wrong"))
}

func TestRefreshTokenHashing(t *testing.T) {
	a, err := GenerateRefreshToken()
	require.NoError(t, err)
	b, err := GenerateRefreshToken()
	require.NoError(t, err)

	assert.Len(t, a, 64)
	assert.NotEqual(t, a, b)
	assert.Equal(t, HashToken(a), HashToken(a))
	assert.NotEqual(t, a, HashToken(a))
}

func TestIdentityOwnership(t *testing.T) {
	owner := primitive.NewObjectID()
	user := Identity{UserID: owner, Role: models.RoleUser}
	stranger := Identity{UserID: primitive.NewObjectID(), Role: models.RoleUser}
	admin := Identity{UserID: primitive.NewObjectID(), Role: models.RoleAdmin}

	assert.True(t, user.Owns(owner))
	assert.False(t, stranger.Owns(owner))
	assert.True(t, admin.Owns(owner))

	ctx := WithIdentity(context.Background(), user)
	got, ok := IdentityFrom(ctx)
	require.True(t, ok)
	assert.Equal(t, user, got)

	_, ok = IdentityFrom(context.Background())
	assert.False(t, ok)
}
