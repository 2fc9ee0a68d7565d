package auth

import (
	"context"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"perfume-store/internal/models"
)

// Identity is the resolved caller behind a credential.
type Identity struct {
	UserID primitive.ObjectID
	Role   models.Role
}

func (i Identity) IsAdmin() bool {
	return i.Role == models.RoleAdmin
}

// Owns reports whether the identity may act on a resource owned by userID.
func (i Identity) Owns(userID primitive.ObjectID) bool {
	return i.IsAdmin() || i.UserID == userID
}

type identityKey struct{}

func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

func IdentityFrom(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey{}).(Identity)
	return id, ok
}
