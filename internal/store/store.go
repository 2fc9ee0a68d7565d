// Package store declares the persistence contracts shared by the catalog,
// order ledger and account services. Implementations live in
// internal/database (MongoDB) and internal/store/memory.
package store

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"perfume-store/internal/models"
)

var (
	// ErrNotFound is returned when a document does not exist.
	ErrNotFound = errors.New("store: not found")
	// ErrDuplicate is returned when a unique constraint is violated.
	ErrDuplicate = errors.New("store: duplicate key")
)

// Ambiguous reports whether a failed write may still have been applied by
// the server: deadlines, cancellations, network errors and server timeouts.
func Ambiguous(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, context.Canceled) ||
		mongo.IsTimeout(err) ||
		mongo.IsNetworkError(err)
}

// ProductQuery filters the catalog listing. Empty fields do not filter.
type ProductQuery struct {
	Category models.Category
	Search   string
	Featured bool
}

// ProductPatch carries optional product field updates.
type ProductPatch struct {
	Name          *string
	NameAr        *string
	Price         *float64
	Currency      *string
	Description   *string
	DescriptionAr *string
	Category      *models.Category
	Image         *string
	BoxImage      *string
	Stock         *int
	Featured      *bool
}

type Products interface {
	List(ctx context.Context, q ProductQuery) ([]models.Product, error)
	Get(ctx context.Context, id primitive.ObjectID) (*models.Product, error)
	GetMany(ctx context.Context, ids []primitive.ObjectID) (map[primitive.ObjectID]models.Product, error)
	Insert(ctx context.Context, p *models.Product) error
	Update(ctx context.Context, id primitive.ObjectID, patch ProductPatch, now time.Time) (*models.Product, error)
	Delete(ctx context.Context, id primitive.ObjectID) (*models.Product, error)
	Count(ctx context.Context) (int64, error)

	// DecrementStock subtracts qty only when the current stock is at least qty.
	// It reports false without error when the condition does not hold.
	DecrementStock(ctx context.Context, id primitive.ObjectID, qty int) (bool, error)
	// IncrementStock adds qty and reports false when the product is missing.
	IncrementStock(ctx context.Context, id primitive.ObjectID, qty int) (bool, error)
}

// OrderQuery drives the admin order listing.
type OrderQuery struct {
	Status  models.OrderStatus
	Search  string
	UserIDs []primitive.ObjectID
	Skip    int64
	Limit   int64
}

type Orders interface {
	Insert(ctx context.Context, o *models.Order) error
	Get(ctx context.Context, id primitive.ObjectID) (*models.Order, error)
	ListByUser(ctx context.Context, userID primitive.ObjectID) ([]models.Order, error)
	List(ctx context.Context, q OrderQuery) ([]models.Order, int64, error)
	Recent(ctx context.Context, limit int64) ([]models.Order, error)
	ListByStatusBetween(ctx context.Context, status models.OrderStatus, start, end time.Time) ([]models.Order, error)
	Count(ctx context.Context) (int64, error)

	// UpdateStatus sets the status to `to` only while it still equals `from`.
	// It reports false without error when another writer got there first.
	UpdateStatus(ctx context.Context, id primitive.ObjectID, from, to models.OrderStatus, now time.Time) (bool, error)
}

// UserQuery drives the admin customer listing.
type UserQuery struct {
	Role   models.Role
	Search string
	Skip   int64
	Limit  int64
}

type Users interface {
	Insert(ctx context.Context, u *models.User) error
	Get(ctx context.Context, id primitive.ObjectID) (*models.User, error)
	GetMany(ctx context.Context, ids []primitive.ObjectID) (map[primitive.ObjectID]models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	Replace(ctx context.Context, u *models.User) error
	DeleteByEmail(ctx context.Context, email string) error
	List(ctx context.Context, q UserQuery) ([]models.User, int64, error)
	// SearchIDs returns ids of users whose name or email matches search.
	SearchIDs(ctx context.Context, search string) ([]primitive.ObjectID, error)
	CountByRole(ctx context.Context, role models.Role) (int64, error)
}

type RefreshTokens interface {
	Insert(ctx context.Context, t *models.RefreshToken) error
	FindActive(ctx context.Context, hash string) (*models.RefreshToken, error)
	Revoke(ctx context.Context, id primitive.ObjectID, replacedBy *primitive.ObjectID) error
	RevokeByHash(ctx context.Context, hash string) (bool, error)
}

// Store bundles the repositories with the backing connection lifecycle.
type Store interface {
	Products() Products
	Orders() Orders
	Users() Users
	RefreshTokens() RefreshTokens
	Ping(ctx context.Context) error
	Close(ctx context.Context) error
}
