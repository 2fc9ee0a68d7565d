package database

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"perfume-store/internal/store"
)

const (
	productsCollection      = "products"
	ordersCollection        = "orders"
	usersCollection         = "users"
	refreshTokensCollection = "refresh_tokens"
)

// Connect dials MongoDB and verifies the primary is reachable.
func Connect(ctx context.Context, uri string) (*mongo.Client, error) {
	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(connectCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongo: %w", err)
	}
	return client, nil
}

// Store is the MongoDB-backed store.Store.
type Store struct {
	client *mongo.Client
	db     *mongo.Database
}

func NewStore(client *mongo.Client, dbName string) *Store {
	return &Store{client: client, db: client.Database(dbName)}
}

func (s *Store) Database() *mongo.Database {
	return s.db
}

func (s *Store) Products() store.Products {
	return productRepo{coll: s.db.Collection(productsCollection)}
}

func (s *Store) Orders() store.Orders {
	return orderRepo{coll: s.db.Collection(ordersCollection)}
}

func (s *Store) Users() store.Users {
	return userRepo{coll: s.db.Collection(usersCollection)}
}

func (s *Store) RefreshTokens() store.RefreshTokens {
	return tokenRepo{coll: s.db.Collection(refreshTokensCollection)}
}

func (s *Store) Ping(ctx context.Context) error {
	checkCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	return s.client.Ping(checkCtx, readpref.Primary())
}

func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

func notFound(err error) error {
	if err == mongo.ErrNoDocuments {
		return store.ErrNotFound
	}
	return err
}

func duplicate(err error) error {
	if mongo.IsDuplicateKeyError(err) {
		return store.ErrDuplicate
	}
	return err
}
