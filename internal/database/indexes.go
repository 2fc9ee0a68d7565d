package database

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/multierr"

	"perfume-store/internal/logger"
)

type collectionIndexes struct {
	collection string
	models     []mongo.IndexModel
}

func indexPlan() []collectionIndexes {
	return []collectionIndexes{
		{
			collection: productsCollection,
			models: []mongo.IndexModel{
				{
					Keys:    bson.D{{Key: "category", Value: 1}, {Key: "createdAt", Value: -1}},
					Options: options.Index().SetName("category_createdAt"),
				},
				{
					Keys:    bson.D{{Key: "featured", Value: 1}, {Key: "createdAt", Value: -1}},
					Options: options.Index().SetName("featured_createdAt"),
				},
			},
		},
		{
			collection: usersCollection,
			models: []mongo.IndexModel{
				{
					Keys:    bson.D{{Key: "email", Value: 1}},
					Options: options.Index().SetName("email_unique").SetUnique(true),
				},
				{
					Keys:    bson.D{{Key: "role", Value: 1}, {Key: "createdAt", Value: -1}},
					Options: options.Index().SetName("role_createdAt"),
				},
			},
		},
		{
			collection: ordersCollection,
			models: []mongo.IndexModel{
				{
					Keys:    bson.D{{Key: "user", Value: 1}, {Key: "createdAt", Value: -1}},
					Options: options.Index().SetName("user_createdAt"),
				},
				{
					Keys:    bson.D{{Key: "orderNumber", Value: 1}},
					Options: options.Index().SetName("orderNumber_unique").SetUnique(true),
				},
				{
					Keys:    bson.D{{Key: "status", Value: 1}, {Key: "createdAt", Value: -1}},
					Options: options.Index().SetName("status_createdAt"),
				},
			},
		},
		{
			collection: refreshTokensCollection,
			models: []mongo.IndexModel{
				{
					Keys:    bson.D{{Key: "tokenHash", Value: 1}},
					Options: options.Index().SetName("tokenHash_index"),
				},
				{
					Keys:    bson.D{{Key: "expiresAt", Value: 1}},
					Options: options.Index().SetName("expiresAt_ttl").SetExpireAfterSeconds(0),
				},
			},
		},
	}
}

// EnsureIndexes creates every index the repositories rely on. Every
// collection is attempted; the failures are returned combined.
func EnsureIndexes(ctx context.Context, db *mongo.Database, log *logger.Logger) error {
	var errs error
	for _, plan := range indexPlan() {
		indexCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		names, err := db.Collection(plan.collection).Indexes().CreateMany(indexCtx, plan.models)
		cancel()
		if err != nil {
			log.ErrorEvent(ctx, err).Str("collection", plan.collection).Msg("ensure indexes failed")
			errs = multierr.Append(errs, fmt.Errorf("%s: %w", plan.collection, err))
			continue
		}
		log.Event(ctx).Str("collection", plan.collection).Strs("indexes", names).Msg("indexes ensured")
	}
	return errs
}
