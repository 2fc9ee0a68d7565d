package database

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"perfume-store/internal/models"
	"perfume-store/internal/store"
)

func TestProductFilterEmptyQueryMatchesEverything(t *testing.T) {
	assert.Empty(t, productFilter(store.ProductQuery{}))
}

func TestProductFilterCombinesCategoryFeaturedAndSearch(t *testing.T) {
	filter := productFilter(store.ProductQuery{
		Category: models.CategoryPerfume,
		Featured: true,
		Search:   " oud (royal) ",
	})

	assert.Equal(t, models.CategoryPerfume, filter["category"])
	assert.Equal(t, true, filter["featured"])

	or, ok := filter["$or"].(bson.A)
	require.True(t, ok)
	require.Len(t, or, 4)

	first := or[0].(bson.M)["name"].(primitive.Regex)
	assert.Equal(t, `oud \(royal\)`, first.Pattern)
	assert.Equal(t, "i", first.Options)
}

func TestProductUpdateOnlySetsProvidedFields(t *testing.T) {
	now := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	stock := 0
	name := "Amber"

	update := productUpdate(store.ProductPatch{Name: &name, Stock: &stock}, now)
	set := update["$set"].(bson.M)

	assert.Len(t, set, 3)
	assert.Equal(t, "Amber", set["name"])
	assert.Equal(t, 0, set["stock"])
	assert.Equal(t, now, set["updatedAt"])
}

func TestOrderFilterSearchIncludesResolvedUsers(t *testing.T) {
	userID := primitive.NewObjectID()
	filter := orderFilter(store.OrderQuery{
		Status:  models.StatusPending,
		Search:  "ORD-1",
		UserIDs: []primitive.ObjectID{userID},
	})

	assert.Equal(t, models.StatusPending, filter["status"])
	or := filter["$or"].(bson.A)
	require.Len(t, or, 2)
	assert.Equal(t, bson.M{"user": bson.M{"$in": []primitive.ObjectID{userID}}}, or[1])
}

func TestOrderFilterWithoutSearchIgnoresUsers(t *testing.T) {
	filter := orderFilter(store.OrderQuery{UserIDs: []primitive.ObjectID{primitive.NewObjectID()}})
	assert.Empty(t, filter)
}

func TestUserFilterRoleAndSearch(t *testing.T) {
	filter := userFilter(store.UserQuery{Role: models.RoleUser, Search: "a.b@"})

	assert.Equal(t, models.RoleUser, filter["role"])
	or := filter["$or"].(bson.A)
	require.Len(t, or, 3)
	assert.Equal(t, `a\.b@`, or[1].(bson.M)["email"].(primitive.Regex).Pattern)
}

func TestNormalizeEmail(t *testing.T) {
	assert.Equal(t, "layla@example.com", normalizeEmail("  Layla@Example.COM "))
}

func TestIndexPlanCoversUniqueKeys(t *testing.T) {
	unique := map[string]bool{}
	for _, plan := range indexPlan() {
		for _, model := range plan.models {
			if model.Options != nil && model.Options.Unique != nil && *model.Options.Unique {
				unique[plan.collection+"."+*model.Options.Name] = true
			}
		}
	}

	assert.True(t, unique["users.email_unique"])
	assert.True(t, unique["orders.orderNumber_unique"])
}
