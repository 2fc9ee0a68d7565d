package database

import (
	"regexp"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"perfume-store/internal/store"
)

// containsRegex matches search as a literal, case-insensitive substring.
func containsRegex(search string) primitive.Regex {
	return primitive.Regex{Pattern: regexp.QuoteMeta(strings.TrimSpace(search)), Options: "i"}
}

func productFilter(q store.ProductQuery) bson.M {
	filter := bson.M{}
	if q.Category != "" {
		filter["category"] = q.Category
	}
	if q.Featured {
		filter["featured"] = true
	}
	if strings.TrimSpace(q.Search) != "" {
		rx := containsRegex(q.Search)
		filter["$or"] = bson.A{
			bson.M{"name": rx},
			bson.M{"nameAr": rx},
			bson.M{"description": rx},
			bson.M{"descriptionAr": rx},
		}
	}
	return filter
}

func productUpdate(patch store.ProductPatch, now time.Time) bson.M {
	set := bson.M{"updatedAt": now}
	if patch.Name != nil {
		set["name"] = *patch.Name
	}
	if patch.NameAr != nil {
		set["nameAr"] = *patch.NameAr
	}
	if patch.Price != nil {
		set["price"] = *patch.Price
	}
	if patch.Currency != nil {
		set["currency"] = *patch.Currency
	}
	if patch.Description != nil {
		set["description"] = *patch.Description
	}
	if patch.DescriptionAr != nil {
		set["descriptionAr"] = *patch.DescriptionAr
	}
	if patch.Category != nil {
		set["category"] = *patch.Category
	}
	if patch.Image != nil {
		set["image"] = *patch.Image
	}
	if patch.BoxImage != nil {
		set["boxImage"] = *patch.BoxImage
	}
	if patch.Stock != nil {
		set["stock"] = *patch.Stock
	}
	if patch.Featured != nil {
		set["featured"] = *patch.Featured
	}
	return bson.M{"$set": set}
}

// orderFilter matches the order number substring or any of the users
// resolved from the same search term.
func orderFilter(q store.OrderQuery) bson.M {
	filter := bson.M{}
	if q.Status != "" {
		filter["status"] = q.Status
	}
	if strings.TrimSpace(q.Search) != "" {
		or := bson.A{bson.M{"orderNumber": containsRegex(q.Search)}}
		if len(q.UserIDs) > 0 {
			or = append(or, bson.M{"user": bson.M{"$in": q.UserIDs}})
		}
		filter["$or"] = or
	}
	return filter
}

func userFilter(q store.UserQuery) bson.M {
	filter := bson.M{}
	if q.Role != "" {
		filter["role"] = q.Role
	}
	if strings.TrimSpace(q.Search) != "" {
		rx := containsRegex(q.Search)
		filter["$or"] = bson.A{
			bson.M{"name": rx},
			bson.M{"email": rx},
			bson.M{"phone": rx},
		}
	}
	return filter
}

func statusWindowFilter(status string, start, end time.Time) bson.M {
	return bson.M{
		"status":    status,
		"createdAt": bson.M{"$gte": start, "$lte": end},
	}
}

var newestFirst = bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}}
