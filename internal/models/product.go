package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type Category string

const (
	CategorySpray   Category = "spray"
	CategoryPerfume Category = "perfume"
	CategoryCandle  Category = "candle"
	CategoryGift    Category = "gift"
)

var Categories = []Category{CategorySpray, CategoryPerfume, CategoryCandle, CategoryGift}

func (c Category) Valid() bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

const DefaultCurrency = "﷼"

type Product struct {
	ID            primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Name          string             `bson:"name" json:"name"`
	NameAr        string             `bson:"nameAr" json:"nameAr"`
	Price         float64            `bson:"price" json:"price"`
	Currency      string             `bson:"currency" json:"currency"`
	Description   string             `bson:"description,omitempty" json:"description,omitempty"`
	DescriptionAr string             `bson:"descriptionAr,omitempty" json:"descriptionAr,omitempty"`
	Category      Category           `bson:"category" json:"category"`
	Image         string             `bson:"image" json:"image"`
	BoxImage      string             `bson:"boxImage" json:"boxImage"`
	Stock         int                `bson:"stock" json:"stock"`
	Featured      bool               `bson:"featured" json:"featured"`
	CreatedAt     time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt     time.Time          `bson:"updatedAt" json:"updatedAt"`
}
