// models/asset.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	AssetReturnable    = "Returnable"
	AssetNonReturnable = "Non-returnable"
)

type Asset struct {
	ID                primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	ProductName       string             `bson:"productName" json:"productName"`
	ProductType       string             `bson:"productType" json:"productType"` // Returnable, Non-returnable
	ProductImage      string             `bson:"productImage,omitempty" json:"productImage,omitempty"`
	ProductQuantity   int                `bson:"productQuantity" json:"productQuantity"`
	AvailableQuantity int                `bson:"availableQuantity" json:"availableQuantity"`
	HREmail           string             `bson:"hrEmail" json:"hrEmail"`
	CompanyName       string             `bson:"companyName" json:"companyName"`
	DateAdded         time.Time          `bson:"dateAdded" json:"dateAdded"`
	UpdatedAt         time.Time          `bson:"updatedAt" json:"updatedAt"`
}

func ValidAssetType(t string) bool {
	return t == AssetReturnable || t == AssetNonReturnable
}
