// models/user.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type User struct {
	ID               primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Name             string             `bson:"name" json:"name"`
	Email            string             `bson:"email" json:"email"`
	Photo            string             `bson:"photo,omitempty" json:"photo,omitempty"`
	DateOfBirth      string             `bson:"dateOfBirth,omitempty" json:"dateOfBirth,omitempty"`
	Role             string             `bson:"role" json:"role"` // employee, hr
	CompanyName      string             `bson:"companyName,omitempty" json:"companyName,omitempty"`
	CompanyLogo      string             `bson:"companyLogo,omitempty" json:"companyLogo,omitempty"`
	Subscription     string             `bson:"subscription,omitempty" json:"subscription,omitempty"`
	PackageLimit     int                `bson:"packageLimit" json:"packageLimit"`
	CurrentEmployees int                `bson:"currentEmployees" json:"currentEmployees"`
	CreatedAt        time.Time          `bson:"createdAt" json:"createdAt"`
}
