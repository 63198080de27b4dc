package models

import "go.mongodb.org/mongo-driver/bson/primitive"

type Package struct {
	ID            primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Name          string             `bson:"name" json:"name"`
	EmployeeLimit int                `bson:"employeeLimit" json:"employeeLimit"`
	Price         int64              `bson:"price" json:"price"` // cents
	Features      []string           `bson:"features,omitempty" json:"features,omitempty"`
}

// DefaultPackages is the catalog upserted at startup.
var DefaultPackages = []Package{
	{Name: "basic", EmployeeLimit: 5, Price: 500, Features: []string{"Asset tracking", "Employee management", "Basic support"}},
	{Name: "standard", EmployeeLimit: 10, Price: 800, Features: []string{"All basic features", "Advanced analytics", "Priority support"}},
	{Name: "premium", EmployeeLimit: 20, Price: 1500, Features: []string{"All standard features", "Custom branding", "24/7 support"}},
}
