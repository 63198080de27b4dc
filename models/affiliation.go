package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// EmployeeAffiliation links an approved employee to the company of the HR who approved them.
// One active document per (employeeEmail, companyName).
type EmployeeAffiliation struct {
	ID              primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	EmployeeEmail   string             `bson:"employeeEmail" json:"employeeEmail"`
	EmployeeName    string             `bson:"employeeName" json:"employeeName"`
	EmployeePhoto   string             `bson:"employeePhoto,omitempty" json:"employeePhoto,omitempty"`
	HREmail         string             `bson:"hrEmail" json:"hrEmail"`
	CompanyName     string             `bson:"companyName" json:"companyName"`
	CompanyLogo     string             `bson:"companyLogo,omitempty" json:"companyLogo,omitempty"`
	AffiliationDate time.Time          `bson:"affiliationDate" json:"affiliationDate"`
	Status          string             `bson:"status" json:"status"` // active
}
