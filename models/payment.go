package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const PaymentPaid = "paid"

type Payment struct {
	ID            primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	TransactionID string             `bson:"transactionId" json:"transactionId"`
	SessionID     string             `bson:"sessionId" json:"sessionId"`
	HREmail       string             `bson:"hrEmail" json:"hrEmail"`
	PackageName   string             `bson:"packageName" json:"packageName"`
	EmployeeLimit int                `bson:"employeeLimit" json:"employeeLimit"`
	Amount        int64              `bson:"amount" json:"amount"` // cents
	Currency      string             `bson:"currency" json:"currency"`
	Status        string             `bson:"status" json:"status"`
	PaidAt        time.Time          `bson:"paidAt" json:"paidAt"`
}
