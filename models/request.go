// models/request.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	RequestPending  = "pending"
	RequestApproved = "approved"
	RequestRejected = "rejected"
)

type Request struct {
	ID             primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	AssetID        primitive.ObjectID `bson:"assetId" json:"assetId"`
	AssetName      string             `bson:"assetName" json:"assetName"`
	AssetType      string             `bson:"assetType" json:"assetType"`
	AssetImage     string             `bson:"assetImage,omitempty" json:"assetImage,omitempty"`
	RequesterName  string             `bson:"requesterName" json:"requesterName"`
	RequesterEmail string             `bson:"requesterEmail" json:"requesterEmail"`
	HREmail        string             `bson:"hrEmail" json:"hrEmail"`
	CompanyName    string             `bson:"companyName" json:"companyName"`
	Note           string             `bson:"note,omitempty" json:"note,omitempty"`
	RequestDate    time.Time          `bson:"requestDate" json:"requestDate"`
	ApprovalDate   *time.Time         `bson:"approvalDate" json:"approvalDate"`
	RequestStatus  string             `bson:"requestStatus" json:"requestStatus"` // pending, approved, rejected
	ProcessedBy    string             `bson:"processedBy,omitempty" json:"processedBy,omitempty"`
}
