package models

import "time"

const (
	EventRequestCreated   = "request.created"
	EventRequestDecided   = "request.decided"
	EventAssetAssigned    = "asset.assigned"
	EventAssetReturned    = "asset.returned"
	EventEmployeeRemoved  = "employee.removed"
	EventPaymentConfirmed = "payment.confirmed"
)

// Event is a workflow change pushed to live clients of one company.
type Event struct {
	Type        string      `json:"type"`
	CompanyName string      `json:"companyName"`
	Actor       string      `json:"actor,omitempty"`
	Data        interface{} `json:"data,omitempty"`
	Timestamp   time.Time   `json:"timestamp"`
}
