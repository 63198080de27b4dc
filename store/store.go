// Package store is the persistence boundary. Mongo talks to MongoDB; Memory
// is an in-process implementation with the same constraints, used by tests.
package store

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"assetmgt/models"
)

var (
	ErrNotFound  = errors.New("store: not found")
	ErrDuplicate = errors.New("store: duplicate")
)

// Page selects a window of results. A zero Limit means no pagination.
type Page struct {
	Page  int
	Limit int
}

func (p Page) Skip() int {
	if p.Limit <= 0 || p.Page <= 0 {
		return 0
	}
	return p.Page * p.Limit
}

type AssetFilter struct {
	CompanyNames []string
	Search       string
	Type         string
	Stock        string // available, out
	SortQuantity string // asc, desc
}

type RequestFilter struct {
	CompanyName    string
	RequesterEmail string
	Status         string
	Search         string
}

type AssignmentFilter struct {
	EmployeeEmail string
	CompanyName   string
	Status        string
}

// Stats is the HR dashboard aggregate for one company.
type Stats struct {
	RequestsByStatus map[string]int64 `json:"requestsByStatus"`
	AssetsByType     map[string]int64 `json:"assetsByType"`
	LimitedStock     []models.Asset   `json:"limitedStock"`
}

const LimitedStockThreshold = 10

type Users interface {
	CreateUser(ctx context.Context, u *models.User) error
	UserByEmail(ctx context.Context, email string) (models.User, error)
	// IncrementEmployees bumps currentEmployees only while it is below packageLimit.
	IncrementEmployees(ctx context.Context, hrEmail string) (bool, error)
	DecrementEmployees(ctx context.Context, hrEmail string) error
	// AddPackageLimit raises packageLimit by n and records the purchased tier.
	AddPackageLimit(ctx context.Context, hrEmail, packageName string, n int) error
}

type Assets interface {
	InsertAsset(ctx context.Context, a *models.Asset) error
	AssetByID(ctx context.Context, id primitive.ObjectID) (models.Asset, error)
	ListAssets(ctx context.Context, f AssetFilter, p Page) ([]models.Asset, int64, error)
	UpdateAsset(ctx context.Context, a models.Asset) error
	DeleteAsset(ctx context.Context, id primitive.ObjectID, companyName string) error
	// AdjustAvailable adds delta to availableQuantity unless the result would be negative.
	AdjustAvailable(ctx context.Context, id primitive.ObjectID, delta int) (bool, error)
}

type Requests interface {
	InsertRequest(ctx context.Context, r *models.Request) error
	HasPendingRequest(ctx context.Context, assetID primitive.ObjectID, requesterEmail string) (bool, error)
	RequestByID(ctx context.Context, id primitive.ObjectID) (models.Request, error)
	// DecideRequest moves a pending request to status; false if it was no longer pending.
	DecideRequest(ctx context.Context, id primitive.ObjectID, status, processedBy string, at time.Time) (bool, error)
	// ResetRequest moves a decided request back to pending.
	ResetRequest(ctx context.Context, id primitive.ObjectID) (bool, error)
	ListRequests(ctx context.Context, f RequestFilter, p Page) ([]models.Request, int64, error)
}

type Affiliations interface {
	InsertAffiliation(ctx context.Context, a *models.EmployeeAffiliation) error
	AffiliationFor(ctx context.Context, employeeEmail, companyName string) (models.EmployeeAffiliation, error)
	AffiliationsByEmployee(ctx context.Context, employeeEmail string) ([]models.EmployeeAffiliation, error)
	ListAffiliations(ctx context.Context, companyName string, p Page) ([]models.EmployeeAffiliation, int64, error)
	DeleteAffiliation(ctx context.Context, employeeEmail, companyName string) (bool, error)
}

type Assignments interface {
	InsertAssignment(ctx context.Context, a *models.AssignedAsset) error
	HasActiveAssignment(ctx context.Context, assetID primitive.ObjectID, employeeEmail string) (bool, error)
	CountAssignments(ctx context.Context, employeeEmail, companyName string) (int64, error)
	AssignmentByID(ctx context.Context, id primitive.ObjectID) (models.AssignedAsset, error)
	ListAssignments(ctx context.Context, f AssignmentFilter, p Page) ([]models.AssignedAsset, int64, error)
	// MarkReturned flips an assigned record to returned; false if it was not assigned.
	MarkReturned(ctx context.Context, id primitive.ObjectID, at time.Time) (bool, error)
	DeleteAssignments(ctx context.Context, employeeEmail, companyName string) (int64, error)
}

type Packages interface {
	UpsertPackage(ctx context.Context, p models.Package) error
	ListPackages(ctx context.Context) ([]models.Package, error)
	PackageByName(ctx context.Context, name string) (models.Package, error)
}

type Payments interface {
	InsertPayment(ctx context.Context, p *models.Payment) error
	PaymentByTransaction(ctx context.Context, transactionID string) (models.Payment, error)
	ListPayments(ctx context.Context, hrEmail string) ([]models.Payment, error)
}

type Store interface {
	Users
	Assets
	Requests
	Affiliations
	Assignments
	Packages
	Payments

	// WithTransaction runs fn atomically. Store calls inside fn must use the ctx it receives.
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
	CompanyStats(ctx context.Context, companyName string) (Stats, error)
	Ping(ctx context.Context) error
}

// SeedPackages upserts the default catalog.
func SeedPackages(ctx context.Context, s Packages) error {
	for _, p := range models.DefaultPackages {
		if err := s.UpsertPackage(ctx, p); err != nil {
			return err
		}
	}
	return nil
}
