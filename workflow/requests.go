package workflow

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"assetmgt/models"
	"assetmgt/store"
)

type SubmitInput struct {
	AssetID        primitive.ObjectID
	RequesterEmail string
	// HREmail and CompanyName are optional; when set they must match the asset.
	HREmail     string
	CompanyName string
	Note        string
}

// SubmitRequest records a pending request for an asset. At most one pending
// request may exist per (asset, requester).
func (e *Engine) SubmitRequest(ctx context.Context, in SubmitInput) (models.Request, error) {
	req, err := e.submitRequest(ctx, in)
	observe("submit_request", err)
	if err == nil {
		e.publish(models.EventRequestCreated, req.CompanyName, req.RequesterEmail, req)
	}
	return req, err
}

func (e *Engine) submitRequest(ctx context.Context, in SubmitInput) (models.Request, error) {
	email := NormalizeEmail(in.RequesterEmail)

	var req models.Request
	err := e.store.WithTransaction(ctx, func(ctx context.Context) error {
		asset, err := e.store.AssetByID(ctx, in.AssetID)
		if err != nil {
			return notFound(err, "asset")
		}
		if in.HREmail != "" && NormalizeEmail(in.HREmail) != asset.HREmail {
			return fmt.Errorf("hrEmail does not own asset: %w", ErrInvalidInput)
		}
		if in.CompanyName != "" && strings.TrimSpace(in.CompanyName) != asset.CompanyName {
			return fmt.Errorf("companyName does not own asset: %w", ErrInvalidInput)
		}

		requester, err := e.store.UserByEmail(ctx, email)
		if err != nil {
			return notFound(err, "requester")
		}

		pending, err := e.store.HasPendingRequest(ctx, asset.ID, email)
		if err != nil {
			return fmt.Errorf("check pending request: %w", err)
		}
		if pending {
			return fmt.Errorf("a pending request for this asset already exists: %w", ErrConflict)
		}

		req = models.Request{
			AssetID:        asset.ID,
			AssetName:      asset.ProductName,
			AssetType:      asset.ProductType,
			AssetImage:     asset.ProductImage,
			RequesterName:  requester.Name,
			RequesterEmail: email,
			HREmail:        asset.HREmail,
			CompanyName:    asset.CompanyName,
			Note:           in.Note,
			RequestDate:    e.now(),
			RequestStatus:  models.RequestPending,
		}
		if err := e.store.InsertRequest(ctx, &req); err != nil {
			if errors.Is(err, store.ErrDuplicate) {
				return fmt.Errorf("a pending request for this asset already exists: %w", ErrConflict)
			}
			return fmt.Errorf("insert request: %w", err)
		}
		return nil
	})
	return req, err
}

// Decision is the outcome of DecideRequest.
type Decision struct {
	Request            models.Request              `json:"request"`
	Affiliation        *models.EmployeeAffiliation `json:"affiliation,omitempty"`
	AffiliationCreated bool                        `json:"affiliationCreated"`
}

// DecideRequest approves or rejects a pending request of hr's company. An
// approval affiliates the requester with the company in the same transaction.
// Only the first approval for an employee and company creates an affiliation;
// later approvals reuse it and report AffiliationCreated false.
func (e *Engine) DecideRequest(ctx context.Context, hr models.User, id primitive.ObjectID, status string) (Decision, error) {
	d, err := e.decideRequest(ctx, hr, id, status)
	observe("decide_request", err)
	if err == nil {
		e.publish(models.EventRequestDecided, d.Request.CompanyName, hr.Email, d)
	}
	return d, err
}

func (e *Engine) decideRequest(ctx context.Context, hr models.User, id primitive.ObjectID, status string) (Decision, error) {
	if status != models.RequestApproved && status != models.RequestRejected {
		return Decision{}, fmt.Errorf("status %q: %w", status, ErrInvalidInput)
	}

	var d Decision
	err := e.store.WithTransaction(ctx, func(ctx context.Context) error {
		d = Decision{}
		req, err := e.store.RequestByID(ctx, id)
		if err != nil {
			return notFound(err, "request")
		}
		if req.CompanyName != hr.CompanyName {
			return fmt.Errorf("request: %w", ErrNotFound)
		}
		if req.RequestStatus != models.RequestPending {
			return fmt.Errorf("request already %s: %w", req.RequestStatus, ErrConflict)
		}

		now := e.now()
		ok, err := e.store.DecideRequest(ctx, id, status, hr.Email, now)
		if err != nil {
			return fmt.Errorf("update request: %w", err)
		}
		if !ok {
			return fmt.Errorf("request no longer pending: %w", ErrConflict)
		}
		req.RequestStatus = status
		req.ProcessedBy = hr.Email
		if status == models.RequestApproved {
			req.ApprovalDate = &now
		}
		d.Request = req

		if status == models.RequestRejected {
			return nil
		}

		if existing, err := e.store.AffiliationFor(ctx, req.RequesterEmail, hr.CompanyName); err == nil {
			d.Affiliation = &existing
			return nil
		} else if !errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("load affiliation: %w", err)
		}

		requester, err := e.store.UserByEmail(ctx, req.RequesterEmail)
		if err != nil {
			return notFound(err, "requester")
		}
		company, err := e.store.UserByEmail(ctx, hr.Email)
		if err != nil {
			return notFound(err, "hr")
		}

		aff := models.EmployeeAffiliation{
			EmployeeEmail:   requester.Email,
			EmployeeName:    requester.Name,
			EmployeePhoto:   requester.Photo,
			HREmail:         company.Email,
			CompanyName:     company.CompanyName,
			CompanyLogo:     company.CompanyLogo,
			AffiliationDate: now,
			Status:          "active",
		}
		if err := e.store.InsertAffiliation(ctx, &aff); err != nil {
			return fmt.Errorf("insert affiliation: %w", err)
		}
		d.Affiliation = &aff
		d.AffiliationCreated = true
		return nil
	})
	if err != nil {
		return Decision{}, err
	}
	e.log.Infow("request decided", "request", id.Hex(), "status", status, "by", hr.Email,
		"affiliationCreated", d.AffiliationCreated)
	return d, nil
}
