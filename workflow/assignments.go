package workflow

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"assetmgt/models"
	"assetmgt/store"
)

// AssignAsset hands one unit of an asset to an affiliated employee.
//
// Checks run in order: asset exists, stock remains, no active assignment for
// the pair, then the guarded capacity increment. The increment only applies to
// an employee who holds no assignment record with the company yet, so a
// company at its package limit refuses new employees with ErrCapacityExceeded
// while employees already counted keep receiving assets. Any failure rolls
// back every write.
func (e *Engine) AssignAsset(ctx context.Context, hr models.User, assetID primitive.ObjectID, employeeEmail string) (models.AssignedAsset, error) {
	a, err := e.assignAsset(ctx, hr, assetID, NormalizeEmail(employeeEmail))
	observe("assign_asset", err)
	if err == nil {
		e.publish(models.EventAssetAssigned, a.CompanyName, hr.Email, a)
	}
	return a, err
}

func (e *Engine) assignAsset(ctx context.Context, hr models.User, assetID primitive.ObjectID, employeeEmail string) (models.AssignedAsset, error) {
	var assignment models.AssignedAsset
	err := e.store.WithTransaction(ctx, func(ctx context.Context) error {
		asset, err := e.store.AssetByID(ctx, assetID)
		if err != nil {
			return notFound(err, "asset")
		}
		if asset.CompanyName != hr.CompanyName {
			return fmt.Errorf("asset: %w", ErrNotFound)
		}
		if asset.AvailableQuantity <= 0 {
			return fmt.Errorf("%s: %w", asset.ProductName, ErrExhausted)
		}

		active, err := e.store.HasActiveAssignment(ctx, assetID, employeeEmail)
		if err != nil {
			return fmt.Errorf("check assignment: %w", err)
		}
		if active {
			return fmt.Errorf("asset already assigned to %s: %w", employeeEmail, ErrConflict)
		}

		aff, err := e.store.AffiliationFor(ctx, employeeEmail, hr.CompanyName)
		if err != nil {
			return notFound(err, "employee affiliation")
		}

		held, err := e.store.CountAssignments(ctx, employeeEmail, hr.CompanyName)
		if err != nil {
			return fmt.Errorf("count assignments: %w", err)
		}
		if held == 0 {
			ok, err := e.store.IncrementEmployees(ctx, hr.Email)
			if err != nil {
				return fmt.Errorf("increment employees: %w", err)
			}
			if !ok {
				return ErrCapacityExceeded
			}
		}

		ok, err := e.store.AdjustAvailable(ctx, assetID, -1)
		if err != nil {
			return fmt.Errorf("decrement stock: %w", err)
		}
		if !ok {
			return fmt.Errorf("%s: %w", asset.ProductName, ErrExhausted)
		}

		assignment = models.AssignedAsset{
			AssetID:        asset.ID,
			AssetName:      asset.ProductName,
			AssetType:      asset.ProductType,
			AssetImage:     asset.ProductImage,
			EmployeeEmail:  employeeEmail,
			EmployeeName:   aff.EmployeeName,
			HREmail:        hr.Email,
			CompanyName:    hr.CompanyName,
			AssignmentDate: e.now(),
			Status:         models.AssignmentAssigned,
		}
		if err := e.store.InsertAssignment(ctx, &assignment); err != nil {
			if errors.Is(err, store.ErrDuplicate) {
				return fmt.Errorf("asset already assigned to %s: %w", employeeEmail, ErrConflict)
			}
			return fmt.Errorf("insert assignment: %w", err)
		}
		return nil
	})
	return assignment, err
}

// ReturnAsset moves an employee's returnable assignment to returned and
// restocks the asset.
func (e *Engine) ReturnAsset(ctx context.Context, employeeEmail string, assignmentID primitive.ObjectID) (models.AssignedAsset, error) {
	a, err := e.returnAsset(ctx, NormalizeEmail(employeeEmail), assignmentID)
	observe("return_asset", err)
	if err == nil {
		e.publish(models.EventAssetReturned, a.CompanyName, a.EmployeeEmail, a)
	}
	return a, err
}

func (e *Engine) returnAsset(ctx context.Context, employeeEmail string, assignmentID primitive.ObjectID) (models.AssignedAsset, error) {
	var out models.AssignedAsset
	err := e.store.WithTransaction(ctx, func(ctx context.Context) error {
		a, err := e.store.AssignmentByID(ctx, assignmentID)
		if err != nil {
			return notFound(err, "assignment")
		}
		if a.EmployeeEmail != employeeEmail {
			return fmt.Errorf("assignment: %w", ErrNotFound)
		}
		if a.Status != models.AssignmentAssigned {
			return fmt.Errorf("assignment already %s: %w", a.Status, ErrConflict)
		}
		if a.AssetType != models.AssetReturnable {
			return fmt.Errorf("%s is not returnable: %w", a.AssetName, ErrInvalidInput)
		}

		now := e.now()
		ok, err := e.store.MarkReturned(ctx, a.ID, now)
		if err != nil {
			return fmt.Errorf("mark returned: %w", err)
		}
		if !ok {
			return fmt.Errorf("assignment no longer assigned: %w", ErrConflict)
		}
		if _, err := e.store.AdjustAvailable(ctx, a.AssetID, 1); err != nil {
			return fmt.Errorf("restock: %w", err)
		}

		a.Status = models.AssignmentReturned
		a.ReturnDate = &now
		out = a
		return nil
	})
	return out, err
}
