package workflow

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"assetmgt/models"
	"assetmgt/store"
)

// Removal summarizes what RemoveEmployee undid.
type Removal struct {
	EmployeeEmail      string `json:"employeeEmail"`
	CompanyName        string `json:"companyName"`
	Restocked          int    `json:"restocked"`
	AssignmentsDeleted int64  `json:"assignmentsDeleted"`
	RequestsReset      int    `json:"requestsReset"`
}

// RemoveEmployee detaches an employee from hr's company: restock every asset
// still assigned to them, delete their assignments and affiliation, release
// their capacity slot and put their decided requests back to pending. All of
// it commits or none of it does.
func (e *Engine) RemoveEmployee(ctx context.Context, hr models.User, employeeEmail string) (Removal, error) {
	r, err := e.removeEmployee(ctx, hr, NormalizeEmail(employeeEmail))
	observe("remove_employee", err)
	if err == nil {
		e.publish(models.EventEmployeeRemoved, r.CompanyName, hr.Email, r)
	}
	return r, err
}

func (e *Engine) removeEmployee(ctx context.Context, hr models.User, employeeEmail string) (Removal, error) {
	company := hr.CompanyName
	var out Removal
	err := e.store.WithTransaction(ctx, func(ctx context.Context) error {
		out = Removal{EmployeeEmail: employeeEmail, CompanyName: company}

		if _, err := e.store.AffiliationFor(ctx, employeeEmail, company); err != nil {
			return notFound(err, "employee affiliation")
		}

		assignments, _, err := e.store.ListAssignments(ctx,
			store.AssignmentFilter{EmployeeEmail: employeeEmail, CompanyName: company}, store.Page{})
		if err != nil {
			return fmt.Errorf("list assignments: %w", err)
		}
		for _, a := range assignments {
			if a.Status != models.AssignmentAssigned {
				continue
			}
			ok, err := e.store.AdjustAvailable(ctx, a.AssetID, 1)
			if err != nil {
				return fmt.Errorf("restock %s: %w", a.AssetID.Hex(), err)
			}
			if ok {
				out.Restocked++
			} else {
				e.log.Warnw("restock skipped, asset gone", "asset", a.AssetID.Hex(), "employee", employeeEmail)
			}
		}

		deleted, err := e.store.DeleteAssignments(ctx, employeeEmail, company)
		if err != nil {
			return fmt.Errorf("delete assignments: %w", err)
		}
		out.AssignmentsDeleted = deleted

		if ok, err := e.store.DeleteAffiliation(ctx, employeeEmail, company); err != nil {
			return fmt.Errorf("delete affiliation: %w", err)
		} else if !ok {
			return fmt.Errorf("employee affiliation: %w", ErrNotFound)
		}

		if len(assignments) > 0 {
			if err := e.store.DecrementEmployees(ctx, hr.Email); err != nil {
				return fmt.Errorf("decrement employees: %w", err)
			}
		}

		reset, err := e.resetRequests(ctx, employeeEmail, company)
		if err != nil {
			return err
		}
		out.RequestsReset = reset
		return nil
	})
	if err != nil {
		return Removal{}, err
	}
	e.log.Infow("employee removed", "employee", employeeEmail, "company", company,
		"restocked", out.Restocked, "requestsReset", out.RequestsReset)
	return out, nil
}

// resetRequests returns the employee's decided requests to pending, keeping at
// most one pending request per asset: the newest decided one, and none when a
// pending request for that asset already exists.
func (e *Engine) resetRequests(ctx context.Context, employeeEmail, company string) (int, error) {
	reqs, _, err := e.store.ListRequests(ctx,
		store.RequestFilter{RequesterEmail: employeeEmail, CompanyName: company}, store.Page{})
	if err != nil {
		return 0, fmt.Errorf("list requests: %w", err)
	}

	handled := make(map[primitive.ObjectID]bool)
	for _, r := range reqs {
		if r.RequestStatus == models.RequestPending {
			handled[r.AssetID] = true
		}
	}

	reset := 0
	// reqs is newest first.
	for _, r := range reqs {
		if handled[r.AssetID] {
			continue
		}
		handled[r.AssetID] = true
		ok, err := e.store.ResetRequest(ctx, r.ID)
		if err != nil {
			return 0, fmt.Errorf("reset request %s: %w", r.ID.Hex(), err)
		}
		if ok {
			reset++
		}
	}
	return reset, nil
}
