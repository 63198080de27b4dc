package handlers

import (
	"net/http"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"assetmgt/auth"
	"assetmgt/models"
	"assetmgt/store"
	"assetmgt/utils"
	"assetmgt/workflow"
)

type assignBody struct {
	AssetID       string `json:"assetId"`
	EmployeeEmail string `json:"employeeEmail"`
}

func (h *Handler) AssignAsset(w http.ResponseWriter, r *http.Request) {
	var body assignBody
	if err := utils.ParseJSON(r, &body); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, err.Error())
		return
	}
	assetID, err := primitive.ObjectIDFromHex(body.AssetID)
	if err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "invalid assetId")
		return
	}
	if body.EmployeeEmail == "" {
		utils.RespondWithError(w, http.StatusBadRequest, "employeeEmail is required")
		return
	}

	ctx, cancel := h.ctx(r)
	defer cancel()

	a, err := h.engine.AssignAsset(ctx, principal(r).User, assetID, body.EmployeeEmail)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusCreated, a)
}

type assignableResponse struct {
	Assets            []models.Asset               `json:"assets"`
	Employees         []models.EmployeeAffiliation `json:"employees"`
	PackageLimit      int                          `json:"packageLimit"`
	CurrentEmployees  int                          `json:"currentEmployees"`
	RemainingCapacity int                          `json:"remainingCapacity"`
}

// Assignable lists what an HR can hand out right now: in-stock assets,
// affiliated employees and the free capacity slots.
func (h *Handler) Assignable(w http.ResponseWriter, r *http.Request) {
	hr := principal(r).User

	ctx, cancel := h.ctx(r)
	defer cancel()

	assets, _, err := h.store.ListAssets(ctx, store.AssetFilter{
		CompanyNames: []string{hr.CompanyName},
		Stock:        "available",
	}, store.Page{})
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	employees, _, err := h.store.ListAffiliations(ctx, hr.CompanyName, store.Page{})
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	remaining := hr.PackageLimit - hr.CurrentEmployees
	if remaining < 0 {
		remaining = 0
	}
	utils.RespondWithJSON(w, http.StatusOK, assignableResponse{
		Assets:            assets,
		Employees:         employees,
		PackageLimit:      hr.PackageLimit,
		CurrentEmployees:  hr.CurrentEmployees,
		RemainingCapacity: remaining,
	})
}

// ListAssigned shows employees their own assignments and HR their company's,
// optionally narrowed by ?email= and ?status=.
func (h *Handler) ListAssigned(w http.ResponseWriter, r *http.Request) {
	page, err := parsePage(r)
	if err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, err.Error())
		return
	}
	q := r.URL.Query()
	f := store.AssignmentFilter{Status: q.Get("status")}
	switch f.Status {
	case "", models.AssignmentAssigned, models.AssignmentReturned:
	default:
		utils.RespondWithError(w, http.StatusBadRequest, "status must be assigned or returned")
		return
	}

	p := principal(r)
	if p.Role == auth.RoleHR {
		f.CompanyName = p.User.CompanyName
		f.EmployeeEmail = workflow.NormalizeEmail(q.Get("email"))
	} else {
		f.EmployeeEmail = p.User.Email
		f.CompanyName = q.Get("company")
	}

	ctx, cancel := h.ctx(r)
	defer cancel()

	items, total, err := h.store.ListAssignments(ctx, f, page)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, List[models.AssignedAsset]{Items: items, Total: total})
}

func (h *Handler) ReturnAsset(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "invalid assignment id")
		return
	}

	ctx, cancel := h.ctx(r)
	defer cancel()

	a, err := h.engine.ReturnAsset(ctx, principal(r).User.Email, id)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, a)
}
