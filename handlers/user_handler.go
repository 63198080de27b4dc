package handlers

import (
	"net/http"

	"github.com/gorilla/mux"

	"assetmgt/models"
	"assetmgt/utils"
	"assetmgt/workflow"
)

// Register creates the account for an identity the provider has already
// vouched for. The route is public, so the email in the body is trusted as-is.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var in workflow.RegisterInput
	if err := utils.ParseJSON(r, &in); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	ctx, cancel := h.ctx(r)
	defer cancel()

	user, err := h.engine.Register(ctx, in)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusCreated, user)
}

type userResponse struct {
	models.User
	Affiliations []models.EmployeeAffiliation `json:"affiliations"`
}

// GetUser returns the caller's own profile with their company affiliations.
func (h *Handler) GetUser(w http.ResponseWriter, r *http.Request) {
	p := principal(r)
	if workflow.NormalizeEmail(mux.Vars(r)["email"]) != p.User.Email {
		utils.RespondWithError(w, http.StatusForbidden, "forbidden")
		return
	}

	ctx, cancel := h.ctx(r)
	defer cancel()

	affs, err := h.store.AffiliationsByEmployee(ctx, p.User.Email)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, userResponse{User: p.User, Affiliations: affs})
}

func (h *Handler) ListPackages(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.ctx(r)
	defer cancel()

	pkgs, err := h.store.ListPackages(ctx)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, pkgs)
}
