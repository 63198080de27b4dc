package handlers

import (
	"net/http"

	"assetmgt/models"
	"assetmgt/utils"
)

// ListEmployees returns the affiliations of the caller's company.
func (h *Handler) ListEmployees(w http.ResponseWriter, r *http.Request) {
	page, err := parsePage(r)
	if err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	ctx, cancel := h.ctx(r)
	defer cancel()

	items, total, err := h.store.ListAffiliations(ctx, principal(r).User.CompanyName, page)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, List[models.EmployeeAffiliation]{Items: items, Total: total})
}

func (h *Handler) RemoveEmployee(w http.ResponseWriter, r *http.Request) {
	email := r.URL.Query().Get("email")
	if email == "" {
		utils.RespondWithError(w, http.StatusBadRequest, "email query parameter is required")
		return
	}

	ctx, cancel := h.ctx(r)
	defer cancel()

	removal, err := h.engine.RemoveEmployee(ctx, principal(r).User, email)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, removal)
}
