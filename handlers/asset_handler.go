package handlers

import (
	"net/http"
	"strings"

	"assetmgt/auth"
	"assetmgt/models"
	"assetmgt/store"
	"assetmgt/utils"
	"assetmgt/workflow"
)

// ListAssets supports search, type (Returnable|Non-returnable), stock
// (available|out), sort (asc|desc by quantity) and, for employees, company.
func (h *Handler) ListAssets(w http.ResponseWriter, r *http.Request) {
	page, err := parsePage(r)
	if err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	q := r.URL.Query()
	f := store.AssetFilter{
		Search:       strings.TrimSpace(q.Get("search")),
		Type:         q.Get("type"),
		Stock:        q.Get("stock"),
		SortQuantity: q.Get("sort"),
	}
	if f.Type != "" && !models.ValidAssetType(f.Type) {
		utils.RespondWithError(w, http.StatusBadRequest, "type must be Returnable or Non-returnable")
		return
	}
	if f.Stock != "" && f.Stock != "available" && f.Stock != "out" {
		utils.RespondWithError(w, http.StatusBadRequest, "stock must be available or out")
		return
	}
	if f.SortQuantity != "" && f.SortQuantity != "asc" && f.SortQuantity != "desc" {
		utils.RespondWithError(w, http.StatusBadRequest, "sort must be asc or desc")
		return
	}
	if c := strings.TrimSpace(q.Get("company")); c != "" {
		f.CompanyNames = []string{c}
	}

	ctx, cancel := h.ctx(r)
	defer cancel()

	items, total, err := h.engine.ListAssets(ctx, principal(r).User, f, page)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, List[models.Asset]{Items: items, Total: total})
}

func (h *Handler) GetAsset(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "invalid asset id")
		return
	}

	ctx, cancel := h.ctx(r)
	defer cancel()

	asset, err := h.store.AssetByID(ctx, id)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	p := principal(r)
	if p.Role == auth.RoleHR && asset.CompanyName != p.User.CompanyName {
		utils.RespondWithError(w, http.StatusNotFound, "asset: not found")
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, asset)
}

func (h *Handler) AddAsset(w http.ResponseWriter, r *http.Request) {
	var in workflow.AssetInput
	if err := utils.ParseJSON(r, &in); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	ctx, cancel := h.ctx(r)
	defer cancel()

	asset, err := h.engine.AddAsset(ctx, principal(r).User, in)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusCreated, asset)
}

func (h *Handler) UpdateAsset(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "invalid asset id")
		return
	}
	var patch workflow.AssetPatch
	if err := utils.ParseJSON(r, &patch); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	ctx, cancel := h.ctx(r)
	defer cancel()

	asset, err := h.engine.UpdateAsset(ctx, principal(r).User, id, patch)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, asset)
}

func (h *Handler) DeleteAsset(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "invalid asset id")
		return
	}

	ctx, cancel := h.ctx(r)
	defer cancel()

	if err := h.engine.DeleteAsset(ctx, principal(r).User, id); err != nil {
		h.respondError(w, r, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, map[string]string{"message": "asset deleted"})
}
