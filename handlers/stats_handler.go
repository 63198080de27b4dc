package handlers

import (
	"net/http"

	"assetmgt/store"
	"assetmgt/utils"
)

type statsResponse struct {
	store.Stats
	PackageLimit     int    `json:"packageLimit"`
	CurrentEmployees int    `json:"currentEmployees"`
	Subscription     string `json:"subscription"`
}

// Stats is the HR dashboard: request counts by status, assets by type,
// limited-stock items and subscription usage.
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	hr := principal(r).User

	ctx, cancel := h.ctx(r)
	defer cancel()

	st, err := h.store.CompanyStats(ctx, hr.CompanyName)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, statsResponse{
		Stats:            st,
		PackageLimit:     hr.PackageLimit,
		CurrentEmployees: hr.CurrentEmployees,
		Subscription:     hr.Subscription,
	})
}
