package handlers

import (
	"net/http"
	"strings"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"assetmgt/auth"
	"assetmgt/models"
	"assetmgt/store"
	"assetmgt/utils"
	"assetmgt/workflow"
)

type submitRequestBody struct {
	AssetID     string `json:"assetId"`
	HREmail     string `json:"hrEmail,omitempty"`
	CompanyName string `json:"companyName,omitempty"`
	Note        string `json:"note,omitempty"`
}

// SubmitRequest files a request on behalf of the caller.
func (h *Handler) SubmitRequest(w http.ResponseWriter, r *http.Request) {
	var body submitRequestBody
	if err := utils.ParseJSON(r, &body); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, err.Error())
		return
	}
	assetID, err := primitive.ObjectIDFromHex(body.AssetID)
	if err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "invalid assetId")
		return
	}

	ctx, cancel := h.ctx(r)
	defer cancel()

	req, err := h.engine.SubmitRequest(ctx, workflow.SubmitInput{
		AssetID:        assetID,
		RequesterEmail: principal(r).User.Email,
		HREmail:        body.HREmail,
		CompanyName:    body.CompanyName,
		Note:           body.Note,
	})
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusCreated, req)
}

// ListRequests shows HR their company's requests and employees their own.
func (h *Handler) ListRequests(w http.ResponseWriter, r *http.Request) {
	page, err := parsePage(r)
	if err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, err.Error())
		return
	}
	q := r.URL.Query()
	f := store.RequestFilter{
		Status: q.Get("status"),
		Search: strings.TrimSpace(q.Get("search")),
	}
	switch f.Status {
	case "", models.RequestPending, models.RequestApproved, models.RequestRejected:
	default:
		utils.RespondWithError(w, http.StatusBadRequest, "status must be pending, approved or rejected")
		return
	}

	p := principal(r)
	if p.Role == auth.RoleHR {
		f.CompanyName = p.User.CompanyName
	} else {
		f.RequesterEmail = p.User.Email
	}

	ctx, cancel := h.ctx(r)
	defer cancel()

	items, total, err := h.store.ListRequests(ctx, f, page)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, List[models.Request]{Items: items, Total: total})
}

type decideRequestBody struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

func (h *Handler) UpdateRequestStatus(w http.ResponseWriter, r *http.Request) {
	var body decideRequestBody
	if err := utils.ParseJSON(r, &body); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, err.Error())
		return
	}
	id, err := primitive.ObjectIDFromHex(body.ID)
	if err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "invalid request id")
		return
	}

	ctx, cancel := h.ctx(r)
	defer cancel()

	d, err := h.engine.DecideRequest(ctx, principal(r).User, id, body.Status)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, d)
}
