package handlers

import (
	"net/http"

	"assetmgt/utils"
)

type checkoutBody struct {
	PackageName string `json:"packageName"`
}

func (h *Handler) CreateCheckoutSession(w http.ResponseWriter, r *http.Request) {
	var body checkoutBody
	if err := utils.ParseJSON(r, &body); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, err.Error())
		return
	}
	if body.PackageName == "" {
		utils.RespondWithError(w, http.StatusBadRequest, "packageName is required")
		return
	}

	ctx, cancel := h.ctx(r)
	defer cancel()

	c, err := h.payments.Checkout(ctx, principal(r).User, body.PackageName)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, c)
}

type confirmBody struct {
	SessionID     string `json:"sessionId"`
	TransactionID string `json:"transactionId"`
}

// PaymentSuccess confirms a checkout. Repeating it for the same transaction
// returns the stored payment.
func (h *Handler) PaymentSuccess(w http.ResponseWriter, r *http.Request) {
	var body confirmBody
	if err := utils.ParseJSON(r, &body); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	ctx, cancel := h.ctx(r)
	defer cancel()

	p, err := h.payments.Confirm(ctx, principal(r).User, body.SessionID, body.TransactionID)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, p)
}

func (h *Handler) ListPayments(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.ctx(r)
	defer cancel()

	payments, err := h.payments.Payments(ctx, principal(r).User)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, payments)
}
