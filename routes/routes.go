package routes

import (
	"net/http"

	"github.com/gorilla/mux"

	"assetmgt/auth"
	"assetmgt/handlers"
	"assetmgt/middleware"
)

// HTTP method sets; OPTIONS is included so CORS preflights reach the middleware.
var (
	MethodsGetOnly    = []string{http.MethodGet, http.MethodOptions}
	MethodsPostOnly   = []string{http.MethodPost, http.MethodOptions}
	MethodsPatchOnly  = []string{http.MethodPatch, http.MethodOptions}
	MethodsDeleteOnly = []string{http.MethodDelete, http.MethodOptions}
)

const (
	PathHealth  = "/health"
	PathMetrics = "/metrics"
	PathWS      = "/ws"
)

// Guards holds the authentication middleware; Require is composed per route.
type Guards struct {
	Authenticate func(http.Handler) http.Handler
}

func RegisterRoutes(r *mux.Router, h *handlers.Handler, g Guards) {
	// ====================
	// PUBLIC
	// ====================
	r.HandleFunc(PathHealth, h.HealthCheck).Methods(MethodsGetOnly...)
	r.Handle(PathMetrics, middleware.MetricsHandler()).Methods(MethodsGetOnly...)
	r.HandleFunc("/register", h.Register).Methods(MethodsPostOnly...)
	r.HandleFunc("/packages", h.ListPackages).Methods(MethodsGetOnly...)

	authed := func(c auth.Capability, fn http.HandlerFunc) http.Handler {
		return g.Authenticate(middleware.Require(c)(fn))
	}
	signedIn := func(fn http.HandlerFunc) http.Handler {
		return g.Authenticate(fn)
	}

	// ====================
	// ANY AUTHENTICATED USER
	// ====================
	r.Handle("/users/{email}", signedIn(h.GetUser)).Methods(MethodsGetOnly...)
	r.Handle("/assets", authed(auth.CapViewAssets, h.ListAssets)).Methods(MethodsGetOnly...)
	r.Handle("/assets/{id}", authed(auth.CapViewAssets, h.GetAsset)).Methods(MethodsGetOnly...)
	r.Handle("/reqasset", authed(auth.CapRequestAsset, h.SubmitRequest)).Methods(MethodsPostOnly...)
	r.Handle("/requests", signedIn(h.ListRequests)).Methods(MethodsGetOnly...)
	r.Handle("/assigned", signedIn(h.ListAssigned)).Methods(MethodsGetOnly...)
	r.Handle("/assigned/{id}/return", authed(auth.CapReturnAsset, h.ReturnAsset)).Methods(MethodsPatchOnly...)
	r.Handle(PathWS, signedIn(h.ServeWS)).Methods(MethodsGetOnly...)

	// ====================
	// HR ONLY
	// ====================
	r.Handle("/addasset", authed(auth.CapManageAssets, h.AddAsset)).Methods(MethodsPostOnly...)
	r.Handle("/assets/{id}", authed(auth.CapManageAssets, h.UpdateAsset)).Methods(MethodsPatchOnly...)
	r.Handle("/assets/delete/{id}", authed(auth.CapManageAssets, h.DeleteAsset)).Methods(MethodsDeleteOnly...)
	r.Handle("/request/updatestatus", authed(auth.CapDecideRequests, h.UpdateRequestStatus)).Methods(MethodsPatchOnly...)
	r.Handle("/emlist", authed(auth.CapManageEmployees, h.ListEmployees)).Methods(MethodsGetOnly...)
	r.Handle("/emdelete", authed(auth.CapManageEmployees, h.RemoveEmployee)).Methods(MethodsDeleteOnly...)
	r.Handle("/assign", authed(auth.CapAssignAssets, h.AssignAsset)).Methods(MethodsPostOnly...)
	r.Handle("/assignable", authed(auth.CapAssignAssets, h.Assignable)).Methods(MethodsGetOnly...)
	r.Handle("/stats", authed(auth.CapViewStats, h.Stats)).Methods(MethodsGetOnly...)
	r.Handle("/payment-checkout-session", authed(auth.CapManageSubscription, h.CreateCheckoutSession)).Methods(MethodsPostOnly...)
	r.Handle("/payment-success", authed(auth.CapManageSubscription, h.PaymentSuccess)).Methods(MethodsPatchOnly...)
	r.Handle("/payments", authed(auth.CapManageSubscription, h.ListPayments)).Methods(MethodsGetOnly...)
}
