package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	gorillaws "github.com/gorilla/websocket"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"assetmgt/auth"
	"assetmgt/payment"
	"assetmgt/store"
	"assetmgt/utils"
	"assetmgt/websocket"
	"assetmgt/workflow"
)

const maxPageLimit = 100

// Handler serves the HTTP API. Every handler bounds its work with timeout.
type Handler struct {
	store    store.Store
	engine   *workflow.Engine
	payments *payment.Service
	hub      *websocket.Hub
	log      *zap.SugaredLogger
	timeout  time.Duration
	upgrader gorillaws.Upgrader
}

type Deps struct {
	Store    store.Store
	Engine   *workflow.Engine
	Payments *payment.Service
	Hub      *websocket.Hub
	Log      *zap.SugaredLogger
	Timeout  time.Duration
	// Origins may open websocket connections. Requests without an Origin
	// header are not browsers and are always accepted.
	Origins []string
}

func New(d Deps) *Handler {
	if d.Timeout <= 0 {
		d.Timeout = 10 * time.Second
	}
	return &Handler{
		store:    d.Store,
		engine:   d.Engine,
		payments: d.Payments,
		hub:      d.Hub,
		log:      d.Log,
		timeout:  d.Timeout,
		upgrader: newUpgrader(d.Origins),
	}
}

// List is the envelope for collection responses.
type List[T any] struct {
	Items []T   `json:"items"`
	Total int64 `json:"total"`
}

func (h *Handler) ctx(r *http.Request) (context.Context, context.CancelFunc) {
	return context.WithTimeout(r.Context(), h.timeout)
}

// respondError maps domain errors onto status codes. Unexpected errors are
// logged and reported without detail.
func (h *Handler) respondError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, workflow.ErrNotFound), errors.Is(err, store.ErrNotFound),
		errors.Is(err, payment.ErrSessionNotFound):
		status = http.StatusNotFound
	case errors.Is(err, workflow.ErrConflict), errors.Is(err, workflow.ErrExhausted):
		status = http.StatusConflict
	case errors.Is(err, workflow.ErrCapacityExceeded), errors.Is(err, workflow.ErrForbidden):
		status = http.StatusForbidden
	case errors.Is(err, workflow.ErrInvalidInput), errors.Is(err, payment.ErrUnknownPackage):
		status = http.StatusBadRequest
	case errors.Is(err, payment.ErrIncomplete):
		status = http.StatusPaymentRequired
	case errors.Is(err, context.DeadlineExceeded):
		status = http.StatusGatewayTimeout
	}

	if status >= http.StatusInternalServerError {
		h.log.Errorw("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		utils.RespondWithError(w, status, "internal server error")
		return
	}
	utils.RespondWithError(w, status, err.Error())
}

func principal(r *http.Request) auth.Principal {
	p, _ := auth.PrincipalFrom(r.Context())
	return p
}

// parsePage reads page and limit. Without either, every record is returned.
func parsePage(r *http.Request) (store.Page, error) {
	q := r.URL.Query()
	var p store.Page
	for _, f := range []struct {
		key string
		dst *int
	}{{"page", &p.Page}, {"limit", &p.Limit}} {
		raw := q.Get(f.key)
		if raw == "" {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return store.Page{}, errors.New(f.key + " must be a non-negative integer")
		}
		*f.dst = n
	}
	if p.Limit > maxPageLimit {
		p.Limit = maxPageLimit
	}
	return p, nil
}

func pathID(r *http.Request) (primitive.ObjectID, error) {
	return primitive.ObjectIDFromHex(mux.Vars(r)["id"])
}
