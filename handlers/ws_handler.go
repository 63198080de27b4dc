package handlers

import (
	"net/http"
	"strings"

	gorillaws "github.com/gorilla/websocket"

	"assetmgt/auth"
)

func newUpgrader(origins []string) gorillaws.Upgrader {
	allowed := make(map[string]bool, len(origins))
	for _, o := range origins {
		allowed[strings.TrimRight(o, "/")] = true
	}
	return gorillaws.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			return origin == "" || allowed[strings.TrimRight(origin, "/")]
		},
	}
}

// ServeWS subscribes the caller to live events: HR to their company, employees
// to every company they are affiliated with.
func (h *Handler) ServeWS(w http.ResponseWriter, r *http.Request) {
	p := principal(r)

	companies := []string{p.User.CompanyName}
	if p.Role != auth.RoleHR {
		ctx, cancel := h.ctx(r)
		affs, err := h.store.AffiliationsByEmployee(ctx, p.User.Email)
		cancel()
		if err != nil {
			h.respondError(w, r, err)
			return
		}
		companies = companies[:0]
		for _, a := range affs {
			companies = append(companies, a.CompanyName)
		}
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warnw("websocket upgrade failed", "email", p.User.Email, "error", err)
		return
	}
	h.log.Infow("websocket connected", "email", p.User.Email, "companies", companies)
	h.hub.Attach(conn, p.User.Email, companies)
}
