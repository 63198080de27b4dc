package handlers

import (
	"context"
	"net/http"
	"time"

	"assetmgt/utils"
)

// HealthCheckResponse represents health check status
type HealthCheckResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Database  string    `json:"database"`
	Version   string    `json:"version"`
	Uptime    string    `json:"uptime"`
}

var startTime = time.Now()

const version = "1.0.0"

func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	response := HealthCheckResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC(),
		Database:  "connected",
		Version:   version,
		Uptime:    time.Since(startTime).Round(time.Second).String(),
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	code := http.StatusOK
	if err := h.store.Ping(ctx); err != nil {
		h.log.Warnw("health check ping failed", "error", err)
		response.Status = "unhealthy"
		response.Database = "disconnected"
		code = http.StatusServiceUnavailable
	}
	utils.RespondWithJSON(w, code, response)
}
