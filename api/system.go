package api

import (
	"context"
	"log/slog"
	"net/http"
)

// Pinger reports whether a dependency is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

type SystemHandler struct {
	db Pinger
}

func NewSystemHandler(db Pinger) *SystemHandler {
	return &SystemHandler{db: db}
}

func (h *SystemHandler) HealthHandler(w http.ResponseWriter, r *http.Request) {
	if h.db != nil {
		if err := h.db.Ping(r.Context()); err != nil {
			logger.Error("health check", slog.Any("err", err))
			writeJSON(w, envelope{"success": false, "status": "degraded", "service": "skilltrials"}, http.StatusServiceUnavailable)
			return
		}
	}

	writeOK(w, http.StatusOK, envelope{"status": "ok", "service": "skilltrials"})
}

func (h *SystemHandler) VersionHandler(version, buildTime string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeOK(w, http.StatusOK, envelope{"version": version, "buildTime": buildTime})
	}
}
