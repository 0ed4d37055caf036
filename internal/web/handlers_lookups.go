package web

import (
	"context"
	"net/http"
	"time"

	"github.com/Luuk00/eco-costa-track/internal/core"
	"github.com/Luuk00/eco-costa-track/internal/logging"
)

const healthPingTimeout = 2 * time.Second

func (s *Server) handleListCostCenters(w http.ResponseWriter, r *http.Request) {
	s.respondLookups(w, r, s.service.ListCostCenters)
}

func (s *Server) handleListProjects(w http.ResponseWriter, r *http.Request) {
	s.respondLookups(w, r, s.service.ListProjects)
}

func (s *Server) respondLookups(w http.ResponseWriter, r *http.Request,
	list func(context.Context, core.Tenant) ([]core.Lookup, error)) {
	tenant, err := tenantFrom(r)
	if err != nil {
		respondError(w, r, err)
		return
	}

	items, err := list(r.Context(), tenant)
	if err != nil {
		respondError(w, r, err)
		return
	}
	if items == nil {
		items = []core.Lookup{}
	}

	writeJSON(w, http.StatusOK, items)
}

// healthResponse is served by GET /healthz.
type healthResponse struct {
	Status   string                   `json:"status"`
	Database string                   `json:"database"`
	Sessions int                      `json:"sessions"`
	Imports  core.ImportLimiterStatus `json:"imports"`
}

// handleHealth pings the store and reports import capacity.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{
		Status:   "ok",
		Database: "ok",
		Sessions: s.service.SessionCount(),
		Imports:  s.service.LimiterStatus(),
	}
	status := http.StatusOK

	ctx, cancel := context.WithTimeout(r.Context(), healthPingTimeout)
	defer cancel()
	if err := s.health.Ping(ctx); err != nil {
		logging.FromContext(r.Context()).Warn("health check failed", "error", err)
		resp.Status = "degraded"
		resp.Database = core.MapError(err).Message
		status = http.StatusServiceUnavailable
	}

	writeJSON(w, status, resp)
}
