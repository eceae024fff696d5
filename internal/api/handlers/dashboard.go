package handlers

import (
	"net/http"

	"github.com/botfleet/registry/internal/service"
	"go.uber.org/zap"
)

type DashboardHandler struct {
	stats  *service.StatsService
	logger *zap.Logger
}

func NewDashboardHandler(stats *service.StatsService, logger *zap.Logger) *DashboardHandler {
	return &DashboardHandler{stats: stats, logger: logger}
}

func (h *DashboardHandler) Get(w http.ResponseWriter, r *http.Request) {
	d, err := h.stats.Dashboard(r.Context())
	if err != nil {
		writeServiceError(w, h.logger, err, "failed to compute dashboard")
		return
	}

	writeJSON(w, http.StatusOK, d)
}
