package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/botfleet/registry/internal/domain"
	"github.com/botfleet/registry/internal/service"
	"go.uber.org/zap"
)

type RunHandler struct {
	svc    *service.BotService
	logger *zap.Logger
}

func NewRunHandler(svc *service.BotService, logger *zap.Logger) *RunHandler {
	return &RunHandler{svc: svc, logger: logger}
}

// Trigger marks the bot as running and hands back its configuration. The run
// itself happens elsewhere.
func (h *RunHandler) Trigger(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid bot id")
		return
	}

	res, err := h.svc.TriggerRun(r.Context(), id)
	if err != nil {
		writeServiceError(w, h.logger, err, "failed to trigger run")
		return
	}

	writeJSON(w, http.StatusAccepted, res)
}

type recordRunRequest struct {
	Processed    int     `json:"processed"`
	Posted       int     `json:"posted"`
	Duration     float64 `json:"duration"`
	Status       string  `json:"status"`
	ErrorMessage string  `json:"error_message"`
}

func (h *RunHandler) Record(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid bot id")
		return
	}

	var req recordRunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	run, err := h.svc.RecordRunResult(r.Context(), id, domain.RunResult{
		Processed:    req.Processed,
		Posted:       req.Posted,
		Duration:     req.Duration,
		Outcome:      domain.RunStatus(req.Status),
		ErrorMessage: req.ErrorMessage,
	})
	if err != nil {
		writeServiceError(w, h.logger, err, "failed to record run")
		return
	}

	writeJSON(w, http.StatusCreated, run)
}

func (h *RunHandler) List(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid bot id")
		return
	}

	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	runs, err := h.svc.Runs(r.Context(), id, limit)
	if err != nil {
		writeServiceError(w, h.logger, err, "failed to list runs")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"runs":  runs,
		"count": len(runs),
	})
}
