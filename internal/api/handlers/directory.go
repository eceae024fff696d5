package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/botfleet/registry/internal/service"
	"go.uber.org/zap"
)

type DirectoryHandler struct {
	svc    *service.DirectoryService
	logger *zap.Logger
}

func NewDirectoryHandler(svc *service.DirectoryService, logger *zap.Logger) *DirectoryHandler {
	return &DirectoryHandler{svc: svc, logger: logger}
}

type registerServiceRequest struct {
	Name        string `json:"name"`
	URL         string `json:"url"`
	Description string `json:"description"`
}

func (h *DirectoryHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerServiceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	svc, err := h.svc.Register(r.Context(), req.Name, req.URL, req.Description)
	if err != nil {
		writeServiceError(w, h.logger, err, "failed to register service")
		return
	}

	writeJSON(w, http.StatusCreated, svc)
}

func (h *DirectoryHandler) List(w http.ResponseWriter, r *http.Request) {
	services, err := h.svc.List(r.Context())
	if err != nil {
		writeServiceError(w, h.logger, err, "failed to list services")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"services": services,
		"count":    len(services),
	})
}

type heartbeatRequest struct {
	Status string `json:"status"`
}

// Heartbeat accepts an empty body, which is the same as {"status":"active"}.
func (h *DirectoryHandler) Heartbeat(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid service id")
		return
	}

	var req heartbeatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.svc.Heartbeat(r.Context(), id, req.Status); err != nil {
		writeServiceError(w, h.logger, err, "failed to record heartbeat")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
