package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/botfleet/registry/internal/domain"
	"github.com/botfleet/registry/internal/service"
	"go.uber.org/zap"
)

type BotHandler struct {
	svc    *service.BotService
	logger *zap.Logger
}

func NewBotHandler(svc *service.BotService, logger *zap.Logger) *BotHandler {
	return &BotHandler{svc: svc, logger: logger}
}

// decodeConfig starts from the defaults so omitted optional fields keep them.
func decodeConfig(r *http.Request) (domain.BotConfig, error) {
	cfg := domain.DefaultBotConfig()
	err := json.NewDecoder(r.Body).Decode(&cfg)
	return cfg, err
}

func (h *BotHandler) Create(w http.ResponseWriter, r *http.Request) {
	cfg, err := decodeConfig(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	bot, err := h.svc.Create(r.Context(), cfg)
	if err != nil {
		writeServiceError(w, h.logger, err, "failed to create bot")
		return
	}

	writeJSON(w, http.StatusCreated, bot)
}

func (h *BotHandler) List(w http.ResponseWriter, r *http.Request) {
	activeOnly := false
	if v := r.URL.Query().Get("active_only"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "active_only must be a boolean")
			return
		}
		activeOnly = b
	}

	bots, err := h.svc.List(r.Context(), activeOnly)
	if err != nil {
		writeServiceError(w, h.logger, err, "failed to list bots")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"bots":  bots,
		"count": len(bots),
	})
}

func (h *BotHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid bot id")
		return
	}

	bot, err := h.svc.Get(r.Context(), id)
	if err != nil {
		writeServiceError(w, h.logger, err, "failed to get bot")
		return
	}

	writeJSON(w, http.StatusOK, bot)
}

func (h *BotHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid bot id")
		return
	}
	cfg, err := decodeConfig(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	bot, err := h.svc.Update(r.Context(), id, cfg)
	if err != nil {
		writeServiceError(w, h.logger, err, "failed to update bot")
		return
	}

	writeJSON(w, http.StatusOK, bot)
}

func (h *BotHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid bot id")
		return
	}

	if err := h.svc.Delete(r.Context(), id); err != nil {
		writeServiceError(w, h.logger, err, "failed to delete bot")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

type setStatusRequest struct {
	Status       string  `json:"status"`
	ErrorMessage *string `json:"error_message"`
}

func (h *BotHandler) SetStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid bot id")
		return
	}

	var req setStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	bot, err := h.svc.SetStatus(r.Context(), id, req.Status, req.ErrorMessage)
	if err != nil {
		writeServiceError(w, h.logger, err, "failed to set bot status")
		return
	}

	writeJSON(w, http.StatusOK, bot)
}

func (h *BotHandler) Stats(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid bot id")
		return
	}

	stats, err := h.svc.Stats(r.Context(), id)
	if err != nil {
		writeServiceError(w, h.logger, err, "failed to compute bot stats")
		return
	}

	writeJSON(w, http.StatusOK, stats)
}

type sendMessageRequest struct {
	Text string `json:"text"`
}

func (h *BotHandler) SendMessage(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid bot id")
		return
	}

	var req sendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	delivery, err := h.svc.SendMessage(r.Context(), id, req.Text)
	if err != nil {
		writeServiceError(w, h.logger, err, "failed to send message")
		return
	}

	writeJSON(w, http.StatusOK, delivery)
}
