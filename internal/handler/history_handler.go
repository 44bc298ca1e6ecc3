package handler

import (
	"net/http"

	"github.com/shiva/ridepool/internal/service"
)

// HistoryHandler exposes trip history and driver earnings endpoints.
type HistoryHandler struct {
	history *service.HistoryService
}

// NewHistoryHandler creates a history handler.
func NewHistoryHandler(history *service.HistoryService) *HistoryHandler {
	return &HistoryHandler{history: history}
}

// UserHistory handles GET /users/{id}/history.
func (h *HistoryHandler) UserHistory(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}
	out, err := h.history.UserHistory(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// DriverHistory handles GET /drivers/{id}/history.
func (h *HistoryHandler) DriverHistory(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}
	out, err := h.history.DriverHistory(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// DriverStats handles GET /drivers/{id}/stats.
func (h *HistoryHandler) DriverStats(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}
	stats, err := h.history.DriverStats(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}
