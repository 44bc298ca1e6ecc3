package handler

import (
	"net/http"

	"github.com/shiva/ridepool/internal/model"
	"github.com/shiva/ridepool/internal/service"
)

// LocationHandler exposes the live driver-location endpoints.
type LocationHandler struct {
	locations *service.LocationService
}

// NewLocationHandler creates a location handler.
func NewLocationHandler(locations *service.LocationService) *LocationHandler {
	return &LocationHandler{locations: locations}
}

// Report handles PUT /bookings/{id}/location.
func (h *LocationHandler) Report(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}
	var body struct {
		Lat     float64 `json:"lat"`
		Lng     float64 `json:"lng"`
		Heading float64 `json:"heading"`
	}
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, err)
		return
	}
	pos := model.Location{Lat: body.Lat, Lng: body.Lng}
	if err := h.locations.Report(r.Context(), id, pos, body.Heading); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusNoContent, nil)
}

// Latest handles GET /bookings/{id}/location.
func (h *LocationHandler) Latest(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}
	sample, err := h.locations.Latest(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sample)
}
