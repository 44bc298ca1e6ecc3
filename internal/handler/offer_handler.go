package handler

import (
	"net/http"

	"github.com/shiva/ridepool/internal/middleware"
	"github.com/shiva/ridepool/internal/service"
)

// OfferHandler exposes driver shift endpoints.
type OfferHandler struct {
	offers *service.OfferService
}

// NewOfferHandler creates an offer handler.
func NewOfferHandler(offers *service.OfferService) *OfferHandler {
	return &OfferHandler{offers: offers}
}

// GoOnline handles POST /rides.
func (h *OfferHandler) GoOnline(w http.ResponseWriter, r *http.Request) {
	var in service.GoOnlineInput
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, err)
		return
	}
	if in.DriverID == 0 {
		in.DriverID = middleware.CallerID(r.Context())
	}
	o, err := h.offers.GoOnline(r.Context(), in)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, o)
}

// GoOffline handles POST /rides/offline.
func (h *OfferHandler) GoOffline(w http.ResponseWriter, r *http.Request) {
	driverID, err := callerID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := h.offers.GoOffline(r.Context(), driverID); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "offline"})
}

// Get handles GET /rides/{id}.
func (h *OfferHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}
	o, err := h.offers.Get(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

// List handles GET /rides.
func (h *OfferHandler) List(w http.ResponseWriter, r *http.Request) {
	out, err := h.offers.List(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// ActiveForDriver handles GET /drivers/{id}/ride.
func (h *OfferHandler) ActiveForDriver(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}
	o, err := h.offers.ActiveForDriver(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}
