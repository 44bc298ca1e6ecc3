package handler

import (
	"net/http"

	"github.com/shiva/ridepool/internal/middleware"
	"github.com/shiva/ridepool/internal/model"
	"github.com/shiva/ridepool/internal/service"
)

// PoolHandler exposes pool discovery and join endpoints.
type PoolHandler struct {
	matching *service.MatchingService
}

// NewPoolHandler creates a pool handler.
func NewPoolHandler(matching *service.MatchingService) *PoolHandler {
	return &PoolHandler{matching: matching}
}

func locationFromQuery(r *http.Request, latName, lngName string) (model.Location, error) {
	lat, err := queryFloat(r, latName)
	if err != nil {
		return model.Location{}, err
	}
	lng, err := queryFloat(r, lngName)
	if err != nil {
		return model.Location{}, err
	}
	return model.Location{Lat: lat, Lng: lng}, nil
}

// Available handles GET /pools/available?pickup_lat=..&pickup_lng=..&dropoff_lat=..&dropoff_lng=..
func (h *PoolHandler) Available(w http.ResponseWriter, r *http.Request) {
	pickup, err := locationFromQuery(r, "pickup_lat", "pickup_lng")
	if err != nil {
		writeError(w, err)
		return
	}
	dropoff, err := locationFromQuery(r, "dropoff_lat", "dropoff_lng")
	if err != nil {
		writeError(w, err)
		return
	}
	out, err := h.matching.FindAvailablePools(r.Context(), pickup, dropoff)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// RouteMatches handles GET /pools/route-matches?pickup_lat=..&pickup_lng=..&dest_lat=..&dest_lng=..
func (h *PoolHandler) RouteMatches(w http.ResponseWriter, r *http.Request) {
	pickup, err := locationFromQuery(r, "pickup_lat", "pickup_lng")
	if err != nil {
		writeError(w, err)
		return
	}
	dest, err := locationFromQuery(r, "dest_lat", "dest_lng")
	if err != nil {
		writeError(w, err)
		return
	}
	out, err := h.matching.FindRouteMatches(r.Context(), pickup, dest)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// Join handles POST /pools/join.
func (h *PoolHandler) Join(w http.ResponseWriter, r *http.Request) {
	var in service.JoinRequestInput
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, err)
		return
	}
	if in.PassengerID == 0 {
		in.PassengerID = middleware.CallerID(r.Context())
	}
	b, err := h.matching.RequestJoin(r.Context(), in)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, b)
}

// Respond handles POST /pools/requests/{id}/respond.
func (h *PoolHandler) Respond(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}
	driverID, err := callerID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	var body struct {
		Accept     bool `json:"accept"`
		PricePerKm int  `json:"price_per_km"`
	}
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, err)
		return
	}
	b, err := h.matching.RespondToJoin(r.Context(), driverID, id, body.Accept, body.PricePerKm)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

// Passengers handles GET /pools/{pool_id}/passengers, where pool_id is the
// anchor booking's id.
func (h *PoolHandler) Passengers(w http.ResponseWriter, r *http.Request) {
	poolID, err := pathID(r, "pool_id")
	if err != nil {
		writeError(w, err)
		return
	}
	out, err := h.matching.ListPoolPassengers(r.Context(), poolID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// PendingRequests handles GET /rides/{id}/requests.
func (h *PoolHandler) PendingRequests(w http.ResponseWriter, r *http.Request) {
	rideID, err := pathID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}
	out, err := h.matching.ListPendingPoolRequests(r.Context(), rideID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}
