package handler

import (
	"net/http"

	"github.com/shiva/ridepool/internal/middleware"
	"github.com/shiva/ridepool/internal/model"
	"github.com/shiva/ridepool/internal/service"
)

// BookingHandler exposes the trip lifecycle endpoints.
type BookingHandler struct {
	bookings *service.BookingService
}

// NewBookingHandler creates a booking handler.
func NewBookingHandler(bookings *service.BookingService) *BookingHandler {
	return &BookingHandler{bookings: bookings}
}

// Create handles POST /bookings.
func (h *BookingHandler) Create(w http.ResponseWriter, r *http.Request) {
	var in service.CreateBookingInput
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, err)
		return
	}
	if in.PassengerID == 0 {
		in.PassengerID = middleware.CallerID(r.Context())
	}
	b, err := h.bookings.Create(r.Context(), in)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, b)
}

// Get handles GET /bookings/{id}.
func (h *BookingHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}
	b, err := h.bookings.Get(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

// Detail handles GET /bookings/{id}/detail.
func (h *BookingHandler) Detail(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}
	d, err := h.bookings.Detail(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

// List handles GET /bookings?status=pending.
func (h *BookingHandler) List(w http.ResponseWriter, r *http.Request) {
	status := model.BookingStatus(r.URL.Query().Get("status"))
	out, err := h.bookings.ListByStatus(r.Context(), status)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// callerID pulls the authenticated caller from the context; missing identity
// is a validation error, never a panic.
func callerID(r *http.Request) (int64, error) {
	id := middleware.CallerID(r.Context())
	if id <= 0 {
		return 0, service.ErrValidation
	}
	return id, nil
}

// Accept handles POST /bookings/{id}/accept.
func (h *BookingHandler) Accept(w http.ResponseWriter, r *http.Request) {
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
	b, err := h.bookings.Accept(r.Context(), driverID, id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

// Arrived handles POST /bookings/{id}/arrived.
func (h *BookingHandler) Arrived(w http.ResponseWriter, r *http.Request) {
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
	b, err := h.bookings.MarkArrived(r.Context(), driverID, id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

// Start handles POST /bookings/{id}/start with the passenger's OTP.
func (h *BookingHandler) Start(w http.ResponseWriter, r *http.Request) {
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
		OTP string `json:"otp"`
	}
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, err)
		return
	}
	b, err := h.bookings.StartTrip(r.Context(), driverID, id, body.OTP)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

// Complete handles POST /bookings/{id}/complete.
func (h *BookingHandler) Complete(w http.ResponseWriter, r *http.Request) {
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
	b, err := h.bookings.Complete(r.Context(), driverID, id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

// Cancel handles POST /bookings/{id}/cancel.
func (h *BookingHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}
	passengerID, err := callerID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	b, err := h.bookings.Cancel(r.Context(), passengerID, id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

// ActiveForUser handles GET /users/{id}/bookings/active.
func (h *BookingHandler) ActiveForUser(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}
	b, err := h.bookings.ActiveForUser(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

// ActiveForDriver handles GET /drivers/{id}/bookings/active.
func (h *BookingHandler) ActiveForDriver(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}
	b, err := h.bookings.ActiveForDriver(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}
