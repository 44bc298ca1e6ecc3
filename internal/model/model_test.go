package model

import "testing"

func TestCanTransition(t *testing.T) {
	allowed := []struct{ from, to BookingStatus }{
		{BookingPending, BookingAccepted},
		{BookingPending, BookingCancelled},
		{BookingAccepted, BookingArrived},
		{BookingArrived, BookingInProgress},
		{BookingInProgress, BookingCompleted},
	}
	for _, tt := range allowed {
		if !CanTransition(tt.from, tt.to) {
			t.Errorf("CanTransition(%s, %s) = false, want true", tt.from, tt.to)
		}
	}

	denied := []struct{ from, to BookingStatus }{
		{BookingPending, BookingArrived},
		{BookingPending, BookingInProgress},
		{BookingAccepted, BookingCancelled},
		{BookingAccepted, BookingCompleted},
		{BookingArrived, BookingAccepted},
		{BookingInProgress, BookingCancelled},
		{BookingCompleted, BookingPending},
		{BookingCompleted, BookingCancelled},
		{BookingCancelled, BookingPending},
	}
	for _, tt := range denied {
		if CanTransition(tt.from, tt.to) {
			t.Errorf("CanTransition(%s, %s) = true, want false", tt.from, tt.to)
		}
	}
}

func TestIsTerminal(t *testing.T) {
	for _, s := range []BookingStatus{BookingCompleted, BookingCancelled} {
		if !IsTerminal(s) {
			t.Errorf("IsTerminal(%s) = false, want true", s)
		}
	}
	for _, s := range []BookingStatus{BookingPending, BookingAccepted, BookingArrived, BookingInProgress} {
		if IsTerminal(s) {
			t.Errorf("IsTerminal(%s) = true, want false", s)
		}
	}
}

func TestIsPoolAnchor(t *testing.T) {
	owner := JoinStatusOwner
	pending := JoinStatusPending

	tests := []struct {
		name string
		b    Booking
		want bool
	}{
		{"anchor", Booking{IsPool: true, JoinStatus: &owner}, true},
		{"join request", Booking{IsPool: true, JoinStatus: &pending}, false},
		{"solo booking", Booking{IsPool: false}, false},
		{"pool without join status", Booking{IsPool: true}, false},
	}
	for _, tt := range tests {
		if got := tt.b.IsPoolAnchor(); got != tt.want {
			t.Errorf("%s: IsPoolAnchor() = %t, want %t", tt.name, got, tt.want)
		}
	}
}

func TestSeatsLeft(t *testing.T) {
	o := VehicleOffer{Capacity: 4, Occupied: 1}
	if got := o.SeatsLeft(); got != 3 {
		t.Errorf("SeatsLeft() = %d, want 3", got)
	}
}
