package service

import (
	"context"
	"errors"
	"testing"

	"github.com/shiva/ridepool/internal/model"
)

func TestGoOnlineRejectsSecondShift(t *testing.T) {
	f := newFixture(t, nil)
	driver, _ := f.newPoolDriver(t, testPickup, 12, 4)

	_, err := f.offers.GoOnline(context.Background(), GoOnlineInput{
		DriverID:   driver.ID,
		Position:   testPickup,
		FareType:   model.FareTypePool,
		PricePerKm: 12,
		Capacity:   4,
	})
	if !errors.Is(err, ErrInvalidState) {
		t.Errorf("second shift: err = %v, want ErrInvalidState", err)
	}
}

func TestGoOnlineRejectsNonDriver(t *testing.T) {
	f := newFixture(t, nil)
	passenger := f.newUser(t, model.RoleUser)

	_, err := f.offers.GoOnline(context.Background(), GoOnlineInput{
		DriverID:   passenger.ID,
		Position:   testPickup,
		FareType:   model.FareTypeEconomy,
		PricePerKm: 12,
		Capacity:   4,
	})
	if !errors.Is(err, ErrForbidden) {
		t.Errorf("passenger going online: err = %v, want ErrForbidden", err)
	}
}

func TestGoOnlineValidation(t *testing.T) {
	f := newFixture(t, nil)
	driver := f.newUser(t, model.RoleDriver)

	tests := []struct {
		name string
		in   GoOnlineInput
	}{
		{"missing driver", GoOnlineInput{Position: testPickup, FareType: model.FareTypePool, PricePerKm: 10, Capacity: 4}},
		{"zero position", GoOnlineInput{DriverID: driver.ID, FareType: model.FareTypePool, PricePerKm: 10, Capacity: 4}},
		{"zero price", GoOnlineInput{DriverID: driver.ID, Position: testPickup, FareType: model.FareTypePool, Capacity: 4}},
		{"zero capacity", GoOnlineInput{DriverID: driver.ID, Position: testPickup, FareType: model.FareTypePool, PricePerKm: 10}},
		{"bad fare type", GoOnlineInput{DriverID: driver.ID, Position: testPickup, FareType: "luxury", PricePerKm: 10, Capacity: 4}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := f.offers.GoOnline(context.Background(), tt.in); !errors.Is(err, ErrValidation) {
				t.Errorf("err = %v, want ErrValidation", err)
			}
		})
	}
}

func TestGoOffline(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	driver, offer := f.newPoolDriver(t, testPickup, 12, 4)

	if err := f.offers.GoOffline(ctx, driver.ID); err != nil {
		t.Fatalf("go offline: %v", err)
	}
	cur, err := f.offers.Get(ctx, offer.ID)
	if err != nil {
		t.Fatalf("get offer: %v", err)
	}
	if cur.IsAvailable {
		t.Errorf("offer still available after going offline")
	}
	// Driver can start a fresh shift now.
	if _, err := f.offers.GoOnline(ctx, GoOnlineInput{
		DriverID:   driver.ID,
		Position:   testPickup,
		FareType:   model.FareTypePool,
		PricePerKm: 12,
		Capacity:   4,
	}); err != nil {
		t.Errorf("fresh shift after offline: %v", err)
	}
}

func TestGoOfflineBlockedWithPassengers(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	passenger := f.newUser(t, model.RoleUser)
	driver, _ := f.newPoolDriver(t, testPickup, 12, 4)

	b := createTestBooking(t, f, passenger.ID, true)
	if _, err := f.bookings.Accept(ctx, driver.ID, b.ID); err != nil {
		t.Fatalf("accept: %v", err)
	}
	if err := f.offers.GoOffline(ctx, driver.ID); !errors.Is(err, ErrInvalidState) {
		t.Errorf("offline with seated passenger: err = %v, want ErrInvalidState", err)
	}
}
