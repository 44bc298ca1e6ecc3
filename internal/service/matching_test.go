package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/shiva/ridepool/config"
	"github.com/shiva/ridepool/internal/model"
	"github.com/shiva/ridepool/pkg/geo"
)

// Offsets in degrees of latitude: 0.009 ≈ 1 km at the equator and close
// enough at Bangalore's latitude.
func offsetKm(l model.Location, km float64) model.Location {
	return model.Location{Lat: l.Lat + km*0.009, Lng: l.Lng}
}

// setupAnchor creates an accepted pool anchor: driver online, passenger
// books a pool trip, driver accepts. Returns the anchor booking and offer.
func setupAnchor(t *testing.T, f *fixture, pickup, dropoff model.Location, pricePerKm, capacity int) (*model.User, *model.Booking, *model.VehicleOffer) {
	t.Helper()
	ctx := context.Background()
	driver, offer := f.newPoolDriver(t, pickup, pricePerKm, capacity)
	anchor := f.newUser(t, model.RoleUser)

	b, err := f.bookings.Create(ctx, CreateBookingInput{
		PassengerID: anchor.ID,
		Pickup:      pickup,
		Dropoff:     dropoff,
		IsPool:      true,
	})
	if err != nil {
		t.Fatalf("create anchor booking: %v", err)
	}
	accepted, err := f.bookings.Accept(ctx, driver.ID, b.ID)
	if err != nil {
		t.Fatalf("accept anchor booking: %v", err)
	}

	cur, err := f.offers.Get(ctx, offer.ID)
	if err != nil {
		t.Fatalf("get offer: %v", err)
	}
	return driver, accepted, cur
}

func TestAcceptPoolAnchorSeatsPassenger(t *testing.T) {
	f := newFixture(t, straightLineRoutes{})
	pickup := model.Location{Lat: 12.9756, Lng: 77.6068}
	dropoff := model.Location{Lat: 12.9352, Lng: 77.6245}

	_, anchor, offer := setupAnchor(t, f, pickup, dropoff, 12, 4)

	if offer.Occupied != 1 {
		t.Errorf("occupied = %d, want 1", offer.Occupied)
	}
	if offer.Status != model.OfferStatusBoarding {
		t.Errorf("offer status = %s, want boarding", offer.Status)
	}
	if offer.FinalDestination == nil || *offer.FinalDestination != dropoff {
		t.Errorf("final destination not recorded")
	}
	if len(offer.RouteGeometry) == 0 {
		t.Errorf("route geometry not recorded")
	}
	if !anchor.IsPoolAnchor() {
		t.Errorf("anchor booking lost owner join status")
	}
}

func TestFindAvailablePools(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	pickup := model.Location{Lat: 12.9756, Lng: 77.6068}
	dropoff := model.Location{Lat: 12.9352, Lng: 77.6245}
	setupAnchor(t, f, pickup, dropoff, 12, 4)

	tests := []struct {
		name            string
		pickup, dropoff model.Location
		want            int
	}{
		{"both endpoints close", offsetKm(pickup, 2), offsetKm(dropoff, 2), 1},
		{"exact endpoints", pickup, dropoff, 1},
		{"pickup too far", offsetKm(pickup, 5), offsetKm(dropoff, 2), 0},
		{"dropoff too far", offsetKm(pickup, 2), offsetKm(dropoff, 5), 0},
		{"both too far", offsetKm(pickup, 5), offsetKm(dropoff, 5), 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := f.matching.FindAvailablePools(ctx, tt.pickup, tt.dropoff)
			if err != nil {
				t.Fatalf("find pools: %v", err)
			}
			if len(got) != tt.want {
				t.Errorf("candidates = %d, want %d", len(got), tt.want)
			}
			if tt.want > 0 {
				c := got[0]
				if c.AvailableSeats != 3 {
					t.Errorf("available seats = %d, want 3", c.AvailableSeats)
				}
				if c.Driver == nil {
					t.Errorf("candidate missing driver")
				}
			}
		})
	}
}

func TestFindRouteMatches(t *testing.T) {
	f := newFixture(t, straightLineRoutes{})
	ctx := context.Background()
	// Anchor travels east along lat 12.97.
	pickup := model.Location{Lat: 12.97, Lng: 77.60}
	dropoff := model.Location{Lat: 12.97, Lng: 77.70}
	setupAnchor(t, f, pickup, dropoff, 12, 4)

	onRoute := model.Location{Lat: 12.97, Lng: 77.65}

	tests := []struct {
		name         string
		pickup, dest model.Location
		want         int
	}{
		{"pickup on route, same destination", onRoute, dropoff, 1},
		{"pickup near route, dest within cluster", offsetKm(onRoute, 0.3), offsetKm(dropoff, 2), 1},
		{"pickup off route", offsetKm(onRoute, 1.0), dropoff, 0},
		{"destination outside cluster", onRoute, offsetKm(dropoff, 3.5), 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := f.matching.FindRouteMatches(ctx, tt.pickup, tt.dest)
			if err != nil {
				t.Fatalf("route matches: %v", err)
			}
			if len(got) != tt.want {
				t.Errorf("candidates = %d, want %d", len(got), tt.want)
			}
		})
	}
}

func TestJoinFlow(t *testing.T) {
	f := newFixture(t, straightLineRoutes{})
	ctx := context.Background()
	pickup := model.Location{Lat: 12.97, Lng: 77.60}
	dropoff := model.Location{Lat: 12.97, Lng: 77.70}
	driver, anchor, offer := setupAnchor(t, f, pickup, dropoff, 5, 4)

	joiner := f.newUser(t, model.RoleUser)
	// Roughly 4 km leg at 5/km: fare 20.
	join, err := f.matching.RequestJoin(ctx, JoinRequestInput{
		PassengerID: joiner.ID,
		PoolID:      anchor.ID,
		Pickup:      pickup,
		Dropoff:     offsetKm(pickup, 4),
	})
	if err != nil {
		t.Fatalf("request join: %v", err)
	}
	if join.Status != model.BookingPending || *join.JoinStatus != model.JoinStatusPending {
		t.Fatalf("join request state = %s/%s, want pending/pending", join.Status, *join.JoinStatus)
	}
	if join.PoolOwnerID == nil || *join.PoolOwnerID != anchor.ID {
		t.Errorf("pool owner = %v, want anchor booking %d", join.PoolOwnerID, anchor.ID)
	}
	if join.OfferID == nil || *join.OfferID != offer.ID {
		t.Errorf("offer = %v, want anchor's ride %d", join.OfferID, offer.ID)
	}

	pending, err := f.matching.ListPendingPoolRequests(ctx, offer.ID)
	if err != nil || len(pending) != 1 {
		t.Fatalf("pending requests = %d (%v), want 1", len(pending), err)
	}

	accepted, err := f.matching.RespondToJoin(ctx, driver.ID, join.ID, true, 0)
	if err != nil {
		t.Fatalf("respond accept: %v", err)
	}
	if accepted.Status != model.BookingAccepted || *accepted.JoinStatus != model.JoinStatusAccepted {
		t.Errorf("state after accept = %s/%s", accepted.Status, *accepted.JoinStatus)
	}
	if accepted.Fare == nil || *accepted.Fare != 20 {
		t.Errorf("fare = %v, want 20", accepted.Fare)
	}

	cur, err := f.offers.Get(ctx, offer.ID)
	if err != nil {
		t.Fatalf("get offer: %v", err)
	}
	if cur.Occupied != 2 {
		t.Errorf("occupied = %d, want 2", cur.Occupied)
	}

	riders, err := f.matching.ListPoolPassengers(ctx, anchor.ID)
	if err != nil || len(riders) != 1 {
		t.Fatalf("pool passengers = %d (%v), want 1", len(riders), err)
	}
	if riders[0].ID != join.ID {
		t.Errorf("pool passenger = booking %d, want %d", riders[0].ID, join.ID)
	}

	// A resolved request cannot be resolved again.
	if _, err := f.matching.RespondToJoin(ctx, driver.ID, join.ID, false, 0); !errors.Is(err, ErrInvalidState) {
		t.Errorf("double respond: err = %v, want ErrInvalidState", err)
	}
}

func TestRejectJoinLeavesOccupancy(t *testing.T) {
	f := newFixture(t, straightLineRoutes{})
	ctx := context.Background()
	pickup := model.Location{Lat: 12.97, Lng: 77.60}
	dropoff := model.Location{Lat: 12.97, Lng: 77.70}
	driver, anchor, offer := setupAnchor(t, f, pickup, dropoff, 5, 4)

	joiner := f.newUser(t, model.RoleUser)
	join, err := f.matching.RequestJoin(ctx, JoinRequestInput{
		PassengerID: joiner.ID,
		PoolID:      anchor.ID,
		Pickup:      pickup,
		Dropoff:     offsetKm(pickup, 4),
	})
	if err != nil {
		t.Fatalf("request join: %v", err)
	}

	rejected, err := f.matching.RespondToJoin(ctx, driver.ID, join.ID, false, 0)
	if err != nil {
		t.Fatalf("respond reject: %v", err)
	}
	if rejected.Status != model.BookingCancelled || *rejected.JoinStatus != model.JoinStatusRejected {
		t.Errorf("state after reject = %s/%s, want cancelled/rejected", rejected.Status, *rejected.JoinStatus)
	}
	if rejected.Fare != nil {
		t.Errorf("fare set on rejected join: %d", *rejected.Fare)
	}

	cur, err := f.offers.Get(ctx, offer.ID)
	if err != nil {
		t.Fatalf("get offer: %v", err)
	}
	if cur.Occupied != 1 {
		t.Errorf("occupied = %d, want 1 (reject must not claim a seat)", cur.Occupied)
	}
}

func TestRespondToJoinForbiddenForOtherDriver(t *testing.T) {
	f := newFixture(t, straightLineRoutes{})
	ctx := context.Background()
	pickup := model.Location{Lat: 12.97, Lng: 77.60}
	dropoff := model.Location{Lat: 12.97, Lng: 77.70}
	_, anchor, _ := setupAnchor(t, f, pickup, dropoff, 5, 4)
	stranger, _ := f.newPoolDriver(t, offsetKm(pickup, 10), 5, 4)

	joiner := f.newUser(t, model.RoleUser)
	join, err := f.matching.RequestJoin(ctx, JoinRequestInput{
		PassengerID: joiner.ID,
		PoolID:      anchor.ID,
		Pickup:      pickup,
		Dropoff:     offsetKm(pickup, 4),
	})
	if err != nil {
		t.Fatalf("request join: %v", err)
	}
	if _, err := f.matching.RespondToJoin(ctx, stranger.ID, join.ID, true, 0); !errors.Is(err, ErrForbidden) {
		t.Errorf("respond by stranger: err = %v, want ErrForbidden", err)
	}
}

func TestConcurrentJoinAcceptsLastSeat(t *testing.T) {
	f := newFixture(t, straightLineRoutes{})
	ctx := context.Background()
	pickup := model.Location{Lat: 12.97, Lng: 77.60}
	dropoff := model.Location{Lat: 12.97, Lng: 77.70}
	// Capacity 2 and the anchor takes one seat: exactly one seat left.
	driver, anchor, offer := setupAnchor(t, f, pickup, dropoff, 5, 2)

	joinIDs := make([]int64, 2)
	for i := range joinIDs {
		joiner := f.newUser(t, model.RoleUser)
		join, err := f.matching.RequestJoin(ctx, JoinRequestInput{
			PassengerID: joiner.ID,
			PoolID:      anchor.ID,
			Pickup:      pickup,
			Dropoff:     offsetKm(pickup, 4),
		})
		if err != nil {
			t.Fatalf("request join %d: %v", i, err)
		}
		joinIDs[i] = join.ID
	}

	var wg sync.WaitGroup
	results := make(chan error, len(joinIDs))
	for _, id := range joinIDs {
		wg.Add(1)
		go func(bookingID int64) {
			defer wg.Done()
			_, err := f.matching.RespondToJoin(ctx, driver.ID, bookingID, true, 0)
			results <- err
		}(id)
	}
	wg.Wait()
	close(results)

	wins, fulls := 0, 0
	for err := range results {
		switch {
		case err == nil:
			wins++
		case errors.Is(err, ErrCapacityExceeded):
			fulls++
		default:
			t.Errorf("unexpected respond error: %v", err)
		}
	}
	if wins != 1 || fulls != 1 {
		t.Errorf("wins = %d, capacity rejections = %d, want 1 and 1", wins, fulls)
	}

	cur, err := f.offers.Get(ctx, offer.ID)
	if err != nil {
		t.Fatalf("get offer: %v", err)
	}
	if cur.Occupied != cur.Capacity {
		t.Errorf("occupied = %d, want %d", cur.Occupied, cur.Capacity)
	}
	if cur.Status != model.OfferStatusFull {
		t.Errorf("offer status = %s, want full", cur.Status)
	}
}

func TestRequestJoinRejectsFullRide(t *testing.T) {
	f := newFixture(t, straightLineRoutes{})
	ctx := context.Background()
	pickup := model.Location{Lat: 12.97, Lng: 77.60}
	dropoff := model.Location{Lat: 12.97, Lng: 77.70}
	// Capacity 1: the anchor fills the vehicle.
	_, anchor, _ := setupAnchor(t, f, pickup, dropoff, 5, 1)

	joiner := f.newUser(t, model.RoleUser)
	_, err := f.matching.RequestJoin(ctx, JoinRequestInput{
		PassengerID: joiner.ID,
		PoolID:      anchor.ID,
		Pickup:      pickup,
		Dropoff:     offsetKm(pickup, 4),
	})
	if err == nil {
		t.Fatalf("join full ride succeeded")
	}
	if !errors.Is(err, ErrCapacityExceeded) && !errors.Is(err, ErrInvalidState) {
		t.Errorf("err = %v, want capacity or state error", err)
	}
}

func TestRequestJoinRequiresAnchor(t *testing.T) {
	f := newFixture(t, straightLineRoutes{})
	ctx := context.Background()
	pickup := model.Location{Lat: 12.97, Lng: 77.60}
	dropoff := model.Location{Lat: 12.97, Lng: 77.70}

	joiner := f.newUser(t, model.RoleUser)
	if _, err := f.matching.RequestJoin(ctx, JoinRequestInput{
		PassengerID: joiner.ID,
		PoolID:      9999,
		Pickup:      pickup,
		Dropoff:     dropoff,
	}); !errors.Is(err, ErrNotFound) {
		t.Errorf("join nonexistent pool: err = %v, want ErrNotFound", err)
	}

	// A plain solo booking is not a pool anchor either.
	rider := f.newUser(t, model.RoleUser)
	solo, err := f.bookings.Create(ctx, CreateBookingInput{
		PassengerID: rider.ID,
		Pickup:      pickup,
		Dropoff:     dropoff,
	})
	if err != nil {
		t.Fatalf("create solo booking: %v", err)
	}
	if _, err := f.matching.RequestJoin(ctx, JoinRequestInput{
		PassengerID: joiner.ID,
		PoolID:      solo.ID,
		Pickup:      pickup,
		Dropoff:     dropoff,
	}); !errors.Is(err, ErrNotFound) {
		t.Errorf("join solo booking: err = %v, want ErrNotFound", err)
	}
}

func TestRespondToJoinRateOverride(t *testing.T) {
	f := newFixture(t, straightLineRoutes{})
	ctx := context.Background()
	pickup := model.Location{Lat: 12.97, Lng: 77.60}
	dropoff := model.Location{Lat: 12.97, Lng: 77.70}
	driver, anchor, _ := setupAnchor(t, f, pickup, dropoff, 5, 4)

	joiner := f.newUser(t, model.RoleUser)
	join, err := f.matching.RequestJoin(ctx, JoinRequestInput{
		PassengerID: joiner.ID,
		PoolID:      anchor.ID,
		Pickup:      pickup,
		Dropoff:     offsetKm(pickup, 4),
	})
	if err != nil {
		t.Fatalf("request join: %v", err)
	}

	if _, err := f.matching.RespondToJoin(ctx, driver.ID, join.ID, true, -1); !errors.Is(err, ErrValidation) {
		t.Fatalf("negative rate: err = %v, want ErrValidation", err)
	}

	// Roughly 4 km leg at the overridden 9/km instead of the offer's 5/km.
	accepted, err := f.matching.RespondToJoin(ctx, driver.ID, join.ID, true, 9)
	if err != nil {
		t.Fatalf("respond accept: %v", err)
	}
	if accepted.Fare == nil || *accepted.Fare != 36 {
		t.Errorf("fare = %v, want 36", accepted.Fare)
	}
}

func TestFindAvailablePoolsRadiusIsExclusive(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	pickup := model.Location{Lat: 12.9756, Lng: 77.6068}
	dropoff := model.Location{Lat: 12.9352, Lng: 77.6245}
	setupAnchor(t, f, pickup, dropoff, 12, 4)

	searchPickup := offsetKm(pickup, 2)
	searchDropoff := offsetKm(dropoff, 2)
	pickupKm := geo.HaversineKm(searchPickup, pickup)

	// A candidate sitting exactly on the pickup radius is excluded.
	cfg := config.DefaultMatchingConfig()
	cfg.PoolPickupRadiusKm = pickupKm
	m := NewMatchingService(f.store, f.store, f.store, nil, cfg)
	got, err := m.FindAvailablePools(ctx, searchPickup, searchDropoff)
	if err != nil {
		t.Fatalf("find pools: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("candidates at exact radius = %d, want 0", len(got))
	}

	// Nudging the radius past the distance admits it again.
	cfg.PoolPickupRadiusKm = pickupKm + 0.001
	m = NewMatchingService(f.store, f.store, f.store, nil, cfg)
	got, err = m.FindAvailablePools(ctx, searchPickup, searchDropoff)
	if err != nil {
		t.Fatalf("find pools: %v", err)
	}
	if len(got) != 1 {
		t.Errorf("candidates inside radius = %d, want 1", len(got))
	}
}
