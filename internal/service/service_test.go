package service

import (
	"context"
	"fmt"
	"testing"

	"github.com/shiva/ridepool/config"
	"github.com/shiva/ridepool/internal/model"
	"github.com/shiva/ridepool/internal/repository"
)

// fixture wires every service onto one in-memory store, the same way main
// does when no database is configured.
type fixture struct {
	store     *repository.MemoryStore
	users     *UserService
	offers    *OfferService
	bookings  *BookingService
	matching  *MatchingService
	locations *LocationService
	history   *HistoryService
}

func newFixture(t *testing.T, routes RouteProvider) *fixture {
	t.Helper()
	store := repository.NewMemoryStore()
	cfg := config.DefaultMatchingConfig()
	return &fixture{
		store:     store,
		users:     NewUserService(store),
		offers:    NewOfferService(store, store),
		bookings:  NewBookingService(store, store, store, store, routes, nil, cfg),
		matching:  NewMatchingService(store, store, store, nil, cfg),
		locations: NewLocationService(store, store, nil),
		history:   NewHistoryService(store),
	}
}

var userSeq int

func (f *fixture) newUser(t *testing.T, role model.UserRole) *model.User {
	t.Helper()
	userSeq++
	u, err := f.users.Register(context.Background(), RegisterInput{
		Mobile: fmt.Sprintf("+9198%08d", userSeq),
		Name:   fmt.Sprintf("test %s %d", role, userSeq),
		Role:   role,
	})
	if err != nil {
		t.Fatalf("register %s: %v", role, err)
	}
	return u
}

// newPoolDriver puts a driver online with a pool vehicle and returns both.
func (f *fixture) newPoolDriver(t *testing.T, pos model.Location, pricePerKm, capacity int) (*model.User, *model.VehicleOffer) {
	t.Helper()
	driver := f.newUser(t, model.RoleDriver)
	offer, err := f.offers.GoOnline(context.Background(), GoOnlineInput{
		DriverID:   driver.ID,
		CarModel:   "Wagon R",
		CarNumber:  "KA01AB1234",
		Position:   pos,
		FareType:   model.FareTypePool,
		PricePerKm: pricePerKm,
		Capacity:   capacity,
	})
	if err != nil {
		t.Fatalf("go online: %v", err)
	}
	return driver, offer
}

// straightLineRoutes is a RouteProvider that interpolates a straight polyline
// between the endpoints, close enough for matching tests.
type straightLineRoutes struct{}

func (straightLineRoutes) Route(_ context.Context, from, to model.Location) (*RoutePlan, error) {
	const steps = 20
	geometry := make([]model.Location, 0, steps+1)
	for i := 0; i <= steps; i++ {
		f := float64(i) / steps
		geometry = append(geometry, model.Location{
			Lat: from.Lat + (to.Lat-from.Lat)*f,
			Lng: from.Lng + (to.Lng-from.Lng)*f,
		})
	}
	return &RoutePlan{Geometry: geometry}, nil
}
