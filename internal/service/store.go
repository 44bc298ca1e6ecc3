package service

import (
	"context"
	"time"

	"github.com/shiva/ridepool/internal/model"
)

// zeroTime is the "no filter" value for createdAfter parameters.
var zeroTime time.Time

// Storage interfaces are declared here, on the consumer side: both the
// Postgres/Redis repositories and the in-memory store satisfy them, so the
// services never know which backend they run on.

// BookingStore is the persistence surface for bookings.
type BookingStore interface {
	CreateBooking(ctx context.Context, b *model.Booking) (*model.Booking, error)
	GetBooking(ctx context.Context, id int64) (*model.Booking, error)

	// UpdateBookingStatus transitions status from→to atomically and returns
	// repository.ErrStateConflict when the row is no longer in `from`.
	UpdateBookingStatus(ctx context.Context, id int64, from, to model.BookingStatus) (*model.Booking, error)

	// UpdateBookingPool resolves a pending join request. It fails with
	// repository.ErrStateConflict unless join_status is still pending.
	UpdateBookingPool(ctx context.Context, id int64, joinStatus model.JoinStatus, status model.BookingStatus, fare *int) (*model.Booking, error)

	SetBookingFare(ctx context.Context, id int64, fare int) error

	// AssignBookingOffer binds a booking to the accepting driver's ride.
	AssignBookingOffer(ctx context.Context, id, offerID int64) error

	// ListBookingsByStatus returns bookings in the given status; a non-zero
	// createdAfter keeps only rows created strictly after it.
	ListBookingsByStatus(ctx context.Context, status model.BookingStatus, createdAfter time.Time) ([]model.Booking, error)

	// ListPoolPassengers returns accepted join bookings whose pool_owner_id
	// is the given anchor booking id.
	ListPoolPassengers(ctx context.Context, anchorID int64) ([]model.Booking, error)
	ListPendingPoolRequests(ctx context.Context, offerID int64) ([]model.Booking, error)

	ActiveBookingForUser(ctx context.Context, userID int64) (*model.Booking, error)
	ActiveBookingForDriver(ctx context.Context, driverID int64) (*model.Booking, error)
	ListTerminalByUser(ctx context.Context, userID int64) ([]model.Booking, error)
	ListTerminalByDriver(ctx context.Context, driverID int64) ([]model.Booking, error)

	DriverEarnings(ctx context.Context, driverID int64) (int, error)
	DriverTripCount(ctx context.Context, driverID int64) (int, error)
}

// OfferStore is the persistence surface for vehicle offers.
type OfferStore interface {
	CreateOffer(ctx context.Context, o *model.VehicleOffer) (*model.VehicleOffer, error)
	GetOffer(ctx context.Context, id int64) (*model.VehicleOffer, error)
	ListOffers(ctx context.Context) ([]model.VehicleOffer, error)
	ListActivePoolOffers(ctx context.Context) ([]model.VehicleOffer, error)
	ActiveOfferForDriver(ctx context.Context, driverID int64) (*model.VehicleOffer, error)

	// IncrementOccupied adds one passenger under the capacity guard and
	// returns repository.ErrCapacityFull when no seat is left.
	IncrementOccupied(ctx context.Context, id int64) (*model.VehicleOffer, error)

	// DecrementOccupied releases one seat. Used to compensate a claimed seat
	// when the booking update afterwards loses its race.
	DecrementOccupied(ctx context.Context, id int64) (*model.VehicleOffer, error)

	UpdateOfferStatus(ctx context.Context, id int64, status model.OfferStatus) error
	SetOfferAvailability(ctx context.Context, id int64, available bool) error
	SetOfferRoute(ctx context.Context, id int64, dest *model.Location, route []model.Location) error
}

// UserStore is the persistence surface for users.
type UserStore interface {
	CreateUser(ctx context.Context, u *model.User) (*model.User, error)
	GetUser(ctx context.Context, id int64) (*model.User, error)
	GetUserByMobile(ctx context.Context, mobile string) (*model.User, error)
}

// LocationStore holds the latest driver position per active booking.
type LocationStore interface {
	SetLocation(ctx context.Context, s *model.DriverLocationSample) error
	GetLocation(ctx context.Context, bookingID int64) (*model.DriverLocationSample, error)
	DeleteLocation(ctx context.Context, bookingID int64) error
}

// RouteProvider resolves driving routes between two points. The OSRM client
// implements it; a nil provider means route enrichment is skipped.
type RouteProvider interface {
	Route(ctx context.Context, from, to model.Location) (*RoutePlan, error)
}

// RoutePlan is a resolved driving route.
type RoutePlan struct {
	Geometry   []model.Location
	DistanceKm float64
	Duration   time.Duration
}

// Notifier pushes booking events to connected clients. Implemented by the
// websocket registry; the noopNotifier stands in when none is wired.
type Notifier interface {
	NotifyBooking(userID int64, event string, b *model.Booking)
}

type noopNotifier struct{}

func (noopNotifier) NotifyBooking(int64, string, *model.Booking) {}
