package service

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log"
	"math"
	"math/big"
	"time"

	"github.com/shiva/ridepool/config"
	"github.com/shiva/ridepool/internal/model"
	"github.com/shiva/ridepool/internal/observability"
	"github.com/shiva/ridepool/pkg/geo"
)

// BookingService drives the trip lifecycle:
//
//	pending → accepted → arrived → in_progress → completed
//	pending → cancelled
//
// Every transition is a compare-and-swap in the store, so when two actors
// race on the same booking exactly one wins and the other gets
// ErrInvalidState.
type BookingService struct {
	bookings  BookingStore
	offers    OfferStore
	users     UserStore
	locations LocationStore
	routes    RouteProvider
	notifier  Notifier
	matching  config.MatchingConfig

	// now is swappable so tests can pin the clock.
	now func() time.Time
}

// NewBookingService creates a booking service. routes may be nil (no route
// enrichment); notifier may be nil (no push events).
func NewBookingService(bookings BookingStore, offers OfferStore, users UserStore, locations LocationStore, routes RouteProvider, notifier Notifier, matching config.MatchingConfig) *BookingService {
	if notifier == nil {
		notifier = noopNotifier{}
	}
	return &BookingService{
		bookings:  bookings,
		offers:    offers,
		users:     users,
		locations: locations,
		routes:    routes,
		notifier:  notifier,
		matching:  matching,
		now:       time.Now,
	}
}

// CreateBookingInput is the payload for a new booking request.
type CreateBookingInput struct {
	PassengerID    int64          `json:"passenger_id"`
	OfferID        *int64         `json:"ride_id,omitempty"`
	PickupAddress  string         `json:"pickup_address"`
	DropoffAddress string         `json:"dropoff_address"`
	Pickup         model.Location `json:"pickup"`
	Dropoff        model.Location `json:"dropoff"`
	IsPool         bool           `json:"is_pool"`
}

func validLocation(l model.Location) bool {
	return l.Lat >= -90 && l.Lat <= 90 && l.Lng >= -180 && l.Lng <= 180 &&
		!(l.Lat == 0 && l.Lng == 0)
}

// generateOTP returns a 4-digit code, zero-padded.
func generateOTP() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(10000))
	if err != nil {
		return "", fmt.Errorf("generate otp: %w", err)
	}
	return fmt.Sprintf("%04d", n.Int64()), nil
}

// Create opens a pending booking with a fresh OTP. A passenger can hold at
// most one non-terminal booking at a time.
func (s *BookingService) Create(ctx context.Context, in CreateBookingInput) (*model.Booking, error) {
	if in.PassengerID <= 0 {
		return nil, validationf("passenger_id is required")
	}
	if !validLocation(in.Pickup) || !validLocation(in.Dropoff) {
		return nil, validationf("pickup and dropoff coordinates are required")
	}
	if _, err := s.users.GetUser(ctx, in.PassengerID); err != nil {
		if errors.Is(err, ErrNotFound) || errors.Is(mapStoreErr(err), ErrNotFound) {
			return nil, validationf("passenger %d does not exist", in.PassengerID)
		}
		return nil, err
	}

	if active, err := s.bookings.ActiveBookingForUser(ctx, in.PassengerID); err == nil {
		return nil, fmt.Errorf("%w: booking %d is still active", ErrInvalidState, active.ID)
	} else if !errors.Is(mapStoreErr(err), ErrNotFound) {
		return nil, mapStoreErr(err)
	}

	if in.OfferID != nil {
		if _, err := s.offers.GetOffer(ctx, *in.OfferID); err != nil {
			if errors.Is(mapStoreErr(err), ErrNotFound) {
				return nil, validationf("ride %d does not exist", *in.OfferID)
			}
			return nil, mapStoreErr(err)
		}
	}

	otp, err := generateOTP()
	if err != nil {
		return nil, err
	}

	b := &model.Booking{
		PassengerID:    in.PassengerID,
		OfferID:        in.OfferID,
		PickupAddress:  in.PickupAddress,
		DropoffAddress: in.DropoffAddress,
		Pickup:         in.Pickup,
		Dropoff:        in.Dropoff,
		Status:         model.BookingPending,
		OTP:            otp,
		IsPool:         in.IsPool,
		DistanceKm:     geo.HaversineKm(in.Pickup, in.Dropoff),
	}
	if in.IsPool {
		js := model.JoinStatusOwner
		b.JoinStatus = &js
	}

	created, err := s.bookings.CreateBooking(ctx, b)
	if err != nil {
		return nil, mapStoreErr(err)
	}
	log.Printf("[booking] created booking %d for passenger %d (pool=%t, %.2f km)",
		created.ID, created.PassengerID, created.IsPool, created.DistanceKm)
	observability.BookingsCreated.Inc()
	return created, nil
}

// ComputeFare prices a trip: distance times the per-km rate, rounded to the
// nearest whole unit.
func ComputeFare(distanceKm float64, pricePerKm int) int {
	return int(math.Round(distanceKm * float64(pricePerKm)))
}

// Accept assigns the booking to the driver's active offer and moves it
// pending → accepted. For a pool anchor this also seats the passenger,
// prices the trip, and records the pool's destination and route.
func (s *BookingService) Accept(ctx context.Context, driverID, bookingID int64) (*model.Booking, error) {
	b, err := s.bookings.GetBooking(ctx, bookingID)
	if err != nil {
		return nil, mapStoreErr(err)
	}
	if b.Status != model.BookingPending {
		return nil, fmt.Errorf("%w: booking %d is %s", ErrInvalidState, bookingID, b.Status)
	}

	offer, err := s.offerForDriver(ctx, driverID, b.OfferID)
	if err != nil {
		return nil, err
	}

	if b.IsPool {
		// Seat the anchor passenger first: if the vehicle filled up since
		// the booking was placed, the accept must fail before any status change.
		if _, err := s.offers.IncrementOccupied(ctx, offer.ID); err != nil {
			return nil, mapStoreErr(err)
		}
	}

	updated, err := s.bookings.UpdateBookingStatus(ctx, bookingID, model.BookingPending, model.BookingAccepted)
	if err != nil {
		if b.IsPool {
			// Release the seat claimed above: the booking moved under us
			// (cancel or a faster accept).
			if _, relErr := s.offers.DecrementOccupied(ctx, offer.ID); relErr != nil {
				log.Printf("[booking] releasing seat on ride %d failed: %v", offer.ID, relErr)
			}
		}
		return nil, mapStoreErr(err)
	}

	if updated.OfferID == nil {
		if err := s.bookings.AssignBookingOffer(ctx, bookingID, offer.ID); err != nil {
			return nil, mapStoreErr(err)
		}
		updated.OfferID = &offer.ID
	}
	fare := ComputeFare(updated.DistanceKm, offer.PricePerKm)
	if err := s.bookings.SetBookingFare(ctx, bookingID, fare); err != nil {
		return nil, mapStoreErr(err)
	}
	updated.Fare = &fare

	if updated.IsPool {
		s.recordPoolRoute(ctx, offer, updated)
	}

	log.Printf("[booking] driver %d accepted booking %d (fare %d)", driverID, bookingID, fare)
	observability.BookingTransitions.WithLabelValues(string(model.BookingAccepted)).Inc()
	s.notifier.NotifyBooking(updated.PassengerID, "booking_accepted", updated)
	return updated, nil
}

// recordPoolRoute stores the pool's destination and, when a route provider is
// wired, the driving polyline from pickup to dropoff. Routing failures only
// log — the accept already happened.
func (s *BookingService) recordPoolRoute(ctx context.Context, offer *model.VehicleOffer, b *model.Booking) {
	var route []model.Location
	if s.routes != nil {
		plan, err := s.routes.Route(ctx, b.Pickup, b.Dropoff)
		if err != nil {
			log.Printf("[booking] route lookup for booking %d failed: %v", b.ID, err)
		} else {
			route = plan.Geometry
		}
	}
	dest := b.Dropoff
	if err := s.offers.SetOfferRoute(ctx, offer.ID, &dest, route); err != nil {
		log.Printf("[booking] storing route for ride %d failed: %v", offer.ID, err)
	}
}

// MarkArrived moves the booking accepted → arrived (driver at pickup).
func (s *BookingService) MarkArrived(ctx context.Context, driverID, bookingID int64) (*model.Booking, error) {
	if err := s.authorizeDriver(ctx, driverID, bookingID); err != nil {
		return nil, err
	}
	updated, err := s.bookings.UpdateBookingStatus(ctx, bookingID, model.BookingAccepted, model.BookingArrived)
	if err != nil {
		return nil, mapStoreErr(err)
	}
	log.Printf("[booking] driver %d arrived for booking %d", driverID, bookingID)
	observability.BookingTransitions.WithLabelValues(string(model.BookingArrived)).Inc()
	s.notifier.NotifyBooking(updated.PassengerID, "driver_arrived", updated)
	return updated, nil
}

// StartTrip verifies the passenger's OTP and moves arrived → in_progress.
// A wrong code leaves the booking in arrived so the passenger can retry.
func (s *BookingService) StartTrip(ctx context.Context, driverID, bookingID int64, otp string) (*model.Booking, error) {
	if err := s.authorizeDriver(ctx, driverID, bookingID); err != nil {
		return nil, err
	}
	b, err := s.bookings.GetBooking(ctx, bookingID)
	if err != nil {
		return nil, mapStoreErr(err)
	}
	if b.Status != model.BookingArrived {
		return nil, fmt.Errorf("%w: booking %d is %s", ErrInvalidState, bookingID, b.Status)
	}
	if otp == "" || otp != b.OTP {
		log.Printf("[booking] otp mismatch on booking %d", bookingID)
		return nil, ErrOtpMismatch
	}

	updated, err := s.bookings.UpdateBookingStatus(ctx, bookingID, model.BookingArrived, model.BookingInProgress)
	if err != nil {
		return nil, mapStoreErr(err)
	}
	if updated.OfferID != nil {
		if err := s.offers.UpdateOfferStatus(ctx, *updated.OfferID, model.OfferStatusInProgress); err != nil {
			log.Printf("[booking] marking ride %d in_progress failed: %v", *updated.OfferID, err)
		}
	}
	log.Printf("[booking] trip started for booking %d", bookingID)
	observability.BookingTransitions.WithLabelValues(string(model.BookingInProgress)).Inc()
	s.notifier.NotifyBooking(updated.PassengerID, "trip_started", updated)
	return updated, nil
}

// Complete moves in_progress → completed, retires the offer, and evicts the
// live location entry.
func (s *BookingService) Complete(ctx context.Context, driverID, bookingID int64) (*model.Booking, error) {
	if err := s.authorizeDriver(ctx, driverID, bookingID); err != nil {
		return nil, err
	}
	updated, err := s.bookings.UpdateBookingStatus(ctx, bookingID, model.BookingInProgress, model.BookingCompleted)
	if err != nil {
		return nil, mapStoreErr(err)
	}
	if updated.OfferID != nil {
		if err := s.offers.UpdateOfferStatus(ctx, *updated.OfferID, model.OfferStatusCompleted); err != nil {
			log.Printf("[booking] retiring ride %d failed: %v", *updated.OfferID, err)
		}
		if err := s.offers.SetOfferAvailability(ctx, *updated.OfferID, false); err != nil {
			log.Printf("[booking] hiding ride %d failed: %v", *updated.OfferID, err)
		}
	}
	if s.locations != nil {
		if err := s.locations.DeleteLocation(ctx, bookingID); err != nil {
			log.Printf("[booking] evicting location for booking %d failed: %v", bookingID, err)
		}
	}
	log.Printf("[booking] booking %d completed", bookingID)
	observability.BookingTransitions.WithLabelValues(string(model.BookingCompleted)).Inc()
	s.notifier.NotifyBooking(updated.PassengerID, "trip_completed", updated)
	return updated, nil
}

// Cancel lets the passenger withdraw a booking that no driver has accepted
// yet. Once accepted the booking can only move forward.
func (s *BookingService) Cancel(ctx context.Context, passengerID, bookingID int64) (*model.Booking, error) {
	b, err := s.bookings.GetBooking(ctx, bookingID)
	if err != nil {
		return nil, mapStoreErr(err)
	}
	if b.PassengerID != passengerID {
		return nil, ErrForbidden
	}
	updated, err := s.bookings.UpdateBookingStatus(ctx, bookingID, model.BookingPending, model.BookingCancelled)
	if err != nil {
		return nil, mapStoreErr(err)
	}
	if s.locations != nil {
		if err := s.locations.DeleteLocation(ctx, bookingID); err != nil {
			log.Printf("[booking] evicting location for booking %d failed: %v", bookingID, err)
		}
	}
	log.Printf("[booking] booking %d cancelled by passenger %d", bookingID, passengerID)
	observability.BookingTransitions.WithLabelValues(string(model.BookingCancelled)).Inc()
	return updated, nil
}

// Get fetches a single booking.
func (s *BookingService) Get(ctx context.Context, id int64) (*model.Booking, error) {
	b, err := s.bookings.GetBooking(ctx, id)
	if err != nil {
		return nil, mapStoreErr(err)
	}
	return b, nil
}

// Detail returns a booking joined with its ride and driver, when assigned.
func (s *BookingService) Detail(ctx context.Context, id int64) (*model.BookingDetail, error) {
	b, err := s.bookings.GetBooking(ctx, id)
	if err != nil {
		return nil, mapStoreErr(err)
	}
	detail := &model.BookingDetail{Booking: *b}
	if b.OfferID != nil {
		offer, err := s.offers.GetOffer(ctx, *b.OfferID)
		if err == nil {
			detail.Ride = offer
			if offer.DriverID != nil {
				if driver, err := s.users.GetUser(ctx, *offer.DriverID); err == nil {
					detail.Driver = driver
				}
			}
		}
	}
	return detail, nil
}

// ListByStatus returns bookings in a status, newest first. Pending bookings
// older than the expiry window are filtered out at read time: nothing in the
// store flips them, they simply stop being offered to drivers.
func (s *BookingService) ListByStatus(ctx context.Context, status model.BookingStatus) ([]model.Booking, error) {
	switch status {
	case model.BookingPending, model.BookingAccepted, model.BookingArrived,
		model.BookingInProgress, model.BookingCompleted, model.BookingCancelled:
	default:
		return nil, validationf("unknown status %q", status)
	}
	var createdAfter time.Time
	if status == model.BookingPending {
		createdAfter = s.now().Add(-s.matching.PendingExpiry)
	}
	out, err := s.bookings.ListBookingsByStatus(ctx, status, createdAfter)
	if err != nil {
		return nil, mapStoreErr(err)
	}
	return out, nil
}

// ActiveForUser returns the passenger's current non-terminal booking.
func (s *BookingService) ActiveForUser(ctx context.Context, userID int64) (*model.Booking, error) {
	b, err := s.bookings.ActiveBookingForUser(ctx, userID)
	if err != nil {
		return nil, mapStoreErr(err)
	}
	return b, nil
}

// ActiveForDriver returns the driver's current assigned booking.
func (s *BookingService) ActiveForDriver(ctx context.Context, driverID int64) (*model.Booking, error) {
	b, err := s.bookings.ActiveBookingForDriver(ctx, driverID)
	if err != nil {
		return nil, mapStoreErr(err)
	}
	return b, nil
}

// offerForDriver resolves the offer an accept should bind to: the booking's
// targeted ride when set (it must belong to the driver), otherwise the
// driver's active shift.
func (s *BookingService) offerForDriver(ctx context.Context, driverID int64, offerID *int64) (*model.VehicleOffer, error) {
	if offerID != nil {
		offer, err := s.offers.GetOffer(ctx, *offerID)
		if err != nil {
			return nil, mapStoreErr(err)
		}
		if offer.DriverID == nil || *offer.DriverID != driverID {
			return nil, ErrForbidden
		}
		return offer, nil
	}
	offer, err := s.offers.ActiveOfferForDriver(ctx, driverID)
	if err != nil {
		if errors.Is(mapStoreErr(err), ErrNotFound) {
			return nil, fmt.Errorf("%w: driver %d has no active ride", ErrInvalidState, driverID)
		}
		return nil, mapStoreErr(err)
	}
	return offer, nil
}

// authorizeDriver checks the booking's assigned ride belongs to the driver.
func (s *BookingService) authorizeDriver(ctx context.Context, driverID, bookingID int64) error {
	b, err := s.bookings.GetBooking(ctx, bookingID)
	if err != nil {
		return mapStoreErr(err)
	}
	if b.OfferID == nil {
		return fmt.Errorf("%w: booking %d has no assigned ride", ErrInvalidState, bookingID)
	}
	offer, err := s.offers.GetOffer(ctx, *b.OfferID)
	if err != nil {
		return mapStoreErr(err)
	}
	if offer.DriverID == nil || *offer.DriverID != driverID {
		return ErrForbidden
	}
	return nil
}
