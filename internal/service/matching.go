package service

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/shiva/ridepool/config"
	"github.com/shiva/ridepool/internal/model"
	"github.com/shiva/ridepool/internal/observability"
	"github.com/shiva/ridepool/pkg/geo"
)

// MatchingService finds pools a passenger can join and resolves join
// requests. Two discovery modes exist:
//
//   - pool anchors: accepted pool bookings whose pickup and dropoff both lie
//     within the pickup/dropoff radii of the searcher's points;
//   - route matches: boarding pool rides whose final destination clusters
//     with the searcher's destination and whose planned route passes close
//     to the searcher's pickup.
type MatchingService struct {
	bookings BookingStore
	offers   OfferStore
	users    UserStore
	notifier Notifier
	cfg      config.MatchingConfig
}

// NewMatchingService creates a matching service.
func NewMatchingService(bookings BookingStore, offers OfferStore, users UserStore, notifier Notifier, cfg config.MatchingConfig) *MatchingService {
	if notifier == nil {
		notifier = noopNotifier{}
	}
	return &MatchingService{bookings: bookings, offers: offers, users: users, notifier: notifier, cfg: cfg}
}

// FindAvailablePools returns joinable pool anchors near the given pickup and
// dropoff. Both anchor endpoints must be inside their radius — a pool going
// somewhere else entirely is never offered, however close its pickup.
func (s *MatchingService) FindAvailablePools(ctx context.Context, pickup, dropoff model.Location) ([]model.PoolCandidate, error) {
	if !validLocation(pickup) || !validLocation(dropoff) {
		return nil, validationf("pickup and dropoff coordinates are required")
	}

	anchors, err := s.bookings.ListBookingsByStatus(ctx, model.BookingAccepted, zeroTime)
	if err != nil {
		return nil, mapStoreErr(err)
	}

	candidates := []model.PoolCandidate{}
	for _, anchor := range anchors {
		if !anchor.IsPoolAnchor() || anchor.OfferID == nil {
			continue
		}
		pickupKm := geo.HaversineKm(pickup, anchor.Pickup)
		dropoffKm := geo.HaversineKm(dropoff, anchor.Dropoff)
		// Radii are exclusive: a candidate sitting exactly on the boundary
		// is not admitted.
		if pickupKm >= s.cfg.PoolPickupRadiusKm || dropoffKm >= s.cfg.PoolDropoffRadiusKm {
			continue
		}

		offer, err := s.offers.GetOffer(ctx, *anchor.OfferID)
		if err != nil {
			log.Printf("[matching] ride %d for anchor %d missing: %v", *anchor.OfferID, anchor.ID, err)
			continue
		}
		if offer.SeatsLeft() <= 0 || !offer.IsAvailable {
			continue
		}

		anchor := anchor
		c := model.PoolCandidate{
			Booking:           &anchor,
			Offer:             offer,
			PickupDistanceKm:  pickupKm,
			DropoffDistanceKm: dropoffKm,
			AvailableSeats:    offer.SeatsLeft(),
		}
		if offer.DriverID != nil {
			if driver, err := s.users.GetUser(ctx, *offer.DriverID); err == nil {
				c.Driver = driver
			}
		}
		candidates = append(candidates, c)
	}
	return candidates, nil
}

// FindRouteMatches returns boarding pool rides whose destination lies within
// the cluster radius of dest and whose planned route passes within the
// proximity threshold of pickup.
func (s *MatchingService) FindRouteMatches(ctx context.Context, pickup, dest model.Location) ([]model.PoolCandidate, error) {
	if !validLocation(pickup) || !validLocation(dest) {
		return nil, validationf("pickup and destination coordinates are required")
	}

	offers, err := s.offers.ListActivePoolOffers(ctx)
	if err != nil {
		return nil, mapStoreErr(err)
	}

	candidates := []model.PoolCandidate{}
	for _, offer := range offers {
		if offer.FinalDestination == nil || len(offer.RouteGeometry) == 0 {
			continue
		}
		destKm := geo.HaversineKm(dest, *offer.FinalDestination)
		if destKm > s.cfg.DestClusterRadiusKm {
			continue
		}
		routeKm := geo.PointToPolylineKm(pickup, offer.RouteGeometry)
		if routeKm > s.cfg.RouteProximityKm {
			continue
		}

		o := offer
		c := model.PoolCandidate{
			Offer:             &o,
			PickupDistanceKm:  routeKm,
			DropoffDistanceKm: destKm,
			AvailableSeats:    o.SeatsLeft(),
		}
		if o.DriverID != nil {
			if driver, err := s.users.GetUser(ctx, *o.DriverID); err == nil {
				c.Driver = driver
			}
		}
		candidates = append(candidates, c)
	}
	return candidates, nil
}

// JoinRequestInput is the payload for asking to join an existing pool.
// PoolID is the anchor booking's id, not the ride's.
type JoinRequestInput struct {
	PassengerID    int64          `json:"passenger_id"`
	PoolID         int64          `json:"pool_id"`
	PickupAddress  string         `json:"pickup_address"`
	DropoffAddress string         `json:"dropoff_address"`
	Pickup         model.Location `json:"pickup"`
	Dropoff        model.Location `json:"dropoff"`
}

// RequestJoin opens a pending join booking against a pool anchor. The new
// booking records the anchor's id in PoolOwnerID and rides on the anchor's
// offer. The seat is NOT reserved here — capacity is only claimed when the
// driver accepts, so a ride can hold more pending requests than free seats.
func (s *MatchingService) RequestJoin(ctx context.Context, in JoinRequestInput) (*model.Booking, error) {
	if in.PassengerID <= 0 || in.PoolID <= 0 {
		return nil, validationf("passenger_id and pool_id are required")
	}
	if !validLocation(in.Pickup) || !validLocation(in.Dropoff) {
		return nil, validationf("pickup and dropoff coordinates are required")
	}

	anchor, err := s.bookings.GetBooking(ctx, in.PoolID)
	if err != nil {
		return nil, mapStoreErr(err)
	}
	if !anchor.IsPoolAnchor() || anchor.OfferID == nil {
		return nil, fmt.Errorf("%w: booking %d is not a pool anchor", ErrNotFound, in.PoolID)
	}

	offer, err := s.offers.GetOffer(ctx, *anchor.OfferID)
	if err != nil {
		return nil, mapStoreErr(err)
	}
	if offer.FareType != model.FareTypePool {
		return nil, validationf("ride %d is not a pool ride", offer.ID)
	}
	if offer.Status != model.OfferStatusEmpty && offer.Status != model.OfferStatusBoarding {
		return nil, fmt.Errorf("%w: ride %d is %s", ErrInvalidState, offer.ID, offer.Status)
	}
	if offer.SeatsLeft() <= 0 {
		return nil, ErrCapacityExceeded
	}

	if active, err := s.bookings.ActiveBookingForUser(ctx, in.PassengerID); err == nil {
		return nil, fmt.Errorf("%w: booking %d is still active", ErrInvalidState, active.ID)
	} else if !errors.Is(mapStoreErr(err), ErrNotFound) {
		return nil, mapStoreErr(err)
	}

	otp, err := generateOTP()
	if err != nil {
		return nil, err
	}

	js := model.JoinStatusPending
	b := &model.Booking{
		PassengerID:    in.PassengerID,
		OfferID:        anchor.OfferID,
		PickupAddress:  in.PickupAddress,
		DropoffAddress: in.DropoffAddress,
		Pickup:         in.Pickup,
		Dropoff:        in.Dropoff,
		Status:         model.BookingPending,
		OTP:            otp,
		IsPool:         true,
		PoolOwnerID:    &anchor.ID,
		JoinStatus:     &js,
		DistanceKm:     geo.HaversineKm(in.Pickup, in.Dropoff),
	}

	created, err := s.bookings.CreateBooking(ctx, b)
	if err != nil {
		return nil, mapStoreErr(err)
	}
	log.Printf("[matching] passenger %d requested to join pool %d on ride %d (booking %d)",
		in.PassengerID, anchor.ID, offer.ID, created.ID)
	if offer.DriverID != nil {
		s.notifier.NotifyBooking(*offer.DriverID, "join_requested", created)
	}
	return created, nil
}

// RespondToJoin resolves a pending join request. Accepting claims a seat
// under the capacity guard and prices the joiner's leg; rejecting cancels
// the booking without touching occupancy. Either way the request can only be
// resolved once. A positive pricePerKm overrides the offer's rate for this
// one leg; zero means the offer rate.
func (s *MatchingService) RespondToJoin(ctx context.Context, driverID, bookingID int64, accept bool, pricePerKm int) (*model.Booking, error) {
	if pricePerKm < 0 {
		return nil, validationf("price_per_km must not be negative")
	}
	b, err := s.bookings.GetBooking(ctx, bookingID)
	if err != nil {
		return nil, mapStoreErr(err)
	}
	if !b.IsPool || b.JoinStatus == nil || b.OfferID == nil {
		return nil, fmt.Errorf("%w: booking %d is not a pool join request", ErrInvalidState, bookingID)
	}
	if *b.JoinStatus != model.JoinStatusPending {
		return nil, fmt.Errorf("%w: join request %d already %s", ErrInvalidState, bookingID, *b.JoinStatus)
	}

	offer, err := s.offers.GetOffer(ctx, *b.OfferID)
	if err != nil {
		return nil, mapStoreErr(err)
	}
	if offer.DriverID == nil || *offer.DriverID != driverID {
		return nil, ErrForbidden
	}

	if !accept {
		updated, err := s.bookings.UpdateBookingPool(ctx, bookingID, model.JoinStatusRejected, model.BookingCancelled, nil)
		if err != nil {
			return nil, mapStoreErr(err)
		}
		log.Printf("[matching] driver %d rejected join request %d", driverID, bookingID)
		s.notifier.NotifyBooking(updated.PassengerID, "join_rejected", updated)
		return updated, nil
	}

	// Claim the seat before flipping the booking: if two accepts race for
	// the last seat, the capacity guard decides and the loser's booking
	// stays pending.
	if _, err := s.offers.IncrementOccupied(ctx, offer.ID); err != nil {
		serr := mapStoreErr(err)
		if errors.Is(serr, ErrCapacityExceeded) {
			observability.CapacityConflicts.Inc()
		}
		return nil, serr
	}

	rate := offer.PricePerKm
	if pricePerKm > 0 {
		rate = pricePerKm
	}
	fare := ComputeFare(b.DistanceKm, rate)
	updated, err := s.bookings.UpdateBookingPool(ctx, bookingID, model.JoinStatusAccepted, model.BookingAccepted, &fare)
	if err != nil {
		// Another resolution won; give the claimed seat back.
		if _, relErr := s.offers.DecrementOccupied(ctx, offer.ID); relErr != nil {
			log.Printf("[matching] releasing seat on ride %d failed: %v", offer.ID, relErr)
		}
		return nil, mapStoreErr(err)
	}
	log.Printf("[matching] driver %d accepted join request %d (fare %d)", driverID, bookingID, fare)
	observability.PoolJoinAccepts.Inc()
	s.notifier.NotifyBooking(updated.PassengerID, "join_accepted", updated)
	return updated, nil
}

// ListPoolPassengers returns the accepted co-riders of a pool, keyed by the
// anchor booking's id.
func (s *MatchingService) ListPoolPassengers(ctx context.Context, anchorBookingID int64) ([]model.Booking, error) {
	out, err := s.bookings.ListPoolPassengers(ctx, anchorBookingID)
	if err != nil {
		return nil, mapStoreErr(err)
	}
	return out, nil
}

// ListPendingPoolRequests returns unresolved join requests against a ride.
func (s *MatchingService) ListPendingPoolRequests(ctx context.Context, rideID int64) ([]model.Booking, error) {
	out, err := s.bookings.ListPendingPoolRequests(ctx, rideID)
	if err != nil {
		return nil, mapStoreErr(err)
	}
	return out, nil
}
