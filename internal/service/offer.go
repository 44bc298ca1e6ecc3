package service

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/shiva/ridepool/internal/model"
)

// OfferService manages driver shifts: going online publishes a vehicle
// offer, going offline withdraws it from matching.
type OfferService struct {
	offers OfferStore
	users  UserStore
}

// NewOfferService creates an offer service.
func NewOfferService(offers OfferStore, users UserStore) *OfferService {
	return &OfferService{offers: offers, users: users}
}

// GoOnlineInput is the payload for publishing a vehicle offer.
type GoOnlineInput struct {
	DriverID   int64          `json:"driver_id"`
	CarModel   string         `json:"car_model"`
	CarNumber  string         `json:"car_number"`
	Position   model.Location `json:"position"`
	Heading    float64        `json:"heading"`
	FareType   model.FareType `json:"fare_type"`
	PricePerKm int            `json:"price_per_km"`
	Capacity   int            `json:"capacity"`
}

// GoOnline publishes a fresh offer for the driver. A driver can run only one
// shift at a time; the second call fails until the first offer completes or
// goes offline.
func (s *OfferService) GoOnline(ctx context.Context, in GoOnlineInput) (*model.VehicleOffer, error) {
	if in.DriverID <= 0 {
		return nil, validationf("driver_id is required")
	}
	if !validLocation(in.Position) {
		return nil, validationf("position coordinates are required")
	}
	if in.PricePerKm <= 0 {
		return nil, validationf("price_per_km must be positive")
	}
	if in.Capacity <= 0 {
		return nil, validationf("capacity must be positive")
	}
	switch in.FareType {
	case model.FareTypeEconomy, model.FareTypePremium, model.FareTypePool:
	default:
		return nil, validationf("unknown fare_type %q", in.FareType)
	}

	driver, err := s.users.GetUser(ctx, in.DriverID)
	if err != nil {
		if errors.Is(mapStoreErr(err), ErrNotFound) {
			return nil, validationf("driver %d does not exist", in.DriverID)
		}
		return nil, mapStoreErr(err)
	}
	if driver.Role != model.RoleDriver {
		return nil, fmt.Errorf("%w: user %d is not a driver", ErrForbidden, in.DriverID)
	}

	if active, err := s.offers.ActiveOfferForDriver(ctx, in.DriverID); err == nil {
		return nil, fmt.Errorf("%w: driver %d already has active ride %d", ErrInvalidState, in.DriverID, active.ID)
	} else if !errors.Is(mapStoreErr(err), ErrNotFound) {
		return nil, mapStoreErr(err)
	}

	o := &model.VehicleOffer{
		DriverID:    &in.DriverID,
		CarModel:    in.CarModel,
		CarNumber:   in.CarNumber,
		Position:    in.Position,
		Heading:     in.Heading,
		IsAvailable: true,
		FareType:    in.FareType,
		PricePerKm:  in.PricePerKm,
		Capacity:    in.Capacity,
		Status:      model.OfferStatusEmpty,
	}
	created, err := s.offers.CreateOffer(ctx, o)
	if err != nil {
		return nil, mapStoreErr(err)
	}
	log.Printf("[offer] driver %d online with ride %d (%s, %d seats)",
		in.DriverID, created.ID, created.FareType, created.Capacity)
	return created, nil
}

// GoOffline withdraws the driver's active offer from matching. The row stays
// for history joins.
func (s *OfferService) GoOffline(ctx context.Context, driverID int64) error {
	offer, err := s.offers.ActiveOfferForDriver(ctx, driverID)
	if err != nil {
		return mapStoreErr(err)
	}
	if offer.Occupied > 0 && offer.Status != model.OfferStatusCompleted {
		return fmt.Errorf("%w: ride %d still has %d passengers", ErrInvalidState, offer.ID, offer.Occupied)
	}
	if err := s.offers.SetOfferAvailability(ctx, offer.ID, false); err != nil {
		return mapStoreErr(err)
	}
	log.Printf("[offer] driver %d offline (ride %d withdrawn)", driverID, offer.ID)
	return nil
}

// Get fetches an offer by id.
func (s *OfferService) Get(ctx context.Context, id int64) (*model.VehicleOffer, error) {
	o, err := s.offers.GetOffer(ctx, id)
	if err != nil {
		return nil, mapStoreErr(err)
	}
	return o, nil
}

// List returns all offers, newest first.
func (s *OfferService) List(ctx context.Context) ([]model.VehicleOffer, error) {
	out, err := s.offers.ListOffers(ctx)
	if err != nil {
		return nil, mapStoreErr(err)
	}
	return out, nil
}

// ActiveForDriver returns the driver's current offer.
func (s *OfferService) ActiveForDriver(ctx context.Context, driverID int64) (*model.VehicleOffer, error) {
	o, err := s.offers.ActiveOfferForDriver(ctx, driverID)
	if err != nil {
		return nil, mapStoreErr(err)
	}
	return o, nil
}
