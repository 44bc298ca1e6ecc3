package service

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/shiva/ridepool/internal/model"
)

// LocationPublisher forwards accepted samples to a stream for downstream
// consumers (analytics, surge models). Implemented by the Kafka producer; a
// nil publisher disables streaming.
type LocationPublisher interface {
	Publish(ctx context.Context, s *model.DriverLocationSample) error
}

// LocationService tracks the latest driver position per active booking.
// Reports against terminal bookings are dropped, so the tracker never
// resurrects a finished trip.
type LocationService struct {
	locations LocationStore
	bookings  BookingStore
	publisher LocationPublisher
	now       func() time.Time
}

// NewLocationService creates a location service. publisher may be nil.
func NewLocationService(locations LocationStore, bookings BookingStore, publisher LocationPublisher) *LocationService {
	return &LocationService{
		locations: locations,
		bookings:  bookings,
		publisher: publisher,
		now:       time.Now,
	}
}

// Report stores the newest sample for a booking, last write wins. The
// booking must exist and be non-terminal.
func (s *LocationService) Report(ctx context.Context, bookingID int64, pos model.Location, heading float64) error {
	if !validLocation(pos) {
		return validationf("position coordinates are required")
	}
	b, err := s.bookings.GetBooking(ctx, bookingID)
	if err != nil {
		return mapStoreErr(err)
	}
	if model.IsTerminal(b.Status) {
		return fmt.Errorf("%w: booking %d is %s", ErrInvalidState, bookingID, b.Status)
	}

	sample := &model.DriverLocationSample{
		BookingID:  bookingID,
		Position:   pos,
		Heading:    heading,
		ReportedAt: s.now(),
	}
	if err := s.locations.SetLocation(ctx, sample); err != nil {
		return mapStoreErr(err)
	}
	if s.publisher != nil {
		if err := s.publisher.Publish(ctx, sample); err != nil {
			// Streaming is best effort; the tracker is the source of truth.
			log.Printf("[location] publish for booking %d failed: %v", bookingID, err)
		}
	}
	return nil
}

// Latest returns the most recent sample for a booking, or ErrNotFound when
// none was reported or the entry was evicted.
func (s *LocationService) Latest(ctx context.Context, bookingID int64) (*model.DriverLocationSample, error) {
	sample, err := s.locations.GetLocation(ctx, bookingID)
	if err != nil {
		return nil, mapStoreErr(err)
	}
	return sample, nil
}

// Evict drops the tracked entry for a booking. Idempotent.
func (s *LocationService) Evict(ctx context.Context, bookingID int64) error {
	return mapStoreErr(s.locations.DeleteLocation(ctx, bookingID))
}
