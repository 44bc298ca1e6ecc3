package service

import (
	"context"

	"github.com/shiva/ridepool/internal/model"
)

// HistoryService aggregates finished trips: per-user ride history and
// per-driver earnings. Only completed trips count toward earnings; cancelled
// bookings appear in history with no fare contribution.
type HistoryService struct {
	bookings BookingStore
}

// NewHistoryService creates a history service.
func NewHistoryService(bookings BookingStore) *HistoryService {
	return &HistoryService{bookings: bookings}
}

// UserHistory returns a passenger's completed and cancelled bookings,
// newest first.
func (s *HistoryService) UserHistory(ctx context.Context, userID int64) ([]model.Booking, error) {
	out, err := s.bookings.ListTerminalByUser(ctx, userID)
	if err != nil {
		return nil, mapStoreErr(err)
	}
	return out, nil
}

// DriverHistory returns trips a driver finished or had cancelled,
// newest first.
func (s *HistoryService) DriverHistory(ctx context.Context, driverID int64) ([]model.Booking, error) {
	out, err := s.bookings.ListTerminalByDriver(ctx, driverID)
	if err != nil {
		return nil, mapStoreErr(err)
	}
	return out, nil
}

// DriverStats sums a driver's completed-trip fares and counts the trips.
func (s *HistoryService) DriverStats(ctx context.Context, driverID int64) (*model.DriverStats, error) {
	earnings, err := s.bookings.DriverEarnings(ctx, driverID)
	if err != nil {
		return nil, mapStoreErr(err)
	}
	trips, err := s.bookings.DriverTripCount(ctx, driverID)
	if err != nil {
		return nil, mapStoreErr(err)
	}
	return &model.DriverStats{Earnings: earnings, TotalTrips: trips}, nil
}
