package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/shiva/ridepool/internal/model"
)

// locationTTL bounds stale entries if an eviction is ever missed (driver app
// crash mid-trip). Normal cleanup is the explicit delete on terminal status.
const locationTTL = 2 * time.Hour

// LocationRepository keeps the latest driver position per active booking in
// Redis. Writes are last-write-wins: each SET replaces the previous sample
// wholesale, so no history accumulates.
type LocationRepository struct {
	client *redis.Client
}

// NewLocationRepository creates a Redis-backed location repository.
func NewLocationRepository(client *redis.Client) *LocationRepository {
	return &LocationRepository{client: client}
}

func locationKey(bookingID int64) string {
	return fmt.Sprintf("driver_location:%d", bookingID)
}

// SetLocation stores the newest sample for a booking, replacing any prior one.
func (r *LocationRepository) SetLocation(ctx context.Context, s *model.DriverLocationSample) error {
	payload, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("encode location sample: %w", err)
	}
	if err := r.client.Set(ctx, locationKey(s.BookingID), payload, locationTTL).Err(); err != nil {
		return fmt.Errorf("set location for booking %d: %w", s.BookingID, err)
	}
	return nil
}

// GetLocation returns the latest sample for a booking, or ErrNotFound.
func (r *LocationRepository) GetLocation(ctx context.Context, bookingID int64) (*model.DriverLocationSample, error) {
	payload, err := r.client.Get(ctx, locationKey(bookingID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get location for booking %d: %w", bookingID, err)
	}
	s := &model.DriverLocationSample{}
	if err := json.Unmarshal(payload, s); err != nil {
		return nil, fmt.Errorf("decode location sample: %w", err)
	}
	return s, nil
}

// DeleteLocation evicts the sample for a booking. Deleting a missing key is
// not an error — eviction must be idempotent.
func (r *LocationRepository) DeleteLocation(ctx context.Context, bookingID int64) error {
	if err := r.client.Del(ctx, locationKey(bookingID)).Err(); err != nil {
		return fmt.Errorf("delete location for booking %d: %w", bookingID, err)
	}
	return nil
}
