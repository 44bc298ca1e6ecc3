// Package repository provides database access for the trip lifecycle engine.
//
// BookingRepository owns the bookings table. Status transitions use guarded
// updates (UPDATE ... WHERE status = expected) so that two concurrent writers
// racing on the same booking serialize at the database: the first wins, the
// second sees ErrStateConflict.
package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/shiva/ridepool/internal/model"
)

// BookingRepository handles booking persistence on PostgreSQL.
type BookingRepository struct {
	pool *pgxpool.Pool
}

// NewBookingRepository creates a new booking repository.
func NewBookingRepository(pool *pgxpool.Pool) *BookingRepository {
	return &BookingRepository{pool: pool}
}

const bookingColumns = `
	id, passenger_id, offer_id, pickup_address, dropoff_address,
	pickup_lat, pickup_lng, dropoff_lat, dropoff_lng,
	status, otp, fare, is_pool, pool_owner_id, distance_km, join_status, created_at`

// scanBooking reads one booking row in bookingColumns order.
func scanBooking(row pgx.Row) (*model.Booking, error) {
	b := &model.Booking{}
	var joinStatus *string
	err := row.Scan(
		&b.ID, &b.PassengerID, &b.OfferID, &b.PickupAddress, &b.DropoffAddress,
		&b.Pickup.Lat, &b.Pickup.Lng, &b.Dropoff.Lat, &b.Dropoff.Lng,
		&b.Status, &b.OTP, &b.Fare, &b.IsPool, &b.PoolOwnerID, &b.DistanceKm,
		&joinStatus, &b.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if joinStatus != nil {
		js := model.JoinStatus(*joinStatus)
		b.JoinStatus = &js
	}
	return b, nil
}

func collectBookings(rows pgx.Rows) ([]model.Booking, error) {
	defer rows.Close()
	var out []model.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, fmt.Errorf("scan booking: %w", err)
		}
		out = append(out, *b)
	}
	return out, rows.Err()
}

// CreateBooking inserts a new booking and fills in its id and created_at.
func (r *BookingRepository) CreateBooking(ctx context.Context, b *model.Booking) (*model.Booking, error) {
	var joinStatus *string
	if b.JoinStatus != nil {
		s := string(*b.JoinStatus)
		joinStatus = &s
	}
	err := r.pool.QueryRow(ctx, `
		INSERT INTO bookings (
			passenger_id, offer_id, pickup_address, dropoff_address,
			pickup_lat, pickup_lng, dropoff_lat, dropoff_lng,
			status, otp, fare, is_pool, pool_owner_id, distance_km, join_status
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)
		RETURNING id, created_at`,
		b.PassengerID, b.OfferID, b.PickupAddress, b.DropoffAddress,
		b.Pickup.Lat, b.Pickup.Lng, b.Dropoff.Lat, b.Dropoff.Lng,
		b.Status, b.OTP, b.Fare, b.IsPool, b.PoolOwnerID, b.DistanceKm, joinStatus,
	).Scan(&b.ID, &b.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("create booking: %w", err)
	}
	return b, nil
}

// GetBooking fetches a booking by id.
func (r *BookingRepository) GetBooking(ctx context.Context, id int64) (*model.Booking, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+bookingColumns+` FROM bookings WHERE id = $1`, id)
	b, err := scanBooking(row)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get booking %d: %w", id, err)
	}
	return b, nil
}

// UpdateBookingStatus moves a booking from one status to another with a
// compare-and-swap guard. The UPDATE only matches while the stored status
// still equals `from`, so of two racing transitions exactly one succeeds and
// the loser gets ErrStateConflict.
func (r *BookingRepository) UpdateBookingStatus(
	ctx context.Context,
	id int64,
	from, to model.BookingStatus,
) (*model.Booking, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE bookings
		SET status = $1
		WHERE id = $2 AND status = $3
		RETURNING `+bookingColumns,
		to, id, from,
	)
	b, err := scanBooking(row)
	if errors.Is(err, ErrNotFound) {
		// Zero rows: either the booking is gone or the guard failed.
		if _, getErr := r.GetBooking(ctx, id); getErr != nil {
			return nil, getErr
		}
		return nil, ErrStateConflict
	}
	if err != nil {
		return nil, fmt.Errorf("update booking %d status: %w", id, err)
	}
	return b, nil
}

// UpdateBookingPool applies the pool-join outcome (join status, booking
// status and fare) in one statement, guarded on join_status = 'pending' so a
// double respond cannot apply twice.
func (r *BookingRepository) UpdateBookingPool(
	ctx context.Context,
	id int64,
	joinStatus model.JoinStatus,
	status model.BookingStatus,
	fare *int,
) (*model.Booking, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE bookings
		SET join_status = $1,
		    status = $2,
		    fare = COALESCE($3, fare)
		WHERE id = $4 AND join_status = 'pending'
		RETURNING `+bookingColumns,
		joinStatus, status, fare, id,
	)
	b, err := scanBooking(row)
	if errors.Is(err, ErrNotFound) {
		if _, getErr := r.GetBooking(ctx, id); getErr != nil {
			return nil, getErr
		}
		return nil, ErrStateConflict
	}
	if err != nil {
		return nil, fmt.Errorf("update booking %d pool state: %w", id, err)
	}
	return b, nil
}

// SetBookingFare finalizes the fare on completion.
func (r *BookingRepository) SetBookingFare(ctx context.Context, id int64, fare int) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE bookings SET fare = $1 WHERE id = $2`, fare, id)
	if err != nil {
		return fmt.Errorf("set booking %d fare: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// AssignBookingOffer binds a booking to a vehicle offer.
func (r *BookingRepository) AssignBookingOffer(ctx context.Context, id, offerID int64) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE bookings SET offer_id = $1 WHERE id = $2`, offerID, id)
	if err != nil {
		return fmt.Errorf("assign booking %d offer: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ListBookingsByStatus returns bookings in the given status. A non-zero
// createdAfter restricts to bookings newer than that instant — this is how
// the 60-second pending-expiry filter is applied, at read time only.
func (r *BookingRepository) ListBookingsByStatus(
	ctx context.Context,
	status model.BookingStatus,
	createdAfter time.Time,
) ([]model.Booking, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+bookingColumns+`
		FROM bookings
		WHERE status = $1 AND ($2::timestamptz IS NULL OR created_at > $2)
		ORDER BY created_at DESC`,
		status, nullableTime(createdAfter),
	)
	if err != nil {
		return nil, fmt.Errorf("list bookings by status %s: %w", status, err)
	}
	return collectBookings(rows)
}

// ListPoolPassengers returns the accepted co-rider bookings of a pool anchor.
func (r *BookingRepository) ListPoolPassengers(ctx context.Context, anchorID int64) ([]model.Booking, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+bookingColumns+`
		FROM bookings
		WHERE pool_owner_id = $1 AND join_status = 'accepted'
		ORDER BY created_at ASC`,
		anchorID,
	)
	if err != nil {
		return nil, fmt.Errorf("list pool passengers of %d: %w", anchorID, err)
	}
	return collectBookings(rows)
}

// ListPendingPoolRequests returns undecided join requests against an offer.
func (r *BookingRepository) ListPendingPoolRequests(ctx context.Context, offerID int64) ([]model.Booking, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+bookingColumns+`
		FROM bookings
		WHERE offer_id = $1 AND join_status = 'pending'
		ORDER BY created_at ASC`,
		offerID,
	)
	if err != nil {
		return nil, fmt.Errorf("list pending pool requests for offer %d: %w", offerID, err)
	}
	return collectBookings(rows)
}

// ActiveBookingForUser returns the passenger's current non-terminal booking,
// newest first, or ErrNotFound.
func (r *BookingRepository) ActiveBookingForUser(ctx context.Context, userID int64) (*model.Booking, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+bookingColumns+`
		FROM bookings
		WHERE passenger_id = $1
		  AND status IN ('pending','accepted','arrived','in_progress')
		ORDER BY created_at DESC
		LIMIT 1`,
		userID,
	)
	b, err := scanBooking(row)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("active booking for user %d: %w", userID, err)
	}
	return b, nil
}

// ActiveBookingForDriver returns the newest non-terminal booking on any of
// the driver's offers, or ErrNotFound.
func (r *BookingRepository) ActiveBookingForDriver(ctx context.Context, driverID int64) (*model.Booking, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT b.id, b.passenger_id, b.offer_id, b.pickup_address, b.dropoff_address,
		       b.pickup_lat, b.pickup_lng, b.dropoff_lat, b.dropoff_lng,
		       b.status, b.otp, b.fare, b.is_pool, b.pool_owner_id, b.distance_km,
		       b.join_status, b.created_at
		FROM bookings b
		JOIN vehicle_offers o ON o.id = b.offer_id
		WHERE o.driver_id = $1
		  AND b.status IN ('accepted','arrived','in_progress')
		ORDER BY b.created_at DESC
		LIMIT 1`,
		driverID,
	)
	b, err := scanBooking(row)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("active booking for driver %d: %w", driverID, err)
	}
	return b, nil
}

// ListTerminalByUser returns the passenger's completed and cancelled
// bookings, most recent first.
func (r *BookingRepository) ListTerminalByUser(ctx context.Context, userID int64) ([]model.Booking, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+bookingColumns+`
		FROM bookings
		WHERE passenger_id = $1 AND status IN ('completed','cancelled')
		ORDER BY created_at DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("history for user %d: %w", userID, err)
	}
	return collectBookings(rows)
}

// ListTerminalByDriver returns terminal bookings served by the driver's
// offers, most recent first.
func (r *BookingRepository) ListTerminalByDriver(ctx context.Context, driverID int64) ([]model.Booking, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT b.id, b.passenger_id, b.offer_id, b.pickup_address, b.dropoff_address,
		       b.pickup_lat, b.pickup_lng, b.dropoff_lat, b.dropoff_lng,
		       b.status, b.otp, b.fare, b.is_pool, b.pool_owner_id, b.distance_km,
		       b.join_status, b.created_at
		FROM bookings b
		JOIN vehicle_offers o ON o.id = b.offer_id
		WHERE o.driver_id = $1 AND b.status IN ('completed','cancelled')
		ORDER BY b.created_at DESC`,
		driverID,
	)
	if err != nil {
		return nil, fmt.Errorf("history for driver %d: %w", driverID, err)
	}
	return collectBookings(rows)
}

// DriverEarnings sums the fares of the driver's completed bookings.
func (r *BookingRepository) DriverEarnings(ctx context.Context, driverID int64) (int, error) {
	var total int
	err := r.pool.QueryRow(ctx, `
		SELECT COALESCE(SUM(b.fare), 0)::int
		FROM bookings b
		JOIN vehicle_offers o ON o.id = b.offer_id
		WHERE o.driver_id = $1 AND b.status = 'completed'`,
		driverID,
	).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("earnings for driver %d: %w", driverID, err)
	}
	return total, nil
}

// DriverTripCount counts the driver's completed bookings.
func (r *BookingRepository) DriverTripCount(ctx context.Context, driverID int64) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx, `
		SELECT COUNT(*)::int
		FROM bookings b
		JOIN vehicle_offers o ON o.id = b.offer_id
		WHERE o.driver_id = $1 AND b.status = 'completed'`,
		driverID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("trip count for driver %d: %w", driverID, err)
	}
	return count, nil
}

// nullableTime maps the zero time to SQL NULL.
func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
