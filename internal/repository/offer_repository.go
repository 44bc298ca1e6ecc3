package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/shiva/ridepool/internal/model"
)

// OfferRepository owns the vehicle_offers table.
//
// The occupancy increment is the one genuinely contended write in the system
// (two join-accepts racing for the last seat), so it runs inside a
// transaction with SELECT ... FOR UPDATE: concurrent increments on the same
// offer serialize at the row lock, and the loser re-reads a full vehicle and
// gets ErrCapacityFull.
type OfferRepository struct {
	pool *pgxpool.Pool
}

// NewOfferRepository creates a new offer repository.
func NewOfferRepository(pool *pgxpool.Pool) *OfferRepository {
	return &OfferRepository{pool: pool}
}

const offerColumns = `
	id, driver_id, car_model, car_number, lat, lng, heading, is_available,
	fare_type, price_per_km, capacity, occupied, status,
	final_destination, route_geometry, created_at`

func scanOffer(row pgx.Row) (*model.VehicleOffer, error) {
	o := &model.VehicleOffer{}
	var destJSON, routeJSON []byte
	err := row.Scan(
		&o.ID, &o.DriverID, &o.CarModel, &o.CarNumber,
		&o.Position.Lat, &o.Position.Lng, &o.Heading, &o.IsAvailable,
		&o.FareType, &o.PricePerKm, &o.Capacity, &o.Occupied, &o.Status,
		&destJSON, &routeJSON, &o.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if len(destJSON) > 0 {
		var dest model.Location
		if err := json.Unmarshal(destJSON, &dest); err != nil {
			return nil, fmt.Errorf("decode final_destination: %w", err)
		}
		o.FinalDestination = &dest
	}
	if len(routeJSON) > 0 {
		if err := json.Unmarshal(routeJSON, &o.RouteGeometry); err != nil {
			return nil, fmt.Errorf("decode route_geometry: %w", err)
		}
	}
	return o, nil
}

func collectOffers(rows pgx.Rows) ([]model.VehicleOffer, error) {
	defer rows.Close()
	var out []model.VehicleOffer
	for rows.Next() {
		o, err := scanOffer(rows)
		if err != nil {
			return nil, fmt.Errorf("scan offer: %w", err)
		}
		out = append(out, *o)
	}
	return out, rows.Err()
}

// CreateOffer inserts a fresh offer (one per driver shift).
func (r *OfferRepository) CreateOffer(ctx context.Context, o *model.VehicleOffer) (*model.VehicleOffer, error) {
	err := r.pool.QueryRow(ctx, `
		INSERT INTO vehicle_offers (
			driver_id, car_model, car_number, lat, lng, heading, is_available,
			fare_type, price_per_km, capacity, occupied, status
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
		RETURNING id, created_at`,
		o.DriverID, o.CarModel, o.CarNumber,
		o.Position.Lat, o.Position.Lng, o.Heading, o.IsAvailable,
		o.FareType, o.PricePerKm, o.Capacity, o.Occupied, o.Status,
	).Scan(&o.ID, &o.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("create offer: %w", err)
	}
	return o, nil
}

// GetOffer fetches an offer by id.
func (r *OfferRepository) GetOffer(ctx context.Context, id int64) (*model.VehicleOffer, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+offerColumns+` FROM vehicle_offers WHERE id = $1`, id)
	o, err := scanOffer(row)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get offer %d: %w", id, err)
	}
	return o, nil
}

// ListOffers returns every offer, newest first.
func (r *OfferRepository) ListOffers(ctx context.Context) ([]model.VehicleOffer, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+offerColumns+` FROM vehicle_offers ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list offers: %w", err)
	}
	return collectOffers(rows)
}

// ListActivePoolOffers returns discoverable pool offers: pool fare type,
// empty or boarding, available, with seats left. These are the candidates for
// route matching.
func (r *OfferRepository) ListActivePoolOffers(ctx context.Context) ([]model.VehicleOffer, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+offerColumns+`
		FROM vehicle_offers
		WHERE fare_type = 'pool'
		  AND status IN ('empty','boarding')
		  AND is_available
		  AND occupied < capacity
		ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list active pool offers: %w", err)
	}
	return collectOffers(rows)
}

// ActiveOfferForDriver returns the driver's current non-completed offer, or
// ErrNotFound. Used to reject a second concurrent shift.
func (r *OfferRepository) ActiveOfferForDriver(ctx context.Context, driverID int64) (*model.VehicleOffer, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+offerColumns+`
		FROM vehicle_offers
		WHERE driver_id = $1 AND status <> 'completed' AND is_available
		ORDER BY created_at DESC
		LIMIT 1`,
		driverID,
	)
	o, err := scanOffer(row)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("active offer for driver %d: %w", driverID, err)
	}
	return o, nil
}

// IncrementOccupied adds one passenger to the offer, enforcing
// 0 ≤ occupied ≤ capacity under a row lock.
//
// Concurrency: two transactions accepting the last seat at the same
// millisecond serialize on the FOR UPDATE lock; the second re-reads
// occupied == capacity and rolls back with ErrCapacityFull.
func (r *OfferRepository) IncrementOccupied(ctx context.Context, id int64) (*model.VehicleOffer, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return nil, fmt.Errorf("increment occupied: begin tx: %w", err)
	}
	// Defer rollback — no-op if tx was already committed.
	defer tx.Rollback(ctx)

	var occupied, capacity int
	err = tx.QueryRow(ctx, `
		SELECT occupied, capacity
		FROM vehicle_offers
		WHERE id = $1
		FOR UPDATE`,
		id,
	).Scan(&occupied, &capacity)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("increment occupied: lock offer %d: %w", id, err)
	}

	if occupied >= capacity {
		// Last seat already taken; rollback via defer.
		return nil, ErrCapacityFull
	}

	row := tx.QueryRow(ctx, `
		UPDATE vehicle_offers
		SET occupied = occupied + 1,
		    status = CASE WHEN occupied + 1 >= capacity THEN 'full' ELSE 'boarding' END
		WHERE id = $1
		RETURNING `+offerColumns,
		id,
	)
	o, err := scanOffer(row)
	if err != nil {
		return nil, fmt.Errorf("increment occupied: update offer %d: %w", id, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("increment occupied: commit: %w", err)
	}
	return o, nil
}

// DecrementOccupied releases one seat under the same row lock. Releasing a
// seat on an empty vehicle is a state conflict.
func (r *OfferRepository) DecrementOccupied(ctx context.Context, id int64) (*model.VehicleOffer, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return nil, fmt.Errorf("decrement occupied: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var occupied int
	err = tx.QueryRow(ctx,
		`SELECT occupied FROM vehicle_offers WHERE id = $1 FOR UPDATE`, id,
	).Scan(&occupied)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("decrement occupied: lock offer %d: %w", id, err)
	}
	if occupied == 0 {
		return nil, ErrStateConflict
	}

	row := tx.QueryRow(ctx, `
		UPDATE vehicle_offers
		SET occupied = occupied - 1,
		    status = CASE WHEN occupied - 1 = 0 THEN 'empty' ELSE 'boarding' END
		WHERE id = $1
		RETURNING `+offerColumns,
		id,
	)
	o, err := scanOffer(row)
	if err != nil {
		return nil, fmt.Errorf("decrement occupied: update offer %d: %w", id, err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("decrement occupied: commit: %w", err)
	}
	return o, nil
}

// UpdateOfferStatus sets the offer's lifecycle status.
func (r *OfferRepository) UpdateOfferStatus(ctx context.Context, id int64, status model.OfferStatus) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE vehicle_offers SET status = $1 WHERE id = $2`, status, id)
	if err != nil {
		return fmt.Errorf("update offer %d status: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// SetOfferAvailability marks the offer (un)discoverable. Going offline keeps
// the row — history joins still need it — but removes it from matching.
func (r *OfferRepository) SetOfferAvailability(ctx context.Context, id int64, available bool) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE vehicle_offers SET is_available = $1 WHERE id = $2`, available, id)
	if err != nil {
		return fmt.Errorf("set offer %d availability: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// SetOfferRoute stores the final destination and route polyline of a pool
// offer. Passing nils clears both (offer reset on completion).
func (r *OfferRepository) SetOfferRoute(ctx context.Context, id int64, dest *model.Location, route []model.Location) error {
	var destJSON, routeJSON []byte
	var err error
	if dest != nil {
		if destJSON, err = json.Marshal(dest); err != nil {
			return fmt.Errorf("encode final_destination: %w", err)
		}
	}
	if len(route) > 0 {
		if routeJSON, err = json.Marshal(route); err != nil {
			return fmt.Errorf("encode route_geometry: %w", err)
		}
	}
	tag, err := r.pool.Exec(ctx, `
		UPDATE vehicle_offers
		SET final_destination = $1, route_geometry = $2
		WHERE id = $3`,
		destJSON, routeJSON, id)
	if err != nil {
		return fmt.Errorf("set offer %d route: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
