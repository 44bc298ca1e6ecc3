// Package model contains domain models for the trip lifecycle and
// ride-pooling engine. These structs map to the PostgreSQL schema defined in
// migrations/001_init.up.sql.
package model

import "time"

// ─── Enums ──────────────────────────────────────────────────

type UserRole string

const (
	RoleUser   UserRole = "user"
	RoleDriver UserRole = "driver"
)

// FareType classifies a vehicle offer. Pool offers can carry multiple
// independent bookings; economy/premium carry exactly one.
type FareType string

const (
	FareTypeEconomy FareType = "economy"
	FareTypePremium FareType = "premium"
	FareTypePool    FareType = "pool"
)

type OfferStatus string

const (
	OfferStatusEmpty      OfferStatus = "empty"
	OfferStatusBoarding   OfferStatus = "boarding"
	OfferStatusFull       OfferStatus = "full"
	OfferStatusInProgress OfferStatus = "in_progress"
	OfferStatusCompleted  OfferStatus = "completed"
)

type BookingStatus string

const (
	BookingPending    BookingStatus = "pending"
	BookingAccepted   BookingStatus = "accepted"
	BookingArrived    BookingStatus = "arrived"
	BookingInProgress BookingStatus = "in_progress"
	BookingCompleted  BookingStatus = "completed"
	BookingCancelled  BookingStatus = "cancelled"
)

// JoinStatus tracks a booking's role inside a pool. The anchor booking is
// "owner"; join requests move pending → accepted/rejected.
type JoinStatus string

const (
	JoinStatusOwner    JoinStatus = "owner"
	JoinStatusPending  JoinStatus = "pending"
	JoinStatusAccepted JoinStatus = "accepted"
	JoinStatusRejected JoinStatus = "rejected"
)

// ─── State machine ──────────────────────────────────────────

// allowedTransitions encodes the booking state flow:
//
//	pending → accepted → arrived → in_progress → completed
//	pending → cancelled
//
// Terminal states (completed, cancelled) have no outgoing edges, so no
// booking can ever leave them.
var allowedTransitions = map[BookingStatus][]BookingStatus{
	BookingPending:    {BookingAccepted, BookingCancelled},
	BookingAccepted:   {BookingArrived},
	BookingArrived:    {BookingInProgress},
	BookingInProgress: {BookingCompleted},
}

// CanTransition reports whether a booking may move from one status to another.
func CanTransition(from, to BookingStatus) bool {
	for _, next := range allowedTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// IsTerminal reports whether a booking status permits no further transitions.
func IsTerminal(s BookingStatus) bool {
	return len(allowedTransitions[s]) == 0
}

// ─── Location ───────────────────────────────────────────────

// Location represents a WGS-84 geographic point (EPSG:4326).
type Location struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// ─── Domain Models ──────────────────────────────────────────

// User maps to the `users` table. The identity provider authenticates users;
// this system only reads them (driver lookup for pool candidates, ownership
// checks on offers).
type User struct {
	ID         int64    `json:"id"`
	Mobile     string   `json:"mobile"`
	Name       string   `json:"name"`
	Email      string   `json:"email"`
	Role       UserRole `json:"role"`
	IsVerified bool     `json:"is_verified"`
	Avatar     string   `json:"avatar,omitempty"`
	Bio        string   `json:"bio,omitempty"`
}

// VehicleOffer maps to the `vehicle_offers` table. One offer represents one
// driver shift: going online creates a fresh offer, it is never reused.
//
// Invariants:
//   - 0 ≤ Occupied ≤ Capacity
//   - FinalDestination/RouteGeometry are set iff FareType == pool and the
//     offer has at least one active pool booking.
type VehicleOffer struct {
	ID               int64       `json:"id"`
	DriverID         *int64      `json:"driver_id,omitempty"`
	CarModel         string      `json:"car_model"`
	CarNumber        string      `json:"car_number"`
	Position         Location    `json:"position"`
	Heading          float64     `json:"heading"`
	IsAvailable      bool        `json:"is_available"`
	FareType         FareType    `json:"fare_type"`
	PricePerKm       int         `json:"price_per_km"`
	Capacity         int         `json:"capacity"`
	Occupied         int         `json:"occupied"`
	Status           OfferStatus `json:"status"`
	FinalDestination *Location   `json:"final_destination,omitempty"`
	RouteGeometry    []Location  `json:"route_geometry,omitempty"`
	CreatedAt        time.Time   `json:"created_at"`
}

// SeatsLeft returns the remaining pool capacity.
func (o *VehicleOffer) SeatsLeft() int {
	return o.Capacity - o.Occupied
}

// Booking maps to the `bookings` table: a single passenger's trip contract.
//
// Pool semantics: the anchor booking has IsPool=true and JoinStatus=owner;
// join requests carry the anchor booking's id in PoolOwnerID and share the
// anchor's OfferID.
type Booking struct {
	ID             int64         `json:"id"`
	PassengerID    int64         `json:"passenger_id"`
	OfferID        *int64        `json:"offer_id,omitempty"`
	PickupAddress  string        `json:"pickup_address"`
	DropoffAddress string        `json:"dropoff_address"`
	Pickup         Location      `json:"pickup"`
	Dropoff        Location      `json:"dropoff"`
	Status         BookingStatus `json:"status"`
	OTP            string        `json:"otp,omitempty"`
	Fare           *int          `json:"fare,omitempty"`
	IsPool         bool          `json:"is_pool"`
	PoolOwnerID    *int64        `json:"pool_owner_id,omitempty"`
	DistanceKm     float64       `json:"distance_km"`
	JoinStatus     *JoinStatus   `json:"join_status,omitempty"`
	CreatedAt      time.Time     `json:"created_at"`
}

// IsPoolAnchor reports whether this booking anchors a pool.
func (b *Booking) IsPoolAnchor() bool {
	return b.IsPool && b.JoinStatus != nil && *b.JoinStatus == JoinStatusOwner
}

// DriverLocationSample is the ephemeral live position of the driver serving a
// booking. Keyed by booking id, overwritten on every report, never appended.
type DriverLocationSample struct {
	BookingID  int64     `json:"booking_id"`
	Position   Location  `json:"position"`
	Heading    float64   `json:"heading"`
	ReportedAt time.Time `json:"reported_at"`
}

// ─── Matching DTOs ──────────────────────────────────────────

// PoolCandidate is a joinable pool surfaced to a searching passenger:
// the anchor booking plus its offer, driver and proximity figures.
type PoolCandidate struct {
	Booking           *Booking      `json:"booking"`
	Offer             *VehicleOffer `json:"ride"`
	Driver            *User         `json:"driver,omitempty"`
	PickupDistanceKm  float64       `json:"pickup_distance_km"`
	DropoffDistanceKm float64       `json:"dropoff_distance_km"`
	AvailableSeats    int           `json:"available_seats"`
}

// BookingDetail is a booking enriched with the vehicle and driver details the
// passenger polls for while the trip is live.
type BookingDetail struct {
	Booking
	Ride   *VehicleOffer `json:"ride,omitempty"`
	Driver *User         `json:"driver,omitempty"`
}

// DriverStats is the aggregate view over a driver's completed bookings.
type DriverStats struct {
	Earnings   int `json:"earnings"`
	TotalTrips int `json:"total_trips"`
}
