package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/shiva/ridepool/internal/model"
)

// MemoryStore is an in-process implementation of the booking, offer, user and
// location stores. It backs the server when no Postgres/Redis is configured
// and gives the service tests a real concurrent backend without a database.
//
// A single mutex guards all maps; every operation that reads-then-writes
// (status transition, occupancy increment, join response) holds it for the
// whole check, so the same first-writer-wins and capacity guarantees hold as
// in the SQL repositories.
type MemoryStore struct {
	mu sync.Mutex

	nextUserID    int64
	nextOfferID   int64
	nextBookingID int64

	users     map[int64]*model.User
	offers    map[int64]*model.VehicleOffer
	bookings  map[int64]*model.Booking
	locations map[int64]*model.DriverLocationSample
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:     make(map[int64]*model.User),
		offers:    make(map[int64]*model.VehicleOffer),
		bookings:  make(map[int64]*model.Booking),
		locations: make(map[int64]*model.DriverLocationSample),
	}
}

func cloneBooking(b *model.Booking) *model.Booking {
	c := *b
	if b.OfferID != nil {
		v := *b.OfferID
		c.OfferID = &v
	}
	if b.Fare != nil {
		v := *b.Fare
		c.Fare = &v
	}
	if b.PoolOwnerID != nil {
		v := *b.PoolOwnerID
		c.PoolOwnerID = &v
	}
	if b.JoinStatus != nil {
		v := *b.JoinStatus
		c.JoinStatus = &v
	}
	return &c
}

func cloneOffer(o *model.VehicleOffer) *model.VehicleOffer {
	c := *o
	if o.DriverID != nil {
		v := *o.DriverID
		c.DriverID = &v
	}
	if o.FinalDestination != nil {
		v := *o.FinalDestination
		c.FinalDestination = &v
	}
	if len(o.RouteGeometry) > 0 {
		c.RouteGeometry = append([]model.Location(nil), o.RouteGeometry...)
	}
	return &c
}

// ─── Users ───────────────────────────────────────────────────────────

func (s *MemoryStore) CreateUser(_ context.Context, u *model.User) (*model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextUserID++
	u.ID = s.nextUserID
	cp := *u
	s.users[u.ID] = &cp
	return u, nil
}

func (s *MemoryStore) GetUser(_ context.Context, id int64) (*model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (s *MemoryStore) GetUserByMobile(_ context.Context, mobile string) (*model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Mobile == mobile {
			cp := *u
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

// ─── Offers ──────────────────────────────────────────────────────────

func (s *MemoryStore) CreateOffer(_ context.Context, o *model.VehicleOffer) (*model.VehicleOffer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextOfferID++
	o.ID = s.nextOfferID
	o.CreatedAt = time.Now()
	s.offers[o.ID] = cloneOffer(o)
	return o, nil
}

func (s *MemoryStore) GetOffer(_ context.Context, id int64) (*model.VehicleOffer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.offers[id]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneOffer(o), nil
}

func (s *MemoryStore) ListOffers(_ context.Context) ([]model.VehicleOffer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.VehicleOffer, 0, len(s.offers))
	for _, o := range s.offers {
		out = append(out, *cloneOffer(o))
	}
	sortOffersNewestFirst(out)
	return out, nil
}

func (s *MemoryStore) ListActivePoolOffers(_ context.Context) ([]model.VehicleOffer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.VehicleOffer
	for _, o := range s.offers {
		if o.FareType != model.FareTypePool || !o.IsAvailable {
			continue
		}
		if o.Status != model.OfferStatusEmpty && o.Status != model.OfferStatusBoarding {
			continue
		}
		if o.Occupied >= o.Capacity {
			continue
		}
		out = append(out, *cloneOffer(o))
	}
	sortOffersNewestFirst(out)
	return out, nil
}

func (s *MemoryStore) ActiveOfferForDriver(_ context.Context, driverID int64) (*model.VehicleOffer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var latest *model.VehicleOffer
	for _, o := range s.offers {
		if o.DriverID == nil || *o.DriverID != driverID {
			continue
		}
		if o.Status == model.OfferStatusCompleted || !o.IsAvailable {
			continue
		}
		if latest == nil || o.CreatedAt.After(latest.CreatedAt) {
			latest = o
		}
	}
	if latest == nil {
		return nil, ErrNotFound
	}
	return cloneOffer(latest), nil
}

func (s *MemoryStore) IncrementOccupied(_ context.Context, id int64) (*model.VehicleOffer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.offers[id]
	if !ok {
		return nil, ErrNotFound
	}
	if o.Occupied >= o.Capacity {
		return nil, ErrCapacityFull
	}
	o.Occupied++
	if o.Occupied >= o.Capacity {
		o.Status = model.OfferStatusFull
	} else {
		o.Status = model.OfferStatusBoarding
	}
	return cloneOffer(o), nil
}

func (s *MemoryStore) DecrementOccupied(_ context.Context, id int64) (*model.VehicleOffer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.offers[id]
	if !ok {
		return nil, ErrNotFound
	}
	if o.Occupied == 0 {
		return nil, ErrStateConflict
	}
	o.Occupied--
	if o.Occupied == 0 {
		o.Status = model.OfferStatusEmpty
	} else {
		o.Status = model.OfferStatusBoarding
	}
	return cloneOffer(o), nil
}

func (s *MemoryStore) UpdateOfferStatus(_ context.Context, id int64, status model.OfferStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.offers[id]
	if !ok {
		return ErrNotFound
	}
	o.Status = status
	return nil
}

func (s *MemoryStore) SetOfferAvailability(_ context.Context, id int64, available bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.offers[id]
	if !ok {
		return ErrNotFound
	}
	o.IsAvailable = available
	return nil
}

func (s *MemoryStore) SetOfferRoute(_ context.Context, id int64, dest *model.Location, route []model.Location) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.offers[id]
	if !ok {
		return ErrNotFound
	}
	if dest != nil {
		v := *dest
		o.FinalDestination = &v
	} else {
		o.FinalDestination = nil
	}
	o.RouteGeometry = append([]model.Location(nil), route...)
	return nil
}

func sortOffersNewestFirst(offers []model.VehicleOffer) {
	sort.Slice(offers, func(i, j int) bool {
		if offers[i].CreatedAt.Equal(offers[j].CreatedAt) {
			return offers[i].ID > offers[j].ID
		}
		return offers[i].CreatedAt.After(offers[j].CreatedAt)
	})
}

// ─── Bookings ────────────────────────────────────────────────────────

func (s *MemoryStore) CreateBooking(_ context.Context, b *model.Booking) (*model.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextBookingID++
	b.ID = s.nextBookingID
	b.CreatedAt = time.Now()
	s.bookings[b.ID] = cloneBooking(b)
	return b, nil
}

func (s *MemoryStore) GetBooking(_ context.Context, id int64) (*model.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.bookings[id]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneBooking(b), nil
}

func (s *MemoryStore) UpdateBookingStatus(_ context.Context, id int64, from, to model.BookingStatus) (*model.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.bookings[id]
	if !ok {
		return nil, ErrNotFound
	}
	if b.Status != from {
		return nil, ErrStateConflict
	}
	b.Status = to
	return cloneBooking(b), nil
}

func (s *MemoryStore) UpdateBookingPool(_ context.Context, id int64, joinStatus model.JoinStatus, status model.BookingStatus, fare *int) (*model.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.bookings[id]
	if !ok {
		return nil, ErrNotFound
	}
	if b.JoinStatus == nil || *b.JoinStatus != model.JoinStatusPending {
		return nil, ErrStateConflict
	}
	js := joinStatus
	b.JoinStatus = &js
	b.Status = status
	if fare != nil {
		v := *fare
		b.Fare = &v
	}
	return cloneBooking(b), nil
}

func (s *MemoryStore) SetBookingFare(_ context.Context, id int64, fare int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.bookings[id]
	if !ok {
		return ErrNotFound
	}
	b.Fare = &fare
	return nil
}

func (s *MemoryStore) AssignBookingOffer(_ context.Context, id, offerID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.bookings[id]
	if !ok {
		return ErrNotFound
	}
	b.OfferID = &offerID
	return nil
}

func (s *MemoryStore) ListBookingsByStatus(_ context.Context, status model.BookingStatus, createdAfter time.Time) ([]model.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Booking
	for _, b := range s.bookings {
		if b.Status != status {
			continue
		}
		if !createdAfter.IsZero() && !b.CreatedAt.After(createdAfter) {
			continue
		}
		out = append(out, *cloneBooking(b))
	}
	sortBookingsNewestFirst(out)
	return out, nil
}

func (s *MemoryStore) ListPoolPassengers(_ context.Context, anchorID int64) ([]model.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Booking
	for _, b := range s.bookings {
		if b.PoolOwnerID == nil || *b.PoolOwnerID != anchorID {
			continue
		}
		if b.JoinStatus == nil || *b.JoinStatus != model.JoinStatusAccepted {
			continue
		}
		out = append(out, *cloneBooking(b))
	}
	sortBookingsOldestFirst(out)
	return out, nil
}

func (s *MemoryStore) ListPendingPoolRequests(_ context.Context, offerID int64) ([]model.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Booking
	for _, b := range s.bookings {
		if b.OfferID == nil || *b.OfferID != offerID {
			continue
		}
		if b.JoinStatus == nil || *b.JoinStatus != model.JoinStatusPending {
			continue
		}
		out = append(out, *cloneBooking(b))
	}
	sortBookingsOldestFirst(out)
	return out, nil
}

func (s *MemoryStore) ActiveBookingForUser(_ context.Context, userID int64) (*model.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var latest *model.Booking
	for _, b := range s.bookings {
		if b.PassengerID != userID || model.IsTerminal(b.Status) {
			continue
		}
		if latest == nil || b.CreatedAt.After(latest.CreatedAt) || (b.CreatedAt.Equal(latest.CreatedAt) && b.ID > latest.ID) {
			latest = b
		}
	}
	if latest == nil {
		return nil, ErrNotFound
	}
	return cloneBooking(latest), nil
}

func (s *MemoryStore) ActiveBookingForDriver(_ context.Context, driverID int64) (*model.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var latest *model.Booking
	for _, b := range s.bookings {
		if b.OfferID == nil {
			continue
		}
		o, ok := s.offers[*b.OfferID]
		if !ok || o.DriverID == nil || *o.DriverID != driverID {
			continue
		}
		switch b.Status {
		case model.BookingAccepted, model.BookingArrived, model.BookingInProgress:
		default:
			continue
		}
		if latest == nil || b.CreatedAt.After(latest.CreatedAt) || (b.CreatedAt.Equal(latest.CreatedAt) && b.ID > latest.ID) {
			latest = b
		}
	}
	if latest == nil {
		return nil, ErrNotFound
	}
	return cloneBooking(latest), nil
}

func (s *MemoryStore) ListTerminalByUser(_ context.Context, userID int64) ([]model.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Booking
	for _, b := range s.bookings {
		if b.PassengerID != userID {
			continue
		}
		if b.Status != model.BookingCompleted && b.Status != model.BookingCancelled {
			continue
		}
		out = append(out, *cloneBooking(b))
	}
	sortBookingsNewestFirst(out)
	return out, nil
}

func (s *MemoryStore) ListTerminalByDriver(_ context.Context, driverID int64) ([]model.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Booking
	for _, b := range s.bookings {
		if b.OfferID == nil {
			continue
		}
		o, ok := s.offers[*b.OfferID]
		if !ok || o.DriverID == nil || *o.DriverID != driverID {
			continue
		}
		if b.Status != model.BookingCompleted && b.Status != model.BookingCancelled {
			continue
		}
		out = append(out, *cloneBooking(b))
	}
	sortBookingsNewestFirst(out)
	return out, nil
}

func (s *MemoryStore) DriverEarnings(_ context.Context, driverID int64) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	total := 0
	for _, b := range s.bookings {
		if b.Status != model.BookingCompleted || b.Fare == nil || b.OfferID == nil {
			continue
		}
		o, ok := s.offers[*b.OfferID]
		if !ok || o.DriverID == nil || *o.DriverID != driverID {
			continue
		}
		total += *b.Fare
	}
	return total, nil
}

func (s *MemoryStore) DriverTripCount(_ context.Context, driverID int64) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	for _, b := range s.bookings {
		if b.Status != model.BookingCompleted || b.OfferID == nil {
			continue
		}
		o, ok := s.offers[*b.OfferID]
		if !ok || o.DriverID == nil || *o.DriverID != driverID {
			continue
		}
		count++
	}
	return count, nil
}

func sortBookingsNewestFirst(bookings []model.Booking) {
	sort.Slice(bookings, func(i, j int) bool {
		if bookings[i].CreatedAt.Equal(bookings[j].CreatedAt) {
			return bookings[i].ID > bookings[j].ID
		}
		return bookings[i].CreatedAt.After(bookings[j].CreatedAt)
	})
}

func sortBookingsOldestFirst(bookings []model.Booking) {
	sort.Slice(bookings, func(i, j int) bool {
		if bookings[i].CreatedAt.Equal(bookings[j].CreatedAt) {
			return bookings[i].ID < bookings[j].ID
		}
		return bookings[i].CreatedAt.Before(bookings[j].CreatedAt)
	})
}

// ─── Locations ───────────────────────────────────────────────────────

func (s *MemoryStore) SetLocation(_ context.Context, sample *model.DriverLocationSample) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *sample
	s.locations[sample.BookingID] = &cp
	return nil
}

func (s *MemoryStore) GetLocation(_ context.Context, bookingID int64) (*model.DriverLocationSample, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sample, ok := s.locations[bookingID]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *sample
	return &cp, nil
}

func (s *MemoryStore) DeleteLocation(_ context.Context, bookingID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.locations, bookingID)
	return nil
}
