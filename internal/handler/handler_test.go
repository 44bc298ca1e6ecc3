package handler

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shiva/ridepool/config"
	"github.com/shiva/ridepool/internal/model"
	"github.com/shiva/ridepool/internal/repository"
	"github.com/shiva/ridepool/internal/service"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	store := repository.NewMemoryStore()
	cfg := config.DefaultMatchingConfig()

	bookingSvc := service.NewBookingService(store, store, store, store, nil, nil, cfg)
	matchingSvc := service.NewMatchingService(store, store, store, nil, cfg)

	router := NewRouter(Handlers{
		Users:     NewUserHandler(service.NewUserService(store)),
		Bookings:  NewBookingHandler(bookingSvc),
		Pools:     NewPoolHandler(matchingSvc),
		Offers:    NewOfferHandler(service.NewOfferService(store, store)),
		Locations: NewLocationHandler(service.NewLocationService(store, store, nil)),
		History:   NewHistoryHandler(service.NewHistoryService(store)),
	})
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return srv
}

func doJSON(t *testing.T, method, url string, body any, userID int64) (*http.Response, []byte) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req, err := http.NewRequest(method, url, &buf)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if userID != 0 {
		req.Header.Set("X-User-ID", fmt.Sprintf("%d", userID))
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer resp.Body.Close()
	out := new(bytes.Buffer)
	out.ReadFrom(resp.Body)
	return resp, out.Bytes()
}

func TestBookingEndpoints(t *testing.T) {
	srv := newTestServer(t)
	base := srv.URL + "/api/v1"

	// Register a passenger and a driver.
	resp, body := doJSON(t, http.MethodPost, base+"/users", map[string]any{
		"mobile": "+919800000001", "name": "asha", "role": "user",
	}, 0)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("register passenger: status %d: %s", resp.StatusCode, body)
	}
	var passenger model.User
	json.Unmarshal(body, &passenger)

	resp, body = doJSON(t, http.MethodPost, base+"/users", map[string]any{
		"mobile": "+919800000002", "name": "ravi", "role": "driver",
	}, 0)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("register driver: status %d: %s", resp.StatusCode, body)
	}
	var driver model.User
	json.Unmarshal(body, &driver)

	// Driver goes online.
	resp, body = doJSON(t, http.MethodPost, base+"/rides", map[string]any{
		"car_model": "Swift", "car_number": "KA05XY9999",
		"position":     map[string]float64{"lat": 12.9756, "lng": 77.6068},
		"fare_type":    "pool",
		"price_per_km": 12,
		"capacity":     4,
	}, driver.ID)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("go online: status %d: %s", resp.StatusCode, body)
	}

	// Passenger books.
	resp, body = doJSON(t, http.MethodPost, base+"/bookings", map[string]any{
		"pickup":  map[string]float64{"lat": 12.9756, "lng": 77.6068},
		"dropoff": map[string]float64{"lat": 12.9352, "lng": 77.6245},
		"is_pool": true,
	}, passenger.ID)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create booking: status %d: %s", resp.StatusCode, body)
	}
	var booking model.Booking
	json.Unmarshal(body, &booking)

	// Accept without identity fails.
	resp, _ = doJSON(t, http.MethodPost, fmt.Sprintf("%s/bookings/%d/accept", base, booking.ID), nil, 0)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("accept without identity: status %d, want 400", resp.StatusCode)
	}

	// Driver accepts.
	resp, body = doJSON(t, http.MethodPost, fmt.Sprintf("%s/bookings/%d/accept", base, booking.ID), nil, driver.ID)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("accept: status %d: %s", resp.StatusCode, body)
	}

	// Accepting again is a state conflict.
	resp, _ = doJSON(t, http.MethodPost, fmt.Sprintf("%s/bookings/%d/accept", base, booking.ID), nil, driver.ID)
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("double accept: status %d, want 409", resp.StatusCode)
	}

	// Arrive, then OTP mismatch maps to 401.
	resp, _ = doJSON(t, http.MethodPost, fmt.Sprintf("%s/bookings/%d/arrived", base, booking.ID), nil, driver.ID)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("arrived: status %d", resp.StatusCode)
	}
	wrong := "0000"
	if wrong == booking.OTP {
		wrong = "0001"
	}
	resp, _ = doJSON(t, http.MethodPost, fmt.Sprintf("%s/bookings/%d/start", base, booking.ID),
		map[string]string{"otp": wrong}, driver.ID)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("wrong otp: status %d, want 401", resp.StatusCode)
	}
	resp, _ = doJSON(t, http.MethodPost, fmt.Sprintf("%s/bookings/%d/start", base, booking.ID),
		map[string]string{"otp": booking.OTP}, driver.ID)
	if resp.StatusCode != http.StatusOK {
		t.Errorf("correct otp: status %d, want 200", resp.StatusCode)
	}

	// Unknown booking maps to 404.
	resp, _ = doJSON(t, http.MethodGet, base+"/bookings/424242", nil, 0)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("missing booking: status %d, want 404", resp.StatusCode)
	}

	// Malformed id maps to 400.
	resp, _ = doJSON(t, http.MethodGet, base+"/bookings/0", nil, 0)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("bad id: status %d, want 400", resp.StatusCode)
	}
}

func TestPoolDiscoveryEndpointValidation(t *testing.T) {
	srv := newTestServer(t)
	base := srv.URL + "/api/v1"

	resp, _ := doJSON(t, http.MethodGet, base+"/pools/available?pickup_lat=12.97", nil, 0)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("missing params: status %d, want 400", resp.StatusCode)
	}

	resp, body := doJSON(t, http.MethodGet,
		base+"/pools/available?pickup_lat=12.97&pickup_lng=77.60&dropoff_lat=12.93&dropoff_lng=77.62", nil, 0)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("valid query: status %d: %s", resp.StatusCode, body)
	}
	var out []model.PoolCandidate
	if err := json.Unmarshal(body, &out); err != nil {
		t.Fatalf("decode candidates: %v", err)
	}
	if len(out) != 0 {
		t.Errorf("candidates = %d, want 0 on empty system", len(out))
	}
}
