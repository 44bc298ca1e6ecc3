package handler

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/shiva/ridepool/internal/dispatch"
	"github.com/shiva/ridepool/internal/middleware"
)

// Handlers bundles everything the router mounts.
type Handlers struct {
	Users     *UserHandler
	Bookings  *BookingHandler
	Pools     *PoolHandler
	Offers    *OfferHandler
	Locations *LocationHandler
	History   *HistoryHandler
	WS        *dispatch.WSRegistry
	Health    http.HandlerFunc
}

// NewRouter builds the full route table with the middleware chain applied.
func NewRouter(h Handlers) *mux.Router {
	r := mux.NewRouter()
	r.Use(middleware.Recoverer, middleware.CORS, middleware.RequestLogger, middleware.Metrics, middleware.Identity)

	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	if h.Health != nil {
		r.HandleFunc("/health", h.Health).Methods(http.MethodGet)
	}
	if h.WS != nil {
		r.HandleFunc("/ws/{id}", func(w http.ResponseWriter, req *http.Request) {
			id, err := pathID(req, "id")
			if err != nil {
				writeError(w, err)
				return
			}
			h.WS.Handle(w, req, id)
		}).Methods(http.MethodGet)
	}

	api := r.PathPrefix("/api/v1").Subrouter()

	api.HandleFunc("/users", h.Users.Register).Methods(http.MethodPost)
	api.HandleFunc("/users/{id}", h.Users.Get).Methods(http.MethodGet)
	api.HandleFunc("/users/{id}/bookings/active", h.Bookings.ActiveForUser).Methods(http.MethodGet)
	api.HandleFunc("/users/{id}/history", h.History.UserHistory).Methods(http.MethodGet)

	api.HandleFunc("/bookings", h.Bookings.Create).Methods(http.MethodPost)
	api.HandleFunc("/bookings", h.Bookings.List).Methods(http.MethodGet)
	api.HandleFunc("/bookings/{id}", h.Bookings.Get).Methods(http.MethodGet)
	api.HandleFunc("/bookings/{id}/detail", h.Bookings.Detail).Methods(http.MethodGet)
	api.HandleFunc("/bookings/{id}/accept", h.Bookings.Accept).Methods(http.MethodPost)
	api.HandleFunc("/bookings/{id}/arrived", h.Bookings.Arrived).Methods(http.MethodPost)
	api.HandleFunc("/bookings/{id}/start", h.Bookings.Start).Methods(http.MethodPost)
	api.HandleFunc("/bookings/{id}/complete", h.Bookings.Complete).Methods(http.MethodPost)
	api.HandleFunc("/bookings/{id}/cancel", h.Bookings.Cancel).Methods(http.MethodPost)
	api.HandleFunc("/bookings/{id}/location", h.Locations.Report).Methods(http.MethodPut)
	api.HandleFunc("/bookings/{id}/location", h.Locations.Latest).Methods(http.MethodGet)

	api.HandleFunc("/pools/available", h.Pools.Available).Methods(http.MethodGet)
	api.HandleFunc("/pools/route-matches", h.Pools.RouteMatches).Methods(http.MethodGet)
	api.HandleFunc("/pools/join", h.Pools.Join).Methods(http.MethodPost)
	api.HandleFunc("/pools/requests/{id}/respond", h.Pools.Respond).Methods(http.MethodPost)
	api.HandleFunc("/pools/{pool_id}/passengers", h.Pools.Passengers).Methods(http.MethodGet)

	api.HandleFunc("/rides", h.Offers.GoOnline).Methods(http.MethodPost)
	api.HandleFunc("/rides", h.Offers.List).Methods(http.MethodGet)
	api.HandleFunc("/rides/offline", h.Offers.GoOffline).Methods(http.MethodPost)
	api.HandleFunc("/rides/{id}", h.Offers.Get).Methods(http.MethodGet)
	api.HandleFunc("/rides/{id}/requests", h.Pools.PendingRequests).Methods(http.MethodGet)

	api.HandleFunc("/drivers/{id}/ride", h.Offers.ActiveForDriver).Methods(http.MethodGet)
	api.HandleFunc("/drivers/{id}/bookings/active", h.Bookings.ActiveForDriver).Methods(http.MethodGet)
	api.HandleFunc("/drivers/{id}/history", h.History.DriverHistory).Methods(http.MethodGet)
	api.HandleFunc("/drivers/{id}/stats", h.History.DriverStats).Methods(http.MethodGet)

	return r
}
