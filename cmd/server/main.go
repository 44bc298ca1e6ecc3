package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/shiva/ridepool/config"
	"github.com/shiva/ridepool/internal/dispatch"
	"github.com/shiva/ridepool/internal/handler"
	"github.com/shiva/ridepool/internal/ingest"
	"github.com/shiva/ridepool/internal/repository"
	"github.com/shiva/ridepool/internal/routing"
	"github.com/shiva/ridepool/internal/service"
	"github.com/shiva/ridepool/pkg/cache"
	"github.com/shiva/ridepool/pkg/db"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("[main] load config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ─── Storage ─────────────────────────────────────────────────
	// With no Postgres configured the whole system runs on the in-memory
	// store; with no Redis the location tracker does the same.
	var (
		pool        *pgxpool.Pool
		redisClient *redis.Client
		mem         = repository.NewMemoryStore()

		bookings  service.BookingStore  = mem
		offers    service.OfferStore    = mem
		users     service.UserStore     = mem
		locations service.LocationStore = mem
	)

	if cfg.Postgres.Enabled() {
		pool, err = db.NewPostgresPool(ctx, cfg.Postgres)
		if err != nil {
			log.Fatalf("[main] connect postgres: %v", err)
		}
		defer pool.Close()
		bookings = repository.NewBookingRepository(pool)
		offers = repository.NewOfferRepository(pool)
		users = repository.NewUserRepository(pool)
		log.Printf("[main] postgres storage at %s:%d", cfg.Postgres.Host, cfg.Postgres.Port)
	} else {
		log.Printf("[main] no postgres configured, using in-memory storage")
	}

	if cfg.Redis.Enabled() {
		redisClient, err = cache.NewRedisClient(ctx, cfg.Redis)
		if err != nil {
			log.Fatalf("[main] connect redis: %v", err)
		}
		defer redisClient.Close()
		locations = repository.NewLocationRepository(redisClient)
		log.Printf("[main] redis location tracking at %s", cfg.Redis.Addr())
	} else {
		log.Printf("[main] no redis configured, tracking locations in memory")
	}

	// ─── Optional integrations ───────────────────────────────────
	var routes service.RouteProvider
	if cfg.Routing.OSRMEndpoint != "" {
		routes = routing.NewOSRMClient(cfg.Routing.OSRMEndpoint, cfg.Routing.Timeout)
		log.Printf("[main] osrm routing via %s", cfg.Routing.OSRMEndpoint)
	}

	var publisher service.LocationPublisher
	if len(cfg.Kafka.Brokers) > 0 {
		producer := ingest.NewLocationProducer(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		defer producer.Close()
		publisher = producer
		log.Printf("[main] streaming locations to kafka topic %s", cfg.Kafka.Topic)
	}

	ws := dispatch.NewWSRegistry()

	// ─── Services ────────────────────────────────────────────────
	bookingSvc := service.NewBookingService(bookings, offers, users, locations, routes, ws, cfg.Matching)
	matchingSvc := service.NewMatchingService(bookings, offers, users, ws, cfg.Matching)
	offerSvc := service.NewOfferService(offers, users)
	locationSvc := service.NewLocationService(locations, bookings, publisher)
	historySvc := service.NewHistoryService(bookings)
	userSvc := service.NewUserService(users)

	// ─── HTTP ────────────────────────────────────────────────────
	health := func(w http.ResponseWriter, r *http.Request) {
		if pool != nil {
			if err := db.HealthCheck(r.Context(), pool); err != nil {
				http.Error(w, `{"status":"degraded"}`, http.StatusServiceUnavailable)
				return
			}
		}
		if redisClient != nil {
			if err := cache.HealthCheck(r.Context(), redisClient); err != nil {
				http.Error(w, `{"status":"degraded"}`, http.StatusServiceUnavailable)
				return
			}
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	}

	router := handler.NewRouter(handler.Handlers{
		Users:     handler.NewUserHandler(userSvc),
		Bookings:  handler.NewBookingHandler(bookingSvc),
		Pools:     handler.NewPoolHandler(matchingSvc),
		Offers:    handler.NewOfferHandler(offerSvc),
		Locations: handler.NewLocationHandler(locationSvc),
		History:   handler.NewHistoryHandler(historySvc),
		WS:        ws,
		Health:    health,
	})

	srv := &http.Server{
		Addr:         cfg.Server.ServerAddr(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.Printf("[main] listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("[main] serve: %v", err)
		}
	}()

	<-ctx.Done()
	log.Printf("[main] shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("[main] shutdown: %v", err)
	}
	ws.Close(shutdownCtx)
	log.Printf("[main] bye")
}
