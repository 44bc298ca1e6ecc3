package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application.
type Config struct {
	Server   ServerConfig
	Postgres PostgresConfig
	Redis    RedisConfig
	Kafka    KafkaConfig
	Matching MatchingConfig
	Routing  RoutingConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host         string        `mapstructure:"SERVER_HOST"`
	Port         int           `mapstructure:"SERVER_PORT"`
	ReadTimeout  time.Duration `mapstructure:"SERVER_READ_TIMEOUT"`
	WriteTimeout time.Duration `mapstructure:"SERVER_WRITE_TIMEOUT"`
	IdleTimeout  time.Duration `mapstructure:"SERVER_IDLE_TIMEOUT"`
}

// PostgresConfig holds PostgreSQL connection settings. An empty Host disables
// Postgres entirely and the server falls back to the in-memory store.
type PostgresConfig struct {
	Host     string `mapstructure:"POSTGRES_HOST"`
	Port     int    `mapstructure:"POSTGRES_PORT"`
	User     string `mapstructure:"POSTGRES_USER"`
	Password string `mapstructure:"POSTGRES_PASSWORD"`
	DBName   string `mapstructure:"POSTGRES_DB"`
	SSLMode  string `mapstructure:"POSTGRES_SSLMODE"`
	MaxConns int32  `mapstructure:"POSTGRES_MAX_CONNS"`
	MinConns int32  `mapstructure:"POSTGRES_MIN_CONNS"`
}

// RedisConfig holds Redis connection settings. An empty Host disables Redis
// and the live-location tracker keeps samples in process memory.
type RedisConfig struct {
	Host     string `mapstructure:"REDIS_HOST"`
	Port     int    `mapstructure:"REDIS_PORT"`
	Password string `mapstructure:"REDIS_PASSWORD"`
	DB       int    `mapstructure:"REDIS_DB"`
	PoolSize int    `mapstructure:"REDIS_POOL_SIZE"`
}

// KafkaConfig holds the optional location-sample producer settings.
// No brokers means no producer.
type KafkaConfig struct {
	Brokers []string `mapstructure:"KAFKA_BROKERS"`
	Topic   string   `mapstructure:"KAFKA_TOPIC"`
}

// MatchingConfig holds the pool matching policy knobs. These directly trade
// match yield against match quality, so they are configuration rather than
// constants.
type MatchingConfig struct {
	// PoolPickupRadiusKm / PoolDropoffRadiusKm bound how far a join-seeker's
	// pickup/dropoff may sit from a pool anchor's pickup/dropoff.
	PoolPickupRadiusKm  float64 `mapstructure:"MATCH_POOL_PICKUP_RADIUS_KM"`
	PoolDropoffRadiusKm float64 `mapstructure:"MATCH_POOL_DROPOFF_RADIUS_KM"`

	// DestClusterRadiusKm bounds how far a dropoff may sit from a pool
	// offer's final destination in route matching.
	DestClusterRadiusKm float64 `mapstructure:"MATCH_DEST_CLUSTER_RADIUS_KM"`

	// RouteProximityKm bounds the perpendicular distance from a pickup to
	// the offer's route polyline.
	RouteProximityKm float64 `mapstructure:"MATCH_ROUTE_PROXIMITY_KM"`

	// PendingExpiry is how long a pending booking stays visible in
	// pending listings. Staleness is filter-time only, never a state change.
	PendingExpiry time.Duration `mapstructure:"MATCH_PENDING_EXPIRY"`
}

// RoutingConfig holds the OSRM routing provider settings. An empty endpoint
// disables route lookups; pool offers then simply carry no geometry until a
// provider is configured.
type RoutingConfig struct {
	OSRMEndpoint string        `mapstructure:"ROUTING_OSRM_ENDPOINT"`
	Timeout      time.Duration `mapstructure:"ROUTING_TIMEOUT"`
}

// DSN returns the PostgreSQL connection string.
func (p *PostgresConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		p.User, p.Password, p.Host, p.Port, p.DBName, p.SSLMode,
	)
}

// Enabled reports whether a Postgres host is configured.
func (p *PostgresConfig) Enabled() bool { return p.Host != "" }

// Addr returns the Redis address in host:port format.
func (r *RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

// Enabled reports whether a Redis host is configured.
func (r *RedisConfig) Enabled() bool { return r.Host != "" }

// ServerAddr returns the HTTP listen address in host:port format.
func (s *ServerConfig) ServerAddr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// Load reads configuration from environment variables and .env file.
func Load() (*Config, error) {
	viper.SetConfigName(".env")
	viper.SetConfigType("env")
	viper.AddConfigPath(".")
	viper.AutomaticEnv()

	// ── Defaults ────────────────────────────────────────
	viper.SetDefault("SERVER_HOST", "0.0.0.0")
	viper.SetDefault("SERVER_PORT", 8080)
	viper.SetDefault("SERVER_READ_TIMEOUT", "5s")
	viper.SetDefault("SERVER_WRITE_TIMEOUT", "10s")
	viper.SetDefault("SERVER_IDLE_TIMEOUT", "120s")

	viper.SetDefault("POSTGRES_HOST", "")
	viper.SetDefault("POSTGRES_PORT", 5432)
	viper.SetDefault("POSTGRES_USER", "ridepool")
	viper.SetDefault("POSTGRES_PASSWORD", "ridepool_secret")
	viper.SetDefault("POSTGRES_DB", "ridepool_db")
	viper.SetDefault("POSTGRES_SSLMODE", "disable")
	viper.SetDefault("POSTGRES_MAX_CONNS", 50)
	viper.SetDefault("POSTGRES_MIN_CONNS", 10)

	viper.SetDefault("REDIS_HOST", "")
	viper.SetDefault("REDIS_PORT", 6379)
	viper.SetDefault("REDIS_PASSWORD", "")
	viper.SetDefault("REDIS_DB", 0)
	viper.SetDefault("REDIS_POOL_SIZE", 100)

	viper.SetDefault("KAFKA_BROKERS", []string{})
	viper.SetDefault("KAFKA_TOPIC", "driver-locations")

	viper.SetDefault("MATCH_POOL_PICKUP_RADIUS_KM", 4.0)
	viper.SetDefault("MATCH_POOL_DROPOFF_RADIUS_KM", 4.0)
	viper.SetDefault("MATCH_DEST_CLUSTER_RADIUS_KM", 3.0)
	viper.SetDefault("MATCH_ROUTE_PROXIMITY_KM", 0.5)
	viper.SetDefault("MATCH_PENDING_EXPIRY", "60s")

	viper.SetDefault("ROUTING_OSRM_ENDPOINT", "")
	viper.SetDefault("ROUTING_TIMEOUT", "2s")

	// Try to read .env file. If it doesn't exist (e.g., inside Docker),
	// env vars injected by docker-compose env_file are used instead.
	_ = viper.ReadInConfig()

	cfg := &Config{}

	cfg.Server = ServerConfig{
		Host:         viper.GetString("SERVER_HOST"),
		Port:         viper.GetInt("SERVER_PORT"),
		ReadTimeout:  viper.GetDuration("SERVER_READ_TIMEOUT"),
		WriteTimeout: viper.GetDuration("SERVER_WRITE_TIMEOUT"),
		IdleTimeout:  viper.GetDuration("SERVER_IDLE_TIMEOUT"),
	}

	cfg.Postgres = PostgresConfig{
		Host:     viper.GetString("POSTGRES_HOST"),
		Port:     viper.GetInt("POSTGRES_PORT"),
		User:     viper.GetString("POSTGRES_USER"),
		Password: viper.GetString("POSTGRES_PASSWORD"),
		DBName:   viper.GetString("POSTGRES_DB"),
		SSLMode:  viper.GetString("POSTGRES_SSLMODE"),
		MaxConns: viper.GetInt32("POSTGRES_MAX_CONNS"),
		MinConns: viper.GetInt32("POSTGRES_MIN_CONNS"),
	}

	cfg.Redis = RedisConfig{
		Host:     viper.GetString("REDIS_HOST"),
		Port:     viper.GetInt("REDIS_PORT"),
		Password: viper.GetString("REDIS_PASSWORD"),
		DB:       viper.GetInt("REDIS_DB"),
		PoolSize: viper.GetInt("REDIS_POOL_SIZE"),
	}

	cfg.Kafka = KafkaConfig{
		Brokers: viper.GetStringSlice("KAFKA_BROKERS"),
		Topic:   viper.GetString("KAFKA_TOPIC"),
	}

	cfg.Matching = MatchingConfig{
		PoolPickupRadiusKm:  viper.GetFloat64("MATCH_POOL_PICKUP_RADIUS_KM"),
		PoolDropoffRadiusKm: viper.GetFloat64("MATCH_POOL_DROPOFF_RADIUS_KM"),
		DestClusterRadiusKm: viper.GetFloat64("MATCH_DEST_CLUSTER_RADIUS_KM"),
		RouteProximityKm:    viper.GetFloat64("MATCH_ROUTE_PROXIMITY_KM"),
		PendingExpiry:       viper.GetDuration("MATCH_PENDING_EXPIRY"),
	}

	cfg.Routing = RoutingConfig{
		OSRMEndpoint: viper.GetString("ROUTING_OSRM_ENDPOINT"),
		Timeout:      viper.GetDuration("ROUTING_TIMEOUT"),
	}

	return cfg, nil
}

// DefaultMatchingConfig returns the reference matching policy. Tests and the
// in-memory wiring use it directly.
func DefaultMatchingConfig() MatchingConfig {
	return MatchingConfig{
		PoolPickupRadiusKm:  4.0,
		PoolDropoffRadiusKm: 4.0,
		DestClusterRadiusKm: 3.0,
		RouteProximityKm:    0.5,
		PendingExpiry:       60 * time.Second,
	}
}
