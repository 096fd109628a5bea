package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config captures all tunable parameters for the server and dispatcher
// processes. Values are primarily loaded from environment variables with
// sane defaults so the binaries can run locally without excessive setup.
type Config struct {
	HTTPAddr        string
	MetricsAddr     string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	PGDSN         string
	RunMigrations bool

	RedisAddr     string
	RedisPassword string
	RedisGeoKey   string

	KafkaBrokers        []string
	KafkaDispatchTopic  string
	KafkaHeartbeatTopic string
	KafkaGroup          string

	GeocodeEndpoint string
	GeocodeCacheTTL time.Duration

	FCMEndpoint string
	FCMKey      string

	WebhookURL string

	RideRadiusKm   float64
	GarageRadiusKm float64

	RideEtaMultiplier      float64
	GarageEtaMultiplier    float64
	EmergencyEtaMultiplier float64

	StalenessWindow time.Duration
	WatchdogSpec    string

	LogLevel string
}

func defaultConfig() Config {
	return Config{
		HTTPAddr:        ":8080",
		MetricsAddr:     ":2112",
		ReadTimeout:     5 * time.Second,
		WriteTimeout:    10 * time.Second,
		IdleTimeout:     120 * time.Second,
		ShutdownTimeout: 15 * time.Second,

		RedisGeoKey: "partners_geo",

		KafkaDispatchTopic:  "dispatch-events",
		KafkaHeartbeatTopic: "partner-heartbeats",
		KafkaGroup:          "dispatch-worker",

		GeocodeCacheTTL: 10 * time.Minute,

		RideRadiusKm:   10,
		GarageRadiusKm: 15,

		RideEtaMultiplier:      2,
		GarageEtaMultiplier:    3,
		EmergencyEtaMultiplier: 2,

		StalenessWindow: 120 * time.Second,
		WatchdogSpec:    "@every 1m",

		LogLevel: "info",
	}
}

func Load() (Config, error) {
	cfg := defaultConfig()
	var errs []error

	setStringFromEnv(&cfg.HTTPAddr, "HTTP_ADDR")
	setStringFromEnv(&cfg.MetricsAddr, "METRICS_ADDR")
	setDurationFromEnv(&cfg.ReadTimeout, "HTTP_READ_TIMEOUT", &errs)
	setDurationFromEnv(&cfg.WriteTimeout, "HTTP_WRITE_TIMEOUT", &errs)
	setDurationFromEnv(&cfg.IdleTimeout, "HTTP_IDLE_TIMEOUT", &errs)
	setDurationFromEnv(&cfg.ShutdownTimeout, "HTTP_SHUTDOWN_TIMEOUT", &errs)

	cfg.PGDSN = os.Getenv("PG_DSN")
	cfg.RunMigrations = strings.EqualFold(os.Getenv("MIGRATE"), "true")

	cfg.RedisAddr = strings.TrimSpace(os.Getenv("REDIS_ADDR"))
	cfg.RedisPassword = os.Getenv("REDIS_PASSWORD")
	setStringFromEnv(&cfg.RedisGeoKey, "REDIS_GEO_KEY")

	if brokers := os.Getenv("KAFKA_BROKERS"); brokers != "" {
		cfg.KafkaBrokers = splitAndTrim(brokers)
	}
	setStringFromEnv(&cfg.KafkaDispatchTopic, "KAFKA_DISPATCH_TOPIC")
	setStringFromEnv(&cfg.KafkaHeartbeatTopic, "KAFKA_HEARTBEAT_TOPIC")
	setStringFromEnv(&cfg.KafkaGroup, "KAFKA_GROUP")

	setStringFromEnv(&cfg.GeocodeEndpoint, "GEOCODE_ENDPOINT")
	setDurationFromEnv(&cfg.GeocodeCacheTTL, "GEOCODE_CACHE_TTL", &errs)

	setStringFromEnv(&cfg.FCMEndpoint, "FCM_ENDPOINT")
	cfg.FCMKey = os.Getenv("FCM_KEY")

	setStringFromEnv(&cfg.WebhookURL, "PARTNER_WEBHOOK_URL")

	setFloatFromEnv(&cfg.RideRadiusKm, "RIDE_RADIUS_KM", &errs)
	setFloatFromEnv(&cfg.GarageRadiusKm, "GARAGE_RADIUS_KM", &errs)
	setFloatFromEnv(&cfg.RideEtaMultiplier, "RIDE_ETA_MULTIPLIER", &errs)
	setFloatFromEnv(&cfg.GarageEtaMultiplier, "GARAGE_ETA_MULTIPLIER", &errs)
	setFloatFromEnv(&cfg.EmergencyEtaMultiplier, "EMERGENCY_ETA_MULTIPLIER", &errs)

	setDurationFromEnv(&cfg.StalenessWindow, "STALENESS_WINDOW", &errs)
	setStringFromEnv(&cfg.WatchdogSpec, "WATCHDOG_SPEC")

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.LogLevel = strings.ToLower(v)
	}

	if cfg.RideRadiusKm <= 0 {
		errs = append(errs, fmt.Errorf("RIDE_RADIUS_KM must be > 0"))
	}
	if cfg.GarageRadiusKm <= 0 {
		errs = append(errs, fmt.Errorf("GARAGE_RADIUS_KM must be > 0"))
	}
	if cfg.StalenessWindow <= 0 {
		errs = append(errs, fmt.Errorf("STALENESS_WINDOW must be > 0"))
	}

	return cfg, errors.Join(errs...)
}

func setDurationFromEnv(target *time.Duration, key string, errs *[]error) {
	if v := os.Getenv(key); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			*errs = append(*errs, fmt.Errorf("invalid %s: %w", key, err))
			return
		}
		*target = d
	}
}

func setFloatFromEnv(target *float64, key string, errs *[]error) {
	if v := os.Getenv(key); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			*errs = append(*errs, fmt.Errorf("invalid %s: %w", key, err))
			return
		}
		*target = f
	}
}

func setStringFromEnv(target *string, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*target = v
	}
}

func splitAndTrim(v string) []string {
	raw := strings.Split(v, ",")
	out := make([]string, 0, len(raw))
	for _, r := range raw {
		r = strings.TrimSpace(r)
		if r == "" {
			continue
		}
		out = append(out, r)
	}
	return out
}
