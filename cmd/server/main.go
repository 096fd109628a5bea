package main

import (
	"database/sql"
	"log"
	"net/http"
	"os"
	"path/filepath"

	_ "github.com/lib/pq"

	"github.com/example/partner-dispatch/internal/config"
	"github.com/example/partner-dispatch/internal/dispatch"
	"github.com/example/partner-dispatch/internal/events"
	"github.com/example/partner-dispatch/internal/geo"
	"github.com/example/partner-dispatch/internal/geocode"
	"github.com/example/partner-dispatch/internal/httpapi"
	"github.com/example/partner-dispatch/internal/logging"
	"github.com/example/partner-dispatch/internal/match"
	"github.com/example/partner-dispatch/internal/notify"
	"github.com/example/partner-dispatch/internal/storage"
	"github.com/example/partner-dispatch/internal/webhook"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger := logging.NewLogger(cfg.LogLevel)

	if cfg.PGDSN != "" && cfg.RunMigrations {
		runMigrations(cfg.PGDSN)
	}

	var requests storage.RequestStore
	var partners storage.PartnerStore
	if cfg.PGDSN != "" {
		pg, err := storage.NewPostgresStore(cfg.PGDSN)
		if err != nil {
			log.Fatalf("postgres: %v", err)
		}
		requests, partners = pg, pg
	} else {
		mem := storage.NewMemoryStore()
		requests, partners = mem, mem
		logger.Warn("no PG_DSN configured, using in-memory stores")
	}

	var producer *events.Producer
	if len(cfg.KafkaBrokers) > 0 {
		producer = events.NewProducer(cfg.KafkaBrokers, cfg.KafkaDispatchTopic, cfg.KafkaHeartbeatTopic)
		defer producer.Close()
	}

	var mirror *geo.Mirror
	if cfg.RedisAddr != "" {
		mirror = geo.NewMirror(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisGeoKey)
		defer mirror.Close()
	}

	wh := webhook.NewClient(cfg.WebhookURL, logger)
	wsreg := notify.NewWSRegistry()

	// Without a change feed, dispatch runs inline with the API process so
	// local setups still work end to end.
	var orch *dispatch.Orchestrator
	if producer == nil {
		orch = &dispatch.Orchestrator{
			Directory: partners,
			Strategy:  &match.Strategy{RideRadiusKm: cfg.RideRadiusKm, GarageRadiusKm: cfg.GarageRadiusKm},
			Notifier:  &notify.PushNotifier{WS: wsreg, FCM: notify.NewFCMClient(cfg.FCMEndpoint, cfg.FCMKey)},
			Geocoder:  geocode.NewClient(cfg.GeocodeEndpoint, cfg.GeocodeCacheTTL),
			Store:     requests,
			Eta: dispatch.EtaMultipliers{
				Ride:      cfg.RideEtaMultiplier,
				Garage:    cfg.GarageEtaMultiplier,
				Emergency: cfg.EmergencyEtaMultiplier,
			},
			Logger: logger,
		}
		orch.Events = &dispatch.LoopbackSink{Orch: orch}
	}

	srv := httpapi.NewServer(cfg, logger, requests, partners, producer, orch, mirror, wh, wsreg)

	httpServer := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      srv,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}
	logger.Info("dispatch api listening", "addr", cfg.HTTPAddr)
	if err := httpServer.ListenAndServe(); err != nil {
		log.Fatal(err)
	}
}

func runMigrations(dsn string) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		log.Printf("migration db open error: %v", err)
		return
	}
	defer db.Close()
	b, err := os.ReadFile(filepath.Join("migrations", "001_create_dispatch.sql"))
	if err != nil {
		log.Printf("migration read error: %v", err)
		return
	}
	if _, err := db.Exec(string(b)); err != nil {
		log.Printf("migration exec error: %v", err)
		return
	}
	log.Printf("migration applied: 001_create_dispatch.sql")
}
