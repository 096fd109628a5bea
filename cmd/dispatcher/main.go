package main

import (
	"context"
	"encoding/json"
	"flag"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/segmentio/kafka-go"

	"github.com/example/partner-dispatch/internal/config"
	"github.com/example/partner-dispatch/internal/dispatch"
	"github.com/example/partner-dispatch/internal/events"
	"github.com/example/partner-dispatch/internal/geocode"
	"github.com/example/partner-dispatch/internal/logging"
	"github.com/example/partner-dispatch/internal/match"
	"github.com/example/partner-dispatch/internal/notify"
	"github.com/example/partner-dispatch/internal/storage"
	"github.com/example/partner-dispatch/internal/watchdog"
)

var (
	eventsConsumed = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "dispatcher_events_consumed_total",
		Help: "Total dispatch events consumed",
	})
	eventsInvalid = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "dispatcher_events_invalid_total",
		Help: "Total undecodable events received",
	})
	eventsFailed = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "dispatcher_events_failed_total",
		Help: "Total events whose handler returned an error",
	})
)

func init() {
	prometheus.MustRegister(eventsConsumed, eventsInvalid, eventsFailed)
}

func main() {
	var metricsAddr string
	flag.StringVar(&metricsAddr, "metrics-addr", "", "address to serve prometheus metrics on (overrides METRICS_ADDR)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if metricsAddr == "" {
		metricsAddr = cfg.MetricsAddr
	}
	logger := logging.NewLogger(cfg.LogLevel)

	var requests storage.RequestStore
	var partners storage.PartnerStore
	var sweeper watchdog.Sweeper
	if cfg.PGDSN != "" {
		pg, err := storage.NewPostgresStore(cfg.PGDSN)
		if err != nil {
			log.Fatalf("postgres: %v", err)
		}
		requests, partners, sweeper = pg, pg, pg
	} else {
		mem := storage.NewMemoryStore()
		requests, partners, sweeper = mem, mem, mem
		logger.Warn("no PG_DSN configured, using in-memory stores")
	}

	if len(cfg.KafkaBrokers) == 0 {
		log.Fatal("KAFKA_BROKERS is required for the dispatcher")
	}
	producer := events.NewProducer(cfg.KafkaBrokers, cfg.KafkaDispatchTopic, cfg.KafkaHeartbeatTopic)
	defer producer.Close()

	orch := &dispatch.Orchestrator{
		Directory: partners,
		Strategy:  &match.Strategy{RideRadiusKm: cfg.RideRadiusKm, GarageRadiusKm: cfg.GarageRadiusKm},
		Notifier:  &notify.PushNotifier{FCM: notify.NewFCMClient(cfg.FCMEndpoint, cfg.FCMKey)},
		Geocoder:  geocode.NewClient(cfg.GeocodeEndpoint, cfg.GeocodeCacheTTL),
		Store:     requests,
		Events:    producer,
		Eta: dispatch.EtaMultipliers{
			Ride:      cfg.RideEtaMultiplier,
			Garage:    cfg.GarageEtaMultiplier,
			Emergency: cfg.EmergencyEtaMultiplier,
		},
		Logger: logger,
	}

	wd := &watchdog.Watchdog{Store: sweeper, Window: cfg.StalenessWindow, Logger: logger}
	if err := wd.Start(cfg.WatchdogSpec); err != nil {
		log.Fatalf("watchdog: %v", err)
	}
	defer wd.Stop()

	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte("ok"))
		})
		logger.Info("metrics/health listening", "addr", metricsAddr)
		if err := http.ListenAndServe(metricsAddr, mux); err != nil {
			logger.Error("metrics server stopped", "error", err)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  cfg.KafkaBrokers,
		Topic:    cfg.KafkaDispatchTopic,
		GroupID:  cfg.KafkaGroup,
		MinBytes: 10e3,
		MaxBytes: 10e6,
	})
	defer r.Close()

	logger.Info("dispatcher consuming",
		"topic", cfg.KafkaDispatchTopic, "brokers", cfg.KafkaBrokers, "group", cfg.KafkaGroup)

	backoff := time.Second
	const maxBackoff = 30 * time.Second

	for {
		m, err := r.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				logger.Info("shutting down dispatcher")
				return
			}
			logger.Warn("kafka read error", "error", err, "backoff", backoff)
			time.Sleep(backoff)
			backoff *= 2
			if backoff > maxBackoff {
				backoff = maxBackoff
			}
			continue
		}
		backoff = time.Second

		eventsConsumed.Inc()

		var ev events.Event
		if err := json.Unmarshal(m.Value, &ev); err != nil {
			eventsInvalid.Inc()
			logger.Warn("invalid event", "error", err)
			continue
		}

		switch ev.Type {
		case events.TypeRequestCreated:
			err = orch.HandleCreated(ctx, ev.Kind, ev.RequestID)
		case events.TypeRequestUpdated:
			err = orch.HandleUpdated(ctx, ev.Kind, ev.RequestID)
		default:
			eventsInvalid.Inc()
			logger.Warn("unknown event type", "type", ev.Type)
			continue
		}
		if err != nil {
			eventsFailed.Inc()
			logger.Error("event handling failed",
				"type", ev.Type, "request_id", ev.RequestID, "error", err)
		}
	}
}
