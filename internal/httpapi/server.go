package httpapi

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/example/partner-dispatch/internal/config"
	"github.com/example/partner-dispatch/internal/dispatch"
	"github.com/example/partner-dispatch/internal/events"
	"github.com/example/partner-dispatch/internal/geo"
	"github.com/example/partner-dispatch/internal/notify"
	"github.com/example/partner-dispatch/internal/storage"
	"github.com/example/partner-dispatch/internal/webhook"
)

// Server is the external collaborator surface: client apps create
// requests here, partner apps heartbeat, accept and reject here. With
// Kafka configured, dispatch runs in the worker driven by the events this
// server publishes; without it, the inline orchestrator handles each
// event in-process.
type Server struct {
	cfg      config.Config
	logger   *slog.Logger
	requests storage.RequestStore
	partners storage.PartnerStore
	producer *events.Producer
	orch     *dispatch.Orchestrator
	mirror   *geo.Mirror
	webhook  *webhook.Client
	wsreg    *notify.WSRegistry
	mux      *mux.Router
}

func NewServer(cfg config.Config, logger *slog.Logger,
	requests storage.RequestStore, partners storage.PartnerStore,
	producer *events.Producer, orch *dispatch.Orchestrator,
	mirror *geo.Mirror, wh *webhook.Client, wsreg *notify.WSRegistry) *Server {

	if wsreg == nil {
		wsreg = notify.NewWSRegistry()
	}
	s := &Server{
		cfg:      cfg,
		logger:   logger,
		requests: requests,
		partners: partners,
		producer: producer,
		orch:     orch,
		mirror:   mirror,
		webhook:  wh,
		wsreg:    wsreg,
		mux:      mux.NewRouter(),
	}
	s.registerMiddleware()
	s.routes()
	return s
}

func (s *Server) routes() {
	s.mux.HandleFunc("/api/v1/rides", s.handleCreateRide).Methods("POST")
	s.mux.HandleFunc("/api/v1/garage-jobs", s.handleCreateGarageJob).Methods("POST")
	s.mux.HandleFunc("/api/v1/emergencies", s.handleCreateEmergency).Methods("POST")

	s.mux.HandleFunc("/api/v1/{collection}/{id}/accept", s.handleAccept).Methods("POST")
	s.mux.HandleFunc("/api/v1/{collection}/{id}/reject", s.handleReject).Methods("POST")
	s.mux.HandleFunc("/api/v1/{collection}/{id}", s.handleGetRequest).Methods("GET")

	s.mux.HandleFunc("/api/v1/partners/{collection}", s.handleCreatePartner).Methods("POST")
	s.mux.HandleFunc("/internal/partner/heartbeat", s.handleHeartbeat).Methods("POST")
	s.mux.HandleFunc("/internal/partners/nearby", s.handleNearby).Methods("GET")

	s.mux.HandleFunc("/ws/{partner_id}", s.handleWS)
	s.mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	}).Methods("GET")
	s.mux.Handle("/metrics", promhttp.Handler())
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { s.mux.ServeHTTP(w, r) }

// newOTP returns a 4-digit verification code for in-person handoff.
func newOTP() string {
	var b [8]byte
	_, _ = rand.Read(b[:])
	n := binary.BigEndian.Uint64(b[:])
	return fmt.Sprintf("%04d", 1000+n%9000)
}
