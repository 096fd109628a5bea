package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/example/partner-dispatch/internal/geo"
	"github.com/example/partner-dispatch/internal/models"
	"github.com/example/partner-dispatch/internal/storage"
)

type createRequestBody struct {
	RequesterID    string        `json:"requester_id"`
	RequesterName  string        `json:"requester_name"`
	RequesterPhone string        `json:"requester_phone"`
	Origin         models.Coord  `json:"origin"`
	Destination    *models.Coord `json:"destination,omitempty"`

	RideType         string `json:"ride_type,omitempty"`
	GenderRestricted bool   `json:"gender_restricted,omitempty"`
	IssueDescription string `json:"issue_description,omitempty"`
	Severity         string `json:"severity,omitempty"`
}

func (s *Server) handleCreateRide(w http.ResponseWriter, r *http.Request) {
	s.createRequest(w, r, models.KindRide)
}

func (s *Server) handleCreateGarageJob(w http.ResponseWriter, r *http.Request) {
	s.createRequest(w, r, models.KindGarageJob)
}

func (s *Server) handleCreateEmergency(w http.ResponseWriter, r *http.Request) {
	s.createRequest(w, r, models.KindEmergencyCase)
}

func (s *Server) createRequest(w http.ResponseWriter, r *http.Request, kind models.Kind) {
	var body createRequestBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if body.RequesterID == "" {
		http.Error(w, "requester_id required", http.StatusBadRequest)
		return
	}
	now := time.Now()
	req := &models.Request{
		ID:             uuid.NewString(),
		Kind:           kind,
		Status:         models.DispatchableStatus(kind),
		Origin:         body.Origin,
		Destination:    body.Destination,
		RequesterID:    body.RequesterID,
		RequesterName:  body.RequesterName,
		RequesterPhone: body.RequesterPhone,
		OTP:            newOTP(),
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	switch kind {
	case models.KindRide:
		req.RideType = body.RideType
		req.GenderRestricted = body.GenderRestricted
	case models.KindGarageJob:
		req.IssueDescription = body.IssueDescription
	case models.KindEmergencyCase:
		req.Severity = body.Severity
	}
	if err := s.requests.CreateRequest(r.Context(), req); err != nil {
		s.logger.Error("create request failed", "kind", kind, "error", err)
		http.Error(w, "storage error", http.StatusInternalServerError)
		return
	}
	s.emitCreated(kind, req.ID)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(map[string]any{"id": req.ID, "status": req.Status, "otp": req.OTP})
}

func kindFromCollection(collection string) (models.Kind, bool) {
	switch collection {
	case "rides":
		return models.KindRide, true
	case "garage-jobs":
		return models.KindGarageJob, true
	case "emergencies":
		return models.KindEmergencyCase, true
	}
	return "", false
}

func partnerKindFromCollection(collection string) (models.Kind, bool) {
	switch collection {
	case "partners":
		return models.KindRide, true
	case "mechanics":
		return models.KindGarageJob, true
	case "ambulances":
		return models.KindEmergencyCase, true
	}
	return "", false
}

func (s *Server) handleGetRequest(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	kind, ok := kindFromCollection(vars["collection"])
	if !ok {
		http.Error(w, "unknown collection", http.StatusNotFound)
		return
	}
	req, err := s.requests.GetRequest(r.Context(), kind, vars["id"])
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		http.Error(w, "storage error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(req)
}

type partnerActionBody struct {
	PartnerID string `json:"partner_id"`
}

// handleAccept is the partner client's accept. The store's conditional
// update is the single-accept guard: losers of a fan-out race get 409.
func (s *Server) handleAccept(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	kind, ok := kindFromCollection(vars["collection"])
	if !ok {
		http.Error(w, "unknown collection", http.StatusNotFound)
		return
	}
	var body partnerActionBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.PartnerID == "" {
		http.Error(w, "partner_id required", http.StatusBadRequest)
		return
	}
	err := s.requests.Accept(r.Context(), kind, vars["id"], body.PartnerID)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		http.Error(w, "not found", http.StatusNotFound)
		return
	case errors.Is(err, storage.ErrAlreadyTaken):
		http.Error(w, "already taken", http.StatusConflict)
		return
	case err != nil:
		http.Error(w, "storage error", http.StatusInternalServerError)
		return
	}
	// Winner goes busy so the directory stops offering it work.
	if err := s.partners.SetBusy(r.Context(), kind, body.PartnerID); err != nil {
		s.logger.Warn("set busy failed", "partner_id", body.PartnerID, "error", err)
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{"status": models.StatusAssigned})
}

// handleReject records an explicit decline. Growth of the rejection set
// is published back to the change feed to drive the unicast cascade.
func (s *Server) handleReject(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	kind, ok := kindFromCollection(vars["collection"])
	if !ok {
		http.Error(w, "unknown collection", http.StatusNotFound)
		return
	}
	var body partnerActionBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.PartnerID == "" {
		http.Error(w, "partner_id required", http.StatusBadRequest)
		return
	}
	added, err := s.requests.AddRejection(r.Context(), kind, vars["id"], body.PartnerID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		http.Error(w, "storage error", http.StatusInternalServerError)
		return
	}
	if added {
		s.emitUpdated(kind, vars["id"])
	}
	w.WriteHeader(http.StatusNoContent)
}

// emitCreated and emitUpdated put a lifecycle event on the change feed,
// or hand it straight to the inline orchestrator when no feed is
// configured.
func (s *Server) emitCreated(kind models.Kind, id string) {
	switch {
	case s.producer != nil:
		if err := s.producer.RequestCreated(context.Background(), kind, id); err != nil {
			s.logger.Error("created event publish failed", "request_id", id, "error", err)
		}
	case s.orch != nil:
		go func() {
			if err := s.orch.HandleCreated(context.Background(), kind, id); err != nil {
				s.logger.Error("inline dispatch failed", "request_id", id, "error", err)
			}
		}()
	default:
		s.logger.Warn("no dispatch path configured, request will not dispatch", "request_id", id)
	}
}

func (s *Server) emitUpdated(kind models.Kind, id string) {
	switch {
	case s.producer != nil:
		if err := s.producer.RequestUpdated(context.Background(), kind, id); err != nil {
			s.logger.Error("updated event publish failed", "request_id", id, "error", err)
		}
	case s.orch != nil:
		go func() {
			if err := s.orch.HandleUpdated(context.Background(), kind, id); err != nil {
				s.logger.Error("inline re-dispatch failed", "request_id", id, "error", err)
			}
		}()
	}
}

type createPartnerBody struct {
	DisplayName             string        `json:"display_name"`
	Phone                   string        `json:"phone"`
	PushToken               string        `json:"push_token,omitempty"`
	Location                *models.Coord `json:"location,omitempty"`
	VehicleClass            string        `json:"vehicle_class,omitempty"`
	GenderRestrictedService bool          `json:"gender_restricted_service,omitempty"`
}

func (s *Server) handleCreatePartner(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	kind, ok := partnerKindFromCollection(vars["collection"])
	if !ok {
		http.Error(w, "unknown collection", http.StatusNotFound)
		return
	}
	var body createPartnerBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	p := &models.Partner{
		ID:                      uuid.NewString(),
		Kind:                    kind,
		DisplayName:             body.DisplayName,
		Phone:                   body.Phone,
		PushToken:               body.PushToken,
		Status:                  models.PartnerOffline,
		Location:                body.Location,
		VehicleClass:            body.VehicleClass,
		GenderRestrictedService: body.GenderRestrictedService,
	}
	if err := s.partners.CreatePartner(r.Context(), p); err != nil {
		s.logger.Error("create partner failed", "kind", kind, "error", err)
		http.Error(w, "storage error", http.StatusInternalServerError)
		return
	}
	// Downstream automation only; never affects dispatch.
	s.webhook.PartnerOnboarded(*p)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(map[string]any{"id": p.ID})
}

type heartbeatBody struct {
	Kind      models.Kind  `json:"kind"`
	PartnerID string       `json:"partner_id"`
	Location  models.Coord `json:"location"`
}

func (s *Server) handleHeartbeat(w http.ResponseWriter, r *http.Request) {
	var body heartbeatBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.PartnerID == "" {
		http.Error(w, "partner_id required", http.StatusBadRequest)
		return
	}
	switch body.Kind {
	case models.KindRide, models.KindGarageJob, models.KindEmergencyCase:
	default:
		http.Error(w, "unknown kind", http.StatusBadRequest)
		return
	}
	now := time.Now()
	if err := s.partners.Heartbeat(r.Context(), body.Kind, body.PartnerID, body.Location, now); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		http.Error(w, "storage error", http.StatusInternalServerError)
		return
	}
	hb := models.Heartbeat{PartnerID: body.PartnerID, Kind: body.Kind, Location: body.Location, At: now}
	if s.mirror != nil {
		if err := geo.Upsert(r.Context(), s.mirror, s.cfg.RedisGeoKey, hb, 3, 200*time.Millisecond); err != nil {
			s.logger.Warn("geo mirror update failed", "partner_id", body.PartnerID, "error", err)
		}
	}
	if s.producer != nil {
		if err := s.producer.PublishHeartbeat(r.Context(), hb); err != nil {
			s.logger.Warn("heartbeat publish failed", "partner_id", body.PartnerID, "error", err)
		}
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleNearby(w http.ResponseWriter, r *http.Request) {
	if s.mirror == nil {
		http.Error(w, "geo mirror not configured", http.StatusServiceUnavailable)
		return
	}
	q := r.URL.Query()
	lat, err1 := strconv.ParseFloat(q.Get("lat"), 64)
	lon, err2 := strconv.ParseFloat(q.Get("lon"), 64)
	if err1 != nil || err2 != nil {
		http.Error(w, "lat and lon required", http.StatusBadRequest)
		return
	}
	radius := 10.0
	if v := q.Get("radius_km"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			radius = f
		}
	}
	near, err := s.mirror.Nearby(r.Context(), lat, lon, radius, 20)
	if err != nil {
		http.Error(w, "geo lookup failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(near)
}

var upgrader = websocket.Upgrader{}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	id := vars["partner_id"]
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		http.Error(w, "upgrade failed", http.StatusBadRequest)
		return
	}
	s.wsreg.Add(id, conn)
	go func() {
		defer func() {
			s.wsreg.Remove(id)
			conn.Close()
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}
