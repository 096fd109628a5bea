package dispatch

import (
	"context"
	"errors"
	"log/slog"

	"github.com/example/partner-dispatch/internal/match"
	"github.com/example/partner-dispatch/internal/models"
	"github.com/example/partner-dispatch/internal/notify"
	"github.com/example/partner-dispatch/internal/observability"
	"github.com/example/partner-dispatch/internal/storage"
)

// Directory lists online partners for a request kind.
type Directory interface {
	ListOnlinePartners(ctx context.Context, kind models.Kind) ([]models.Partner, error)
}

// Notifier delivers one payload to one partner.
type Notifier interface {
	Notify(ctx context.Context, p models.Partner, payload notify.Payload) error
}

// Geocoder resolves an origin coordinate to an address, best-effort.
type Geocoder interface {
	Reverse(ctx context.Context, loc models.Coord) string
}

// Store is the subset of request persistence the orchestrator needs.
type Store interface {
	GetRequest(ctx context.Context, kind models.Kind, id string) (*models.Request, error)
	SetStatus(ctx context.Context, kind models.Kind, id string, from, to models.Status) (bool, error)
	SetOriginAddress(ctx context.Context, kind models.Kind, id, address string) error
	AddRejection(ctx context.Context, kind models.Kind, id, partnerID string) (bool, error)
}

// EventSink publishes rejection-set growth back onto the change feed so
// the next unicast cycle fires.
type EventSink interface {
	RequestUpdated(ctx context.Context, kind models.Kind, requestID string) error
}

// LoopbackSink re-enters the orchestrator directly. Used when no change
// feed is configured and dispatch runs inline with the API process.
type LoopbackSink struct {
	Orch *Orchestrator
}

func (l *LoopbackSink) RequestUpdated(ctx context.Context, kind models.Kind, requestID string) error {
	return l.Orch.HandleUpdated(ctx, kind, requestID)
}

// EtaMultipliers converts the matched distance into the synthetic ETA
// included in push payloads, per kind.
type EtaMultipliers struct {
	Ride      float64
	Garage    float64
	Emergency float64
}

func DefaultEtaMultipliers() EtaMultipliers {
	return EtaMultipliers{Ride: 2, Garage: 3, Emergency: 2}
}

func (m EtaMultipliers) For(k models.Kind) float64 {
	switch k {
	case models.KindGarageJob:
		return m.Garage
	case models.KindEmergencyCase:
		return m.Emergency
	default:
		return m.Ride
	}
}

// Orchestrator drives the request lifecycle. Each handler invocation is
// an independent, short-lived unit of work; all shared state lives in the
// store.
type Orchestrator struct {
	Directory Directory
	Strategy  *match.Strategy
	Notifier  Notifier
	Geocoder  Geocoder
	Store     Store
	Events    EventSink
	Eta       EtaMultipliers
	Logger    *slog.Logger
}

// HandleCreated runs the first dispatch cycle for a freshly created
// request: enrich with an address, then read, match and notify.
func (o *Orchestrator) HandleCreated(ctx context.Context, kind models.Kind, requestID string) error {
	req, err := o.Store.GetRequest(ctx, kind, requestID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil
		}
		return err
	}
	if req.Status != models.DispatchableStatus(req.Kind) {
		return nil
	}
	if req.OriginAddress == "" && o.Geocoder != nil {
		addr := o.Geocoder.Reverse(ctx, req.Origin)
		req.OriginAddress = addr
		if err := o.Store.SetOriginAddress(ctx, req.Kind, req.ID, addr); err != nil {
			o.logger().Warn("origin address update failed", "request_id", req.ID, "error", err)
		}
	}
	return o.runCycle(ctx, req)
}

// HandleUpdated fires on rejection-set growth. Only the unicast kinds
// cascade: ride fan-out stays broadcast-and-race, a ride rejection merely
// shrinks the candidate set of any later cycle.
func (o *Orchestrator) HandleUpdated(ctx context.Context, kind models.Kind, requestID string) error {
	if kind == models.KindRide {
		return nil
	}
	req, err := o.Store.GetRequest(ctx, kind, requestID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil
		}
		return err
	}
	if req.Status != models.DispatchableStatus(req.Kind) {
		return nil
	}
	return o.runCycle(ctx, req)
}

func (o *Orchestrator) runCycle(ctx context.Context, req *models.Request) error {
	observability.DispatchCyclesTotal.WithLabelValues(string(req.Kind)).Inc()

	partners, err := o.Directory.ListOnlinePartners(ctx, req.Kind)
	if err != nil {
		return err
	}
	if len(partners) == 0 {
		return o.finish(ctx, req, models.NoCapacityStatus(req.Kind), "no_capacity")
	}

	cands := o.Strategy.Eligible(req, partners)
	if len(cands) == 0 {
		return o.finish(ctx, req, models.NoEligibleStatus(req.Kind), "no_eligible")
	}

	if req.Kind == models.KindRide {
		o.fanOut(ctx, req, cands)
		return nil
	}
	return o.unicast(ctx, req, cands[0])
}

// fanOut notifies every eligible candidate. Per-recipient failures are
// logged only: no single partner was ever "the" target, so nobody enters
// the rejection set and the status stays dispatchable until an accept
// wins the race.
func (o *Orchestrator) fanOut(ctx context.Context, req *models.Request, cands []match.Candidate) {
	mult := o.Eta.For(req.Kind)
	for _, c := range cands {
		payload := notify.NewPayload(req, c, mult)
		if err := o.Notifier.Notify(ctx, c.Partner, payload); err != nil {
			observability.DeliveryFailuresTotal.WithLabelValues(string(req.Kind)).Inc()
			o.logger().Warn("fan-out delivery failed",
				"request_id", req.ID, "partner_id", c.Partner.ID, "error", err)
			continue
		}
		observability.NotificationsTotal.WithLabelValues(string(req.Kind)).Inc()
	}
}

// unicast notifies only the nearest candidate. A missing token or a
// failed delivery counts as an implicit rejection; the resulting
// rejection-set growth event triggers the next cycle.
func (o *Orchestrator) unicast(ctx context.Context, req *models.Request, c match.Candidate) error {
	payload := notify.NewPayload(req, c, o.Eta.For(req.Kind))
	if err := o.Notifier.Notify(ctx, c.Partner, payload); err != nil {
		observability.DeliveryFailuresTotal.WithLabelValues(string(req.Kind)).Inc()
		o.logger().Info("unicast delivery failed, cascading",
			"request_id", req.ID, "partner_id", c.Partner.ID, "error", err)
		added, aerr := o.Store.AddRejection(ctx, req.Kind, req.ID, c.Partner.ID)
		if aerr != nil {
			return aerr
		}
		if added && o.Events != nil {
			if perr := o.Events.RequestUpdated(ctx, req.Kind, req.ID); perr != nil {
				o.logger().Error("cascade event publish failed", "request_id", req.ID, "error", perr)
				return perr
			}
		}
		return nil
	}
	observability.NotificationsTotal.WithLabelValues(string(req.Kind)).Inc()
	return nil
}

// finish moves the request to a terminal no-partner status. The guarded
// transition loses gracefully if an accept slipped in between.
func (o *Orchestrator) finish(ctx context.Context, req *models.Request, to models.Status, reason string) error {
	changed, err := o.Store.SetStatus(ctx, req.Kind, req.ID, models.DispatchableStatus(req.Kind), to)
	if err != nil {
		return err
	}
	if changed {
		observability.NoCapacityTotal.WithLabelValues(string(req.Kind), reason).Inc()
		o.logger().Info("dispatch ended without partner",
			"request_id", req.ID, "kind", req.Kind, "status", to)
	}
	return nil
}

func (o *Orchestrator) logger() *slog.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return slog.Default()
}
