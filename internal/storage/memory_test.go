package storage

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/example/partner-dispatch/internal/models"
)

func newRide(id string) *models.Request {
	return &models.Request{
		ID:     id,
		Kind:   models.KindRide,
		Status: models.StatusSearching,
		Origin: models.Coord{Lat: 28.6, Lon: 77.2},
		OTP:    "1234",
	}
}

func TestAcceptExactlyOnce(t *testing.T) {
	m := NewMemoryStore()
	ctx := context.Background()
	if err := m.CreateRequest(ctx, newRide("r1")); err != nil {
		t.Fatal(err)
	}
	if err := m.Accept(ctx, models.KindRide, "r1", "d1"); err != nil {
		t.Fatalf("first accept should win: %v", err)
	}
	if err := m.Accept(ctx, models.KindRide, "r1", "d2"); !errors.Is(err, ErrAlreadyTaken) {
		t.Fatalf("second accept should lose with ErrAlreadyTaken, got %v", err)
	}
	r, err := m.GetRequest(ctx, models.KindRide, "r1")
	if err != nil {
		t.Fatal(err)
	}
	if r.Status != models.StatusAssigned || r.AssignedPartnerID != "d1" {
		t.Fatalf("winner not recorded: status=%s assigned=%s", r.Status, r.AssignedPartnerID)
	}
}

func TestAddRejectionSetSemantics(t *testing.T) {
	m := NewMemoryStore()
	ctx := context.Background()
	if err := m.CreateRequest(ctx, newRide("r1")); err != nil {
		t.Fatal(err)
	}
	added, err := m.AddRejection(ctx, models.KindRide, "r1", "d1")
	if err != nil || !added {
		t.Fatalf("first append should add: added=%v err=%v", added, err)
	}
	added, err = m.AddRejection(ctx, models.KindRide, "r1", "d1")
	if err != nil || added {
		t.Fatalf("duplicate append must be a no-op: added=%v err=%v", added, err)
	}
	r, _ := m.GetRequest(ctx, models.KindRide, "r1")
	if len(r.RejectedBy) != 1 {
		t.Fatalf("expected one member, got %v", r.RejectedBy)
	}
}

func TestAssignedPartnerNeverEntersRejections(t *testing.T) {
	m := NewMemoryStore()
	ctx := context.Background()
	if err := m.CreateRequest(ctx, newRide("r1")); err != nil {
		t.Fatal(err)
	}
	if err := m.Accept(ctx, models.KindRide, "r1", "d1"); err != nil {
		t.Fatal(err)
	}
	added, err := m.AddRejection(ctx, models.KindRide, "r1", "d1")
	if err != nil || added {
		t.Fatalf("assigned partner must not enter rejection set: added=%v err=%v", added, err)
	}
}

func TestAcceptClearsPriorRejection(t *testing.T) {
	m := NewMemoryStore()
	ctx := context.Background()
	if err := m.CreateRequest(ctx, newRide("r1")); err != nil {
		t.Fatal(err)
	}
	if added, err := m.AddRejection(ctx, models.KindRide, "r1", "d1"); err != nil || !added {
		t.Fatalf("rejection should apply: added=%v err=%v", added, err)
	}
	// A partner who declined can still win the accept; the decline is
	// superseded and must leave the rejection set.
	if err := m.Accept(ctx, models.KindRide, "r1", "d1"); err != nil {
		t.Fatalf("accept after rejection should win: %v", err)
	}
	r, err := m.GetRequest(ctx, models.KindRide, "r1")
	if err != nil {
		t.Fatal(err)
	}
	if r.AssignedPartnerID != "d1" {
		t.Fatalf("winner not recorded: %+v", r)
	}
	if r.Rejected("d1") {
		t.Fatalf("assigned partner must not remain in rejectedBy, got %v", r.RejectedBy)
	}
}

func TestSetStatusGuarded(t *testing.T) {
	m := NewMemoryStore()
	ctx := context.Background()
	if err := m.CreateRequest(ctx, newRide("r1")); err != nil {
		t.Fatal(err)
	}
	changed, err := m.SetStatus(ctx, models.KindRide, "r1", models.StatusSearching, models.StatusNoDriversAvailable)
	if err != nil || !changed {
		t.Fatalf("guarded transition should apply: changed=%v err=%v", changed, err)
	}
	// Terminal statuses are absorbing: the old guard no longer matches.
	changed, err = m.SetStatus(ctx, models.KindRide, "r1", models.StatusSearching, models.StatusAssigned)
	if err != nil || changed {
		t.Fatalf("stale guard must not transition: changed=%v err=%v", changed, err)
	}
}

func TestListOnlinePartnersFilters(t *testing.T) {
	m := NewMemoryStore()
	ctx := context.Background()
	seed := []*models.Partner{
		{ID: "d1", Kind: models.KindRide, IsOnline: true, Status: models.PartnerAvailable},
		{ID: "d2", Kind: models.KindRide, IsOnline: true, Status: models.PartnerBusy},
		{ID: "d3", Kind: models.KindRide, IsOnline: false, Status: models.PartnerAvailable},
		{ID: "m1", Kind: models.KindGarageJob, IsOnline: true},
	}
	for _, p := range seed {
		if err := m.CreatePartner(ctx, p); err != nil {
			t.Fatal(err)
		}
	}
	rides, err := m.ListOnlinePartners(ctx, models.KindRide)
	if err != nil {
		t.Fatal(err)
	}
	if len(rides) != 1 || rides[0].ID != "d1" {
		t.Fatalf("ride directory should only list online+available, got %+v", rides)
	}
	mechs, err := m.ListOnlinePartners(ctx, models.KindGarageJob)
	if err != nil {
		t.Fatal(err)
	}
	if len(mechs) != 1 || mechs[0].ID != "m1" {
		t.Fatalf("mechanic directory wrong: %+v", mechs)
	}
}

func TestSweepStale(t *testing.T) {
	m := NewMemoryStore()
	ctx := context.Background()
	now := time.Now()
	stale := &models.Partner{
		ID: "old", Kind: models.KindRide, IsOnline: true, Status: models.PartnerAvailable,
		Location: &models.Coord{Lat: 1, Lon: 2}, LastHeartbeatAt: now.Add(-5 * time.Minute),
	}
	fresh := &models.Partner{
		ID: "new", Kind: models.KindRide, IsOnline: true, Status: models.PartnerAvailable,
		Location: &models.Coord{Lat: 3, Lon: 4}, LastHeartbeatAt: now,
	}
	if err := m.CreatePartner(ctx, stale); err != nil {
		t.Fatal(err)
	}
	if err := m.CreatePartner(ctx, fresh); err != nil {
		t.Fatal(err)
	}
	n, err := m.SweepStale(ctx, now.Add(-2*time.Minute))
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Fatalf("expected 1 swept, got %d", n)
	}
	got, _ := m.GetPartner("old")
	if got.IsOnline || got.Location != nil {
		t.Fatalf("stale partner not cleared: %+v", got)
	}
	got, _ = m.GetPartner("new")
	if !got.IsOnline || got.Location == nil {
		t.Fatalf("fresh partner must be untouched: %+v", got)
	}
}
