package watchdog

import (
	"context"
	"testing"
	"time"

	"github.com/example/partner-dispatch/internal/models"
	"github.com/example/partner-dispatch/internal/storage"
)

type recordingSweeper struct {
	cutoff time.Time
	calls  int
}

func (r *recordingSweeper) SweepStale(ctx context.Context, cutoff time.Time) (int64, error) {
	r.cutoff = cutoff
	r.calls++
	return 0, nil
}

func TestSweepUsesStalenessWindow(t *testing.T) {
	s := &recordingSweeper{}
	w := &Watchdog{Store: s, Window: 120 * time.Second}
	before := time.Now().Add(-120 * time.Second)
	w.Sweep(context.Background())
	after := time.Now().Add(-120 * time.Second)
	if s.calls != 1 {
		t.Fatalf("expected one sweep, got %d", s.calls)
	}
	if s.cutoff.Before(before) || s.cutoff.After(after) {
		t.Fatalf("cutoff %v outside expected window [%v, %v]", s.cutoff, before, after)
	}
}

func TestSweepForcesStalePartnersOffline(t *testing.T) {
	store := storage.NewMemoryStore()
	ctx := context.Background()
	now := time.Now()
	stale := &models.Partner{
		ID: "stale", Kind: models.KindRide, IsOnline: true, Status: models.PartnerAvailable,
		Location: &models.Coord{Lat: 28.6, Lon: 77.2}, LastHeartbeatAt: now.Add(-3 * time.Minute),
	}
	fresh := &models.Partner{
		ID: "fresh", Kind: models.KindRide, IsOnline: true, Status: models.PartnerAvailable,
		Location: &models.Coord{Lat: 28.7, Lon: 77.3}, LastHeartbeatAt: now.Add(-30 * time.Second),
	}
	if err := store.CreatePartner(ctx, stale); err != nil {
		t.Fatal(err)
	}
	if err := store.CreatePartner(ctx, fresh); err != nil {
		t.Fatal(err)
	}

	w := &Watchdog{Store: store, Window: 120 * time.Second}
	w.Sweep(ctx)

	got, _ := store.GetPartner("stale")
	if got.IsOnline || got.Location != nil {
		t.Fatalf("stale partner should be offline with no location: %+v", got)
	}
	got, _ = store.GetPartner("fresh")
	if !got.IsOnline || got.Location == nil {
		t.Fatalf("fresh partner must be untouched: %+v", got)
	}
}
