package geo

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/example/partner-dispatch/internal/models"
)

// fakeGeoStore implements GeoStore for tests
type fakeGeoStore struct {
	failGeo  int // number of times to fail GeoAdd before succeeding
	failH    int // number of times to fail HSet before succeeding
	geoCalls int
	hCalls   int
}

func (f *fakeGeoStore) GeoAdd(ctx context.Context, key string, loc *redis.GeoLocation) error {
	f.geoCalls++
	if f.geoCalls <= f.failGeo {
		return errors.New("geo fail")
	}
	return nil
}

func (f *fakeGeoStore) HSet(ctx context.Context, key string, values map[string]interface{}) error {
	f.hCalls++
	if f.hCalls <= f.failH {
		return errors.New("hset fail")
	}
	return nil
}

func heartbeat() models.Heartbeat {
	return models.Heartbeat{
		PartnerID: "p1",
		Kind:      models.KindRide,
		Location:  models.Coord{Lat: 28.6, Lon: 77.2},
		At:        time.Now(),
	}
}

func TestUpsert_SucceedsAfterRetries(t *testing.T) {
	f := &fakeGeoStore{failGeo: 1, failH: 1}
	start := time.Now()
	if err := Upsert(context.Background(), f, "partners_geo", heartbeat(), 3, 10*time.Millisecond); err != nil {
		t.Fatalf("expected success, got err=%v", err)
	}
	if f.geoCalls < 2 || f.hCalls < 2 {
		t.Fatalf("expected retries, got geo=%d h=%d", f.geoCalls, f.hCalls)
	}
	if time.Since(start) < 10*time.Millisecond {
		t.Fatalf("expected at least one backoff")
	}
}

func TestUpsert_FailsWhenExhausted(t *testing.T) {
	f := &fakeGeoStore{failGeo: 5}
	if err := Upsert(context.Background(), f, "partners_geo", heartbeat(), 3, 5*time.Millisecond); err == nil {
		t.Fatalf("expected error after retries")
	}
}
