package geo

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/example/partner-dispatch/internal/models"
)

// GeoStore is the subset of redis operations the mirror needs. Kept small
// so tests can fake it.
type GeoStore interface {
	GeoAdd(ctx context.Context, key string, loc *redis.GeoLocation) error
	HSet(ctx context.Context, key string, values map[string]interface{}) error
}

// Mirror keeps a Redis GEO copy of partner positions, fed by heartbeats.
// It is an ops surface (nearby lookups), not the directory of record.
type Mirror struct {
	client *redis.Client
	key    string
}

func NewMirror(addr, password, key string) *Mirror {
	c := redis.NewClient(&redis.Options{Addr: addr, Password: password})
	return &Mirror{client: c, key: key}
}

func (m *Mirror) GeoAdd(ctx context.Context, key string, loc *redis.GeoLocation) error {
	_, err := m.client.GeoAdd(ctx, key, loc).Result()
	return err
}

func (m *Mirror) HSet(ctx context.Context, key string, values map[string]interface{}) error {
	_, err := m.client.HSet(ctx, key, values).Result()
	return err
}

// Upsert records a heartbeat with retry and small exponential backoff.
// Writes the GEO entry first, then the metadata hash.
func Upsert(ctx context.Context, gs GeoStore, key string, hb models.Heartbeat, attempts int, delay time.Duration) error {
	for i := 0; i < attempts; i++ {
		if err := gs.GeoAdd(ctx, key, &redis.GeoLocation{Longitude: hb.Location.Lon, Latitude: hb.Location.Lat, Name: hb.PartnerID}); err != nil {
			if i == attempts-1 {
				return err
			}
			time.Sleep(delay)
			delay *= 2
			continue
		}
		meta := map[string]interface{}{
			"kind":      string(hb.Kind),
			"last_seen": hb.At.Format(time.RFC3339),
		}
		if err := gs.HSet(ctx, metaKey(hb.PartnerID), meta); err != nil {
			if i == attempts-1 {
				return err
			}
			time.Sleep(delay)
			delay *= 2
			continue
		}
		return nil
	}
	return nil
}

// NearbyPartner is a mirror entry annotated with its distance from the
// query point.
type NearbyPartner struct {
	PartnerID  string       `json:"partner_id"`
	Kind       models.Kind  `json:"kind"`
	Location   models.Coord `json:"location"`
	DistanceKm float64      `json:"distance_km"`
}

// Nearby returns up to limit mirrored partners within radiusKm of the
// point, nearest first.
func (m *Mirror) Nearby(ctx context.Context, lat, lon, radiusKm float64, limit int) ([]NearbyPartner, error) {
	res, err := m.client.GeoRadius(ctx, m.key, lon, lat, &redis.GeoRadiusQuery{
		Radius: radiusKm, Unit: "km", WithCoord: true, WithDist: true, Count: limit, Sort: "ASC",
	}).Result()
	if err != nil {
		return nil, err
	}
	out := make([]NearbyPartner, 0, len(res))
	for _, g := range res {
		p := NearbyPartner{
			PartnerID:  g.Name,
			Location:   models.Coord{Lat: g.Latitude, Lon: g.Longitude},
			DistanceKm: g.Dist,
		}
		if meta, err := m.client.HGetAll(ctx, metaKey(g.Name)).Result(); err == nil {
			p.Kind = models.Kind(meta["kind"])
		}
		out = append(out, p)
	}
	return out, nil
}

func (m *Mirror) Ping(ctx context.Context) error { return m.client.Ping(ctx).Err() }

func (m *Mirror) Close() error { return m.client.Close() }

func metaKey(id string) string { return "partner:meta:" + id }
