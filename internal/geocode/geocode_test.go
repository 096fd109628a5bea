package geocode

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/example/partner-dispatch/internal/models"
)

func TestReverseSuccess(t *testing.T) {
	var hits int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		if r.URL.Query().Get("lat") == "" || r.URL.Query().Get("lon") == "" {
			t.Errorf("missing coordinates in query: %s", r.URL.RawQuery)
		}
		w.Write([]byte(`{"display_name":"Connaught Place, New Delhi"}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, time.Minute)
	loc := models.Coord{Lat: 28.6, Lon: 77.2}
	if got := c.Reverse(context.Background(), loc); got != "Connaught Place, New Delhi" {
		t.Fatalf("unexpected address: %q", got)
	}
	// Second lookup for the same coordinate is served from cache.
	if got := c.Reverse(context.Background(), loc); got != "Connaught Place, New Delhi" {
		t.Fatalf("unexpected cached address: %q", got)
	}
	if hits != 1 {
		t.Fatalf("expected one upstream hit, got %d", hits)
	}
}

func TestReverseFailureYieldsPlaceholder(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, time.Minute)
	if got := c.Reverse(context.Background(), models.Coord{Lat: 1, Lon: 2}); got != Placeholder {
		t.Fatalf("expected placeholder, got %q", got)
	}
}

func TestReverseUnconfigured(t *testing.T) {
	c := NewClient("", time.Minute)
	if got := c.Reverse(context.Background(), models.Coord{}); got != Placeholder {
		t.Fatalf("expected placeholder without endpoint, got %q", got)
	}
}
