package webhook

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/example/partner-dispatch/internal/models"
)

func TestSendCarriesEventNameAndData(t *testing.T) {
	var got body
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("bad body: %v", err)
		}
	}))
	defer srv.Close()

	c := NewClient(srv.URL, nil)
	p := models.Partner{ID: "m1", Kind: models.KindGarageJob, DisplayName: "Ravi"}
	if err := c.send(context.Background(), p); err != nil {
		t.Fatal(err)
	}
	if got.Event != "new_garage_partner" {
		t.Fatalf("wrong event name: %q", got.Event)
	}
	if got.Data.ID != "m1" || got.Data.DisplayName != "Ravi" {
		t.Fatalf("partner data missing: %+v", got.Data)
	}
}

func TestSendNon2xxIsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusForbidden)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, nil)
	if err := c.send(context.Background(), models.Partner{ID: "d1", Kind: models.KindRide}); err == nil {
		t.Fatalf("expected error on non-2xx")
	}
}

func TestPartnerOnboardedWithoutEndpointIsNoop(t *testing.T) {
	c := NewClient("", nil)
	// Must not panic or block.
	c.PartnerOnboarded(models.Partner{ID: "d1"})
}
