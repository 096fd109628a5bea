package match

import (
	"testing"

	"github.com/example/partner-dispatch/internal/models"
)

func loc(lat, lon float64) *models.Coord { return &models.Coord{Lat: lat, Lon: lon} }

func rideRequest() *models.Request {
	return &models.Request{
		ID:       "r1",
		Kind:     models.KindRide,
		Status:   models.StatusSearching,
		Origin:   models.Coord{Lat: 28.60, Lon: 77.20},
		RideType: "Cab (Lite)",
	}
}

func TestEligibleOrdersNearestFirst(t *testing.T) {
	s := NewStrategy()
	req := rideRequest()
	partners := []models.Partner{
		{ID: "far", Kind: models.KindRide, VehicleClass: "Cab", Location: loc(28.65, 77.25)},
		{ID: "near", Kind: models.KindRide, VehicleClass: "Cab", Location: loc(28.61, 77.21)},
	}
	got := s.Eligible(req, partners)
	if len(got) != 2 {
		t.Fatalf("expected 2 candidates, got %d", len(got))
	}
	if got[0].Partner.ID != "near" || got[1].Partner.ID != "far" {
		t.Fatalf("wrong order: %s, %s", got[0].Partner.ID, got[1].Partner.ID)
	}
	if got[0].DistanceKm >= got[1].DistanceKm {
		t.Fatalf("distances not ascending: %f >= %f", got[0].DistanceKm, got[1].DistanceKm)
	}
}

func TestEligibleExcludesRejected(t *testing.T) {
	s := NewStrategy()
	req := rideRequest()
	req.RejectedBy = []string{"d1"}
	partners := []models.Partner{
		{ID: "d1", Kind: models.KindRide, VehicleClass: "Cab", Location: loc(28.61, 77.21)},
		{ID: "d2", Kind: models.KindRide, VehicleClass: "Cab", Location: loc(28.62, 77.22)},
	}
	got := s.Eligible(req, partners)
	if len(got) != 1 || got[0].Partner.ID != "d2" {
		t.Fatalf("rejected partner not excluded: %+v", got)
	}
}

func TestEligibleExcludesMissingLocation(t *testing.T) {
	s := NewStrategy()
	got := s.Eligible(rideRequest(), []models.Partner{
		{ID: "d1", Kind: models.KindRide, VehicleClass: "Cab"},
	})
	if len(got) != 0 {
		t.Fatalf("partner without location should be excluded")
	}
}

func TestRideRadiusCutoff(t *testing.T) {
	s := NewStrategy()
	// ~15.7 km away, beyond the 10 km ride radius.
	got := s.Eligible(rideRequest(), []models.Partner{
		{ID: "d1", Kind: models.KindRide, VehicleClass: "Cab", Location: loc(28.74, 77.25)},
	})
	for _, c := range got {
		if c.DistanceKm > s.RideRadiusKm {
			t.Fatalf("candidate beyond cutoff included: %f km", c.DistanceKm)
		}
	}
	if len(got) != 0 {
		t.Fatalf("expected no candidates, got %d", len(got))
	}
}

func TestVehicleClassPrefixMatch(t *testing.T) {
	s := NewStrategy()
	req := rideRequest() // ride type "Cab (Lite)"
	partners := []models.Partner{
		{ID: "cab", Kind: models.KindRide, VehicleClass: "Cab", Location: loc(28.61, 77.21)},
		{ID: "bike", Kind: models.KindRide, VehicleClass: "Bike", Location: loc(28.60, 77.20)},
		{ID: "untyped", Kind: models.KindRide, Location: loc(28.60, 77.20)},
	}
	got := s.Eligible(req, partners)
	if len(got) != 1 || got[0].Partner.ID != "cab" {
		t.Fatalf("expected only prefix-matching class, got %+v", got)
	}
}

func TestGenderRestrictedRide(t *testing.T) {
	s := NewStrategy()
	req := rideRequest()
	req.GenderRestricted = true
	partners := []models.Partner{
		{ID: "closest", Kind: models.KindRide, VehicleClass: "Cab", Location: loc(28.601, 77.201)},
		{ID: "restricted", Kind: models.KindRide, VehicleClass: "Cab", Location: loc(28.62, 77.22), GenderRestrictedService: true},
	}
	got := s.Eligible(req, partners)
	if len(got) != 1 || got[0].Partner.ID != "restricted" {
		t.Fatalf("gender restriction not enforced: %+v", got)
	}
}

func TestGarageRadiusAndNoCapabilityFilter(t *testing.T) {
	s := NewStrategy()
	req := &models.Request{
		ID:     "g1",
		Kind:   models.KindGarageJob,
		Status: models.StatusPending,
		Origin: models.Coord{Lat: 28.60, Lon: 77.20},
	}
	partners := []models.Partner{
		{ID: "m1", Kind: models.KindGarageJob, Location: loc(28.70, 77.25)}, // ~12 km, inside 15
		{ID: "m2", Kind: models.KindGarageJob, Location: loc(28.80, 77.40)}, // ~30 km, outside
	}
	got := s.Eligible(req, partners)
	if len(got) != 1 || got[0].Partner.ID != "m1" {
		t.Fatalf("garage cutoff wrong: %+v", got)
	}
}

func TestEmergencyHasNoCutoff(t *testing.T) {
	s := NewStrategy()
	req := &models.Request{
		ID:     "e1",
		Kind:   models.KindEmergencyCase,
		Status: models.StatusPending,
		Origin: models.Coord{Lat: 28.60, Lon: 77.20},
	}
	// ~41 km away; still a candidate since emergencies are unrestricted.
	got := s.Eligible(req, []models.Partner{
		{ID: "h1", Kind: models.KindEmergencyCase, Location: loc(28.95, 77.35)},
	})
	if len(got) != 1 || got[0].Partner.ID != "h1" {
		t.Fatalf("emergency candidate dropped: %+v", got)
	}
	if got[0].DistanceKm < 30 {
		t.Fatalf("expected a distant candidate, got %f km", got[0].DistanceKm)
	}
}

func TestStableOrderOnEqualDistance(t *testing.T) {
	s := NewStrategy()
	req := rideRequest()
	same := loc(28.61, 77.21)
	partners := []models.Partner{
		{ID: "first", Kind: models.KindRide, VehicleClass: "Cab", Location: same},
		{ID: "second", Kind: models.KindRide, VehicleClass: "Cab", Location: same},
	}
	got := s.Eligible(req, partners)
	if len(got) != 2 || got[0].Partner.ID != "first" || got[1].Partner.ID != "second" {
		t.Fatalf("equal distances must keep directory order: %+v", got)
	}
}
