package match

import (
	"sort"
	"strings"

	"github.com/example/partner-dispatch/internal/geo"
	"github.com/example/partner-dispatch/internal/models"
)

// Candidate is an eligible partner annotated with its distance from the
// request origin.
type Candidate struct {
	Partner    models.Partner
	DistanceKm float64
}

// Strategy holds the per-kind matching knobs. Emergency cases have no
// radius cutoff on purpose: the nearest ambulance is dispatched no matter
// how far away it is.
type Strategy struct {
	RideRadiusKm   float64
	GarageRadiusKm float64
}

func NewStrategy() *Strategy {
	return &Strategy{RideRadiusKm: 10, GarageRadiusKm: 15}
}

// Eligible filters the candidate set down to partners that may serve the
// request and orders them nearest first. Rules, in order: drop already
// rejected partners, drop partners without a known location, apply the
// kind's capability rules, apply the kind's distance cutoff, sort by
// distance. The sort is stable: equal distances keep directory order.
func (s *Strategy) Eligible(req *models.Request, partners []models.Partner) []Candidate {
	cutoff := s.cutoffKm(req.Kind)
	out := make([]Candidate, 0, len(partners))
	for _, p := range partners {
		if req.Rejected(p.ID) {
			continue
		}
		if p.Location == nil {
			continue
		}
		if !eligibleForKind(req, p) {
			continue
		}
		d := geo.DistanceKm(req.Origin, *p.Location)
		if cutoff > 0 && d > cutoff {
			continue
		}
		out = append(out, Candidate{Partner: p, DistanceKm: d})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].DistanceKm < out[j].DistanceKm })
	return out
}

// cutoffKm returns the kind's distance cutoff; 0 means unrestricted.
func (s *Strategy) cutoffKm(k models.Kind) float64 {
	switch k {
	case models.KindRide:
		return s.RideRadiusKm
	case models.KindGarageJob:
		return s.GarageRadiusKm
	default:
		return 0
	}
}

func eligibleForKind(req *models.Request, p models.Partner) bool {
	if req.Kind != models.KindRide {
		// Any online mechanic or ambulance partner is a candidate.
		return true
	}
	// The partner's vehicle class must be a prefix of the requested ride
	// type, so a "Cab" partner serves "Cab (Lite)" requests too.
	if p.VehicleClass == "" || !strings.HasPrefix(req.RideType, p.VehicleClass) {
		return false
	}
	if req.GenderRestricted && !p.GenderRestrictedService {
		return false
	}
	return true
}
