package notify

import (
	"github.com/example/partner-dispatch/internal/match"
	"github.com/example/partner-dispatch/internal/models"
)

// Payload is the structured message delivered to exactly one partner
// device. ETA is synthetic: distance times a per-kind multiplier, in
// minutes.
type Payload struct {
	Type          string       `json:"type"`
	RequestID     string       `json:"request_id"`
	RequesterID   string       `json:"requester_id"`
	RequesterName string       `json:"requester_name"`
	Address       string       `json:"address"`
	Origin        models.Coord `json:"origin"`
	DistanceKm    float64      `json:"distance_km"`
	EtaMinutes    float64      `json:"eta_minutes"`
	OTP           string       `json:"otp"`

	RideType         string `json:"ride_type,omitempty"`
	IssueDescription string `json:"issue_description,omitempty"`
	Severity         string `json:"severity,omitempty"`
}

func typeTag(k models.Kind) string {
	switch k {
	case models.KindGarageJob:
		return "garage_request"
	case models.KindEmergencyCase:
		return "emergency_request"
	default:
		return "ride_request"
	}
}

// NewPayload builds the push message for one candidate of a dispatch
// cycle.
func NewPayload(req *models.Request, cand match.Candidate, etaMultiplier float64) Payload {
	return Payload{
		Type:          typeTag(req.Kind),
		RequestID:     req.ID,
		RequesterID:   req.RequesterID,
		RequesterName: req.RequesterName,
		Address:       req.OriginAddress,
		Origin:        req.Origin,
		DistanceKm:    cand.DistanceKm,
		EtaMinutes:    cand.DistanceKm * etaMultiplier,
		OTP:           req.OTP,

		RideType:         req.RideType,
		IssueDescription: req.IssueDescription,
		Severity:         req.Severity,
	}
}
