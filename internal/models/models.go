package models

import "time"

// Kind identifies which service vertical a request belongs to. It also
// selects the partner collection dispatch reads from.
type Kind string

const (
	KindRide          Kind = "ride"
	KindGarageJob     Kind = "garage_job"
	KindEmergencyCase Kind = "emergency_case"
)

type Coord struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Status is the request lifecycle value. Rides start in "searching",
// garage jobs and emergency cases in "pending".
type Status string

const (
	StatusSearching Status = "searching"
	StatusPending   Status = "pending"
	StatusAssigned  Status = "assigned"
	StatusOngoing   Status = "ongoing"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"

	// Terminal dispatch-failure statuses. "*_available" means nobody was
	// online at all; "*_eligible" means partners were online but none
	// passed the matching rules.
	StatusNoDriversAvailable    Status = "no_drivers_available"
	StatusNoDriversEligible     Status = "no_drivers_eligible"
	StatusNoMechanicsAvailable  Status = "no_mechanics_available"
	StatusNoMechanicsEligible   Status = "no_mechanics_eligible"
	StatusNoAmbulancesAvailable Status = "no_ambulances_available"
	StatusNoAmbulancesEligible  Status = "no_ambulances_eligible"
)

// DispatchableStatus returns the initial status in which a request of the
// given kind is picked up by the orchestrator.
func DispatchableStatus(k Kind) Status {
	if k == KindRide {
		return StatusSearching
	}
	return StatusPending
}

// NoCapacityStatus is the terminal value set when the directory returns
// no online partners for the kind.
func NoCapacityStatus(k Kind) Status {
	switch k {
	case KindGarageJob:
		return StatusNoMechanicsAvailable
	case KindEmergencyCase:
		return StatusNoAmbulancesAvailable
	default:
		return StatusNoDriversAvailable
	}
}

// NoEligibleStatus is the terminal value set when partners were online but
// the matching strategy rejected all of them.
func NoEligibleStatus(k Kind) Status {
	switch k {
	case KindGarageJob:
		return StatusNoMechanicsEligible
	case KindEmergencyCase:
		return StatusNoAmbulancesEligible
	default:
		return StatusNoDriversEligible
	}
}

func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusCancelled,
		StatusNoDriversAvailable, StatusNoDriversEligible,
		StatusNoMechanicsAvailable, StatusNoMechanicsEligible,
		StatusNoAmbulancesAvailable, StatusNoAmbulancesEligible:
		return true
	}
	return false
}

// Request is the shared shape of a ride, garage job or emergency case.
// Kind-specific attributes are populated per kind and zero otherwise.
type Request struct {
	ID                string   `json:"id"`
	Kind              Kind     `json:"kind"`
	Status            Status   `json:"status"`
	Origin            Coord    `json:"origin"`
	Destination       *Coord   `json:"destination,omitempty"`
	OriginAddress     string   `json:"origin_address,omitempty"`
	RequesterID       string   `json:"requester_id"`
	RequesterName     string   `json:"requester_name"`
	RequesterPhone    string   `json:"requester_phone"`
	RejectedBy        []string `json:"rejected_by,omitempty"`
	AssignedPartnerID string   `json:"assigned_partner_id,omitempty"`
	OTP               string   `json:"otp"`

	// Ride only.
	RideType         string `json:"ride_type,omitempty"`
	GenderRestricted bool   `json:"gender_restricted,omitempty"`
	// Garage job only.
	IssueDescription string `json:"issue_description,omitempty"`
	// Emergency case only.
	Severity string `json:"severity,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Rejected reports whether the partner has already declined this request
// (or had a delivery failure counted as a decline).
func (r *Request) Rejected(partnerID string) bool {
	for _, id := range r.RejectedBy {
		if id == partnerID {
			return true
		}
	}
	return false
}

// Partner availability values. Only ride partners use the full set; the
// directory treats mechanics and ambulance partners as available whenever
// they are online.
const (
	PartnerAvailable = "available"
	PartnerBusy      = "busy"
	PartnerOffline   = "offline"
)

// Partner is a record from one of the three partner collections. PushToken
// may be empty: a partner without a registered device is a valid, expected
// condition and is treated as undeliverable by the notifier.
type Partner struct {
	ID              string    `json:"id"`
	Kind            Kind      `json:"kind"`
	DisplayName     string    `json:"display_name"`
	Phone           string    `json:"phone"`
	PushToken       string    `json:"push_token,omitempty"`
	Status          string    `json:"status,omitempty"`
	IsOnline        bool      `json:"is_online"`
	Location        *Coord    `json:"location,omitempty"`
	LastHeartbeatAt time.Time `json:"last_heartbeat_at"`

	// Ride partners only.
	VehicleClass            string `json:"vehicle_class,omitempty"`
	GenderRestrictedService bool   `json:"gender_restricted_service,omitempty"`
}

// Heartbeat is a partner location report, published to the heartbeat topic
// and mirrored into the geo index.
type Heartbeat struct {
	PartnerID string    `json:"partner_id"`
	Kind      Kind      `json:"kind"`
	Location  Coord     `json:"location"`
	At        time.Time `json:"at"`
}
