package storage

import (
	"context"
	"errors"
	"time"

	"github.com/example/partner-dispatch/internal/models"
)

var (
	ErrNotFound = errors.New("not found")
	// ErrAlreadyTaken is returned to the loser of a concurrent accept
	// race. Not a system fault.
	ErrAlreadyTaken = errors.New("request already taken")
)

// RequestStore persists ride, garage-job and emergency-case documents.
// Accept and AddRejection must be atomic at the store level: the
// orchestrator relies on the conditional update, not application locks.
type RequestStore interface {
	CreateRequest(ctx context.Context, r *models.Request) error
	GetRequest(ctx context.Context, kind models.Kind, id string) (*models.Request, error)
	// SetStatus transitions the request from one status to another and
	// reports whether the guarded update changed anything.
	SetStatus(ctx context.Context, kind models.Kind, id string, from, to models.Status) (bool, error)
	SetOriginAddress(ctx context.Context, kind models.Kind, id, address string) error
	// AddRejection appends the partner to the rejection set with set
	// semantics: re-adding an existing member reports false and changes
	// nothing. The assigned partner can never enter the set.
	AddRejection(ctx context.Context, kind models.Kind, id, partnerID string) (bool, error)
	// Accept assigns the partner if and only if the request is still in
	// its dispatchable status, otherwise ErrAlreadyTaken.
	Accept(ctx context.Context, kind models.Kind, id, partnerID string) error
}

// PartnerStore reads and maintains the three partner collections plus the
// requester collection swept by the watchdog.
type PartnerStore interface {
	CreatePartner(ctx context.Context, p *models.Partner) error
	// ListOnlinePartners returns every online partner for the kind; ride
	// partners must additionally be in the "available" status. Empty
	// slice, not an error, when nobody is online.
	ListOnlinePartners(ctx context.Context, kind models.Kind) ([]models.Partner, error)
	Heartbeat(ctx context.Context, kind models.Kind, partnerID string, loc models.Coord, at time.Time) error
	SetBusy(ctx context.Context, kind models.Kind, partnerID string) error
	// SweepStale forces offline every partner/user whose heartbeat is
	// older than cutoff, clearing the stored location. Returns the number
	// of records touched.
	SweepStale(ctx context.Context, cutoff time.Time) (int64, error)
}
