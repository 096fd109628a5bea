package storage

import (
	"context"
	"sync"
	"time"

	"github.com/example/partner-dispatch/internal/models"
)

// MemoryStore backs both store interfaces with in-process maps. Used when
// no PG_DSN is configured and throughout the tests.
type MemoryStore struct {
	mu       sync.RWMutex
	requests map[string]*models.Request
	partners map[string]*models.Partner
	// users are swept for staleness like partners but never dispatched.
	users map[string]*models.Partner
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		requests: make(map[string]*models.Request),
		partners: make(map[string]*models.Partner),
		users:    make(map[string]*models.Partner),
	}
}

func (m *MemoryStore) CreateRequest(ctx context.Context, r *models.Request) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *r
	m.requests[r.ID] = &cp
	return nil
}

func (m *MemoryStore) GetRequest(ctx context.Context, kind models.Kind, id string) (*models.Request, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.requests[id]
	if !ok || r.Kind != kind {
		return nil, ErrNotFound
	}
	cp := *r
	cp.RejectedBy = append([]string(nil), r.RejectedBy...)
	return &cp, nil
}

func (m *MemoryStore) SetStatus(ctx context.Context, kind models.Kind, id string, from, to models.Status) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.requests[id]
	if !ok || r.Kind != kind {
		return false, ErrNotFound
	}
	if r.Status != from {
		return false, nil
	}
	r.Status = to
	r.UpdatedAt = time.Now()
	return true, nil
}

func (m *MemoryStore) SetOriginAddress(ctx context.Context, kind models.Kind, id, address string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.requests[id]
	if !ok || r.Kind != kind {
		return ErrNotFound
	}
	r.OriginAddress = address
	return nil
}

func (m *MemoryStore) AddRejection(ctx context.Context, kind models.Kind, id, partnerID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.requests[id]
	if !ok || r.Kind != kind {
		return false, ErrNotFound
	}
	if r.AssignedPartnerID == partnerID {
		return false, nil
	}
	for _, p := range r.RejectedBy {
		if p == partnerID {
			return false, nil
		}
	}
	r.RejectedBy = append(r.RejectedBy, partnerID)
	r.UpdatedAt = time.Now()
	return true, nil
}

func (m *MemoryStore) Accept(ctx context.Context, kind models.Kind, id, partnerID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.requests[id]
	if !ok || r.Kind != kind {
		return ErrNotFound
	}
	if r.Status != models.DispatchableStatus(kind) {
		return ErrAlreadyTaken
	}
	r.Status = models.StatusAssigned
	r.AssignedPartnerID = partnerID
	// A prior decline is superseded by the accept; the assigned partner
	// must never remain in the rejection set.
	for i, p := range r.RejectedBy {
		if p == partnerID {
			r.RejectedBy = append(r.RejectedBy[:i], r.RejectedBy[i+1:]...)
			break
		}
	}
	r.UpdatedAt = time.Now()
	return nil
}

func (m *MemoryStore) CreatePartner(ctx context.Context, p *models.Partner) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *p
	m.partners[p.ID] = &cp
	return nil
}

// CreateUser registers a requester record for the staleness sweep.
func (m *MemoryStore) CreateUser(ctx context.Context, u *models.Partner) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *u
	m.users[u.ID] = &cp
	return nil
}

func (m *MemoryStore) ListOnlinePartners(ctx context.Context, kind models.Kind) ([]models.Partner, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := []models.Partner{}
	for _, p := range m.partners {
		if p.Kind != kind || !p.IsOnline {
			continue
		}
		if kind == models.KindRide && p.Status != models.PartnerAvailable {
			continue
		}
		out = append(out, *p)
	}
	return out, nil
}

func (m *MemoryStore) Heartbeat(ctx context.Context, kind models.Kind, partnerID string, loc models.Coord, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.partners[partnerID]
	if !ok || p.Kind != kind {
		return ErrNotFound
	}
	l := loc
	p.Location = &l
	p.LastHeartbeatAt = at
	p.IsOnline = true
	return nil
}

func (m *MemoryStore) SetBusy(ctx context.Context, kind models.Kind, partnerID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.partners[partnerID]
	if !ok || p.Kind != kind {
		return ErrNotFound
	}
	p.Status = models.PartnerBusy
	return nil
}

func (m *MemoryStore) SweepStale(ctx context.Context, cutoff time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	sweep := func(records map[string]*models.Partner) {
		for _, p := range records {
			if p.IsOnline && p.LastHeartbeatAt.Before(cutoff) {
				p.IsOnline = false
				p.Location = nil
				n++
			}
		}
	}
	sweep(m.partners)
	sweep(m.users)
	return n, nil
}

// GetPartner is a test helper.
func (m *MemoryStore) GetPartner(id string) (models.Partner, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.partners[id]
	if !ok {
		return models.Partner{}, false
	}
	return *p, true
}
