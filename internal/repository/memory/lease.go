package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/leaselink/leaselink/internal/models"
)

type LeaseStore struct {
	mu     sync.Mutex
	leases map[uuid.UUID]models.Lease
}

func NewLeaseStore() *LeaseStore {
	return &LeaseStore{leases: make(map[uuid.UUID]models.Lease)}
}

func (s *LeaseStore) Create(ctx context.Context, lease models.Lease) (*models.Lease, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	lease.ID = uuid.New()
	lease.CreatedAt = time.Now()
	s.leases[lease.ID] = lease
	return &lease, nil
}

func (s *LeaseStore) GetByID(ctx context.Context, id uuid.UUID) (*models.Lease, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	l, ok := s.leases[id]
	if !ok {
		return nil, nil
	}
	return &l, nil
}

// TransitionStatus does the compare-and-swap under the store lock: check
// the current status against `from`, flip to `to` if it matches. With
// two racing callers, whichever takes the lock second finds the status
// already moved and loses — it still gets the post-transition lease back.
func (s *LeaseStore) TransitionStatus(ctx context.Context, id uuid.UUID, from []models.LeaseStatus, to models.LeaseStatus) (*models.Lease, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	l, ok := s.leases[id]
	if !ok {
		return nil, false, nil
	}
	for _, st := range from {
		if l.Status == st {
			l.Status = to
			s.leases[id] = l
			return &l, true, nil
		}
	}
	return &l, false, nil
}

func (s *LeaseStore) ListByTenant(ctx context.Context, tenantID uuid.UUID) ([]models.Lease, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.collect(func(l models.Lease) bool { return l.TenantID == tenantID }), nil
}

func (s *LeaseStore) ListByProperty(ctx context.Context, propertyID uuid.UUID) ([]models.Lease, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.collect(func(l models.Lease) bool { return l.PropertyID == propertyID }), nil
}

func (s *LeaseStore) collect(keep func(models.Lease) bool) []models.Lease {
	out := make([]models.Lease, 0)
	for _, l := range s.leases {
		if keep(l) {
			out = append(out, l)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}
