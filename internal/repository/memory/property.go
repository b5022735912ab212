package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/leaselink/leaselink/internal/models"
	"github.com/leaselink/leaselink/internal/repository"
)

type PropertyStore struct {
	mu         sync.Mutex
	properties map[uuid.UUID]models.Property
}

func NewPropertyStore() *PropertyStore {
	return &PropertyStore{properties: make(map[uuid.UUID]models.Property)}
}

func (s *PropertyStore) Create(ctx context.Context, property models.Property) (*models.Property, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	property.ID = uuid.New()
	property.CreatedAt = time.Now()
	s.properties[property.ID] = property
	return &property, nil
}

func (s *PropertyStore) GetByID(ctx context.Context, id uuid.UUID) (*models.Property, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.properties[id]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (s *PropertyStore) List(ctx context.Context) ([]models.Property, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.collect(func(models.Property) bool { return true }), nil
}

func (s *PropertyStore) ListByLandlord(ctx context.Context, landlordID uuid.UUID) ([]models.Property, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.collect(func(p models.Property) bool { return p.LandlordID == landlordID }), nil
}

func (s *PropertyStore) Search(ctx context.Context, filter repository.PropertyFilter) ([]models.Property, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.collect(func(p models.Property) bool {
		if filter.Title != "" && !strings.Contains(strings.ToLower(p.Title), strings.ToLower(filter.Title)) {
			return false
		}
		if filter.Address != "" && !strings.Contains(strings.ToLower(p.Address), strings.ToLower(filter.Address)) {
			return false
		}
		if filter.MinRent != nil && p.RentAmount < *filter.MinRent {
			return false
		}
		if filter.MaxRent != nil && p.RentAmount > *filter.MaxRent {
			return false
		}
		if filter.AvailableFrom != nil && p.AvailableFrom.After(*filter.AvailableFrom) {
			return false
		}
		return true
	}), nil
}

func (s *PropertyStore) Update(ctx context.Context, property models.Property) (*models.Property, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.properties[property.ID]
	if !ok {
		return nil, nil
	}
	// CreatedAt and landlord survive an update unless the caller set a
	// new landlord explicitly.
	property.CreatedAt = existing.CreatedAt
	if property.LandlordID == uuid.Nil {
		property.LandlordID = existing.LandlordID
	}
	s.properties[property.ID] = property
	return &property, nil
}

func (s *PropertyStore) Delete(ctx context.Context, id uuid.UUID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.properties[id]; !ok {
		return false, nil
	}
	delete(s.properties, id)
	return true, nil
}

// collect filters and sorts newest-first. Callers must hold the lock.
func (s *PropertyStore) collect(keep func(models.Property) bool) []models.Property {
	out := make([]models.Property, 0)
	for _, p := range s.properties {
		if keep(p) {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}
