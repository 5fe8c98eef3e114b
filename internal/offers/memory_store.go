package offers

import (
	"context"
	"sync"
	"time"

	"github.com/hasnain833/Souq-main-Backend-sub001/internal/idgen"
)

// MemoryStore is an in-memory Store for development and tests.
type MemoryStore struct {
	mu     sync.RWMutex
	offers map[string]*Offer
}

// NewMemoryStore creates an empty in-memory offer store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{offers: make(map[string]*Offer)}
}

func (s *MemoryStore) Create(ctx context.Context, o *Offer) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if o.ID == "" {
		o.ID = idgen.WithPrefix("offer")
	}
	if o.Status == "" {
		o.Status = StatusPending
	}
	now := time.Now()
	o.CreatedAt = now
	o.UpdatedAt = now

	cp := *o
	s.offers[o.ID] = &cp
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, id string) (*Offer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	o, ok := s.offers[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *o
	return &cp, nil
}

func (s *MemoryStore) Update(ctx context.Context, o *Offer) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.offers[o.ID]; !ok {
		return ErrNotFound
	}
	o.UpdatedAt = time.Now()
	cp := *o
	s.offers[o.ID] = &cp
	return nil
}

func (s *MemoryStore) ListExpirable(ctx context.Context, now time.Time, limit int) ([]*Offer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*Offer
	for _, o := range s.offers {
		if o.Status == StatusPending && !o.ExpiresAt.IsZero() && now.After(o.ExpiresAt) {
			cp := *o
			out = append(out, &cp)
			if limit > 0 && len(out) >= limit {
				break
			}
		}
	}
	return out, nil
}

var _ Store = (*MemoryStore)(nil)
