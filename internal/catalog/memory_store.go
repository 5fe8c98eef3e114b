package catalog

import (
	"context"
	"sync"
	"time"

	"github.com/hasnain833/Souq-main-Backend-sub001/internal/idgen"
)

// MemoryStore is an in-memory Store for development and tests.
type MemoryStore struct {
	mu       sync.RWMutex
	products map[string]*Product
	sellers  map[string]*Seller
}

// NewMemoryStore creates an empty in-memory catalog store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		products: make(map[string]*Product),
		sellers:  make(map[string]*Seller),
	}
}

func (s *MemoryStore) GetProduct(ctx context.Context, id string) (*Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.products[id]
	if !ok {
		return nil, ErrProductNotFound
	}
	cp := *p
	return &cp, nil
}

func (s *MemoryStore) PutProduct(ctx context.Context, p *Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if p.ID == "" {
		p.ID = idgen.WithPrefix("prod")
	}
	now := time.Now()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.UpdatedAt = now

	cp := *p
	s.products[p.ID] = &cp
	return nil
}

func (s *MemoryStore) GetSeller(ctx context.Context, id string) (*Seller, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sl, ok := s.sellers[id]
	if !ok {
		return nil, ErrSellerNotFound
	}
	cp := *sl
	return &cp, nil
}

func (s *MemoryStore) PutSeller(ctx context.Context, sl *Seller) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sl.ID == "" {
		sl.ID = idgen.WithPrefix("seller")
	}
	now := time.Now()
	if sl.CreatedAt.IsZero() {
		sl.CreatedAt = now
	}
	sl.UpdatedAt = now

	cp := *sl
	s.sellers[sl.ID] = &cp
	return nil
}

var _ Store = (*MemoryStore)(nil)
