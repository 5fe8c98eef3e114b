package payments

import (
	"context"
	"sync"
	"time"

	"github.com/hasnain833/Souq-main-Backend-sub001/internal/escrow"
	"github.com/hasnain833/Souq-main-Backend-sub001/internal/idgen"
)

// MemoryStore is an in-memory Store for development and tests.
type MemoryStore struct {
	mu     sync.RWMutex
	byID   map[string]*Payment
	byCode map[string]string
}

// NewMemoryStore creates an empty in-memory payment store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		byID:   make(map[string]*Payment),
		byCode: make(map[string]string),
	}
}

func (s *MemoryStore) Create(ctx context.Context, p *Payment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if p.ID == "" {
		p.ID = idgen.WithPrefix("dpay")
	}
	if _, exists := s.byCode[p.Code]; exists {
		return ErrDuplicateCode
	}
	now := time.Now()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.UpdatedAt = now

	s.byID[p.ID] = copyPayment(p)
	s.byCode[p.Code] = p.ID
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, id string) (*Payment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	return copyPayment(p), nil
}

func (s *MemoryStore) GetByCode(ctx context.Context, code string) (*Payment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byCode[code]
	if !ok {
		return nil, ErrNotFound
	}
	return copyPayment(s.byID[id]), nil
}

func (s *MemoryStore) Update(ctx context.Context, p *Payment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byID[p.ID]; !ok {
		return ErrNotFound
	}
	p.UpdatedAt = time.Now()
	s.byID[p.ID] = copyPayment(p)
	return nil
}

func copyPayment(p *Payment) *Payment {
	cp := *p
	cp.StatusHistory = make([]escrow.StatusHistoryEntry, len(p.StatusHistory))
	copy(cp.StatusHistory, p.StatusHistory)
	return &cp
}

var _ Store = (*MemoryStore)(nil)
