package orders

import (
	"context"
	"sync"
	"time"

	"github.com/hasnain833/Souq-main-Backend-sub001/internal/idgen"
)

// MemoryStore is an in-memory Store for development and tests.
type MemoryStore struct {
	mu     sync.RWMutex
	byCode map[string]*Order
}

// NewMemoryStore creates an empty in-memory order store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{byCode: make(map[string]*Order)}
}

func (s *MemoryStore) Create(ctx context.Context, o *Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if o.ID == "" {
		o.ID = idgen.WithPrefix("ord")
	}
	o.CreatedAt = time.Now()

	cp := *o
	s.byCode[o.TransactionCode] = &cp
	return nil
}

func (s *MemoryStore) GetByTransactionCode(ctx context.Context, code string) (*Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	o, ok := s.byCode[code]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *o
	return &cp, nil
}

var _ Store = (*MemoryStore)(nil)
