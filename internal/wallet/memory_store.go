package wallet

import (
	"context"
	"sync"
	"time"

	"github.com/hasnain833/Souq-main-Backend-sub001/internal/idgen"
)

// MemoryStore is an in-memory ledger for development and tests.
type MemoryStore struct {
	mu       sync.RWMutex
	entries  []*Entry
	credited map[string]bool // sellerID + "/" + reference
}

// NewMemoryStore creates an empty in-memory ledger.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{credited: make(map[string]bool)}
}

func (s *MemoryStore) Append(ctx context.Context, e *Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := e.SellerID + "/" + e.Reference
	if e.Type == EntryCredit && s.credited[key] {
		return ErrDuplicateReference
	}

	if e.ID == "" {
		e.ID = idgen.WithPrefix("wtx")
	}
	e.CreatedAt = time.Now()

	cp := *e
	s.entries = append(s.entries, &cp)
	if e.Type == EntryCredit {
		s.credited[key] = true
	}
	return nil
}

func (s *MemoryStore) List(ctx context.Context, sellerID string, limit int) ([]*Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*Entry
	for _, e := range s.entries {
		if e.SellerID == sellerID {
			cp := *e
			out = append(out, &cp)
			if limit > 0 && len(out) >= limit {
				break
			}
		}
	}
	return out, nil
}

var _ Store = (*MemoryStore)(nil)
