package gateway

import (
	"context"
	"sync"
	"time"

	"github.com/hasnain833/Souq-main-Backend-sub001/internal/idgen"
)

// MemoryStore is an in-memory payment record store for development and tests.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]*PaymentRecord // by record ID
	byCode  map[string]string         // transaction code -> record ID
}

// NewMemoryStore creates an empty in-memory payment record store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records: make(map[string]*PaymentRecord),
		byCode:  make(map[string]string),
	}
}

func (s *MemoryStore) Create(ctx context.Context, rec *PaymentRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byCode[rec.TransactionCode]; exists {
		return ErrDuplicatePayment
	}
	if rec.ID == "" {
		rec.ID = idgen.WithPrefix("pay")
	}
	now := time.Now()
	rec.CreatedAt = now
	rec.UpdatedAt = now

	cp := *rec
	s.records[rec.ID] = &cp
	s.byCode[rec.TransactionCode] = rec.ID
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, id string) (*PaymentRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[id]
	if !ok {
		return nil, ErrPaymentNotFound
	}
	cp := *rec
	return &cp, nil
}

func (s *MemoryStore) GetByTransactionCode(ctx context.Context, code string) (*PaymentRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byCode[code]
	if !ok {
		return nil, ErrPaymentNotFound
	}
	cp := *s.records[id]
	return &cp, nil
}

func (s *MemoryStore) GetByGatewayTxnID(ctx context.Context, gatewayName, gatewayTxnID string) (*PaymentRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, rec := range s.records {
		if rec.Gateway == gatewayName && rec.GatewayTransactionID == gatewayTxnID {
			cp := *rec
			return &cp, nil
		}
	}
	return nil, ErrPaymentNotFound
}

func (s *MemoryStore) Update(ctx context.Context, rec *PaymentRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok := s.records[rec.ID]
	if !ok {
		return ErrPaymentNotFound
	}
	// created_at is immutable, matching the postgres store.
	rec.CreatedAt = cur.CreatedAt
	rec.UpdatedAt = time.Now()
	cp := *rec
	s.records[rec.ID] = &cp
	return nil
}

var _ Store = (*MemoryStore)(nil)
