package escrow

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/hasnain833/Souq-main-Backend-sub001/internal/idgen"
	"github.com/hasnain833/Souq-main-Backend-sub001/internal/pagination"
)

// MemoryStore is an in-memory Store for development and tests.
type MemoryStore struct {
	mu     sync.RWMutex
	byID   map[string]*Transaction
	byCode map[string]string // code -> ID
}

// NewMemoryStore creates an empty in-memory escrow store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		byID:   make(map[string]*Transaction),
		byCode: make(map[string]string),
	}
}

func (s *MemoryStore) Create(ctx context.Context, t *Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if t.ID == "" {
		t.ID = idgen.WithPrefix("esc")
	}
	if _, exists := s.byCode[t.Code]; exists {
		return ErrDuplicateCode
	}
	now := time.Now()
	if t.CreatedAt.IsZero() {
		t.CreatedAt = now
	}
	if t.UpdatedAt.IsZero() {
		t.UpdatedAt = now
	}

	s.byID[t.ID] = copyTransaction(t)
	s.byCode[t.Code] = t.ID
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, id string) (*Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	return copyTransaction(t), nil
}

func (s *MemoryStore) GetByCode(ctx context.Context, code string) (*Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byCode[code]
	if !ok {
		return nil, ErrNotFound
	}
	return copyTransaction(s.byID[id]), nil
}

func (s *MemoryStore) Update(ctx context.Context, t *Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byID[t.ID]; !ok {
		return ErrNotFound
	}
	t.UpdatedAt = time.Now()
	s.byID[t.ID] = copyTransaction(t)
	return nil
}

func (s *MemoryStore) ListByBuyer(ctx context.Context, buyerID string, before *pagination.Cursor, limit int) ([]*Transaction, error) {
	return s.list(func(t *Transaction) bool {
		return t.BuyerID == buyerID && before.Contains(t.CreatedAt, t.ID)
	}, limit), nil
}

func (s *MemoryStore) ListBySeller(ctx context.Context, sellerID string, before *pagination.Cursor, limit int) ([]*Transaction, error) {
	return s.list(func(t *Transaction) bool {
		return t.SellerID == sellerID && before.Contains(t.CreatedAt, t.ID)
	}, limit), nil
}

func (s *MemoryStore) ClaimPayout(ctx context.Context, id string, details PayoutDetails) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.byID[id]
	if !ok {
		return ErrNotFound
	}
	if t.PayoutDetails.ProcessedAt != nil {
		return ErrAlreadyPaidOut
	}
	t.PayoutDetails = details
	t.UpdatedAt = time.Now()
	return nil
}

func (s *MemoryStore) ListAutoReleasable(ctx context.Context, now time.Time, limit int) ([]*Transaction, error) {
	return s.list(func(t *Transaction) bool {
		return t.Status == StatusFundsHeld &&
			t.AutoReleaseEnabled &&
			t.AutoReleaseAt != nil &&
			now.After(*t.AutoReleaseAt)
	}, limit), nil
}

func (s *MemoryStore) ListPurgeable(ctx context.Context, cutoff time.Time, limit int) ([]*Transaction, error) {
	return s.list(func(t *Transaction) bool {
		return (t.Status == StatusPaymentFailed || t.Status == StatusCancelled) &&
			t.UpdatedAt.Before(cutoff)
	}, limit), nil
}

func (s *MemoryStore) ListArchivable(ctx context.Context, cutoff time.Time, limit int) ([]*Transaction, error) {
	return s.list(func(t *Transaction) bool {
		return t.Status == StatusCompleted && !t.Archived && t.UpdatedAt.Before(cutoff)
	}, limit), nil
}

func (s *MemoryStore) MarkArchived(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.byID[id]
	if !ok {
		return ErrNotFound
	}
	t.Archived = true
	t.UpdatedAt = time.Now()
	return nil
}

func (s *MemoryStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.byID[id]
	if !ok {
		return ErrNotFound
	}
	delete(s.byCode, t.Code)
	delete(s.byID, id)
	return nil
}

func (s *MemoryStore) list(match func(*Transaction) bool, limit int) []*Transaction {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*Transaction
	for _, t := range s.byID {
		if match(t) {
			out = append(out, copyTransaction(t))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

func copyTransaction(t *Transaction) *Transaction {
	cp := *t
	cp.StatusHistory = make([]StatusHistoryEntry, len(t.StatusHistory))
	copy(cp.StatusHistory, t.StatusHistory)
	if t.GatewayResponse != nil {
		cp.GatewayResponse = append([]byte(nil), t.GatewayResponse...)
	}
	if t.AutoReleaseAt != nil {
		at := *t.AutoReleaseAt
		cp.AutoReleaseAt = &at
	}
	cp.DeliveryDetails = copyDelivery(t.DeliveryDetails)
	cp.PayoutDetails = copyPayout(t.PayoutDetails)
	cp.DisputeDetails = copyDispute(t.DisputeDetails)
	return &cp
}

func copyDelivery(d DeliveryDetails) DeliveryDetails {
	if d.ShippedAt != nil {
		at := *d.ShippedAt
		d.ShippedAt = &at
	}
	if d.DeliveredAt != nil {
		at := *d.DeliveredAt
		d.DeliveredAt = &at
	}
	return d
}

func copyPayout(p PayoutDetails) PayoutDetails {
	if p.ProcessedAt != nil {
		at := *p.ProcessedAt
		p.ProcessedAt = &at
	}
	return p
}

func copyDispute(d DisputeDetails) DisputeDetails {
	if d.OpenedAt != nil {
		at := *d.OpenedAt
		d.OpenedAt = &at
	}
	if d.ResolvedAt != nil {
		at := *d.ResolvedAt
		d.ResolvedAt = &at
	}
	return d
}

var _ Store = (*MemoryStore)(nil)
