// Package orders creates fulfillment orders when escrow funds are secured.
//
// Order creation is a downstream side effect of the funds_held transition
// and must be idempotent: a duplicate webhook replaying the transition
// finds the existing order and does nothing.
package orders

import (
	"context"
	"errors"
	"time"
)

var ErrNotFound = errors.New("orders: order not found")

// Order is a fulfillment order derived from a funded transaction.
type Order struct {
	ID              string    `json:"id"`
	TransactionCode string    `json:"transactionCode"`
	BuyerID         string    `json:"buyerId"`
	SellerID        string    `json:"sellerId"`
	ProductID       string    `json:"productId"`
	Amount          string    `json:"amount"`
	Currency        string    `json:"currency"`
	CreatedAt       time.Time `json:"createdAt"`
}

// Store persists orders keyed by transaction code.
type Store interface {
	Create(ctx context.Context, o *Order) error
	GetByTransactionCode(ctx context.Context, code string) (*Order, error)
}

// Service creates orders idempotently.
type Service struct {
	store Store
}

// NewService creates an order service.
func NewService(store Store) *Service {
	return &Service{store: store}
}

// Store exposes the underlying store for read paths.
func (s *Service) Store() Store {
	return s.store
}

// CreateForTransaction creates the order for a funded transaction if it does
// not already exist. Returns the order and whether it was newly created.
func (s *Service) CreateForTransaction(ctx context.Context, o *Order) (*Order, bool, error) {
	existing, err := s.store.GetByTransactionCode(ctx, o.TransactionCode)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, false, err
	}
	if err := s.store.Create(ctx, o); err != nil {
		return nil, false, err
	}
	return o, true, nil
}
