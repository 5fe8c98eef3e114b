// Package offers tracks price offers buyers make on listings.
//
// An accepted offer overrides the listing price at checkout. Offers that
// are never answered expire on a schedule so a stale accepted price cannot
// be exercised weeks later.
package offers

import (
	"context"
	"errors"
	"time"
)

var (
	ErrNotFound      = errors.New("offers: offer not found")
	ErrNotActionable = errors.New("offers: offer is not pending")
	ErrExpired       = errors.New("offers: offer has expired")
	ErrNotAccepted   = errors.New("offers: offer is not accepted")
	ErrWrongProduct  = errors.New("offers: offer does not belong to this product")
	ErrWrongBuyer    = errors.New("offers: offer does not belong to this buyer")
)

// Status of an offer.
type Status string

const (
	StatusPending  Status = "pending"
	StatusAccepted Status = "accepted"
	StatusDeclined Status = "declined"
	StatusExpired  Status = "expired"
)

// Offer is a buyer's proposed price for a product.
type Offer struct {
	ID        string    `json:"id"`
	ProductID string    `json:"productId"`
	BuyerID   string    `json:"buyerId"`
	SellerID  string    `json:"sellerId"`
	Amount    string    `json:"amount"`
	Currency  string    `json:"currency"`
	Status    Status    `json:"status"`
	ExpiresAt time.Time `json:"expiresAt"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Store persists offers.
type Store interface {
	Create(ctx context.Context, o *Offer) error
	Get(ctx context.Context, id string) (*Offer, error)
	Update(ctx context.Context, o *Offer) error
	// ListExpirable returns pending offers whose ExpiresAt has passed.
	ListExpirable(ctx context.Context, now time.Time, limit int) ([]*Offer, error)
}

// Service applies offer state changes.
type Service struct {
	store Store
}

// NewService creates an offer service.
func NewService(store Store) *Service {
	return &Service{store: store}
}

// Accept marks a pending offer accepted. Only the listing's seller answers
// offers; the handler enforces that the caller is the seller.
func (s *Service) Accept(ctx context.Context, id string) (*Offer, error) {
	return s.answer(ctx, id, StatusAccepted)
}

// Decline marks a pending offer declined.
func (s *Service) Decline(ctx context.Context, id string) (*Offer, error) {
	return s.answer(ctx, id, StatusDeclined)
}

func (s *Service) answer(ctx context.Context, id string, status Status) (*Offer, error) {
	o, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if o.Status != StatusPending {
		return nil, ErrNotActionable
	}
	if !o.ExpiresAt.IsZero() && time.Now().After(o.ExpiresAt) {
		return nil, ErrExpired
	}
	o.Status = status
	if err := s.store.Update(ctx, o); err != nil {
		return nil, err
	}
	return o, nil
}

// ResolveAccepted returns the accepted offer for a checkout, validating it
// belongs to the right product and buyer and has not expired.
func (s *Service) ResolveAccepted(ctx context.Context, id, productID, buyerID string) (*Offer, error) {
	o, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if o.ProductID != productID {
		return nil, ErrWrongProduct
	}
	if o.BuyerID != buyerID {
		return nil, ErrWrongBuyer
	}
	if o.Status != StatusAccepted {
		return nil, ErrNotAccepted
	}
	if !o.ExpiresAt.IsZero() && time.Now().After(o.ExpiresAt) {
		return nil, ErrExpired
	}
	return o, nil
}
