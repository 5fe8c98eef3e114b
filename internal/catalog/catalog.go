// Package catalog holds the product and seller records the payment core
// resolves when a checkout starts.
//
// This is deliberately a thin slice of the marketplace catalog: enough to
// price a transaction (product, currency, category) and to route a payout
// (seller payout preference), nothing more.
package catalog

import (
	"context"
	"errors"
	"time"
)

var (
	ErrProductNotFound = errors.New("catalog: product not found")
	ErrSellerNotFound  = errors.New("catalog: seller not found")
	ErrProductInactive = errors.New("catalog: product is not available for sale")
)

// Product is a listing eligible for checkout.
type Product struct {
	ID        string    `json:"id"`
	SellerID  string    `json:"sellerId"`
	Title     string    `json:"title"`
	Category  string    `json:"category"`
	Price     string    `json:"price"`
	Currency  string    `json:"currency"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// PayoutPreference is how a seller wants to receive settled funds.
type PayoutPreference struct {
	Method string `json:"method"` // bank_transfer, paypal, stripe, wallet
	// Destination is the method-specific routing handle: an IBAN, a PayPal
	// email, a Stripe connected account ID, or empty for wallet.
	Destination string `json:"destination,omitempty"`
}

// Seller is the payout-relevant projection of a marketplace seller.
type Seller struct {
	ID        string           `json:"id"`
	Name      string           `json:"name"`
	Payout    PayoutPreference `json:"payout"`
	CreatedAt time.Time        `json:"createdAt"`
	UpdatedAt time.Time        `json:"updatedAt"`
}

// Store resolves products and sellers.
type Store interface {
	GetProduct(ctx context.Context, id string) (*Product, error)
	PutProduct(ctx context.Context, p *Product) error
	GetSeller(ctx context.Context, id string) (*Seller, error)
	PutSeller(ctx context.Context, s *Seller) error
}
