// Package wallet keeps seller balances as an append-only ledger of credits
// and debits. Balances are derived, never stored as a mutable counter.
package wallet

import (
	"context"
	"errors"
	"math/big"
	"time"

	"github.com/hasnain833/Souq-main-Backend-sub001/internal/money"
)

var (
	ErrInvalidAmount      = errors.New("wallet: invalid amount")
	ErrDuplicateReference = errors.New("wallet: reference already credited")
	ErrInsufficientFunds  = errors.New("wallet: insufficient funds")
)

// EntryType is the direction of a ledger entry.
type EntryType string

const (
	EntryCredit EntryType = "credit"
	EntryDebit  EntryType = "debit"
)

// Entry is one ledger line.
type Entry struct {
	ID        string    `json:"id"`
	SellerID  string    `json:"sellerId"`
	Type      EntryType `json:"type"`
	Amount    string    `json:"amount"`
	Currency  string    `json:"currency"`
	Reference string    `json:"reference"` // transaction code or withdrawal id
	Note      string    `json:"note,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// Store persists ledger entries.
type Store interface {
	// Append adds an entry. A credit with an already-used (sellerID,
	// reference) pair returns ErrDuplicateReference so payout retries
	// cannot double-credit.
	Append(ctx context.Context, e *Entry) error
	List(ctx context.Context, sellerID string, limit int) ([]*Entry, error)
}

// Service credits payouts and answers balance queries.
type Service struct {
	store Store
}

// NewService creates a wallet service.
func NewService(store Store) *Service {
	return &Service{store: store}
}

// Credit adds funds to a seller's wallet, keyed by reference for idempotence.
func (s *Service) Credit(ctx context.Context, sellerID, amount, currency, reference, note string) (*Entry, error) {
	if !money.IsValid(amount) || money.IsZero(amount) {
		return nil, ErrInvalidAmount
	}
	e := &Entry{
		SellerID:  sellerID,
		Type:      EntryCredit,
		Amount:    amount,
		Currency:  currency,
		Reference: reference,
		Note:      note,
	}
	if err := s.store.Append(ctx, e); err != nil {
		return nil, err
	}
	return e, nil
}

// Balance sums the ledger for a seller in one currency.
func (s *Service) Balance(ctx context.Context, sellerID, currency string) (string, error) {
	entries, err := s.store.List(ctx, sellerID, 0)
	if err != nil {
		return "", err
	}
	total := new(big.Int)
	for _, e := range entries {
		if e.Currency != currency {
			continue
		}
		cents, ok := money.Parse(e.Amount)
		if !ok {
			continue
		}
		if e.Type == EntryDebit {
			total.Sub(total, cents)
		} else {
			total.Add(total, cents)
		}
	}
	return money.Format(total), nil
}
