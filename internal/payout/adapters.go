package payout

import (
	"context"
	"fmt"
	"strings"

	stripe "github.com/stripe/stripe-go/v81"
	"github.com/stripe/stripe-go/v81/client"

	"github.com/hasnain833/Souq-main-Backend-sub001/internal/idgen"
	"github.com/hasnain833/Souq-main-Backend-sub001/internal/money"
	"github.com/hasnain833/Souq-main-Backend-sub001/internal/wallet"
)

// Payout method names, matched against the seller's stored preference.
const (
	MethodWallet       = "wallet"
	MethodBankTransfer = "bank_transfer"
	MethodPayPal       = "paypal"
	MethodStripe       = "stripe"
)

// WalletDisburser credits the seller's internal wallet. The ledger's
// reference uniqueness makes repeated credits for one transaction no-ops
// at the storage layer.
type WalletDisburser struct {
	wallets *wallet.Service
}

// NewWalletDisburser creates the wallet adapter.
func NewWalletDisburser(wallets *wallet.Service) *WalletDisburser {
	return &WalletDisburser{wallets: wallets}
}

func (d *WalletDisburser) Method() string { return MethodWallet }

func (d *WalletDisburser) Disburse(ctx context.Context, sellerID, destination, amount, currency, transactionCode string) (string, error) {
	entry, err := d.wallets.Credit(ctx, sellerID, amount, currency, transactionCode, "escrow payout")
	if err != nil {
		return "", err
	}
	return entry.ID, nil
}

// StripeDisburser transfers to the seller's Stripe connected account.
type StripeDisburser struct {
	api *client.API
}

// NewStripeDisburser creates the Stripe adapter. Returns nil when no secret
// key is configured so callers can skip registration.
func NewStripeDisburser(secretKey string) *StripeDisburser {
	if secretKey == "" {
		return nil
	}
	api := &client.API{}
	api.Init(secretKey, nil)
	return &StripeDisburser{api: api}
}

func (d *StripeDisburser) Method() string { return MethodStripe }

func (d *StripeDisburser) Disburse(ctx context.Context, sellerID, destination, amount, currency, transactionCode string) (string, error) {
	if destination == "" {
		return "", fmt.Errorf("seller %s has no stripe destination account", sellerID)
	}
	cents, ok := money.Parse(amount)
	if !ok {
		return "", fmt.Errorf("bad payout amount %q", amount)
	}

	params := &stripe.TransferParams{
		Params:      stripe.Params{Context: ctx},
		Amount:      stripe.Int64(cents.Int64()),
		Currency:    stripe.String(strings.ToLower(currency)),
		Destination: stripe.String(destination),
	}
	params.AddMetadata("transaction_code", transactionCode)

	tr, err := d.api.Transfers.New(params)
	if err != nil {
		return "", err
	}
	return tr.ID, nil
}

// InstructionDisburser queues a manual disbursement instruction for methods
// settled outside the platform (bank transfers, PayPal batches). The
// generated reference identifies the instruction in the operations queue.
type InstructionDisburser struct {
	method string
}

// NewBankTransferDisburser creates the bank transfer adapter.
func NewBankTransferDisburser() *InstructionDisburser {
	return &InstructionDisburser{method: MethodBankTransfer}
}

// NewPayPalDisburser creates the PayPal adapter.
func NewPayPalDisburser() *InstructionDisburser {
	return &InstructionDisburser{method: MethodPayPal}
}

func (d *InstructionDisburser) Method() string { return d.method }

func (d *InstructionDisburser) Disburse(ctx context.Context, sellerID, destination, amount, currency, transactionCode string) (string, error) {
	if destination == "" {
		return "", fmt.Errorf("seller %s has no %s destination", sellerID, d.method)
	}
	return idgen.WithPrefix(d.method), nil
}

var (
	_ Disburser = (*WalletDisburser)(nil)
	_ Disburser = (*StripeDisburser)(nil)
	_ Disburser = (*InstructionDisburser)(nil)
)
