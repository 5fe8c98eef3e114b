package gateway

import (
	"context"

	"github.com/hasnain833/Souq-main-Backend-sub001/internal/idgen"
)

// CODGateway models cash on delivery. No money moves online: the payment
// succeeds immediately at the provider layer and collection happens at the
// door, so the escrow flow still sees a normal funds_held transition.
type CODGateway struct {
	cfg Config
}

// NewCODGateway creates the cash-on-delivery provider.
func NewCODGateway(currencies []string) *CODGateway {
	if len(currencies) == 0 {
		currencies = []string{"AED", "SAR", "USD"}
	}
	return &CODGateway{
		cfg: Config{
			Name:                "cod",
			DisplayName:         "Cash on Delivery",
			SupportedCurrencies: currencies,
			FeePercent:          0,
			IsActive:            true,
		},
	}
}

func (g *CODGateway) Config() Config {
	return g.cfg
}

func (g *CODGateway) Fee(amount string) string {
	return "0.00"
}

func (g *CODGateway) InitializePayment(ctx context.Context, req InitializeRequest) (*InitializeResult, error) {
	if !g.cfg.SupportsCurrency(req.Currency) {
		return nil, ErrUnsupportedCurrency
	}
	return &InitializeResult{
		GatewayTransactionID: idgen.WithPrefix("cod"),
		Status:               StatusSucceeded,
	}, nil
}

func (g *CODGateway) CheckStatus(ctx context.Context, gatewayTxnID string) (*StatusResult, error) {
	return &StatusResult{
		GatewayTransactionID: gatewayTxnID,
		Status:               StatusSucceeded,
	}, nil
}

var _ Gateway = (*CODGateway)(nil)
