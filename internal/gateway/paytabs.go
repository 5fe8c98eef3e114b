package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/hasnain833/Souq-main-Backend-sub001/internal/metrics"
	"github.com/hasnain833/Souq-main-Backend-sub001/internal/money"
)

// PayTabsGateway charges through the PayTabs hosted payment page API.
// The buyer is redirected to the returned payment URL and the final result
// arrives via webhook or a status query.
type PayTabsGateway struct {
	profileID string
	serverKey string
	baseURL   string
	client    *http.Client
	cfg       Config
}

// NewPayTabsGateway creates a PayTabs provider. Empty credentials leave the
// provider registered but inactive.
func NewPayTabsGateway(profileID, serverKey, baseURL string) *PayTabsGateway {
	if baseURL == "" {
		baseURL = "https://secure.paytabs.com"
	}
	return &PayTabsGateway{
		profileID: profileID,
		serverKey: serverKey,
		baseURL:   baseURL,
		client:    &http.Client{Timeout: 30 * time.Second},
		cfg: Config{
			Name:                "paytabs",
			DisplayName:         "PayTabs",
			SupportedCurrencies: []string{"AED", "SAR", "QAR", "KWD", "BHD", "OMR", "EGP", "JOD", "USD"},
			FeePercent:          2.5,
			IsActive:            profileID != "" && serverKey != "",
		},
	}
}

func (g *PayTabsGateway) Config() Config {
	return g.cfg
}

func (g *PayTabsGateway) Fee(amount string) string {
	return money.Percent(amount, g.cfg.FeePercent)
}

func (g *PayTabsGateway) InitializePayment(ctx context.Context, req InitializeRequest) (*InitializeResult, error) {
	if !g.cfg.IsActive {
		return nil, ErrNotConfigured
	}
	if !g.cfg.SupportsCurrency(req.Currency) {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedCurrency, req.Currency)
	}

	body := map[string]any{
		"profile_id":       g.profileID,
		"tran_type":        "sale",
		"tran_class":       "ecom",
		"cart_id":          req.TransactionCode,
		"cart_currency":    req.Currency,
		"cart_amount":      req.Amount,
		"cart_description": req.Description,
		"return":           req.ReturnURL,
		"callback":         req.CancelURL,
	}

	var resp struct {
		TranRef     string `json:"tran_ref"`
		RedirectURL string `json:"redirect_url"`
		Message     string `json:"message"`
	}
	if err := g.post(ctx, "/payment/request", body, &resp); err != nil {
		metrics.GatewayCalls.WithLabelValues("paytabs", "initialize", "error").Inc()
		return nil, fmt.Errorf("%w: %v", ErrInitializationFailed, err)
	}
	if resp.TranRef == "" {
		metrics.GatewayCalls.WithLabelValues("paytabs", "initialize", "error").Inc()
		return nil, fmt.Errorf("%w: %s", ErrInitializationFailed, resp.Message)
	}
	metrics.GatewayCalls.WithLabelValues("paytabs", "initialize", "ok").Inc()

	return &InitializeResult{
		GatewayTransactionID: resp.TranRef,
		PaymentURL:           resp.RedirectURL,
		Status:               StatusPending,
	}, nil
}

func (g *PayTabsGateway) CheckStatus(ctx context.Context, gatewayTxnID string) (*StatusResult, error) {
	if !g.cfg.IsActive {
		return nil, ErrNotConfigured
	}

	body := map[string]any{
		"profile_id": g.profileID,
		"tran_ref":   gatewayTxnID,
	}
	var resp struct {
		TranRef       string `json:"tran_ref"`
		PaymentResult struct {
			ResponseStatus  string `json:"response_status"`
			ResponseMessage string `json:"response_message"`
		} `json:"payment_result"`
	}
	if err := g.post(ctx, "/payment/query", body, &resp); err != nil {
		metrics.GatewayCalls.WithLabelValues("paytabs", "check_status", "error").Inc()
		return nil, fmt.Errorf("paytabs check status: %w", err)
	}
	metrics.GatewayCalls.WithLabelValues("paytabs", "check_status", "ok").Inc()

	result := &StatusResult{
		GatewayTransactionID: gatewayTxnID,
		Status:               paytabsStatus(resp.PaymentResult.ResponseStatus),
	}
	if result.Status == StatusFailed {
		result.FailureReason = resp.PaymentResult.ResponseMessage
	}
	return result, nil
}

func (g *PayTabsGateway) post(ctx context.Context, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", g.serverKey)

	resp, err := g.client.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("paytabs returned %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// ParseWebhook decodes a PayTabs transaction callback into the gateway
// transaction reference and its normalized status.
func (g *PayTabsGateway) ParseWebhook(payload []byte) (tranRef string, status PaymentStatus, reason string, err error) {
	var cb struct {
		TranRef       string `json:"tran_ref"`
		PaymentResult struct {
			ResponseStatus  string `json:"response_status"`
			ResponseMessage string `json:"response_message"`
		} `json:"payment_result"`
	}
	if err := json.Unmarshal(payload, &cb); err != nil {
		return "", "", "", fmt.Errorf("paytabs webhook: %w", err)
	}
	if cb.TranRef == "" {
		return "", "", "", fmt.Errorf("paytabs webhook: missing tran_ref")
	}
	status = paytabsStatus(cb.PaymentResult.ResponseStatus)
	if status == StatusFailed {
		reason = cb.PaymentResult.ResponseMessage
	}
	return cb.TranRef, status, reason, nil
}

// paytabsStatus maps PayTabs response_status codes to normalized statuses.
// A=authorized, H=hold, P=pending, V=voided, D=declined, E=error.
func paytabsStatus(code string) PaymentStatus {
	switch code {
	case "A":
		return StatusSucceeded
	case "H", "P":
		return StatusProcessing
	case "V":
		return StatusCancelled
	case "D", "E":
		return StatusFailed
	default:
		return StatusPending
	}
}

var _ Gateway = (*PayTabsGateway)(nil)
