package currency

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/hasnain833/Souq-main-Backend-sub001/internal/retry"
)

// HTTPSource fetches a rate snapshot from a JSON endpoint of the common
// shape {"base": "USD", "rates": {"EUR": 0.92, ...}}.
type HTTPSource struct {
	url    string
	client *http.Client
}

// NewHTTPSource creates a rate source for the given endpoint.
func NewHTTPSource(url string) *HTTPSource {
	return &HTTPSource{
		url: url,
		client: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

// Fetch pulls a snapshot, retrying transient network and 5xx failures.
// Client errors from the endpoint are not retried; the converter keeps
// serving the previous snapshot either way.
func (s *HTTPSource) Fetch(ctx context.Context) (string, map[string]float64, error) {
	var base string
	var rates map[string]float64

	err := retry.Do(ctx, 3, 500*time.Millisecond, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
		if err != nil {
			return retry.Permanent(err)
		}
		req.Header.Set("Accept", "application/json")

		resp, err := s.client.Do(req)
		if err != nil {
			return err
		}
		defer func() { _ = resp.Body.Close() }()

		if resp.StatusCode != http.StatusOK {
			err := fmt.Errorf("rate endpoint returned %d", resp.StatusCode)
			if resp.StatusCode >= 400 && resp.StatusCode < 500 {
				return retry.Permanent(err)
			}
			return err
		}

		var body struct {
			Base  string             `json:"base"`
			Rates map[string]float64 `json:"rates"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
			return retry.Permanent(fmt.Errorf("decode rate response: %w", err))
		}
		base = body.Base
		if base == "" {
			base = "USD"
		}
		rates = body.Rates
		return nil
	})
	if err != nil {
		return "", nil, err
	}
	return base, rates, nil
}

// StaticSource serves a fixed snapshot. Used in development mode and tests
// where no FX endpoint is configured.
type StaticSource struct {
	Base  string
	Rates map[string]float64
}

// DefaultStaticSource returns a USD-based snapshot covering the currencies
// the marketplace trades in.
func DefaultStaticSource() *StaticSource {
	return &StaticSource{
		Base: "USD",
		Rates: map[string]float64{
			"USD": 1.0,
			"EUR": 0.92,
			"GBP": 0.79,
			"AED": 3.6725,
			"SAR": 3.75,
			"QAR": 3.64,
			"KWD": 0.3075,
			"BHD": 0.376,
			"OMR": 0.3845,
			"EGP": 48.5,
			"JOD": 0.709,
			"ILS": 3.72,
		},
	}
}

func (s *StaticSource) Fetch(ctx context.Context) (string, map[string]float64, error) {
	rates := make(map[string]float64, len(s.Rates))
	for code, rate := range s.Rates {
		rates[code] = rate
	}
	return s.Base, rates, nil
}
