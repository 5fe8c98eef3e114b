package gateway

import (
	"sort"
	"strings"
	"sync"
)

// Factory holds the registered providers and resolves them by name.
type Factory struct {
	mu       sync.RWMutex
	gateways map[string]Gateway
}

// NewFactory creates an empty factory.
func NewFactory() *Factory {
	return &Factory{gateways: make(map[string]Gateway)}
}

// Register adds a provider under its configured name. Registering the same
// name twice replaces the earlier provider.
func (f *Factory) Register(g Gateway) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gateways[strings.ToLower(g.Config().Name)] = g
}

// Resolve returns the provider registered under name.
func (f *Factory) Resolve(name string) (Gateway, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	g, ok := f.gateways[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return nil, ErrUnknownGateway
	}
	return g, nil
}

// Enumerate returns the configs of all active providers, sorted by name.
func (f *Factory) Enumerate() []Config {
	f.mu.RLock()
	defer f.mu.RUnlock()

	out := make([]Config, 0, len(f.gateways))
	for _, g := range f.gateways {
		cfg := g.Config()
		if cfg.IsActive {
			out = append(out, cfg)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// SupportingCurrency returns the active providers that settle in the given
// currency, sorted by name.
func (f *Factory) SupportingCurrency(code string) []Config {
	var out []Config
	for _, cfg := range f.Enumerate() {
		if cfg.SupportsCurrency(code) {
			out = append(out, cfg)
		}
	}
	return out
}
