package fees

import (
	"context"
	"sync"
	"time"

	"github.com/hasnain833/Souq-main-Backend-sub001/internal/idgen"
)

// MemoryStore is an in-memory Store for development and tests.
type MemoryStore struct {
	mu      sync.RWMutex
	configs map[int]*Config // version -> config
	active  int             // 0 means none
	nextVer int
}

// NewMemoryStore creates an empty in-memory fee store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		configs: make(map[int]*Config),
		nextVer: 1,
	}
}

func (s *MemoryStore) Create(ctx context.Context, cfg *Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if cfg.ID == "" {
		cfg.ID = idgen.WithPrefix("fee")
	}
	cfg.Version = s.nextVer
	s.nextVer++
	now := time.Now()
	cfg.CreatedAt = now
	cfg.UpdatedAt = now

	if cfg.Active && s.active != 0 {
		prev := s.configs[s.active]
		prev.Active = false
		prev.UpdatedAt = now
	}
	if cfg.Active {
		s.active = cfg.Version
	}

	s.configs[cfg.Version] = copyConfig(cfg)
	return nil
}

func (s *MemoryStore) GetActive(ctx context.Context) (*Config, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.active == 0 {
		return nil, ErrNoActiveConfig
	}
	return copyConfig(s.configs[s.active]), nil
}

func (s *MemoryStore) GetVersion(ctx context.Context, version int) (*Config, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cfg, ok := s.configs[version]
	if !ok {
		return nil, ErrConfigNotFound
	}
	return copyConfig(cfg), nil
}

func copyConfig(cfg *Config) *Config {
	c := *cfg
	c.CategoryOverrides = make(map[string]float64, len(cfg.CategoryOverrides))
	for k, v := range cfg.CategoryOverrides {
		c.CategoryOverrides[k] = v
	}
	c.SellerOverrides = make(map[string]float64, len(cfg.SellerOverrides))
	for k, v := range cfg.SellerOverrides {
		c.SellerOverrides[k] = v
	}
	return &c
}

var _ Store = (*MemoryStore)(nil)
