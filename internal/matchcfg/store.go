package matchcfg

import (
	"errors"
	"sync"

	"go.uber.org/zap"

	"shipmatch/internal/logging"
	"shipmatch/internal/util"
)

// Loader fetches the explicit config for one canonical customer.
// It returns ErrNoConfig when the customer has none.
type Loader interface {
	Load(customer string) (CustomerConfig, error)
}

type LoaderFunc func(customer string) (CustomerConfig, error)

func (f LoaderFunc) Load(customer string) (CustomerConfig, error) { return f(customer) }

type Source string

const (
	SourceFound         Source = "found"
	SourceEmptyCustomer Source = "default-empty-customer"
	SourceMissing       Source = "default-missing"
	SourceLoadFailed    Source = "default-load-failed"
)

// Resolution is a resolved config plus where it came from.
type Resolution struct {
	Config CustomerConfig
	Source Source
}

func (r Resolution) UsedFallback() bool { return r.Source != SourceFound }

// Store caches one Resolution per canonical customer. The loader is
// consulted at most once per customer and always sees the normalized
// (upper-cased, trimmed) name.
type Store struct {
	loader Loader
	log    *zap.Logger

	mu    sync.RWMutex
	cache map[string]Resolution
}

func NewStore(loader Loader, log *zap.Logger) *Store {
	return &Store{loader: loader, log: logging.OrNop(log), cache: map[string]Resolution{}}
}

// Get never fails; unknown customers get DefaultConfig.
func (s *Store) Get(customer string) CustomerConfig {
	return s.Lookup(customer).Config
}

func (s *Store) Lookup(customer string) Resolution {
	key := util.NormalizeKeyPart(customer)
	if key == "" {
		return Resolution{Config: DefaultConfig(), Source: SourceEmptyCustomer}
	}

	s.mu.RLock()
	res, ok := s.cache[key]
	s.mu.RUnlock()
	if ok {
		return res
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if res, ok := s.cache[key]; ok {
		return res
	}
	res = s.load(key)
	s.cache[key] = res
	return res
}

// Preload resolves every distinct customer up front.
func (s *Store) Preload(customers []string) {
	seen := map[string]struct{}{}
	for _, c := range customers {
		c = util.NormalizeKeyPart(c)
		if _, ok := seen[c]; ok || c == "" {
			continue
		}
		seen[c] = struct{}{}
		s.Lookup(c)
	}
}

func (s *Store) load(customer string) Resolution {
	if s.loader == nil {
		return Resolution{Config: DefaultConfig(), Source: SourceMissing}
	}

	cfg, err := s.loader.Load(customer)
	if errors.Is(err, ErrNoConfig) {
		return Resolution{Config: DefaultConfig(), Source: SourceMissing}
	}
	if err == nil {
		cfg = cfg.withDefaults()
		err = cfg.Validate()
	}
	if err != nil {
		s.log.Warn("customer matching config load failed, using default",
			zap.String("customer", customer), zap.Error(err))
		return Resolution{Config: DefaultConfig(), Source: SourceLoadFailed}
	}
	return Resolution{Config: cfg, Source: SourceFound}
}
