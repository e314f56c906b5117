package matchcfg

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"shipmatch/internal"
)

type countingLoader struct {
	mu    sync.Mutex
	calls map[string]int
	cfgs  map[string]CustomerConfig
	err   error
}

func (l *countingLoader) Load(customer string) (CustomerConfig, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.calls == nil {
		l.calls = map[string]int{}
	}
	l.calls[customer]++
	if l.err != nil {
		return CustomerConfig{}, l.err
	}
	cfg, ok := l.cfgs[customer]
	if !ok {
		return CustomerConfig{}, ErrNoConfig
	}
	return cfg, nil
}

func TestStoreLoadsOncePerCustomer(t *testing.T) {
	loader := &countingLoader{cfgs: map[string]CustomerConfig{
		"ACME": {StyleMatchStrategy: StrategyAliasRelatedItem},
	}}
	store := NewStore(loader, nil)

	for i := 0; i < 3; i++ {
		res := store.Lookup("ACME")
		assert.Equal(t, SourceFound, res.Source)
		assert.Equal(t, StrategyAliasRelatedItem, res.Config.StyleMatchStrategy)
		assert.Equal(t, "Style", res.Config.StyleFieldName)
	}
	assert.Equal(t, 1, loader.calls["ACME"])
}

func TestStoreFallbacks(t *testing.T) {
	store := NewStore(&countingLoader{}, nil)

	empty := store.Lookup("  ")
	assert.Equal(t, SourceEmptyCustomer, empty.Source)
	assert.True(t, empty.UsedFallback())
	assert.Equal(t, DefaultConfig(), empty.Config)

	missing := store.Lookup("NOBODY")
	assert.Equal(t, SourceMissing, missing.Source)
	assert.Equal(t, DefaultConfig(), store.Get("NOBODY"))
}

func TestStoreLoadFailureLogsWarningAndDefaults(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	loader := &countingLoader{err: errors.New("connection refused")}
	store := NewStore(loader, zap.New(core))

	res := store.Lookup("ACME")
	assert.Equal(t, SourceLoadFailed, res.Source)
	assert.Equal(t, DefaultConfig(), res.Config)

	store.Lookup("ACME")
	assert.Equal(t, 1, loader.calls["ACME"])
	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "ACME", logs.All()[0].ContextMap()["customer"])
}

func TestStoreInvalidConfigIsLoadFailure(t *testing.T) {
	loader := &countingLoader{cfgs: map[string]CustomerConfig{
		"ACME": {StyleMatchStrategy: "by_vibes"},
	}}
	store := NewStore(loader, nil)
	assert.Equal(t, SourceLoadFailed, store.Lookup("ACME").Source)
}

func TestStorePreload(t *testing.T) {
	loader := &countingLoader{}
	store := NewStore(loader, nil)

	store.Preload([]string{"A", "B", "A", "", "C", "B"})
	assert.Equal(t, map[string]int{"A": 1, "B": 1, "C": 1}, loader.calls)

	store.Get("B")
	assert.Equal(t, 1, loader.calls["B"])
}

func TestStoreNormalizesCustomer(t *testing.T) {
	loader := &countingLoader{cfgs: map[string]CustomerConfig{
		"ACME CO": {StyleMatchStrategy: StrategyAliasRelatedItem},
	}}
	store := NewStore(loader, nil)

	for _, name := range []string{"acme co", " ACME  CO ", "Acme Co"} {
		res := store.Lookup(name)
		assert.Equal(t, SourceFound, res.Source, name)
		assert.Equal(t, StrategyAliasRelatedItem, res.Config.StyleMatchStrategy)
	}
	store.Preload([]string{"acme co", "ACME CO"})
	assert.Equal(t, map[string]int{"ACME CO": 1}, loader.calls)
}

func TestStoreConcurrentReads(t *testing.T) {
	loader := &countingLoader{}
	store := NewStore(loader, nil)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			store.Get("ACME")
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, loader.calls["ACME"])
}

func TestStyleColumn(t *testing.T) {
	cfg := CustomerConfig{StyleFieldName: "pattern_id"}
	assert.Equal(t, internal.ColPatternID, cfg.StyleColumn())
	assert.Equal(t, internal.ColStyle, CustomerConfig{StyleFieldName: "nope"}.StyleColumn())
}
