// Package matching reconciles warehouse packed/shipped quantities against
// purchase-order lines: aggregation, exact and cross-field key matching,
// PO fuzzy matching, quality grading and per-customer summaries.
package matching

import (
	"time"

	"go.uber.org/zap"

	"shipmatch/internal"
	"shipmatch/internal/logging"
	"shipmatch/internal/matchcfg"
)

type Engine struct {
	configs   *matchcfg.Store
	keys      *KeyBuilder
	log       *zap.Logger
	threshold float64
	workers   int
}

type Option func(*Engine)

func WithThreshold(threshold float64) Option {
	return func(e *Engine) { e.threshold = threshold }
}

// WithWorkers spreads the fuzzy stage over n goroutines, one customer each.
func WithWorkers(n int) Option {
	return func(e *Engine) { e.workers = n }
}

func WithLogger(log *zap.Logger) Option {
	return func(e *Engine) { e.log = logging.OrNop(log) }
}

func NewEngine(configs *matchcfg.Store, opts ...Option) *Engine {
	e := &Engine{threshold: DefaultThreshold, workers: 1, log: zap.NewNop()}
	for _, opt := range opts {
		opt(e)
	}
	if configs == nil {
		configs = matchcfg.NewStore(nil, e.log)
	}
	e.configs = configs
	e.keys = NewKeyBuilder(configs)
	return e
}

// MatchRecords runs aggregation, exact matching, fuzzy matching, grading and
// summarizing. Every combined record appears exactly once in the results.
func (e *Engine) MatchRecords(packed, shipped internal.ShipmentSet, orders []internal.OrderRecord) ([]internal.GradedResult, []internal.CustomerSummary) {
	start := time.Now()
	e.configs.Preload(customers(packed, shipped, orders))

	combined := Aggregate(packed, shipped)
	if len(combined) == 0 {
		return []internal.GradedResult{}, []internal.CustomerSummary{}
	}

	exact := NewExactMatcher(e.keys, e.log).Match(combined, orders)
	NewFuzzyMatcher(e.threshold, e.workers, e.log).Match(exact.Results, exact.Unmatched, exact.Orders)

	graded := Grade(exact.Results)
	summary := Summarize(graded)

	e.log.Info("match run complete",
		zap.Int("combined", len(combined)),
		zap.Int("orders", len(orders)),
		zap.Int("exactMisses", len(exact.Unmatched)),
		zap.Int("customers", len(summary)),
		zap.Duration("took", time.Since(start)))
	return graded, summary
}

// MatchRecords runs a default engine with no customer-specific configs.
func MatchRecords(packed, shipped internal.ShipmentSet, orders []internal.OrderRecord, threshold float64) ([]internal.GradedResult, []internal.CustomerSummary) {
	return NewEngine(nil, WithThreshold(threshold)).MatchRecords(packed, shipped, orders)
}

func customers(packed, shipped internal.ShipmentSet, orders []internal.OrderRecord) []string {
	out := make([]string, 0, len(packed.Rows)+len(shipped.Rows)+len(orders))
	for _, r := range packed.Rows {
		out = append(out, r.CanonicalCustomer)
	}
	for _, r := range shipped.Rows {
		out = append(out, r.CanonicalCustomer)
	}
	for _, o := range orders {
		out = append(out, o.CanonicalCustomer)
	}
	return out
}
