package matching

import (
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"shipmatch/internal"
	"shipmatch/internal/logging"
	"shipmatch/internal/util"
)

const DefaultThreshold = 75.0

// FuzzyMatcher scores exact-match leftovers by PO similarity against the
// orders of the same canonical customer. Style, color and size do not gate
// acceptance here.
type FuzzyMatcher struct {
	threshold float64
	workers   int
	log       *zap.Logger
}

func NewFuzzyMatcher(threshold float64, workers int, log *zap.Logger) *FuzzyMatcher {
	if workers < 1 {
		workers = 1
	}
	return &FuzzyMatcher{threshold: threshold, workers: workers, log: logging.OrNop(log)}
}

type customerBatch struct {
	customer string
	records  []int
	orders   []KeyedOrder
}

// Match rewrites results[i] for every i in unmatched.
func (m *FuzzyMatcher) Match(results []internal.MatchResult, unmatched []int, orders []KeyedOrder) {
	batches := m.partition(results, unmatched, orders)

	if m.workers == 1 || len(batches) < 2 {
		for _, b := range batches {
			m.matchBatch(results, b)
		}
		return
	}

	// Each batch owns a disjoint set of result slots.
	var g errgroup.Group
	g.SetLimit(m.workers)
	for _, b := range batches {
		b := b
		g.Go(func() error {
			m.matchBatch(results, b)
			return nil
		})
	}
	_ = g.Wait()
}

func (m *FuzzyMatcher) partition(results []internal.MatchResult, unmatched []int, orders []KeyedOrder) []customerBatch {
	ordersByCustomer := map[string][]KeyedOrder{}
	for _, o := range orders {
		ordersByCustomer[o.Customer] = append(ordersByCustomer[o.Customer], o)
	}

	index := map[string]int{}
	var batches []customerBatch
	for _, i := range unmatched {
		c := customerKey(results[i].Identity)
		pos, ok := index[c]
		if !ok {
			pos = len(batches)
			index[c] = pos
			batches = append(batches, customerBatch{customer: c, orders: ordersByCustomer[c]})
		}
		batches[pos].records = append(batches[pos].records, i)
	}
	return batches
}

func (m *FuzzyMatcher) matchBatch(results []internal.MatchResult, b customerBatch) {
	if len(b.orders) == 0 {
		for _, i := range b.records {
			reject(&results[i], 0)
		}
		m.log.Debug("customer has no orders", zap.String("customer", b.customer), zap.Int("records", len(b.records)))
		return
	}

	for _, i := range b.records {
		res := &results[i]
		score, field, order := BestPOMatch(res.CustomerPO, res.CustomerAltPO, b.orders)
		if order == nil || score <= 0 || score < m.threshold {
			reject(res, score)
			continue
		}
		accept(res, *order, internal.MatchFuzzy, score, field, 1)
	}
}

// BestPOMatch compares a record's PO and Alt_PO with every order's PO and
// Alt_PO. The PO side wins ties; the earliest order wins within a side.
func BestPOMatch(po, altPO string, orders []KeyedOrder) (float64, internal.POField, *KeyedOrder) {
	poBest, poIdx := bestSide(util.NormalizePO(po), orders)
	altBest, altIdx := bestSide(util.NormalizePO(altPO), orders)

	switch {
	case poBest == 0 && altBest == 0:
		return 0, internal.FieldNone, nil
	case poBest >= altBest:
		return poBest, internal.FieldPO, &orders[poIdx]
	default:
		return altBest, internal.FieldAltPO, &orders[altIdx]
	}
}

func bestSide(value string, orders []KeyedOrder) (float64, int) {
	if value == "" {
		return 0, -1
	}
	best, idx := 0.0, -1
	for i, o := range orders {
		s := POSimilarity(value, o.PO)
		if alt := POSimilarity(value, o.AltPO); alt > s {
			s = alt
		}
		if s > best {
			best, idx = s, i
		}
	}
	return best, idx
}

func reject(res *internal.MatchResult, score float64) {
	res.MatchType = internal.MatchNoMatch
	res.MatchScore = score
	res.BestMatchField = internal.FieldNone
	res.BestMatch = nil
	res.OrderedQty = 0
	res.MatchCount = 0
}
