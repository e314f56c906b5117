package matching

import (
	"go.uber.org/zap"

	"shipmatch/internal"
	"shipmatch/internal/logging"
	"shipmatch/internal/util"
)

// KeyedOrder is an order line with its keys and normalized POs precomputed.
type KeyedOrder struct {
	internal.OrderRecord
	Pos        int
	Customer   string
	ExactKey   string
	PrimaryKey string
	AltKey     string
	PO         string
	AltPO      string
}

type ExactOutcome struct {
	Results   []internal.MatchResult
	Unmatched []int
	Orders    []KeyedOrder
}

type ExactMatcher struct {
	keys *KeyBuilder
	log  *zap.Logger
}

func NewExactMatcher(keys *KeyBuilder, log *zap.Logger) *ExactMatcher {
	return &ExactMatcher{keys: keys, log: logging.OrNop(log)}
}

func (m *ExactMatcher) KeyOrders(orders []internal.OrderRecord) []KeyedOrder {
	out := make([]KeyedOrder, 0, len(orders))
	for i, o := range orders {
		primary, alt := m.keys.AlternateKeys(o.Identity)
		out = append(out, KeyedOrder{
			OrderRecord: o,
			Pos:         i,
			Customer:    customerKey(o.Identity),
			ExactKey:    m.keys.ExactKey(o.Identity),
			PrimaryKey:  primary,
			AltKey:      alt,
			PO:          util.NormalizePO(o.CustomerPO),
			AltPO:       util.NormalizePO(o.CustomerAltPO),
		})
	}
	return out
}

// Match joins records to orders on the exact key, then retries misses by
// cross-comparing Customer_PO and Customer_Alt_PO keys on both sides.
func (m *ExactMatcher) Match(records []internal.CombinedRecord, orders []internal.OrderRecord) ExactOutcome {
	keyed := m.KeyOrders(orders)
	byExact := map[string][]int{}
	for i, o := range keyed {
		if o.ExactKey != "" {
			byExact[o.ExactKey] = append(byExact[o.ExactKey], i)
		}
	}

	recKeys := make([]string, len(records))
	recordsOnKey := map[string]int{}
	for i, rec := range records {
		recKeys[i] = m.keys.ExactKey(rec.Identity)
		if recKeys[i] != "" {
			recordsOnKey[recKeys[i]]++
		}
	}

	results := make([]internal.MatchResult, len(records))
	warned := map[string]bool{}
	var misses []int
	for i, rec := range records {
		style, source := m.keys.StyleValue(rec.Identity)
		results[i] = internal.MatchResult{
			CombinedRecord: rec,
			MatchType:      internal.MatchNoMatch,
			StyleValue:     style,
			StyleSource:    source,
		}

		key := recKeys[i]
		hits := byExact[key]
		if key == "" || len(hits) == 0 {
			misses = append(misses, i)
			continue
		}
		order := keyed[hits[0]]
		// Count joined rows on the key: records times orders.
		recs := recordsOnKey[key]
		accept(&results[i], order, internal.MatchExact, 100, comparePOFields(rec.Identity, order), recs*len(hits))
		if (recs > 1 || len(hits) > 1) && !warned[key] {
			warned[key] = true
			m.log.Warn("exact key joins several rows",
				zap.String("key", key), zap.Int("records", recs), zap.Int("orders", len(hits)))
		}
	}

	index := buildCrossIndex(keyed)
	var unmatched []int
	for _, i := range misses {
		rec := records[i]
		primary, alt := m.keys.AlternateKeys(rec.Identity)
		byKey := index[customerKey(rec.Identity)]

		candidates := map[int]struct{}{}
		best := -1
		for _, k := range []string{primary, alt} {
			if k == "" {
				continue
			}
			for _, pos := range byKey[k] {
				candidates[pos] = struct{}{}
				if best < 0 || pos < best {
					best = pos
				}
			}
		}
		if best < 0 {
			unmatched = append(unmatched, i)
			continue
		}

		order := keyed[best]
		field := internal.FieldAltPO
		if primary != "" && primary == order.PrimaryKey {
			field = internal.FieldPO
		}
		accept(&results[i], order, internal.MatchExact, 100, field, len(candidates))
	}

	return ExactOutcome{Results: results, Unmatched: unmatched, Orders: keyed}
}

// buildCrossIndex maps customer -> key -> order positions (ascending) for
// both alternate keys of every order.
func buildCrossIndex(orders []KeyedOrder) map[string]map[string][]int {
	index := map[string]map[string][]int{}
	for i, o := range orders {
		byKey, ok := index[o.Customer]
		if !ok {
			byKey = map[string][]int{}
			index[o.Customer] = byKey
		}
		if o.PrimaryKey != "" {
			byKey[o.PrimaryKey] = append(byKey[o.PrimaryKey], i)
		}
		if o.AltKey != "" && o.AltKey != o.PrimaryKey {
			byKey[o.AltKey] = append(byKey[o.AltKey], i)
		}
	}
	return index
}

// comparePOFields names the PO field that produced a key match, preferring PO.
func comparePOFields(rec internal.Identity, order KeyedOrder) internal.POField {
	po := util.NormalizePO(rec.CustomerPO)
	alt := util.NormalizePO(rec.CustomerAltPO)
	switch {
	case po != "" && po == order.PO:
		return internal.FieldPO
	case po != "" && po == order.AltPO,
		alt != "" && (alt == order.PO || alt == order.AltPO):
		return internal.FieldAltPO
	default:
		return internal.FieldNone
	}
}

func accept(res *internal.MatchResult, order KeyedOrder, typ internal.MatchType, score float64, field internal.POField, count int) {
	matched := order.OrderRecord
	res.MatchType = typ
	res.MatchScore = score
	res.BestMatchField = field
	res.BestMatch = &matched
	res.OrderedQty = order.OrderedQty
	res.MatchCount = count
}
