package matching

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"shipmatch/internal"
	"shipmatch/internal/matchcfg"
)

func packedSet(rows ...internal.ShipmentRecord) internal.ShipmentSet {
	return internal.ShipmentSet{Rows: rows}
}

func line(id internal.Identity, qty float64) internal.ShipmentRecord {
	return internal.ShipmentRecord{Identity: id, Qty: qty}
}

func orderLine(id internal.Identity, qty float64) internal.OrderRecord {
	return internal.OrderRecord{Identity: id, OrderedQty: qty}
}

func TestScenarioExactMatchIsGood(t *testing.T) {
	id := internalIdentity("ACME", "PO100", "ABC", "RED", "M")
	results, summary := MatchRecords(packedSet(line(id, 10)), internal.ShipmentSet{},
		[]internal.OrderRecord{orderLine(id, 10)}, 75)

	require.Len(t, results, 1)
	r := results[0]
	assert.Equal(t, internal.MatchExact, r.MatchType)
	assert.Equal(t, 100.0, r.MatchScore)
	assert.Equal(t, internal.FieldPO, r.BestMatchField)
	assert.Equal(t, 1, r.MatchCount)
	assert.Equal(t, 10.0, r.OrderedQty)
	assert.Zero(t, r.QtyVariance)
	assert.Equal(t, internal.FlagGood, r.DataQualityFlag)
	assert.Equal(t, "PACKED", r.SourceType)
	assert.Equal(t, "ABC", r.StyleValue)
	assert.Equal(t, internal.StyleSourceStyle, r.StyleSource)

	require.Len(t, summary, 1)
	assert.Equal(t, 1, summary[0].ExactMatches)
	assert.Equal(t, 100.0, summary[0].ExactMatchPct)
}

func TestScenarioCrossFieldAltPO(t *testing.T) {
	rec := internalIdentity("ACME", "PO100", "ABC", "RED", "M")

	t.Run("order has only alt po", func(t *testing.T) {
		ord := rec
		ord.CustomerPO = ""
		ord.CustomerAltPO = "PO100"
		results, _ := MatchRecords(packedSet(line(rec, 10)), internal.ShipmentSet{},
			[]internal.OrderRecord{orderLine(ord, 10)}, 75)
		require.Len(t, results, 1)
		assert.Equal(t, internal.MatchExact, results[0].MatchType)
		assert.Equal(t, internal.FieldAltPO, results[0].BestMatchField)
	})

	t.Run("order po differs", func(t *testing.T) {
		ord := rec
		ord.CustomerPO = "OTHER-1"
		ord.CustomerAltPO = "PO100"
		results, _ := MatchRecords(packedSet(line(rec, 10)), internal.ShipmentSet{},
			[]internal.OrderRecord{orderLine(ord, 10)}, 75)
		require.Len(t, results, 1)
		assert.Equal(t, internal.MatchExact, results[0].MatchType)
		assert.Equal(t, 100.0, results[0].MatchScore)
		assert.Equal(t, internal.FieldAltPO, results[0].BestMatchField)
		assert.Equal(t, 1, results[0].MatchCount)
		require.NotNil(t, results[0].BestMatch)
		assert.Equal(t, "OTHER-1", results[0].BestMatch.CustomerPO)
	})
}

func TestScenarioFuzzyPO(t *testing.T) {
	rec := internalIdentity("ACME", "PO1OO", "ABC", "RED", "M")
	ord := internalIdentity("ACME", "PO100", "ABC", "RED", "M")
	results, summary := MatchRecords(packedSet(line(rec, 10)), internal.ShipmentSet{},
		[]internal.OrderRecord{orderLine(ord, 10)}, 75)

	require.Len(t, results, 1)
	r := results[0]
	assert.Equal(t, internal.MatchFuzzy, r.MatchType)
	assert.GreaterOrEqual(t, r.MatchScore, 75.0)
	assert.Equal(t, internal.FieldPO, r.BestMatchField)
	assert.Equal(t, 1, r.MatchCount)
	assert.Equal(t, 10.0, r.OrderedQty)
	assert.Equal(t, internal.FlagAcceptable, r.DataQualityFlag)

	require.Len(t, summary, 1)
	assert.Equal(t, 1, summary[0].FuzzyMatches)
	assert.Equal(t, r.MatchScore, summary[0].AvgFuzzyScore)
}

func TestFuzzyThresholdGate(t *testing.T) {
	rec := internalIdentity("ACME", "PO100", "ABC", "RED", "M")
	ord := internalIdentity("ACME", "PO200", "ABC", "RED", "M")
	orders := []internal.OrderRecord{orderLine(ord, 10)}

	accepted, _ := MatchRecords(packedSet(line(rec, 10)), internal.ShipmentSet{}, orders, 75)
	require.Len(t, accepted, 1)
	assert.Equal(t, internal.MatchFuzzy, accepted[0].MatchType)
	assert.Equal(t, 80.0, accepted[0].MatchScore)
	assert.Equal(t, internal.FlagQuestionable, accepted[0].DataQualityFlag)

	rejected, _ := MatchRecords(packedSet(line(rec, 10)), internal.ShipmentSet{}, orders, 85)
	require.Len(t, rejected, 1)
	assert.Equal(t, internal.MatchNoMatch, rejected[0].MatchType)
	assert.Equal(t, 80.0, rejected[0].MatchScore)
	assert.Nil(t, rejected[0].BestMatch)
	assert.Zero(t, rejected[0].OrderedQty)
	assert.Zero(t, rejected[0].MatchCount)
}

func TestScenarioCustomerWithoutOrders(t *testing.T) {
	rec := internalIdentity("LONELY", "PO100", "ABC", "RED", "M")
	other := internalIdentity("ACME", "PO100", "ABC", "RED", "M")
	results, summary := MatchRecords(packedSet(line(rec, 10)), internal.ShipmentSet{},
		[]internal.OrderRecord{orderLine(other, 10)}, 75)

	require.Len(t, results, 1)
	r := results[0]
	assert.Equal(t, internal.MatchNoMatch, r.MatchType)
	assert.Zero(t, r.MatchScore)
	assert.Zero(t, r.OrderedQty)
	assert.Nil(t, r.BestMatch)
	assert.Equal(t, internal.FieldNone, r.BestMatchField)
	assert.Equal(t, internal.FlagPoor, r.DataQualityFlag)

	require.Len(t, summary, 1)
	assert.Equal(t, 1, summary[0].MissingOrder)
	assert.Equal(t, 100.0, summary[0].MissingOrderPct)
}

func TestScenarioExactWithVarianceIsPoor(t *testing.T) {
	id := internalIdentity("ACME", "PO100", "ABC", "RED", "M")
	results, summary := MatchRecords(packedSet(line(id, 40)), packedSet(line(id, 40)),
		[]internal.OrderRecord{orderLine(id, 100)}, 75)

	require.Len(t, results, 1)
	r := results[0]
	assert.Equal(t, "PACKED,SHIPPED", r.SourceType)
	assert.Equal(t, internal.MatchExact, r.MatchType)
	assert.Equal(t, 20.0, r.QtyVariance)
	assert.Equal(t, 20.0, r.QtyVariancePct)
	assert.Equal(t, internal.FlagPoor, r.DataQualityFlag)

	require.Len(t, summary, 1)
	assert.Equal(t, 1, summary[0].UnderShipped)
	assert.Zero(t, summary[0].OverShipped)
}

func TestDuplicateExactKeyIsSurfaced(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	id := internalIdentity("ACME", "PO100", "ABC", "RED", "M")
	engine := NewEngine(nil, WithLogger(zap.New(core)))

	results, _ := engine.MatchRecords(packedSet(line(id, 10)), internal.ShipmentSet{},
		[]internal.OrderRecord{orderLine(id, 4), orderLine(id, 6)})

	require.Len(t, results, 1)
	assert.Equal(t, 2, results[0].MatchCount)
	assert.Equal(t, 4.0, results[0].OrderedQty)
	entries := logs.FilterMessage("exact key joins several rows").All()
	require.Len(t, entries, 1)
	assert.Equal(t, int64(1), entries[0].ContextMap()["records"])
	assert.Equal(t, int64(2), entries[0].ContextMap()["orders"])
}

func TestRecordsCollapsingOntoOneExactKeyAreSurfaced(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	inc := internalIdentity("ACME", "PO100", "ABC", "RED", "M")
	inc.Customer = "Acme Inc"
	incorporated := inc
	incorporated.Customer = "ACME INCORPORATED"
	engine := NewEngine(nil, WithLogger(zap.New(core)))

	results, _ := engine.MatchRecords(packedSet(line(inc, 5), line(incorporated, 5)), internal.ShipmentSet{},
		[]internal.OrderRecord{orderLine(internalIdentity("ACME", "PO100", "ABC", "RED", "M"), 10)})

	require.Len(t, results, 2)
	for _, r := range results {
		assert.Equal(t, internal.MatchExact, r.MatchType)
		assert.Equal(t, 2, r.MatchCount)
	}
	entries := logs.FilterMessage("exact key joins several rows").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "ACME|PO100|ABC|RED|M", entries[0].ContextMap()["key"])
	assert.Equal(t, int64(2), entries[0].ContextMap()["records"])
	assert.Equal(t, int64(1), entries[0].ContextMap()["orders"])
}

func TestAliasStrategy(t *testing.T) {
	store := storeWith(map[string]matchcfg.CustomerConfig{
		"ACME": {StyleMatchStrategy: matchcfg.StrategyAliasRelatedItem},
	})
	rec := internalIdentity("ACME", "PO100", "WAREHOUSE-STYLE", "RED", "M")
	rec.AliasRelatedItem = "REL-1"
	ord := internalIdentity("ACME", "PO100", "ERP-STYLE", "RED", "M")
	ord.AliasRelatedItem = "REL-1"

	results, _ := NewEngine(store).MatchRecords(packedSet(line(rec, 10)), internal.ShipmentSet{},
		[]internal.OrderRecord{orderLine(ord, 10)})

	require.Len(t, results, 1)
	assert.Equal(t, internal.MatchExact, results[0].MatchType)
	assert.Equal(t, "REL-1", results[0].StyleValue)
	assert.Equal(t, internal.StyleSourceAlias, results[0].StyleSource)
}

func TestAliasStrategyConfiguredInLowerCase(t *testing.T) {
	store := storeWith(map[string]matchcfg.CustomerConfig{
		"ACME": {StyleMatchStrategy: matchcfg.StrategyAliasRelatedItem},
	})
	rec := internalIdentity("acme", "PO100", "WH", "RED", "M")
	rec.AliasRelatedItem = "REL-1"
	ord := internalIdentity("ACME", "PO100", "ERP", "RED", "M")
	ord.AliasRelatedItem = "REL-1"

	results, _ := NewEngine(store).MatchRecords(packedSet(line(rec, 10)), internal.ShipmentSet{},
		[]internal.OrderRecord{orderLine(ord, 10)})

	require.Len(t, results, 1)
	assert.Equal(t, internal.MatchExact, results[0].MatchType)
	assert.Equal(t, "REL-1", results[0].StyleValue)
}

func TestCrossFieldRecordAltPOHitsOrderPO(t *testing.T) {
	rec := internalIdentity("ACME", "WH-9", "ABC", "RED", "M")
	rec.CustomerAltPO = "PO100"
	ord := internalIdentity("ACME", "PO100", "ABC", "RED", "M")

	results, _ := MatchRecords(packedSet(line(rec, 10)), internal.ShipmentSet{},
		[]internal.OrderRecord{orderLine(ord, 10)}, 75)

	require.Len(t, results, 1)
	r := results[0]
	assert.Equal(t, internal.MatchExact, r.MatchType)
	assert.Equal(t, 100.0, r.MatchScore)
	assert.Equal(t, internal.FieldAltPO, r.BestMatchField)
	assert.Equal(t, 1, r.MatchCount)
	require.NotNil(t, r.BestMatch)
	assert.Equal(t, "PO100", r.BestMatch.CustomerPO)
}

func TestExactHitWithoutPOHasNoMatchField(t *testing.T) {
	id := internalIdentity("ACME", "", "ABC", "RED", "M")

	results, _ := MatchRecords(packedSet(line(id, 10)), internal.ShipmentSet{},
		[]internal.OrderRecord{orderLine(id, 10)}, 75)

	require.Len(t, results, 1)
	r := results[0]
	assert.Equal(t, internal.MatchExact, r.MatchType)
	assert.Equal(t, internal.FieldNone, r.BestMatchField)
	assert.NotNil(t, r.BestMatch)
	assert.Equal(t, internal.FlagGood, r.DataQualityFlag)
}

type recordingLoader struct {
	mu    sync.Mutex
	calls []string
}

func (l *recordingLoader) Load(customer string) (matchcfg.CustomerConfig, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls = append(l.calls, customer)
	return matchcfg.CustomerConfig{}, matchcfg.ErrNoConfig
}

func TestEnginePreloadsEveryCustomerOnce(t *testing.T) {
	loader := &recordingLoader{}
	packed := packedSet(line(internalIdentity("ACME", "PO1", "A", "RED", "M"), 1),
		line(internalIdentity("acme", "PO2", "A", "RED", "M"), 1))
	shipped := packedSet(line(internalIdentity("BEAR", "PO3", "B", "RED", "M"), 1))
	orders := []internal.OrderRecord{
		orderLine(internalIdentity("CUB", "PO4", "C", "RED", "M"), 1),
		orderLine(internalIdentity("BEAR", "PO3", "B", "RED", "M"), 1),
	}

	NewEngine(matchcfg.NewStore(loader, nil)).MatchRecords(packed, shipped, orders)

	// Order customers come last: they were resolved up front, not when keyed.
	assert.Equal(t, []string{"ACME", "BEAR", "CUB"}, loader.calls)
}

func TestEmptyInputs(t *testing.T) {
	results, summary := MatchRecords(internal.ShipmentSet{}, internal.ShipmentSet{}, nil, 75)
	assert.NotNil(t, results)
	assert.NotNil(t, summary)
	assert.Empty(t, results)
	assert.Empty(t, summary)
}

// mixedFixture spans several customers with exact, cross-field, fuzzy and
// unmatched rows.
func mixedFixture() (internal.ShipmentSet, internal.ShipmentSet, []internal.OrderRecord) {
	var packed, shipped []internal.ShipmentRecord
	var orders []internal.OrderRecord
	for c := 0; c < 6; c++ {
		customer := fmt.Sprintf("CUST%d", c)
		for i := 0; i < 5; i++ {
			po := fmt.Sprintf("PO%d%d0", c, i)
			id := internalIdentity(customer, po, "ST"+po, "RED", "M")
			packed = append(packed, line(id, float64(10+i)))
			if i%2 == 0 {
				shipped = append(shipped, line(id, 3))
			}
			ord := id
			switch i {
			case 1:
				ord.CustomerPO = "X" + po
				ord.CustomerAltPO = po
			case 2:
				ord.CustomerPO = po + "1"
				ord.Style = "OTHER"
			case 3:
				if c%3 == 0 {
					continue
				}
			}
			orders = append(orders, orderLine(ord, float64(12+i)))
		}
	}
	packed = append(packed, line(internalIdentity("GHOST", "", "", "", ""), 1))
	return internal.ShipmentSet{Rows: packed}, internal.ShipmentSet{Rows: shipped}, orders
}

func TestResultInvariants(t *testing.T) {
	packed, shipped, orders := mixedFixture()
	results, summary := NewEngine(nil).MatchRecords(packed, shipped, orders)

	require.Len(t, results, len(Aggregate(packed, shipped)))
	total := 0
	for _, s := range summary {
		total += s.TotalRecords
	}
	assert.Equal(t, len(results), total)

	for _, r := range results {
		assert.GreaterOrEqual(t, r.MatchScore, 0.0)
		assert.LessOrEqual(t, r.MatchScore, 100.0)
		switch r.MatchType {
		case internal.MatchExact:
			assert.Equal(t, 100.0, r.MatchScore)
			assert.NotNil(t, r.BestMatch)
		case internal.MatchNoMatch:
			assert.Zero(t, r.OrderedQty)
			assert.Nil(t, r.BestMatch)
			assert.Equal(t, internal.FieldNone, r.BestMatchField)
		}
	}

	for i := 1; i < len(summary); i++ {
		assert.GreaterOrEqual(t, summary[i-1].TotalRecords, summary[i].TotalRecords)
	}
}

func TestIdempotentAndWorkerIndependent(t *testing.T) {
	packed, shipped, orders := mixedFixture()
	store := NewEngine(nil).configs

	first, firstSummary := NewEngine(store).MatchRecords(packed, shipped, orders)
	again, againSummary := NewEngine(store).MatchRecords(packed, shipped, orders)
	parallel, parallelSummary := NewEngine(store, WithWorkers(4)).MatchRecords(packed, shipped, orders)

	assert.Equal(t, first, again)
	assert.Equal(t, firstSummary, againSummary)
	assert.Equal(t, first, parallel)
	assert.Equal(t, firstSummary, parallelSummary)
}

func TestSummaryOrderingAndRates(t *testing.T) {
	good := internalIdentity("ACME", "PO100", "ABC", "RED", "M")
	stray := internalIdentity("ACME", "ZZZ999", "ABC", "RED", "M")
	bear := internalIdentity("BEAR", "B-1", "XYZ", "BLUE", "L")

	_, summary := MatchRecords(
		packedSet(line(bear, 5), line(good, 10), line(stray, 2)),
		internal.ShipmentSet{},
		[]internal.OrderRecord{orderLine(good, 10), orderLine(bear, 5)},
		75,
	)

	require.Len(t, summary, 2)
	acme := summary[0]
	assert.Equal(t, "ACME", acme.CanonicalCustomer)
	assert.Equal(t, 2, acme.TotalRecords)
	assert.Equal(t, 1, acme.ExactMatches)
	assert.Equal(t, 1, acme.NoMatches)
	assert.Equal(t, 50.0, acme.ExactMatchPct)
	assert.Equal(t, 50.0, acme.NoMatchPct)
	assert.Equal(t, 100.0, acme.StyleMatchRate)
	assert.Equal(t, 100.0, acme.POMatchRate)
	assert.Equal(t, 1, acme.GoodCount)
	assert.Equal(t, 1, acme.PoorCount)
	assert.Equal(t, 1, acme.POFieldPO)
	assert.Equal(t, 12.0, acme.TotalPackedQty)
	assert.Equal(t, 10.0, acme.TotalOrderedQty)
	assert.Equal(t, 1, acme.MissingOrder)

	assert.Equal(t, "BEAR", summary[1].CanonicalCustomer)
	assert.Equal(t, 1, summary[1].TotalRecords)
}
