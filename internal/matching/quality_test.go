package matching

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shipmatch/internal"
)

func TestClassify(t *testing.T) {
	cases := []struct {
		name  string
		typ   internal.MatchType
		score float64
		pct   float64
		want  internal.QualityFlag
	}{
		{"exact within tolerance", internal.MatchExact, 100, -5, internal.FlagGood},
		{"exact over tolerance", internal.MatchExact, 100, 5.01, internal.FlagPoor},
		{"strong fuzzy", internal.MatchFuzzy, 90, 0, internal.FlagAcceptable},
		{"weak fuzzy", internal.MatchFuzzy, 75, 4, internal.FlagQuestionable},
		{"fuzzy below floor", internal.MatchFuzzy, 74.99, 0, internal.FlagPoor},
		{"fuzzy variance", internal.MatchFuzzy, 95, 20, internal.FlagPoor},
		{"no match", internal.MatchNoMatch, 0, 0, internal.FlagPoor},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Classify(tc.typ, tc.score, tc.pct))
		})
	}
}

func TestGradeJoinsGroupVarianceToMembers(t *testing.T) {
	order := func(size string) *internal.OrderRecord {
		return &internal.OrderRecord{Identity: internalIdentity("ACME", "PO1", "ABC", "RED", size), OrderedQty: 10}
	}
	results := []internal.MatchResult{
		{
			CombinedRecord: internal.CombinedRecord{Identity: internalIdentity("ACME", "PO1", "ABC", "RED", "S"), PackedQty: 10},
			MatchType:      internal.MatchExact, MatchScore: 100, BestMatchField: internal.FieldPO,
			BestMatch: order("S"), OrderedQty: 10, StyleValue: "ABC", StyleSource: internal.StyleSourceStyle,
		},
		{
			CombinedRecord: internal.CombinedRecord{Identity: internalIdentity("ACME", "PO1", "ABC", "RED", "M"), PackedQty: 5},
			MatchType:      internal.MatchExact, MatchScore: 100, BestMatchField: internal.FieldPO,
			BestMatch: order("M"), OrderedQty: 10, StyleValue: "ABC", StyleSource: internal.StyleSourceStyle,
		},
	}

	graded := Grade(results)
	require.Len(t, graded, 2)
	for _, g := range graded {
		assert.Equal(t, 5.0, g.QtyVariance)
		assert.Equal(t, 25.0, g.QtyVariancePct)
		assert.Equal(t, internal.FlagPoor, g.DataQualityFlag)
	}
	assert.Equal(t, "S", graded[0].Size)
	assert.Equal(t, "M", graded[1].Size)
}

func TestGradeZeroOrdered(t *testing.T) {
	graded := Grade([]internal.MatchResult{{
		CombinedRecord: internal.CombinedRecord{Identity: internalIdentity("ACME", "PO1", "ABC", "RED", "S"), PackedQty: 3},
		MatchType:      internal.MatchNoMatch,
	}})
	require.Len(t, graded, 1)
	assert.Equal(t, -3.0, graded[0].QtyVariance)
	assert.Zero(t, graded[0].QtyVariancePct)
	assert.Equal(t, internal.FlagPoor, graded[0].DataQualityFlag)
}

func internalIdentity(customer, po, style, color, size string) internal.Identity {
	return internal.Identity{
		CanonicalCustomer: customer,
		CustomerPO:        po,
		Style:             style,
		Color:             color,
		Size:              size,
	}
}
