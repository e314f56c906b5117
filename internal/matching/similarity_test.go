package matching

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTokenSortRatio(t *testing.T) {
	cases := []struct {
		a, b string
		want float64
	}{
		{"red shirt", "SHIRT  red", 100},
		{"abc", "abd", 66.67},
		{"PO100", "PO200", 80},
		{"", "PO100", 0},
		{"PO100", "   ", 0},
	}
	for _, tc := range cases {
		t.Run(tc.a+"/"+tc.b, func(t *testing.T) {
			assert.Equal(t, tc.want, TokenSortRatio(tc.a, tc.b))
			assert.Equal(t, tc.want, TokenSortRatio(tc.b, tc.a))
		})
	}
}

func TestPOSimilarityFoldsConfusables(t *testing.T) {
	assert.Equal(t, 100.0, POSimilarity("PO1OO", "PO100"))
	assert.Equal(t, 100.0, POSimilarity("P0-I23", "po-123"))
	assert.Equal(t, 0.0, POSimilarity("", "PO100"))
	assert.Less(t, POSimilarity("ZZZ999", "PO100"), 75.0)
}

func TestBestPOMatch(t *testing.T) {
	orders := []KeyedOrder{
		{PO: "PO200", AltPO: ""},
		{PO: "PO100", AltPO: "ALT1"},
		{PO: "PO100", AltPO: ""},
	}

	score, field, order := BestPOMatch("PO100", "", orders)
	assert.Equal(t, 100.0, score)
	assert.Equal(t, "PO", string(field))
	assert.Same(t, &orders[1], order)

	score, field, order = BestPOMatch("", "ALT1", orders)
	assert.Equal(t, 100.0, score)
	assert.Equal(t, "Alt_PO", string(field))
	assert.Same(t, &orders[1], order)

	score, field, order = BestPOMatch("n/a", "", orders)
	assert.Zero(t, score)
	assert.Empty(t, field)
	assert.Nil(t, order)
}

func TestWeightedCompare(t *testing.T) {
	keys := NewKeyBuilder(nil)
	x := internalIdentity("ACME", "PO1", "ABC", "RED", "M")

	same := keys.Compare(x, x)
	assert.Equal(t, Comparison{PO: 100, Style: 100, Color: 100, Size: 100, Total: 100}, same)

	y := internalIdentity("ACME", "PO1", "", "", "M")
	y.AliasRelatedItem = "ABC"
	got := keys.Compare(x, y)
	assert.Equal(t, 100.0, got.Style)
	assert.Zero(t, got.Color)
	assert.Equal(t, 80.0, got.Total)
}
