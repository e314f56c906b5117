package matching

import (
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/agnivade/levenshtein"
	"github.com/shopspring/decimal"

	"shipmatch/internal/util"
)

// TokenSortRatio scores two strings 0-100 ignoring case and token order.
func TokenSortRatio(a, b string) float64 {
	sa, sb := sortedTokens(a), sortedTokens(b)
	if sa == "" || sb == "" {
		return 0
	}
	if sa == sb {
		return 100
	}
	longest := utf8.RuneCountInString(sa)
	if n := utf8.RuneCountInString(sb); n > longest {
		longest = n
	}
	dist := levenshtein.ComputeDistance(sa, sb)
	return round2(100 * (1 - float64(dist)/float64(longest)))
}

// POSimilarity is TokenSortRatio over PO values with confusable
// characters folded, so PO1OO and PO100 compare equal.
func POSimilarity(a, b string) float64 {
	if a == "" || b == "" {
		return 0
	}
	return TokenSortRatio(util.FoldConfusables(a), util.FoldConfusables(b))
}

func sortedTokens(s string) string {
	tokens := util.Tokenize(s)
	sort.Strings(tokens)
	return strings.Join(tokens, " ")
}

func round2(v float64) float64 {
	return decimal.NewFromFloat(v).Round(2).InexactFloat64()
}

func pct(part, whole int) float64 {
	if whole == 0 {
		return 0
	}
	return round2(float64(part) / float64(whole) * 100)
}
