package matching

import (
	"math"
	"strings"

	"shipmatch/internal"
	"shipmatch/internal/util"
)

const varianceTolerancePct = 5.0

// Classify grades one match. The first matching rule wins.
func Classify(typ internal.MatchType, score, variancePct float64) internal.QualityFlag {
	within := math.Abs(variancePct) <= varianceTolerancePct
	switch {
	case typ == internal.MatchExact && within:
		return internal.FlagGood
	case typ == internal.MatchFuzzy && score >= 90 && within:
		return internal.FlagAcceptable
	case typ == internal.MatchFuzzy && score >= 75 && within:
		return internal.FlagQuestionable
	default:
		return internal.FlagPoor
	}
}

type qualityGroup struct {
	packed, shipped, ordered float64
	typ                      internal.MatchType
	score                    float64
	members                  []int
}

// Grade groups results by matched PO, style, color and style source, computes
// quantity variance per group and copies the group's grade onto each member.
func Grade(results []internal.MatchResult) []internal.GradedResult {
	groups := map[string]*qualityGroup{}
	order := []string{}
	for i, r := range results {
		key := qualityKey(r)
		g, ok := groups[key]
		if !ok {
			g = &qualityGroup{typ: r.MatchType, score: r.MatchScore}
			groups[key] = g
			order = append(order, key)
		}
		g.packed += r.PackedQty
		g.shipped += r.ShippedQty
		g.ordered += r.OrderedQty
		if r.MatchScore < g.score {
			g.score = r.MatchScore
		}
		g.members = append(g.members, i)
	}

	out := make([]internal.GradedResult, len(results))
	for _, key := range order {
		g := groups[key]
		variance := g.ordered - (g.packed + g.shipped)
		variancePct := 0.0
		if g.ordered != 0 {
			variancePct = round2(variance / g.ordered * 100)
		}
		flag := Classify(g.typ, g.score, variancePct)
		for _, i := range g.members {
			out[i] = internal.GradedResult{
				MatchResult:     results[i],
				QtyVariance:     round2(variance),
				QtyVariancePct:  variancePct,
				DataQualityFlag: flag,
			}
		}
	}
	return out
}

// qualityKey is the fuzzy key over the effective PO, split further by style
// source and match type. Keeping one match type per group gives every group
// a single well-defined grade.
func qualityKey(r internal.MatchResult) string {
	return strings.Join([]string{
		fuzzyKey(r.CanonicalCustomer, effectivePO(r), r.StyleValue, r.Color),
		string(r.StyleSource),
		string(r.MatchType),
	}, "\x1f")
}

// effectivePO is the matched order's PO on the field that matched, or the
// record's own PO when unmatched.
func effectivePO(r internal.MatchResult) string {
	if r.BestMatch == nil {
		return SelectPO(r.Identity)
	}
	switch r.BestMatchField {
	case internal.FieldPO:
		if po := util.NormalizePO(r.BestMatch.CustomerPO); po != "" {
			return po
		}
	case internal.FieldAltPO:
		if po := util.NormalizePO(r.BestMatch.CustomerAltPO); po != "" {
			return po
		}
	}
	return SelectPO(r.BestMatch.Identity)
}
