package matching

import (
	"sort"
	"strings"

	"shipmatch/internal"
	"shipmatch/internal/util"
)

type summaryAcc struct {
	s          internal.CustomerSummary
	matched    int
	style      int
	color      int
	size       int
	po         int
	fuzzyTotal float64
}

// Summarize builds one summary per canonical customer, largest first.
func Summarize(results []internal.GradedResult) []internal.CustomerSummary {
	accs := map[string]*summaryAcc{}
	for _, r := range results {
		name := strings.TrimSpace(r.CanonicalCustomer)
		a, ok := accs[name]
		if !ok {
			a = &summaryAcc{s: internal.CustomerSummary{CanonicalCustomer: name}}
			accs[name] = a
		}
		a.add(r)
	}

	out := make([]internal.CustomerSummary, 0, len(accs))
	for _, a := range accs {
		out = append(out, a.finish())
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].TotalRecords != out[j].TotalRecords {
			return out[i].TotalRecords > out[j].TotalRecords
		}
		return out[i].CanonicalCustomer < out[j].CanonicalCustomer
	})
	return out
}

func (a *summaryAcc) add(r internal.GradedResult) {
	s := &a.s
	s.TotalRecords++
	s.TotalPackedQty += r.PackedQty
	s.TotalShippedQty += r.ShippedQty
	s.TotalOrderedQty += r.OrderedQty

	switch r.MatchType {
	case internal.MatchExact:
		s.ExactMatches++
	case internal.MatchFuzzy:
		s.FuzzyMatches++
		a.fuzzyTotal += r.MatchScore
	default:
		s.NoMatches++
		s.MissingOrder++
	}

	switch r.DataQualityFlag {
	case internal.FlagGood:
		s.GoodCount++
	case internal.FlagAcceptable:
		s.AcceptableCount++
	case internal.FlagQuestionable:
		s.QuestionableCount++
	default:
		s.PoorCount++
	}

	switch r.BestMatchField {
	case internal.FieldPO:
		s.POFieldPO++
	case internal.FieldAltPO:
		s.POFieldAltPO++
	}

	if r.BestMatch == nil {
		return
	}
	a.matched++
	if r.QtyVariance < 0 {
		s.OverShipped++
	} else if r.QtyVariance > 0 {
		s.UnderShipped++
	}

	o := r.BestMatch.Identity
	if anyEqual([]string{r.Style, r.PatternID}, []string{o.Style, o.PatternID}) {
		a.style++
	}
	if anyEqual([]string{r.Color}, []string{o.Color}) {
		a.color++
	}
	if anyEqual([]string{r.Size}, []string{o.Size}) {
		a.size++
	}
	if anyEqual(
		[]string{util.NormalizePO(r.CustomerPO), util.NormalizePO(r.CustomerAltPO)},
		[]string{util.NormalizePO(o.CustomerPO), util.NormalizePO(o.CustomerAltPO)},
	) {
		a.po++
	}
}

func (a *summaryAcc) finish() internal.CustomerSummary {
	s := a.s
	s.ExactMatchPct = pct(s.ExactMatches, s.TotalRecords)
	s.FuzzyMatchPct = pct(s.FuzzyMatches, s.TotalRecords)
	s.NoMatchPct = pct(s.NoMatches, s.TotalRecords)

	s.StyleMatchRate = pct(a.style, a.matched)
	s.ColorMatchRate = pct(a.color, a.matched)
	s.SizeMatchRate = pct(a.size, a.matched)
	s.POMatchRate = pct(a.po, a.matched)

	if s.FuzzyMatches > 0 {
		s.AvgFuzzyScore = round2(a.fuzzyTotal / float64(s.FuzzyMatches))
	}
	s.OverShippedPct = pct(s.OverShipped, s.TotalRecords)
	s.UnderShippedPct = pct(s.UnderShipped, s.TotalRecords)
	s.MissingOrderPct = pct(s.MissingOrder, s.TotalRecords)

	s.TotalPackedQty = round2(s.TotalPackedQty)
	s.TotalShippedQty = round2(s.TotalShippedQty)
	s.TotalOrderedQty = round2(s.TotalOrderedQty)
	return s
}

// anyEqual reports whether some non-empty normalized left value equals a right value.
func anyEqual(left, right []string) bool {
	for _, l := range left {
		l = util.NormalizeKeyPart(l)
		if l == "" {
			continue
		}
		for _, r := range right {
			if l == util.NormalizeKeyPart(r) {
				return true
			}
		}
	}
	return false
}
