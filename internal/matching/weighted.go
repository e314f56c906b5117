package matching

import (
	"shipmatch/internal"
	"shipmatch/internal/util"
)

// Weights of the ad-hoc comparison. The batch pipeline never uses them;
// acceptance there is decided by PO similarity alone.
const (
	weightPO    = 0.3
	weightStyle = 0.3
	weightColor = 0.2
	weightSize  = 0.2
)

type Comparison struct {
	PO    float64 `json:"po"`
	Style float64 `json:"style"`
	Color float64 `json:"color"`
	Size  float64 `json:"size"`
	Total float64 `json:"total"`
}

// Compare scores two lines field by field for one-off inspection.
func (b *KeyBuilder) Compare(x, y internal.Identity) Comparison {
	c := Comparison{
		PO:    bestPair(poValues(x), poValues(y)),
		Style: b.styleSimilarity(x, y),
		Color: TokenSortRatio(x.Color, y.Color),
		Size:  TokenSortRatio(x.Size, y.Size),
	}
	c.Total = round2(weightPO*c.PO + weightStyle*c.Style + weightColor*c.Color + weightSize*c.Size)
	return c
}

func (b *KeyBuilder) styleSimilarity(x, y internal.Identity) float64 {
	vx, _ := b.StyleValue(x)
	vy, _ := b.StyleValue(y)
	switch {
	case vx != "" && vy != "":
		return TokenSortRatio(vx, vy)
	case vx != "":
		return bestPair([]string{vx}, allStyleFields(y))
	case vy != "":
		return bestPair(allStyleFields(x), []string{vy})
	default:
		return 0
	}
}

func allStyleFields(id internal.Identity) []string {
	return []string{id.Style, id.PatternID, id.AliasRelatedItem}
}

func poValues(id internal.Identity) []string {
	return []string{util.NormalizePO(id.CustomerPO), util.NormalizePO(id.CustomerAltPO)}
}

func bestPair(left, right []string) float64 {
	best := 0.0
	for _, l := range left {
		for _, r := range right {
			if s := TokenSortRatio(l, r); s > best {
				best = s
			}
		}
	}
	return best
}
