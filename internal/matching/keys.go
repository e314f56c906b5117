package matching

import (
	"strings"

	"shipmatch/internal"
	"shipmatch/internal/matchcfg"
	"shipmatch/internal/util"
)

// KeyBuilder derives composite identity keys using per-customer style rules.
type KeyBuilder struct {
	configs *matchcfg.Store
}

func NewKeyBuilder(configs *matchcfg.Store) *KeyBuilder {
	if configs == nil {
		configs = matchcfg.NewStore(nil, nil)
	}
	return &KeyBuilder{configs: configs}
}

var styleSources = map[internal.Column]internal.StyleField{
	internal.ColStyle:            internal.StyleSourceStyle,
	internal.ColPatternID:        internal.StyleSourcePattern,
	internal.ColAliasRelatedItem: internal.StyleSourceAlias,
}

// StylePriority lists the columns consulted, in order, for a customer's style value.
func (b *KeyBuilder) StylePriority(customer string) []internal.Column {
	cfg := b.configs.Get(customer)
	var order []internal.Column
	if cfg.StyleMatchStrategy == matchcfg.StrategyAliasRelatedItem {
		order = []internal.Column{internal.ColAliasRelatedItem, internal.ColStyle, internal.ColPatternID}
	} else {
		order = []internal.Column{cfg.StyleColumn(), internal.ColStyle, internal.ColPatternID}
	}

	out := make([]internal.Column, 0, len(order))
	seen := map[internal.Column]bool{}
	for _, col := range order {
		if !seen[col] {
			seen[col] = true
			out = append(out, col)
		}
	}
	return out
}

// StyleValue returns the first non-empty style value and the column it came from.
func (b *KeyBuilder) StyleValue(id internal.Identity) (string, internal.StyleField) {
	for _, col := range b.StylePriority(id.CanonicalCustomer) {
		if v := strings.TrimSpace(id.Field(col)); v != "" {
			return v, styleSources[col]
		}
	}
	return "", internal.StyleSourceNone
}

// SelectPO prefers Customer_PO and falls back to Customer_Alt_PO.
func SelectPO(id internal.Identity) string {
	if po := util.NormalizePO(id.CustomerPO); po != "" {
		return po
	}
	return util.NormalizePO(id.CustomerAltPO)
}

// ExactKey is Customer|PO|Style|Color|Size with empty parts omitted.
func (b *KeyBuilder) ExactKey(id internal.Identity) string {
	style, _ := b.StyleValue(id)
	return joinKey(id.CanonicalCustomer, SelectPO(id), style, id.Color, id.Size)
}

// fuzzyKey is the exact key without Size. It groups results for grading
// and is never joined on.
func fuzzyKey(customer, po, style, color string) string {
	return joinKey(customer, po, style, color)
}

// AlternateKeys builds exact keys from Customer_PO and Customer_Alt_PO
// respectively. A key is empty when its PO is not a valid value.
func (b *KeyBuilder) AlternateKeys(id internal.Identity) (primary, alt string) {
	style, _ := b.StyleValue(id)
	if po := util.NormalizePO(id.CustomerPO); po != "" {
		primary = joinKey(id.CanonicalCustomer, po, style, id.Color, id.Size)
	}
	if po := util.NormalizePO(id.CustomerAltPO); po != "" {
		alt = joinKey(id.CanonicalCustomer, po, style, id.Color, id.Size)
	}
	return primary, alt
}

func joinKey(parts ...string) string {
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if n := util.NormalizeKeyPart(p); n != "" {
			out = append(out, n)
		}
	}
	return strings.Join(out, "|")
}

func customerKey(id internal.Identity) string {
	return util.NormalizeKeyPart(id.CanonicalCustomer)
}
