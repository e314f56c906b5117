// Package matchcfg resolves per-customer matching rules and caches them
// for the lifetime of a Store.
package matchcfg

import (
	"errors"
	"fmt"
	"strings"

	"shipmatch/internal"
)

type Strategy string

const (
	StrategyStandard         Strategy = "standard"
	StrategyAliasRelatedItem Strategy = "alias_related_item"
)

// ErrNoConfig is returned by a Loader that has no explicit config for a customer.
var ErrNoConfig = errors.New("no customer matching config")

type CustomerConfig struct {
	StyleMatchStrategy Strategy          `yaml:"style_match_strategy" json:"style_match_strategy"`
	StyleFieldName     string            `yaml:"style_field_name" json:"style_field_name"`
	ExactMatchFields   []internal.Column `yaml:"exact_match_fields" json:"exact_match_fields"`
}

func DefaultConfig() CustomerConfig {
	return CustomerConfig{
		StyleMatchStrategy: StrategyStandard,
		StyleFieldName:     string(internal.ColStyle),
		ExactMatchFields: []internal.Column{
			internal.ColCanonicalCustomer,
			internal.ColCustomerPO,
			internal.ColStyle,
			internal.ColColor,
		},
	}
}

// withDefaults fills unset fields so partial configs behave like the default.
func (c CustomerConfig) withDefaults() CustomerConfig {
	def := DefaultConfig()
	if c.StyleMatchStrategy == "" {
		c.StyleMatchStrategy = def.StyleMatchStrategy
	}
	if strings.TrimSpace(c.StyleFieldName) == "" {
		c.StyleFieldName = def.StyleFieldName
	}
	if len(c.ExactMatchFields) == 0 {
		c.ExactMatchFields = def.ExactMatchFields
	}
	return c
}

func (c CustomerConfig) Validate() error {
	switch c.StyleMatchStrategy {
	case StrategyStandard, StrategyAliasRelatedItem:
	default:
		return fmt.Errorf("unknown style_match_strategy %q", c.StyleMatchStrategy)
	}
	if styleColumn(c.StyleFieldName) == "" {
		return fmt.Errorf("unsupported style_field_name %q", c.StyleFieldName)
	}
	for _, f := range c.ExactMatchFields {
		if !knownColumn(f) {
			return fmt.Errorf("unknown exact_match_fields entry %q", f)
		}
	}
	return nil
}

// StyleColumn is the column named by StyleFieldName.
func (c CustomerConfig) StyleColumn() internal.Column {
	if col := styleColumn(c.StyleFieldName); col != "" {
		return col
	}
	return internal.ColStyle
}

func styleColumn(name string) internal.Column {
	switch strings.ToUpper(strings.TrimSpace(name)) {
	case "STYLE":
		return internal.ColStyle
	case "PATTERN_ID", "PATTERN ID":
		return internal.ColPatternID
	case "ALIAS/RELATED ITEM", "ALIAS", "RELATED ITEM":
		return internal.ColAliasRelatedItem
	default:
		return ""
	}
}

func knownColumn(col internal.Column) bool {
	for _, c := range internal.IdentityColumns {
		if c == col {
			return true
		}
	}
	return false
}
