package util

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	numberPattern   = regexp.MustCompile(`-?(\d{1,3}(?:[\s.,]\d{3})+|\d+(?:[.,]\d+)?)`)
	thousandDots    = regexp.MustCompile(`^\d{1,3}(?:\.\d{3})+$`)
	thousandCommas  = regexp.MustCompile(`^\d{1,3}(?:,\d{3})+$`)
	unitSuffixTrims = strings.NewReplacer("PCS", "", "PC", "", "EA", "", "UNITS", "", "DZ", "")
)

// ParseQty reads a quantity cell such as "1,200", "1.200 pcs" or "12,5".
// It returns nil when the cell carries no number.
func ParseQty(input string) *float64 {
	line := strings.ReplaceAll(input, " ", " ")
	line = unitSuffixTrims.Replace(strings.ToUpper(line))
	m := numberPattern.FindString(line)
	if m == "" {
		return nil
	}
	negative := strings.HasPrefix(m, "-")
	norm := normalizeNumericToken(strings.TrimPrefix(m, "-"))
	parsed, err := strconv.ParseFloat(norm, 64)
	if err != nil {
		return nil
	}
	if negative {
		parsed = -parsed
	}
	return FloatPtr(parsed)
}

func normalizeNumericToken(token string) string {
	compact := strings.ReplaceAll(token, " ", "")
	if thousandDots.MatchString(compact) {
		return strings.ReplaceAll(compact, ".", "")
	}
	if thousandCommas.MatchString(compact) {
		return strings.ReplaceAll(compact, ",", "")
	}
	if strings.Contains(compact, ",") && !strings.Contains(compact, ".") {
		return strings.ReplaceAll(compact, ",", ".")
	}
	return compact
}
