package util

import (
	"regexp"
	"strings"

	"golang.org/x/text/width"
)

var (
	reSpaces     = regexp.MustCompile(`\s+`)
	reHeaderJunk = regexp.MustCompile(`[^A-Z0-9/#\s]`)
)

var invalidPOValues = map[string]struct{}{
	"":     {},
	"NONE": {},
	"NULL": {},
	"NAN":  {},
	"N/A":  {},
}

// NormalizeKeyPart folds full-width characters, trims and upper-cases.
func NormalizeKeyPart(input string) string {
	s := width.Fold.String(input)
	s = reSpaces.ReplaceAllString(s, " ")
	return strings.ToUpper(strings.TrimSpace(s))
}

func IsValidPOValue(input string) bool {
	_, bad := invalidPOValues[NormalizeKeyPart(input)]
	return !bad
}

// NormalizePO returns the normalized PO or "" when the value is a null marker.
func NormalizePO(input string) string {
	if !IsValidPOValue(input) {
		return ""
	}
	return NormalizeKeyPart(input)
}

var confusables = strings.NewReplacer("O", "0", "I", "1")

// FoldConfusables maps letters commonly keyed in place of digits.
func FoldConfusables(input string) string {
	return confusables.Replace(strings.ToUpper(input))
}

// NormalizeHeader prepares a report column header for alias lookup.
func NormalizeHeader(input string) string {
	s := strings.ToUpper(width.Fold.String(input))
	s = strings.NewReplacer("_", " ", "-", " ", ".", " ").Replace(s)
	s = reHeaderJunk.ReplaceAllString(s, " ")
	s = reSpaces.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

func Tokenize(input string) []string {
	return strings.Fields(strings.ToLower(input))
}

func FirstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
