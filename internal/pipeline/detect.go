package pipeline

import (
	"strings"

	"shipmatch/internal"
)

type DetectResult struct {
	Kind   internal.ShipmentKind
	Score  float64
	Reason string
}

var detectKeywords = map[internal.ShipmentKind][]string{
	internal.KindPacked:  {"packed", "packing list", "pack list", "carton", "pick pack"},
	internal.KindShipped: {"shipped", "shipment", "ship confirm", "asn", "bill of lading", "tracking"},
	internal.KindOrders:  {"purchase order", "open orders", "order report", "po report", "order book"},
}

var detectOrder = []internal.ShipmentKind{internal.KindPacked, internal.KindShipped, internal.KindOrders}

const detectThreshold = 0.45

// DetectReport guesses which warehouse report an email carries. Kind is
// empty when no kind scores high enough.
func DetectReport(subject, text string, attachmentNames []string) DetectResult {
	subject = strings.ToLower(subject)
	text = strings.ToLower(text)
	names := strings.ToLower(strings.Join(attachmentNames, " "))

	best := DetectResult{Reason: "rules_negative"}
	for _, kind := range detectOrder {
		score := 0.0
		for _, kw := range detectKeywords[kind] {
			if strings.Contains(subject, kw) {
				score += 0.3
			}
			if strings.Contains(text, kw) {
				score += 0.1
			}
			if strings.Contains(names, kw) {
				score += 0.2
			}
		}
		if hasTabularAttachment(attachmentNames) {
			score += 0.2
		}
		if score > 1 {
			score = 1
		}
		if score > best.Score {
			best.Score = score
			best.Kind = kind
		}
	}

	if best.Score < detectThreshold {
		return DetectResult{Score: best.Score, Reason: "rules_negative"}
	}
	best.Reason = "rules_positive"
	return best
}

func hasTabularAttachment(names []string) bool {
	for _, name := range names {
		ln := strings.ToLower(name)
		for _, ext := range []string{".xlsx", ".xls", ".csv", ".pdf"} {
			if strings.HasSuffix(ln, ext) {
				return true
			}
		}
	}
	return false
}
