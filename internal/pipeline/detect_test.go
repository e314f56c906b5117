package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"shipmatch/internal"
)

func TestDetectReport(t *testing.T) {
	cases := []struct {
		name    string
		subject string
		text    string
		files   []string
		want    internal.ShipmentKind
	}{
		{"packing list", "Packing list 2026-03-01", "", []string{"packed.xlsx"}, internal.KindPacked},
		{"ship confirm", "Ship confirm for today", "shipment attached", []string{"ship.csv"}, internal.KindShipped},
		{"open orders", "Open orders report", "", []string{"orders.xlsx"}, internal.KindOrders},
		{"newsletter", "Weekly newsletter", "hello", nil, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := DetectReport(tc.subject, tc.text, tc.files)
			assert.Equal(t, tc.want, got.Kind)
			if tc.want == "" {
				assert.Equal(t, "rules_negative", got.Reason)
			}
		})
	}
}
