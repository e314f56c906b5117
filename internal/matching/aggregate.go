package matching

import (
	"strings"

	"shipmatch/internal"
)

// GroupColumns returns the identity columns present in at least one input.
func GroupColumns(packed, shipped internal.ShipmentSet) []internal.Column {
	out := make([]internal.Column, 0, len(internal.IdentityColumns))
	for _, col := range internal.IdentityColumns {
		if packed.Has(col) || shipped.Has(col) {
			out = append(out, col)
		}
	}
	return out
}

type qtyGroup struct {
	id      internal.Identity
	packed  float64
	shipped float64
}

// Aggregate sums packed and shipped quantities per identity and outer-joins
// the two sides. Null values group together; no row is dropped.
func Aggregate(packed, shipped internal.ShipmentSet) []internal.CombinedRecord {
	cols := GroupColumns(packed, shipped)
	groups := map[string]*qtyGroup{}
	order := []string{}

	add := func(set internal.ShipmentSet, isPacked bool) {
		for _, row := range set.Rows {
			key, id := groupKey(row.Identity, cols, set)
			g, ok := groups[key]
			if !ok {
				g = &qtyGroup{id: id}
				groups[key] = g
				order = append(order, key)
			}
			if isPacked {
				g.packed += row.Qty
			} else {
				g.shipped += row.Qty
			}
		}
	}
	add(packed, true)
	add(shipped, false)

	out := make([]internal.CombinedRecord, 0, len(order))
	for _, key := range order {
		g := groups[key]
		out = append(out, internal.CombinedRecord{
			Identity:   g.id,
			PackedQty:  g.packed,
			ShippedQty: g.shipped,
			SourceType: sourceType(g.packed, g.shipped),
		})
	}
	return out
}

func groupKey(row internal.Identity, cols []internal.Column, set internal.ShipmentSet) (string, internal.Identity) {
	var id internal.Identity
	parts := make([]string, len(cols))
	for i, col := range cols {
		if !set.Has(col) {
			continue
		}
		v := strings.TrimSpace(row.Field(col))
		parts[i] = v
		id.SetField(col, v)
	}
	return strings.Join(parts, "\x1f"), id
}

func sourceType(packed, shipped float64) string {
	var parts []string
	if packed > 0 {
		parts = append(parts, "PACKED")
	}
	if shipped > 0 {
		parts = append(parts, "SHIPPED")
	}
	return strings.Join(parts, ",")
}
