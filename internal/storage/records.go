package storage

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"shipmatch/internal"
	"shipmatch/internal/matchcfg"
	"shipmatch/internal/util"
)

// InsertShipmentImport stores one loaded report of the given kind.
// emailID is nil for reports imported from disk.
func (d *DB) InsertShipmentImport(kind internal.ShipmentKind, source string, emailID *int, set internal.ShipmentSet) (int64, error) {
	if kind != internal.KindPacked && kind != internal.KindShipped {
		return 0, fmt.Errorf("unsupported shipment kind %q", kind)
	}
	columnsJSON, _ := json.Marshal(set.Columns)

	tx, err := d.conn.Begin()
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.Exec(`INSERT INTO shipment_imports (kind, source, emailId, columnsJson) VALUES (?, ?, ?, ?)`,
		string(kind), source, emailID, string(columnsJSON))
	if err != nil {
		return 0, err
	}
	importID, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}

	stmt, err := tx.Prepare(`
INSERT INTO shipment_lines (
  importId, lineNo, canonicalCustomer, customer, customerPO, customerAltPO,
  style, patternId, color, size, aliasRelatedItem, qty
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, err
	}
	defer stmt.Close()

	for i, r := range set.Rows {
		if _, err := stmt.Exec(
			importID, i+1, r.CanonicalCustomer, r.Customer, r.CustomerPO, r.CustomerAltPO,
			r.Style, r.PatternID, r.Color, r.Size, r.AliasRelatedItem, r.Qty,
		); err != nil {
			return 0, err
		}
	}

	return importID, tx.Commit()
}

// ListShipments merges every import of a kind. Columns is the union of the
// imports' columns, or nil when any import carried all of them.
func (d *DB) ListShipments(kind internal.ShipmentKind) (internal.ShipmentSet, error) {
	var set internal.ShipmentSet

	imports, err := d.conn.Query(`SELECT columnsJson FROM shipment_imports WHERE kind = ? ORDER BY id`, string(kind))
	if err != nil {
		return set, err
	}
	seen := map[internal.Column]bool{}
	allColumns := false
	for imports.Next() {
		var columnsJSON string
		if err := imports.Scan(&columnsJSON); err != nil {
			_ = imports.Close()
			return set, err
		}
		var cols []internal.Column
		_ = json.Unmarshal([]byte(columnsJSON), &cols)
		if cols == nil {
			allColumns = true
		}
		for _, c := range cols {
			if !seen[c] {
				seen[c] = true
				set.Columns = append(set.Columns, c)
			}
		}
	}
	_ = imports.Close()
	if err := imports.Err(); err != nil {
		return set, err
	}
	if allColumns {
		set.Columns = nil
	}

	rows, err := d.conn.Query(`
SELECT l.canonicalCustomer, l.customer, l.customerPO, l.customerAltPO,
       l.style, l.patternId, l.color, l.size, l.aliasRelatedItem, l.qty
FROM shipment_lines l
JOIN shipment_imports i ON i.id = l.importId
WHERE i.kind = ?
ORDER BY i.id ASC, l.lineNo ASC`, string(kind))
	if err != nil {
		return set, err
	}
	defer rows.Close()

	for rows.Next() {
		var r internal.ShipmentRecord
		if err := rows.Scan(
			&r.CanonicalCustomer, &r.Customer, &r.CustomerPO, &r.CustomerAltPO,
			&r.Style, &r.PatternID, &r.Color, &r.Size, &r.AliasRelatedItem, &r.Qty,
		); err != nil {
			return set, err
		}
		set.Rows = append(set.Rows, r)
	}
	return set, rows.Err()
}

func (d *DB) ClearShipments(kind internal.ShipmentKind) error {
	return d.deleteImports(`kind = ?`, string(kind))
}

// ClearEmailImports removes what an email contributed so it can be re-imported.
func (d *DB) ClearEmailImports(emailID int) error {
	return d.deleteImports(`emailId = ?`, emailID)
}

func (d *DB) deleteImports(where string, arg any) error {
	tx, err := d.conn.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`DELETE FROM shipment_lines WHERE importId IN (SELECT id FROM shipment_imports WHERE `+where+`)`, arg); err != nil {
		return err
	}
	if _, err := tx.Exec(`DELETE FROM shipment_imports WHERE `+where, arg); err != nil {
		return err
	}
	return tx.Commit()
}

func (d *DB) UpsertOrders(orders []internal.OrderLine) error {
	tx, err := d.conn.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.Prepare(`
INSERT INTO order_lines (
  lineId, canonicalCustomer, customer, customerPO, customerAltPO,
  style, patternId, color, size, aliasRelatedItem, orderedQty, updatedAt, raw_json, lastSeenAt
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
ON CONFLICT(lineId) DO UPDATE SET
  canonicalCustomer=excluded.canonicalCustomer,
  customer=excluded.customer,
  customerPO=excluded.customerPO,
  customerAltPO=excluded.customerAltPO,
  style=excluded.style,
  patternId=excluded.patternId,
  color=excluded.color,
  size=excluded.size,
  aliasRelatedItem=excluded.aliasRelatedItem,
  orderedQty=excluded.orderedQty,
  updatedAt=excluded.updatedAt,
  raw_json=excluded.raw_json,
  lastSeenAt=CURRENT_TIMESTAMP
`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, o := range orders {
		if strings.TrimSpace(o.LineID) == "" {
			return errors.New("order line without id")
		}
		raw := o.RawJSON
		if raw == "" {
			raw = "{}"
		}
		if _, err := stmt.Exec(
			o.LineID, o.CanonicalCustomer, o.Customer, o.CustomerPO, o.CustomerAltPO,
			o.Style, o.PatternID, o.Color, o.Size, o.AliasRelatedItem, o.OrderedQty, o.UpdatedAt, raw,
		); err != nil {
			return err
		}
	}

	return tx.Commit()
}

func (d *DB) ListOrders() ([]internal.OrderLine, error) {
	rows, err := d.conn.Query(`
SELECT lineId, canonicalCustomer, customer, customerPO, customerAltPO,
       style, patternId, color, size, aliasRelatedItem, orderedQty, COALESCE(updatedAt, ''), raw_json
FROM order_lines
ORDER BY lineId`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []internal.OrderLine
	for rows.Next() {
		var o internal.OrderLine
		if err := rows.Scan(
			&o.LineID, &o.CanonicalCustomer, &o.Customer, &o.CustomerPO, &o.CustomerAltPO,
			&o.Style, &o.PatternID, &o.Color, &o.Size, &o.AliasRelatedItem, &o.OrderedQty, &o.UpdatedAt, &o.RawJSON,
		); err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

// UpsertCustomerConfig stores cfg under the normalized customer name, the
// same form the matching engine looks customers up by.
func (d *DB) UpsertCustomerConfig(customer string, cfg matchcfg.CustomerConfig) error {
	customer = util.NormalizeKeyPart(customer)
	if customer == "" {
		return errors.New("customer is required")
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	fieldsJSON, _ := json.Marshal(cfg.ExactMatchFields)
	_, err := d.conn.Exec(`
INSERT INTO customer_match_configs (customer, styleMatchStrategy, styleFieldName, exactMatchFieldsJson)
VALUES (?, ?, ?, ?)
ON CONFLICT(customer) DO UPDATE SET
  styleMatchStrategy=excluded.styleMatchStrategy,
  styleFieldName=excluded.styleFieldName,
  exactMatchFieldsJson=excluded.exactMatchFieldsJson,
  updatedAt=CURRENT_TIMESTAMP
`, customer, string(cfg.StyleMatchStrategy), cfg.StyleFieldName, string(fieldsJSON))
	return err
}

func (d *DB) GetCustomerConfig(customer string) (*matchcfg.CustomerConfig, error) {
	var cfg matchcfg.CustomerConfig
	var strategy, fieldsJSON string
	err := d.conn.QueryRow(`
SELECT styleMatchStrategy, styleFieldName, exactMatchFieldsJson
FROM customer_match_configs WHERE customer = ?`, util.NormalizeKeyPart(customer)).Scan(&strategy, &cfg.StyleFieldName, &fieldsJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	cfg.StyleMatchStrategy = matchcfg.Strategy(strategy)
	if err := json.Unmarshal([]byte(fieldsJSON), &cfg.ExactMatchFields); err != nil {
		return nil, fmt.Errorf("decode exact_match_fields for %s: %w", customer, err)
	}
	return &cfg, nil
}

// CustomerConfigLoader exposes the customer_match_configs table to a matchcfg.Store.
func (d *DB) CustomerConfigLoader() matchcfg.Loader {
	return matchcfg.LoaderFunc(func(customer string) (matchcfg.CustomerConfig, error) {
		cfg, err := d.GetCustomerConfig(customer)
		if err != nil {
			return matchcfg.CustomerConfig{}, err
		}
		if cfg == nil {
			return matchcfg.CustomerConfig{}, matchcfg.ErrNoConfig
		}
		return *cfg, nil
	})
}
