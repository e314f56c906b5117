package storage

import (
	"database/sql"
	"errors"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

type DB struct {
	conn *sql.DB
}

func Open(path string) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	if _, err := conn.Exec(`PRAGMA journal_mode = WAL;`); err != nil {
		_ = conn.Close()
		return nil, err
	}

	db := &DB{conn: conn}
	if err := db.init(); err != nil {
		_ = conn.Close()
		return nil, err
	}

	return db, nil
}

func (d *DB) Close() error {
	return d.conn.Close()
}

func (d *DB) init() error {
	schema := `
CREATE TABLE IF NOT EXISTS emails (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  provider TEXT NOT NULL,
  messageId TEXT NOT NULL,
  subject TEXT NOT NULL DEFAULT '',
  sender TEXT NOT NULL DEFAULT '',
  receivedAt TEXT NOT NULL DEFAULT '',
  hash TEXT NOT NULL,
  rawRef TEXT NOT NULL,
  status TEXT NOT NULL,
  reportKind TEXT NOT NULL DEFAULT '',
  detectScore REAL NOT NULL DEFAULT 0,
  createdAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP,
  updatedAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP,
  UNIQUE(provider, messageId)
);
CREATE INDEX IF NOT EXISTS idx_emails_status ON emails(status, receivedAt);

CREATE TABLE IF NOT EXISTS shipment_imports (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  kind TEXT NOT NULL,
  source TEXT NOT NULL,
  emailId INTEGER,
  columnsJson TEXT NOT NULL,
  createdAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP,
  FOREIGN KEY(emailId) REFERENCES emails(id)
);
CREATE INDEX IF NOT EXISTS idx_shipment_imports_kind ON shipment_imports(kind);

CREATE TABLE IF NOT EXISTS shipment_lines (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  importId INTEGER NOT NULL,
  lineNo INTEGER NOT NULL,
  canonicalCustomer TEXT NOT NULL,
  customer TEXT NOT NULL,
  customerPO TEXT NOT NULL,
  customerAltPO TEXT NOT NULL,
  style TEXT NOT NULL,
  patternId TEXT NOT NULL,
  color TEXT NOT NULL,
  size TEXT NOT NULL,
  aliasRelatedItem TEXT NOT NULL,
  qty REAL NOT NULL,
  FOREIGN KEY(importId) REFERENCES shipment_imports(id)
);
CREATE INDEX IF NOT EXISTS idx_shipment_lines_import ON shipment_lines(importId);

CREATE TABLE IF NOT EXISTS order_lines (
  lineId TEXT PRIMARY KEY,
  canonicalCustomer TEXT NOT NULL,
  customer TEXT NOT NULL,
  customerPO TEXT NOT NULL,
  customerAltPO TEXT NOT NULL,
  style TEXT NOT NULL,
  patternId TEXT NOT NULL,
  color TEXT NOT NULL,
  size TEXT NOT NULL,
  aliasRelatedItem TEXT NOT NULL,
  orderedQty REAL NOT NULL,
  updatedAt TEXT,
  raw_json TEXT NOT NULL,
  lastSeenAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_order_lines_customer ON order_lines(canonicalCustomer);

CREATE TABLE IF NOT EXISTS customer_match_configs (
  customer TEXT PRIMARY KEY,
  styleMatchStrategy TEXT NOT NULL,
  styleFieldName TEXT NOT NULL,
  exactMatchFieldsJson TEXT NOT NULL,
  updatedAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS runs (
  id TEXT PRIMARY KEY,
  threshold REAL NOT NULL,
  timingsJson TEXT NOT NULL,
  countsJson TEXT NOT NULL,
  createdAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS match_results (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  runId TEXT NOT NULL,
  rowNo INTEGER NOT NULL,
  canonicalCustomer TEXT NOT NULL,
  matchType TEXT NOT NULL,
  matchScore REAL NOT NULL,
  bestMatchField TEXT NOT NULL,
  qualityFlag TEXT NOT NULL,
  resultJson TEXT NOT NULL,
  UNIQUE(runId, rowNo),
  FOREIGN KEY(runId) REFERENCES runs(id)
);

CREATE TABLE IF NOT EXISTS customer_summaries (
  runId TEXT NOT NULL,
  rank INTEGER NOT NULL,
  canonicalCustomer TEXT NOT NULL,
  summaryJson TEXT NOT NULL,
  PRIMARY KEY(runId, rank),
  FOREIGN KEY(runId) REFERENCES runs(id)
);

CREATE TABLE IF NOT EXISTS metadata (
  key TEXT PRIMARY KEY,
  value TEXT NOT NULL,
  updatedAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`

	_, err := d.conn.Exec(schema)
	return err
}

func (d *DB) SetMetadata(key, value string) error {
	_, err := d.conn.Exec(`
INSERT INTO metadata (key, value) VALUES (?, ?)
ON CONFLICT(key) DO UPDATE SET value = excluded.value, updatedAt = CURRENT_TIMESTAMP
`, key, value)
	return err
}

func (d *DB) GetMetadata(key string) (*string, error) {
	var value string
	err := d.conn.QueryRow(`SELECT value FROM metadata WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &value, nil
}
