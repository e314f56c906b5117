package storage

import (
	"database/sql"
	"errors"
	"fmt"

	"shipmatch/internal"
)

const emailSelect = `SELECT id, provider, messageId, subject, sender, receivedAt, hash, rawRef, status, reportKind, detectScore FROM emails`

// UpsertEmail records a fetched message keyed by (provider, messageId).
// status applies to new rows only; an existing row keeps its status.
func (d *DB) UpsertEmail(provider, messageID, subject, sender, receivedAt, hash, rawRef, status string) (internal.EmailRow, error) {
	var id int
	err := d.conn.QueryRow(`
INSERT INTO emails (provider, messageId, subject, sender, receivedAt, hash, rawRef, status)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(provider, messageId) DO UPDATE SET
  subject = excluded.subject, sender = excluded.sender, receivedAt = excluded.receivedAt,
  hash = excluded.hash, rawRef = excluded.rawRef, updatedAt = CURRENT_TIMESTAMP
RETURNING id`, provider, messageID, subject, sender, receivedAt, hash, rawRef, status).Scan(&id)
	if err != nil {
		return internal.EmailRow{}, fmt.Errorf("upsert email %s/%s: %w", provider, messageID, err)
	}
	return d.MustEmailByID(id)
}

func scanEmail(row interface{ Scan(...any) error }) (*internal.EmailRow, error) {
	var (
		e    internal.EmailRow
		kind string
	)
	err := row.Scan(&e.ID, &e.Provider, &e.MessageID, &e.Subject, &e.Sender, &e.ReceivedAt,
		&e.Hash, &e.RawRef, &e.Status, &kind, &e.DetectScore)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	e.ReportKind = internal.ShipmentKind(kind)
	return &e, nil
}

func (d *DB) GetEmailByProviderMessageID(provider, messageID string) (*internal.EmailRow, error) {
	return scanEmail(d.conn.QueryRow(emailSelect+` WHERE provider = ? AND messageId = ?`, provider, messageID))
}

func (d *DB) GetEmailByID(id int) (*internal.EmailRow, error) {
	return scanEmail(d.conn.QueryRow(emailSelect+` WHERE id = ?`, id))
}

func (d *DB) MustEmailByID(id int) (internal.EmailRow, error) {
	e, err := d.GetEmailByID(id)
	if err != nil {
		return internal.EmailRow{}, err
	}
	if e == nil {
		return internal.EmailRow{}, fmt.Errorf("email not found: id=%d", id)
	}
	return *e, nil
}

// ListEmailsByStatus returns the oldest emails in status first.
func (d *DB) ListEmailsByStatus(status string, limit int) ([]internal.EmailRow, error) {
	rows, err := d.conn.Query(emailSelect+` WHERE status = ? ORDER BY receivedAt, id LIMIT ?`, status, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []internal.EmailRow
	for rows.Next() {
		e, err := scanEmail(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *e)
	}
	return out, rows.Err()
}

func (d *DB) UpdateEmailStatus(emailID int, status string) error {
	_, err := d.conn.Exec(`UPDATE emails SET status = ?, updatedAt = CURRENT_TIMESTAMP WHERE id = ?`, status, emailID)
	return err
}

// RecordDetection stores the import outcome of an email together with the
// report kind detection chose and its score.
func (d *DB) RecordDetection(emailID int, status string, kind internal.ShipmentKind, score float64) error {
	_, err := d.conn.Exec(`
UPDATE emails SET status = ?, reportKind = ?, detectScore = ?, updatedAt = CURRENT_TIMESTAMP
WHERE id = ?`, status, string(kind), score, emailID)
	return err
}
