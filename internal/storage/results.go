package storage

import (
	"database/sql"
	"encoding/json"
	"errors"

	"shipmatch/internal"
)

func (d *DB) InsertRun(run internal.RunRow) error {
	timingsJSON, _ := json.Marshal(run.Timings)
	countsJSON, _ := json.Marshal(run.Counts)
	_, err := d.conn.Exec(`INSERT INTO runs (id, threshold, timingsJson, countsJson) VALUES (?, ?, ?, ?)`,
		run.ID, run.Threshold, string(timingsJSON), string(countsJSON))
	return err
}

func (d *DB) GetRun(id string) (*internal.RunRow, error) {
	return d.scanRun(d.conn.QueryRow(`SELECT id, threshold, timingsJson, countsJson, createdAt FROM runs WHERE id = ?`, id))
}

func (d *DB) LatestRun() (*internal.RunRow, error) {
	return d.scanRun(d.conn.QueryRow(`SELECT id, threshold, timingsJson, countsJson, createdAt FROM runs ORDER BY createdAt DESC, rowid DESC LIMIT 1`))
}

func (d *DB) scanRun(row *sql.Row) (*internal.RunRow, error) {
	var run internal.RunRow
	var timingsJSON, countsJSON string
	err := row.Scan(&run.ID, &run.Threshold, &timingsJSON, &countsJSON, &run.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	_ = json.Unmarshal([]byte(timingsJSON), &run.Timings)
	_ = json.Unmarshal([]byte(countsJSON), &run.Counts)
	return &run, nil
}

func (d *DB) InsertResults(runID string, results []internal.GradedResult) error {
	tx, err := d.conn.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.Prepare(`
INSERT INTO match_results (runId, rowNo, canonicalCustomer, matchType, matchScore, bestMatchField, qualityFlag, resultJson)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i, r := range results {
		resultJSON, err := json.Marshal(r)
		if err != nil {
			return err
		}
		if _, err := stmt.Exec(
			runID, i+1, r.CanonicalCustomer, string(r.MatchType), r.MatchScore,
			string(r.BestMatchField), string(r.DataQualityFlag), string(resultJSON),
		); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// ListResults returns a run's results in the order they were produced.
func (d *DB) ListResults(runID string) ([]internal.GradedResult, error) {
	rows, err := d.conn.Query(`SELECT resultJson FROM match_results WHERE runId = ? ORDER BY rowNo`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []internal.GradedResult
	for rows.Next() {
		var blob string
		if err := rows.Scan(&blob); err != nil {
			return nil, err
		}
		var r internal.GradedResult
		if err := json.Unmarshal([]byte(blob), &r); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (d *DB) InsertSummaries(runID string, summaries []internal.CustomerSummary) error {
	tx, err := d.conn.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	for i, s := range summaries {
		blob, err := json.Marshal(s)
		if err != nil {
			return err
		}
		if _, err := tx.Exec(`INSERT INTO customer_summaries (runId, rank, canonicalCustomer, summaryJson) VALUES (?, ?, ?, ?)`,
			runID, i+1, s.CanonicalCustomer, string(blob)); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (d *DB) ListSummaries(runID string) ([]internal.CustomerSummary, error) {
	rows, err := d.conn.Query(`SELECT summaryJson FROM customer_summaries WHERE runId = ? ORDER BY rank`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []internal.CustomerSummary
	for rows.Next() {
		var blob string
		if err := rows.Scan(&blob); err != nil {
			return nil, err
		}
		var s internal.CustomerSummary
		if err := json.Unmarshal([]byte(blob), &s); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
