// Package connectors fetches warehouse report emails from a mailbox and
// keeps their raw bytes on disk.
package connectors

import (
	"context"
	"time"

	"shipmatch/internal"
	"shipmatch/internal/config"
)

// ReportQuery narrows a mailbox fetch to likely report emails.
type ReportQuery struct {
	Label   string
	Max     int
	Since   time.Time
	Senders []string
}

func QueryFromConfig(cfg config.Config, label string, max int) ReportQuery {
	q := ReportQuery{Label: label, Max: max, Senders: cfg.ReportSenders}
	if cfg.MailLookbackDays > 0 {
		q.Since = time.Now().UTC().AddDate(0, 0, -cfg.MailLookbackDays)
	}
	return q
}

type MailConnector interface {
	FetchReports(ctx context.Context, q ReportQuery) ([]internal.FetchedMailMessage, error)
}
