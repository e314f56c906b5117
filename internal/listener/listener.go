// Package listener polls a mailbox for warehouse reports and reconciles
// whenever new ones arrive.
package listener

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"shipmatch/internal/config"
	"shipmatch/internal/connectors"
	gmailconnector "shipmatch/internal/connectors/gmail"
	imapconnector "shipmatch/internal/connectors/imap"
	"shipmatch/internal/logging"
	"shipmatch/internal/pipeline"
	"shipmatch/internal/storage"
)

type ConnectorFactory func(ctx context.Context, provider string, cfg config.Config) (connectors.MailConnector, error)

type Service struct {
	db         *storage.DB
	cfg        config.Config
	log        *zap.Logger
	newConn    ConnectorFactory
	interval   time.Duration
	cycleCount int
}

func NewService(db *storage.DB, cfg config.Config, log *zap.Logger) *Service {
	interval := time.Duration(cfg.ListenerIntervalSec) * time.Second
	if interval <= 0 {
		interval = time.Minute
	}
	return &Service{
		db:       db,
		cfg:      cfg,
		log:      logging.OrNop(log).Named("listener"),
		newConn:  DefaultConnector,
		interval: interval,
	}
}

// WithConnectorFactory replaces how the mailbox connector is built.
func (s *Service) WithConnectorFactory(f ConnectorFactory) *Service {
	s.newConn = f
	return s
}

func DefaultConnector(ctx context.Context, provider string, cfg config.Config) (connectors.MailConnector, error) {
	switch provider {
	case "gmail":
		return gmailconnector.NewConnector(ctx, cfg)
	case "imap":
		return imapconnector.NewConnector(cfg)
	default:
		return nil, fmt.Errorf("unsupported listener provider: %q", provider)
	}
}

// Run cycles until ctx is cancelled. A failed cycle is logged and retried
// on the next tick.
func (s *Service) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		if _, err := s.RunCycle(ctx); err != nil && ctx.Err() == nil {
			s.log.Error("listener cycle failed", zap.Error(err))
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

type CycleResult struct {
	Fetched  int
	Imported int
	RunID    string
	Export   string
}

func (s *Service) RunCycle(ctx context.Context) (CycleResult, error) {
	s.cycleCount++
	provider := strings.ToLower(strings.TrimSpace(s.cfg.ListenerProvider))
	conn, err := s.newConn(ctx, provider, s.cfg)
	if err != nil {
		return CycleResult{}, err
	}

	q := connectors.QueryFromConfig(s.cfg, s.cfg.ListenerLabel, s.cfg.ListenerFetchMax)
	fetched, err := connectors.NewFetchService(s.db, s.cfg.RawMailDir, conn, s.log).FetchAndStore(ctx, q)
	if err != nil {
		return CycleResult{}, err
	}
	res := CycleResult{Fetched: fetched.Fetched}

	imported, _, err := pipeline.NewImportService(s.db, s.log).ImportPending(s.cfg.ListenerImportBatch, provider)
	if err != nil {
		return res, err
	}
	res.Imported = imported

	if imported > 0 {
		reconciler, err := pipeline.NewReconcileService(s.db, s.cfg, s.log)
		if err != nil {
			return res, err
		}
		outcome, err := reconciler.Reconcile(s.cfg.MatchFuzzyThreshold)
		if err != nil {
			return res, err
		}
		res.RunID = outcome.RunID

		if s.cfg.ListenerAutoExport {
			res.Export = filepath.Join(s.cfg.OutputDir, "listener", "run-"+outcome.RunID+".xlsx")
			if err := pipeline.ExportResultsToXLSX(outcome.Results, outcome.Summaries, res.Export); err != nil {
				return res, err
			}
		}
	}

	s.log.Info("listener cycle done",
		zap.Int("cycle", s.cycleCount),
		zap.String("provider", provider),
		zap.Int("fetched", res.Fetched),
		zap.Int("stored", fetched.Stored),
		zap.Int("imported", res.Imported),
		zap.String("runId", res.RunID))
	return res, nil
}
