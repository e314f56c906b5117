package orders

import (
	"context"
	"time"

	"go.uber.org/zap"

	"shipmatch/internal"
	"shipmatch/internal/config"
	"shipmatch/internal/logging"
	"shipmatch/internal/storage"
)

const lastSyncKey = "orders.last_sync"

type lineSource interface {
	ListOrderLines(ctx context.Context, since time.Time) ([]internal.OrderLine, error)
}

type SyncService struct {
	db     *storage.DB
	client lineSource
	cfg    config.Config
	log    *zap.Logger
	now    func() time.Time
}

func NewSyncService(db *storage.DB, cfg config.Config, log *zap.Logger) *SyncService {
	log = logging.OrNop(log)
	return &SyncService{db: db, client: NewClient(cfg, log), cfg: cfg, log: log, now: time.Now}
}

// Sync pulls lines changed since the previous sync, or within the lookback
// window when full is set or no sync has happened yet.
func (s *SyncService) Sync(ctx context.Context, full bool) (int, error) {
	started := s.now().UTC()
	since, err := s.since(full)
	if err != nil {
		return 0, err
	}

	lines, err := s.client.ListOrderLines(ctx, since)
	if err != nil {
		return 0, err
	}
	if len(lines) > 0 {
		if err := s.db.UpsertOrders(lines); err != nil {
			return 0, err
		}
	}
	if err := s.db.SetMetadata(lastSyncKey, started.Format(time.RFC3339)); err != nil {
		return 0, err
	}
	s.log.Info("order lines synced", zap.Int("lines", len(lines)), zap.Time("since", since), zap.Bool("full", full))
	return len(lines), nil
}

func (s *SyncService) since(full bool) (time.Time, error) {
	lookback := s.now().UTC().AddDate(0, 0, -s.cfg.OrderLookbackDays)
	if full {
		return lookback, nil
	}
	last, err := s.db.GetMetadata(lastSyncKey)
	if err != nil {
		return time.Time{}, err
	}
	if last != nil {
		if parsed, err := time.Parse(time.RFC3339, *last); err == nil {
			return parsed, nil
		}
	}
	return lookback, nil
}
