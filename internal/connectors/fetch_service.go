package connectors

import (
	"context"

	"go.uber.org/zap"

	"shipmatch/internal/logging"
	"shipmatch/internal/storage"
)

type FetchService struct {
	connector MailConnector
	store     *MailStoreService
	log       *zap.Logger
}

type FetchResult struct {
	Fetched    int
	Stored     int
	Duplicates int
}

func NewFetchService(db *storage.DB, rawMailDir string, connector MailConnector, log *zap.Logger) *FetchService {
	return &FetchService{
		connector: connector,
		store:     NewMailStoreService(db, rawMailDir),
		log:       logging.OrNop(log),
	}
}

func (s *FetchService) FetchAndStore(ctx context.Context, q ReportQuery) (FetchResult, error) {
	messages, err := s.connector.FetchReports(ctx, q)
	if err != nil {
		return FetchResult{}, err
	}

	res := FetchResult{Fetched: len(messages)}
	for _, msg := range messages {
		_, isNew, err := s.store.Store(msg)
		if err != nil {
			return res, err
		}
		if isNew {
			res.Stored++
		} else {
			res.Duplicates++
		}
	}

	s.log.Info("report mail fetched",
		zap.String("label", q.Label),
		zap.Int("fetched", res.Fetched),
		zap.Int("stored", res.Stored),
		zap.Int("duplicates", res.Duplicates))
	return res, nil
}
