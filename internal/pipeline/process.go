package pipeline

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"shipmatch/internal"
	"shipmatch/internal/config"
	"shipmatch/internal/logging"
	"shipmatch/internal/matchcfg"
	"shipmatch/internal/matching"
	"shipmatch/internal/storage"
	"shipmatch/internal/util"
)

const (
	emailStatusFetched  = "fetched"
	emailStatusImported = "imported"
	emailStatusSkipped  = "skipped"
)

type ImportService struct {
	db  *storage.DB
	log *zap.Logger
}

func NewImportService(db *storage.DB, log *zap.Logger) *ImportService {
	return &ImportService{db: db, log: logging.OrNop(log)}
}

type ImportResult struct {
	EmailID int
	Kind    internal.ShipmentKind
	Lines   int
	Skipped bool
}

// ImportFile loads a report from disk. customer, when set, becomes the
// Canonical_Customer of rows that do not name one.
func (s *ImportService) ImportFile(kind internal.ShipmentKind, path, customer string) (ImportResult, error) {
	blob, err := os.ReadFile(path)
	if err != nil {
		return ImportResult{}, err
	}
	tables, err := ReadTables(path, blob)
	if err != nil {
		return ImportResult{}, err
	}
	report, err := BuildReport(kind, filepath.Base(path), tables, customer)
	if err != nil {
		return ImportResult{}, err
	}
	if err := s.persist(report, nil); err != nil {
		return ImportResult{}, err
	}
	s.log.Info("report imported", zap.String("kind", string(kind)), zap.String("path", path), zap.Int("lines", report.Lines()))
	return ImportResult{Kind: kind, Lines: report.Lines()}, nil
}

func (s *ImportService) ImportPending(limit int, provider string) (int, int, error) {
	pending, err := s.db.ListEmailsByStatus(emailStatusFetched, limit)
	if err != nil {
		return 0, 0, err
	}
	importedEmails := 0
	importedLines := 0
	for _, email := range pending {
		if provider != "" && email.Provider != provider {
			continue
		}
		res, err := s.ImportEmail(email)
		if err != nil {
			return importedEmails, importedLines, err
		}
		if !res.Skipped {
			importedEmails++
			importedLines += res.Lines
		}
	}
	return importedEmails, importedLines, nil
}

// ImportEmail re-imports a stored email, replacing whatever it contributed before.
func (s *ImportService) ImportEmail(email internal.EmailRow) (ImportResult, error) {
	raw, err := os.ReadFile(email.RawRef)
	if err != nil {
		return ImportResult{}, err
	}
	msg, err := ParseReportEmail(raw)
	if err != nil {
		return ImportResult{}, err
	}
	if err := s.db.ClearEmailImports(email.ID); err != nil {
		return ImportResult{}, err
	}

	detect := DetectReport(util.FirstNonEmpty(msg.Subject, email.Subject), msg.Text, msg.AttachmentNames())
	log := s.log.With(zap.Int("emailId", email.ID), zap.String("subject", email.Subject))
	if detect.Kind == "" {
		log.Info("email is not a warehouse report", zap.Float64("score", detect.Score))
		return ImportResult{EmailID: email.ID, Skipped: true}, s.db.RecordDetection(email.ID, emailStatusSkipped, "", detect.Score)
	}

	report, err := BuildReport(detect.Kind, fmt.Sprintf("email:%d", email.ID), msg.Tables(), "")
	if err != nil {
		log.Warn("report email has no readable table", zap.String("kind", string(detect.Kind)), zap.Error(err))
		return ImportResult{EmailID: email.ID, Kind: detect.Kind, Skipped: true}, s.db.RecordDetection(email.ID, emailStatusSkipped, detect.Kind, detect.Score)
	}
	emailID := email.ID
	if err := s.persist(report, &emailID); err != nil {
		return ImportResult{}, err
	}
	if err := s.db.RecordDetection(email.ID, emailStatusImported, detect.Kind, detect.Score); err != nil {
		return ImportResult{}, err
	}
	log.Info("report email imported", zap.String("kind", string(detect.Kind)), zap.Int("lines", report.Lines()))
	return ImportResult{EmailID: email.ID, Kind: detect.Kind, Lines: report.Lines()}, nil
}

func (s *ImportService) persist(report Report, emailID *int) error {
	if report.Kind == internal.KindOrders {
		return s.db.UpsertOrders(report.Orders)
	}
	_, err := s.db.InsertShipmentImport(report.Kind, report.Source, emailID, report.Set)
	return err
}

// ReconcileService runs the matching engine over everything stored and
// persists the run.
type ReconcileService struct {
	db      *storage.DB
	cfg     config.Config
	log     *zap.Logger
	configs *matchcfg.Store
}

func NewReconcileService(db *storage.DB, cfg config.Config, log *zap.Logger) (*ReconcileService, error) {
	log = logging.OrNop(log)
	loaders := matchcfg.ChainLoader{db.CustomerConfigLoader()}
	if cfg.CustomerConfigPath != "" {
		fileLoader, err := matchcfg.LoadYAMLFile(cfg.CustomerConfigPath)
		if err != nil {
			return nil, err
		}
		loaders = append(loaders, fileLoader)
	}
	return &ReconcileService{
		db:      db,
		cfg:     cfg,
		log:     log,
		configs: matchcfg.NewStore(loaders, log),
	}, nil
}

type RunOutcome struct {
	RunID     string
	Results   []internal.GradedResult
	Summaries []internal.CustomerSummary
	Counts    map[string]int
}

func (s *ReconcileService) Reconcile(threshold float64) (RunOutcome, error) {
	start := time.Now()
	packed, err := s.db.ListShipments(internal.KindPacked)
	if err != nil {
		return RunOutcome{}, err
	}
	shipped, err := s.db.ListShipments(internal.KindShipped)
	if err != nil {
		return RunOutcome{}, err
	}
	lines, err := s.db.ListOrders()
	if err != nil {
		return RunOutcome{}, err
	}
	orders := make([]internal.OrderRecord, 0, len(lines))
	for _, l := range lines {
		orders = append(orders, l.OrderRecord)
	}
	loaded := time.Now()

	engine := matching.NewEngine(s.configs,
		matching.WithThreshold(threshold),
		matching.WithWorkers(s.cfg.MatchWorkers),
		matching.WithLogger(s.log))
	results, summaries := engine.MatchRecords(packed, shipped, orders)
	matched := time.Now()

	counts := map[string]int{
		"packed":    len(packed.Rows),
		"shipped":   len(shipped.Rows),
		"orders":    len(orders),
		"results":   len(results),
		"exact":     0,
		"fuzzy":     0,
		"noMatch":   0,
		"customers": len(summaries),
	}
	for _, r := range results {
		switch r.MatchType {
		case internal.MatchExact:
			counts["exact"]++
		case internal.MatchFuzzy:
			counts["fuzzy"]++
		default:
			counts["noMatch"]++
		}
	}

	run := internal.RunRow{
		ID:        uuid.NewString(),
		Threshold: threshold,
		Counts:    counts,
		Timings: map[string]float64{
			"loadMs":  float64(loaded.Sub(start).Milliseconds()),
			"matchMs": float64(matched.Sub(loaded).Milliseconds()),
		},
	}
	if err := s.db.InsertRun(run); err != nil {
		return RunOutcome{}, err
	}
	if err := s.db.InsertResults(run.ID, results); err != nil {
		return RunOutcome{}, err
	}
	if err := s.db.InsertSummaries(run.ID, summaries); err != nil {
		return RunOutcome{}, err
	}

	s.log.Info("reconcile run stored",
		zap.String("runId", run.ID),
		zap.Int("results", len(results)),
		zap.Int("exact", counts["exact"]),
		zap.Int("fuzzy", counts["fuzzy"]),
		zap.Int("noMatch", counts["noMatch"]),
		zap.Duration("took", time.Since(start)))
	return RunOutcome{RunID: run.ID, Results: results, Summaries: summaries, Counts: counts}, nil
}
