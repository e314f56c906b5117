package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"go.uber.org/zap"

	"shipmatch/internal"
	"shipmatch/internal/config"
	"shipmatch/internal/connectors"
	"shipmatch/internal/listener"
	"shipmatch/internal/logging"
	"shipmatch/internal/matchcfg"
	"shipmatch/internal/matching"
	"shipmatch/internal/orders"
	"shipmatch/internal/pipeline"
	"shipmatch/internal/storage"
)

func main() {
	cfg, err := config.Load()
	must(err)

	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	log, err := logging.New(logging.Config{Level: cfg.LogLevel, Format: cfg.LogFormat, Output: cfg.LogOutput})
	must(err)
	defer func() { _ = log.Sync() }()

	cmd := os.Args[1]
	args := os.Args[2:]

	// compare needs no database.
	if cmd == "compare" {
		runCompare(args)
		return
	}

	db, err := storage.Open(cfg.DBPath)
	must(err)
	defer db.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	switch cmd {
	case "import":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		kind := fs.String("kind", "", "packed|shipped|orders")
		input := fs.String("input", "", "xlsx|csv|html|pdf file")
		customer := fs.String("customer", "", "Canonical_Customer for rows that lack one")
		replace := fs.Bool("replace", false, "drop earlier imports of this kind first")
		_ = fs.Parse(args)
		k := internal.ShipmentKind(strings.ToLower(strings.TrimSpace(*kind)))
		if strings.TrimSpace(*input) == "" {
			must(fmt.Errorf("--input is required"))
		}
		switch k {
		case internal.KindPacked, internal.KindShipped:
			if *replace {
				must(db.ClearShipments(k))
			}
		case internal.KindOrders:
		default:
			must(fmt.Errorf("--kind must be packed, shipped or orders"))
		}
		res, err := pipeline.NewImportService(db, log).ImportFile(k, *input, *customer)
		must(err)
		fmt.Printf("imported kind=%s lines=%d\n", res.Kind, res.Lines)
	case "orders:sync":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		full := fs.Bool("full", false, "ignore the last sync mark and use the lookback window")
		_ = fs.Parse(args)
		count, err := orders.NewSyncService(db, cfg, log).Sync(ctx, *full)
		must(err)
		fmt.Printf("order sync complete: %d lines\n", count)
	case "mail:fetch":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		provider := fs.String("provider", cfg.ListenerProvider, "gmail|imap")
		label := fs.String("label", cfg.ListenerLabel, "mailbox/label")
		max := fs.Int("max", 50, "max messages")
		_ = fs.Parse(args)
		conn, err := listener.DefaultConnector(ctx, strings.ToLower(strings.TrimSpace(*provider)), cfg)
		must(err)
		res, err := connectors.NewFetchService(db, cfg.RawMailDir, conn, log).
			FetchAndStore(ctx, connectors.QueryFromConfig(cfg, *label, *max))
		must(err)
		fmt.Printf("mail fetch done provider=%s fetched=%d stored=%d duplicates=%d\n", *provider, res.Fetched, res.Stored, res.Duplicates)
	case "mail:import":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		provider := fs.String("provider", "", "only emails from this provider")
		emailID := fs.Int("emailId", 0, "re-import one stored email")
		batch := fs.Int("batch", 20, "batch size")
		_ = fs.Parse(args)
		svc := pipeline.NewImportService(db, log)
		if *emailID != 0 {
			email, err := db.MustEmailByID(*emailID)
			must(err)
			res, err := svc.ImportEmail(email)
			must(err)
			fmt.Printf("imported email id=%d kind=%s lines=%d skipped=%t\n", res.EmailID, res.Kind, res.Lines, res.Skipped)
			return
		}
		emails, lines, err := svc.ImportPending(*batch, *provider)
		must(err)
		fmt.Printf("imported pending emails=%d lines=%d\n", emails, lines)
	case "reconcile":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		threshold := fs.Float64("threshold", cfg.MatchFuzzyThreshold, "fuzzy acceptance threshold 0-100")
		out := fs.String("out", "", "also export the run to this xlsx path")
		_ = fs.Parse(args)
		if *threshold < 0 || *threshold > 100 {
			must(fmt.Errorf("--threshold must be within [0,100]"))
		}
		svc, err := pipeline.NewReconcileService(db, cfg, log)
		must(err)
		outcome, err := svc.Reconcile(*threshold)
		must(err)
		fmt.Printf("run %s results=%d exact=%d fuzzy=%d no_match=%d customers=%d\n",
			outcome.RunID, len(outcome.Results), outcome.Counts["exact"], outcome.Counts["fuzzy"],
			outcome.Counts["noMatch"], outcome.Counts["customers"])
		if strings.TrimSpace(*out) != "" {
			must(pipeline.ExportResultsToXLSX(outcome.Results, outcome.Summaries, *out))
			fmt.Printf("exported to %s\n", *out)
		}
	case "export:xlsx":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		runID := fs.String("run", "", "run id (default: latest)")
		out := fs.String("out", "", "output xlsx path")
		_ = fs.Parse(args)
		id := strings.TrimSpace(*runID)
		if id == "" {
			latest, err := db.LatestRun()
			must(err)
			if latest == nil {
				must(fmt.Errorf("no reconcile run stored yet"))
			}
			id = latest.ID
		}
		path := strings.TrimSpace(*out)
		if path == "" {
			path = filepath.Join(cfg.OutputDir, "run-"+id+".xlsx")
		}
		must(pipeline.ExportRun(db, id, path))
		fmt.Printf("exported run %s to %s\n", id, path)
	case "config:set":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		customer := fs.String("customer", "", "Canonical_Customer")
		strategy := fs.String("strategy", string(matchcfg.StrategyStandard), "standard|alias_related_item")
		styleField := fs.String("style-field", string(internal.ColStyle), "Style|Pattern_ID|ALIAS/RELATED ITEM")
		fields := fs.String("exact-fields", "", "comma separated exact match columns")
		_ = fs.Parse(args)
		if strings.TrimSpace(*customer) == "" {
			must(fmt.Errorf("--customer is required"))
		}
		cc := matchcfg.CustomerConfig{
			StyleMatchStrategy: matchcfg.Strategy(*strategy),
			StyleFieldName:     *styleField,
		}
		for _, f := range strings.Split(*fields, ",") {
			if f = strings.TrimSpace(f); f != "" {
				cc.ExactMatchFields = append(cc.ExactMatchFields, internal.Column(f))
			}
		}
		must(db.UpsertCustomerConfig(*customer, cc))
		fmt.Printf("stored matching config for %s\n", *customer)
	case "listen":
		log.Info("listener starting", zap.String("provider", cfg.ListenerProvider), zap.Int("intervalSec", cfg.ListenerIntervalSec))
		must(listener.NewService(db, cfg, log).Run(ctx))
	default:
		usage()
		os.Exit(1)
	}
}

func runCompare(args []string) {
	fs := flag.NewFlagSet("compare", flag.ExitOnError)
	a := fs.String("a", "", "CUSTOMER|PO|STYLE|COLOR|SIZE")
	b := fs.String("b", "", "CUSTOMER|PO|STYLE|COLOR|SIZE")
	_ = fs.Parse(args)
	if *a == "" || *b == "" {
		must(fmt.Errorf("--a and --b are required"))
	}
	x, err := parseIdentity(*a)
	must(err)
	y, err := parseIdentity(*b)
	must(err)
	cmp := matching.NewKeyBuilder(nil).Compare(x, y)
	blob, err := json.MarshalIndent(cmp, "", "  ")
	must(err)
	fmt.Println(string(blob))
}

func parseIdentity(value string) (internal.Identity, error) {
	parts := strings.Split(value, "|")
	if len(parts) != 5 {
		return internal.Identity{}, fmt.Errorf("want CUSTOMER|PO|STYLE|COLOR|SIZE, got %q", value)
	}
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return internal.Identity{
		CanonicalCustomer: parts[0],
		CustomerPO:        parts[1],
		Style:             parts[2],
		Color:             parts[3],
		Size:              parts[4],
	}, nil
}

func usage() {
	fmt.Println("usage: shipmatch <command>")
	fmt.Println("commands:")
	fmt.Println("  import --kind=packed|shipped|orders --input=FILE [--customer=ACME] [--replace]")
	fmt.Println("  orders:sync [--full]")
	fmt.Println("  mail:fetch [--provider=gmail|imap] [--label=INBOX] [--max=50]")
	fmt.Println("  mail:import [--provider=gmail|imap] [--emailId=1] [--batch=20]")
	fmt.Println("  reconcile [--threshold=75] [--out=./out/run.xlsx]")
	fmt.Println("  export:xlsx [--run=ID] [--out=./out/run.xlsx]")
	fmt.Println("  compare --a='ACME|PO100|ABC|RED|M' --b='ACME|PO1OO|ABC|RED|M'")
	fmt.Println("  config:set --customer=ACME [--strategy=standard|alias_related_item] [--style-field=Style] [--exact-fields=...]")
	fmt.Println("  listen")
}

func must(err error) {
	if err == nil {
		return
	}
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	os.Exit(1)
}
