// fpacli operates on the scenario store directly: upload CSV files, clone
// scenarios and print reports without going through the HTTP service.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/rumor-ml/commons.systems/fpaserve/internal/config"
	"github.com/rumor-ml/commons.systems/fpaserve/internal/domain"
	"github.com/rumor-ml/commons.systems/fpaserve/internal/ingest"
	"github.com/rumor-ml/commons.systems/fpaserve/internal/logger"
	"github.com/rumor-ml/commons.systems/fpaserve/internal/lookup"
	csvparser "github.com/rumor-ml/commons.systems/fpaserve/internal/parsers/csv"
	"github.com/rumor-ml/commons.systems/fpaserve/internal/report"
	"github.com/rumor-ml/commons.systems/fpaserve/internal/scenario"
	"github.com/rumor-ml/commons.systems/fpaserve/internal/store"
	fsstore "github.com/rumor-ml/commons.systems/fpaserve/internal/store/firestore"
	"github.com/rumor-ml/commons.systems/fpaserve/internal/store/memory"
	"github.com/rumor-ml/commons.systems/fpaserve/internal/store/sqlite"
	"github.com/rumor-ml/commons.systems/fpaserve/internal/ui"
)

const version = "0.1.0"

var (
	versionFlag = flag.Bool("version", false, "Show version")
	configPath  = flag.String("config", "", "Path to YAML config file")
)

func usage() {
	fmt.Fprint(os.Stderr, `fpacli - FP&A scenario store tooling

Usage:
  fpacli [flags] <command> [command flags]

Commands:
  upload     Ingest a CSV file into a scenario
  clone      Clone a scenario, optionally with a YAML adjustment set
  summary    Print per-account totals for a scenario
  monthly    Print per-month totals for a scenario
  compare    Compare two scenarios
  scenarios  List known scenarios

Flags:
`)
	flag.PrintDefaults()
	fmt.Fprint(os.Stderr, `
Examples:
  fpacli upload -file plan.csv -scenario Budget2025 -version v1
  fpacli clone -base Budget2025 -new Upside -adjustments upside.yaml
  fpacli compare -base Budget2025 -target Upside
`)
}

func main() {
	flag.Usage = usage
	flag.Parse()

	if *versionFlag {
		fmt.Printf("fpacli version %s\n", version)
		os.Exit(0)
	}

	if flag.NArg() < 1 {
		usage()
		os.Exit(1)
	}

	if err := run(flag.Arg(0), flag.Args()[1:]); err != nil {
		ui.Error("%v", err)
		os.Exit(1)
	}
}

func run(command string, args []string) error {
	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}

	ctx := logger.WithContext(context.Background(), logger.New(cfg.LogLevel))

	st, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if closer, ok := st.(io.Closer); ok {
			closer.Close()
		}
	}()

	switch command {
	case "upload":
		return runUpload(ctx, cfg, st, args)
	case "clone":
		return runClone(ctx, st, args)
	case "summary":
		return runSummary(ctx, st, args)
	case "monthly":
		return runMonthly(ctx, st, args)
	case "compare":
		return runCompare(ctx, st, args)
	case "scenarios":
		return runScenarios(ctx, st)
	default:
		usage()
		return fmt.Errorf("unknown command %q", command)
	}
}

func openStore(ctx context.Context, cfg *config.Config) (store.RecordStore, error) {
	switch cfg.Store.Backend {
	case config.StoreMemory:
		return memory.New(), nil
	case config.StoreSQLite:
		return sqlite.New(cfg.Store.SQLitePath)
	case config.StoreFirestore:
		return fsstore.New(ctx, cfg.Store.FirestoreProject)
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
	}
}

func runUpload(ctx context.Context, cfg *config.Config, st store.RecordStore, args []string) error {
	fs := flag.NewFlagSet("upload", flag.ExitOnError)
	file := fs.String("file", "", "CSV file to ingest (required)")
	scenarioName := fs.String("scenario", "Default", "Target scenario")
	versionTag := fs.String("version", "", "Version tag (default: derived from timestamp)")
	user := fs.String("user", "", "User name recorded in the audit trail")
	fs.Parse(args)

	if *file == "" {
		return fmt.Errorf("-file is required")
	}

	f, err := os.Open(*file)
	if err != nil {
		return fmt.Errorf("open upload file: %w", err)
	}
	defer f.Close()

	rows, err := csvparser.NewParser().Parse(f)
	if err != nil {
		return err
	}

	pipeline := ingest.NewPipeline(st, lookup.NewResolver(st, cfg.FX.FromCurrency, cfg.FX.ToCurrency))
	if *versionTag == "" {
		*versionTag = pipeline.DefaultVersion()
	}

	res, err := pipeline.ProcessUpload(ctx, rows, *scenarioName, *versionTag, *user)
	if err != nil {
		return err
	}
	ui.Success("ingested %d records into %s (version %s)", res.Count, res.Scenario, res.Version)
	return nil
}

func runClone(ctx context.Context, st store.RecordStore, args []string) error {
	fs := flag.NewFlagSet("clone", flag.ExitOnError)
	base := fs.String("base", "", "Base scenario (required)")
	baseVersion := fs.String("base-version", "", "Base version (default: all records of the scenario)")
	newName := fs.String("new", "", "New scenario name (required)")
	adjustmentsFile := fs.String("adjustments", "", "YAML adjustment set")
	fs.Parse(args)

	var adjustments []domain.Adjustment
	if *adjustmentsFile != "" {
		var err error
		adjustments, err = scenario.LoadAdjustments(*adjustmentsFile)
		if err != nil {
			return err
		}
	}

	res, err := scenario.NewCloner(st).Clone(ctx, scenario.CloneRequest{
		BaseScenario: *base,
		BaseVersion:  *baseVersion,
		NewScenario:  *newName,
		Adjustments:  adjustments,
	})
	if err != nil {
		return err
	}
	ui.Success("cloned %d records into %s (version %s)", res.Count, res.NewScenario, res.Version)
	return nil
}

func reportFlags(fs *flag.FlagSet) (scenarioName, account, department, from, to *string) {
	scenarioName = fs.String("scenario", "", "Scenario (required)")
	account = fs.String("account", "", "Filter on an exact account")
	department = fs.String("department", "", "Filter on an exact department")
	from = fs.String("from", "", "Inclusive lower bound, YYYY-MM")
	to = fs.String("to", "", "Inclusive upper bound, YYYY-MM")
	return
}

func buildFilter(scenarioName, account, department, from, to string) (report.Filter, error) {
	f := report.Filter{Scenario: scenarioName, Account: account, Department: department}
	if from != "" {
		p, ok := domain.ParsePeriod(from)
		if !ok {
			return f, fmt.Errorf("invalid -from %q, expected YYYY-MM", from)
		}
		f.From = &p
	}
	if to != "" {
		p, ok := domain.ParsePeriod(to)
		if !ok {
			return f, fmt.Errorf("invalid -to %q, expected YYYY-MM", to)
		}
		f.To = &p
	}
	return f, nil
}

func runSummary(ctx context.Context, st store.RecordStore, args []string) error {
	fs := flag.NewFlagSet("summary", flag.ExitOnError)
	scenarioName, account, department, from, to := reportFlags(fs)
	fs.Parse(args)

	f, err := buildFilter(*scenarioName, *account, *department, *from, *to)
	if err != nil {
		return err
	}
	rows, err := report.NewEngine(st).Summary(ctx, f)
	if err != nil {
		return err
	}

	ui.Header(fmt.Sprintf("Summary: %s", *scenarioName))
	for _, row := range rows {
		label := row.Account
		if row.Department != "" {
			label += " / " + row.Department
		}
		ui.Row(label, row.Total.InexactFloat64())
	}
	return nil
}

func runMonthly(ctx context.Context, st store.RecordStore, args []string) error {
	fs := flag.NewFlagSet("monthly", flag.ExitOnError)
	scenarioName, account, department, from, to := reportFlags(fs)
	fs.Parse(args)

	f, err := buildFilter(*scenarioName, *account, *department, *from, *to)
	if err != nil {
		return err
	}
	rows, err := report.NewEngine(st).Monthly(ctx, f)
	if err != nil {
		return err
	}

	ui.Header(fmt.Sprintf("Monthly: %s", *scenarioName))
	for _, row := range rows {
		ui.Row(row.Period, row.Total.InexactFloat64())
	}
	return nil
}

func runCompare(ctx context.Context, st store.RecordStore, args []string) error {
	fs := flag.NewFlagSet("compare", flag.ExitOnError)
	base := fs.String("base", "", "Base scenario (required)")
	target := fs.String("target", "", "Target scenario (required)")
	period := fs.String("period", "", "Restrict to one YYYY-MM period")
	departments := fs.Bool("departments", false, "Break groups down by department")
	fs.Parse(args)

	rows, err := report.NewEngine(st).Compare(ctx, *base, *target, *period, *departments)
	if err != nil {
		return err
	}

	ui.Header(fmt.Sprintf("Compare: %s vs %s", *base, *target))
	for _, row := range rows {
		label := row.Account
		if row.Department != "" {
			label += " / " + row.Department
		}
		ui.Info("%-30s base %s  target %s  delta %s (%s%%)",
			label, row.BaseAmount, row.TargetAmount, row.Delta, row.Percentage)
	}
	return nil
}

func runScenarios(ctx context.Context, st store.RecordStore) error {
	names, err := st.Scenarios(ctx)
	if err != nil {
		return err
	}
	for _, name := range names {
		fmt.Println(name)
	}
	return nil
}
