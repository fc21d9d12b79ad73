// Command ingest runs the document pipeline once for local page images or a PDF.
//
//	ingest -owner <uid> page1.jpg page2.jpg ...
//	ingest -owner <uid> -pdf contract.pdf
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/joho/godotenv/autoload"
	"github.com/prometheus/client_golang/prometheus"

	"legalease/internal/acquire"
	"legalease/internal/analysis"
	"legalease/internal/assemble"
	"legalease/internal/config"
	"legalease/internal/database"
	"legalease/internal/database/migration"
	"legalease/internal/logging"
	"legalease/internal/model"
	"legalease/internal/pipeline"
	"legalease/internal/repository/postgres"
	"legalease/internal/repository/sqlite"
	"legalease/internal/service"
	"legalease/internal/storage"
	"legalease/internal/upload"
)

const (
	exitOK     = 0
	exitFailed = 1
	exitUsage  = 2
)

var errUsage = errors.New("usage")

type options struct {
	owner string
	pdf   string
	pages []string
	quiet bool
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func parseArgs(args []string, stderr io.Writer) (options, error) {
	fs := flag.NewFlagSet("ingest", flag.ContinueOnError)
	fs.SetOutput(stderr)

	var o options
	fs.StringVar(&o.owner, "owner", "", "owner id the document and report belong to (required)")
	fs.StringVar(&o.pdf, "pdf", "", "upload an existing PDF instead of assembling page images")
	fs.BoolVar(&o.quiet, "quiet", false, "suppress progress lines")
	fs.Usage = func() {
		fmt.Fprintln(stderr, "usage: ingest -owner <uid> [-pdf file.pdf | page images...]")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return o, errUsage
	}
	if fs.NArg() > 0 {
		o.pages = fs.Args()
	}

	switch {
	case o.owner == "":
		fmt.Fprintln(stderr, "ingest: -owner is required")
		return o, errUsage
	case o.pdf != "" && len(o.pages) > 0:
		fmt.Fprintln(stderr, "ingest: give either -pdf or page images, not both")
		return o, errUsage
	}
	return o, nil
}

func run(args []string, stdout, stderr io.Writer) int {
	opts, err := parseArgs(args, stderr)
	if err != nil {
		return exitUsage
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(stderr, "ingest: %v\n", err)
		return exitFailed
	}
	logger := logging.New(stderr, cfg.Location())
	if opts.quiet {
		logger = logging.Discard()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.Open(cfg.Database)
	if err != nil {
		fmt.Fprintf(stderr, "ingest: database: %v\n", err)
		return exitFailed
	}
	defer db.Close()

	driver := cfg.Database.Driver
	if driver == "" {
		driver = database.DriverPostgres
	}
	if err := migration.EnsureMigrated(ctx, db, driver, logger); err != nil {
		fmt.Fprintf(stderr, "ingest: migration: %v\n", err)
		return exitFailed
	}

	objStore, err := storage.NewMinIO(cfg.MinIO)
	if err != nil {
		fmt.Fprintf(stderr, "ingest: storage: %v\n", err)
		return exitFailed
	}

	svc := service.NewReportService(postgres.NewReportPostgres(db), logger)
	if driver == database.DriverSQLite {
		svc = service.NewReportService(sqlite.NewReportSQLite(db), logger)
	}

	metrics, err := pipeline.NewMetrics(prometheus.NewRegistry())
	if err != nil {
		fmt.Fprintf(stderr, "ingest: %v\n", err)
		return exitFailed
	}

	orch := pipeline.New(pipeline.Deps{
		Assembler: assemble.New(cfg.Pipeline.WorkDir, logger),
		Uploader: upload.New(objStore, upload.Options{
			MaxAttempts: cfg.Pipeline.UploadMaxAttempts,
			Backoff:     cfg.Pipeline.UploadBackoff,
			Observer:    metrics.UploadAttempt,
		}, logger),
		Analyzer: analysis.New(cfg.Analysis.BaseURL, cfg.Analysis.Timeout, logger),
		Reports:  svc,
		Metrics:  metrics,
		Logger:   logger,
	})

	src := acquire.Scan(opts.pages, cfg.Pipeline.MaxPages)
	if opts.pdf != "" {
		src = acquire.Pick(opts.pdf)
	}

	progress := func(s model.RunStatus) {
		if !opts.quiet {
			fmt.Fprintf(stderr, "[%3.0f%%] %-10s %s\n", s.Progress*100, s.Stage, s.Message)
		}
	}

	res, err := orch.Run(ctx, opts.owner, src, progress)
	if err != nil {
		fmt.Fprintf(stderr, "ingest: %v\n", err)
		return exitFailed
	}
	return report(stdout, res)
}

type summary struct {
	Status   model.RunStatus         `json:"status"`
	Locator  *model.StorageLocator   `json:"locator,omitempty"`
	Report   *model.StructuredReport `json:"report,omitempty"`
	RecordID int64                   `json:"record_id,omitempty"`
}

// report prints the result as JSON and maps the terminal stage to an exit code.
func report(w io.Writer, res *pipeline.Result) int {
	out := summary{Status: res.Status, Locator: res.Locator, Report: res.Report}
	if res.Record != nil {
		out.RecordID = res.Record.ID
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(out)

	if res.Status.Stage == model.StageFailed {
		return exitFailed
	}
	return exitOK
}
