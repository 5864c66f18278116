package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/insightdelivered/statement-ingest/internal/api"
	"github.com/insightdelivered/statement-ingest/internal/config"
	"github.com/insightdelivered/statement-ingest/internal/extractor"
	"github.com/insightdelivered/statement-ingest/internal/parser"
	"github.com/insightdelivered/statement-ingest/internal/service"
	"github.com/insightdelivered/statement-ingest/internal/store"
	"github.com/insightdelivered/statement-ingest/internal/writer"
)

const version = "1.0.0"

func main() {
	// CLI flags
	yearFlag := flag.Int("year", 0, "Statement year for resolving partial dates like 15/05 (convert mode; defaults to the current year)")
	outputFlag := flag.String("output", "", "Output JSON file path (convert mode; defaults to input filename with .json extension)")
	versionFlag := flag.Bool("version", false, "Print version and exit")
	helpFlag := flag.Bool("help", false, "Show usage help")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, `Bank Statement Ingestion Service
by Insight Delivered

Extracts transactions from bank statement PDFs. Digital statements go
through text-layout analysis, scanned ones through rasterization and
OCR. Without arguments it runs the REST service: uploads, background
processing, PostgreSQL storage. Given PDF paths it converts them to
JSON locally, no database needed.

Usage:
  statement-ingest                                  # run the service
  statement-ingest [flags] <input.pdf> [input2.pdf ...]

Flags:
`)
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, `
Examples:
  # Serve the API (configuration via environment / .env)
  statement-ingest

  # Convert a statement to JSON next to the input
  statement-ingest statement.pdf

  # Resolve partial dates like "15/05" against a specific year
  statement-ingest -year 2023 -output may.json statement.pdf

  # Convert multiple files
  statement-ingest jan.pdf feb.pdf mar.pdf
`)
	}

	flag.Parse()

	if *versionFlag {
		fmt.Printf("statement-ingest v%s\n", version)
		os.Exit(0)
	}

	if *helpFlag {
		flag.Usage()
		os.Exit(0)
	}

	cfg, err := config.Load()
	if err != nil {
		fatalf("Configuration error: %v\n", err)
	}

	if flag.NArg() == 0 {
		serve(cfg)
		return
	}

	for _, inputPath := range flag.Args() {
		if err := convertFile(cfg, inputPath, *yearFlag, *outputFlag); err != nil {
			fmt.Fprintf(os.Stderr, "Error processing %s: %v\n", inputPath, err)
			os.Exit(1)
		}
	}
}

// serve runs the REST API, the background processor and the requeue
// scheduler until SIGINT/SIGTERM.
func serve(cfg *config.Config) {
	log := cfg.Logging.NewLogger()
	slog.SetDefault(log)

	ctx := context.Background()
	pool, err := connect(ctx, cfg.Database.DSN(), log)
	if err != nil {
		fatalf("Database connection failed: %v\n", err)
	}
	defer pool.Close()

	st := store.New(pool)
	if err := st.EnsureSchema(ctx); err != nil {
		fatalf("Schema setup failed: %v\n", err)
	}

	if err := os.MkdirAll(cfg.Uploads.Dir, 0o755); err != nil {
		fatalf("Upload directory setup failed: %v\n", err)
	}

	processor := service.NewProcessor(st, buildPipeline(cfg, log), parser.New(log),
		service.Config{
			PollInterval:     cfg.Worker.PollInterval,
			StatementTimeout: cfg.Worker.StatementTimeout,
			DefaultCurrency:  cfg.Parser.DefaultCurrency,
		}, log)
	processor.Start()

	scheduler := service.NewScheduler(st, cfg.Worker.RequeueAfter, log)
	if err := scheduler.Start(); err != nil {
		fatalf("Scheduler start failed: %v\n", err)
	}

	app := api.New(api.Config{
		UploadDir:      cfg.Uploads.Dir,
		MaxUploadBytes: int64(cfg.Uploads.MaxMB) << 20,
		Version:        version,
	}, st, log)

	go func() {
		addr := fmt.Sprintf(":%d", cfg.Server.Port)
		log.Info("listening", "addr", addr, "upload_dir", cfg.Uploads.Dir)
		if err := app.Listen(addr); err != nil {
			log.Error("server stopped", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("shutting down")

	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		log.Warn("server shutdown", "error", err)
	}
	processor.Stop()
	<-scheduler.Stop().Done()
}

// connect opens the pool and pings until the database answers; on a
// fresh deployment Postgres often comes up after the service.
func connect(ctx context.Context, dsn string, log *slog.Logger) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}

	for attempt := 1; ; attempt++ {
		pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		err = pool.Ping(pingCtx)
		cancel()
		if err == nil {
			return pool, nil
		}
		if attempt >= 5 {
			pool.Close()
			return nil, err
		}
		log.Warn("database not ready, retrying", "attempt", attempt, "error", err)
		time.Sleep(2 * time.Second)
	}
}

func buildPipeline(cfg *config.Config, log *slog.Logger) *extractor.Pipeline {
	rz := &extractor.Rasterizer{Budget: extractor.RasterBudget{
		MaxPixels:  cfg.Raster.MaxPixels,
		MaxDPI:     cfg.Raster.MaxDPI,
		DefaultDPI: cfg.Raster.DefaultDPI,
	}}
	raster := extractor.NewRasterExtractor(rz, extractor.OCRConfig{
		Language:          cfg.OCR.Language,
		MinWordConfidence: cfg.OCR.MinWordConfidence,
	})
	vector := extractor.NewVectorExtractor(cfg.Pipeline.MinTableConfidence)
	return extractor.NewPipeline(vector, raster, cfg.Pipeline.Workers, log)
}

// convertFile runs the extraction pipeline and parser on one PDF and
// writes the transactions as JSON.
func convertFile(cfg *config.Config, inputPath string, year int, outputPath string) error {
	if _, err := os.Stat(inputPath); os.IsNotExist(err) {
		return fmt.Errorf("input file not found: %s", inputPath)
	}
	if ext := strings.ToLower(filepath.Ext(inputPath)); ext != ".pdf" {
		return fmt.Errorf("expected .pdf file, got %q", ext)
	}

	fmt.Printf("Processing: %s\n", inputPath)

	log := cfg.Logging.NewLogger()
	pipeline := buildPipeline(cfg, log)

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Worker.StatementTimeout)
	defer cancel()

	result, err := pipeline.Process(ctx, inputPath, nil)
	if err != nil {
		return fmt.Errorf("extraction failed: %w", err)
	}

	stats := result.Stats()
	fmt.Printf("  Extracted %d page(s): %d vector, %d raster, %d failed\n",
		stats.TotalPages, stats.VectorPages, stats.RasterPages, stats.FailedPages)
	for _, pg := range result.Pages {
		outcome := fmt.Sprintf("%d table(s)", len(pg.Tables))
		if pg.Error != "" {
			outcome = "failed"
		}
		retried := ""
		if pg.Retried {
			retried = ", retried"
		}
		fmt.Printf("    page %d: %s via %s%s, %s\n", pg.Page, pg.Type, pg.Method, retried, outcome)
	}

	if year == 0 {
		year = time.Now().Year()
	}
	parsed := parser.New(log).Parse(result, parser.Options{
		YearHint:        year,
		DefaultCurrency: cfg.Parser.DefaultCurrency,
	})

	fmt.Printf("  Found %d transaction(s)\n", len(parsed.Transactions))
	if parsed.Stats.RowsDropped > 0 {
		fmt.Printf("  Warning: %d row(s) could not be parsed and were dropped\n", parsed.Stats.RowsDropped)
	}
	if len(parsed.Transactions) == 0 {
		fmt.Println("  Warning: No transactions found. The statement layout may not be supported.")
	}

	outPath := outputPath
	if outPath == "" {
		outPath = strings.TrimSuffix(inputPath, filepath.Ext(inputPath)) + ".json"
	}

	w := &writer.JSONWriter{Indent: true}
	if err := w.WriteToFile(outPath, writer.NewOutput(filepath.Base(inputPath), stats, parsed)); err != nil {
		return fmt.Errorf("JSON write failed: %w", err)
	}

	fmt.Printf("  Output: %s\n", outPath)
	fmt.Println("  Done.")
	return nil
}

func fatalf(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, format, args...)
	os.Exit(1)
}
