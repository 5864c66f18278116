// Package service runs statement processing in the background: a
// polling worker that claims pending statements and drives them
// through extraction, parsing and storage, plus a cron job that
// requeues runs lost to a dead worker.
package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/insightdelivered/statement-ingest/internal/metrics"
	"github.com/insightdelivered/statement-ingest/internal/models"
	"github.com/insightdelivered/statement-ingest/internal/parser"
)

// Pipeline extracts a document's pages. *extractor.Pipeline satisfies
// it; tests substitute fakes.
type Pipeline interface {
	Process(ctx context.Context, path string, onPage func(done, total int)) (*models.PipelineResult, error)
}

// Store is the slice of store.Store the processor needs.
type Store interface {
	ClaimNextPending(ctx context.Context) (*models.Statement, error)
	SetStatementProgress(ctx context.Context, id int64, progress int) error
	ReplaceTransactions(ctx context.Context, statementID int64, txns []models.Transaction) (int64, error)
	CompleteStatement(ctx context.Context, id int64, ocrText string) error
	FailStatement(ctx context.Context, id int64) error
}

// Config tunes the worker loop.
type Config struct {
	PollInterval     time.Duration
	StatementTimeout time.Duration
	DefaultCurrency  string
}

// Processor polls for pending statements and processes them one at a
// time. Concurrency across replicas comes from the claim query's SKIP
// LOCKED, not from goroutines here; page-level parallelism lives in
// the extraction pipeline.
type Processor struct {
	store    Store
	pipeline Pipeline
	parser   *parser.Parser
	cfg      Config
	log      *slog.Logger

	stop chan struct{}
	done chan struct{}
}

// NewProcessor wires a worker; call Start to begin polling.
func NewProcessor(store Store, pipeline Pipeline, p *parser.Parser, cfg Config, log *slog.Logger) *Processor {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 2 * time.Second
	}
	if cfg.StatementTimeout <= 0 {
		cfg.StatementTimeout = 5 * time.Minute
	}
	return &Processor{
		store:    store,
		pipeline: pipeline,
		parser:   p,
		cfg:      cfg,
		log:      log,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start launches the poll loop.
func (p *Processor) Start() {
	p.log.Info("statement processor started", "poll_interval", p.cfg.PollInterval)
	go p.run()
}

// Stop ends the loop and waits for an in-flight statement to finish.
func (p *Processor) Stop() {
	close(p.stop)
	<-p.done
	p.log.Info("statement processor stopped")
}

func (p *Processor) run() {
	defer close(p.done)
	ticker := time.NewTicker(p.cfg.PollInterval)
	defer ticker.Stop()

	for {
		// Drain the queue before going back to sleep.
		for p.processNext() {
			select {
			case <-p.stop:
				return
			default:
			}
		}
		select {
		case <-p.stop:
			return
		case <-ticker.C:
		}
	}
}

// processNext claims and processes one statement. Returns false when
// the queue is empty or the claim failed, so the loop sleeps.
func (p *Processor) processNext() bool {
	ctx, cancel := context.WithTimeout(context.Background(), p.cfg.StatementTimeout)
	defer cancel()

	st, err := p.store.ClaimNextPending(ctx)
	if err != nil {
		p.log.Error("failed to claim statement", "error", err)
		return false
	}
	if st == nil {
		return false
	}
	p.process(ctx, st)
	return true
}

// process drives one claimed statement through the stages. Progress
// moves 10 -> 40 across extraction, 70 after parsing, 95 after the
// transactions land, and 100 on completion; a fatal error resets it
// to 0 with status failed.
func (p *Processor) process(ctx context.Context, st *models.Statement) {
	start := time.Now()
	log := p.log.With("statement_id", st.ID, "file", st.FilePath)
	log.Info("processing statement")

	result, err := p.pipeline.Process(ctx, st.FilePath, func(done, total int) {
		if total == 0 {
			return
		}
		p.setProgress(ctx, st.ID, 10+30*done/total)
	})
	if err != nil {
		p.fail(log, st.ID, "extraction failed", err)
		return
	}

	stats := result.Stats()
	metrics.PagesFailed.Add(float64(stats.FailedPages))
	metrics.RasterFallbacks.Add(float64(stats.Retries))

	parsed := p.parser.Parse(result, parser.Options{
		YearHint:        st.UploadedAt.Year(),
		DefaultCurrency: p.cfg.DefaultCurrency,
	})
	metrics.RowsDropped.Add(float64(parsed.Stats.RowsDropped))
	p.setProgress(ctx, st.ID, 70)

	if _, err := p.store.ReplaceTransactions(ctx, st.ID, parsed.Transactions); err != nil {
		p.fail(log, st.ID, "storing transactions failed", err)
		return
	}
	p.setProgress(ctx, st.ID, 95)

	if err := p.store.CompleteStatement(ctx, st.ID, result.FullText()); err != nil {
		p.fail(log, st.ID, "finalizing statement failed", err)
		return
	}

	metrics.StatementsProcessed.WithLabelValues(models.StatusCompleted).Inc()
	metrics.ProcessingSeconds.Observe(time.Since(start).Seconds())
	log.Info("statement completed",
		"transactions", len(parsed.Transactions),
		"pages", stats.TotalPages,
		"failed_pages", stats.FailedPages,
		"raster_fallbacks", stats.Retries,
		"dropped_rows", parsed.Stats.RowsDropped,
		"duration", time.Since(start))
}

func (p *Processor) setProgress(ctx context.Context, id int64, progress int) {
	if err := p.store.SetStatementProgress(ctx, id, progress); err != nil {
		p.log.Warn("failed to update progress", "statement_id", id, "error", err)
	}
}

// fail marks the statement failed on a fresh context, so the write
// still lands when the run died of a timeout.
func (p *Processor) fail(log *slog.Logger, id int64, msg string, err error) {
	log.Error(msg, "error", err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if ferr := p.store.FailStatement(ctx, id); ferr != nil {
		log.Error("failed to mark statement failed", "error", ferr)
	}
	metrics.StatementsProcessed.WithLabelValues(models.StatusFailed).Inc()
}
