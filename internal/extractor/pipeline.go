package extractor

import (
	"context"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/insightdelivered/statement-ingest/internal/models"
)

// Pipeline routes every page to the extractor its content supports:
// vector analysis for text pages, raster OCR for scanned pages, raster
// again as the fallback when the text layer lets a page down.
type Pipeline struct {
	Vector  *VectorExtractor
	Raster  *RasterExtractor
	Workers int
	Log     *slog.Logger
}

// NewPipeline wires the two extractors. workers bounds how many pages
// rasterize concurrently; each raster page owns a render and an OCR
// client, so this is also the memory bound.
func NewPipeline(vector *VectorExtractor, raster *RasterExtractor, workers int, log *slog.Logger) *Pipeline {
	if workers < 1 {
		workers = 1
	}
	if log == nil {
		log = slog.Default()
	}
	return &Pipeline{Vector: vector, Raster: raster, Workers: workers, Log: log}
}

// pageSource yields page fragments for classification and vector
// extraction. Document is the production source.
type pageSource interface {
	NumPages() int
	Fragments(pageNum int) ([]Fragment, error)
}

// Process extracts every page of the document. Failing to open the PDF
// is the only fatal error; anything later is recorded on its page and
// the rest of the document continues. The result holds exactly one entry
// per page, in page order. onPage, when set, is called as each page
// settles.
func (p *Pipeline) Process(ctx context.Context, path string, onPage func(done, total int)) (*models.PipelineResult, error) {
	doc, err := Open(path)
	if err != nil {
		return nil, err
	}
	defer doc.Close()

	return p.processSource(ctx, doc, path, onPage)
}

func (p *Pipeline) processSource(ctx context.Context, doc pageSource, path string, onPage func(done, total int)) (*models.PipelineResult, error) {
	total := doc.NumPages()
	result := &models.PipelineResult{Pages: make([]models.PageResult, total)}

	var mu sync.Mutex
	done := 0
	report := func() {
		mu.Lock()
		done++
		d := done
		mu.Unlock()
		if onPage != nil {
			onPage(d, total)
		}
	}

	// The pdf reader is not safe for concurrent page access, so
	// classification and vector extraction run sequentially. Raster pages
	// are collected and worked in parallel afterwards; they re-read the
	// file through pdftoppm and own their OCR clients.
	type rasterJob struct {
		page    int
		retried bool
	}
	var jobs []rasterJob

	for i := 1; i <= total; i++ {
		pr := models.PageResult{Page: i, Type: models.PageText, Method: models.MethodNone, Tables: []models.Table{}}

		frags, err := doc.Fragments(i)
		if err != nil {
			p.Log.Warn("page unreadable", "page", i, "error", err)
			pr.Type = models.PageUnknown
			pr.Error = err.Error()
			result.Pages[i-1] = pr
			report()
			continue
		}

		if Classify(frags) == models.PageScanned {
			pr.Type = models.PageScanned
			pr.Method = models.MethodRaster
			result.Pages[i-1] = pr
			jobs = append(jobs, rasterJob{page: i})
			continue
		}

		tables, verr := p.Vector.Extract(i, frags)
		if verr == nil {
			pr.Method = models.MethodVector
			pr.Tables = tables
			pr.FullText = ReadingText(frags)
			pr.Confidence = meanTableConfidence(tables)
			result.Pages[i-1] = pr
			report()
			continue
		}

		p.Log.Debug("vector extraction failed, falling back to raster",
			"page", i, "error", verr)
		pr.Method = models.MethodRaster
		pr.Retried = true
		result.Pages[i-1] = pr
		jobs = append(jobs, rasterJob{page: i, retried: true})
	}

	if len(jobs) > 0 {
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(p.Workers)
		for _, job := range jobs {
			g.Go(func() error {
				tables, text, rerr := p.Raster.Extract(gctx, path, job.page)
				pr := &result.Pages[job.page-1]
				if rerr != nil {
					p.Log.Warn("raster extraction failed",
						"page", job.page, "retried", job.retried, "error", rerr)
					pr.Error = rerr.Error()
				} else {
					pr.Tables = tables
					pr.FullText = text
					pr.Confidence = meanTableConfidence(tables)
				}
				report()
				return nil
			})
		}
		_ = g.Wait() // page failures live in the results, not here
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func meanTableConfidence(tables []models.Table) float64 {
	if len(tables) == 0 {
		return 0
	}
	sum := 0.0
	for _, t := range tables {
		sum += t.Confidence
	}
	return sum / float64(len(tables))
}
