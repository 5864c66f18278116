package models

import "strings"

// PageType classifies how a page carries its content.
type PageType string

const (
	PageText    PageType = "text"    // usable embedded text layer
	PageScanned PageType = "scanned" // image only, needs OCR
	PageUnknown PageType = "unknown" // page could not be read at all
)

// ExtractionMethod records which extractor produced a page's tables.
type ExtractionMethod string

const (
	MethodVector ExtractionMethod = "vector" // geometric text-layout analysis
	MethodRaster ExtractionMethod = "raster" // rasterize + OCR
	MethodNone   ExtractionMethod = "none"   // nothing attempted succeeded
)

// Table is one detected table: row-major cell text, padded rectangular.
type Table struct {
	Rows       [][]string `json:"rows"`
	Confidence float64    `json:"confidence"`
}

// PageResult is the extraction outcome for a single page. A failed page
// keeps its slot with empty tables and Error set; it never disappears
// from the document result.
type PageResult struct {
	Page       int              `json:"page"` // 1-based
	Type       PageType         `json:"type"`
	Method     ExtractionMethod `json:"method"`
	Tables     []Table          `json:"tables"`
	FullText   string           `json:"fullText,omitempty"`
	Confidence float64          `json:"confidence"`
	Retried    bool             `json:"retried,omitempty"`
	Error      string           `json:"error,omitempty"`
}

// PipelineResult aggregates per-page results for one document: exactly
// one entry per page, in page order.
type PipelineResult struct {
	Pages []PageResult `json:"pages"`
}

// FullText joins the page texts in page order. Empty pages keep their
// newline so page boundaries stay stable.
func (r *PipelineResult) FullText() string {
	texts := make([]string, len(r.Pages))
	for i, p := range r.Pages {
		texts[i] = p.FullText
	}
	return strings.Join(texts, "\n")
}

// Tables returns all detected tables in page order.
func (r *PipelineResult) Tables() []Table {
	var tables []Table
	for _, p := range r.Pages {
		tables = append(tables, p.Tables...)
	}
	return tables
}

// PipelineStats summarizes how a document's pages were handled.
type PipelineStats struct {
	TotalPages  int `json:"totalPages"`
	VectorPages int `json:"vectorPages"`
	RasterPages int `json:"rasterPages"`
	FailedPages int `json:"failedPages"`
	Retries     int `json:"retries"`
}

// Stats counts pages by outcome.
func (r *PipelineResult) Stats() PipelineStats {
	s := PipelineStats{TotalPages: len(r.Pages)}
	for _, p := range r.Pages {
		if p.Error != "" {
			s.FailedPages++
		}
		if p.Retried {
			s.Retries++
		}
		switch p.Method {
		case MethodVector:
			s.VectorPages++
		case MethodRaster:
			if p.Error == "" {
				s.RasterPages++
			}
		}
	}
	return s
}
