package extractor

import (
	"context"
	"image"
	"sort"
	"strings"

	"github.com/insightdelivered/statement-ingest/internal/models"
)

// RasterExtractor recovers tables from page images: a ruled-line grid
// when the statement draws its table, OCR word clustering when it does
// not.
type RasterExtractor struct {
	Rasterizer   *Rasterizer
	OCR          OCRConfig
	RowTolerance int // px, word top grouping in the clustering fallback
}

// NewRasterExtractor wires a rasterizer and OCR settings with the
// default row tolerance.
func NewRasterExtractor(r *Rasterizer, ocr OCRConfig) *RasterExtractor {
	return &RasterExtractor{Rasterizer: r, OCR: ocr, RowTolerance: 10}
}

// Extract renders one page, recognizes it, and reconstructs any table.
// Failures come back as ExtractionError. A page with no confident words
// is not an error, just an empty result with whatever text OCR found.
func (e *RasterExtractor) Extract(ctx context.Context, path string, page int) ([]models.Table, string, error) {
	img, err := e.Rasterizer.Render(ctx, path, page)
	if err != nil {
		return nil, "", &ExtractionError{Page: page, Method: "raster", Err: err}
	}
	text, words, err := RecognizePage(img, e.OCR)
	if err != nil {
		return nil, "", &ExtractionError{Page: page, Method: "raster", Err: err}
	}
	if len(words) == 0 {
		return nil, text, nil
	}

	var rows [][]string
	if grid := detectRuledGrid(img); grid != nil {
		rows = grid.assign(words)
	} else {
		rows = clusterWordRows(words, e.RowTolerance)
	}
	rows = dropEmpty(rows)
	if len(rows) < 2 {
		return nil, text, nil
	}
	table := models.Table{Rows: rows, Confidence: meanWordConfidence(words)}
	return []models.Table{table}, text, nil
}

// Grid detection thresholds. A rule must be dark and span at least half
// the page dimension; runs separated by a couple of anti-aliased pixels
// collapse into one rule.
const (
	darkLuma     = 128
	lineCoverage = 0.5
	lineMergePx  = 3
	minGridLines = 3 // per axis, at least a 2x2 cell grid
)

// ruledGrid holds detected rule positions in pixels, ascending.
type ruledGrid struct {
	xs []int // vertical rules
	ys []int // horizontal rules
}

// detectRuledGrid scans the image for long straight dark runs. Returns
// nil when the page has no drawn table.
func detectRuledGrid(img image.Image) *ruledGrid {
	buf, w, h := grayscale(img)
	if w == 0 || h == 0 {
		return nil
	}

	rowDark := make([]int, h)
	colDark := make([]int, w)
	for y := 0; y < h; y++ {
		base := y * w
		for x := 0; x < w; x++ {
			if buf[base+x] < darkLuma {
				rowDark[y]++
				colDark[x]++
			}
		}
	}

	ys := linePositions(rowDark, int(float64(w)*lineCoverage))
	xs := linePositions(colDark, int(float64(h)*lineCoverage))
	if len(ys) < minGridLines || len(xs) < minGridLines {
		return nil
	}
	return &ruledGrid{xs: xs, ys: ys}
}

// grayscale flattens the image into a row-major luma buffer once; the
// grid scan touches every pixel and interface calls per pixel are too
// slow at 300 DPI.
func grayscale(img image.Image) ([]uint8, int, int) {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	buf := make([]uint8, w*h)

	switch im := img.(type) {
	case *image.Gray:
		for y := 0; y < h; y++ {
			copy(buf[y*w:(y+1)*w], im.Pix[im.PixOffset(b.Min.X, b.Min.Y+y):])
		}
	case *image.RGBA:
		for y := 0; y < h; y++ {
			row := im.Pix[im.PixOffset(b.Min.X, b.Min.Y+y):]
			for x := 0; x < w; x++ {
				p := row[x*4 : x*4+3]
				buf[y*w+x] = uint8((299*int(p[0]) + 587*int(p[1]) + 114*int(p[2])) / 1000)
			}
		}
	case *image.NRGBA:
		for y := 0; y < h; y++ {
			row := im.Pix[im.PixOffset(b.Min.X, b.Min.Y+y):]
			for x := 0; x < w; x++ {
				p := row[x*4 : x*4+3]
				buf[y*w+x] = uint8((299*int(p[0]) + 587*int(p[1]) + 114*int(p[2])) / 1000)
			}
		}
	default:
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				r, g, bl, _ := img.At(b.Min.X+x, b.Min.Y+y).RGBA()
				buf[y*w+x] = uint8((299*(r>>8) + 587*(g>>8) + 114*(bl>>8)) / 1000)
			}
		}
	}
	return buf, w, h
}

// linePositions returns the centers of maximal runs of scanlines whose
// dark-pixel count clears the threshold.
func linePositions(counts []int, threshold int) []int {
	var positions []int
	runStart, lastHit := -1, -1
	flush := func() {
		if runStart >= 0 {
			positions = append(positions, (runStart+lastHit)/2)
		}
		runStart = -1
	}
	for i, c := range counts {
		if c >= threshold {
			if runStart < 0 {
				runStart = i
			}
			lastHit = i
			continue
		}
		if runStart >= 0 && i-lastHit > lineMergePx {
			flush()
		}
	}
	flush()
	return positions
}

// assign places words into the cells between rules by box center. Words
// outside the grid area are dropped; captions and footers around the
// table do not belong to it.
func (g *ruledGrid) assign(words []Word) [][]string {
	nRows := len(g.ys) - 1
	nCols := len(g.xs) - 1
	cells := make([][][]Word, nRows)
	for i := range cells {
		cells[i] = make([][]Word, nCols)
	}

	for _, w := range words {
		cx := (w.Box.Min.X + w.Box.Max.X) / 2
		cy := (w.Box.Min.Y + w.Box.Max.Y) / 2
		ri := sort.SearchInts(g.ys, cy) - 1
		ci := sort.SearchInts(g.xs, cx) - 1
		if ri < 0 || ri >= nRows || ci < 0 || ci >= nCols {
			continue
		}
		cells[ri][ci] = append(cells[ri][ci], w)
	}

	rows := make([][]string, nRows)
	for ri := range rows {
		rows[ri] = make([]string, nCols)
		for ci := range rows[ri] {
			ws := cells[ri][ci]
			sort.Slice(ws, func(a, b int) bool { return ws[a].Box.Min.X < ws[b].Box.Min.X })
			parts := make([]string, len(ws))
			for k, w := range ws {
				parts[k] = w.Text
			}
			rows[ri][ci] = strings.Join(parts, " ")
		}
	}
	return rows
}

// clusterWordRows rebuilds rows from word boxes alone. One pass over
// words sorted by top: a word joins the current row when its top is
// within tolerance of the row's first word. Rows then split into cells
// on wide horizontal gaps and pad to the widest row.
func clusterWordRows(words []Word, rowTol int) [][]string {
	sorted := append([]Word(nil), words...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Box.Min.Y < sorted[j].Box.Min.Y })

	var rows [][]Word
	rowTop := 0
	for _, w := range sorted {
		top := w.Box.Min.Y
		if len(rows) == 0 || top-rowTop > rowTol {
			rows = append(rows, nil)
			rowTop = top
		}
		rows[len(rows)-1] = append(rows[len(rows)-1], w)
	}

	gap := cellGapPx(sorted)
	out := make([][]string, 0, len(rows))
	maxCols := 0
	for _, row := range rows {
		sort.Slice(row, func(i, j int) bool { return row[i].Box.Min.X < row[j].Box.Min.X })
		var cells []string
		var cell []string
		lastEnd := 0
		for i, w := range row {
			if i > 0 && w.Box.Min.X-lastEnd > gap {
				cells = append(cells, strings.Join(cell, " "))
				cell = cell[:0]
			}
			cell = append(cell, w.Text)
			if w.Box.Max.X > lastEnd {
				lastEnd = w.Box.Max.X
			}
		}
		if len(cell) > 0 {
			cells = append(cells, strings.Join(cell, " "))
		}
		if len(cells) > maxCols {
			maxCols = len(cells)
		}
		out = append(out, cells)
	}

	for i, row := range out {
		for len(row) < maxCols {
			row = append(row, "")
		}
		out[i] = row
	}
	return out
}

// cellGapPx derives the horizontal gap that separates columns from the
// median word height, which tracks the rendered font size across DPI.
func cellGapPx(words []Word) int {
	if len(words) == 0 {
		return 16
	}
	heights := make([]int, len(words))
	for i, w := range words {
		heights[i] = w.Box.Dy()
	}
	sort.Ints(heights)
	gap := 2 * heights[len(heights)/2]
	if gap < 16 {
		gap = 16
	}
	return gap
}

// dropEmpty removes all-empty rows and columns left behind by padding
// and grid assignment.
func dropEmpty(rows [][]string) [][]string {
	var kept [][]string
	for _, row := range rows {
		for _, c := range row {
			if strings.TrimSpace(c) != "" {
				kept = append(kept, row)
				break
			}
		}
	}
	if len(kept) == 0 {
		return nil
	}

	nCols := 0
	for _, row := range kept {
		if len(row) > nCols {
			nCols = len(row)
		}
	}
	colHas := make([]bool, nCols)
	for _, row := range kept {
		for i, c := range row {
			if strings.TrimSpace(c) != "" {
				colHas[i] = true
			}
		}
	}

	out := make([][]string, 0, len(kept))
	for _, row := range kept {
		var r []string
		for i := 0; i < nCols; i++ {
			if !colHas[i] {
				continue
			}
			if i < len(row) {
				r = append(r, row[i])
			} else {
				r = append(r, "")
			}
		}
		out = append(out, r)
	}
	return out
}

func meanWordConfidence(words []Word) float64 {
	if len(words) == 0 {
		return 0
	}
	sum := 0.0
	for _, w := range words {
		sum += w.Confidence
	}
	return sum / float64(len(words)) / 100
}
