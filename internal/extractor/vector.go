package extractor

import (
	"errors"
	"math"
	"sort"
	"strings"

	"github.com/insightdelivered/statement-ingest/internal/models"
)

// VectorExtractor detects tables in the positioned text layer. Rows come
// from baseline clustering, columns from vertical whitespace channels,
// so left-, right- and center-aligned columns all resolve.
type VectorExtractor struct {
	MinRows       int
	MinCols       int
	MinConfidence float64
	RowTolerance  float64 // pts, baseline clustering
	ColTolerance  float64 // pts, edge alignment when scoring
	MinColumnGap  float64 // pts, narrowest gap that can separate columns
	BlockGap      float64 // pts, vertical gap separating text blocks
}

// NewVectorExtractor returns an extractor with tolerances tuned for
// statement layouts at normal font sizes.
func NewVectorExtractor(minConfidence float64) *VectorExtractor {
	return &VectorExtractor{
		MinRows:       2,
		MinCols:       2,
		MinConfidence: minConfidence,
		RowTolerance:  3.0,
		ColTolerance:  5.0,
		MinColumnGap:  10.0,
		BlockGap:      50.0,
	}
}

// Extract detects tables on one page. It returns ExtractionError when
// the text layer is unusable or nothing clears the confidence bar; the
// pipeline answers that with the raster fallback.
func (e *VectorExtractor) Extract(pageNum int, frags []Fragment) ([]models.Table, error) {
	if len(frags) == 0 {
		return nil, &ExtractionError{Page: pageNum, Method: "vector", Err: errors.New("no text fragments")}
	}
	if !hasReadableText(frags) {
		return nil, &ExtractionError{Page: pageNum, Method: "vector", Err: errors.New("unreadable text layer")}
	}

	var tables []models.Table
	for _, block := range splitBlocks(frags, e.BlockGap) {
		if t, ok := e.detectTable(block); ok && t.Confidence >= e.MinConfidence {
			tables = append(tables, t)
		}
	}
	if len(tables) == 0 {
		return nil, &ExtractionError{Page: pageNum, Method: "vector", Err: errors.New("no table above confidence threshold")}
	}
	return tables, nil
}

// splitBlocks separates vertically distant text groups so page headers
// and footers do not fold into the transaction grid. Blocks come back
// top to bottom.
func splitBlocks(frags []Fragment, gap float64) [][]Fragment {
	sorted := append([]Fragment(nil), frags...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Y > sorted[j].Y })

	var blocks [][]Fragment
	var cur []Fragment
	for _, f := range sorted {
		if len(cur) > 0 && cur[len(cur)-1].Y-f.Y > gap {
			blocks = append(blocks, cur)
			cur = nil
		}
		cur = append(cur, f)
	}
	if len(cur) > 0 {
		blocks = append(blocks, cur)
	}
	return blocks
}

// fragRows clusters fragments into rows by baseline, anchored on the
// first fragment of each row. Rows come back top to bottom, fragments
// within a row left to right.
func fragRows(frags []Fragment, tol float64) [][]Fragment {
	sorted := append([]Fragment(nil), frags...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Y > sorted[j].Y })

	var rows [][]Fragment
	var rowY float64
	for _, f := range sorted {
		if len(rows) == 0 || rowY-f.Y > tol {
			rows = append(rows, nil)
			rowY = f.Y
		}
		rows[len(rows)-1] = append(rows[len(rows)-1], f)
	}
	for _, row := range rows {
		sort.Slice(row, func(i, j int) bool { return row[i].X < row[j].X })
	}
	return rows
}

// detectColumns finds vertical whitespace channels that stay open across
// most of the rows they span. Each channel center becomes a column
// separator.
func detectColumns(rows [][]Fragment, minGap float64) []float64 {
	const bucket = 2.0
	const openRatio = 0.8

	minX, maxX := math.Inf(1), math.Inf(-1)
	for _, row := range rows {
		if len(row) == 0 {
			continue
		}
		if row[0].X < minX {
			minX = row[0].X
		}
		last := row[len(row)-1]
		if end := last.X + last.W; end > maxX {
			maxX = end
		}
	}
	if maxX <= minX {
		return nil
	}

	n := int((maxX-minX)/bucket) + 1
	open := make([]int, n)
	covering := make([]int, n)
	for _, row := range rows {
		if len(row) == 0 {
			continue
		}
		rowStart := row[0].X
		last := row[len(row)-1]
		rowEnd := last.X + last.W
		for i := 0; i < n; i++ {
			x := minX + (float64(i)+0.5)*bucket
			if x < rowStart || x > rowEnd {
				continue
			}
			covering[i]++
			if inRowGap(row, x, minGap) {
				open[i]++
			}
		}
	}

	var seps []float64
	runStart := -1
	flush := func(end int) {
		if runStart >= 0 {
			mid := (float64(runStart) + float64(end)) / 2
			seps = append(seps, minX+mid*bucket)
		}
		runStart = -1
	}
	for i := 0; i < n; i++ {
		ok := covering[i] >= 2 && float64(open[i]) >= openRatio*float64(covering[i])
		if ok && runStart < 0 {
			runStart = i
		}
		if !ok {
			flush(i)
		}
	}
	flush(n)
	return seps
}

// inRowGap reports whether x falls inside an inter-fragment gap of at
// least minGap within the row.
func inRowGap(row []Fragment, x, minGap float64) bool {
	for i := 1; i < len(row); i++ {
		gapStart := row[i-1].X + row[i-1].W
		gapEnd := row[i].X
		if gapEnd-gapStart >= minGap && x > gapStart && x < gapEnd {
			return true
		}
	}
	return false
}

// buildCells assigns each row's fragments to the columns the separators
// define; fragments route by horizontal center.
func buildCells(rows [][]Fragment, seps []float64) [][]string {
	nCols := len(seps) + 1
	grid := make([][]string, 0, len(rows))
	for _, row := range rows {
		words := make([][]string, nCols)
		for _, f := range row {
			ci := sort.SearchFloat64s(seps, f.X+f.W/2)
			words[ci] = append(words[ci], f.Text)
		}
		cells := make([]string, nCols)
		for i, ws := range words {
			cells[i] = strings.Join(ws, " ")
		}
		grid = append(grid, cells)
	}
	return grid
}

func (e *VectorExtractor) detectTable(block []Fragment) (models.Table, bool) {
	if len(block) < e.MinRows*e.MinCols {
		return models.Table{}, false
	}
	rows := fragRows(block, e.RowTolerance)
	if len(rows) < e.MinRows {
		return models.Table{}, false
	}
	seps := detectColumns(rows, e.MinColumnGap)
	if len(seps)+1 < e.MinCols {
		return models.Table{}, false
	}
	cells := buildCells(rows, seps)
	conf := 0.4*spacingRegularity(rows) +
		0.4*columnAlignment(rows, seps, e.ColTolerance) +
		0.2*occupancy(cells)
	return models.Table{Rows: cells, Confidence: conf}, true
}

// spacingRegularity measures how evenly rows are spaced: 1 is perfectly
// periodic, 0 is chaotic. Tables keep a steady leading; prose with
// headings and wrapped lines does not.
func spacingRegularity(rows [][]Fragment) float64 {
	if len(rows) < 2 {
		return 0
	}
	centers := make([]float64, len(rows))
	for i, row := range rows {
		sum := 0.0
		for _, f := range row {
			sum += f.Y
		}
		centers[i] = sum / float64(len(row))
	}
	gaps := make([]float64, 0, len(centers)-1)
	for i := 1; i < len(centers); i++ {
		gaps = append(gaps, centers[i-1]-centers[i])
	}
	if len(gaps) < 2 {
		return 1
	}
	mean := 0.0
	for _, g := range gaps {
		mean += g
	}
	mean /= float64(len(gaps))
	if mean <= 0 {
		return 0
	}
	variance := 0.0
	for _, g := range gaps {
		variance += (g - mean) * (g - mean)
	}
	cv := math.Sqrt(variance/float64(len(gaps))) / mean
	return 1 - math.Min(1, cv)
}

// columnAlignment scores how tightly each column's cells align on their
// left or right edge, whichever that column does better on.
func columnAlignment(rows [][]Fragment, seps []float64, tol float64) float64 {
	nCols := len(seps) + 1
	lefts := make([][]float64, nCols)
	rights := make([][]float64, nCols)
	for _, row := range rows {
		byCol := make(map[int][]Fragment)
		for _, f := range row {
			ci := sort.SearchFloat64s(seps, f.X+f.W/2)
			byCol[ci] = append(byCol[ci], f)
		}
		for ci, fs := range byCol {
			last := fs[len(fs)-1]
			lefts[ci] = append(lefts[ci], fs[0].X)
			rights[ci] = append(rights[ci], last.X+last.W)
		}
	}

	sum, n := 0.0, 0
	for ci := 0; ci < nCols; ci++ {
		if len(lefts[ci]) < 2 {
			continue
		}
		sum += math.Max(alignedShare(lefts[ci], tol), alignedShare(rights[ci], tol))
		n++
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}

// alignedShare returns the share of values in the largest cluster.
func alignedShare(values []float64, tol float64) float64 {
	_, sizes := cluster(values, tol)
	best := 0
	for _, s := range sizes {
		if s > best {
			best = s
		}
	}
	return float64(best) / float64(len(values))
}

// occupancy is the share of non-empty cells in the grid.
func occupancy(cells [][]string) float64 {
	total, filled := 0, 0
	for _, row := range cells {
		for _, c := range row {
			total++
			if strings.TrimSpace(c) != "" {
				filled++
			}
		}
	}
	if total == 0 {
		return 0
	}
	return float64(filled) / float64(total)
}

// cluster groups near-equal values; consecutive values within tol chain
// into one cluster represented by its member mean. Centers come back
// ascending with member counts.
func cluster(values []float64, tol float64) (centers []float64, sizes []int) {
	if len(values) == 0 {
		return nil, nil
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)

	var members []float64
	flush := func() {
		if len(members) == 0 {
			return
		}
		sum := 0.0
		for _, m := range members {
			sum += m
		}
		centers = append(centers, sum/float64(len(members)))
		sizes = append(sizes, len(members))
		members = members[:0]
	}
	for _, v := range sorted {
		if len(members) > 0 && v-members[len(members)-1] > tol {
			flush()
		}
		members = append(members, v)
	}
	flush()
	return centers, sizes
}
