package extractor

import (
	"image"
	"image/color"
	"reflect"
	"testing"
)

func word(text string, x0, y0, x1, y1 int, conf float64) Word {
	return Word{Text: text, Box: image.Rect(x0, y0, x1, y1), Confidence: conf}
}

func TestClusterWordRows(t *testing.T) {
	words := []Word{
		word("12.50", 500, 158, 560, 178, 90),
		word("Date", 10, 100, 50, 120, 95),
		word("TESCO", 200, 162, 280, 182, 88),
		word("Description", 200, 100, 330, 120, 93),
		word("Amount", 500, 101, 580, 121, 91),
		word("01/02/2024", 10, 160, 130, 180, 92),
	}
	rows := clusterWordRows(words, 10)
	want := [][]string{
		{"Date", "Description", "Amount"},
		{"01/02/2024", "TESCO", "12.50"},
	}
	if !reflect.DeepEqual(rows, want) {
		t.Errorf("clusterWordRows = %v, want %v", rows, want)
	}
}

func TestClusterWordRowsMergesCellWords(t *testing.T) {
	words := []Word{
		word("CARD", 200, 100, 260, 120, 90),
		word("PAYMENT", 270, 100, 380, 120, 90),
		word("01/02", 10, 102, 70, 122, 90),
		word("12.50", 500, 100, 560, 120, 90),
		word("SALARY", 200, 160, 300, 180, 90),
		word("02/02", 10, 160, 70, 180, 90),
		word("2,500.00", 480, 160, 580, 180, 90),
	}
	rows := clusterWordRows(words, 10)
	want := [][]string{
		{"01/02", "CARD PAYMENT", "12.50"},
		{"02/02", "SALARY", "2,500.00"},
	}
	if !reflect.DeepEqual(rows, want) {
		t.Errorf("clusterWordRows = %v, want %v", rows, want)
	}
}

func TestClusterWordRowsPadsShortRows(t *testing.T) {
	words := []Word{
		word("Date", 10, 100, 50, 120, 90),
		word("Amount", 500, 100, 580, 120, 90),
		word("Totals", 10, 160, 80, 180, 90),
	}
	rows := clusterWordRows(words, 10)
	if len(rows) != 2 {
		t.Fatalf("got %d rows, want 2", len(rows))
	}
	if len(rows[1]) != 2 || rows[1][1] != "" {
		t.Errorf("short row not padded: %v", rows[1])
	}
}

func TestDropEmpty(t *testing.T) {
	rows := [][]string{
		{"Date", "", "Amount"},
		{"", "", ""},
		{"01/02", "", "12.50"},
	}
	got := dropEmpty(rows)
	want := [][]string{
		{"Date", "Amount"},
		{"01/02", "12.50"},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("dropEmpty = %v, want %v", got, want)
	}
}

// gridImage draws a white page with full-span ruled lines.
func gridImage(w, h int, xs, ys []int) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, w, h))
	for i := range img.Pix {
		img.Pix[i] = 255
	}
	for _, y := range ys {
		for x := 0; x < w; x++ {
			img.SetGray(x, y, color.Gray{Y: 0})
		}
	}
	for _, x := range xs {
		for y := 0; y < h; y++ {
			img.SetGray(x, y, color.Gray{Y: 0})
		}
	}
	return img
}

func TestDetectRuledGrid(t *testing.T) {
	img := gridImage(200, 200, []int{10, 80, 150}, []int{10, 60, 110, 160})
	grid := detectRuledGrid(img)
	if grid == nil {
		t.Fatal("detectRuledGrid returned nil for a ruled page")
	}
	if len(grid.xs) != 3 || len(grid.ys) != 4 {
		t.Errorf("grid = %d vertical, %d horizontal rules, want 3 and 4", len(grid.xs), len(grid.ys))
	}
}

func TestDetectRuledGridRejectsPlainPage(t *testing.T) {
	img := gridImage(200, 200, nil, []int{10})
	if grid := detectRuledGrid(img); grid != nil {
		t.Errorf("detectRuledGrid = %+v, want nil for a page with one line", grid)
	}
}

func TestRuledGridAssign(t *testing.T) {
	grid := &ruledGrid{xs: []int{10, 80, 150}, ys: []int{10, 60, 110, 160}}
	words := []Word{
		word("Date", 20, 20, 60, 40, 90),
		word("Amount", 90, 20, 140, 40, 90),
		word("01/02", 20, 70, 60, 90, 90),
		word("12.50", 90, 70, 140, 90, 90),
		word("footer", 20, 170, 60, 190, 90), // below the grid, dropped
	}
	rows := grid.assign(words)
	if len(rows) != 3 || len(rows[0]) != 2 {
		t.Fatalf("assign produced %dx%d grid, want 3x2", len(rows), len(rows[0]))
	}
	if rows[0][0] != "Date" || rows[0][1] != "Amount" {
		t.Errorf("header row = %v", rows[0])
	}
	if rows[1][0] != "01/02" || rows[1][1] != "12.50" {
		t.Errorf("data row = %v", rows[1])
	}
	for _, cell := range rows[2] {
		if cell != "" {
			t.Errorf("footer leaked into the grid: %v", rows[2])
		}
	}
}

func TestLinePositionsMergesAdjacentRuns(t *testing.T) {
	counts := make([]int, 40)
	// a 2px anti-aliased line at 10-11 and a clean one at 30
	counts[10], counts[11], counts[30] = 100, 100, 100
	got := linePositions(counts, 50)
	if len(got) != 2 {
		t.Fatalf("linePositions = %v, want 2 positions", got)
	}
	if got[0] != 10 || got[1] != 30 {
		t.Errorf("positions = %v, want [10 30]", got)
	}
}

func TestCellGapPx(t *testing.T) {
	words := []Word{
		word("a", 0, 0, 10, 20, 90),
		word("b", 0, 0, 10, 24, 90),
		word("c", 0, 0, 10, 22, 90),
	}
	if got := cellGapPx(words); got != 44 {
		t.Errorf("cellGapPx = %d, want 44 (2x median height)", got)
	}
	if got := cellGapPx(nil); got != 16 {
		t.Errorf("cellGapPx(nil) = %d, want floor 16", got)
	}
}

func TestMeanWordConfidence(t *testing.T) {
	words := []Word{
		word("a", 0, 0, 1, 1, 80),
		word("b", 0, 0, 1, 1, 90),
	}
	if got := meanWordConfidence(words); got != 0.85 {
		t.Errorf("meanWordConfidence = %v, want 0.85", got)
	}
}
