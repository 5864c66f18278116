package extractor

import (
	"errors"
	"strings"
	"testing"
)

// statementFrags lays out a small transaction grid in PDF space, one
// fragment per word, rows 14pt apart.
func statementFrags() []Fragment {
	rows := [][]string{
		{"Date", "Description", "Amount", "Balance"},
		{"01/02/2024", "CARD PAYMENT", "-12.50", "987.50"},
		{"02/02/2024", "SALARY", "2,500.00", "3,487.50"},
		{"03/02/2024", "DIRECT DEBIT", "-45.00", "3,442.50"},
	}
	cols := []float64{72, 150, 330, 420}
	var frags []Fragment
	y := 700.0
	for _, row := range rows {
		for c, cell := range row {
			x := cols[c]
			for _, word := range strings.Fields(cell) {
				w := float64(len(word)) * 5
				frags = append(frags, Fragment{Text: word, X: x, Y: y, W: w, Size: 10})
				x += w + 3
			}
		}
		y -= 14
	}
	return frags
}

func TestCluster(t *testing.T) {
	centers, sizes := cluster([]float64{10, 11, 12, 30, 31}, 2)
	if len(centers) != 2 {
		t.Fatalf("cluster returned %d clusters, want 2", len(centers))
	}
	if centers[0] != 11 || centers[1] != 30.5 {
		t.Errorf("centers = %v, want [11 30.5]", centers)
	}
	if sizes[0] != 3 || sizes[1] != 2 {
		t.Errorf("sizes = %v, want [3 2]", sizes)
	}
}

func TestSplitBlocks(t *testing.T) {
	frags := []Fragment{
		{Text: "header", Y: 760},
		{Text: "row1", Y: 700},
		{Text: "row2", Y: 686},
	}
	blocks := splitBlocks(frags, 50)
	if len(blocks) != 2 {
		t.Fatalf("splitBlocks returned %d blocks, want 2", len(blocks))
	}
	if blocks[0][0].Text != "header" {
		t.Errorf("first block = %q, want header", blocks[0][0].Text)
	}
	if len(blocks[1]) != 2 {
		t.Errorf("second block has %d fragments, want 2", len(blocks[1]))
	}
}

func TestFragRows(t *testing.T) {
	frags := []Fragment{
		{Text: "b", X: 200, Y: 699.5},
		{Text: "c", X: 72, Y: 686},
		{Text: "a", X: 72, Y: 700},
	}
	rows := fragRows(frags, 3)
	if len(rows) != 2 {
		t.Fatalf("fragRows returned %d rows, want 2", len(rows))
	}
	if rows[0][0].Text != "a" || rows[0][1].Text != "b" {
		t.Errorf("top row = %+v, want a then b", rows[0])
	}
	if rows[1][0].Text != "c" {
		t.Errorf("bottom row = %+v, want c", rows[1])
	}
}

func TestDetectColumnsFindsChannels(t *testing.T) {
	rows := fragRows(statementFrags(), 3)
	seps := detectColumns(rows, 10)
	if len(seps) != 3 {
		t.Fatalf("detectColumns returned %d separators, want 3: %v", len(seps), seps)
	}
	for i := 1; i < len(seps); i++ {
		if seps[i] <= seps[i-1] {
			t.Errorf("separators out of order: %v", seps)
		}
	}
}

func TestDetectColumnsIgnoresWordGaps(t *testing.T) {
	// A single prose-like row pair with only narrow gaps must not grow
	// columns.
	frags := []Fragment{
		{Text: "Interest", X: 72, Y: 700, W: 40},
		{Text: "is", X: 115, Y: 700, W: 10},
		{Text: "calculated", X: 128, Y: 700, W: 50},
		{Text: "daily", X: 72, Y: 686, W: 25},
		{Text: "on", X: 100, Y: 686, W: 10},
		{Text: "balances", X: 113, Y: 686, W: 40},
	}
	rows := fragRows(frags, 3)
	if seps := detectColumns(rows, 10); len(seps) != 0 {
		t.Errorf("detectColumns found %d separators in prose, want 0", len(seps))
	}
}

func TestVectorExtractFindsTable(t *testing.T) {
	e := NewVectorExtractor(0.5)
	tables, err := e.Extract(1, statementFrags())
	if err != nil {
		t.Fatalf("Extract() error: %v", err)
	}
	if len(tables) != 1 {
		t.Fatalf("Extract() returned %d tables, want 1", len(tables))
	}

	tab := tables[0]
	if len(tab.Rows) != 4 {
		t.Fatalf("table has %d rows, want 4: %+v", len(tab.Rows), tab.Rows)
	}
	if len(tab.Rows[0]) != 4 {
		t.Fatalf("table has %d columns, want 4: %+v", len(tab.Rows[0]), tab.Rows[0])
	}
	if tab.Rows[0][0] != "Date" || tab.Rows[0][3] != "Balance" {
		t.Errorf("header row = %v", tab.Rows[0])
	}
	if tab.Rows[1][1] != "CARD PAYMENT" {
		t.Errorf("Rows[1][1] = %q, want CARD PAYMENT", tab.Rows[1][1])
	}
	if tab.Rows[2][2] != "2,500.00" {
		t.Errorf("Rows[2][2] = %q, want 2,500.00", tab.Rows[2][2])
	}
	if tab.Confidence < 0.9 {
		t.Errorf("confidence = %v, want >= 0.9 for a clean grid", tab.Confidence)
	}
}

func TestVectorExtractRightAlignedAmounts(t *testing.T) {
	// Amounts share a right edge instead of a left one; detection must
	// not split them across columns.
	var frags []Fragment
	y := 700.0
	amounts := []string{"Amount", "-12.50", "2,500.00", "-45.00"}
	for i, a := range amounts {
		w := float64(len(a)) * 5
		frags = append(frags, Fragment{Text: a, X: 370 - w, Y: y, W: w, Size: 10})
		frags = append(frags, Fragment{Text: "row" + string(rune('0'+i)), X: 72, Y: y, W: 40, Size: 10})
		y -= 14
	}

	e := NewVectorExtractor(0.5)
	tables, err := e.Extract(1, frags)
	if err != nil {
		t.Fatalf("Extract() error: %v", err)
	}
	tab := tables[0]
	if len(tab.Rows[0]) != 2 {
		t.Fatalf("table has %d columns, want 2: %+v", len(tab.Rows[0]), tab.Rows)
	}
	for i, want := range amounts {
		if tab.Rows[i][1] != want {
			t.Errorf("Rows[%d][1] = %q, want %q", i, tab.Rows[i][1], want)
		}
	}
}

func TestVectorExtractNoFragments(t *testing.T) {
	e := NewVectorExtractor(0.5)
	_, err := e.Extract(3, nil)
	var exErr *ExtractionError
	if !errors.As(err, &exErr) {
		t.Fatalf("Extract() error = %v, want ExtractionError", err)
	}
	if exErr.Page != 3 || exErr.Method != "vector" {
		t.Errorf("ExtractionError = %+v, want page 3 vector", exErr)
	}
}

func TestVectorExtractUnreadableLayer(t *testing.T) {
	frags := []Fragment{{Text: strings.Repeat("Ωφψ", 40), X: 72, Y: 700, W: 300}}
	e := NewVectorExtractor(0.5)
	_, err := e.Extract(1, frags)
	if err == nil || !strings.Contains(err.Error(), "unreadable text layer") {
		t.Errorf("Extract() error = %v, want unreadable text layer", err)
	}
}

func TestVectorExtractProseOnly(t *testing.T) {
	var frags []Fragment
	y := 700.0
	for i := 0; i < 6; i++ {
		x := 72.0
		for _, word := range strings.Fields("the quick brown fox jumps over the lazy dog") {
			w := float64(len(word)) * 5
			frags = append(frags, Fragment{Text: word, X: x, Y: y, W: w, Size: 10})
			x += w + 3
		}
		y -= 14
	}

	e := NewVectorExtractor(0.5)
	_, err := e.Extract(1, frags)
	var exErr *ExtractionError
	if !errors.As(err, &exErr) {
		t.Fatalf("Extract() on prose = %v, want ExtractionError", err)
	}
}

func TestOccupancy(t *testing.T) {
	cells := [][]string{{"a", ""}, {"b", "c"}}
	if got := occupancy(cells); got != 0.75 {
		t.Errorf("occupancy = %v, want 0.75", got)
	}
}

func TestAlignedShare(t *testing.T) {
	if got := alignedShare([]float64{10, 10.5, 11, 40}, 2); got != 0.75 {
		t.Errorf("alignedShare = %v, want 0.75", got)
	}
}
