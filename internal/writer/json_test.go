package writer

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/insightdelivered/statement-ingest/internal/models"
	"github.com/insightdelivered/statement-ingest/internal/parser"
)

func sampleResult() *parser.Result {
	return &parser.Result{
		Transactions: []models.Transaction{
			{
				Date:     time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC),
				Payee:    "CARD PAYMENT TESCO",
				Amount:   decimal.RequireFromString("-25.99"),
				Type:     models.TypeDebit,
				Balance:  decimal.NullDecimal{Decimal: decimal.RequireFromString("1234.56"), Valid: true},
				Currency: "GBP",
			},
			{
				Date:     time.Date(2024, 1, 16, 0, 0, 0, 0, time.UTC),
				Payee:    "SALARY",
				Amount:   decimal.RequireFromString("2500.00"),
				Type:     models.TypeCredit,
				Currency: "GBP",
			},
		},
		Stats: parser.Stats{TablesSeen: 1, RowsSeen: 3, RowsParsed: 2, RowsDropped: 1},
	}
}

func TestNewOutputTotals(t *testing.T) {
	out := NewOutput("statement.pdf", models.PipelineStats{TotalPages: 2, VectorPages: 2}, sampleResult())

	if !out.TotalDebit.Equal(decimal.RequireFromString("25.99")) {
		t.Errorf("TotalDebit = %s, want 25.99", out.TotalDebit)
	}
	if !out.TotalCredit.Equal(decimal.RequireFromString("2500.00")) {
		t.Errorf("TotalCredit = %s, want 2500.00", out.TotalCredit)
	}
	if out.Count != 2 {
		t.Errorf("Count = %d, want 2", out.Count)
	}
}

func TestNewOutputEmptyTransactions(t *testing.T) {
	out := NewOutput("statement.pdf", models.PipelineStats{TotalPages: 1}, &parser.Result{})

	if out.Transactions == nil {
		t.Fatal("Transactions must be an empty slice, not nil")
	}

	var buf bytes.Buffer
	if err := (&JSONWriter{}).Write(&buf, out); err != nil {
		t.Fatalf("Write() error: %v", err)
	}
	if !strings.Contains(buf.String(), `"transactions":[]`) {
		t.Errorf("output = %s, want empty array", buf.String())
	}
}

func TestJSONWriter_Write(t *testing.T) {
	out := NewOutput("statement.pdf", models.PipelineStats{TotalPages: 2, VectorPages: 1, RasterPages: 1}, sampleResult())

	var buf bytes.Buffer
	w := &JSONWriter{Indent: true}
	if err := w.Write(&buf, out); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var decoded Output
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}
	if decoded.File != "statement.pdf" {
		t.Errorf("file = %q", decoded.File)
	}
	if decoded.Pages.TotalPages != 2 {
		t.Errorf("pages = %+v", decoded.Pages)
	}
	if len(decoded.Transactions) != 2 {
		t.Fatalf("got %d transactions, want 2", len(decoded.Transactions))
	}
	if decoded.Transactions[0].Payee != "CARD PAYMENT TESCO" {
		t.Errorf("payee = %q", decoded.Transactions[0].Payee)
	}
	if !decoded.Transactions[0].Balance.Valid {
		t.Error("balance lost its value in the round trip")
	}
	if decoded.Transactions[1].Balance.Valid {
		t.Error("missing balance must decode as invalid")
	}

	if !strings.Contains(buf.String(), "\n  ") {
		t.Error("expected indented output")
	}
}

func TestJSONWriter_WriteToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.json")
	out := NewOutput("statement.pdf", models.PipelineStats{TotalPages: 1, VectorPages: 1}, sampleResult())

	if err := (&JSONWriter{}).WriteToFile(path, out); err != nil {
		t.Fatalf("WriteToFile() error: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading output: %v", err)
	}
	if !json.Valid(data) {
		t.Error("file does not contain valid JSON")
	}
}
