// Package writer renders one-shot conversion results for the CLI.
package writer

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/shopspring/decimal"

	"github.com/insightdelivered/statement-ingest/internal/models"
	"github.com/insightdelivered/statement-ingest/internal/parser"
)

// Output is the JSON document convert mode emits for one PDF.
type Output struct {
	File         string               `json:"file"`
	Pages        models.PipelineStats `json:"pages"`
	Parsing      parser.Stats         `json:"parsing"`
	Count        int                  `json:"count"`
	TotalDebit   decimal.Decimal      `json:"totalDebit"`
	TotalCredit  decimal.Decimal      `json:"totalCredit"`
	Transactions []models.Transaction `json:"transactions"`
}

// NewOutput assembles the document and computes debit/credit totals.
// Both totals come out non-negative; the sign convention lives on the
// individual amounts.
func NewOutput(file string, pages models.PipelineStats, parsed *parser.Result) *Output {
	totalDebit := decimal.Zero
	totalCredit := decimal.Zero
	for _, txn := range parsed.Transactions {
		if txn.Type == models.TypeDebit {
			totalDebit = totalDebit.Add(txn.Amount.Abs())
		} else {
			totalCredit = totalCredit.Add(txn.Amount)
		}
	}

	// Never nil: nil marshals to JSON null, not [].
	txns := parsed.Transactions
	if txns == nil {
		txns = []models.Transaction{}
	}

	return &Output{
		File:         file,
		Pages:        pages,
		Parsing:      parsed.Stats,
		Count:        len(txns),
		TotalDebit:   totalDebit,
		TotalCredit:  totalCredit,
		Transactions: txns,
	}
}

// JSONWriter writes conversion output as JSON.
type JSONWriter struct {
	Indent bool
}

// WriteToFile writes the output to a JSON file at the given path.
func (w *JSONWriter) WriteToFile(path string, out *Output) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create output file %q: %w", path, err)
	}
	defer f.Close()

	return w.Write(f, out)
}

// Write writes the output as JSON to the given writer.
func (w *JSONWriter) Write(dst io.Writer, out *Output) error {
	enc := json.NewEncoder(dst)
	if w.Indent {
		enc.SetIndent("", "  ")
	}
	if err := enc.Encode(out); err != nil {
		return fmt.Errorf("failed to encode output: %w", err)
	}
	return nil
}
