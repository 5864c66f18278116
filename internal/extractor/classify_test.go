package extractor

import (
	"testing"

	"github.com/insightdelivered/statement-ingest/internal/models"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name  string
		frags []Fragment
		want  models.PageType
	}{
		{"no fragments", nil, models.PageScanned},
		{"whitespace only", []Fragment{{Text: "  "}, {Text: "\t"}}, models.PageScanned},
		{"any visible text", []Fragment{{Text: "  "}, {Text: "Balance"}}, models.PageText},
		{"single character", []Fragment{{Text: "7"}}, models.PageText},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(tt.frags); got != tt.want {
				t.Errorf("Classify() = %v, want %v", got, tt.want)
			}
		})
	}
}
