package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestStatementsProcessedLabels(t *testing.T) {
	before := testutil.ToFloat64(StatementsProcessed.WithLabelValues("completed"))
	StatementsProcessed.WithLabelValues("completed").Inc()
	after := testutil.ToFloat64(StatementsProcessed.WithLabelValues("completed"))

	if after != before+1 {
		t.Fatalf("completed counter = %v, want %v", after, before+1)
	}
}

func TestProcessingSecondsRegistered(t *testing.T) {
	ProcessingSeconds.Observe(1.5)
	if n := testutil.CollectAndCount(ProcessingSeconds); n != 1 {
		t.Fatalf("CollectAndCount = %d, want 1", n)
	}
}
