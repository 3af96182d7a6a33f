package job

import (
	"context"
	"testing"
	"time"
)

type stubEnricher struct {
	calls     int
	batchSize int
}

func (s *stubEnricher) EnrichPendingSentiment(_ context.Context, batchSize int) (int, error) {
	s.calls++
	s.batchSize = batchSize
	return 0, nil
}

func TestNewEnrichmentJobDefaults(t *testing.T) {
	j := NewEnrichmentJob(testTracer, &stubEnricher{}, 0, 0)
	if j.pollInterval != 300*time.Second {
		t.Fatalf("expected default 300s interval, got %v", j.pollInterval)
	}
	if j.batchSize != 50 {
		t.Fatalf("expected default batch size 50, got %d", j.batchSize)
	}
}

func TestEnrichmentJobStart(t *testing.T) {
	t.Parallel()

	stub := &stubEnricher{}
	j := NewEnrichmentJob(testTracer, stub, 1, 25)

	ctx, cancel := context.WithCancel(context.Background())
	go j.Start(ctx)

	eventually(t, func() bool { return stub.calls > 0 })
	cancel()

	if stub.batchSize != 25 {
		t.Fatalf("expected batch size 25 passed through, got %d", stub.batchSize)
	}
}

func eventually(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(100 * time.Millisecond)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met")
}
