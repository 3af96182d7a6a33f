package job

import (
	"context"
	"errors"
	"testing"
	"time"

	"news-stock-explorer/internal/ml/training"

	"go.opentelemetry.io/otel/trace"
)

var testTracer = trace.NewNoopTracerProvider().Tracer("test")

type stubTrainer struct {
	calls   int
	results []training.Result
	err     error
}

func (s *stubTrainer) RunTraining(context.Context, time.Time) ([]training.Result, error) {
	s.calls++
	return s.results, s.err
}

type stubInvalidator struct{ calls int }

func (s *stubInvalidator) Invalidate() { s.calls++ }

func TestNextRunUTC(t *testing.T) {
	now := time.Date(2024, 3, 5, 10, 30, 0, 0, time.UTC)

	next := nextRunUTC(now, 12)
	if !next.Equal(time.Date(2024, 3, 5, 12, 0, 0, 0, time.UTC)) {
		t.Fatalf("expected same-day run, got %v", next)
	}

	next = nextRunUTC(now, 6)
	if !next.Equal(time.Date(2024, 3, 6, 6, 0, 0, 0, time.UTC)) {
		t.Fatalf("expected next-day run, got %v", next)
	}

	next = nextRunUTC(time.Date(2024, 3, 5, 12, 0, 0, 0, time.UTC), 12)
	if !next.Equal(time.Date(2024, 3, 6, 12, 0, 0, 0, time.UTC)) {
		t.Fatalf("expected next-day run on exact hour, got %v", next)
	}
}

func TestNewTrainingJobClampsHour(t *testing.T) {
	j := NewTrainingJob(testTracer, &stubTrainer{}, nil, 99)
	if j.trainHour != 0 {
		t.Fatalf("expected hour clamped to 0, got %d", j.trainHour)
	}
}

func TestTrainingJobRunOnceInvalidates(t *testing.T) {
	trainer := &stubTrainer{results: []training.Result{{ModelKey: "logistic_regression", Version: 1}}}
	inv := &stubInvalidator{}
	j := NewTrainingJob(testTracer, trainer, inv, 3)

	j.runOnce(context.Background())

	if trainer.calls != 1 {
		t.Fatalf("expected one training run, got %d", trainer.calls)
	}
	if inv.calls != 1 {
		t.Fatalf("expected cache invalidated once, got %d", inv.calls)
	}
}

func TestTrainingJobRunOnceKeepsCacheOnError(t *testing.T) {
	trainer := &stubTrainer{err: errors.New("no rows")}
	inv := &stubInvalidator{}
	j := NewTrainingJob(testTracer, trainer, inv, 3)

	j.runOnce(context.Background())

	if inv.calls != 0 {
		t.Fatalf("expected cache untouched after failure, got %d invalidations", inv.calls)
	}
}
