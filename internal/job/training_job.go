package job

import (
	"context"
	"log"
	"time"

	"news-stock-explorer/internal/ml/training"

	"go.opentelemetry.io/otel/trace"
)

type MLTrainer interface {
	RunTraining(ctx context.Context, now time.Time) ([]training.Result, error)
}

// ModelCacheInvalidator drops any cached model after a training run so
// serving picks up the newly activated version.
type ModelCacheInvalidator interface {
	Invalidate()
}

// TrainingJob retrains the models once a day at a fixed UTC hour.
type TrainingJob struct {
	tracer      trace.Tracer
	service     MLTrainer
	invalidator ModelCacheInvalidator
	trainHour   int
}

func NewTrainingJob(tracer trace.Tracer, service MLTrainer, invalidator ModelCacheInvalidator, trainHourUTC int) *TrainingJob {
	if trainHourUTC < 0 || trainHourUTC > 23 {
		trainHourUTC = 0
	}
	return &TrainingJob{tracer: tracer, service: service, invalidator: invalidator, trainHour: trainHourUTC}
}

// Start blocks until ctx is cancelled.
func (j *TrainingJob) Start(ctx context.Context) {
	if j.service == nil {
		log.Println("training job disabled: no service")
		<-ctx.Done()
		return
	}
	for {
		next := nextRunUTC(time.Now().UTC(), j.trainHour)
		wait := time.Until(next)
		if wait < time.Second {
			wait = time.Second
		}
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
			j.runOnce(ctx)
		}
	}
}

func (j *TrainingJob) runOnce(ctx context.Context) {
	ctx, span := j.tracer.Start(ctx, "training-job.run-once")
	defer span.End()

	results, err := j.service.RunTraining(ctx, time.Now())
	if err != nil {
		log.Printf("scheduled training error: %v", err)
		return
	}
	for _, r := range results {
		log.Printf("trained model=%s version=%d activated=%v", r.ModelKey, r.Version, r.Activated)
	}
	if j.invalidator != nil {
		j.invalidator.Invalidate()
	}
}

func nextRunUTC(now time.Time, hour int) time.Time {
	run := time.Date(now.Year(), now.Month(), now.Day(), hour, 0, 0, 0, time.UTC)
	if !run.After(now) {
		run = run.Add(24 * time.Hour)
	}
	return run
}
