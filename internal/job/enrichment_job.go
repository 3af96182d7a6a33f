package job

import (
	"context"
	"log"
	"time"

	"go.opentelemetry.io/otel/trace"
)

type SentimentEnricher interface {
	EnrichPendingSentiment(ctx context.Context, batchSize int) (int, error)
}

// EnrichmentJob polls for relevant articles still missing sentiment and
// scores them in batches.
type EnrichmentJob struct {
	tracer       trace.Tracer
	enricher     SentimentEnricher
	pollInterval time.Duration
	batchSize    int
}

func NewEnrichmentJob(tracer trace.Tracer, enricher SentimentEnricher, pollIntervalSecs, batchSize int) *EnrichmentJob {
	if pollIntervalSecs <= 0 {
		pollIntervalSecs = 300
	}
	if batchSize <= 0 {
		batchSize = 50
	}
	return &EnrichmentJob{
		tracer:       tracer,
		enricher:     enricher,
		pollInterval: time.Duration(pollIntervalSecs) * time.Second,
		batchSize:    batchSize,
	}
}

// Start blocks until ctx is cancelled.
func (j *EnrichmentJob) Start(ctx context.Context) {
	if j.enricher == nil {
		log.Println("sentiment enrichment job disabled: no enricher")
		<-ctx.Done()
		return
	}
	log.Println("Sentiment enrichment job starting...")

	j.runOnce(ctx)

	ticker := time.NewTicker(j.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("Sentiment enrichment job stopped")
			return
		case <-ticker.C:
			j.runOnce(ctx)
		}
	}
}

func (j *EnrichmentJob) runOnce(ctx context.Context) {
	ctx, span := j.tracer.Start(ctx, "enrichment-job.run-once")
	defer span.End()

	n, err := j.enricher.EnrichPendingSentiment(ctx, j.batchSize)
	if err != nil {
		log.Printf("sentiment enrichment error: %v", err)
		return
	}
	if n > 0 {
		log.Printf("enriched sentiment for %d articles", n)
	}
}
