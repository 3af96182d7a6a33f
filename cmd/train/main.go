// Command train runs one training cycle from the command line and prints the
// per-model outcome. Useful for backfills and for retraining outside the
// daily schedule.
package main

import (
	"context"
	"encoding/json"
	"log"
	"os"
	"time"

	"news-stock-explorer/internal/config"
	"news-stock-explorer/internal/db"
	"news-stock-explorer/internal/ml/registry"
	"news-stock-explorer/internal/ml/training"
	"news-stock-explorer/internal/repository"

	"github.com/joho/godotenv"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

func main() {
	godotenv.Load()

	cfg := config.Load()
	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL is required")
	}

	ctx := context.Background()
	os.Setenv("DATABASE_URL", cfg.DatabaseURL)
	db.InitPostgres(ctx)
	if db.Pool == nil {
		log.Fatal("failed to initialize Postgres")
	}
	defer db.Pool.Close()

	tracer := sdktrace.NewTracerProvider().Tracer("news-stock-explorer")

	tickerRepo := repository.NewTickerRepository(db.Pool, tracer)
	priceRepo := repository.NewPriceRepository(db.Pool, tracer)
	articleRepo := repository.NewArticleRepository(db.Pool, tracer)
	modelRegistry := registry.NewRepository(db.Pool, tracer)

	if err := modelRegistry.RunMigrations(ctx); err != nil {
		log.Fatalf("failed to run migrations: %v", err)
	}

	svc := training.NewService(tracer, tickerRepo, priceRepo, articleRepo, modelRegistry, training.Config{
		TestFraction:   cfg.MLTestFraction,
		LabelThreshold: cfg.MLLabelThreshold,
		PrimaryModel:   cfg.MLPrimaryModel,
	})

	results, err := svc.RunTraining(ctx, time.Now())
	if err != nil {
		log.Fatalf("training failed: %v", err)
	}

	for _, r := range results {
		out, _ := json.MarshalIndent(r, "", "  ")
		log.Printf("trained %s v%d (activated=%v)\n%s", r.ModelKey, r.Version, r.Activated, out)

		stored, err := modelRegistry.GetLatestModel(ctx, r.ModelKey)
		if err != nil || stored == nil {
			log.Printf("warning: could not read back %s from the registry: %v", r.ModelKey, err)
			continue
		}
		log.Printf("registry: %s v%d format=%s trained_at=%s artifact=%d bytes",
			stored.ModelKey, stored.Version, stored.ArtifactFormat,
			stored.TrainedAt.Format(time.RFC3339), len(stored.ArtifactBlob))
	}
}
