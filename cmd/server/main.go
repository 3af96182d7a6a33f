package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"news-stock-explorer/internal/bot"
	"news-stock-explorer/internal/cache"
	"news-stock-explorer/internal/config"
	"news-stock-explorer/internal/db"
	"news-stock-explorer/internal/domain"
	"news-stock-explorer/internal/handler"
	"news-stock-explorer/internal/job"
	"news-stock-explorer/internal/ml/inference"
	"news-stock-explorer/internal/ml/registry"
	"news-stock-explorer/internal/ml/training"
	"news-stock-explorer/internal/provider"
	"news-stock-explorer/internal/repository"
	"news-stock-explorer/internal/sentiment"
	"news-stock-explorer/internal/service"
	"news-stock-explorer/pkg/tracing"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

var (
	loadEnvFunc            = godotenv.Load
	loadConfigFunc         = config.Load
	initPostgresFunc       = db.InitPostgres
	initRedisFunc          = cache.InitRedis
	initTracerFunc         = tracing.InitTracer
	startTelegramBotFunc   = bot.StartTelegramBot
	newRouterFunc          = gin.Default
	setupSignalNotify      = signal.Notify
	waitForSignalFunc      = func(quit <-chan os.Signal) { <-quit }
	startHTTPServerFunc    = func(srv *http.Server) error { return srv.ListenAndServe() }
	shutdownHTTPServerFunc = func(srv *http.Server, ctx context.Context) error { return srv.Shutdown(ctx) }
)

func main() {
	loadEnvFunc()

	cfg := loadConfigFunc()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	os.Setenv("DATABASE_URL", cfg.DatabaseURL)
	os.Setenv("REDIS_URL", cfg.RedisURL)
	initPostgresFunc(ctx)
	initRedisFunc(ctx)

	tp, tracer, err := initTracerFunc(ctx)
	if err != nil {
		log.Fatalf("failed to initialize tracer: %v", err)
	}
	defer func() {
		if err := tp.Shutdown(ctx); err != nil {
			log.Printf("error shutting down tracer provider: %v", err)
		}
	}()

	tickerRepo := repository.NewTickerRepository(db.Pool, tracer)
	priceRepo := repository.NewPriceRepository(db.Pool, tracer)
	articleRepo := repository.NewArticleRepository(db.Pool, tracer)
	modelRegistry := registry.NewRepository(db.Pool, tracer)

	if db.Pool != nil {
		for _, migrate := range []func(context.Context) error{
			tickerRepo.RunMigrations,
			priceRepo.RunMigrations,
			articleRepo.RunMigrations,
			modelRegistry.RunMigrations,
		} {
			if err := migrate(ctx); err != nil {
				log.Fatalf("failed to run migrations: %v", err)
			}
		}
		if err := tickerRepo.UpsertTickers(ctx, domain.DefaultTickers); err != nil {
			log.Fatalf("failed to seed tickers: %v", err)
		}
	}

	priceProvider := provider.NewYahooProvider(tracer)
	newsProvider := provider.NewAlphaVantageProvider(tracer, cfg.AlphaVantageAPIKey, cfg.NewsMinRelevance)

	var analyzer service.SentimentAnalyzer
	if cfg.OpenAIAPIKey != "" {
		analyzer = sentiment.NewAnalyzer(tracer, sentiment.NewOpenAIClient(cfg.OpenAIAPIKey), cfg.OpenAIModel)
	}

	inferenceService := inference.NewService(tracer, modelRegistry, cfg.MLPrimaryModel)

	var redisClient service.RedisClient
	if cache.Client != nil {
		redisClient = cache.Client
	}
	summaryService := service.NewSummaryService(
		tracer, priceProvider, newsProvider,
		priceRepo, articleRepo, tickerRepo,
		analyzer, inferenceService, redisClient,
		service.RefreshConfig{
			NewsMaxFetchDays:        cfg.NewsMaxFetchDays,
			NewsOnlyRecentIfMissing: true,
			EnrichBatchSize:         cfg.EnrichBatchSize,
		},
	)

	h := handler.New(tracer, summaryService, tickerRepo, inferenceService)

	if db.Pool != nil {
		h.SetModelHistory(modelRegistry)
		trainingService := training.NewService(tracer, tickerRepo, priceRepo, articleRepo, modelRegistry, training.Config{
			TestFraction:   cfg.MLTestFraction,
			LabelThreshold: cfg.MLLabelThreshold,
			PrimaryModel:   cfg.MLPrimaryModel,
		})
		h.SetMLTrainingRunner(trainingService, inferenceService)

		trainingJob := job.NewTrainingJob(tracer, trainingService, inferenceService, cfg.MLTrainHourUTC)
		go trainingJob.Start(ctx)

		if analyzer != nil {
			enrichmentJob := job.NewEnrichmentJob(tracer, summaryService, cfg.EnrichPollSecs, cfg.EnrichBatchSize)
			go enrichmentJob.Start(ctx)
		}
	}

	os.Setenv("TELEGRAM_BOT_TOKEN", cfg.TelegramBotToken)
	startTelegramBotFunc(summaryService, inferenceService)

	r := newRouterFunc()
	r.Use(otelgin.Middleware("news-stock-explorer"))
	h.RegisterRoutes(r, cfg.APIKey)

	srv := &http.Server{
		Addr:    ":8080",
		Handler: r,
	}

	go func() {
		if err := startHTTPServerFunc(srv); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %s\n", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	setupSignalNotify(quit, syscall.SIGINT, syscall.SIGTERM)
	waitForSignalFunc(quit)
	log.Println("Shutting down server...")

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := shutdownHTTPServerFunc(srv, shutdownCtx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	log.Println("Server exiting")
}
