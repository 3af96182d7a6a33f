package config

import (
	"log"
	"os"
	"strconv"
	"strings"
)

type Config struct {
	TelegramBotToken string
	DatabaseURL      string
	RedisURL         string
	APIKey           string

	AlphaVantageAPIKey string
	NewsMinRelevance   float64
	NewsMaxFetchDays   int

	OpenAIAPIKey string
	OpenAIModel  string

	MLTestFraction   float64
	MLLabelThreshold float64
	MLPrimaryModel   string
	MLTrainHourUTC   int

	EnrichPollSecs  int
	EnrichBatchSize int
}

func Load() *Config {
	cfg := &Config{
		TelegramBotToken:   os.Getenv("TELEGRAM_BOT_TOKEN"),
		DatabaseURL:        os.Getenv("DATABASE_URL"),
		RedisURL:           os.Getenv("REDIS_URL"),
		APIKey:             os.Getenv("API_KEY"),
		AlphaVantageAPIKey: os.Getenv("ALPHAVANTAGE_API_KEY"),
	}

	if cfg.TelegramBotToken == "" {
		log.Println("Warning: TELEGRAM_BOT_TOKEN not set")
	}
	if cfg.DatabaseURL == "" {
		log.Println("Warning: DATABASE_URL not set")
	}
	if cfg.RedisURL == "" {
		log.Println("Warning: REDIS_URL not set, defaulting to localhost:6379")
		cfg.RedisURL = "localhost:6379"
	}
	if cfg.AlphaVantageAPIKey == "" {
		log.Println("Warning: ALPHAVANTAGE_API_KEY not set, news fetching will be disabled")
	}

	cfg.NewsMinRelevance = 0.2
	if v := strings.TrimSpace(os.Getenv("NEWS_MIN_RELEVANCE")); v != "" {
		if n, err := strconv.ParseFloat(v, 64); err == nil && n >= 0 && n <= 1 {
			cfg.NewsMinRelevance = n
		}
	}

	cfg.NewsMaxFetchDays = 2
	if v := strings.TrimSpace(os.Getenv("NEWS_MAX_FETCH_DAYS")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.NewsMaxFetchDays = n
		}
	}

	cfg.OpenAIAPIKey = os.Getenv("OPENAI_API_KEY")
	if cfg.OpenAIAPIKey == "" {
		log.Println("Warning: OPENAI_API_KEY not set, sentiment enrichment will be disabled")
	}

	cfg.OpenAIModel = strings.TrimSpace(os.Getenv("OPENAI_MODEL"))
	if cfg.OpenAIModel == "" {
		cfg.OpenAIModel = "gpt-4o-mini"
	}

	cfg.MLTestFraction = 0.2
	if v := strings.TrimSpace(os.Getenv("ML_TEST_FRACTION")); v != "" {
		if n, err := strconv.ParseFloat(v, 64); err == nil && n > 0 && n < 1 {
			cfg.MLTestFraction = n
		}
	}

	cfg.MLLabelThreshold = 0.0
	if v := strings.TrimSpace(os.Getenv("ML_LABEL_THRESHOLD")); v != "" {
		if n, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.MLLabelThreshold = n
		}
	}

	cfg.MLPrimaryModel = strings.TrimSpace(os.Getenv("ML_PRIMARY_MODEL"))
	if cfg.MLPrimaryModel == "" {
		cfg.MLPrimaryModel = "logistic_regression"
	}
	if cfg.MLPrimaryModel != "logistic_regression" && cfg.MLPrimaryModel != "random_forest" {
		log.Printf("Warning: unsupported ML_PRIMARY_MODEL=%q, defaulting to logistic_regression", cfg.MLPrimaryModel)
		cfg.MLPrimaryModel = "logistic_regression"
	}

	cfg.MLTrainHourUTC = 0
	if v := strings.TrimSpace(os.Getenv("ML_TRAIN_HOUR_UTC")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 && n <= 23 {
			cfg.MLTrainHourUTC = n
		}
	}

	cfg.EnrichPollSecs = 300
	if v := strings.TrimSpace(os.Getenv("ENRICH_POLL_SECS")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.EnrichPollSecs = n
		}
	}

	cfg.EnrichBatchSize = 50
	if v := strings.TrimSpace(os.Getenv("ENRICH_BATCH_SIZE")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.EnrichBatchSize = n
		}
	}

	return cfg
}
