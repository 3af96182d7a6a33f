package config

import "testing"

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{
		"TELEGRAM_BOT_TOKEN", "DATABASE_URL", "REDIS_URL", "API_KEY",
		"ALPHAVANTAGE_API_KEY", "NEWS_MIN_RELEVANCE", "NEWS_MAX_FETCH_DAYS",
		"OPENAI_API_KEY", "OPENAI_MODEL", "ML_TEST_FRACTION", "ML_LABEL_THRESHOLD",
		"ML_PRIMARY_MODEL", "ML_TRAIN_HOUR_UTC", "ENRICH_POLL_SECS", "ENRICH_BATCH_SIZE",
	} {
		t.Setenv(key, "")
	}

	cfg := Load()

	if cfg.RedisURL != "localhost:6379" {
		t.Fatalf("expected redis default, got %q", cfg.RedisURL)
	}
	if cfg.OpenAIModel != "gpt-4o-mini" {
		t.Fatalf("expected default model, got %q", cfg.OpenAIModel)
	}
	if cfg.NewsMinRelevance != 0.2 {
		t.Fatalf("expected default relevance 0.2, got %f", cfg.NewsMinRelevance)
	}
	if cfg.NewsMaxFetchDays != 2 {
		t.Fatalf("expected default news max fetch days 2, got %d", cfg.NewsMaxFetchDays)
	}
	if cfg.MLTestFraction != 0.2 || cfg.MLLabelThreshold != 0.0 {
		t.Fatalf("unexpected ML defaults: %+v", cfg)
	}
	if cfg.MLPrimaryModel != "logistic_regression" {
		t.Fatalf("expected logistic_regression primary, got %q", cfg.MLPrimaryModel)
	}
	if cfg.EnrichPollSecs != 300 || cfg.EnrichBatchSize != 50 {
		t.Fatalf("unexpected enrichment defaults: %+v", cfg)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("REDIS_URL", "redis://elsewhere:6380")
	t.Setenv("ML_TEST_FRACTION", "0.3")
	t.Setenv("ML_PRIMARY_MODEL", "random_forest")
	t.Setenv("ML_TRAIN_HOUR_UTC", "6")
	t.Setenv("ENRICH_BATCH_SIZE", "25")

	cfg := Load()

	if cfg.RedisURL != "redis://elsewhere:6380" {
		t.Fatalf("expected redis override, got %q", cfg.RedisURL)
	}
	if cfg.MLTestFraction != 0.3 {
		t.Fatalf("expected test fraction 0.3, got %f", cfg.MLTestFraction)
	}
	if cfg.MLPrimaryModel != "random_forest" {
		t.Fatalf("expected random_forest, got %q", cfg.MLPrimaryModel)
	}
	if cfg.MLTrainHourUTC != 6 {
		t.Fatalf("expected train hour 6, got %d", cfg.MLTrainHourUTC)
	}
	if cfg.EnrichBatchSize != 25 {
		t.Fatalf("expected batch size 25, got %d", cfg.EnrichBatchSize)
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	t.Setenv("ML_TEST_FRACTION", "1.5")
	t.Setenv("ML_PRIMARY_MODEL", "xgboost")
	t.Setenv("ML_TRAIN_HOUR_UTC", "99")

	cfg := Load()

	if cfg.MLTestFraction != 0.2 {
		t.Fatalf("expected fraction fallback 0.2, got %f", cfg.MLTestFraction)
	}
	if cfg.MLPrimaryModel != "logistic_regression" {
		t.Fatalf("expected primary fallback, got %q", cfg.MLPrimaryModel)
	}
	if cfg.MLTrainHourUTC != 0 {
		t.Fatalf("expected hour fallback 0, got %d", cfg.MLTrainHourUTC)
	}
}
