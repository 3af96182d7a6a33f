package repository

import (
	"context"
	"time"

	"news-stock-explorer/internal/domain"

	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel/trace"
)

const createArticlesTable = `
CREATE TABLE IF NOT EXISTS news_articles (
    id              BIGSERIAL PRIMARY KEY,
    ticker          TEXT        NOT NULL,
    published_at    TIMESTAMPTZ NOT NULL,
    headline        TEXT        NOT NULL,
    source          TEXT        NOT NULL DEFAULT '',
    url             TEXT        NOT NULL,
    raw_text        TEXT        NOT NULL DEFAULT '',
    is_relevant     BOOLEAN     NOT NULL DEFAULT FALSE,
    relevance_score DOUBLE PRECISION,
    sentiment_score DOUBLE PRECISION,
    sentiment_label TEXT,
    UNIQUE (ticker, url)
);

CREATE INDEX IF NOT EXISTS idx_news_articles_ticker_published
    ON news_articles (ticker, published_at DESC);

CREATE INDEX IF NOT EXISTS idx_news_articles_pending_sentiment
    ON news_articles (ticker) WHERE is_relevant AND sentiment_score IS NULL;
`

const articleColumns = `id, ticker, published_at, headline, source, url, raw_text,
       is_relevant, relevance_score, sentiment_score, sentiment_label`

type ArticleRepository struct {
	pool   PgxPool
	tracer trace.Tracer
}

func NewArticleRepository(pool PgxPool, tracer trace.Tracer) *ArticleRepository {
	return &ArticleRepository{pool: pool, tracer: tracer}
}

func (r *ArticleRepository) RunMigrations(ctx context.Context) error {
	_, span := r.tracer.Start(ctx, "article-repo.run-migrations")
	defer span.End()

	_, err := r.pool.Exec(ctx, createArticlesTable)
	return err
}

// UpsertArticles inserts articles keyed by (ticker, url). Re-fetched
// articles refresh their metadata but keep any sentiment already written, so
// enrichment work is never repeated.
func (r *ArticleRepository) UpsertArticles(ctx context.Context, articles []domain.Article) error {
	if len(articles) == 0 {
		return nil
	}

	_, span := r.tracer.Start(ctx, "article-repo.upsert-articles")
	defer span.End()

	batch := &pgx.Batch{}
	for _, a := range articles {
		batch.Queue(
			`INSERT INTO news_articles (
			     ticker, published_at, headline, source, url, raw_text,
			     is_relevant, relevance_score, sentiment_score, sentiment_label
			 ) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
			 ON CONFLICT (ticker, url) DO UPDATE SET
			     published_at = EXCLUDED.published_at,
			     headline = EXCLUDED.headline,
			     source = EXCLUDED.source,
			     raw_text = EXCLUDED.raw_text,
			     is_relevant = EXCLUDED.is_relevant,
			     relevance_score = EXCLUDED.relevance_score`,
			a.Ticker, a.PublishedAt.UTC(), a.Headline, a.Source, a.URL, a.RawText,
			a.IsRelevant, a.RelevanceScore, a.SentimentScore, a.SentimentLabel,
		)
	}

	br := r.pool.SendBatch(ctx, batch)
	defer br.Close()

	for range articles {
		if _, err := br.Exec(); err != nil {
			return err
		}
	}
	return nil
}

func (r *ArticleRepository) ListArticles(ctx context.Context, ticker string, relevantOnly bool) ([]domain.Article, error) {
	_, span := r.tracer.Start(ctx, "article-repo.list-articles")
	defer span.End()

	query := `SELECT ` + articleColumns + `
		 FROM news_articles
		 WHERE ticker = $1
		 ORDER BY published_at ASC`
	if relevantOnly {
		query = `SELECT ` + articleColumns + `
		 FROM news_articles
		 WHERE ticker = $1 AND is_relevant = TRUE
		 ORDER BY published_at ASC`
	}
	return r.queryArticles(ctx, query, ticker)
}

func (r *ArticleRepository) ListArticlesInRange(ctx context.Context, ticker string, from, to time.Time, relevantOnly bool) ([]domain.Article, error) {
	_, span := r.tracer.Start(ctx, "article-repo.list-articles-in-range")
	defer span.End()

	query := `SELECT ` + articleColumns + `
		 FROM news_articles
		 WHERE ticker = $1 AND published_at >= $2 AND published_at <= $3
		 ORDER BY published_at ASC`
	if relevantOnly {
		query = `SELECT ` + articleColumns + `
		 FROM news_articles
		 WHERE ticker = $1 AND is_relevant = TRUE AND published_at >= $2 AND published_at <= $3
		 ORDER BY published_at ASC`
	}
	return r.queryArticles(ctx, query, ticker, from.UTC(), to.UTC())
}

// ListArticlesNeedingSentiment returns relevant articles that have not been
// scored yet, oldest first so enrichment catches up chronologically.
func (r *ArticleRepository) ListArticlesNeedingSentiment(ctx context.Context, limit int) ([]domain.Article, error) {
	_, span := r.tracer.Start(ctx, "article-repo.list-pending-sentiment")
	defer span.End()

	if limit <= 0 {
		limit = 50
	}
	return r.queryArticles(ctx,
		`SELECT `+articleColumns+`
		 FROM news_articles
		 WHERE is_relevant = TRUE AND sentiment_score IS NULL
		 ORDER BY published_at ASC
		 LIMIT $1`,
		limit,
	)
}

// UpdateArticleSentiment writes a score exactly once; rows already scored
// are left untouched.
func (r *ArticleRepository) UpdateArticleSentiment(ctx context.Context, id int64, score float64, label string) error {
	_, span := r.tracer.Start(ctx, "article-repo.update-sentiment")
	defer span.End()

	_, err := r.pool.Exec(ctx,
		`UPDATE news_articles
		 SET sentiment_score = $2, sentiment_label = $3
		 WHERE id = $1 AND sentiment_score IS NULL`,
		id, score, label,
	)
	return err
}

func (r *ArticleRepository) queryArticles(ctx context.Context, query string, args ...any) ([]domain.Article, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var articles []domain.Article
	for rows.Next() {
		var a domain.Article
		if err := rows.Scan(
			&a.ID, &a.Ticker, &a.PublishedAt, &a.Headline, &a.Source, &a.URL, &a.RawText,
			&a.IsRelevant, &a.RelevanceScore, &a.SentimentScore, &a.SentimentLabel,
		); err != nil {
			return nil, err
		}
		a.PublishedAt = a.PublishedAt.UTC()
		articles = append(articles, a)
	}
	return articles, rows.Err()
}
