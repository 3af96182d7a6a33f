package repository

import (
	"context"
	"time"

	"news-stock-explorer/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.opentelemetry.io/otel/trace"
)

const createPricesTable = `
CREATE TABLE IF NOT EXISTS daily_prices (
    ticker  TEXT        NOT NULL,
    date    TIMESTAMPTZ NOT NULL,
    open    NUMERIC     NOT NULL,
    high    NUMERIC     NOT NULL,
    low     NUMERIC     NOT NULL,
    close   NUMERIC     NOT NULL,
    volume  BIGINT      NOT NULL,
    PRIMARY KEY (ticker, date)
);

CREATE INDEX IF NOT EXISTS idx_daily_prices_ticker_date
    ON daily_prices (ticker, date DESC);
`

type PgxPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type PriceRepository struct {
	pool   PgxPool
	tracer trace.Tracer
}

func NewPriceRepository(pool PgxPool, tracer trace.Tracer) *PriceRepository {
	return &PriceRepository{pool: pool, tracer: tracer}
}

func (r *PriceRepository) RunMigrations(ctx context.Context) error {
	_, span := r.tracer.Start(ctx, "price-repo.run-migrations")
	defer span.End()

	_, err := r.pool.Exec(ctx, createPricesTable)
	return err
}

// UpsertPrices writes one row per (ticker, date), replacing OHLCV on
// conflict so refreshed provider data wins.
func (r *PriceRepository) UpsertPrices(ctx context.Context, prices []domain.PricePoint) error {
	if len(prices) == 0 {
		return nil
	}

	_, span := r.tracer.Start(ctx, "price-repo.upsert-prices")
	defer span.End()

	batch := &pgx.Batch{}
	for _, p := range prices {
		batch.Queue(
			`INSERT INTO daily_prices (ticker, date, open, high, low, close, volume)
			 VALUES ($1, $2, $3, $4, $5, $6, $7)
			 ON CONFLICT (ticker, date) DO UPDATE SET
			     open = EXCLUDED.open,
			     high = EXCLUDED.high,
			     low = EXCLUDED.low,
			     close = EXCLUDED.close,
			     volume = EXCLUDED.volume`,
			p.Ticker, domain.DateOf(p.Date), p.Open, p.High, p.Low, p.Close, p.Volume,
		)
	}

	br := r.pool.SendBatch(ctx, batch)
	defer br.Close()

	for range prices {
		if _, err := br.Exec(); err != nil {
			return err
		}
	}
	return nil
}

// ListPrices returns all price rows for a ticker in ascending date order,
// the ordering the feature builder expects.
func (r *PriceRepository) ListPrices(ctx context.Context, ticker string) ([]domain.PricePoint, error) {
	_, span := r.tracer.Start(ctx, "price-repo.list-prices")
	defer span.End()

	return r.queryPrices(ctx,
		`SELECT ticker, date, open, high, low, close, volume
		 FROM daily_prices
		 WHERE ticker = $1
		 ORDER BY date ASC`,
		ticker,
	)
}

func (r *PriceRepository) ListPricesInRange(ctx context.Context, ticker string, from, to time.Time) ([]domain.PricePoint, error) {
	_, span := r.tracer.Start(ctx, "price-repo.list-prices-in-range")
	defer span.End()

	return r.queryPrices(ctx,
		`SELECT ticker, date, open, high, low, close, volume
		 FROM daily_prices
		 WHERE ticker = $1 AND date >= $2 AND date <= $3
		 ORDER BY date ASC`,
		ticker, domain.DateOf(from), domain.DateOf(to),
	)
}

// LatestPriceDate returns nil when the ticker has no stored prices.
func (r *PriceRepository) LatestPriceDate(ctx context.Context, ticker string) (*time.Time, error) {
	_, span := r.tracer.Start(ctx, "price-repo.latest-date")
	defer span.End()

	return r.queryDate(ctx, `SELECT MAX(date) FROM daily_prices WHERE ticker = $1`, ticker)
}

func (r *PriceRepository) queryDate(ctx context.Context, query, ticker string) (*time.Time, error) {
	var date *time.Time
	if err := r.pool.QueryRow(ctx, query, ticker).Scan(&date); err != nil {
		return nil, err
	}
	if date == nil {
		return nil, nil
	}
	utc := date.UTC()
	return &utc, nil
}

func (r *PriceRepository) queryPrices(ctx context.Context, query string, args ...any) ([]domain.PricePoint, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var prices []domain.PricePoint
	for rows.Next() {
		var p domain.PricePoint
		if err := rows.Scan(&p.Ticker, &p.Date, &p.Open, &p.High, &p.Low, &p.Close, &p.Volume); err != nil {
			return nil, err
		}
		p.Date = p.Date.UTC()
		prices = append(prices, p)
	}
	return prices, rows.Err()
}
