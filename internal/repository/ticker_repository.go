package repository

import (
	"context"
	"errors"

	"news-stock-explorer/internal/domain"

	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel/trace"
)

const createTickersTable = `
CREATE TABLE IF NOT EXISTS tickers (
    symbol TEXT PRIMARY KEY,
    name   TEXT NOT NULL DEFAULT ''
);
`

type TickerRepository struct {
	pool   PgxPool
	tracer trace.Tracer
}

func NewTickerRepository(pool PgxPool, tracer trace.Tracer) *TickerRepository {
	return &TickerRepository{pool: pool, tracer: tracer}
}

func (r *TickerRepository) RunMigrations(ctx context.Context) error {
	_, span := r.tracer.Start(ctx, "ticker-repo.run-migrations")
	defer span.End()

	_, err := r.pool.Exec(ctx, createTickersTable)
	return err
}

func (r *TickerRepository) UpsertTickers(ctx context.Context, tickers []domain.Ticker) error {
	if len(tickers) == 0 {
		return nil
	}

	_, span := r.tracer.Start(ctx, "ticker-repo.upsert-tickers")
	defer span.End()

	batch := &pgx.Batch{}
	for _, t := range tickers {
		batch.Queue(
			`INSERT INTO tickers (symbol, name)
			 VALUES ($1, $2)
			 ON CONFLICT (symbol) DO UPDATE SET name = EXCLUDED.name`,
			t.Symbol, t.Name,
		)
	}

	br := r.pool.SendBatch(ctx, batch)
	defer br.Close()

	for range tickers {
		if _, err := br.Exec(); err != nil {
			return err
		}
	}
	return nil
}

func (r *TickerRepository) ListTickers(ctx context.Context) ([]domain.Ticker, error) {
	_, span := r.tracer.Start(ctx, "ticker-repo.list-tickers")
	defer span.End()

	rows, err := r.pool.Query(ctx, `SELECT symbol, name FROM tickers ORDER BY symbol`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tickers []domain.Ticker
	for rows.Next() {
		var t domain.Ticker
		if err := rows.Scan(&t.Symbol, &t.Name); err != nil {
			return nil, err
		}
		tickers = append(tickers, t)
	}
	return tickers, rows.Err()
}

// GetTicker returns nil when the symbol is unknown.
func (r *TickerRepository) GetTicker(ctx context.Context, symbol string) (*domain.Ticker, error) {
	_, span := r.tracer.Start(ctx, "ticker-repo.get-ticker")
	defer span.End()

	var t domain.Ticker
	err := r.pool.QueryRow(ctx, `SELECT symbol, name FROM tickers WHERE symbol = $1`, symbol).Scan(&t.Symbol, &t.Name)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &t, nil
}
