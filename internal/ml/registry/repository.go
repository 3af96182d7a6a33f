// Package registry persists trained model versions in Postgres. Every
// training run inserts a new immutable version; at most one version per
// model key is active at a time, and activation flips atomically.
package registry

import (
	"context"
	"errors"
	"time"

	"news-stock-explorer/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.opentelemetry.io/otel/trace"
)

type row interface {
	Scan(dest ...any) error
}

type pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Begin(ctx context.Context) (pgx.Tx, error)
}

type Repository struct {
	pool   pool
	tracer trace.Tracer
}

func NewRepository(pool pool, tracer trace.Tracer) *Repository {
	return &Repository{pool: pool, tracer: tracer}
}

const createModelVersionsTable = `
CREATE TABLE IF NOT EXISTS model_versions (
    id                  BIGSERIAL PRIMARY KEY,
    model_key           TEXT        NOT NULL,
    version             INT         NOT NULL,
    feature_set_version TEXT        NOT NULL DEFAULT 'v1',
    trained_from        TIMESTAMPTZ,
    trained_to          TIMESTAMPTZ,
    trained_at          TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    hyperparams_json    JSONB       NOT NULL DEFAULT '{}',
    metrics_json        JSONB       NOT NULL DEFAULT '{}',
    artifact_format     TEXT        NOT NULL,
    artifact_blob       BYTEA       NOT NULL,
    is_active           BOOLEAN     NOT NULL DEFAULT FALSE,
    activated_at        TIMESTAMPTZ,
    created_at          TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    UNIQUE (model_key, version)
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_model_versions_active
    ON model_versions (model_key) WHERE is_active;
`

func (r *Repository) RunMigrations(ctx context.Context) error {
	_, span := r.tracer.Start(ctx, "model-registry.run-migrations")
	defer span.End()

	_, err := r.pool.Exec(ctx, createModelVersionsTable)
	return err
}

const modelColumns = `id, model_key, version, feature_set_version,
       trained_from, trained_to, trained_at,
       hyperparams_json, metrics_json,
       artifact_format, artifact_blob,
       is_active, activated_at, created_at`

func (r *Repository) NextVersion(ctx context.Context, modelKey string) (int, error) {
	_, span := r.tracer.Start(ctx, "model-registry.next-version")
	defer span.End()

	var version int
	err := r.pool.QueryRow(ctx, `SELECT COALESCE(MAX(version), 0) + 1 FROM model_versions WHERE model_key = $1`, modelKey).Scan(&version)
	return version, err
}

func (r *Repository) InsertModelVersion(ctx context.Context, model domain.ModelVersion) (*domain.ModelVersion, error) {
	_, span := r.tracer.Start(ctx, "model-registry.insert")
	defer span.End()

	if model.ModelKey == "" || model.Version <= 0 {
		return nil, errors.New("invalid model version payload")
	}
	out, err := scanModel(r.pool.QueryRow(ctx, `
INSERT INTO model_versions (
    model_key, version, feature_set_version,
    trained_from, trained_to, trained_at,
    hyperparams_json, metrics_json,
    artifact_format, artifact_blob,
    is_active, activated_at
) VALUES (
    $1, $2, $3,
    $4, $5, COALESCE($6, NOW()),
    $7, $8,
    $9, $10,
    $11, $12
)
RETURNING `+modelColumns,
		model.ModelKey,
		model.Version,
		model.FeatureSetVersion,
		model.TrainedFrom.UTC(),
		model.TrainedTo.UTC(),
		nullIfZeroTime(model.TrainedAt),
		fallbackJSON(model.HyperparamsJSON),
		fallbackJSON(model.MetricsJSON),
		model.ArtifactFormat,
		model.ArtifactBlob,
		model.IsActive,
		nullTime(model.ActivatedAt),
	))
	if err != nil {
		return nil, err
	}
	return out, nil
}

// GetActiveModel returns the active version for a key, or nil when nothing
// has been activated yet.
func (r *Repository) GetActiveModel(ctx context.Context, modelKey string) (*domain.ModelVersion, error) {
	_, span := r.tracer.Start(ctx, "model-registry.get-active")
	defer span.End()

	return r.getOne(ctx, `
SELECT `+modelColumns+`
FROM model_versions
WHERE model_key = $1 AND is_active = TRUE
ORDER BY version DESC
LIMIT 1`, modelKey)
}

func (r *Repository) GetLatestModel(ctx context.Context, modelKey string) (*domain.ModelVersion, error) {
	_, span := r.tracer.Start(ctx, "model-registry.get-latest")
	defer span.End()

	return r.getOne(ctx, `
SELECT `+modelColumns+`
FROM model_versions
WHERE model_key = $1
ORDER BY version DESC
LIMIT 1`, modelKey)
}

// ListModelVersions returns the version history for a key, newest first,
// without artifact blobs.
func (r *Repository) ListModelVersions(ctx context.Context, modelKey string, limit int) ([]domain.ModelVersion, error) {
	_, span := r.tracer.Start(ctx, "model-registry.list")
	defer span.End()

	if limit <= 0 {
		limit = 20
	}
	rows, err := r.pool.Query(ctx, `
SELECT id, model_key, version, feature_set_version,
       trained_from, trained_to, trained_at,
       hyperparams_json, metrics_json,
       artifact_format, ''::bytea,
       is_active, activated_at, created_at
FROM model_versions
WHERE model_key = $1
ORDER BY version DESC
LIMIT $2`, modelKey, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.ModelVersion
	for rows.Next() {
		m, err := scanModel(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *m)
	}
	return out, rows.Err()
}

// ActivateModel deactivates every version of the key and activates the given
// one in a single transaction. Unknown versions report pgx.ErrNoRows.
func (r *Repository) ActivateModel(ctx context.Context, modelKey string, version int) error {
	_, span := r.tracer.Start(ctx, "model-registry.activate")
	defer span.End()

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `UPDATE model_versions SET is_active = FALSE, activated_at = NULL WHERE model_key = $1`, modelKey); err != nil {
		return err
	}
	tag, err := tx.Exec(ctx, `UPDATE model_versions SET is_active = TRUE, activated_at = NOW() WHERE model_key = $1 AND version = $2`, modelKey, version)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return tx.Commit(ctx)
}

func (r *Repository) getOne(ctx context.Context, query string, arg any) (*domain.ModelVersion, error) {
	out, err := scanModel(r.pool.QueryRow(ctx, query, arg))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return out, nil
}

func scanModel(r row) (*domain.ModelVersion, error) {
	var out domain.ModelVersion
	err := r.Scan(
		&out.ID,
		&out.ModelKey,
		&out.Version,
		&out.FeatureSetVersion,
		&out.TrainedFrom,
		&out.TrainedTo,
		&out.TrainedAt,
		&out.HyperparamsJSON,
		&out.MetricsJSON,
		&out.ArtifactFormat,
		&out.ArtifactBlob,
		&out.IsActive,
		&out.ActivatedAt,
		&out.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	normalizeModelTimes(&out)
	return &out, nil
}

func normalizeModelTimes(model *domain.ModelVersion) {
	model.TrainedFrom = model.TrainedFrom.UTC()
	model.TrainedTo = model.TrainedTo.UTC()
	model.TrainedAt = model.TrainedAt.UTC()
	model.CreatedAt = model.CreatedAt.UTC()
	if model.ActivatedAt != nil {
		t := model.ActivatedAt.UTC()
		model.ActivatedAt = &t
	}
}

func fallbackJSON(v string) string {
	if v == "" {
		return "{}"
	}
	return v
}

func nullIfZeroTime(v time.Time) any {
	if v.IsZero() {
		return nil
	}
	return v.UTC()
}

func nullTime(v *time.Time) any {
	if v == nil || v.IsZero() {
		return nil
	}
	t := v.UTC()
	return t
}
