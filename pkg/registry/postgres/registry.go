// Package postgres backs lifecycle.Registry with PostgreSQL.
//
// Version numbers are assigned under a row lock on the model, so they
// are monotonic per model name even for concurrent registrations.
// Alias reassignment is a single upsert in a transaction: a concurrent
// reader resolves either the old target or the new one, never between.
package postgres

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"net"
	"time"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	xe "github.com/modelyard/modelyard/pkg/errors"
	"github.com/modelyard/modelyard/pkg/lifecycle"
)

//go:embed schema.sql
var schema string

type Registry struct {
	pool *pgxpool.Pool
}

var _ lifecycle.Registry = &Registry{}

func New(ctx context.Context, url string) (*Registry, error) {
	pool, err := pgxpool.Connect(ctx, url)
	if err != nil {
		return nil, lifecycle.RegistryUnavailable{Cause: xe.Wrap(err)}
	}
	return &Registry{pool: pool}, nil
}

func (r *Registry) Close() {
	r.pool.Close()
}

// EnsureSchema creates the registry tables unless they exist already.
func (r *Registry) EnsureSchema(ctx context.Context) error {
	if _, err := r.pool.Exec(ctx, schema); err != nil {
		return classify(err)
	}
	return nil
}

func (r *Registry) Register(
	ctx context.Context, modelName string, artifactRef string, meta map[string]string,
) (lifecycle.ModelVersion, error) {
	if meta == nil {
		meta = map[string]string{}
	}
	rawMeta, err := json.Marshal(meta)
	if err != nil {
		return lifecycle.ModelVersion{}, err
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return lifecycle.ModelVersion{}, classify(err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(
		ctx, `insert into "model" ("name") values ($1) on conflict ("name") do nothing;`,
		modelName,
	); err != nil {
		return lifecycle.ModelVersion{}, classify(err)
	}

	// serialize version assignment per model name
	var lockedName string
	if err := tx.QueryRow(
		ctx, `select "name" from "model" where "name" = $1 for update;`, modelName,
	).Scan(&lockedName); err != nil {
		return lifecycle.ModelVersion{}, classify(err)
	}

	var version int
	var registeredAt time.Time
	if err := tx.QueryRow(
		ctx,
		`
		insert into "model_version" ("name", "version", "artifact_ref", "meta")
		values (
			$1,
			(select coalesce(max("version"), 0) + 1 from "model_version" where "name" = $1),
			$2, $3::jsonb
		)
		returning "version", "registered_at";
		`,
		modelName, artifactRef, rawMeta,
	).Scan(&version, &registeredAt); err != nil {
		return lifecycle.ModelVersion{}, classify(err)
	}

	if err := tx.Commit(ctx); err != nil {
		return lifecycle.ModelVersion{}, classify(err)
	}

	return lifecycle.ModelVersion{
		ModelName:    modelName,
		Version:      version,
		ArtifactRef:  artifactRef,
		RegisteredAt: registeredAt,
		Meta:         meta,
		Aliases:      []string{},
	}, nil
}

func (r *Registry) GetVersion(
	ctx context.Context, modelName string, version int,
) (lifecycle.ModelVersion, error) {
	found, err := r.versions(ctx, modelName, &version)
	if err != nil {
		return lifecycle.ModelVersion{}, err
	}
	if len(found) == 0 {
		return lifecycle.ModelVersion{}, lifecycle.MissingVersion{
			ModelName: modelName, Version: version,
		}
	}
	return found[0], nil
}

func (r *Registry) Versions(
	ctx context.Context, modelName string,
) ([]lifecycle.ModelVersion, error) {
	return r.versions(ctx, modelName, nil)
}

func (r *Registry) versions(
	ctx context.Context, modelName string, only *int,
) ([]lifecycle.ModelVersion, error) {

	rows, err := r.pool.Query(
		ctx,
		`
		select "version", "artifact_ref", "meta", "registered_at"
		from "model_version"
		where "name" = $1 and ($2::int is null or "version" = $2)
		order by "version";
		`,
		modelName, only,
	)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()

	found := []lifecycle.ModelVersion{}
	index := map[int]int{} // version number -> position in found
	for rows.Next() {
		v := lifecycle.ModelVersion{ModelName: modelName, Aliases: []string{}}
		var rawMeta []byte
		if err := rows.Scan(&v.Version, &v.ArtifactRef, &rawMeta, &v.RegisteredAt); err != nil {
			return nil, classify(err)
		}
		if err := json.Unmarshal(rawMeta, &v.Meta); err != nil {
			return nil, xe.Wrap(err)
		}
		index[v.Version] = len(found)
		found = append(found, v)
	}
	if err := rows.Err(); err != nil {
		return nil, classify(err)
	}
	if len(found) == 0 {
		return found, nil
	}

	aliases, err := r.pool.Query(
		ctx, `select "alias", "version" from "model_alias" where "name" = $1 order by "alias";`,
		modelName,
	)
	if err != nil {
		return nil, classify(err)
	}
	defer aliases.Close()
	for aliases.Next() {
		var alias string
		var version int
		if err := aliases.Scan(&alias, &version); err != nil {
			return nil, classify(err)
		}
		if at, ok := index[version]; ok {
			found[at].Aliases = append(found[at].Aliases, alias)
		}
	}
	if err := aliases.Err(); err != nil {
		return nil, classify(err)
	}

	metrics, err := r.pool.Query(
		ctx,
		`
		select distinct on ("version") "version", "metrics", "evaluated_at"
		from "model_metrics"
		where "name" = $1
		order by "version", "evaluated_at" desc, "id" desc;
		`,
		modelName,
	)
	if err != nil {
		return nil, classify(err)
	}
	defer metrics.Close()
	for metrics.Next() {
		rec := lifecycle.MetricsRecord{ModelName: modelName}
		var rawValues []byte
		if err := metrics.Scan(&rec.Version, &rawValues, &rec.EvaluatedAt); err != nil {
			return nil, classify(err)
		}
		if err := json.Unmarshal(rawValues, &rec.Values); err != nil {
			return nil, xe.Wrap(err)
		}
		if at, ok := index[rec.Version]; ok {
			found[at].Metrics = &rec
		}
	}
	if err := metrics.Err(); err != nil {
		return nil, classify(err)
	}

	return found, nil
}

func (r *Registry) SetAlias(
	ctx context.Context, modelName string, alias string, version int,
) (*int, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, classify(err)
	}
	defer tx.Rollback(ctx)

	if err := verifyVersion(ctx, tx, modelName, version); err != nil {
		return nil, err
	}

	var previous *int
	var prev int
	err = tx.QueryRow(
		ctx,
		`select "version" from "model_alias" where "name" = $1 and "alias" = $2 for update;`,
		modelName, alias,
	).Scan(&prev)
	switch {
	case err == nil:
		previous = &prev
	case errors.Is(err, pgx.ErrNoRows):
		// alias was unset
	default:
		return nil, classify(err)
	}

	if _, err := tx.Exec(
		ctx,
		`
		insert into "model_alias" ("name", "alias", "version") values ($1, $2, $3)
		on conflict ("name", "alias")
		do update set "version" = excluded."version", "updated_at" = now();
		`,
		modelName, alias, version,
	); err != nil {
		return nil, classify(err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, classify(err)
	}
	return previous, nil
}

func (r *Registry) GetAlias(
	ctx context.Context, modelName string, alias string,
) (*int, error) {
	var version int
	err := r.pool.QueryRow(
		ctx,
		`select "version" from "model_alias" where "name" = $1 and "alias" = $2;`,
		modelName, alias,
	).Scan(&version)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, classify(err)
	}
	return &version, nil
}

func (r *Registry) AttachMetrics(
	ctx context.Context, record lifecycle.MetricsRecord,
) (lifecycle.MetricsRecord, error) {
	rawValues, err := json.Marshal(record.Values)
	if err != nil {
		return lifecycle.MetricsRecord{}, err
	}
	if record.EvaluatedAt.IsZero() {
		record.EvaluatedAt = time.Now()
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return lifecycle.MetricsRecord{}, classify(err)
	}
	defer tx.Rollback(ctx)

	if err := verifyVersion(ctx, tx, record.ModelName, record.Version); err != nil {
		return lifecycle.MetricsRecord{}, err
	}

	if err := tx.QueryRow(
		ctx,
		`
		insert into "model_metrics" ("name", "version", "metrics", "evaluated_at")
		values ($1, $2, $3::jsonb, $4)
		returning "evaluated_at";
		`,
		record.ModelName, record.Version, rawValues, record.EvaluatedAt,
	).Scan(&record.EvaluatedAt); err != nil {
		return lifecycle.MetricsRecord{}, classify(err)
	}

	if err := tx.Commit(ctx); err != nil {
		return lifecycle.MetricsRecord{}, classify(err)
	}
	return record, nil
}

func (r *Registry) LatestMetrics(
	ctx context.Context, modelName string, version int,
) (lifecycle.MetricsRecord, error) {
	record := lifecycle.MetricsRecord{ModelName: modelName, Version: version}
	var rawValues []byte
	err := r.pool.QueryRow(
		ctx,
		`
		select "metrics", "evaluated_at" from "model_metrics"
		where "name" = $1 and "version" = $2
		order by "evaluated_at" desc, "id" desc
		limit 1;
		`,
		modelName, version,
	).Scan(&rawValues, &record.EvaluatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		if err := verifyVersion(ctx, r.pool, modelName, version); err != nil {
			return lifecycle.MetricsRecord{}, err
		}
		return lifecycle.MetricsRecord{}, lifecycle.Unevaluated{
			ModelName: modelName, Version: version,
		}
	}
	if err != nil {
		return lifecycle.MetricsRecord{}, classify(err)
	}
	if err := json.Unmarshal(rawValues, &record.Values); err != nil {
		return lifecycle.MetricsRecord{}, xe.Wrap(err)
	}
	return record, nil
}

type queryRower interface {
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
}

func verifyVersion(ctx context.Context, q queryRower, modelName string, version int) error {
	var one int
	err := q.QueryRow(
		ctx,
		`select 1 from "model_version" where "name" = $1 and "version" = $2;`,
		modelName, version,
	).Scan(&one)
	if errors.Is(err, pgx.ErrNoRows) {
		return lifecycle.MissingVersion{ModelName: modelName, Version: version}
	}
	if err != nil {
		return classify(err)
	}
	return nil
}

// classify maps infrastructure-level failures to the retryable
// RegistryError. Anything else passes through as-is.
func classify(err error) error {
	if err == nil {
		return nil
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if pgerrcode.IsConnectionException(pgErr.Code) ||
			pgerrcode.IsOperatorIntervention(pgErr.Code) ||
			pgerrcode.IsInsufficientResources(pgErr.Code) ||
			pgErr.Code == pgerrcode.SerializationFailure ||
			pgErr.Code == pgerrcode.DeadlockDetected {
			return lifecycle.RegistryUnavailable{Cause: err}
		}
		return err
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return lifecycle.RegistryUnavailable{Cause: err}
	}

	return err
}
