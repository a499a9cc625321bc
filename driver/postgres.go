package driver

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/mindscape-ai/mindscape/domain"
)

// Postgres backs the driver contract with a single JSONB key/value table.
// Pattern queries translate '*' globs to LIKE; immutability is enforced in
// the upsert predicate.
type Postgres struct {
	db *pgxpool.Pool
}

func NewPostgres(db *pgxpool.Pool) *Postgres {
	return &Postgres{db: db}
}

// Migrate creates the backing table. Safe to call repeatedly.
func (p *Postgres) Migrate(ctx context.Context) error {
	_, err := p.db.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS mindscape_kv (
			key        TEXT PRIMARY KEY,
			value      BYTEA NOT NULL,
			tenant     TEXT NOT NULL DEFAULT '',
			type       TEXT NOT NULL DEFAULT '',
			immutable  BOOLEAN NOT NULL DEFAULT FALSE,
			ts         BIGINT NOT NULL DEFAULT 0
		);
		CREATE INDEX IF NOT EXISTS mindscape_kv_tenant_idx ON mindscape_kv (tenant);
		CREATE INDEX IF NOT EXISTS mindscape_kv_ts_idx ON mindscape_kv (ts);`)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrStorageUnavailable, err)
	}
	return nil
}

func (p *Postgres) Write(ctx context.Context, key string, value []byte, meta domain.WriteMeta) error {
	tag, err := p.db.Exec(ctx,
		`INSERT INTO mindscape_kv (key, value, tenant, type, immutable, ts)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (key) DO UPDATE
		 SET value = EXCLUDED.value, tenant = EXCLUDED.tenant,
		     type = EXCLUDED.type, immutable = EXCLUDED.immutable, ts = EXCLUDED.ts
		 WHERE NOT mindscape_kv.immutable`,
		key, value, meta.Tenant, meta.Type, meta.Immutable, meta.Timestamp)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrStorageUnavailable, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", domain.ErrImmutable, key)
	}
	return nil
}

func (p *Postgres) Read(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	err := p.db.QueryRow(ctx,
		`SELECT value FROM mindscape_kv WHERE key = $1`, key).Scan(&value)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", domain.ErrNotFound, key)
		}
		return nil, fmt.Errorf("%w: %v", domain.ErrStorageUnavailable, err)
	}
	return value, nil
}

func (p *Postgres) Query(ctx context.Context, q domain.QuerySpec) ([]domain.KeyValue, error) {
	sql := `SELECT key, value FROM mindscape_kv WHERE key LIKE $1`
	args := []any{PatternToLike(q.Pattern)}
	if q.From > 0 {
		args = append(args, q.From)
		sql += fmt.Sprintf(" AND ts >= $%d", len(args))
	}
	if q.To > 0 {
		args = append(args, q.To)
		sql += fmt.Sprintf(" AND ts <= $%d", len(args))
	}
	sql += " ORDER BY key"
	if q.Limit > 0 {
		args = append(args, q.Limit)
		sql += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := p.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrStorageUnavailable, err)
	}
	defer rows.Close()

	var out []domain.KeyValue
	for rows.Next() {
		var kv domain.KeyValue
		if err := rows.Scan(&kv.Key, &kv.Value); err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrStorageUnavailable, err)
		}
		out = append(out, kv)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrStorageUnavailable, err)
	}
	return out, nil
}

func (p *Postgres) Count(ctx context.Context, pattern string) (int, error) {
	var n int
	err := p.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM mindscape_kv WHERE key LIKE $1`, PatternToLike(pattern)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", domain.ErrStorageUnavailable, err)
	}
	return n, nil
}

func (p *Postgres) Exists(ctx context.Context, key string) (bool, error) {
	var ok bool
	err := p.db.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM mindscape_kv WHERE key = $1)`, key).Scan(&ok)
	if err != nil {
		return false, fmt.Errorf("%w: %v", domain.ErrStorageUnavailable, err)
	}
	return ok, nil
}

func (p *Postgres) GetMetadata(ctx context.Context, key string) (domain.WriteMeta, error) {
	var meta domain.WriteMeta
	err := p.db.QueryRow(ctx,
		`SELECT tenant, type, immutable, ts FROM mindscape_kv WHERE key = $1`, key).
		Scan(&meta.Tenant, &meta.Type, &meta.Immutable, &meta.Timestamp)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.WriteMeta{}, fmt.Errorf("%w: %s", domain.ErrNotFound, key)
		}
		return domain.WriteMeta{}, fmt.Errorf("%w: %v", domain.ErrStorageUnavailable, err)
	}
	return meta, nil
}

// WriteMulti batches inserts through a pgx.Batch round trip.
func (p *Postgres) WriteMulti(ctx context.Context, items []domain.Item) error {
	batch := &pgx.Batch{}
	for _, it := range items {
		batch.Queue(
			`INSERT INTO mindscape_kv (key, value, tenant, type, immutable, ts)
			 VALUES ($1, $2, $3, $4, $5, $6)
			 ON CONFLICT (key) DO UPDATE
			 SET value = EXCLUDED.value, tenant = EXCLUDED.tenant,
			     type = EXCLUDED.type, immutable = EXCLUDED.immutable, ts = EXCLUDED.ts
			 WHERE NOT mindscape_kv.immutable`,
			it.Key, it.Value, it.Meta.Tenant, it.Meta.Type, it.Meta.Immutable, it.Meta.Timestamp)
	}
	br := p.db.SendBatch(ctx, batch)
	defer func() { _ = br.Close() }()
	for range items {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("%w: %v", domain.ErrStorageUnavailable, err)
		}
	}
	return nil
}

// ReadMulti fetches the present subset of keys in one query.
func (p *Postgres) ReadMulti(ctx context.Context, keys []string) (map[string][]byte, error) {
	rows, err := p.db.Query(ctx,
		`SELECT key, value FROM mindscape_kv WHERE key = ANY($1)`, keys)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrStorageUnavailable, err)
	}
	defer rows.Close()

	out := make(map[string][]byte, len(keys))
	for rows.Next() {
		var k string
		var v []byte
		if err := rows.Scan(&k, &v); err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrStorageUnavailable, err)
		}
		out[k] = v
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrStorageUnavailable, err)
	}
	return out, nil
}

var (
	_ domain.Driver      = (*Postgres)(nil)
	_ domain.BatchDriver = (*Postgres)(nil)
)
