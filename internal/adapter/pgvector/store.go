// Package pgvector stores points in a PostgreSQL table with a pgvector
// column. The tenant is part of the primary key, so each team owns an
// isolated keyspace inside one table.
package pgvector

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	pgv "github.com/pgvector/pgvector-go"
	pgxvec "github.com/pgvector/pgvector-go/pgx"

	"vectorproxy/internal/vector"
)

const upsertPoint = `
	INSERT INTO points (tenant, id, datasource_id, content, payload, embedding)
	VALUES ($1, $2, $3, $4, $5, $6)
	ON CONFLICT (tenant, id) DO UPDATE SET
	    datasource_id = EXCLUDED.datasource_id,
	    content       = EXCLUDED.content,
	    payload       = EXCLUDED.payload,
	    embedding     = EXCLUDED.embedding,
	    updated_at    = now()`

func ddl(dimensions int) string {
	return fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS points (
    tenant        TEXT         NOT NULL,
    id            UUID         NOT NULL,
    datasource_id TEXT         NOT NULL DEFAULT '',
    content       TEXT         NOT NULL DEFAULT '',
    payload       JSONB        NOT NULL DEFAULT '{}',
    embedding     vector(%d)   NOT NULL,
    updated_at    TIMESTAMPTZ  NOT NULL DEFAULT now(),
    PRIMARY KEY (tenant, id)
);

CREATE INDEX IF NOT EXISTS idx_points_tenant_datasource
    ON points (tenant, datasource_id);

CREATE INDEX IF NOT EXISTS idx_points_embedding
    ON points USING hnsw (embedding vector_cosine_ops);
`, dimensions)
}

type Store struct {
	pool *pgxpool.Pool
}

// Open connects to dsn, installs the vector extension and the points table,
// and returns a Store on a pool with pgvector types registered.
func Open(ctx context.Context, dsn string, dimensions int) (*Store, error) {
	if err := createExtension(ctx, dsn); err != nil {
		return nil, err
	}

	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("pgvector: parse dsn: %w", err)
	}
	cfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		return pgxvec.RegisterTypes(ctx, conn)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("pgvector: create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pgvector: ping: %w", err)
	}
	if _, err := pool.Exec(ctx, ddl(dimensions)); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pgvector: migrate: %w", err)
	}
	return &Store{pool: pool}, nil
}

// The extension must exist before AfterConnect can register its types.
func createExtension(ctx context.Context, dsn string) error {
	conn, err := pgx.Connect(ctx, dsn)
	if err != nil {
		return fmt.Errorf("pgvector: connect: %w", err)
	}
	defer conn.Close(ctx)
	if _, err := conn.Exec(ctx, "CREATE EXTENSION IF NOT EXISTS vector"); err != nil {
		return fmt.Errorf("pgvector: create extension: %w", err)
	}
	return nil
}

func (s *Store) Close() {
	s.pool.Close()
}

func (s *Store) Pool() *pgxpool.Pool {
	return s.pool
}

// Upsert writes all points in one transaction.
func (s *Store) Upsert(ctx context.Context, tenant string, points []vector.Point) error {
	if len(points) == 0 {
		return nil
	}
	if err := vector.ValidateTenant(tenant); err != nil {
		return err
	}

	batch := &pgx.Batch{}
	for _, p := range points {
		payload, err := json.Marshal(p.Payload)
		if err != nil {
			return fmt.Errorf("pgvector: encode payload of %s: %w", p.ID, err)
		}
		dsID, _ := p.Payload[vector.PayloadDatasourceID].(string)
		content, _ := p.Payload[vector.PayloadContent].(string)
		batch.Queue(upsertPoint, tenant, p.ID, dsID, content, payload, pgv.NewVector(p.Vector))
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("pgvector: begin: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("pgvector: upsert: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("pgvector: commit: %w", err)
	}
	return nil
}

// Count returns the number of points stored for tenant.
func (s *Store) Count(ctx context.Context, tenant string) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM points WHERE tenant = $1`, tenant).Scan(&n)
	return n, err
}
