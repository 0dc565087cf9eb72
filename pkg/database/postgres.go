package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	maxConns = 25
	minConns = 2
)

// PostgresDB holds the pgx pool shared by jobs, chat and the knowledge archive.
type PostgresDB struct {
	Pool *pgxpool.Pool
}

// NewPostgresDB connects to databaseURL and verifies the connection.
func NewPostgresDB(ctx context.Context, databaseURL string) (*PostgresDB, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("database url: %w", err)
	}
	cfg.MaxConns, cfg.MinConns = maxConns, minConns

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("database pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("database unreachable: %w", err)
	}
	return &PostgresDB{Pool: pool}, nil
}

func (db *PostgresDB) Close() {
	db.Pool.Close()
}

// EnsureVectorExtension installs pgvector if the database lacks it.
func (db *PostgresDB) EnsureVectorExtension(ctx context.Context) error {
	if _, err := db.Pool.Exec(ctx, `CREATE EXTENSION IF NOT EXISTS vector`); err != nil {
		return fmt.Errorf("enable pgvector: %w", err)
	}
	return nil
}

// CreateKnowledgeTable creates the table mirroring knowledge store documents.
// Rows are keyed by the store's document id.
func (db *PostgresDB) CreateKnowledgeTable(ctx context.Context, tableName string, dimension int) error {
	for _, q := range knowledgeTableDDL(tableName, dimension) {
		if _, err := db.Pool.Exec(ctx, q); err != nil {
			return fmt.Errorf("create archive table %s: %w", tableName, err)
		}
	}
	return nil
}

func knowledgeTableDDL(tableName string, dimension int) []string {
	table := pgx.Identifier{tableName}.Sanitize()
	stmts := []string{fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			doc_id TEXT PRIMARY KEY,
			content TEXT NOT NULL,
			metadata JSONB NOT NULL DEFAULT '{}',
			embedding vector(%d),
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
	`, table, dimension)}

	// HNSW supports up to 2000 dimensions; larger vectors fall back to exact search.
	if dimension <= 2000 {
		stmts = append(stmts, fmt.Sprintf(`
			CREATE INDEX IF NOT EXISTS %s
			ON %s USING hnsw (embedding vector_cosine_ops)
		`, pgx.Identifier{tableName + "_embedding_idx"}.Sanitize(), table))
	}
	stmts = append(stmts, fmt.Sprintf(
		"CREATE INDEX IF NOT EXISTS %s ON %s ((metadata->>'topic'))",
		pgx.Identifier{tableName + "_topic_idx"}.Sanitize(), table))
	return stmts
}
