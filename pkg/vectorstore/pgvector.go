package vectorstore

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/Chinmay-Bakhale/scriptgen/pkg/knowledge"
)

// DefaultTable holds the mirrored knowledge documents.
const DefaultTable = "knowledge_documents"

var _ knowledge.Mirror = (*PGVectorStore)(nil)

var tableNameRe = regexp.MustCompile(`^[a-z_][a-zA-Z0-9_]{0,62}$`)

// Document is an archived knowledge document.
type Document struct {
	ID       string         `json:"id"`
	Content  string         `json:"content"`
	Metadata map[string]any `json:"metadata"`
}

// SimilaritySearchResult pairs an archived document with its cosine similarity.
type SimilaritySearchResult struct {
	Document Document
	Score    float64
}

// PGVectorStore archives knowledge documents in a pgvector table so they can
// be queried with SQL filters across runs and machines.
type PGVectorStore struct {
	pool      *pgxpool.Pool
	tableName string
}

func isValidTableName(name string) bool {
	return tableNameRe.MatchString(name)
}

// NewPGVectorStore returns an archive over tableName, or DefaultTable when empty.
// The name is interpolated into SQL, so only lowercase-led identifiers of at
// most 63 characters are accepted.
func NewPGVectorStore(pool *pgxpool.Pool, tableName string) (*PGVectorStore, error) {
	if tableName == "" {
		tableName = DefaultTable
	}
	if !isValidTableName(tableName) {
		return nil, fmt.Errorf("invalid archive table name %q", tableName)
	}
	return &PGVectorStore{pool: pool, tableName: tableName}, nil
}

// Table returns the archive table name.
func (vs *PGVectorStore) Table() string {
	return vs.tableName
}

func (vs *PGVectorStore) table() string {
	return pgx.Identifier{vs.tableName}.Sanitize()
}

// metadataFor is the JSONB metadata stored with a document.
func metadataFor(doc knowledge.Document) map[string]any {
	return map[string]any{
		"url":        doc.URL,
		"topic":      doc.Topic,
		"iteration":  doc.Iteration,
		"word_count": doc.WordCount,
	}
}

// Archive implements knowledge.Mirror. Documents already archived are left unchanged.
func (vs *PGVectorStore) Archive(ctx context.Context, docs []knowledge.Document, vectors [][]float32) error {
	if len(docs) != len(vectors) {
		return fmt.Errorf("archive got %d documents and %d vectors", len(docs), len(vectors))
	}
	if len(docs) == 0 {
		return nil
	}

	insert := `INSERT INTO ` + vs.table() + ` (doc_id, content, metadata, embedding)
		VALUES ($1, $2, $3, $4) ON CONFLICT (doc_id) DO NOTHING`

	batch := &pgx.Batch{}
	for i, doc := range docs {
		meta, err := json.Marshal(metadataFor(doc))
		if err != nil {
			return fmt.Errorf("encode metadata for %s: %w", doc.URL, err)
		}
		batch.Queue(insert, doc.ID, doc.ContentPreview, meta, pgvector.NewVector(vectors[i]))
	}

	results := vs.pool.SendBatch(ctx, batch)
	defer results.Close()
	for _, doc := range docs {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("archive %s: %w", doc.URL, err)
		}
	}
	return nil
}

// SimilaritySearch returns the topK archived documents closest to
// queryEmbedding by cosine similarity, optionally restricted to one topic.
func (vs *PGVectorStore) SimilaritySearch(ctx context.Context, queryEmbedding []float32, topK int, topic string) ([]SimilaritySearchResult, error) {
	args := []any{pgvector.NewVector(queryEmbedding), topK}
	where := ""
	if topic != "" {
		args = append(args, topic)
		where = "WHERE metadata->>'topic' = $3"
	}

	query := `SELECT doc_id, content, metadata, 1 - (embedding <=> $1) AS similarity
		FROM ` + vs.table() + ` ` + where + `
		ORDER BY embedding <=> $1 LIMIT $2`

	rows, err := vs.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("similarity search: %w", err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (SimilaritySearchResult, error) {
		var r SimilaritySearchResult
		var meta []byte
		if err := row.Scan(&r.Document.ID, &r.Document.Content, &meta, &r.Score); err != nil {
			return r, err
		}
		return r, json.Unmarshal(meta, &r.Document.Metadata)
	})
}

// GetContentByURL retrieves the archived document for a page URL.
func (vs *PGVectorStore) GetContentByURL(ctx context.Context, url string) ([]Document, error) {
	return vs.GetContentByMetadata(ctx, Filter{"url": url})
}

// GetContentByMetadata returns archived documents matching filter, oldest first.
func (vs *PGVectorStore) GetContentByMetadata(ctx context.Context, filter map[string]any) ([]Document, error) {
	where, args, err := whereClause(filter)
	if err != nil {
		return nil, fmt.Errorf("metadata filter: %w", err)
	}

	query := `SELECT doc_id, content, metadata FROM ` + vs.table() +
		` WHERE ` + where + ` ORDER BY created_at`

	rows, err := vs.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("metadata query: %w", err)
	}
	return pgx.CollectRows(rows, scanDocument)
}

func scanDocument(row pgx.CollectableRow) (Document, error) {
	var d Document
	var meta []byte
	if err := row.Scan(&d.ID, &d.Content, &meta); err != nil {
		return d, err
	}
	return d, json.Unmarshal(meta, &d.Metadata)
}

// Count returns the number of archived documents.
func (vs *PGVectorStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := vs.pool.QueryRow(ctx, `SELECT COUNT(*) FROM `+vs.table()).Scan(&n); err != nil {
		return 0, fmt.Errorf("count archive: %w", err)
	}
	return n, nil
}
