package knowledge

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"
	"sync"

	"github.com/Chinmay-Bakhale/scriptgen/pkg/source"
	"github.com/Chinmay-Bakhale/scriptgen/pkg/splitter"
)

const (
	DefaultDir = "./knowledge_store"
	// PreviewLength caps the stored content preview, in characters.
	PreviewLength = 4000
	// overFetch widens the candidate set so topic filtering can still fill n results.
	overFetch = 3
)

var (
	ErrCorrupt           = errors.New("knowledge store is corrupt")
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
)

// Embedder turns texts into fixed-size vectors.
type Embedder interface {
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
	Dimension() int
	Model() string
}

// Mirror receives every newly stored batch, e.g. to archive it elsewhere.
type Mirror interface {
	Archive(ctx context.Context, docs []Document, vectors [][]float32) error
}

// Document is the metadata kept for one stored page.
type Document struct {
	ID             string `json:"doc_id"`
	URL            string `json:"url"`
	Topic          string `json:"topic"`
	Iteration      int    `json:"iteration"`
	WordCount      int    `json:"word_count"`
	ContentPreview string `json:"content_preview"`
}

// Retrieved is a search hit.
type Retrieved struct {
	Content        string  `json:"content"`
	URL            string  `json:"url"`
	Topic          string  `json:"topic"`
	RelevanceScore float64 `json:"relevance_score"`
}

// Stats summarises the store.
type Stats struct {
	TotalDocuments   int    `json:"total_documents"`
	PersistDirectory string `json:"persist_directory"`
	EmbeddingModel   string `json:"embedding_model"`
}

// Store is a persistent flat inner-product vector index over research pages.
// It is safe for concurrent use.
type Store struct {
	dir      string
	embedder Embedder
	logger   *slog.Logger
	mirror   Mirror
	splitter *splitter.TextSplitter

	mu    sync.Mutex
	index *flatIndex
	docs  []Document
	ids   map[string]struct{}
}

// Option configures a Store.
type Option func(*Store)

func WithLogger(l *slog.Logger) Option {
	return func(s *Store) { s.logger = l }
}

func WithMirror(m Mirror) Option {
	return func(s *Store) { s.mirror = m }
}

// Open loads the store persisted in dir, creating the directory when needed.
// A missing index or metadata file yields an empty store; unreadable files
// yield ErrCorrupt and a dimension differing from the embedder's yields
// ErrDimensionMismatch.
func Open(dir string, embedder Embedder, opts ...Option) (*Store, error) {
	if dir == "" {
		dir = DefaultDir
	}
	s := &Store{
		dir:      dir,
		embedder: embedder,
		logger:   slog.Default(),
		splitter: splitter.NewRecursiveCharacterTextSplitter(PreviewLength, 0),
		index:    newFlatIndex(embedder.Dimension()),
		ids:      make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create knowledge directory: %w", err)
	}
	if err := s.load(); err != nil {
		return nil, err
	}

	if len(s.docs) > 0 {
		s.logger.Info("Loaded knowledge store", "dir", dir, "documents", len(s.docs))
	} else {
		s.logger.Info("Created new knowledge store", "dir", dir)
	}
	return s, nil
}

// DocID derives the document id for a URL.
func DocID(url string) string {
	sum := md5.Sum([]byte(url))
	return hex.EncodeToString(sum[:])
}

// AddDocuments embeds and stores pages whose URL is not yet known. Pages
// without URL or content are skipped. It returns the number of new documents.
func (s *Store) AddDocuments(ctx context.Context, pages []source.Page, topic string, iteration int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var (
		newDocs  []Document
		previews []string
		batch    = make(map[string]struct{})
	)
	for _, p := range pages {
		if p.URL == "" || p.RawContent == "" {
			continue
		}
		id := DocID(p.URL)
		if _, ok := s.ids[id]; ok {
			continue
		}
		if _, ok := batch[id]; ok {
			continue
		}
		batch[id] = struct{}{}

		preview := s.splitter.FirstChunk(p.RawContent)
		previews = append(previews, preview)
		newDocs = append(newDocs, Document{
			ID:             id,
			URL:            p.URL,
			Topic:          topic,
			Iteration:      iteration,
			WordCount:      p.WordCount(),
			ContentPreview: preview,
		})
	}

	if len(newDocs) == 0 {
		s.logger.Info("All documents already stored, skipping")
		return 0, nil
	}

	vectors, err := s.embed(ctx, previews)
	if err != nil {
		return 0, err
	}

	rows, docs := s.index.len(), len(s.docs)
	for i, doc := range newDocs {
		s.index.add(vectors[i])
		s.docs = append(s.docs, doc)
		s.ids[doc.ID] = struct{}{}
	}

	if err := s.save(); err != nil {
		// nothing from this call survives a failed save
		s.index.rows = s.index.rows[:rows]
		s.docs = s.docs[:docs]
		for _, doc := range newDocs {
			delete(s.ids, doc.ID)
		}
		return 0, err
	}
	s.logger.Info("Stored new documents", "added", len(newDocs), "total", len(s.docs))

	if s.mirror != nil {
		if err := s.mirror.Archive(ctx, newDocs, vectors); err != nil {
			s.logger.Warn("Knowledge mirror failed", "error", err)
		}
	}
	return len(newDocs), nil
}

// Retrieve returns up to n documents most similar to query, best first. When
// topicFilter is non-empty only documents stored under that exact topic are
// returned. An empty store returns no results without embedding the query.
func (s *Store) Retrieve(ctx context.Context, query string, n int, topicFilter string) ([]Retrieved, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	results := []Retrieved{}
	if len(s.docs) == 0 || n <= 0 {
		return results, nil
	}

	vecs, err := s.embed(ctx, []string{query})
	if err != nil {
		return nil, err
	}

	k := min(n*overFetch, len(s.docs))
	for _, hit := range s.index.search(vecs[0], k) {
		if hit.row < 0 || hit.row >= len(s.docs) {
			continue
		}
		doc := s.docs[hit.row]
		if topicFilter != "" && doc.Topic != topicFilter {
			continue
		}
		results = append(results, Retrieved{
			Content:        doc.ContentPreview,
			URL:            doc.URL,
			Topic:          doc.Topic,
			RelevanceScore: relevance(hit.score),
		})
		if len(results) >= n {
			break
		}
	}
	return results, nil
}

// RetrieveForTopic retrieves the documents most relevant to topic across all topics.
func (s *Store) RetrieveForTopic(ctx context.Context, topic string, n int) ([]Retrieved, error) {
	return s.Retrieve(ctx, topic, n, "")
}

// Stats reports the document count and store location.
func (s *Store) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Stats{
		TotalDocuments:   len(s.docs),
		PersistDirectory: s.dir,
		EmbeddingModel:   s.embedder.Model(),
	}
}

// Len returns the number of stored documents.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.docs)
}

// Documents returns a copy of the stored document metadata in insertion order.
func (s *Store) Documents() []Document {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Document, len(s.docs))
	copy(out, s.docs)
	return out
}

func (s *Store) embed(ctx context.Context, texts []string) ([][]float32, error) {
	vecs, err := s.embedder.EmbedTexts(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("failed to embed texts: %w", err)
	}
	if len(vecs) != len(texts) {
		return nil, fmt.Errorf("embedder returned %d vectors for %d texts", len(vecs), len(texts))
	}
	dim := s.embedder.Dimension()
	for i, v := range vecs {
		if len(v) != dim {
			return nil, fmt.Errorf("%w: embedder returned %d, want %d", ErrDimensionMismatch, len(v), dim)
		}
		vecs[i] = normalize(v)
	}
	return vecs, nil
}

func normalize(v []float32) []float32 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	out := make([]float32, len(v))
	if sum == 0 {
		return out
	}
	scale := 1 / math.Sqrt(sum)
	for i, x := range v {
		out[i] = float32(float64(x) * scale)
	}
	return out
}

func relevance(score float32) float64 {
	r := math.Max(0, math.Min(float64(score), 1))
	return math.Round(r*1e4) / 1e4
}
