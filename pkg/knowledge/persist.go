package knowledge

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
)

const (
	indexFile    = "index.bin"
	metadataFile = "metadata.json"
)

type metadata struct {
	EmbeddingModel string     `json:"embedding_model"`
	Dimension      int        `json:"dimension"`
	Documents      []Document `json:"documents"`
	DocIDs         []string   `json:"doc_ids"`
}

func (s *Store) load() error {
	idxPath := filepath.Join(s.dir, indexFile)
	metaPath := filepath.Join(s.dir, metadataFile)

	idxFile, err := os.Open(idxPath)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("open index: %w", err)
	}
	defer idxFile.Close()

	metaBytes, err := os.ReadFile(metaPath)
	if errors.Is(err, fs.ErrNotExist) {
		s.logger.Warn("Knowledge index without metadata, starting empty", "dir", s.dir)
		return nil
	}
	if err != nil {
		return fmt.Errorf("read metadata: %w", err)
	}

	var meta metadata
	if err := json.Unmarshal(metaBytes, &meta); err != nil {
		return fmt.Errorf("%w: metadata: %v", ErrCorrupt, err)
	}
	idx, err := readFlatIndex(idxFile)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrCorrupt, err)
	}

	want := s.embedder.Dimension()
	if idx.dim != want || (meta.Dimension != 0 && meta.Dimension != want) {
		return fmt.Errorf("%w: store has %d, embedder produces %d", ErrDimensionMismatch, idx.dim, want)
	}
	if meta.EmbeddingModel != "" && meta.EmbeddingModel != s.embedder.Model() {
		s.logger.Warn("Knowledge store was built with a different embedding model",
			"stored", meta.EmbeddingModel, "current", s.embedder.Model())
	}

	switch n := len(meta.Documents); {
	case idx.len() < n:
		return fmt.Errorf("%w: index has %d rows, metadata has %d documents", ErrCorrupt, idx.len(), n)
	case idx.len() > n:
		// interrupted between the index and metadata renames
		s.logger.Warn("Truncating knowledge index to metadata length", "rows", idx.len(), "documents", n)
		idx.rows = idx.rows[:n]
	}

	s.index = idx
	s.docs = meta.Documents
	for _, d := range meta.Documents {
		s.ids[d.ID] = struct{}{}
	}
	return nil
}

// save writes the index then the metadata, each through a temp file and rename.
func (s *Store) save() error {
	err := writeAtomic(filepath.Join(s.dir, indexFile), func(w io.Writer) error {
		return s.index.writeTo(w)
	})
	if err != nil {
		return fmt.Errorf("save index: %w", err)
	}

	ids := make([]string, len(s.docs))
	for i, d := range s.docs {
		ids[i] = d.ID
	}
	meta := metadata{
		EmbeddingModel: s.embedder.Model(),
		Dimension:      s.index.dim,
		Documents:      s.docs,
		DocIDs:         ids,
	}
	err = writeAtomic(filepath.Join(s.dir, metadataFile), func(w io.Writer) error {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(meta)
	})
	if err != nil {
		return fmt.Errorf("save metadata: %w", err)
	}
	return nil
}

func writeAtomic(path string, write func(io.Writer) error) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if err := write(tmp); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
