package knowledge

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"sort"
)

const (
	indexMagic   uint32 = 0x53474b49 // "SGKI"
	indexVersion uint32 = 1
)

type hit struct {
	row   int
	score float32
}

// flatIndex is an exhaustive inner-product index over float32 vectors.
type flatIndex struct {
	dim  int
	rows [][]float32
}

func newFlatIndex(dim int) *flatIndex {
	return &flatIndex{dim: dim}
}

func (f *flatIndex) add(v []float32) {
	f.rows = append(f.rows, v)
}

func (f *flatIndex) len() int { return len(f.rows) }

// search returns the k rows with the highest inner product, best first.
func (f *flatIndex) search(q []float32, k int) []hit {
	hits := make([]hit, 0, len(f.rows))
	for i, row := range f.rows {
		var dot float32
		for j := range row {
			dot += row[j] * q[j]
		}
		hits = append(hits, hit{row: i, score: dot})
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].score > hits[j].score })
	if k < len(hits) {
		hits = hits[:k]
	}
	return hits
}

type indexHeader struct {
	Magic   uint32
	Version uint32
	Dim     uint32
	Count   uint32
}

// writeTo encodes the index as a little-endian header followed by the rows.
func (f *flatIndex) writeTo(w io.Writer) error {
	bw := bufio.NewWriter(w)
	hdr := indexHeader{Magic: indexMagic, Version: indexVersion, Dim: uint32(f.dim), Count: uint32(len(f.rows))}
	if err := binary.Write(bw, binary.LittleEndian, hdr); err != nil {
		return err
	}
	for _, row := range f.rows {
		if err := binary.Write(bw, binary.LittleEndian, row); err != nil {
			return err
		}
	}
	return bw.Flush()
}

func readFlatIndex(r io.Reader) (*flatIndex, error) {
	br := bufio.NewReader(r)
	var hdr indexHeader
	if err := binary.Read(br, binary.LittleEndian, &hdr); err != nil {
		return nil, fmt.Errorf("read index header: %w", err)
	}
	if hdr.Magic != indexMagic {
		return nil, fmt.Errorf("bad index magic %#x", hdr.Magic)
	}
	if hdr.Version != indexVersion {
		return nil, fmt.Errorf("unsupported index version %d", hdr.Version)
	}
	if hdr.Dim == 0 {
		return nil, fmt.Errorf("index dimension is zero")
	}

	f := newFlatIndex(int(hdr.Dim))
	for i := uint32(0); i < hdr.Count; i++ {
		row := make([]float32, hdr.Dim)
		if err := binary.Read(br, binary.LittleEndian, row); err != nil {
			return nil, fmt.Errorf("read index row %d: %w", i, err)
		}
		f.rows = append(f.rows, row)
	}
	return f, nil
}
