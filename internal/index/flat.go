// Package index implements the chunk embedding index: a flat exact
// nearest-neighbor structure plus the positional metadata that maps vector
// positions back to chunks, persisted together as a pair of artifacts.
package index

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"sort"
)

// Binary artifact layout: magic, format version, dimension, vector count,
// then count rows of dimension little-endian float32 values.
const (
	flatMagic   = uint32(0x534b4249) // "SKBI"
	flatVersion = uint32(1)
)

// Flat is an exact L2 index over float32 vectors. Vector position is
// assigned by insertion order and is the key into the metadata entries.
// Flat is safe for concurrent reads once fully built.
type Flat struct {
	dim     int
	vectors [][]float32
}

// NewFlat creates an empty index for vectors of the given dimension.
func NewFlat(dim int) (*Flat, error) {
	if dim <= 0 {
		return nil, fmt.Errorf("index dimension must be positive, got %d", dim)
	}
	return &Flat{dim: dim}, nil
}

// Dimension returns the vector dimension.
func (f *Flat) Dimension() int { return f.dim }

// Len returns the number of stored vectors.
func (f *Flat) Len() int { return len(f.vectors) }

// Add appends a vector. Its position is Len() before the call.
func (f *Flat) Add(vec []float32) error {
	if len(vec) != f.dim {
		return fmt.Errorf("vector has dimension %d, index expects %d", len(vec), f.dim)
	}
	f.vectors = append(f.vectors, vec)
	return nil
}

// Hit is one nearest-neighbor result.
type Hit struct {
	Position int
	Distance float32
}

// Search returns the k nearest vectors by squared L2 distance. Ties are
// broken by ascending insertion position so results are deterministic.
// k larger than the index returns everything.
func (f *Flat) Search(query []float32, k int) ([]Hit, error) {
	if len(query) != f.dim {
		return nil, fmt.Errorf("query has dimension %d, index expects %d", len(query), f.dim)
	}
	if k <= 0 || len(f.vectors) == 0 {
		return nil, nil
	}

	hits := make([]Hit, len(f.vectors))
	for i, vec := range f.vectors {
		var sum float32
		for j, q := range query {
			d := vec[j] - q
			sum += d * d
		}
		hits[i] = Hit{Position: i, Distance: sum}
	}

	sort.SliceStable(hits, func(a, b int) bool {
		if hits[a].Distance != hits[b].Distance {
			return hits[a].Distance < hits[b].Distance
		}
		return hits[a].Position < hits[b].Position
	})

	if k > len(hits) {
		k = len(hits)
	}
	return hits[:k], nil
}

// WriteTo serializes the index in the binary artifact layout.
func (f *Flat) WriteTo(w io.Writer) (int64, error) {
	bw := bufio.NewWriter(w)
	var written int64

	header := []uint32{flatMagic, flatVersion, uint32(f.dim), uint32(len(f.vectors))}
	for _, v := range header {
		if err := binary.Write(bw, binary.LittleEndian, v); err != nil {
			return written, err
		}
		written += 4
	}

	row := make([]byte, 4*f.dim)
	for _, vec := range f.vectors {
		for i, v := range vec {
			binary.LittleEndian.PutUint32(row[i*4:], math.Float32bits(v))
		}
		n, err := bw.Write(row)
		written += int64(n)
		if err != nil {
			return written, err
		}
	}

	return written, bw.Flush()
}

// ReadFlat deserializes an index written by WriteTo.
func ReadFlat(r io.Reader) (*Flat, error) {
	br := bufio.NewReader(r)

	var magic, version, dim, count uint32
	for _, dst := range []*uint32{&magic, &version, &dim, &count} {
		if err := binary.Read(br, binary.LittleEndian, dst); err != nil {
			return nil, fmt.Errorf("failed to read index header: %w", err)
		}
	}
	if magic != flatMagic {
		return nil, fmt.Errorf("not an index file: bad magic 0x%08x", magic)
	}
	if version != flatVersion {
		return nil, fmt.Errorf("unsupported index format version %d", version)
	}
	if dim == 0 {
		return nil, fmt.Errorf("index header has zero dimension")
	}

	f := &Flat{dim: int(dim), vectors: make([][]float32, 0, count)}
	row := make([]byte, 4*dim)
	for i := uint32(0); i < count; i++ {
		if _, err := io.ReadFull(br, row); err != nil {
			return nil, fmt.Errorf("failed to read vector %d: %w", i, err)
		}
		vec := make([]float32, dim)
		for j := range vec {
			vec[j] = math.Float32frombits(binary.LittleEndian.Uint32(row[j*4:]))
		}
		f.vectors = append(f.vectors, vec)
	}

	return f, nil
}
