// Package vectorstore implements a flat L2 nearest-neighbor index persisted
// as a binary file plus a JSON metadata sidecar. The two artifacts are
// written atomically as a pair; readers detect staleness by comparing the
// index file's modification time.
package vectorstore

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"sort"
	"time"
)

const indexMagic = "FLATIDX1"

var ErrDimensionMismatch = errors.New("vectorstore: vector dimension mismatch")

// Result is one nearest-neighbor hit.
type Result struct {
	Ordinal  int
	Distance float32
}

// Index is an exact (brute-force) L2 index. Fine at catalog scale.
type Index struct {
	dim     int
	vectors [][]float32
}

func NewIndex(dim int) *Index {
	return &Index{dim: dim}
}

func (ix *Index) Len() int {
	return len(ix.vectors)
}

func (ix *Index) Dim() int {
	return ix.dim
}

func (ix *Index) Add(vectors ...[]float32) error {
	for _, v := range vectors {
		if len(v) != ix.dim {
			return fmt.Errorf("%w: got %d, want %d", ErrDimensionMismatch, len(v), ix.dim)
		}
		ix.vectors = append(ix.vectors, v)
	}
	return nil
}

// Search returns the k nearest vectors by squared L2 distance, k clamped to
// the index size. Ties resolve by insertion order.
func (ix *Index) Search(query []float32, k int) ([]Result, error) {
	if len(query) != ix.dim {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrDimensionMismatch, len(query), ix.dim)
	}
	if k <= 0 || len(ix.vectors) == 0 {
		return nil, nil
	}
	if k > len(ix.vectors) {
		k = len(ix.vectors)
	}

	results := make([]Result, len(ix.vectors))
	for i, v := range ix.vectors {
		results[i] = Result{Ordinal: i, Distance: squaredL2(query, v)}
	}
	sort.SliceStable(results, func(a, b int) bool {
		return results[a].Distance < results[b].Distance
	})
	return results[:k], nil
}

func squaredL2(a, b []float32) float32 {
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return float32(sum)
}

func (ix *Index) write(w io.Writer) error {
	if _, err := w.Write([]byte(indexMagic)); err != nil {
		return err
	}
	header := []int32{int32(ix.dim), int32(len(ix.vectors))}
	if err := binary.Write(w, binary.LittleEndian, header); err != nil {
		return err
	}
	for _, v := range ix.vectors {
		for _, f := range v {
			if err := binary.Write(w, binary.LittleEndian, math.Float32bits(f)); err != nil {
				return err
			}
		}
	}
	return nil
}

func read(r io.Reader) (*Index, error) {
	magic := make([]byte, len(indexMagic))
	if _, err := io.ReadFull(r, magic); err != nil {
		return nil, fmt.Errorf("read index header: %w", err)
	}
	if string(magic) != indexMagic {
		return nil, errors.New("vectorstore: not an index file")
	}
	var header [2]int32
	if err := binary.Read(r, binary.LittleEndian, &header); err != nil {
		return nil, fmt.Errorf("read index header: %w", err)
	}
	dim, count := int(header[0]), int(header[1])
	if dim <= 0 || count < 0 {
		return nil, errors.New("vectorstore: corrupt index header")
	}

	ix := NewIndex(dim)
	buf := make([]uint32, dim)
	for i := 0; i < count; i++ {
		if err := binary.Read(r, binary.LittleEndian, &buf); err != nil {
			return nil, fmt.Errorf("read vector %d: %w", i, err)
		}
		v := make([]float32, dim)
		for j, bits := range buf {
			v[j] = math.Float32frombits(bits)
		}
		ix.vectors = append(ix.vectors, v)
	}
	return ix, nil
}

// IndexPath and MetaPath derive the artifact pair from a base path.
func IndexPath(base string) string { return base + ".idx" }
func MetaPath(base string) string  { return base + ".json" }

// SaveFile writes the index and its metadata sidecar atomically: both are
// written to temp files and renamed into place, metadata first so a visible
// index never lacks its sidecar.
func SaveFile(base string, ix *Index, metadata interface{}) error {
	if err := os.MkdirAll(filepath.Dir(base), 0o755); err != nil {
		return fmt.Errorf("create index dir: %w", err)
	}

	metaBytes, err := json.Marshal(metadata)
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}
	if err := atomicWrite(MetaPath(base), func(w io.Writer) error {
		_, werr := w.Write(metaBytes)
		return werr
	}); err != nil {
		return fmt.Errorf("write metadata: %w", err)
	}
	if err := atomicWrite(IndexPath(base), ix.write); err != nil {
		return fmt.Errorf("write index: %w", err)
	}
	return nil
}

// LoadFile reads the artifact pair. The returned time is the index file's
// mtime, for staleness checks.
func LoadFile(base string, metadataOut interface{}) (*Index, time.Time, error) {
	f, err := os.Open(IndexPath(base))
	if err != nil {
		return nil, time.Time{}, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, time.Time{}, err
	}

	ix, err := read(f)
	if err != nil {
		return nil, time.Time{}, err
	}

	metaBytes, err := os.ReadFile(MetaPath(base))
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("read metadata: %w", err)
	}
	if err := json.Unmarshal(metaBytes, metadataOut); err != nil {
		return nil, time.Time{}, fmt.Errorf("unmarshal metadata: %w", err)
	}
	return ix, info.ModTime(), nil
}

// ModTime returns the index file's mtime, or the zero time if absent.
func ModTime(base string) (time.Time, error) {
	info, err := os.Stat(IndexPath(base))
	if err != nil {
		if os.IsNotExist(err) {
			return time.Time{}, nil
		}
		return time.Time{}, err
	}
	return info.ModTime(), nil
}

func atomicWrite(path string, fill func(io.Writer) error) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if err := fill(tmp); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
