package catalog

import (
	"fmt"
	"math"
	"sort"
	"sync"
	"sync/atomic"
)

// Entry is one catalog service specification with its ingestion-time
// embedding.
type Entry struct {
	ID          string
	Name        string
	Description string
	Metadata    map[string]string
	Vector      []float64
}

// Match is one search hit. Distance is cosine distance: 0 for identical
// direction, up to 2 for opposite.
type Match struct {
	Entry    Entry
	Distance float64
}

// snapshot is an immutable generation of the index. Readers grab the
// current snapshot once and never observe a partially-built one.
type snapshot struct {
	entries []Entry
	norms   []float64
	dim     int
}

// Index is an in-memory vector index over the catalog. Reads are lock-free
// against an atomically swapped snapshot; writes serialize among themselves
// and publish a complete new generation.
type Index struct {
	writeMu sync.Mutex
	snap    atomic.Pointer[snapshot]
}

func NewIndex() *Index {
	ix := &Index{}
	ix.snap.Store(&snapshot{})
	return ix
}

// Len returns the number of indexed entries.
func (ix *Index) Len() int {
	return len(ix.snap.Load().entries)
}

// ReplaceAll swaps in a new generation built from the given entries.
// Entries are kept in id order so that equal-distance hits rank
// deterministically.
func (ix *Index) ReplaceAll(entries []Entry) error {
	snap := &snapshot{}
	sorted := make([]Entry, len(entries))
	copy(sorted, entries)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })

	for _, e := range sorted {
		if len(e.Vector) == 0 {
			return fmt.Errorf("entry %s has no embedding", e.ID)
		}
		if snap.dim == 0 {
			snap.dim = len(e.Vector)
		} else if len(e.Vector) != snap.dim {
			return fmt.Errorf("entry %s has dimension %d, index has %d", e.ID, len(e.Vector), snap.dim)
		}
		snap.entries = append(snap.entries, e)
		snap.norms = append(snap.norms, norm(e.Vector))
	}

	ix.writeMu.Lock()
	ix.snap.Store(snap)
	ix.writeMu.Unlock()
	return nil
}

// Search returns the k nearest entries by cosine distance, closest first,
// ties broken by ascending id. An empty index yields an empty result.
func (ix *Index) Search(vec []float64, k int) ([]Match, error) {
	snap := ix.snap.Load()
	if len(snap.entries) == 0 || k <= 0 {
		return nil, nil
	}
	if len(vec) != snap.dim {
		return nil, fmt.Errorf("query dimension %d does not match index dimension %d", len(vec), snap.dim)
	}

	qn := norm(vec)
	matches := make([]Match, 0, len(snap.entries))
	for i, e := range snap.entries {
		matches = append(matches, Match{Entry: e, Distance: cosineDistance(vec, qn, e.Vector, snap.norms[i])})
	}

	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].Distance != matches[j].Distance {
			return matches[i].Distance < matches[j].Distance
		}
		return matches[i].Entry.ID < matches[j].Entry.ID
	})

	if len(matches) > k {
		matches = matches[:k]
	}
	return matches, nil
}

func norm(v []float64) float64 {
	var sum float64
	for _, x := range v {
		sum += x * x
	}
	return math.Sqrt(sum)
}

// cosineDistance is 1 − cos(a,b). Degenerate zero vectors are maximally
// distant rather than an error.
func cosineDistance(a []float64, an float64, b []float64, bn float64) float64 {
	if an == 0 || bn == 0 {
		return 1
	}
	var dot float64
	for i := range a {
		dot += a[i] * b[i]
	}
	return 1 - dot/(an*bn)
}
