package catalog

import (
	"math"
	"sync"
	"testing"
)

func testEntries() []Entry {
	return []Entry{
		{ID: "b", Name: "beta", Vector: []float64{0, 1, 0}},
		{ID: "a", Name: "alpha", Vector: []float64{1, 0, 0}},
		{ID: "c", Name: "gamma", Vector: []float64{0.7071, 0.7071, 0}},
	}
}

func TestIndex_EmptySearch(t *testing.T) {
	ix := NewIndex()
	matches, err := ix.Search([]float64{1, 0, 0}, 5)
	if err != nil {
		t.Fatal(err)
	}
	if len(matches) != 0 {
		t.Errorf("expected no matches from empty index, got %d", len(matches))
	}
}

func TestIndex_SearchOrdersByDistance(t *testing.T) {
	ix := NewIndex()
	if err := ix.ReplaceAll(testEntries()); err != nil {
		t.Fatal(err)
	}

	matches, err := ix.Search([]float64{1, 0, 0}, 3)
	if err != nil {
		t.Fatal(err)
	}
	if len(matches) != 3 {
		t.Fatalf("expected 3 matches, got %d", len(matches))
	}
	if matches[0].Entry.ID != "a" {
		t.Errorf("closest should be a, got %s", matches[0].Entry.ID)
	}
	if matches[0].Distance > 1e-9 {
		t.Errorf("identical direction should have distance ~0, got %f", matches[0].Distance)
	}
	if matches[1].Entry.ID != "c" || matches[2].Entry.ID != "b" {
		t.Errorf("order = %s, %s; want c, b", matches[1].Entry.ID, matches[2].Entry.ID)
	}
}

func TestIndex_TiesBreakByID(t *testing.T) {
	ix := NewIndex()
	err := ix.ReplaceAll([]Entry{
		{ID: "z", Vector: []float64{1, 0}},
		{ID: "a", Vector: []float64{1, 0}},
	})
	if err != nil {
		t.Fatal(err)
	}
	matches, err := ix.Search([]float64{1, 0}, 2)
	if err != nil {
		t.Fatal(err)
	}
	if matches[0].Entry.ID != "a" || matches[1].Entry.ID != "z" {
		t.Errorf("tie order = %s, %s; want a, z", matches[0].Entry.ID, matches[1].Entry.ID)
	}
}

func TestIndex_TruncatesToK(t *testing.T) {
	ix := NewIndex()
	if err := ix.ReplaceAll(testEntries()); err != nil {
		t.Fatal(err)
	}
	matches, err := ix.Search([]float64{1, 0, 0}, 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(matches) != 1 {
		t.Errorf("expected 1 match, got %d", len(matches))
	}
}

func TestIndex_DimensionMismatch(t *testing.T) {
	ix := NewIndex()
	if err := ix.ReplaceAll(testEntries()); err != nil {
		t.Fatal(err)
	}
	if _, err := ix.Search([]float64{1, 0}, 3); err == nil {
		t.Error("expected dimension mismatch error")
	}
	if err := ix.ReplaceAll([]Entry{
		{ID: "x", Vector: []float64{1, 0}},
		{ID: "y", Vector: []float64{1, 0, 0}},
	}); err == nil {
		t.Error("expected mixed-dimension rebuild to fail")
	}
}

func TestIndex_ZeroVectorIsMaximallyDistant(t *testing.T) {
	d := cosineDistance([]float64{0, 0}, 0, []float64{1, 0}, 1)
	if d != 1 {
		t.Errorf("zero vector distance = %f, want 1", d)
	}
}

func TestIndex_ConcurrentReadersDuringSwap(t *testing.T) {
	ix := NewIndex()
	if err := ix.ReplaceAll(testEntries()); err != nil {
		t.Fatal(err)
	}

	var wg sync.WaitGroup
	stop := make(chan struct{})
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				matches, err := ix.Search([]float64{1, 0, 0}, 3)
				if err != nil {
					t.Error(err)
					return
				}
				// A reader sees a full generation or nothing in between.
				if len(matches) != 3 {
					t.Errorf("partial snapshot observed: %d entries", len(matches))
					return
				}
			}
		}()
	}

	for i := 0; i < 50; i++ {
		if err := ix.ReplaceAll(testEntries()); err != nil {
			t.Fatal(err)
		}
	}
	close(stop)
	wg.Wait()
}

func TestNorm(t *testing.T) {
	if got := norm([]float64{3, 4}); math.Abs(got-5) > 1e-12 {
		t.Errorf("norm = %f, want 5", got)
	}
}
