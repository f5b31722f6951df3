package retrieval

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/ibn-labs/fulcrum/internal/catalog"
	"github.com/ibn-labs/fulcrum/internal/types"
)

// stubEmbedder returns a fixed vector, or an error, for any text.
type stubEmbedder struct {
	vec []float64
	err error
}

func (s *stubEmbedder) Embed(_ context.Context, _ string) ([]float64, error) {
	return s.vec, s.err
}

func simpleIntent() *types.Intent {
	return &types.Intent{
		IntentID: "i-1",
		Kind:     types.ServiceSimple,
		SubIntents: []types.SubIntent{
			{Domain: "database", Requirements: map[string]types.Value{"type": types.String("relational")}},
		},
	}
}

func TestScoreNormalization(t *testing.T) {
	tests := []struct {
		distance float64
		want     float64
	}{
		{0, 1},
		{0.15, 1 / 1.15},
		{1, 0.5},
		{3, 0.25},
	}
	for _, tt := range tests {
		if got := Score(tt.distance); math.Abs(got-tt.want) > 1e-12 {
			t.Errorf("Score(%f) = %f, want %f", tt.distance, got, tt.want)
		}
	}

	// Monotonicity: d1 < d2 implies score(d1) > score(d2); always in (0,1].
	prev := 2.0
	for d := 0.0; d <= 10; d += 0.25 {
		s := Score(d)
		if s <= 0 || s > 1 {
			t.Errorf("Score(%f) = %f outside (0,1]", d, s)
		}
		if s >= prev {
			t.Errorf("Score not strictly decreasing at d=%f", d)
		}
		prev = s
	}
}

func TestRank_EmptyIndexIsNotAnError(t *testing.T) {
	engine := NewEngine(&stubEmbedder{vec: []float64{1, 0}}, catalog.NewIndex())
	candidates, err := engine.Rank(context.Background(), simpleIntent(), 5, 0.5)
	if err != nil {
		t.Fatalf("empty index must not error: %v", err)
	}
	if len(candidates) != 0 {
		t.Errorf("expected no candidates, got %d", len(candidates))
	}
}

func TestRank_EmbedderFailureIsFatal(t *testing.T) {
	ix := catalog.NewIndex()
	if err := ix.ReplaceAll([]catalog.Entry{{ID: "a", Vector: []float64{1, 0}}}); err != nil {
		t.Fatal(err)
	}
	engine := NewEngine(&stubEmbedder{err: errors.New("backend down")}, ix)
	_, err := engine.Rank(context.Background(), simpleIntent(), 5, 0.5)
	if err == nil {
		t.Fatal("expected error when embedding backend is unreachable")
	}
}

func TestRank_FiltersAndOrders(t *testing.T) {
	ix := catalog.NewIndex()
	err := ix.ReplaceAll([]catalog.Entry{
		{ID: "near", Name: "Near Service", Vector: []float64{1, 0}},
		{ID: "mid", Name: "Mid Service", Vector: []float64{0.7071, 0.7071}},
		{ID: "far", Name: "Far Service", Vector: []float64{-1, 0}},
	})
	if err != nil {
		t.Fatal(err)
	}

	engine := NewEngine(&stubEmbedder{vec: []float64{1, 0}}, ix)
	candidates, err := engine.Rank(context.Background(), simpleIntent(), 5, 0.5)
	if err != nil {
		t.Fatal(err)
	}

	// far has cosine distance 2 → score 1/3, below min_score.
	if len(candidates) != 2 {
		t.Fatalf("expected 2 candidates, got %d: %+v", len(candidates), candidates)
	}
	if candidates[0].ID != "near" || candidates[1].ID != "mid" {
		t.Errorf("order = %s, %s; want near, mid", candidates[0].ID, candidates[1].ID)
	}
	if candidates[0].Score < candidates[1].Score {
		t.Error("candidates not ordered by descending score")
	}
	for _, c := range candidates {
		if c.Score < 0.5 {
			t.Errorf("candidate %s below min_score: %f", c.ID, c.Score)
		}
	}
}

func TestRank_RespectsTopK(t *testing.T) {
	ix := catalog.NewIndex()
	err := ix.ReplaceAll([]catalog.Entry{
		{ID: "a", Vector: []float64{1, 0}},
		{ID: "b", Vector: []float64{0.9, 0.1}},
		{ID: "c", Vector: []float64{0.8, 0.2}},
	})
	if err != nil {
		t.Fatal(err)
	}
	engine := NewEngine(&stubEmbedder{vec: []float64{1, 0}}, ix)
	candidates, err := engine.Rank(context.Background(), simpleIntent(), 2, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(candidates) > 2 {
		t.Errorf("expected at most 2 candidates, got %d", len(candidates))
	}
}

func TestRank_KnownDistanceScenario(t *testing.T) {
	// One catalog entry at a known angle: cos = 0.85 → distance 0.15,
	// score 1/1.15 ≈ 0.870, which clears min_score 0.5.
	theta := math.Acos(0.85)
	ix := catalog.NewIndex()
	if err := ix.ReplaceAll([]catalog.Entry{
		{ID: "only", Name: "Only Service", Vector: []float64{math.Cos(theta), math.Sin(theta)}},
	}); err != nil {
		t.Fatal(err)
	}

	engine := NewEngine(&stubEmbedder{vec: []float64{1, 0}}, ix)
	candidates, err := engine.Rank(context.Background(), simpleIntent(), 5, 0.5)
	if err != nil {
		t.Fatal(err)
	}
	if len(candidates) != 1 {
		t.Fatalf("expected the candidate to be kept, got %d", len(candidates))
	}
	if math.Abs(candidates[0].Score-1/1.15) > 1e-9 {
		t.Errorf("score = %f, want %f", candidates[0].Score, 1/1.15)
	}
}

func TestRank_RejectsInvalidIntent(t *testing.T) {
	engine := NewEngine(&stubEmbedder{vec: []float64{1, 0}}, catalog.NewIndex())
	_, err := engine.Rank(context.Background(), &types.Intent{Kind: types.ServiceSimple}, 5, 0.5)
	if err == nil {
		t.Error("expected error for intent without sub-intents")
	}
}
