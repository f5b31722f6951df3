package retrieval

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ibn-labs/fulcrum/internal/catalog"
	"github.com/ibn-labs/fulcrum/internal/embed"
	"github.com/ibn-labs/fulcrum/internal/types"
)

// Engine ranks catalog entries against an intent by semantic similarity.
// The index is a shared read-mostly resource; the engine itself holds no
// per-request state.
type Engine struct {
	embedder embed.Embedder
	index    *catalog.Index
}

func NewEngine(embedder embed.Embedder, index *catalog.Index) *Engine {
	return &Engine{embedder: embedder, index: index}
}

// Rank returns up to topK candidates with score >= minScore, best first.
// An empty index or no candidate clearing the threshold is a normal
// "no match" outcome: empty list, nil error. A failing embedding backend or
// index is an error; it is never reported as "no candidates".
func (e *Engine) Rank(ctx context.Context, intent *types.Intent, topK int, minScore float64) ([]types.Candidate, error) {
	if err := intent.Validate(); err != nil {
		return nil, fmt.Errorf("invalid intent: %w", err)
	}
	if e.index.Len() == 0 {
		slog.Warn("catalog index is empty", "intent_id", intent.IntentID)
		return nil, nil
	}

	query := BuildQuery(intent)
	slog.Debug("catalog query synthesized", "intent_id", intent.IntentID, "query", query)

	vec, err := e.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	matches, err := e.index.Search(vec, topK)
	if err != nil {
		return nil, fmt.Errorf("index search: %w", err)
	}

	candidates := make([]types.Candidate, 0, len(matches))
	for _, m := range matches {
		score := Score(m.Distance)
		if score < minScore {
			continue
		}
		candidates = append(candidates, types.Candidate{
			ID:          m.Entry.ID,
			Score:       score,
			Name:        m.Entry.Name,
			Description: m.Entry.Description,
			Metadata:    m.Entry.Metadata,
		})
	}
	return candidates, nil
}

// Score converts an index distance into a similarity score in (0,1]:
// 1/(1+d). Strictly decreasing in d and exactly 1 only at zero distance,
// so scores stay comparable across calls.
func Score(distance float64) float64 {
	return 1 / (1 + distance)
}
