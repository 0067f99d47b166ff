package retriever

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/fund-intake-cli/pkg/openaiembed"
)

// Result is a scored chunk returned from a search.
type Result struct {
	Chunk Chunk
	Score float64
}

// Retriever embeds queries and searches the chunk index.
type Retriever struct {
	index    *Index
	embedder openaiembed.Embedder
}

// New creates a retriever over the given index.
func New(index *Index, embedder openaiembed.Embedder) *Retriever {
	return &Retriever{index: index, embedder: embedder}
}

// SimilaritySearch returns the k chunks in the collection most similar to the
// query by cosine similarity.
func (r *Retriever) SimilaritySearch(ctx context.Context, collection, query string, k int) ([]Result, error) {
	scored, err := r.scoreAll(ctx, collection, query)
	if err != nil {
		return nil, err
	}
	if k < len(scored) {
		scored = scored[:k]
	}
	return scored, nil
}

// MMRSearch returns k chunks selected by maximal marginal relevance: the
// fetchK most similar candidates are reranked to trade off query relevance
// against redundancy among the selected set. lambda in [0,1] weights
// relevance; 1 reduces to plain similarity ordering.
func (r *Retriever) MMRSearch(ctx context.Context, collection, query string, k, fetchK int, lambda float64) ([]Result, error) {
	if fetchK < k {
		fetchK = k
	}
	candidates, err := r.scoreAll(ctx, collection, query)
	if err != nil {
		return nil, err
	}
	if fetchK < len(candidates) {
		candidates = candidates[:fetchK]
	}
	if len(candidates) <= 1 || k <= 0 {
		if k < len(candidates) {
			candidates = candidates[:k]
		}
		return candidates, nil
	}

	selected := []Result{candidates[0]}
	remaining := candidates[1:]

	for len(selected) < k && len(remaining) > 0 {
		bestIdx, bestScore := 0, math.Inf(-1)
		for i, cand := range remaining {
			maxSim := math.Inf(-1)
			for _, sel := range selected {
				sim := cosine(cand.Chunk.Embedding, sel.Chunk.Embedding)
				if sim > maxSim {
					maxSim = sim
				}
			}
			mmr := lambda*cand.Score - (1-lambda)*maxSim
			if mmr > bestScore {
				bestIdx, bestScore = i, mmr
			}
		}
		selected = append(selected, remaining[bestIdx])
		remaining = append(remaining[:bestIdx], remaining[bestIdx+1:]...)
	}
	return selected, nil
}

// Context joins search results into a single prompt context block, most
// relevant first, each chunk tagged with its source file and page.
func Context(results []Result) string {
	parts := make([]string, 0, len(results))
	for _, r := range results {
		tag := fmt.Sprintf("[source: %s, page: %d]", r.Chunk.Source, r.Chunk.PageLabel)
		parts = append(parts, tag+"\n"+r.Chunk.Text)
	}
	return strings.Join(parts, "\n\n---\n\n")
}

func (r *Retriever) scoreAll(ctx context.Context, collection, query string) ([]Result, error) {
	vecs, err := r.embedder.EmbedTexts(ctx, []string{query})
	if err != nil {
		return nil, eris.Wrap(err, "retriever: embed query")
	}
	qv := vecs[0]

	chunks, err := r.index.All(ctx, collection)
	if err != nil {
		return nil, err
	}
	if len(chunks) == 0 {
		zap.L().Warn("retriever: collection is empty", zap.String("collection", collection))
		return nil, nil
	}

	results := make([]Result, 0, len(chunks))
	for _, c := range chunks {
		results = append(results, Result{Chunk: c, Score: cosine(qv, c.Embedding)})
	}
	sort.SliceStable(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	return results, nil
}

func cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
