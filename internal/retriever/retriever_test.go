package retriever

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeEmbedder maps known texts to fixed vectors so similarity ordering is
// deterministic.
type fakeEmbedder struct {
	vectors map[string][]float32
}

func (f *fakeEmbedder) EmbedTexts(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, ok := f.vectors[t]
		if !ok {
			v = []float32{0, 0, 1}
		}
		out[i] = v
	}
	return out, nil
}

func newTestIndex(t *testing.T) *Index {
	t.Helper()
	idx, err := OpenIndex(filepath.Join(t.TempDir(), "index.db"))
	require.NoError(t, err)
	t.Cleanup(func() { idx.Close() })
	return idx
}

func TestIndexAddAndCount(t *testing.T) {
	idx := newTestIndex(t)
	ctx := context.Background()

	err := idx.Add(ctx, []Chunk{
		{Collection: "fund-1", Source: "fund.pdf", PageLabel: 1, Text: "management fee is 2%", Embedding: []float32{1, 0, 0}},
		{Collection: "fund-1", Source: "fund.pdf", PageLabel: 2, Text: "redemptions are quarterly", Embedding: []float32{0, 1, 0}},
		{Collection: "fund-2", Source: "other.pdf", PageLabel: 1, Text: "different fund", Embedding: []float32{0, 0, 1}},
	})
	require.NoError(t, err)

	n, err := idx.Count(ctx, "fund-1")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	chunks, err := idx.All(ctx, "fund-1")
	require.NoError(t, err)
	require.Len(t, chunks, 2)
	assert.NotEmpty(t, chunks[0].ID)

	byText := chunksByText(chunks)
	assert.Equal(t, []float32{1, 0, 0}, byText["management fee is 2%"].Embedding)
	assert.Equal(t, 2, byText["redemptions are quarterly"].PageLabel)
}

func TestIndexCollections(t *testing.T) {
	idx := newTestIndex(t)
	ctx := context.Background()

	require.NoError(t, idx.Add(ctx, []Chunk{
		{Collection: "b", Source: "x", Text: "x", Embedding: []float32{1}},
		{Collection: "a", Source: "y", Text: "y", Embedding: []float32{1}},
	}))

	cols, err := idx.Collections(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, cols)
}

func TestIndexClearScopedToCollection(t *testing.T) {
	idx := newTestIndex(t)
	ctx := context.Background()

	require.NoError(t, idx.Add(ctx, []Chunk{
		{Collection: "keep", Source: "a", Text: "x", Embedding: []float32{1}},
		{Collection: "drop", Source: "b", Text: "y", Embedding: []float32{1}},
	}))
	require.NoError(t, idx.Clear(ctx, "drop"))

	n, err := idx.Count(ctx, "drop")
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	n, err = idx.Count(ctx, "keep")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestSimilaritySearch(t *testing.T) {
	idx := newTestIndex(t)
	ctx := context.Background()

	require.NoError(t, idx.Add(ctx, []Chunk{
		{Collection: "f", Source: "d", Text: "fees", Embedding: []float32{1, 0, 0}},
		{Collection: "f", Source: "d", Text: "liquidity", Embedding: []float32{0, 1, 0}},
		{Collection: "f", Source: "d", Text: "returns", Embedding: []float32{0.9, 0.1, 0}},
	}))

	r := New(idx, &fakeEmbedder{vectors: map[string][]float32{
		"what are the fees": {1, 0, 0},
	}})

	results, err := r.SimilaritySearch(ctx, "f", "what are the fees", 2)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "fees", results[0].Chunk.Text)
	assert.Equal(t, "returns", results[1].Chunk.Text)
	assert.InDelta(t, 1.0, results[0].Score, 1e-9)
}

func TestSimilaritySearchEmptyCollection(t *testing.T) {
	idx := newTestIndex(t)
	r := New(idx, &fakeEmbedder{})

	results, err := r.SimilaritySearch(context.Background(), "missing", "anything", 5)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestMMRSearchPrefersDiversity(t *testing.T) {
	idx := newTestIndex(t)
	ctx := context.Background()

	// Two near-duplicates of the query plus one distinct chunk. Plain
	// similarity would return both duplicates; MMR with a low lambda should
	// pick the distinct chunk second.
	require.NoError(t, idx.Add(ctx, []Chunk{
		{Collection: "f", Source: "d", Text: "dup-1", Embedding: []float32{1, 0, 0}},
		{Collection: "f", Source: "d", Text: "dup-2", Embedding: []float32{0.99, 0.01, 0}},
		{Collection: "f", Source: "d", Text: "distinct", Embedding: []float32{0, 1, 0}},
	}))

	r := New(idx, &fakeEmbedder{vectors: map[string][]float32{
		"q": {1, 0, 0},
	}})

	results, err := r.MMRSearch(ctx, "f", "q", 2, 3, 0.3)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "dup-1", results[0].Chunk.Text)
	assert.Equal(t, "distinct", results[1].Chunk.Text)
}

func TestMMRSearchLambdaOneMatchesSimilarity(t *testing.T) {
	idx := newTestIndex(t)
	ctx := context.Background()

	require.NoError(t, idx.Add(ctx, []Chunk{
		{Collection: "f", Source: "d", Text: "a", Embedding: []float32{1, 0, 0}},
		{Collection: "f", Source: "d", Text: "b", Embedding: []float32{0.9, 0.1, 0}},
		{Collection: "f", Source: "d", Text: "c", Embedding: []float32{0, 1, 0}},
	}))

	r := New(idx, &fakeEmbedder{vectors: map[string][]float32{
		"q": {1, 0, 0},
	}})

	mmr, err := r.MMRSearch(ctx, "f", "q", 2, 3, 1.0)
	require.NoError(t, err)
	sim, err := r.SimilaritySearch(ctx, "f", "q", 2)
	require.NoError(t, err)

	require.Len(t, mmr, 2)
	assert.Equal(t, sim[0].Chunk.Text, mmr[0].Chunk.Text)
	assert.Equal(t, sim[1].Chunk.Text, mmr[1].Chunk.Text)
}

func TestContextTagsSources(t *testing.T) {
	out := Context([]Result{
		{Chunk: Chunk{Source: "fund.pdf", PageLabel: 3, Text: "first"}},
		{Chunk: Chunk{Source: "returns.xlsx", PageLabel: -1, Text: "second"}},
	})
	assert.Equal(t,
		"[source: fund.pdf, page: 3]\nfirst\n\n---\n\n[source: returns.xlsx, page: -1]\nsecond",
		out)
}

func chunksByText(chunks []Chunk) map[string]Chunk {
	m := make(map[string]Chunk, len(chunks))
	for _, c := range chunks {
		m[c.Text] = c
	}
	return m
}
