// Package openaiembed provides the embedding backend for the chunk index.
package openaiembed

import (
	"context"

	"github.com/rotisserie/eris"
	openai "github.com/sashabaranov/go-openai"
)

// Embedder produces vector embeddings for text.
type Embedder interface {
	// EmbedTexts returns one vector per input text, in input order.
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
}

// Option configures the client.
type Option func(*client)

// WithBaseURL sets a custom API base URL (for testing or proxies).
func WithBaseURL(url string) Option {
	return func(c *client) {
		c.baseURL = url
	}
}

// WithModel overrides the embedding model.
func WithModel(model string) Option {
	return func(c *client) {
		c.model = model
	}
}

type client struct {
	api     *openai.Client
	baseURL string
	model   string
}

// NewClient creates an Embedder backed by the OpenAI embeddings API.
func NewClient(apiKey string, opts ...Option) Embedder {
	c := &client{model: string(openai.SmallEmbedding3)}
	for _, opt := range opts {
		opt(c)
	}

	cfg := openai.DefaultConfig(apiKey)
	if c.baseURL != "" {
		cfg.BaseURL = c.baseURL
	}
	c.api = openai.NewClientWithConfig(cfg)
	return c
}

func (c *client) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	resp, err := c.api.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: texts,
		Model: openai.EmbeddingModel(c.model),
	})
	if err != nil {
		return nil, eris.Wrap(err, "openaiembed: create embeddings")
	}

	if len(resp.Data) != len(texts) {
		return nil, eris.Errorf("openaiembed: got %d embeddings for %d inputs", len(resp.Data), len(texts))
	}

	out := make([][]float32, len(resp.Data))
	for _, d := range resp.Data {
		if d.Index < 0 || d.Index >= len(out) {
			return nil, eris.Errorf("openaiembed: embedding index %d out of range", d.Index)
		}
		out[d.Index] = d.Embedding
	}
	return out, nil
}
