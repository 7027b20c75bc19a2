package embedding

import (
	"context"
	"errors"
	"fmt"

	"kalys/internal/apperrors"
	"kalys/internal/logger"
)

// DefaultBatchSize keeps requests within the upstream service's input limits.
const DefaultBatchSize = 50

// Provider is a single-request embedding backend. Implementations return one
// vector per input text in input order.
type Provider interface {
	Name() string
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// Client splits work into batches and enforces that every vector has the
// configured dimension. It is safe for concurrent use when the provider is.
type Client struct {
	provider  Provider
	batchSize int
	dimension int
	log       logger.ILogger
}

func NewClient(provider Provider, batchSize, dimension int, log logger.ILogger) *Client {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &Client{provider: provider, batchSize: batchSize, dimension: dimension, log: log}
}

// Name returns the identifier of the underlying provider.
func (c *Client) Name() string { return c.provider.Name() }

// Dimension returns the length of every produced vector.
func (c *Client) Dimension() int { return c.dimension }

// Embed returns one vector per text, in order. Any failing batch fails the
// whole call; no partial result is returned.
func (c *Client) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += c.batchSize {
		end := min(start+c.batchSize, len(texts))
		vecs, err := c.provider.EmbedBatch(ctx, texts[start:end])
		if err != nil {
			c.log.Warn("embedding", "batch failed", map[string]interface{}{
				"provider": c.provider.Name(), "batch_start": start, "batch_size": end - start, "error": err.Error(),
			})
			return nil, apperrors.Embedding("embedding.embed", fmt.Errorf("batch %d-%d: %w", start, end, err))
		}
		if len(vecs) != end-start {
			return nil, apperrors.Embedding("embedding.embed",
				fmt.Errorf("batch %d-%d: provider returned %d vectors for %d texts", start, end, len(vecs), end-start))
		}
		for i, v := range vecs {
			if c.dimension > 0 && len(v) != c.dimension {
				return nil, apperrors.Embedding("embedding.embed",
					fmt.Errorf("text %d: vector dimension %d, expected %d", start+i, len(v), c.dimension))
			}
		}
		out = append(out, vecs...)
	}
	return out, nil
}

// EmbedQuery embeds a single question.
func (c *Client) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vecs, err := c.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vecs) != 1 {
		return nil, apperrors.Embedding("embedding.query", errors.New("no embedding returned"))
	}
	return vecs[0], nil
}
