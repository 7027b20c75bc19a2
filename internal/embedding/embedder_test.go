package embedding

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kalys/internal/apperrors"
	"kalys/internal/logger"
)

type fakeProvider struct {
	dim     int
	batches []int
	failAt  int
	short   bool
}

func (f *fakeProvider) Name() string { return "fake" }

func (f *fakeProvider) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	f.batches = append(f.batches, len(texts))
	if f.failAt > 0 && len(f.batches) == f.failAt {
		return nil, errors.New("upstream down")
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = make([]float32, f.dim)
		out[i][0] = float32(len(texts[i]))
	}
	if f.short {
		return out[:len(out)-1], nil
	}
	return out, nil
}

func texts(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = string(make([]byte, i+1))
	}
	return out
}

func TestClientBatchesInOrder(t *testing.T) {
	p := &fakeProvider{dim: 4}
	c := NewClient(p, 50, 4, logger.NewNop())

	vecs, err := c.Embed(context.Background(), texts(120))
	require.NoError(t, err)
	require.Len(t, vecs, 120)
	assert.Equal(t, []int{50, 50, 20}, p.batches)
	for i, v := range vecs {
		assert.Equal(t, float32(i+1), v[0])
	}
}

func TestClientEmptyInput(t *testing.T) {
	p := &fakeProvider{dim: 4}
	vecs, err := NewClient(p, 0, 4, logger.NewNop()).Embed(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, vecs)
	assert.Empty(t, p.batches)
}

func TestClientFailures(t *testing.T) {
	tests := []struct {
		name string
		p    *fakeProvider
		dim  int
	}{
		{name: "provider error in second batch", p: &fakeProvider{dim: 4, failAt: 2}, dim: 4},
		{name: "dimension mismatch", p: &fakeProvider{dim: 3}, dim: 4},
		{name: "missing vectors", p: &fakeProvider{dim: 4, short: true}, dim: 4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			vecs, err := NewClient(tt.p, 50, tt.dim, logger.NewNop()).Embed(context.Background(), texts(60))
			require.Error(t, err)
			assert.Nil(t, vecs)
			assert.ErrorIs(t, err, apperrors.ErrEmbedding)
		})
	}
}

func TestClientEmbedQuery(t *testing.T) {
	c := NewClient(&fakeProvider{dim: 2}, 50, 2, logger.NewNop())
	v, err := c.EmbedQuery(context.Background(), "abc")
	require.NoError(t, err)
	assert.Equal(t, []float32{3, 0}, v)
	assert.Equal(t, 2, c.Dimension())
	assert.Equal(t, "fake", c.Name())
}
