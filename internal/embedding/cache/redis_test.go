package cache

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kalys/internal/logger"
)

type countingProvider struct {
	mu    sync.Mutex
	calls [][]string
}

func (c *countingProvider) Name() string { return "counting" }

func (c *countingProvider) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	c.mu.Lock()
	c.calls = append(c.calls, append([]string(nil), texts...))
	c.mu.Unlock()
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = []float32{float32(len(t)), 1}
	}
	return out, nil
}

func setup(t *testing.T) (*Provider, *countingProvider, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	next := &countingProvider{}
	return New(next, rdb, Options{Model: "m1", TTL: time.Hour}, logger.NewNop()), next, mr
}

func TestCacheServesRepeatedTexts(t *testing.T) {
	p, next, mr := setup(t)
	ctx := context.Background()

	first, err := p.EmbedBatch(ctx, []string{"aa", "bbb"})
	require.NoError(t, err)
	assert.Equal(t, [][]float32{{2, 1}, {3, 1}}, first)

	second, err := p.EmbedBatch(ctx, []string{"bbb", "c", "aa"})
	require.NoError(t, err)
	assert.Equal(t, [][]float32{{3, 1}, {1, 1}, {2, 1}}, second)

	require.Len(t, next.calls, 2)
	assert.Equal(t, []string{"c"}, next.calls[1])

	keys := mr.Keys()
	assert.Len(t, keys, 3)
	for _, k := range keys {
		assert.True(t, mr.TTL(k) > 0)
		assert.Contains(t, k, "emb:")
	}
}

func TestCacheKeyDependsOnModel(t *testing.T) {
	p, _, _ := setup(t)
	other := New(p.next, p.rdb, Options{Model: "m2"}, logger.NewNop())
	assert.NotEqual(t, p.key("text"), other.key("text"))
	assert.Equal(t, p.key("text"), p.key("text"))
}

func TestCacheDegradesWhenRedisIsDown(t *testing.T) {
	p, next, mr := setup(t)
	mr.Close()

	vecs, err := p.EmbedBatch(context.Background(), []string{"abcd"})
	require.NoError(t, err)
	assert.Equal(t, [][]float32{{4, 1}}, vecs)
	assert.Len(t, next.calls, 1)
}
