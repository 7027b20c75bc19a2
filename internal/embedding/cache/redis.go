package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"kalys/internal/embedding"
	"kalys/internal/logger"
)

// Provider wraps an embedding provider with a Redis read-through cache keyed
// by model and text. Redis failures degrade to uncached calls.
type Provider struct {
	next   embedding.Provider
	rdb    redis.UniversalClient
	model  string
	prefix string
	ttl    time.Duration
	log    logger.ILogger
}

// Options configures the cache wrapper.
type Options struct {
	// Model is part of the key so switching models never returns stale vectors.
	Model  string
	Prefix string
	TTL    time.Duration
}

func New(next embedding.Provider, rdb redis.UniversalClient, opts Options, log logger.ILogger) *Provider {
	if opts.Prefix == "" {
		opts.Prefix = "emb:"
	}
	return &Provider{next: next, rdb: rdb, model: opts.Model, prefix: opts.Prefix, ttl: opts.TTL, log: log}
}

func (p *Provider) Name() string { return p.next.Name() + "+redis" }

func (p *Provider) key(text string) string {
	sum := sha256.Sum256([]byte(p.model + "\x00" + text))
	return p.prefix + hex.EncodeToString(sum[:])
}

func (p *Provider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	keys := make([]string, len(texts))
	for i, t := range texts {
		keys[i] = p.key(t)
	}

	out := make([][]float32, len(texts))
	vals, err := p.rdb.MGet(ctx, keys...).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		p.log.Warn("embedding-cache", "cache lookup failed, embedding without cache", map[string]interface{}{"error": err.Error()})
		vals = nil
	}
	for i, v := range vals {
		s, ok := v.(string)
		if !ok {
			continue
		}
		var vec []float32
		if json.Unmarshal([]byte(s), &vec) == nil && len(vec) > 0 {
			out[i] = vec
		}
	}

	var missIdx []int
	var missTexts []string
	for i := range out {
		if out[i] == nil {
			missIdx = append(missIdx, i)
			missTexts = append(missTexts, texts[i])
		}
	}
	if len(missTexts) == 0 {
		return out, nil
	}

	fresh, err := p.next.EmbedBatch(ctx, missTexts)
	if err != nil {
		return nil, err
	}
	if len(fresh) != len(missTexts) {
		return nil, errors.New("embedding provider returned wrong number of vectors")
	}

	pipe := p.rdb.Pipeline()
	for j, i := range missIdx {
		out[i] = fresh[j]
		data, err := json.Marshal(fresh[j])
		if err != nil {
			continue
		}
		pipe.Set(ctx, keys[i], data, p.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		p.log.Warn("embedding-cache", "cache store failed", map[string]interface{}{"error": err.Error(), "count": len(missIdx)})
	}
	return out, nil
}
