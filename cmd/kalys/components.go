package main

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"kalys/internal/chunker"
	"kalys/internal/config"
	"kalys/internal/embedding"
	"kalys/internal/embedding/cache"
	"kalys/internal/embedding/hashing"
	embopenai "kalys/internal/embedding/openai"
	"kalys/internal/extract"
	"kalys/internal/ingest"
	chatopenai "kalys/internal/llm/openai"
	"kalys/internal/logger"
	"kalys/internal/service"
	"kalys/internal/vectorstore"
	"kalys/internal/vectorstore/memory"
	"kalys/internal/vectorstore/milvus"
	"kalys/internal/vectorstore/qdrant"
)

// components is everything a subcommand may need, built once from config.
type components struct {
	embedder *embedding.Client
	index    vectorstore.Index
	spec     vectorstore.Spec
	closers  []func(context.Context) error
}

func (c *components) Close(ctx context.Context) {
	for i := len(c.closers) - 1; i >= 0; i-- {
		_ = c.closers[i](ctx)
	}
}

func buildComponents(ctx context.Context, cfg *config.AppConfig, secrets config.Secrets, log logger.ILogger) (*components, error) {
	c := &components{
		spec: vectorstore.Spec{
			Name:      cfg.VectorStore.IndexName,
			Dimension: cfg.Embedder.Dimension,
			Metric:    cfg.VectorStore.Metric,
		},
	}

	provider, closeCache, err := buildProvider(cfg, secrets, log)
	if err != nil {
		return nil, err
	}
	if closeCache != nil {
		c.closers = append(c.closers, closeCache)
	}
	c.embedder = embedding.NewClient(provider, cfg.Embedder.BatchSize, cfg.Embedder.Dimension, log)

	idx, closeIndex, err := buildIndex(ctx, cfg, secrets)
	if err != nil {
		c.Close(ctx)
		return nil, err
	}
	if closeIndex != nil {
		c.closers = append(c.closers, closeIndex)
	}
	c.index = idx
	return c, nil
}

func buildProvider(cfg *config.AppConfig, secrets config.Secrets, log logger.ILogger) (embedding.Provider, func(context.Context) error, error) {
	var provider embedding.Provider
	switch cfg.Embedder.Type {
	case "hashing":
		h, err := hashing.NewEmbedder(cfg.Embedder.Dimension)
		if err != nil {
			return nil, nil, err
		}
		provider = h
	case "openai", "":
		client, err := embopenai.NewClient(embopenai.Config{
			BaseURL:           cfg.OpenAI.BaseURL,
			APIKey:            secrets.OpenAIAPIKey,
			Model:             cfg.Embedder.Model,
			Dimensions:        cfg.Embedder.Dimension,
			Timeout:           time.Duration(cfg.OpenAI.TimeoutSecs) * time.Second,
			MaxRetries:        cfg.OpenAI.MaxRetries,
			RequestsPerSecond: cfg.OpenAI.RequestsPerSecond,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("openai embedder init failed: %w", err)
		}
		provider = client
	default:
		return nil, nil, fmt.Errorf("unknown embedder: %s", cfg.Embedder.Type)
	}

	if !cfg.Cache.Enabled {
		return provider, nil, nil
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Cache.RedisAddr,
		Password: secrets.RedisPassword,
		DB:       cfg.Cache.DB,
	})
	cached := cache.New(provider, rdb, cache.Options{
		Model:  cfg.Embedder.Type + ":" + cfg.Embedder.Model,
		Prefix: cfg.Cache.KeyPrefix,
		TTL:    time.Duration(cfg.Cache.TTLHours) * time.Hour,
	}, log)
	return cached, func(context.Context) error { return rdb.Close() }, nil
}

func buildIndex(ctx context.Context, cfg *config.AppConfig, secrets config.Secrets) (vectorstore.Index, func(context.Context) error, error) {
	vs := cfg.VectorStore
	switch vs.Type {
	case "memory":
		return memory.NewStorage(), nil, nil
	case "qdrant", "":
		if vs.Qdrant == nil {
			return nil, nil, fmt.Errorf("qdrant config missing")
		}
		return qdrant.NewStorage(qdrant.Config{
			URL:        vs.Qdrant.URL,
			APIKey:     secrets.QdrantAPIKey,
			Collection: vs.IndexName,
			BatchSize:  vs.UpsertBatchSize,
			Timeout:    time.Duration(vs.Qdrant.TimeoutSecs) * time.Second,
		}), nil, nil
	case "milvus":
		if vs.Milvus == nil {
			return nil, nil, fmt.Errorf("milvus config missing")
		}
		st, err := milvus.NewStorage(ctx, milvus.Config{
			Address:    vs.Milvus.Address,
			Username:   vs.Milvus.Username,
			Password:   secrets.MilvusPassword,
			Database:   vs.Milvus.Database,
			Collection: vs.IndexName,
			BatchSize:  vs.UpsertBatchSize,
			Timeout:    time.Duration(vs.Milvus.TimeoutSecs) * time.Second,
		})
		if err != nil {
			return nil, nil, err
		}
		return st, st.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown vector store: %s", vs.Type)
	}
}

func buildPipeline(cfg *config.AppConfig, c *components, log logger.ILogger) (*ingest.Pipeline, error) {
	ex, err := extract.New(cfg.Ingest.Extractor, cfg.Ingest.PdftotextPath, log)
	if err != nil {
		return nil, err
	}
	b, err := chunker.New(cfg.Chunker.Strategy, cfg.Chunker.MaxChars, cfg.Chunker.OverlapChars)
	if err != nil {
		return nil, err
	}
	return ingest.NewPipeline(ex, b, c.embedder, c.index, c.spec, cfg.Ingest.Workers, log), nil
}

func buildAssistant(cfg *config.AppConfig, secrets config.Secrets, c *components, log logger.ILogger) (*service.Assistant, error) {
	chat, err := chatopenai.NewClient(chatopenai.Config{
		BaseURL:     cfg.OpenAI.BaseURL,
		APIKey:      secrets.OpenAIAPIKey,
		Model:       cfg.Chat.Model,
		Temperature: cfg.Chat.Temperature,
		Timeout:     time.Duration(cfg.Server.QueryTimeoutSecs) * time.Second,
		MaxRetries:  cfg.OpenAI.MaxRetries,
	})
	if err != nil {
		return nil, fmt.Errorf("chat model init failed: %w", err)
	}
	retriever := service.NewRetriever(c.embedder, c.index, service.RetrieverConfig{
		DefaultTopK:  cfg.Retrieval.DefaultTopK,
		MaxTopK:      cfg.Retrieval.MaxTopK,
		SnippetChars: cfg.Retrieval.SnippetChars,
	}, log)
	return service.NewAssistant(retriever, service.NewOrchestrator(chat, log), defaultLocale(), log), nil
}

// warmMemoryIndex ingests the corpus into a process-local index; other
// stores are populated by a separate `kalys ingest` run.
func warmMemoryIndex(ctx context.Context, cfg *config.AppConfig, c *components, log logger.ILogger) error {
	if cfg.VectorStore.Type != "memory" {
		return nil
	}
	p, err := buildPipeline(cfg, c, log)
	if err != nil {
		return err
	}
	report, err := p.Run(ctx, ingest.Options{Dir: cfg.Ingest.PDFDir, Pattern: cfg.Ingest.Pattern, Reset: true})
	if err != nil {
		return err
	}
	log.Info("ingest", "memory index ready", map[string]interface{}{
		"documents": len(report.Documents), "upserted": report.Upserted,
	})
	return nil
}
