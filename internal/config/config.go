package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"kalys/internal/locale"
)

// OpenAIConfig holds connection details for the OpenAI-compatible API used for
// both embeddings and chat completions.
type OpenAIConfig struct {
	BaseURL           string  `yaml:"base_url"`
	APIKeyEnv         string  `yaml:"api_key_env"`
	TimeoutSecs       int     `yaml:"timeout_secs"`
	MaxRetries        int     `yaml:"max_retries"`
	RequestsPerSecond float64 `yaml:"requests_per_second"`
}

// EmbedderConfig selects and configures the text embedder implementation.
type EmbedderConfig struct {
	Type      string `yaml:"type"`
	Model     string `yaml:"model"`
	Dimension int    `yaml:"dimension"`
	BatchSize int    `yaml:"batch_size"`
}

// ChatConfig configures the language model.
type ChatConfig struct {
	Model       string  `yaml:"model"`
	Temperature float64 `yaml:"temperature"`
}

// ChunkerConfig configures how page text is split into chunks.
type ChunkerConfig struct {
	Strategy     string `yaml:"strategy"`
	MaxChars     int    `yaml:"max_chars"`
	OverlapChars int    `yaml:"overlap_chars"`
}

// VectorStoreConfig selects and configures the vector index implementation.
type VectorStoreConfig struct {
	Type            string        `yaml:"type"`
	IndexName       string        `yaml:"index_name"`
	Metric          string        `yaml:"metric"`
	UpsertBatchSize int           `yaml:"upsert_batch_size"`
	Qdrant          *QdrantConfig `yaml:"qdrant,omitempty"`
	Milvus          *MilvusConfig `yaml:"milvus,omitempty"`
}

// QdrantConfig contains connection details for a Qdrant vector store.
type QdrantConfig struct {
	URL         string `yaml:"url"`
	APIKeyEnv   string `yaml:"api_key_env"`
	TimeoutSecs int    `yaml:"timeout_secs"`
}

// MilvusConfig contains connection details for a Milvus vector store.
type MilvusConfig struct {
	Address     string `yaml:"address"`
	Username    string `yaml:"username"`
	PasswordEnv string `yaml:"password_env"`
	Database    string `yaml:"database"`
	TimeoutSecs int    `yaml:"timeout_secs"`
}

// IngestConfig configures the ingestion run.
type IngestConfig struct {
	PDFDir        string `yaml:"pdf_dir"`
	Pattern       string `yaml:"pattern"`
	Workers       int    `yaml:"workers"`
	Reset         bool   `yaml:"reset"`
	Extractor     string `yaml:"extractor"` // native | pdftotext
	PdftotextPath string `yaml:"pdftotext_path"`
}

// RetrievalConfig bounds query-time retrieval.
type RetrievalConfig struct {
	DefaultTopK  int `yaml:"default_top_k"`
	MaxTopK      int `yaml:"max_top_k"`
	SnippetChars int `yaml:"snippet_chars"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Addr             string   `yaml:"addr"`
	BodyLimitMB      int      `yaml:"body_limit_mb"`
	QueryTimeoutSecs int      `yaml:"query_timeout_secs"`
	CORSOrigins      []string `yaml:"cors_origins"`
	SessionTTLMins   int      `yaml:"session_ttl_mins"`
}

// CacheConfig configures the Redis embedding cache.
type CacheConfig struct {
	Enabled     bool   `yaml:"enabled"`
	RedisAddr   string `yaml:"redis_addr"`
	PasswordEnv string `yaml:"password_env"`
	DB          int    `yaml:"db"`
	TTLHours    int    `yaml:"ttl_hours"`
	KeyPrefix   string `yaml:"key_prefix"`
}

// LogConfig configures structured logging.
type LogConfig struct {
	File       string `yaml:"file"`
	Production bool   `yaml:"production"`
}

// TracingConfig configures OpenTelemetry export.
type TracingConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Endpoint    string `yaml:"endpoint"`
	ServiceName string `yaml:"service_name"`
}

// AppConfig is the root application configuration structure.
type AppConfig struct {
	Locale      string            `yaml:"locale"`
	OpenAI      OpenAIConfig      `yaml:"openai"`
	Embedder    EmbedderConfig    `yaml:"embedder"`
	Chat        ChatConfig        `yaml:"chat"`
	Chunker     ChunkerConfig     `yaml:"chunker"`
	VectorStore VectorStoreConfig `yaml:"vector_store"`
	Ingest      IngestConfig      `yaml:"ingest"`
	Retrieval   RetrievalConfig   `yaml:"retrieval"`
	Server      ServerConfig      `yaml:"server"`
	Cache       CacheConfig       `yaml:"cache"`
	Log         LogConfig         `yaml:"log"`
	Tracing     TracingConfig     `yaml:"tracing"`
}

// Secrets are credentials read from the environment once at startup.
type Secrets struct {
	OpenAIAPIKey   string
	QdrantAPIKey   string
	MilvusPassword string
	RedisPassword  string
}

// Load reads a config from a specified path. If the file does not exist, returns defaults.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return defaultConfig(), nil
		}
		return nil, err
	}
	cfg := defaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	applyConfigDefaults(cfg)
	return cfg, nil
}

// LoadDefault tries ./config.yaml first, then ~/.config/kalys/config.yaml.
// If neither exists, it writes defaults to ~/.config/kalys/config.yaml and returns them.
func LoadDefault() (*AppConfig, string, error) {
	cwdPath := "config.yaml"
	if _, err := os.Stat(cwdPath); err == nil {
		cfg, err := Load(cwdPath)
		return cfg, cwdPath, err
	}
	userPath, err := defaultUserConfigPath()
	if err != nil {
		return nil, "", err
	}
	if _, err := os.Stat(userPath); err == nil {
		cfg, err := Load(userPath)
		return cfg, userPath, err
	}
	cfg := defaultConfig()
	if err := Save(userPath, cfg); err != nil {
		return nil, "", err
	}
	return cfg, userPath, nil
}

// Save writes the config to the given path, creating directories as needed.
func Save(path string, cfg *AppConfig) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// ResolveSecrets reads every configured credential variable through lookup.
// Pass os.Getenv in production.
func (c *AppConfig) ResolveSecrets(lookup func(string) string) Secrets {
	s := Secrets{OpenAIAPIKey: lookup(c.OpenAI.APIKeyEnv)}
	if q := c.VectorStore.Qdrant; q != nil && q.APIKeyEnv != "" {
		s.QdrantAPIKey = lookup(q.APIKeyEnv)
	}
	if m := c.VectorStore.Milvus; m != nil && m.PasswordEnv != "" {
		s.MilvusPassword = lookup(m.PasswordEnv)
	}
	if c.Cache.PasswordEnv != "" {
		s.RedisPassword = lookup(c.Cache.PasswordEnv)
	}
	return s
}

// Validate rejects configurations the components cannot run with.
func (c *AppConfig) Validate() error {
	var errs []error
	if _, err := locale.Parse(c.Locale); err != nil {
		errs = append(errs, fmt.Errorf("locale: unsupported value %q", c.Locale))
	}
	switch c.Embedder.Type {
	case "openai", "hashing":
	default:
		errs = append(errs, fmt.Errorf("embedder.type: unknown %q", c.Embedder.Type))
	}
	if c.Embedder.Dimension <= 0 {
		errs = append(errs, fmt.Errorf("embedder.dimension must be positive"))
	}
	if c.Embedder.BatchSize <= 0 {
		errs = append(errs, fmt.Errorf("embedder.batch_size must be positive"))
	}
	switch c.Chunker.Strategy {
	case "window", "recursive", "elements":
	default:
		errs = append(errs, fmt.Errorf("chunker.strategy: unknown %q", c.Chunker.Strategy))
	}
	if c.Chunker.MaxChars <= 0 {
		errs = append(errs, fmt.Errorf("chunker.max_chars must be positive"))
	}
	if c.Chunker.OverlapChars < 0 || c.Chunker.OverlapChars >= c.Chunker.MaxChars {
		errs = append(errs, fmt.Errorf("chunker.overlap_chars must be in [0, max_chars)"))
	}
	switch c.VectorStore.Type {
	case "memory":
	case "qdrant":
		if c.VectorStore.Qdrant == nil || c.VectorStore.Qdrant.URL == "" {
			errs = append(errs, fmt.Errorf("vector_store.qdrant.url is required"))
		}
	case "milvus":
		if c.VectorStore.Milvus == nil || c.VectorStore.Milvus.Address == "" {
			errs = append(errs, fmt.Errorf("vector_store.milvus.address is required"))
		}
	default:
		errs = append(errs, fmt.Errorf("vector_store.type: unknown %q", c.VectorStore.Type))
	}
	switch c.VectorStore.Metric {
	case "cosine", "dot", "euclidean":
	default:
		errs = append(errs, fmt.Errorf("vector_store.metric: unknown %q", c.VectorStore.Metric))
	}
	if c.VectorStore.IndexName == "" {
		errs = append(errs, fmt.Errorf("vector_store.index_name is required"))
	}
	if c.Retrieval.DefaultTopK <= 0 || c.Retrieval.DefaultTopK > c.Retrieval.MaxTopK {
		errs = append(errs, fmt.Errorf("retrieval.default_top_k must be in [1, max_top_k]"))
	}
	if c.Ingest.Workers <= 0 {
		errs = append(errs, fmt.Errorf("ingest.workers must be positive"))
	}
	switch c.Ingest.Extractor {
	case "native", "pdftotext":
	default:
		errs = append(errs, fmt.Errorf("ingest.extractor: unknown %q", c.Ingest.Extractor))
	}
	return errors.Join(errs...)
}

func defaultUserConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "kalys", "config.yaml"), nil
}

// Default returns the built-in configuration.
func Default() *AppConfig { return defaultConfig() }

func defaultConfig() *AppConfig {
	cfg := &AppConfig{
		Locale: string(locale.English),
		OpenAI: OpenAIConfig{
			BaseURL:     "https://api.openai.com/v1",
			APIKeyEnv:   "OPENAI_API_KEY",
			TimeoutSecs: 30,
			MaxRetries:  3,
		},
		Embedder: EmbedderConfig{Type: "openai", Model: "text-embedding-3-small", Dimension: 1536, BatchSize: 50},
		Chat:     ChatConfig{Model: "gpt-4o-mini", Temperature: 0.5},
		Chunker:  ChunkerConfig{Strategy: "window", MaxChars: 1800, OverlapChars: 200},
		VectorStore: VectorStoreConfig{
			Type:            "qdrant",
			IndexName:       "kalysbot",
			Metric:          "cosine",
			UpsertBatchSize: 50,
			Qdrant:          &QdrantConfig{URL: "http://localhost:6333", APIKeyEnv: "QDRANT_API_KEY", TimeoutSecs: 15},
		},
		Ingest:    IngestConfig{PDFDir: "data/pdfs", Pattern: "*.[pP][dD][fF]", Workers: 4, Reset: true, Extractor: "native", PdftotextPath: "pdftotext"},
		Retrieval: RetrievalConfig{DefaultTopK: 4, MaxTopK: 20, SnippetChars: 500},
		Server: ServerConfig{
			Addr:             ":5000",
			BodyLimitMB:      1,
			QueryTimeoutSecs: 60,
			SessionTTLMins:   60,
			CORSOrigins: []string{
				"https://www.kalysbot.com",
				"http://localhost:5500",
				"http://127.0.0.1:5500",
				"http://localhost:63342",
			},
		},
		Cache:   CacheConfig{RedisAddr: "localhost:6379", PasswordEnv: "REDIS_PASSWORD", TTLHours: 24, KeyPrefix: "emb:"},
		Log:     LogConfig{File: "logs/kalys.log"},
		Tracing: TracingConfig{Endpoint: "localhost:4318", ServiceName: "kalys"},
	}
	return cfg
}

func applyConfigDefaults(cfg *AppConfig) {
	if cfg.Locale == "" {
		cfg.Locale = string(locale.English)
	}
	if cfg.OpenAI.BaseURL == "" {
		cfg.OpenAI.BaseURL = "https://api.openai.com/v1"
	}
	if cfg.OpenAI.APIKeyEnv == "" {
		cfg.OpenAI.APIKeyEnv = "OPENAI_API_KEY"
	}
	if cfg.OpenAI.TimeoutSecs == 0 {
		cfg.OpenAI.TimeoutSecs = 30
	}
	if cfg.Embedder.BatchSize == 0 {
		cfg.Embedder.BatchSize = 50
	}
	if cfg.VectorStore.UpsertBatchSize == 0 {
		cfg.VectorStore.UpsertBatchSize = 50
	}
	if cfg.VectorStore.Type == "milvus" && cfg.VectorStore.Milvus != nil {
		if cfg.VectorStore.Milvus.TimeoutSecs == 0 {
			cfg.VectorStore.Milvus.TimeoutSecs = 10
		}
		if cfg.VectorStore.Milvus.Database == "" {
			cfg.VectorStore.Milvus.Database = "default"
		}
	}
	if cfg.VectorStore.Type == "qdrant" && cfg.VectorStore.Qdrant != nil && cfg.VectorStore.Qdrant.TimeoutSecs == 0 {
		cfg.VectorStore.Qdrant.TimeoutSecs = 15
	}
	if cfg.Retrieval.SnippetChars == 0 {
		cfg.Retrieval.SnippetChars = 500
	}
	if cfg.Server.QueryTimeoutSecs == 0 {
		cfg.Server.QueryTimeoutSecs = 60
	}
	if cfg.Cache.KeyPrefix == "" {
		cfg.Cache.KeyPrefix = "emb:"
	}
	if cfg.Ingest.Extractor == "" {
		cfg.Ingest.Extractor = "native"
	}
}
