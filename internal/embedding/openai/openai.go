package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// Client is an OpenAI-compatible embeddings client implementing embedding.Provider.
type Client struct {
	baseURL     string
	apiKey      string
	model       string
	dimensions  int
	client      *http.Client
	maxRetries  int
	backoffBase time.Duration
	limiter     *rate.Limiter
}

// Config configures the OpenAI-compatible embeddings client.
type Config struct {
	BaseURL string
	APIKey  string
	Model   string
	// Dimensions is sent to models that support shortening; 0 leaves it to the model.
	Dimensions        int
	Timeout           time.Duration
	MaxRetries        int
	RequestsPerSecond float64
	BackoffBase       time.Duration
}

// NewClient creates a new embeddings client using the provided configuration.
func NewClient(cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("missing API key for embeddings")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com/v1"
	}
	if cfg.Model == "" {
		cfg.Model = "text-embedding-3-small"
	}
	t := cfg.Timeout
	if t == 0 {
		t = 30 * time.Second
	}
	base := cfg.BackoffBase
	if base == 0 {
		base = 200 * time.Millisecond
	}
	c := &Client{
		baseURL:     cfg.BaseURL,
		apiKey:      cfg.APIKey,
		model:       cfg.Model,
		dimensions:  shortening(cfg.Model, cfg.Dimensions),
		client:      &http.Client{Timeout: t},
		maxRetries:  max(cfg.MaxRetries, 0),
		backoffBase: base,
	}
	if cfg.RequestsPerSecond > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1)
	}
	return c, nil
}

// shortening returns the dimensions parameter to send for model. Only the
// text-embedding-3 family accepts it.
func shortening(model string, dimensions int) int {
	if dimensions <= 0 || !strings.HasPrefix(model, "text-embedding-3") {
		return 0
	}
	return dimensions
}

// Name returns the identifier of this embedder implementation.
func (c *Client) Name() string { return "openai" }

// Model returns the embedding model identifier.
func (c *Client) Model() string { return c.model }

type embeddingRequest struct {
	Model      string   `json:"model"`
	Input      []string `json:"input"`
	Dimensions int      `json:"dimensions,omitempty"`
}

type embeddingResponse struct {
	Data []struct {
		Index     int       `json:"index"`
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
	// Ollama-native batch shape
	Embeddings [][]float32 `json:"embeddings"`
}

// EmbedBatch returns one vector per text in input order. Transport errors,
// 429 and 5xx responses are retried with exponential backoff.
func (c *Client) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	data, err := json.Marshal(embeddingRequest{Model: c.model, Input: texts, Dimensions: c.dimensions})
	if err != nil {
		return nil, err
	}
	url := fmt.Sprintf("%s/embeddings", c.baseURL)

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			if err := sleep(ctx, c.retryDelay(attempt-1, lastErr)); err != nil {
				return nil, err
			}
		}
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return nil, err
			}
		}
		vecs, err := c.do(ctx, url, data, len(texts))
		if err == nil {
			return vecs, nil
		}
		lastErr = err
		var se *statusError
		if errors.As(err, &se) && !se.retryable() {
			return nil, err
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
	}
	return nil, fmt.Errorf("openai embeddings failed after %d attempts: %w", c.maxRetries+1, lastErr)
}

func (c *Client) do(ctx context.Context, url string, body []byte, n int) ([][]float32, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 300 {
		return nil, &statusError{code: resp.StatusCode, status: resp.Status, retryAfter: resp.Header.Get("Retry-After"), body: truncate(payload, 256)}
	}

	var out embeddingResponse
	if err := json.Unmarshal(payload, &out); err != nil {
		return nil, fmt.Errorf("decode embeddings response: %w", err)
	}
	if len(out.Data) > 0 {
		sort.Slice(out.Data, func(i, j int) bool { return out.Data[i].Index < out.Data[j].Index })
		vecs := make([][]float32, len(out.Data))
		for i, d := range out.Data {
			vecs[i] = d.Embedding
		}
		return checkCount(vecs, n)
	}
	if len(out.Embeddings) > 0 {
		return checkCount(out.Embeddings, n)
	}
	return nil, errors.New("no embedding returned")
}

func checkCount(vecs [][]float32, n int) ([][]float32, error) {
	if len(vecs) != n {
		return nil, fmt.Errorf("expected %d embeddings, got %d", n, len(vecs))
	}
	for i, v := range vecs {
		if len(v) == 0 {
			return nil, fmt.Errorf("empty embedding at position %d", i)
		}
	}
	return vecs, nil
}

type statusError struct {
	code       int
	status     string
	retryAfter string
	body       string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("openai embeddings failed: %s: %s", e.status, e.body)
}

func (e *statusError) retryable() bool {
	return e.code == http.StatusTooManyRequests || e.code >= 500
}

// retryDelay honours Retry-After when the server sent one.
func (c *Client) retryDelay(attempt int, lastErr error) time.Duration {
	var se *statusError
	if errors.As(lastErr, &se) && se.retryAfter != "" {
		if secs, err := strconv.Atoi(se.retryAfter); err == nil {
			return time.Duration(secs) * time.Second
		}
	}
	if attempt < 0 {
		attempt = 0
	}
	// exponential backoff capped at 5s
	d := c.backoffBase << attempt
	if d > 5*time.Second {
		d = 5 * time.Second
	}
	return d
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func truncate(b []byte, n int) string {
	if len(b) > n {
		return string(b[:n]) + "..."
	}
	return string(b)
}
