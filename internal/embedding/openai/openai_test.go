package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, url string, retries int) *Client {
	t.Helper()
	c, err := NewClient(Config{BaseURL: url, APIKey: "k", MaxRetries: retries, BackoffBase: time.Millisecond})
	require.NoError(t, err)
	return c
}

func TestEmbedBatchReordersByIndex(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/embeddings", r.URL.Path)
		assert.Equal(t, "Bearer k", r.Header.Get("Authorization"))
		var req embeddingRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "text-embedding-3-small", req.Model)
		assert.Equal(t, []string{"a", "b"}, req.Input)
		_, _ = w.Write([]byte(`{"data":[{"index":1,"embedding":[2,2]},{"index":0,"embedding":[1,1]}]}`))
	}))
	defer srv.Close()

	vecs, err := newTestClient(t, srv.URL, 0).EmbedBatch(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	assert.Equal(t, [][]float32{{1, 1}, {2, 2}}, vecs)
}

func TestEmbedBatchSendsDimensions(t *testing.T) {
	var got atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req embeddingRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		got.Store(int64(req.Dimensions))
		_, _ = w.Write([]byte(`{"data":[{"index":0,"embedding":[1,1]}]}`))
	}))
	defer srv.Close()

	tests := []struct {
		model      string
		dimensions int
		want       int64
	}{
		{"text-embedding-3-small", 512, 512},
		{"text-embedding-3-large", 0, 0},
		{"text-embedding-ada-002", 512, 0},
		{"nomic-embed-text", 768, 0},
	}
	for _, tt := range tests {
		t.Run(tt.model, func(t *testing.T) {
			c, err := NewClient(Config{BaseURL: srv.URL, APIKey: "k", Model: tt.model, Dimensions: tt.dimensions})
			require.NoError(t, err)
			_, err = c.EmbedBatch(context.Background(), []string{"a"})
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.Load())
		})
	}
}

func TestEmbedBatchOllamaShape(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"embeddings":[[0.5,0.5]]}`))
	}))
	defer srv.Close()

	vecs, err := newTestClient(t, srv.URL, 0).EmbedBatch(context.Background(), []string{"a"})
	require.NoError(t, err)
	assert.Equal(t, [][]float32{{0.5, 0.5}}, vecs)
}

func TestEmbedBatchRetriesTransientErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_, _ = w.Write([]byte(`{"data":[{"index":0,"embedding":[1]}]}`))
	}))
	defer srv.Close()

	vecs, err := newTestClient(t, srv.URL, 3).EmbedBatch(context.Background(), []string{"a"})
	require.NoError(t, err)
	assert.Len(t, vecs, 1)
	assert.Equal(t, int32(3), calls.Load())
}

func TestEmbedBatchDoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "bad key", http.StatusUnauthorized)
	}))
	defer srv.Close()

	_, err := newTestClient(t, srv.URL, 3).EmbedBatch(context.Background(), []string{"a"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
	assert.Equal(t, int32(1), calls.Load())
}

func TestEmbedBatchCountMismatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data":[{"index":0,"embedding":[1]}]}`))
	}))
	defer srv.Close()

	_, err := newTestClient(t, srv.URL, 0).EmbedBatch(context.Background(), []string{"a", "b"})
	assert.Error(t, err)
}

func TestRetryDelay(t *testing.T) {
	c := &Client{backoffBase: 200 * time.Millisecond}
	assert.Equal(t, 200*time.Millisecond, c.retryDelay(0, nil))
	assert.Equal(t, 800*time.Millisecond, c.retryDelay(2, nil))
	assert.Equal(t, 5*time.Second, c.retryDelay(10, nil))
	assert.Equal(t, 7*time.Second, c.retryDelay(0, &statusError{code: 429, retryAfter: "7"}))
}

func TestNewClientRequiresKey(t *testing.T) {
	_, err := NewClient(Config{})
	assert.Error(t, err)
}
