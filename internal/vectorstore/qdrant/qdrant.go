package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"kalys/internal/domain"
	"kalys/internal/vectorstore"
)

// Storage is a minimal REST client to Qdrant. The collection name is fixed
// at construction.
type Storage struct {
	url        string
	apiKey     string
	collection string
	batchSize  int
	client     *http.Client
}

type Config struct {
	URL        string
	APIKey     string
	Collection string
	BatchSize  int
	Timeout    time.Duration
}

func NewStorage(cfg Config) *Storage {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	return &Storage{
		url:        strings.TrimRight(cfg.URL, "/"),
		apiKey:     cfg.APIKey,
		collection: cfg.Collection,
		batchSize:  cfg.BatchSize,
		client:     &http.Client{Timeout: timeout},
	}
}

func distance(metric string) string {
	switch strings.ToLower(metric) {
	case vectorstore.MetricDot:
		return "Dot"
	case vectorstore.MetricEuclidean:
		return "Euclid"
	default:
		return "Cosine"
	}
}

// Reset drops the collection if it exists and recreates it with a keyword
// index on the source field so filtered search stays fast.
func (s *Storage) Reset(ctx context.Context, spec vectorstore.Spec) error {
	if err := spec.Validate(); err != nil {
		return err
	}
	if spec.Name != s.collection {
		return fmt.Errorf("index %q does not match collection %q", spec.Name, s.collection)
	}
	status, err := s.do(ctx, http.MethodDelete, s.collectionURL(""), nil, nil)
	if err != nil && status != http.StatusNotFound {
		return err
	}
	body := map[string]any{
		"vectors": map[string]any{
			"size":     spec.Dimension,
			"distance": distance(spec.Metric),
		},
	}
	if _, err := s.do(ctx, http.MethodPut, s.collectionURL(""), body, nil); err != nil {
		return err
	}
	index := map[string]any{"field_name": "source", "field_schema": "keyword"}
	_, err = s.do(ctx, http.MethodPut, s.collectionURL("/index?wait=true"), index, nil)
	return err
}

// pointID maps a chunk id to a Qdrant point id, which must be a UUID.
func pointID(id string) string {
	if u, err := uuid.Parse(id); err == nil {
		return u.String()
	}
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(id)).String()
}

func (s *Storage) Upsert(ctx context.Context, records []domain.IndexRecord) (int, error) {
	committed := 0
	for _, batch := range vectorstore.Batches(records, s.batchSize) {
		points := make([]map[string]any, len(batch))
		for i, r := range batch {
			payload := map[string]any{
				"chunk_id":    r.ID,
				"source":      r.Metadata.Source,
				"chunk_index": r.Metadata.ChunkIndex,
				"text":        r.Metadata.Text,
			}
			if r.Metadata.Page != nil {
				payload["page"] = *r.Metadata.Page
			}
			if r.Metadata.ElementType != "" {
				payload["element_type"] = r.Metadata.ElementType
			}
			points[i] = map[string]any{"id": pointID(r.ID), "vector": r.Vector, "payload": payload}
		}
		if _, err := s.do(ctx, http.MethodPut, s.collectionURL("/points?wait=true"), map[string]any{"points": points}, nil); err != nil {
			return committed, fmt.Errorf("upsert batch at %d: %w", committed, err)
		}
		committed += len(batch)
	}
	return committed, nil
}

type searchResponse struct {
	Result []struct {
		ID      any     `json:"id"`
		Score   float64 `json:"score"`
		Payload struct {
			ChunkID     string `json:"chunk_id"`
			Source      string `json:"source"`
			Page        *int   `json:"page"`
			ElementType string `json:"element_type"`
			ChunkIndex  int    `json:"chunk_index"`
			Text        string `json:"text"`
		} `json:"payload"`
	} `json:"result"`
}

func (s *Storage) Query(ctx context.Context, vector []float32, topK int, filter *vectorstore.Filter) ([]domain.Match, error) {
	if topK <= 0 {
		return nil, nil
	}
	req := map[string]any{
		"vector":       vector,
		"limit":        topK,
		"with_payload": true,
	}
	if filter.Active() {
		req["filter"] = map[string]any{
			"must": []any{map[string]any{"key": "source", "match": map[string]any{"any": filter.Sources}}},
		}
	}
	var resp searchResponse
	if _, err := s.do(ctx, http.MethodPost, s.collectionURL("/points/search"), req, &resp); err != nil {
		return nil, err
	}
	results := make([]domain.Match, 0, len(resp.Result))
	for _, r := range resp.Result {
		id := r.Payload.ChunkID
		if id == "" {
			id = fmt.Sprint(r.ID)
		}
		results = append(results, domain.Match{
			ID:    id,
			Score: r.Score,
			Metadata: domain.Metadata{
				Source:      r.Payload.Source,
				Page:        r.Payload.Page,
				ElementType: r.Payload.ElementType,
				ChunkIndex:  r.Payload.ChunkIndex,
				Text:        r.Payload.Text,
			},
		})
	}
	return results, nil
}

func (s *Storage) Count(ctx context.Context) (int64, error) {
	var resp struct {
		Result struct {
			Count int64 `json:"count"`
		} `json:"result"`
	}
	if _, err := s.do(ctx, http.MethodPost, s.collectionURL("/points/count"), map[string]any{"exact": true}, &resp); err != nil {
		return 0, err
	}
	return resp.Result.Count, nil
}

func (s *Storage) collectionURL(suffix string) string {
	return fmt.Sprintf("%s/collections/%s%s", s.url, s.collection, suffix)
}

// do sends a JSON request and decodes the response into out when non-nil.
// The returned status is set whenever a response was received.
func (s *Storage) do(ctx context.Context, method, url string, body, out any) (int, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return 0, err
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	if s.apiKey != "" {
		req.Header.Set("api-key", s.apiKey)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return resp.StatusCode, fmt.Errorf("qdrant %s %s failed: %s: %s", method, url, resp.Status, strings.TrimSpace(string(msg)))
	}
	if out != nil {
		return resp.StatusCode, json.NewDecoder(resp.Body).Decode(out)
	}
	return resp.StatusCode, nil
}
