package vectorstore

import (
	"context"
	"fmt"
	"strings"

	"kalys/internal/domain"
)

// Distance metrics accepted by Spec.Metric.
const (
	MetricCosine     = "cosine"
	MetricDot        = "dot"
	MetricEuclidean  = "euclidean"
	DefaultBatchSize = 50
)

// Spec describes the index an ingestion run writes into.
type Spec struct {
	Name      string
	Dimension int
	Metric    string
}

func (s Spec) Validate() error {
	if s.Name == "" {
		return fmt.Errorf("index name is required")
	}
	if s.Dimension <= 0 {
		return fmt.Errorf("index dimension must be positive, got %d", s.Dimension)
	}
	switch strings.ToLower(s.Metric) {
	case MetricCosine, MetricDot, MetricEuclidean, "":
		return nil
	}
	return fmt.Errorf("unknown metric %q", s.Metric)
}

// Filter restricts a query to chunks whose source is in Sources.
// A nil filter, or one with no sources, matches everything.
type Filter struct {
	Sources []string
}

// Active reports whether the filter restricts anything.
func (f *Filter) Active() bool { return f != nil && len(f.Sources) > 0 }

// Allows reports whether a source passes the filter.
func (f *Filter) Allows(source string) bool {
	if !f.Active() {
		return true
	}
	for _, s := range f.Sources {
		if s == source {
			return true
		}
	}
	return false
}

// Index persists vectors with metadata and supports similarity search.
type Index interface {
	// Reset drops the index if present and recreates it empty.
	Reset(ctx context.Context, spec Spec) error
	// Upsert writes records, replacing any with the same id, and returns how
	// many were committed.
	Upsert(ctx context.Context, records []domain.IndexRecord) (int, error)
	// Query returns up to topK matches by descending similarity.
	Query(ctx context.Context, vector []float32, topK int, filter *Filter) ([]domain.Match, error)
	Count(ctx context.Context) (int64, error)
}

// Batches splits records into consecutive slices of at most size elements.
func Batches(records []domain.IndexRecord, size int) [][]domain.IndexRecord {
	if size <= 0 {
		size = DefaultBatchSize
	}
	var out [][]domain.IndexRecord
	for start := 0; start < len(records); start += size {
		out = append(out, records[start:min(start+size, len(records))])
	}
	return out
}
