package memory

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"

	"kalys/internal/domain"
	"kalys/internal/vectorstore"
)

// Storage is a simple in-memory vector index using brute-force similarity.
type Storage struct {
	mu      sync.RWMutex
	spec    vectorstore.Spec
	ready   bool
	records map[string]domain.IndexRecord
}

func NewStorage() *Storage { return &Storage{records: make(map[string]domain.IndexRecord)} }

func (s *Storage) Reset(_ context.Context, spec vectorstore.Spec) error {
	if err := spec.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.spec = spec
	s.ready = true
	s.records = make(map[string]domain.IndexRecord)
	return nil
}

func (s *Storage) Upsert(_ context.Context, records []domain.IndexRecord) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.ready {
		return 0, errors.New("index not initialised")
	}
	for _, r := range records {
		if len(r.Vector) != s.spec.Dimension {
			return 0, fmt.Errorf("record %s: vector dimension %d, index expects %d", r.ID, len(r.Vector), s.spec.Dimension)
		}
	}
	for _, r := range records {
		s.records[r.ID] = r
	}
	return len(records), nil
}

func (s *Storage) Query(_ context.Context, vector []float32, topK int, filter *vectorstore.Filter) ([]domain.Match, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.ready {
		return nil, errors.New("index not initialised")
	}
	if topK <= 0 {
		return nil, nil
	}
	matches := make([]domain.Match, 0, len(s.records))
	for _, r := range s.records {
		if !filter.Allows(r.Metadata.Source) {
			continue
		}
		matches = append(matches, domain.Match{ID: r.ID, Score: s.score(r.Vector, vector), Metadata: r.Metadata})
	}
	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}
		return matches[i].ID < matches[j].ID
	})
	if len(matches) > topK {
		matches = matches[:topK]
	}
	return matches, nil
}

func (s *Storage) Count(context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.records)), nil
}

// score is higher for closer vectors under every metric.
func (s *Storage) score(a, b []float32) float64 {
	switch strings.ToLower(s.spec.Metric) {
	case vectorstore.MetricDot:
		return dot(a, b)
	case vectorstore.MetricEuclidean:
		sum := 0.0
		for i := 0; i < min(len(a), len(b)); i++ {
			d := float64(a[i]) - float64(b[i])
			sum += d * d
		}
		return -math.Sqrt(sum)
	default:
		na, nb := math.Sqrt(dot(a, a)), math.Sqrt(dot(b, b))
		if na == 0 || nb == 0 {
			return 0
		}
		return dot(a, b) / (na * nb)
	}
}

func dot(a, b []float32) float64 {
	n := min(len(a), len(b))
	sum := 0.0
	for i := 0; i < n; i++ {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}
